package cmd

import (
	"context"
	"testing"

	"github.com/pterm/pterm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerlane/sessionkit"
	"github.com/ledgerlane/sessionkit/authapi"
	"github.com/ledgerlane/sessionkit/authapi/authapitest"
	"github.com/ledgerlane/sessionkit/preference"
	"github.com/ledgerlane/sessionkit/store"
)

func init() {
	pterm.DisableOutput()
}

type cli struct {
	t   *testing.T
	srv *authapitest.Server
	dir string
}

func newCLI(t *testing.T) *cli {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())
	srv := authapitest.NewServer()
	t.Cleanup(srv.Close)
	srv.AddUser(authapi.User{Username: "alice", Email: "alice@example.com", FirstName: "Alice"}, "correct-horse")
	return &cli{t: t, srv: srv, dir: t.TempDir()}
}

func (c *cli) run(args ...string) error {
	c.t.Helper()
	root := NewRootCmd()
	root.SetArgs(append([]string{
		"--server", c.srv.URL(),
		"--store-dir", c.dir,
		"--non-interactive",
	}, args...))
	return root.ExecuteContext(context.Background())
}

func (c *cli) record() sessionkit.Record {
	c.t.Helper()
	f, err := store.NewFile(c.dir, "default")
	require.NoError(c.t, err)
	rec, err := sessionkit.NewCredentialStore(f, sessionkit.DefaultConfig().Storage).Load(context.Background())
	require.NoError(c.t, err)
	return rec
}

func TestLoginStatusLogout(t *testing.T) {
	c := newCLI(t)

	require.NoError(t, c.run("auth", "login", "-u", "alice", "-p", "correct-horse"))
	rec := c.record()
	assert.NotEmpty(t, rec.Credential)
	require.NotNil(t, rec.Identity)
	assert.Equal(t, "alice", rec.Identity.Username)

	require.NoError(t, c.run("auth", "status", "--refresh"))

	require.NoError(t, c.run("auth", "logout"))
	assert.Empty(t, c.record().Credential)

	err := c.run("auth", "status")
	assert.ErrorIs(t, err, errNotLoggedIn)

	// second logout is a no-op
	assert.NoError(t, c.run("auth", "logout"))
}

func TestLoginWrongPassword(t *testing.T) {
	c := newCLI(t)

	err := c.run("auth", "login", "-u", "alice", "-p", "nope")
	require.Error(t, err)
	assert.ErrorIs(t, err, sessionkit.ErrInvalidCredentials)
	assert.Equal(t, "Invalid credentials", err.Error())
	assert.Empty(t, c.record().Credential)
}

func TestLoginNonInteractiveNeedsPassword(t *testing.T) {
	c := newCLI(t)
	t.Setenv("FINANCECTL_PASSWORD", "")

	err := c.run("auth", "login", "-u", "alice")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-interactive")
}

func TestStatusAfterServerRevocation(t *testing.T) {
	c := newCLI(t)
	require.NoError(t, c.run("auth", "login", "-u", "alice", "-p", "correct-horse"))
	c.srv.Revoke(c.record().Credential)

	// the stored snapshot lets status answer at once; a forced refresh
	// hits the server and tears the session down
	err := c.run("auth", "status", "--refresh")
	assert.ErrorIs(t, err, errNotLoggedIn)
	assert.Empty(t, c.record().Credential)
}

func TestRegisterSignsIn(t *testing.T) {
	c := newCLI(t)

	require.NoError(t, c.run("auth", "register", "-u", "bob", "--email", "bob@example.com", "-p", "hunter22", "--first-name", "Bob"))
	rec := c.record()
	require.NotNil(t, rec.Identity)
	assert.Equal(t, "bob", rec.Identity.Username)
	assert.Equal(t, "Bob", rec.Identity.FirstName)
}

func TestProfileUpdate(t *testing.T) {
	c := newCLI(t)
	require.NoError(t, c.run("auth", "login", "-u", "alice", "-p", "correct-horse"))

	require.NoError(t, c.run("profile", "update", "--first-name", "Alicia", "--currency", "EUR"))
	rec := c.record()
	require.NotNil(t, rec.Identity)
	assert.Equal(t, "Alicia", rec.Identity.FirstName)
	assert.Equal(t, "EUR", rec.Identity.CurrencyPreference)

	require.NoError(t, c.run("profile", "update", "--email-notifications"))
	assert.True(t, c.record().Identity.EmailNotifications)

	assert.Error(t, c.run("profile", "update"))
	assert.Error(t, c.run("profile", "update", "--currency", "JPY"))
	require.NoError(t, c.run("profile", "show"))
}

func TestProfileRequiresLogin(t *testing.T) {
	c := newCLI(t)
	err := c.run("profile", "show")
	assert.ErrorIs(t, err, errNotLoggedIn)
}

func TestThemeSetGetClear(t *testing.T) {
	c := newCLI(t)
	require.NoError(t, c.run("auth", "login", "-u", "alice", "-p", "correct-horse"))

	require.NoError(t, c.run("theme", "set", "dark"))
	f, err := store.NewFile(c.dir, "default")
	require.NoError(t, err)
	vals, err := f.Get(context.Background(), preference.DefaultKey)
	require.NoError(t, err)
	assert.Equal(t, "dark", string(vals[0]))
	assert.Equal(t, []string{"dark"}, c.srv.ThemeUpdates())

	require.NoError(t, c.run("theme", "get"))
	require.NoError(t, c.run("theme", "clear"))
	vals, err = f.Get(context.Background(), preference.DefaultKey)
	require.NoError(t, err)
	// with no device choice left, a reconciliation finishing after the
	// clear may adopt the server's theme again
	assert.Contains(t, []string{"", "dark"}, string(vals[0]))

	assert.Error(t, c.run("theme", "set", "neon"))
}

func TestUnknownStoreRejected(t *testing.T) {
	c := newCLI(t)
	err := c.run("--store", "s3", "auth", "status")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.kind")
}
