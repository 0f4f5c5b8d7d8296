package authapi_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ledgerlane/sessionkit/authapi"
	"github.com/ledgerlane/sessionkit/authapi/authapitest"
	"github.com/ledgerlane/sessionkit/transport"
)

func newFixture(t *testing.T) (*authapitest.Server, authapi.User) {
	t.Helper()
	srv := authapitest.NewServer()
	t.Cleanup(srv.Close)
	u := srv.AddUser(authapi.User{Username: "alice", Email: "alice@example.com", FirstName: "Alice"}, "correct-horse")
	return srv, u
}

func authedClient(t *testing.T, base, token string) *authapi.Client {
	t.Helper()
	hc := &http.Client{Transport: transport.Chain(nil,
		transport.DefaultHeaders(http.Header{"Content-Type": {"application/json"}}),
		transport.Upload(),
		transport.Authorize(transport.CredentialFunc(func(context.Context) (string, error) { return token, nil }), ""),
	)}
	c, err := authapi.New(base, hc)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func TestLoginByUsernameAndEmail(t *testing.T) {
	srv, u := newFixture(t)
	c := authedClient(t, srv.URL(), "")

	for _, id := range []string{"alice", "alice@example.com"} {
		res, err := c.Login(context.Background(), id, "correct-horse")
		if err != nil {
			t.Fatalf("login %s: %v", id, err)
		}
		if res.Token == "" || res.User.ID != u.ID || res.User.FirstName != "Alice" {
			t.Fatalf("unexpected login result: %+v", res)
		}
	}
}

func TestLoginWrongPasswordIsValidationError(t *testing.T) {
	srv, _ := newFixture(t)
	c := authedClient(t, srv.URL(), "")

	_, err := c.Login(context.Background(), "alice", "wrong")
	if !errors.Is(err, authapi.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	var apiErr *authapi.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T", err)
	}
	if apiErr.HumanMessage() != "Invalid credentials" {
		t.Fatalf("unexpected message %q", apiErr.HumanMessage())
	}
}

func TestRegisterFieldErrors(t *testing.T) {
	srv, _ := newFixture(t)
	c := authedClient(t, srv.URL(), "")

	_, err := c.Register(context.Background(), authapi.Registration{Username: "alice", Password: "short"})
	var apiErr *authapi.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if len(apiErr.Fields["username"]) != 1 || len(apiErr.Fields["password"]) != 1 {
		t.Fatalf("unexpected field errors: %+v", apiErr.Fields)
	}
	if got := apiErr.HumanMessage(); !strings.HasPrefix(got, "password: ") {
		t.Fatalf("expected first sorted field message, got %q", got)
	}
}

func TestRegisterIssuesTokenAndJWT(t *testing.T) {
	srv, _ := newFixture(t)
	c := authedClient(t, srv.URL(), "")

	res, err := c.Register(context.Background(), authapi.Registration{Username: "bob", Email: "bob@example.com", Password: "long-enough-pw"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if res.Token == "" || res.JWT.Access == "" || res.User.Username != "bob" {
		t.Fatalf("unexpected register result: %+v", res)
	}
}

func TestProfileRequiresCredential(t *testing.T) {
	srv, _ := newFixture(t)
	c := authedClient(t, srv.URL(), "tokX")

	_, err := c.Profile(context.Background())
	if !errors.Is(err, authapi.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestProfileUpdateAndUpload(t *testing.T) {
	srv, u := newFixture(t)
	srv.IssueToken(u.ID, "tok1")
	c := authedClient(t, srv.URL(), "tok1")
	ctx := context.Background()

	last := "Liddell"
	got, err := c.UpdateProfile(ctx, authapi.ProfileUpdate{LastName: &last})
	if err != nil {
		t.Fatalf("update profile: %v", err)
	}
	if got.LastName != "Liddell" || got.FirstName != "Alice" {
		t.Fatalf("unexpected profile after update: %+v", got)
	}

	got, err = c.UploadProfilePicture(ctx, "/tmp/me.png", strings.NewReader("png-bytes"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if got.ProfilePicture != "/media/profile_pictures/me.png" {
		t.Fatalf("unexpected picture %q", got.ProfilePicture)
	}

	got, err = c.RemoveProfilePicture(ctx)
	if err != nil {
		t.Fatalf("remove picture: %v", err)
	}
	if got.ProfilePicture != "" {
		t.Fatalf("expected picture removed, got %q", got.ProfilePicture)
	}
}

func TestProfileUpdateValidationDetails(t *testing.T) {
	srv, u := newFixture(t)
	srv.IssueToken(u.ID, "tok1")
	c := authedClient(t, srv.URL(), "tok1")

	bad := "purple"
	_, err := c.UpdateProfile(context.Background(), authapi.ProfileUpdate{ThemePreference: &bad})
	var apiErr *authapi.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.Message != "Validation failed" || len(apiErr.Fields["theme_preference"]) != 1 {
		t.Fatalf("unexpected error decode: %+v", apiErr)
	}
}

func TestUpdateThemePreference(t *testing.T) {
	srv, u := newFixture(t)
	srv.IssueToken(u.ID, "tok1")
	c := authedClient(t, srv.URL(), "tok1")

	if err := c.UpdateThemePreference(context.Background(), authapi.ThemeDark); err != nil {
		t.Fatalf("update theme: %v", err)
	}
	if err := c.UpdateThemePreference(context.Background(), "neon"); err == nil {
		t.Fatalf("expected local rejection of unknown theme")
	}
	if got := srv.ThemeUpdates(); len(got) != 1 || got[0] != authapi.ThemeDark {
		t.Fatalf("unexpected theme updates: %v", got)
	}
}

func TestURLStripsLeadingSlashes(t *testing.T) {
	c, err := authapi.New("http://localhost:8000/api/", nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if got := c.URL("//auth/me/"); got != "http://localhost:8000/api/auth/me/" {
		t.Fatalf("unexpected url %q", got)
	}
	if _, err := authapi.New("not a url", nil); err == nil {
		t.Fatalf("expected invalid base URL error")
	}
}

func TestServerErrorAndTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html>bad gateway</html>"))
	}))
	c, _ := authapi.New(srv.URL+"/api", nil)
	_, err := c.Profile(context.Background())
	if !errors.Is(err, authapi.ErrServer) {
		t.Fatalf("expected ErrServer, got %v", err)
	}
	var apiErr *authapi.APIError
	if errors.As(err, &apiErr) && apiErr.HumanMessage() != "request failed with status 502" {
		t.Fatalf("html body must not leak into message, got %q", apiErr.HumanMessage())
	}
	srv.Close()

	_, err = c.Profile(context.Background())
	if !errors.Is(err, authapi.ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
}
