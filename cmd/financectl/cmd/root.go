// Package cmd contains the financectl command tree.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ledgerlane/sessionkit"
	"github.com/ledgerlane/sessionkit/cmd/financectl/internal/config"
	"github.com/ledgerlane/sessionkit/store"
)

// app carries per-invocation state shared by subcommands.
type app struct {
	cfgFile        string
	nonInteractive bool
	verbose        bool

	cfg    *config.Config
	logger *slog.Logger
}

// NewRootCmd returns a fresh command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "financectl",
		Short: "Finance tracker session client",
		Long: `financectl signs in to a finance tracker backend and keeps the session
between invocations, in a local file or a shared Redis namespace.

Example usage:
  financectl auth login -u alice      # sign in
  financectl auth status              # show who is signed in
  financectl profile update --first-name Alice
  financectl theme set dark`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default is $HOME/.config/financectl/config.yaml)")
	flags.String("server", "", "API base URL, e.g. http://localhost:8000/api")
	flags.String("store", "", "session store: file or redis")
	flags.String("store-dir", "", "directory of the file store")
	flags.String("namespace", "", "session namespace")
	flags.String("redis-addr", "", "redis address for --store redis")
	flags.BoolVar(&a.nonInteractive, "non-interactive", false, "never prompt (also set via FINANCECTL_NON_INTERACTIVE=1)")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "verbose logging")

	root.AddCommand(newAuthCmd(a), newProfileCmd(a), newThemeCmd(a))
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	if os.Getenv("FINANCECTL_NON_INTERACTIVE") == "1" {
		a.nonInteractive = true
	}

	flags := cmd.Root().PersistentFlags()
	cfg, err := config.Load(a.cfgFile, func(v *viper.Viper) error {
		for key, name := range map[string]string{
			"api.base_url":     "server",
			"store.kind":       "store",
			"store.dir":        "store-dir",
			"store.namespace":  "namespace",
			"store.redis_addr": "redis-addr",
		} {
			if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	a.cfg = cfg

	level := slog.LevelWarn
	_ = level.UnmarshalText([]byte(cfg.Logging.Level))
	if a.verbose {
		level = slog.LevelDebug
	}
	a.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	a.logger.Debug("configuration loaded",
		"server", cfg.API.BaseURL,
		"store", cfg.Store.Kind,
		"namespace", cfg.Store.Namespace,
	)
	return nil
}

// openBackend returns the configured store and a function releasing it.
func (a *app) openBackend() (store.Backend, func(), error) {
	switch a.cfg.Store.Kind {
	case config.StoreRedis:
		client := redis.NewClient(&redis.Options{Addr: a.cfg.Store.RedisAddr})
		return store.NewRedis(client, a.cfg.Store.RedisPrefix, a.cfg.Store.Namespace), func() { _ = client.Close() }, nil
	case config.StoreFile:
		f, err := store.NewFile(a.cfg.Store.Dir, a.cfg.Store.Namespace)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open session file: %w", err)
		}
		return f, func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown store %q", a.cfg.Store.Kind)
}

// session builds and boots a controller. The returned function closes it.
func (a *app) session(ctx context.Context) (*sessionkit.Controller, func(), error) {
	backend, release, err := a.openBackend()
	if err != nil {
		return nil, nil, err
	}

	c, err := sessionkit.New().
		WithConfig(a.cfg.Session()).
		WithBackend(backend).
		WithLogger(a.logger).
		Build()
	if err != nil {
		release()
		return nil, nil, err
	}
	closeAll := func() {
		c.Close()
		release()
	}

	if err := c.Boot(ctx); err != nil {
		closeAll()
		return nil, nil, fmt.Errorf("failed to read session: %w", err)
	}
	return c, closeAll, nil
}

// signedIn boots and fails unless a session is held. A stored credential
// the server rejects is torn down during boot, so this also reports expiry.
func (a *app) signedIn(ctx context.Context) (*sessionkit.Controller, func(), error) {
	c, closeAll, err := a.session(ctx)
	if err != nil {
		return nil, nil, err
	}
	v, err := awaitBoot(ctx, c)
	if err != nil {
		closeAll()
		return nil, nil, err
	}
	if !v.Authenticated() {
		closeAll()
		return nil, nil, errNotLoggedIn
	}
	return c, closeAll, nil
}

var errNotLoggedIn = errors.New("not logged in (run 'financectl auth login')")

// awaitBoot waits for a credential-only boot to resolve.
func awaitBoot(ctx context.Context, c *sessionkit.Controller) (sessionkit.View, error) {
	if v := c.View(); !v.Loading() {
		return v, nil
	}
	changed := make(chan struct{}, 1)
	unsubscribe := c.Subscribe(func(v sessionkit.View) {
		if !v.Loading() {
			select {
			case changed <- struct{}{}:
			default:
			}
		}
	})
	defer unsubscribe()

	if v := c.View(); !v.Loading() {
		return v, nil
	}
	select {
	case <-changed:
		return c.View(), nil
	case <-ctx.Done():
		return sessionkit.View{}, ctx.Err()
	}
}
