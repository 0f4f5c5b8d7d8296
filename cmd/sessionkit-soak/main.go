// Command sessionkit-soak runs many controllers ("tabs") against one shared
// Redis namespace, revokes the session server-side mid-run and checks that
// every tab ends signed out with an empty store.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/ledgerlane/sessionkit"
	"github.com/ledgerlane/sessionkit/authapi"
	"github.com/ledgerlane/sessionkit/authapi/authapitest"
	"github.com/ledgerlane/sessionkit/store"
)

type tab struct {
	c      *sessionkit.Controller
	resets atomic.Int64
}

func main() {
	var (
		tabs        = flag.Int("tabs", 8, "number of controllers sharing the session")
		ops         = flag.Int("ops", 2000, "operations across all tabs before the revocation")
		concurrency = flag.Int("concurrency", 4, "workers per tab")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "soak", "store key prefix")
		settle      = flag.Duration("settle", 5*time.Second, "how long tabs get to converge")
		verbose     = flag.Bool("v", false, "log controller activity")
	)
	flag.Parse()

	if *tabs <= 0 || *ops <= 0 || *concurrency <= 0 {
		fmt.Fprintln(os.Stderr, "tabs, ops, and concurrency must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	srv := authapitest.NewServer()
	defer srv.Close()
	srv.AddUser(authapi.User{Username: "soak", Email: "soak@example.com", FirstName: "Soak"}, "soak-password")

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if *verbose {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	namespace := fmt.Sprintf("run-%d", time.Now().UnixNano())
	cfg := sessionkit.DefaultConfig()
	cfg.API.BaseURL = srv.URL()
	cfg.Reconcile.MinInterval = 0
	cfg.Storage.Namespace = namespace

	all := make([]*tab, *tabs)
	for i := range all {
		t := &tab{}
		c, err := sessionkit.New().
			WithConfig(cfg).
			WithBackend(store.NewRedis(client, *prefix, namespace)).
			WithLogger(logger).
			WithEntryPoint(sessionkit.EntryPointFunc(func(context.Context, sessionkit.ResetReason) { t.resets.Add(1) })).
			Build()
		if err != nil {
			fmt.Fprintf(os.Stderr, "build tab %d: %v\n", i, err)
			os.Exit(1)
		}
		if err := c.Boot(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "boot tab %d: %v\n", i, err)
			os.Exit(1)
		}
		t.c = c
		all[i] = t
	}
	defer func() {
		for _, t := range all {
			t.c.Close()
		}
	}()

	if _, err := all[0].c.Login(ctx, "soak", "soak-password"); err != nil {
		fmt.Fprintf(os.Stderr, "login failed: %v\n", err)
		os.Exit(1)
	}
	if !converge(all, *settle, func(v sessionkit.View) bool { return v.Authenticated() }) {
		fmt.Fprintln(os.Stderr, "not every tab adopted the login")
		os.Exit(1)
	}
	fmt.Printf("%d tabs signed in\n", len(all))

	active := runPhase(ctx, all, srv.URL(), *ops, *concurrency)

	srv.RevokeAll()
	revokedAt := time.Now()
	after := runPhase(ctx, all, srv.URL(), len(all)*(*concurrency), *concurrency)

	ok := converge(all, *settle, func(v sessionkit.View) bool { return v.State == sessionkit.StateUnauthenticated })
	convergedIn := time.Since(revokedAt)

	rec, err := all[0].c.Store().Load(ctx)
	storeEmpty := err == nil && rec.Credential == "" && rec.Identity == nil

	// Entry point resets run just after the state flips.
	var resets uint64
	for deadline := time.Now().Add(time.Second); ; time.Sleep(10 * time.Millisecond) {
		resets = 0
		for _, t := range all {
			resets += uint64(t.resets.Load())
		}
		if resets >= uint64(len(all)) || time.Now().After(deadline) {
			break
		}
	}

	var teardowns, remote uint64
	for _, t := range all {
		snap := t.c.MetricsSnapshot()
		teardowns += snap.Counters[sessionkit.MetricAuthorizationFailure]
		remote += snap.Counters[sessionkit.MetricRemoteLogout]
	}

	fmt.Println("---- results ----")
	printStats("signed in", active)
	printStats("revoked", after)
	fmt.Printf("converged=%v in %s store_empty=%v\n", ok, convergedIn.Round(time.Millisecond), storeEmpty)
	fmt.Printf("teardowns=%d remote_logouts=%d resets=%d\n", teardowns, remote, resets)

	if !ok || !storeEmpty || resets != uint64(len(all)) {
		os.Exit(1)
	}
}

// converge polls until every tab satisfies cond or the deadline passes.
func converge(all []*tab, within time.Duration, cond func(sessionkit.View) bool) bool {
	deadline := time.Now().Add(within)
	for {
		done := true
		for _, t := range all {
			if !cond(t.c.View()) {
				done = false
				break
			}
		}
		if done {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func runPhase(ctx context.Context, all []*tab, base string, ops, concurrency int) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for ti, t := range all {
		for w := 0; w < concurrency; w++ {
			wg.Add(1)
			go func(t *tab, worker int) {
				defer wg.Done()
				r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
				for {
					i := int(atomic.AddInt64(&cursor, 1)) - 1
					if i >= ops {
						return
					}
					t0 := time.Now()
					err := operate(ctx, t.c, base, r)
					d := time.Since(t0)
					if err != nil {
						atomic.AddInt64(&failures, 1)
					}
					mu.Lock()
					latencies = append(latencies, d)
					mu.Unlock()
				}
			}(t, ti*concurrency+w)
		}
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures)
}

var errStatus = errors.New("unexpected status")

// operate performs one random request the way an open page would.
func operate(ctx context.Context, c *sessionkit.Controller, base string, r *rand.Rand) error {
	switch n := r.Intn(10); {
	case n < 6:
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/transactions/", nil)
		if err != nil {
			return err
		}
		resp, err := c.HTTPClient().Do(req)
		if err != nil {
			return err
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("%w: %d", errStatus, resp.StatusCode)
		}
		return nil
	case n < 8:
		return c.Refresh(ctx)
	default:
		name := fmt.Sprintf("Soak %d", r.Intn(1000))
		_, err := c.UpdateIdentity(ctx, sessionkit.IdentityPatch{FirstName: &name})
		if errors.Is(err, sessionkit.ErrSuperseded) {
			return nil
		}
		return err
	}
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
