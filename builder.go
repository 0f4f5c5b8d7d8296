package sessionkit

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/ledgerlane/sessionkit/authapi"
	"github.com/ledgerlane/sessionkit/preference"
	"github.com/ledgerlane/sessionkit/store"
	"github.com/ledgerlane/sessionkit/transport"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

const tracerName = "github.com/ledgerlane/sessionkit"

// Builder assembles a [Controller]. A Builder is single use.
type Builder struct {
	config Config

	backend    store.Backend
	logger     *slog.Logger
	tracer     trace.TracerProvider
	base       http.RoundTripper
	entry      EntryPoint
	eventSink  EventSink
	appearance preference.Appearance

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithBackend sets the durable store shared by the credential store and the
// preference synchronizer. Required.
func (b *Builder) WithBackend(backend store.Backend) *Builder {
	b.backend = backend
	return b
}

func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithTracerProvider overrides the global OpenTelemetry provider.
func (b *Builder) WithTracerProvider(tp trace.TracerProvider) *Builder {
	b.tracer = tp
	return b
}

// WithTransport sets the RoundTripper underneath the middleware chain.
func (b *Builder) WithTransport(rt http.RoundTripper) *Builder {
	b.base = rt
	return b
}

// WithEntryPoint sets the hook called when the session is torn down.
func (b *Builder) WithEntryPoint(ep EntryPoint) *Builder {
	b.entry = ep
	return b
}

// WithEventSink sets the sink for session events. Events must also be
// enabled in the config.
func (b *Builder) WithEventSink(sink EventSink) *Builder {
	b.eventSink = sink
	return b
}

// WithAppearance sets the OS appearance signal for the preference
// synchronizer.
func (b *Builder) WithAppearance(a preference.Appearance) *Builder {
	b.appearance = a
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the controller. The returned
// controller is in [StateBooting] until [Controller.Boot] runs.
func (b *Builder) Build() (*Controller, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.backend == nil {
		return nil, errors.New("store backend required")
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}
	tp := b.tracer
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	entry := b.entry
	if entry == nil {
		entry = noopEntryPoint{}
	}

	instance := uuid.NewString()
	logger = logger.With("component", "sessionkit", "instance", instance)

	c := &Controller{
		cfg:      cfg,
		logger:   logger,
		tracer:   tp.Tracer(tracerName),
		backend:  b.backend,
		creds:    newCredentialStore(b.backend, cfg.Storage, instance),
		entry:    entry,
		metrics:  NewMetrics(cfg.Metrics),
		events:   newEventDispatcher(cfg.Events, b.eventSink),
		instance: instance,
		now:      time.Now,
		limiter:  newRefreshLimiter(cfg.Reconcile.MinInterval),
		state:    StateBooting,
		subs:     make(map[int]func(View)),
	}
	c.bgCtx, c.cancel = bgContext()

	// -------- TRANSPORT CHAIN --------
	rt := transport.Chain(b.base,
		transport.RequestID(),
		transport.Tracing(tp),
		transport.Logging(logger),
		transport.NormalizePath(),
		transport.DefaultHeaders(http.Header{
			"Content-Type": {"application/json"},
			"Accept":       {"application/json"},
		}),
		transport.Upload(),
		transport.Authorize(c.creds, cfg.API.AuthScheme),
		transport.RejectUnauthorized(c, cfg.API.AuthScheme, logger),
	)
	c.http = &http.Client{Transport: rt, Timeout: cfg.API.Timeout}

	api, err := authapi.New(cfg.API.BaseURL, c.http)
	if err != nil {
		c.events.Close()
		return nil, err
	}
	c.api = api

	// -------- PREFERENCES --------
	prefOpts := []preference.Option{
		preference.WithKey(cfg.Storage.PreferenceKey),
		preference.WithMirror(api),
		preference.WithLogger(logger),
	}
	if b.appearance != nil {
		prefOpts = append(prefOpts, preference.WithAppearance(b.appearance))
	}
	c.prefs = preference.New(b.backend, prefOpts...)

	b.built = true
	return c, nil
}

func newRefreshLimiter(interval time.Duration) *rate.Limiter {
	if interval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(interval), 1)
}
