package telemetry

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	evserrors "github.com/evs-automation/evsctl/internal/errors"
)

const defaultTracerName = "github.com/evs-automation/evsctl"

// Call outcomes used as the "outcome" label.
const (
	OutcomeOK             = "ok"
	OutcomeRemoteError    = "remote_error"
	OutcomeTimeout        = "timeout"
	OutcomeConnectionLost = "connection_lost"
	OutcomeInvalid        = "invalid"
	OutcomeError          = "error"
)

// Config configures a Recorder.
type Config struct {
	// Namespace is the metrics namespace (default: "evsctl").
	Namespace string

	// Buckets are the histogram buckets for call duration.
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer

	// TracerProvider supplies the tracer. Default: the global provider.
	TracerProvider trace.TracerProvider
}

// Option configures a Recorder.
type Option func(*Config)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) Option {
	return func(c *Config) { c.Namespace = namespace }
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) Option {
	return func(c *Config) { c.Registry = registry }
}

// WithTracerProvider sets the OpenTelemetry tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Config) { c.TracerProvider = tp }
}

func defaultConfig() Config {
	return Config{
		Namespace: "evsctl",
		// Calls range from sub-millisecond property reads to scripts that run
		// for minutes.
		Buckets:  []float64{.001, .005, .01, .05, .1, .5, 1, 5, 30, 120, 600},
		Registry: prometheus.DefaultRegisterer,
	}
}

// Recorder records metrics and spans.
type Recorder struct {
	callsTotal     *prometheus.CounterVec
	callDuration   *prometheus.HistogramVec
	launchesTotal  *prometheus.CounterVec
	sessionsActive prometheus.Gauge
	tracer         trace.Tracer
}

// New creates a Recorder and registers its collectors.
func New(opts ...Option) *Recorder {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.TracerProvider == nil {
		cfg.TracerProvider = otel.GetTracerProvider()
	}

	factory := promauto.With(cfg.Registry)
	return &Recorder{
		callsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "calls_total",
			Help:      "Total number of calls forwarded to EVS",
		}, []string{"method", "outcome"}),

		callDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Name:      "call_duration_seconds",
			Help:      "Forwarded call duration in seconds",
			Buckets:   cfg.Buckets,
		}, []string{"method"}),

		launchesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "launches_total",
			Help:      "Total number of EVS process launches",
		}, []string{"outcome"}),

		sessionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Name:      "sessions_active",
			Help:      "Number of connected sessions",
		}),

		tracer: cfg.TracerProvider.Tracer(defaultTracerName),
	}
}

var (
	defaultRecorder     *Recorder
	defaultRecorderOnce sync.Once
)

// Default returns the process-wide Recorder registered on the default
// Prometheus registry.
func Default() *Recorder {
	defaultRecorderOnce.Do(func() {
		defaultRecorder = New()
	})
	return defaultRecorder
}

// Outcome classifies a call error for the outcome label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case evserrors.IsRemote(err):
		return OutcomeRemoteError
	case errors.Is(err, evserrors.ErrConnectionLost):
		return OutcomeConnectionLost
	case errors.Is(err, evserrors.ErrInvalidInput):
		return OutcomeInvalid
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, evserrors.ErrTimeout):
		return OutcomeTimeout
	default:
		return OutcomeError
	}
}

// StartCall opens a span for a forwarded call. The returned function ends
// the span and records metrics; pass it the call's error.
func (r *Recorder) StartCall(ctx context.Context, method string, pid int) (context.Context, func(error)) {
	if r == nil {
		return ctx, func(error) {}
	}

	ctx, span := r.tracer.Start(ctx, "evs."+method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("evs.method", method),
			attribute.Int("evs.pid", pid),
		),
	)
	start := time.Now()

	return ctx, func(err error) {
		outcome := Outcome(err)
		r.callsTotal.WithLabelValues(method, outcome).Inc()
		r.callDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())

		span.SetAttributes(attribute.String("evs.outcome", outcome))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}
}

// RecordLaunch counts one launch attempt.
func (r *Recorder) RecordLaunch(err error) {
	if r == nil {
		return
	}
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
		if errors.Is(err, evserrors.ErrLaunchTimeout) {
			outcome = OutcomeTimeout
		}
	}
	r.launchesTotal.WithLabelValues(outcome).Inc()
}

// SessionOpened increments the active session gauge.
func (r *Recorder) SessionOpened() {
	if r != nil {
		r.sessionsActive.Inc()
	}
}

// SessionClosed decrements the active session gauge.
func (r *Recorder) SessionClosed() {
	if r != nil {
		r.sessionsActive.Dec()
	}
}

// Handler serves the metrics in g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Serve exposes the default registry on addr at /metrics until ctx is done.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(prometheus.DefaultGatherer))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
