package zrm

import (
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/hashicorp/go-metrics"

	"github.com/zrm-robotics/zrm-go/transport"
)

const (
	defaultAnnounceInterval = 250 * time.Millisecond
	defaultLivenessTimeout  = 1 * time.Second
)

type config struct {
	tr               transport.PubSub
	logHandler       slog.Handler
	msink            metrics.MetricSink
	metricLabels     []metrics.Label
	announceInterval time.Duration
	liveness         time.Duration
	clk              clock.Clock
}

// Option configures a Context.
type Option func(*config) error

// WithTransport binds the Context to an existing transport session. The
// caller keeps ownership and is responsible for closing it after the
// Context. Without this option the Context attaches to the process-shared
// in-memory bus.
func WithTransport(tr transport.PubSub) Option {
	return func(c *config) error {
		c.tr = tr
		return nil
	}
}

// WithLog specifies which `slog.Handler` to use.
func WithLog(handler slog.Handler) Option {
	return func(c *config) error {
		c.logHandler = handler
		return nil
	}
}

// WithMetricSink chooses where runtime metrics are emitted.
func WithMetricSink(ms metrics.MetricSink) Option {
	return func(c *config) error {
		if ms == nil {
			ms = &metrics.BlackholeSink{}
		}
		c.msink = ms
		return nil
	}
}

// WithMetricLabels adds static labels to every metric the Context emits.
func WithMetricLabels(labels []metrics.Label) Option {
	return func(c *config) error {
		c.metricLabels = labels
		return nil
	}
}

// WithAnnounceInterval controls how often nodes publish their discovery
// snapshot. Shorter intervals converge faster at the cost of bandwidth.
func WithAnnounceInterval(interval time.Duration) Option {
	return func(c *config) error {
		if interval > 0 {
			c.announceInterval = interval
		}
		return nil
	}
}

// WithLivenessTimeout controls how long a node stays in the graph without
// a refresh before it is presumed gone. Must comfortably exceed the
// announce interval.
func WithLivenessTimeout(timeout time.Duration) Option {
	return func(c *config) error {
		if timeout > 0 {
			c.liveness = timeout
		}
		return nil
	}
}

// WithClock injects the clock used for liveness deadlines. Tests use a
// mock clock to exercise pruning deterministically.
func WithClock(clk clock.Clock) Option {
	return func(c *config) error {
		if clk != nil {
			c.clk = clk
		}
		return nil
	}
}
