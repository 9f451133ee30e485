package ensemble

import (
	"context"
	"time"

	"github.com/r3e-network/ensemble/internal/backoff"
)

// Logger is the minimal structured-logging surface the engine needs.
// internal/logging.Logger satisfies it by embedding *logrus.Logger.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debugf(string, ...any) {}
func (noopLogger) Infof(string, ...any)  {}
func (noopLogger) Warnf(string, ...any)  {}
func (noopLogger) Errorf(string, ...any) {}

// MetricsRecorder is the minimal observability surface the engine
// reports into. internal/metrics.Recorder satisfies it with
// Prometheus collectors; the zero value (noopMetricsRecorder) is used
// when Options.Metrics is nil so the engine never has to nil-check.
type MetricsRecorder interface {
	RequestSubmitted(opKind string)
	ReplyDispatched(opKind string, failed bool)
	WatchEventDelivered(kind WatchKind)
	StateTransition(from, to SessionState)
	CompletionsDrained(n int)
	WatchesDrained(n int)
}

type noopMetricsRecorder struct{}

func (noopMetricsRecorder) RequestSubmitted(string)          {}
func (noopMetricsRecorder) ReplyDispatched(string, bool)     {}
func (noopMetricsRecorder) WatchEventDelivered(WatchKind)    {}
func (noopMetricsRecorder) StateTransition(SessionState, SessionState) {}
func (noopMetricsRecorder) CompletionsDrained(int)           {}
func (noopMetricsRecorder) WatchesDrained(int)               {}

// SubmissionLimiter is the narrow slice of golang.org/x/time/rate.Limiter
// the engine depends on, so the core package does not itself import
// the rate package -- callers that want rate limiting pass a
// *rate.Limiter, which already satisfies this.
type SubmissionLimiter interface {
	Wait(ctx context.Context) error
}

// Options configures a newly constructed Engine. All fields are
// optional; the zero value is a usable configuration.
type Options struct {
	Logger  Logger
	Metrics MetricsRecorder

	// SubmissionLimiter, if non-nil, is consulted before every
	// submission to the transport. This is an additive safety valve,
	// not part of the ordering contract in section 5.
	SubmissionLimiter SubmissionLimiter

	// KeepAliveInterval, if nonzero, schedules a lightweight fence
	// submission at this period whenever no other request has gone
	// out, so the session survives idle periods. Section 13 of
	// SPEC_FULL.md: recovered from the original implementation's
	// ping loop, omitted from the distilled spec's component table.
	KeepAliveInterval time.Duration

	// ReceiveBatch bounds how many replies the dispatch goroutine
	// pulls from the transport per Receive call. Defaults to 32.
	ReceiveBatch int

	// Backoff tunes how long the engine tolerates a continuous
	// connecting episode before escalating the session to
	// StateExpiredSession, per section 5's session-level timeout. The
	// zero value falls back to backoff.DefaultConfig.
	Backoff backoff.Config
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = noopLogger{}
	}
	if o.Metrics == nil {
		o.Metrics = noopMetricsRecorder{}
	}
	if o.ReceiveBatch <= 0 {
		o.ReceiveBatch = 32
	}
	return o
}
