package differ

import (
	"context"
	"errors"
	"strings"
	"time"

	"grc-portal/logger"
	"grc-portal/metrics"
	"grc-portal/models"

	"github.com/rs/zerolog"
)

const DefaultTimeout = 15 * time.Second

// Guarded bounds every generator call by a timeout and replaces failures
// with the fallback results, so a save never waits on or fails because of
// the generator. A nil generator always yields the fallbacks.
type Guarded struct {
	gen     Generator
	timeout time.Duration
	log     zerolog.Logger
	metrics *metrics.Metrics
}

func NewGuarded(gen Generator, timeout time.Duration, log zerolog.Logger, m *metrics.Metrics) *Guarded {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Guarded{
		gen:     gen,
		timeout: timeout,
		log:     logger.Component(log, "differ"),
		metrics: m,
	}
}

type result[T any] struct {
	value T
	err   error
}

// call runs fn in its own goroutine so a generator that ignores ctx still
// cannot hold the caller past the deadline.
func call[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan result[T], 1)
	go func() {
		v, err := fn(ctx)
		done <- result[T]{value: v, err: err}
	}()

	select {
	case r := <-done:
		return r.value, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func (g *Guarded) Summarize(ctx context.Context, oldContent, newContent string) string {
	if g.gen == nil {
		g.degraded("summary", "disabled", 0, nil)
		return FallbackSummary
	}

	start := time.Now()
	summary, err := call(ctx, g.timeout, func(ctx context.Context) (string, error) {
		return g.gen.Summarize(ctx, oldContent, newContent)
	})
	summary = strings.TrimSpace(summary)
	if err == nil && summary == "" {
		err = errEmpty
	}
	if err != nil {
		g.degraded("summary", reason(err), time.Since(start), err)
		return FallbackSummary
	}
	g.metrics.RecordDiff("summary", "", time.Since(start))
	return summary
}

func (g *Guarded) Diff(ctx context.Context, oldContent, newContent string) models.ChangeDiff {
	if g.gen == nil {
		g.degraded("diff", "disabled", 0, nil)
		return FallbackDiff()
	}

	start := time.Now()
	diff, err := call(ctx, g.timeout, func(ctx context.Context) (models.ChangeDiff, error) {
		return g.gen.Diff(ctx, oldContent, newContent)
	})
	if err != nil {
		g.degraded("diff", reason(err), time.Since(start), err)
		return FallbackDiff()
	}
	g.metrics.RecordDiff("diff", "", time.Since(start))
	return diff.Normalize()
}

var errEmpty = errors.New("generator returned an empty result")

func (g *Guarded) degraded(kind, why string, took time.Duration, err error) {
	g.metrics.RecordDiff(kind, why, took)
	event := g.log.Warn()
	if why == "disabled" {
		event = g.log.Debug()
	}
	event = event.Str("kind", kind).Str("reason", why)
	if g.gen != nil {
		event = event.Str("generator", g.gen.Name())
	}
	if err != nil {
		event = event.Err(err)
	}
	event.Msg("change description degraded to fallback")
}

func reason(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, errEmpty):
		return "empty"
	default:
		return "error"
	}
}
