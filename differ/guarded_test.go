package differ

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"grc-portal/metrics"
	"grc-portal/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

type stubGenerator struct {
	summary string
	diff    models.ChangeDiff
	err     error
	delay   time.Duration
	calls   int
}

func (s *stubGenerator) Name() string { return "stub" }

func (s *stubGenerator) Summarize(ctx context.Context, oldContent, newContent string) (string, error) {
	s.calls++
	if s.delay > 0 {
		// ignores ctx on purpose: Guarded must still return on time
		time.Sleep(s.delay)
	}
	return s.summary, s.err
}

func (s *stubGenerator) Diff(ctx context.Context, oldContent, newContent string) (models.ChangeDiff, error) {
	s.calls++
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	return s.diff, s.err
}

func newTestGuarded(gen Generator, timeout time.Duration) (*Guarded, *metrics.Metrics) {
	m := metrics.NewMetrics(prometheus.NewRegistry())
	return NewGuarded(gen, timeout, zerolog.New(io.Discard), m), m
}

func TestGuardedPassesThroughResults(t *testing.T) {
	gen := &stubGenerator{
		summary: "  Tightened password rules.  ",
		diff:    models.ChangeDiff{Modified: []string{"Password length raised"}},
	}
	g, m := newTestGuarded(gen, time.Second)

	assert.Equal(t, "Tightened password rules.", g.Summarize(context.Background(), "a", "b"))
	diff := g.Diff(context.Background(), "a", "b")
	assert.Equal(t, []string{"Password length raised"}, diff.Modified)
	assert.Equal(t, []string{}, diff.Added)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.DiffRequestsTotal.WithLabelValues("summary")))
	assert.Equal(t, 0, testutil.CollectAndCount(m.DiffDegradedTotal))
}

func TestGuardedFallsBackOnError(t *testing.T) {
	gen := &stubGenerator{err: errors.New("upstream 500")}
	g, m := newTestGuarded(gen, time.Second)

	assert.Equal(t, FallbackSummary, g.Summarize(context.Background(), "a", "b"))
	assert.Equal(t, FallbackDiff(), g.Diff(context.Background(), "a", "b"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DiffDegradedTotal.WithLabelValues("summary", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DiffDegradedTotal.WithLabelValues("diff", "error")))
}

func TestGuardedFallsBackOnTimeout(t *testing.T) {
	gen := &stubGenerator{summary: "late", delay: 500 * time.Millisecond}
	g, m := newTestGuarded(gen, 20*time.Millisecond)

	start := time.Now()
	assert.Equal(t, FallbackSummary, g.Summarize(context.Background(), "a", "b"))
	assert.Less(t, time.Since(start), 400*time.Millisecond)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DiffDegradedTotal.WithLabelValues("summary", "timeout")))
}

func TestGuardedTreatsBlankSummaryAsDegraded(t *testing.T) {
	g, m := newTestGuarded(&stubGenerator{summary: "   "}, time.Second)

	assert.Equal(t, FallbackSummary, g.Summarize(context.Background(), "a", "b"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DiffDegradedTotal.WithLabelValues("summary", "empty")))
}

func TestGuardedWithoutGenerator(t *testing.T) {
	g, m := newTestGuarded(nil, time.Second)

	assert.Equal(t, FallbackSummary, g.Summarize(context.Background(), "a", "b"))
	assert.Equal(t, FallbackDiff(), g.Diff(context.Background(), "a", "b"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DiffDegradedTotal.WithLabelValues("diff", "disabled")))
}
