package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"emspulse/internal/config"
	"emspulse/internal/report"
	"emspulse/internal/services"
)

type fakeGenerator struct {
	mu       sync.Mutex
	requests []services.GenerateRequest
	err      error
}

func (f *fakeGenerator) Generate(ctx context.Context, req services.GenerateRequest) (*services.GenerateResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return &services.GenerateResult{
		ReportID: int64(len(f.requests)),
		Artifact: &report.Artifact{Filename: "scheduled.pdf"},
	}, nil
}

func (f *fakeGenerator) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRun_GeneratesOnTick(t *testing.T) {
	gen := &fakeGenerator{}
	s := New(gen, config.SchedulerConfig{
		Enabled:    true,
		Interval:   10 * time.Millisecond,
		TemplateID: 1,
		Lookback:   time.Hour,
	}, discardLogger())

	fixed := time.Date(2026, 3, 5, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	require.NoError(t, s.Run(ctx))

	require.GreaterOrEqual(t, gen.count(), 1)

	gen.mu.Lock()
	defer gen.mu.Unlock()
	req := gen.requests[0]
	assert.Equal(t, int64(1), req.TemplateID)
	assert.Equal(t, "scheduler", req.RequestedBy)
	assert.Equal(t, fixed.Add(-time.Hour), req.Window.Start)
	assert.Equal(t, fixed, req.Window.End)
}

func TestRun_Disabled(t *testing.T) {
	gen := &fakeGenerator{}
	s := New(gen, config.SchedulerConfig{Enabled: false, Interval: time.Millisecond, TemplateID: 1}, discardLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	require.NoError(t, s.Run(ctx))

	assert.Zero(t, gen.count())
}

func TestRun_FailureDoesNotStopTicking(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("no template")}
	s := New(gen, config.SchedulerConfig{
		Enabled:    true,
		Interval:   10 * time.Millisecond,
		TemplateID: 1,
		Lookback:   time.Hour,
	}, discardLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 80*time.Millisecond)
	defer cancel()
	require.NoError(t, s.Run(ctx))

	assert.GreaterOrEqual(t, gen.count(), 2)
}
