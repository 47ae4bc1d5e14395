// Package scheduler runs periodic report generation for a configured
// template over a sliding lookback window.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"emspulse/internal/config"
	"emspulse/internal/services"
	"emspulse/pkg/contracts/domain"
)

// The operator identity recorded for unattended runs.
const scheduledBy = "scheduler"

// Generator is the generation surface the scheduler drives.
type Generator interface {
	Generate(ctx context.Context, req services.GenerateRequest) (*services.GenerateResult, error)
}

// Scheduler triggers report generation at a fixed interval.
type Scheduler struct {
	generator Generator
	cfg       config.SchedulerConfig
	logger    *slog.Logger
	now       func() time.Time
}

// New creates a scheduler. It does nothing until Run is called.
func New(generator Generator, cfg config.SchedulerConfig, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		generator: generator,
		cfg:       cfg,
		logger:    logger.With(slog.String("component", "scheduler")),
		now:       time.Now,
	}
}

// Run generates a report every interval until ctx is canceled. A failed
// run is logged and the next tick proceeds normally.
func (s *Scheduler) Run(ctx context.Context) error {
	if !s.cfg.Enabled || s.cfg.TemplateID == 0 {
		s.logger.InfoContext(ctx, "scheduler disabled")
		<-ctx.Done()
		return nil
	}

	s.logger.InfoContext(ctx, "scheduler started",
		slog.Int64("template_id", s.cfg.TemplateID),
		slog.Duration("interval", s.cfg.Interval),
		slog.Duration("lookback", s.cfg.Lookback))

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "scheduler stopped")
			return nil
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	end := s.now()
	req := services.GenerateRequest{
		TemplateID:  s.cfg.TemplateID,
		Window:      domain.Window{Start: end.Add(-s.cfg.Lookback), End: end},
		RequestedBy: scheduledBy,
	}

	result, err := s.generator.Generate(ctx, req)
	if err != nil {
		s.logger.ErrorContext(ctx, "scheduled generation failed",
			slog.Int64("template_id", s.cfg.TemplateID),
			slog.String("error", err.Error()))
		return
	}

	s.logger.InfoContext(ctx, "scheduled report generated",
		slog.Int64("report_id", result.ReportID),
		slog.String("name", result.Artifact.Filename))
}
