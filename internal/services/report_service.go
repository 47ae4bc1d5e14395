// Package services implements the report pipeline: merge, summarize,
// render, persist, and the review/approval lifecycle of stored artifacts.
package services

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"emspulse/internal/errors"
	"emspulse/internal/report"
	"emspulse/internal/store"
	"emspulse/internal/timeseries"
	"emspulse/pkg/contracts/domain"
)

// EventPublisher pushes lifecycle events to connected clients.
type EventPublisher interface {
	BroadcastReportEvent(domain.ReportEvent)
}

// noopPublisher is used when no hub is wired, e.g. in the CLI generator.
type noopPublisher struct{}

func (noopPublisher) BroadcastReportEvent(domain.ReportEvent) {}

// GenerateRequest describes one report generation call.
type GenerateRequest struct {
	TemplateID       int64
	Window           domain.Window
	RequestedBy      string
	AssignedReviewer string
	ApproverRequired bool
	AssignedApprover string
}

// GenerateResult is the outcome of a successful generation.
type GenerateResult struct {
	ReportID int64
	Artifact *report.Artifact
	Report   *domain.StoredReport
}

// ReportService runs the synchronous report pipeline. Merge materialization
// is serialized internally; two generations cannot race on the shared
// merged dataset. Stamping is serialized per artifact id.
type ReportService struct {
	store     *store.Store
	renderer  *report.Renderer
	events    EventPublisher
	logger    *slog.Logger
	mergeOpts timeseries.MergeOptions
	now       func() time.Time

	mergeMu sync.Mutex

	stampMu    sync.Mutex
	stampLocks map[int64]*sync.Mutex
}

// NewReportService wires the pipeline. A nil events publisher is allowed.
func NewReportService(st *store.Store, renderer *report.Renderer, events EventPublisher,
	opts timeseries.MergeOptions, logger *slog.Logger) *ReportService {

	if events == nil {
		events = noopPublisher{}
	}
	return &ReportService{
		store:      st,
		renderer:   renderer,
		events:     events,
		logger:     logger.With(slog.String("component", "report_service")),
		mergeOpts:  opts,
		now:        time.Now,
		stampLocks: make(map[int64]*sync.Mutex),
	}
}

// Generate runs merge, summarize and render end-to-end, persists the
// artifact, and returns it. A window with no source data degrades to an
// empty report rather than failing.
func (s *ReportService) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	started := s.now()

	tmpl, err := s.store.GetTemplate(ctx, req.TemplateID)
	if err != nil {
		return nil, fmt.Errorf("load template: %w", err)
	}

	baseNames := tmpl.BaseNames()
	series, err := s.store.LoadSeries(ctx, baseNames, req.Window)
	if err != nil {
		return nil, fmt.Errorf("load series: %w", err)
	}

	rows, err := s.mergeAndMaterialize(ctx, tmpl, series, req.Window)
	if err != nil {
		return nil, err
	}

	stats := timeseries.Summarize(ctx, s.logger, rows, baseNames)

	artifact, err := s.renderer.Render(ctx, tmpl, rows, stats, req.Window, req.RequestedBy, s.now())
	if err != nil {
		return nil, fmt.Errorf("render template %d: %w", req.TemplateID, err)
	}

	stored := &domain.StoredReport{
		Name:             artifact.Filename,
		FromDate:         req.Window.Start,
		ToDate:           req.Window.End,
		PDF:              artifact.Bytes,
		GeneratedBy:      req.RequestedBy,
		GeneratedAt:      s.now(),
		AssignedReviewer: req.AssignedReviewer,
		ApproverRequired: req.ApproverRequired,
		AssignedApprover: req.AssignedApprover,
	}
	id, err := s.store.InsertReport(ctx, stored)
	if err != nil {
		return nil, fmt.Errorf("persist report: %w", err)
	}
	stored.ID = id

	reportsGenerated.Inc()
	reportGenerationSeconds.Observe(s.now().Sub(started).Seconds())
	mergedRowCount.Observe(float64(len(rows)))

	s.logger.InfoContext(ctx, "report generated",
		slog.Int64("report_id", id),
		slog.Int64("template_id", req.TemplateID),
		slog.String("requested_by", req.RequestedBy),
		slog.Int("rows", len(rows)),
		slog.Int("bytes", len(artifact.Bytes)))

	s.events.BroadcastReportEvent(domain.ReportEvent{
		Type:     domain.EventReportGenerated,
		ReportID: id,
		Name:     stored.Name,
		Actor:    req.RequestedBy,
		At:       stored.GeneratedAt,
	})

	return &GenerateResult{ReportID: id, Artifact: artifact, Report: stored}, nil
}

// mergeAndMaterialize aligns the series and rewrites the window's slice of
// the shared merged dataset under the merge lock.
func (s *ReportService) mergeAndMaterialize(ctx context.Context, tmpl *domain.Template,
	series []domain.SourceSeries, window domain.Window) ([]domain.MergedRow, error) {

	s.mergeMu.Lock()
	defer s.mergeMu.Unlock()

	rows, err := timeseries.Merge(tmpl, series, window, s.mergeOpts)
	switch {
	case stderrors.Is(err, errors.ErrNoSourceData):
		s.logger.WarnContext(ctx, "no source data in window",
			slog.Int64("template_id", tmpl.ID),
			slog.Time("window_start", window.Start),
			slog.Time("window_end", window.End))
		rows = []domain.MergedRow{}
	case err != nil:
		return nil, fmt.Errorf("merge template %d: %w", tmpl.ID, err)
	}

	if err := s.store.ReplaceWindow(ctx, window, rows); err != nil {
		return nil, fmt.Errorf("materialize window: %w", err)
	}
	return rows, nil
}

// Review stamps the review overlay onto the stored artifact and records the
// reviewer. Bytes and audit fields change together or not at all.
func (s *ReportService) Review(ctx context.Context, id int64, reviewer string) (*domain.StoredReport, error) {
	unlock := s.lockArtifact(id)
	defer unlock()

	stored, err := s.store.GetReport(ctx, id)
	if err != nil {
		return nil, err
	}

	at := s.now()
	stamped, err := report.StampReview(stored.PDF, reviewer, at)
	if err != nil {
		return nil, fmt.Errorf("stamp review on report %d: %w", id, err)
	}

	if err := s.store.ApplyReview(ctx, id, stamped, reviewer, at); err != nil {
		return nil, err
	}

	reportStamps.WithLabelValues("review").Inc()
	s.logger.InfoContext(ctx, "report reviewed",
		slog.Int64("report_id", id),
		slog.String("reviewed_by", reviewer))

	s.events.BroadcastReportEvent(domain.ReportEvent{
		Type:     domain.EventReportReviewed,
		ReportID: id,
		Name:     stored.Name,
		Actor:    reviewer,
		At:       at,
	})

	return s.store.GetReport(ctx, id)
}

// Approve stamps the approval overlay and marks the report approved. A
// prior review stamp stays visible.
func (s *ReportService) Approve(ctx context.Context, id int64, approver string) (*domain.StoredReport, error) {
	unlock := s.lockArtifact(id)
	defer unlock()

	stored, err := s.store.GetReport(ctx, id)
	if err != nil {
		return nil, err
	}

	at := s.now()
	stamped, err := report.StampApproval(stored.PDF, approver, at)
	if err != nil {
		return nil, fmt.Errorf("stamp approval on report %d: %w", id, err)
	}

	if err := s.store.ApplyApproval(ctx, id, stamped, approver, at); err != nil {
		return nil, err
	}

	reportStamps.WithLabelValues("approval").Inc()
	s.logger.InfoContext(ctx, "report approved",
		slog.Int64("report_id", id),
		slog.String("approved_by", approver))

	s.events.BroadcastReportEvent(domain.ReportEvent{
		Type:     domain.EventReportApproved,
		ReportID: id,
		Name:     stored.Name,
		Actor:    approver,
		At:       at,
	})

	return s.store.GetReport(ctx, id)
}

// MergedRows loads the materialized merged dataset for a window, as last
// written by a generation run.
func (s *ReportService) MergedRows(ctx context.Context, window domain.Window) ([]domain.MergedRow, error) {
	if window.End.Before(window.Start) {
		return nil, fmt.Errorf("window end precedes start: %w", errors.ErrInvalidWindow)
	}
	return s.store.LoadWindow(ctx, window)
}

// Get returns one stored report including its bytes.
func (s *ReportService) Get(ctx context.Context, id int64) (*domain.StoredReport, error) {
	return s.store.GetReport(ctx, id)
}

// List returns audit headers for all stored reports, newest first.
func (s *ReportService) List(ctx context.Context) ([]*domain.StoredReport, error) {
	return s.store.ListReports(ctx)
}

// lockArtifact serializes stamp operations per artifact id.
func (s *ReportService) lockArtifact(id int64) func() {
	s.stampMu.Lock()
	mu, ok := s.stampLocks[id]
	if !ok {
		mu = &sync.Mutex{}
		s.stampLocks[id] = mu
	}
	s.stampMu.Unlock()

	mu.Lock()
	return mu.Unlock
}
