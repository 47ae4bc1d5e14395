package store

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"time"

	"emspulse/internal/errors"
	"emspulse/pkg/contracts/domain"
)

// InsertReport stores a freshly rendered artifact and returns its id.
func (s *Store) InsertReport(ctx context.Context, r *domain.StoredReport) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO stored_reports
		 (name, from_date, to_date, pdf_data, generated_by, generated_at,
		  is_approved, assigned_reviewer, approver_required, assigned_approver)
		 VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?, ?)`,
		r.Name, r.FromDate.UnixMilli(), r.ToDate.UnixMilli(), r.PDF,
		r.GeneratedBy, r.GeneratedAt.UnixMilli(),
		nullable(r.AssignedReviewer), boolToInt(r.ApproverRequired), nullable(r.AssignedApprover))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetReport loads one stored report including its PDF bytes.
func (s *Store) GetReport(ctx context.Context, id int64) (*domain.StoredReport, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, from_date, to_date, pdf_data, generated_by, generated_at,
		        is_approved, approved_by, approved_at, assigned_reviewer,
		        reviewed_by, reviewed_at, approver_required, assigned_approver
		 FROM stored_reports WHERE id = ?`, id)

	report, err := scanReport(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("report %d: %w", id, errors.ErrArtifactNotFound)
	}
	return report, err
}

// ListReports returns audit headers for every stored report, newest first.
// PDF bytes are not loaded.
func (s *Store) ListReports(ctx context.Context) ([]*domain.StoredReport, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, from_date, to_date, generated_by, generated_at,
		        is_approved, approved_by, approved_at, assigned_reviewer,
		        reviewed_by, reviewed_at, approver_required, assigned_approver
		 FROM stored_reports ORDER BY generated_at DESC`)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			_ = cerr
		}
	}()

	var reports []*domain.StoredReport
	for rows.Next() {
		var r domain.StoredReport
		var from, to, generated int64
		var approvedAt, reviewed sql.NullInt64
		var approvedBy, assignedReviewer, reviewedBy, assignedApprover sql.NullString
		var approved, required int
		if err := rows.Scan(&r.ID, &r.Name, &from, &to, &r.GeneratedBy, &generated,
			&approved, &approvedBy, &approvedAt, &assignedReviewer,
			&reviewedBy, &reviewed, &required, &assignedApprover); err != nil {
			return nil, err
		}
		fillReport(&r, from, to, generated, approved, required,
			approvedBy, approvedAt, assignedReviewer, reviewedBy, reviewed, assignedApprover)
		reports = append(reports, &r)
	}
	return reports, rows.Err()
}

// ApplyReview atomically replaces the artifact bytes with the stamped copy
// and records the reviewer. Both updates happen together or not at all.
func (s *Store) ApplyReview(ctx context.Context, id int64, stamped []byte, reviewer string, at time.Time) error {
	return s.applyStamp(ctx, id,
		`UPDATE stored_reports SET pdf_data = ?, reviewed_by = ?, reviewed_at = ? WHERE id = ?`,
		stamped, reviewer, at.UnixMilli(), id)
}

// ApplyApproval atomically replaces the artifact bytes and marks the report
// approved.
func (s *Store) ApplyApproval(ctx context.Context, id int64, stamped []byte, approver string, at time.Time) error {
	return s.applyStamp(ctx, id,
		`UPDATE stored_reports SET pdf_data = ?, is_approved = 1, approved_by = ?, approved_at = ? WHERE id = ?`,
		stamped, approver, at.UnixMilli(), id)
}

func (s *Store) applyStamp(ctx context.Context, id int64, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("report %d: %w", id, errors.ErrArtifactNotFound)
	}
	return nil
}

func scanReport(r rowScanner) (*domain.StoredReport, error) {
	var report domain.StoredReport
	var from, to, generated int64
	var approvedAt, reviewed sql.NullInt64
	var approvedBy, assignedReviewer, reviewedBy, assignedApprover sql.NullString
	var approved, required int
	if err := r.Scan(&report.ID, &report.Name, &from, &to, &report.PDF,
		&report.GeneratedBy, &generated, &approved, &approvedBy, &approvedAt,
		&assignedReviewer, &reviewedBy, &reviewed, &required, &assignedApprover); err != nil {
		return nil, err
	}
	fillReport(&report, from, to, generated, approved, required,
		approvedBy, approvedAt, assignedReviewer, reviewedBy, reviewed, assignedApprover)
	return &report, nil
}

func fillReport(r *domain.StoredReport, from, to, generated int64, approved, required int,
	approvedBy sql.NullString, approvedAt sql.NullInt64,
	assignedReviewer, reviewedBy sql.NullString, reviewedAt sql.NullInt64,
	assignedApprover sql.NullString) {

	r.FromDate = time.UnixMilli(from).UTC()
	r.ToDate = time.UnixMilli(to).UTC()
	r.GeneratedAt = time.UnixMilli(generated).UTC()
	r.Approved = approved != 0
	r.ApproverRequired = required != 0
	r.ApprovedBy = approvedBy.String
	r.AssignedReviewer = assignedReviewer.String
	r.ReviewedBy = reviewedBy.String
	r.AssignedApprover = assignedApprover.String
	if approvedAt.Valid {
		t := time.UnixMilli(approvedAt.Int64).UTC()
		r.ApprovedAt = &t
	}
	if reviewedAt.Valid {
		t := time.UnixMilli(reviewedAt.Int64).UTC()
		r.ReviewedAt = &t
	}
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
