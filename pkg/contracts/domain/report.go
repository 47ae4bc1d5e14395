package domain

import "time"

// StoredReport is a generated report artifact plus its audit trail. The byte
// blob is immutable except through stamping, which replaces it atomically
// together with the matching audit fields.
type StoredReport struct {
	ID               int64      `json:"id" db:"id"`
	Name             string     `json:"name" db:"name"`
	FromDate         time.Time  `json:"from_date" db:"from_date"`
	ToDate           time.Time  `json:"to_date" db:"to_date"`
	PDF              []byte     `json:"-" db:"pdf_data"`
	GeneratedBy      string     `json:"generated_by" db:"generated_by"`
	GeneratedAt      time.Time  `json:"generated_at" db:"generated_at"`
	Approved         bool       `json:"approved" db:"is_approved"`
	ApprovedBy       string     `json:"approved_by,omitempty" db:"approved_by"`
	ApprovedAt       *time.Time `json:"approved_at,omitempty" db:"approved_at"`
	AssignedReviewer string     `json:"assigned_reviewer,omitempty" db:"assigned_reviewer"`
	ReviewedBy       string     `json:"reviewed_by,omitempty" db:"reviewed_by"`
	ReviewedAt       *time.Time `json:"reviewed_at,omitempty" db:"reviewed_at"`
	ApproverRequired bool       `json:"approver_required" db:"approver_required"`
	AssignedApprover string     `json:"assigned_approver,omitempty" db:"assigned_approver"`
}

// ReportEvent is broadcast over the websocket hub whenever a report's
// lifecycle advances.
type ReportEvent struct {
	Type     string    `json:"type"`
	ReportID int64     `json:"report_id"`
	Name     string    `json:"name"`
	Actor    string    `json:"actor,omitempty"`
	At       time.Time `json:"at"`
}

// Report lifecycle event types.
const (
	EventReportGenerated = "report_generated"
	EventReportReviewed  = "report_reviewed"
	EventReportApproved  = "report_approved"
)
