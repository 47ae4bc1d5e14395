package report

import (
	"fmt"
	"strings"
	"time"

	"emspulse/internal/errors"
	"emspulse/internal/pdf"
)

// Stamp geometry: review sits in the lower-left corner, approval is offset
// right so the two never collide. Both land on every page.
const (
	stampY       = 60.0
	stampWidth   = 180.0
	stampHeight  = 38.0
	reviewX      = 50.0
	approvalX    = reviewX + 210.0
	stampPadding = 6.0
)

const stampDateFormat = "2-January-2006 15:04:05"

// StampReview overlays the review box onto every page of a rendered
// artifact and returns the new bytes. The input bytes are never modified.
func StampReview(doc []byte, reviewer string, at time.Time) ([]byte, error) {
	if strings.TrimSpace(reviewer) == "" {
		return nil, fmt.Errorf("reviewer identity is blank: %w", errors.ErrInvalidRequest)
	}
	return pdf.Stamp(doc, stampCanvas(reviewX, "Reviewed By: "+reviewer, at))
}

// StampApproval overlays the approval box onto every page. A prior review
// stamp stays visible underneath; repeated approvals stack.
func StampApproval(doc []byte, approver string, at time.Time) ([]byte, error) {
	if strings.TrimSpace(approver) == "" {
		return nil, fmt.Errorf("approver identity is blank: %w", errors.ErrInvalidRequest)
	}
	return pdf.Stamp(doc, stampCanvas(approvalX, "Approved By: "+approver, at))
}

func stampCanvas(x float64, identity string, at time.Time) *pdf.Canvas {
	c := &pdf.Canvas{}
	c.SetLineWidth(0.8)
	c.Rect(x, stampY, stampWidth, stampHeight)
	c.Text(x+stampPadding, stampY+stampHeight-14, pdf.FontBold, 8, identity)
	c.Text(x+stampPadding, stampY+stampHeight-26, pdf.FontRegular, 8, "Date: "+at.Format(stampDateFormat))
	return c
}
