// Package reporting maps surveillance alerts to jurisdiction-specific
// regulatory report shapes and filing deadlines. It performs no
// transmission itself; submission goes through an opaque Gateway.
package reporting

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tradewatch/surveil/internal/alert"
)

// Report types.
const (
	ReportTypeSAR    = "SAR"
	ReportTypeSTR    = "STR"
	ReportTypeMAR    = "MAR"
	ReportTypeEMIR   = "EMIR"
	ReportTypeCAT    = "CAT"
	ReportTypeMIFID2 = "MIFID_II"
)

// Report statuses. A report is immutable once submitted.
const (
	StatusDraft        = "draft"
	StatusSubmitted    = "submitted"
	StatusAcknowledged = "acknowledged"
	StatusRejected     = "rejected"
)

// RegulatoryReport is the jurisdiction-specific report derived from one
// alert.
type RegulatoryReport struct {
	ID           uuid.UUID              `json:"id"`
	AlertID      uuid.UUID              `json:"alert_id"`
	ReportType   string                 `json:"report_type"`
	Jurisdiction string                 `json:"jurisdiction"`
	Status       string                 `json:"status"`
	Narrative    string                 `json:"narrative"`
	Payload      map[string]interface{} `json:"payload"`
	Deadline     time.Time              `json:"deadline"`
	GeneratedAt  time.Time              `json:"generated_at"`
	SubmittedAt  *time.Time             `json:"submitted_at,omitempty"`
	AckID        string                 `json:"ack_id,omitempty"`
}

// Gateway is the regulatory submission collaborator. It accepts a report
// payload and returns an acknowledgment identifier.
type Gateway interface {
	Submit(ctx context.Context, report *RegulatoryReport) (ackID string, err error)
}

// SubmittedError guards report immutability after submission.
type SubmittedError struct {
	ReportID uuid.UUID
}

func (e *SubmittedError) Error() string {
	return fmt.Sprintf("report %s: already submitted, reports are immutable once submitted", e.ReportID)
}

// DetermineReportType maps an alert type and jurisdiction to the report
// type to file. Unknown jurisdictions deliberately fall back to SAR rather
// than failing; that fallback mirrors upstream policy and is recorded as an
// explicit default, not an error.
func DetermineReportType(alertType, jurisdiction string) string {
	switch jurisdiction {
	case "SEC", "FINRA":
		if alertType == alert.TypeAnomaly {
			return ReportTypeSTR
		}
		return ReportTypeSAR
	case "FCA", "ESMA":
		return ReportTypeMAR
	case "CFTC":
		return ReportTypeCAT
	case "BAFIN":
		return ReportTypeMIFID2
	default:
		return ReportTypeSAR
	}
}

// filingOffsets is the fixed deadline table keyed by report type.
var filingOffsets = map[string]time.Duration{
	ReportTypeSAR:    30 * 24 * time.Hour,
	ReportTypeMAR:    24 * time.Hour,
	ReportTypeCAT:    3 * 24 * time.Hour,
	ReportTypeEMIR:   24 * time.Hour,
	ReportTypeMIFID2: 7 * 24 * time.Hour,
}

// defaultFilingOffset applies to report types with no table entry.
const defaultFilingOffset = 7 * 24 * time.Hour

// FilingDeadline returns the filing deadline for a report type. The clock
// starts at report generation, not detection.
func FilingDeadline(reportType string, from time.Time) time.Time {
	offset, ok := filingOffsets[reportType]
	if !ok {
		offset = defaultFilingOffset
	}
	return from.Add(offset)
}

// Service builds and submits regulatory reports.
type Service struct {
	gateway Gateway
	logger  *zap.SugaredLogger
	now     func() time.Time
}

// NewService creates a reporting service.
func NewService(gateway Gateway, logger *zap.SugaredLogger) *Service {
	return &Service{gateway: gateway, logger: logger, now: time.Now}
}

// WithClock overrides the service clock, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// BuildReport derives a draft report from an alert for one jurisdiction.
func (s *Service) BuildReport(a *alert.Alert, jurisdiction string) *RegulatoryReport {
	now := s.now()
	reportType := DetermineReportType(a.Type, jurisdiction)
	return &RegulatoryReport{
		ID:           uuid.New(),
		AlertID:      a.ID,
		ReportType:   reportType,
		Jurisdiction: jurisdiction,
		Status:       StatusDraft,
		Narrative: fmt.Sprintf("%s pattern detected for trader %s on %s (match score %s)",
			a.Type, a.TraderID, a.SecurityID, a.MatchScore.StringFixed(1)),
		Payload: map[string]interface{}{
			"alert_type":  a.Type,
			"severity":    a.Severity,
			"match_score": a.MatchScore.String(),
			"trader_id":   a.TraderID,
			"security_id": a.SecurityID,
			"detected_at": a.DetectedAt,
			"evidence":    a.Evidence,
		},
		Deadline:    FilingDeadline(reportType, now),
		GeneratedAt: now,
	}
}

// Submit sends a draft report through the gateway and marks it submitted.
// Submitting twice is rejected.
func (s *Service) Submit(ctx context.Context, report *RegulatoryReport) error {
	if report.Status != StatusDraft {
		return &SubmittedError{ReportID: report.ID}
	}
	ackID, err := s.gateway.Submit(ctx, report)
	if err != nil {
		return err
	}
	submittedAt := s.now()
	report.Status = StatusSubmitted
	report.SubmittedAt = &submittedAt
	report.AckID = ackID
	if s.logger != nil {
		s.logger.Infow("regulatory report submitted",
			"report_id", report.ID,
			"type", report.ReportType,
			"jurisdiction", report.Jurisdiction,
			"ack_id", ackID,
		)
	}
	return nil
}

// Acknowledge records the regulator's terminal response on a submitted
// report.
func (s *Service) Acknowledge(report *RegulatoryReport, accepted bool) error {
	if report.Status != StatusSubmitted {
		return fmt.Errorf("report %s: cannot acknowledge from status %q", report.ID, report.Status)
	}
	if accepted {
		report.Status = StatusAcknowledged
	} else {
		report.Status = StatusRejected
	}
	return nil
}
