package alert

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tradewatch/surveil/internal/surveillance"
)

// Alert types beyond the analyzer pattern set.
const (
	TypeBestExecutionBreach = "BEST_EXECUTION_BREACH"
	TypeAnomaly             = "ANOMALY"
)

// Severity levels, highest first.
const (
	SeverityCritical = "CRITICAL"
	SeverityHigh     = "HIGH"
	SeverityMedium   = "MEDIUM"
	SeverityLow      = "LOW"
	SeverityInfo     = "INFO"
)

// Alert statuses.
const (
	StatusNew           = "NEW"
	StatusAssigned      = "ASSIGNED"
	StatusInvestigating = "INVESTIGATING"
	StatusEscalated     = "ESCALATED"
	StatusResolved      = "RESOLVED"
	StatusFalsePositive = "FALSE_POSITIVE"
	StatusReported      = "REPORTED"
	StatusClosed        = "CLOSED"
)

// severityRank orders severities for prioritization; higher is more urgent.
var severityRank = map[string]int{
	SeverityCritical: 4,
	SeverityHigh:     3,
	SeverityMedium:   2,
	SeverityLow:      1,
	SeverityInfo:     0,
}

// allowedTransitions is the alert status state machine. ESCALATED may
// return to INVESTIGATING; RESOLVED, FALSE_POSITIVE and CLOSED are
// terminal.
var allowedTransitions = map[string][]string{
	StatusNew:           {StatusAssigned},
	StatusAssigned:      {StatusAssigned, StatusInvestigating},
	StatusInvestigating: {StatusEscalated, StatusResolved, StatusFalsePositive, StatusReported},
	StatusEscalated:     {StatusInvestigating, StatusClosed},
	StatusReported:      {StatusClosed},
	StatusResolved:      {},
	StatusFalsePositive: {},
	StatusClosed:        {},
}

// StatusChange is one audit entry in an alert's append-only history.
type StatusChange struct {
	Actor     string    `json:"actor"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Note      string    `json:"note,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Note is one append-only investigation note.
type Note struct {
	Author    string    `json:"author"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Alert is the unit of case work produced by the detection engine. It is
// mutated only through defined transitions and never deleted, only
// archived; Version increments on every mutation for optimistic
// concurrency.
type Alert struct {
	ID         uuid.UUID       `json:"id"`
	Type       string          `json:"type"`
	Severity   string          `json:"severity"`
	Status     string          `json:"status"`
	MatchScore decimal.Decimal `json:"match_score"` // 0-100

	TraderID   string `json:"trader_id"`
	AccountID  string `json:"account_id,omitempty"`
	SecurityID string `json:"security_id"`

	Evidence        map[string]interface{} `json:"evidence"`
	RelatedOrderIDs []string               `json:"related_order_ids,omitempty"`
	RelatedTradeIDs []string               `json:"related_trade_ids,omitempty"`
	Jurisdictions   []string               `json:"jurisdictions,omitempty"`

	Assignee  string         `json:"assignee,omitempty"`
	Notes     []Note         `json:"notes,omitempty"`
	History   []StatusChange `json:"history"`
	ReportIDs []string       `json:"report_ids,omitempty"`
	CaseID    *uuid.UUID     `json:"case_id,omitempty"`

	CreatedBy  string    `json:"created_by"`
	DetectedAt time.Time `json:"detected_at"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	Version    int       `json:"version"`
	Archived   bool      `json:"archived"`
}

// InvalidTransitionError reports an illegal status transition. It is
// distinguishable from validation errors so callers can retry with a
// refreshed alert instead of aborting the batch.
type InvalidTransitionError struct {
	AlertID uuid.UUID
	From    string
	To      string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("alert %s: illegal status transition %s -> %s", e.AlertID, e.From, e.To)
}

// ErrVersionConflict signals a concurrent mutation detected by the
// optimistic version check.
type VersionConflictError struct {
	AlertID  uuid.UUID
	Expected int
	Actual   int
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("alert %s: version conflict (expected %d, have %d)", e.AlertID, e.Expected, e.Actual)
}

// NewFromDetection creates an alert from a detection record: status NEW,
// version 1, match score copied from the detection confidence.
func NewFromDetection(d surveillance.Detection, jurisdictions []string, createdBy string, now time.Time) *Alert {
	base := d.Base()
	return &Alert{
		ID:              uuid.New(),
		Type:            base.Pattern,
		Severity:        base.Severity,
		Status:          StatusNew,
		MatchScore:      base.Confidence,
		TraderID:        base.TraderID,
		AccountID:       base.AccountID,
		SecurityID:      base.SecurityID,
		Evidence:        d.Evidence(),
		RelatedOrderIDs: d.RelatedOrderIDs(),
		RelatedTradeIDs: d.RelatedTradeIDs(),
		Jurisdictions:   jurisdictions,
		CreatedBy:       createdBy,
		DetectedAt:      base.DetectedAt,
		CreatedAt:       now,
		UpdatedAt:       now,
		Version:         1,
	}
}

// canTransition reports whether the state machine permits from -> to.
func canTransition(from, to string) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// transition applies a status change in place, recording the audit entry
// and bumping the version. The caller has already verified the expected
// version against the store.
func (a *Alert) transition(to, actor, note string, now time.Time) error {
	if !canTransition(a.Status, to) {
		return &InvalidTransitionError{AlertID: a.ID, From: a.Status, To: to}
	}
	a.History = append(a.History, StatusChange{
		Actor:     actor,
		From:      a.Status,
		To:        to,
		Note:      note,
		Timestamp: now,
	})
	a.Status = to
	a.UpdatedAt = now
	a.Version++
	return nil
}

// AddNote appends an investigation note and bumps the version.
func (a *Alert) AddNote(author, text string, now time.Time) {
	a.Notes = append(a.Notes, Note{Author: author, Text: text, Timestamp: now})
	a.UpdatedAt = now
	a.Version++
}

// IsTerminal reports whether the alert has reached a terminal status.
func (a *Alert) IsTerminal() bool {
	return a.Status == StatusResolved || a.Status == StatusFalsePositive || a.Status == StatusClosed
}

// DaysOpen is the whole number of days since detection. It is always
// recomputed, never persisted.
func (a *Alert) DaysOpen(now time.Time) int {
	if now.Before(a.DetectedAt) {
		return 0
	}
	return int(now.Sub(a.DetectedAt).Hours() / 24)
}

// Prioritize stable-sorts alerts by severity rank descending, tie-broken by
// match score descending. Equal alerts keep their input order.
func Prioritize(alerts []*Alert) []*Alert {
	out := make([]*Alert, len(alerts))
	copy(out, alerts)
	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := severityRank[out[i].Severity], severityRank[out[j].Severity]
		if ri != rj {
			return ri > rj
		}
		return out[i].MatchScore.GreaterThan(out[j].MatchScore)
	})
	return out
}
