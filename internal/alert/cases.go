package alert

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Case statuses.
const (
	CaseStatusOpen            = "open"
	CaseStatusInvestigating   = "investigating"
	CaseStatusPendingApproval = "pending_approval"
	CaseStatusClosed          = "closed"
)

// Case groups one or more alerts under a shared investigation. An alert
// belongs to at most one open case.
type Case struct {
	ID         uuid.UUID   `json:"id"`
	Title      string      `json:"title"`
	Status     string      `json:"status"`
	AlertIDs   []uuid.UUID `json:"alert_ids"`
	Owner      string      `json:"owner"`
	Resolution string      `json:"resolution,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
	ClosedAt   *time.Time  `json:"closed_at,omitempty"`
}

var caseTransitions = map[string][]string{
	CaseStatusOpen:            {CaseStatusInvestigating, CaseStatusClosed},
	CaseStatusInvestigating:   {CaseStatusPendingApproval, CaseStatusClosed},
	CaseStatusPendingApproval: {CaseStatusInvestigating, CaseStatusClosed},
	CaseStatusClosed:          {},
}

// CaseStateError reports an illegal case operation.
type CaseStateError struct {
	CaseID uuid.UUID
	Reason string
}

func (e *CaseStateError) Error() string {
	return fmt.Sprintf("case %s: %s", e.CaseID, e.Reason)
}

// NewCase opens a case owned by the given analyst.
func NewCase(title, owner string, now time.Time) *Case {
	return &Case{
		ID:        uuid.New(),
		Title:     title,
		Status:    CaseStatusOpen,
		Owner:     owner,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsOpen reports whether the case is still active.
func (c *Case) IsOpen() bool { return c.Status != CaseStatusClosed }

// Attach adds an alert to the case. The caller must have verified the
// alert is not already attached to another open case.
func (c *Case) Attach(alertID uuid.UUID, now time.Time) error {
	if !c.IsOpen() {
		return &CaseStateError{CaseID: c.ID, Reason: "cannot attach alert to closed case"}
	}
	for _, id := range c.AlertIDs {
		if id == alertID {
			return &CaseStateError{CaseID: c.ID, Reason: "alert already attached"}
		}
	}
	c.AlertIDs = append(c.AlertIDs, alertID)
	c.UpdatedAt = now
	return nil
}

// SetStatus moves the case through its state machine.
func (c *Case) SetStatus(to string, now time.Time) error {
	for _, next := range caseTransitions[c.Status] {
		if next == to {
			c.Status = to
			c.UpdatedAt = now
			if to == CaseStatusClosed {
				closedAt := now
				c.ClosedAt = &closedAt
			}
			return nil
		}
	}
	return &CaseStateError{CaseID: c.ID, Reason: fmt.Sprintf("illegal transition %s -> %s", c.Status, to)}
}

// Close closes the case with a resolution outcome.
func (c *Case) Close(resolution string, now time.Time) error {
	if err := c.SetStatus(CaseStatusClosed, now); err != nil {
		return err
	}
	c.Resolution = resolution
	return nil
}
