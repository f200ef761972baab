package alert

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tradewatch/surveil/internal/surveillance"
)

// Service is the stateful boundary of the surveillance pipeline: it owns
// alert creation and every status transition. Concurrent transitions on the
// same alert are serialized by the store's optimistic version check; a
// caller whose expected version is stale gets *VersionConflictError and
// should refresh and retry.
type Service struct {
	store  Store
	logger *zap.SugaredLogger
	now    func() time.Time
}

// NewService creates an alert lifecycle service.
func NewService(store Store, logger *zap.SugaredLogger) *Service {
	return &Service{store: store, logger: logger, now: time.Now}
}

// WithClock overrides the service clock, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// CreateFromDetection persists a NEW alert for a detection record.
func (s *Service) CreateFromDetection(ctx context.Context, d surveillance.Detection, jurisdictions []string, createdBy string) (*Alert, error) {
	a := NewFromDetection(d, jurisdictions, createdBy, s.now())
	if err := s.store.CreateAlert(ctx, a); err != nil {
		return nil, err
	}
	if s.logger != nil {
		s.logger.Infow("alert created",
			"alert_id", a.ID,
			"type", a.Type,
			"severity", a.Severity,
			"trader", a.TraderID,
			"security", a.SecurityID,
		)
	}
	return a, nil
}

// Assign assigns the alert to an analyst. Legal from NEW or ASSIGNED.
func (s *Service) Assign(ctx context.Context, alertID uuid.UUID, expectedVersion int, analyst, actor string) (*Alert, error) {
	return s.applyTransition(ctx, alertID, expectedVersion, StatusAssigned, actor, "assigned to "+analyst,
		func(a *Alert) { a.Assignee = analyst })
}

// StartInvestigation moves an assigned alert into INVESTIGATING.
func (s *Service) StartInvestigation(ctx context.Context, alertID uuid.UUID, expectedVersion int, actor string) (*Alert, error) {
	return s.applyTransition(ctx, alertID, expectedVersion, StatusInvestigating, actor, "", nil)
}

// Escalate raises an alert under investigation.
func (s *Service) Escalate(ctx context.Context, alertID uuid.UUID, expectedVersion int, actor, reason string) (*Alert, error) {
	return s.applyTransition(ctx, alertID, expectedVersion, StatusEscalated, actor, reason, nil)
}

// Deescalate returns an escalated alert to INVESTIGATING.
func (s *Service) Deescalate(ctx context.Context, alertID uuid.UUID, expectedVersion int, actor, reason string) (*Alert, error) {
	return s.applyTransition(ctx, alertID, expectedVersion, StatusInvestigating, actor, reason, nil)
}

// Resolve closes out an investigated alert as genuine and handled.
func (s *Service) Resolve(ctx context.Context, alertID uuid.UUID, expectedVersion int, actor, resolution string) (*Alert, error) {
	return s.applyTransition(ctx, alertID, expectedVersion, StatusResolved, actor, resolution, nil)
}

// MarkFalsePositive closes out an investigated alert as a false positive.
func (s *Service) MarkFalsePositive(ctx context.Context, alertID uuid.UUID, expectedVersion int, actor, reason string) (*Alert, error) {
	return s.applyTransition(ctx, alertID, expectedVersion, StatusFalsePositive, actor, reason, nil)
}

// Report marks the alert as submitted to a regulator, recording the report
// reference.
func (s *Service) Report(ctx context.Context, alertID uuid.UUID, expectedVersion int, actor, reportID string) (*Alert, error) {
	return s.applyTransition(ctx, alertID, expectedVersion, StatusReported, actor, "regulatory report "+reportID,
		func(a *Alert) { a.ReportIDs = append(a.ReportIDs, reportID) })
}

// Close closes an escalated or reported alert.
func (s *Service) Close(ctx context.Context, alertID uuid.UUID, expectedVersion int, actor, note string) (*Alert, error) {
	return s.applyTransition(ctx, alertID, expectedVersion, StatusClosed, actor, note, nil)
}

// AddNote appends an investigation note under the version check.
func (s *Service) AddNote(ctx context.Context, alertID uuid.UUID, expectedVersion int, author, text string) (*Alert, error) {
	a, err := s.loadAndCheck(ctx, alertID, expectedVersion)
	if err != nil {
		return nil, err
	}
	a.AddNote(author, text, s.now())
	if err := s.store.UpdateAlert(ctx, a, expectedVersion); err != nil {
		return nil, err
	}
	return a, nil
}

// Archive flags a terminal alert as archived. Alerts are never deleted.
func (s *Service) Archive(ctx context.Context, alertID uuid.UUID, expectedVersion int) (*Alert, error) {
	a, err := s.loadAndCheck(ctx, alertID, expectedVersion)
	if err != nil {
		return nil, err
	}
	if !a.IsTerminal() {
		return nil, &InvalidTransitionError{AlertID: a.ID, From: a.Status, To: "ARCHIVED"}
	}
	a.Archived = true
	a.UpdatedAt = s.now()
	a.Version++
	if err := s.store.UpdateAlert(ctx, a, expectedVersion); err != nil {
		return nil, err
	}
	return a, nil
}

// OpenCase opens a surveillance case and attaches the given alerts. An
// alert already held by another open case is rejected.
func (s *Service) OpenCase(ctx context.Context, title, owner string, alertIDs []uuid.UUID) (*Case, error) {
	now := s.now()
	c := NewCase(title, owner, now)

	// Stage every attachment first; the case row must exist before any alert
	// points at it, so a failed insert cannot leave dangling references.
	staged := make([]*Alert, 0, len(alertIDs))
	for _, id := range alertIDs {
		a, err := s.store.GetAlert(ctx, id)
		if err != nil {
			return nil, err
		}
		if a.CaseID != nil {
			existing, err := s.store.GetCase(ctx, *a.CaseID)
			if err == nil && existing.IsOpen() {
				return nil, &CaseStateError{CaseID: existing.ID, Reason: "alert " + id.String() + " already in an open case"}
			}
		}
		if err := c.Attach(id, now); err != nil {
			return nil, err
		}
		staged = append(staged, a)
	}

	if err := s.store.CreateCase(ctx, c); err != nil {
		return nil, err
	}

	for _, a := range staged {
		a.CaseID = &c.ID
		a.UpdatedAt = now
		expected := a.Version
		a.Version++
		if err := s.store.UpdateAlert(ctx, a, expected); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// CloseCase closes a case with a resolution outcome.
func (s *Service) CloseCase(ctx context.Context, caseID uuid.UUID, resolution string) (*Case, error) {
	c, err := s.store.GetCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if err := c.Close(resolution, s.now()); err != nil {
		return nil, err
	}
	if err := s.store.UpdateCase(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) loadAndCheck(ctx context.Context, alertID uuid.UUID, expectedVersion int) (*Alert, error) {
	a, err := s.store.GetAlert(ctx, alertID)
	if err != nil {
		return nil, err
	}
	if a.Version != expectedVersion {
		return nil, &VersionConflictError{AlertID: alertID, Expected: expectedVersion, Actual: a.Version}
	}
	return a, nil
}

func (s *Service) applyTransition(ctx context.Context, alertID uuid.UUID, expectedVersion int, to, actor, note string, mutate func(*Alert)) (*Alert, error) {
	a, err := s.loadAndCheck(ctx, alertID, expectedVersion)
	if err != nil {
		return nil, err
	}
	if err := a.transition(to, actor, note, s.now()); err != nil {
		return nil, err
	}
	if mutate != nil {
		mutate(a)
	}
	if err := s.store.UpdateAlert(ctx, a, expectedVersion); err != nil {
		return nil, err
	}
	if s.logger != nil {
		s.logger.Infow("alert status changed",
			"alert_id", a.ID,
			"to", to,
			"actor", actor,
			"version", a.Version,
		)
	}
	return a, nil
}
