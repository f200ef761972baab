package alert

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Store persists alerts and cases. The detection core treats persistence as
// an external collaborator with create/read/update semantics keyed by
// identifier; alerts are never deleted, only archived.
type Store interface {
	CreateAlert(ctx context.Context, a *Alert) error
	GetAlert(ctx context.Context, id uuid.UUID) (*Alert, error)
	// UpdateAlert writes the alert only if the stored version still equals
	// expectedVersion, returning *VersionConflictError otherwise.
	UpdateAlert(ctx context.Context, a *Alert, expectedVersion int) error
	ListOpenAlerts(ctx context.Context) ([]*Alert, error)

	CreateCase(ctx context.Context, c *Case) error
	GetCase(ctx context.Context, id uuid.UUID) (*Case, error)
	UpdateCase(ctx context.Context, c *Case) error
}

// AlertModel is the gorm mapping for alerts.
type AlertModel struct {
	ID              uuid.UUID              `gorm:"type:uuid;primary_key"`
	AlertType       string                 `gorm:"type:varchar(50);index;not null"`
	Severity        string                 `gorm:"type:varchar(20);index;not null"`
	Status          string                 `gorm:"type:varchar(20);index;not null"`
	MatchScore      decimal.Decimal        `gorm:"type:decimal(10,4);not null"`
	TraderID        string                 `gorm:"type:varchar(100);index;not null"`
	AccountID       string                 `gorm:"type:varchar(100);index"`
	SecurityID      string                 `gorm:"type:varchar(100);index;not null"`
	Evidence        map[string]interface{} `gorm:"serializer:json"`
	RelatedOrderIDs []string               `gorm:"serializer:json"`
	RelatedTradeIDs []string               `gorm:"serializer:json"`
	Jurisdictions   []string               `gorm:"serializer:json"`
	Assignee        string                 `gorm:"type:varchar(100);index"`
	Notes           []Note                 `gorm:"serializer:json"`
	History         []StatusChange         `gorm:"serializer:json"`
	ReportIDs       []string               `gorm:"serializer:json"`
	CaseID          *uuid.UUID             `gorm:"type:uuid;index"`
	CreatedBy       string                 `gorm:"type:varchar(100)"`
	DetectedAt      time.Time              `gorm:"index;not null"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Version         int  `gorm:"not null;default:1"`
	Archived        bool `gorm:"index;default:false"`
}

// TableName specifies the table name for AlertModel.
func (AlertModel) TableName() string { return "surveillance_alerts" }

// CaseModel is the gorm mapping for surveillance cases.
type CaseModel struct {
	ID         uuid.UUID   `gorm:"type:uuid;primary_key"`
	Title      string      `gorm:"type:varchar(200);not null"`
	Status     string      `gorm:"type:varchar(30);index;not null"`
	AlertIDs   []uuid.UUID `gorm:"serializer:json"`
	Owner      string      `gorm:"type:varchar(100);index"`
	Resolution string      `gorm:"type:text"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
	ClosedAt   *time.Time `gorm:"index"`
}

// TableName specifies the table name for CaseModel.
func (CaseModel) TableName() string { return "surveillance_cases" }

// GormStore implements Store on a gorm database handle.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a store and migrates its tables.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&AlertModel{}, &CaseModel{}); err != nil {
		return nil, errors.Wrap(err, "migrate surveillance tables")
	}
	return &GormStore{db: db}, nil
}

// CreateAlert inserts a new alert.
func (s *GormStore) CreateAlert(ctx context.Context, a *Alert) error {
	if err := s.db.WithContext(ctx).Create(alertToModel(a)).Error; err != nil {
		return errors.Wrap(err, "create alert")
	}
	return nil
}

// GetAlert fetches one alert by id.
func (s *GormStore) GetAlert(ctx context.Context, id uuid.UUID) (*Alert, error) {
	var m AlertModel
	if err := s.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, errors.Wrap(err, "get alert")
	}
	return alertFromModel(&m), nil
}

// UpdateAlert writes the alert guarded by the optimistic version check.
func (s *GormStore) UpdateAlert(ctx context.Context, a *Alert, expectedVersion int) error {
	res := s.db.WithContext(ctx).
		Model(&AlertModel{}).
		Where("id = ? AND version = ?", a.ID, expectedVersion).
		Select("*").
		Updates(alertToModel(a))
	if res.Error != nil {
		return errors.Wrap(res.Error, "update alert")
	}
	if res.RowsAffected == 0 {
		var current AlertModel
		actual := -1
		if err := s.db.WithContext(ctx).Select("version").First(&current, "id = ?", a.ID).Error; err == nil {
			actual = current.Version
		}
		return &VersionConflictError{AlertID: a.ID, Expected: expectedVersion, Actual: actual}
	}
	return nil
}

// ListOpenAlerts returns non-archived alerts not yet in a terminal status,
// newest detection first.
func (s *GormStore) ListOpenAlerts(ctx context.Context) ([]*Alert, error) {
	var ms []AlertModel
	err := s.db.WithContext(ctx).
		Where("archived = ?", false).
		Where("status NOT IN ?", []string{StatusResolved, StatusFalsePositive, StatusClosed}).
		Order("detected_at DESC").
		Find(&ms).Error
	if err != nil {
		return nil, errors.Wrap(err, "list open alerts")
	}
	out := make([]*Alert, len(ms))
	for i := range ms {
		out[i] = alertFromModel(&ms[i])
	}
	return out, nil
}

// CreateCase inserts a new case.
func (s *GormStore) CreateCase(ctx context.Context, c *Case) error {
	if err := s.db.WithContext(ctx).Create(caseToModel(c)).Error; err != nil {
		return errors.Wrap(err, "create case")
	}
	return nil
}

// GetCase fetches one case by id.
func (s *GormStore) GetCase(ctx context.Context, id uuid.UUID) (*Case, error) {
	var m CaseModel
	if err := s.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, errors.Wrap(err, "get case")
	}
	return caseFromModel(&m), nil
}

// UpdateCase writes a case back.
func (s *GormStore) UpdateCase(ctx context.Context, c *Case) error {
	res := s.db.WithContext(ctx).
		Model(&CaseModel{}).
		Where("id = ?", c.ID).
		Select("*").
		Updates(caseToModel(c))
	if res.Error != nil {
		return errors.Wrap(res.Error, "update case")
	}
	return nil
}

func alertToModel(a *Alert) *AlertModel {
	return &AlertModel{
		ID:              a.ID,
		AlertType:       a.Type,
		Severity:        a.Severity,
		Status:          a.Status,
		MatchScore:      a.MatchScore,
		TraderID:        a.TraderID,
		AccountID:       a.AccountID,
		SecurityID:      a.SecurityID,
		Evidence:        a.Evidence,
		RelatedOrderIDs: a.RelatedOrderIDs,
		RelatedTradeIDs: a.RelatedTradeIDs,
		Jurisdictions:   a.Jurisdictions,
		Assignee:        a.Assignee,
		Notes:           a.Notes,
		History:         a.History,
		ReportIDs:       a.ReportIDs,
		CaseID:          a.CaseID,
		CreatedBy:       a.CreatedBy,
		DetectedAt:      a.DetectedAt,
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
		Version:         a.Version,
		Archived:        a.Archived,
	}
}

func alertFromModel(m *AlertModel) *Alert {
	return &Alert{
		ID:              m.ID,
		Type:            m.AlertType,
		Severity:        m.Severity,
		Status:          m.Status,
		MatchScore:      m.MatchScore,
		TraderID:        m.TraderID,
		AccountID:       m.AccountID,
		SecurityID:      m.SecurityID,
		Evidence:        m.Evidence,
		RelatedOrderIDs: m.RelatedOrderIDs,
		RelatedTradeIDs: m.RelatedTradeIDs,
		Jurisdictions:   m.Jurisdictions,
		Assignee:        m.Assignee,
		Notes:           m.Notes,
		History:         m.History,
		ReportIDs:       m.ReportIDs,
		CaseID:          m.CaseID,
		CreatedBy:       m.CreatedBy,
		DetectedAt:      m.DetectedAt,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
		Version:         m.Version,
		Archived:        m.Archived,
	}
}

func caseToModel(c *Case) *CaseModel {
	return &CaseModel{
		ID:         c.ID,
		Title:      c.Title,
		Status:     c.Status,
		AlertIDs:   c.AlertIDs,
		Owner:      c.Owner,
		Resolution: c.Resolution,
		CreatedAt:  c.CreatedAt,
		UpdatedAt:  c.UpdatedAt,
		ClosedAt:   c.ClosedAt,
	}
}

func caseFromModel(m *CaseModel) *Case {
	return &Case{
		ID:         m.ID,
		Title:      m.Title,
		Status:     m.Status,
		AlertIDs:   m.AlertIDs,
		Owner:      m.Owner,
		Resolution: m.Resolution,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
		ClosedAt:   m.ClosedAt,
	}
}
