package sprint

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lithammer/shortuuid/v3"
	extErrors "github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Manager handles the database operations relating to Sprints
type Manager struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewManager returns a new Manager for sprints
func NewManager(logger *zap.Logger, db *gorm.DB) (*Manager, error) {
	if err := db.AutoMigrate(&Sprint{}); err != nil {
		return nil, extErrors.Wrap(err, "Cannot initilize sprint.Manager")
	}
	return &Manager{
		db:     db,
		logger: logger,
	}, nil
}

// CreateOption contains the parameters for creating a Sprint
type CreateOption struct {
	ProjectID string
	Name      string
	StartDate time.Time
	EndDate   time.Time
}

// Create will create a new sprint in the PLANNED state.
// The name must be unique within the project.
func (m *Manager) Create(ctx context.Context, opt CreateOption) (*Sprint, error) {
	if len(opt.ProjectID) == 0 {
		return nil, fmt.Errorf("CreateOption.ProjectID is required")
	}
	if len(opt.Name) == 0 {
		return nil, fmt.Errorf("CreateOption.Name is required")
	}
	if !opt.EndDate.After(opt.StartDate) {
		return nil, fmt.Errorf("sprint end date must be after start date")
	}

	var existing Sprint
	lookup := m.db.WithContext(ctx).
		Where("project_id = ?", opt.ProjectID).
		Where("name = ?", opt.Name).
		First(&existing)
	if lookup.Error == nil {
		return nil, fmt.Errorf("a sprint with this name already exists in the project")
	}
	if !errors.Is(lookup.Error, gorm.ErrRecordNotFound) {
		return nil, extErrors.Wrap(lookup.Error, "Cannot check for existing sprint")
	}

	sprint := &Sprint{
		ID:        shortuuid.New(),
		ProjectID: opt.ProjectID,
		Name:      opt.Name,
		Status:    StatusPlanned,
		StartDate: opt.StartDate,
		EndDate:   opt.EndDate,
	}
	result := m.db.WithContext(ctx).Create(sprint)
	if result.Error != nil {
		m.logger.Error("Unable to create new sprint in database",
			zap.Error(result.Error),
		)
		return nil, extErrors.Wrap(result.Error, "Cannot create sprint")
	}
	return sprint, nil
}

// Get will try to return the sprint by id, or nil when it does not exist
func (m *Manager) Get(ctx context.Context, id string) (*Sprint, error) {
	var sprint Sprint

	result := m.db.WithContext(ctx).First(&sprint, "id = ?", id)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, extErrors.Wrap(result.Error, "Cannot get sprint by id")
	}
	return &sprint, nil
}

// ListByProject returns a project's sprints, newest first
func (m *Manager) ListByProject(ctx context.Context, projectID string) ([]Sprint, error) {
	sprints := make([]Sprint, 0, 1)

	result := m.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at desc").
		Find(&sprints)

	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, extErrors.Wrap(result.Error, "Cannot list sprints")
	}
	return sprints, nil
}

// UpdateStatus transitions a sprint through its state machine
func (m *Manager) UpdateStatus(ctx context.Context, id string, next Status) (*Sprint, error) {
	sprint, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sprint == nil {
		return nil, fmt.Errorf("sprint not found")
	}

	if err := validateTransition(sprint.Status, next, sprint.StartDate, sprint.EndDate, time.Now()); err != nil {
		return nil, err
	}

	result := m.db.WithContext(ctx).Model(&Sprint{}).
		Where("id = ?", id).
		Update("status", next)
	if result.Error != nil {
		m.logger.Error("Unable to update sprint status in database",
			zap.Error(result.Error),
		)
		return nil, extErrors.Wrap(result.Error, "Cannot update sprint status")
	}

	sprint.Status = next
	return sprint, nil
}
