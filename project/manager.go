package project

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/lithammer/shortuuid/v3"
	extErrors "github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Manager handles the database operations relating to Projects
type Manager struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewManager returns a new Manager for projects
func NewManager(logger *zap.Logger, db *gorm.DB) (*Manager, error) {
	if err := db.AutoMigrate(&Project{}); err != nil {
		return nil, extErrors.Wrap(err, "Cannot initilize project.Manager")
	}
	return &Manager{
		db:     db,
		logger: logger,
	}, nil
}

// CreateOption contains the parameters for creating a Project
type CreateOption struct {
	OrganizationID string
	Key            string
	Name           string
	Description    string
}

// Create will create a new project. The key must be unique within the organization.
func (m *Manager) Create(ctx context.Context, opt CreateOption) (*Project, error) {
	if len(opt.OrganizationID) == 0 {
		return nil, fmt.Errorf("CreateOption.OrganizationID is required")
	}
	if len(opt.Key) == 0 {
		return nil, fmt.Errorf("CreateOption.Key is required")
	}
	if len(opt.Name) == 0 {
		return nil, fmt.Errorf("CreateOption.Name is required")
	}

	proj := &Project{
		ID:             shortuuid.New(),
		OrganizationID: opt.OrganizationID,
		Key:            strings.ToUpper(opt.Key),
		Name:           opt.Name,
		Description:    opt.Description,
	}
	result := m.db.WithContext(ctx).Create(proj)
	if result.Error != nil {
		m.logger.Error("Unable to create new project in database",
			zap.Error(result.Error),
		)
		return nil, extErrors.Wrap(result.Error, "Cannot create project")
	}
	return proj, nil
}

// Get will try to return the project by id, or nil when it does not exist
func (m *Manager) Get(ctx context.Context, id string) (*Project, error) {
	var proj Project

	result := m.db.WithContext(ctx).First(&proj, "id = ?", id)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, extErrors.Wrap(result.Error, "Cannot get project by id")
	}
	return &proj, nil
}

// List returns the organization's projects, newest first
func (m *Manager) List(ctx context.Context, orgID string) ([]Project, error) {
	projects := make([]Project, 0, 1)

	result := m.db.WithContext(ctx).
		Where("organization_id = ?", orgID).
		Order("created_at desc").
		Find(&projects)

	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, extErrors.Wrap(result.Error, "Cannot list projects")
	}
	return projects, nil
}

// ListAll returns every project across organizations (used by the nightly summary task)
func (m *Manager) ListAll(ctx context.Context) ([]Project, error) {
	projects := make([]Project, 0, 1)

	result := m.db.WithContext(ctx).Find(&projects)
	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, extErrors.Wrap(result.Error, "Cannot list all projects")
	}
	return projects, nil
}

// Delete removes a project by id
func (m *Manager) Delete(ctx context.Context, id string) error {
	result := m.db.WithContext(ctx).Delete(&Project{}, "id = ?", id)
	if result.Error != nil {
		m.logger.Error("Unable to delete project in database",
			zap.Error(result.Error),
		)
		return extErrors.Wrap(result.Error, "Cannot delete project")
	}
	return nil
}
