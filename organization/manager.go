package organization

import (
	"context"
	"errors"
	"fmt"

	"github.com/lithammer/shortuuid/v3"
	extErrors "github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Manager handles the database operations relating to Organizations and Memberships
type Manager struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewManager returns a new Manager for organizations
func NewManager(logger *zap.Logger, db *gorm.DB) (*Manager, error) {
	if err := db.AutoMigrate(&Organization{}, &Membership{}); err != nil {
		return nil, extErrors.Wrap(err, "Cannot initilize organization.Manager")
	}
	return &Manager{
		db:     db,
		logger: logger,
	}, nil
}

// CreateOption contains the parameters for creating an Organization
type CreateOption struct {
	Name      string
	Slug      string
	CreatorID string
}

// Create will create a new organization with the creator as its admin
func (m *Manager) Create(ctx context.Context, opt CreateOption) (*Organization, error) {
	if len(opt.Name) == 0 {
		return nil, fmt.Errorf("CreateOption.Name is required")
	}
	if len(opt.Slug) == 0 {
		return nil, fmt.Errorf("CreateOption.Slug is required")
	}
	if len(opt.CreatorID) == 0 {
		return nil, fmt.Errorf("CreateOption.CreatorID is required")
	}

	org := &Organization{
		ID:   shortuuid.New(),
		Name: opt.Name,
		Slug: opt.Slug,
	}

	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if result := tx.Create(org); result.Error != nil {
			return result.Error
		}
		member := &Membership{
			ID:             shortuuid.New(),
			OrganizationID: org.ID,
			UserID:         opt.CreatorID,
			Role:           RoleAdmin,
		}
		return tx.Create(member).Error
	})
	if err != nil {
		m.logger.Error("Unable to create new organization in database",
			zap.Error(err),
		)
		return nil, extErrors.Wrap(err, "Cannot create organization")
	}

	return org, nil
}

// GetByID will try to return the organization in the database by id
func (m *Manager) GetByID(ctx context.Context, id string) (*Organization, error) {
	var org Organization

	result := m.db.WithContext(ctx).First(&org, "id = ?", id)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}

	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, extErrors.Wrap(result.Error, "Cannot get organization by id")
	}

	return &org, nil
}

// GetMembership returns the membership of a user in an organization, or nil if not a member
func (m *Manager) GetMembership(ctx context.Context, orgID, userID string) (*Membership, error) {
	var member Membership

	result := m.db.WithContext(ctx).
		Where("organization_id = ?", orgID).
		Where("user_id = ?", userID).
		First(&member)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}

	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, extErrors.Wrap(result.Error, "Cannot get membership")
	}

	return &member, nil
}

// AddMember will add a user to an organization with the given role
func (m *Manager) AddMember(ctx context.Context, orgID, userID string, role Role) (*Membership, error) {
	member := &Membership{
		ID:             shortuuid.New(),
		OrganizationID: orgID,
		UserID:         userID,
		Role:           role,
	}

	result := m.db.WithContext(ctx).Create(member)
	if result.Error != nil {
		m.logger.Error("Unable to add member in database",
			zap.Error(result.Error),
		)
		return nil, extErrors.Wrap(result.Error, "Cannot add member")
	}

	return member, nil
}

// ListByUser returns the organizations a user belongs to
func (m *Manager) ListByUser(ctx context.Context, userID string) ([]Organization, error) {
	orgs := make([]Organization, 0, 1)

	result := m.db.WithContext(ctx).
		Joins("JOIN memberships ON memberships.organization_id = organizations.id").
		Where("memberships.user_id = ?", userID).
		Order("organizations.created_at desc").
		Find(&orgs)

	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, extErrors.Wrap(result.Error, "Cannot list organizations by user")
	}

	return orgs, nil
}
