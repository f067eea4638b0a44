package issue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lithammer/shortuuid/v3"
	extErrors "github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Manager handles the database operations relating to Issues
type Manager struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewManager returns a new Manager for issues
func NewManager(logger *zap.Logger, db *gorm.DB) (*Manager, error) {
	if err := db.AutoMigrate(&Issue{}); err != nil {
		return nil, extErrors.Wrap(err, "Cannot initilize issue.Manager")
	}
	return &Manager{
		db:     db,
		logger: logger,
	}, nil
}

// CreateOption contains the parameters for creating an Issue
type CreateOption struct {
	ProjectID   string
	SprintID    string
	Title       string
	Description string
	Priority    Priority
	AssigneeID  string
	ReporterID  string
}

// Create will create a new issue at the bottom of the TODO column
func (m *Manager) Create(ctx context.Context, opt CreateOption) (*Issue, error) {
	if len(opt.ProjectID) == 0 {
		return nil, fmt.Errorf("CreateOption.ProjectID is required")
	}
	if len(opt.Title) == 0 {
		return nil, fmt.Errorf("CreateOption.Title is required")
	}
	if len(opt.ReporterID) == 0 {
		return nil, fmt.Errorf("CreateOption.ReporterID is required")
	}
	if len(opt.Priority) == 0 {
		opt.Priority = PriorityMedium
	}
	if !validPriority(opt.Priority) {
		return nil, fmt.Errorf("unknown issue priority %s", opt.Priority)
	}

	issue := &Issue{
		ID:          shortuuid.New(),
		ProjectID:   opt.ProjectID,
		SprintID:    opt.SprintID,
		Title:       opt.Title,
		Description: opt.Description,
		Status:      StatusTodo,
		Priority:    opt.Priority,
		AssigneeID:  opt.AssigneeID,
		ReporterID:  opt.ReporterID,
	}
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var maxOrder sql.NullInt64
		row := tx.Model(&Issue{}).
			Where("project_id = ?", opt.ProjectID).
			Where("status = ?", StatusTodo).
			Select("MAX(\"order\")").
			Row()
		if err := row.Scan(&maxOrder); err != nil {
			return err
		}
		if maxOrder.Valid {
			issue.Order = int(maxOrder.Int64) + 1
		}
		return tx.Create(issue).Error
	}, &sql.TxOptions{
		Isolation: sql.LevelSerializable,
	})
	if err != nil {
		m.logger.Error("Unable to create new issue in database",
			zap.Error(err),
		)
		return nil, extErrors.Wrap(err, "Cannot create issue")
	}
	return issue, nil
}

// Get will try to return the issue by id, or nil when it does not exist
func (m *Manager) Get(ctx context.Context, id string) (*Issue, error) {
	var issue Issue

	result := m.db.WithContext(ctx).First(&issue, "id = ?", id)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, extErrors.Wrap(result.Error, "Cannot get issue by id")
	}
	return &issue, nil
}

// ListByProject returns a project's issues ordered for board rendering
func (m *Manager) ListByProject(ctx context.Context, projectID string) ([]Issue, error) {
	issues := make([]Issue, 0, 1)

	result := m.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("status").
		Order("\"order\"").
		Find(&issues)

	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, extErrors.Wrap(result.Error, "Cannot list issues")
	}
	return issues, nil
}

// UpdateOption contains the mutable fields of an issue
type UpdateOption struct {
	Title       *string
	Description *string
	Priority    *Priority
	AssigneeID  *string
	SprintID    *string
}

// Update applies partial changes to an issue
func (m *Manager) Update(ctx context.Context, id string, opt UpdateOption) (*Issue, error) {
	issue, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if issue == nil {
		return nil, fmt.Errorf("issue not found")
	}

	updates := map[string]interface{}{}
	if opt.Title != nil {
		if len(*opt.Title) == 0 {
			return nil, fmt.Errorf("issue title cannot be empty")
		}
		updates["title"] = *opt.Title
	}
	if opt.Description != nil {
		updates["description"] = *opt.Description
	}
	if opt.Priority != nil {
		if !validPriority(*opt.Priority) {
			return nil, fmt.Errorf("unknown issue priority %s", *opt.Priority)
		}
		updates["priority"] = *opt.Priority
	}
	if opt.AssigneeID != nil {
		updates["assignee_id"] = *opt.AssigneeID
	}
	if opt.SprintID != nil {
		updates["sprint_id"] = *opt.SprintID
	}
	if len(updates) == 0 {
		return issue, nil
	}

	result := m.db.WithContext(ctx).Model(&Issue{}).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		m.logger.Error("Unable to update issue in database",
			zap.Error(result.Error),
		)
		return nil, extErrors.Wrap(result.Error, "Cannot update issue")
	}

	return m.Get(ctx, id)
}

// MoveOption contains the parameters for moving an issue on the board
type MoveOption struct {
	Status Status
	Order  int
}

// Move places an issue into a column at the given position and shifts
// the surrounding issues so positions stay contiguous. The whole move
// runs under serializable isolation so concurrent drags do not
// interleave into duplicate positions.
func (m *Manager) Move(ctx context.Context, id string, opt MoveOption) (*Issue, error) {
	if !validStatus(opt.Status) {
		return nil, fmt.Errorf("unknown issue status %s", opt.Status)
	}
	if opt.Order < 0 {
		return nil, fmt.Errorf("issue position cannot be negative")
	}

	var moved Issue
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current Issue
		lookupRes := tx.
			Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&current, "id = ?", id)
		if errors.Is(lookupRes.Error, gorm.ErrRecordNotFound) {
			return fmt.Errorf("issue not found")
		}
		if lookupRes.Error != nil {
			return lookupRes.Error
		}

		// close the gap in the source column
		if res := tx.Model(&Issue{}).
			Where("project_id = ?", current.ProjectID).
			Where("status = ?", current.Status).
			Where("\"order\" > ?", current.Order).
			UpdateColumn("order", gorm.Expr("\"order\" - 1")); res.Error != nil {
			return res.Error
		}

		// open a slot in the destination column
		if res := tx.Model(&Issue{}).
			Where("project_id = ?", current.ProjectID).
			Where("status = ?", opt.Status).
			Where("id <> ?", current.ID).
			Where("\"order\" >= ?", opt.Order).
			UpdateColumn("order", gorm.Expr("\"order\" + 1")); res.Error != nil {
			return res.Error
		}

		if res := tx.Model(&Issue{}).
			Where("id = ?", current.ID).
			Updates(map[string]interface{}{
				"status": opt.Status,
				"order":  opt.Order,
			}); res.Error != nil {
			return res.Error
		}

		moved = current
		moved.Status = opt.Status
		moved.Order = opt.Order
		return nil
	}, &sql.TxOptions{
		Isolation: sql.LevelSerializable,
	})
	if err != nil {
		return nil, err
	}
	return &moved, nil
}

// Delete removes an issue by id
func (m *Manager) Delete(ctx context.Context, id string) error {
	result := m.db.WithContext(ctx).Delete(&Issue{}, "id = ?", id)
	if result.Error != nil {
		m.logger.Error("Unable to delete issue in database",
			zap.Error(result.Error),
		)
		return extErrors.Wrap(result.Error, "Cannot delete issue")
	}
	return nil
}

// CountByStatus aggregates a project's issues per Kanban column
func (m *Manager) CountByStatus(ctx context.Context, projectID string) (map[Status]int64, error) {
	type row struct {
		Status Status
		Total  int64
	}
	rows := make([]row, 0, 4)

	result := m.db.WithContext(ctx).Model(&Issue{}).
		Select("status, COUNT(*) as total").
		Where("project_id = ?", projectID).
		Group("status").
		Find(&rows)
	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, extErrors.Wrap(result.Error, "Cannot count issues")
	}

	counts := map[Status]int64{
		StatusTodo:       0,
		StatusInProgress: 0,
		StatusInReview:   0,
		StatusDone:       0,
	}
	for _, r := range rows {
		counts[r.Status] = r.Total
	}
	return counts, nil
}
