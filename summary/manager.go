package summary

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/taskflowhq/taskflow/issue"
	"github.com/taskflowhq/taskflow/project"

	"github.com/lithammer/shortuuid/v3"
	extErrors "github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DateLayout is the storage format of a summary's date
const DateLayout = "2006-01-02"

// ManagerOptions contains the configuration for Manager
type ManagerOptions struct {
	DB             *gorm.DB
	Logger         *zap.Logger
	IssueManager   *issue.Manager
	ProjectManager *project.Manager
	Generator      Generator
}

// Manager generates and persists daily summaries
type Manager struct {
	ManagerOptions
}

// NewManager returns a new Manager for daily summaries
func NewManager(option ManagerOptions) (*Manager, error) {
	if option.DB == nil {
		return nil, fmt.Errorf("nil DB is invalid")
	}
	if option.Logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	if option.IssueManager == nil {
		return nil, fmt.Errorf("nil IssueManager is invalid")
	}
	if option.ProjectManager == nil {
		return nil, fmt.Errorf("nil ProjectManager is invalid")
	}
	if option.Generator == nil {
		option.Generator = &StatsGenerator{}
	}
	if err := option.DB.AutoMigrate(&DailySummary{}); err != nil {
		return nil, extErrors.Wrap(err, "Cannot initilize summary.Manager")
	}
	return &Manager{
		ManagerOptions: option,
	}, nil
}

// GenerateForProject snapshots the project's board and upserts the
// summary for the given date. Re-running for the same day overwrites
// the previous digest instead of duplicating it.
func (m *Manager) GenerateForProject(ctx context.Context, projectID string, date time.Time) (*DailySummary, error) {
	proj, err := m.ProjectManager.Get(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if proj == nil {
		return nil, fmt.Errorf("project not found")
	}

	rawCounts, err := m.IssueManager.CountByStatus(ctx, projectID)
	if err != nil {
		return nil, err
	}
	counts := make(StatusCounts)
	for status, n := range rawCounts {
		counts[string(status)] = n
	}

	summary := &DailySummary{
		ID:             shortuuid.New(),
		OrganizationID: proj.OrganizationID,
		ProjectID:      proj.ID,
		Date:           date.Format(DateLayout),
		Text:           m.Generator.Generate(proj.Name, counts),
		StatusCounts:   counts,
	}

	result := m.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "project_id"}, {Name: "date"}},
			DoUpdates: clause.AssignmentColumns([]string{"text", "status_counts"}),
		}).
		Create(summary)
	if result.Error != nil {
		m.Logger.Error("Unable to save daily summary in database",
			zap.String("ProjectID", projectID),
			zap.Error(result.Error),
		)
		return nil, extErrors.Wrap(result.Error, "Cannot save daily summary")
	}
	return summary, nil
}

// ListByOrganization returns an organization's summaries, newest first
func (m *Manager) ListByOrganization(ctx context.Context, orgID string, limit int) ([]DailySummary, error) {
	if limit <= 0 {
		limit = 30
	}
	summaries := make([]DailySummary, 0, 1)

	result := m.DB.WithContext(ctx).
		Where("organization_id = ?", orgID).
		Order("date desc").
		Limit(limit).
		Find(&summaries)
	if result.Error != nil {
		m.Logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, extErrors.Wrap(result.Error, "Cannot list daily summaries")
	}
	return summaries, nil
}

// GetByProjectAndDate fetches a single summary, or nil when absent
func (m *Manager) GetByProjectAndDate(ctx context.Context, projectID string, date time.Time) (*DailySummary, error) {
	var summary DailySummary

	result := m.DB.WithContext(ctx).
		Where("project_id = ?", projectID).
		Where("date = ?", date.Format(DateLayout)).
		First(&summary)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if result.Error != nil {
		m.Logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, extErrors.Wrap(result.Error, "Cannot get daily summary")
	}
	return &summary, nil
}
