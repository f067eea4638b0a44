package task

import (
	"context"
	"fmt"
	"time"

	"github.com/taskflowhq/taskflow/broker"
	"github.com/taskflowhq/taskflow/project"
	"github.com/taskflowhq/taskflow/summary"

	extErrors "github.com/pkg/errors"
	"go.uber.org/zap"
)

// SummaryOptions contains the configuration for SummaryTask
type SummaryOptions struct {
	ProjectManager *project.Manager
	SummaryManager *summary.Manager
	Producer       broker.Producer
	Consumer       broker.Consumer
	Logger         *zap.Logger
}

// SummaryTask drives the nightly digest pipeline: the task binary
// enqueues one request per project, and workers consume them and
// generate the summaries.
type SummaryTask struct {
	SummaryOptions
}

// NewSummaryTask returns a new SummaryTask
func NewSummaryTask(option SummaryOptions) (*SummaryTask, error) {
	if option.ProjectManager == nil {
		return nil, fmt.Errorf("nil ProjectManager is invalid")
	}
	if option.SummaryManager == nil {
		return nil, fmt.Errorf("nil SummaryManager is invalid")
	}
	if option.Logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	return &SummaryTask{
		SummaryOptions: option,
	}, nil
}

// EnqueueAll publishes a summary request for every project
func (t *SummaryTask) EnqueueAll(ctx context.Context, date time.Time) error {
	if t.Producer == nil {
		return fmt.Errorf("nil Producer is invalid")
	}

	projects, err := t.ProjectManager.ListAll(ctx)
	if err != nil {
		return extErrors.Wrap(err, "Cannot list projects for summary generation")
	}

	for _, proj := range projects {
		req := &broker.SummaryRequest{
			OrganizationID: proj.OrganizationID,
			ProjectID:      proj.ID,
			Date:           date.Format(summary.DateLayout),
		}
		if err := t.Producer.SendSummaryRequest(req); err != nil {
			t.Logger.Error("Unable to enqueue summary request",
				zap.String("ProjectID", proj.ID),
				zap.Error(err),
			)
			continue
		}
	}

	t.Logger.Info("Enqueued summary requests",
		zap.Int("Projects", len(projects)),
	)
	return nil
}

// HandleRequests consumes summary requests and generates digests until
// the context is cancelled
func (t *SummaryTask) HandleRequests(ctx context.Context) error {
	if t.Consumer == nil {
		return fmt.Errorf("nil Consumer is invalid")
	}

	rChan, err := t.Consumer.ReceiveSummaryRequests(ctx)
	if err != nil {
		return extErrors.Wrap(err, "Cannot get summary request channel")
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case req := <-rChan:
				if req == nil {
					return
				}
				date, err := time.Parse(summary.DateLayout, req.Date)
				if err != nil {
					t.Logger.Error("Summary request has malformed date",
						zap.String("Date", req.Date),
					)
					continue
				}
				if _, err := t.SummaryManager.GenerateForProject(ctx, req.ProjectID, date); err != nil {
					t.Logger.Error("Unable to generate daily summary",
						zap.String("ProjectID", req.ProjectID),
						zap.Error(err),
					)
					continue
				}
				t.Logger.Info("Generated daily summary",
					zap.String("ProjectID", req.ProjectID),
					zap.String("Date", req.Date),
				)
			}
		}
	}()
	return nil
}
