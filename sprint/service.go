package sprint

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/taskflowhq/taskflow/organization"
	"github.com/taskflowhq/taskflow/project"
	resp "github.com/taskflowhq/taskflow/response"

	"github.com/go-chi/chi"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

var validate *validator.Validate = validator.New()

// ServiceOptions contains the configuration for Service router
type ServiceOptions struct {
	SprintManager  *Manager
	ProjectManager *project.Manager
	Logger         *zap.Logger
}

// Service is the sprint API router
type Service struct {
	ServiceOptions
}

// NewService will create an instance of the sprint API router
func NewService(option ServiceOptions) (*Service, error) {
	if option.SprintManager == nil {
		return nil, fmt.Errorf("nil SprintManager is invalid")
	}
	if option.ProjectManager == nil {
		return nil, fmt.Errorf("nil ProjectManager is invalid")
	}
	if option.Logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	return &Service{
		ServiceOptions: option,
	}, nil
}

// resolveProject loads the project and confirms it belongs to the organization in context
func (s *Service) resolveProject(r *http.Request, projectID string) (*project.Project, *resp.Error) {
	ctx := r.Context()
	org := ctx.Value(organization.Context).(*organization.Organization)

	proj, err := s.ProjectManager.Get(ctx, projectID)
	if err != nil {
		return nil, resp.ErrUnexpected().AddMessages("Cannot get details about the project")
	}
	if proj == nil || proj.OrganizationID != org.ID {
		return nil, resp.ErrNotFound().AddMessages("Cannot find project with specific ID")
	}
	return proj, nil
}

// CreateRequest is the model of user request for creating a sprint
type CreateRequest struct {
	ProjectID string    `json:"projectId" validate:"required"`
	Name      string    `json:"name" validate:"required"`
	StartDate time.Time `json:"startDate" validate:"required"`
	EndDate   time.Time `json:"endDate" validate:"required"`
}

func (s *Service) createSprint(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.WriteError(w, r, resp.ErrInvalidJson())
		return
	}
	if err := validate.Struct(&req); err != nil {
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("Invalid sprint parameters"))
		return
	}

	if _, respErr := s.resolveProject(r, req.ProjectID); respErr != nil {
		resp.WriteError(w, r, respErr)
		return
	}

	sprint, err := s.SprintManager.Create(ctx, CreateOption{
		ProjectID: req.ProjectID,
		Name:      req.Name,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
	})
	if err != nil {
		s.Logger.Error("Unable to create sprint",
			zap.String("ProjectID", req.ProjectID),
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("Cannot create sprint", err.Error()))
		return
	}

	resp.WriteResponse(w, r, sprint)
}

func (s *Service) listSprints(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	projectID := r.URL.Query().Get("projectId")
	if projectID == "" {
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("projectId query param is required"))
		return
	}

	if _, respErr := s.resolveProject(r, projectID); respErr != nil {
		resp.WriteError(w, r, respErr)
		return
	}

	sprints, err := s.SprintManager.ListByProject(ctx, projectID)
	if err != nil {
		s.Logger.Error("Unable to list sprints",
			zap.String("ProjectID", projectID),
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Cannot get the list of sprints"))
		return
	}

	resp.WriteResponse(w, r, sprints)
}

// StatusRequest is the model of user request for transitioning a sprint
type StatusRequest struct {
	Status string `json:"status" validate:"required,oneof=PLANNED ACTIVE COMPLETED"`
}

func (s *Service) updateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sprintID := chi.URLParam(r, "id")

	var req StatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.WriteError(w, r, resp.ErrInvalidJson())
		return
	}
	if err := validate.Struct(&req); err != nil {
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("Invalid sprint status"))
		return
	}

	sprint, err := s.SprintManager.Get(ctx, sprintID)
	if err != nil {
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Cannot get details about the sprint"))
		return
	}
	if sprint == nil {
		resp.WriteError(w, r, resp.ErrNotFound().AddMessages("Cannot find sprint with specific ID"))
		return
	}
	if _, respErr := s.resolveProject(r, sprint.ProjectID); respErr != nil {
		resp.WriteError(w, r, respErr)
		return
	}

	updated, err := s.SprintManager.UpdateStatus(ctx, sprintID, Status(req.Status))
	if err != nil {
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("Cannot update sprint status", err.Error()))
		return
	}

	resp.WriteResponse(w, r, updated)
}

// Router will return the routes under sprint API.
// Status transitions require organization admin via the passed middleware.
func (s *Service) Router(adminOnly func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()

	r.Post("/", s.createSprint)
	r.Get("/", s.listSprints)
	r.With(adminOnly).Patch("/{id}/status", s.updateStatus)

	return r
}
