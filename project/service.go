package project

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/taskflowhq/taskflow/organization"
	resp "github.com/taskflowhq/taskflow/response"

	"github.com/go-chi/chi"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

var validate *validator.Validate = validator.New()

// ServiceOptions contains the configuration for Service router
type ServiceOptions struct {
	ProjectManager *Manager
	Logger         *zap.Logger
}

// Service is the project API router
type Service struct {
	ServiceOptions
}

// NewService will create an instance of the project API router
func NewService(option ServiceOptions) (*Service, error) {
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

// CreateRequest is the model of user request for creating a project
type CreateRequest struct {
	Key         string `json:"key" validate:"required,alphanum,max=10"`
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
}

func (s *Service) createProject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	org := ctx.Value(organization.Context).(*organization.Organization)

	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.WriteError(w, r, resp.ErrInvalidJson())
		return
	}
	if err := validate.Struct(&req); err != nil {
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("Invalid project key or name"))
		return
	}

	proj, err := s.ProjectManager.Create(ctx, CreateOption{
		OrganizationID: org.ID,
		Key:            req.Key,
		Name:           req.Name,
		Description:    req.Description,
	})
	if err != nil {
		s.Logger.Error("Unable to create project",
			zap.String("OrganizationID", org.ID),
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Cannot create project"))
		return
	}

	resp.WriteResponse(w, r, proj)
}

func (s *Service) listProjects(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	org := ctx.Value(organization.Context).(*organization.Organization)

	projects, err := s.ProjectManager.List(ctx, org.ID)
	if err != nil {
		s.Logger.Error("Unable to list projects",
			zap.String("OrganizationID", org.ID),
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Cannot get the list of projects"))
		return
	}

	resp.WriteResponse(w, r, projects)
}

func (s *Service) getProject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	org := ctx.Value(organization.Context).(*organization.Organization)
	projectID := chi.URLParam(r, "id")

	proj, err := s.ProjectManager.Get(ctx, projectID)
	if err != nil {
		s.Logger.Error("Unable to query project",
			zap.String("ProjectID", projectID),
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Cannot get details about the project"))
		return
	}
	if proj == nil || proj.OrganizationID != org.ID {
		resp.WriteError(w, r, resp.ErrNotFound().AddMessages("Cannot find project with specific ID"))
		return
	}

	resp.WriteResponse(w, r, proj)
}

func (s *Service) deleteProject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	org := ctx.Value(organization.Context).(*organization.Organization)
	projectID := chi.URLParam(r, "id")

	proj, err := s.ProjectManager.Get(ctx, projectID)
	if err != nil {
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Cannot get details about the project"))
		return
	}
	if proj == nil || proj.OrganizationID != org.ID {
		resp.WriteError(w, r, resp.ErrNotFound().AddMessages("Cannot find project with specific ID"))
		return
	}

	if err := s.ProjectManager.Delete(ctx, projectID); err != nil {
		s.Logger.Error("Unable to delete project",
			zap.String("ProjectID", projectID),
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Cannot delete project"))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Router will return the routes under project API
func (s *Service) Router() http.Handler {
	r := chi.NewRouter()

	r.Post("/", s.createProject)
	r.Get("/", s.listProjects)
	r.Get("/{id}", s.getProject)
	r.Delete("/{id}", s.deleteProject)

	return r
}
