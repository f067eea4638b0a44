package issue

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/taskflowhq/taskflow/auth"
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
	IssueManager   *Manager
	ProjectManager *project.Manager
	Logger         *zap.Logger
}

// Service is the issue API router
type Service struct {
	ServiceOptions
}

// NewService will create an instance of the issue API router
func NewService(option ServiceOptions) (*Service, error) {
	if option.IssueManager == nil {
		return nil, fmt.Errorf("nil IssueManager is invalid")
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

// resolveIssue loads the issue and confirms its project belongs to the
// organization in context
func (s *Service) resolveIssue(r *http.Request, issueID string) (*Issue, *resp.Error) {
	issue, err := s.IssueManager.Get(r.Context(), issueID)
	if err != nil {
		return nil, resp.ErrUnexpected().AddMessages("Cannot get details about the issue")
	}
	if issue == nil {
		return nil, resp.ErrNotFound().AddMessages("Cannot find issue with specific ID")
	}
	if _, respErr := s.resolveProject(r, issue.ProjectID); respErr != nil {
		return nil, respErr
	}
	return issue, nil
}

// CreateRequest is the model of user request for creating an issue
type CreateRequest struct {
	ProjectID   string `json:"projectId" validate:"required"`
	SprintID    string `json:"sprintId"`
	Title       string `json:"title" validate:"required"`
	Description string `json:"description"`
	Priority    string `json:"priority" validate:"omitempty,oneof=LOW MEDIUM HIGH URGENT"`
	AssigneeID  string `json:"assigneeId"`
}

func (s *Service) createIssue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := ctx.Value(auth.Context).(*auth.Claims)

	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.WriteError(w, r, resp.ErrInvalidJson())
		return
	}
	if err := validate.Struct(&req); err != nil {
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("Invalid issue parameters"))
		return
	}

	if _, respErr := s.resolveProject(r, req.ProjectID); respErr != nil {
		resp.WriteError(w, r, respErr)
		return
	}

	issue, err := s.IssueManager.Create(ctx, CreateOption{
		ProjectID:   req.ProjectID,
		SprintID:    req.SprintID,
		Title:       req.Title,
		Description: req.Description,
		Priority:    Priority(req.Priority),
		AssigneeID:  req.AssigneeID,
		ReporterID:  claims.ID,
	})
	if err != nil {
		s.Logger.Error("Unable to create issue",
			zap.String("ProjectID", req.ProjectID),
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Cannot create issue"))
		return
	}

	resp.WriteResponse(w, r, issue)
}

func (s *Service) listIssues(w http.ResponseWriter, r *http.Request) {
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

	issues, err := s.IssueManager.ListByProject(ctx, projectID)
	if err != nil {
		s.Logger.Error("Unable to list issues",
			zap.String("ProjectID", projectID),
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Cannot get the list of issues"))
		return
	}

	resp.WriteResponse(w, r, issues)
}

func (s *Service) getIssue(w http.ResponseWriter, r *http.Request) {
	issue, respErr := s.resolveIssue(r, chi.URLParam(r, "id"))
	if respErr != nil {
		resp.WriteError(w, r, respErr)
		return
	}
	resp.WriteResponse(w, r, issue)
}

// UpdateRequest is the model of user request for editing an issue.
// Pointer fields distinguish "absent" from "set to empty".
type UpdateRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Priority    *string `json:"priority" validate:"omitempty,oneof=LOW MEDIUM HIGH URGENT"`
	AssigneeID  *string `json:"assigneeId"`
	SprintID    *string `json:"sprintId"`
}

func (s *Service) updateIssue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	issueID := chi.URLParam(r, "id")

	if _, respErr := s.resolveIssue(r, issueID); respErr != nil {
		resp.WriteError(w, r, respErr)
		return
	}

	var req UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.WriteError(w, r, resp.ErrInvalidJson())
		return
	}
	if err := validate.Struct(&req); err != nil {
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("Invalid issue parameters"))
		return
	}

	opt := UpdateOption{
		Title:       req.Title,
		Description: req.Description,
		AssigneeID:  req.AssigneeID,
		SprintID:    req.SprintID,
	}
	if req.Priority != nil {
		p := Priority(*req.Priority)
		opt.Priority = &p
	}

	issue, err := s.IssueManager.Update(ctx, issueID, opt)
	if err != nil {
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("Cannot update issue", err.Error()))
		return
	}

	resp.WriteResponse(w, r, issue)
}

// MoveRequest is the model of user request for moving an issue on the board
type MoveRequest struct {
	Status string `json:"status" validate:"required,oneof=TODO IN_PROGRESS IN_REVIEW DONE"`
	Order  int    `json:"order" validate:"min=0"`
}

func (s *Service) moveIssue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	issueID := chi.URLParam(r, "id")

	if _, respErr := s.resolveIssue(r, issueID); respErr != nil {
		resp.WriteError(w, r, respErr)
		return
	}

	var req MoveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.WriteError(w, r, resp.ErrInvalidJson())
		return
	}
	if err := validate.Struct(&req); err != nil {
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("Invalid board position"))
		return
	}

	issue, err := s.IssueManager.Move(ctx, issueID, MoveOption{
		Status: Status(req.Status),
		Order:  req.Order,
	})
	if err != nil {
		s.Logger.Error("Unable to move issue",
			zap.String("IssueID", issueID),
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("Cannot move issue", err.Error()))
		return
	}

	resp.WriteResponse(w, r, issue)
}

func (s *Service) deleteIssue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	issueID := chi.URLParam(r, "id")

	if _, respErr := s.resolveIssue(r, issueID); respErr != nil {
		resp.WriteError(w, r, respErr)
		return
	}

	if err := s.IssueManager.Delete(ctx, issueID); err != nil {
		s.Logger.Error("Unable to delete issue",
			zap.String("IssueID", issueID),
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Cannot delete issue"))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Router will return the routes under issue API
func (s *Service) Router() http.Handler {
	r := chi.NewRouter()

	r.Post("/", s.createIssue)
	r.Get("/", s.listIssues)
	r.Get("/{id}", s.getIssue)
	r.Patch("/{id}", s.updateIssue)
	r.Post("/{id}/move", s.moveIssue)
	r.Delete("/{id}", s.deleteIssue)

	return r
}
