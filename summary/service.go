package summary

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
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
	SummaryManager *Manager
	ProjectManager *project.Manager
	Logger         *zap.Logger
}

// Service is the summary API router
type Service struct {
	ServiceOptions
}

// NewService will create an instance of the summary API router
func NewService(option ServiceOptions) (*Service, error) {
	if option.SummaryManager == nil {
		return nil, fmt.Errorf("nil SummaryManager is invalid")
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

func (s *Service) listSummaries(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	org := ctx.Value(organization.Context).(*organization.Organization)

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("limit must be a non-negative integer"))
			return
		}
		limit = parsed
	}

	summaries, err := s.SummaryManager.ListByOrganization(ctx, org.ID, limit)
	if err != nil {
		s.Logger.Error("Unable to list daily summaries",
			zap.String("OrganizationID", org.ID),
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Cannot get the list of summaries"))
		return
	}

	resp.WriteResponse(w, r, summaries)
}

// ReportRequest is the model of user request for an on-demand report
type ReportRequest struct {
	ProjectID string `json:"projectId" validate:"required"`
	Date      string `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

// generateReport runs the digest generation immediately for a single
// project. This path is metered separately from general API traffic.
func (s *Service) generateReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	org := ctx.Value(organization.Context).(*organization.Organization)

	var req ReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.WriteError(w, r, resp.ErrInvalidJson())
		return
	}
	if err := validate.Struct(&req); err != nil {
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("Invalid report parameters"))
		return
	}

	proj, err := s.ProjectManager.Get(ctx, req.ProjectID)
	if err != nil {
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Cannot get details about the project"))
		return
	}
	if proj == nil || proj.OrganizationID != org.ID {
		resp.WriteError(w, r, resp.ErrNotFound().AddMessages("Cannot find project with specific ID"))
		return
	}

	date := time.Now()
	if req.Date != "" {
		parsed, err := time.Parse(DateLayout, req.Date)
		if err != nil {
			resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("Date must be formatted as YYYY-MM-DD"))
			return
		}
		date = parsed
	}

	summary, err := s.SummaryManager.GenerateForProject(ctx, req.ProjectID, date)
	if err != nil {
		s.Logger.Error("Unable to generate report",
			zap.String("ProjectID", req.ProjectID),
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Cannot generate report"))
		return
	}

	resp.WriteResponse(w, r, summary)
}

func (s *Service) getSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	org := ctx.Value(organization.Context).(*organization.Organization)
	projectID := chi.URLParam(r, "projectID")

	date, err := time.Parse(DateLayout, chi.URLParam(r, "date"))
	if err != nil {
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("Date must be formatted as YYYY-MM-DD"))
		return
	}

	proj, err := s.ProjectManager.Get(ctx, projectID)
	if err != nil {
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Cannot get details about the project"))
		return
	}
	if proj == nil || proj.OrganizationID != org.ID {
		resp.WriteError(w, r, resp.ErrNotFound().AddMessages("Cannot find project with specific ID"))
		return
	}

	summary, err := s.SummaryManager.GetByProjectAndDate(ctx, projectID, date)
	if err != nil {
		s.Logger.Error("Unable to get daily summary",
			zap.String("ProjectID", projectID),
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Cannot get daily summary"))
		return
	}
	if summary == nil {
		resp.WriteError(w, r, resp.ErrNotFound().AddMessages("Cannot find summary for the project on that date"))
		return
	}

	resp.WriteResponse(w, r, summary)
}

// Router will return the routes under summary API
func (s *Service) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/", s.listSummaries)
	r.Get("/{projectID}/{date}", s.getSummary)

	return r
}

// ReportsRouter will return the on-demand report routes. These are
// mounted on their own path so the usage gate can meter them against
// the plan's reserved report quota.
func (s *Service) ReportsRouter() http.Handler {
	r := chi.NewRouter()

	r.Post("/", s.generateReport)

	return r
}
