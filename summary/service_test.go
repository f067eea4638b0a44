package summary

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/taskflowhq/taskflow/issue"
	"github.com/taskflowhq/taskflow/organization"
	"github.com/taskflowhq/taskflow/project"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestService(t *testing.T) (*Service, *project.Project) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	projectManager, err := project.NewManager(zaptest.NewLogger(t), db)
	require.NoError(t, err)
	issueManager, err := issue.NewManager(zaptest.NewLogger(t), db)
	require.NoError(t, err)

	summaryManager, err := NewManager(ManagerOptions{
		DB:             db,
		Logger:         zaptest.NewLogger(t),
		IssueManager:   issueManager,
		ProjectManager: projectManager,
	})
	require.NoError(t, err)

	service, err := NewService(ServiceOptions{
		SummaryManager: summaryManager,
		ProjectManager: projectManager,
		Logger:         zaptest.NewLogger(t),
	})
	require.NoError(t, err)

	proj, err := projectManager.Create(context.Background(), project.CreateOption{
		OrganizationID: "org-1",
		Key:            "TF",
		Name:           "Taskflow",
	})
	require.NoError(t, err)
	return service, proj
}

// newTestRouter mounts the summary routes with a fixed organization
// resolved in the request context, the way RequireMember does upstream
func newTestRouter(s *Service, orgID string) http.Handler {
	org := &organization.Organization{ID: orgID}
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(context.WithValue(req.Context(), organization.Context, org)))
		})
	})
	r.Mount("/summaries", s.Router())
	r.Mount("/reports", s.ReportsRouter())
	return r
}

func postReport(t *testing.T, router http.Handler, req ReportRequest) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(req)
	require.NoError(t, err)

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest("POST", "/reports", bytes.NewReader(body)))
	return recorder
}

func TestGetSummaryByProjectAndDate(t *testing.T) {
	service, proj := newTestService(t)
	router := newTestRouter(service, proj.OrganizationID)

	recorder := postReport(t, router, ReportRequest{
		ProjectID: proj.ID,
		Date:      "2026-08-29",
	})
	require.Equal(t, http.StatusOK, recorder.Code)

	recorder = httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest("GET", "/summaries/"+proj.ID+"/2026-08-29", nil))
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "2026-08-29")

	// no digest was generated for the day before
	recorder = httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest("GET", "/summaries/"+proj.ID+"/2026-08-28", nil))
	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestGetSummaryRejectsMalformedDate(t *testing.T) {
	service, proj := newTestService(t)
	router := newTestRouter(service, proj.OrganizationID)

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest("GET", "/summaries/"+proj.ID+"/29-08-2026", nil))
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestGetSummaryScopedToOrganization(t *testing.T) {
	service, proj := newTestService(t)
	router := newTestRouter(service, "another-org")

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest("GET", "/summaries/"+proj.ID+"/2026-08-29", nil))
	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestGenerateReportRejectsMalformedDate(t *testing.T) {
	service, proj := newTestService(t)
	router := newTestRouter(service, proj.OrganizationID)

	recorder := postReport(t, router, ReportRequest{
		ProjectID: proj.ID,
		Date:      "29-08-2026",
	})
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}
