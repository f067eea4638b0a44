package organization

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/taskflowhq/taskflow/auth"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestService(t *testing.T) (*Service, *Manager) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	manager, err := NewManager(zaptest.NewLogger(t), db)
	require.NoError(t, err)

	service, err := NewService(ServiceOptions{
		OrganizationManager: manager,
		Logger:              zaptest.NewLogger(t),
	})
	require.NoError(t, err)
	return service, manager
}

// newTestRouter mounts DetailRouter the way the API server does
func newTestRouter(s *Service) http.Handler {
	r := chi.NewRouter()
	r.Route("/{orgID}", func(d chi.Router) {
		d.Use(s.RequireMember())
		d.Mount("/", s.DetailRouter())
	})
	return r
}

func doAddMember(t *testing.T, router http.Handler, orgID, userID string, req AddMemberRequest) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(req)
	require.NoError(t, err)

	httpReq := httptest.NewRequest("POST", "/"+orgID+"/members", bytes.NewReader(body))
	httpReq = httpReq.WithContext(context.WithValue(httpReq.Context(), auth.Context, &auth.Claims{ID: userID}))

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httpReq)
	return recorder
}

func TestAddMemberAsAdmin(t *testing.T) {
	ctx := context.Background()
	service, manager := newTestService(t)
	router := newTestRouter(service)

	org, err := manager.Create(ctx, CreateOption{
		Name:      "Acme",
		Slug:      "acme",
		CreatorID: "admin-user",
	})
	require.NoError(t, err)

	recorder := doAddMember(t, router, org.ID, "admin-user", AddMemberRequest{
		UserID: "new-user",
		Role:   string(RoleMember),
	})
	assert.Equal(t, http.StatusOK, recorder.Code)

	member, err := manager.GetMembership(ctx, org.ID, "new-user")
	require.NoError(t, err)
	require.NotNil(t, member)
	assert.Equal(t, RoleMember, member.Role)

	orgs, err := manager.ListByUser(ctx, "new-user")
	require.NoError(t, err)
	require.Len(t, orgs, 1)
	assert.Equal(t, org.ID, orgs[0].ID)
}

func TestAddMemberRequiresAdmin(t *testing.T) {
	ctx := context.Background()
	service, manager := newTestService(t)
	router := newTestRouter(service)

	org, err := manager.Create(ctx, CreateOption{
		Name:      "Acme",
		Slug:      "acme",
		CreatorID: "admin-user",
	})
	require.NoError(t, err)

	_, err = manager.AddMember(ctx, org.ID, "member-user", RoleMember)
	require.NoError(t, err)

	recorder := doAddMember(t, router, org.ID, "member-user", AddMemberRequest{
		UserID: "new-user",
		Role:   string(RoleMember),
	})
	assert.Equal(t, http.StatusForbidden, recorder.Code)

	member, err := manager.GetMembership(ctx, org.ID, "new-user")
	require.NoError(t, err)
	assert.Nil(t, member)
}

func TestAddMemberTwiceConflicts(t *testing.T) {
	ctx := context.Background()
	service, manager := newTestService(t)
	router := newTestRouter(service)

	org, err := manager.Create(ctx, CreateOption{
		Name:      "Acme",
		Slug:      "acme",
		CreatorID: "admin-user",
	})
	require.NoError(t, err)

	req := AddMemberRequest{
		UserID: "new-user",
		Role:   string(RoleMember),
	}
	recorder := doAddMember(t, router, org.ID, "admin-user", req)
	assert.Equal(t, http.StatusOK, recorder.Code)

	recorder = doAddMember(t, router, org.ID, "admin-user", req)
	assert.Equal(t, http.StatusConflict, recorder.Code)
}

func TestAddMemberRejectsUnknownRole(t *testing.T) {
	ctx := context.Background()
	service, manager := newTestService(t)
	router := newTestRouter(service)

	org, err := manager.Create(ctx, CreateOption{
		Name:      "Acme",
		Slug:      "acme",
		CreatorID: "admin-user",
	})
	require.NoError(t, err)

	recorder := doAddMember(t, router, org.ID, "admin-user", AddMemberRequest{
		UserID: "new-user",
		Role:   "Owner",
	})
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}
