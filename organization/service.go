package organization

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/taskflowhq/taskflow/auth"
	resp "github.com/taskflowhq/taskflow/response"

	"github.com/go-chi/chi"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

var validate *validator.Validate = validator.New()

// ServiceOptions contains the configuration for Service router
type ServiceOptions struct {
	OrganizationManager *Manager
	Logger              *zap.Logger
}

// Service is the organization API router
type Service struct {
	ServiceOptions
}

// NewService will create an instance of the organization API router
func NewService(option ServiceOptions) (*Service, error) {
	if option.OrganizationManager == nil {
		return nil, fmt.Errorf("nil OrganizationManager is invalid")
	}
	if option.Logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	return &Service{
		ServiceOptions: option,
	}, nil
}

// CreateRequest is the model of user request for creating an organization
type CreateRequest struct {
	Name string `json:"name" validate:"required"`
	Slug string `json:"slug" validate:"required,alphanum|contains=-"`
}

func (s *Service) createOrganization(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := ctx.Value(auth.Context).(*auth.Claims)

	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.WriteError(w, r, resp.ErrInvalidJson())
		return
	}
	if err := validate.Struct(&req); err != nil {
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("Invalid organization name or slug"))
		return
	}

	logger := s.Logger.With(zap.String("UserID", claims.ID))

	org, err := s.OrganizationManager.Create(ctx, CreateOption{
		Name:      req.Name,
		Slug:      req.Slug,
		CreatorID: claims.ID,
	})
	if err != nil {
		logger.Error("Unable to create organization",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Cannot create organization"))
		return
	}

	resp.WriteResponse(w, r, org)
}

func (s *Service) listOrganizations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := ctx.Value(auth.Context).(*auth.Claims)

	orgs, err := s.OrganizationManager.ListByUser(ctx, claims.ID)
	if err != nil {
		s.Logger.Error("Unable to list organizations by user id",
			zap.String("UserID", claims.ID),
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Cannot get the list of organizations"))
		return
	}

	resp.WriteResponse(w, r, orgs)
}

func (s *Service) getOrganization(w http.ResponseWriter, r *http.Request) {
	org := r.Context().Value(Context).(*Organization)
	resp.WriteResponse(w, r, org)
}

// AddMemberRequest is the model of user request for adding a member
type AddMemberRequest struct {
	UserID string `json:"userId" validate:"required"`
	Role   string `json:"role" validate:"required,oneof=Admin Member"`
}

func (s *Service) addMember(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	org := ctx.Value(Context).(*Organization)

	var req AddMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.WriteError(w, r, resp.ErrInvalidJson())
		return
	}
	if err := validate.Struct(&req); err != nil {
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("Invalid user id or role"))
		return
	}

	existing, err := s.OrganizationManager.GetMembership(ctx, org.ID, req.UserID)
	if err != nil {
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Cannot check membership"))
		return
	}
	if existing != nil {
		resp.WriteError(w, r, resp.ErrConflict().AddMessages("User is already a member of the organization"))
		return
	}

	member, err := s.OrganizationManager.AddMember(ctx, org.ID, req.UserID, Role(req.Role))
	if err != nil {
		s.Logger.Error("Unable to add member",
			zap.String("OrganizationID", org.ID),
			zap.String("UserID", req.UserID),
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Cannot add member"))
		return
	}

	resp.WriteResponse(w, r, member)
}

// RequireMember returns a middleware resolving {orgID} and ensuring the
// authenticated user belongs to the organization. The Organization is stored
// in the request context under organization.Context.
func (s *Service) RequireMember() func(next http.Handler) http.Handler {
	return s.requireRole(false)
}

// RequireAdmin behaves like RequireMember but additionally requires the Admin role
func (s *Service) RequireAdmin() func(next http.Handler) http.Handler {
	return s.requireRole(true)
}

func (s *Service) requireRole(adminOnly bool) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			claims := ctx.Value(auth.Context).(*auth.Claims)
			orgID := chi.URLParam(r, "orgID")

			member, err := s.OrganizationManager.GetMembership(ctx, orgID, claims.ID)
			if err != nil {
				s.Logger.Error("Unable to check membership",
					zap.String("UserID", claims.ID),
					zap.String("OrganizationID", orgID),
					zap.Error(err),
				)
				resp.WriteError(w, r, resp.ErrUnexpected())
				return
			}
			if member == nil {
				resp.WriteError(w, r, resp.ErrNotFound().AddMessages("Cannot find organization with specific ID"))
				return
			}
			if adminOnly && member.Role != RoleAdmin {
				resp.WriteError(w, r, resp.ErrForbidden().AddMessages("Only an organization admin can perform this action"))
				return
			}

			org, err := s.OrganizationManager.GetByID(ctx, orgID)
			if err != nil || org == nil {
				resp.WriteError(w, r, resp.ErrNotFound().AddMessages("Cannot find organization with specific ID"))
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(ctx, Context, org)))
		})
	}
}

// Router will return the routes under organization API
func (s *Service) Router() http.Handler {
	r := chi.NewRouter()

	r.Post("/", s.createOrganization)
	r.Get("/", s.listOrganizations)

	return r
}

// DetailRouter returns the routes that require a resolved organization
func (s *Service) DetailRouter() http.Handler {
	r := chi.NewRouter()

	r.Get("/", s.getOrganization)
	r.With(s.RequireAdmin()).Post("/members", s.addMember)

	return r
}
