package usage

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/taskflowhq/taskflow/organization"
	resp "github.com/taskflowhq/taskflow/response"

	"go.uber.org/zap"
)

// CategoryFromPath derives the request category from the target path: the
// first segment after /organizations/{orgID}. Paths outside an organization
// scope fall back to the general category.
func CategoryFromPath(path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for k, segment := range segments {
		if segment == "organizations" && len(segments) > k+2 {
			return segments[k+2]
		}
	}
	return CategoryGeneral
}

// Gate returns the composed admission middleware: check, then record, then
// forward. The check and the record are not atomic; concurrent requests from
// the same organization can overshoot the limit by up to (concurrency - 1).
// The parent router must have resolved the organization into the context.
func (m *Manager) Gate() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			org := ctx.Value(organization.Context).(*organization.Organization)

			category := CategoryFromPath(r.URL.Path)
			privileged := category == CategoryReports

			result, err := m.CheckRequestLimit(ctx, org.ID, category, privileged)
			switch err {
			case nil:
			case ErrNoSubscription:
				resp.WriteError(w, r, resp.ErrForbidden().AddMessages("Organization has no subscription"))
				return
			case ErrUnknownPlan:
				resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Subscription is misconfigured"))
				return
			default:
				// infrastructure fault: "couldn't determine", not "not allowed"
				m.Logger.Error("Unable to check request limit",
					zap.String("OrganizationID", org.ID),
					zap.Error(err),
				)
				resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Cannot determine usage"))
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(result.MonthlyLimit, 10))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(maxInt64(result.Remaining, 0), 10))

			if !result.Allowed {
				resp.WriteError(w, r, resp.ErrTooManyRequests().
					AddMessages("Request limit reached for the current period").
					WithResult(result))
				return
			}

			if err := m.RecordRequest(ctx, org.ID, category); err != nil {
				m.Logger.Error("Unable to record admitted request",
					zap.String("OrganizationID", org.ID),
					zap.String("Category", category),
					zap.Error(err),
				)
				resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Cannot record usage"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
