package ratelimit

import (
	"net/http"
	"strconv"

	"github.com/taskflowhq/taskflow/auth"
	resp "github.com/taskflowhq/taskflow/response"

	"go.uber.org/zap"
)

// Middleware returns a http middleware applying the sliding window per
// authenticated user. Redis outages fail open: the quota ledger downstream
// still bounds total usage.
func (l *Limiter) Middleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := r.Context().Value(auth.Context).(*auth.Claims)

			decision, err := l.Allow(claims.ID)
			if err != nil {
				l.Logger.Error("Cannot check sliding window limit",
					zap.String("UserID", claims.ID),
					zap.Error(err),
				)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-Burst-Limit", strconv.FormatInt(decision.Limit, 10))
			w.Header().Set("X-Burst-Remaining", strconv.FormatInt(decision.Remaining, 10))

			if !decision.Allowed {
				resp.WriteError(w, r, resp.ErrTooManyRequests().
					AddMessages("Too many requests, slow down").
					WithResult(decision))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
