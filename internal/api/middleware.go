package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"

	"github.com/erazemk/consigna/internal/access"
	"github.com/erazemk/consigna/internal/auth"
	"github.com/erazemk/consigna/internal/store"
)

type contextKey string

const (
	claimsKey contextKey = "claims"
	callerKey contextKey = "caller"
)

const requestIDHeader = "X-Request-Id"

// RequestLogger attaches a request-scoped logger carrying a request id and
// logs one line per request with its status and duration.
func RequestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := r.Header.Get(requestIDHeader)
			if reqID == "" {
				reqID = uuid.NewString()
			}
			w.Header().Set(requestIDHeader, reqID)

			l := logger.With().Str("request_id", reqID).Logger()
			ctx := l.WithContext(r.Context())

			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r.WithContext(ctx))

			zerolog.Ctx(ctx).Info().
				Str("method", r.Method).
				Str("path", r.URL.RequestURI()).
				Int("status", rec.status).
				Dur("duration", time.Since(start)).
				Msg("request")
		})
	}
}

// Recoverer turns a handler panic into an opaque 500 response.
func Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				jsonError(w, r, fmt.Errorf("panic: %v", rec))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// AuthMiddleware validates the bearer token, rejects revoked tokens and
// inactive accounts, and stores the caller in the request context.
func AuthMiddleware(secret string, db *sqlx.DB) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				jsonError(w, r, unauthenticated("missing or invalid authorization header"))
				return
			}

			claims, err := auth.ValidateToken(secret, strings.TrimPrefix(header, "Bearer "))
			if err != nil {
				jsonError(w, r, unauthenticated("invalid token"))
				return
			}

			revoked, err := store.IsTokenRevoked(r.Context(), db, claims.ID)
			if err != nil {
				jsonError(w, r, err)
				return
			}
			if revoked {
				jsonError(w, r, unauthenticated("token has been revoked"))
				return
			}

			user, err := store.GetUser(r.Context(), db, claims.UserID)
			if err != nil {
				jsonError(w, r, err)
				return
			}
			if user == nil || !user.Active {
				jsonError(w, r, unauthenticated("account is inactive"))
				return
			}

			caller, err := claims.Caller()
			if err != nil {
				jsonError(w, r, err)
				return
			}

			l := zerolog.Ctx(r.Context()).With().
				Int64("user_id", claims.UserID).
				Str("role", string(claims.Role))
			if pid, ok := caller.PartnerID(); ok {
				l = l.Int64("partner_id", pid)
			}
			logger := l.Logger()

			ctx := logger.WithContext(r.Context())
			ctx = context.WithValue(ctx, claimsKey, claims)
			ctx = context.WithValue(ctx, callerKey, caller)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin rejects non-admin callers with 403.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := GetCaller(r.Context()).RequireAdmin(); err != nil {
			jsonError(w, r, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetClaims retrieves the JWT claims from the context.
func GetClaims(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(claimsKey).(*auth.Claims)
	return claims
}

// GetCaller retrieves the authenticated caller. Without one the zero caller
// is returned, which every access check rejects.
func GetCaller(ctx context.Context) access.Caller {
	caller, _ := ctx.Value(callerKey).(access.Caller)
	return caller
}

// statusRecorder wraps http.ResponseWriter to capture the status code.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
