// Package middleware provides Chi-compatible middleware for the pantry API server
package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/alchemorsel/pantry/internal/infrastructure/monitoring"
	"github.com/alchemorsel/pantry/pkg/errors"
)

type contextKey string

const userIDKey contextKey = "user_id"

// Authenticator resolves a bearer token to the user it was issued to
type Authenticator interface {
	Authenticate(token string) (uuid.UUID, error)
}

// Logger creates a Chi-compatible logging middleware
func Logger(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(wrapped, r)

			status := wrapped.Status()
			if status == 0 {
				status = http.StatusOK
			}

			fields := []zap.Field{
				zap.String("request_id", chimiddleware.GetReqID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("remote_addr", r.RemoteAddr),
				zap.Int("status_code", status),
				zap.Int("bytes", wrapped.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
			}
			if traceID := monitoring.TraceIDFromContext(r.Context()); traceID != "" {
				fields = append(fields, zap.String("trace_id", traceID))
			}

			switch {
			case status >= 500:
				logger.Error("API Request", fields...)
			case status >= 400:
				logger.Warn("API Request", fields...)
			default:
				logger.Info("API Request", fields...)
			}
		})
	}
}

// Security adds security headers for API responses
func Security() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
			next.ServeHTTP(w, r)
		})
	}
}

// CORS adds CORS headers for API endpoints
func CORS() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Max-Age", "86400")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// Authenticate requires a valid bearer token and stores its user id in the request context.
// Browsers cannot set headers on websocket upgrades, so an access_token query
// parameter is accepted for those requests only.
func Authenticate(auth Authenticator) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				unauthorized(w, r, "Authorization header required")
				return
			}

			userID, err := auth.Authenticate(token)
			if err != nil {
				unauthorized(w, r, "Invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
			token := r.URL.Query().Get("access_token")
			return token, token != ""
		}
		return "", false
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func unauthorized(w http.ResponseWriter, r *http.Request, message string) {
	resp := errors.ToErrorResponse(errors.NewUnauthorizedError(message), chimiddleware.GetReqID(r.Context()))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(resp)
}

// WithUserID returns a copy of ctx carrying the authenticated user id
func WithUserID(ctx context.Context, userID uuid.UUID) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFromContext extracts user ID from request context
func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	userID, ok := ctx.Value(userIDKey).(uuid.UUID)
	return userID, ok
}
