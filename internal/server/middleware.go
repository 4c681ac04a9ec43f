package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/MeKo-Tech/teavision/internal/store"
)

// Request headers identifying the caller.
const (
	HeaderUserEmail  = "X-User-Email"
	HeaderAdminEmail = "X-Admin-Email"
	HeaderModelName  = "X-Model-Name"
)

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// corsMiddleware adds CORS headers, answers preflight requests and records
// request metrics.
func (s *Server) corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", s.corsOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers",
			"Content-Type, Authorization, "+HeaderUserEmail+", "+HeaderAdminEmail+", "+HeaderModelName)
		w.Header().Set("Access-Control-Expose-Headers", "Content-Disposition")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		start := time.Now()
		next(rw, r)
		duration := time.Since(start)

		// route patterns keep {id} style paths from exploding label cardinality
		endpoint := r.Pattern
		if endpoint == "" {
			endpoint = r.URL.Path
		}
		httpRequestsTotal.WithLabelValues(r.Method, endpoint, strconv.Itoa(rw.statusCode)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, endpoint).Observe(duration.Seconds())

		slog.Debug("request served",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rw.statusCode,
			"duration_ms", duration.Milliseconds(),
			"user", r.Header.Get(HeaderUserEmail),
			"admin", r.Header.Get(HeaderAdminEmail))
	}
}

// rateLimitMiddleware enforces rate limiting and quotas per client IP.
func (s *Server) rateLimitMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.rateLimiter == nil {
			next(w, r)
			return
		}

		var dataSize int64
		if r.ContentLength > 0 {
			dataSize = r.ContentLength
		}

		if err := s.rateLimiter.CheckRateLimit(getClientIP(r), dataSize); err != nil {
			var rl *RateLimitError
			var q *QuotaExceededError
			switch {
			case errors.As(err, &rl):
				rateLimitHits.WithLabelValues(rl.Type).Inc()
			case errors.As(err, &q):
				rateLimitHits.WithLabelValues(q.Type).Inc()
			}
			s.handleRateLimitError(w, err)
			return
		}

		next(w, r)
	}
}

// handleRateLimitError writes a 429 describing the exceeded limit.
func (s *Server) handleRateLimitError(w http.ResponseWriter, err error) {
	var rl *RateLimitError
	var q *QuotaExceededError
	switch {
	case errors.As(err, &rl):
		w.Header().Set("X-RateLimit-Type", rl.Type)
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.Limit))
		w.Header().Set("Retry-After", fmt.Sprintf("%.0f", rl.RetryAfter.Seconds()))
		writeJSON(w, http.StatusTooManyRequests, map[string]any{
			"success":     false,
			"error":       "rate_limit_exceeded",
			"type":        rl.Type,
			"limit":       rl.Limit,
			"retry_after": rl.RetryAfter.Seconds(),
			"message":     rl.Error(),
		})
	case errors.As(err, &q):
		w.Header().Set("X-Quota-Type", q.Type)
		w.Header().Set("X-Quota-Limit", strconv.FormatInt(q.Limit, 10))
		w.Header().Set("X-Quota-Used", strconv.FormatInt(q.Used, 10))
		w.Header().Set("X-Quota-Resets", q.Resets.Format(http.TimeFormat))
		writeJSON(w, http.StatusTooManyRequests, map[string]any{
			"success": false,
			"error":   "quota_exceeded",
			"type":    q.Type,
			"limit":   q.Limit,
			"used":    q.Used,
			"resets":  q.Resets.Format(time.RFC3339),
			"message": q.Error(),
		})
	default:
		writeErrorResponse(w, "Rate limiting check failed", http.StatusInternalServerError)
	}
}

type adminKey struct{}

// adminOnly rejects callers whose X-Admin-Email (or admin_email query
// parameter) is not an administrator account.
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		email := r.Header.Get(HeaderAdminEmail)
		if email == "" {
			email = r.URL.Query().Get("admin_email")
		}
		email = store.NormalizeEmail(email)
		if email == "" {
			writeErrorResponse(w, store.ErrForbidden.Error(), http.StatusForbidden)
			return
		}
		if err := s.store.RequireAdmin(r.Context(), email); err != nil {
			s.writeStoreError(w, err)
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), adminKey{}, email)))
	}
}

// adminEmail returns the verified administrator of an adminOnly request.
func adminEmail(r *http.Request) string {
	email, _ := r.Context().Value(adminKey{}).(string)
	return email
}

// userEmail reads the caller's email from the X-User-Email header or the
// user_email query or form field.
func userEmail(r *http.Request) string {
	email := r.Header.Get(HeaderUserEmail)
	if email == "" {
		email = r.FormValue("user_email")
	}
	return store.NormalizeEmail(email)
}

// allowMethods answers 405 unless the request uses one of methods.
func allowMethods(w http.ResponseWriter, r *http.Request, methods ...string) bool {
	if slices.Contains(methods, r.Method) {
		return true
	}
	w.Header().Set("Allow", strings.Join(methods, ", "))
	writeErrorResponse(w, "Method not allowed", http.StatusMethodNotAllowed)
	return false
}

// getClientIP extracts the client IP address from the request.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// writeJSON writes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// writeErrorResponse writes a JSON error response.
func writeErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	writeJSON(w, statusCode, ErrorResponse{Success: false, Error: message})
}

// writeStoreError maps store errors to status codes.
func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeErrorResponse(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, store.ErrInvalidCredentials):
		writeErrorResponse(w, err.Error(), http.StatusUnauthorized)
	case errors.Is(err, store.ErrForbidden):
		writeErrorResponse(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, store.ErrEmailTaken),
		errors.Is(err, store.ErrEmailInUse),
		errors.Is(err, store.ErrMissingCredentials),
		errors.Is(err, store.ErrWeakPassword),
		errors.Is(err, store.ErrSelfDelete),
		errors.Is(err, store.ErrSelfToggle):
		writeErrorResponse(w, err.Error(), http.StatusBadRequest)
	default:
		slog.Error("store operation failed", "error", err)
		writeErrorResponse(w, "Database error: "+err.Error(), http.StatusInternalServerError)
	}
}
