package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/nyashahama/workplace-wellbeing-backend/internal/assessment"
	"github.com/nyashahama/workplace-wellbeing-backend/internal/store"
)

// ─── CONTEXT KEYS ─────────────────────────────────────────────────────────────

type contextKey string

const ctxKeySessionID contextKey = "session_id"

// TokenHeader carries the session token on session-scoped routes.
const TokenHeader = "X-Session-Token"

// ─── SESSION TOKEN AUTH ───────────────────────────────────────────────────────

// requireSessionToken is chi middleware that checks the X-Session-Token
// header against the session named in the URL.
//
// The token is returned once by POST /api/assessment and kept browser-side.
// On success the verified session id is stored in the request context.
func (s *Server) requireSessionToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessionID, err := uuid.Parse(chi.URLParam(r, "sessionID"))
		if err != nil {
			respondErr(w, http.StatusBadRequest, "invalid session_id")
			return
		}

		token := strings.TrimSpace(r.Header.Get(TokenHeader))
		if token == "" {
			respondErr(w, http.StatusUnauthorized, "missing "+TokenHeader+" header")
			return
		}

		err = s.svc.Authorize(r.Context(), sessionID, token)
		switch {
		case errors.Is(err, store.ErrNotFound):
			// Expired and never-existed sessions look the same to the client.
			respondErr(w, http.StatusNotFound, "session not found; start a new assessment")
			return
		case errors.Is(err, assessment.ErrUnauthorized):
			respondErr(w, http.StatusForbidden, "token does not match session")
			return
		case err != nil:
			s.respondInternalErr(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), ctxKeySessionID, sessionID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// sessionIDFrom returns the id stored by requireSessionToken.
func sessionIDFrom(r *http.Request) uuid.UUID {
	id, _ := r.Context().Value(ctxKeySessionID).(uuid.UUID)
	return id
}

// ─── CORS ─────────────────────────────────────────────────────────────────────

// corsMiddleware handles preflight OPTIONS requests and sets CORS headers.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			next.ServeHTTP(w, r)
			return
		}

		allowed := origin
		if s.cfg.Env == "production" {
			allowed = s.cfg.CORSOrigin
			if allowed == "" {
				allowed = "*"
			}
		}

		w.Header().Set("Access-Control-Allow-Origin", allowed)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+TokenHeader+", X-Request-ID")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// ─── LOGGER MIDDLEWARE ────────────────────────────────────────────────────────

// loggerMiddleware logs each request with method, path, status, and duration.
func (s *Server) loggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			s.logger.Info("http",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}

// ─── RESPONSE HELPERS ─────────────────────────────────────────────────────────

// respond writes a JSON body with the given status code.
func respond(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

// respondErr writes a standard JSON error envelope.
func respondErr(w http.ResponseWriter, status int, message string) {
	respond(w, status, map[string]string{"error": message})
}

// respondInternalErr logs an unexpected error and returns a 500 to the client
// without leaking internal details.
func (s *Server) respondInternalErr(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Error("internal error",
		"error", err,
		"path", r.URL.Path,
		logField(r),
	)
	respondErr(w, http.StatusInternalServerError, "internal server error")
}

// ─── REQUEST PARSING HELPERS ─────────────────────────────────────────────────

// decode JSON-decodes r.Body into dst. Returns false and writes 400 if the
// body is missing, malformed, or too large. Callers should return immediately
// on false.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 64<<10)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		respondErr(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

// logField returns a slog.Attr using the request ID for correlation.
func logField(r *http.Request) slog.Attr {
	return slog.String("request_id", middleware.GetReqID(r.Context()))
}
