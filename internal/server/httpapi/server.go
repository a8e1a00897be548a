// Package httpapi exposes the worklog service over JSON HTTP. Handlers stay
// thin: parse the request, call the service, map errors to status codes.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/worklog/internal/common"
	"github.com/dmitrijs2005/worklog/internal/logging"
	"github.com/dmitrijs2005/worklog/internal/server/auth"
	"github.com/dmitrijs2005/worklog/internal/server/services"
)

// Server holds the HTTP handler dependencies.
type Server struct {
	service   *services.WorklogService
	secretKey []byte
	logger    logging.Logger
}

// NewServer constructs the HTTP layer over the worklog service.
func NewServer(service *services.WorklogService, secretKey []byte, logger logging.Logger) *Server {
	return &Server{service: service, secretKey: secretKey, logger: logger}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/dashboard", s.withAuth(s.handleDashboard))
	mux.HandleFunc("GET /api/worklogs", s.withAuth(s.handleList))
	mux.HandleFunc("POST /api/worklogs", s.withAuth(s.handleCreate))
	mux.HandleFunc("GET /api/worklogs/{id}", s.withAuth(s.handleGet))
	mux.HandleFunc("PUT /api/worklogs/{id}", s.withAuth(s.handleUpdate))
	mux.HandleFunc("DELETE /api/worklogs/{id}", s.withAuth(s.handleDelete))
	mux.HandleFunc("GET /api/attachments/{id}/download", s.withAuth(s.handleDownload))
	return mux
}

// ownerHandler is a handler that has already resolved the caller's owner id.
type ownerHandler func(w http.ResponseWriter, r *http.Request, ownerID string)

// withAuth resolves the bearer token into an owner id or rejects the request.
func (s *Server) withAuth(next ownerHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			writeJSONError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		ownerID, err := auth.GetUserIDFromToken(strings.TrimSpace(token), s.secretKey)
		if err != nil {
			if errors.Is(err, common.ErrTokenExpired) {
				writeJSONError(w, http.StatusUnauthorized, "token expired")
				return
			}
			writeJSONError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		next(w, r, ownerID)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeError maps service errors onto HTTP status codes. Unclassified errors
// become opaque 500s; their details go to the log only.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, common.ErrValidation):
		writeJSONError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, common.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, "not found")
	case errors.Is(err, common.ErrForbidden):
		writeJSONError(w, http.StatusForbidden, "forbidden")
	default:
		s.logger.Error(r.Context(), "request failed",
			"method", r.Method, "path", r.URL.Path, "error", err.Error())
		writeJSONError(w, http.StatusInternalServerError, "internal error")
	}
}
