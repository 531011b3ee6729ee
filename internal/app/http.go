package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"catchanno/api/internal/auth"
	"catchanno/api/internal/catcha"
	"catchanno/api/internal/query"
	"catchanno/api/internal/util"
)

// FormatHeader selects the output format for reads and search.
const FormatHeader = "X-Catch-Output-Format"

type HTTPServer struct {
	service    *Service
	jwtSecret  []byte
	corsOrigin string
}

func NewHTTPServer(service *Service, jwtSecret []byte, corsOrigin string) *HTTPServer {
	return &HTTPServer{service: service, jwtSecret: jwtSecret, corsOrigin: corsOrigin}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeJSON(w, http.StatusNoContent, map[string]any{})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := "ready"
		statusCode := http.StatusOK
		checks := map[string]any{
			"database": map[string]any{"status": "ok"},
		}

		if err := s.service.Ping(ctx); err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks["database"] = map[string]any{
				"status": "error",
				"error":  err.Error(),
			}
		}

		writeJSON(w, statusCode, map[string]any{
			"ok":     status == "ready",
			"status": status,
			"checks": checks,
		})
		return
	}

	caller, ok := s.callerFromRequest(w, r)
	if !ok {
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/anno/search" {
		s.handleSearch(w, r, caller)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/anno/stash" {
		s.handleStash(w, r, caller)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/anno" {
		s.handleCreate(w, r, caller, uuid.NewString())
		return
	}

	parts := splitPath(r.URL.Path)
	if len(parts) == 3 && parts[0] == "api" && parts[1] == "anno" {
		annoID := parts[2]
		switch r.Method {
		case http.MethodGet, http.MethodHead:
			s.handleRead(w, r, caller, annoID)
		case http.MethodPost:
			s.handleCreate(w, r, caller, annoID)
		case http.MethodPut:
			s.handleUpdate(w, r, caller, annoID)
		case http.MethodDelete:
			s.handleDelete(w, r, caller, annoID)
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleCreate(w http.ResponseWriter, r *http.Request, caller Caller, annoID string) {
	if !s.requireUser(w, caller) {
		return
	}
	raw, err := readBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	anno, err := s.service.CreateAnnotation(r.Context(), caller, annoID, raw)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	payload, err := s.renderForRequest(r, anno)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	w.Header().Set("Location", "/api/anno/"+anno.ID)
	writeJSON(w, http.StatusOK, payload)
}

func (s *HTTPServer) handleRead(w http.ResponseWriter, r *http.Request, caller Caller, annoID string) {
	anno, err := s.service.ReadAnnotation(r.Context(), caller, annoID)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	payload, err := s.renderForRequest(r, anno)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	if r.Method == http.MethodHead {
		w.WriteHeader(http.StatusOK)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *HTTPServer) handleUpdate(w http.ResponseWriter, r *http.Request, caller Caller, annoID string) {
	if !s.requireUser(w, caller) {
		return
	}
	raw, err := readBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	anno, err := s.service.UpdateAnnotation(r.Context(), caller, annoID, raw)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	payload, err := s.renderForRequest(r, anno)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	w.Header().Set("Location", "/api/anno/"+anno.ID)
	writeJSON(w, http.StatusOK, payload)
}

func (s *HTTPServer) handleDelete(w http.ResponseWriter, r *http.Request, caller Caller, annoID string) {
	if !s.requireUser(w, caller) {
		return
	}
	anno, err := s.service.DeleteAnnotation(r.Context(), caller, annoID)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	payload, err := s.renderForRequest(r, anno)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request, caller Caller) {
	params := query.ParseValues(r.URL.Query())
	result, err := s.service.SearchAnnotations(r.Context(), caller, params, r.Header.Get(FormatHeader))
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	if r.Method == http.MethodHead {
		w.WriteHeader(http.StatusOK)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *HTTPServer) handleStash(w http.ResponseWriter, r *http.Request, caller Caller) {
	if !s.requireUser(w, caller) {
		return
	}
	raw, err := readBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}

	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "[") {
		var records []json.RawMessage
		if err := json.Unmarshal(raw, &records); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", "body must be a JSON array of annotations", nil)
			return
		}
		results := s.service.ImportAnnotations(r.Context(), caller, records)
		writeJSON(w, http.StatusOK, map[string]any{"total": len(results), "results": results})
		return
	}

	var body struct {
		Object string `json:"object"`
	}
	if err := json.Unmarshal(raw, &body); err != nil || body.Object == "" {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "body must be an annotation array or {\"object\": name}", nil)
		return
	}
	results, err := s.service.ImportFromStash(r.Context(), caller, body.Object)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"total": len(results), "results": results})
}

func (s *HTTPServer) renderForRequest(r *http.Request, anno *catcha.Annotation) (any, error) {
	format := r.Header.Get(FormatHeader)
	if format == "" {
		format = FormatCatchAnno
	}
	return RenderAnnotation(anno, format)
}

// callerFromRequest resolves the bearer token into a caller. No token
// means anonymous; a token that fails verification is rejected outright.
func (s *HTTPServer) callerFromRequest(w http.ResponseWriter, r *http.Request) (Caller, bool) {
	token := bearerToken(r)
	if token == "" {
		return Caller{Anonymous: true}, true
	}
	claims, err := auth.ParseToken(s.jwtSecret, token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return Caller{}, false
	}
	return Caller{
		UserID:    claims.UserID,
		Name:      claims.DisplayName,
		Overrides: claims.Override,
	}, true
}

func (s *HTTPServer) requireUser(w http.ResponseWriter, caller Caller) bool {
	if caller.Anonymous {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return false
	}
	return true
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = util.NewID("")
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		log.Printf(`{"request_id":"%s","method":"%s","path":"%s","status":%d,"duration_ms":%d}`,
			requestID,
			r.Method,
			r.URL.Path,
			writer.status,
			time.Since(started).Milliseconds(),
		)
	})
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID, "+FormatHeader)
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func readBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, fmt.Errorf("missing request body")
	}
	defer r.Body.Close()
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, fmt.Errorf("read request body: %w", err)
	}
	return raw, nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrExpiredToken) {
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
