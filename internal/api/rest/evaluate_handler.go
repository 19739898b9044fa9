package rest

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/formhive/abac-core/internal/audit"
)

// evaluateHandler handles POST /v1/evaluate
func (s *Server) evaluateHandler(w http.ResponseWriter, r *http.Request) {
	var req EvaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	if req.Subject.ID == "" {
		WriteError(w, http.StatusBadRequest, "subject.id is required", nil)
		return
	}
	if req.Resource.Type == "" {
		WriteError(w, http.StatusBadRequest, "resource.type is required", nil)
		return
	}
	if req.Action == "" {
		WriteError(w, http.StatusBadRequest, "action is required", nil)
		return
	}

	start := time.Now()
	result, err := s.engine.Evaluate(r.Context(), req.Context())
	if err != nil {
		s.logger.Error("Evaluation failed",
			zap.String("subject_id", req.Subject.ID),
			zap.String("resource_type", req.Resource.Type),
			zap.String("action", req.Action),
			zap.Error(err),
		)
		// A store failure is a server error, never an implicit allow
		WriteError(w, http.StatusServiceUnavailable, "Evaluation failed", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	WriteJSON(w, http.StatusOK, EvaluateResponse{
		Allowed:   result.Allowed,
		DeniedBy:  result.DeniedBy,
		AllowedBy: result.AllowedBy,
		Metadata: &ResponseMetadata{
			DurationMs: float64(time.Since(start).Microseconds()) / 1000.0,
			RequestID:  requestID(r),
			Timestamp:  time.Now(),
		},
	})
}

// filterFieldsHandler handles POST /v1/fields/filter
func (s *Server) filterFieldsHandler(w http.ResponseWriter, r *http.Request) {
	var req FilterFieldsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	if req.Subject.ID == "" {
		WriteError(w, http.StatusBadRequest, "subject.id is required", nil)
		return
	}
	if req.Resource.Type == "" {
		WriteError(w, http.StatusBadRequest, "resource.type is required", nil)
		return
	}

	start := time.Now()
	fields, err := s.engine.FilterFields(r.Context(), req.Context(), req.Fields)
	if err != nil {
		s.logger.Error("Field filtering failed",
			zap.String("subject_id", req.Subject.ID),
			zap.String("resource_type", req.Resource.Type),
			zap.Error(err),
		)
		WriteError(w, http.StatusServiceUnavailable, "Field filtering failed", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	WriteJSON(w, http.StatusOK, FilterFieldsResponse{
		Fields:  fields,
		Removed: len(req.Fields) - len(fields),
		Metadata: &ResponseMetadata{
			DurationMs: float64(time.Since(start).Microseconds()) / 1000.0,
			RequestID:  requestID(r),
			Timestamp:  time.Now(),
		},
	})
}

// invalidateCacheHandler handles POST /v1/cache/invalidate
func (s *Server) invalidateCacheHandler(w http.ResponseWriter, r *http.Request) {
	s.engine.InvalidateCache(r.Context())
	WriteJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

func requestID(r *http.Request) string {
	if id, ok := r.Context().Value(audit.RequestIDKey).(string); ok {
		return id
	}
	return ""
}
