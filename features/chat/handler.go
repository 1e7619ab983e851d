package chat

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"docsage/internal/middleware"
	"docsage/internal/pipeline"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type chatRequest struct {
	Query    string `json:"query"`
	ThreadID string `json:"thread_id"`
}

type chatResponse struct {
	Answer     string               `json:"answer"`
	References []pipeline.Reference `json:"references"`
	ThreadID   string               `json:"thread_id"`
}

func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", "Query is required", http.StatusBadRequest)
		return
	}

	answer, refs, threadID, err := h.service.Answer(r.Context(), req.Query, req.ThreadID)
	if err != nil {
		slog.ErrorContext(r.Context(), "chat turn failed", "error", err, "thread_id", threadID)
		h.writeError(r.Context(), w, "GENERATION_FAILED", "Failed to generate an answer", http.StatusBadGateway)
		return
	}

	if refs == nil {
		refs = []pipeline.Reference{}
	}

	w.Header().Set("Content-Type", "application/json")
	resp := map[string]interface{}{
		"data": chatResponse{Answer: answer, References: refs, ThreadID: threadID},
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
		"correlationId": middleware.GetCorrelationID(ctx),
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}
