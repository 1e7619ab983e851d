package document

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"docsage/internal/middleware"
)

var validExts = map[string]bool{
	".pdf": true, ".doc": true, ".docx": true, ".xls": true, ".xlsx": true,
	".txt": true, ".md": true, ".text": true,
	".jpg": true, ".jpeg": true, ".png": true, ".tiff": true,
}

type Handler struct {
	service   *Service
	uploadDir string
	maxBytes  int64
}

func NewHandler(service *Service, uploadDir string, maxUploadMB int) *Handler {
	return &Handler{
		service:   service,
		uploadDir: uploadDir,
		maxBytes:  int64(maxUploadMB) << 20,
	}
}

// UploadResult reports the outcome for one file in a multi-file upload.
type UploadResult struct {
	ID               string   `json:"id,omitempty"`
	OriginalFilename string   `json:"original_filename"`
	Status           string   `json:"status"`
	Category         string   `json:"category,omitempty"`
	StoredChunks     int      `json:"stored_chunks,omitempty"`
	FailedSteps      []string `json:"failed_steps,omitempty"`
	Error            string   `json:"error,omitempty"`
}

// Upload accepts one or more files under the "files" form field, registers
// each one, and runs the ingestion pipeline synchronously per file. A failure
// on one file does not abort the rest.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)

	if err := r.ParseMultipartForm(h.maxBytes); err != nil {
		h.writeError(r.Context(), w, "BAD_REQUEST", "File too large", http.StatusBadRequest)
		return
	}

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		h.writeError(r.Context(), w, "BAD_REQUEST", "No files provided", http.StatusBadRequest)
		return
	}

	if err := os.MkdirAll(h.uploadDir, 0o750); err != nil {
		slog.ErrorContext(r.Context(), "failed to create upload directory", "error", err, "path", filepath.Clean(h.uploadDir))
		h.writeError(r.Context(), w, "INTERNAL_ERROR", "Failed to create upload directory", http.StatusInternalServerError)
		return
	}

	results := make([]UploadResult, 0, len(files))
	for _, header := range files {
		results = append(results, h.processOne(r.Context(), header))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": results}); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) processOne(ctx context.Context, header *multipart.FileHeader) UploadResult {
	res := UploadResult{OriginalFilename: header.Filename, Status: "failed"}

	// Extension matching is case-insensitive, like the extractor selection.
	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !validExts[ext] {
		res.Error = "Unsupported file type"
		return res
	}

	file, err := header.Open()
	if err != nil {
		res.Error = "Unable to read file"
		return res
	}
	defer file.Close()

	filename := fmt.Sprintf("%s_%s", uuid.New().String(), filepath.Base(header.Filename))
	path := filepath.Clean(filepath.Join(h.uploadDir, filename))

	dst, err := os.Create(path) // #nosec G304 -- path is constructed from UUID + sanitized basename
	if err != nil {
		slog.ErrorContext(ctx, "failed to create file", "error", err, "path", path)
		res.Error = "Failed to save file"
		return res
	}
	defer dst.Close()

	hash := sha256.New()
	mw := io.MultiWriter(dst, hash)
	if _, err := io.Copy(mw, file); err != nil {
		res.Error = "Failed to write file"
		return res
	}
	fileHash := fmt.Sprintf("%x", hash.Sum(nil))

	doc, err := h.service.Register(ctx, path, header.Filename, fileHash)
	if err != nil {
		if removeErr := os.Remove(path); removeErr != nil {
			slog.WarnContext(ctx, "failed to clean up uploaded file", "error", removeErr, "path", filepath.Clean(path))
		}
		if err.Error() == "Duplicate detected" {
			res.Status = "duplicate"
			res.Error = err.Error()
			return res
		}
		slog.ErrorContext(ctx, "failed to register document", "error", err, "filename", header.Filename)
		res.Error = "Internal Server Error"
		return res
	}
	res.ID = doc.ID

	result, err := h.service.Process(ctx, doc)
	if err != nil {
		slog.ErrorContext(ctx, "failed to record pipeline outcome", "error", err, "document_id", doc.ID)
		res.Error = "Internal Server Error"
		return res
	}

	res.Status = doc.Status
	res.Category = doc.Category
	res.StoredChunks = doc.StoredChunks
	res.FailedSteps = result.FailedSteps()
	return res
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	docs, err := h.service.List(r.Context())
	if err != nil {
		h.writeError(r.Context(), w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
		return
	}

	// Ensure we return [] instead of null for empty list
	if docs == nil {
		docs = []Document{}
	}

	w.Header().Set("Content-Type", "application/json")
	resp := map[string]interface{}{
		"data": docs,
		"meta": map[string]int{"count": len(docs)},
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	doc, err := h.service.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			h.writeError(r.Context(), w, "NOT_FOUND", "Document not found", http.StatusNotFound)
			return
		}
		h.writeError(r.Context(), w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": doc}); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.service.Delete(r.Context(), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			h.writeError(r.Context(), w, "NOT_FOUND", "Document not found", http.StatusNotFound)
			return
		}
		h.writeError(r.Context(), w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) Reindex(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.service.Reindex(r.Context(), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			h.writeError(r.Context(), w, "NOT_FOUND", "Document not found", http.StatusNotFound)
			return
		}
		h.writeError(r.Context(), w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusAccepted)
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
