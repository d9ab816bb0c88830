package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/kvstore/fulltext/internal/ingestion"
	"github.com/kvstore/fulltext/internal/ingestion/publisher"
	"github.com/kvstore/fulltext/internal/ingestion/validator"
	apperrors "github.com/kvstore/fulltext/pkg/errors"
	"github.com/kvstore/fulltext/pkg/logger"
)

type Handler struct {
	publisher *publisher.Publisher
	logger    *slog.Logger
}

func New(pub *publisher.Publisher) *Handler {
	return &Handler{
		publisher: pub,
		logger:    slog.Default().With("component", "ingestion-handler"),
	}
}

// Write upserts the record at the request's path, diffs it against the
// previous value in internal/recordstore, and publishes the diff for
// indexing.
func (h *Handler) Write(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)
	path := "/" + r.PathValue("path")

	var req ingestion.WriteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := validator.ValidateWriteRequest(path, &req); err != nil {
		var validationErr *validator.ValidationError
		if errors.As(err, &validationErr) {
			h.writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":  "validation failed",
				"fields": validationErr.Fields,
			})
			return
		}
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.publisher.Write(ctx, path, &req)
	if err != nil {
		statusCode := apperrors.HTTPStatusCode(err)
		log.Error("record write failed", "error", err, "path", path, "status_code", statusCode)
		h.writeError(w, statusCode, "record write failed")
		return
	}
	log.Info("record written", "path", resp.Path, "status", resp.Status)
	h.writeJSON(w, http.StatusAccepted, resp)
}

// Delete removes the record at the request's path and publishes its removal
// for indexing.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)
	path := "/" + r.PathValue("path")
	if r.PathValue("path") == "" {
		h.writeError(w, http.StatusBadRequest, "path is required")
		return
	}

	resp, err := h.publisher.Delete(ctx, path)
	if err != nil {
		statusCode := apperrors.HTTPStatusCode(err)
		log.Error("record delete failed", "error", err, "path", path, "status_code", statusCode)
		h.writeError(w, statusCode, "record delete failed")
		return
	}
	log.Info("record deleted", "path", resp.Path)
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
