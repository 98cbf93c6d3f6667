// internal/handlers/import.go
package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/binwise/binwise-be/internal/adapters/storage"
	"github.com/binwise/binwise-be/internal/core/domain"
	"github.com/binwise/binwise-be/internal/core/services"
	"github.com/binwise/binwise-be/internal/workers"
)

// ImportHandler handles bulk import operations
type ImportHandler struct {
	asynqClient *asynq.Client
	importer    *services.ImportService
	storage     storage.StorageClient
	logger      *slog.Logger
	maxFileSize int64
	uploadDir   string
}

// NewImportHandler creates a new import handler
func NewImportHandler(
	asynqClient *asynq.Client,
	importer *services.ImportService,
	storageClient storage.StorageClient,
	logger *slog.Logger,
	maxFileSize int64,
	uploadDir string,
) *ImportHandler {
	return &ImportHandler{
		asynqClient: asynqClient,
		importer:    importer,
		storage:     storageClient,
		logger:      logger.With(slog.String("handler", "import")),
		maxFileSize: maxFileSize,
		uploadDir:   uploadDir,
	}
}

// Upload handles POST /api/v1/imports. The file is staged locally and in
// object storage, then a background task parses it and prepares the job.
func (h *ImportHandler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	orgID, err := organizationID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Missing or invalid organization ID")
		return
	}

	if err := r.ParseMultipartForm(h.maxFileSize); err != nil {
		respondError(w, http.StatusBadRequest, "Failed to parse form data")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "File is required")
		return
	}
	defer file.Close()

	if header.Size > h.maxFileSize {
		respondError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("File exceeds the %d byte limit", h.maxFileSize))
		return
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if ext != ".csv" && ext != ".xlsx" {
		respondError(w, http.StatusBadRequest, "Only CSV and XLSX files are supported")
		return
	}

	policy := domain.DuplicatePolicy(r.FormValue("duplicate_policy"))
	if policy == "" {
		policy = domain.PolicySkip
	}
	if !policy.Valid() {
		respondError(w, http.StatusBadRequest,
			"duplicate_policy must be one of skip, add_to_stock, update")
		return
	}

	if err := os.MkdirAll(h.uploadDir, 0o755); err != nil {
		h.logger.ErrorContext(ctx, "failed to create upload directory",
			slog.String("error", err.Error()))
		respondError(w, http.StatusInternalServerError, "Failed to prepare upload")
		return
	}

	jobID := uuid.New()
	tempFile := filepath.Join(h.uploadDir, fmt.Sprintf("%s_%s", jobID, header.Filename))
	dst, err := os.Create(tempFile)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to create temp file",
			slog.String("error", err.Error()))
		respondError(w, http.StatusInternalServerError, "Failed to save upload")
		return
	}

	if _, err := io.Copy(dst, file); err != nil {
		dst.Close()
		os.Remove(tempFile)
		h.logger.ErrorContext(ctx, "failed to save file",
			slog.String("error", err.Error()))
		respondError(w, http.StatusInternalServerError, "Failed to save upload")
		return
	}
	dst.Close()

	// The object store copy lets a worker on another host pick the task up.
	storageKey := fmt.Sprintf("imports/%s/%s_%s", orgID, jobID, header.Filename)
	if src, err := os.Open(tempFile); err == nil {
		if _, upErr := h.storage.Upload(ctx, storageKey, src, header.Header.Get("Content-Type")); upErr != nil {
			h.logger.WarnContext(ctx, "failed to stage upload in object storage",
				slog.String("storage_key", storageKey),
				slog.String("error", upErr.Error()))
			storageKey = ""
		}
		src.Close()
	}

	payload := workers.ImportFilePayload{
		JobID:          jobID,
		OrganizationID: orgID,
		FileName:       header.Filename,
		FilePath:       tempFile,
		StorageKey:     storageKey,
		Policy:         string(policy),
		RequestedBy:    r.FormValue("requested_by"),
	}

	b, err := json.Marshal(payload)
	if err != nil {
		os.Remove(tempFile)
		h.logger.ErrorContext(ctx, "failed to marshal import payload",
			slog.String("error", err.Error()))
		respondError(w, http.StatusInternalServerError, "Failed to queue import job")
		return
	}

	info, err := h.asynqClient.EnqueueContext(ctx, asynq.NewTask(workers.TypeImportFile, b),
		asynq.Queue("default"),
		asynq.MaxRetry(3),
		asynq.Retention(24*time.Hour))
	if err != nil {
		os.Remove(tempFile)
		h.logger.ErrorContext(ctx, "failed to enqueue import task",
			slog.String("error", err.Error()))
		respondError(w, http.StatusInternalServerError, "Failed to queue import job")
		return
	}

	h.logger.InfoContext(ctx, "import queued",
		slog.String("job_id", jobID.String()),
		slog.String("task_id", info.ID),
		slog.String("file_name", header.Filename),
		slog.String("duplicate_policy", string(policy)))

	respondJSON(w, http.StatusAccepted, map[string]interface{}{
		"job_id":  jobID,
		"status":  "queued",
		"message": "Import has been queued for processing",
	})
}

// Status handles GET /api/v1/imports/{jobId}
func (h *ImportHandler) Status(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	jobID, err := uuid.Parse(r.PathValue("jobId"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid job ID format")
		return
	}

	job, err := h.importer.Status(ctx, jobID)
	if err != nil {
		respondDomainError(w, err, "Failed to get import status")
		return
	}

	respondJSON(w, http.StatusOK, job)
}

// Confirm handles POST /api/v1/imports/{jobId}/confirm. It accepts the
// discovered locations and queues the commit phase.
func (h *ImportHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	jobID, err := uuid.Parse(r.PathValue("jobId"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid job ID format")
		return
	}

	job, err := h.importer.Confirm(ctx, jobID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to confirm import job",
			slog.String("job_id", jobID.String()),
			slog.String("error", err.Error()))
		respondDomainError(w, err, "Failed to confirm import job")
		return
	}

	b, err := json.Marshal(workers.ImportCommitPayload{JobID: jobID})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to queue import commit")
		return
	}

	if _, err := h.asynqClient.EnqueueContext(ctx, asynq.NewTask(workers.TypeImportCommit, b),
		asynq.Queue("default"),
		asynq.MaxRetry(3),
		asynq.Retention(24*time.Hour)); err != nil {
		h.logger.ErrorContext(ctx, "failed to enqueue import commit",
			slog.String("job_id", jobID.String()),
			slog.String("error", err.Error()))
		respondError(w, http.StatusInternalServerError, "Failed to queue import commit")
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]interface{}{
		"job_id": jobID,
		"status": job.Status,
	})
}

// Cancel handles POST /api/v1/imports/{jobId}/cancel
func (h *ImportHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	jobID, err := uuid.Parse(r.PathValue("jobId"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid job ID format")
		return
	}

	if err := h.importer.Cancel(ctx, jobID); err != nil {
		h.logger.ErrorContext(ctx, "failed to cancel import job",
			slog.String("job_id", jobID.String()),
			slog.String("error", err.Error()))
		respondDomainError(w, err, "Failed to cancel import job")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"job_id": jobID,
		"status": domain.ImportCancelled,
	})
}
