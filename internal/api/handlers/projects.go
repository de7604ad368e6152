// This file implements the project endpoints: detail retrieval, rename,
// delete, and export. Every operation re-derives the acting user from the
// session and scopes the project lookup by both project ID and owner ID, so
// a project owned by someone else is indistinguishable from a missing one.
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"photoforge/internal/core"
	"photoforge/internal/types"
)

// defaultExportQuality is applied when the export request omits quality.
const defaultExportQuality = 80

// ProjectStore is the data access contract for project operations, scoped by
// owner on every call.
type ProjectStore interface {
	GetByIDAndUser(ctx context.Context, projectID, userID string) (*types.Project, error)
	Rename(ctx context.Context, projectID, userID, name string) (*types.Project, error)
	Delete(ctx context.Context, projectID, userID string) error
	ListImages(ctx context.Context, projectID string) ([]types.Image, error)
	GetLatestProcessedImage(ctx context.Context, projectID string) (*types.Image, error)
}

// AssetURLBuilder constructs time-limited delivery URLs for stored objects.
// An empty storage key resolves to the placeholder asset.
type AssetURLBuilder interface {
	DeliveryURL(ctx context.Context, key string) (string, error)
}

// ExportEnqueuer hands an export job to the background worker queue.
type ExportEnqueuer interface {
	Enqueue(ctx context.Context, job *types.ExportJob) error
}

// RenameProjectRequest is the request body for PATCH /v1/projects/{id}.
type RenameProjectRequest struct {
	Name string `json:"name"`
}

// ExportProjectRequest is the request body for POST /v1/projects/{id}/export.
// Both fields are optional.
type ExportProjectRequest struct {
	Format  string `json:"format,omitempty"`
	Quality int    `json:"quality,omitempty" validate:"omitempty,min=1,max=100"`
}

// ExportProjectResponse is the export download descriptor. The URL serves
// the most recent processed image (or the placeholder); the converted file
// is produced asynchronously by the export worker.
type ExportProjectResponse struct {
	Success     bool   `json:"success"`
	DownloadURL string `json:"downloadUrl"`
	Message     string `json:"message"`
}

// ProjectDetail is a project plus its images with constructed access URLs.
type ProjectDetail struct {
	*types.Project
	Images []types.Image `json:"images"`
}

// ProjectHandler manages project retrieval, mutation, and export.
type ProjectHandler struct {
	projects  ProjectStore
	assets    AssetURLBuilder
	exporter  ExportEnqueuer
	validator *core.Validator
	audit     WebhookAuditRecorder
	logger    *slog.Logger
}

// NewProjectHandler creates a new ProjectHandler with the provided
// dependencies.
func NewProjectHandler(
	projects ProjectStore,
	assets AssetURLBuilder,
	exporter ExportEnqueuer,
	v *core.Validator,
	audit WebhookAuditRecorder,
	logger *slog.Logger,
) *ProjectHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProjectHandler{
		projects:  projects,
		assets:    assets,
		exporter:  exporter,
		validator: v,
		audit:     audit,
		logger:    logger,
	}
}

// RegisterRoutes mounts the project routes.
func (h *ProjectHandler) RegisterRoutes(r chi.Router) {
	r.Route("/projects/{id}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Patch("/", h.Rename)
		r.Delete("/", h.Delete)
		r.Post("/export", h.Export)
	})
}

// Get handles GET /v1/projects/{id}. Returns the project with its images,
// each carrying a constructed delivery URL. URL construction failures
// degrade gracefully: the image is returned without a URL.
func (h *ProjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	project, ok := h.loadOwnedProject(w, r, actor)
	if !ok {
		return
	}

	images, err := h.projects.ListImages(r.Context(), project.ID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	for i := range images {
		url, err := h.assets.DeliveryURL(r.Context(), images[i].StorageKey)
		if err != nil {
			h.logger.WarnContext(r.Context(), "failed to build image delivery URL",
				"project_id", project.ID,
				"image_id", images[i].ID,
				"error", err,
			)
			continue
		}
		images[i].URL = url
	}

	if images == nil {
		images = []types.Image{}
	}

	core.JSON(w, r, http.StatusOK, ProjectDetail{Project: project, Images: images})
}

// Rename handles PATCH /v1/projects/{id}. The name must be non-empty.
func (h *ProjectHandler) Rename(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	projectID := chi.URLParam(r, "id")

	var req RenameProjectRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}

	if req.Name == "" {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationMissingField,
			"Name is required",
			nil,
		))
		return
	}

	project, err := h.projects.Rename(r.Context(), projectID, actor.UserID, req.Name)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, project)
}

// Delete handles DELETE /v1/projects/{id}. Image rows cascade at the
// storage layer.
func (h *ProjectHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	projectID := chi.URLParam(r, "id")

	if err := h.projects.Delete(r.Context(), projectID, actor.UserID); err != nil {
		core.Error(w, r, err)
		return
	}

	if h.audit != nil {
		h.audit.Record(r.Context(), "project.deleted", actor.UserID, projectID, nil)
	}

	w.WriteHeader(http.StatusNoContent)
}

// Export handles POST /v1/projects/{id}/export.
//
// The response is a download descriptor pointing at the most recent
// processed image (or the placeholder when none exists). The actual format
// conversion runs asynchronously: a job is enqueued for the export worker.
func (h *ProjectHandler) Export(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	project, ok := h.loadOwnedProject(w, r, actor)
	if !ok {
		return
	}

	var req ExportProjectRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}

	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	if req.Format == "" {
		req.Format = string(types.ExportFormatJPEG)
	}
	if !types.ValidExportFormat(req.Format) {
		core.Error(w, r, types.NewAppErrorWithDetails(
			types.ErrCodeValidationFieldFormat,
			"unsupported export format",
			nil,
			map[string]any{"format": req.Format},
		))
		return
	}
	if req.Quality == 0 {
		req.Quality = defaultExportQuality
	}

	image, err := h.projects.GetLatestProcessedImage(r.Context(), project.ID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	var storageKey string
	message := "Export queued; the download link serves the latest processed image."
	if image != nil {
		storageKey = image.StorageKey
	} else {
		message = "No processed image yet; the download link serves a placeholder."
	}

	downloadURL, err := h.assets.DeliveryURL(r.Context(), storageKey)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	job := &types.ExportJob{
		JobID:      "exp_" + uuid.New().String(),
		ProjectID:  project.ID,
		UserID:     actor.UserID,
		StorageKey: storageKey,
		Format:     req.Format,
		Quality:    req.Quality,
		EnqueuedAt: time.Now().UTC(),
	}

	if err := h.exporter.Enqueue(r.Context(), job); err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, ExportProjectResponse{
		Success:     true,
		DownloadURL: downloadURL,
		Message:     message,
	})
}

// loadOwnedProject resolves the {id} URL parameter to a project owned by the
// acting user, writing the error response itself on failure.
func (h *ProjectHandler) loadOwnedProject(w http.ResponseWriter, r *http.Request, actor types.Actor) (*types.Project, bool) {
	projectID := chi.URLParam(r, "id")
	if projectID == "" {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationMissingField,
			"Project ID is required",
			nil,
		))
		return nil, false
	}

	project, err := h.projects.GetByIDAndUser(r.Context(), projectID, actor.UserID)
	if err != nil {
		core.Error(w, r, err)
		return nil, false
	}
	return project, true
}

// requireActor pulls the authenticated Actor from the context, writing a 401
// if the middleware did not attach one.
func requireActor(w http.ResponseWriter, r *http.Request) (types.Actor, bool) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeAuthTokenMissing,
			"Authentication required",
			nil,
		))
		return types.Actor{}, false
	}
	return actor, true
}
