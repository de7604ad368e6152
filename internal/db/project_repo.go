package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"photoforge/internal/types"
)

// ProjectRepository persists projects and their images. Every read and
// write is scoped by owner: the user ID is part of the WHERE clause, so a
// project belonging to someone else is indistinguishable from one that does
// not exist.
type ProjectRepository struct {
	db DBTX
}

// NewProjectRepository creates a project repository.
func NewProjectRepository(db DBTX) *ProjectRepository {
	return &ProjectRepository{db: db}
}

// GetByIDAndUser fetches a project owned by the given user.
func (r *ProjectRepository) GetByIDAndUser(ctx context.Context, projectID, userID string) (*types.Project, error) {
	query := `
		SELECT id, user_id, name, created_at, updated_at
		FROM projects
		WHERE id = $1 AND user_id = $2`

	var project types.Project
	err := r.db.QueryRow(ctx, query, projectID, userID).Scan(
		&project.ID,
		&project.UserID,
		&project.Name,
		&project.CreatedAt,
		&project.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundProject, "project not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to fetch project", err)
	}

	return &project, nil
}

// Rename updates a project's name, scoped by owner, and returns the updated
// row.
func (r *ProjectRepository) Rename(ctx context.Context, projectID, userID, name string) (*types.Project, error) {
	query := `
		UPDATE projects
		SET name = $3, updated_at = NOW()
		WHERE id = $1 AND user_id = $2
		RETURNING id, user_id, name, created_at, updated_at`

	var project types.Project
	err := r.db.QueryRow(ctx, query, projectID, userID, name).Scan(
		&project.ID,
		&project.UserID,
		&project.Name,
		&project.CreatedAt,
		&project.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundProject, "project not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to rename project", err)
	}

	return &project, nil
}

// Delete removes a project owned by the given user. Image rows cascade via
// the foreign key.
func (r *ProjectRepository) Delete(ctx context.Context, projectID, userID string) error {
	query := `DELETE FROM projects WHERE id = $1 AND user_id = $2`

	tag, err := r.db.Exec(ctx, query, projectID, userID)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to delete project", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundProject, "project not found", nil)
	}

	return nil
}

// ListImages returns all images of a project, oldest first.
func (r *ProjectRepository) ListImages(ctx context.Context, projectID string) ([]types.Image, error) {
	query := `
		SELECT id, project_id, type, storage_key, created_at
		FROM images
		WHERE project_id = $1
		ORDER BY created_at ASC`

	rows, err := r.db.Query(ctx, query, projectID)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list images", err)
	}
	defer rows.Close()

	var images []types.Image
	for rows.Next() {
		var img types.Image
		if err := rows.Scan(&img.ID, &img.ProjectID, &img.Type, &img.StorageKey, &img.CreatedAt); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan image", err)
		}
		images = append(images, img)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate images", err)
	}

	return images, nil
}

// GetLatestProcessedImage returns the newest processed image of a project,
// or nil when the project has no processed output yet.
func (r *ProjectRepository) GetLatestProcessedImage(ctx context.Context, projectID string) (*types.Image, error) {
	query := `
		SELECT id, project_id, type, storage_key, created_at
		FROM images
		WHERE project_id = $1 AND type = $2
		ORDER BY created_at DESC
		LIMIT 1`

	var img types.Image
	err := r.db.QueryRow(ctx, query, projectID, types.ImageTypeProcessed).Scan(
		&img.ID,
		&img.ProjectID,
		&img.Type,
		&img.StorageKey,
		&img.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to fetch processed image", err)
	}

	return &img, nil
}
