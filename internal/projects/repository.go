package projects

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/creators-notebook/backend/internal/models"
)

// Repository is the pgx-backed ProjectStore.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a project repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetByUUID returns a project by id, or nil when absent.
func (r *Repository) GetByUUID(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	const q = `SELECT uuid, title, description, image, image_url, open_to_public, create_date, edit_date
		FROM projects WHERE uuid = $1`
	var p models.Project
	err := r.pool.QueryRow(ctx, q, id).
		Scan(&p.UUID, &p.Title, &p.Description, &p.Image, &p.ImageURL, &p.OpenToPublic, &p.CreateDate, &p.EditDate)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	return &p, nil
}

// CreateWithCreator inserts the project row and the owner's CREATOR bridge
// row in one transaction. No reader can observe a project without its
// CREATOR membership.
func (r *Repository) CreateWithCreator(ctx context.Context, p *models.Project, ownerNo int64) (int64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	const insertProject = `INSERT INTO projects (uuid, title, description, image, image_url, open_to_public, create_date, edit_date)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7)
		RETURNING uuid`
	err = tx.QueryRow(ctx, insertProject,
		p.Title, p.Description, p.Image, p.ImageURL, p.OpenToPublic, p.CreateDate, p.EditDate).
		Scan(&p.UUID)
	if err != nil {
		return 0, fmt.Errorf("insert project: %w", err)
	}

	const insertBridge = `INSERT INTO user_project_bridge (project_uuid, user_no, authority)
		VALUES ($1, $2, $3)
		RETURNING no`
	var bridgeNo int64
	err = tx.QueryRow(ctx, insertBridge, p.UUID, ownerNo, string(models.RoleCreator)).Scan(&bridgeNo)
	if err != nil {
		return 0, fmt.Errorf("insert creator membership: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return bridgeNo, nil
}

// DeleteCascade removes a project with its memberships and characters in
// one transaction. Returns true iff this call deleted the project row;
// under concurrent deletes the loser sees zero rows and gets false.
func (r *Repository) DeleteCascade(ctx context.Context, id uuid.UUID) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM characters WHERE project_uuid = $1`, id); err != nil {
		return false, fmt.Errorf("delete characters: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM user_project_bridge WHERE project_uuid = $1`, id); err != nil {
		return false, fmt.Errorf("delete memberships: %w", err)
	}
	ct, err := tx.Exec(ctx, `DELETE FROM projects WHERE uuid = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete project: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}

// UpdateTitle changes only the title and refreshes the edit date. True iff
// exactly one row matched.
func (r *Repository) UpdateTitle(ctx context.Context, id uuid.UUID, title string, editDate time.Time) (bool, error) {
	const q = `UPDATE projects SET title = $2, edit_date = $3 WHERE uuid = $1`
	ct, err := r.pool.Exec(ctx, q, id, title, editDate)
	if err != nil {
		return false, fmt.Errorf("update title: %w", err)
	}
	return ct.RowsAffected() == 1, nil
}

// UpdateDescription changes only the description and refreshes the edit date.
func (r *Repository) UpdateDescription(ctx context.Context, id uuid.UUID, description string, editDate time.Time) (bool, error) {
	const q = `UPDATE projects SET description = $2, edit_date = $3 WHERE uuid = $1`
	ct, err := r.pool.Exec(ctx, q, id, description, editDate)
	if err != nil {
		return false, fmt.Errorf("update description: %w", err)
	}
	return ct.RowsAffected() == 1, nil
}

// UpdateVisibility flips the public flag and refreshes the edit date.
func (r *Repository) UpdateVisibility(ctx context.Context, id uuid.UUID, openToPublic bool, editDate time.Time) (bool, error) {
	const q = `UPDATE projects SET open_to_public = $2, edit_date = $3 WHERE uuid = $1`
	ct, err := r.pool.Exec(ctx, q, id, openToPublic, editDate)
	if err != nil {
		return false, fmt.Errorf("update visibility: %w", err)
	}
	return ct.RowsAffected() == 1, nil
}
