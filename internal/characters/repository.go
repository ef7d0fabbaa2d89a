package characters

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/creators-notebook/backend/internal/models"
)

// Repository handles character persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a characters repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a new character.
func (r *Repository) Create(ctx context.Context, ch *models.Character) error {
	const q = `INSERT INTO characters (uuid, project_uuid, name, data)
		VALUES (gen_random_uuid(), $1, $2, COALESCE($3, '{}'::jsonb))
		RETURNING uuid, data, create_date, edit_date`
	return r.pool.QueryRow(ctx, q, ch.ProjectUUID, ch.Name, ch.Data).
		Scan(&ch.UUID, &ch.Data, &ch.CreateDate, &ch.EditDate)
}

// GetByUUID returns a character by id, or nil when absent.
func (r *Repository) GetByUUID(ctx context.Context, id uuid.UUID) (*models.Character, error) {
	const q = `SELECT uuid, project_uuid, name, data, create_date, edit_date
		FROM characters WHERE uuid = $1`
	var ch models.Character
	err := r.pool.QueryRow(ctx, q, id).
		Scan(&ch.UUID, &ch.ProjectUUID, &ch.Name, &ch.Data, &ch.CreateDate, &ch.EditDate)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get character: %w", err)
	}
	return &ch, nil
}

// Update replaces the character's name and data, refreshing the edit date.
// True iff exactly one row matched.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, name string, data []byte) (bool, error) {
	const q = `UPDATE characters SET name = $2, data = COALESCE($3, data), edit_date = NOW() WHERE uuid = $1`
	ct, err := r.pool.Exec(ctx, q, id, name, data)
	if err != nil {
		return false, fmt.Errorf("update character: %w", err)
	}
	return ct.RowsAffected() == 1, nil
}

// Delete removes a character, reporting whether a row was removed.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	const q = `DELETE FROM characters WHERE uuid = $1`
	ct, err := r.pool.Exec(ctx, q, id)
	if err != nil {
		return false, fmt.Errorf("delete character: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}

// ListByProject returns all characters of a project.
func (r *Repository) ListByProject(ctx context.Context, projectUUID uuid.UUID) ([]models.Character, error) {
	const q = `SELECT uuid, project_uuid, name, data, create_date, edit_date
		FROM characters WHERE project_uuid = $1
		ORDER BY create_date ASC`
	rows, err := r.pool.Query(ctx, q, projectUUID)
	if err != nil {
		return nil, fmt.Errorf("list characters: %w", err)
	}
	defer rows.Close()

	var list []models.Character
	for rows.Next() {
		var ch models.Character
		if err := rows.Scan(&ch.UUID, &ch.ProjectUUID, &ch.Name, &ch.Data, &ch.CreateDate, &ch.EditDate); err != nil {
			return nil, err
		}
		list = append(list, ch)
	}
	return list, rows.Err()
}
