package projects

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/creators-notebook/backend/internal/models"
)

const pgUniqueViolation = "23505"

// MembershipRepository is the pgx-backed MembershipStore over the
// user_project_bridge table.
type MembershipRepository struct {
	pool *pgxpool.Pool
}

// NewMembershipRepository creates a membership repository.
func NewMembershipRepository(pool *pgxpool.Pool) *MembershipRepository {
	return &MembershipRepository{pool: pool}
}

// Find returns the membership for an exact (project, user) pair, or nil
// when no relationship exists.
func (r *MembershipRepository) Find(ctx context.Context, projectUUID uuid.UUID, userNo int64) (*models.Membership, error) {
	const q = `SELECT no, project_uuid, user_no, authority, created_at
		FROM user_project_bridge WHERE project_uuid = $1 AND user_no = $2`
	var m models.Membership
	err := r.pool.QueryRow(ctx, q, projectUUID, userNo).
		Scan(&m.No, &m.ProjectUUID, &m.UserNo, &m.Authority, &m.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find membership: %w", err)
	}
	return &m, nil
}

// ListForUser returns every project the user holds a membership on, joined
// with the membership's role and bridge number.
func (r *MembershipRepository) ListForUser(ctx context.Context, userNo int64) ([]models.ProjectWithRole, error) {
	const q = `SELECT p.uuid, p.title, p.description, p.image, p.image_url, p.open_to_public, p.create_date, p.edit_date,
			b.authority, b.no
		FROM user_project_bridge b
		INNER JOIN projects p ON p.uuid = b.project_uuid
		WHERE b.user_no = $1
		ORDER BY p.edit_date DESC`
	rows, err := r.pool.Query(ctx, q, userNo)
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	defer rows.Close()

	var list []models.ProjectWithRole
	for rows.Next() {
		var pr models.ProjectWithRole
		if err := rows.Scan(&pr.UUID, &pr.Title, &pr.Description, &pr.Image, &pr.ImageURL, &pr.OpenToPublic, &pr.CreateDate, &pr.EditDate,
			&pr.Authority, &pr.BridgeNo); err != nil {
			return nil, err
		}
		list = append(list, pr)
	}
	return list, rows.Err()
}

// Create inserts a membership. A duplicate (project, user) pair fails with
// ErrMembershipExists; the unique index on the bridge table backs this.
func (r *MembershipRepository) Create(ctx context.Context, projectUUID uuid.UUID, userNo int64, role models.Role) (*models.Membership, error) {
	const q = `INSERT INTO user_project_bridge (project_uuid, user_no, authority)
		VALUES ($1, $2, $3)
		RETURNING no, created_at`
	m := models.Membership{ProjectUUID: projectUUID, UserNo: userNo, Authority: role}
	err := r.pool.QueryRow(ctx, q, projectUUID, userNo, string(role)).Scan(&m.No, &m.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, ErrMembershipExists
		}
		return nil, fmt.Errorf("create membership: %w", err)
	}
	return &m, nil
}

// Delete removes one membership, reporting whether a row was removed.
func (r *MembershipRepository) Delete(ctx context.Context, projectUUID uuid.UUID, userNo int64) (bool, error) {
	const q = `DELETE FROM user_project_bridge WHERE project_uuid = $1 AND user_no = $2`
	ct, err := r.pool.Exec(ctx, q, projectUUID, userNo)
	if err != nil {
		return false, fmt.Errorf("delete membership: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}

// DeleteForProject removes every membership of a project. Idempotent.
func (r *MembershipRepository) DeleteForProject(ctx context.Context, projectUUID uuid.UUID) error {
	const q = `DELETE FROM user_project_bridge WHERE project_uuid = $1`
	if _, err := r.pool.Exec(ctx, q, projectUUID); err != nil {
		return fmt.Errorf("delete memberships: %w", err)
	}
	return nil
}

// ListForProject returns members of a project with user details.
func (r *MembershipRepository) ListForProject(ctx context.Context, projectUUID uuid.UUID) ([]models.Member, error) {
	const q = `SELECT b.no, b.user_no, u.email, u.nickname, b.authority, b.created_at
		FROM user_project_bridge b
		INNER JOIN users u ON u.no = b.user_no
		WHERE b.project_uuid = $1
		ORDER BY b.created_at ASC`
	rows, err := r.pool.Query(ctx, q, projectUUID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var list []models.Member
	for rows.Next() {
		var m models.Member
		if err := rows.Scan(&m.No, &m.UserNo, &m.Email, &m.Nickname, &m.Authority, &m.AddedAt); err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	return list, rows.Err()
}
