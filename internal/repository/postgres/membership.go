package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lalith-99/huddle/internal/models"
)

type MembershipStore struct {
	pool *pgxpool.Pool
}

func NewMembershipStore(pool *pgxpool.Pool) *MembershipStore {
	return &MembershipStore{pool: pool}
}

func (s *MembershipStore) ListMembers(ctx context.Context, spaceID uuid.UUID) ([]models.Member, error) {
	query := `
		SELECT sm.user_id, u.name, u.username, sm.role, u.avatar
		FROM space_members sm
		JOIN users u ON u.id = sm.user_id
		WHERE sm.space_id = $1
		ORDER BY sm.joined_at ASC, sm.user_id ASC`

	rows, err := s.pool.Query(ctx, query, spaceID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	members := make([]models.Member, 0)
	for rows.Next() {
		var (
			m    models.Member
			role string
		)
		if err := rows.Scan(&m.UserID, &m.Name, &m.Username, &role, &m.Avatar); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		m.Role = models.Role(role)
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate members: %w", err)
	}

	return members, nil
}

func (s *MembershipStore) GetRole(ctx context.Context, spaceID uuid.UUID, userID uuid.UUID) (models.Role, error) {
	query := `
		SELECT role FROM space_members
		WHERE space_id = $1 AND user_id = $2`

	var role string
	err := s.pool.QueryRow(ctx, query, spaceID, userID).Scan(&role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("get member role: %w", err)
	}
	return models.Role(role), nil
}
