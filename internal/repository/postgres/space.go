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

type SpaceStore struct {
	pool *pgxpool.Pool
}

func NewSpaceStore(pool *pgxpool.Pool) *SpaceStore {
	return &SpaceStore{pool: pool}
}

func (s *SpaceStore) GetByID(ctx context.Context, spaceID uuid.UUID) (*models.Space, error) {
	query := `
		SELECT id, name, owner_id, created_at
		FROM spaces
		WHERE id = $1`

	var sp models.Space
	err := s.pool.QueryRow(ctx, query, spaceID).Scan(
		&sp.ID,
		&sp.Name,
		&sp.OwnerID,
		&sp.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get space: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT user_id, role
		FROM space_members
		WHERE space_id = $1
		ORDER BY joined_at ASC, user_id ASC`, spaceID)
	if err != nil {
		return nil, fmt.Errorf("list space members: %w", err)
	}
	defer rows.Close()

	sp.Members = make([]models.SpaceMember, 0)
	for rows.Next() {
		var (
			m    models.SpaceMember
			role string
		)
		if err := rows.Scan(&m.UserID, &role); err != nil {
			return nil, fmt.Errorf("scan space member: %w", err)
		}
		m.Role = models.Role(role)
		sp.Members = append(sp.Members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate space members: %w", err)
	}

	return &sp, nil
}
