package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lalith-99/huddle/internal/models"
	"github.com/lalith-99/huddle/internal/repository"
)

// uniqueViolation is the Postgres SQLSTATE for a unique index conflict.
const uniqueViolation = "23505"

type ChannelStore struct {
	pool *pgxpool.Pool
}

func NewChannelStore(pool *pgxpool.Pool) *ChannelStore {
	return &ChannelStore{pool: pool}
}

func (s *ChannelStore) Create(ctx context.Context, spaceID uuid.UUID, name, description string) (*models.Channel, error) {
	query := `
		INSERT INTO channels (space_id, name, description)
		VALUES ($1, $2, $3)
		RETURNING id, space_id, name, description, created_at`

	var ch models.Channel
	err := s.pool.QueryRow(ctx, query, spaceID, name, description).Scan(
		&ch.ID,
		&ch.SpaceID,
		&ch.Name,
		&ch.Description,
		&ch.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, repository.ErrDuplicateName
		}
		return nil, fmt.Errorf("insert channel: %w", err)
	}
	return &ch, nil
}

func (s *ChannelStore) GetByID(ctx context.Context, channelID uuid.UUID) (*models.Channel, error) {
	query := `
		SELECT id, space_id, name, description, created_at
		FROM channels
		WHERE id = $1`

	var ch models.Channel
	err := s.pool.QueryRow(ctx, query, channelID).Scan(
		&ch.ID,
		&ch.SpaceID,
		&ch.Name,
		&ch.Description,
		&ch.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get channel: %w", err)
	}
	return &ch, nil
}

func (s *ChannelStore) ListBySpace(ctx context.Context, spaceID uuid.UUID) ([]models.Channel, error) {
	// id breaks ties so two channels created in the same instant keep a
	// stable order across reads.
	query := `
		SELECT id, space_id, name, description, created_at
		FROM channels
		WHERE space_id = $1
		ORDER BY created_at ASC, id ASC`

	rows, err := s.pool.Query(ctx, query, spaceID)
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	defer rows.Close()

	channels := make([]models.Channel, 0)
	for rows.Next() {
		var ch models.Channel
		if err := rows.Scan(
			&ch.ID,
			&ch.SpaceID,
			&ch.Name,
			&ch.Description,
			&ch.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan channel: %w", err)
		}
		channels = append(channels, ch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate channels: %w", err)
	}

	return channels, nil
}

func (s *ChannelStore) Update(ctx context.Context, channelID uuid.UUID, name, description string) (*models.Channel, error) {
	query := `
		UPDATE channels
		SET name = $2, description = $3
		WHERE id = $1
		RETURNING id, space_id, name, description, created_at`

	var ch models.Channel
	err := s.pool.QueryRow(ctx, query, channelID, name, description).Scan(
		&ch.ID,
		&ch.SpaceID,
		&ch.Name,
		&ch.Description,
		&ch.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		if isUniqueViolation(err) {
			return nil, repository.ErrDuplicateName
		}
		return nil, fmt.Errorf("update channel: %w", err)
	}
	return &ch, nil
}

// Delete removes a channel unless it is the last one in its space.
//
// Why lock the space row instead of relying on the count alone? Two admins
// deleting the last two channels at the same moment would each count two
// rows under READ COMMITTED, both pass the check, and leave the space empty.
// SELECT ... FOR UPDATE on the space serializes deletes per space while
// leaving other spaces untouched, and it is cheaper than running the whole
// transaction at SERIALIZABLE and retrying on conflicts.
func (s *ChannelStore) Delete(ctx context.Context, channelID uuid.UUID) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin delete channel: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var spaceID uuid.UUID
	err = tx.QueryRow(ctx, `SELECT space_id FROM channels WHERE id = $1`, channelID).Scan(&spaceID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return fmt.Errorf("find channel space: %w", err)
	}

	if _, err := tx.Exec(ctx, `SELECT 1 FROM spaces WHERE id = $1 FOR UPDATE`, spaceID); err != nil {
		return fmt.Errorf("lock space: %w", err)
	}

	var remaining int
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM channels WHERE space_id = $1`, spaceID).Scan(&remaining); err != nil {
		return fmt.Errorf("count channels: %w", err)
	}
	if remaining <= 1 {
		return repository.ErrLastChannel
	}

	if _, err := tx.Exec(ctx, `DELETE FROM channels WHERE id = $1`, channelID); err != nil {
		return fmt.Errorf("delete channel: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit delete channel: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
