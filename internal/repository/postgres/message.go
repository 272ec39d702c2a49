package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lalith-99/huddle/internal/models"
	"github.com/lalith-99/huddle/internal/repository"
)

type MessageStore struct {
	pool *pgxpool.Pool
}

func NewMessageStore(pool *pgxpool.Pool) *MessageStore {
	return &MessageStore{pool: pool}
}

// messageSelect reads a message together with its sender profile and the
// current state of the message it replies to. UUID arrays come back as
// text[] and are parsed in scanMessage.
const messageSelect = `
	SELECT m.id, m.channel_id, m.sender_id, u.name, u.avatar, m.type, m.body,
	       m.mentions::text[], m.mention_everyone, m.mention_roles, m.attachments,
	       m.reply_to_id, m.forwarded_from_channel, COALESCE(m.client_id, ''),
	       m.edited_at, m.deleted_at, m.deleted_by_role, m.created_at,
	       r.id, ru.name, r.body, r.deleted_at, r.deleted_by_role
	FROM messages m
	JOIN users u ON u.id = m.sender_id
	LEFT JOIN messages r ON r.id = m.reply_to_id
	LEFT JOIN users ru ON ru.id = r.sender_id`

func (s *MessageStore) Create(ctx context.Context, channelID uuid.UUID, msg repository.NewMessage) (*models.Message, bool, error) {
	// Messages use bigserial, so Postgres generates the ID. A conflict on
	// (sender_id, client_id) means this is a retry of a send that already
	// landed; DO NOTHING returns no row and we look the first one up.
	//
	// Why not ON CONFLICT DO UPDATE ... RETURNING? It would return the old
	// row either way and hide whether this call wrote it, and it would bump
	// the row's xmin on every retry. DO NOTHING plus a lookup keeps retries
	// read-only and lets the caller tell a retry from a first send.
	query := `
		INSERT INTO messages (
			channel_id, sender_id, type, body, mentions, mention_everyone,
			mention_roles, attachments, reply_to_id, forwarded_from_channel, client_id
		)
		VALUES ($1, $2, $3, $4, $5::uuid[], $6, $7, $8, $9, $10, NULLIF($11, ''))
		ON CONFLICT (sender_id, client_id) WHERE client_id IS NOT NULL DO NOTHING
		RETURNING id`

	msgType := msg.Type
	if msgType == "" {
		msgType = models.MessageTypeUser
	}

	var id int64
	created := true
	err := s.pool.QueryRow(ctx, query,
		channelID,
		msg.SenderID,
		string(msgType),
		msg.Text,
		uuidStrings(msg.Mentions),
		msg.MentionEveryone,
		roleStrings(msg.MentionRoles),
		nonNil(msg.Attachments),
		msg.ReplyToID,
		msg.ForwardedFromChannel,
		msg.ClientID,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		created = false
		// The unique index spans every channel, so the conflicting row may
		// live elsewhere. Only a retry into the same channel is a retry.
		err = s.pool.QueryRow(ctx,
			`SELECT id FROM messages WHERE sender_id = $1 AND client_id = $2 AND channel_id = $3`,
			msg.SenderID, msg.ClientID, channelID,
		).Scan(&id)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, repository.ErrClientIDReused
		}
	}
	if err != nil {
		return nil, false, fmt.Errorf("insert message: %w", err)
	}

	saved, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if saved == nil {
		return nil, false, fmt.Errorf("insert message: row %d vanished", id)
	}
	return saved, created, nil
}

func (s *MessageStore) GetByID(ctx context.Context, messageID int64) (*models.Message, error) {
	row := s.pool.QueryRow(ctx, messageSelect+` WHERE m.id = $1`, messageID)
	msg, err := scanMessage(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get message: %w", err)
	}
	return msg, nil
}

func (s *MessageStore) ListByChannel(ctx context.Context, channelID uuid.UUID, before int64, limit int) ([]models.Message, error) {
	// Cursor-based pagination:
	// before=0 is the first page (newest messages), before=42 is
	// "messages older than ID 42". id is a bigserial, so it sorts like time.
	var query string
	var args []any

	if before > 0 {
		query = messageSelect + `
			WHERE m.channel_id = $1 AND m.id < $2
			ORDER BY m.id DESC
			LIMIT $3`
		args = []any{channelID, before, limit}
	} else {
		query = messageSelect + `
			WHERE m.channel_id = $1
			ORDER BY m.id DESC
			LIMIT $2`
		args = []any{channelID, limit}
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	messages := make([]models.Message, 0)
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, *msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	return messages, nil
}

func (s *MessageStore) UpdateText(ctx context.Context, messageID int64, text string, editedAt time.Time) (*models.Message, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE messages
		SET body = $2, edited_at = $3
		WHERE id = $1 AND deleted_at IS NULL`,
		messageID, text, editedAt)
	if err != nil {
		return nil, fmt.Errorf("update message: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, nil
	}
	return s.GetByID(ctx, messageID)
}

func (s *MessageStore) SoftDelete(ctx context.Context, messageID int64, deletedAt time.Time, by models.DeletedBy) (*models.Message, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE messages
		SET deleted_at = $2, deleted_by_role = $3
		WHERE id = $1 AND deleted_at IS NULL`,
		messageID, deletedAt, string(by))
	if err != nil {
		return nil, fmt.Errorf("delete message: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, nil
	}
	return s.GetByID(ctx, messageID)
}

func scanMessage(row pgx.Row) (*models.Message, error) {
	var (
		msg          models.Message
		msgType      string
		mentions     []string
		mentionRoles []string
		deletedBy    *string
		replyID      *int64
		replySender  *string
		replyBody    *string
		replyDeleted *time.Time
		replyBy      *string
	)
	err := row.Scan(
		&msg.ID,
		&msg.ChannelID,
		&msg.SenderID,
		&msg.Sender,
		&msg.Avatar,
		&msgType,
		&msg.Text,
		&mentions,
		&msg.MentionEveryone,
		&mentionRoles,
		&msg.Attachments,
		&msg.ReplyToID,
		&msg.ForwardedFromChannel,
		&msg.ClientID,
		&msg.EditedAt,
		&msg.DeletedAt,
		&deletedBy,
		&msg.CreatedAt,
		&replyID,
		&replySender,
		&replyBody,
		&replyDeleted,
		&replyBy,
	)
	if err != nil {
		return nil, err
	}

	msg.Type = models.MessageType(msgType)
	msg.Time = models.DisplayTime(msg.CreatedAt)
	msg.Mentions = make([]uuid.UUID, 0, len(mentions))
	for _, m := range mentions {
		id, err := uuid.Parse(m)
		if err != nil {
			return nil, fmt.Errorf("parse mention %q: %w", m, err)
		}
		msg.Mentions = append(msg.Mentions, id)
	}
	msg.MentionRoles = make([]models.Role, 0, len(mentionRoles))
	for _, r := range mentionRoles {
		msg.MentionRoles = append(msg.MentionRoles, models.Role(r))
	}
	msg.Attachments = nonNil(msg.Attachments)
	msg.DeletedByRole = deletedByPtr(deletedBy)

	if replyID != nil {
		snap := &models.ReplySnapshot{
			ID:            *replyID,
			DeletedAt:     replyDeleted,
			DeletedByRole: deletedByPtr(replyBy),
		}
		if replySender != nil {
			snap.Sender = *replySender
		}
		// Deleted text never leaves the server, even inside a quote.
		if replyBody != nil && replyDeleted == nil {
			snap.Text = *replyBody
		}
		msg.ReplyTo = snap
	}
	if msg.DeletedAt != nil {
		msg.Text = ""
	}
	return &msg, nil
}

func deletedByPtr(s *string) *models.DeletedBy {
	if s == nil {
		return nil
	}
	d := models.DeletedBy(*s)
	return &d
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}

func roleStrings(roles []models.Role) []string {
	out := make([]string, 0, len(roles))
	for _, r := range roles {
		out = append(out, string(r))
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
