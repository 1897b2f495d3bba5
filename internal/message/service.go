package message

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/omnigatehq/omnigate/internal/channel"
	"github.com/omnigatehq/omnigate/internal/db"
)

const defaultListLimit = 100

type service struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewService creates the Postgres-backed message Service.
func NewService(pool *pgxpool.Pool, log *slog.Logger) Service {
	if log == nil {
		log = slog.Default()
	}
	return &service{
		pool:   pool,
		logger: log.With(slog.String("service", "message")),
	}
}

const messageColumns = `id, conversation_id, sender, content, content_type, channel, external_id, metadata, provider_timestamp, created_at`

func scanMessage(row pgx.Row) (Message, error) {
	var (
		id         pgtype.UUID
		convID     pgtype.UUID
		msg        Message
		sender     string
		kind       string
		externalID pgtype.Text
		metadata   []byte
		providerTS pgtype.Timestamptz
		createdAt  pgtype.Timestamptz
	)
	if err := row.Scan(&id, &convID, &sender, &msg.Content, &msg.ContentType, &kind, &externalID, &metadata, &providerTS, &createdAt); err != nil {
		return Message{}, err
	}
	msg.ID = db.UUIDToString(id)
	msg.ConversationID = db.UUIDToString(convID)
	msg.Sender = Sender(sender)
	msg.Channel = channel.Kind(kind)
	msg.ExternalID = db.TextToString(externalID)
	msg.Metadata = metadata
	if providerTS.Valid {
		ts := providerTS.Time
		msg.ProviderTimestamp = &ts
	}
	msg.CreatedAt = createdAt.Time
	return msg, nil
}

func (s *service) Persist(ctx context.Context, in PersistInput) (Message, error) {
	convID, err := db.ParseUUID(in.ConversationID)
	if err != nil {
		return Message{}, channel.NewValidationError("conversationId", "must be a uuid")
	}
	if in.Sender != SenderHuman && in.Sender != SenderAgent && in.Sender != SenderMember {
		return Message{}, channel.NewValidationError("sender", fmt.Sprintf("%q is not a valid sender", in.Sender))
	}
	contentType := in.ContentType
	if contentType == "" {
		contentType = "text"
	}
	var externalID pgtype.Text
	if in.ExternalID != "" {
		externalID = pgtype.Text{String: in.ExternalID, Valid: true}
	}
	var providerTS pgtype.Timestamptz
	if in.ProviderTimestamp != nil {
		providerTS = pgtype.Timestamptz{Time: *in.ProviderTimestamp, Valid: true}
	}
	var metadata []byte
	if len(in.Metadata) > 0 {
		metadata = in.Metadata
	}
	row := s.pool.QueryRow(ctx,
		`INSERT INTO conversation_messages
		   (conversation_id, sender, content, content_type, channel, external_id, metadata, provider_timestamp)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING `+messageColumns,
		convID, string(in.Sender), in.Content, contentType, string(in.Channel), externalID, metadata, providerTS)
	msg, err := scanMessage(row)
	if err != nil {
		return Message{}, fmt.Errorf("persist message: %w", err)
	}
	return msg, nil
}

func (s *service) Get(ctx context.Context, id string) (Message, error) {
	uuid, err := db.ParseUUID(id)
	if err != nil {
		return Message{}, channel.NewValidationError("messageId", "must be a uuid")
	}
	row := s.pool.QueryRow(ctx,
		`SELECT `+messageColumns+` FROM conversation_messages WHERE id = $1`, uuid)
	msg, err := scanMessage(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Message{}, channel.ErrNotFound
	}
	if err != nil {
		return Message{}, fmt.Errorf("get message: %w", err)
	}
	return msg, nil
}

func (s *service) ListByConversation(ctx context.Context, conversationID string, limit int) ([]Message, error) {
	convID, err := db.ParseUUID(conversationID)
	if err != nil {
		return nil, channel.NewValidationError("conversationId", "must be a uuid")
	}
	if limit <= 0 || limit > 500 {
		limit = defaultListLimit
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+messageColumns+`
		 FROM conversation_messages
		 WHERE conversation_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		convID, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var items []Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		items = append(items, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return items, nil
}

func (s *service) LatestHumanMessage(ctx context.Context, conversationID string) (Message, error) {
	convID, err := db.ParseUUID(conversationID)
	if err != nil {
		return Message{}, channel.NewValidationError("conversationId", "must be a uuid")
	}
	row := s.pool.QueryRow(ctx,
		`SELECT `+messageColumns+`
		 FROM conversation_messages
		 WHERE conversation_id = $1 AND sender = $2
		 ORDER BY created_at DESC
		 LIMIT 1`,
		convID, string(SenderHuman))
	msg, err := scanMessage(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Message{}, channel.ErrNotFound
	}
	if err != nil {
		return Message{}, fmt.Errorf("latest human message: %w", err)
	}
	return msg, nil
}
