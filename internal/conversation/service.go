package conversation

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

// Service persists and retrieves conversations.
type Service interface {
	Get(ctx context.Context, id string) (Conversation, error)
	// EnsureForContact returns the conversation for the contact key, creating
	// it in ModeAgent when no record exists yet.
	EnsureForContact(ctx context.Context, key ContactKey) (Conversation, error)
	// SetMode switches the conversation mode. Setting the mode it already has
	// succeeds without touching the record.
	SetMode(ctx context.Context, id string, mode Mode) (Conversation, error)
	// ListByChannel returns every conversation on the given channel kind.
	ListByChannel(ctx context.Context, kind channel.Kind) ([]Conversation, error)
}

type service struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewService creates the Postgres-backed conversation Service.
func NewService(pool *pgxpool.Pool, log *slog.Logger) Service {
	if log == nil {
		log = slog.Default()
	}
	return &service{
		pool:   pool,
		logger: log.With(slog.String("service", "conversation")),
	}
}

const conversationColumns = `id, agent_id, contact_id, phone, channel, mode, created_at, updated_at`

func scanConversation(row pgx.Row) (Conversation, error) {
	var (
		id        pgtype.UUID
		conv      Conversation
		kind      string
		mode      string
		createdAt pgtype.Timestamptz
		updatedAt pgtype.Timestamptz
	)
	if err := row.Scan(&id, &conv.AgentID, &conv.ContactID, &conv.Phone, &kind, &mode, &createdAt, &updatedAt); err != nil {
		return Conversation{}, err
	}
	conv.ID = db.UUIDToString(id)
	conv.Channel = channel.Kind(kind)
	conv.Mode = Mode(mode)
	conv.CreatedAt = createdAt.Time
	conv.UpdatedAt = updatedAt.Time
	return conv, nil
}

func (s *service) Get(ctx context.Context, id string) (Conversation, error) {
	uuid, err := db.ParseUUID(id)
	if err != nil {
		return Conversation{}, channel.NewValidationError("conversationId", "must be a uuid")
	}
	row := s.pool.QueryRow(ctx,
		`SELECT `+conversationColumns+` FROM conversations WHERE id = $1`, uuid)
	conv, err := scanConversation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Conversation{}, channel.ErrNotFound
	}
	if err != nil {
		return Conversation{}, fmt.Errorf("get conversation: %w", err)
	}
	return conv, nil
}

func (s *service) EnsureForContact(ctx context.Context, key ContactKey) (Conversation, error) {
	if key.AgentID == "" {
		return Conversation{}, channel.NewValidationError("agentId", "is required")
	}
	if key.ContactID == "" {
		return Conversation{}, channel.NewValidationError("contactId", "is required")
	}
	row := s.pool.QueryRow(ctx,
		`INSERT INTO conversations (agent_id, contact_id, phone, channel, mode)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (agent_id, contact_id, channel)
		 DO UPDATE SET phone = EXCLUDED.phone, updated_at = now()
		 RETURNING `+conversationColumns,
		key.AgentID, key.ContactID, key.Phone, string(key.Channel), string(ModeAgent))
	conv, err := scanConversation(row)
	if err != nil {
		return Conversation{}, fmt.Errorf("ensure conversation: %w", err)
	}
	return conv, nil
}

func (s *service) SetMode(ctx context.Context, id string, mode Mode) (Conversation, error) {
	if mode != ModeAgent && mode != ModeHuman {
		return Conversation{}, channel.NewValidationError("mode", fmt.Sprintf("%q is not a valid mode", mode))
	}
	uuid, err := db.ParseUUID(id)
	if err != nil {
		return Conversation{}, channel.NewValidationError("conversationId", "must be a uuid")
	}
	current, err := s.Get(ctx, id)
	if err != nil {
		return Conversation{}, err
	}
	if current.Mode == mode {
		s.logger.Debug("mode unchanged", slog.String("conversation_id", id), slog.String("mode", string(mode)))
		return current, nil
	}
	row := s.pool.QueryRow(ctx,
		`UPDATE conversations SET mode = $2, updated_at = now()
		 WHERE id = $1
		 RETURNING `+conversationColumns,
		uuid, string(mode))
	conv, err := scanConversation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Conversation{}, channel.ErrNotFound
	}
	if err != nil {
		return Conversation{}, fmt.Errorf("set mode: %w", err)
	}
	s.logger.Info("conversation mode changed",
		slog.String("conversation_id", id),
		slog.String("from", string(current.Mode)),
		slog.String("to", string(mode)))
	return conv, nil
}

func (s *service) ListByChannel(ctx context.Context, kind channel.Kind) ([]Conversation, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+conversationColumns+` FROM conversations WHERE channel = $1 ORDER BY created_at`,
		string(kind))
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var items []Conversation
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		items = append(items, conv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return items, nil
}
