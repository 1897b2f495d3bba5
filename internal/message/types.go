// Package message persists the normalized message history of a conversation.
package message

import (
	"context"
	"encoding/json"
	"time"

	"github.com/omnigatehq/omnigate/internal/channel"
)

// Sender classifies who authored a message.
type Sender string

const (
	// SenderHuman is the end user on the remote side of the channel.
	SenderHuman Sender = "human"
	// SenderAgent is an automated reply produced by the reply engine.
	SenderAgent Sender = "agent"
	// SenderMember is a workspace member sending through the gateway API.
	SenderMember Sender = "member"
)

// Message is one normalized entry in a conversation's history. Metadata holds
// the provider payload verbatim so identifiers needed for later media fetches
// survive untouched.
type Message struct {
	ID                string          `json:"id"`
	ConversationID    string          `json:"conversationId"`
	Sender            Sender          `json:"sender"`
	Content           string          `json:"content"`
	ContentType       string          `json:"contentType"`
	Channel           channel.Kind    `json:"channel"`
	ExternalID        string          `json:"externalId,omitempty"`
	Metadata          json.RawMessage `json:"metadata,omitempty"`
	ProviderTimestamp *time.Time      `json:"providerTimestamp,omitempty"`
	CreatedAt         time.Time       `json:"createdAt"`
}

// PersistInput is the write-side shape for a new message.
type PersistInput struct {
	ConversationID    string
	Sender            Sender
	Content           string
	ContentType       string
	Channel           channel.Kind
	ExternalID        string
	Metadata          json.RawMessage
	ProviderTimestamp *time.Time
}

// Service persists and reads conversation messages.
type Service interface {
	Persist(ctx context.Context, in PersistInput) (Message, error)
	Get(ctx context.Context, id string) (Message, error)
	ListByConversation(ctx context.Context, conversationID string, limit int) ([]Message, error)
	// LatestHumanMessage returns the most recent inbound message of the
	// conversation. Official-API reply routing is derived from its metadata.
	LatestHumanMessage(ctx context.Context, conversationID string) (Message, error)
}
