package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/omnigatehq/omnigate/internal/channel"
	"github.com/omnigatehq/omnigate/internal/conversation"
	"github.com/omnigatehq/omnigate/internal/message"
)

// InboundMessage is a provider webhook event normalized by the handlers into
// one shape. Metadata is the provider payload verbatim.
type InboundMessage struct {
	Channel           channel.Kind
	AgentID           string
	ContactID         string
	Phone             string
	ExternalID        string
	Text              string
	ContentType       string
	Metadata          json.RawMessage
	ProviderTimestamp *time.Time
}

// InboundResult reports the conversation and persisted history entry for one
// inbound event.
type InboundResult struct {
	Conversation conversation.Conversation
	Message      message.Message
	ReplyQueued  bool
}

// HandleInbound records an inbound message and, when the conversation is in
// agent mode, dispatches reply generation in the background. The caller gets
// its acknowledgement as soon as the message is recorded; reply latency never
// holds the webhook response.
//
// Events for the same conversation are serialized through a keyed lock so
// their recorded order matches arrival order. Different conversations proceed
// in parallel.
func (g *Gateway) HandleInbound(ctx context.Context, in InboundMessage) (InboundResult, error) {
	if strings.TrimSpace(in.AgentID) == "" {
		return InboundResult{}, channel.NewValidationError("agentId", "is required")
	}
	if strings.TrimSpace(in.ContactID) == "" {
		return InboundResult{}, channel.NewValidationError("contactId", "is required")
	}
	if _, ok := g.registry.Get(in.Channel); !ok {
		return InboundResult{}, fmt.Errorf("inbound on %s: %w", in.Channel, channel.ErrUnsupported)
	}

	key := in.AgentID + "|" + in.ContactID + "|" + string(in.Channel)
	unlock := g.locks.Lock(key)
	defer unlock()

	conv, err := g.conversations.EnsureForContact(ctx, conversation.ContactKey{
		AgentID:   in.AgentID,
		ContactID: in.ContactID,
		Phone:     in.Phone,
		Channel:   in.Channel,
	})
	if err != nil {
		return InboundResult{}, fmt.Errorf("ensure conversation: %w", err)
	}

	contentType := in.ContentType
	if contentType == "" {
		contentType = "text"
	}
	// A provider disconnect must not abort a write that already started.
	persisted, err := g.messages.Persist(context.WithoutCancel(ctx), message.PersistInput{
		ConversationID:    conv.ID,
		Sender:            message.SenderHuman,
		Content:           in.Text,
		ContentType:       contentType,
		Channel:           in.Channel,
		ExternalID:        in.ExternalID,
		Metadata:          in.Metadata,
		ProviderTimestamp: in.ProviderTimestamp,
	})
	if err != nil {
		return InboundResult{}, fmt.Errorf("persist inbound message: %w", err)
	}
	g.publisher.MessageCreated(context.WithoutCancel(ctx), persisted)

	result := InboundResult{Conversation: conv, Message: persisted}
	if conv.Mode != conversation.ModeAgent {
		g.logger.Debug("automated reply suppressed",
			slog.String("conversation_id", conv.ID),
			slog.String("mode", string(conv.Mode)))
		return result, nil
	}
	if strings.TrimSpace(in.Text) == "" {
		// Nothing for the engine to answer; media-only events are recorded
		// and left for a member to handle.
		return result, nil
	}

	result.ReplyQueued = true
	go g.dispatchReply(context.WithoutCancel(ctx), conv, in)
	return result, nil
}

// dispatchReply generates and sends the automated reply. It runs detached
// from the webhook request; any failure is logged, never surfaced.
func (g *Gateway) dispatchReply(ctx context.Context, conv conversation.Conversation, in InboundMessage) {
	log := g.logger.With(
		slog.String("conversation_id", conv.ID),
		slog.String("channel", string(in.Channel)))

	reply, err := g.engine.GenerateReply(ctx, conv.ID, conv.AgentID, in.Text)
	if err != nil {
		log.Error("reply generation failed", slog.Any("error", err))
		return
	}

	instanceName := ""
	if in.Channel == channel.KindBridge {
		name, err := channel.NewInstanceName(conv.AgentID, conv.ContactID)
		if err != nil {
			log.Error("reply dispatch failed", slog.Any("error", err))
			return
		}
		instanceName = name.String()
	}
	_, err = g.SendText(ctx, SendTextInput{
		Channel:        in.Channel,
		To:             conv.Phone,
		Text:           reply.Text,
		InstanceName:   instanceName,
		ConversationID: conv.ID,
	})
	if err != nil {
		log.Error("reply send failed", slog.Any("error", err))
		return
	}
	log.Info("automated reply sent")
}
