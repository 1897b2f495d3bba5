package handlers

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/omnigatehq/omnigate/internal/channel"
	"github.com/omnigatehq/omnigate/internal/gateway"
)

const maxWebhookBody = 4 << 20 // 4 MiB

// Webhook handles POST /webhooks/:channel: it normalizes the provider payload
// into one inbound shape and hands it to the gateway. The response is sent as
// soon as the message is recorded; reply generation runs in the background.
func (h *Handler) Webhook(c echo.Context) error {
	kind, ok := channel.ParseKind(c.Param("channel"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "unknown channel")
	}
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unreadable body")
	}

	eventID := uuid.NewString()
	log := h.logger.With(
		slog.String("event_id", eventID),
		slog.String("channel", string(kind)))

	var inbounds []gateway.InboundMessage
	switch kind {
	case channel.KindMeta:
		// One official-API delivery can batch several messages.
		inbounds, err = parseMetaWebhook(body)
	case channel.KindBridge:
		var inbound gateway.InboundMessage
		inbound, err = parseBridgeWebhook(body)
		inbounds = []gateway.InboundMessage{inbound}
	case channel.KindCourier:
		var inbound gateway.InboundMessage
		inbound, err = parseCourierWebhook(body)
		inbounds = []gateway.InboundMessage{inbound}
	}
	if err != nil {
		log.Warn("webhook payload rejected", slog.Any("error", err))
		return httpError(err)
	}

	type recorded struct {
		ConversationID string `json:"conversationId"`
		MessageID      string `json:"messageId"`
	}
	var results []recorded
	for _, inbound := range inbounds {
		if inbound.AgentID == "" && inbound.ContactID == "" {
			// Status callbacks, read receipts, and other non-message events
			// are acknowledged without touching the conversation history.
			continue
		}
		inbound.Channel = kind
		result, err := h.gateway.HandleInbound(c.Request().Context(), inbound)
		if err != nil {
			log.Error("inbound handling failed", slog.Any("error", err))
			return httpError(err)
		}
		log.Info("inbound message recorded",
			slog.String("conversation_id", result.Conversation.ID),
			slog.String("message_id", result.Message.ID),
			slog.Bool("reply_queued", result.ReplyQueued))
		results = append(results, recorded{
			ConversationID: result.Conversation.ID,
			MessageID:      result.Message.ID,
		})
	}
	if len(results) == 0 {
		log.Debug("webhook event ignored")
		return c.JSON(http.StatusOK, map[string]string{"status": "ignored"})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"status":  "received",
		"eventId": eventID,
		"results": results,
	})
}

// VerifyMetaWebhook handles the GET handshake the official platform performs
// when the callback URL is configured.
func (h *Handler) VerifyMetaWebhook(c echo.Context) error {
	mode := c.QueryParam("hub.mode")
	token := c.QueryParam("hub.verify_token")
	challenge := c.QueryParam("hub.challenge")
	if mode != "subscribe" || token == "" || token != h.cfg.Meta.VerifyToken {
		return echo.NewHTTPError(http.StatusForbidden, "verification failed")
	}
	return c.String(http.StatusOK, challenge)
}

// parseMetaWebhook normalizes the official platform's change-notification
// envelope. A single delivery may batch several entries, changes, and
// messages; every one of them becomes its own inbound event. The change value
// is kept verbatim as metadata; it carries the phone number id every later
// outbound send is routed by.
func parseMetaWebhook(body []byte) ([]gateway.InboundMessage, error) {
	var envelope struct {
		Entry []struct {
			Changes []struct {
				Value json.RawMessage `json:"value"`
			} `json:"changes"`
		} `json:"entry"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, channel.NewValidationError("payload", "malformed webhook envelope")
	}
	var inbounds []gateway.InboundMessage
	for _, entry := range envelope.Entry {
		for _, change := range entry.Changes {
			var value struct {
				Metadata struct {
					PhoneNumberID string `json:"phone_number_id"`
				} `json:"metadata"`
				Messages []struct {
					From      string `json:"from"`
					ID        string `json:"id"`
					Timestamp string `json:"timestamp"`
					Type      string `json:"type"`
					Text      struct {
						Body string `json:"body"`
					} `json:"text"`
				} `json:"messages"`
			}
			if err := json.Unmarshal(change.Value, &value); err != nil {
				continue
			}
			for _, msg := range value.Messages {
				// The receiving business number identifies the agent on this
				// channel; there is no instance registration to consult.
				inbounds = append(inbounds, gateway.InboundMessage{
					AgentID:           value.Metadata.PhoneNumberID,
					ContactID:         msg.From,
					Phone:             msg.From,
					ExternalID:        msg.ID,
					Text:              msg.Text.Body,
					ContentType:       normalizeInboundType(msg.Type),
					Metadata:          change.Value,
					ProviderTimestamp: parseUnixTimestamp(msg.Timestamp),
				})
			}
		}
	}
	return inbounds, nil
}

// parseBridgeWebhook normalizes the session aggregator's messages.upsert
// event. Identity comes from the instance name.
func parseBridgeWebhook(body []byte) (gateway.InboundMessage, error) {
	var event struct {
		Event    string          `json:"event"`
		Instance string          `json:"instance"`
		Data     json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &event); err != nil {
		return gateway.InboundMessage{}, channel.NewValidationError("payload", "malformed webhook envelope")
	}
	if !strings.EqualFold(event.Event, "messages.upsert") {
		return gateway.InboundMessage{}, nil
	}
	name, err := channel.ParseInstanceName(event.Instance)
	if err != nil {
		return gateway.InboundMessage{}, err
	}
	var data struct {
		Key struct {
			ID        string `json:"id"`
			RemoteJid string `json:"remoteJid"`
			FromMe    bool   `json:"fromMe"`
		} `json:"key"`
		Message struct {
			Conversation string `json:"conversation"`
		} `json:"message"`
		MessageType      string `json:"messageType"`
		MessageTimestamp int64  `json:"messageTimestamp"`
	}
	if err := json.Unmarshal(event.Data, &data); err != nil {
		return gateway.InboundMessage{}, channel.NewValidationError("payload", "malformed event data")
	}
	if data.Key.FromMe {
		// Echoes of our own sends are not inbound messages.
		return gateway.InboundMessage{}, nil
	}
	var ts *time.Time
	if data.MessageTimestamp > 0 {
		t := time.Unix(data.MessageTimestamp, 0).UTC()
		ts = &t
	}
	return gateway.InboundMessage{
		AgentID:           name.AgentID,
		ContactID:         name.EndUserID,
		Phone:             strings.SplitN(data.Key.RemoteJid, "@", 2)[0],
		ExternalID:        data.Key.ID,
		Text:              data.Message.Conversation,
		ContentType:       normalizeInboundType(data.MessageType),
		Metadata:          event.Data,
		ProviderTimestamp: ts,
	}, nil
}

// parseCourierWebhook normalizes the secondary aggregator's flat event shape.
func parseCourierWebhook(body []byte) (gateway.InboundMessage, error) {
	var event struct {
		AgentID   string `json:"agentId"`
		UserID    string `json:"userId"`
		From      string `json:"from"`
		MessageID string `json:"messageId"`
		Text      string `json:"text"`
		Type      string `json:"type"`
		Timestamp int64  `json:"timestamp"`
	}
	if err := json.Unmarshal(body, &event); err != nil {
		return gateway.InboundMessage{}, channel.NewValidationError("payload", "malformed webhook envelope")
	}
	if event.AgentID == "" || event.UserID == "" {
		return gateway.InboundMessage{}, nil
	}
	var ts *time.Time
	if event.Timestamp > 0 {
		t := time.Unix(event.Timestamp, 0).UTC()
		ts = &t
	}
	return gateway.InboundMessage{
		AgentID:           event.AgentID,
		ContactID:         event.UserID,
		Phone:             event.From,
		ExternalID:        event.MessageID,
		Text:              event.Text,
		ContentType:       normalizeInboundType(event.Type),
		Metadata:          body,
		ProviderTimestamp: ts,
	}, nil
}

func normalizeInboundType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "text", "conversation", "extendedtextmessage":
		return "text"
	case "image", "imagemessage":
		return "image"
	case "audio", "audiomessage", "ptt":
		return "audio"
	case "video", "videomessage":
		return "video"
	default:
		return "document"
	}
}

func parseUnixTimestamp(raw string) *time.Time {
	if raw == "" {
		return nil
	}
	seconds, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil
	}
	t := time.Unix(seconds, 0).UTC()
	return &t
}
