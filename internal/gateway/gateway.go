// Package gateway is the façade every caller goes through: it validates
// input, resolves credentials, dispatches to the channel adapter, and
// normalizes the outcome into the conversation history.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/omnigatehq/omnigate/internal/channel"
	"github.com/omnigatehq/omnigate/internal/conversation"
	"github.com/omnigatehq/omnigate/internal/events"
	"github.com/omnigatehq/omnigate/internal/message"
	"github.com/omnigatehq/omnigate/internal/replyengine"
)

// Gateway coordinates adapters, stores, the reply engine, and the event
// publisher behind one API.
type Gateway struct {
	logger        *slog.Logger
	registry      *channel.Registry
	conversations conversation.Service
	messages      message.Service
	engine        replyengine.Engine
	publisher     events.Publisher
	locks         *conversationLocks
}

// New creates a Gateway.
func New(log *slog.Logger, registry *channel.Registry, conversations conversation.Service, messages message.Service, engine replyengine.Engine, publisher events.Publisher) *Gateway {
	if log == nil {
		log = slog.Default()
	}
	return &Gateway{
		logger:        log.With(slog.String("service", "gateway")),
		registry:      registry,
		conversations: conversations,
		messages:      messages,
		engine:        engine,
		publisher:     publisher,
		locks:         newConversationLocks(),
	}
}

// SendTextInput describes one outbound text send.
type SendTextInput struct {
	Channel        channel.Kind
	To             string
	Text           string
	InstanceName   string
	ConversationID string
}

// SendMediaInput describes one outbound media send.
type SendMediaInput struct {
	Channel        channel.Kind
	To             string
	Media          string
	MediaType      string
	FileName       string
	Caption        string
	InstanceName   string
	ConversationID string
}

// SendResult reports the provider acknowledgement and the persisted history
// entry. Message.ID is empty when persistence failed after a successful
// delivery; the send itself still counts as success.
type SendResult struct {
	ProviderMessageID string          `json:"providerMessageId"`
	Message           message.Message `json:"message"`
}

// SendText validates, resolves credentials, delivers, and records the send.
func (g *Gateway) SendText(ctx context.Context, in SendTextInput) (SendResult, error) {
	if strings.TrimSpace(in.To) == "" {
		return SendResult{}, channel.NewValidationError("to", "is required")
	}
	if strings.TrimSpace(in.Text) == "" {
		return SendResult{}, channel.NewValidationError("message", "is required")
	}
	if strings.TrimSpace(in.ConversationID) == "" {
		return SendResult{}, channel.NewValidationError("conversationId", "is required")
	}
	sender, ok := g.registry.GetTextSender(in.Channel)
	if !ok {
		return SendResult{}, fmt.Errorf("send text on %s: %w", in.Channel, channel.ErrUnsupported)
	}
	cred, err := g.resolveCredential(ctx, in.Channel, in.InstanceName, in.ConversationID)
	if err != nil {
		return SendResult{}, err
	}
	result, err := sender.SendText(ctx, channel.Destination{Phone: in.To}, in.Text, cred)
	if err != nil {
		return SendResult{}, err
	}
	persisted := g.recordOutbound(ctx, message.PersistInput{
		ConversationID: in.ConversationID,
		Sender:         message.SenderMember,
		Content:        in.Text,
		ContentType:    "text",
		Channel:        in.Channel,
		ExternalID:     result.MessageID,
		Metadata:       result.Raw,
	})
	return SendResult{ProviderMessageID: result.MessageID, Message: persisted}, nil
}

// SendMedia validates, resolves credentials, delivers media, and records the
// send. Content is empty; the payload reference lives in metadata.
func (g *Gateway) SendMedia(ctx context.Context, in SendMediaInput) (SendResult, error) {
	if strings.TrimSpace(in.To) == "" {
		return SendResult{}, channel.NewValidationError("to", "is required")
	}
	if strings.TrimSpace(in.Media) == "" {
		return SendResult{}, channel.NewValidationError("media", "is required")
	}
	if strings.TrimSpace(in.MediaType) == "" {
		return SendResult{}, channel.NewValidationError("type", "is required")
	}
	if strings.TrimSpace(in.ConversationID) == "" {
		return SendResult{}, channel.NewValidationError("conversationId", "is required")
	}
	sender, ok := g.registry.GetMediaSender(in.Channel)
	if !ok {
		return SendResult{}, fmt.Errorf("send media on %s: %w", in.Channel, channel.ErrUnsupported)
	}
	cred, err := g.resolveCredential(ctx, in.Channel, in.InstanceName, in.ConversationID)
	if err != nil {
		return SendResult{}, err
	}
	payload := channel.MediaPayload{
		Data:      in.Media,
		MediaType: in.MediaType,
		FileName:  in.FileName,
		Caption:   in.Caption,
	}
	result, err := sender.SendMedia(ctx, channel.Destination{Phone: in.To}, payload, cred)
	if err != nil {
		return SendResult{}, err
	}
	persisted := g.recordOutbound(ctx, message.PersistInput{
		ConversationID: in.ConversationID,
		Sender:         message.SenderMember,
		Content:        in.Caption,
		ContentType:    in.MediaType,
		Channel:        in.Channel,
		ExternalID:     result.MessageID,
		Metadata:       result.Raw,
	})
	return SendResult{ProviderMessageID: result.MessageID, Message: persisted}, nil
}

// recordOutbound persists the member message on a context detached from the
// request. A failed write after a successful delivery is logged at Warn and
// never turns the send into an error; resending would duplicate the message
// on the remote side.
func (g *Gateway) recordOutbound(ctx context.Context, in message.PersistInput) message.Message {
	detached := context.WithoutCancel(ctx)
	persisted, err := g.messages.Persist(detached, in)
	if err != nil {
		g.logger.Warn("message delivered but not recorded",
			slog.String("conversation_id", in.ConversationID),
			slog.String("external_id", in.ExternalID),
			slog.Any("error", err))
		return message.Message{}
	}
	g.publisher.MessageCreated(detached, persisted)
	return persisted
}

// MediaContentInput identifies delivered media for a content fetch. For the
// aggregator channels ID is the provider media id; for the official channel
// it is the stored message id whose metadata carries the media reference.
type MediaContentInput struct {
	Channel      channel.Kind
	ID           string
	InstanceName string
}

// FetchMediaContent retrieves the bytes behind delivered media. On the
// official channel both the media id and the routing credential come from the
// stored message's metadata; a missing message or a metadata record without a
// media reference is NotFound before any network call.
func (g *Gateway) FetchMediaContent(ctx context.Context, in MediaContentInput) (channel.MediaContent, error) {
	if strings.TrimSpace(in.ID) == "" {
		return channel.MediaContent{}, channel.NewValidationError("id", "is required")
	}
	fetcher, ok := g.registry.GetMediaFetcher(in.Channel)
	if !ok {
		return channel.MediaContent{}, fmt.Errorf("fetch media on %s: %w", in.Channel, channel.ErrUnsupported)
	}
	var cred channel.Credential
	ref := channel.MediaRef{ID: in.ID}
	switch in.Channel {
	case channel.KindBridge:
		name, err := channel.ParseInstanceName(in.InstanceName)
		if err != nil {
			return channel.MediaContent{}, err
		}
		cred, err = g.resolveInstanceCredential(ctx, in.Channel, name)
		if err != nil {
			return channel.MediaContent{}, err
		}
		ref.InstanceName = cred.InstanceName
	case channel.KindMeta:
		stored, err := g.messages.Get(ctx, in.ID)
		if err != nil {
			return channel.MediaContent{}, fmt.Errorf("meta media for message %s: %w", in.ID, err)
		}
		mediaID, phoneNumberID := extractMetaMediaRef(stored.Metadata)
		if mediaID == "" || phoneNumberID == "" {
			return channel.MediaContent{}, fmt.Errorf("meta media for message %s: no media reference in metadata: %w", in.ID, channel.ErrNotFound)
		}
		cred = channel.Credential{PhoneNumberID: phoneNumberID}
		ref = channel.MediaRef{ID: mediaID, PhoneNumberID: phoneNumberID}
	}
	return fetcher.FetchMedia(ctx, ref, cred)
}

// RegisterWebhook registers the inbound callback for a channel. Instance-based
// channels need the instance name; the official channel ignores it.
func (g *Gateway) RegisterWebhook(ctx context.Context, kind channel.Kind, instanceName string) error {
	registrar, ok := g.registry.GetWebhookRegistrar(kind)
	if !ok {
		return fmt.Errorf("register webhook on %s: %w", kind, channel.ErrUnsupported)
	}
	var name channel.InstanceName
	if kind == channel.KindBridge {
		parsed, err := channel.ParseInstanceName(instanceName)
		if err != nil {
			return err
		}
		name = parsed
	}
	return registrar.RegisterWebhook(ctx, name)
}

// ConnectionArtifact returns the pairing artifact for a session instance.
func (g *Gateway) ConnectionArtifact(ctx context.Context, kind channel.Kind, instanceName string) (channel.ConnectionArtifact, error) {
	generator, ok := g.registry.GetArtifactGenerator(kind)
	if !ok {
		return channel.ConnectionArtifact{}, fmt.Errorf("connection artifact on %s: %w", kind, channel.ErrUnsupported)
	}
	name, err := channel.ParseInstanceName(instanceName)
	if err != nil {
		return channel.ConnectionArtifact{}, err
	}
	return generator.ConnectionArtifact(ctx, name)
}

// InstanceStatus reports the connection state of a session instance.
func (g *Gateway) InstanceStatus(ctx context.Context, kind channel.Kind, instanceName string) (channel.InstanceState, error) {
	checker, ok := g.registry.GetStatusChecker(kind)
	if !ok {
		return channel.InstanceStateUnknown, fmt.Errorf("instance status on %s: %w", kind, channel.ErrUnsupported)
	}
	name, err := channel.ParseInstanceName(instanceName)
	if err != nil {
		return channel.InstanceStateUnknown, err
	}
	return checker.InstanceStatus(ctx, name)
}

// SetMode switches the conversation mode, delegating to the conversation
// service.
func (g *Gateway) SetMode(ctx context.Context, conversationID string, mode conversation.Mode) (conversation.Conversation, error) {
	return g.conversations.SetMode(ctx, conversationID, mode)
}

// resolveCredential produces the adapter credential for an outbound call.
func (g *Gateway) resolveCredential(ctx context.Context, kind channel.Kind, instanceName, conversationID string) (channel.Credential, error) {
	switch kind {
	case channel.KindBridge:
		name, err := channel.ParseInstanceName(instanceName)
		if err != nil {
			return channel.Credential{}, err
		}
		return g.resolveInstanceCredential(ctx, kind, name)
	case channel.KindMeta:
		return g.resolveMetaCredential(ctx, conversationID)
	default:
		// The courier deployment token lives in adapter configuration.
		return channel.Credential{}, nil
	}
}

func (g *Gateway) resolveInstanceCredential(ctx context.Context, kind channel.Kind, name channel.InstanceName) (channel.Credential, error) {
	resolver, ok := g.registry.GetTokenResolver(kind)
	if !ok {
		return channel.Credential{}, fmt.Errorf("token resolution on %s: %w", kind, channel.ErrUnsupported)
	}
	return resolver.ResolveInstanceToken(ctx, name)
}

// resolveMetaCredential derives official-API routing from the newest inbound
// message: its stored webhook metadata carries the phone number id the end
// user wrote to, which is the number replies must leave from.
func (g *Gateway) resolveMetaCredential(ctx context.Context, conversationID string) (channel.Credential, error) {
	latest, err := g.messages.LatestHumanMessage(ctx, conversationID)
	if err != nil {
		return channel.Credential{}, fmt.Errorf("meta routing for conversation %s: %w", conversationID, err)
	}
	phoneNumberID := extractPhoneNumberID(latest.Metadata)
	if phoneNumberID == "" {
		return channel.Credential{}, fmt.Errorf("meta routing for conversation %s: no phone number id in metadata: %w", conversationID, channel.ErrNotFound)
	}
	return channel.Credential{PhoneNumberID: phoneNumberID}, nil
}

// extractMetaMediaRef pulls the provider media id and the phone number id out
// of a stored message's webhook metadata.
func extractMetaMediaRef(metadata json.RawMessage) (mediaID, phoneNumberID string) {
	if len(metadata) == 0 {
		return "", ""
	}
	type mediaObject struct {
		ID string `json:"id"`
	}
	var payload struct {
		Metadata struct {
			PhoneNumberID string `json:"phone_number_id"`
		} `json:"metadata"`
		Messages []struct {
			Image    mediaObject `json:"image"`
			Audio    mediaObject `json:"audio"`
			Video    mediaObject `json:"video"`
			Document mediaObject `json:"document"`
			Sticker  mediaObject `json:"sticker"`
		} `json:"messages"`
	}
	if err := json.Unmarshal(metadata, &payload); err != nil {
		return "", ""
	}
	for _, msg := range payload.Messages {
		for _, obj := range []mediaObject{msg.Image, msg.Audio, msg.Video, msg.Document, msg.Sticker} {
			if obj.ID != "" {
				return obj.ID, payload.Metadata.PhoneNumberID
			}
		}
	}
	return "", payload.Metadata.PhoneNumberID
}

func extractPhoneNumberID(metadata json.RawMessage) string {
	if len(metadata) == 0 {
		return ""
	}
	var payload struct {
		Metadata struct {
			PhoneNumberID string `json:"phone_number_id"`
		} `json:"metadata"`
		PhoneNumberID string `json:"phone_number_id"`
	}
	if err := json.Unmarshal(metadata, &payload); err != nil {
		return ""
	}
	if payload.Metadata.PhoneNumberID != "" {
		return payload.Metadata.PhoneNumberID
	}
	return payload.PhoneNumberID
}
