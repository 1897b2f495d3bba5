// Package meta implements the channel adapter for the official Graph-style
// business messaging API. Authentication is a bearer token tied to a phone
// number id; there is no durable instance, so routing for replies is derived
// from stored conversation metadata by the gateway, not from a registration.
package meta

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/omnigatehq/omnigate/internal/channel"
	"github.com/omnigatehq/omnigate/internal/channel/adapters/common"
	"github.com/omnigatehq/omnigate/internal/config"
)

const defaultTimeout = 30 * time.Second

// Adapter implements channel.Adapter, TextSender, MediaSender, MediaFetcher,
// and WebhookRegistrar for the official API.
type Adapter struct {
	logger *slog.Logger
	cfg    config.MetaConfig
	client *http.Client
}

// New creates a meta Adapter from configuration.
func New(log *slog.Logger, cfg config.MetaConfig) *Adapter {
	if log == nil {
		log = slog.Default()
	}
	timeout := defaultTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	return &Adapter{
		logger: log.With(slog.String("adapter", "meta")),
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

// Kind returns the meta channel kind.
func (a *Adapter) Kind() channel.Kind {
	return channel.KindMeta
}

// Descriptor returns the meta channel metadata.
func (a *Adapter) Descriptor() channel.Descriptor {
	return channel.Descriptor{
		Kind:        channel.KindMeta,
		DisplayName: "Official Business API",
		Capabilities: channel.Capabilities{
			Text:       true,
			Media:      true,
			MediaFetch: true,
			Webhook:    true,
		},
	}
}

func (a *Adapter) endpoint(parts ...string) string {
	base := strings.TrimRight(a.cfg.BaseURL, "/")
	return base + "/" + a.cfg.APIVersion + "/" + strings.Join(parts, "/")
}

func (a *Adapter) authHeaders(cred channel.Credential) map[string]string {
	token := cred.Token
	if token == "" {
		token = a.cfg.AccessToken
	}
	return map[string]string{"Authorization": "Bearer " + token}
}

type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

// SendText delivers a text message via the Graph messages endpoint. The
// credential's PhoneNumberID selects the sending number.
func (a *Adapter) SendText(ctx context.Context, dest channel.Destination, text string, cred channel.Credential) (channel.ProviderResult, error) {
	if strings.TrimSpace(cred.PhoneNumberID) == "" {
		return channel.ProviderResult{}, &channel.CredentialError{Kind: channel.KindMeta, Detail: "phone number id is required"}
	}
	body := map[string]any{
		"messaging_product": "whatsapp",
		"recipient_type":    "individual",
		"to":                dest.Phone,
		"type":              "text",
		"text":              map[string]any{"body": text},
	}
	raw, err := common.DoJSON(ctx, a.client, channel.KindMeta, "send_text", common.Request{
		Method:  http.MethodPost,
		URL:     a.endpoint(cred.PhoneNumberID, "messages"),
		Body:    body,
		Headers: a.authHeaders(cred),
	})
	if err != nil {
		return channel.ProviderResult{}, err
	}
	return decodeSendResult(raw)
}

// SendMedia delivers a media message. The payload data is treated as a link
// the provider fetches; a caption rides along when present.
func (a *Adapter) SendMedia(ctx context.Context, dest channel.Destination, media channel.MediaPayload, cred channel.Credential) (channel.ProviderResult, error) {
	if strings.TrimSpace(cred.PhoneNumberID) == "" {
		return channel.ProviderResult{}, &channel.CredentialError{Kind: channel.KindMeta, Detail: "phone number id is required"}
	}
	mediaType := normalizeMediaType(media.MediaType)
	mediaObject := map[string]any{"link": media.Data}
	if media.Caption != "" {
		mediaObject["caption"] = media.Caption
	}
	if mediaType == "document" && media.FileName != "" {
		mediaObject["filename"] = media.FileName
	}
	body := map[string]any{
		"messaging_product": "whatsapp",
		"recipient_type":    "individual",
		"to":                dest.Phone,
		"type":              mediaType,
		mediaType:           mediaObject,
	}
	raw, err := common.DoJSON(ctx, a.client, channel.KindMeta, "send_media", common.Request{
		Method:  http.MethodPost,
		URL:     a.endpoint(cred.PhoneNumberID, "messages"),
		Body:    body,
		Headers: a.authHeaders(cred),
	})
	if err != nil {
		return channel.ProviderResult{}, err
	}
	return decodeSendResult(raw)
}

// FetchMedia resolves a media id to its download URL, then retrieves the
// bytes. Both steps authenticate with the bearer token.
func (a *Adapter) FetchMedia(ctx context.Context, ref channel.MediaRef, cred channel.Credential) (channel.MediaContent, error) {
	if strings.TrimSpace(ref.ID) == "" {
		return channel.MediaContent{}, channel.NewValidationError("mediaId", "is required")
	}
	raw, err := common.DoJSON(ctx, a.client, channel.KindMeta, "media_lookup", common.Request{
		Method:  http.MethodGet,
		URL:     a.endpoint(ref.ID),
		Headers: a.authHeaders(cred),
	})
	if err != nil {
		return channel.MediaContent{}, err
	}
	var lookup struct {
		URL      string `json:"url"`
		MimeType string `json:"mime_type"`
	}
	if err := json.Unmarshal(raw, &lookup); err != nil {
		return channel.MediaContent{}, fmt.Errorf("meta media lookup: decode: %w", err)
	}
	if strings.TrimSpace(lookup.URL) == "" {
		return channel.MediaContent{}, channel.ErrNotFound
	}
	data, mime, err := common.FetchBytes(ctx, a.client, channel.KindMeta, "media_download", lookup.URL, a.authHeaders(cred))
	if err != nil {
		return channel.MediaContent{}, err
	}
	if mime == "" {
		mime = lookup.MimeType
	}
	return channel.MediaContent{Data: data, URL: lookup.URL, Mime: mime}, nil
}

// RegisterWebhook subscribes the application to the business account's
// webhook feed. The call is idempotent on the provider side. The instance
// name is ignored; the official channel has no instance concept.
func (a *Adapter) RegisterWebhook(ctx context.Context, _ channel.InstanceName) error {
	if strings.TrimSpace(a.cfg.BusinessID) == "" {
		return &channel.CredentialError{Kind: channel.KindMeta, Detail: "business id is required"}
	}
	_, err := common.DoJSON(ctx, a.client, channel.KindMeta, "register_webhook", common.Request{
		Method:  http.MethodPost,
		URL:     a.endpoint(a.cfg.BusinessID, "subscribed_apps"),
		Headers: a.authHeaders(channel.Credential{}),
	})
	return err
}

func decodeSendResult(raw json.RawMessage) (channel.ProviderResult, error) {
	var resp sendResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return channel.ProviderResult{}, fmt.Errorf("meta send: decode response: %w", err)
	}
	// An empty acknowledgement is treated as a rejection, never success.
	if len(resp.Messages) == 0 || strings.TrimSpace(resp.Messages[0].ID) == "" {
		return channel.ProviderResult{}, &channel.ProviderError{Kind: channel.KindMeta, Op: "send", StatusCode: http.StatusOK, Payload: raw}
	}
	return channel.ProviderResult{MessageID: resp.Messages[0].ID, Raw: raw}, nil
}

func normalizeMediaType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "image", "img", "photo":
		return "image"
	case "audio", "voice", "ptt":
		return "audio"
	case "video":
		return "video"
	default:
		return "document"
	}
}
