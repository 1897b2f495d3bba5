// Package courier implements the channel adapter for the secondary
// aggregator. The deployment holds a single bearer token; there are no
// per-agent instances, QR codes, or session state.
package courier

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

// Adapter implements channel.Adapter, TextSender, MediaSender, and
// MediaFetcher for the courier aggregator.
type Adapter struct {
	logger *slog.Logger
	cfg    config.CourierConfig
	client *http.Client
}

// New creates a courier Adapter from configuration.
func New(log *slog.Logger, cfg config.CourierConfig) *Adapter {
	if log == nil {
		log = slog.Default()
	}
	timeout := defaultTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	return &Adapter{
		logger: log.With(slog.String("adapter", "courier")),
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

// Kind returns the courier channel kind.
func (a *Adapter) Kind() channel.Kind {
	return channel.KindCourier
}

// Descriptor returns the courier channel metadata.
func (a *Adapter) Descriptor() channel.Descriptor {
	return channel.Descriptor{
		Kind:        channel.KindCourier,
		DisplayName: "Courier",
		Capabilities: channel.Capabilities{
			Text:       true,
			Media:      true,
			MediaFetch: true,
		},
	}
}

func (a *Adapter) endpoint(parts ...string) string {
	return strings.TrimRight(a.cfg.BaseURL, "/") + "/v1/" + strings.Join(parts, "/")
}

func (a *Adapter) headers(cred channel.Credential) map[string]string {
	token := cred.Token
	if token == "" {
		token = a.cfg.Token
	}
	return map[string]string{"Authorization": "Bearer " + token}
}

type sendResponse struct {
	MessageID string `json:"message_id"`
	Status    string `json:"status"`
}

// SendText delivers a text message.
func (a *Adapter) SendText(ctx context.Context, dest channel.Destination, text string, cred channel.Credential) (channel.ProviderResult, error) {
	raw, err := common.DoJSON(ctx, a.client, channel.KindCourier, "send_text", common.Request{
		Method: http.MethodPost,
		URL:    a.endpoint("messages"),
		Body: map[string]any{
			"to":   dest.Phone,
			"body": text,
		},
		Headers: a.headers(cred),
	})
	if err != nil {
		return channel.ProviderResult{}, err
	}
	return decodeSendResult(raw)
}

// SendMedia delivers a media message.
func (a *Adapter) SendMedia(ctx context.Context, dest channel.Destination, media channel.MediaPayload, cred channel.Credential) (channel.ProviderResult, error) {
	raw, err := common.DoJSON(ctx, a.client, channel.KindCourier, "send_media", common.Request{
		Method: http.MethodPost,
		URL:    a.endpoint("media-messages"),
		Body: map[string]any{
			"to":        dest.Phone,
			"media":     media.Data,
			"mediaType": media.MediaType,
			"fileName":  media.FileName,
			"caption":   media.Caption,
		},
		Headers: a.headers(cred),
	})
	if err != nil {
		return channel.ProviderResult{}, err
	}
	return decodeSendResult(raw)
}

// FetchMedia downloads media content by provider id.
func (a *Adapter) FetchMedia(ctx context.Context, ref channel.MediaRef, cred channel.Credential) (channel.MediaContent, error) {
	if strings.TrimSpace(ref.ID) == "" {
		return channel.MediaContent{}, channel.NewValidationError("mediaId", "is required")
	}
	data, mime, err := common.FetchBytes(ctx, a.client, channel.KindCourier, "fetch_media", a.endpoint("media", ref.ID), a.headers(cred))
	if err != nil {
		return channel.MediaContent{}, err
	}
	return channel.MediaContent{Data: data, Mime: mime}, nil
}

func decodeSendResult(raw json.RawMessage) (channel.ProviderResult, error) {
	var resp sendResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return channel.ProviderResult{}, fmt.Errorf("courier send: decode response: %w", err)
	}
	if strings.TrimSpace(resp.MessageID) == "" {
		return channel.ProviderResult{}, &channel.ProviderError{Kind: channel.KindCourier, Op: "send", StatusCode: http.StatusOK, Payload: raw}
	}
	return channel.ProviderResult{MessageID: resp.MessageID, Raw: raw}, nil
}
