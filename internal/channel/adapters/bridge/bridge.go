// Package bridge implements the channel adapter for the session-based
// aggregator. Every agent/end-user pair owns a named instance; the instance
// token must be resolved before any send, and connection establishment runs
// through a QR-code side channel polled until the instance reports connected.
package bridge

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/omnigatehq/omnigate/internal/channel"
	"github.com/omnigatehq/omnigate/internal/channel/adapters/common"
	"github.com/omnigatehq/omnigate/internal/config"
)

const defaultTimeout = 30 * time.Second

// Adapter implements the full capability surface for the bridge aggregator:
// sends, media fetch, token resolution, webhook registration, QR artifacts,
// and instance status.
type Adapter struct {
	logger *slog.Logger
	cfg    config.BridgeConfig
	client *http.Client
}

// New creates a bridge Adapter from configuration.
func New(log *slog.Logger, cfg config.BridgeConfig) *Adapter {
	if log == nil {
		log = slog.Default()
	}
	timeout := defaultTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	return &Adapter{
		logger: log.With(slog.String("adapter", "bridge")),
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

// Kind returns the bridge channel kind.
func (a *Adapter) Kind() channel.Kind {
	return channel.KindBridge
}

// Descriptor returns the bridge channel metadata.
func (a *Adapter) Descriptor() channel.Descriptor {
	return channel.Descriptor{
		Kind:        channel.KindBridge,
		DisplayName: "Session Bridge",
		Capabilities: channel.Capabilities{
			Text:       true,
			Media:      true,
			MediaFetch: true,
			Instances:  true,
			QRCode:     true,
			Webhook:    true,
		},
	}
}

func (a *Adapter) endpoint(parts ...string) string {
	return strings.TrimRight(a.cfg.BaseURL, "/") + "/" + strings.Join(parts, "/")
}

func (a *Adapter) adminHeaders() map[string]string {
	return map[string]string{"apikey": a.cfg.AdminKey}
}

func instanceHeaders(cred channel.Credential) map[string]string {
	return map[string]string{"apikey": cred.Token}
}

// ResolveInstanceToken looks the named instance up on the aggregator and
// returns its per-instance key. A missing instance is ErrInstanceNotFound;
// the caller must treat that as fatal for the operation.
func (a *Adapter) ResolveInstanceToken(ctx context.Context, name channel.InstanceName) (channel.Credential, error) {
	query := url.Values{"instanceName": {name.String()}}
	raw, err := common.DoJSON(ctx, a.client, channel.KindBridge, "resolve_token", common.Request{
		Method:  http.MethodGet,
		URL:     a.endpoint("instance", "fetchInstances") + "?" + query.Encode(),
		Headers: a.adminHeaders(),
	})
	if err != nil {
		return channel.Credential{}, err
	}
	var instances []struct {
		Instance struct {
			InstanceName string `json:"instanceName"`
		} `json:"instance"`
		Hash struct {
			APIKey string `json:"apikey"`
		} `json:"hash"`
	}
	if err := json.Unmarshal(raw, &instances); err != nil {
		return channel.Credential{}, fmt.Errorf("bridge resolve token: decode: %w", err)
	}
	for _, item := range instances {
		if item.Instance.InstanceName != name.String() {
			continue
		}
		token := strings.TrimSpace(item.Hash.APIKey)
		if token == "" {
			return channel.Credential{}, &channel.CredentialError{Kind: channel.KindBridge, Detail: fmt.Sprintf("instance %s has no token", name), Err: channel.ErrInstanceNotFound}
		}
		return channel.Credential{Token: token, InstanceName: name.String()}, nil
	}
	return channel.Credential{}, &channel.CredentialError{Kind: channel.KindBridge, Detail: fmt.Sprintf("instance %s", name), Err: channel.ErrInstanceNotFound}
}

type sendResponse struct {
	Key struct {
		ID string `json:"id"`
	} `json:"key"`
}

// SendText delivers a text message through the named instance.
func (a *Adapter) SendText(ctx context.Context, dest channel.Destination, text string, cred channel.Credential) (channel.ProviderResult, error) {
	if strings.TrimSpace(cred.InstanceName) == "" {
		return channel.ProviderResult{}, &channel.CredentialError{Kind: channel.KindBridge, Detail: "instance name is required"}
	}
	raw, err := common.DoJSON(ctx, a.client, channel.KindBridge, "send_text", common.Request{
		Method: http.MethodPost,
		URL:    a.endpoint("message", "sendText", cred.InstanceName),
		Body: map[string]any{
			"number": dest.Phone,
			"text":   text,
		},
		Headers: instanceHeaders(cred),
	})
	if err != nil {
		return channel.ProviderResult{}, err
	}
	return decodeSendResult(raw)
}

// SendMedia delivers a media message through the named instance. Data is a
// base64 payload or URL, passed through as the aggregator expects.
func (a *Adapter) SendMedia(ctx context.Context, dest channel.Destination, media channel.MediaPayload, cred channel.Credential) (channel.ProviderResult, error) {
	if strings.TrimSpace(cred.InstanceName) == "" {
		return channel.ProviderResult{}, &channel.CredentialError{Kind: channel.KindBridge, Detail: "instance name is required"}
	}
	body := map[string]any{
		"number":    dest.Phone,
		"mediatype": strings.ToLower(strings.TrimSpace(media.MediaType)),
		"media":     media.Data,
		"fileName":  media.FileName,
	}
	if media.Caption != "" {
		body["caption"] = media.Caption
	}
	raw, err := common.DoJSON(ctx, a.client, channel.KindBridge, "send_media", common.Request{
		Method:  http.MethodPost,
		URL:     a.endpoint("message", "sendMedia", cred.InstanceName),
		Body:    body,
		Headers: instanceHeaders(cred),
	})
	if err != nil {
		return channel.ProviderResult{}, err
	}
	return decodeSendResult(raw)
}

// FetchMedia retrieves the decrypted base64 content behind a delivered
// message id.
func (a *Adapter) FetchMedia(ctx context.Context, ref channel.MediaRef, cred channel.Credential) (channel.MediaContent, error) {
	if strings.TrimSpace(ref.ID) == "" {
		return channel.MediaContent{}, channel.NewValidationError("mediaId", "is required")
	}
	instance := ref.InstanceName
	if instance == "" {
		instance = cred.InstanceName
	}
	if strings.TrimSpace(instance) == "" {
		return channel.MediaContent{}, &channel.CredentialError{Kind: channel.KindBridge, Detail: "instance name is required"}
	}
	raw, err := common.DoJSON(ctx, a.client, channel.KindBridge, "fetch_media", common.Request{
		Method: http.MethodPost,
		URL:    a.endpoint("chat", "getBase64FromMediaMessage", instance),
		Body: map[string]any{
			"message": map[string]any{"key": map[string]any{"id": ref.ID}},
		},
		Headers: instanceHeaders(cred),
	})
	if err != nil {
		return channel.MediaContent{}, err
	}
	var content struct {
		Base64   string `json:"base64"`
		MimeType string `json:"mimetype"`
	}
	if err := json.Unmarshal(raw, &content); err != nil {
		return channel.MediaContent{}, fmt.Errorf("bridge fetch media: decode: %w", err)
	}
	if strings.TrimSpace(content.Base64) == "" {
		return channel.MediaContent{}, channel.ErrNotFound
	}
	// Data must be raw bytes like every other channel.
	decoded, err := base64.StdEncoding.DecodeString(content.Base64)
	if err != nil {
		return channel.MediaContent{}, fmt.Errorf("bridge fetch media: decode base64: %w", err)
	}
	return channel.MediaContent{Data: decoded, Mime: content.MimeType}, nil
}

// RegisterWebhook points the instance's event callback at the gateway.
// Repeating the call overwrites the same registration, so it is idempotent.
func (a *Adapter) RegisterWebhook(ctx context.Context, name channel.InstanceName) error {
	if name.IsZero() {
		return channel.NewValidationError("instanceName", "is required")
	}
	_, err := common.DoJSON(ctx, a.client, channel.KindBridge, "register_webhook", common.Request{
		Method: http.MethodPost,
		URL:    a.endpoint("webhook", "set", name.String()),
		Body: map[string]any{
			"url":      a.cfg.WebhookURL,
			"events":   []string{"messages.upsert"},
			"base64":   true,
			"byEvents": false,
		},
		Headers: a.adminHeaders(),
	})
	return err
}

// ConnectionArtifact returns the pairing QR code for the named instance.
// External callers poll this until InstanceStatus reports connected.
func (a *Adapter) ConnectionArtifact(ctx context.Context, name channel.InstanceName) (channel.ConnectionArtifact, error) {
	if name.IsZero() {
		return channel.ConnectionArtifact{}, channel.NewValidationError("instanceName", "is required")
	}
	raw, err := common.DoJSON(ctx, a.client, channel.KindBridge, "connection_artifact", common.Request{
		Method:  http.MethodGet,
		URL:     a.endpoint("instance", "connect", name.String()),
		Headers: a.adminHeaders(),
	})
	if err != nil {
		return channel.ConnectionArtifact{}, err
	}
	var artifact struct {
		Base64      string `json:"base64"`
		PairingCode string `json:"pairingCode"`
	}
	if err := json.Unmarshal(raw, &artifact); err != nil {
		return channel.ConnectionArtifact{}, fmt.Errorf("bridge connect: decode: %w", err)
	}
	if artifact.Base64 == "" && artifact.PairingCode == "" {
		return channel.ConnectionArtifact{}, channel.ErrNotFound
	}
	return channel.ConnectionArtifact{QRCode: artifact.Base64, PairingCode: artifact.PairingCode}, nil
}

// InstanceStatus reports the instance connection state.
func (a *Adapter) InstanceStatus(ctx context.Context, name channel.InstanceName) (channel.InstanceState, error) {
	if name.IsZero() {
		return channel.InstanceStateUnknown, channel.NewValidationError("instanceName", "is required")
	}
	raw, err := common.DoJSON(ctx, a.client, channel.KindBridge, "instance_status", common.Request{
		Method:  http.MethodGet,
		URL:     a.endpoint("instance", "connectionState", name.String()),
		Headers: a.adminHeaders(),
	})
	if err != nil {
		return channel.InstanceStateUnknown, err
	}
	var status struct {
		Instance struct {
			State string `json:"state"`
		} `json:"instance"`
	}
	if err := json.Unmarshal(raw, &status); err != nil {
		return channel.InstanceStateUnknown, fmt.Errorf("bridge status: decode: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(status.Instance.State)) {
	case "open", "connected":
		return channel.InstanceStateConnected, nil
	case "connecting":
		return channel.InstanceStateConnecting, nil
	case "close", "closed", "disconnected":
		return channel.InstanceStateDisconnected, nil
	default:
		return channel.InstanceStateUnknown, nil
	}
}

func decodeSendResult(raw json.RawMessage) (channel.ProviderResult, error) {
	var resp sendResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return channel.ProviderResult{}, fmt.Errorf("bridge send: decode response: %w", err)
	}
	// Empty acknowledgement counts as rejection, never success.
	if strings.TrimSpace(resp.Key.ID) == "" {
		return channel.ProviderResult{}, &channel.ProviderError{Kind: channel.KindBridge, Op: "send", StatusCode: http.StatusOK, Payload: raw}
	}
	return channel.ProviderResult{MessageID: resp.Key.ID, Raw: raw}, nil
}
