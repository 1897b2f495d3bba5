package handlers

import (
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/omnigatehq/omnigate/internal/channel"
	"github.com/omnigatehq/omnigate/internal/gateway"
)

type sendMessageRequest struct {
	To             string `json:"to" validate:"required"`
	Message        string `json:"message" validate:"required"`
	InstanceName   string `json:"instanceName"`
	Channel        string `json:"channel"`
	ConversationID string `json:"conversationId" validate:"required"`
}

// aggregatorKind picks the channel for the generic send routes: an explicit
// channel wins; otherwise the presence of an instance name means bridge and
// its absence means courier.
func aggregatorKind(rawChannel, instanceName string) (channel.Kind, error) {
	if strings.TrimSpace(rawChannel) != "" {
		kind, ok := channel.ParseKind(rawChannel)
		if !ok {
			return "", channel.NewValidationError("channel", "unknown channel kind")
		}
		return kind, nil
	}
	if strings.TrimSpace(instanceName) != "" {
		return channel.KindBridge, nil
	}
	return channel.KindCourier, nil
}

// SendMessage handles POST /messages/send-message.
func (h *Handler) SendMessage(c echo.Context) error {
	var req sendMessageRequest
	if err := h.bindAndValidate(c, &req); err != nil {
		return err
	}
	kind, err := aggregatorKind(req.Channel, req.InstanceName)
	if err != nil {
		return httpError(err)
	}
	result, err := h.gateway.SendText(c.Request().Context(), gateway.SendTextInput{
		Channel:        kind,
		To:             req.To,
		Text:           req.Message,
		InstanceName:   req.InstanceName,
		ConversationID: req.ConversationID,
	})
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, result)
}

type sendMediaRequest struct {
	To             string `json:"to" validate:"required"`
	Media          string `json:"media" validate:"required"`
	Name           string `json:"name"`
	Type           string `json:"type" validate:"required"`
	Caption        string `json:"caption"`
	InstanceName   string `json:"instanceName"`
	Channel        string `json:"channel"`
	ConversationID string `json:"conversationId" validate:"required"`
}

// SendMedia handles POST /messages/send-media.
func (h *Handler) SendMedia(c echo.Context) error {
	var req sendMediaRequest
	if err := h.bindAndValidate(c, &req); err != nil {
		return err
	}
	kind, err := aggregatorKind(req.Channel, req.InstanceName)
	if err != nil {
		return httpError(err)
	}
	result, err := h.gateway.SendMedia(c.Request().Context(), gateway.SendMediaInput{
		Channel:        kind,
		To:             req.To,
		Media:          req.Media,
		MediaType:      req.Type,
		FileName:       req.Name,
		Caption:        req.Caption,
		InstanceName:   req.InstanceName,
		ConversationID: req.ConversationID,
	})
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, result)
}

type sendMetaMessageRequest struct {
	Message        string `json:"message" validate:"required"`
	ConversationID string `json:"conversationId" validate:"required"`
}

// SendMetaMessage handles POST /messages/send-message/meta. Destination and
// routing are both derived from the conversation record and its history, so
// the caller supplies neither a recipient nor an instance name.
func (h *Handler) SendMetaMessage(c echo.Context) error {
	var req sendMetaMessageRequest
	if err := h.bindAndValidate(c, &req); err != nil {
		return err
	}
	conv, err := h.conversations.Get(c.Request().Context(), req.ConversationID)
	if err != nil {
		return httpError(err)
	}
	result, err := h.gateway.SendText(c.Request().Context(), gateway.SendTextInput{
		Channel:        channel.KindMeta,
		To:             conv.Phone,
		Text:           req.Message,
		ConversationID: req.ConversationID,
	})
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, result)
}

type sendMetaMediaRequest struct {
	Media          string `json:"media" validate:"required"`
	Name           string `json:"name"`
	Type           string `json:"type" validate:"required"`
	Caption        string `json:"caption"`
	ConversationID string `json:"conversationId" validate:"required"`
}

// SendMetaMedia handles POST /messages/send-media/meta.
func (h *Handler) SendMetaMedia(c echo.Context) error {
	var req sendMetaMediaRequest
	if err := h.bindAndValidate(c, &req); err != nil {
		return err
	}
	conv, err := h.conversations.Get(c.Request().Context(), req.ConversationID)
	if err != nil {
		return httpError(err)
	}
	result, err := h.gateway.SendMedia(c.Request().Context(), gateway.SendMediaInput{
		Channel:        channel.KindMeta,
		To:             conv.Phone,
		Media:          req.Media,
		MediaType:      req.Type,
		FileName:       req.Name,
		Caption:        req.Caption,
		ConversationID: req.ConversationID,
	})
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, result)
}

// MediaContent handles GET /messages/media-content?id=&instanceName=.
func (h *Handler) MediaContent(c echo.Context) error {
	kind := channel.KindCourier
	if c.QueryParam("instanceName") != "" {
		kind = channel.KindBridge
	}
	content, err := h.gateway.FetchMediaContent(c.Request().Context(), gateway.MediaContentInput{
		Channel:      kind,
		ID:           c.QueryParam("id"),
		InstanceName: c.QueryParam("instanceName"),
	})
	if err != nil {
		return httpError(err)
	}
	return mediaContentResponse(c, content)
}

// MetaMediaContent handles GET /messages/media-content/meta?id=. The id is a
// stored message id; its metadata supplies the provider media reference and
// the routing credential.
func (h *Handler) MetaMediaContent(c echo.Context) error {
	content, err := h.gateway.FetchMediaContent(c.Request().Context(), gateway.MediaContentInput{
		Channel: channel.KindMeta,
		ID:      c.QueryParam("id"),
	})
	if err != nil {
		return httpError(err)
	}
	return mediaContentResponse(c, content)
}

func mediaContentResponse(c echo.Context, content channel.MediaContent) error {
	return c.JSON(http.StatusOK, map[string]any{
		"data": base64.StdEncoding.EncodeToString(content.Data),
		"mime": content.Mime,
		"url":  content.URL,
	})
}

type registerWebhookRequest struct {
	Channel      string `json:"channel" validate:"required"`
	InstanceName string `json:"instanceName"`
}

// RegisterWebhook handles POST /messages/register-webhook.
func (h *Handler) RegisterWebhook(c echo.Context) error {
	var req registerWebhookRequest
	if err := h.bindAndValidate(c, &req); err != nil {
		return err
	}
	kind, ok := channel.ParseKind(req.Channel)
	if !ok {
		return httpError(channel.NewValidationError("channel", "unknown channel kind"))
	}
	if err := h.gateway.RegisterWebhook(c.Request().Context(), kind, req.InstanceName); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "registered"})
}

// QRCode handles GET /messages/qrcode?instanceName=.
func (h *Handler) QRCode(c echo.Context) error {
	artifact, err := h.gateway.ConnectionArtifact(c.Request().Context(), channel.KindBridge, c.QueryParam("instanceName"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, artifact)
}

// InstanceStatus handles GET /messages/status?instanceName=.
func (h *Handler) InstanceStatus(c echo.Context) error {
	state, err := h.gateway.InstanceStatus(c.Request().Context(), channel.KindBridge, c.QueryParam("instanceName"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": string(state)})
}
