// Package handlers exposes the gateway over HTTP.
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/omnigatehq/omnigate/internal/channel"
	"github.com/omnigatehq/omnigate/internal/config"
	"github.com/omnigatehq/omnigate/internal/conversation"
	"github.com/omnigatehq/omnigate/internal/gateway"
	"github.com/omnigatehq/omnigate/internal/message"
)

// Handler carries the dependencies shared by all HTTP handlers.
type Handler struct {
	logger        *slog.Logger
	gateway       *gateway.Gateway
	conversations conversation.Service
	messages      message.Service
	cfg           config.Config
	validate      *validator.Validate
}

// New creates the Handler.
func New(log *slog.Logger, gw *gateway.Gateway, conversations conversation.Service, messages message.Service, cfg config.Config) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		logger:        log.With(slog.String("handler", "http")),
		gateway:       gw,
		conversations: conversations,
		messages:      messages,
		cfg:           cfg,
		validate:      validator.New(),
	}
}

// Ping responds to health checks.
func (h *Handler) Ping(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// bindAndValidate decodes the request body and runs struct validation before
// anything else happens.
func (h *Handler) bindAndValidate(c echo.Context, out any) error {
	if err := c.Bind(out); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	if err := h.validate.Struct(out); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

// httpError maps the domain error taxonomy onto HTTP responses. Provider
// rejections keep their payload verbatim so callers can see exactly what the
// provider said.
func httpError(err error) error {
	var (
		validationErr *channel.ValidationError
		credErr       *channel.CredentialError
		transportErr  *channel.TransportError
		providerErr   *channel.ProviderError
	)
	switch {
	case errors.As(err, &validationErr):
		return echo.NewHTTPError(http.StatusBadRequest, validationErr.Error())
	case errors.Is(err, channel.ErrUnsupported):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, channel.ErrInstanceNotFound), errors.Is(err, channel.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.As(err, &credErr):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, credErr.Error())
	case errors.As(err, &providerErr):
		return echo.NewHTTPError(http.StatusBadGateway, map[string]any{
			"message":  "provider rejected the request",
			"status":   providerErr.StatusCode,
			"provider": json.RawMessage(providerErr.Payload),
		})
	case errors.As(err, &transportErr):
		return echo.NewHTTPError(http.StatusBadGateway, transportErr.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
