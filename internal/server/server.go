// Package server assembles the echo HTTP server: middleware, authentication,
// and the route table.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/omnigatehq/omnigate/internal/auth"
	"github.com/omnigatehq/omnigate/internal/config"
	"github.com/omnigatehq/omnigate/internal/handlers"
)

// Server wraps the echo instance with its listen address.
type Server struct {
	echo   *echo.Echo
	logger *slog.Logger
	addr   string
}

// New builds the HTTP server. Provider webhooks and the health endpoint skip
// JWT authentication; everything else requires a token.
func New(log *slog.Logger, cfg config.Config, h *handlers.Handler) *Server {
	if log == nil {
		log = slog.Default()
	}
	log = log.With(slog.String("service", "server"))

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus: true,
		LogURI:    true,
		LogMethod: true,
		LogError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
			}
			if v.Error != nil {
				attrs = append(attrs, slog.Any("error", v.Error))
				log.LogAttrs(c.Request().Context(), slog.LevelWarn, "request", attrs...)
				return nil
			}
			log.LogAttrs(c.Request().Context(), slog.LevelInfo, "request", attrs...)
			return nil
		},
	}))

	if cfg.Auth.JWTSecret != "" {
		e.Use(auth.Middleware(cfg.Auth, func(c echo.Context) bool {
			path := c.Request().URL.Path
			return path == "/ping" || strings.HasPrefix(path, "/webhooks/")
		}))
	}

	e.GET("/ping", h.Ping)

	messages := e.Group("/messages")
	messages.POST("/send-message", h.SendMessage)
	messages.POST("/send-media", h.SendMedia)
	messages.POST("/send-message/meta", h.SendMetaMessage)
	messages.POST("/send-media/meta", h.SendMetaMedia)
	messages.GET("/media-content", h.MediaContent)
	messages.GET("/media-content/meta", h.MetaMediaContent)
	messages.POST("/register-webhook", h.RegisterWebhook)
	messages.GET("/qrcode", h.QRCode)
	messages.GET("/status", h.InstanceStatus)

	conversations := e.Group("/conversations")
	conversations.PUT("/:id/mode", h.SetConversationMode)
	conversations.GET("/:id", h.GetConversation)
	conversations.GET("/:id/messages", h.ListConversationMessages)

	e.GET("/webhooks/meta", h.VerifyMetaWebhook)
	e.POST("/webhooks/:channel", h.Webhook)

	return &Server{echo: e, logger: log, addr: cfg.Server.Addr}
}

// Start begins serving. It blocks until the listener stops.
func (s *Server) Start() error {
	s.logger.Info("http server listening", slog.String("addr", s.addr))
	if err := s.echo.Start(s.addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Echo exposes the underlying echo instance for tests.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}
