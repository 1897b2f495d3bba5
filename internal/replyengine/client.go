// Package replyengine calls the external reply-generation collaborator. The
// gateway never generates content itself; it forwards the inbound text and
// conversation identity and gets a reply back.
package replyengine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/omnigatehq/omnigate/internal/config"
)

const defaultTimeout = 120 * time.Second

// Reply is the generated response for one inbound message.
type Reply struct {
	Text string `json:"text"`
}

// Engine produces a reply for an inbound message. Implemented over HTTP in
// production and by fakes in tests.
type Engine interface {
	GenerateReply(ctx context.Context, conversationID, agentID, text string) (Reply, error)
}

type client struct {
	logger  *slog.Logger
	baseURL string
	http    *http.Client
}

// NewClient creates the HTTP-backed Engine.
func NewClient(log *slog.Logger, cfg config.ReplyEngineConfig) Engine {
	if log == nil {
		log = slog.Default()
	}
	timeout := defaultTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	return &client{
		logger:  log.With(slog.String("service", "replyengine")),
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *client) GenerateReply(ctx context.Context, conversationID, agentID, text string) (Reply, error) {
	if c.baseURL == "" {
		return Reply{}, fmt.Errorf("reply engine base url is not configured")
	}
	payload, err := json.Marshal(map[string]string{
		"conversationId": conversationID,
		"agentId":        agentID,
		"message":        text,
	})
	if err != nil {
		return Reply{}, fmt.Errorf("encode reply request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/replies", bytes.NewReader(payload))
	if err != nil {
		return Reply{}, fmt.Errorf("build reply request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Reply{}, fmt.Errorf("call reply engine: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Reply{}, fmt.Errorf("read reply response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Reply{}, fmt.Errorf("reply engine returned status %d: %s", resp.StatusCode, string(body))
	}
	var reply Reply
	if err := json.Unmarshal(body, &reply); err != nil {
		return Reply{}, fmt.Errorf("decode reply response: %w", err)
	}
	if strings.TrimSpace(reply.Text) == "" {
		return Reply{}, fmt.Errorf("reply engine returned an empty reply")
	}
	return reply, nil
}
