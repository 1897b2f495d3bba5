package replyengine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omnigatehq/omnigate/internal/config"
)

func TestGenerateReply(t *testing.T) {
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/replies", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(map[string]string{"text": "Hi, how can I help?"})
	}))
	defer srv.Close()

	engine := NewClient(nil, config.ReplyEngineConfig{BaseURL: srv.URL})
	reply, err := engine.GenerateReply(context.Background(), "conv-1", "agent-1", "Hello")
	require.NoError(t, err)
	assert.Equal(t, "Hi, how can I help?", reply.Text)
	assert.Equal(t, "conv-1", gotBody["conversationId"])
	assert.Equal(t, "agent-1", gotBody["agentId"])
	assert.Equal(t, "Hello", gotBody["message"])
}

func TestGenerateReplyEmptyText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"text": "   "})
	}))
	defer srv.Close()

	engine := NewClient(nil, config.ReplyEngineConfig{BaseURL: srv.URL})
	_, err := engine.GenerateReply(context.Background(), "c", "a", "hi")
	require.Error(t, err)
}

func TestGenerateReplyErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	engine := NewClient(nil, config.ReplyEngineConfig{BaseURL: srv.URL})
	_, err := engine.GenerateReply(context.Background(), "c", "a", "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestGenerateReplyUnconfigured(t *testing.T) {
	engine := NewClient(nil, config.ReplyEngineConfig{})
	_, err := engine.GenerateReply(context.Background(), "c", "a", "hi")
	require.Error(t, err)
}
