package bridge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omnigatehq/omnigate/internal/channel"
	"github.com/omnigatehq/omnigate/internal/config"
)

func newTestAdapter(t *testing.T, handler http.Handler) *Adapter {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(nil, config.BridgeConfig{
		BaseURL:    srv.URL,
		AdminKey:   "admin-key",
		WebhookURL: "https://gateway.example/webhooks/bridge",
	})
}

func mustInstanceName(t *testing.T) channel.InstanceName {
	t.Helper()
	name, err := channel.NewInstanceName("a1", "u1")
	require.NoError(t, err)
	return name
}

func TestResolveInstanceToken(t *testing.T) {
	adapter := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/instance/fetchInstances", r.URL.Path)
		assert.Equal(t, "agent-a1-user-u1", r.URL.Query().Get("instanceName"))
		assert.Equal(t, "admin-key", r.Header.Get("apikey"))
		w.Write([]byte(`[{"instance":{"instanceName":"agent-a1-user-u1"},"hash":{"apikey":"inst-token"}}]`))
	}))

	cred, err := adapter.ResolveInstanceToken(context.Background(), mustInstanceName(t))
	require.NoError(t, err)
	assert.Equal(t, "inst-token", cred.Token)
	assert.Equal(t, "agent-a1-user-u1", cred.InstanceName)
}

func TestResolveInstanceTokenNotFound(t *testing.T) {
	adapter := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))

	_, err := adapter.ResolveInstanceToken(context.Background(), mustInstanceName(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, channel.ErrInstanceNotFound)
	assert.True(t, channel.IsCredential(err))
}

func TestSendTextUsesInstanceToken(t *testing.T) {
	var gotBody map[string]any
	adapter := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/message/sendText/agent-a1-user-u1", r.URL.Path)
		assert.Equal(t, "inst-token", r.Header.Get("apikey"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Write([]byte(`{"key":{"id":"BAE5F4C3"}}`))
	}))

	cred := channel.Credential{Token: "inst-token", InstanceName: "agent-a1-user-u1"}
	result, err := adapter.SendText(context.Background(), channel.Destination{Phone: "5511888880000"}, "oi", cred)
	require.NoError(t, err)
	assert.Equal(t, "BAE5F4C3", result.MessageID)
	assert.Equal(t, "5511888880000", gotBody["number"])
	assert.Equal(t, "oi", gotBody["text"])
}

func TestSendTextRequiresInstance(t *testing.T) {
	adapter := New(nil, config.BridgeConfig{BaseURL: "http://unused"})
	_, err := adapter.SendText(context.Background(), channel.Destination{Phone: "1"}, "oi", channel.Credential{Token: "t"})
	require.Error(t, err)
	assert.True(t, channel.IsCredential(err))
}

func TestSendTextEmptyAcknowledgement(t *testing.T) {
	adapter := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))

	cred := channel.Credential{Token: "t", InstanceName: "agent-a1-user-u1"}
	_, err := adapter.SendText(context.Background(), channel.Destination{Phone: "1"}, "oi", cred)
	require.Error(t, err)
	assert.True(t, channel.IsProviderRejected(err))
}

func TestFetchMedia(t *testing.T) {
	adapter := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/getBase64FromMediaMessage/agent-a1-user-u1", r.URL.Path)
		w.Write([]byte(`{"base64":"aGVsbG8=","mimetype":"audio/ogg"}`))
	}))

	cred := channel.Credential{Token: "t", InstanceName: "agent-a1-user-u1"}
	content, err := adapter.FetchMedia(context.Background(), channel.MediaRef{ID: "msg-1"}, cred)
	require.NoError(t, err)
	// The provider's base64 text is decoded so Data is raw bytes.
	assert.Equal(t, []byte("hello"), content.Data)
	assert.Equal(t, "audio/ogg", content.Mime)
}

func TestFetchMediaBadBase64(t *testing.T) {
	adapter := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"base64":"not base64!!","mimetype":"audio/ogg"}`))
	}))

	cred := channel.Credential{Token: "t", InstanceName: "agent-a1-user-u1"}
	_, err := adapter.FetchMedia(context.Background(), channel.MediaRef{ID: "msg-1"}, cred)
	require.Error(t, err)
}

func TestFetchMediaEmptyContent(t *testing.T) {
	adapter := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))

	cred := channel.Credential{Token: "t", InstanceName: "agent-a1-user-u1"}
	_, err := adapter.FetchMedia(context.Background(), channel.MediaRef{ID: "msg-1"}, cred)
	assert.ErrorIs(t, err, channel.ErrNotFound)
}

func TestRegisterWebhook(t *testing.T) {
	var gotBody map[string]any
	adapter := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/webhook/set/agent-a1-user-u1", r.URL.Path)
		assert.Equal(t, "admin-key", r.Header.Get("apikey"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Write([]byte(`{}`))
	}))

	require.NoError(t, adapter.RegisterWebhook(context.Background(), mustInstanceName(t)))
	assert.Equal(t, "https://gateway.example/webhooks/bridge", gotBody["url"])
}

func TestConnectionArtifact(t *testing.T) {
	adapter := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/instance/connect/agent-a1-user-u1", r.URL.Path)
		w.Write([]byte(`{"base64":"data:image/png;base64,iVBOR","pairingCode":"ABCD-1234"}`))
	}))

	artifact, err := adapter.ConnectionArtifact(context.Background(), mustInstanceName(t))
	require.NoError(t, err)
	assert.Equal(t, "data:image/png;base64,iVBOR", artifact.QRCode)
	assert.Equal(t, "ABCD-1234", artifact.PairingCode)
}

func TestInstanceStatus(t *testing.T) {
	tests := []struct {
		raw  string
		want channel.InstanceState
	}{
		{"open", channel.InstanceStateConnected},
		{"connecting", channel.InstanceStateConnecting},
		{"close", channel.InstanceStateDisconnected},
		{"weird", channel.InstanceStateUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			adapter := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(map[string]any{"instance": map[string]string{"state": tt.raw}})
			}))
			state, err := adapter.InstanceStatus(context.Background(), mustInstanceName(t))
			require.NoError(t, err)
			assert.Equal(t, tt.want, state)
		})
	}
}
