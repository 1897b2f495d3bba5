package meta

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

func newTestAdapter(t *testing.T, handler http.Handler) (*Adapter, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	adapter := New(nil, config.MetaConfig{
		BaseURL:     srv.URL,
		APIVersion:  "v21.0",
		AccessToken: "top-secret",
		BusinessID:  "biz-1",
	})
	return adapter, srv
}

func TestSendText(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]any
	adapter, _ := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(map[string]any{
			"messages": []map[string]string{{"id": "wamid.123"}},
		})
	}))

	result, err := adapter.SendText(context.Background(), channel.Destination{Phone: "5511999990000"}, "hello", channel.Credential{PhoneNumberID: "pn-1"})
	require.NoError(t, err)
	assert.Equal(t, "wamid.123", result.MessageID)
	assert.NotEmpty(t, result.Raw)
	assert.Equal(t, "/v21.0/pn-1/messages", gotPath)
	assert.Equal(t, "Bearer top-secret", gotAuth)
	assert.Equal(t, "text", gotBody["type"])
	assert.Equal(t, "5511999990000", gotBody["to"])
}

func TestSendTextRequiresPhoneNumberID(t *testing.T) {
	adapter := New(nil, config.MetaConfig{BaseURL: "http://unused", APIVersion: "v21.0"})
	_, err := adapter.SendText(context.Background(), channel.Destination{Phone: "1"}, "hi", channel.Credential{})
	require.Error(t, err)
	assert.True(t, channel.IsCredential(err))
}

func TestSendTextProviderRejection(t *testing.T) {
	rejection := `{"error":{"message":"invalid recipient","code":131026}}`
	adapter, _ := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(rejection))
	}))

	_, err := adapter.SendText(context.Background(), channel.Destination{Phone: "1"}, "hi", channel.Credential{PhoneNumberID: "pn-1"})
	require.Error(t, err)
	var pe *channel.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, http.StatusBadRequest, pe.StatusCode)
	// The rejection payload must survive verbatim.
	assert.JSONEq(t, rejection, string(pe.Payload))
}

func TestSendTextEmptyAcknowledgement(t *testing.T) {
	adapter, _ := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"messages":[]}`))
	}))

	_, err := adapter.SendText(context.Background(), channel.Destination{Phone: "1"}, "hi", channel.Credential{PhoneNumberID: "pn-1"})
	require.Error(t, err)
	assert.True(t, channel.IsProviderRejected(err))
}

func TestSendMediaBuildsTypedObject(t *testing.T) {
	var gotBody map[string]any
	adapter, _ := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(map[string]any{
			"messages": []map[string]string{{"id": "wamid.456"}},
		})
	}))

	payload := channel.MediaPayload{Data: "https://cdn.example/file.pdf", MediaType: "document", FileName: "report.pdf", Caption: "Q3"}
	result, err := adapter.SendMedia(context.Background(), channel.Destination{Phone: "1"}, payload, channel.Credential{PhoneNumberID: "pn-1"})
	require.NoError(t, err)
	assert.Equal(t, "wamid.456", result.MessageID)
	assert.Equal(t, "document", gotBody["type"])
	doc, ok := gotBody["document"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "https://cdn.example/file.pdf", doc["link"])
	assert.Equal(t, "report.pdf", doc["filename"])
	assert.Equal(t, "Q3", doc["caption"])
}

func TestFetchMedia(t *testing.T) {
	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc("/v21.0/media-1", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"url":       srv.URL + "/download",
			"mime_type": "image/jpeg",
		})
	})
	mux.HandleFunc("/download", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer top-secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write([]byte("jpeg-bytes"))
	})
	adapter, s := newTestAdapter(t, mux)
	srv = s

	content, err := adapter.FetchMedia(context.Background(), channel.MediaRef{ID: "media-1"}, channel.Credential{})
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg-bytes"), content.Data)
	assert.Equal(t, "image/jpeg", content.Mime)
}

func TestFetchMediaMissingID(t *testing.T) {
	adapter := New(nil, config.MetaConfig{BaseURL: "http://unused", APIVersion: "v21.0"})
	_, err := adapter.FetchMedia(context.Background(), channel.MediaRef{}, channel.Credential{})
	require.Error(t, err)
	assert.True(t, channel.IsValidation(err))
}

func TestNormalizeMediaType(t *testing.T) {
	tests := map[string]string{
		"image": "image",
		"Photo": "image",
		"voice": "audio",
		"video": "video",
		"pdf":   "document",
		"":      "document",
	}
	for raw, want := range tests {
		if got := normalizeMediaType(raw); got != want {
			t.Fatalf("normalizeMediaType(%q) = %q, want %q", raw, got, want)
		}
	}
}
