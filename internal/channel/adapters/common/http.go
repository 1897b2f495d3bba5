// Package common holds helpers shared by the channel adapters.
package common

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/omnigatehq/omnigate/internal/channel"
)

const maxResponseBytes int64 = 8 << 20 // 8 MiB

// Request describes one provider HTTP call.
type Request struct {
	Method  string
	URL     string
	Body    any
	Headers map[string]string
}

// DoJSON performs a provider call and maps failures onto the channel error
// taxonomy: network failures become TransportError, non-2xx responses become
// ProviderError carrying the body verbatim. On success the raw body is
// returned for the caller to decode.
func DoJSON(ctx context.Context, client *http.Client, kind channel.Kind, op string, req Request) (json.RawMessage, error) {
	var bodyReader io.Reader
	if req.Body != nil {
		encoded, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("%s %s: encode request: %w", kind, op, err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("%s %s: build request: %w", kind, op, err)
	}
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, &channel.TransportError{Kind: kind, Op: op, Err: err}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &channel.TransportError{Kind: kind, Op: op, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &channel.ProviderError{Kind: kind, Op: op, StatusCode: resp.StatusCode, Payload: json.RawMessage(payload)}
	}
	return json.RawMessage(payload), nil
}

// FetchBytes retrieves a binary object (media content) with the given
// headers, mapping failures onto the same taxonomy.
func FetchBytes(ctx context.Context, client *http.Client, kind channel.Kind, op, url string, headers map[string]string) ([]byte, string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("%s %s: build request: %w", kind, op, err)
	}
	for key, value := range headers {
		httpReq.Header.Set(key, value)
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, "", &channel.TransportError{Kind: kind, Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, "", channel.ErrNotFound
	}
	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, "", &channel.TransportError{Kind: kind, Op: op, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", &channel.ProviderError{Kind: kind, Op: op, StatusCode: resp.StatusCode, Payload: json.RawMessage(payload)}
	}
	return payload, resp.Header.Get("Content-Type"), nil
}
