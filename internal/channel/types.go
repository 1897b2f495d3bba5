// Package channel provides a unified abstraction for heterogeneous messaging
// providers. It defines the capability interfaces, typed errors, and a
// registry for channel adapters such as the official business API and the
// session-based aggregators.
package channel

import (
	"encoding/json"
	"strings"
)

// Kind identifies a messaging provider ("meta", "bridge", "courier").
type Kind string

const (
	KindMeta    Kind = "meta"
	KindBridge  Kind = "bridge"
	KindCourier Kind = "courier"
)

// String returns the channel kind as a plain string.
func (k Kind) String() string {
	return string(k)
}

// Credential is the resolved secret material an adapter needs for one call.
// Which fields are populated depends on the channel kind.
type Credential struct {
	// Token is the bearer or API key used to authenticate the call.
	Token string
	// PhoneNumberID routes official-API calls; derived from stored message
	// metadata, never from an instance registration.
	PhoneNumberID string
	// InstanceName is set for session-based channels.
	InstanceName string
}

// Destination addresses the remote party of an outbound send.
type Destination struct {
	// Phone is the E.164-ish recipient identifier.
	Phone string
}

// MediaPayload carries outbound media content.
type MediaPayload struct {
	// Data is the base64 or URL reference, provider-dependent.
	Data string
	// MediaType classifies the payload ("image", "audio", "video", "document").
	MediaType string
	// FileName is the display name shown to the recipient.
	FileName string
	// Caption is optional accompanying text.
	Caption string
}

// MediaRef identifies already-delivered media for a later content fetch.
type MediaRef struct {
	// ID is the provider media identifier.
	ID string
	// PhoneNumberID is required for official-API fetches.
	PhoneNumberID string
	// InstanceName is required for session-based fetches.
	InstanceName string
}

// MediaContent is the result of a media fetch: either raw bytes or a URL the
// caller can retrieve directly.
type MediaContent struct {
	Data []byte
	URL  string
	Mime string
}

// ProviderResult is the normalized acknowledgement of a successful send.
// Raw preserves the provider payload verbatim so the persisted message
// metadata retains every identifier needed for later media fetches.
type ProviderResult struct {
	MessageID string
	Raw       json.RawMessage
}

// IsZero reports whether the provider returned no usable acknowledgement.
func (r ProviderResult) IsZero() bool {
	return strings.TrimSpace(r.MessageID) == "" && len(r.Raw) == 0
}

// InstanceState describes a session-based instance's connection lifecycle.
type InstanceState string

const (
	InstanceStateConnecting   InstanceState = "connecting"
	InstanceStateConnected    InstanceState = "connected"
	InstanceStateDisconnected InstanceState = "disconnected"
	InstanceStateUnknown      InstanceState = "unknown"
)

// ConnectionArtifact is the connection-establishment side channel payload,
// a QR code for session-based channels.
type ConnectionArtifact struct {
	// QRCode is the base64-encoded image to present for pairing.
	QRCode string
	// PairingCode is the alternative numeric pairing code when offered.
	PairingCode string
}

// Capabilities is the static feature matrix of a channel kind.
type Capabilities struct {
	Text       bool
	Media      bool
	MediaFetch bool
	Instances  bool
	QRCode     bool
	Webhook    bool
}

// Descriptor holds read-only metadata for a registered channel kind.
// It carries no behavior; behavior is expressed through optional interfaces.
type Descriptor struct {
	Kind         Kind
	DisplayName  string
	Capabilities Capabilities
}

// ParseKind validates and normalizes a raw channel kind string.
func ParseKind(raw string) (Kind, bool) {
	switch Kind(strings.ToLower(strings.TrimSpace(raw))) {
	case KindMeta:
		return KindMeta, true
	case KindBridge:
		return KindBridge, true
	case KindCourier:
		return KindCourier, true
	}
	return "", false
}
