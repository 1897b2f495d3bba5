package channel

import (
	"context"
)

// Adapter is the base interface every channel adapter must implement.
// Everything beyond identity is expressed through the optional capability
// interfaces below, selected by kind at the registry (tagged-variant
// dispatch, no subclassing).
type Adapter interface {
	Kind() Kind
	Descriptor() Descriptor
}

// TextSender sends a plain text message to a destination.
type TextSender interface {
	SendText(ctx context.Context, dest Destination, text string, cred Credential) (ProviderResult, error)
}

// MediaSender sends a media message to a destination.
type MediaSender interface {
	SendMedia(ctx context.Context, dest Destination, media MediaPayload, cred Credential) (ProviderResult, error)
}

// MediaFetcher retrieves the content behind a previously delivered media
// reference.
type MediaFetcher interface {
	FetchMedia(ctx context.Context, ref MediaRef, cred Credential) (MediaContent, error)
}

// TokenResolver recovers the per-instance credential for a session-based
// channel. Resolution must succeed before any send on such channels.
type TokenResolver interface {
	ResolveInstanceToken(ctx context.Context, name InstanceName) (Credential, error)
}

// WebhookRegistrar registers the gateway's inbound callback with the
// provider. Registration is idempotent and safe to repeat.
type WebhookRegistrar interface {
	RegisterWebhook(ctx context.Context, name InstanceName) error
}

// ArtifactGenerator produces a connection-establishment artifact (QR code)
// for session-based channels. Channels without a session concept do not
// implement this.
type ArtifactGenerator interface {
	ConnectionArtifact(ctx context.Context, name InstanceName) (ConnectionArtifact, error)
}

// StatusChecker reports the connection lifecycle state of a session instance.
type StatusChecker interface {
	InstanceStatus(ctx context.Context, name InstanceName) (InstanceState, error)
}
