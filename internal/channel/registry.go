package channel

import (
	"fmt"
	"sync"
)

// Registry holds all registered channel adapters and exposes
// capability-checked accessors. It must be created via NewRegistry and passed
// explicitly to components that need it.
type Registry struct {
	mu       sync.RWMutex
	adapters map[Kind]Adapter
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		adapters: map[Kind]Adapter{},
	}
}

// Register adds an adapter to the registry.
func (r *Registry) Register(adapter Adapter) error {
	if adapter == nil {
		return fmt.Errorf("adapter is nil")
	}
	kind := adapter.Kind()
	if kind == "" {
		return fmt.Errorf("channel kind is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.adapters[kind]; exists {
		return fmt.Errorf("channel kind already registered: %s", kind)
	}
	r.adapters[kind] = adapter
	return nil
}

// MustRegister calls Register and panics on error.
func (r *Registry) MustRegister(adapter Adapter) {
	if err := r.Register(adapter); err != nil {
		panic(err)
	}
}

// Get returns the adapter for the given channel kind.
func (r *Registry) Get(kind Kind) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	adapter, ok := r.adapters[kind]
	return adapter, ok
}

// Kinds returns all registered channel kinds.
func (r *Registry) Kinds() []Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	items := make([]Kind, 0, len(r.adapters))
	for kind := range r.adapters {
		items = append(items, kind)
	}
	return items
}

// GetDescriptor returns the descriptor for the given channel kind.
func (r *Registry) GetDescriptor(kind Kind) (Descriptor, bool) {
	adapter, ok := r.Get(kind)
	if !ok {
		return Descriptor{}, false
	}
	return adapter.Descriptor(), true
}

// ParseRegisteredKind validates a raw string against the registered kinds.
func (r *Registry) ParseRegisteredKind(raw string) (Kind, error) {
	kind, ok := ParseKind(raw)
	if !ok {
		return "", fmt.Errorf("unsupported channel kind: %s", raw)
	}
	if _, ok := r.Get(kind); !ok {
		return "", fmt.Errorf("unsupported channel kind: %s", raw)
	}
	return kind, nil
}

// GetTextSender returns the TextSender for the given kind, or false if the
// channel cannot send text.
func (r *Registry) GetTextSender(kind Kind) (TextSender, bool) {
	adapter, ok := r.Get(kind)
	if !ok {
		return nil, false
	}
	sender, ok := adapter.(TextSender)
	return sender, ok
}

// GetMediaSender returns the MediaSender for the given kind.
func (r *Registry) GetMediaSender(kind Kind) (MediaSender, bool) {
	adapter, ok := r.Get(kind)
	if !ok {
		return nil, false
	}
	sender, ok := adapter.(MediaSender)
	return sender, ok
}

// GetMediaFetcher returns the MediaFetcher for the given kind.
func (r *Registry) GetMediaFetcher(kind Kind) (MediaFetcher, bool) {
	adapter, ok := r.Get(kind)
	if !ok {
		return nil, false
	}
	fetcher, ok := adapter.(MediaFetcher)
	return fetcher, ok
}

// GetTokenResolver returns the TokenResolver for the given kind.
func (r *Registry) GetTokenResolver(kind Kind) (TokenResolver, bool) {
	adapter, ok := r.Get(kind)
	if !ok {
		return nil, false
	}
	resolver, ok := adapter.(TokenResolver)
	return resolver, ok
}

// GetWebhookRegistrar returns the WebhookRegistrar for the given kind.
func (r *Registry) GetWebhookRegistrar(kind Kind) (WebhookRegistrar, bool) {
	adapter, ok := r.Get(kind)
	if !ok {
		return nil, false
	}
	registrar, ok := adapter.(WebhookRegistrar)
	return registrar, ok
}

// GetArtifactGenerator returns the ArtifactGenerator for the given kind.
func (r *Registry) GetArtifactGenerator(kind Kind) (ArtifactGenerator, bool) {
	adapter, ok := r.Get(kind)
	if !ok {
		return nil, false
	}
	generator, ok := adapter.(ArtifactGenerator)
	return generator, ok
}

// GetStatusChecker returns the StatusChecker for the given kind.
func (r *Registry) GetStatusChecker(kind Kind) (StatusChecker, bool) {
	adapter, ok := r.Get(kind)
	if !ok {
		return nil, false
	}
	checker, ok := adapter.(StatusChecker)
	return checker, ok
}
