package gateway

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/omnigatehq/omnigate/internal/channel"
	"github.com/omnigatehq/omnigate/internal/conversation"
)

const reconcileTimeout = 2 * time.Minute

// WebhookReconciler periodically re-runs the idempotent webhook registration
// for every channel that supports it, so a provider-side reset heals without
// operator action.
type WebhookReconciler struct {
	logger        *slog.Logger
	gateway       *Gateway
	conversations conversation.Service
	cron          *cron.Cron
	spec          string
	metaEnabled   bool
}

// NewWebhookReconciler creates a reconciler running on the given cron spec.
// metaEnabled gates the official-channel re-registration; deployments without
// official-API credentials skip it entirely.
func NewWebhookReconciler(log *slog.Logger, gw *Gateway, conversations conversation.Service, spec string, metaEnabled bool) *WebhookReconciler {
	if log == nil {
		log = slog.Default()
	}
	return &WebhookReconciler{
		logger:        log.With(slog.String("service", "webhook-reconciler")),
		gateway:       gw,
		conversations: conversations,
		cron:          cron.New(),
		spec:          spec,
		metaEnabled:   metaEnabled,
	}
}

// Start schedules the reconcile job and begins the cron loop.
func (r *WebhookReconciler) Start() error {
	if _, err := r.cron.AddFunc(r.spec, r.run); err != nil {
		return err
	}
	r.cron.Start()
	return nil
}

// Stop halts the cron loop and waits for a running job to finish.
func (r *WebhookReconciler) Stop() {
	<-r.cron.Stop().Done()
}

func (r *WebhookReconciler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), reconcileTimeout)
	defer cancel()

	if r.metaEnabled {
		if err := r.gateway.RegisterWebhook(ctx, channel.KindMeta, ""); err != nil {
			r.logger.Warn("meta webhook re-registration failed", slog.Any("error", err))
		}
	}

	convs, err := r.conversations.ListByChannel(ctx, channel.KindBridge)
	if err != nil {
		r.logger.Warn("list bridge conversations failed", slog.Any("error", err))
		return
	}
	for _, conv := range convs {
		name, err := channel.NewInstanceName(conv.AgentID, conv.ContactID)
		if err != nil {
			r.logger.Warn("skip malformed instance identity",
				slog.String("conversation_id", conv.ID),
				slog.Any("error", err))
			continue
		}
		if err := r.gateway.RegisterWebhook(ctx, channel.KindBridge, name.String()); err != nil {
			r.logger.Warn("bridge webhook re-registration failed",
				slog.String("instance", name.String()),
				slog.Any("error", err))
		}
	}
	r.logger.Debug("webhook reconcile pass complete", slog.Int("bridge_instances", len(convs)))
}
