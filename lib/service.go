package lib

import (
	"context"

	"tgbridge/config"
	"tgbridge/lib/models"
	"tgbridge/senders"

	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Service struct {
	cfg   *config.Config
	log   *zap.Logger
	store *Store

	*reconciler
	*drainer
}

func NewService(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger, store *Store, senders senders.Registry) *Service {
	return &Service{
		cfg, log, store,
		&reconciler{log, store},
		&drainer{log, store, senders},
	}
}

type BatchResult struct {
	Processed int `json:"processed"`
	Pending   int `json:"pending"`
}

// ProcessBatch handles one inbound message batch end to end: validate, ensure
// the channel exists, reconcile messages into pending deliveries, advance the
// resume cursor, then drain the whole pending backlog (not just this batch's).
func (svc *Service) ProcessBatch(ctx context.Context, batch *Batch) (*BatchResult, error) {
	if err := batch.Validate(); err != nil {
		return nil, err
	}

	batchID := uuid.NewString()
	log := svc.log.Sugar().With("batch_id", batchID, "channel_url", batch.ChannelURL)

	var username *string
	if batch.ChannelUsername != "" {
		username = &batch.ChannelUsername
	}
	channel, err := svc.store.GetOrCreateChannel(ctx, batch.ChannelURL, username)
	if err != nil {
		return nil, err
	}

	if batch.ChannelID != nil && (channel.TelegramID == nil || *channel.TelegramID != *batch.ChannelID) {
		if err := svc.store.ResolveChannel(ctx, channel.ID, *batch.ChannelID, username); err != nil {
			// Resolution is best-effort; the URL remains the durable identity.
			log.Warnw("Failed to record resolved telegram id", "err", err)
		}
	}

	rec := svc.reconcile(ctx, channel, batch.Messages)
	log.Infow("Reconciled batch",
		"messages", len(batch.Messages), "processed", rec.processed,
		"failed", rec.failed, "pending_created", rec.pendingCreated)

	if rec.highWaterID > 0 {
		if err := svc.store.AdvanceCursor(ctx, channel.ID, rec.highWaterID, rec.highWaterTime); err != nil {
			// Messages are durably stored; a stale cursor only costs the
			// scraper a re-fetch that reconciliation dedupes anyway.
			log.Warnw("Failed to advance cursor", "err", err)
		}
	}

	dres, err := svc.drain(ctx, svc.cfg.DrainBatchLimit)
	if err != nil {
		// Messages were stored but fan-out could not even be attempted.
		return nil, err
	}

	return &BatchResult{Processed: rec.processed, Pending: dres.stillPending}, nil
}

type SubscribeParams struct {
	ChannelURL  string
	GroupID     string
	WebhookURL  string
	Description string

	// Optional Discord display metadata; when supplied, the cached info row is
	// refreshed and linked so the subscription becomes drainable.
	DiscordChannelID string
	DiscordServerID  string
	ChannelName      string
	ServerName       string
}

// Subscribe creates or reactivates the (group, channel) subscription. The same
// internal webhook row is reused across unsubscribe/resubscribe cycles.
func (svc *Service) Subscribe(ctx context.Context, p SubscribeParams) (*models.Webhook, error) {
	if p.ChannelURL == "" || p.GroupID == "" || p.WebhookURL == "" {
		return nil, &ValidationError{Reason: "channelUrl, groupId and webhookUrl are required"}
	}

	channel, err := svc.store.GetOrCreateChannel(ctx, p.ChannelURL, nil)
	if err != nil {
		return nil, err
	}

	webhook, created, err := svc.store.UpsertWebhook(ctx, channel.ID, p.GroupID, p.WebhookURL, p.Description)
	if err != nil {
		return nil, err
	}

	if p.DiscordChannelID != "" && p.DiscordServerID != "" {
		info, err := svc.store.PutWebhookInfo(ctx, p.DiscordChannelID, p.DiscordServerID, p.ChannelName, p.ServerName)
		if err != nil {
			return nil, err
		}
		if err := svc.store.LinkWebhookInfo(ctx, webhook.ID, info.ID); err != nil {
			return nil, err
		}
		webhook.WebhookInfoID = &info.ID
	}

	svc.log.Sugar().Infow("Subscription upserted",
		"webhook_id", webhook.ID, "group_id", webhook.GroupID,
		"channel_url", p.ChannelURL, "created", created)
	return webhook, nil
}

// Unsubscribe soft-deletes the subscription; delivery history is preserved.
func (svc *Service) Unsubscribe(ctx context.Context, channelURL, groupID string) (bool, error) {
	channel, err := svc.store.GetOrCreateChannel(ctx, channelURL, nil)
	if err != nil {
		return false, err
	}
	return svc.store.DeactivateWebhook(ctx, channel.ID, groupID)
}

// CursorFor returns the resume point for a channel URL, nil when the channel
// has never advanced.
func (svc *Service) CursorFor(ctx context.Context, channelURL string) (*models.Cursor, error) {
	channel, err := svc.store.GetOrCreateChannel(ctx, channelURL, nil)
	if err != nil {
		return nil, err
	}
	return svc.store.GetCursor(ctx, channel.ID)
}
