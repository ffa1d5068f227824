package lib

import (
	"context"
	"encoding/json"
	"time"

	"tgbridge/lib/models"

	"go.uber.org/zap"
)

type reconciler struct {
	log   *zap.Logger
	store *Store
}

type reconcileResult struct {
	processed      int
	failed         int
	pendingCreated int

	highWaterID   int64
	highWaterTime *time.Time
}

// reconcile stores each inbound message idempotently and creates pending
// delivery rows for every active webhook that has never seen it. One bad
// message is logged and skipped; the rest of the batch continues.
func (r *reconciler) reconcile(ctx context.Context, channel *models.Channel, rawMessages []json.RawMessage) reconcileResult {
	res := reconcileResult{}

	for _, raw := range rawMessages {
		tm, err := ParseTelegramMessage(raw)
		if err != nil {
			r.log.Sugar().Warnw("Skipping unparseable message in batch", "channel_id", channel.ID, "err", err)
			res.failed++
			continue
		}

		if err := r.reconcileOne(ctx, channel, tm, raw, &res); err != nil {
			r.log.Sugar().Errorw("Failed to reconcile message",
				"channel_id", channel.ID, "telegram_msg_id", tm.ID, "err", err)
			res.failed++
			continue
		}
		res.processed++

		// Ties broken by input order: the last message carrying the max id
		// supplies the cursor timestamp.
		if tm.ID >= res.highWaterID {
			res.highWaterID = tm.ID
			res.highWaterTime = tm.Timestamp()
		}
	}
	return res
}

func (r *reconciler) reconcileOne(ctx context.Context, channel *models.Channel, tm *TelegramMessage, raw json.RawMessage, res *reconcileResult) error {
	msg, _, err := r.store.GetOrCreateMessage(ctx, channel.ID, tm.ID, string(raw))
	if err != nil {
		return err
	}

	missing, err := r.store.FindMissingWebhooks(ctx, tm.ID, channel.ID)
	if err != nil {
		return err
	}

	for _, webhookID := range missing {
		if _, err := r.store.CreatePendingDelivery(ctx, msg.ID, tm.ID, webhookID); err != nil {
			return err
		}
		res.pendingCreated++
	}
	return nil
}
