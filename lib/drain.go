package lib

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"tgbridge/lib/models"
	"tgbridge/senders"

	"go.uber.org/zap"
)

// telegramColor is the embed accent used for all forwarded messages.
const telegramColor = 0x229ED9

type drainer struct {
	log     *zap.Logger
	store   *Store
	senders senders.Registry
}

type drainResult struct {
	success      int
	errored      int
	stillPending int
}

// drain executes up to limit pending deliveries system-wide, oldest first and
// strictly one at a time so the shared per-webhook rate limits stay fair. Each
// delivery ends in a terminal state; failures are recorded, never re-enqueued.
// Only a failure of the pending listing itself is escalated.
func (d *drainer) drain(ctx context.Context, limit int) (*drainResult, error) {
	pending, err := d.store.ListPendingDeliveries(ctx, limit)
	if err != nil {
		return nil, err
	}

	res := &drainResult{}
	for _, pd := range pending {
		if err := d.deliver(ctx, pd); err != nil {
			res.errored++
		} else {
			res.success++
		}
	}

	remaining, err := d.store.CountPendingDeliveries(ctx)
	if err != nil {
		d.log.Sugar().Warnw("Failed to count remaining backlog", "err", err)
	} else {
		res.stillPending = int(remaining)
	}

	if res.success > 0 || res.errored > 0 {
		d.log.Sugar().Infow("Drain completed",
			"success", res.success, "errored", res.errored, "still_pending", res.stillPending)
	}
	return res, nil
}

func (d *drainer) deliver(ctx context.Context, pd PendingDelivery) error {
	tm, err := ParseTelegramMessage([]byte(pd.Payload))
	if err != nil {
		// Stored blob is unusable; terminal without a send attempt.
		d.markError(ctx, pd.DeliveryID, err)
		return err
	}

	sender, ok := d.senders["discord"]
	if !ok {
		err := errors.New("no discord sender registered")
		d.markError(ctx, pd.DeliveryID, err)
		return err
	}

	msg := renderWebhookMessage(pd, tm)
	if err := sender.Send(ctx, pd.WebhookURL, msg); err != nil {
		d.log.Sugar().Infow("Delivery failed",
			"delivery_id", pd.DeliveryID, "telegram_msg_id", pd.TelegramMsgID, "err", err)
		d.markError(ctx, pd.DeliveryID, err)
		return err
	}

	return d.store.MarkDelivery(ctx, pd.DeliveryID, models.DeliverySuccess, nil)
}

func (d *drainer) markError(ctx context.Context, deliveryID uint, cause error) {
	detail := cause.Error()
	if err := d.store.MarkDelivery(ctx, deliveryID, models.DeliveryError, &detail); err != nil {
		d.log.Sugar().Errorw("Failed to mark delivery as errored", "delivery_id", deliveryID, "err", err)
	}
}

// renderWebhookMessage shapes one stored Telegram message into the Discord
// webhook payload. Size limits are enforced by Clamp inside the sender.
func renderWebhookMessage(pd PendingDelivery, tm *TelegramMessage) *senders.WebhookMessage {
	handle := channelHandle(pd)

	embed := senders.Embed{
		Title:       fmt.Sprintf("New message from @%s", handle),
		Description: tm.Message,
		Color:       telegramColor,
	}
	if ts := tm.Timestamp(); ts != nil {
		embed.Timestamp = ts.Format("2006-01-02T15:04:05Z07:00")
	}
	if tm.Views != nil {
		embed.Fields = append(embed.Fields, senders.EmbedField{
			Name: "Views", Value: fmt.Sprintf("%d", *tm.Views), Inline: true,
		})
	}
	if tm.Forwards != nil {
		embed.Fields = append(embed.Fields, senders.EmbedField{
			Name: "Forwards", Value: fmt.Sprintf("%d", *tm.Forwards), Inline: true,
		})
	}
	if tm.PostAuthor != nil && *tm.PostAuthor != "" {
		embed.Fields = append(embed.Fields, senders.EmbedField{
			Name: "Author", Value: *tm.PostAuthor, Inline: true,
		})
	}
	if tm.Media != nil && *tm.Media != "" {
		embed.Fields = append(embed.Fields, senders.EmbedField{
			Name: "Media", Value: *tm.Media, Inline: true,
		})
	}

	return &senders.WebhookMessage{
		Username: handle,
		Embeds:   []senders.Embed{embed},
	}
}

func channelHandle(pd PendingDelivery) string {
	if pd.TelegramUsername != nil && *pd.TelegramUsername != "" {
		return *pd.TelegramUsername
	}
	if i := strings.LastIndex(pd.TelegramURL, "/"); i >= 0 && i < len(pd.TelegramURL)-1 {
		return pd.TelegramURL[i+1:]
	}
	return pd.TelegramURL
}
