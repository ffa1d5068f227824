package lib

import (
	"context"
	"errors"
	"time"

	"tgbridge/lib/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store owns all entity persistence. Every write is idempotent from the
// caller's perspective: creating an already-existing channel, message or
// delivery returns the existing row instead of erroring. Each operation is a
// single statement; no transaction spans components.
type Store struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewStore(db *gorm.DB, log *zap.Logger) *Store {
	return &Store{db, log}
}

func (s *Store) GetOrCreateChannel(ctx context.Context, telegramURL string, username *string) (*models.Channel, error) {
	ch := &models.Channel{}
	tx := s.db.WithContext(ctx).Where("telegram_url = ?", telegramURL).First(ch)
	if err := tx.Error; err == nil {
		return ch, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storeErr("lookup channel", err)
	}

	ch = &models.Channel{TelegramURL: telegramURL, TelegramUsername: username}
	tx = s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "telegram_url"}}, DoNothing: true}).
		Create(ch)
	if err := tx.Error; err != nil {
		return nil, storeErr("create channel", err)
	}
	if tx.RowsAffected == 0 {
		// Lost a race against a concurrent insert; the existing row wins.
		tx = s.db.WithContext(ctx).Where("telegram_url = ?", telegramURL).First(ch)
		if err := tx.Error; err != nil {
			return nil, storeErr("refetch channel", err)
		}
	}
	return ch, nil
}

// ResolveChannel records the numeric telegram id and username once the scraper
// has resolved them. Safe to call repeatedly with unchanged values.
func (s *Store) ResolveChannel(ctx context.Context, channelID uint, telegramID int64, username *string) error {
	updates := map[string]any{"telegram_id": telegramID}
	if username != nil {
		updates["telegram_username"] = *username
	}
	tx := s.db.WithContext(ctx).
		Model(&models.Channel{}).
		Where("id = ?", channelID).
		Updates(updates)
	return storeErr("resolve channel", tx.Error)
}

// UpsertWebhook creates a subscription for (group, channel), or reactivates and
// refreshes the existing row so the same internal id keeps its delivery history.
func (s *Store) UpsertWebhook(ctx context.Context, channelID uint, groupID, webhookURL, description string) (*models.Webhook, bool, error) {
	groupID = models.NormalizeGroupID(groupID)

	wh := &models.Webhook{}
	tx := s.db.WithContext(ctx).
		Where("channel_id = ? AND group_id = ?", channelID, groupID).
		First(wh)
	if err := tx.Error; errors.Is(err, gorm.ErrRecordNotFound) {
		wh = &models.Webhook{
			ChannelID:   channelID,
			GroupID:     groupID,
			WebhookURL:  webhookURL,
			Description: description,
			IsActive:    true,
		}
		if err := s.db.WithContext(ctx).Create(wh).Error; err != nil {
			return nil, false, storeErr("create webhook", err)
		}
		return wh, true, nil
	} else if err != nil {
		return nil, false, storeErr("lookup webhook", err)
	}

	tx = s.db.WithContext(ctx).Model(wh).Updates(map[string]any{
		"webhook_url": webhookURL,
		"description": description,
		"is_active":   true,
	})
	if err := tx.Error; err != nil {
		return nil, false, storeErr("reactivate webhook", err)
	}
	return wh, false, nil
}

// DeactivateWebhook soft-deletes a subscription. Returns false when no active
// row existed, which callers treat as a no-op rather than an error.
func (s *Store) DeactivateWebhook(ctx context.Context, channelID uint, groupID string) (bool, error) {
	tx := s.db.WithContext(ctx).
		Model(&models.Webhook{}).
		Where("channel_id = ? AND group_id = ? AND is_active = ?", channelID, models.NormalizeGroupID(groupID), true).
		Update("is_active", false)
	if err := tx.Error; err != nil {
		return false, storeErr("deactivate webhook", err)
	}
	return tx.RowsAffected > 0, nil
}

// PutWebhookInfo upserts cached display metadata keyed by the Discord
// (channel, server) id pair, refreshing names when they drift.
func (s *Store) PutWebhookInfo(ctx context.Context, discordChannelID, discordServerID, channelName, serverName string) (*models.WebhookInfo, error) {
	info := &models.WebhookInfo{
		DiscordChannelID: discordChannelID,
		DiscordServerID:  discordServerID,
		ChannelName:      channelName,
		ServerName:       serverName,
	}
	tx := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "discord_channel_id"}, {Name: "discord_server_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"channel_name", "server_name", "updated_at"}),
		}).
		Create(info)
	if err := tx.Error; err != nil {
		return nil, storeErr("upsert webhook info", err)
	}
	if info.ID == 0 {
		tx = s.db.WithContext(ctx).
			Where("discord_channel_id = ? AND discord_server_id = ?", discordChannelID, discordServerID).
			First(info)
		if err := tx.Error; err != nil {
			return nil, storeErr("refetch webhook info", err)
		}
	}
	return info, nil
}

// LinkWebhookInfo points a webhook at its cached display metadata.
func (s *Store) LinkWebhookInfo(ctx context.Context, webhookID, infoID uint) error {
	tx := s.db.WithContext(ctx).
		Model(&models.Webhook{}).
		Where("id = ?", webhookID).
		Update("webhook_info_id", infoID)
	return storeErr("link webhook info", tx.Error)
}

func (s *Store) GetOrCreateMessage(ctx context.Context, channelID uint, telegramMsgID int64, payload string) (*models.Message, bool, error) {
	msg := &models.Message{
		TelegramMsgID: telegramMsgID,
		ChannelID:     channelID,
		Payload:       payload,
	}
	tx := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "telegram_msg_id"}, {Name: "channel_id"}},
			DoNothing: true,
		}).
		Create(msg)
	if err := tx.Error; err != nil {
		return nil, false, storeErr("create message", err)
	}
	if tx.RowsAffected > 0 {
		return msg, true, nil
	}
	tx = s.db.WithContext(ctx).
		Where("telegram_msg_id = ? AND channel_id = ?", telegramMsgID, channelID).
		First(msg)
	if err := tx.Error; err != nil {
		return nil, false, storeErr("refetch message", err)
	}
	return msg, false, nil
}

// FindMissingWebhooks returns active webhooks on the channel that have no
// delivery row yet for this telegram message id. Existence is status-agnostic:
// an errored delivery still counts as handled and is never recreated.
func (s *Store) FindMissingWebhooks(ctx context.Context, telegramMsgID int64, channelID uint) ([]uint, error) {
	var ids []uint
	tx := s.db.WithContext(ctx).
		Model(&models.Webhook{}).
		Where("channel_id = ? AND is_active = ?", channelID, true).
		Where(`NOT EXISTS (
			SELECT 1 FROM msg_delivery
			WHERE msg_delivery.webhook_id = discord_webhook.id
			  AND msg_delivery.telegram_msg_id = ?
			  AND msg_delivery.deleted_at IS NULL
		)`, telegramMsgID).
		Order("discord_webhook.id asc").
		Pluck("discord_webhook.id", &ids)
	if err := tx.Error; err != nil {
		return nil, storeErr("find missing webhooks", err)
	}
	return ids, nil
}

// CreatePendingDelivery inserts the unique (message, webhook) tracking row. On
// conflict the pre-existing row is returned untouched, whatever its status.
func (s *Store) CreatePendingDelivery(ctx context.Context, messageID uint, telegramMsgID int64, webhookID uint) (*models.Delivery, error) {
	d := &models.Delivery{
		MessageID:     messageID,
		TelegramMsgID: telegramMsgID,
		WebhookID:     webhookID,
		Status:        models.DeliveryPending,
	}
	tx := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "message_id"}, {Name: "webhook_id"}},
			DoNothing: true,
		}).
		Create(d)
	if err := tx.Error; err != nil {
		return nil, storeErr("create delivery", err)
	}
	if tx.RowsAffected > 0 {
		return d, nil
	}
	tx = s.db.WithContext(ctx).
		Where("message_id = ? AND webhook_id = ?", messageID, webhookID).
		First(d)
	if err := tx.Error; err != nil {
		return nil, storeErr("refetch delivery", err)
	}
	return d, nil
}

// PendingDelivery is the joined drain view: the delivery row plus everything
// needed to render and post it.
type PendingDelivery struct {
	DeliveryID       uint
	TelegramMsgID    int64
	Payload          string
	WebhookID        uint
	WebhookURL       string
	ChannelName      string
	ServerName       string
	TelegramURL      string
	TelegramUsername *string
	CreatedAt        time.Time
}

// ListPendingDeliveries fetches up to limit pending rows oldest-first. A
// delivery whose webhook is inactive or has no cached display metadata is
// excluded from the drain set until the metadata is backfilled.
func (s *Store) ListPendingDeliveries(ctx context.Context, limit int) ([]PendingDelivery, error) {
	var out []PendingDelivery
	tx := s.db.WithContext(ctx).
		Table("msg_delivery").
		Select(`msg_delivery.id AS delivery_id,
			msg_delivery.telegram_msg_id,
			msg_delivery.created_at,
			telegram_message.payload,
			discord_webhook.id AS webhook_id,
			discord_webhook.webhook_url,
			discord_webhook_info.channel_name,
			discord_webhook_info.server_name,
			telegram_channel.telegram_url,
			telegram_channel.telegram_username`).
		Joins("JOIN telegram_message ON telegram_message.id = msg_delivery.message_id").
		Joins("JOIN telegram_channel ON telegram_channel.id = telegram_message.channel_id").
		Joins("JOIN discord_webhook ON discord_webhook.id = msg_delivery.webhook_id").
		Joins("JOIN discord_webhook_info ON discord_webhook_info.id = discord_webhook.webhook_info_id").
		Where("msg_delivery.status = ? AND msg_delivery.deleted_at IS NULL", models.DeliveryPending).
		Where("discord_webhook.is_active = ? AND discord_webhook.webhook_info_id IS NOT NULL", true).
		Order("msg_delivery.created_at asc, msg_delivery.id asc").
		Limit(limit).
		Scan(&out)
	if err := tx.Error; err != nil {
		return nil, storeErr("list pending deliveries", err)
	}
	return out, nil
}

// CountPendingDeliveries reports the size of the remaining drainable backlog.
func (s *Store) CountPendingDeliveries(ctx context.Context) (int64, error) {
	var n int64
	tx := s.db.WithContext(ctx).
		Model(&models.Delivery{}).
		Where("status = ?", models.DeliveryPending).
		Count(&n)
	if err := tx.Error; err != nil {
		return 0, storeErr("count pending deliveries", err)
	}
	return n, nil
}

// MarkDelivery performs the one-way transition out of pending. Rows already in
// a terminal state are left alone.
func (s *Store) MarkDelivery(ctx context.Context, deliveryID uint, status models.DeliveryStatus, errDetail *string) error {
	if status != models.DeliverySuccess && status != models.DeliveryError {
		return storeErr("mark delivery", errors.New("status must be terminal"))
	}
	tx := s.db.WithContext(ctx).
		Model(&models.Delivery{}).
		Where("id = ? AND status = ?", deliveryID, models.DeliveryPending).
		Updates(map[string]any{"status": status, "error_detail": errDetail})
	if err := tx.Error; err != nil {
		return storeErr("mark delivery", err)
	}
	if tx.RowsAffected == 0 {
		s.log.Sugar().Warnw("Delivery already in terminal state, not updated", "delivery_id", deliveryID)
	}
	return nil
}

// AdvanceCursor raises the per-channel high-water mark. Matches the SQL the
// scraper relies on: last_seen_msg_id never decreases, the timestamp is only
// replaced when a new one is supplied.
func (s *Store) AdvanceCursor(ctx context.Context, channelID uint, msgID int64, msgTime *time.Time) error {
	cur := &models.Cursor{
		ChannelID:       channelID,
		LastSeenMsgID:   msgID,
		LastSeenMsgTime: msgTime,
	}
	tx := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "channel_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"last_seen_msg_id":   gorm.Expr("MAX(msg_cursor.last_seen_msg_id, excluded.last_seen_msg_id)"),
				"last_seen_msg_time": gorm.Expr("COALESCE(excluded.last_seen_msg_time, msg_cursor.last_seen_msg_time)"),
				"updated_at":         time.Now().UTC(),
			}),
		}).
		Create(cur)
	return storeErr("advance cursor", tx.Error)
}

func (s *Store) GetCursor(ctx context.Context, channelID uint) (*models.Cursor, error) {
	cur := &models.Cursor{}
	tx := s.db.WithContext(ctx).Where("channel_id = ?", channelID).First(cur)
	if err := tx.Error; errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	} else if err != nil {
		return nil, storeErr("get cursor", err)
	}
	return cur, nil
}
