package models

import (
	"strings"

	"gorm.io/gorm"
)

// Webhook is one Discord webhook subscribed to a Channel under a group id.
// Unsubscribing flips IsActive instead of deleting, so delivery history survives
// and re-subscribing the same (group, channel) pair reuses the row.
type Webhook struct {
	gorm.Model
	ChannelID     uint   `gorm:"uniqueIndex:idx_group_channel;not null"`
	GroupID       string `gorm:"uniqueIndex:idx_group_channel;not null"`
	WebhookURL    string `gorm:"not null"`
	Description   string
	WebhookInfoID *uint `gorm:"constraint:OnDelete:SET NULL"`
	IsActive      bool  `gorm:"index"`

	WebhookInfo *WebhookInfo
	Deliveries  []Delivery `gorm:"constraint:OnDelete:CASCADE"`
}

func (Webhook) TableName() string { return "discord_webhook" }

// WebhookInfo caches display metadata for the Discord server/channel behind a
// webhook, keyed by the external id pair. Refreshed when names drift.
type WebhookInfo struct {
	gorm.Model
	DiscordChannelID string `gorm:"uniqueIndex:idx_discord_chan_srv;not null"`
	DiscordServerID  string `gorm:"uniqueIndex:idx_discord_chan_srv;not null"`
	ChannelName      string
	ServerName       string
}

func (WebhookInfo) TableName() string { return "discord_webhook_info" }

// NormalizeGroupID lowercases and strips a free-text group identifier down to
// alphanumerics, which is the form the unique (group, channel) index stores.
func NormalizeGroupID(raw string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(raw) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
