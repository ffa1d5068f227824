package models

import (
	"gorm.io/gorm"
)

// Channel is a Telegram channel being bridged. The URL is the durable identity;
// the numeric telegram id and username arrive later, once the scraper resolves them.
type Channel struct {
	gorm.Model
	TelegramURL      string `gorm:"uniqueIndex;not null"`
	TelegramID       *int64 `gorm:"uniqueIndex"`
	TelegramUsername *string

	Webhooks []Webhook `gorm:"constraint:OnDelete:CASCADE"`
	Messages []Message `gorm:"constraint:OnDelete:CASCADE"`
}

func (Channel) TableName() string { return "telegram_channel" }
