package models

import (
	"gorm.io/gorm"
)

// Message is one immutable inbound Telegram message. The same telegram id can
// recur across channels but not within one, hence the composite unique index.
// Payload holds the original serialized message verbatim.
type Message struct {
	gorm.Model
	TelegramMsgID int64  `gorm:"uniqueIndex:idx_msg_channel;not null"`
	ChannelID     uint   `gorm:"uniqueIndex:idx_msg_channel;not null"`
	Payload       string `gorm:"type:text"`

	Deliveries []Delivery `gorm:"constraint:OnDelete:CASCADE"`
}

func (Message) TableName() string { return "telegram_message" }
