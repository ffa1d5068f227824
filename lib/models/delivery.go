package models

import (
	"gorm.io/gorm"
)

type DeliveryStatus string

const (
	DeliveryPending DeliveryStatus = "pending"
	DeliverySuccess DeliveryStatus = "success"
	DeliveryError   DeliveryStatus = "error"
)

// Delivery tracks forwarding of one Message to one Webhook. At most one row
// ever exists per (message, webhook) pair; that uniqueness is what makes
// reconciliation idempotent. Status only moves pending -> success|error.
// TelegramMsgID is denormalized for lookup by external id and is written once
// at creation, never updated.
type Delivery struct {
	gorm.Model
	MessageID     uint           `gorm:"uniqueIndex:idx_message_webhook;not null"`
	TelegramMsgID int64          `gorm:"index;not null"`
	WebhookID     uint           `gorm:"uniqueIndex:idx_message_webhook;not null"`
	Status        DeliveryStatus `gorm:"index;default:pending"`
	ErrorDetail   *string
}

func (Delivery) TableName() string { return "msg_delivery" }
