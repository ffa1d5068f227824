package models

import (
	"time"

	"gorm.io/gorm"
)

// Cursor is the per-channel high-water mark the scraper resumes polling from.
// LastSeenMsgID only ever increases; LastSeenMsgTime is overwritten only when
// a new timestamp is supplied.
type Cursor struct {
	gorm.Model
	ChannelID       uint  `gorm:"uniqueIndex;not null"`
	LastSeenMsgID   int64 `gorm:"not null"`
	LastSeenMsgTime *time.Time
}

func (Cursor) TableName() string { return "msg_cursor" }
