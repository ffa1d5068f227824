package lib

import (
	"encoding/json"
	"time"
)

// Batch is the inbound payload the scraper posts for one channel. Messages are
// kept as raw JSON so the stored payload is the original blob verbatim,
// passthrough fields included.
type Batch struct {
	ChannelID       *int64            `json:"channelId"`
	ChannelUsername string            `json:"channelUsername"`
	ChannelURL      string            `json:"channelUrl"`
	Messages        []json.RawMessage `json:"messages"`
}

func (b *Batch) Validate() error {
	if b.ChannelURL == "" {
		return &ValidationError{Reason: "channelUrl is required"}
	}
	if len(b.Messages) == 0 {
		return &ValidationError{Reason: "at least one message is required"}
	}
	return nil
}

// TelegramMessage is the minimal view of a serialized message that the bridge
// itself cares about. Unknown fields stay in the raw blob.
type TelegramMessage struct {
	ID         int64   `json:"id"`
	Date       *string `json:"date"`
	Message    string  `json:"message"`
	Views      *int    `json:"views"`
	Forwards   *int    `json:"forwards"`
	PostAuthor *string `json:"post_author"`
	Media      *string `json:"media"`
	ReplyTo    *int64  `json:"reply_to"`
}

func ParseTelegramMessage(raw []byte) (*TelegramMessage, error) {
	tm := &TelegramMessage{}
	if err := json.Unmarshal(raw, tm); err != nil {
		return nil, &ParseError{Err: err}
	}
	if tm.ID <= 0 {
		return nil, &ParseError{Err: errMissingID}
	}
	return tm, nil
}

// Timestamp parses the scraper's ISO-8601 date field, nil when absent or
// unparseable.
func (tm *TelegramMessage) Timestamp() *time.Time {
	if tm.Date == nil {
		return nil
	}
	t, err := time.Parse(time.RFC3339, *tm.Date)
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}
