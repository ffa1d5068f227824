package senders

// Discord webhook payload limits. Anything over these is rejected by the API,
// so Clamp is applied before every send.
const (
	MaxContentLen     = 2000
	MaxUsernameLen    = 80
	MaxEmbeds         = 10
	MaxTitleLen       = 256
	MaxDescriptionLen = 4000
	MaxFields         = 25
	MaxFieldNameLen   = 256
	MaxFieldValueLen  = 1024
)

type WebhookMessage struct {
	Content  string  `json:"content,omitempty"`
	Username string  `json:"username,omitempty"`
	Embeds   []Embed `json:"embeds,omitempty"`
}

type Embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color,omitempty"`
	Timestamp   string       `json:"timestamp,omitempty"`
	Fields      []EmbedField `json:"fields,omitempty"`
}

type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// Clamp truncates every part of the message to Discord's documented limits,
// marking cut text with an ellipsis.
func (m *WebhookMessage) Clamp() {
	m.Content = Truncate(m.Content, MaxContentLen)
	m.Username = Truncate(m.Username, MaxUsernameLen)
	if len(m.Embeds) > MaxEmbeds {
		m.Embeds = m.Embeds[:MaxEmbeds]
	}
	for i := range m.Embeds {
		e := &m.Embeds[i]
		e.Title = Truncate(e.Title, MaxTitleLen)
		e.Description = Truncate(e.Description, MaxDescriptionLen)
		if len(e.Fields) > MaxFields {
			e.Fields = e.Fields[:MaxFields]
		}
		for j := range e.Fields {
			e.Fields[j].Name = Truncate(e.Fields[j].Name, MaxFieldNameLen)
			e.Fields[j].Value = Truncate(e.Fields[j].Value, MaxFieldValueLen)
		}
	}
}

// Truncate caps s at max runes, replacing the tail with an ellipsis marker.
func Truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}
