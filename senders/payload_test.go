package senders

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "exact", Truncate("exact", 5))

	got := Truncate(strings.Repeat("a", 10), 5)
	assert.Equal(t, "aaaa…", got)
	assert.Equal(t, 5, len([]rune(got)))

	// Never splits a multi-byte rune.
	got = Truncate(strings.Repeat("é", 10), 5)
	assert.Equal(t, "éééé…", got)
}

func TestClampEnforcesDiscordLimits(t *testing.T) {
	fields := make([]EmbedField, MaxFields+5)
	for i := range fields {
		fields[i] = EmbedField{
			Name:  strings.Repeat("n", MaxFieldNameLen+10),
			Value: strings.Repeat("v", MaxFieldValueLen+10),
		}
	}
	embeds := make([]Embed, MaxEmbeds+2)
	for i := range embeds {
		embeds[i] = Embed{
			Title:       strings.Repeat("t", MaxTitleLen+10),
			Description: strings.Repeat("d", MaxDescriptionLen+10),
			Fields:      fields,
		}
	}
	msg := &WebhookMessage{
		Content:  strings.Repeat("c", MaxContentLen+10),
		Username: strings.Repeat("u", MaxUsernameLen+10),
		Embeds:   embeds,
	}

	msg.Clamp()

	assert.Len(t, []rune(msg.Content), MaxContentLen)
	assert.Len(t, []rune(msg.Username), MaxUsernameLen)
	require.Len(t, msg.Embeds, MaxEmbeds)
	e := msg.Embeds[0]
	assert.Len(t, []rune(e.Title), MaxTitleLen)
	assert.Len(t, []rune(e.Description), MaxDescriptionLen)
	assert.True(t, strings.HasSuffix(e.Description, "…"))
	require.Len(t, e.Fields, MaxFields)
	assert.Len(t, []rune(e.Fields[0].Name), MaxFieldNameLen)
	assert.Len(t, []rune(e.Fields[0].Value), MaxFieldValueLen)
}

func TestClampLeavesSmallMessagesAlone(t *testing.T) {
	msg := &WebhookMessage{
		Username: "durov",
		Embeds:   []Embed{{Title: "hi", Description: "there"}},
	}
	msg.Clamp()
	assert.Equal(t, "durov", msg.Username)
	assert.Equal(t, "hi", msg.Embeds[0].Title)
}
