package lib

import (
	"context"
	"encoding/json"
	"testing"

	"tgbridge/lib/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func rawMessages(blobs ...string) []json.RawMessage {
	out := make([]json.RawMessage, 0, len(blobs))
	for _, b := range blobs {
		out = append(out, json.RawMessage(b))
	}
	return out
}

func TestReconcileCreatesPendingPerWebhook(t *testing.T) {
	s := newTestStore(t)
	r := &reconciler{zap.NewNop(), s}
	ctx := context.Background()

	ch, _ := seedSubscription(t, s, "https://t.me/durov", "alpha")
	seedSubscription(t, s, "https://t.me/durov", "beta")

	res := r.reconcile(ctx, ch, rawMessages(
		`{"id":1,"message":"hello"}`,
		`{"id":2,"message":"world","date":"2024-05-01T12:00:00Z"}`,
	))

	assert.Equal(t, 2, res.processed)
	assert.Equal(t, 0, res.failed)
	assert.Equal(t, 4, res.pendingCreated)
	assert.EqualValues(t, 2, res.highWaterID)
	require.NotNil(t, res.highWaterTime)
	assert.Equal(t, "2024-05-01T12:00:00Z", res.highWaterTime.Format("2006-01-02T15:04:05Z07:00"))
}

func TestReconcileSkipsUnparseableMessages(t *testing.T) {
	s := newTestStore(t)
	r := &reconciler{zap.NewNop(), s}
	ctx := context.Background()

	ch, _ := seedSubscription(t, s, "https://t.me/durov", "alpha")

	res := r.reconcile(ctx, ch, rawMessages(
		`{"id":1}`,
		`not json at all`,
		`{"message":"no id"}`,
		`{"id":3}`,
	))

	assert.Equal(t, 2, res.processed)
	assert.Equal(t, 2, res.failed)
	assert.EqualValues(t, 3, res.highWaterID)
}

func TestReconcileReplayIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	r := &reconciler{zap.NewNop(), s}
	ctx := context.Background()

	ch, _ := seedSubscription(t, s, "https://t.me/durov", "alpha")
	batch := rawMessages(`{"id":1}`, `{"id":2}`)

	first := r.reconcile(ctx, ch, batch)
	assert.Equal(t, 2, first.pendingCreated)

	second := r.reconcile(ctx, ch, batch)
	assert.Equal(t, 2, second.processed)
	assert.Equal(t, 0, second.pendingCreated)

	var n int64
	require.NoError(t, s.db.Model(&models.Delivery{}).Count(&n).Error)
	assert.EqualValues(t, 2, n)
}

func TestReconcilePicksUpLateSubscriber(t *testing.T) {
	s := newTestStore(t)
	r := &reconciler{zap.NewNop(), s}
	ctx := context.Background()

	ch, _ := seedSubscription(t, s, "https://t.me/durov", "alpha")
	batch := rawMessages(`{"id":1}`)

	first := r.reconcile(ctx, ch, batch)
	assert.Equal(t, 1, first.pendingCreated)

	// A webhook subscribed after the first pass gets its own delivery on replay.
	seedSubscription(t, s, "https://t.me/durov", "beta")

	second := r.reconcile(ctx, ch, batch)
	assert.Equal(t, 1, second.pendingCreated)
}
