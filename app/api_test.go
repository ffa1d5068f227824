package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"tgbridge/config"
	"tgbridge/lib"
	"tgbridge/senders"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"
)

type recordingSender struct {
	calls int
}

func (r *recordingSender) Send(ctx context.Context, webhookURL string, msg *senders.WebhookMessage) error {
	r.calls++
	return nil
}

type testAPI struct {
	srv    *httptest.Server
	token  string
	sender *recordingSender
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	log := zap.NewNop()
	cfg := &config.Config{
		ServerToken:     "sekret",
		SQLitePath:      filepath.Join(t.TempDir(), "test.sqlite"),
		DrainBatchLimit: 100,
	}

	lc := fxtest.NewLifecycle(t)
	db := NewDatabase(lc, cfg, log)
	store := lib.NewStore(db, log)
	sender := &recordingSender{}
	svc := lib.NewService(lc, cfg, log, store, senders.Registry{"discord": sender})

	srv := httptest.NewServer(router(cfg, log, svc))
	t.Cleanup(srv.Close)
	return &testAPI{srv: srv, token: cfg.ServerToken, sender: sender}
}

func (a *testAPI) do(t *testing.T, method, path string, body any, authed bool) (*http.Response, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, a.srv.URL+path, &buf)
	require.NoError(t, err)
	if authed {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	decoded := map[string]any{}
	json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func (a *testAPI) subscribe(t *testing.T, channelURL, groupID string) {
	t.Helper()
	resp, body := a.do(t, http.MethodPost, "/api/subscriptions", map[string]any{
		"channelUrl":       channelURL,
		"groupId":          groupID,
		"webhookUrl":       "https://discord.test/webhook/" + groupID,
		"discordChannelId": "chan-" + groupID,
		"discordServerId":  "srv-" + groupID,
		"channelName":      "general",
		"serverName":       "Test Server",
	}, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, true, body["ok"])
}

func TestHealthNeedsNoAuth(t *testing.T) {
	a := newTestAPI(t)
	resp, err := http.Get(a.srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestProcessRequiresBearerToken(t *testing.T) {
	a := newTestAPI(t)

	resp, _ := a.do(t, http.MethodPost, "/process", map[string]any{}, false)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, err := http.NewRequest(http.MethodPost, a.srv.URL+"/process", bytes.NewBufferString("{}"))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer wrong")
	resp2, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp2.StatusCode)
}

func TestProcessBatchEndToEnd(t *testing.T) {
	a := newTestAPI(t)
	a.subscribe(t, "https://t.me/durov", "alpha")

	resp, body := a.do(t, http.MethodPost, "/process", map[string]any{
		"channelUrl": "https://t.me/durov",
		"messages": []map[string]any{
			{"id": 1, "message": "one"},
			{"id": 2, "message": "two"},
		},
	}, true)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["ok"])
	assert.EqualValues(t, 2, body["processed"])
	assert.EqualValues(t, 0, body["pending"])
	assert.Equal(t, 2, a.sender.calls)
}

func TestProcessRejectsInvalidBatch(t *testing.T) {
	a := newTestAPI(t)

	resp, body := a.do(t, http.MethodPost, "/process", map[string]any{
		"channelUrl": "https://t.me/durov",
		"messages":   []map[string]any{},
	}, true)

	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, false, body["ok"])
	errObj, ok := body["error"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "VALIDATION_ERROR", errObj["code"])
}

func TestProcessRejectsMalformedJSON(t *testing.T) {
	a := newTestAPI(t)

	req, err := http.NewRequest(http.MethodPost, a.srv.URL+"/process", bytes.NewBufferString("{{{"))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+a.token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUnsubscribeEndpoint(t *testing.T) {
	a := newTestAPI(t)
	a.subscribe(t, "https://t.me/durov", "alpha")

	resp, body := a.do(t, http.MethodDelete,
		"/api/subscriptions?channel_url=https://t.me/durov&group_id=alpha", nil, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["removed"])

	// Second delete is a no-op, not an error.
	resp, body = a.do(t, http.MethodDelete,
		"/api/subscriptions?channel_url=https://t.me/durov&group_id=alpha", nil, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["removed"])
}

func TestCursorEndpoint(t *testing.T) {
	a := newTestAPI(t)
	a.subscribe(t, "https://t.me/durov", "alpha")

	resp, body := a.do(t, http.MethodGet, "/api/cursor?channel_url=https://t.me/durov", nil, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 0, body["last_seen_msg_id"])

	_, _ = a.do(t, http.MethodPost, "/process", map[string]any{
		"channelUrl": "https://t.me/durov",
		"messages":   []map[string]any{{"id": 42, "date": "2024-05-01T12:00:00Z"}},
	}, true)

	resp, body = a.do(t, http.MethodGet, "/api/cursor?channel_url=https://t.me/durov", nil, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 42, body["last_seen_msg_id"])
	assert.Equal(t, "2024-05-01T12:00:00Z", body["last_seen_msg_time"])
}
