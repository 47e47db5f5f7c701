package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/aretw0/tripwire/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHandler struct {
	mu     sync.Mutex
	events []domain.Event
	ctxErr []error
}

func (h *recordingHandler) Handle(ctx context.Context, ev domain.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, ev)
	h.ctxErr = append(h.ctxErr, ctx.Err())
}

type fakeRegistrar struct {
	url, secret string
	desc        string
	err         error
}

func (f *fakeRegistrar) SetWebhook(_ context.Context, url, secret string) (string, error) {
	f.url, f.secret = url, secret
	return f.desc, f.err
}

const textUpdate = `{"update_id":1,"message":{"message_id":1,"from":{"id":42,"first_name":"Ann","username":"ann"},"chat":{"id":-100},"text":"/keywords"}}`

func post(t *testing.T, h http.Handler, path, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestWebhook_DispatchesEvents(t *testing.T) {
	events := &recordingHandler{}
	h := NewHandler(events)

	rec := post(t, h, "/webhook", textUpdate, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())
	require.Len(t, events.events, 1)
	assert.Equal(t, "/keywords", events.events[0].Message.Text)
	assert.Equal(t, int64(42), events.events[0].Message.Sender.ID)
	assert.NoError(t, events.ctxErr[0])
}

func TestWebhook_JoinEvent(t *testing.T) {
	events := &recordingHandler{}
	h := NewHandler(events)

	rec := post(t, h, "/webhook", `{"update_id":2,"message":{"message_id":2,"from":{"id":1,"first_name":"A"},"chat":{"id":-5},"new_chat_members":[{"id":9,"first_name":"x","username":"free_airdrop"}]}}`, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, events.events, 1)
	require.NotNil(t, events.events[0].Join)
	assert.Equal(t, "free_airdrop", events.events[0].Join.Member.DisplayName)
}

func TestWebhook_SanitizesText(t *testing.T) {
	events := &recordingHandler{}
	h := NewHandler(events)

	body := `{"update_id":3,"message":{"message_id":3,"from":{"id":1,"first_name":"A"},"chat":{"id":-1},"text":"/kwadd sp\u0000am"}}`
	post(t, h, "/webhook", body, nil)

	require.Len(t, events.events, 1)
	assert.Equal(t, "/kwadd spam", events.events[0].Message.Text)
}

func TestWebhook_DropsOversizedText(t *testing.T) {
	events := &recordingHandler{}
	h := NewHandler(events, WithMaxTextSize(8))

	rec := post(t, h, "/webhook", textUpdate, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, events.events)
}

func TestWebhook_MalformedBody(t *testing.T) {
	events := &recordingHandler{}
	rec := post(t, NewHandler(events), "/webhook", `{"update_id":`, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, events.events)
}

func TestWebhook_LogsErrUnderErrKey(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	post(t, NewHandler(&recordingHandler{}, WithLogger(logger)), "/webhook", `{"update_id":`, nil)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "Webhook: invalid update", entry["msg"])
	assert.Contains(t, entry, "err")
	assert.NotContains(t, entry, "error")
}

func TestWebhook_SecretToken(t *testing.T) {
	events := &recordingHandler{}
	h := NewHandler(events, WithWebhookSecret("s3cret"))

	rec := post(t, h, "/webhook", textUpdate, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = post(t, h, "/webhook", textUpdate, map[string]string{SecretHeader: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, events.events)

	rec = post(t, h, "/webhook", textUpdate, map[string]string{SecretHeader: "s3cret"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, events.events, 1)
}

func TestWebhook_GetNotAllowed(t *testing.T) {
	rec := get(t, NewHandler(&recordingHandler{}), "/webhook")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestSetWebhook(t *testing.T) {
	reg := &fakeRegistrar{desc: "Webhook was set"}
	h := NewHandler(&recordingHandler{}, WithRegistrar(reg, "https://bot.example/webhook"), WithWebhookSecret("s"))

	for _, method := range []string{http.MethodGet, http.MethodPost} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(method, "/setWebhook", nil))

		assert.Equal(t, http.StatusOK, rec.Code, method)
		assert.JSONEq(t, `{"status":"ok","message":"Webhook was set"}`, rec.Body.String())
	}
	assert.Equal(t, "https://bot.example/webhook", reg.url)
	assert.Equal(t, "s", reg.secret)
}

func TestSetWebhook_Failure(t *testing.T) {
	reg := &fakeRegistrar{err: errors.New("telegram: setWebhook rejected (400): bad webhook")}
	h := NewHandler(&recordingHandler{}, WithRegistrar(reg, "http://insecure/webhook"))

	rec := get(t, h, "/setWebhook")

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	var body statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "error", body.Status)
	assert.Contains(t, body.Message, "bad webhook")
}

func TestSetWebhook_NotConfigured(t *testing.T) {
	rec := get(t, NewHandler(&recordingHandler{}), "/setWebhook")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"error"`)
}

func TestHealthAndInfo(t *testing.T) {
	h := NewHandler(&recordingHandler{})

	rec := get(t, h, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = get(t, h, "/info")
	require.Equal(t, http.StatusOK, rec.Code)
	var info map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, "tripwire", info["app"])
	assert.Equal(t, "1.0.0", info["api_version"])
	assert.NotEmpty(t, info["version"])
}

func TestOpenAPIDocument(t *testing.T) {
	doc, err := Spec()
	require.NoError(t, err)
	assert.NotNil(t, doc.Paths.Find("/webhook"))
	assert.NotNil(t, doc.Paths.Find("/setWebhook"))

	rec := get(t, NewHandler(&recordingHandler{}), "/openapi.yaml")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/yaml", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "Tripwire webhook API")
}

func TestMetricsRoute(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "tripwire_up 1\n")
	})

	rec := get(t, NewHandler(&recordingHandler{}, WithMetricsHandler(metrics)), "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "tripwire_up 1\n", rec.Body.String())

	rec = get(t, NewHandler(&recordingHandler{}), "/metrics")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
