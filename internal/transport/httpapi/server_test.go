package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chat-food/server/internal/agent/graph/nodes"
	"github.com/chat-food/server/internal/agent/model"
	errx "github.com/chat-food/server/internal/core/error"
)

type fakeRunner struct {
	mu     sync.Mutex
	inputs []model.QueryInput
	resets []string
}

func (f *fakeRunner) Invoke(_ context.Context, in model.QueryInput) (model.Reply, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputs = append(f.inputs, in)
	if strings.TrimSpace(in.Query) == "" {
		return model.Reply{}, errx.ErrEmptyQuery
	}
	return model.Reply{
		SessionID: in.SessionID,
		Text:      "echo: " + in.Query,
		Domain:    model.IntentOrders,
		Intent:    model.IntentOrderStatus,
	}, nil
}

// Stream sends the reply word by word.
func (f *fakeRunner) Stream(ctx context.Context, in model.QueryInput, sink nodes.TokenSink) (model.Reply, error) {
	reply, err := f.Invoke(ctx, in)
	if err != nil {
		return reply, err
	}
	for _, w := range strings.SplitAfter(reply.Text, " ") {
		sink(w)
	}
	return reply, nil
}

func (f *fakeRunner) Reset(_ context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets = append(f.resets, sessionID)
	return nil
}

func newTestServer(t *testing.T, ratePerMin int) (*Server, *fakeRunner) {
	t.Helper()
	runner := &fakeRunner{}
	srv, err := New(runner, Config{Port: 8080, Mode: "test", RatePerMin: ratePerMin})
	require.NoError(t, err)
	return srv, runner
}

func postChat(t *testing.T, srv *Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	return post(t, srv, "/api/v1/chat", body)
}

func post(t *testing.T, srv *Server, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestChat(t *testing.T) {
	srv, runner := newTestServer(t, 0)

	rec := postChat(t, srv, `{"session_id":"s1","message":"where is order 7?"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp chatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, chatResponse{SessionID: "s1", Reply: "echo: where is order 7?", Intent: string(model.IntentOrderStatus)}, resp)
	require.Len(t, runner.inputs, 1)
	assert.Equal(t, "s1", runner.inputs[0].SessionID)
}

func TestChatAssignsSessionID(t *testing.T) {
	srv, _ := newTestServer(t, 0)

	rec := postChat(t, srv, `{"message":"hi"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp chatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.SessionID, 36)
}

func TestChatErrors(t *testing.T) {
	srv, _ := newTestServer(t, 0)

	rec := postChat(t, srv, `{"session_id":"s1","message":"  "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "query is required")

	rec = postChat(t, srv, `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatRateLimit(t *testing.T) {
	srv, runner := newTestServer(t, 2)

	assert.Equal(t, http.StatusOK, postChat(t, srv, `{"session_id":"s1","message":"one"}`).Code)
	rec := postChat(t, srv, `{"session_id":"s1","message":"two"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, http.StatusOK, postChat(t, srv, `{"session_id":"s2","message":"one"}`).Code)
	assert.Len(t, runner.inputs, 2)
}

// sseEvents splits an event stream body into (event, data) pairs.
func sseEvents(body string) [][2]string {
	var out [][2]string
	for _, block := range strings.Split(body, "\n\n") {
		var ev [2]string
		for _, line := range strings.Split(block, "\n") {
			switch {
			case strings.HasPrefix(line, "event:"):
				ev[0] = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
			case strings.HasPrefix(line, "data:"):
				ev[1] = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			}
		}
		if ev[0] != "" {
			out = append(out, ev)
		}
	}
	return out
}

func TestChatStream(t *testing.T) {
	srv, _ := newTestServer(t, 0)

	rec := post(t, srv, "/api/v1/chat/stream", `{"session_id":"s1","message":"where is order 7?"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/event-stream")

	events := sseEvents(rec.Body.String())
	require.NotEmpty(t, events)

	var text strings.Builder
	for _, ev := range events[:len(events)-1] {
		require.Equal(t, "token", ev[0])
		var tok tokenEvent
		require.NoError(t, json.Unmarshal([]byte(ev[1]), &tok))
		text.WriteString(tok.Text)
	}
	assert.Equal(t, "echo: where is order 7?", text.String())
	assert.Greater(t, len(events), 2)

	last := events[len(events)-1]
	require.Equal(t, "done", last[0])
	var resp chatResponse
	require.NoError(t, json.Unmarshal([]byte(last[1]), &resp))
	assert.Equal(t, chatResponse{SessionID: "s1", Reply: "echo: where is order 7?", Intent: string(model.IntentOrderStatus)}, resp)
}

func TestChatStreamErrors(t *testing.T) {
	srv, runner := newTestServer(t, 1)

	rec := post(t, srv, "/api/v1/chat/stream", `{"session_id":"s1","message":"  "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "query is required")

	rec = post(t, srv, "/api/v1/chat/stream", `{"session_id":"s1","message":"again"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Empty(t, runner.inputs)
}

func TestResetChat(t *testing.T) {
	srv, runner := newTestServer(t, 0)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/chat/s9", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"s9"}, runner.resets)
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, 0)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func TestNewValidates(t *testing.T) {
	_, err := New(nil, Config{Port: 1})
	assert.Error(t, err)
	_, err = New(&fakeRunner{}, Config{})
	assert.Error(t, err)
}

func TestCORS(t *testing.T) {
	runner := &fakeRunner{}
	srv, err := New(runner, Config{Port: 8080, Mode: "test", CORSOrigins: []string{"https://app.example"}})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/chat", nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "https://app.example", rec.Header().Get("Access-Control-Allow-Origin"))
}
