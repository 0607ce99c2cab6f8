package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/kalambet/designdays/internal/composer"
	"github.com/kalambet/designdays/internal/corpus"
	"github.com/kalambet/designdays/internal/feedback"
	"github.com/kalambet/designdays/internal/pipeline"
	"github.com/kalambet/designdays/internal/proxy"
	"github.com/kalambet/designdays/internal/ranking"
	"github.com/kalambet/designdays/internal/storage"
)

const testToken = "test-token-12345"

type fakeCatalog struct {
	days        []corpus.DailyContext
	invalidated atomic.Int32
}

func (f *fakeCatalog) Days(context.Context) []corpus.DailyContext { return f.days }

func (f *fakeCatalog) Day(_ context.Context, n int) (corpus.DailyContext, bool) {
	for _, d := range f.days {
		if d.Day == n {
			return d, true
		}
	}
	return corpus.DailyContext{}, false
}

func (f *fakeCatalog) Categories(context.Context) []string { return corpus.Categories(f.days) }

func (f *fakeCatalog) Invalidate() { f.invalidated.Add(1) }

func testDays() []corpus.DailyContext {
	return []corpus.DailyContext{
		{Day: 3, Title: "Scroll Timeline", Project: "Animations", Description: "Scroll-driven animation", Color: "#00FF00"},
		{Day: 7, Title: "Magnetic Button", Project: "UI Components", Description: "A button that follows the cursor",
			Color: "#FF0000", ImagePaths: []string{"/images/day-7.png"}, CodeSnippet: "export function MagneticButton() {}"},
		{Day: 12, Title: "Tabs", Project: "UI Components", Description: "Animated tabs", Color: "#0000FF"},
	}
}

type upstreamRecorder struct {
	mu       sync.Mutex
	requests []proxy.ChatRequest
}

func (u *upstreamRecorder) last(t *testing.T) proxy.ChatRequest {
	t.Helper()
	u.mu.Lock()
	defer u.mu.Unlock()
	if len(u.requests) == 0 {
		t.Fatal("upstream was not called")
	}
	return u.requests[len(u.requests)-1]
}

type testEnv struct {
	handler  http.Handler
	store    *storage.Store
	catalog  *fakeCatalog
	upstream *upstreamRecorder
}

// newTestEnv wires the API over an in-memory store, a fixed catalog and an
// httptest upstream that answers with reply.
func newTestEnv(t *testing.T, reply http.HandlerFunc) *testEnv {
	t.Helper()

	rec := &upstreamRecorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req proxy.ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("upstream decode: %v", err)
		}
		rec.mu.Lock()
		rec.requests = append(rec.requests, req)
		rec.mu.Unlock()
		reply(w, r)
	}))
	t.Cleanup(srv.Close)

	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	cat := &fakeCatalog{days: testDays()}
	comp := composer.New(composer.SiteInfo{Name: "100 Days of Design Engineering", Creator: "Jane Doe"})
	responder := pipeline.NewResponder(cat, comp, pipeline.Options{
		Model:  "test/model",
		Limits: ranking.Limits{BatchSize: 1},
	})

	h := NewHandler(Deps{
		Responder:  responder,
		Upstream:   proxy.New(proxy.Options{APIKey: "test-key", BaseURL: srv.URL}),
		Days:       cat,
		Feedback:   feedback.NewService(store),
		Queries:    store,
		Stores:     []Pinger{store},
		AdminToken: testToken,
	})
	return &testEnv{handler: h, store: store, catalog: cat, upstream: rec}
}

func sseReply(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	fmt.Fprint(w, "data: {\"id\":\"gen-1\",\"choices\":[{\"delta\":{\"content\":\"Here you go\"}}]}\n\ndata: [DONE]\n\n")
}

func (e *testEnv) do(method, url, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, url, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, url, nil)
	}
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	return rr
}

func chatBody(msgs ...string) string {
	type m struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	var out []m
	for i := 0; i+1 < len(msgs); i += 2 {
		out = append(out, m{Role: msgs[i], Content: msgs[i+1]})
	}
	b, _ := json.Marshal(map[string]any{"messages": out})
	return string(b)
}

// firstEvent parses the leading "event: cards" frame of an SSE body.
func firstEvent(t *testing.T, body string) CardsEvent {
	t.Helper()
	const prefix = "event: cards\ndata: "
	if !strings.HasPrefix(body, prefix) {
		t.Fatalf("body does not start with cards event: %q", body)
	}
	line, _, _ := strings.Cut(body[len(prefix):], "\n")
	var ev CardsEvent
	if err := json.Unmarshal([]byte(line), &ev); err != nil {
		t.Fatalf("decoding cards event: %v", err)
	}
	return ev
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, sseReply)
	rr := env.do(http.MethodGet, "/health", "")

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	var body map[string]string
	json.NewDecoder(rr.Body).Decode(&body)
	if body["status"] != "ok" {
		t.Errorf("body = %v, want status=ok", body)
	}
}

type pingFunc func(context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealth_StoreUnavailable(t *testing.T) {
	h := NewHandler(Deps{
		Days: &fakeCatalog{},
		Stores: []Pinger{
			pingFunc(func(context.Context) error { return nil }),
			pingFunc(func(context.Context) error { return errors.New("connection refused") }),
		},
	})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rr.Code)
	}
	var body map[string]string
	json.NewDecoder(rr.Body).Decode(&body)
	if body["status"] != "unavailable" || body["error"] != "connection refused" {
		t.Errorf("body = %v", body)
	}
}

func TestHealth_ClosedStore(t *testing.T) {
	env := newTestEnv(t, sseReply)
	env.store.Close()

	if rr := env.do(http.MethodGet, "/health", ""); rr.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503 after the store is closed", rr.Code)
	}
}

// syncBuffer is a bytes.Buffer safe for use as a log sink.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestChat_LogsTurnMetadata(t *testing.T) {
	var logs syncBuffer
	old := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&logs, nil)))
	t.Cleanup(func() { slog.SetDefault(old) })

	env := newTestEnv(t, sseReply)
	if rr := env.do(http.MethodPost, "/api/chat", chatBody("user", "Show me day 7")); rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}

	out := logs.String()
	for _, want := range []string{"msg=\"chat turn\"", "query_type=day", "results=1", "prompt_tokens=", "prepare_ms="} {
		if !strings.Contains(out, want) {
			t.Errorf("log missing %q:\n%s", want, out)
		}
	}
}

func TestChat_StreamsCardsThenUpstream(t *testing.T) {
	env := newTestEnv(t, sseReply)

	rr := env.do(http.MethodPost, "/api/chat", chatBody("user", "Tell me about the UI Components category"))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}

	body := rr.Body.String()
	ev := firstEvent(t, body)
	want := []composer.Card{{Day: 7, Title: "Magnetic Button", Image: "/images/day-7.png", Color: "#FF0000", Project: "UI Components"}}
	if diff := cmp.Diff(want, ev.Cards); diff != "" {
		t.Errorf("cards mismatch (-want +got):\n%s", diff)
	}
	if ev.Remaining != 1 {
		t.Errorf("remaining = %d, want 1", ev.Remaining)
	}
	if diff := cmp.Diff([]int{7}, ev.ShownDays); diff != "" {
		t.Errorf("shownDays mismatch (-want +got):\n%s", diff)
	}
	if ev.Query.Term != "UI Components" {
		t.Errorf("query term = %q", ev.Query.Term)
	}
	if !strings.Contains(body, `"Here you go"`) || !strings.HasSuffix(body, "data: [DONE]\n\n") {
		t.Errorf("upstream stream not passed through: %q", body)
	}

	up := env.upstream.last(t)
	if up.Model != "test/model" || !up.Stream {
		t.Errorf("upstream model=%q stream=%v", up.Model, up.Stream)
	}
	if _, ok := up.Extra["tools"]; !ok {
		t.Error("upstream request carries no tools")
	}
}

func TestChat_NoToolsWithoutResults(t *testing.T) {
	env := newTestEnv(t, sseReply)

	rr := env.do(http.MethodPost, "/api/chat", chatBody("user", "Who made this site?"))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	ev := firstEvent(t, rr.Body.String())
	if ev.Cards == nil || len(ev.Cards) != 0 {
		t.Errorf("cards = %#v, want empty array", ev.Cards)
	}
	if _, ok := env.upstream.last(t).Extra["tools"]; ok {
		t.Error("tools declared for a creator question")
	}
}

func TestChat_InvalidRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed json", "{invalid"},
		{"missing messages", `{}`},
		{"empty messages", `{"messages":[]}`},
		{"messages not an array", `{"messages":"hi"}`},
		{"last message from assistant", chatBody("user", "hi", "assistant", "hello")},
		{"last message from system", chatBody("system", "be nice")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, sseReply)
			rr := env.do(http.MethodPost, "/api/chat", tt.body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400; body = %s", rr.Code, rr.Body.String())
			}
			var body struct {
				Error struct {
					Type string `json:"type"`
				} `json:"error"`
			}
			json.NewDecoder(rr.Body).Decode(&body)
			if body.Error.Type != "invalid_request_error" {
				t.Errorf("error type = %q", body.Error.Type)
			}
			env.upstream.mu.Lock()
			calls := len(env.upstream.requests)
			env.upstream.mu.Unlock()
			if calls != 0 {
				t.Errorf("upstream called %d times for an invalid request", calls)
			}
		})
	}
}

func TestChat_UpstreamFailure(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"boom"}`, http.StatusInternalServerError)
	})

	rr := env.do(http.MethodPost, "/api/chat", chatBody("user", "day 7"))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rr.Code)
	}
	var body struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decoding error body: %v", err)
	}
	if body.Error.Type != "api_error" || body.Error.Message == "" {
		t.Errorf("error = %+v", body.Error)
	}

	logged, err := env.store.RecentChatQueries(context.Background(), 10)
	if err != nil || len(logged) != 1 {
		t.Fatalf("RecentChatQueries = %v, %v", logged, err)
	}
	if logged[0].Status != storage.StatusFailed || logged[0].Error == "" {
		t.Errorf("logged status=%q error=%q, want failed with message", logged[0].Status, logged[0].Error)
	}
}

func TestChat_LogsCompletedQuery(t *testing.T) {
	env := newTestEnv(t, sseReply)

	rr := env.do(http.MethodPost, "/api/chat", chatBody("user", "Show me day 7"))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}

	logged, err := env.store.RecentChatQueries(context.Background(), 10)
	if err != nil || len(logged) != 1 {
		t.Fatalf("RecentChatQueries = %v, %v", logged, err)
	}
	got := logged[0]
	if got.Status != storage.StatusCompleted {
		t.Errorf("status = %q, want completed", got.Status)
	}
	if got.Query != "Show me day 7" || got.QueryType != "day" || got.Model != "test/model" {
		t.Errorf("logged = %+v", got)
	}
	if diff := cmp.Diff([]int{7}, got.DaysShown); diff != "" {
		t.Errorf("daysShown mismatch (-want +got):\n%s", diff)
	}
}

func TestChat_ShowMoreContinues(t *testing.T) {
	env := newTestEnv(t, sseReply)

	marker := `__SHOW_MORE__{"originalQuery":"Tell me about the UI Components category","shownDays":[7]}`
	rr := env.do(http.MethodPost, "/api/chat", chatBody(
		"user", "Tell me about the UI Components category",
		"assistant", "Here is one.",
		"user", marker,
	))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}

	ev := firstEvent(t, rr.Body.String())
	if len(ev.Cards) != 1 || ev.Cards[0].Day != 12 {
		t.Errorf("cards = %+v, want day 12 only", ev.Cards)
	}
	if diff := cmp.Diff([]int{7, 12}, ev.ShownDays); diff != "" {
		t.Errorf("shownDays mismatch (-want +got):\n%s", diff)
	}
	if strings.Contains(string(env.upstream.last(t).Messages), "__SHOW_MORE__") {
		t.Error("show-more marker forwarded upstream")
	}
}
