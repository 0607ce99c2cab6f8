package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kalambet/designdays/internal/composer"
	"github.com/kalambet/designdays/internal/corpus"
	"github.com/kalambet/designdays/internal/feedback"
	"github.com/kalambet/designdays/internal/intent"
	"github.com/kalambet/designdays/internal/pipeline"
	"github.com/kalambet/designdays/internal/proxy"
	"github.com/kalambet/designdays/internal/storage"
)

const maxRequestBodySize = 1 << 20 // 1MB

// Upstream sends a chat completion request to the model provider.
type Upstream interface {
	Chat(ctx context.Context, req proxy.ChatRequest) (io.ReadCloser, error)
}

// Preparer turns a message history into an upstream request.
type Preparer interface {
	Prepare(ctx context.Context, messages json.RawMessage) (pipeline.Prepared, error)
}

// QueryLog records chat turns.
type QueryLog interface {
	SaveChatQuery(ctx context.Context, q storage.ChatQuery) error
	UpdateChatQueryStatus(ctx context.Context, id, status, errMsg string) error
	RecentChatQueries(ctx context.Context, limit int) ([]storage.ChatQuery, error)
	GetChatQuery(ctx context.Context, id string) (storage.ChatQuery, error)
}

// Pinger is a backing store /health checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

// DayCatalog serves the merged daily records.
type DayCatalog interface {
	Days(ctx context.Context) []corpus.DailyContext
	Day(ctx context.Context, n int) (corpus.DailyContext, bool)
	Categories(ctx context.Context) []string
	Invalidate()
}

// FeedbackService reads and records likes and dislikes.
type FeedbackService interface {
	Get(ctx context.Context, day int) (feedback.Counts, error)
	Record(ctx context.Context, day int, kind feedback.Kind) (feedback.Counts, error)
}

// Deps holds everything the HTTP API serves from.
type Deps struct {
	Responder Preparer
	Upstream  Upstream
	Days      DayCatalog
	Feedback  FeedbackService
	Queries   QueryLog // optional; chat turns are not logged when nil
	Stores    []Pinger // pinged by /health

	// AdminToken guards /admin routes. They are not mounted when empty.
	AdminToken string
	// ChatTimeout bounds one chat turn including the stream. <= 0 disables it.
	ChatTimeout time.Duration
}

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Messages json.RawMessage `json:"messages"`
}

// CardsEvent is the first SSE frame of a chat reply. It carries the cards the
// model was told to display so clients can render them before the text.
type CardsEvent struct {
	Query     intent.Query    `json:"query"`
	Cards     []composer.Card `json:"cards"`
	ShownDays []int           `json:"shownDays"`
	Remaining int             `json:"remaining"`
}

// NewHandler returns the site's HTTP API.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth(deps))
	r.Post("/api/chat", handleChat(deps))

	r.Get("/api/days", handleListDays(deps))
	r.Get("/api/days/{day}", handleGetDay(deps))
	r.Get("/api/categories", handleCategories(deps))

	r.Get("/feedback/{dayId}", handleGetFeedback(deps))
	r.Post("/feedback/update", handleUpdateFeedback(deps))

	if deps.AdminToken != "" {
		r.Route("/admin", func(r chi.Router) {
			r.Use(BearerAuth(deps.AdminToken))
			r.Get("/chat-queries", handleChatQueries(deps))
			r.Get("/chat-queries/{id}", handleGetChatQuery(deps))
			r.Post("/content/invalidate", handleInvalidate(deps))
		})
	}

	return r
}

const healthPingTimeout = 2 * time.Second

func handleHealth(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthPingTimeout)
		defer cancel()
		for _, s := range deps.Stores {
			if err := s.Ping(ctx); err != nil {
				slog.Warn("health check failed", "error", err)
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{
					"status": "unavailable",
					"error":  err.Error(),
				})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func handleChat(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if !hasMessages(req.Messages) {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "messages is required and must not be empty")
			return
		}

		ctx := r.Context()
		if deps.ChatTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, deps.ChatTimeout)
			defer cancel()
		}

		prep, err := deps.Responder.Prepare(ctx, req.Messages)
		if errors.Is(err, pipeline.ErrInvalidHistory) {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "preparing chat: %v", err)
			return
		}

		id := logQuery(ctx, deps.Queries, prep)
		slog.Info("chat turn",
			"query_id", id,
			"query_type", prep.Selection.Query.Type,
			"results", prep.Meta.Results,
			"prompt_tokens", prep.Meta.PromptTokens,
			"prepare_ms", prep.Meta.DurationMs,
		)

		rc, err := deps.Upstream.Chat(ctx, prep.Request)
		if err != nil {
			slog.Error("upstream chat failed", "error", err)
			finishQuery(ctx, deps.Queries, id, err)
			httpError(w, http.StatusInternalServerError, "api_error", "upstream error: %v", err)
			return
		}
		defer rc.Close()

		cards := prep.Prompt.Cards
		if cards == nil {
			cards = []composer.Card{}
		}
		shown := prep.Selection.ShownDays
		if shown == nil {
			shown = []int{}
		}
		first := sseEvent{
			Name: "cards",
			Data: CardsEvent{
				Query:     prep.Selection.Query,
				Cards:     cards,
				ShownDays: shown,
				Remaining: prep.Selection.Remaining,
			},
		}

		err = streamResponse(w, rc, first)
		finishQuery(ctx, deps.Queries, id, err)
	}
}

// logQuery stores a pending record for the turn and returns its id, or ""
// when there is no log or the write failed.
func logQuery(ctx context.Context, queries QueryLog, prep pipeline.Prepared) string {
	if queries == nil {
		return ""
	}
	q := prep.Selection.Query
	rec := storage.ChatQuery{
		ID:        uuid.New().String(),
		CreatedAt: time.Now().UTC(),
		Query:     prep.Text,
		QueryType: string(q.Type),
		QueryTerm: q.Term,
		DaysShown: daysShown(prep),
		Model:     prep.Request.Model,
		Status:    storage.StatusPending,
	}
	if err := queries.SaveChatQuery(context.WithoutCancel(ctx), rec); err != nil {
		slog.Warn("logging chat query failed", "error", err)
		return ""
	}
	return rec.ID
}

func finishQuery(ctx context.Context, queries QueryLog, id string, chatErr error) {
	if queries == nil || id == "" {
		return
	}
	status, msg := storage.StatusCompleted, ""
	if chatErr != nil {
		status, msg = storage.StatusFailed, chatErr.Error()
	}
	if err := queries.UpdateChatQueryStatus(context.WithoutCancel(ctx), id, status, msg); err != nil {
		slog.Warn("updating chat query failed", "id", id, "error", err)
	}
}

func daysShown(prep pipeline.Prepared) []int {
	days := make([]int, len(prep.Prompt.Cards))
	for i, c := range prep.Prompt.Cards {
		days[i] = c.Day
	}
	return days
}

type sseEvent struct {
	Name string
	Data any
}

// streamResponse writes the leading events, then copies the upstream SSE
// body line by line. It returns the upstream read error, if any.
func streamResponse(w http.ResponseWriter, rc io.Reader, lead ...sseEvent) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		httpError(w, http.StatusInternalServerError, "api_error", "streaming not supported")
		return errors.New("streaming not supported")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	for _, ev := range lead {
		data, err := json.Marshal(ev.Data)
		if err != nil {
			slog.Error("failed to marshal stream event", "event", ev.Name, "error", err)
			continue
		}
		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Name, data)
	}
	flusher.Flush()

	reader := bufio.NewReader(rc)
	for {
		line, err := reader.ReadBytes('\n')
		if len(line) > 0 {
			w.Write(line)
			flusher.Flush()
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			slog.Error("upstream stream read error", "error", err)
			errPayload, marshalErr := json.Marshal(map[string]any{
				"error": map[string]any{
					"message": "upstream read error",
					"type":    "server_error",
				},
			})
			if marshalErr == nil {
				fmt.Fprintf(w, "data: %s\n\n", errPayload)
				flusher.Flush()
			}
			return err
		}
	}
}

func hasMessages(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	var arr []json.RawMessage
	if err := json.Unmarshal(raw, &arr); err != nil {
		return false
	}
	return len(arr) > 0
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
