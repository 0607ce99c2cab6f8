package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/designdays/internal/corpus"
	"github.com/kalambet/designdays/internal/feedback"
	"github.com/kalambet/designdays/internal/storage"
)

// DaySummary is one entry of GET /api/days.
type DaySummary struct {
	Day         int    `json:"day"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Project     string `json:"project,omitempty"`
	Color       string `json:"color,omitempty"`
	Image       string `json:"image,omitempty"`
	HasSample   bool   `json:"hasSample"`
}

// FeedbackUpdate is the body of POST /feedback/update.
type FeedbackUpdate struct {
	DayID int    `json:"dayId"`
	Type  string `json:"type"`
}

func summarize(d corpus.DailyContext) DaySummary {
	return DaySummary{
		Day:         d.Day,
		Title:       d.Title,
		Description: d.Description,
		Project:     d.Project,
		Color:       d.Color,
		Image:       d.PrimaryImage(),
		HasSample:   d.CodeSnippet != "",
	}
}

func handleListDays(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		days := deps.Days.Days(r.Context())
		out := make([]DaySummary, len(days))
		for i, d := range days {
			out[i] = summarize(d)
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func handleGetDay(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := strconv.Atoi(chi.URLParam(r, "day"))
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "day must be an integer")
			return
		}

		d, ok := deps.Days.Day(r.Context(), n)
		if !ok {
			httpError(w, http.StatusNotFound, "not_found", "day %d not found", n)
			return
		}
		writeJSON(w, http.StatusOK, d)
	}
}

func handleCategories(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, deps.Days.Categories(r.Context()))
	}
}

func handleGetFeedback(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		day, err := strconv.Atoi(chi.URLParam(r, "dayId"))
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "dayId must be an integer")
			return
		}

		c, err := deps.Feedback.Get(r.Context(), day)
		switch {
		case errors.Is(err, feedback.ErrInvalidDay):
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
		case err != nil:
			// The widget still renders zero counts.
			writeJSON(w, http.StatusInternalServerError, feedback.Counts{})
		default:
			writeJSON(w, http.StatusOK, c)
		}
	}
}

func handleUpdateFeedback(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req FeedbackUpdate
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		kind, err := feedback.ParseKind(req.Type)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "type must be like or dislike")
			return
		}

		c, err := deps.Feedback.Record(r.Context(), req.DayID, kind)
		if errors.Is(err, feedback.ErrInvalidDay) || errors.Is(err, feedback.ErrInvalidKind) {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to record feedback: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, c)
	}
}

func handleChatQueries(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Queries == nil {
			writeJSON(w, http.StatusOK, []storage.ChatQuery{})
			return
		}
		limit := parseIntParam(r, "limit", 20, 100)

		queries, err := deps.Queries.RecentChatQueries(r.Context(), limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list chat queries: %v", err)
			return
		}
		if queries == nil {
			queries = []storage.ChatQuery{}
		}
		writeJSON(w, http.StatusOK, queries)
	}
}

func handleGetChatQuery(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Queries == nil {
			httpError(w, http.StatusNotFound, "not_found", "chat query log is not enabled")
			return
		}
		id := chi.URLParam(r, "id")
		q, err := deps.Queries.GetChatQuery(r.Context(), id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "chat query %s not found", id)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get chat query: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, q)
	}
}

func handleInvalidate(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deps.Days.Invalidate()
		writeJSON(w, http.StatusOK, map[string]any{
			"status": "invalidated",
			"days":   len(deps.Days.Days(r.Context())),
		})
	}
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}
