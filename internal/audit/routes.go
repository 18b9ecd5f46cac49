package audit

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
)

const (
	defaultQueryLimit = 100
	maxQueryLimit     = 500
)

// RegisterRoutes mounts the read-only audit endpoints under /api/audit.
func RegisterRoutes(r chi.Router, store *Store) {
	r.Route("/api/audit", func(r chi.Router) {
		r.Get("/", handleQuery(store))
		r.Get("/returns/{returnID}", handleTimeline(store))
		r.Get("/{id}", handleGetByID(store))
	})
}

func handleQuery(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter, err := parseFilter(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		events, err := store.Query(r.Context(), filter)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "audit query failed")
			return
		}
		writeJSON(w, http.StatusOK, events)
	}
}

// parseFilter reads the query string. Malformed values are rejected rather
// than ignored so a typo never silently widens the result.
func parseFilter(r *http.Request) (QueryFilter, error) {
	q := r.URL.Query()
	filter := QueryFilter{
		Type:           EventType(q.Get("type")),
		Channel:        q.Get("channel"),
		ConversationID: q.Get("conversation"),
		ReturnID:       q.Get("return_id"),
		OrderID:        q.Get("order_id"),
		CustomerID:     q.Get("customer_id"),
		Limit:          defaultQueryLimit,
	}

	for name, dst := range map[string]**time.Time{"since": &filter.Since, "until": &filter.Until} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, fmt.Errorf("%s must be an RFC 3339 timestamp", name)
		}
		*dst = &t
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return filter, errors.New("limit must be a positive integer")
		}
		filter.Limit = min(n, maxQueryLimit)
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return filter, errors.New("offset must be a non-negative integer")
		}
		filter.Offset = n
	}
	return filter, nil
}

func handleTimeline(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, err := store.Timeline(r.Context(), chi.URLParam(r, "returnID"))
		switch {
		case errors.Is(err, ErrUnknownReturn):
			writeError(w, http.StatusNotFound, "return not found")
		case err != nil:
			writeError(w, http.StatusInternalServerError, "audit query failed")
		default:
			writeJSON(w, http.StatusOK, t)
		}
	}
}

func handleGetByID(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		event, err := store.GetByID(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusNotFound, "event not found")
			return
		}
		writeJSON(w, http.StatusOK, event)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
