package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/atinyakov/FocusKeeper/internal/middleware"
	"github.com/atinyakov/FocusKeeper/internal/service"
)

// DocumentService defines the interface for document operations
// required by the DocumentHandler.
type DocumentService interface {
	// Get returns the user's document; exists is false when never created.
	Get(ctx context.Context, login string) (map[string]json.RawMessage, bool, error)
	// Merge applies a partial-field update.
	Merge(ctx context.Context, login string, fields map[string]json.RawMessage) error
	// Replace overwrites the whole document.
	Replace(ctx context.Context, login string, fields map[string]json.RawMessage) error
	// Watch attaches a live watcher delivering the current state and every
	// subsequent change.
	Watch(ctx context.Context, login string) (string, <-chan service.DocumentUpdate, error)
	// Unwatch detaches a watcher by id.
	Unwatch(login, id string)
}

// DocumentHandler handles HTTP requests for the per-user document.
type DocumentHandler struct {
	DocumentService DocumentService
}

// Get handles GET /api/document. A user without a document gets 404 so
// clients can distinguish "never created" from "empty".
func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	login := middleware.GetUserIDFromContext(r.Context())

	fields, exists, err := h.DocumentService.Get(r.Context(), login)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if !exists {
		http.Error(w, "document not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(fields)
}

// Merge handles PATCH /api/document: a partial-field merge update.
func (h *DocumentHandler) Merge(w http.ResponseWriter, r *http.Request) {
	h.write(w, r, h.DocumentService.Merge)
}

// Replace handles PUT /api/document: wholesale replacement.
func (h *DocumentHandler) Replace(w http.ResponseWriter, r *http.Request) {
	h.write(w, r, h.DocumentService.Replace)
}

func (h *DocumentHandler) write(
	w http.ResponseWriter,
	r *http.Request,
	op func(ctx context.Context, login string, fields map[string]json.RawMessage) error,
) {
	login := middleware.GetUserIDFromContext(r.Context())

	var fields map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	if err := op(r.Context(), login, fields); err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Watch handles GET /api/document/watch. It streams the current document
// and every subsequent change as server-sent events until the client
// disconnects.
func (h *DocumentHandler) Watch(w http.ResponseWriter, r *http.Request) {
	login := middleware.GetUserIDFromContext(r.Context())

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	id, updates, err := h.DocumentService.Watch(r.Context(), login)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	defer h.DocumentService.Unwatch(login, id)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	enc := json.NewEncoder(w)
	for {
		select {
		case <-r.Context().Done():
			return
		case update, open := <-updates:
			if !open {
				return
			}
			if _, err := w.Write([]byte("data: ")); err != nil {
				return
			}
			if err := enc.Encode(update); err != nil {
				return
			}
			if _, err := w.Write([]byte("\n")); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
