// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package http implements the HTTP-with-server-sent-event-replies MCP
// transport: POST bodies carry inbound envelopes and are answered
// synchronously, while an SSE stream carries server-initiated
// notifications back to the peer.
package http

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httplog/v2"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/mcpforge/runtime/internal/dispatcher"
	"github.com/mcpforge/runtime/internal/session"
	"github.com/mcpforge/runtime/internal/util"
)

// sessionEntry pairs a live Session with the SSE event queue its stream
// (if any) is fed through.
type sessionEntry struct {
	sess       *session.Session
	eventQueue chan []byte
	lastActive time.Time
}

// Handler exposes a Dispatcher over HTTP+SSE as a chi.Router: POST / for
// request/response and notification delivery, GET /sse for server-push
// event streams.
type Handler struct {
	Dispatcher *dispatcher.Dispatcher

	mu       sync.Mutex
	sessions map[string]*sessionEntry

	Router chi.Router
}

// NewHandler builds a Handler wired to d and mounts its routes.
func NewHandler(d *dispatcher.Dispatcher) *Handler {
	h := &Handler{
		Dispatcher: d,
		sessions:   make(map[string]*sessionEntry),
	}
	h.Router = h.routes()
	go h.reapStale(context.Background())
	return h
}

func (h *Handler) routes() chi.Router {
	httpLogger := httplog.NewLogger("mcp-http", httplog.Options{
		Concise:          true,
		RequestHeaders:   false,
		MessageFieldName: "message",
	})

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(httplog.RequestLogger(httpLogger))
	r.Use(middleware.StripSlashes)
	r.Use(middleware.AllowContentType("application/json"))
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/sse", h.serveSSE)
	r.Post("/", h.serveMessage)
	r.Delete("/", h.serveDelete)
	return r
}

func (h *Handler) sessionFor(id string) (*sessionEntry, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	e, ok := h.sessions[id]
	if ok {
		e.lastActive = time.Now()
	}
	return e, ok
}

func (h *Handler) newSession() (string, *sessionEntry) {
	id := uuid.New().String()
	e := &sessionEntry{
		sess:       session.New(),
		eventQueue: make(chan []byte, 100),
		lastActive: time.Now(),
	}
	// The HTTP channel is "ready" the moment it exists; the session can
	// accept initialize immediately.
	_ = e.sess.SetState(session.Initializing)
	e.sess.BindOutbound(e.eventQueue)
	h.Dispatcher.Track(e.sess)
	h.mu.Lock()
	h.sessions[id] = e
	h.mu.Unlock()
	return id, e
}

func (h *Handler) removeSession(id string) {
	h.mu.Lock()
	e, ok := h.sessions[id]
	delete(h.sessions, id)
	h.mu.Unlock()
	if ok {
		h.Dispatcher.Untrack(e.sess)
	}
}

// reapStale drops sessions that haven't been touched in 10 minutes.
func (h *Handler) reapStale(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.mu.Lock()
			now := time.Now()
			var stale []*sessionEntry
			for id, e := range h.sessions {
				if now.Sub(e.lastActive) > 10*time.Minute {
					stale = append(stale, e)
					delete(h.sessions, id)
				}
			}
			h.mu.Unlock()
			for _, e := range stale {
				h.Dispatcher.Untrack(e.sess)
			}
		}
	}
}

// serveSSE opens a server-push event stream for sessionId, creating a new
// session if none is given.
func (h *Handler) serveSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	sessionID := r.URL.Query().Get("sessionId")
	var entry *sessionEntry
	if sessionID != "" {
		entry, ok = h.sessionFor(sessionID)
	}
	if !ok {
		sessionID, entry = h.newSession()
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	fmt.Fprintf(w, "event: endpoint\ndata: /?sessionId=%s\n\n", sessionID)
	flusher.Flush()

	for {
		select {
		case event, ok := <-entry.eventQueue:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: message\ndata: %s\n\n", event)
			flusher.Flush()
		case <-r.Context().Done():
			h.removeSession(sessionID)
			return
		}
	}
}

// serveMessage handles one JSON-RPC envelope per POST body. The response
// is rendered synchronously; a notification yields 202 Accepted with no
// body.
func (h *Handler) serveMessage(w http.ResponseWriter, r *http.Request) {
	ctx := util.WithLogger(r.Context(), h.Dispatcher.Logger)

	headerSessionID := r.Header.Get("Mcp-Session-Id")
	querySessionID := r.URL.Query().Get("sessionId")
	sessionID := headerSessionID
	if sessionID == "" {
		sessionID = querySessionID
	}

	entry, found := h.sessionFor(sessionID)
	if !found {
		sessionID, entry = h.newSession()
	}

	defer r.Body.Close()
	body, err := io.ReadAll(r.Body)
	if err != nil {
		render.JSON(w, r, newJSONRPCParseError(err))
		return
	}

	respBytes, err := h.Dispatcher.HandleSync(ctx, entry.sess, body)
	if err != nil {
		h.Dispatcher.Logger.ErrorContext(ctx, "handle sync failed", "error", err)
	}

	w.Header().Set("Mcp-Session-Id", sessionID)
	if respBytes == nil {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(respBytes)
}

// serveDelete ends a session explicitly, releasing its table entry.
func (h *Handler) serveDelete(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get("Mcp-Session-Id")
	if sessionID == "" {
		sessionID = r.URL.Query().Get("sessionId")
	}
	if sessionID != "" {
		h.removeSession(sessionID)
	}
	w.WriteHeader(http.StatusNoContent)
}

func newJSONRPCParseError(err error) map[string]interface{} {
	return map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      nil,
		"error": map[string]interface{}{
			"code":    -32700,
			"message": "parse error: " + err.Error(),
		},
	}
}
