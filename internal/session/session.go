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

// Package session implements the MCP session state machine: one Session
// per connected peer, owning the initialization handshake, negotiated
// capabilities, the outstanding-request table, per-request cancellation
// tokens, progress channels, and the resource-subscription table. The
// same state machine runs over every transport; the dispatcher drives it.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/mcpforge/runtime/internal/jsonrpc"
	"github.com/mcpforge/runtime/internal/mcp"
)

// State is one step of the session lifecycle.
type State int

const (
	Connecting State = iota
	Initializing
	Ready
	ShuttingDown
	Closed
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Initializing:
		return "initializing"
	case Ready:
		return "ready"
	case ShuttingDown:
		return "shutting_down"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// OutstandingRequest tracks one in-flight server-side handler: its
// cancellation token and a flag recording whether a result was already
// produced (so a late cancellation doesn't downgrade a completed call).
type OutstandingRequest struct {
	Cancel context.CancelFunc
	done   bool
}

// outstandingCall tracks one in-flight client-side call this session has
// issued to its peer, awaiting the matching Response.
type outstandingCall struct {
	resultCh chan *jsonrpc.Response
}

// ProgressSink is the per-request handle a tool handler publishes progress
// updates through. Updates go onto the session's outbound channel (the
// same one the dispatcher's single writer goroutine drains), so a
// published update is just another envelope in that already-serialized
// queue.
type ProgressSink struct {
	token interface{}
	sess  *Session
}

// Publish enqueues a progress update. A full outbound channel drops the
// update rather than stalling the handler; requests and responses are
// never dropped, notifications may be.
func (p *ProgressSink) Publish(progress float64, total *float64) {
	if p == nil || p.sess == nil {
		return
	}
	p.sess.Notify(mcp.NotificationProgress, mcp.ProgressParams{ProgressToken: p.token, Progress: progress, Total: total})
}

// Session holds all per-peer state the dispatcher needs across the
// lifetime of one connection: negotiated capabilities, the outstanding
// server-side and client-side request tables, progress sinks, resource
// subscriptions, and the lifecycle state itself.
type Session struct {
	ID string

	mu    sync.Mutex
	state State

	PeerInfo        mcp.Implementation
	ProtocolVersion string
	ClientCaps      mcp.ClientCapabilities

	LogLevel string

	GrantedScopes []string

	outstandingIn  map[string]*OutstandingRequest
	outstandingOut map[string]*outstandingCall
	progress       map[interface{}]*ProgressSink
	subscriptions  map[string]bool

	nextOutID int64

	outbound chan<- []byte
}

// BindOutbound attaches the writer channel the dispatcher's serialized
// writer goroutine drains. Progress sinks created after this call emit
// their updates as notifications/progress envelopes onto it.
func (s *Session) BindOutbound(ch chan<- []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outbound = ch
}

// New creates a Session in state Connecting.
func New() *Session {
	return &Session{
		ID:             uuid.New().String(),
		state:          Connecting,
		outstandingIn:  make(map[string]*OutstandingRequest),
		outstandingOut: make(map[string]*outstandingCall),
		progress:       make(map[interface{}]*ProgressSink),
		subscriptions:  make(map[string]bool),
	}
}

// State returns the session's current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ErrInvalidTransition is returned by SetState when the requested
// transition isn't a permitted lifecycle edge.
type ErrInvalidTransition struct {
	From, To State
}

func (e *ErrInvalidTransition) Error() string {
	return fmt.Sprintf("invalid session state transition: %s -> %s", e.From, e.To)
}

var allowedTransitions = map[State]map[State]bool{
	Connecting:   {Initializing: true, Closed: true},
	Initializing: {Ready: true, Closed: true},
	Ready:        {ShuttingDown: true, Closed: true},
	ShuttingDown: {Closed: true},
}

// SetState transitions the session to to, validating the edge against
// the lifecycle table. Closed is terminal; transitioning into it is
// always allowed as a cleanup path.
func (s *Session) SetState(to State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == to {
		return nil
	}
	if to == Closed {
		s.state = Closed
		return nil
	}
	if !allowedTransitions[s.state][to] {
		return &ErrInvalidTransition{From: s.state, To: to}
	}
	s.state = to
	return nil
}

// RegisterOutstanding records id as an in-flight server-side request,
// returning its cancellation context and an error if id is already
// outstanding.
func (s *Session) RegisterOutstanding(parent context.Context, id string) (context.Context, *OutstandingRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.outstandingIn[id]; exists {
		return nil, nil, fmt.Errorf("duplicate request id %q still outstanding", id)
	}
	ctx, cancel := context.WithCancel(parent)
	req := &OutstandingRequest{Cancel: cancel}
	s.outstandingIn[id] = req
	return ctx, req, nil
}

// CompleteOutstanding marks id as done and removes it from the table. It is
// idempotent: completing an id twice, or an id that was never registered,
// is a no-op.
func (s *Session) CompleteOutstanding(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if req, ok := s.outstandingIn[id]; ok {
		req.done = true
		delete(s.outstandingIn, id)
	}
}

// CancelOutstanding signals the cancellation token for id. Returns false
// if id is not currently outstanding; cancelling an id that already
// produced a response is a no-op.
func (s *Session) CancelOutstanding(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.outstandingIn[id]
	if !ok || req.done {
		return false
	}
	req.Cancel()
	return true
}

// CancelAllOutstanding signals every currently outstanding server-side
// request's cancellation token, used when a transport observes EndOfStream
// with requests still in flight.
func (s *Session) CancelAllOutstanding() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, req := range s.outstandingIn {
		if !req.done {
			req.Cancel()
		}
	}
}

// NextRequestID allocates a fresh string id for a client-side call this
// session is about to issue.
func (s *Session) NextRequestID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextOutID++
	return fmt.Sprintf("c%d", s.nextOutID)
}

// RegisterCall records id as an outbound call awaiting a response, returning
// the channel its Response will be delivered on. The entry is keyed by the
// id's JSON form, the same form ResolveCall looks up.
func (s *Session) RegisterCall(id string) <-chan *jsonrpc.Response {
	ch := make(chan *jsonrpc.Response, 1)
	s.mu.Lock()
	s.outstandingOut[jsonrpc.NewID(id).String()] = &outstandingCall{resultCh: ch}
	s.mu.Unlock()
	return ch
}

// AbandonCall removes the outbound call registered under id without
// delivering a response, so a cancelled or failed Call does not leak its
// table entry while waiting for a reply that may never come. Idempotent,
// and a no-op for an id ResolveCall already delivered.
func (s *Session) AbandonCall(id string) {
	s.mu.Lock()
	delete(s.outstandingOut, jsonrpc.NewID(id).String())
	s.mu.Unlock()
}

// ResolveCall delivers resp to the outbound call registered under its id,
// if any. A response for an id with no matching outstanding call is
// dropped silently; ResolveCall reports whether a match was found.
func (s *Session) ResolveCall(resp *jsonrpc.Response) bool {
	id := resp.ID.String()
	s.mu.Lock()
	call, ok := s.outstandingOut[id]
	if ok {
		delete(s.outstandingOut, id)
	}
	s.mu.Unlock()
	if !ok {
		return false
	}
	call.resultCh <- resp
	return true
}

// NewProgressSink creates (or returns the existing) progress sink for
// token, sharing the session's bounded outbound channel.
func (s *Session) NewProgressSink(token interface{}) *ProgressSink {
	if token == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if sink, ok := s.progress[token]; ok {
		return sink
	}
	sink := &ProgressSink{token: token, sess: s}
	s.progress[token] = sink
	return sink
}

// CloseProgressSink removes the sink for token from the session's table
// once its request has completed. It does not disable the sink itself: a
// handle still held by a caller keeps publishing onto the outbound channel.
func (s *Session) CloseProgressSink(token interface{}) {
	if token == nil {
		return
	}
	s.mu.Lock()
	delete(s.progress, token)
	s.mu.Unlock()
}

// Notify encodes a server-initiated notification and enqueues it on the
// session's outbound channel. Notifications may be dropped rather than
// block a producer; Notify reports whether the envelope was enqueued. A
// session with no bound outbound channel drops everything.
// The lock is held across the non-blocking enqueue so that a concurrent
// CloseOutbound cannot close the channel mid-send.
func (s *Session) Notify(method string, params interface{}) bool {
	var raw json.RawMessage
	if params != nil {
		b, err := json.Marshal(params)
		if err != nil {
			return false
		}
		raw = b
	}
	b, err := jsonrpc.EncodeNotification(&jsonrpc.Notification{Method: method, Params: raw})
	if err != nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.outbound == nil {
		return false
	}
	select {
	case s.outbound <- b:
		return true
	default:
		return false
	}
}

// CloseOutbound closes the bound outbound channel (ending the writer
// goroutine draining it) and detaches it, so later Notify calls drop
// instead of panicking on a closed channel. Idempotent.
func (s *Session) CloseOutbound() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.outbound != nil {
		close(s.outbound)
		s.outbound = nil
	}
}

// logSeverity orders the MCP logging levels from least to most severe.
var logSeverity = map[string]int{
	"debug":     0,
	"info":      1,
	"notice":    2,
	"warning":   3,
	"error":     4,
	"critical":  5,
	"alert":     6,
	"emergency": 7,
}

// SetLogLevel updates the session-scoped logging/setLevel threshold.
func (s *Session) SetLogLevel(level string) {
	s.mu.Lock()
	s.LogLevel = level
	s.mu.Unlock()
}

// SendLogMessage emits a notifications/message envelope if level clears the
// session's logging/setLevel threshold. An unset threshold admits
// everything at info and above.
func (s *Session) SendLogMessage(level, logger string, data interface{}) bool {
	s.mu.Lock()
	threshold := s.LogLevel
	s.mu.Unlock()
	if threshold == "" {
		threshold = "info"
	}
	if logSeverity[level] < logSeverity[threshold] {
		return false
	}
	return s.Notify(mcp.NotificationMessage, mcp.LogMessageParams{Level: level, Logger: logger, Data: data})
}

// Subscribe records a resource-update subscription for uri.
func (s *Session) Subscribe(uri string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscriptions[uri] = true
}

// Unsubscribe removes a resource-update subscription for uri.
func (s *Session) Unsubscribe(uri string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subscriptions, uri)
}

// Subscribed reports whether this session is subscribed to uri.
func (s *Session) Subscribed(uri string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subscriptions[uri]
}
