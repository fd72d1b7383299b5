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

// Package dispatcher routes inbound envelopes to method handlers, serializes
// outbound responses, and hosts the registries and policy guard. A single
// transport-agnostic Serve loop drives every internal/transport
// implementation the same way.
package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/mcpforge/runtime/internal/jsonrpc"
	"github.com/mcpforge/runtime/internal/log"
	"github.com/mcpforge/runtime/internal/mcp"
	"github.com/mcpforge/runtime/internal/policy"
	"github.com/mcpforge/runtime/internal/registry"
	"github.com/mcpforge/runtime/internal/session"
	"github.com/mcpforge/runtime/internal/telemetry"
	"github.com/mcpforge/runtime/internal/transport"
	"github.com/mcpforge/runtime/internal/util"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

// Dispatcher is the MCP state machine over one or many transports: it hosts
// the tool/resource/prompt registries and the policy guard, and drives a
// Session's lifecycle for each connected peer.
type Dispatcher struct {
	ServerInfo mcp.Implementation

	Tools     *registry.ToolRegistry
	Resources *registry.ResourceRegistry
	Prompts   *registry.PromptRegistry
	Policy    policy.Guard
	Audit     policy.AuditSink

	Instrumentation *telemetry.Instrumentation
	Logger          log.Logger

	// outboundBuffer bounds the per-session writer channel; 0 selects a
	// sane default.
	outboundBuffer int

	handlers map[string]methodHandler

	sessMu   sync.Mutex
	sessions map[*session.Session]struct{}
}

// methodHandler computes the result payload for one MCP method, or a
// JSON-RPC error. params is the raw request params; nil/empty for methods
// that take none.
type methodHandler func(ctx context.Context, d *Dispatcher, sess *session.Session, params json.RawMessage) (interface{}, *jsonrpc.Error)

// Option configures a Dispatcher at construction time.
type Option func(*Dispatcher)

// WithOutboundBuffer overrides the default outbound channel capacity.
func WithOutboundBuffer(n int) Option {
	return func(d *Dispatcher) { d.outboundBuffer = n }
}

// WithPolicy installs a non-default policy guard (and optional audit sink).
func WithPolicy(guard policy.Guard, audit policy.AuditSink) Option {
	return func(d *Dispatcher) {
		d.Policy = guard
		d.Audit = audit
	}
}

// New constructs a Dispatcher with empty registries, an allow-all policy
// guard, and a no-op instrumentation, all overridable via opts.
func New(serverInfo mcp.Implementation, logger log.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		ServerInfo:      serverInfo,
		Tools:           registry.NewToolRegistry(),
		Resources:       registry.NewResourceRegistry(),
		Prompts:         registry.NewPromptRegistry(),
		Policy:          policy.AllowAll{},
		Instrumentation: telemetry.NoOp(),
		Logger:          logger,
		outboundBuffer:  64,
		sessions:        make(map[*session.Session]struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.handlers = builtinMethods()
	return d
}

// Serve drives one session's entire lifetime over t: it owns the single
// reader loop and the single serialized writer goroutine, spawning one
// handler goroutine per inbound request and routing outbound bytes
// through a bounded channel.
func (d *Dispatcher) Serve(ctx context.Context, t transport.Transport) error {
	sess := session.New()
	ctx = util.WithLogger(ctx, d.Logger)

	bufSize := d.outboundBuffer
	if bufSize <= 0 {
		bufSize = 64
	}
	outbound := make(chan []byte, bufSize)
	sess.BindOutbound(outbound)
	d.Track(sess)
	var writerWG sync.WaitGroup
	writerWG.Add(1)
	go func() {
		defer writerWG.Done()
		for b := range outbound {
			if err := t.Send(ctx, b); err != nil {
				d.Logger.ErrorContext(ctx, "transport send failed", "session", sess.ID, "error", err)
				// Keep draining so handlers enqueueing responses never
				// block on a dead writer; the envelopes are discarded.
				for range outbound {
				}
				return
			}
		}
	}()

	if err := sess.SetState(session.Initializing); err != nil {
		d.Untrack(sess)
		sess.CloseOutbound()
		writerWG.Wait()
		return err
	}

	var handlers sync.WaitGroup
	var serveErr error
loop:
	for {
		raw, err := t.Recv(ctx)
		if err != nil {
			if err != transport.ErrEndOfStream {
				serveErr = err
			}
			break loop
		}
		if d.handleRaw(ctx, sess, raw, outbound, &handlers) == errExit {
			break loop
		}
	}

	sess.CancelAllOutstanding()
	handlers.Wait()
	d.Untrack(sess)
	sess.CloseOutbound()
	writerWG.Wait()
	_ = sess.SetState(session.Closed)
	if closeErr := t.Close(); closeErr != nil && serveErr == nil {
		serveErr = closeErr
	}
	return serveErr
}

type loopSignal int

const (
	errContinue loopSignal = iota
	errExit
)

// handleRaw decodes one inbound envelope and routes it: responses resolve
// outbound calls, notifications dispatch fire-and-forget, requests spawn a
// handler goroutine.
func (d *Dispatcher) handleRaw(ctx context.Context, sess *session.Session, raw []byte, outbound chan<- []byte, handlers *sync.WaitGroup) loopSignal {
	msg, decErr := jsonrpc.Decode(raw)
	if decErr != nil {
		id := extractID(raw)
		d.Logger.DebugContext(ctx, "envelope decode failed", "error", decErr.Message)
		if !id.IsZero() {
			enqueueResponse(outbound, &jsonrpc.Response{ID: id, Error: decErr})
		}
		return errContinue
	}

	switch {
	case msg.Response != nil:
		if !sess.ResolveCall(msg.Response) {
			d.Logger.DebugContext(ctx, "response for unknown id dropped", "id", msg.Response.ID.String())
		}
		return errContinue

	case msg.Notification != nil:
		if d.handleNotification(ctx, sess, msg.Notification) {
			return errExit
		}
		return errContinue

	case msg.Request != nil:
		d.dispatchRequest(ctx, sess, msg.Request, outbound, handlers)
		return errContinue
	}
	return errContinue
}

// handleNotification dispatches a fire-and-forget notification; failures
// are logged, never reported. Returns true if the session should now stop
// its reader loop (the exit notification).
func (d *Dispatcher) handleNotification(ctx context.Context, sess *session.Session, n *jsonrpc.Notification) bool {
	switch n.Method {
	case mcp.NotificationInitialized:
		if err := sess.SetState(session.Ready); err != nil {
			d.Logger.WarnContext(ctx, "initialized notification in unexpected state", "error", err)
		}
		return false
	case mcp.NotificationExit:
		_ = sess.SetState(session.Closed)
		return true
	case mcp.MethodCancelRequest:
		var params mcp.CancelParams
		if err := json.Unmarshal(n.Params, &params); err != nil {
			d.Logger.WarnContext(ctx, "malformed cancelRequest params", "error", err)
			return false
		}
		id := jsonrpc.NewID(params.ID)
		if sess.CancelOutstanding(id.String()) {
			d.Instrumentation.CancellationCount.Add(ctx, 1)
		}
		return false
	default:
		d.Logger.DebugContext(ctx, "unhandled notification", "method", n.Method)
		return false
	}
}

// dispatchRequest enforces the lifecycle gate, registers cancellation, and
// spawns the handler goroutine that computes and sends the response.
func (d *Dispatcher) dispatchRequest(ctx context.Context, sess *session.Session, req *jsonrpc.Request, outbound chan<- []byte, handlers *sync.WaitGroup) {
	state := sess.State()

	if code, msg, ok := lifecycleViolation(state, req.Method); !ok {
		enqueueResponse(outbound, &jsonrpc.Response{ID: req.ID, Error: jsonrpc.NewError(code, msg, nil)})
		return
	}

	hctx, _, err := sess.RegisterOutstanding(ctx, req.ID.String())
	if err != nil {
		enqueueResponse(outbound, &jsonrpc.Response{ID: req.ID, Error: jsonrpc.NewError(jsonrpc.CodeInvalidRequest, err.Error(), nil)})
		return
	}

	handlers.Add(1)
	go func() {
		defer handlers.Done()
		defer sess.CompleteOutstanding(req.ID.String())
		resp := d.invoke(hctx, sess, req)
		enqueueResponse(outbound, resp)
	}()
}

// HandleSync processes one inbound envelope to completion and returns its
// encoded response, for transports like HTTP+SSE where a request/response
// pair shares one synchronous call rather than the stdio/WS model's
// independent reader/writer loops. sess must already be bound to whatever
// outbound channel (if any) progress notifications for this call should be
// delivered on; a nil-bound session simply drops them.
// Returns (nil, nil) for a notification, which callers render as an
// empty/202 acknowledgement.
func (d *Dispatcher) HandleSync(ctx context.Context, sess *session.Session, raw []byte) ([]byte, error) {
	msg, decErr := jsonrpc.Decode(raw)
	if decErr != nil {
		id := extractID(raw)
		if id.IsZero() {
			return nil, nil
		}
		return jsonrpc.EncodeResponse(&jsonrpc.Response{ID: id, Error: decErr})
	}

	if msg.Notification != nil {
		d.handleNotification(ctx, sess, msg.Notification)
		return nil, nil
	}
	if msg.Response != nil {
		sess.ResolveCall(msg.Response)
		return nil, nil
	}

	req := msg.Request
	if code, m, ok := lifecycleViolation(sess.State(), req.Method); !ok {
		return jsonrpc.EncodeResponse(&jsonrpc.Response{ID: req.ID, Error: jsonrpc.NewError(code, m, nil)})
	}

	hctx, _, err := sess.RegisterOutstanding(ctx, req.ID.String())
	if err != nil {
		return jsonrpc.EncodeResponse(&jsonrpc.Response{ID: req.ID, Error: jsonrpc.NewError(jsonrpc.CodeInvalidRequest, err.Error(), nil)})
	}
	defer sess.CompleteOutstanding(req.ID.String())

	resp := d.invoke(hctx, sess, req)
	return jsonrpc.EncodeResponse(resp)
}

// invoke runs one method handler with panic recovery and cancellation
// awareness.
func (d *Dispatcher) invoke(ctx context.Context, sess *session.Session, req *jsonrpc.Request) (resp *jsonrpc.Response) {
	if peer := sess.PeerInfo; peer.Name != "" {
		ctx = util.WithClientInfo(ctx, util.ClientInfo{Name: peer.Name, Version: peer.Version})
	}
	ctx, span := d.Instrumentation.Tracer.Start(ctx, "mcp.dispatch")
	span.SetAttributes(attribute.String("mcp.method", req.Method), attribute.String("mcp.session_id", sess.ID))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			d.Logger.ErrorContext(ctx, "handler panic", "method", req.Method, "panic", r)
			span.SetStatus(codes.Error, "panic")
			resp = &jsonrpc.Response{ID: req.ID, Error: jsonrpc.NewError(jsonrpc.CodeInternalError, "internal error", nil)}
		}
	}()

	d.Instrumentation.RequestCount.Add(ctx, 1, metric.WithAttributes(attribute.String("mcp.method", req.Method)))

	handler, ok := d.handlers[req.Method]
	if !ok {
		return &jsonrpc.Response{ID: req.ID, Error: jsonrpc.NewError(jsonrpc.CodeMethodNotFound, fmt.Sprintf("method not found: %s", req.Method), nil)}
	}

	result, rpcErr := handler(ctx, d, sess, req.Params)

	if ctx.Err() == context.Canceled && rpcErr == nil {
		rpcErr = jsonrpc.NewError(jsonrpc.CodeRequestCancelled, "request cancelled", nil)
		result = nil
	}

	if rpcErr != nil {
		span.SetStatus(codes.Error, rpcErr.Message)
		return &jsonrpc.Response{ID: req.ID, Error: rpcErr}
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return &jsonrpc.Response{ID: req.ID, Error: jsonrpc.NewError(jsonrpc.CodeInternalError, "internal error", nil)}
	}
	return &jsonrpc.Response{ID: req.ID, Result: raw}
}

func enqueueResponse(outbound chan<- []byte, resp *jsonrpc.Response) {
	b, err := jsonrpc.EncodeResponse(resp)
	if err != nil {
		return
	}
	outbound <- b
}

// extractID best-effort recovers an id from a raw envelope that failed
// full decoding, so a ParseError/InvalidRequest response can still be
// correlated when an id is extractable.
func extractID(raw []byte) jsonrpc.ID {
	var probe struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil || len(probe.ID) == 0 {
		return jsonrpc.ID{}
	}
	var v interface{}
	if err := json.Unmarshal(probe.ID, &v); err != nil {
		return jsonrpc.ID{}
	}
	return jsonrpc.NewID(v)
}

// lifecycleViolation checks method against the lifecycle state, returning
// the JSON-RPC error code/message to use if the method isn't permitted in
// that state.
func lifecycleViolation(state session.State, method string) (code int, msg string, ok bool) {
	switch state {
	case session.Connecting:
		return jsonrpc.CodeInvalidRequest, "session not ready", false
	case session.Initializing:
		if method == mcp.MethodInitialize {
			return 0, "", true
		}
		return jsonrpc.CodeInvalidRequest, "session not initialized", false
	case session.Ready:
		if method == mcp.MethodInitialize {
			return jsonrpc.CodeInvalidRequest, "session already initialized", false
		}
		return 0, "", true
	case session.ShuttingDown:
		return jsonrpc.CodeInvalidRequest, "session is shutting down", false
	default:
		return jsonrpc.CodeInvalidRequest, "session closed", false
	}
}
