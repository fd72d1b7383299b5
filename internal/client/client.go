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

// Package client implements the initiating half of an MCP connection: a
// client that discovers and invokes the capabilities a peer exposes. It
// is the mirror image of internal/dispatcher's server-side handling: it
// allocates an id, registers it in the session's outstanding-request
// table, writes the request through the transport, and resolves when the
// matching response arrives.
package client

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/mcpforge/runtime/internal/jsonrpc"
	"github.com/mcpforge/runtime/internal/mcp"
	"github.com/mcpforge/runtime/internal/session"
	"github.com/mcpforge/runtime/internal/transport"
)

// Client drives one MCP session from the initiating side: it owns the
// transport's reader loop (to route inbound responses and notifications)
// and exposes Call for request/response round trips plus Notify for
// one-way messages.
type Client struct {
	t    transport.Transport
	sess *session.Session

	mu              sync.Mutex
	notificationMux map[string]func(json.RawMessage)

	readErr chan error
}

// New wraps t in a Client. Call Start before issuing any Call.
func New(t transport.Transport) *Client {
	return &Client{
		t:               t,
		sess:            session.New(),
		notificationMux: make(map[string]func(json.RawMessage)),
		readErr:         make(chan error, 1),
	}
}

// OnNotification registers a callback for a notification method (e.g.
// notifications/progress, notifications/resources/updated). Only one
// callback per method is kept; a later registration replaces an earlier one.
func (c *Client) OnNotification(method string, fn func(json.RawMessage)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notificationMux[method] = fn
}

// Start launches the reader loop that routes inbound responses to waiting
// Call invocations and inbound notifications to registered callbacks. The
// loop runs until the transport reaches EndOfStream, a transport error
// occurs, or ctx is cancelled.
func (c *Client) Start(ctx context.Context) {
	outbound := make(chan []byte, 64)
	c.sess.BindOutbound(outbound)
	go func() {
		for b := range outbound {
			_ = c.t.Send(ctx, b)
		}
	}()

	go func() {
		defer close(outbound)
		for {
			raw, err := c.t.Recv(ctx)
			if err != nil {
				c.readErr <- err
				return
			}
			c.route(raw)
		}
	}()
}

func (c *Client) route(raw []byte) {
	msg, decErr := jsonrpc.Decode(raw)
	if decErr != nil {
		return
	}
	switch {
	case msg.Response != nil:
		c.sess.ResolveCall(msg.Response)
	case msg.Notification != nil:
		c.mu.Lock()
		fn := c.notificationMux[msg.Notification.Method]
		c.mu.Unlock()
		if fn != nil {
			fn(msg.Notification.Params)
		}
	}
}

// Initialize performs the initialize handshake and, on success, sends the
// initialized notification, after which the peer treats the session as
// Ready. The Client's own Session state is not changed.
func (c *Client) Initialize(ctx context.Context, clientInfo mcp.Implementation) (*mcp.InitializeResult, error) {
	params, _ := json.Marshal(mcp.InitializeParams{
		ProtocolVersion: mcp.LatestProtocolVersion,
		Capabilities:    mcp.ClientCapabilities{},
		ClientInfo:      clientInfo,
	})

	var result mcp.InitializeResult
	if err := c.Call(ctx, mcp.MethodInitialize, params, &result); err != nil {
		return nil, err
	}
	if err := c.Notify(ctx, mcp.NotificationInitialized, nil); err != nil {
		return nil, err
	}
	return &result, nil
}

// Call issues a request and blocks until the matching response arrives, ctx
// is cancelled, or the transport fails.
func (c *Client) Call(ctx context.Context, method string, params json.RawMessage, out interface{}) error {
	id := c.sess.NextRequestID()
	respCh := c.sess.RegisterCall(id)
	defer c.sess.AbandonCall(id)

	b, err := jsonrpc.EncodeRequest(&jsonrpc.Request{ID: jsonrpc.NewID(id), Method: method, Params: params})
	if err != nil {
		return err
	}
	if err := c.t.Send(ctx, b); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-c.readErr:
		return err
	case resp := <-respCh:
		if resp.Error != nil {
			return resp.Error
		}
		if out == nil || len(resp.Result) == 0 {
			return nil
		}
		return json.Unmarshal(resp.Result, out)
	}
}

// Notify sends a one-way notification; there is no response to await.
func (c *Client) Notify(ctx context.Context, method string, params json.RawMessage) error {
	b, err := jsonrpc.EncodeNotification(&jsonrpc.Notification{Method: method, Params: params})
	if err != nil {
		return err
	}
	return c.t.Send(ctx, b)
}

// Cancel sends a $/cancelRequest notification for the given request id.
func (c *Client) Cancel(ctx context.Context, id string) error {
	params, err := json.Marshal(mcp.CancelParams{ID: id})
	if err != nil {
		return err
	}
	return c.Notify(ctx, mcp.MethodCancelRequest, params)
}

// ListTools calls tools/list and returns its result.
func (c *Client) ListTools(ctx context.Context) (*mcp.ListToolsResult, error) {
	var result mcp.ListToolsResult
	if err := c.Call(ctx, mcp.MethodToolsList, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CallTool calls tools/call for the given tool name and arguments.
func (c *Client) CallTool(ctx context.Context, name string, arguments map[string]interface{}) (*mcp.CallToolResult, error) {
	params, err := json.Marshal(mcp.CallToolParams{Name: name, Arguments: arguments})
	if err != nil {
		return nil, err
	}
	var result mcp.CallToolResult
	if err := c.Call(ctx, mcp.MethodToolsCall, params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Close releases the underlying transport.
func (c *Client) Close() error {
	return c.t.Close()
}
