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

// Package ws implements transport.Transport over RFC 6455 WebSocket text
// frames: one envelope per text frame, with binary frames rejected as a
// protocol violation.
package ws

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mcpforge/runtime/internal/transport"
)

var errBinaryFrame = errors.New("binary frames are not permitted on the MCP websocket transport")

// Upgrader is the shared gorilla/websocket upgrader this package's Accept
// uses. CheckOrigin is left permissive by default; embedders that need
// origin checks should set it before serving.
var Upgrader = websocket.Upgrader{
	CheckOrigin:     func(r *http.Request) bool { return true },
	ReadBufferSize:  64 * 1024,
	WriteBufferSize: 64 * 1024,
}

// Transport is a transport.Transport over one upgraded WebSocket connection.
type Transport struct {
	conn *websocket.Conn

	writeMu sync.Mutex

	// readErr, once set, is the terminal indication every subsequent Recv
	// repeats. Only the single reader goroutine touches it.
	readErr error
}

// Accept upgrades an incoming HTTP request to a WebSocket connection and
// wraps it as a Transport.
func Accept(w http.ResponseWriter, r *http.Request) (*Transport, error) {
	conn, err := Upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, &transport.Error{Op: "accept", Err: err}
	}
	return &Transport{conn: conn}, nil
}

// Dial connects to a WebSocket server at url and wraps the connection as a
// Transport, for the client side.
func Dial(ctx context.Context, url string) (*Transport, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, &transport.Error{Op: "dial", Err: err}
	}
	return &Transport{conn: conn}, nil
}

// Send writes envelope as a single text frame. Concurrent Send calls are
// serialized, since gorilla/websocket permits at most one writer at a time.
func (t *Transport) Send(ctx context.Context, envelope []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if err := t.conn.WriteMessage(websocket.TextMessage, envelope); err != nil {
		return &transport.Error{Op: "send", Err: err}
	}
	return nil
}

// Recv reads the next frame. A binary frame is a protocol violation: the
// connection is closed and every subsequent Recv repeats the error, the
// same terminal behavior an I/O failure or peer close produces. Ping/pong
// control frames are handled beneath this layer by gorilla/websocket's
// default handlers and never reach Recv.
func (t *Transport) Recv(ctx context.Context) ([]byte, error) {
	if t.readErr != nil {
		return nil, t.readErr
	}
	msgType, data, err := t.conn.ReadMessage()
	if err != nil {
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			t.readErr = transport.ErrEndOfStream
		} else {
			t.readErr = &transport.Error{Op: "recv", Err: err}
		}
		return nil, t.readErr
	}
	if msgType != websocket.TextMessage {
		t.readErr = &transport.Error{Op: "recv", Err: errBinaryFrame}
		_ = t.Close()
		return nil, t.readErr
	}
	return data, nil
}

// Close sends a close frame (best-effort) then closes the underlying
// connection. Calling it again is safe and releases nothing further, since
// gorilla/websocket's Close is itself safe to call more than once; the
// second call returns the error the already-closed connection reports.
func (t *Transport) Close() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = t.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return t.conn.Close()
}

var _ transport.Transport = (*Transport)(nil)
