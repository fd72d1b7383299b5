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

// Package transport defines the contract every MCP framing implementation
// must satisfy: a reliable, in-order, full-duplex channel that delivers
// and accepts whole envelopes as raw JSON bytes, one per call.
// internal/transport/stdio, /ws, and /http are the concrete framings.
package transport

import (
	"context"
	"errors"
)

// ErrEndOfStream is returned by Recv on a graceful peer close. Subsequent
// Recv calls continue returning it.
var ErrEndOfStream = errors.New("transport: end of stream")

// Error wraps a framing or I/O failure from Send or Recv. Once returned,
// the transport is considered unrecoverable and subsequent calls return
// the same terminal indication.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return "transport: " + e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

// Transport is a bidirectional, ordered, message-framed byte channel. A
// transport may be read by at most one goroutine and written by at most one
// goroutine at a time; Dispatcher.Serve honors this by owning exactly one
// reader loop and one serialized writer per session.
type Transport interface {
	// Send transmits one whole envelope. The Nth successful Send is
	// observed by the peer's Recv before the (N+1)th.
	Send(ctx context.Context, envelope []byte) error
	// Recv returns exactly one envelope per call, ErrEndOfStream on
	// graceful peer close, or an *Error on framing/IO failure.
	Recv(ctx context.Context) ([]byte, error)
	// Close is idempotent and releases all underlying OS resources.
	Close() error
}
