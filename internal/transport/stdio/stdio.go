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

// Package stdio implements the newline-framed transport.Transport over an
// arbitrary io.Reader/io.Writer pair, typically os.Stdin/os.Stdout. Each
// line is read on its own goroutine so a context cancellation can
// interrupt a Read that would otherwise block on a quiet stdin.
package stdio

import (
	"bufio"
	"context"
	"io"
	"strings"
	"sync"

	"github.com/mcpforge/runtime/internal/transport"
)

// Transport is a line-delimited transport.Transport: one JSON envelope per
// line, LF-terminated, UTF-8, no embedded newlines (string escapes carry
// those).
type Transport struct {
	reader *bufio.Reader
	writer io.Writer

	writeMu sync.Mutex
}

// New wraps r/w as a stdio Transport.
func New(r io.Reader, w io.Writer) *Transport {
	return &Transport{reader: bufio.NewReader(r), writer: w}
}

// Send writes envelope followed by a single newline. Concurrent Send calls
// are serialized.
func (t *Transport) Send(ctx context.Context, envelope []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if _, err := t.writer.Write(envelope); err != nil {
		return &transport.Error{Op: "send", Err: err}
	}
	if _, err := io.WriteString(t.writer, "\n"); err != nil {
		return &transport.Error{Op: "send", Err: err}
	}
	return nil
}

// Recv reads one line and returns its bytes sans the trailing newline. A
// line that isn't valid UTF-8 JSON still round-trips here unparsed; decode
// failures are the codec's concern, not the transport's.
func (t *Transport) Recv(ctx context.Context) ([]byte, error) {
	line, err := t.readLine(ctx)
	if err != nil {
		if err == io.EOF {
			return nil, transport.ErrEndOfStream
		}
		if err == context.Canceled || err == context.DeadlineExceeded {
			return nil, err
		}
		return nil, &transport.Error{Op: "recv", Err: err}
	}
	return []byte(strings.TrimRight(line, "\n")), nil
}

// readLine reads one line on a helper goroutine so ctx cancellation can
// interrupt a Read that would otherwise block forever on a quiet stdin.
func (t *Transport) readLine(ctx context.Context) (string, error) {
	type result struct {
		line string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		line, err := t.reader.ReadString('\n')
		ch <- result{line: line, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-ch:
		return r.line, r.err
	}
}

// Close is idempotent; the stdio transport holds no OS resources beyond the
// reader/writer it was given, which it does not own and does not close.
func (t *Transport) Close() error {
	return nil
}

var _ transport.Transport = (*Transport)(nil)
