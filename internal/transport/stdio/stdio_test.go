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

package stdio

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/mcpforge/runtime/internal/transport"
)

func TestSendFrames(t *testing.T) {
	var out bytes.Buffer
	tr := New(strings.NewReader(""), &out)

	envelopes := []string{
		`{"jsonrpc":"2.0","id":1,"method":"ping"}`,
		`{"jsonrpc":"2.0","id":2,"method":"ping"}`,
	}
	for _, e := range envelopes {
		if err := tr.Send(context.Background(), []byte(e)); err != nil {
			t.Fatalf("unexpected send error: %s", err)
		}
	}

	want := strings.Join(envelopes, "\n") + "\n"
	if got := out.String(); got != want {
		t.Errorf("unexpected framing: got %q, want %q", got, want)
	}
}

func TestRecvFrames(t *testing.T) {
	in := strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"ping"}` + "\n" + `{"jsonrpc":"2.0","id":2,"method":"ping"}` + "\n")
	tr := New(in, io.Discard)

	for i, want := range []string{
		`{"jsonrpc":"2.0","id":1,"method":"ping"}`,
		`{"jsonrpc":"2.0","id":2,"method":"ping"}`,
	} {
		got, err := tr.Recv(context.Background())
		if err != nil {
			t.Fatalf("unexpected recv error on line %d: %s", i, err)
		}
		if string(got) != want {
			t.Errorf("unexpected envelope %d: got %q, want %q", i, got, want)
		}
	}

	// Reader exhaustion is a graceful end of stream, repeatably.
	for i := 0; i < 2; i++ {
		if _, err := tr.Recv(context.Background()); err != transport.ErrEndOfStream {
			t.Fatalf("expected end of stream, got %v", err)
		}
	}
}

func TestRecvContextCancellation(t *testing.T) {
	// An empty pipe-like reader that never returns.
	blocked, _ := io.Pipe()
	tr := New(blocked, io.Discard)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	if _, err := tr.Recv(ctx); err != context.DeadlineExceeded {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Errorf("Recv did not honor context cancellation promptly")
	}
}

func TestCloseIdempotent(t *testing.T) {
	tr := New(strings.NewReader(""), io.Discard)
	if err := tr.Close(); err != nil {
		t.Fatalf("unexpected close error: %s", err)
	}
	if err := tr.Close(); err != nil {
		t.Fatalf("unexpected second close error: %s", err)
	}
}
