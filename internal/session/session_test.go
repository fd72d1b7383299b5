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

package session

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mcpforge/runtime/internal/jsonrpc"
)

func TestStateTransitions(t *testing.T) {
	testCases := []struct {
		name  string
		path  []State
		isErr bool
	}{
		{name: "full lifecycle", path: []State{Initializing, Ready, ShuttingDown, Closed}},
		{name: "close during init", path: []State{Initializing, Closed}},
		{name: "close from ready", path: []State{Initializing, Ready, Closed}},
		{name: "skip initializing", path: []State{Ready}, isErr: true},
		{name: "ready to initializing", path: []State{Initializing, Ready, Initializing}, isErr: true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s := New()
			var err error
			for _, st := range tc.path {
				if err = s.SetState(st); err != nil {
					break
				}
			}
			if gotErr := err != nil; gotErr != tc.isErr {
				t.Fatalf("unexpected error state: got %v, want isErr %v", err, tc.isErr)
			}
		})
	}
}

func TestClosedIsTerminal(t *testing.T) {
	s := New()
	if err := s.SetState(Closed); err != nil {
		t.Fatalf("unexpected error closing: %s", err)
	}
	if err := s.SetState(Ready); err == nil {
		t.Fatalf("expected an error transitioning out of Closed")
	}
	// Re-closing is a no-op.
	if err := s.SetState(Closed); err != nil {
		t.Fatalf("unexpected error re-closing: %s", err)
	}
}

func TestOutstandingDuplicateID(t *testing.T) {
	s := New()
	ctx := context.Background()
	if _, _, err := s.RegisterOutstanding(ctx, "1"); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if _, _, err := s.RegisterOutstanding(ctx, "1"); err == nil {
		t.Fatalf("expected duplicate id registration to fail")
	}
	s.CompleteOutstanding("1")
	if _, _, err := s.RegisterOutstanding(ctx, "1"); err != nil {
		t.Fatalf("unexpected error reusing completed id: %s", err)
	}
}

func TestCancelOutstanding(t *testing.T) {
	s := New()
	hctx, _, err := s.RegisterOutstanding(context.Background(), "7")
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if !s.CancelOutstanding("7") {
		t.Fatalf("expected cancellation of an outstanding id to succeed")
	}
	if hctx.Err() != context.Canceled {
		t.Fatalf("expected the handler context to observe cancellation")
	}
	// Level-triggered: cancelling again still reports the request live
	// until it completes.
	if !s.CancelOutstanding("7") {
		t.Fatalf("expected repeat cancel of a live request to still signal")
	}
	s.CompleteOutstanding("7")
	if s.CancelOutstanding("7") {
		t.Fatalf("expected cancel after completion to be a no-op")
	}
}

func TestCancelAllOutstanding(t *testing.T) {
	s := New()
	ctx1, _, _ := s.RegisterOutstanding(context.Background(), "1")
	ctx2, _, _ := s.RegisterOutstanding(context.Background(), "2")
	s.CancelAllOutstanding()
	if ctx1.Err() == nil || ctx2.Err() == nil {
		t.Fatalf("expected every outstanding context to be cancelled")
	}
}

func TestResolveCall(t *testing.T) {
	s := New()
	id := s.NextRequestID()
	ch := s.RegisterCall(id)

	resp := &jsonrpc.Response{ID: jsonrpc.NewID(id), Result: json.RawMessage(`{}`)}
	if !s.ResolveCall(resp) {
		t.Fatalf("expected resolution of a registered call")
	}
	select {
	case got := <-ch:
		if !got.ID.Equal(resp.ID) {
			t.Errorf("unexpected response id: %s", got.ID)
		}
	default:
		t.Fatalf("expected the response on the call channel")
	}

	// A response with no matching call is dropped silently.
	if s.ResolveCall(&jsonrpc.Response{ID: jsonrpc.NewID("stranger")}) {
		t.Fatalf("expected an unmatched response to report no match")
	}
}

func TestAbandonCall(t *testing.T) {
	s := New()
	id := s.NextRequestID()
	s.RegisterCall(id)
	s.AbandonCall(id)

	// A late response for the abandoned id finds no match.
	if s.ResolveCall(&jsonrpc.Response{ID: jsonrpc.NewID(id)}) {
		t.Fatalf("expected a response for an abandoned call to report no match")
	}
	// Abandoning again, or after resolution, is a no-op.
	s.AbandonCall(id)

	id2 := s.NextRequestID()
	s.RegisterCall(id2)
	if !s.ResolveCall(&jsonrpc.Response{ID: jsonrpc.NewID(id2)}) {
		t.Fatalf("expected resolution of a live call after an abandon")
	}
	s.AbandonCall(id2)
}

func TestSubscriptions(t *testing.T) {
	s := New()
	if s.Subscribed("mem://a") {
		t.Fatalf("expected no subscription initially")
	}
	s.Subscribe("mem://a")
	if !s.Subscribed("mem://a") {
		t.Fatalf("expected subscription to be recorded")
	}
	s.Unsubscribe("mem://a")
	if s.Subscribed("mem://a") {
		t.Fatalf("expected subscription to be removed")
	}
}

func TestNotifyDropsWhenFull(t *testing.T) {
	s := New()
	outbound := make(chan []byte, 1)
	s.BindOutbound(outbound)

	if !s.Notify("notifications/tools/list_changed", nil) {
		t.Fatalf("expected the first notification to enqueue")
	}
	if s.Notify("notifications/tools/list_changed", nil) {
		t.Fatalf("expected the second notification to drop on a full channel")
	}
}

func TestNotifyUnboundDrops(t *testing.T) {
	s := New()
	if s.Notify("notifications/tools/list_changed", nil) {
		t.Fatalf("expected a session with no outbound channel to drop")
	}
}

func TestCloseOutboundIdempotent(t *testing.T) {
	s := New()
	outbound := make(chan []byte, 1)
	s.BindOutbound(outbound)
	s.CloseOutbound()
	s.CloseOutbound()
	if s.Notify("notifications/tools/list_changed", nil) {
		t.Fatalf("expected Notify after CloseOutbound to drop")
	}
	if _, ok := <-outbound; ok {
		t.Fatalf("expected the outbound channel to be closed")
	}
}

func TestProgressSinkPublish(t *testing.T) {
	s := New()
	outbound := make(chan []byte, 4)
	s.BindOutbound(outbound)

	sink := s.NewProgressSink("tok")
	total := 3.0
	sink.Publish(1, &total)

	var env struct {
		Method string `json:"method"`
		Params struct {
			ProgressToken string   `json:"progressToken"`
			Progress      float64  `json:"progress"`
			Total         *float64 `json:"total"`
		} `json:"params"`
	}
	select {
	case b := <-outbound:
		if err := json.Unmarshal(b, &env); err != nil {
			t.Fatalf("unexpected unmarshal error: %s", err)
		}
	default:
		t.Fatalf("expected a progress envelope on the outbound channel")
	}
	if env.Method != "notifications/progress" || env.Params.ProgressToken != "tok" || env.Params.Progress != 1 || env.Params.Total == nil || *env.Params.Total != 3 {
		t.Errorf("unexpected progress envelope: %+v", env)
	}

	// A nil token yields a nil sink whose Publish is a no-op.
	var nilSink *ProgressSink = s.NewProgressSink(nil)
	nilSink.Publish(1, nil)
	select {
	case b := <-outbound:
		t.Fatalf("unexpected envelope from a nil sink: %s", b)
	default:
	}
}

func TestSendLogMessageThreshold(t *testing.T) {
	s := New()
	outbound := make(chan []byte, 4)
	s.BindOutbound(outbound)

	s.SetLogLevel("warning")
	if s.SendLogMessage("info", "core", "quiet") {
		t.Fatalf("expected info to be filtered below a warning threshold")
	}
	if !s.SendLogMessage("error", "core", "loud") {
		t.Fatalf("expected error to clear a warning threshold")
	}
}
