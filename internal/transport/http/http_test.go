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

package http

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mcpforge/runtime/internal/dispatcher"
	"github.com/mcpforge/runtime/internal/log"
	"github.com/mcpforge/runtime/internal/mcp"
	"github.com/mcpforge/runtime/internal/mcptest"
)

func setUpServer(t *testing.T) (*Handler, *httptest.Server) {
	t.Helper()
	logger, err := log.NewStdLogger(io.Discard, io.Discard, log.Warn)
	if err != nil {
		t.Fatalf("unexpected error creating logger: %s", err)
	}
	d := dispatcher.New(mcp.Implementation{Name: "mcpforge-test", Version: "0.0.1"}, logger)
	if err := d.Tools.Register(mcptest.EchoTool()); err != nil {
		t.Fatalf("unexpected error registering tool: %s", err)
	}
	h := NewHandler(d)
	ts := httptest.NewServer(h.Router)
	t.Cleanup(ts.Close)
	return h, ts
}

// post sends one envelope and returns the HTTP response plus decoded body.
func post(t *testing.T, ts *httptest.Server, sessionID, body string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, ts.URL+"/", bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("unexpected error building request: %s", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if sessionID != "" {
		req.Header.Set("Mcp-Session-Id", sessionID)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("unexpected error during request: %s", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("unexpected error reading body: %s", err)
	}
	if len(raw) == 0 {
		return resp, nil
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unexpected error unmarshalling body %q: %s", raw, err)
	}
	return resp, decoded
}

func TestInitializeLifecycleOverHTTP(t *testing.T) {
	_, ts := setUpServer(t)

	resp, body := post(t, ts, "", `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05","capabilities":{},"clientInfo":{"name":"t","version":"1"}}}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	sessionID := resp.Header.Get("Mcp-Session-Id")
	if sessionID == "" {
		t.Fatalf("expected a session id header")
	}
	result := body["result"].(map[string]any)
	if result["protocolVersion"] != "2024-11-05" {
		t.Errorf("unexpected protocolVersion: %v", result["protocolVersion"])
	}

	// The initialized notification is acknowledged with 202 and no body.
	resp, body = post(t, ts, sessionID, `{"jsonrpc":"2.0","method":"notifications/initialized"}`)
	if resp.StatusCode != http.StatusAccepted || body != nil {
		t.Fatalf("unexpected notification ack: status %d body %+v", resp.StatusCode, body)
	}

	resp, body = post(t, ts, sessionID, `{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"echo","arguments":{"message":"hi"}}}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	content := body["result"].(map[string]any)["content"].([]any)
	if text := content[0].(map[string]any)["text"]; text != "hi" {
		t.Errorf("unexpected echo text: %v", text)
	}
}

func TestRequestBeforeInitializedRejected(t *testing.T) {
	_, ts := setUpServer(t)

	_, body := post(t, ts, "", `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)
	errObj, ok := body["error"].(map[string]any)
	if !ok {
		t.Fatalf("expected an error response, got %+v", body)
	}
	if errObj["code"] != -32600.0 {
		t.Errorf("unexpected code: got %v, want -32600", errObj["code"])
	}
}

func TestSessionsAreIsolated(t *testing.T) {
	_, ts := setUpServer(t)

	resp, _ := post(t, ts, "", `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05"}}`)
	first := resp.Header.Get("Mcp-Session-Id")
	post(t, ts, first, `{"jsonrpc":"2.0","method":"notifications/initialized"}`)

	// A fresh session (no header) is still uninitialized.
	_, body := post(t, ts, "", `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`)
	if _, isErr := body["error"]; !isErr {
		t.Fatalf("expected the fresh session to reject tools/list, got %+v", body)
	}

	// The first session keeps working.
	_, body = post(t, ts, first, `{"jsonrpc":"2.0","id":3,"method":"tools/list"}`)
	if _, isErr := body["error"]; isErr {
		t.Fatalf("unexpected error on the initialized session: %+v", body)
	}
}

func TestDeleteEndsSession(t *testing.T) {
	h, ts := setUpServer(t)

	resp, _ := post(t, ts, "", `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05"}}`)
	sessionID := resp.Header.Get("Mcp-Session-Id")

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/", nil)
	req.Header.Set("Mcp-Session-Id", sessionID)
	req.Header.Set("Content-Type", "application/json")
	dresp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("unexpected error during delete: %s", err)
	}
	dresp.Body.Close()
	if dresp.StatusCode != http.StatusNoContent {
		t.Fatalf("unexpected status: %d", dresp.StatusCode)
	}
	if _, ok := h.sessionFor(sessionID); ok {
		t.Fatalf("expected the session to be gone after DELETE")
	}
}

func TestSSEStreamDeliversEndpointEvent(t *testing.T) {
	_, ts := setUpServer(t)

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/sse", nil)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("unexpected error opening sse stream: %s", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type: %s", ct)
	}

	lineCh := make(chan string, 4)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			lineCh <- scanner.Text()
		}
	}()

	var event, data string
	for event == "" || data == "" {
		select {
		case line := <-lineCh:
			if strings.HasPrefix(line, "event: ") {
				event = strings.TrimPrefix(line, "event: ")
			}
			if strings.HasPrefix(line, "data: ") {
				data = strings.TrimPrefix(line, "data: ")
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for the endpoint event")
		}
	}
	if event != "endpoint" {
		t.Errorf("unexpected first event: %q", event)
	}
	if !strings.HasPrefix(data, "/?sessionId=") {
		t.Errorf("unexpected endpoint data: %q", data)
	}
}
