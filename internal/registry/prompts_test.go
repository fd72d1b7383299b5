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

package registry

import (
	"context"
	"testing"

	"github.com/mcpforge/runtime/internal/mcp"
)

func TestPromptRegistry(t *testing.T) {
	r := NewPromptRegistry()
	descriptor := mcp.Prompt{
		Name:      "summarize",
		Arguments: []mcp.PromptArgument{{Name: "topic", Required: true}},
	}
	render := func(_ context.Context, args map[string]string) (*mcp.GetPromptResult, error) {
		topic, ok := args["topic"]
		if !ok {
			return nil, &ErrMissingPromptArgument{Name: "topic"}
		}
		return &mcp.GetPromptResult{
			Messages: []mcp.PromptMessage{
				{Role: mcp.RoleUser, Content: mcp.TextContent("Summarize " + topic)},
			},
		}, nil
	}

	if err := r.Register(descriptor, render); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if err := r.Register(descriptor, render); err == nil {
		t.Fatalf("expected duplicate registration to fail")
	}

	list := r.List()
	if len(list) != 1 || list[0].Name != "summarize" {
		t.Fatalf("unexpected list: %+v", list)
	}

	fn, ok := r.Get("summarize")
	if !ok {
		t.Fatalf("expected summarize to resolve")
	}
	result, err := fn(context.Background(), map[string]string{"topic": "tides"})
	if err != nil {
		t.Fatalf("unexpected render error: %s", err)
	}
	if got := result.Messages[0].Content.Text; got != "Summarize tides" {
		t.Errorf("unexpected rendered text: %q", got)
	}

	if _, err := fn(context.Background(), nil); err == nil {
		t.Fatalf("expected a missing required argument to fail")
	}

	if _, ok := r.Get("absent"); ok {
		t.Fatalf("expected absent prompt to miss")
	}
}
