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
	"fmt"
	"sync"

	"github.com/mcpforge/runtime/internal/mcp"
)

// ErrMissingPromptArgument is returned by a PromptRenderer when a required
// argument is absent; the dispatcher maps it to JSON-RPC code -32602.
type ErrMissingPromptArgument struct{ Name string }

func (e *ErrMissingPromptArgument) Error() string {
	return fmt.Sprintf("missing required prompt argument: %s", e.Name)
}

// PromptRenderer renders one prompt's message list given caller-supplied
// arguments. Implementations validate their own declared-required
// arguments and return *ErrMissingPromptArgument on violation.
type PromptRenderer func(ctx context.Context, args map[string]string) (*mcp.GetPromptResult, error)

// promptEntry pairs a prompt's descriptor with its renderer.
type promptEntry struct {
	descriptor mcp.Prompt
	render     PromptRenderer
}

// PromptRegistry is a name -> renderer map for prompt templates.
type PromptRegistry struct {
	mu      sync.RWMutex
	prompts map[string]*promptEntry
	order   []string
}

// NewPromptRegistry returns an empty PromptRegistry.
func NewPromptRegistry() *PromptRegistry {
	return &PromptRegistry{prompts: make(map[string]*promptEntry)}
}

// Register inserts a prompt by its descriptor's name. Duplicate names fail
// registration, mirroring ToolRegistry.Register.
func (r *PromptRegistry) Register(descriptor mcp.Prompt, render PromptRenderer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.prompts[descriptor.Name]; exists {
		return fmt.Errorf("prompt %q already registered", descriptor.Name)
	}
	r.prompts[descriptor.Name] = &promptEntry{descriptor: descriptor, render: render}
	r.order = append(r.order, descriptor.Name)
	return nil
}

// List returns every registered prompt's descriptor in insertion order.
func (r *PromptRegistry) List() []mcp.Prompt {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]mcp.Prompt, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.prompts[name].descriptor)
	}
	return out
}

// Get looks up a prompt's renderer by name.
func (r *PromptRegistry) Get(name string) (PromptRenderer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.prompts[name]
	if !ok {
		return nil, false
	}
	return e.render, true
}
