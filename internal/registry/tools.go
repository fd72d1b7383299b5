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

// Package registry holds the tool, resource, and prompt registries the
// dispatcher hosts. Registries are populated by the embedding application
// calling Register directly; there is no config-file layer.
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/mcpforge/runtime/internal/mcp"
	"github.com/mcpforge/runtime/internal/schema"
)

// Progress is the sink a tool handler uses to emit notifications/progress
// updates for its own invocation. Publish is a no-op if the caller supplied
// no progress token.
type Progress interface {
	Publish(progress float64, total *float64)
}

// InvocationContext is the borrowed handle a tool handler receives: access
// to the calling session's progress sink and cancellation signal, and
// nothing of any other session's state. Handlers own nothing persistent.
type InvocationContext struct {
	context.Context

	SessionID string
	Progress  Progress
}

// ToolHandler executes one invocation of a registered tool. Its own error
// outcomes (as opposed to protocol-level invalid-params/not-found) are
// normalized by the caller into CallToolResult{IsError: true}; a handler may
// instead return a result with IsError itself set, in which case the
// dispatcher passes it through verbatim.
type ToolHandler func(ictx *InvocationContext, args map[string]interface{}) (*mcp.CallToolResult, error)

// Tool is one registered tool: its descriptor, schema, required
// authorization scopes, and handler.
type Tool struct {
	Descriptor     mcp.ToolDescriptor
	Schema         *schema.Schema
	RequiredScopes []string
	Handler        ToolHandler
}

// ToolRegistry is a name -> Tool map, safe for concurrent registration and
// lookup. Registration is rare and brief; every lookup path takes the
// read side, and the guard is never held across a blocking call.
type ToolRegistry struct {
	mu    sync.RWMutex
	tools map[string]*Tool
	order []string
}

// NewToolRegistry returns an empty ToolRegistry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{tools: make(map[string]*Tool)}
}

// Register inserts t by its descriptor's name. Duplicate names fail
// registration.
func (r *ToolRegistry) Register(t *Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[t.Descriptor.Name]; exists {
		return fmt.Errorf("tool %q already registered", t.Descriptor.Name)
	}
	r.tools[t.Descriptor.Name] = t
	r.order = append(r.order, t.Descriptor.Name)
	return nil
}

// Deregister removes a tool by name. A no-op if the name was never
// registered.
func (r *ToolRegistry) Deregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[name]; !exists {
		return
	}
	delete(r.tools, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Get looks up a tool by name.
func (r *ToolRegistry) Get(name string) (*Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// List returns every registered tool's descriptor in stable (insertion)
// order, so tools/list is deterministic within a session.
func (r *ToolRegistry) List() []mcp.ToolDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]mcp.ToolDescriptor, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name].Descriptor)
	}
	return out
}

// sortedNames is a test/debug helper returning registered names sorted
// alphabetically, independent of registration order.
func (r *ToolRegistry) sortedNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for n := range r.tools {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
