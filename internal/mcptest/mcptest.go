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

// Package mcptest collects test-only collaborators shared across this
// module's package test suites: a trivial echo tool, an in-memory
// resource/prompt provider, and a channel-backed transport pair.
package mcptest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/mcpforge/runtime/internal/mcp"
	"github.com/mcpforge/runtime/internal/registry"
	"github.com/mcpforge/runtime/internal/schema"
	"github.com/mcpforge/runtime/internal/transport"
)

var (
	_ registry.ResourceProvider = (*MemoryResources)(nil)
	_ transport.Transport       = (*PipeTransport)(nil)
)

// PipeTransport is an in-memory transport.Transport half, connected to its
// peer by a pair of buffered channels. It lets dispatcher and client tests
// run full sessions without sockets or pipes.
type PipeTransport struct {
	in  <-chan []byte
	out chan<- []byte

	localDone chan struct{}
	peerDone  chan struct{}
	closeOnce sync.Once
}

// Pipe returns two connected transport halves. Envelopes Sent on one are
// Recv'd on the other, in order. Closing either side surfaces EndOfStream
// on the peer once the buffer drains.
func Pipe() (*PipeTransport, *PipeTransport) {
	ab := make(chan []byte, 64)
	ba := make(chan []byte, 64)
	aDone := make(chan struct{})
	bDone := make(chan struct{})
	a := &PipeTransport{in: ba, out: ab, localDone: aDone, peerDone: bDone}
	b := &PipeTransport{in: ab, out: ba, localDone: bDone, peerDone: aDone}
	return a, b
}

// Send implements transport.Transport.
func (t *PipeTransport) Send(ctx context.Context, envelope []byte) error {
	select {
	case <-t.localDone:
		return &transport.Error{Op: "send", Err: errors.New("transport closed")}
	case <-t.peerDone:
		return &transport.Error{Op: "send", Err: errors.New("peer closed")}
	default:
	}
	select {
	case t.out <- append([]byte(nil), envelope...):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Recv implements transport.Transport. Buffered envelopes are still
// delivered after the peer closes; EndOfStream follows once drained.
func (t *PipeTransport) Recv(ctx context.Context) ([]byte, error) {
	select {
	case b := <-t.in:
		return b, nil
	default:
	}
	select {
	case b := <-t.in:
		return b, nil
	case <-t.localDone:
		return nil, transport.ErrEndOfStream
	case <-t.peerDone:
		select {
		case b := <-t.in:
			return b, nil
		default:
		}
		return nil, transport.ErrEndOfStream
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close implements transport.Transport. Idempotent.
func (t *PipeTransport) Close() error {
	t.closeOnce.Do(func() { close(t.localDone) })
	return nil
}

// EchoTool builds a registry.Tool that returns its "message" argument verbatim,
// optionally reporting progress in fixed steps first. It is the default
// fixture most dispatcher/session tests register.
func EchoTool() *registry.Tool {
	toolSchema := &schema.Schema{
		Type: schema.TypeObject,
		Properties: map[string]*schema.Property{
			"message": {Type: schema.TypeString},
			"steps":   {Type: schema.TypeInteger},
		},
		Required: []string{"message"},
	}
	rawSchema, _ := json.Marshal(toolSchema)
	return &registry.Tool{
		Descriptor: mcp.ToolDescriptor{
			Name:        "echo",
			Description: "Echoes the message argument back as text content.",
			InputSchema: rawSchema,
		},
		Schema: toolSchema,
		Handler: func(ictx *registry.InvocationContext, args map[string]interface{}) (*mcp.CallToolResult, error) {
			message, _ := args["message"].(string)
			if steps, ok := args["steps"].(float64); ok && steps > 0 && ictx.Progress != nil {
				total := steps
				for i := 1.0; i <= steps; i++ {
					if err := ictx.Err(); err != nil {
						return nil, err
					}
					ictx.Progress.Publish(i, &total)
				}
			}
			return &mcp.CallToolResult{
				Content: []mcp.Content{mcp.TextContent(message)},
			}, nil
		},
	}
}

// FailingTool builds a registry.Tool whose handler always returns err, for
// exercising the dispatcher's error-to-CallToolResult translation.
func FailingTool(name string, err error) *registry.Tool {
	return &registry.Tool{
		Descriptor: mcp.ToolDescriptor{Name: name, Description: "always fails"},
		Schema:     &schema.Schema{Type: schema.TypeObject},
		Handler: func(*registry.InvocationContext, map[string]interface{}) (*mcp.CallToolResult, error) {
			return nil, err
		},
	}
}

// MemoryResources is an in-memory registry.ResourceProvider backing tests
// that need to exercise resources/list, resources/read, and
// resources/subscribe without a real backend.
type MemoryResources struct {
	prefix string

	mu    sync.Mutex
	items map[string]mcp.ResourceContents
	order []string
}

// NewMemoryResources builds a MemoryResources serving URIs under prefix.
func NewMemoryResources(prefix string) *MemoryResources {
	return &MemoryResources{prefix: prefix, items: make(map[string]mcp.ResourceContents)}
}

// Put registers or replaces a resource's contents.
func (m *MemoryResources) Put(uri, mimeType, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.items[uri]; !exists {
		m.order = append(m.order, uri)
	}
	m.items[uri] = mcp.ResourceContents{URI: uri, MimeType: mimeType, Text: text}
}

// Prefix implements registry.ResourceProvider.
func (m *MemoryResources) Prefix() string { return m.prefix }

// List implements registry.ResourceProvider.
func (m *MemoryResources) List(ctx context.Context) ([]mcp.Resource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]mcp.Resource, 0, len(m.order))
	for _, uri := range m.order {
		c := m.items[uri]
		out = append(out, mcp.Resource{URI: c.URI, MimeType: c.MimeType})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].URI < out[j].URI })
	return out, nil
}

// Read implements registry.ResourceProvider.
func (m *MemoryResources) Read(ctx context.Context, uri string) ([]mcp.ResourceContents, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.items[uri]
	if !ok {
		return nil, &registry.ErrResourceNotFound{URI: uri}
	}
	return []mcp.ResourceContents{c}, nil
}

// MemoryPrompts provides a single fixed prompt rendered by substituting its
// sole "name" argument into a template, for registry.PromptRegistry tests.
func MemoryPrompts() (mcp.Prompt, registry.PromptRenderer) {
	descriptor := mcp.Prompt{
		Name:        "greeting",
		Description: "Produces a friendly greeting for the given name.",
		Arguments: []mcp.PromptArgument{
			{Name: "name", Required: true},
		},
	}
	render := func(ctx context.Context, args map[string]string) (*mcp.GetPromptResult, error) {
		name, ok := args["name"]
		if !ok || name == "" {
			return nil, &registry.ErrMissingPromptArgument{Name: "name"}
		}
		return &mcp.GetPromptResult{
			Messages: []mcp.PromptMessage{
				{Role: mcp.RoleAssistant, Content: mcp.TextContent(fmt.Sprintf("Hello, %s!", name))},
			},
		}, nil
	}
	return descriptor, render
}
