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
	"sort"
	"strings"
	"sync"

	"github.com/mcpforge/runtime/internal/mcp"
	"github.com/mcpforge/runtime/internal/util"
)

// ResourceProvider serves one or more URI-addressed resources under a
// prefix it owns (e.g. "mem://", "file://").
type ResourceProvider interface {
	// Prefix reports the URI prefix this provider answers for.
	Prefix() string
	// List returns every resource this provider currently exposes.
	List(ctx context.Context) ([]mcp.Resource, error)
	// Read returns the contents of uri, which Prefix has already matched.
	Read(ctx context.Context, uri string) ([]mcp.ResourceContents, error)
}

// ErrResourceNotFound is returned by ResourceRegistry.Read when no provider
// claims the requested URI; the dispatcher maps it to JSON-RPC code -32002.
type ErrResourceNotFound struct{ URI string }

func (e *ErrResourceNotFound) Error() string { return "resource not found: " + e.URI }

// ResourceRegistry fans a resources/list or resources/read request out to
// every registered ResourceProvider; duplicate URIs resolve
// first-registered-wins.
type ResourceRegistry struct {
	mu        sync.RWMutex
	providers []ResourceProvider
}

// NewResourceRegistry returns an empty ResourceRegistry.
func NewResourceRegistry() *ResourceRegistry {
	return &ResourceRegistry{}
}

// Register adds a provider. Providers are matched in registration order,
// so the first one whose Prefix matches a URI wins.
func (r *ResourceRegistry) Register(p ResourceProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers = append(r.providers, p)
}

// List concatenates every provider's resources. Duplicate URIs across
// providers are resolved first-registered-wins; the collision is logged if
// a logger is present on ctx.
func (r *ResourceRegistry) List(ctx context.Context) ([]mcp.Resource, error) {
	r.mu.RLock()
	providers := append([]ResourceProvider(nil), r.providers...)
	r.mu.RUnlock()

	seen := make(map[string]bool)
	var out []mcp.Resource
	for _, p := range providers {
		resources, err := p.List(ctx)
		if err != nil {
			return nil, err
		}
		for _, res := range resources {
			if seen[res.URI] {
				if logger, lerr := util.LoggerFromContext(ctx); lerr == nil {
					logger.WarnContext(ctx, "duplicate resource uri, first registration wins", "uri", res.URI)
				}
				continue
			}
			seen[res.URI] = true
			out = append(out, res)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].URI < out[j].URI })
	return out, nil
}

// Read dispatches to the first provider whose prefix matches uri.
func (r *ResourceRegistry) Read(ctx context.Context, uri string) ([]mcp.ResourceContents, error) {
	r.mu.RLock()
	providers := append([]ResourceProvider(nil), r.providers...)
	r.mu.RUnlock()

	for _, p := range providers {
		if strings.HasPrefix(uri, p.Prefix()) {
			return p.Read(ctx, uri)
		}
	}
	return nil, &ErrResourceNotFound{URI: uri}
}
