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

package dispatcher

import (
	"github.com/mcpforge/runtime/internal/mcp"
	"github.com/mcpforge/runtime/internal/session"
)

// Track adds sess to the set of live sessions server-initiated
// notifications fan out over. Serve tracks its own session; transports that
// manage sessions themselves (the HTTP+SSE handler) call this directly.
func (d *Dispatcher) Track(sess *session.Session) {
	d.sessMu.Lock()
	d.sessions[sess] = struct{}{}
	d.sessMu.Unlock()
}

// Untrack removes sess from the live set. Idempotent.
func (d *Dispatcher) Untrack(sess *session.Session) {
	d.sessMu.Lock()
	delete(d.sessions, sess)
	d.sessMu.Unlock()
}

// live snapshots the tracked sessions so no lock is held while enqueuing.
func (d *Dispatcher) live() []*session.Session {
	d.sessMu.Lock()
	defer d.sessMu.Unlock()
	out := make([]*session.Session, 0, len(d.sessions))
	for s := range d.sessions {
		out = append(out, s)
	}
	return out
}

// NotifyResourceUpdated delivers notifications/resources/updated for uri to
// every Ready session subscribed to it. Delivery is best-effort at-most-once
// per change; a session whose outbound queue is full drops the update.
func (d *Dispatcher) NotifyResourceUpdated(uri string) {
	params := mcp.ResourceUpdatedParams{URI: uri}
	for _, s := range d.live() {
		if s.State() != session.Ready || !s.Subscribed(uri) {
			continue
		}
		if !s.Notify(mcp.NotificationResourcesUpdated, params) {
			d.Logger.Warn("resource update notification dropped", "session", s.ID, "uri", uri)
		}
	}
}

// NotifyToolsListChanged broadcasts notifications/tools/list_changed to
// every Ready session, for embedders that mutate the tool registry after
// start.
func (d *Dispatcher) NotifyToolsListChanged() {
	d.broadcast(mcp.NotificationToolsListChanged)
}

// NotifyResourcesListChanged broadcasts notifications/resources/list_changed.
func (d *Dispatcher) NotifyResourcesListChanged() {
	d.broadcast(mcp.NotificationResourcesListChanged)
}

// NotifyPromptsListChanged broadcasts notifications/prompts/list_changed.
func (d *Dispatcher) NotifyPromptsListChanged() {
	d.broadcast(mcp.NotificationPromptsListChanged)
}

func (d *Dispatcher) broadcast(method string) {
	for _, s := range d.live() {
		if s.State() != session.Ready {
			continue
		}
		if !s.Notify(method, nil) {
			d.Logger.Warn("notification dropped", "session", s.ID, "method", method)
		}
	}
}
