// Copyright 2024 Google LLC
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

package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
)

// ValueTextHandler is a minimal slog.Handler that writes one line per
// record: a timestamp, the level, the quoted message, and any attributes
// as space-separated key=value pairs. It intentionally doesn't try to
// match slog's own text handler output; the runtime's stdio transport
// needs a format a human can scan quickly on a terminal, not a format
// tuned for machine parsing.
type ValueTextHandler struct {
	mu     *sync.Mutex
	out    io.Writer
	opts   slog.HandlerOptions
	attrs  []slog.Attr
	groups []string
}

var _ slog.Handler = (*ValueTextHandler)(nil)

// NewValueTextHandler returns a ValueTextHandler writing to w, honoring
// opts.Level for level filtering. A nil opts is equivalent to &slog.HandlerOptions{}.
func NewValueTextHandler(w io.Writer, opts *slog.HandlerOptions) *ValueTextHandler {
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}
	return &ValueTextHandler{
		mu:   &sync.Mutex{},
		out:  w,
		opts: *opts,
	}
}

func (h *ValueTextHandler) Enabled(_ context.Context, level slog.Level) bool {
	minLevel := slog.LevelInfo
	if h.opts.Level != nil {
		minLevel = h.opts.Level.Level()
	}
	return level >= minLevel
}

func (h *ValueTextHandler) Handle(_ context.Context, r slog.Record) error {
	var sb strings.Builder
	sb.WriteString(r.Time.Format("2006-01-02T15:04:05.000Z07:00"))
	sb.WriteString(" ")
	sb.WriteString(r.Level.String())
	sb.WriteString(" ")
	fmt.Fprintf(&sb, "%q", r.Message)
	sb.WriteString(" ")

	var parts []string
	for _, a := range h.attrs {
		parts = append(parts, formatAttr(h.groups, a))
	}
	r.Attrs(func(a slog.Attr) bool {
		parts = append(parts, formatAttr(h.groups, a))
		return true
	})
	sb.WriteString(strings.Join(parts, " "))
	sb.WriteString("\n")

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.out, sb.String())
	return err
}

func formatAttr(groups []string, a slog.Attr) string {
	key := a.Key
	if len(groups) > 0 {
		key = strings.Join(groups, ".") + "." + key
	}
	return fmt.Sprintf("%s=%v", key, a.Value.Any())
}

func (h *ValueTextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	nh := &ValueTextHandler{
		mu:     h.mu,
		out:    h.out,
		opts:   h.opts,
		groups: h.groups,
	}
	nh.attrs = append(nh.attrs, h.attrs...)
	nh.attrs = append(nh.attrs, attrs...)
	return nh
}

func (h *ValueTextHandler) WithGroup(name string) slog.Handler {
	nh := &ValueTextHandler{
		mu:    h.mu,
		out:   h.out,
		opts:  h.opts,
		attrs: h.attrs,
	}
	nh.groups = append(nh.groups, h.groups...)
	nh.groups = append(nh.groups, name)
	return nh
}
