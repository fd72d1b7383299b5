// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package util

import (
	"context"
	"fmt"

	"github.com/mcpforge/runtime/internal/log"
)

type contextKey string

// clientInfoKey is the key used to store the peer's initialize-time
// Implementation info (name/version) within context.
const clientInfoKey contextKey = "clientInfo"

// ClientInfo is the identifying information a peer sends in its
// initialize request, carried on the session's context for the rest
// of the session's lifetime.
type ClientInfo struct {
	Name    string
	Version string
}

// WithClientInfo adds the peer's client info into the context as a value.
func WithClientInfo(ctx context.Context, info ClientInfo) context.Context {
	return context.WithValue(ctx, clientInfoKey, info)
}

// ClientInfoFromContext retrieves the peer's client info or returns an error.
func ClientInfoFromContext(ctx context.Context) (ClientInfo, error) {
	if ci, ok := ctx.Value(clientInfoKey).(ClientInfo); ok {
		return ci, nil
	}
	return ClientInfo{}, fmt.Errorf("unable to retrieve client info")
}

// loggerKey is the key used to store logger within context
const loggerKey contextKey = "logger"

// WithLogger adds a logger into the context as a value
func WithLogger(ctx context.Context, logger log.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// LoggerFromContext retreives the logger or return an error
func LoggerFromContext(ctx context.Context) (log.Logger, error) {
	if logger, ok := ctx.Value(loggerKey).(log.Logger); ok {
		return logger, nil
	}
	return nil, fmt.Errorf("unable to retrieve logger")
}
