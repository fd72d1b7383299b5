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

// Package mcp defines the Model Context Protocol's own vocabulary: the
// method names, capability/content/result shapes, and protocol version
// constants layered on top of the generic internal/jsonrpc envelope.
package mcp

// LatestProtocolVersion is the protocol version this runtime negotiates by
// default.
const LatestProtocolVersion = "2024-11-05"

// ServerName is the implementation name this runtime reports in its
// InitializeResult.
const ServerName = "mcpforge"

// Method names, grouped as the wire protocol groups them.
const (
	MethodInitialize = "initialize"
	MethodShutdown   = "shutdown"
	MethodPing       = "ping"

	MethodToolsList = "tools/list"
	MethodToolsCall = "tools/call"

	MethodResourcesList        = "resources/list"
	MethodResourcesRead        = "resources/read"
	MethodResourcesSubscribe   = "resources/subscribe"
	MethodResourcesUnsubscribe = "resources/unsubscribe"

	MethodPromptsList = "prompts/list"
	MethodPromptsGet  = "prompts/get"

	MethodLoggingSetLevel = "logging/setLevel"

	MethodCancelRequest = "$/cancelRequest"

	NotificationInitialized          = "notifications/initialized"
	NotificationExit                 = "exit"
	NotificationProgress             = "notifications/progress"
	NotificationToolsListChanged     = "notifications/tools/list_changed"
	NotificationResourcesUpdated     = "notifications/resources/updated"
	NotificationResourcesListChanged = "notifications/resources/list_changed"
	NotificationPromptsListChanged   = "notifications/prompts/list_changed"
	NotificationMessage              = "notifications/message"
)
