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
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mcpforge/runtime/internal/jsonrpc"
	"github.com/mcpforge/runtime/internal/mcp"
	"github.com/mcpforge/runtime/internal/policy"
	"github.com/mcpforge/runtime/internal/registry"
	"github.com/mcpforge/runtime/internal/schema"
	"github.com/mcpforge/runtime/internal/session"
	"go.opentelemetry.io/otel/attribute"
)

// builtinMethods returns the method name -> handler table every Dispatcher
// is constructed with.
func builtinMethods() map[string]methodHandler {
	return map[string]methodHandler{
		mcp.MethodInitialize:           handleInitialize,
		mcp.MethodShutdown:             handleShutdown,
		mcp.MethodPing:                 handlePing,
		mcp.MethodToolsList:            handleToolsList,
		mcp.MethodToolsCall:            handleToolsCall,
		mcp.MethodResourcesList:        handleResourcesList,
		mcp.MethodResourcesRead:        handleResourcesRead,
		mcp.MethodResourcesSubscribe:   handleResourcesSubscribe,
		mcp.MethodResourcesUnsubscribe: handleResourcesUnsubscribe,
		mcp.MethodPromptsList:          handlePromptsList,
		mcp.MethodPromptsGet:           handlePromptsGet,
		mcp.MethodLoggingSetLevel:      handleLoggingSetLevel,
		mcp.MethodCancelRequest:        handleCancelRequest,
	}
}

// handleCancelRequest covers peers that issue $/cancelRequest as a request
// rather than a notification; both spellings signal the same token.
func handleCancelRequest(ctx context.Context, d *Dispatcher, sess *session.Session, raw json.RawMessage) (interface{}, *jsonrpc.Error) {
	var params mcp.CancelParams
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}
	if sess.CancelOutstanding(jsonrpc.NewID(params.ID).String()) {
		d.Instrumentation.CancellationCount.Add(ctx, 1)
	}
	return struct{}{}, nil
}

func decodeParams(raw json.RawMessage, v interface{}) *jsonrpc.Error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return jsonrpc.NewError(jsonrpc.CodeInvalidParams, "invalid params: "+err.Error(), nil)
	}
	return nil
}

func handleInitialize(ctx context.Context, d *Dispatcher, sess *session.Session, raw json.RawMessage) (interface{}, *jsonrpc.Error) {
	var params mcp.InitializeParams
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}

	version := params.ProtocolVersion
	if version == "" || version > mcp.LatestProtocolVersion {
		version = mcp.LatestProtocolVersion
	}

	sess.ProtocolVersion = version
	sess.ClientCaps = params.Capabilities
	sess.PeerInfo = params.ClientInfo

	caps := mcp.ServerCapabilities{
		Tools:   &mcp.ListChanged{ListChanged: true},
		Prompts: &mcp.ListChanged{ListChanged: true},
		Resources: &mcp.ResourcesCapability{
			Subscribe:   true,
			ListChanged: true,
		},
		Logging: map[string]interface{}{},
	}

	return &mcp.InitializeResult{
		ProtocolVersion: version,
		Capabilities:    caps,
		ServerInfo:      d.ServerInfo,
	}, nil
}

func handleShutdown(ctx context.Context, d *Dispatcher, sess *session.Session, raw json.RawMessage) (interface{}, *jsonrpc.Error) {
	if err := sess.SetState(session.ShuttingDown); err != nil {
		return nil, jsonrpc.NewError(jsonrpc.CodeInternalError, err.Error(), nil)
	}
	return struct{}{}, nil
}

func handlePing(ctx context.Context, d *Dispatcher, sess *session.Session, raw json.RawMessage) (interface{}, *jsonrpc.Error) {
	return struct{}{}, nil
}

func handleLoggingSetLevel(ctx context.Context, d *Dispatcher, sess *session.Session, raw json.RawMessage) (interface{}, *jsonrpc.Error) {
	var params mcp.SetLevelParams
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}
	if _, err := logLevelValid(params.Level); err != nil {
		return nil, jsonrpc.NewError(jsonrpc.CodeInvalidParams, err.Error(), nil)
	}
	// Session-scoped: only this session's notifications/message traffic is
	// affected.
	sess.SetLogLevel(params.Level)
	return struct{}{}, nil
}

func logLevelValid(level string) (string, error) {
	switch level {
	case "debug", "info", "notice", "warning", "error", "critical", "alert", "emergency":
		return level, nil
	default:
		return "", fmt.Errorf("invalid log level: %s", level)
	}
}

func handleToolsList(ctx context.Context, d *Dispatcher, sess *session.Session, raw json.RawMessage) (interface{}, *jsonrpc.Error) {
	return &mcp.ListToolsResult{Tools: d.Tools.List()}, nil
}

func handleToolsCall(ctx context.Context, d *Dispatcher, sess *session.Session, raw json.RawMessage) (interface{}, *jsonrpc.Error) {
	var params mcp.CallToolParams
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}

	_, span := d.Instrumentation.Tracer.Start(ctx, "mcp.tools.call")
	span.SetAttributes(attribute.String("mcp.tool.name", params.Name))
	defer span.End()

	tool, ok := d.Tools.Get(params.Name)
	if !ok {
		return nil, jsonrpc.NewError(jsonrpc.CodeInvalidParams, "unknown tool: "+params.Name, nil)
	}

	if verr := schema.Validate(tool.Schema, params.Arguments); verr != nil {
		return nil, jsonrpc.NewError(jsonrpc.CodeInvalidParams, "invalid arguments: "+verr.Error(), map[string]string{"path": verr.Path})
	}

	identity := policy.SessionIdentity{
		SessionID:     sess.ID,
		ClientName:    sess.PeerInfo.Name,
		GrantedScopes: sess.GrantedScopes,
	}
	decision := d.Policy.Evaluate(ctx, params.Name, tool.RequiredScopes, identity, params.Arguments)
	if d.Audit != nil {
		d.Audit.Record(policy.AuditRecord{
			Timestamp: time.Now(),
			SessionID: sess.ID,
			Tool:      params.Name,
			Decision:  decision.Verdict,
			Reason:    decision.Reason,
		})
	}
	if decision.Verdict != policy.Allow {
		d.Instrumentation.PolicyDenyCount.Add(ctx, 1)
		reason := decision.Reason
		if reason == "" {
			reason = "tool invocation denied by policy"
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{mcp.TextContent(reason)},
			IsError: true,
		}, nil
	}

	var progressToken interface{}
	if params.Meta != nil {
		progressToken = params.Meta.ProgressToken
	}
	sink := sess.NewProgressSink(progressToken)
	defer sess.CloseProgressSink(progressToken)

	ictx := &registry.InvocationContext{Context: ctx, SessionID: sess.ID, Progress: sink}
	result, err := tool.Handler(ictx, params.Arguments)
	if err != nil {
		if ctx.Err() != nil {
			return nil, jsonrpc.NewError(jsonrpc.CodeRequestCancelled, "request cancelled", nil)
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{mcp.TextContent(err.Error())},
			IsError: true,
		}, nil
	}
	if result == nil {
		result = &mcp.CallToolResult{}
	}
	return result, nil
}

func handleResourcesList(ctx context.Context, d *Dispatcher, sess *session.Session, raw json.RawMessage) (interface{}, *jsonrpc.Error) {
	resources, err := d.Resources.List(ctx)
	if err != nil {
		return nil, jsonrpc.NewError(jsonrpc.CodeInternalError, err.Error(), nil)
	}
	return &mcp.ListResourcesResult{Resources: resources}, nil
}

func handleResourcesRead(ctx context.Context, d *Dispatcher, sess *session.Session, raw json.RawMessage) (interface{}, *jsonrpc.Error) {
	var params mcp.ReadResourceParams
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}
	contents, err := d.Resources.Read(ctx, params.URI)
	if err != nil {
		if _, ok := err.(*registry.ErrResourceNotFound); ok {
			return nil, jsonrpc.NewError(jsonrpc.CodeResourceNotFound, err.Error(), nil)
		}
		return nil, jsonrpc.NewError(jsonrpc.CodeInternalError, err.Error(), nil)
	}
	return &mcp.ReadResourceResult{Contents: contents}, nil
}

func handleResourcesSubscribe(ctx context.Context, d *Dispatcher, sess *session.Session, raw json.RawMessage) (interface{}, *jsonrpc.Error) {
	var params mcp.SubscribeParams
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}
	sess.Subscribe(params.URI)
	return struct{}{}, nil
}

func handleResourcesUnsubscribe(ctx context.Context, d *Dispatcher, sess *session.Session, raw json.RawMessage) (interface{}, *jsonrpc.Error) {
	var params mcp.SubscribeParams
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}
	sess.Unsubscribe(params.URI)
	return struct{}{}, nil
}

func handlePromptsList(ctx context.Context, d *Dispatcher, sess *session.Session, raw json.RawMessage) (interface{}, *jsonrpc.Error) {
	return &mcp.ListPromptsResult{Prompts: d.Prompts.List()}, nil
}

func handlePromptsGet(ctx context.Context, d *Dispatcher, sess *session.Session, raw json.RawMessage) (interface{}, *jsonrpc.Error) {
	var params mcp.GetPromptParams
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}
	render, ok := d.Prompts.Get(params.Name)
	if !ok {
		return nil, jsonrpc.NewError(jsonrpc.CodeInvalidParams, "unknown prompt: "+params.Name, nil)
	}
	result, err := render(ctx, params.Arguments)
	if err != nil {
		if missing, ok := err.(*registry.ErrMissingPromptArgument); ok {
			return nil, jsonrpc.NewError(jsonrpc.CodeInvalidParams, missing.Error(), map[string]string{"argument": missing.Name})
		}
		return nil, jsonrpc.NewError(jsonrpc.CodeInternalError, err.Error(), nil)
	}
	return result, nil
}
