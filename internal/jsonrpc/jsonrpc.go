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

// Package jsonrpc implements the bytes<->envelope codec for the JSON-RPC
// 2.0 messages MCP rides on: requests, responses, errors, and
// notifications.
package jsonrpc

import (
	"encoding/json"
	"fmt"
)

// Version is the JSON-RPC version string every envelope carries.
const Version = "2.0"

// Standard JSON-RPC error codes, plus the MCP-specific extensions this
// runtime uses.
const (
	CodeParseError       = -32700
	CodeInvalidRequest   = -32600
	CodeMethodNotFound   = -32601
	CodeInvalidParams    = -32602
	CodeInternalError    = -32603
	CodeResourceNotFound = -32002
	CodeRequestCancelled = -32800
)

// ID is a JSON-RPC request id: a string, an integer, or absent (nil).
// It is carried as json.RawMessage so that numeric ids round-trip without
// silent float conversion and string ids round-trip verbatim.
type ID struct {
	raw json.RawMessage
}

// NewID wraps a concrete id value (string, int64, or nil) into an ID.
func NewID(v interface{}) ID {
	if v == nil {
		return ID{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ID{}
	}
	return ID{raw: b}
}

// IsZero reports whether this ID is absent (a notification has no id).
func (id ID) IsZero() bool { return len(id.raw) == 0 }

// Raw returns the undecoded JSON for this id.
func (id ID) Raw() json.RawMessage { return id.raw }

// String renders the id for logging: the quoted JSON form, or "<none>".
func (id ID) String() string {
	if id.IsZero() {
		return "<none>"
	}
	return string(id.raw)
}

// Equal reports whether two ids carry the same JSON value.
func (id ID) Equal(other ID) bool {
	return string(id.raw) == string(other.raw)
}

func (id ID) MarshalJSON() ([]byte, error) {
	if id.IsZero() {
		return []byte("null"), nil
	}
	return id.raw, nil
}

func (id *ID) UnmarshalJSON(b []byte) error {
	id.raw = append([]byte(nil), b...)
	return nil
}

// Error is a JSON-RPC error object.
type Error struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// NewError constructs an *Error for the given code/message/optional data.
func NewError(code int, message string, data interface{}) *Error {
	return &Error{Code: code, Message: message, Data: data}
}

// Request is an inbound or outbound call that expects a response.
type Request struct {
	ID     ID              `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Notification is a one-way message; it has no id and never receives a
// response.
type Notification struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Response carries exactly one of Result or Error, echoing the request's id.
type Response struct {
	ID     ID              `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *Error          `json:"error,omitempty"`
}

// envelope is the wire shape shared by all four message kinds; it is
// used only internally for marshaling/unmarshaling.
type envelope struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *ID             `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Message is the discriminated union decode produces: exactly one of
// Request, Notification, or Response is non-nil.
type Message struct {
	Request      *Request
	Notification *Notification
	Response     *Response
}

// EncodeRequest renders r as a canonical JSON-RPC request object.
func EncodeRequest(r *Request) ([]byte, error) {
	env := envelope{JSONRPC: Version, ID: &r.ID, Method: r.Method, Params: r.Params}
	return json.Marshal(env)
}

// EncodeNotification renders n as a canonical JSON-RPC notification object.
func EncodeNotification(n *Notification) ([]byte, error) {
	env := envelope{JSONRPC: Version, Method: n.Method, Params: n.Params}
	return json.Marshal(env)
}

// EncodeResponse renders r as a canonical JSON-RPC response object,
// carrying exactly one of result or error.
func EncodeResponse(r *Response) ([]byte, error) {
	env := envelope{JSONRPC: Version, ID: &r.ID}
	if r.Error != nil {
		env.Error = r.Error
	} else {
		env.Result = r.Result
		if env.Result == nil {
			env.Result = json.RawMessage("null")
		}
	}
	return json.Marshal(env)
}

// Decode parses b into a discriminated Message, applying the
// discrimination rules in order: method+no-id -> Notification,
// method+id -> Request, id+(result|error) -> Response, else InvalidRequest.
func Decode(b []byte) (*Message, *Error) {
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, NewError(CodeParseError, "parse error: "+err.Error(), nil)
	}
	if env.JSONRPC != Version {
		return nil, NewError(CodeInvalidRequest, "invalid request: missing or wrong jsonrpc version", nil)
	}

	hasID := env.ID != nil && !env.ID.IsZero()
	hasMethod := env.Method != ""
	hasResultOrError := env.Result != nil || env.Error != nil

	switch {
	case hasMethod && !hasID:
		return &Message{Notification: &Notification{Method: env.Method, Params: env.Params}}, nil
	case hasMethod && hasID:
		return &Message{Request: &Request{ID: *env.ID, Method: env.Method, Params: env.Params}}, nil
	case hasID && hasResultOrError:
		return &Message{Response: &Response{ID: *env.ID, Result: env.Result, Error: env.Error}}, nil
	default:
		return nil, NewError(CodeInvalidRequest, "invalid request: could not discriminate message shape", nil)
	}
}
