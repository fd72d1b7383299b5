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

// Package schema validates tool arguments against the JSON-Schema subset
// a tool descriptor declares: type "object" with named properties, a
// required list, and an optional additionalProperties flag.
package schema

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Type is one of the JSON-Schema primitive type names this subset
// supports.
type Type string

const (
	TypeObject  Type = "object"
	TypeArray   Type = "array"
	TypeString  Type = "string"
	TypeInteger Type = "integer"
	TypeNumber  Type = "number"
	TypeBoolean Type = "boolean"
)

// Property is one property's schema: its type, and, recursively, the
// schema of its items (for arrays) or its own properties (for objects).
type Property struct {
	Type        Type                 `json:"type"`
	Description string               `json:"description,omitempty"`
	Items       *Property            `json:"items,omitempty"`
	Properties  map[string]*Property `json:"properties,omitempty"`
	Required    []string             `json:"required,omitempty"`
	Enum        []string             `json:"enum,omitempty"`
}

// Schema is a tool's input schema: required type "object", a named
// property map, a required list, and whether unknown properties are
// tolerated.
type Schema struct {
	Type                 Type                 `json:"type"`
	Properties           map[string]*Property `json:"properties"`
	Required             []string             `json:"required,omitempty"`
	AdditionalProperties bool                 `json:"additionalProperties"`
}

// ValidationError reports the property path that failed validation, so a
// caller can point the peer at the offending property.
type ValidationError struct {
	Path    string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// Validate checks args against s, returning a *ValidationError on the
// first violation found: a missing required property, an unknown
// property when additionalProperties is false, or a type mismatch.
func Validate(s *Schema, args map[string]interface{}) *ValidationError {
	if s == nil {
		return nil
	}
	for _, name := range s.Required {
		if _, ok := args[name]; !ok {
			return &ValidationError{Path: name, Message: "missing required property"}
		}
	}
	for name, v := range args {
		prop, ok := s.Properties[name]
		if !ok {
			if !s.AdditionalProperties {
				return &ValidationError{Path: name, Message: "unknown property"}
			}
			continue
		}
		if err := validateValue(name, prop, v); err != nil {
			return err
		}
	}
	return nil
}

func validateValue(path string, p *Property, v interface{}) *ValidationError {
	if v == nil {
		return nil
	}
	switch p.Type {
	case TypeString:
		if _, ok := v.(string); !ok {
			return &ValidationError{Path: path, Message: "expected a string"}
		}
		if len(p.Enum) > 0 {
			s := v.(string)
			found := false
			for _, e := range p.Enum {
				if e == s {
					found = true
					break
				}
			}
			if !found {
				return &ValidationError{Path: path, Message: fmt.Sprintf("must be one of: %s", strings.Join(p.Enum, ", "))}
			}
		}
	case TypeInteger:
		if !isNumber(v) {
			return &ValidationError{Path: path, Message: "expected an integer"}
		}
	case TypeNumber:
		if !isNumber(v) {
			return &ValidationError{Path: path, Message: "expected a number"}
		}
	case TypeBoolean:
		if _, ok := v.(bool); !ok {
			return &ValidationError{Path: path, Message: "expected a boolean"}
		}
	case TypeArray:
		arr, ok := v.([]interface{})
		if !ok {
			return &ValidationError{Path: path, Message: "expected an array"}
		}
		if p.Items != nil {
			for i, item := range arr {
				if err := validateValue(fmt.Sprintf("%s[%d]", path, i), p.Items, item); err != nil {
					return err
				}
			}
		}
	case TypeObject:
		obj, ok := v.(map[string]interface{})
		if !ok {
			return &ValidationError{Path: path, Message: "expected an object"}
		}
		for _, req := range p.Required {
			if _, ok := obj[req]; !ok {
				return &ValidationError{Path: path + "." + req, Message: "missing required property"}
			}
		}
		for key, val := range obj {
			sub, ok := p.Properties[key]
			if !ok {
				continue
			}
			if err := validateValue(path+"."+key, sub, val); err != nil {
				return err
			}
		}
	}
	return nil
}

// isNumber reports whether v decoded from JSON represents a number:
// json.Number, float64 (untyped decode), or a Go numeric literal built
// by hand in tests.
func isNumber(v interface{}) bool {
	switch v.(type) {
	case float64, float32, int, int32, int64, uint, uint32, uint64, json.Number:
		return true
	}
	return false
}
