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

package schema

import "testing"

func echoSchema() *Schema {
	return &Schema{
		Type: TypeObject,
		Properties: map[string]*Property{
			"message": {Type: TypeString, Description: "text to echo"},
		},
		Required: []string{"message"},
	}
}

func TestValidate(t *testing.T) {
	tcs := []struct {
		name     string
		schema   *Schema
		args     map[string]interface{}
		wantPath string
		wantOK   bool
	}{
		{
			name:   "valid args",
			schema: echoSchema(),
			args:   map[string]interface{}{"message": "hi"},
			wantOK: true,
		},
		{
			name:     "missing required property",
			schema:   echoSchema(),
			args:     map[string]interface{}{},
			wantPath: "message",
		},
		{
			name:     "wrong type",
			schema:   echoSchema(),
			args:     map[string]interface{}{"message": 5},
			wantPath: "message",
		},
		{
			name:   "unknown property rejected when additionalProperties is false",
			schema: echoSchema(),
			args:   map[string]interface{}{"message": "hi", "extra": "nope"},
			wantPath: "extra",
		},
		{
			name: "unknown property tolerated when additionalProperties is true",
			schema: &Schema{
				Type:                 TypeObject,
				Properties:           map[string]*Property{},
				AdditionalProperties: true,
			},
			args:   map[string]interface{}{"anything": "goes"},
			wantOK: true,
		},
		{
			name: "array items validated element-wise",
			schema: &Schema{
				Type: TypeObject,
				Properties: map[string]*Property{
					"names": {Type: TypeArray, Items: &Property{Type: TypeString}},
				},
				Required: []string{"names"},
			},
			args:     map[string]interface{}{"names": []interface{}{"a", 5}},
			wantPath: "names[1]",
		},
	}
	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(tc.schema, tc.args)
			if tc.wantOK {
				if err != nil {
					t.Fatalf("unexpected validation error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected a validation error, got none")
			}
			if err.Path != tc.wantPath {
				t.Fatalf("incorrect offending path: got %q, want %q", err.Path, tc.wantPath)
			}
		})
	}
}
