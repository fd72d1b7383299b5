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

package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

func invokeCommand(args []string) (*Command, string, error) {
	c := NewCommand()

	// Capture output and disable execute behavior.
	buf := new(bytes.Buffer)
	c.SetOut(buf)
	c.SetErr(buf)
	c.SetArgs(args)
	c.RunE = func(*cobra.Command, []string) error { return nil }

	err := c.Execute()
	return c, buf.String(), err
}

func TestVersion(t *testing.T) {
	_, got, err := invokeCommand([]string{"--version"})
	if err != nil {
		t.Fatalf("error invoking command: %s", err)
	}
	if !strings.Contains(got, versionString) {
		t.Errorf("cli did not return correct version: got %q, want %q", got, versionString)
	}
}

func TestServerFlags(t *testing.T) {
	testCases := []struct {
		name string
		args []string
		want Command
	}{
		{
			name: "default flags",
			args: []string{},
			want: Command{address: "127.0.0.1", port: 8090, stdio: false, logLevel: "INFO", logFormat: "standard"},
		},
		{
			name: "address short",
			args: []string{"-a", "0.0.0.0"},
			want: Command{address: "0.0.0.0", port: 8090, logLevel: "INFO", logFormat: "standard"},
		},
		{
			name: "port long",
			args: []string{"--port", "9000"},
			want: Command{address: "127.0.0.1", port: 9000, logLevel: "INFO", logFormat: "standard"},
		},
		{
			name: "stdio mode",
			args: []string{"--stdio"},
			want: Command{address: "127.0.0.1", port: 8090, stdio: true, logLevel: "INFO", logFormat: "standard"},
		},
		{
			name: "log level and format",
			args: []string{"--log-level", "DEBUG", "--log-format", "json"},
			want: Command{address: "127.0.0.1", port: 8090, logLevel: "DEBUG", logFormat: "json"},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, _, err := invokeCommand(tc.args)
			if err != nil {
				t.Fatalf("unexpected error invoking command: %s", err)
			}
			if got.address != tc.want.address || got.port != tc.want.port || got.stdio != tc.want.stdio || got.logLevel != tc.want.logLevel || got.logFormat != tc.want.logFormat {
				t.Errorf("unexpected flags: got %+v", got)
			}
		})
	}
}

func TestFailUnknownFlag(t *testing.T) {
	_, _, err := invokeCommand([]string{"--tools-file", "config.yaml"})
	if err == nil {
		t.Fatalf("expected an unknown flag to fail")
	}
}
