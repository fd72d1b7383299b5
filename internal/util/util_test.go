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

package util

import (
	"context"
	"io"
	"testing"

	"github.com/mcpforge/runtime/internal/log"
)

func TestLoggerContextRoundTrip(t *testing.T) {
	logger, err := log.NewStdLogger(io.Discard, io.Discard, log.Info)
	if err != nil {
		t.Fatalf("unexpected error creating logger: %s", err)
	}

	ctx := WithLogger(context.Background(), logger)
	got, err := LoggerFromContext(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if got != logger {
		t.Errorf("retrieved logger is not the one stored")
	}

	if _, err := LoggerFromContext(context.Background()); err == nil {
		t.Errorf("expected an error for a context with no logger")
	}
}

func TestClientInfoContextRoundTrip(t *testing.T) {
	info := ClientInfo{Name: "t", Version: "1"}
	ctx := WithClientInfo(context.Background(), info)
	got, err := ClientInfoFromContext(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if got != info {
		t.Errorf("retrieved client info %+v does not match stored %+v", got, info)
	}

	if _, err := ClientInfoFromContext(context.Background()); err == nil {
		t.Errorf("expected an error for a context with no client info")
	}
}
