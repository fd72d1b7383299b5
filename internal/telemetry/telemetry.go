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

// Package telemetry wires the runtime's OpenTelemetry instrumentation: the
// tracer the dispatcher opens one span per inbound request and per tool
// invocation on, plus counters for requests, cancellations, and policy
// denials.
package telemetry

import (
	"context"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Instrumentation bundles the tracer and counters every dispatcher/session
// code path records against. A zero-value-safe NoOp is available via New
// with a nil io.Writer for embedders that don't want trace/metric export.
type Instrumentation struct {
	Tracer trace.Tracer
	Meter  metric.Meter

	RequestCount      metric.Int64Counter
	CancellationCount metric.Int64Counter
	PolicyDenyCount   metric.Int64Counter

	tp *sdktrace.TracerProvider
	mp *sdkmetric.MeterProvider
}

// New constructs an Instrumentation. When traceOut/metricOut are nil, spans
// and metrics are still created (so call sites never nil-check) but are
// exported nowhere; otherwise each is rendered as indented JSON to the
// given writer for local/dev runs.
func New(traceOut, metricOut io.Writer) (*Instrumentation, error) {
	var tpOpts []sdktrace.TracerProviderOption
	if traceOut != nil {
		exp, err := stdouttrace.New(stdouttrace.WithWriter(traceOut), stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, err
		}
		tpOpts = append(tpOpts, sdktrace.WithBatcher(exp))
	}
	tp := sdktrace.NewTracerProvider(tpOpts...)

	var mpOpts []sdkmetric.Option
	if metricOut != nil {
		exp, err := stdoutmetric.New(stdoutmetric.WithWriter(metricOut))
		if err != nil {
			return nil, err
		}
		mpOpts = append(mpOpts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp)))
	}
	mp := sdkmetric.NewMeterProvider(mpOpts...)

	tracer := tp.Tracer("github.com/mcpforge/runtime")
	meter := mp.Meter("github.com/mcpforge/runtime")

	requestCount, err := meter.Int64Counter("mcp.requests", metric.WithDescription("count of dispatched requests by method"))
	if err != nil {
		return nil, err
	}
	cancelCount, err := meter.Int64Counter("mcp.cancellations", metric.WithDescription("count of requests cancelled before completion"))
	if err != nil {
		return nil, err
	}
	denyCount, err := meter.Int64Counter("mcp.policy.denials", metric.WithDescription("count of tool invocations denied by the policy guard"))
	if err != nil {
		return nil, err
	}

	return &Instrumentation{
		Tracer:            tracer,
		Meter:             meter,
		RequestCount:      requestCount,
		CancellationCount: cancelCount,
		PolicyDenyCount:   denyCount,
		tp:                tp,
		mp:                mp,
	}, nil
}

// NoOp returns an Instrumentation that records nothing, for tests and
// embedders that haven't opted into telemetry.
func NoOp() *Instrumentation {
	i, err := New(nil, nil)
	if err != nil {
		// Int64Counter construction on providers with no exporter attached
		// never fails; a panic here would indicate an otel API break.
		panic(err)
	}
	return i
}

// Shutdown flushes and releases the underlying providers. Safe to call on a
// NoOp instrumentation.
func (i *Instrumentation) Shutdown(ctx context.Context) error {
	if err := i.tp.Shutdown(ctx); err != nil {
		return err
	}
	return i.mp.Shutdown(ctx)
}

// SetGlobal installs i's providers as the process-wide otel default, so
// collaborators that call otel.Tracer/otel.Meter directly (rather than
// threading an *Instrumentation through) pick it up too.
func (i *Instrumentation) SetGlobal() {
	otel.SetTracerProvider(i.tp)
	otel.SetMeterProvider(i.mp)
}
