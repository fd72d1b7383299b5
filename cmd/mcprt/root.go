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

// Command mcprt runs the MCP runtime as a standalone process, wired to a
// stdio, WebSocket, or HTTP+SSE transport depending on flags. The runtime
// starts with only the built-in echo tool registered; embedding
// applications are expected to call this module's packages directly
// rather than configure this binary for production tool sets.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mcpforge/runtime/internal/dispatcher"
	"github.com/mcpforge/runtime/internal/log"
	"github.com/mcpforge/runtime/internal/mcp"
	"github.com/mcpforge/runtime/internal/registry"
	"github.com/mcpforge/runtime/internal/schema"
	"github.com/mcpforge/runtime/internal/telemetry"
	transporthttp "github.com/mcpforge/runtime/internal/transport/http"
	"github.com/mcpforge/runtime/internal/transport/stdio"
	"github.com/mcpforge/runtime/internal/transport/ws"
	"github.com/spf13/cobra"
)

// versionString is the runtime's reported Implementation.Version.
var versionString = "0.1.0+dev"

// Execute adds all child commands to the root command and runs it. It is
// called by main.main and only needs to happen once.
func Execute() {
	if err := NewCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

// Command represents one invocation of the CLI.
type Command struct {
	*cobra.Command

	address   string
	port      int
	stdio     bool
	logLevel  string
	logFormat string

	logger    log.Logger
	inStream  io.Reader
	outStream io.Writer
	errStream io.Writer
}

// NewCommand returns a Command ready to Execute.
func NewCommand(opts ...Option) *Command {
	baseCmd := &cobra.Command{
		Use:           "mcprt",
		Short:         "Run the MCP runtime server",
		Version:       versionString,
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd := &Command{
		Command:   baseCmd,
		inStream:  os.Stdin,
		outStream: os.Stdout,
		errStream: os.Stderr,
	}
	for _, o := range opts {
		o(cmd)
	}

	baseCmd.SetIn(cmd.inStream)
	baseCmd.SetOut(cmd.outStream)
	baseCmd.SetErr(cmd.errStream)

	flags := cmd.Flags()
	flags.StringVarP(&cmd.address, "address", "a", "127.0.0.1", "Address of the interface the server will listen on.")
	flags.IntVarP(&cmd.port, "port", "p", 8090, "Port the server will listen on.")
	flags.BoolVar(&cmd.stdio, "stdio", false, "Serve a single session over stdio instead of listening for network connections.")
	flags.StringVar(&cmd.logLevel, "log-level", log.Info, "Minimum level logged. Allowed: DEBUG, INFO, WARN, ERROR.")
	flags.StringVar(&cmd.logFormat, "log-format", "standard", "Log output format. Allowed: standard, json.")

	cmd.RunE = func(*cobra.Command, []string) error { return run(cmd) }

	return cmd
}

func run(cmd *Command) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		select {
		case <-ctx.Done():
			return
		case <-signals:
			cancel()
		}
	}()

	if cmd.logger == nil {
		logger, err := newLogger(cmd)
		if err != nil {
			return fmt.Errorf("unable to initialize logger: %w", err)
		}
		cmd.logger = logger
	}

	// Trace/metric export is left unconfigured by default so the process's
	// stderr carries only log lines; set cmd.logger aside and wire real
	// writers here for deployments that want local stdout-exporter traces.
	instrumentation, err := telemetry.New(nil, nil)
	if err != nil {
		return fmt.Errorf("unable to set up telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = instrumentation.Shutdown(shutdownCtx)
	}()

	d := dispatcher.New(
		mcp.Implementation{Name: mcp.ServerName, Version: versionString},
		cmd.logger,
	)
	d.Instrumentation = instrumentation
	if err := d.Tools.Register(echoTool()); err != nil {
		return fmt.Errorf("unable to register built-in tool: %w", err)
	}

	if cmd.stdio {
		cmd.logger.InfoContext(ctx, "serving a single session over stdio")
		t := stdio.New(cmd.inStream, cmd.outStream)
		return d.Serve(ctx, t)
	}

	return serveNetwork(ctx, cmd, d)
}

// serveNetwork runs both the HTTP+SSE and WebSocket listeners side by
// side on the same address, so one runtime serves both framings.
func serveNetwork(ctx context.Context, cmd *Command, d *dispatcher.Dispatcher) error {
	addr := fmt.Sprintf("%s:%d", cmd.address, cmd.port)

	mux := http.NewServeMux()
	mux.Handle("/mcp/", http.StripPrefix("/mcp", transporthttp.NewHandler(d).Router))
	mux.HandleFunc("/mcp/ws", func(w http.ResponseWriter, r *http.Request) {
		t, err := ws.Accept(w, r)
		if err != nil {
			cmd.logger.ErrorContext(r.Context(), "websocket upgrade failed", "error", err)
			return
		}
		if err := d.Serve(r.Context(), t); err != nil {
			cmd.logger.WarnContext(r.Context(), "websocket session ended with error", "error", err)
		}
	})

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("unable to bind %s: %w", addr, err)
	}

	srv := &http.Server{Handler: mux}
	srvErr := make(chan error, 1)
	go func() {
		cmd.logger.InfoContext(ctx, "server ready to serve", "address", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			srvErr <- err
			return
		}
		srvErr <- nil
	}()

	select {
	case err := <-srvErr:
		return err
	case <-ctx.Done():
		cmd.logger.WarnContext(ctx, "shutting down gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err == context.DeadlineExceeded {
			return fmt.Errorf("graceful shutdown timed out")
		}
		return nil
	}
}

// echoTool is the only tool this binary ships: it returns its "message"
// argument verbatim, which is enough to exercise a deployment end to end.
func echoTool() *registry.Tool {
	toolSchema := &schema.Schema{
		Type: schema.TypeObject,
		Properties: map[string]*schema.Property{
			"message": {Type: schema.TypeString, Description: "text to echo back"},
		},
		Required: []string{"message"},
	}
	rawSchema, _ := json.Marshal(toolSchema)
	return &registry.Tool{
		Descriptor: mcp.ToolDescriptor{
			Name:        "echo",
			Description: "Echoes the message argument back as text content.",
			InputSchema: rawSchema,
		},
		Schema: toolSchema,
		Handler: func(_ *registry.InvocationContext, args map[string]interface{}) (*mcp.CallToolResult, error) {
			message, _ := args["message"].(string)
			return &mcp.CallToolResult{
				Content: []mcp.Content{mcp.TextContent(message)},
			}, nil
		},
	}
}

func newLogger(cmd *Command) (log.Logger, error) {
	outW := cmd.outStream
	if cmd.stdio {
		// stdout is the JSON-RPC wire in stdio mode; every log line must
		// go to stderr so a peer parsing newline-framed envelopes never
		// sees one.
		outW = cmd.errStream
	}
	switch cmd.logFormat {
	case "json":
		return log.NewStructuredLogger(outW, cmd.errStream, cmd.logLevel)
	case "standard":
		return log.NewStdLogger(outW, cmd.errStream, cmd.logLevel)
	default:
		return nil, fmt.Errorf("invalid log format %q", cmd.logFormat)
	}
}
