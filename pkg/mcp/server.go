// Package mcp implements the tool-invocation protocol server for
// granola-mcp: JSON-RPC 2.0 over stdio, one message per line.
package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/otherjamesbrown/granola-mcp/pkg/buildinfo"
	gmerrors "github.com/otherjamesbrown/granola-mcp/pkg/errors"
	"github.com/otherjamesbrown/granola-mcp/pkg/logging"
	"github.com/otherjamesbrown/granola-mcp/pkg/observability"
)

const protocolVersion = "2024-11-05"

// Server speaks the MCP protocol on a reader/writer pair, normally
// stdin/stdout. Logs go to stderr so they never corrupt the wire.
type Server struct {
	handler *ToolHandler
	logger  logging.Logger
	metrics *observability.Metrics

	in  io.Reader
	out io.Writer
}

// ServerOption configures the server.
type ServerOption func(*Server)

// WithIO overrides the transport streams, used by tests.
func WithIO(in io.Reader, out io.Writer) ServerOption {
	return func(s *Server) {
		s.in = in
		s.out = out
	}
}

// WithMetrics enables per-tool metrics.
func WithMetrics(m *observability.Metrics) ServerOption {
	return func(s *Server) { s.metrics = m }
}

// NewServer creates an MCP server executing tool calls against service.
func NewServer(service *Service, logger logging.Logger, opts ...ServerOption) *Server {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	s := &Server{
		handler: NewToolHandler(service),
		logger:  logger,
		in:      os.Stdin,
		out:     os.Stdout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Protocol types.

type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type Response struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *Error      `json:"error,omitempty"`
}

type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type InitializeResult struct {
	ProtocolVersion string             `json:"protocolVersion"`
	ServerInfo      ServerInfo         `json:"serverInfo"`
	Capabilities    ServerCapabilities `json:"capabilities"`
}

type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type ServerCapabilities struct {
	Tools *ToolsCapability `json:"tools,omitempty"`
}

type ToolsCapability struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

type ListToolsResult struct {
	Tools []Tool `json:"tools"`
}

type Tool struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema interface{} `json:"inputSchema"`
}

type CallToolParams struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

type CallToolResult struct {
	Content []ToolContent `json:"content"`
	IsError bool          `json:"isError,omitempty"`
}

type ToolContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Run reads messages until EOF or context cancellation.
func (s *Server) Run(ctx context.Context) error {
	reader := bufio.NewReader(s.in)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line, err := reader.ReadBytes('\n')
		if err != nil && err != io.EOF {
			return err
		}

		// ReadBytes hands back a final unterminated request together
		// with io.EOF; handle it before shutting down.
		if !isBlank(line) {
			var req Request
			if jsonErr := json.Unmarshal(line, &req); jsonErr != nil {
				s.logger.Warn("unparseable message on wire", logging.Err(jsonErr))
				_ = s.sendError(nil, -32700, "Parse error")
			} else if resp := s.handleRequest(ctx, &req); resp != nil {
				if sendErr := s.sendResponse(resp); sendErr != nil {
					return sendErr
				}
			}
		}

		if err == io.EOF {
			return nil
		}
	}
}

func isBlank(line []byte) bool {
	for _, b := range line {
		if b != ' ' && b != '\t' && b != '\r' && b != '\n' {
			return false
		}
	}
	return true
}

func (s *Server) handleRequest(ctx context.Context, req *Request) *Response {
	switch req.Method {
	case "initialize":
		return s.handleInitialize(req)
	case "tools/list":
		return &Response{
			JSONRPC: "2.0",
			ID:      req.ID,
			Result:  ListToolsResult{Tools: getToolDefinitions()},
		}
	case "tools/call":
		return s.handleCallTool(ctx, req)
	case "ping":
		return &Response{JSONRPC: "2.0", ID: req.ID, Result: map[string]interface{}{}}
	case "notifications/initialized", "notifications/cancelled":
		return nil // notifications get no response
	default:
		return &Response{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error:   &Error{Code: -32601, Message: "Method not found"},
		}
	}
}

func (s *Server) handleInitialize(req *Request) *Response {
	return &Response{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: InitializeResult{
			ProtocolVersion: protocolVersion,
			ServerInfo: ServerInfo{
				Name:    "granola-mcp",
				Version: buildinfo.Version,
			},
			Capabilities: ServerCapabilities{
				Tools: &ToolsCapability{},
			},
		},
	}
}

func (s *Server) handleCallTool(ctx context.Context, req *Request) *Response {
	var params CallToolParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return &Response{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error:   &Error{Code: -32602, Message: "Invalid params"},
		}
	}
	if params.Arguments == nil {
		params.Arguments = map[string]interface{}{}
	}

	started := time.Now()
	result, err := s.handler.Handle(ctx, params.Name, params.Arguments)
	elapsed := time.Since(started)

	status := "ok"
	if err != nil {
		switch {
		case gmerrors.IsInvalidArgument(err):
			status = "invalid_argument"
		case gmerrors.IsNotFound(err):
			status = "not_found"
		case gmerrors.IsSourceUnavailable(err):
			status = "source_unavailable"
		default:
			status = "error"
		}
	}
	if s.metrics != nil {
		s.metrics.ToolCallsTotal.WithLabelValues(params.Name, status).Inc()
		s.metrics.ToolSeconds.WithLabelValues(params.Name).Observe(elapsed.Seconds())
	}
	s.logger.Debug("tool call",
		logging.F("tool", params.Name),
		logging.F("status", status),
		logging.F("elapsed_ms", elapsed.Milliseconds()))

	if err != nil {
		return &Response{
			JSONRPC: "2.0",
			ID:      req.ID,
			Result: CallToolResult{
				Content: []ToolContent{{Type: "text", Text: fmt.Sprintf("Error: %v", err)}},
				IsError: true,
			},
		}
	}

	resultJSON, err := json.Marshal(result)
	if err != nil {
		return &Response{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error:   &Error{Code: -32603, Message: "Internal error"},
		}
	}
	return &Response{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: CallToolResult{
			Content: []ToolContent{{Type: "text", Text: string(resultJSON)}},
		},
	}
}

func (s *Server) sendResponse(resp *Response) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(s.out, "%s\n", data)
	return err
}

func (s *Server) sendError(id interface{}, code int, message string) error {
	return s.sendResponse(&Response{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &Error{Code: code, Message: message},
	})
}
