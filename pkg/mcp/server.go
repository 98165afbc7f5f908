package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/entrhq/notebook-mcp/pkg/logging"
	"github.com/entrhq/notebook-mcp/pkg/tools"
)

// maxMessageSize bounds one JSON-RPC line.
const maxMessageSize = 4 * 1024 * 1024

const instructions = "Ask questions to NotebookLM notebooks. Answers come only from the notebook's sources. " +
	"Reuse session_id for follow-up questions. Register notebooks with add_notebook and pick the default with select_notebook. " +
	"If a call reports that sign-in is required, run setup_auth."

// Server answers MCP requests with the tools of a registry.
type Server struct {
	tools *tools.Registry
	info  ServerInfo
	log   logging.Logger

	writeMu sync.Mutex
	out     io.Writer

	mu       sync.Mutex
	inflight map[string]context.CancelFunc
	wg       sync.WaitGroup
}

// NewServer creates a server for registry.
func NewServer(registry *tools.Registry, info ServerInfo, logger logging.Logger) *Server {
	return &Server{
		tools:    registry,
		info:     info,
		log:      logging.OrNop(logger),
		inflight: make(map[string]context.CancelFunc),
	}
}

// Serve reads requests from in and writes responses to out until in is
// exhausted or ctx is cancelled. Tool calls run concurrently. When in is
// exhausted they are allowed to finish; when ctx ends they are cancelled.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	s.out = out
	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		s.wg.Wait()
	}()

	lines := make(chan []byte)
	readErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 64*1024), maxMessageSize)
		for scanner.Scan() {
			line := append([]byte(nil), scanner.Bytes()...)
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-readErr:
			if err != nil {
				return fmt.Errorf("read request: %w", err)
			}
			s.log.Infof("Input closed, waiting for running calls")
			s.wg.Wait()
			return nil
		case line := <-lines:
			if len(line) == 0 {
				continue
			}
			s.handleLine(ctx, line)
		}
	}
}

func (s *Server) handleLine(ctx context.Context, line []byte) {
	var msg Message
	if err := json.Unmarshal(line, &msg); err != nil {
		s.log.Warnf("Unparseable message: %v", err)
		s.writeError(json.RawMessage("null"), CodeParseError, "parse error")
		return
	}
	if msg.JSONRPC != "2.0" || msg.Method == "" {
		if msg.isNotification() {
			// Responses to server requests are not used.
			return
		}
		s.writeError(msg.ID, CodeInvalidRequest, "invalid request")
		return
	}

	if msg.isNotification() {
		s.handleNotification(msg)
		return
	}

	switch msg.Method {
	case "initialize":
		s.initialize(msg)
	case "ping":
		s.writeResult(msg.ID, struct{}{})
	case "tools/list":
		s.writeResult(msg.ID, s.listTools())
	case "tools/call":
		s.startCall(ctx, msg)
	default:
		s.writeError(msg.ID, CodeMethodNotFound, fmt.Sprintf("method not found: %s", msg.Method))
	}
}

func (s *Server) handleNotification(msg Message) {
	switch msg.Method {
	case "notifications/initialized":
		s.log.Infof("Client initialized")
	case "notifications/cancelled":
		var params CancelledParams
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			return
		}
		s.mu.Lock()
		cancel, ok := s.inflight[string(params.RequestID)]
		s.mu.Unlock()
		if ok {
			s.log.Infof("Request %s cancelled by client: %s", params.RequestID, params.Reason)
			cancel()
		}
	default:
		s.log.Debugf("Ignoring notification %s", msg.Method)
	}
}

func (s *Server) initialize(msg Message) {
	var params InitializeParams
	if len(msg.Params) > 0 {
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			s.writeError(msg.ID, CodeInvalidParams, "invalid initialize params")
			return
		}
	}

	version := ProtocolVersion
	if supportedVersions[params.ProtocolVersion] {
		version = params.ProtocolVersion
	}
	s.log.Infof("Initialize from %s %s (protocol %s)", params.ClientInfo.Name, params.ClientInfo.Version, version)

	s.writeResult(msg.ID, InitializeResult{
		ProtocolVersion: version,
		Capabilities: map[string]any{
			"tools": map[string]any{"listChanged": false},
		},
		ServerInfo:   s.info,
		Instructions: instructions,
	})
}

func (s *Server) listTools() ToolsListResult {
	all := s.tools.List()
	defs := make([]ToolDefinition, 0, len(all))
	for _, t := range all {
		defs = append(defs, ToolDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			InputSchema: t.Schema(),
		})
	}
	return ToolsListResult{Tools: defs}
}

// startCall runs a tool in its own goroutine so that long questions do not
// hold up pings or other calls.
func (s *Server) startCall(ctx context.Context, msg Message) {
	var params ToolCallParams
	if err := json.Unmarshal(msg.Params, &params); err != nil || params.Name == "" {
		s.writeError(msg.ID, CodeInvalidParams, "tools/call requires a tool name")
		return
	}
	tool, ok := s.tools.Get(params.Name)
	if !ok {
		s.writeError(msg.ID, CodeInvalidParams, fmt.Sprintf("unknown tool: %s", params.Name))
		return
	}

	callCtx, cancel := context.WithCancel(ctx)
	key := string(msg.ID)
	s.mu.Lock()
	s.inflight[key] = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			delete(s.inflight, key)
			s.mu.Unlock()
			cancel()
		}()

		s.log.Debugf("Calling %s", params.Name)
		text, structured, err := tool.Execute(callCtx, params.Arguments)
		if err != nil {
			if errors.Is(err, context.Canceled) && callCtx.Err() != nil {
				s.log.Infof("Tool %s cancelled", params.Name)
			} else {
				s.log.Warnf("Tool %s failed: %v", params.Name, err)
			}
			s.writeResult(msg.ID, ToolCallResult{
				Content: []ContentBlock{{Type: "text", Text: err.Error()}},
				IsError: true,
			})
			return
		}
		s.writeResult(msg.ID, ToolCallResult{
			Content:           []ContentBlock{{Type: "text", Text: text}},
			StructuredContent: structured,
		})
	}()
}

func (s *Server) writeResult(id json.RawMessage, result any) {
	s.write(Message{JSONRPC: "2.0", ID: id, Result: result})
}

func (s *Server) writeError(id json.RawMessage, code int, message string) {
	s.write(Message{JSONRPC: "2.0", ID: id, Error: &ErrorResponse{Code: code, Message: message}})
}

func (s *Server) write(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		s.log.Errorf("Failed to encode response: %v", err)
		return
	}
	data = append(data, '\n')

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := s.out.Write(data); err != nil {
		s.log.Errorf("Failed to write response: %v", err)
	}
}
