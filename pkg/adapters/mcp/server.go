package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/tollgate"
	"github.com/aretw0/tollgate/internal/presentation/graph"
	"github.com/aretw0/tollgate/internal/runtime"
	"github.com/aretw0/tollgate/pkg/domain"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// GraphURI is the resource holding the Mermaid step graph.
const GraphURI = "tollgate://graph"

// Engine defines the conversation API exposed as MCP tools.
// *tollgate.Engine satisfies it.
type Engine interface {
	Start(ctx context.Context) (string, error)
	SendMessage(ctx context.Context, id, message string) (*tollgate.Snapshot, error)
	Reject(ctx context.Context, id, message string) (*tollgate.Snapshot, error)
	Approve(ctx context.Context, id string) (*tollgate.Snapshot, error)
	Resume(ctx context.Context, id string) (*tollgate.Snapshot, error)
	State(ctx context.Context, id string) (*tollgate.Snapshot, error)
	List(ctx context.Context) ([]string, error)
	Tools() []domain.ToolSpec
}

// ConversationArgs identifies the target conversation.
type ConversationArgs struct {
	ConversationID string `json:"conversation_id"`
}

// MessageArgs carries a human message for a conversation.
type MessageArgs struct {
	ConversationID string `json:"conversation_id"`
	Message        string `json:"message"`
}

// StartResult is returned by start_conversation.
type StartResult struct {
	ConversationID string `json:"conversation_id" jsonschema_description:"Identifier to pass to the other tools"`
}

// ListResult is returned by list_conversations.
type ListResult struct {
	Conversations []string `json:"conversations"`
}

// Server wraps the Tollgate engine and exposes it as an MCP Server.
type Server struct {
	engine    Engine
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// Option configures the server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// NewServer creates a new MCP Server instance.
func NewServer(engine Engine, opts ...Option) *Server {
	s := &Server{
		engine:    engine,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		mcpServer: server.NewMCPServer("tollgate-mcp", strings.TrimSpace(tollgate.Version)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer exposes the underlying server, e.g. for in-process clients.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves MCP over SSE on addr until ctx is canceled.
func (s *Server) ServeSSE(ctx context.Context, addr, baseURL string) error {
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", sseServer.SSEHandler())
	mux.Handle("/message", sseServer.MessageHandler())

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("start_conversation",
		mcp.WithDescription("Start a new conversation with an empty message log."),
		mcp.WithOutputSchema[StartResult](),
	), mcp.NewStructuredToolHandler(s.handleStart))

	s.mcpServer.AddTool(mcp.NewTool("send_message",
		mcp.WithDescription("Send a human message. If a tool call is awaiting approval, the message rejects it."),
		mcp.WithString("conversation_id", mcp.Required(), mcp.Description("Conversation ID")),
		mcp.WithString("message", mcp.Required(), mcp.Description("Message text")),
		mcp.WithOutputSchema[tollgate.Snapshot](),
	), mcp.NewStructuredToolHandler(s.handleSendMessage))

	s.mcpServer.AddTool(mcp.NewTool("reject",
		mcp.WithDescription("Reject the pending tool call and reply with a message."),
		mcp.WithString("conversation_id", mcp.Required(), mcp.Description("Conversation ID")),
		mcp.WithString("message", mcp.Required(), mcp.Description("Reply sent along with the rejection")),
		mcp.WithOutputSchema[tollgate.Snapshot](),
	), mcp.NewStructuredToolHandler(s.handleReject))

	s.mcpServer.AddTool(mcp.NewTool("approve",
		mcp.WithDescription("Approve the pending tool call(s) and continue the conversation."),
		mcp.WithString("conversation_id", mcp.Required(), mcp.Description("Conversation ID")),
		mcp.WithOutputSchema[tollgate.Snapshot](),
	), mcp.NewStructuredToolHandler(s.handleApprove))

	s.mcpServer.AddTool(mcp.NewTool("resume",
		mcp.WithDescription("Re-run a step interrupted by a model failure."),
		mcp.WithString("conversation_id", mcp.Required(), mcp.Description("Conversation ID")),
		mcp.WithOutputSchema[tollgate.Snapshot](),
	), mcp.NewStructuredToolHandler(s.handleResume))

	s.mcpServer.AddTool(mcp.NewTool("get_state",
		mcp.WithDescription("Get the message log and approval status of a conversation."),
		mcp.WithString("conversation_id", mcp.Required(), mcp.Description("Conversation ID")),
		mcp.WithOutputSchema[tollgate.Snapshot](),
	), mcp.NewStructuredToolHandler(s.handleGetState))

	s.mcpServer.AddTool(mcp.NewTool("list_conversations",
		mcp.WithDescription("List the IDs of all stored conversations."),
		mcp.WithOutputSchema[ListResult](),
	), mcp.NewStructuredToolHandler(s.handleList))

	s.mcpServer.AddTool(mcp.NewTool("get_graph",
		mcp.WithDescription("Get the step graph as a Mermaid flowchart."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return mcp.NewToolResultText(graph.GenerateMermaid(runtime.Edges(), nil)), nil
	})
}

func (s *Server) handleStart(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (StartResult, error) {
	id, err := s.engine.Start(ctx)
	if err != nil {
		return StartResult{}, fmt.Errorf("start failed: %w", err)
	}
	return StartResult{ConversationID: id}, nil
}

func (s *Server) handleSendMessage(ctx context.Context, request mcp.CallToolRequest, args MessageArgs) (tollgate.Snapshot, error) {
	return s.snapshot("send_message", args.ConversationID)(s.engine.SendMessage(ctx, args.ConversationID, args.Message))
}

func (s *Server) handleReject(ctx context.Context, request mcp.CallToolRequest, args MessageArgs) (tollgate.Snapshot, error) {
	return s.snapshot("reject", args.ConversationID)(s.engine.Reject(ctx, args.ConversationID, args.Message))
}

func (s *Server) handleApprove(ctx context.Context, request mcp.CallToolRequest, args ConversationArgs) (tollgate.Snapshot, error) {
	return s.snapshot("approve", args.ConversationID)(s.engine.Approve(ctx, args.ConversationID))
}

func (s *Server) handleResume(ctx context.Context, request mcp.CallToolRequest, args ConversationArgs) (tollgate.Snapshot, error) {
	return s.snapshot("resume", args.ConversationID)(s.engine.Resume(ctx, args.ConversationID))
}

func (s *Server) handleGetState(ctx context.Context, request mcp.CallToolRequest, args ConversationArgs) (tollgate.Snapshot, error) {
	return s.snapshot("get_state", args.ConversationID)(s.engine.State(ctx, args.ConversationID))
}

func (s *Server) handleList(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (ListResult, error) {
	ids, err := s.engine.List(ctx)
	if err != nil {
		return ListResult{}, fmt.Errorf("list failed: %w", err)
	}
	if ids == nil {
		ids = []string{}
	}
	return ListResult{Conversations: ids}, nil
}

// snapshot adapts an engine result to a structured tool result.
func (s *Server) snapshot(op, id string) func(*tollgate.Snapshot, error) (tollgate.Snapshot, error) {
	return func(snap *tollgate.Snapshot, err error) (tollgate.Snapshot, error) {
		if err != nil {
			s.logger.Warn("MCP: operation failed", "op", op, "conversation_id", id, "err", err)
			return tollgate.Snapshot{}, fmt.Errorf("%s failed: %w", op, err)
		}
		return *snap, nil
	}
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(GraphURI, "Step Graph",
		mcp.WithMIMEType("text/plain"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      GraphURI,
				MIMEType: "text/plain",
				Text:     graph.GenerateMermaid(runtime.Edges(), nil),
			},
		}, nil
	})

	s.mcpServer.AddResource(mcp.NewResource("tollgate://tools", "Available Tools",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		raw, err := json.Marshal(s.engine.Tools())
		if err != nil {
			return nil, err
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      "tollgate://tools",
				MIMEType: "application/json",
				Text:     string(raw),
			},
		}, nil
	})
}
