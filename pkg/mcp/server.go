package mcp

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/rendis/tileflow/internal/logging"
	"github.com/rendis/tileflow/internal/service"
)

// TileflowServerDeps holds the dependencies for creating a TileflowServer.
type TileflowServerDeps struct {
	Service *service.Service
	Logger  *slog.Logger
	Version string
}

// TileflowServer wraps an MCP server with tileflow-specific tool handlers.
type TileflowServer struct {
	svc       *service.Service
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// NewTileflowServer creates a new TileflowServer with all 5 tools registered.
func NewTileflowServer(deps TileflowServerDeps) *TileflowServer {
	logger := deps.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	version := deps.Version
	if version == "" {
		version = "dev"
	}

	s := &TileflowServer{
		svc:    deps.Service,
		logger: logger,
	}

	mcpSrv := server.NewMCPServer(
		"tileflow",
		version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions("Tileflow lays out workflow diagrams on a grid. Use tileflow.validate to check a definition, tileflow.layout to get tile coordinates, tileflow.diagram to render ASCII, Mermaid or PNG, tileflow.define to store a definition version and tileflow.query to list stored definitions."),
	)

	mcpSrv.AddTools(s.tools()...)
	s.mcpServer = mcpSrv
	return s
}

// Serve starts the stdio transport and blocks until ctx is cancelled or stdin closes.
func (s *TileflowServer) Serve(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// SSEHandler exposes the server over Server-Sent Events. baseURL is the
// externally visible address clients post messages to.
func (s *TileflowServer) SSEHandler(baseURL string) http.Handler {
	sse := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))
	mux := http.NewServeMux()
	mux.Handle("/sse", sse.SSEHandler())
	mux.Handle("/message", sse.MessageHandler())
	return mux
}

// ServeSSE listens on addr and serves the SSE transport until ctx is
// cancelled, then shuts down gracefully. It returns http.ErrServerClosed
// after a clean shutdown.
func (s *TileflowServer) ServeSSE(ctx context.Context, addr, baseURL string) error {
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           s.SSEHandler(baseURL),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP server listening", "transport", "sse", "addr", addr)
		serverErrors <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			_ = httpSrv.Close()
			return err
		}
		return http.ErrServerClosed
	}
}

// MCPServer returns the underlying MCPServer for testing or custom transports.
func (s *TileflowServer) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// tools returns the 5 registered MCP tools as ServerTool entries.
func (s *TileflowServer) tools() []server.ServerTool {
	return []server.ServerTool{
		{Tool: defineTool(), Handler: s.handleDefine},
		{Tool: layoutTool(), Handler: s.handleLayout},
		{Tool: diagramTool(), Handler: s.handleDiagram},
		{Tool: queryTool(), Handler: s.handleQuery},
		{Tool: validateTool(), Handler: s.handleValidate},
	}
}

// --- Tool definitions ---

func definitionRefOptions() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithObject("definition", mcp.Description("Inline workflow definition (takes precedence over id)")),
		mcp.WithString("id", mcp.Description("ID of a stored definition")),
		mcp.WithNumber("version", mcp.Description("Stored definition version (default: latest)")),
	}
}

func defineTool() mcp.Tool {
	return mcp.NewTool("tileflow.define",
		mcp.WithDescription("Validate and store a workflow definition as a new version"),
		mcp.WithObject("definition", mcp.Required(), mcp.Description("Workflow definition object")),
		mcp.WithString("id", mcp.Description("Definition ID (default: definition.id, or a generated uuid)")),
		mcp.WithNumber("version", mcp.Description("Explicit version; must be newer than the latest (default: next)")),
		mcp.WithString("title", mcp.Description("Display title (default: definition title)")),
		mcp.WithString("description", mcp.Description("Definition description")),
	)
}

func layoutTool() mcp.Tool {
	opts := append([]mcp.ToolOption{
		mcp.WithDescription("Compute grid coordinates for every tile of a workflow"),
	}, definitionRefOptions()...)
	return mcp.NewTool("tileflow.layout", opts...)
}

func diagramTool() mcp.Tool {
	opts := append([]mcp.ToolOption{
		mcp.WithDescription("Render a workflow diagram. Returns ASCII art, Mermaid flowchart syntax, or a PNG image"),
		mcp.WithString("format", mcp.Required(),
			mcp.Enum(service.Formats...),
			mcp.Description("Output format: ascii (text), mermaid (flowchart syntax), or image (PNG)"),
		),
		mcp.WithObject("inputs", mcp.Description("Trace inputs; when set, switch conditions are evaluated and the taken run is highlighted")),
		mcp.WithNumber("scale_x", mcp.Description("Image pixels per grid column (default: 160)")),
		mcp.WithNumber("scale_y", mcp.Description("Image pixels per grid row (default: 96)")),
	}, definitionRefOptions()...)
	return mcp.NewTool("tileflow.diagram", opts...)
}

func queryTool() mcp.Tool {
	return mcp.NewTool("tileflow.query",
		mcp.WithDescription("Query stored workflow definitions"),
		mcp.WithString("resource", mcp.Required(),
			mcp.Enum("definitions", "definition"),
			mcp.Description("definitions lists, definition fetches one by id"),
		),
		mcp.WithObject("filter", mcp.Description("Filter criteria (id, version, all_versions, limit, offset)")),
	)
}

func validateTool() mcp.Tool {
	opts := append([]mcp.ToolOption{
		mcp.WithDescription("Validate a workflow definition, layout stage included"),
	}, definitionRefOptions()...)
	return mcp.NewTool("tileflow.validate", opts...)
}
