package mcp

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cratenav/cratenav/internal/daemon"
	"github.com/cratenav/cratenav/internal/rpc"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

//go:embed instructions.md
var instructions string

type Server struct {
	mcpServer *server.MCPServer
	client    *daemon.Client
}

func NewServer(socketPath string) (*Server, error) {
	client, err := daemon.ConnectOrSpawn(socketPath)
	if err != nil {
		return nil, fmt.Errorf("connecting to daemon: %w", err)
	}

	s := &Server{client: client}

	mcpServer := server.NewMCPServer(
		"cratenav",
		"0.1.0",
		server.WithInstructions(instructions),
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, false),
	)

	s.registerTools(mcpServer)
	s.registerResources(mcpServer)

	s.mcpServer = mcpServer
	return s, nil
}

func (s *Server) registerTools(mcpServer *server.MCPServer) {
	mcpServer.AddTool(
		mcp.NewTool("load_fragments",
			mcp.WithDescription("Load rustdoc navigation fragment files (*.json, *.json.zst) into the index. Pass a directory or explicit file paths. Fragments merge in deterministic order; loading the same file twice duplicates its entries."),
			mcp.WithString("dir",
				mcp.Description("Directory containing fragment files"),
			),
			mcp.WithArray("files",
				mcp.Description("Explicit fragment file paths (overrides dir)"),
				mcp.Items(map[string]interface{}{"type": "string"}),
			),
		),
		s.handleLoadFragments,
	)

	mcpServer.AddTool(
		mcp.NewTool("lookup_implementors",
			mcp.WithDescription("List the known implementors of a trait, in the order their fragments were registered. Returns markdown; compiler-synthesized blanket impls are marked (auto)."),
			mcp.WithString("trait",
				mcp.Description("Full trait path (e.g., \"core::fmt::Debug\")"),
				mcp.Required(),
			),
		),
		s.handleLookupImplementors,
	)

	mcpServer.AddTool(
		mcp.NewTool("lookup_sidebar",
			mcp.WithDescription("List a module's member symbols grouped by kind (structs, enums, traits, macros, ...). Returns markdown."),
			mcp.WithString("module",
				mcp.Description("Full module path (e.g., \"serde::de\")"),
				mcp.Required(),
			),
		),
		s.handleLookupSidebar,
	)

	mcpServer.AddTool(
		mcp.NewTool("status",
			mcp.WithDescription("Show loaded producers and index size."),
		),
		s.handleStatus,
	)
}

func (s *Server) registerResources(mcpServer *server.MCPServer) {
	mcpServer.AddResourceTemplate(
		mcp.NewResourceTemplate(
			"navdoc://{module}",
			"Module sidebar",
			mcp.WithTemplateDescription("Read a module's sidebar (member symbols grouped by kind) as markdown."),
			mcp.WithTemplateMIMEType("text/markdown"),
		),
		s.handleReadResource,
	)
}

func (s *Server) handleLoadFragments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()

	var loadReq rpc.LoadRequest
	if dir, ok := args["dir"].(string); ok {
		loadReq.Dir = dir
	}
	if filesRaw, ok := args["files"]; ok {
		filesJSON, _ := json.Marshal(filesRaw)
		json.Unmarshal(filesJSON, &loadReq.Files)
	}
	if loadReq.Dir == "" && len(loadReq.Files) == 0 {
		return mcp.NewToolResultError("missing required parameter: dir or files"), nil
	}

	results, err := s.client.Load(ctx, loadReq, nil)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to load fragments: %v", err)), nil
	}

	resultJSON, _ := json.MarshalIndent(results, "", "  ")
	return mcp.NewToolResultText(string(resultJSON)), nil
}

func (s *Server) handleLookupImplementors(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	traitPath, _ := req.GetArguments()["trait"].(string)
	if traitPath == "" {
		return mcp.NewToolResultError("missing required parameter: trait"), nil
	}

	resp, err := s.client.Implementors(ctx, rpc.ImplementorsRequest{Trait: traitPath})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("lookup failed: %v", err)), nil
	}
	return mcp.NewToolResultText(resp.Markdown), nil
}

func (s *Server) handleLookupSidebar(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	module, _ := req.GetArguments()["module"].(string)
	if module == "" {
		return mcp.NewToolResultError("missing required parameter: module"), nil
	}

	resp, err := s.client.Sidebar(ctx, rpc.SidebarRequest{Module: module})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("lookup failed: %v", err)), nil
	}
	return mcp.NewToolResultText(resp.Markdown), nil
}

func (s *Server) handleStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	resp, err := s.client.Status(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("status failed: %v", err)), nil
	}

	resultJSON, _ := json.MarshalIndent(resp, "", "  ")
	return mcp.NewToolResultText(string(resultJSON)), nil
}

func (s *Server) handleReadResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uri := req.Params.URI
	module := strings.TrimPrefix(uri, "navdoc://")
	if module == "" || module == uri {
		return nil, fmt.Errorf("invalid resource URI: %s", uri)
	}

	resp, err := s.client.Sidebar(ctx, rpc.SidebarRequest{Module: module})
	if err != nil {
		return nil, fmt.Errorf("getting sidebar: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "text/markdown",
			Text:     resp.Markdown,
		},
	}, nil
}

func (s *Server) Run() error {
	return server.ServeStdio(s.mcpServer)
}

func (s *Server) Shutdown(_ context.Context) error {
	return nil
}
