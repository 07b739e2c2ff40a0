package mcp

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/jcdickinson/docloc/internal/config"
	"github.com/jcdickinson/docloc/internal/dri"
	"github.com/jcdickinson/docloc/internal/external"
	"github.com/jcdickinson/docloc/internal/fetch"
	"github.com/jcdickinson/docloc/internal/report"
	"github.com/jcdickinson/docloc/internal/site"
)

//go:embed instructions.md
var instructions string

const siteListURI = "docloc://site/package-list"

type Server struct {
	mcpServer *server.MCPServer
	cfg       *config.Config
	fetcher   *fetch.Fetcher

	once      sync.Once
	resolvers []*external.Resolver
	err       error
}

func NewServer(cfg *config.Config, fetcher *fetch.Fetcher) *Server {
	s := &Server{cfg: cfg, fetcher: fetcher}

	mcpServer := server.NewMCPServer(
		"docloc",
		"0.1.0",
		server.WithInstructions(instructions),
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, false),
	)

	s.registerTools(mcpServer)
	s.registerResources(mcpServer)

	s.mcpServer = mcpServer
	return s
}

func (s *Server) registerTools(mcpServer *server.MCPServer) {
	mcpServer.AddTool(
		mcp.NewTool("resolve_dri",
			mcp.WithDescription("Resolve a declaration reference to its documentation URL. Tries the built site's merged package list, then each configured external site, and reports every attempt."),
			mcp.WithString("dri",
				mcp.Description("Serialized DRI, e.g. kotlin.text/StringBuilder/~/decl/"),
				mcp.Required(),
			),
			mcp.WithArray("modules",
				mcp.Description("Optional module sections to restrict the lookup to"),
				mcp.Items(map[string]interface{}{"type": "string"}),
			),
		),
		s.handleResolveDRI,
	)

	mcpServer.AddTool(
		mcp.NewTool("describe_dri",
			mcp.WithDescription("Break a serialized DRI into package, classes, callable, target and extras, and list its relocation keys."),
			mcp.WithString("dri",
				mcp.Description("Serialized DRI"),
				mcp.Required(),
			),
		),
		s.handleDescribeDRI,
	)

	mcpServer.AddTool(
		mcp.NewTool("inspect_package_list",
			mcp.WithDescription("Load a package-list or element-list and summarize its format, link strategy, modules, packages and relocations. Accepts a documentation site URL, a manifest URL, or a local path."),
			mcp.WithString("location",
				mcp.Description("Site base URL, or URL/path of the package-list file"),
				mcp.Required(),
			),
			mcp.WithString("format",
				mcp.Description("Format to assume when the list carries no $dokka.format marker (e.g. javadoc8)"),
			),
		),
		s.handleInspectPackageList,
	)
}

func (s *Server) registerResources(mcpServer *server.MCPServer) {
	mcpServer.AddResource(
		mcp.NewResource(siteListURI, "Site package list",
			mcp.WithResourceDescription("The merged package list written by the last build"),
			mcp.WithMIMEType("text/plain"),
		),
		s.handleReadSiteList,
	)
}

func (s *Server) loadResolvers(ctx context.Context) ([]*external.Resolver, error) {
	s.once.Do(func() {
		s.resolvers, s.err = site.Resolvers(ctx, s.cfg, s.fetcher)
	})
	return s.resolvers, s.err
}

func jsonResult(v any) *mcp.CallToolResult {
	resultJSON, _ := json.MarshalIndent(v, "", "  ")
	return mcp.NewToolResultText(string(resultJSON))
}

func (s *Server) handleResolveDRI(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	raw, _ := args["dri"].(string)
	if raw == "" {
		return mcp.NewToolResultError("missing required parameter: dri"), nil
	}
	d, err := dri.Parse(raw)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var modules []string
	if modulesRaw, ok := args["modules"]; ok {
		modulesJSON, _ := json.Marshal(modulesRaw)
		if err := json.Unmarshal(modulesJSON, &modules); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid modules parameter: %v", err)), nil
		}
	}

	resolvers, err := s.loadResolvers(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("loading package lists: %v", err)), nil
	}
	if len(resolvers) == 0 {
		return mcp.NewToolResultError("no package lists available: build the site or configure external_links"), nil
	}
	return jsonResult(report.ResolveWith(d, resolvers, modules...)), nil
}

func (s *Server) handleDescribeDRI(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, _ := req.GetArguments()["dri"].(string)
	if raw == "" {
		return mcp.NewToolResultError("missing required parameter: dri"), nil
	}
	desc, err := report.Describe(raw)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(desc), nil
}

func (s *Server) handleInspectPackageList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	location, _ := args["location"].(string)
	if location == "" {
		return mcp.NewToolResultError("missing required parameter: location"), nil
	}
	format, _ := args["format"].(string)

	list, err := s.fetcher.Fetch(ctx, fetch.ManifestLink(location))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("loading %s: %v", location, err)), nil
	}
	return jsonResult(report.Inspect(location, list, format)), nil
}

func (s *Server) handleReadSiteList(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	data, err := os.ReadFile(filepath.Join(s.cfg.Output.Dir, "package-list"))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("no site package list in %s: run a build first", s.cfg.Output.Dir)
	}
	if err != nil {
		return nil, fmt.Errorf("reading site package list: %w", err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "text/plain",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) Run() error {
	return server.ServeStdio(s.mcpServer)
}
