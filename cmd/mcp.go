package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jcdickinson/docloc/internal/mcp"
	"github.com/jcdickinson/docloc/internal/site"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run as MCP server on stdio (resolve_dri, describe_dri, inspect_package_list)",
	Args:  cobra.NoArgs,
	Run:   runMCP,
}

func runMCP(cmd *cobra.Command, args []string) {
	cfg := mustLoadConfig()
	server := mcp.NewServer(cfg, site.NewFetcher(cfg))

	errCh := make(chan error)
	go func() { errCh <- server.Run() }()

	if err := waitForSignal(errCh); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}
