package cmd

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jcdickinson/docloc/internal/fetch"
	"github.com/jcdickinson/docloc/internal/report"
	"github.com/jcdickinson/docloc/internal/site"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <site-url|package-list>",
	Short: "Summarize a package list",
	Example: `  docloc inspect https://kotlinlang.org/api/core
  docloc inspect --format javadoc8 https://docs.oracle.com/javase/8/docs/api/package-list
  docloc inspect build/docs/package-list`,
	Args: cobra.ExactArgs(1),
	Run:  runInspect,
}

var (
	inspectFormat string
	inspectJSON   bool
)

func init() {
	inspectCmd.Flags().StringVar(&inspectFormat, "format", "", "format to assume when the list has no $dokka.format marker")
	inspectCmd.Flags().BoolVar(&inspectJSON, "json", false, "print as JSON")
}

func runInspect(cmd *cobra.Command, args []string) {
	cfg := mustLoadConfig()
	ctx, cancel := signalContext()
	defer cancel()

	list, err := site.NewFetcher(cfg).Fetch(ctx, fetch.ManifestLink(args[0]))
	if err != nil {
		slog.Error("failed to load package list", "error", err)
		os.Exit(1)
	}

	in := report.Inspect(args[0], list, inspectFormat)
	if inspectJSON {
		out, _ := json.MarshalIndent(in, "", "  ")
		fmt.Println(string(out))
		return
	}
	fmt.Print(in.Text())
}
