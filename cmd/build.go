package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jcdickinson/docloc/internal/site"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Lay out every configured module and resolve its links",
	Long: `Lay out every module named in the config, write each module's package-list,
locations.json and links.json under its relative directory, then write the merged
package-list and navigation.json at the output root.`,
	Example: `  docloc build
  docloc build --output site --offline
  docloc -c docs/docloc.toml build`,
	Args: cobra.NoArgs,
	Run:  runBuild,
}

var (
	buildOutput  string
	buildOffline bool
)

func init() {
	buildCmd.Flags().StringVarP(&buildOutput, "output", "o", "", "output directory (overrides output.dir)")
	buildCmd.Flags().BoolVar(&buildOffline, "offline", false, "use cached external package lists only")
}

func runBuild(cmd *cobra.Command, args []string) {
	cfg := mustLoadConfig()
	if buildOutput != "" {
		cfg.Output.Dir = buildOutput
	}
	if buildOffline {
		cfg.Cache.Offline = true
	}

	ctx, cancel := signalContext()
	defer cancel()

	summary, err := site.Build(ctx, cfg, site.NewFetcher(cfg))
	if err != nil {
		slog.Error("build failed", "error", err)
		os.Exit(1)
	}

	for _, m := range summary.Modules {
		fmt.Printf("  %-24s %5d pages  %5d links resolved  %5d unresolved\n", m.Name, m.Pages, m.Resolved, m.Unresolved)
	}
	fmt.Printf("written to %s\n", summary.Output)
}
