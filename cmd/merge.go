package cmd

import (
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jcdickinson/docloc/internal/fetch"
	"github.com/jcdickinson/docloc/internal/multimodule"
	"github.com/jcdickinson/docloc/internal/site"
)

var mergeCmd = &cobra.Command{
	Use:   "merge <name[:dir]=package-list> ...",
	Short: "Merge module package lists into one",
	Long: `Merge the package lists of several modules. Each argument names a module, the
directory its documentation lives in relative to the merged site, and the location
of its package-list (path or URL).`,
	Example: `  docloc merge core:core=build/core/package-list extras:extras=build/extras/package-list
  docloc merge -o site/package-list core=core/package-list`,
	Args: cobra.MinimumNArgs(1),
	Run:  runMerge,
}

var mergeOutput string

func init() {
	mergeCmd.Flags().StringVarP(&mergeOutput, "output", "o", "", "write the merged list here instead of stdout")
}

func runMerge(cmd *cobra.Command, args []string) {
	cfg := mustLoadConfig()
	ctx, cancel := signalContext()
	defer cancel()
	fetcher := site.NewFetcher(cfg)

	var inputs []multimodule.Input
	for _, arg := range args {
		spec, location, ok := strings.Cut(arg, "=")
		if !ok || location == "" {
			slog.Error("invalid merge input, want name[:dir]=package-list", "input", arg)
			os.Exit(1)
		}
		name, dir, _ := strings.Cut(spec, ":")

		list, err := fetcher.Fetch(ctx, fetch.Link{Name: name, PackageList: location})
		if err != nil {
			slog.Error("failed to load package list", "module", name, "error", err)
			os.Exit(1)
		}
		inputs = append(inputs, multimodule.Input{Name: name, RelativeDir: dir, List: list})
	}

	merged, err := multimodule.Merge(inputs)
	if err != nil {
		slog.Error("merge failed", "error", err)
		os.Exit(1)
	}

	if mergeOutput == "" {
		merged.WriteTo(os.Stdout)
		return
	}
	if err := site.WriteList(mergeOutput, merged); err != nil {
		slog.Error("failed to write merged list", "error", err)
		os.Exit(1)
	}
}
