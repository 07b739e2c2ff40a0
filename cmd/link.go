package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jcdickinson/docloc/internal/dri"
	"github.com/jcdickinson/docloc/internal/external"
	"github.com/jcdickinson/docloc/internal/markdown"
	"github.com/jcdickinson/docloc/internal/site"
)

var linkCmd = &cobra.Command{
	Use:   "link <file.md>",
	Short: "Rewrite dri: links in a Markdown file",
	Long: `Replace every [text](dri:...) link of a Markdown file with the location of the
declaration, relative to the page the file is rendered as. Links that do not
resolve are reduced to their text.`,
	Example: `  docloc link --module core --from 'com.example/Foo/~/decl/' docs/foo.md
  docloc link --module core -w README.md`,
	Args: cobra.ExactArgs(1),
	Run:  runLink,
}

var (
	linkModule string
	linkFrom   string
	linkWrite  bool
)

func init() {
	linkCmd.Flags().StringVarP(&linkModule, "module", "m", "", "module the file belongs to (required)")
	linkCmd.Flags().StringVar(&linkFrom, "from", "", "DRI of the page the file is rendered as (default: module root)")
	linkCmd.Flags().BoolVarP(&linkWrite, "write", "w", false, "rewrite the file in place")
	linkCmd.MarkFlagRequired("module")
}

func runLink(cmd *cobra.Command, args []string) {
	cfg := mustLoadConfig()
	ctx, cancel := signalContext()
	defer cancel()

	var module *site.Module
	for _, mc := range cfg.Modules {
		if mc.Name != linkModule {
			continue
		}
		m, err := site.Layout(mc, cfg.Output)
		if err != nil {
			slog.Error("failed to lay out module", "module", mc.Name, "error", err)
			os.Exit(1)
		}
		module = m
	}
	if module == nil {
		slog.Error("module not configured", "module", linkModule)
		os.Exit(1)
	}

	from := module.Provider.Root()
	if linkFrom != "" {
		d, err := dri.Parse(linkFrom)
		if err != nil {
			slog.Error("invalid --from DRI", "error", err)
			os.Exit(1)
		}
		page, ok := module.Provider.PageOf(d)
		if !ok {
			slog.Error("--from DRI is not documented in module", "dri", linkFrom, "module", linkModule)
			os.Exit(1)
		}
		from = page
	}

	resolvers, err := site.Resolvers(ctx, cfg, site.NewFetcher(cfg))
	if err != nil {
		slog.Error("failed to load package lists", "error", err)
		os.Exit(1)
	}
	provider := module.Provider.WithExternal(external.NewRegistry(resolvers...))

	src, err := os.ReadFile(args[0])
	if err != nil {
		slog.Error("failed to read file", "error", err)
		os.Exit(1)
	}
	out, unresolved := markdown.ResolveDRILinks(string(src), func(d dri.DRI) (string, bool) {
		return provider.ResolveDRI(d, from)
	})
	for _, u := range unresolved {
		slog.Warn("link reduced to text", "destination", u)
	}

	if !linkWrite {
		fmt.Print(out)
		return
	}
	if err := os.WriteFile(args[0], []byte(out), 0644); err != nil {
		slog.Error("failed to write file", "error", err)
		os.Exit(1)
	}
}
