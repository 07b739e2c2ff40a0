package cmd

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jcdickinson/docloc/internal/dri"
	"github.com/jcdickinson/docloc/internal/report"
	"github.com/jcdickinson/docloc/internal/site"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <dri>",
	Short: "Resolve a DRI against the built site and external package lists",
	Example: `  docloc resolve 'kotlin.text/StringBuilder/~/decl/'
  docloc resolve --module core 'com.example/Foo/bar()/decl/'
  docloc resolve --json 'java.lang/String/~/decl/'`,
	Args: cobra.ExactArgs(1),
	Run:  runResolve,
}

var (
	resolveModules []string
	resolveJSON    bool
)

func init() {
	resolveCmd.Flags().StringSliceVar(&resolveModules, "module", nil, "restrict to module sections (repeatable)")
	resolveCmd.Flags().BoolVar(&resolveJSON, "json", false, "print every attempt as JSON")
}

func runResolve(cmd *cobra.Command, args []string) {
	d, err := dri.Parse(args[0])
	if err != nil {
		slog.Error("invalid DRI", "error", err)
		os.Exit(1)
	}

	cfg := mustLoadConfig()
	ctx, cancel := signalContext()
	defer cancel()

	resolvers, err := site.Resolvers(ctx, cfg, site.NewFetcher(cfg))
	if err != nil {
		slog.Error("failed to load package lists", "error", err)
		os.Exit(1)
	}

	res := report.ResolveWith(d, resolvers, resolveModules...)
	if resolveJSON {
		out, _ := json.MarshalIndent(res, "", "  ")
		fmt.Println(string(out))
		return
	}

	for _, a := range res.Attempts {
		if a.Resolved {
			fmt.Printf("  %-20s %s\n", a.Name, a.URL)
		} else {
			fmt.Printf("  %-20s no: %s\n", a.Name, a.Reason)
		}
	}
	if !res.Resolved {
		fmt.Println("unresolved")
		os.Exit(2)
	}
	fmt.Println(res.URL)
}
