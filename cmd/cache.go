package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jcdickinson/docloc/internal/cache"
)

var clearCacheCmd = &cobra.Command{
	Use:   "clear-cache",
	Short: "Remove cached external package lists",
	Args:  cobra.NoArgs,
	Run:   runClearCache,
}

func runClearCache(cmd *cobra.Command, args []string) {
	cfg := mustLoadConfig()
	store := cache.New(cfg.PackageListCacheDir())
	if err := store.Clear(); err != nil {
		slog.Error("failed to clear cache", "error", err)
		os.Exit(1)
	}
	fmt.Printf("cleared %s\n", store.Dir())
}
