package cmd

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/jcdickinson/docloc/internal/config"
)

var (
	debug      bool
	configFile string
)

var rootCmd = &cobra.Command{
	Use:   "docloc",
	Short: "Documentation layout and link resolution",
	Long: `docloc assigns documentation pages their output paths, writes package lists,
merges them across modules and resolves links to local and external declarations.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if debug {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		})))
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("command failed: %v", err)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default docloc.toml in . or $XDG_CONFIG_HOME/docloc)")

	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(mergeCmd)
	rootCmd.AddCommand(linkCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(clearCacheCmd)
}

func mustLoadConfig() *config.Config {
	cfg, err := config.Load(configFile)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	return cfg
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func waitForSignal(errCh chan error) error {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		slog.Info("received signal", "signal", sig)
		return nil
	case err := <-errCh:
		return err
	}
}
