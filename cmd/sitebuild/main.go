// Command sitebuild builds the static landing page and dashboard for
// deployment.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/jonesrussell/linkbio/internal/sitebuild"
	"github.com/jonesrussell/linkbio/infrastructure/logger"
	"github.com/spf13/cobra"
)

var (
	sourceDir string
	outDir    string
	version   string
	debug     bool
)

func main() {
	// .env is optional; real environment variables win
	_ = godotenv.Load()

	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "sitebuild",
		Short:         "Build the static link page",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&sourceDir, "src", "site", "source directory")
	root.PersistentFlags().StringVar(&outDir, "out", "dist", "output directory, wiped on every build")
	root.PersistentFlags().StringVar(&version, "version", "", "cache-busting version (default: build time)")
	root.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	root.AddCommand(newBuildCommand(), newWatchCommand())
	return root
}

func newBuilder() (*sitebuild.Builder, logger.Logger, error) {
	level := "info"
	if debug {
		level = "debug"
	}
	log, err := logger.New(logger.Config{Level: level, Development: debug})
	if err != nil {
		return nil, nil, fmt.Errorf("create logger: %w", err)
	}

	cfg := sitebuild.ConfigFromEnv(sourceDir, outDir)
	cfg.Version = version
	if err = cfg.Validate(); err != nil {
		return nil, nil, err
	}
	return sitebuild.NewBuilder(cfg, log), log, nil
}

func newBuildCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "build",
		Short: "Rebuild the output directory once",
		RunE: func(cmd *cobra.Command, _ []string) error {
			b, log, err := newBuilder()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			res, err := b.Build()
			if err != nil {
				return err
			}
			sitebuild.RenderSummary(cmd.OutOrStdout(), res)
			return nil
		},
	}
}

func newWatchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Rebuild whenever the source directory changes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			b, log, err := newBuilder()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return b.Watch(ctx, sitebuild.DefaultDebounce, func(res *sitebuild.Result, buildErr error) {
				if buildErr != nil {
					log.Error("Build failed", logger.Error(buildErr))
					return
				}
				sitebuild.RenderSummary(cmd.OutOrStdout(), res)
			})
		},
	}
}

