// Package main runs the Google Business Profile autoposter: an HTTP service that
// composes, schedules and publishes local posts, plus one-shot commands for cron.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"gbp-autoposter/gbp"
	"gbp-autoposter/pkg/autopost"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := newRootCmd(logger).Execute(); err != nil {
		logger.Error("Command failed", "error", err)
		os.Exit(1)
	}
}

func newRootCmd(logger *slog.Logger) *cobra.Command {
	var envFile string

	setup := func(cmd *cobra.Command) (*app, error) {
		cfg, err := loadConfig(envFile)
		if err != nil {
			return nil, err
		}
		return newApp(cmd.Context(), cfg, logger)
	}

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			return a.server().ListenAndServe(cmd.Context(), a.cfg.Port)
		},
	}

	tickCmd := &cobra.Command{
		Use:   "tick",
		Short: "Run one scheduler tick and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			report, err := a.runner.Tick(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, report)
		},
	}

	var save bool
	export := &cobra.Command{
		Use:   "export-profiles",
		Short: "Merge remote locations into the stored profiles and print them",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			merged, err := exportProfiles(cmd.Context(), a, save)
			if err != nil {
				return err
			}
			return printJSON(cmd, merged)
		},
	}
	export.Flags().BoolVar(&save, "save", false, "also store the merged profiles")

	root := &cobra.Command{
		Use:           "gbp-autoposter",
		Short:         "Schedule and publish Google Business Profile posts",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serve.RunE,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			cmd.SetContext(ctx)
			cobra.OnFinalize(stop)
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the environment is parsed")
	root.CompletionOptions.DisableDefaultCmd = true
	root.AddCommand(serve, tickCmd, export)
	return root
}

func exportProfiles(ctx context.Context, a *app, save bool) ([]autopost.Profile, error) {
	locs, err := a.session.ListLocations(ctx)
	if err != nil {
		return nil, err
	}
	existing, err := a.store.Profiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("load profiles: %w", err)
	}
	merged, added := autopost.MergeLocations(existing, gbp.Profiles(locs))
	a.logger.Info("Merged remote locations", "locations", len(locs), "added", added, "total", len(merged))
	if save {
		if err := a.store.SaveProfiles(ctx, merged); err != nil {
			return nil, fmt.Errorf("save profiles: %w", err)
		}
	}
	return merged, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
