package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"pitchprice-backend/lib/browser"
	"pitchprice-backend/lib/configutil"
	"pitchprice-backend/lib/ratestore"
	"pitchprice-backend/lib/scraper/booking"
	"pitchprice-backend/lib/serviceutil"
	"pitchprice-backend/lib/telemetry"
	"pitchprice-backend/services/scrape"

	"github.com/spf13/cobra"
)

var (
	flagCities []string
	flagEvent  string
	flagDryRun bool
	flagDebug  bool
)

var rootCmd = &cobra.Command{
	Use:   "scraper",
	Short: "Scrapes nightly hotel rates from Booking.com search pages for the configured events and cities.",
	Run: func(cmd *cobra.Command, args []string) {
		run()
	},
}

func init() {
	rootCmd.Flags().StringSliceVar(&flagCities, "cities", nil, "restrict the run to these city names")
	rootCmd.Flags().StringVar(&flagEvent, "event", "", "restrict the run to one event id")
	rootCmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "plan the run without launching a browser")
	rootCmd.Flags().BoolVar(&flagDebug, "debug", false, "enable debug logging")
}

func run() {
	telemetry.InitSlog(flagDebug)

	ctx := serviceutil.SignalContext()
	tel, err := telemetry.SetupFromEnv(ctx, "scraper")
	if err != nil {
		serviceutil.Fatal("failed to setup telemetry", err)
	}
	defer tel.Shutdown(context.Background())
	telemetry.InstrumentPerfStats(ctx)

	cfg, err := configutil.ReadConfigWithDefaults("config.json5", scrape.DefaultConfig())
	if err != nil {
		serviceutil.Fatal("failed to read config", err)
	}
	if err := cfg.Validate(); err != nil {
		serviceutil.Fatal("invalid config", err)
	}

	filter := scrape.RunFilter{
		Cities: flagCities,
		Event:  flagEvent,
		DryRun: flagDryRun,
	}

	var controller *booking.Controller
	if !flagDryRun {
		if err := scrape.Preflight(ctx); err != nil {
			serviceutil.Fatal("preflight failed", err)
		}

		driver, err := browser.NewPlaywrightDriver()
		if err != nil {
			serviceutil.Fatal("failed to start browser driver", err)
		}
		controller = booking.NewController(booking.ControllerOptions{
			Driver: driver,
			Client: booking.NewClient(booking.ClientOptions{
				Settings: cfg.ScrapeSettings,
			}),
			Settings: cfg.ScrapeSettings,
		})
		if err := controller.Start(ctx); err != nil {
			serviceutil.Fatal("failed to start browser session", err)
		}
		defer controller.Close()
	}

	service := scrape.NewService(scrape.Options{
		Config:     cfg,
		Controller: controller,
	})

	out, err := service.Run(ctx, filter)
	if err != nil {
		serviceutil.Fatal("scrape run failed", err)
	}

	out.Report.Render(os.Stdout)

	if flagDryRun {
		slog.Info("dry run complete", "lookups_planned", out.Metadata.TotalLookups)
		return
	}

	runPath, err := scrape.WriteOutputs(out, cfg.Output.Dir)
	if err != nil {
		serviceutil.Fatal("failed to write run outputs", err)
	}
	slog.Info("wrote run output", "path", runPath)

	if cfg.Output.SqlitePath != "" {
		database, err := ratestore.Open(cfg.Output.SqlitePath)
		if err != nil {
			serviceutil.Fatal("failed to open rate history db", err)
		}
		defer database.Close()
		if err := scrape.PushStore(ctx, ratestore.NewStore(database), out); err != nil {
			serviceutil.Fatal("failed to push rate history", err)
		}
	}

	if cfg.Notify != nil {
		if err := scrape.Notify(*cfg.Notify, out); err != nil {
			slog.Error("failed to send run summary email", "err", err)
		}
	}

	slog.Info("scrape run complete",
		"results", len(out.Results),
		"errors", len(out.Errors),
		"with_rates", out.Report.WithRates,
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
