// Command blocplanning expands staffing templates into day plannings over a
// date range, validates them against the supervision rule catalog, and
// persists the result.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/example/bloc-scheduler/internal/application"
	"github.com/example/bloc-scheduler/internal/bloc"
	"github.com/example/bloc-scheduler/internal/config"
	"github.com/example/bloc-scheduler/internal/expansion"
	"github.com/example/bloc-scheduler/internal/logging"
	"github.com/example/bloc-scheduler/internal/persistence/sqlite"
)

func main() {
	var (
		templatesFlag = flag.String("templates", "", "comma separated template identifiers to expand")
		fromFlag      = flag.String("from", "", "first date of the range (YYYY-MM-DD)")
		toFlag        = flag.String("to", "", "last date of the range (YYYY-MM-DD)")
		siteFlag      = flag.String("site", "", "site identifier (overrides BLOC_SITE_ID)")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "blocplanning: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel(cfg.LogLevel)}))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logging.ContextWithLogger(ctx, logger)

	if err := run(ctx, cfg, logger, *templatesFlag, *fromFlag, *toFlag, *siteFlag); err != nil {
		logger.Error("generation failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger, templatesFlag, fromFlag, toFlag, siteFlag string) error {
	siteID := cfg.SiteID
	if siteFlag != "" {
		siteID = siteFlag
	}

	templateIDs := splitList(templatesFlag)
	if len(templateIDs) == 0 {
		return fmt.Errorf("no templates given: use -templates")
	}

	dateRange, err := parseRange(fromFlag, toFlag)
	if err != nil {
		return err
	}

	pool, err := sqlite.Open(cfg.SQLiteDSN)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := pool.Close(); cerr != nil {
			logger.Error("failed to close database", "error", cerr)
		}
	}()

	if err := pool.Migrate(ctx); err != nil {
		return err
	}

	planningRepo := sqlite.NewPlanningRepository(pool)
	catalogRepo := sqlite.NewCatalogRepository(pool)
	templateRepo := sqlite.NewTemplateRepository(pool)
	absenceRepo := sqlite.NewAbsenceRepository(pool)

	expander := expansion.NewExpander(templateRepo, absenceRepo, planningRepo, uuid.NewString, time.Now)
	service := application.NewPlanningService(planningRepo, catalogRepo, absenceRepo, expander, uuid.NewString, time.Now, application.PlanningServiceOptions{
		CacheTTL:     cfg.CacheTTL,
		CacheEntries: cfg.CacheEntries,
		Logger:       logger,
	})

	generated, err := service.CreateOrUpdatePlanningsFromTemplates(ctx, application.GenerateParams{
		TemplateIDs: templateIDs,
		Range:       dateRange,
		SiteID:      siteID,
	})
	if err != nil {
		return err
	}

	var errorCount, warningCount int
	for _, item := range generated {
		errorCount += len(item.Validation.Errors)
		warningCount += len(item.Validation.Warnings)
		logger.Info("planning generated",
			"date", item.Planning.Date.String(),
			"rooms", len(item.Planning.Rooms),
			"errors", len(item.Validation.Errors),
			"warnings", len(item.Validation.Warnings),
		)
	}
	logger.Info("generation complete",
		"plannings", len(generated),
		"errors", errorCount,
		"warnings", warningCount,
	)
	return nil
}

func parseRange(fromFlag, toFlag string) (bloc.DateRange, error) {
	if fromFlag == "" || toFlag == "" {
		return bloc.DateRange{}, fmt.Errorf("both -from and -to are required")
	}
	start, err := bloc.ParseDate(fromFlag)
	if err != nil {
		return bloc.DateRange{}, fmt.Errorf("invalid -from: %w", err)
	}
	end, err := bloc.ParseDate(toFlag)
	if err != nil {
		return bloc.DateRange{}, fmt.Errorf("invalid -to: %w", err)
	}
	return bloc.DateRange{Start: start, End: end}, nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func logLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
