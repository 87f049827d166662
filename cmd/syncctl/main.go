package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/sepatuku/inventory_api/internal/cache"
	"github.com/sepatuku/inventory_api/internal/config"
	"github.com/sepatuku/inventory_api/internal/database"
	"github.com/sepatuku/inventory_api/internal/feed"
	"github.com/sepatuku/inventory_api/internal/repository"
	"github.com/sepatuku/inventory_api/internal/service"
	"github.com/sepatuku/inventory_api/internal/utils"
	"github.com/sepatuku/inventory_api/pkg/ginee"
)

// syncctl is the operational CLI for reconciliation runs. A dry run exits 0
// even when rows errored; only a run that could not start exits non-zero.
func main() {
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Timestamp().Logger()

	app := &cli.App{
		Name:  "syncctl",
		Usage: "inventory reconciliation operations",
		Commands: []*cli.Command{
			{
				Name:  "sync",
				Usage: "run a reconciliation (preview by default with --dry-run)",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "source", Value: "catalog", Usage: "catalog or marketplace"},
					&cli.BoolFlag{Name: "dry-run", Usage: "preview only, no writes"},
					&cli.BoolFlag{Name: "force", Usage: "bypass the recently-synced guard"},
					&cli.BoolFlag{Name: "clean", Usage: "delete catalog SKUs missing from the feed"},
				},
				Action: runSync,
			},
			{
				Name:  "status",
				Usage: "print recent sync runs",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Value: 10, Usage: "number of runs to show"},
				},
				Action: runStatus,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newEnv wires the service stack the same way the API server does.
func newEnv() (*service.SyncService, *repository.SyncLogRepository, *cache.JobLock, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("load configuration: %w", err)
	}

	db, err := database.Connect(&cfg.DB)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	redisClient, err := cache.NewRedisClient(&cfg.Redis)
	if err != nil {
		db.Close()
		return nil, nil, nil, nil, fmt.Errorf("redis connection failed: %w", err)
	}

	sheetClient := feed.NewSheetClient(cfg.Feed.SheetURL, cfg.Feed.Timeout)
	gineeClient := ginee.NewClient(ginee.Config{
		BaseURL:   cfg.Ginee.BaseURL,
		AccessKey: cfg.Ginee.AccessKey,
		SecretKey: cfg.Ginee.SecretKey,
		Country:   cfg.Ginee.Country,
	})

	productRepo := repository.NewProductRepository(db)
	syncLogRepo := repository.NewSyncLogRepository(db)
	txManager := database.NewTxManager(db)

	syncSvc := service.NewSyncService(sheetClient, gineeClient, productRepo, syncLogRepo, txManager, cfg.Sync.ChunkSize, cfg.Sync.Guard)
	jobLock := cache.NewJobLock(redisClient)

	cleanup := func() {
		redisClient.Close()
		db.Close()
	}
	return syncSvc, syncLogRepo, jobLock, cleanup, nil
}

func runSync(c *cli.Context) error {
	syncSvc, _, jobLock, cleanup, err := newEnv()
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	defer cleanup()

	ctx := context.Background()
	source := c.String("source")
	dryRun := c.Bool("dry-run")
	opts := service.SyncOptions{
		Force:        c.Bool("force"),
		CleanOldData: c.Bool("clean"),
	}

	if !dryRun {
		// Same named lock as the scheduled worker, so an operator-triggered
		// apply never overlaps a scheduled one.
		acquired, err := jobLock.Acquire(ctx, "inventory-sync", 10*time.Minute)
		if err != nil {
			return cli.Exit(fmt.Sprintf("acquire sync lock: %v", err), 1)
		}
		if !acquired {
			return cli.Exit(fmt.Sprintf("%s: another sync is already running", utils.ErrSyncInProgress), 1)
		}
		defer jobLock.Release(ctx, "inventory-sync")
	}

	var result *service.SyncResult
	switch source {
	case "catalog":
		if dryRun {
			result, err = syncSvc.PreviewCatalog(ctx)
		} else {
			result, err = syncSvc.ApplyCatalog(ctx, opts)
		}
	case "marketplace":
		if dryRun {
			result, err = syncSvc.PreviewMarketplace(ctx)
		} else {
			result, err = syncSvc.ApplyMarketplace(ctx, opts)
		}
	default:
		return cli.Exit("source must be catalog or marketplace", 1)
	}

	if errors.Is(err, utils.ErrRecentlySynced) {
		return cli.Exit(err.Error()+" (use --force to bypass)", 1)
	}
	if err != nil && (result == nil || !result.Success()) {
		return cli.Exit(fmt.Sprintf("sync failed: %v", err), 1)
	}

	printResult(result)
	return nil
}

func runStatus(c *cli.Context) error {
	_, syncLogRepo, _, cleanup, err := newEnv()
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	defer cleanup()

	logs, err := syncLogRepo.GetRecent(context.Background(), c.Int("limit"))
	if err != nil {
		return cli.Exit(fmt.Sprintf("load sync status: %v", err), 1)
	}

	if len(logs) == 0 {
		fmt.Println("no sync runs recorded")
		return nil
	}
	for _, entry := range logs {
		fmt.Printf("%s  %-12s %-8s created=%-5d updated=%-5d deleted=%-5d skipped=%-5d errors=%-5d %.1fs\n",
			entry.StartedAt.Format(time.RFC3339),
			entry.Kind,
			entry.Status,
			entry.CreatedCount,
			entry.UpdatedCount,
			entry.DeletedCount,
			entry.SkippedCount,
			entry.ErrorCount,
			entry.DurationSeconds,
		)
	}
	return nil
}

func printResult(result *service.SyncResult) {
	mode := "apply"
	if result.Preview {
		mode = "dry-run"
	}
	fmt.Printf("%s %s: status=%s created=%d updated=%d deleted=%d skipped=%d errors=%d\n",
		result.Kind, mode, result.Status,
		result.Stats.Created, result.Stats.Updated, result.Stats.Deleted, result.Stats.Skipped, result.Stats.Errors,
	)
	for _, e := range result.Errors {
		if e.Row > 0 {
			fmt.Printf("  row %d (%s): %s\n", e.Row, e.SKU, e.Reason)
		} else {
			fmt.Printf("  %s: %s\n", e.SKU, e.Reason)
		}
	}
	for _, d := range result.Diagnostics {
		fmt.Printf("  %s: %s\n", d.SKU, d.Reason)
	}
	if len(result.Stale) > 0 {
		fmt.Printf("  stale (not deleted): %d SKUs\n", len(result.Stale))
	}
	if len(result.MarketplaceOnly) > 0 {
		fmt.Printf("  marketplace-only (not created): %d MSKUs\n", len(result.MarketplaceOnly))
	}
}
