package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"ikas.GO/config"
	syncService "ikas.GO/service/sync"
)

var (
	syncCatalog    string
	syncRules      string
	syncLimit      int
	syncSkipImages bool
	syncReportDir  string
)

var catalogSyncCmd = &cobra.Command{
	Use:   "catalog:sync",
	Short: "Synchronize the staged catalog directory with the ikas store",
	Run: func(cmd *cobra.Command, args []string) {
		config.LoadAppConfig()
		cfg := config.AppConfig
		logger := newLogger()

		if syncCatalog == "" {
			syncCatalog = cfg.CatalogRoot
		}
		if syncRules == "" {
			syncRules = cfg.RulesPath
		}
		if syncCatalog == "" || syncRules == "" {
			fmt.Println("catalog root and price rules are required (--catalog/--rules or IKAS_CATALOG_ROOT/IKAS_PRICE_RULES)")
			os.Exit(1)
		}
		reportDir := syncReportDir
		if reportDir == "" {
			reportDir = cfg.ReportDir
		}

		logger.Debug().
			Str("store", cfg.StoreName).
			Str("token", maskSecret(cfg.MCPToken)).
			Str("client_id", maskSecret(cfg.ClientID)).
			Msg("credentials loaded")

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		client := newClient(cfg, logger)
		svc := syncService.NewService(client, cfg, logger, func(ev syncService.ProgressEvent) {
			switch ev.Stage {
			case "product":
				fmt.Printf("  [%d/%d] %s\n", ev.Index, ev.Total, ev.Product)
			case "product_done":
				fmt.Printf("  [%d/%d] %s -> %s\n", ev.Index, ev.Total, ev.Product, ev.Status)
			}
		})

		result, err := svc.Run(ctx, syncService.Options{
			CatalogRoot: syncCatalog,
			RulesPath:   syncRules,
			ReportDir:   reportDir,
			Limit:       syncLimit,
			SkipImages:  syncSkipImages,
		})
		if err != nil {
			fmt.Printf("Sync failed: %v\n", err)
			os.Exit(1)
		}

		sum := result.Summary
		fmt.Printf(`
=== Sync Report ===
Products:         %d
Created:          %d
Updated:          %d
Skipped:          %d
Failed:           %d
Images uploaded:  %d
Images skipped:   %d (variants already had images)
Variant failures: %d
Auth fallback:    %v
Report file:      %s
===================
`, sum.Total, sum.Created, sum.Updated, sum.Skipped, sum.Failed,
			sum.UploadedImages, sum.SkippedHasImages, sum.VariantFailures,
			result.FallbackUsed, result.ReportPath)

		if sum.Failed > 0 {
			os.Exit(1)
		}
	},
}

func init() {
	catalogSyncCmd.Flags().StringVarP(&syncCatalog, "catalog", "c", "", "Catalog root directory (default IKAS_CATALOG_ROOT)")
	catalogSyncCmd.Flags().StringVarP(&syncRules, "rules", "r", "", "Price rules file, .xlsx or .csv (default IKAS_PRICE_RULES)")
	catalogSyncCmd.Flags().IntVar(&syncLimit, "limit", 0, "Process at most N products (0 = all)")
	catalogSyncCmd.Flags().BoolVar(&syncSkipImages, "skip-images", false, "Skip image uploads")
	catalogSyncCmd.Flags().StringVar(&syncReportDir, "report-dir", "", "Directory for the CSV run report (default REPORT_DIR)")
	rootCmd.AddCommand(catalogSyncCmd)
}
