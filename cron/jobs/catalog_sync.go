package jobs

import (
	"context"
	"os"

	"github.com/rs/zerolog"

	"ikas.GO/config"
	"ikas.GO/ikas"
	syncService "ikas.GO/service/sync"
)

// CatalogSyncJob runs a full catalog synchronization from the scheduler.
// Catalog root and price rules come from the environment; a missing root is
// logged and the tick is skipped rather than crashing the scheduler.
func CatalogSyncJob(args ...string) {
	logger := zerolog.New(os.Stderr).With().Timestamp().Str("job", "catalogsync").Logger()

	config.LoadAppConfig()
	cfg := config.AppConfig
	if cfg.CatalogRoot == "" || cfg.RulesPath == "" {
		logger.Error().Msg("IKAS_CATALOG_ROOT and IKAS_PRICE_RULES must be set for scheduled sync")
		return
	}

	client := ikas.NewClient(ikas.ClientOptions{
		Credentials: ikas.Credentials{
			Token:        cfg.MCPToken,
			StoreName:    cfg.StoreName,
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
		},
		ConnectTimeout: cfg.ConnectTimeout,
		ReadTimeout:    cfg.ReadTimeout,
		TokenRetries:   cfg.TokenRetries,
		Logger:         logger,
	})

	svc := syncService.NewService(client, cfg, logger, nil)
	result, err := svc.Run(context.Background(), syncService.Options{
		CatalogRoot: cfg.CatalogRoot,
		RulesPath:   cfg.RulesPath,
		ReportDir:   cfg.ReportDir,
	})
	if err != nil {
		logger.Error().Err(err).Msg("scheduled sync failed")
		return
	}
	logger.Info().
		Int("total", result.Summary.Total).
		Int("created", result.Summary.Created).
		Int("updated", result.Summary.Updated).
		Int("failed", result.Summary.Failed).
		Str("report", result.ReportPath).
		Msg("scheduled sync finished")
}
