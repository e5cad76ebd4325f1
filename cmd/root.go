package cmd

import (
	"fmt"
	"math/rand"
	"os"

	"github.com/common-nighthawk/go-figure"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"ikas.GO/config"
	"ikas.GO/ikas"
)

var rootCmd = &cobra.Command{
	Use:   "ikas",
	Short: "ikas catalog automation CLI",
	Long:  "Synchronizes a locally staged product catalog (directories, images, price rules) with an ikas store.",
}

func Execute() {
	// ASCII banner on start (random font each run)
	fonts := []string{"banner", "big", "block", "slant", "standard", "small", "shadow", "speed", "thick", "doom", "larry3d", "puffy", "rectangles"}
	fig := figure.NewFigure("ikas Sync ->", fonts[rand.Intn(len(fonts))], true)
	fig.Print()

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// newLogger builds the CLI logger. Console output for humans, debug level
// only when DEBUG=true.
func newLogger() zerolog.Logger {
	level := zerolog.InfoLevel
	if config.AppConfig != nil && config.AppConfig.Debug {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()
}

func newClient(cfg *config.Config, logger zerolog.Logger) *ikas.Client {
	return ikas.NewClient(ikas.ClientOptions{
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
}

// maskSecret keeps the first and last two characters so operators can tell
// credentials apart in logs without exposing them.
func maskSecret(value string) string {
	if value == "" {
		return "(unset)"
	}
	if len(value) <= 6 {
		return "******"
	}
	return value[:2] + "****" + value[len(value)-2:]
}
