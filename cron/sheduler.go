package cron

import (
	"log"
	"os"

	"github.com/robfig/cron/v3"

	"ikas.GO/cron/jobs"
)

// Job holds schedule and run function.
type Job struct {
	Schedule string
	Run      func(...string)
}

// Jobs maps job names to their schedule and entrypoint. The table lives
// here rather than in config because jobs read the app config themselves.
func Jobs() map[string]Job {
	return map[string]Job{
		"catalogsync": {Schedule: scheduleEnv("CRON_CATALOG_SYNC", "0 3 * * *"), Run: jobs.CatalogSyncJob},
		// Add more jobs here
	}
}

func scheduleEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func StartCron() *cron.Cron {
	c := cron.New()
	for name, j := range Jobs() {
		run := j.Run
		_, err := c.AddFunc(j.Schedule, func() { run() })
		if err != nil {
			log.Fatalf("Failed to register job %s: %v", name, err)
		}
	}
	c.Start()
	return c
}
