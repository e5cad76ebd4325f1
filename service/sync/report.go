package sync

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Outcome statuses carried per product into the run report.
const (
	StatusCreated          = "CREATED"
	StatusUpdated          = "UPDATED"
	StatusSkippedNoPrice   = "SKIPPED_NO_PRICE"
	StatusSkippedHasImages = "SKIPPED_HAS_IMAGES"
	StatusFailed           = "FAILED"
)

type ReportEntry struct {
	Timestamp time.Time
	Status    string
	Product   string
	Variant   string
	Detail    string
}

// Report accumulates per-product and per-variant outcomes for one run.
type Report struct {
	RunID   string
	Started time.Time
	Entries []ReportEntry
}

func NewReport() *Report {
	return &Report{
		RunID:   uuid.NewString(),
		Started: time.Now(),
	}
}

func (r *Report) Add(status, product, variant, detail string) {
	r.Entries = append(r.Entries, ReportEntry{
		Timestamp: time.Now(),
		Status:    status,
		Product:   product,
		Variant:   variant,
		Detail:    detail,
	})
}

// Save writes the report as CSV under dir and returns the file path. The
// file starts with a UTF-8 BOM so spreadsheet tools read Turkish text
// correctly.
func (r *Report) Save(dir string) (string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create report dir: %w", err)
	}

	name := fmt.Sprintf("ikas_automation_report_%s.csv", r.Started.Format("20060102-150405"))
	path := filepath.Join(dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create report file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}

	w := csv.NewWriter(f)
	if err := w.Write([]string{"timestamp", "status", "product", "variant", "detail"}); err != nil {
		return "", fmt.Errorf("write report header: %w", err)
	}
	for _, e := range r.Entries {
		record := []string{
			e.Timestamp.Format("2006-01-02 15:04:05"),
			e.Status,
			e.Product,
			e.Variant,
			e.Detail,
		}
		if err := w.Write(record); err != nil {
			return "", fmt.Errorf("write report row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("flush report: %w", err)
	}
	return path, nil
}
