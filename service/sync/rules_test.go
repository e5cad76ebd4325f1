package sync

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeRules(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "prices.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadRules_CSV(t *testing.T) {
	path := writeRules(t, strings.Join([]string{
		"Marka,Model,Satış Fiyatı,İndirimli Fiyatı,Alış Fiyatı",
		"RAYBAN,3025,2400,,1200",
		"RAYBAN,,1900,1500,",
		"OSSE,2360.0,\"949,50\",,",
		"OSSE,9999,kayıp,,",
		",1111,500,,",
	}, "\n"))

	table, err := LoadRules(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if table.Len() != 3 {
		t.Errorf("Len = %d, want 3", table.Len())
	}
	if table.Dropped != 1 {
		t.Errorf("Dropped = %d, want 1 (unparseable sell price)", table.Dropped)
	}

	rule, ok := table.Resolve("rayban", "3025")
	if !ok || rule.SellPrice != 2400 {
		t.Fatalf("exact resolve = %+v ok=%v", rule, ok)
	}
	if rule.BuyPrice == nil || *rule.BuyPrice != 1200 {
		t.Errorf("buy price = %v", rule.BuyPrice)
	}
	if rule.DiscountPrice != nil {
		t.Errorf("discount = %v, want nil for blank cell", rule.DiscountPrice)
	}

	// Unknown model falls back to the brand-wide rule.
	rule, ok = table.Resolve("RAYBAN", "777")
	if !ok || rule.SellPrice != 1900 {
		t.Fatalf("brand fallback = %+v ok=%v", rule, ok)
	}
	if rule.DiscountPrice == nil || *rule.DiscountPrice != 1500 {
		t.Errorf("fallback discount = %v", rule.DiscountPrice)
	}

	// Spreadsheet "2360.0" must match the scanned model "2360", and the
	// decimal comma must parse.
	rule, ok = table.Resolve("osse", "2360")
	if !ok || rule.SellPrice != 949.50 {
		t.Fatalf("excel float model = %+v ok=%v", rule, ok)
	}

	if _, ok := table.Resolve("persol", "714"); ok {
		t.Error("unknown brand resolved")
	}
	if _, ok := table.Resolve("", ""); ok {
		t.Error("empty lookup resolved")
	}
}

func TestLoadRules_EnglishHeaders(t *testing.T) {
	path := writeRules(t, "Brand,Model,Sell Price\nRAYBAN,3025,2400\n")
	table, err := LoadRules(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, ok := table.Resolve("RAYBAN", "3025"); !ok {
		t.Error("rule not found with english headers")
	}
}

func TestLoadRules_MissingRequiredColumns(t *testing.T) {
	path := writeRules(t, "Model,İndirimli Fiyatı\n3025,100\n")
	_, err := LoadRules(path)
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("err = %v, want ConfigError", err)
	}
	if !strings.Contains(cfgErr.Msg, "Marka") || !strings.Contains(cfgErr.Msg, "Satış Fiyatı") {
		t.Errorf("message does not name missing columns: %q", cfgErr.Msg)
	}
}

func TestLoadRules_NoUsableRule(t *testing.T) {
	path := writeRules(t, "Marka,Satış Fiyatı\nRAYBAN,abc\n")
	_, err := LoadRules(path)
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("err = %v, want ConfigError", err)
	}
}

func TestLoadRules_FileMissing(t *testing.T) {
	_, err := LoadRules(filepath.Join(t.TempDir(), "nope.csv"))
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("err = %v, want ConfigError", err)
	}
}
