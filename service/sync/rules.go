package sync

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ConfigError aborts the run before any product is processed: bad or
// missing price file, unusable channel selection.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string { return "configuration error: " + e.Msg }

// PriceRule is one pricing row. An empty model means the rule applies to
// the whole brand.
type PriceRule struct {
	Brand         string
	Model         string
	SellPrice     float64
	DiscountPrice *float64
	BuyPrice      *float64
}

// RuleTable resolves prices with exact (brand, model) precedence over
// brand-wide fallback rules.
type RuleTable struct {
	exact         map[string]PriceRule
	brandFallback map[string]PriceRule
	Dropped       int
}

// Column header candidates, matched after diacritic folding so locale
// variants of the same header all hit.
var (
	brandHeaders    = []string{"Marka", "Brand"}
	modelHeaders    = []string{"Model"}
	sellHeaders     = []string{"Satış Fiyatı", "Satis Fiyati", "Satış Fiyati", "Satis Fiyatı", "Sell Price"}
	discountHeaders = []string{"İndirimli Fiyatı", "Indirimli Fiyati", "İndirimli Fiyati", "Indirimli Fiyatı", "Discount Price"}
	buyHeaders      = []string{"Alış Fiyatı", "Alis Fiyati", "Alış Fiyati", "Alis Fiyatı", "Buy Price"}
)

// LoadRules reads a tabular rule file (.xlsx or .csv) and builds the
// resolver. Rows without a brand or a numeric sell price are dropped here,
// not at resolve time.
func LoadRules(path string) (*RuleTable, error) {
	if path == "" {
		return nil, &ConfigError{Msg: "price rule file not set"}
	}
	if _, err := os.Stat(path); err != nil {
		return nil, &ConfigError{Msg: "price rule file not found: " + path}
	}

	var rows [][]string
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		rows, err = readExcelRows(path)
	default:
		rows, err = readCSVRows(path)
	}
	if err != nil {
		return nil, &ConfigError{Msg: fmt.Sprintf("price rule file unreadable: %v", err)}
	}
	if len(rows) == 0 {
		return nil, &ConfigError{Msg: "price rule file is empty"}
	}

	headers := rows[0]
	colBrand := findColumn(headers, brandHeaders)
	colModel := findColumn(headers, modelHeaders)
	colSell := findColumn(headers, sellHeaders)
	colDiscount := findColumn(headers, discountHeaders)
	colBuy := findColumn(headers, buyHeaders)

	var missing []string
	if colBrand < 0 {
		missing = append(missing, "Marka")
	}
	if colSell < 0 {
		missing = append(missing, "Satış Fiyatı")
	}
	if len(missing) > 0 {
		return nil, &ConfigError{Msg: "price rule file is missing columns: " + strings.Join(missing, ", ")}
	}

	table := &RuleTable{
		exact:         make(map[string]PriceRule),
		brandFallback: make(map[string]PriceRule),
	}

	for _, row := range rows[1:] {
		brand := strings.TrimSpace(cell(row, colBrand))
		if brand == "" {
			continue
		}
		sell, ok := parsePrice(cell(row, colSell))
		if !ok {
			table.Dropped++
			continue
		}
		model := normalizeModelText(cell(row, colModel))

		rule := PriceRule{
			Brand:         brand,
			Model:         model,
			SellPrice:     sell,
			DiscountPrice: parseOptionalPrice(cell(row, colDiscount)),
			BuyPrice:      parseOptionalPrice(cell(row, colBuy)),
		}

		brandKey := normalizeText(brand)
		modelKey := normalizeText(model)
		if modelKey != "" {
			table.exact[brandKey+"\x00"+modelKey] = rule
		} else {
			table.brandFallback[brandKey] = rule
		}
	}

	if len(table.exact) == 0 && len(table.brandFallback) == 0 {
		return nil, &ConfigError{Msg: "price rule file contains no valid rule"}
	}
	return table, nil
}

// Resolve returns the price rule for a (brand, model) pair: exact match
// first, then the brand-wide fallback.
func (t *RuleTable) Resolve(brand, model string) (PriceRule, bool) {
	brandKey := normalizeText(brand)
	modelKey := normalizeText(model)

	if brandKey != "" && modelKey != "" {
		if rule, ok := t.exact[brandKey+"\x00"+modelKey]; ok {
			return rule, true
		}
	}
	if brandKey != "" {
		if rule, ok := t.brandFallback[brandKey]; ok {
			return rule, true
		}
	}
	return PriceRule{}, false
}

// Len reports how many valid rules were loaded.
func (t *RuleTable) Len() int {
	return len(t.exact) + len(t.brandFallback)
}

func readExcelRows(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	return f.GetRows(sheets[0])
}

func readCSVRows(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	return reader.ReadAll()
}

// findColumn matches one of the candidate headers against the actual
// header row, tolerant of case, spacing and diacritics.
func findColumn(headers []string, candidates []string) int {
	index := make(map[string]int, len(headers))
	for i, h := range headers {
		index[foldText(h)] = i
	}
	for _, cand := range candidates {
		if i, ok := index[foldText(cand)]; ok {
			return i
		}
	}
	return -1
}

func cell(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return row[col]
}

// parsePrice accepts decimal commas; anything unparseable means no price.
func parsePrice(value string) (float64, bool) {
	text := strings.ReplaceAll(strings.TrimSpace(value), ",", ".")
	if text == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func parseOptionalPrice(value string) *float64 {
	if f, ok := parsePrice(value); ok {
		return &f
	}
	return nil
}
