package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	syncService "ikas.GO/service/sync"
)

var (
	scanCatalog string
	scanRules   string
)

var catalogScanCmd = &cobra.Command{
	Use:   "catalog:scan",
	Short: "Scan the catalog directory and print what a sync would see (no remote calls)",
	Run: func(cmd *cobra.Command, args []string) {
		candidates, err := syncService.Scan(scanCatalog)
		if err != nil {
			fmt.Printf("Scan failed: %v\n", err)
			os.Exit(1)
		}

		var rules *syncService.RuleTable
		if scanRules != "" {
			rules, err = syncService.LoadRules(scanRules)
			if err != nil {
				fmt.Printf("Price rules failed: %v\n", err)
				os.Exit(1)
			}
		}

		priced := 0
		for _, c := range candidates {
			priceNote := ""
			if rules != nil {
				if rule, ok := rules.Resolve(c.Brand, c.Model); ok {
					priced++
					priceNote = fmt.Sprintf("  price=%.2f", rule.SellPrice)
				} else {
					priceNote = "  price=MISSING"
				}
			}
			fmt.Printf("%s  (brand=%s model=%s)%s\n", c.Name, c.Brand, c.Model, priceNote)
			for _, v := range c.Variants {
				fmt.Printf("    %-10s %-28s %d image(s)\n", v.Label, v.SKU, len(v.Images))
			}
		}

		fmt.Printf("\n%d product(s)\n", len(candidates))
		if rules != nil {
			fmt.Printf("%d with a price rule, %d without\n", priced, len(candidates)-priced)
		}
	},
}

func init() {
	catalogScanCmd.Flags().StringVarP(&scanCatalog, "catalog", "c", "", "Catalog root directory (required)")
	catalogScanCmd.MarkFlagRequired("catalog")
	catalogScanCmd.Flags().StringVarP(&scanRules, "rules", "r", "", "Optional price rules file to check coverage")
	rootCmd.AddCommand(catalogScanCmd)
}
