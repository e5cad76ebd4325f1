package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	syncService "ikas.GO/service/sync"
)

var (
	rulesFile  string
	probeBrand string
	probeModel string
)

var priceRulesCmd = &cobra.Command{
	Use:   "price:rules",
	Short: "Validate a price rules file and optionally probe one brand/model",
	Run: func(cmd *cobra.Command, args []string) {
		table, err := syncService.LoadRules(rulesFile)
		if err != nil {
			fmt.Printf("Rules failed: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("%d rule(s) loaded, %d row(s) dropped (no numeric sell price)\n", table.Len(), table.Dropped)

		if probeBrand != "" {
			rule, ok := table.Resolve(probeBrand, probeModel)
			if !ok {
				fmt.Printf("No rule for brand=%s model=%s\n", probeBrand, probeModel)
				os.Exit(1)
			}
			fmt.Printf("brand=%s model=%s -> sell=%.2f", probeBrand, probeModel, rule.SellPrice)
			if rule.DiscountPrice != nil {
				fmt.Printf(" discount=%.2f", *rule.DiscountPrice)
			}
			if rule.BuyPrice != nil {
				fmt.Printf(" buy=%.2f", *rule.BuyPrice)
			}
			fmt.Println()
		}
	},
}

func init() {
	priceRulesCmd.Flags().StringVarP(&rulesFile, "file", "f", "", "Price rules file, .xlsx or .csv (required)")
	priceRulesCmd.MarkFlagRequired("file")
	priceRulesCmd.Flags().StringVar(&probeBrand, "brand", "", "Probe: resolve this brand")
	priceRulesCmd.Flags().StringVar(&probeModel, "model", "", "Probe: resolve this model (with --brand)")
	rootCmd.AddCommand(priceRulesCmd)
}
