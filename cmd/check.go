package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ecomarket/ecobot/internal/returns"
)

var checkCmd = &cobra.Command{
	Use:   "check <reference>",
	Short: "Check whether an order can be returned",
	Long: `Evaluates an order number (P-XXXX) or an 8-digit customer id against the
catalog and the return window, without starting a conversation.`,
	Args: cobra.ExactArgs(1),
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().Bool("json", false, "output the result as JSON")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger(cfg)
	defer func() { _ = log.Sync() }()

	evaluator, err := createEvaluator(cfg, log)
	if err != nil {
		return err
	}
	res := evaluator.Evaluate(args[0])

	out := cmd.OutOrStdout()
	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	printEligibility(out, res)
	return nil
}

func printEligibility(out io.Writer, res returns.EligibilityResult) {
	if !res.Eligible {
		fmt.Fprintf(out, "Not eligible (%s): %s\n", res.Code, res.Reason)
		return
	}
	fmt.Fprintf(out, "Eligible: order %s\n", res.OrderID)
	if res.CustomerID != "" {
		fmt.Fprintf(out, "  Customer:  %s %s\n", res.CustomerID, res.CustomerName)
	}
	fmt.Fprintf(out, "  Return id: %s\n", res.ReturnID)
	for _, p := range res.ReturnableProducts {
		fmt.Fprintf(out, "  - %s\n", p)
	}
}
