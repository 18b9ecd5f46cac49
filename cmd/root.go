package cmd

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ecomarket/ecobot/internal/config"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "ecobot",
	Short: "EcoMarket returns assistant",
	Long: `EcoBot answers EcoMarket customers: it checks whether an order can be
returned, walks the customer through confirming the return, issues the
return label and refund, and answers general questions from the EcoMarket
knowledge base. It runs in the terminal, as an HTTP/WebSocket server with
Slack and Teams webhooks, or as an MCP tool server.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// API keys usually live in a .env next to the config; a missing file is fine.
		_ = godotenv.Load()
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", config.DefaultPath, "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
