package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ecomarket/ecobot/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize ecobot configuration with an interactive wizard",
	Long:  `Runs an interactive wizard that picks the LLM provider, quality, classifier and knowledge sources and writes .ecobot.yml.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := config.RunWizard(cfgFile)
		return err
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
