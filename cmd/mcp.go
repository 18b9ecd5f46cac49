package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	mcpserver "github.com/ecomarket/ecobot/internal/mcp"
	"github.com/ecomarket/ecobot/internal/progress"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server for agent integration",
	Long: `Starts a Model Context Protocol (MCP) server on stdio exposing the
check_return_eligibility, confirm_return and ask_knowledge_base tools, so an
external orchestrator can drive the return flow.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log := newLogger(cfg)
		defer func() { _ = log.Sync() }()

		// stdout carries the protocol; progress goes to the log.
		rt, err := buildRuntime(context.Background(), cfg, &progress.LogReporter{Logger: log}, log)
		if err != nil {
			return err
		}
		defer rt.Close()

		mcpserver.Version = Version
		fmt.Fprintf(os.Stderr, "ecobot MCP server started on stdio (knowledge=%t)\n",
			rt.conversations.Assistant().KnowledgeEnabled())

		srv := mcpserver.NewServer(rt.conversations, log)
		if err := srv.Serve(); err != nil {
			log.Error("mcp server stopped", zap.Error(err))
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
