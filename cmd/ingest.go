package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ecomarket/ecobot/internal/knowledge"
	"github.com/ecomarket/ecobot/internal/progress"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Download the EcoMarket documents and build the knowledge index",
	Long: `Downloads the configured knowledge sources, extracts and splits their
text, embeds the chunks and persists the index under knowledge.persist_dir.
An existing non-empty index is reused unless --force is given.`,
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().Bool("force", false, "discard the persisted index and rebuild it")
	ingestCmd.Flags().Bool("offline", false, "index the copies already downloaded without fetching")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	force, _ := cmd.Flags().GetBool("force")
	offline, _ := cmd.Flags().GetBool("offline")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger(cfg)
	defer func() { _ = log.Sync() }()

	_, n, err := buildIndex(context.Background(), cfg, progress.NewReporter(os.Stderr), log, force, offline)
	if errors.Is(err, knowledge.ErrIndexEmpty) {
		return fmt.Errorf("no knowledge source could be indexed; check knowledge.base_url and knowledge.sources")
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Knowledge index ready: %d chunks in %s\n", n, cfg.Knowledge.PersistDir)
	return nil
}
