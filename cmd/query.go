package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ecomarket/ecobot/internal/config"
	"github.com/ecomarket/ecobot/internal/knowledge"
	"github.com/ecomarket/ecobot/internal/vectordb"
)

var queryCmd = &cobra.Command{
	Use:   "query <question>",
	Short: "Ask the EcoMarket knowledge base",
	Long: `Answers a question from the knowledge index built by "ecobot ingest".
With --search the matching chunks are listed instead of an answer.`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().Bool("search", false, "list matching chunks instead of answering")
	queryCmd.Flags().Int("limit", 0, "maximum number of chunks (default knowledge.top_k)")
	queryCmd.Flags().String("type", "", "filter chunks by type: faq, policy, terms, guide, text")
	queryCmd.Flags().Bool("json", false, "output search results as JSON")
	rootCmd.AddCommand(queryCmd)
}

type queryResult struct {
	Source     string  `json:"source"`
	Type       string  `json:"type"`
	Chunk      int     `json:"chunk"`
	Similarity float32 `json:"similarity"`
	Content    string  `json:"content"`
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	question := args[0]

	search, _ := cmd.Flags().GetBool("search")
	limit, _ := cmd.Flags().GetInt("limit")
	typeFilter, _ := cmd.Flags().GetString("type")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if limit <= 0 {
		limit = cfg.Knowledge.TopK
	}
	log := newLogger(cfg)
	defer func() { _ = log.Sync() }()

	store, err := loadIndex(ctx, cfg)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if !search {
		provider, err := createLLMProviderFromConfig(cfg, log)
		if err != nil {
			return fmt.Errorf("creating LLM provider: %w", err)
		}
		answerer := knowledge.NewRAGAnswerer(store, provider,
			knowledge.WithTopK(limit),
			knowledge.WithModel(cfg.Model),
			knowledge.WithLogger(log),
		)
		answer, err := answerer.Answer(ctx, question)
		if err != nil {
			return fmt.Errorf("answering: %w", err)
		}
		fmt.Fprintln(out, answer)
		return nil
	}

	var filter *vectordb.SearchFilter
	if typeFilter != "" {
		docType := vectordb.DocumentType(typeFilter)
		filter = &vectordb.SearchFilter{Type: &docType}
	}
	results, err := store.Search(ctx, question, limit, filter)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	rows := make([]queryResult, 0, len(results))
	for _, r := range results {
		rows = append(rows, queryResult{
			Source:     r.Document.Metadata.Source,
			Type:       string(r.Document.Metadata.Type),
			Chunk:      r.Document.Metadata.Chunk,
			Similarity: r.Similarity,
			Content:    r.Document.Content,
		})
	}
	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}
	if len(rows) == 0 {
		fmt.Fprintln(out, "No results found.")
		return nil
	}
	for i, r := range rows {
		fmt.Fprintf(out, "%d. %s [%s #%d] (%.3f)\n", i+1, r.Source, r.Type, r.Chunk, r.Similarity)
		fmt.Fprintf(out, "   %s\n\n", preview(r.Content, 200))
	}
	return nil
}

// loadIndex opens the persisted knowledge index without rebuilding it.
func loadIndex(ctx context.Context, cfg *config.Config) (*vectordb.ChromemStore, error) {
	embedder, err := createEmbedderFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}
	store, err := vectordb.NewChromemStore(embedder, cfg.Knowledge.Collection)
	if err != nil {
		return nil, fmt.Errorf("creating vector store: %w", err)
	}
	if err := store.Load(ctx, cfg.Knowledge.PersistDir); err != nil {
		return nil, fmt.Errorf("loading knowledge index from %s: %w\nRun `ecobot ingest` first", cfg.Knowledge.PersistDir, err)
	}
	if store.Count() == 0 {
		return nil, errors.New("knowledge index is empty; run `ecobot ingest` first")
	}
	return store, nil
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
