package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ecomarket/ecobot/internal/assistant"
	"github.com/ecomarket/ecobot/internal/config"
	"github.com/ecomarket/ecobot/internal/knowledge"
	"github.com/ecomarket/ecobot/internal/progress"
	"github.com/ecomarket/ecobot/internal/returns"
	"github.com/ecomarket/ecobot/internal/vectordb"
)

// writeConfig saves an offline config (no knowledge, sqlite audit in a
// temp dir) and points cfgFile at it.
func writeConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Knowledge.Enabled = false
	cfg.Audit.Path = filepath.Join(dir, "audit.db")
	path := filepath.Join(dir, ".ecobot.yml")
	require.NoError(t, cfg.Save(path))

	prev := cfgFile
	cfgFile = path
	t.Cleanup(func() { cfgFile = prev })
	return cfg
}

func TestKnowledgeSources(t *testing.T) {
	assert.Equal(t, knowledge.DefaultSources, knowledgeSources(nil))

	got := knowledgeSources([]string{
		"Politica_de_Devoluciones_EcoMarket.pdf",
		" faq_ecomarket.json ",
		"",
		"Manual_de_Uso_Productos_Ecologicos.pdf",
	})
	require.Len(t, got, 3)
	assert.Equal(t, vectordb.DocTypePolicy, got[0].Type)
	assert.Equal(t, "faq_ecomarket.json", got[1].Name)
	assert.Equal(t, vectordb.DocTypeFAQ, got[1].Type)
	assert.Equal(t, vectordb.DocTypeGuide, got[2].Type)
}

func TestIndexOptions(t *testing.T) {
	cfg := config.DefaultConfig()
	opts := indexOptions(cfg, false, true)
	assert.Equal(t, cfg.Knowledge.BaseURL, opts.BaseURL)
	assert.Equal(t, cfg.Knowledge.PersistDir, opts.PersistDir)
	assert.True(t, opts.Offline)
	assert.False(t, opts.ForceRebuild)
	assert.Len(t, opts.Sources, len(cfg.Knowledge.Sources))

	cfg.Knowledge.ForceRebuild = true
	assert.True(t, indexOptions(cfg, false, false).ForceRebuild)
	cfg.Knowledge.ForceRebuild = false
	assert.True(t, indexOptions(cfg, true, false).ForceRebuild)
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	cfg := writeConfig(t)
	cfg.Returns.WindowDays = 0
	require.NoError(t, cfg.Save(cfgFile))

	_, err := loadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}

func TestBuildRuntimeWithoutKnowledge(t *testing.T) {
	writeConfig(t)
	cfg, err := loadConfig()
	require.NoError(t, err)

	ctx := context.Background()
	rt, err := buildRuntime(ctx, cfg, progress.Nop{}, zap.NewNop())
	require.NoError(t, err)
	defer rt.Close()

	assert.Nil(t, rt.provider)
	assert.NotNil(t, rt.auditStore)
	assert.False(t, rt.conversations.Assistant().KnowledgeEnabled())

	reply, err := rt.conversations.Handle(ctx, "cli-test", "P-9999")
	require.NoError(t, err)
	require.NotNil(t, reply.Eligibility)
	assert.Equal(t, returns.CodeNotFound, reply.Eligibility.Code)

	reply, err = rt.conversations.Handle(ctx, "cli-test", "¿cómo reciclo los envases?")
	require.NoError(t, err)
	assert.Contains(t, reply.Text, "base de conocimiento")
}

func TestBuildRuntimePinnedDate(t *testing.T) {
	cfg := writeConfig(t)
	cfg.Returns.AsOf = "2025-10-25"
	require.NoError(t, cfg.Save(cfgFile))
	cfg, err := loadConfig()
	require.NoError(t, err)

	res := mustEvaluator(t, cfg).Evaluate("P-1003")
	assert.True(t, res.Eligible, res.Reason)

	ctx := context.Background()
	rt, err := buildRuntime(ctx, cfg, progress.Nop{}, zap.NewNop())
	require.NoError(t, err)
	defer rt.Close()

	reply, err := rt.conversations.Handle(ctx, "cli-pinned", "P-1003")
	require.NoError(t, err)
	require.NotNil(t, reply.Eligibility)
	assert.Equal(t, returns.CodeEligible, reply.Eligibility.Code)

	// The pinned date does not freeze the greeting; it follows the wall
	// clock in the returns time zone.
	loc, err := cfg.Returns.Location()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(reply.Text, assistant.Greeting(time.Now().In(loc))), reply.Text)

	cfg.Returns.AsOf = "2030-01-01"
	res = mustEvaluator(t, cfg).Evaluate("P-1003")
	assert.Equal(t, returns.CodeWindowExpired, res.Code)
}

func mustEvaluator(t *testing.T, cfg *config.Config) *returns.Evaluator {
	t.Helper()
	e, err := createEvaluator(cfg, zap.NewNop())
	require.NoError(t, err)
	return e
}

func TestLoadConfigRejectsBadAsOf(t *testing.T) {
	cfg := writeConfig(t)
	cfg.Returns.AsOf = "25-10-2025"
	require.NoError(t, cfg.Save(cfgFile))

	_, err := loadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "returns.as_of")
}

func TestSweepInterval(t *testing.T) {
	assert.Equal(t, 15*time.Minute, sweepInterval(30*time.Minute))
	assert.Equal(t, 5*time.Minute, sweepInterval(24*time.Hour))
	assert.Equal(t, time.Second, sweepInterval(time.Second))
}

func TestBuildRuntimeLLMClassifierNeedsProvider(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	cfg := writeConfig(t)
	cfg.Classifier.Mode = config.ClassifierLLM

	_, err := buildRuntime(context.Background(), cfg, progress.Nop{}, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "creating LLM provider")
}

func TestCheckCommandJSON(t *testing.T) {
	writeConfig(t)
	var out bytes.Buffer
	checkCmd.SetOut(&out)
	t.Cleanup(func() { checkCmd.SetOut(nil) })
	require.NoError(t, checkCmd.Flags().Set("json", "true"))
	t.Cleanup(func() { _ = checkCmd.Flags().Set("json", "false") })

	require.NoError(t, runCheck(checkCmd, []string{"abc"}))

	var res returns.EligibilityResult
	require.NoError(t, json.Unmarshal(out.Bytes(), &res))
	assert.False(t, res.Eligible)
	assert.Equal(t, returns.CodeInvalidFormat, res.Code)
}

func TestPrintEligibility(t *testing.T) {
	var out bytes.Buffer
	printEligibility(&out, returns.EligibilityResult{
		Eligible:           true,
		OrderID:            "P-1003",
		CustomerID:         "12345678",
		CustomerName:       "Ana",
		ReturnID:           "R-1",
		ReturnableProducts: []string{"Cepillo de bambú"},
	})
	text := out.String()
	assert.Contains(t, text, "Eligible: order P-1003")
	assert.Contains(t, text, "12345678 Ana")
	assert.Contains(t, text, "- Cepillo de bambú")

	out.Reset()
	printEligibility(&out, returns.EligibilityResult{Code: returns.CodeNotFound, Reason: "No encontramos el pedido."})
	assert.True(t, strings.HasPrefix(out.String(), "Not eligible (not_found)"))
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "corto", preview("corto", 10))
	assert.Equal(t, "ñañ...", preview("ñañaña", 3))
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	versionCmd.SetOut(&out)
	t.Cleanup(func() { versionCmd.SetOut(nil) })
	versionCmd.Run(versionCmd, nil)
	assert.Equal(t, "ecobot dev\n", out.String())
}

func TestCreateEmbedderFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.EmbeddingProvider = config.ProviderOllama
	cfg.EmbeddingModel = "nomic-embed-text"
	e, err := createEmbedderFromConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, "ollama/nomic-embed-text", e.Name())

	t.Setenv("OPENAI_API_KEY", "")
	cfg.EmbeddingProvider = config.ProviderOpenAI
	_, err = createEmbedderFromConfig(cfg)
	assert.ErrorContains(t, err, "OPENAI_API_KEY")
}
