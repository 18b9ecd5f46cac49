package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/ecomarket/ecobot/internal/assistant"
	"github.com/ecomarket/ecobot/internal/progress"
)

var exitWords = map[string]bool{"salir": true, "exit": true, "quit": true}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to the assistant in the terminal",
	Long: `Starts a single terminal conversation. Type an order number (P-XXXX) or
an 8-digit customer id to check a return, answer sí or no to confirm it, or
ask anything about EcoMarket. Type "salir" to leave.`,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger(cfg)
	defer func() { _ = log.Sync() }()

	rt, err := buildRuntime(ctx, cfg, progress.NewReporter(os.Stderr), log)
	if err != nil {
		return err
	}
	defer rt.Close()

	conversationID := assistant.NewID("cli")
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "EcoBot 🌱 escribe \"salir\" para terminar.")

	for {
		prompt := promptui.Prompt{Label: "Tú"}
		line, err := prompt.Run()
		if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("reading input: %w", err)
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if exitWords[strings.ToLower(line)] {
			break
		}

		reply, err := rt.conversations.Handle(ctx, conversationID, line)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "\nEcoBot: %s\n\n", reply.Text)
	}

	_ = rt.conversations.End(ctx, conversationID)
	fmt.Fprintln(out, "¡Hasta pronto! 🌿")
	return nil
}
