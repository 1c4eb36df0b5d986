package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/devroom/devroom/internal/devai"
	"github.com/devroom/devroom/internal/output"
)

var askCmd = &cobra.Command{
	Use:     "ask [prompt...]",
	Short:   "Ask the DevAi assistant a question",
	Long:    `Sends a prompt to the DevAi assistant. With no arguments the prompt is read from stdin.`,
	GroupID: "tools",
	Example: `  devroom ask "why does my goroutine leak?"
  cat main.go | devroom ask`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if model, _ := cmd.Flags().GetString("model"); model != "" {
			cfg.DevAIModel = model
		}

		prompt, err := readPrompt(args, cmd.InOrStdin())
		if err != nil {
			return err
		}

		assistant, err := devai.New(cmd.Context(), cfg.GoogleAPIKey, cfg.DevAIModel)
		if err != nil {
			return err
		}
		answer, err := assistant.Ask(cmd.Context(), prompt)
		if err != nil {
			return err
		}

		if raw, _ := cmd.Flags().GetBool("raw"); !raw && output.IsTerminal(os.Stdout) {
			answer = output.RenderAnswer(answer)
		}
		fmt.Fprintln(cmd.OutOrStdout(), answer)
		return nil
	},
}

// readPrompt joins args, or reads r when there are none.
func readPrompt(args []string, r io.Reader) (string, error) {
	prompt := strings.Join(args, " ")
	if len(args) == 0 {
		b, err := io.ReadAll(r)
		if err != nil {
			return "", fmt.Errorf("read prompt: %w", err)
		}
		prompt = string(b)
	}
	if strings.TrimSpace(prompt) == "" {
		return "", errors.New("prompt required")
	}
	return prompt, nil
}

func init() {
	askCmd.Flags().String("model", "", "model id (default: from config)")
	askCmd.Flags().Bool("raw", false, "print the answer without markdown rendering")
	rootCmd.AddCommand(askCmd)
}
