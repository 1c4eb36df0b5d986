package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/devroom/devroom/internal/output"
	"github.com/devroom/devroom/internal/piston"
)

// languageByExt maps file extensions to Piston language names.
var languageByExt = map[string]string{
	".c":     "c",
	".cpp":   "c++",
	".cc":    "c++",
	".cs":    "csharp",
	".go":    "go",
	".java":  "java",
	".js":    "javascript",
	".kt":    "kotlin",
	".php":   "php",
	".py":    "python",
	".rb":    "ruby",
	".rs":    "rust",
	".sh":    "bash",
	".swift": "swift",
	".ts":    "typescript",
}

// detectLanguage guesses the language from a file name.
func detectLanguage(path string) (string, bool) {
	lang, ok := languageByExt[strings.ToLower(filepath.Ext(path))]
	return lang, ok
}

var runCmd = &cobra.Command{
	Use:     "run <file>",
	Short:   "Execute a source file on the code runner",
	GroupID: "tools",
	Args:    cobra.ExactArgs(1),
	Example: `  devroom run main.py
  devroom run --language c++ --stdin input.txt solution.cc`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		code, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read source: %w", err)
		}

		lang, _ := cmd.Flags().GetString("language")
		if lang == "" {
			detected, ok := detectLanguage(args[0])
			if !ok {
				return fmt.Errorf("cannot detect language of %s, pass --language", args[0])
			}
			lang = detected
		}
		version, _ := cmd.Flags().GetString("version")

		var stdin string
		if path, _ := cmd.Flags().GetString("stdin"); path != "" {
			b, err := readInput(path, cmd.InOrStdin())
			if err != nil {
				return err
			}
			stdin = b
		}

		client := piston.New(cfg.PistonURL, cfg.PistonTimeout)
		resp, err := client.Execute(cmd.Context(), piston.Request{
			Language: lang,
			Version:  version,
			Code:     string(code),
			Stdin:    stdin,
		})
		if err != nil {
			return err
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return output.JSON(resp)
		}
		fmt.Fprintln(cmd.OutOrStdout(), output.FormatExecution(resp))
		return nil
	},
}

// readInput reads a file, or r when path is "-".
func readInput(path string, r io.Reader) (string, error) {
	var b []byte
	var err error
	if path == "-" {
		b, err = io.ReadAll(r)
	} else {
		b, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("read stdin file: %w", err)
	}
	return string(b), nil
}

var runtimesCmd = &cobra.Command{
	Use:     "runtimes [filter]",
	Short:   "List languages available on the code runner",
	GroupID: "tools",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		runtimes, err := piston.New(cfg.PistonURL, cfg.PistonTimeout).Runtimes(cmd.Context())
		if err != nil {
			return err
		}
		if len(args) == 1 {
			runtimes = filterRuntimes(runtimes, args[0])
		}
		sort.Slice(runtimes, func(i, j int) bool {
			if runtimes[i].Language != runtimes[j].Language {
				return runtimes[i].Language < runtimes[j].Language
			}
			return runtimes[i].Version < runtimes[j].Version
		})

		w := cmd.OutOrStdout()
		for _, rt := range runtimes {
			line := fmt.Sprintf("%-14s %s", rt.Language, rt.Version)
			if len(rt.Aliases) > 0 {
				line += "  (" + strings.Join(rt.Aliases, ", ") + ")"
			}
			fmt.Fprintln(w, line)
		}
		return nil
	},
}

// filterRuntimes keeps runtimes whose language or an alias contains q.
func filterRuntimes(runtimes []piston.Runtime, q string) []piston.Runtime {
	q = strings.ToLower(q)
	var out []piston.Runtime
	for _, rt := range runtimes {
		if strings.Contains(rt.Language, q) {
			out = append(out, rt)
			continue
		}
		for _, a := range rt.Aliases {
			if strings.Contains(a, q) {
				out = append(out, rt)
				break
			}
		}
	}
	return out
}

func init() {
	runCmd.Flags().StringP("language", "l", "", "language name (default: detected from the file extension)")
	runCmd.Flags().String("version", piston.DefaultVersion, "language version")
	runCmd.Flags().String("stdin", "", `file fed to the program's stdin ("-" for this process's stdin)`)
	runCmd.Flags().Bool("json", false, "output the raw execution result as JSON")
	rootCmd.AddCommand(runCmd, runtimesCmd)
}
