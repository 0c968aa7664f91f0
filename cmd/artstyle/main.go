package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0-dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "artstyle",
		Short: "Folk-art style classification",
		Long: `artstyle classifies artwork into folk-art styles (Warli, Madhubani,
Pithora, ...) by comparing it against a labeled reference corpus.

Settings come from flags, ARTSTYLE_* environment variables and an optional
artstyle.yaml config file, in that order of precedence.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "Config file (default ./artstyle.yaml if present)")
	pf.Bool("json", false, "Output as JSON")
	pf.String("log-level", "", "Log level: debug, info, warn, error")
	pf.String("corpus-root", "", "Reference corpus directory, one sub-directory per style")
	pf.String("manifest", "", "YAML manifest of styles, folders, keywords and suggestions")
	pf.String("index-dir", "", "Directory for the persisted reference index")
	pf.String("extractor", "", "Feature extractor: auto, mobilenetv2 or cvhsv")
	pf.String("model-path", "", "ONNX MobileNetV2 model file")

	rootCmd.AddCommand(
		newVersionCmd(),
		newIndexCmd(),
		newClassifyCmd(),
		newAnalyzeCmd(),
		newServeCmd(),
	)
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), map[string]string{"version": version})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "artstyle version %s\n", version)
			return nil
		},
	}
}

// newLogger writes text logs to w at the named level. Unknown levels are an
// error; empty means info.
func newLogger(w io.Writer, level string) (*slog.Logger, error) {
	var l slog.Level
	if level != "" {
		if err := l.UnmarshalText([]byte(level)); err != nil {
			return nil, fmt.Errorf("invalid log level %q", level)
		}
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: l})), nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
