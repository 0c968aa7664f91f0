package main

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/anatolykoptev/go-artstyle"
)

func newIndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Build or inspect the reference index",
		Long: `The reference index holds one feature vector per corpus image. It is built
on first use and persisted under --index-dir so later runs can reuse it.

Examples:
  artstyle index build --corpus-root ./dataset
  artstyle index build --force --extractor cvhsv
  artstyle index info --json`,
	}
	cmd.AddCommand(newIndexBuildCmd(), newIndexInfoCmd())
	return cmd
}

func newIndexBuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the reference index from the corpus",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			force, _ := cmd.Flags().GetBool("force")

			svc, _, err := newService(cmd)
			if err != nil {
				return err
			}
			defer svc.Close()

			ctx := cmd.Context()
			start := time.Now()
			if force {
				_, err = svc.Rebuild(ctx)
			} else {
				err = svc.Warm(ctx)
			}
			if err != nil {
				return fmt.Errorf("index build failed: %w", err)
			}

			info := svc.Info()
			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), info)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Index ready in %s: %d vectors, method %s (dim %d)\n",
				time.Since(start).Round(time.Millisecond), info.Vectors, info.ExtractionMethod, info.Dim)
			printCounts(cmd, info.Labels, info.SampleCounts, info.CorpusCounts)
			return nil
		},
	}
	cmd.Flags().Bool("force", false, "Rebuild even if a persisted index matches")
	return cmd
}

func newIndexInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show the persisted reference index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			s, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			meta, err := artstyle.ReadIndexMeta(s.IndexDir)
			if err != nil {
				return fmt.Errorf("no usable index in %s: %w", s.IndexDir, err)
			}

			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), meta)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Index: %s\n", s.IndexDir)
			fmt.Fprintf(out, "  Method:  %s (dim %d)\n", meta.Method, meta.Dim)
			fmt.Fprintf(out, "  Vectors: %d\n", meta.Count)
			fmt.Fprintf(out, "  Built:   %s\n", time.Unix(meta.BuiltAt, 0).UTC().Format(time.RFC3339))
			if meta.DatasetDir != "" {
				fmt.Fprintf(out, "  Corpus:  %s\n", meta.DatasetDir)
			}
			printCounts(cmd, meta.LabelNames, meta.LabelCounts, meta.CorpusCounts)
			return nil
		},
	}
}

func printCounts(cmd *cobra.Command, labels []string, samples, corpus map[string]int) {
	labels = append([]string(nil), labels...)
	sort.Strings(labels)
	for _, l := range labels {
		fmt.Fprintf(cmd.OutOrStdout(), "  %-12s %5d samples (%d in corpus)\n", l, samples[l], corpus[l])
	}
}
