package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/anatolykoptev/go-artstyle"
)

// classifyOutput is one classified input in --json output.
type classifyOutput struct {
	Source      string                         `json:"source"`
	Result      *artstyle.ClassificationResult `json:"result,omitempty"`
	Degraded    bool                           `json:"degraded,omitempty"`
	Suggestions []string                       `json:"suggestions,omitempty"`
	Error       string                         `json:"error,omitempty"`
}

func newClassifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classify <file|url>...",
		Short: "Classify artwork images",
		Long: `Classify one or more images, given as local paths or http(s) URLs. The file
name is used as a weak hint, so descriptive names help when the corpus is
unavailable.

Examples:
  artstyle classify painting.jpg
  artstyle classify --strategy comparison a.png b.png
  artstyle classify --json https://example.org/warli.jpg`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			s, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			cfg, err := s.serviceConfig(cmd)
			if err != nil {
				return err
			}
			svc, err := artstyle.New(cfg)
			if err != nil {
				return err
			}
			defer svc.Close()

			ctx := cmd.Context()
			var outputs []classifyOutput
			failed := 0
			for _, src := range args {
				o := classifyOutput{Source: src}
				data, filename, err := readInput(cmd, &cfg, src)
				if err == nil {
					var res artstyle.ClassificationResult
					if res, err = svc.Classify(ctx, data, filename); err == nil {
						o.Result = &res
						o.Degraded = res.Degraded()
						o.Suggestions = svc.Suggestions(res.PredictedLabel)
					}
				}
				if err != nil {
					failed++
					o.Error = err.Error()
				}
				outputs = append(outputs, o)
			}

			if jsonOut {
				if err := writeJSON(cmd.OutOrStdout(), outputs); err != nil {
					return err
				}
			} else {
				printClassifications(cmd, outputs)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d inputs failed", failed, len(args))
			}
			return nil
		},
	}
	cmd.Flags().String("strategy", "", "Scoring strategy: centroid or comparison")
	return cmd
}

// readInput loads a local file or downloads a URL, returning its bytes and the
// filename hint.
func readInput(cmd *cobra.Command, cfg *artstyle.Config, src string) ([]byte, string, error) {
	if isURL(src) {
		r, err := cfg.Fetch(cmd.Context(), src, artstyle.FetchOpts{})
		if err != nil {
			return nil, "", err
		}
		return r.Data, r.Filename, nil
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return nil, "", fmt.Errorf("read %s: %w", src, err)
	}
	return data, filepath.Base(src), nil
}

func printClassifications(cmd *cobra.Command, outputs []classifyOutput) {
	out := cmd.OutOrStdout()
	for _, o := range outputs {
		if o.Error != "" {
			fmt.Fprintf(out, "%s: error: %s\n", o.Source, o.Error)
			continue
		}
		r := o.Result
		fmt.Fprintf(out, "%s: %s (%.1f%%) via %s", o.Source, r.PredictedLabel, r.Confidence*100, r.Method)
		if o.Degraded {
			fmt.Fprint(out, " [fallback]")
		}
		fmt.Fprintln(out)
		for _, l := range r.Ranked() {
			fmt.Fprintf(out, "  %-12s %.3f\n", l, r.Scores[l])
		}
	}
}

func newAnalyzeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "analyze <file|url>",
		Short: "Report visual properties, metadata and reuse rights of an image",
		Long: `Report size, colour and edge statistics, embedded attribution and a reuse
rights verdict. A URL may point at an image or at a gallery page with an
og:image; the page's Creative Commons license is taken into account.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			src := args[0]

			var a *artstyle.ImageAnalysis
			if isURL(src) {
				svc, _, err := newService(cmd)
				if err != nil {
					return err
				}
				defer svc.Close()
				if a, err = svc.AnalyzeURL(cmd.Context(), src); err != nil {
					return err
				}
			} else {
				data, err := os.ReadFile(src)
				if err != nil {
					return fmt.Errorf("read %s: %w", src, err)
				}
				if a, err = artstyle.AnalyzeImage(data, 0); err != nil {
					return err
				}
			}

			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), a)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %dx%d %s (%s)\n", src, a.Width, a.Height, a.Format, a.Orientation)
			fmt.Fprintf(out, "  Hue %.0f°  Saturation %.2f  Value %.2f  Edges %.2f\n",
				a.MeanHue, a.MeanSaturation, a.MeanValue, a.EdgeDensity)
			if attr := a.Metadata.Attribution(); attr != "" {
				fmt.Fprintf(out, "  Attribution: %s\n", attr)
			}
			if a.Rights != nil {
				fmt.Fprintf(out, "  Rights: %s", a.Rights.Rights)
				if a.Rights.License != "" {
					fmt.Fprintf(out, " (%s)", a.Rights.License)
				}
				fmt.Fprintln(out)
			}
			return nil
		},
	}
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
