package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/refacto-hq/refacto/internal/analyzer"
	"github.com/refacto-hq/refacto/internal/astcache"
	"github.com/refacto-hq/refacto/internal/config"
	"github.com/refacto-hq/refacto/internal/detect"
	"github.com/refacto-hq/refacto/internal/duplicates"
	"github.com/refacto-hq/refacto/internal/githost"
	"github.com/refacto-hq/refacto/internal/parser"
	"github.com/refacto-hq/refacto/internal/report"
	"github.com/refacto-hq/refacto/internal/security"
	"github.com/refacto-hq/refacto/pkg/model"
)

func analyzeCmd() *cobra.Command {
	var (
		format string
		output string
		failOn string
	)

	cmd := &cobra.Command{
		Use:   "analyze [path]",
		Short: "Analyze a local repository",
		Long: `Run the full detector suite over a local checkout.

Examples:
  refacto analyze .
  refacto analyze ./myrepo --format sarif --output findings.sarif
  refacto analyze . --fail-on high`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "."
			if len(args) > 0 {
				path = args[0]
			}

			res, err := runLocalAnalysis(cmd.Context(), path, nil)
			if err != nil {
				return err
			}

			if format == "table" {
				printSummary(res)
				printIssueTable(res.Issues)
				printGroupTable(res.Groups)
			} else {
				if err := emitReport(res, path, format, output); err != nil {
					return err
				}
			}

			if failOn != "" {
				threshold := model.Severity(failOn)
				if threshold.Rank() == 0 {
					return fmt.Errorf("unknown severity %q for --fail-on", failOn)
				}
				for i := range res.Issues {
					if res.Issues[i].Severity.Rank() >= threshold.Rank() {
						return fmt.Errorf("found issues at or above severity %s", failOn)
					}
				}
			}

			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "table", "Output format (table, json, sarif)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the report to a file instead of stdout")
	cmd.Flags().StringVar(&failOn, "fail-on", "", "Exit non-zero when issues at or above this severity exist (low, medium, high, critical)")

	return cmd
}

// runLocalAnalysis collects sources under path and runs the engine over them.
// When detectors is nil the full suite runs, including the duplicate passes.
func runLocalAnalysis(ctx context.Context, path string, detectors []analyzer.Detector) (*analyzer.Result, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", path)
	}

	projectCfg, err := config.LoadProjectConfig(path)
	if err != nil {
		log.Warn().Err(err).Msg("failed to load project config, using defaults")
		projectCfg = config.DefaultProjectConfig()
	}

	files, err := githost.CollectSources(path, projectCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to collect sources: %w", err)
	}

	var finder analyzer.DuplicateFinder
	if detectors == nil {
		detectors = append(detect.All(), security.NewScanner())
		finder = duplicates.NewFinder()
	}

	cache, err := astcache.New(0)
	if err != nil {
		return nil, err
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	engine := analyzer.NewEngine(parser.NewParser(), cache, detectors, finder,
		analyzer.OptionsFromConfig(projectCfg))
	return engine.AnalyzeFiles(ctx, filepath.Base(abs), files)
}

func emitReport(res *analyzer.Result, path, format, output string) error {
	emitter, err := report.NewRegistry().Get(format)
	if err != nil {
		return err
	}

	in := &report.Input{
		ProjectName: res.Project,
		Summary:     res.Summary,
		Issues:      res.Issues,
		Groups:      res.Groups,
	}

	out := os.Stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("cannot write %s: %w", output, err)
		}
		defer f.Close()
		out = f
	}

	return emitter.Emit(out, in)
}

func printSummary(res *analyzer.Result) {
	s := res.Summary
	fmt.Printf("Analyzed %d files (%d supported, %d parse errors) in %s\n",
		s.TotalFiles, s.SupportedFiles, s.ParseErrors, res.Duration.Round(1e6))
	fmt.Printf("Quality score: %d/100\n", s.QualityScore)
	fmt.Printf("Issues: %d total", s.TotalIssues)
	for _, sev := range []model.Severity{model.SeverityCritical, model.SeverityHigh, model.SeverityMedium, model.SeverityLow} {
		if n := s.BySeverity[sev]; n > 0 {
			fmt.Printf("  %s: %d", sev, n)
		}
	}
	fmt.Println()
	if s.DuplicateGroups > 0 {
		fmt.Printf("Duplicate groups: %d\n", s.DuplicateGroups)
	}
	fmt.Println()
}

func printIssueTable(issues []model.Issue) {
	if len(issues) == 0 {
		fmt.Println("No issues found.")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SEVERITY\tTYPE\tLOCATION\tDESCRIPTION")
	for i := range issues {
		is := &issues[i]
		location := fmt.Sprintf("%s:%d", is.FilePath, is.LineStart)
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", is.Severity, is.Type, location, truncate(is.Description, 70))
	}
	w.Flush()
}

func printGroupTable(groups []model.DuplicateGroup) {
	if len(groups) == 0 {
		return
	}

	fmt.Println()
	for i := range groups {
		g := &groups[i]
		fmt.Printf("Duplicate group %d (%s pass, %.0f%% similar, %d occurrences):\n",
			i+1, g.Pass, g.Similarity*100, g.Size())
		for _, m := range g.Members {
			name := m.FunctionName
			if name == "" {
				name = "-"
			}
			fmt.Printf("  %s:%d-%d  %s\n", m.FilePath, m.LineStart, m.LineEnd, name)
		}
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
