package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/refacto-hq/refacto/internal/analyzer"
	"github.com/refacto-hq/refacto/internal/security"
)

func secretsCmd() *cobra.Command {
	var failOnFindings bool

	cmd := &cobra.Command{
		Use:   "secrets [path]",
		Short: "Scan a local repository for hardcoded secrets",
		Long: `Run only the security scanner: credential assignments, high-entropy
string literals, sensitive files, unsafe logging and weak cryptography.

Examples:
  refacto secrets .
  refacto secrets ./myrepo --fail`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "."
			if len(args) > 0 {
				path = args[0]
			}

			detectors := []analyzer.Detector{security.NewScanner()}
			res, err := runLocalAnalysis(cmd.Context(), path, detectors)
			if err != nil {
				return err
			}

			if len(res.Issues) == 0 {
				fmt.Println("No security findings.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "SEVERITY\tRULE\tLOCATION\tDESCRIPTION")
			for i := range res.Issues {
				is := &res.Issues[i]
				rule := is.Metrics.RuleID
				if rule == "" {
					rule = string(is.Type)
				}
				location := fmt.Sprintf("%s:%d", is.FilePath, is.LineStart)
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", is.Severity, rule, location, truncate(is.Description, 70))
			}
			w.Flush()

			fmt.Printf("\n%d findings in %d files\n", len(res.Issues), res.Summary.TotalFiles)

			if failOnFindings {
				return fmt.Errorf("security findings present")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&failOnFindings, "fail", false, "Exit non-zero when any finding exists")

	return cmd
}
