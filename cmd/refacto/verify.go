package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/refacto-hq/refacto/internal/parser"
	"github.com/refacto-hq/refacto/internal/security"
	"github.com/refacto-hq/refacto/internal/verify"
	"github.com/refacto-hq/refacto/pkg/model"
)

func verifyCmd() *cobra.Command {
	var (
		originalPath   string
		refactoredPath string
		lang           string
	)

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify a refactoring against the original code",
		Long: `Run the verification battery over a candidate refactoring: syntax,
signature preservation, security regressions, complexity and error
handling. Prints the layer results and the resulting trust badge.

Examples:
  refacto verify --original before.go --refactored after.go
  refacto verify --original old.py --refactored new.py --lang python`,
		RunE: func(cmd *cobra.Command, args []string) error {
			original, err := os.ReadFile(originalPath)
			if err != nil {
				return fmt.Errorf("cannot read %s: %w", originalPath, err)
			}
			refactored, err := os.ReadFile(refactoredPath)
			if err != nil {
				return fmt.Errorf("cannot read %s: %w", refactoredPath, err)
			}

			language := parser.Language(lang)
			if lang == "" {
				language = parser.DetectLanguage(originalPath)
			}
			if !language.Supported() {
				return fmt.Errorf("unsupported language %q", language)
			}

			verifier := verify.NewVerifier(parser.NewParser(), security.NewScanner(), nil)
			sug := verifier.Verify(cmd.Context(), verify.Request{
				FilePath:       originalPath,
				Language:       language,
				OriginalCode:   string(original),
				RefactoredCode: string(refactored),
			})

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "LAYER\tSTATUS\tDETAIL")
			for _, layer := range sug.Layers {
				fmt.Fprintf(w, "%s\t%s\t%s\n", layer.Name, layer.Status, layer.Detail)
			}
			w.Flush()

			fmt.Printf("\nBadge: %s", sug.Badge)
			if sug.IsVerified {
				fmt.Print(" ✓")
			}
			fmt.Printf("\nChanges: %d\n", len(sug.Changes))

			if sug.Badge == model.BadgeFailed {
				return fmt.Errorf("verification failed")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&originalPath, "original", "", "Path to the original source (required)")
	cmd.Flags().StringVar(&refactoredPath, "refactored", "", "Path to the refactored source (required)")
	cmd.Flags().StringVar(&lang, "lang", "", "Language (go, python, javascript, typescript); detected from the file extension when empty")
	cmd.MarkFlagRequired("original")
	cmd.MarkFlagRequired("refactored")

	return cmd
}
