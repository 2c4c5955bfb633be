package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func reportCmd() *cobra.Command {
	var (
		format string
		output string
	)

	cmd := &cobra.Command{
		Use:   "report <project-id>",
		Short: "Render a project's stored findings",
		Long: `Fetch the latest stored findings for a registered project from the
API server and render them.

Examples:
  refacto report 550e8400-e29b-41d4-a716-446655440000
  refacto report 550e8400-e29b-41d4-a716-446655440000 --format sarif --output findings.sarif`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			endpoint := fmt.Sprintf("%s/api/v1/projects/%s/report?format=%s", apiURL, args[0], format)

			body, err := getJSON(endpoint)
			if err != nil {
				return err
			}

			if output != "" {
				if err := os.WriteFile(output, body, 0644); err != nil {
					return fmt.Errorf("cannot write %s: %w", output, err)
				}
				fmt.Printf("Report written to %s\n", output)
				return nil
			}

			fmt.Println(string(body))
			return nil
		},
	}

	cmd.Flags().StringVar(&apiURL, "api-url", "http://localhost:8080", "API server URL")
	cmd.Flags().StringVarP(&format, "format", "f", "json", "Report format (json, sarif)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the report to a file instead of stdout")

	return cmd
}
