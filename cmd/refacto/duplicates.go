package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/refacto-hq/refacto/internal/analyzer"
	"github.com/refacto-hq/refacto/internal/astcache"
	"github.com/refacto-hq/refacto/internal/config"
	"github.com/refacto-hq/refacto/internal/duplicates"
	"github.com/refacto-hq/refacto/internal/githost"
	"github.com/refacto-hq/refacto/internal/parser"
	"github.com/rs/zerolog/log"
)

func duplicatesCmd() *cobra.Command {
	var minSimilarity float64

	cmd := &cobra.Command{
		Use:   "duplicates [path]",
		Short: "Find duplicated code in a local repository",
		Long: `Run only the duplicate passes: exact hashing, structural shingling
and semantic clustering across every supported file.

Examples:
  refacto duplicates .
  refacto duplicates ./myrepo --min-similarity 0.9`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "."
			if len(args) > 0 {
				path = args[0]
			}

			projectCfg, err := config.LoadProjectConfig(path)
			if err != nil {
				log.Warn().Err(err).Msg("failed to load project config, using defaults")
				projectCfg = config.DefaultProjectConfig()
			}
			if minSimilarity > 0 {
				projectCfg.Duplicates.StructuralThreshold = minSimilarity
			}

			files, err := githost.CollectSources(path, projectCfg)
			if err != nil {
				return fmt.Errorf("failed to collect sources: %w", err)
			}

			cache, err := astcache.New(0)
			if err != nil {
				return err
			}

			// No per-file detectors; only the project-wide duplicate pass runs.
			engine := analyzer.NewEngine(parser.NewParser(), cache, nil, duplicates.NewFinder(),
				analyzer.OptionsFromConfig(projectCfg))
			res, err := engine.AnalyzeFiles(cmd.Context(), path, files)
			if err != nil {
				return err
			}

			if len(res.Groups) == 0 {
				fmt.Println("No duplicated code found.")
				return nil
			}

			printGroupTable(res.Groups)
			fmt.Printf("\n%d groups across %d files\n", len(res.Groups), res.Summary.TotalFiles)
			return nil
		},
	}

	cmd.Flags().Float64Var(&minSimilarity, "min-similarity", 0, "Override the structural similarity threshold (0-1)")

	return cmd
}
