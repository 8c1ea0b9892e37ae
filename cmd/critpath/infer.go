package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/joshharrison/critpath/internal/claude"
	"github.com/joshharrison/critpath/internal/project"
	"github.com/joshharrison/critpath/internal/reporter"
	"github.com/joshharrison/critpath/internal/ui"
)

func inferDepsCmd() *cobra.Command {
	var (
		flagApply    bool
		flagModel    string
		flagOutput   string
		flagFromFile string
	)

	cmd := &cobra.Command{
		Use:   "infer-deps <file>",
		Short: "Use Claude to infer task dependencies from task names",
		Long: `Sends the project's tasks to Claude and infers DEPENDS_ON edges.
Edges naming unknown tasks, self-dependencies and edges that would create a
cycle are skipped. By default runs in dry-run mode; use --apply to rewrite
the project file (or --output to write elsewhere).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			f, err := project.Load(args[0])
			if err != nil {
				return err
			}
			g, err := f.Graph()
			if err != nil {
				return fmt.Errorf("build task graph: %w", err)
			}
			if g.Len() == 0 {
				return fmt.Errorf("no tasks found in %s", args[0])
			}

			var result *claude.InferDepsResult
			if flagFromFile != "" {
				data, err := os.ReadFile(flagFromFile)
				if err != nil {
					return fmt.Errorf("read from-file: %w", err)
				}
				result = &claude.InferDepsResult{}
				if err := json.Unmarshal(data, result); err != nil {
					return fmt.Errorf("parse from-file: %w", err)
				}
				fmt.Printf("📂 Loaded %s edges from %s\n", ui.Bold(len(result.Edges)), ui.Dim(flagFromFile))
			} else {
				summaries := claude.Summaries(g)
				fmt.Printf("🔍 Sending %s tasks to Claude for dependency inference...\n", ui.Bold(len(summaries)))

				client, err := claude.NewClient(cfg.AnthropicKey, flagModel)
				if err != nil {
					return err
				}
				result, err = client.InferDeps(ctx, summaries)
				if err != nil {
					return fmt.Errorf("infer deps: %w", err)
				}
			}

			applied, skipped := claude.Apply(g, result.Edges)
			for _, s := range skipped {
				fmt.Printf("  %s %s → %s: %s\n", ui.Yellow("⏭️  SKIP:"), s.Edge.From, s.Edge.To, s.Reason)
			}
			for _, e := range applied {
				fmt.Printf("  %s %s depends on %s  %s\n", ui.Green("✓"), ui.TaskID(e.From), ui.TaskID(e.To), ui.Dim(e.Reason))
			}
			if result.Summary != "" {
				fmt.Printf("\n%s\n", ui.Dim(result.Summary))
			}
			fmt.Printf("\n%s edges accepted, %s skipped\n", ui.Bold(len(applied)), ui.Bold(len(skipped)))

			out := flagOutput
			if out == "" && flagApply {
				out = args[0]
			}
			if out == "" {
				fmt.Println(ui.Dim("Dry run: use --apply or --output to write the result."))
				return nil
			}
			data, err := project.FromGraph(g).Marshal()
			if err != nil {
				return fmt.Errorf("marshal project: %w", err)
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return fmt.Errorf("write project: %w", err)
			}
			fmt.Printf("💾 Wrote %s\n", ui.BoldCyan(out))
			return nil
		},
	}

	cmd.Flags().BoolVar(&flagApply, "apply", false, "Rewrite the project file with the accepted edges")
	cmd.Flags().StringVar(&flagModel, "model", "", "Claude model (default "+claude.DefaultModel+")")
	cmd.Flags().StringVarP(&flagOutput, "output", "o", "", "Write the updated project to this path")
	cmd.Flags().StringVar(&flagFromFile, "from-file", "", "Read inferred edges from a JSON file instead of calling Claude")
	return cmd
}

// explain asks Claude to narrate an analysis report.
func explain(ctx context.Context, rpt *reporter.Reporter) error {
	data, err := rpt.JSON()
	if err != nil {
		return err
	}
	client, err := claude.NewClient(cfg.AnthropicKey, "")
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "\n🤖 %s\n", ui.Dim("Asking Claude to explain the analysis..."))
	text, err := client.SummariseAnalysis(ctx, data)
	if err != nil {
		return fmt.Errorf("explain analysis: %w", err)
	}
	fmt.Printf("\n%s\n%s\n", ui.BoldCyan("💬 Explanation:"), text)
	return nil
}
