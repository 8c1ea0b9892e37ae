package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/joshharrison/critpath/internal/config"
	"github.com/joshharrison/critpath/internal/cpm"
	"github.com/joshharrison/critpath/internal/graph"
	"github.com/joshharrison/critpath/internal/project"
	"github.com/joshharrison/critpath/internal/reporter"
	"github.com/joshharrison/critpath/internal/store"
	"github.com/joshharrison/critpath/internal/ui"
)

var (
	flagDBDriver string
	flagDSN      string
	flagProject  string
	flagJSON     bool
	flagLogLevel string
	flagFilter   string
	flagLimit    int
	flagFormat   string

	cfg    *config.Config
	logger *slog.Logger
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "critpath",
		Short: "Critical path analysis for project task graphs",
		Long: `Critpath models a project as tasks with durations and DEPENDS_ON edges,
computes the critical path and every start-to-finish path ranked by duration,
and schedules each task's earliest/latest start and slack. Graphs are read
from YAML/JSON project files or a storage backend (file, sqlite, postgres,
mongo, neo4j).`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setup(cmd)
		},
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&flagDBDriver, "db-driver", "", "Storage backend: file, sqlite, postgres, mongo, neo4j (env CRITPATH_DB_DRIVER)")
	rootCmd.PersistentFlags().StringVar(&flagDSN, "dsn", "", "Backend DSN, URI or path (env CRITPATH_DSN)")
	rootCmd.PersistentFlags().StringVar(&flagProject, "project", "", "Stored project name (env CRITPATH_PROJECT)")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "Machine-readable JSON output")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn, error (env CRITPATH_LOG_LEVEL)")
	rootCmd.PersistentFlags().StringVar(&flagFilter, "filter", "", "Analyse a subset: status=X, duration>=N or duration<=N")

	rootCmd.AddCommand(demoCmd())
	rootCmd.AddCommand(loadCmd())
	rootCmd.AddCommand(projectsCmd())
	rootCmd.AddCommand(analyzeCmd())
	rootCmd.AddCommand(pathsCmd())
	rootCmd.AddCommand(overviewCmd())
	rootCmd.AddCommand(scheduleCmd())
	rootCmd.AddCommand(vizCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(inferDepsCmd())
	rootCmd.AddCommand(exportCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup loads configuration from the environment, applies flag overrides and
// builds the logger.
func setup(cmd *cobra.Command) error {
	var err error
	cfg, err = config.Load()
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("db-driver") {
		cfg.Store.Driver = flagDBDriver
	}
	if flags.Changed("dsn") {
		cfg.Store.DSN = flagDSN
	}
	if flags.Changed("project") {
		cfg.Project = flagProject
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = flagLogLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger = cfg.NewLogger()
	slog.SetDefault(logger)
	return nil
}

// signalContext is cancelled on SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func openBackend(ctx context.Context) (store.Backend, error) {
	b, err := store.Open(ctx, cfg.Store, logger)
	if err != nil {
		return nil, fmt.Errorf("open %s backend: %w", cfg.Store.Driver, err)
	}
	return b, nil
}

// loadGraph reads the graph from a project file when one is given, otherwise
// from the configured backend, then applies --filter.
func loadGraph(ctx context.Context, args []string) (*graph.Graph, error) {
	var (
		g   *graph.Graph
		err error
	)
	if len(args) > 0 {
		f, err := project.Load(args[0])
		if err != nil {
			return nil, err
		}
		g, err = f.Graph()
		if err != nil {
			return nil, fmt.Errorf("build task graph: %w", err)
		}
	} else {
		b, err := openBackend(ctx)
		if err != nil {
			return nil, err
		}
		defer b.Close()
		name, err := store.Resolve(ctx, b, cfg.Project)
		if err != nil {
			return nil, fmt.Errorf("resolve project: %w", err)
		}
		g, err = b.Load(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("load project %q: %w", name, err)
		}
	}

	if flagFilter != "" {
		g, err = applyFilter(g, flagFilter)
		if err != nil {
			return nil, fmt.Errorf("apply filter: %w", err)
		}
	}
	return g, nil
}

// applyFilter keeps tasks matching filter; edges to dropped tasks are removed.
func applyFilter(g *graph.Graph, filter string) (*graph.Graph, error) {
	switch {
	case strings.HasPrefix(filter, "status="):
		status, err := graph.ParseStatus(strings.TrimPrefix(filter, "status="))
		if err != nil {
			return nil, err
		}
		return g.Filter(func(t graph.Task) bool { return t.Status == status })
	case strings.HasPrefix(filter, "duration>="):
		n, err := strconv.Atoi(strings.TrimPrefix(filter, "duration>="))
		if err != nil {
			return nil, fmt.Errorf("invalid duration in filter: %s", filter)
		}
		return g.Filter(func(t graph.Task) bool { return t.Duration >= n })
	case strings.HasPrefix(filter, "duration<="):
		n, err := strconv.Atoi(strings.TrimPrefix(filter, "duration<="))
		if err != nil {
			return nil, fmt.Errorf("invalid duration in filter: %s", filter)
		}
		return g.Filter(func(t graph.Task) bool { return t.Duration <= n })
	}
	return nil, fmt.Errorf("unsupported filter: %s (use status=X, duration>=N or duration<=N)", filter)
}

// analyse runs every analysis the reporter needs. An empty graph yields a
// reporter with no critical path rather than an error.
func analyse(ctx context.Context, g *graph.Graph, limit int) (*reporter.Reporter, error) {
	cp, err := cpm.CriticalPath(g)
	if errors.Is(err, graph.ErrEmptyGraph) {
		return reporter.New(g, nil, nil, nil), nil
	}
	if err != nil {
		return nil, fmt.Errorf("critical path: %w", err)
	}
	paths, err := cpm.EnumerateContext(ctx, g, cpm.EnumerateOptions{MaxResults: limit, MaxVisited: cfg.MaxVisited})
	if err != nil {
		return nil, fmt.Errorf("enumerate paths: %w", err)
	}
	schedule, err := cpm.Analyze(g)
	if err != nil {
		return nil, fmt.Errorf("schedule: %w", err)
	}
	return reporter.New(g, cp, paths, schedule), nil
}

func outputJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func demoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Seed the backend with the sample project and analyse it",
		Long: `Clears the configured backend, stores the AI Dashboard Implementation
sample project, reads it back and prints the overview, critical path and
every ranked path.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			b, err := openBackend(ctx)
			if err != nil {
				return err
			}
			defer b.Close()

			sample, err := project.Sample().Graph()
			if err != nil {
				return err
			}
			if err := b.Clear(ctx); err != nil {
				return fmt.Errorf("clear backend: %w", err)
			}
			if err := b.Save(ctx, sample); err != nil {
				return fmt.Errorf("save sample project: %w", err)
			}
			logger.Debug("seeded sample project", "backend", cfg.Store.Driver)

			g, err := b.Load(ctx, sample.Name())
			if err != nil {
				return fmt.Errorf("load sample project: %w", err)
			}
			rpt, err := analyse(ctx, g, cfg.MaxPaths)
			if err != nil {
				return err
			}
			if flagJSON {
				return outputJSON(rpt.Report())
			}

			ui.PrintBanner(os.Stdout, g.Name())
			rpt.PrintOverview(os.Stdout)
			rpt.PrintAnalysis(os.Stdout)
			fmt.Printf("\n✅ %s\n", ui.BoldGreen("Analysis completed successfully!"))
			return nil
		},
	}
}

func loadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "load <file>",
		Short: "Validate a project file and store it in the backend",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			f, err := project.Load(args[0])
			if err != nil {
				return err
			}
			if cfg.Project != "" {
				f.Name = cfg.Project
			}
			g, err := f.Graph()
			if err != nil {
				return fmt.Errorf("build task graph: %w", err)
			}

			b, err := openBackend(ctx)
			if err != nil {
				return err
			}
			defer b.Close()
			if err := b.Save(ctx, g); err != nil {
				return fmt.Errorf("save project: %w", err)
			}

			fmt.Printf("💾 Stored %s (%s tasks, %s dependencies) in %s backend\n",
				ui.BoldCyan(g.Name()), ui.Bold(g.Len()), ui.Bold(len(g.Edges())), cfg.Store.Driver)
			fmt.Println(ui.Dim(fmt.Sprintf("   select it with --project %q", g.Name())))
			return nil
		},
	}
}

func projectsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "projects",
		Short: "List projects stored in the backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			b, err := openBackend(ctx)
			if err != nil {
				return err
			}
			defer b.Close()

			names, err := b.Projects(ctx)
			if err != nil {
				return fmt.Errorf("list projects: %w", err)
			}
			if flagJSON {
				return outputJSON(names)
			}
			if len(names) == 0 {
				fmt.Println(ui.Dim("No projects stored."))
				return nil
			}
			for _, n := range names {
				fmt.Printf("  %s\n", n)
			}
			return nil
		},
	}
}

func analyzeCmd() *cobra.Command {
	var flagExplain bool

	cmd := &cobra.Command{
		Use:   "analyze [file]",
		Short: "Print the overview, critical path and ranked paths",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			g, err := loadGraph(ctx, args)
			if err != nil {
				return err
			}
			rpt, err := analyse(ctx, g, cfg.MaxPaths)
			if err != nil {
				return err
			}

			if flagJSON {
				if err := outputJSON(rpt.Report()); err != nil {
					return err
				}
			} else {
				rpt.PrintOverview(os.Stdout)
				rpt.PrintAnalysis(os.Stdout)
			}

			if flagExplain {
				return explain(ctx, rpt)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&flagExplain, "explain", false, "Ask Claude for a narrative explanation of the analysis")
	return cmd
}

func pathsCmd() *cobra.Command {
	var flagMaxVisited int

	cmd := &cobra.Command{
		Use:   "paths [file]",
		Short: "List start-to-finish paths ranked by total duration",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			g, err := loadGraph(ctx, args)
			if err != nil {
				return err
			}
			opts := cpm.EnumerateOptions{MaxResults: cfg.MaxPaths, MaxVisited: cfg.MaxVisited}
			if cmd.Flags().Changed("limit") {
				opts.MaxResults = flagLimit
			}
			if cmd.Flags().Changed("max-visited") {
				opts.MaxVisited = flagMaxVisited
			}
			paths, err := cpm.EnumerateContext(ctx, g, opts)
			if err != nil {
				return fmt.Errorf("enumerate paths: %w", err)
			}
			cp, err := cpm.CriticalPath(g)
			if err != nil && !errors.Is(err, graph.ErrEmptyGraph) {
				return fmt.Errorf("critical path: %w", err)
			}

			rpt := reporter.New(g, cp, paths, nil)
			if flagJSON {
				return outputJSON(rpt.Ranked())
			}
			rpt.PrintAnalysis(os.Stdout)
			return nil
		},
	}

	cmd.Flags().IntVar(&flagLimit, "limit", 0, "Keep only the N longest paths (0 = all; default CRITPATH_MAX_PATHS)")
	cmd.Flags().IntVar(&flagMaxVisited, "max-visited", 0, "Abort after walking N paths (0 = no limit; default CRITPATH_MAX_VISITED)")
	return cmd
}

func overviewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "overview [file]",
		Short: "List tasks with durations and statuses",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			g, err := loadGraph(ctx, args)
			if err != nil {
				return err
			}
			if flagJSON {
				return outputJSON(g.Tasks())
			}
			reporter.New(g, nil, nil, nil).PrintOverview(os.Stdout)
			return nil
		},
	}
}

func scheduleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schedule [file]",
		Short: "Print earliest/latest start, finish and slack per task",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			g, err := loadGraph(ctx, args)
			if err != nil {
				return err
			}
			res, err := cpm.Analyze(g)
			if err != nil {
				return fmt.Errorf("schedule: %w", err)
			}
			if flagJSON {
				return outputJSON(res)
			}
			reporter.New(g, nil, nil, res).PrintSchedule(os.Stdout)
			return nil
		},
	}
}

func vizCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "viz [file]",
		Short: "Print an ASCII Gantt chart or Graphviz DOT of the task graph",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			g, err := loadGraph(ctx, args)
			if err != nil {
				return err
			}
			rpt, err := analyse(ctx, g, 0)
			if err != nil {
				return err
			}

			switch flagFormat {
			case "dot":
				return rpt.WriteDOT(os.Stdout)
			case "ascii":
				rpt.PrintASCII(os.Stdout)
				return nil
			}
			return fmt.Errorf("unknown format %q (use ascii or dot)", flagFormat)
		},
	}

	cmd.Flags().StringVar(&flagFormat, "format", "ascii", "Output format (ascii, dot)")
	return cmd
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <task-id> <status>",
		Short: "Update a stored task's status (not_started, in_progress, completed)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			status, err := graph.ParseStatus(args[1])
			if err != nil {
				return err
			}

			b, err := openBackend(ctx)
			if err != nil {
				return err
			}
			defer b.Close()

			name, err := store.Resolve(ctx, b, cfg.Project)
			if err != nil {
				return fmt.Errorf("resolve project: %w", err)
			}
			g, err := b.Load(ctx, name)
			if err != nil {
				return fmt.Errorf("load project %q: %w", name, err)
			}
			if err := g.SetStatus(args[0], status); err != nil {
				return err
			}
			if err := b.Save(ctx, g); err != nil {
				return fmt.Errorf("save project: %w", err)
			}

			fmt.Printf("%s %s → %s\n", ui.StatusIcon(status), ui.TaskID(args[0]), ui.StatusText(status))
			return nil
		},
	}
}
