package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/jin-never/logicworld-sub001/internal/app"
	"github.com/jin-never/logicworld-sub001/internal/config"
	"github.com/jin-never/logicworld-sub001/internal/domain"
)

type cliOptions struct {
	configPath string
	jsonOutput bool
	verbose    bool
	logger     *zap.Logger
}

func newRootCommand() *cobra.Command {
	opts := cliOptions{logger: zap.NewNop()}

	root := &cobra.Command{
		Use:           "lwtoolsctl",
		Short:         "Inspect and refresh the workflow tool registry",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if opts.verbose {
				logger, err := zap.NewDevelopment()
				if err != nil {
					return err
				}
				opts.logger = logger
			}
			return nil
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			_ = opts.logger.Sync()
		},
	}

	root.PersistentFlags().SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ToLower(name))
	})
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file path (optional)")
	root.PersistentFlags().BoolVar(&opts.jsonOutput, "json", false, "output JSON")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "verbose logging")

	root.AddCommand(
		newListCmd(&opts),
		newRefreshCmd(&opts),
		newCategoriesCmd(&opts),
		newTestCmd(&opts),
	)

	return root
}

func buildApp(opts *cliOptions) (*app.App, error) {
	var cfg config.Config
	if opts.configPath != "" {
		loaded, err := config.Load(opts.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		defaults, err := config.Parse(nil)
		if err != nil {
			return nil, err
		}
		cfg = defaults
	}
	return app.New(app.Options{Config: cfg, Logger: opts.logger})
}

func withRegistry(opts *cliOptions, run func(ctx context.Context, a *app.App) error) error {
	application, err := buildApp(opts)
	if err != nil {
		return err
	}
	defer application.Close()

	ctx := context.Background()
	if err := application.Registry.Initialize(ctx); err != nil {
		return err
	}
	return run(ctx, application)
}

func newListCmd(opts *cliOptions) *cobra.Command {
	var sourceFlag string
	var categoryFlag string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered tools",
		RunE: func(_ *cobra.Command, _ []string) error {
			return withRegistry(opts, func(_ context.Context, a *app.App) error {
				var tools []domain.Tool
				switch {
				case sourceFlag != "":
					src := domain.SourceType(strings.ToLower(sourceFlag))
					if !domain.KnownSource(src) {
						return fmt.Errorf("unknown source %q", sourceFlag)
					}
					tools = a.Registry.ToolsBySource(src)
				case categoryFlag != "":
					tools = a.Registry.ToolsByCategory(categoryFlag)
				default:
					tools = a.Registry.AllTools()
				}
				return printTools(tools, opts.jsonOutput)
			})
		},
	}
	cmd.Flags().StringVar(&sourceFlag, "source", "", "filter by source (system|ai|mcp|api|user)")
	cmd.Flags().StringVar(&categoryFlag, "category", "", "filter by category id")
	return cmd
}

func newRefreshCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh [source]",
		Short: "Reload all sources, or one source",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return withRegistry(opts, func(ctx context.Context, a *app.App) error {
				if len(args) == 1 {
					src := domain.SourceType(strings.ToLower(args[0]))
					if !domain.KnownSource(src) {
						return fmt.Errorf("unknown source %q", args[0])
					}
					if err := a.Registry.RefreshSource(ctx, src); err != nil {
						return err
					}
					return printTools(a.Registry.ToolsBySource(src), opts.jsonOutput)
				}
				if err := a.Registry.Refresh(ctx); err != nil {
					return err
				}
				return printTools(a.Registry.AllTools(), opts.jsonOutput)
			})
		},
	}
}

func newCategoriesCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "Show the taxonomy and category completeness",
		RunE: func(_ *cobra.Command, _ []string) error {
			return withRegistry(opts, func(_ context.Context, a *app.App) error {
				report := a.Table.ValidateCategories(a.Registry.AllTools())
				return printCategoryReport(a.Table, report, opts.jsonOutput)
			})
		},
	}
}

func newTestCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "test <tool-id>",
		Short: "Run the connectivity probe for one tool",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return withRegistry(opts, func(ctx context.Context, a *app.App) error {
				verdict, err := a.Registry.TestTool(ctx, args[0])
				if err != nil {
					return err
				}
				return printVerdict(args[0], verdict, opts.jsonOutput)
			})
		},
	}
}
