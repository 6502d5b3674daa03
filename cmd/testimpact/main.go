package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"testimpact/internal/config"
	"testimpact/internal/graph"
	"testimpact/internal/pipeline"
	"testimpact/internal/storage"

	"github.com/spf13/cobra"
)

var (
	rootCmd = &cobra.Command{
		Use:           "testimpact",
		Short:         "Static test impact analysis for JVM projects",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		},
	}
	configPath string
	dbPath     string
	verbose    bool
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "Path to the configuration file")
	// Default DB path comes from the configuration
	rootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Path to the link graph database (SQLite)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	scanCmd.Flags().String("base", "", "Git revision to compute the change scope against")
	changesCmd.Flags().String("base", "HEAD", "Git revision to diff against")
	linksCmd.Flags().String("type", "", "Only list links of this type (e.g. METHOD_CALL)")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(linksCmd)
	rootCmd.AddCommand(changesCmd)
}

// loadConfig reads the configuration file. A missing default file falls
// back to defaults plus environment overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadConfig(configPath)
	if errors.Is(err, fs.ErrNotExist) && !cmd.Flags().Changed("config") {
		cfg, err = config.FromEnv()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if dbPath != "" {
		cfg.Storage.DBPath = dbPath
	}
	return cfg, nil
}

var scanCmd = &cobra.Command{
	Use:   "scan [root]",
	Short: "Scan compiled classes and store the link graph",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if len(args) > 0 {
			cfg.Project.Root = args[0]
		}
		if base, _ := cmd.Flags().GetString("base"); base != "" {
			cfg.Project.BaseRef = base
		}

		fmt.Printf("📂 Scanning project: %s\n", cfg.Project.Root)
		res, err := pipeline.Run(cmd.Context(), cfg)
		if err != nil {
			return err
		}

		fmt.Printf("🎉 Scan complete in %v! Database: %s\n", res.Duration, cfg.Storage.DBPath)
		fmt.Printf("  -> run %s: %d links, %d entry points, %d tests, %d scenarios\n",
			res.RunID, res.Summary.Links, res.Summary.EntryPoints, res.Summary.Tests, res.Summary.Scenarios)
		for _, t := range res.Summary.Types() {
			fmt.Printf("     %-16s %d\n", t, res.Summary.ByType[t])
		}
		if res.Changes != nil {
			fmt.Printf("  -> %d changed files in scope\n", res.Changes.Len())
		}
		return nil
	},
}

var linksCmd = &cobra.Command{
	Use:   "links",
	Short: "List the links of the stored graph",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		store, err := storage.NewSQLiteStore(cfg.Storage.DBPath)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer store.Close()

		ctx := cmd.Context()
		var links []graph.Link
		if name, _ := cmd.Flags().GetString("type"); name != "" {
			typ, err := graph.ParseLinkType(name)
			if err != nil {
				return err
			}
			links, err = store.LinksByType(ctx, typ)
			if err != nil {
				return err
			}
		} else {
			links, err = store.LoadLinks(ctx)
			if err != nil {
				return err
			}
		}

		for _, l := range links {
			fmt.Println(l)
		}
		return nil
	},
}

var changesCmd = &cobra.Command{
	Use:   "changes",
	Short: "Print the change scope and the declarations it touches",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if base, _ := cmd.Flags().GetString("base"); base != "" {
			cfg.Project.BaseRef = base
		}

		changes, err := pipeline.New(cfg).ChangeScope(cmd.Context())
		if err != nil {
			return err
		}
		if changes.Len() == 0 {
			fmt.Println("✅ No changes detected.")
			return nil
		}

		for _, c := range changes.Changes() {
			fmt.Printf("%s %s %v\n", c.Type, c.Path, c.Lines)
			for _, d := range c.Declarations {
				fmt.Printf("    %s#%s\n", d.Actor, d.Action)
			}
		}
		return nil
	},
}
