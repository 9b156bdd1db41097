package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	editorApp "blockeditor/internal/app"
	"blockeditor/internal/config"
)

var (
	// Global flags
	configPath   string
	dbPath       string
	templatesDir string
	verbose      bool

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "blockeditor",
	Short: "Block editor backend: posts, templates and autosave",
	Long: `blockeditor keeps posts as trees of blocks, reconciles them with
post type templates and autosaves unsaved edits.

Run serve-mcp to expose the editor to AI agents over stdio.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := zap.NewProductionConfig()
		// stdout carries the MCP protocol.
		cfg.OutputPaths = []string{"stderr"}
		if verbose {
			cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = cfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var serveMCPCmd = &cobra.Command{
	Use:   "serve-mcp",
	Short: "Run the MCP server on stdin/stdout",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), editorApp.Options{Watch: true, Schedule: true}, func(a *editorApp.App) error {
			return a.ServeMCP(cmd.Context())
		})
	},
}

var checkCmd = &cobra.Command{
	Use:   "check <postID>",
	Short: "Check a post against its post type template",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), editorApp.Options{}, func(a *editorApp.App) error {
			res, err := a.CheckPost(args[0])
			if err != nil {
				return err
			}
			if err := printJSON(cmd, res); err != nil {
				return err
			}
			if !res.Matches {
				return fmt.Errorf("post %s does not match the %q template", res.PostID, res.PostType)
			}
			return nil
		})
	},
}

var syncApply bool

var syncCmd = &cobra.Command{
	Use:   "sync <postID>",
	Short: "Reshape a post into its post type template",
	Long: `sync prints the post's blocks reshaped into its post type template.
Blocks that match the template by position and name are kept; the rest are
replaced or dropped. Pass --apply to save the result.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), editorApp.Options{}, func(a *editorApp.App) error {
			blocks, err := a.SyncPost(cmd.Context(), args[0], syncApply)
			if err != nil {
				return err
			}
			return printJSON(cmd, blocks)
		})
	},
}

var pruneCmd = &cobra.Command{
	Use:   "prune-autosaves",
	Short: "Delete expired autosaves, keeping the newest one per post",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), editorApp.Options{}, func(a *editorApp.App) error {
			n, err := a.PruneAutosaves()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d autosave(s)\n", n)
			return nil
		})
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath(), "Path to the config file")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Override the database path")
	rootCmd.PersistentFlags().StringVar(&templatesDir, "templates", "", "Override the templates directory")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	syncCmd.Flags().BoolVar(&syncApply, "apply", false, "Save the synchronized blocks")

	rootCmd.AddCommand(serveMCPCmd, checkCmd, syncCmd, pruneCmd)
}

func defaultConfigPath() string {
	return filepath.Join(config.Default().DataDir, "config.yaml")
}

// withApp loads the config, starts the app, runs fn and shuts the app down.
func withApp(ctx context.Context, opts editorApp.Options, fn func(*editorApp.App) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	if templatesDir != "" {
		cfg.TemplatesDir = templatesDir
	}
	a, err := editorApp.Startup(ctx, cfg, opts, logger)
	if err != nil {
		return err
	}
	defer a.Shutdown(context.WithoutCancel(ctx))
	return fn(a)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
