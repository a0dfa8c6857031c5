// Package cli implements the cobra-based CLI commands for risu-extract.
//
// Each subcommand (extract, inspect, watch) is defined in its own file
// within this package. This file defines the root command that serves as
// the parent for all subcommands and handles global flags.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shinji-kodama/risu-extract/internal/model"
)

// Global flag variables shared across all subcommands.
var (
	// jsonOutput switches command output to JSON for scripts.
	jsonOutput bool

	// verbose enables debug logging and progress lines on stderr.
	verbose bool

	// configPath overrides config file discovery.
	configPath string
)

// Version, Commit, and Date are set at build time via ldflags.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// NewRootCommand creates and configures the root cobra command.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "risu-extract",
		Short: "Extract assets and metadata from character cards and modules",
		Long: `risu-extract pulls embedded assets and metadata out of character
distribution files:

  .png    character card images (tEXt metadata and asset chunks)
  .charx  ZIP character cards with a card.json manifest
  .risum  module containers with a packed manifest and asset records

Assets are written with collision-free names, either packed into a ZIP
archive or as loose files, next to a pretty-printed metadata export.`,

		// Errors are printed by Execute, in text or JSON.
		SilenceUsage:  true,
		SilenceErrors: true,

		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, Date),
	}

	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a config file (jsonc, yaml or toml)")

	rootCmd.AddCommand(NewExtractCommand())
	rootCmd.AddCommand(NewInspectCommand())
	rootCmd.AddCommand(NewWatchCommand())

	return rootCmd
}

// Execute runs the root command and translates errors into exit codes.
// CLIError carries its own code; sentinel errors from the parsers are
// mapped by model.ExitCodeFor. SIGINT and SIGTERM cancel the command's
// context.
func Execute(rootCmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		var cliErr *model.CLIError
		if errors.As(err, &cliErr) {
			printError(cliErr.Message, cliErr.Err)
		} else {
			printError(err.Error(), nil)
		}
		os.Exit(int(model.ExitCodeFor(err)))
	}
}

// printError outputs an error message in the appropriate format
// (JSON or text) based on the --json global flag.
func printError(message string, underlying error) {
	if jsonOutput {
		errObj := map[string]interface{}{
			"error": map[string]interface{}{
				"message": message,
			},
		}
		if underlying != nil {
			if errMap, ok := errObj["error"].(map[string]interface{}); ok {
				errMap["detail"] = underlying.Error()
			}
		}
		// stdout is reserved for successful command output.
		data, _ := json.MarshalIndent(errObj, "", "  ")
		fmt.Fprintln(os.Stderr, string(data))
		return
	}

	msg := "Error: " + message
	if underlying != nil {
		msg = fmt.Sprintf("Error: %s: %v", message, underlying)
	}
	fmt.Fprintln(os.Stderr, styles.Error.Render(msg))
}

// VerboseLog prints a message to stderr only when verbose mode is enabled.
func VerboseLog(format string, args ...interface{}) {
	if verbose {
		fmt.Fprintf(os.Stderr, "[verbose] "+format+"\n", args...)
	}
}

// IsJSONOutput returns whether the --json flag is set.
func IsJSONOutput() bool {
	return jsonOutput
}

// newLogger builds the structured logger handed to the extraction
// pipeline: debug level with --verbose, warnings only otherwise.
func newLogger(w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
