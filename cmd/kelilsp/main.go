package main

import (
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"kelilsp/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "kelilsp",
	Short: "Keli language server and compiler bridge",
	Long: `kelilsp serves the Keli language server over stdio and exposes the
same compiler-backed features (analyze, run, complete) on the command line`,
	SilenceUsage: true,
}

func init() {
	rootCmd.Version = version.Version

	rootCmd.AddCommand(lspCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(completeCmd)
	rootCmd.AddCommand(versionCmd)

	rootCmd.PersistentFlags().String("compiler", "", "Keli compiler executable (overrides keli.toml and $KELI_COMPILER)")
	rootCmd.PersistentFlags().Duration("timeout", 0, "per-invocation compiler timeout (default from keli.toml, 15s)")
	rootCmd.PersistentFlags().String("config", "", "explicit keli.toml path (default: search upwards from the file)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug|info|warn|error|off)")
	rootCmd.PersistentFlags().String("color", "auto", "colorize output (auto|on|off)")
	rootCmd.PersistentFlags().String("ui", "auto", "progress UI (auto|on|off)")
	rootCmd.PersistentFlags().Bool("timings", false, "show timing information")
}

// main executes the root command and exits with status 1 on error.
func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// isTerminal reports whether f is attached to a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// terminalWidth returns the width of f, or 0 when it is not a terminal.
func terminalWidth(f *os.File) int {
	if !isTerminal(f) {
		return 0
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return 0
	}
	return width
}
