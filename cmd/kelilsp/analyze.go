package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"kelilsp/internal/fix"
	"kelilsp/internal/observ"
	"kelilsp/internal/protocol"
	"kelilsp/internal/ui"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [flags] <file.keli>...",
	Short: "Report compiler diagnostics for Keli source files",
	Long: `Run the Keli compiler's analyzer on each file and print its diagnostics
together with the quick-fixes available for them. --fix, --fix-once and
--fix-id write fixes such as missing match cases back to the files.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().String("format", "pretty", "output format (pretty|json)")
	analyzeCmd.Flags().Bool("fix", false, "apply every available quick-fix and rewrite the files")
	analyzeCmd.Flags().Bool("fix-once", false, "apply the preferred (or first) quick-fix of each file")
	analyzeCmd.Flags().String("fix-id", "", "apply the quick-fix with this identifier (single file only)")
	analyzeCmd.Flags().Int("max-problems", 0, "maximum diagnostics per file (0 uses [lsp].max_problems)")
}

// errDiagnostics makes the process exit non-zero after the report was printed.
var errDiagnostics = errors.New("analysis reported errors")

type fixInfo struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type fileReport struct {
	Path        string                `json:"path"`
	Diagnostics []protocol.Diagnostic `json:"diagnostics"`
	Fixes       []fixInfo             `json:"fixes,omitempty"`
	Fixed       []fixInfo             `json:"fixed,omitempty"`
	Error       string                `json:"error,omitempty"`
	Timing      *observ.Report        `json:"timing,omitempty"`

	summary string
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return fmt.Errorf("failed to get format flag: %w", err)
	}
	switch format {
	case "pretty", "json":
	default:
		return fmt.Errorf("unsupported format %q (must be pretty or json)", format)
	}
	fixOpts, applyFixes, err := readFixMode(cmd, len(args))
	if err != nil {
		return err
	}
	maxProblems, err := cmd.Flags().GetInt("max-problems")
	if err != nil {
		return fmt.Errorf("failed to get max-problems flag: %w", err)
	}

	sess, err := newSession(cmd, filepath.Dir(args[0]), "analyze")
	if err != nil {
		return err
	}
	defer sess.log.Sync() //nolint:errcheck
	if maxProblems <= 0 {
		maxProblems = sess.cfg.LSP.MaxProblems
	}

	work := func(report reporter) ([]fileReport, error) {
		reports := make([]fileReport, 0, len(args))
		for _, path := range args {
			report(ui.Event{File: path, Status: ui.StatusWorking, Label: "analyze"})
			r := analyzeFile(cmd, sess, path, maxProblems, applyFixes, fixOpts)
			status := ui.StatusDone
			if r.Error != "" {
				status = ui.StatusError
			}
			report(ui.Event{File: path, Status: status})
			reports = append(reports, r)
		}
		return reports, nil
	}

	tui, err := useTUI(cmd, format)
	if err != nil {
		return err
	}
	var reports []fileReport
	if tui {
		reports, err = runWithUI("analyze", args, work)
	} else {
		reports, err = work(discardProgress)
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(reports); err != nil {
			return err
		}
	} else {
		printReports(out, reports, sess.timings)
	}

	for _, r := range reports {
		if r.Error != "" {
			return errDiagnostics
		}
		for _, d := range r.Diagnostics {
			if d.Severity == protocol.SeverityError {
				return errDiagnostics
			}
		}
	}
	return nil
}

// readFixMode maps --fix, --fix-once and --fix-id to engine options. The
// second result is false when no fix flag was given.
func readFixMode(cmd *cobra.Command, files int) (fix.ApplyOptions, bool, error) {
	all, err := cmd.Flags().GetBool("fix")
	if err != nil {
		return fix.ApplyOptions{}, false, fmt.Errorf("failed to get fix flag: %w", err)
	}
	once, err := cmd.Flags().GetBool("fix-once")
	if err != nil {
		return fix.ApplyOptions{}, false, fmt.Errorf("failed to get fix-once flag: %w", err)
	}
	targetID, err := cmd.Flags().GetString("fix-id")
	if err != nil {
		return fix.ApplyOptions{}, false, fmt.Errorf("failed to get fix-id flag: %w", err)
	}

	if targetID != "" && (all || once) {
		return fix.ApplyOptions{}, false, fmt.Errorf("--fix-id cannot be combined with --fix or --fix-once")
	}
	if all && once {
		return fix.ApplyOptions{}, false, fmt.Errorf("--fix and --fix-once are mutually exclusive")
	}
	// fix ids are only unique within one file
	if targetID != "" && files != 1 {
		return fix.ApplyOptions{}, false, fmt.Errorf("--fix-id can only be used with a single file")
	}

	switch {
	case targetID != "":
		return fix.ApplyOptions{Mode: fix.ApplyModeID, TargetID: targetID}, true, nil
	case all:
		return fix.ApplyOptions{Mode: fix.ApplyModeAll}, true, nil
	case once:
		return fix.ApplyOptions{Mode: fix.ApplyModeOnce}, true, nil
	}
	return fix.ApplyOptions{}, false, nil
}

func analyzeFile(cmd *cobra.Command, sess *session, path string, maxProblems int, applyFixes bool, fixOpts fix.ApplyOptions) (report fileReport) {
	report = fileReport{Path: path, Diagnostics: []protocol.Diagnostic{}}
	timer := observ.NewTimer()
	defer func() {
		if sess.timings {
			r := timer.Report()
			report.Timing = &r
			report.summary = timer.Summary()
		}
	}()

	doc, err := documentFor(path)
	if err != nil {
		report.Error = err.Error()
		return report
	}

	idx := timer.Begin("analyze")
	diags, err := sess.svc.Analyze(cmd.Context(), doc)
	timer.End(idx, "")
	if err != nil {
		report.Error = err.Error()
		return report
	}

	for _, f := range fix.Provide(diags) {
		report.Fixes = append(report.Fixes, fixInfo{ID: f.ID, Title: f.Title})
	}
	if applyFixes {
		idx = timer.Begin("fix")
		fixed, err := fixFile(path, doc.Text, diags, fixOpts)
		timer.End(idx, fmt.Sprintf("%d applied", len(fixed)))
		if err != nil {
			report.Error = err.Error()
		}
		report.Fixed = fixed
	}

	if maxProblems > 0 && len(diags) > maxProblems {
		diags = diags[:maxProblems]
	}
	report.Diagnostics = diags
	return report
}

// fixFile applies the fixes selected by opts and rewrites path.
func fixFile(path, text string, diags []protocol.Diagnostic, opts fix.ApplyOptions) ([]fixInfo, error) {
	updated, result, err := fix.Apply(text, diags, opts)
	if errors.Is(err, fix.ErrNoFixes) {
		if opts.Mode == fix.ApplyModeID {
			return nil, fmt.Errorf("no fix with id %q", opts.TargetID)
		}
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, []byte(updated), info.Mode().Perm()); err != nil {
		return nil, fmt.Errorf("failed to write %q: %w", path, err)
	}
	applied := make([]fixInfo, 0, len(result.Applied))
	for _, f := range result.Applied {
		applied = append(applied, fixInfo{ID: f.ID, Title: f.Title})
	}
	return applied, nil
}

var (
	errorColor   = color.New(color.FgRed, color.Bold)
	warningColor = color.New(color.FgYellow, color.Bold)
	infoColor    = color.New(color.FgCyan)
	pathColor    = color.New(color.Bold)
)

func severityColor(sev protocol.Severity) *color.Color {
	switch sev {
	case protocol.SeverityError:
		return errorColor
	case protocol.SeverityWarning:
		return warningColor
	default:
		return infoColor
	}
}

func printReports(out io.Writer, reports []fileReport, timings bool) {
	for _, r := range reports {
		if r.Error != "" {
			fmt.Fprintf(out, "%s: %s: %s\n", pathColor.Sprint(r.Path), errorColor.Sprint("FAILED"), r.Error)
			continue
		}
		for _, d := range r.Diagnostics {
			message := strings.ReplaceAll(d.Message, "\n", "\n    ")
			fmt.Fprintf(out, "%s:%d:%d: %s: %s\n",
				pathColor.Sprint(r.Path),
				d.Range.Start.Line+1,
				d.Range.Start.Character+1,
				severityColor(d.Severity).Sprint(d.Severity),
				message,
			)
		}
		if len(r.Fixed) > 0 {
			for _, f := range r.Fixed {
				fmt.Fprintf(out, "%s: fixed: %s [%s]\n", pathColor.Sprint(r.Path), f.Title, f.ID)
			}
		} else {
			for _, f := range r.Fixes {
				fmt.Fprintf(out, "%s: fix available: %s [%s]\n", pathColor.Sprint(r.Path), f.Title, f.ID)
			}
		}
		if timings && r.summary != "" {
			fmt.Fprintf(out, "%s: timings: %s\n", r.Path, r.summary)
		}
	}
}
