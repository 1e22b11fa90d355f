package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"kelilsp/internal/completion"
	"kelilsp/internal/protocol"
)

var completeCmd = &cobra.Command{
	Use:   "complete [flags] <file.keli> <line> <character>",
	Short: "Print completion candidates at a zero-based position",
	Args:  cobra.ExactArgs(3),
	RunE:  runComplete,
}

func init() {
	completeCmd.Flags().String("format", "pretty", "output format (pretty|json)")
}

func runComplete(cmd *cobra.Command, args []string) error {
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return fmt.Errorf("failed to get format flag: %w", err)
	}
	if format != "pretty" && format != "json" {
		return fmt.Errorf("unsupported format %q (must be pretty or json)", format)
	}
	line, err := strconv.Atoi(args[1])
	if err != nil || line < 0 {
		return fmt.Errorf("invalid line %q", args[1])
	}
	character, err := strconv.Atoi(args[2])
	if err != nil || character < 0 {
		return fmt.Errorf("invalid character %q", args[2])
	}

	sess, err := newSession(cmd, filepath.Dir(args[0]), "complete")
	if err != nil {
		return err
	}
	defer sess.log.Sync() //nolint:errcheck

	doc, err := documentFor(args[0])
	if err != nil {
		return err
	}
	aggregator := completion.New(sess.svc, sess.log.Named("completion").Zap())
	items := aggregator.Complete(cmd.Context(), doc, protocol.Position{Line: line, Character: character})

	out := cmd.OutOrStdout()
	if format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(items)
	}
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{item.Label, kindName(item.Kind), firstLine(item.Detail)})
	}
	t := table.New().
		Border(lipgloss.HiddenBorder()).
		Headers("LABEL", "KIND", "DETAIL").
		Rows(rows...)
	_, err = fmt.Fprintln(out, t.Render())
	return err
}

func kindName(kind protocol.CompletionItemKind) string {
	switch kind {
	case protocol.KindFunction:
		return "function"
	case protocol.KindMethod:
		return "method"
	case protocol.KindConstructor:
		return "constructor"
	case protocol.KindProperty:
		return "property"
	case protocol.KindEnum:
		return "enum"
	case protocol.KindVariable:
		return "variable"
	case protocol.KindKeyword:
		return "keyword"
	case protocol.KindText:
		return "text"
	default:
		return strconv.Itoa(int(kind))
	}
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
