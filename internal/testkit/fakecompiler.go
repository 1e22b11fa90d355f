// Package testkit provides a fake Keli compiler for tests.
//
// The fake is the test binary itself: a package's TestMain calls
// RunFakeCompilerIfRequested before m.Run, and tests point the bridge at
// os.Args[0] after selecting a mode with t.Setenv(EnvMode, ...).
package testkit

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"
)

const (
	// EnvMode selects the fake compiler behaviour. Empty means "not a fake".
	EnvMode = "KELI_FAKE_COMPILER"
	// EnvLog names a file that receives one line per invocation:
	// the argv after the program name, tab separated.
	EnvLog = "KELI_FAKE_COMPILER_LOG"
	// EnvDelay delays every invocation (time.ParseDuration syntax).
	EnvDelay = "KELI_FAKE_COMPILER_DELAY"
)

// Modes understood by the fake compiler.
const (
	ModeKeli    = "keli"    // scriptable behaviour driven by markers in the source
	ModeStderr  = "stderr"  // write to stderr, then valid stdout
	ModeHang    = "hang"    // never finish
	ModeDouble  = "double"  // analyze output encoded twice
	ModeGarbage = "garbage" // unparsable stdout
)

// StderrMessage is what ModeStderr writes to stderr.
const StderrMessage = "keli: internal compiler error\n"

// RunFakeCompilerIfRequested turns the current process into the fake
// compiler when EnvMode is set and exits. It returns otherwise.
func RunFakeCompilerIfRequested() {
	mode := os.Getenv(EnvMode)
	if mode == "" {
		return
	}
	os.Exit(fakeCompiler(mode, os.Args[1:], os.Stdout, os.Stderr))
}

// UseFakeCompiler selects mode for the rest of the test and returns the
// executable to hand to the bridge.
func UseFakeCompiler(t *testing.T, mode string) string {
	t.Helper()
	t.Setenv(EnvMode, mode)
	return os.Args[0]
}

// InvocationLog enables the invocation log and returns its path.
func InvocationLog(t *testing.T) string {
	t.Helper()
	path := t.TempDir() + "/invocations.log"
	t.Setenv(EnvLog, path)
	return path
}

// ReadInvocations returns the logged argv lists.
func ReadInvocations(t *testing.T, path string) [][]string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		t.Fatalf("read invocation log: %v", err)
	}
	var out [][]string
	for _, line := range strings.Split(strings.TrimRight(string(data), "\n"), "\n") {
		if line == "" {
			continue
		}
		out = append(out, strings.Split(line, "\t"))
	}
	return out
}

func fakeCompiler(mode string, args []string, stdout, stderr io.Writer) int {
	if path := os.Getenv(EnvLog); path != "" {
		if f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644); err == nil {
			fmt.Fprintln(f, strings.Join(args, "\t"))
			f.Close()
		}
	}
	if delay, err := time.ParseDuration(os.Getenv(EnvDelay)); err == nil {
		time.Sleep(delay)
	}
	if len(args) < 2 {
		fmt.Fprintln(stderr, "usage: keli <command> <file> [args...]")
		return 2
	}
	command, path, extra := args[0], args[1], args[2:]

	switch mode {
	case ModeHang:
		time.Sleep(time.Hour)
		return 0
	case ModeStderr:
		fmt.Fprint(stderr, StderrMessage)
		fmt.Fprint(stdout, "[]")
		return 0
	case ModeGarbage:
		fmt.Fprint(stdout, "Segmentation fault? no, just text")
		return 0
	}

	src, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(stderr, "keli: cannot read %s: %v\n", path, err)
		return 1
	}
	lines := strings.Split(string(src), "\n")

	switch command {
	case "analyze":
		payload, _ := json.Marshal(analyze(lines))
		if mode == ModeDouble {
			payload, _ = json.Marshal(string(payload))
		}
		stdout.Write(payload)
	case "suggest":
		if len(extra) != 2 {
			fmt.Fprintln(stderr, "keli: suggest expects <line> <column>")
			return 2
		}
		line, errL := strconv.Atoi(extra[0])
		col, errC := strconv.Atoi(extra[1])
		if errL != nil || errC != nil {
			fmt.Fprintln(stderr, "keli: bad position")
			return 2
		}
		payload, _ := json.Marshal(suggest(lines, line, col))
		stdout.Write(payload)
	case "run":
		if len(extra) != 1 || extra[0] != "--show-line-number" {
			fmt.Fprintln(stderr, "keli: run expects --show-line-number")
			return 2
		}
		for i, l := range lines {
			rest, ok := strings.CutPrefix(strings.TrimSpace(l), "print ")
			if !ok {
				continue
			}
			fmt.Fprintf(stdout, "#OUT#%d = %s\n", i+1, rest)
		}
	default:
		fmt.Fprintf(stderr, "keli: unknown command %q\n", command)
		return 2
	}
	return 0
}

type fakePosition struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

type fakeRange struct {
	Start fakePosition `json:"start"`
	End   fakePosition `json:"end"`
}

type fakeDiagnostic struct {
	Range    fakeRange `json:"range"`
	Severity int       `json:"severity"`
	Message  string    `json:"message"`
}

// analyze reports two markers:
//
//	@missing(A,B)  exhaustive-match diagnostic covering the marker
//	@error text    error diagnostic with untrimmed message
func analyze(lines []string) []fakeDiagnostic {
	out := []fakeDiagnostic{}
	for i, l := range lines {
		if start := strings.Index(l, "@missing("); start >= 0 {
			end := strings.Index(l[start:], ")")
			if end < 0 {
				continue
			}
			names := strings.Split(l[start+len("@missing("):start+end], ",")
			msg := "Missing cases"
			for _, n := range names {
				msg += "\n  " + strings.TrimSpace(n)
			}
			out = append(out, fakeDiagnostic{
				Range: fakeRange{
					Start: fakePosition{Line: i, Character: start},
					End:   fakePosition{Line: i, Character: start + end},
				},
				Severity: 1,
				Message:  msg + "\n",
			})
		}
		if start := strings.Index(l, "@error "); start >= 0 {
			out = append(out, fakeDiagnostic{
				Range: fakeRange{
					Start: fakePosition{Line: i, Character: start},
					End:   fakePosition{Line: i, Character: len(l)},
				},
				Severity: 1,
				Message:  "  " + l[start+len("@error "):] + "  \n",
			})
		}
	}
	return out
}

type fakeCompletion struct {
	Label         string `json:"label"`
	Kind          any    `json:"kind"`
	Detail        string `json:"detail"`
	InsertText    string `json:"insertText,omitempty"`
	Documentation string `json:"documentation,omitempty"`
}

// suggest answers member completions after a '.', otherwise one variable
// whose detail echoes the position it was asked for.
func suggest(lines []string, line, col int) []fakeCompletion {
	if line >= 0 && line < len(lines) && col >= 0 && col < len(lines[line]) && lines[line][col] == '.' {
		return []fakeCompletion{
			{Label: "length", Kind: "Function", Detail: "Int", Documentation: "Number of items."},
			{Label: "_hidden", Kind: 3, Detail: "internal"},
		}
	}
	return []fakeCompletion{
		{Label: "answer", Kind: 6, Detail: fmt.Sprintf("line=%d col=%d", line, col)},
		{Label: "_scratch", Kind: "Variable"},
	}
}
