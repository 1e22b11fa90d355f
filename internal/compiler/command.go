package compiler

import (
	"fmt"
	"strings"
)

// Command is the first argument passed to the compiler.
type Command string

const (
	Analyze Command = "analyze"
	Suggest Command = "suggest"
	Run     Command = "run"
)

// ShowLineNumberFlag is the extra argument every run request carries.
const ShowLineNumberFlag = "--show-line-number"

// ParseCommand validates a command name.
func ParseCommand(s string) (Command, error) {
	switch Command(strings.ToLower(strings.TrimSpace(s))) {
	case Analyze:
		return Analyze, nil
	case Suggest:
		return Suggest, nil
	case Run:
		return Run, nil
	default:
		return "", fmt.Errorf("invalid compiler command: %q (expected: analyze|suggest|run)", s)
	}
}

// Document is the snapshot handed to one invocation.
type Document struct {
	URI string
	// Dir is where the scratch file is created so that relative imports
	// resolve like they would for the real file. Empty means os.TempDir().
	Dir  string
	Text string
}

// Request is one compiler invocation.
type Request struct {
	Doc     Document
	Command Command
	Args    []string
}

// argv builds the compiler argument list for a given scratch path.
func (r Request) argv(scratchPath string) []string {
	out := make([]string, 0, 2+len(r.Args))
	out = append(out, string(r.Command), scratchPath)
	out = append(out, r.Args...)
	return out
}
