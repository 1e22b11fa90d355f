package compiler

import (
	"errors"
	"fmt"
)

// Sentinels matched by errors.Is against *Error values.
var (
	// ErrIO reports a failure to hand the document to the compiler.
	ErrIO = errors.New("scratch file i/o failed")
	// ErrProcess reports a spawn failure or any stderr output.
	ErrProcess = errors.New("compiler process failed")
	// ErrParse reports compiler output that does not match the contract.
	ErrParse = errors.New("malformed compiler output")
	// ErrTimeout reports an invocation that overran its deadline.
	ErrTimeout = errors.New("compiler timed out")
)

// Kind classifies an Error.
type Kind uint8

const (
	KindIO Kind = iota + 1
	KindProcess
	KindParse
	KindTimeout
)

func (k Kind) String() string {
	switch k {
	case KindIO:
		return "io"
	case KindProcess:
		return "process"
	case KindParse:
		return "parse"
	case KindTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindIO:
		return ErrIO
	case KindProcess:
		return ErrProcess
	case KindParse:
		return ErrParse
	case KindTimeout:
		return ErrTimeout
	default:
		return nil
	}
}

// Error is returned by every failing invocation.
type Error struct {
	Kind    Kind
	Command Command
	// Detail is user-facing text, e.g. the stderr chunk for process errors.
	Detail string
	Err    error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("keli %s: %s", e.Command, e.Kind.sentinel())
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel for e.Kind.
func (e *Error) Is(target error) bool {
	return target != nil && target == e.Kind.sentinel()
}

// ParseError wraps a translator failure so callers can classify it like
// bridge failures.
func ParseError(cmd Command, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindParse, Command: cmd, Err: err}
}
