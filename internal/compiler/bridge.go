// Package compiler runs the external Keli compiler.
//
// Every invocation writes the document text to its own scratch file next to
// the document, runs `<compiler> <command> <scratch> [args...]` and collects
// stdout. Any stderr output fails the request, whatever the exit code.
// Identical concurrent requests share one child process.
package compiler

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"kelilsp/internal/logging"
	"kelilsp/internal/observ"
)

// waitDelay bounds how long Wait keeps reading pipes after the child is
// killed; grandchildren holding the pipes open must not hang the bridge.
const waitDelay = 2 * time.Second

// Options configures a Bridge.
type Options struct {
	// Compiler is the executable name or path.
	Compiler string
	// Timeout bounds each invocation and must be positive.
	Timeout time.Duration
	// ScratchPrefix is the file name prefix of scratch files.
	ScratchPrefix string
	Logger        *logging.Logger
}

// Bridge turns requests into compiler invocations.
type Bridge struct {
	compiler string
	timeout  time.Duration
	prefix   string
	log      *zap.Logger
	group    singleflight.Group
	newID    func() string

	mu      sync.Mutex
	flights map[string]*flight
}

// flight is the shared context of one de-duplicated invocation. The child is
// killed when the last caller waiting on it leaves.
type flight struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

// New constructs a Bridge.
func New(opts Options) (*Bridge, error) {
	if strings.TrimSpace(opts.Compiler) == "" {
		return nil, errors.New("compiler: executable not configured")
	}
	if opts.Timeout <= 0 {
		return nil, fmt.Errorf("compiler: timeout must be positive, got %s", opts.Timeout)
	}
	prefix := opts.ScratchPrefix
	if prefix == "" {
		prefix = "__temp__"
	}
	if strings.ContainsRune(prefix, filepath.Separator) {
		return nil, fmt.Errorf("compiler: scratch prefix %q must not contain a path separator", prefix)
	}
	return &Bridge{
		compiler: opts.Compiler,
		timeout:  opts.Timeout,
		prefix:   prefix,
		log:      opts.Logger.Named("bridge").Zap(),
		newID:    uuid.NewString,
		flights:  make(map[string]*flight),
	}, nil
}

// Compiler returns the configured executable.
func (b *Bridge) Compiler() string { return b.compiler }

// Invoke runs req and returns the raw stdout. Callers share the returned
// slice with other callers of an identical request and must not modify it.
//
// Identical concurrent requests share one child. A caller whose ctx ends
// stops waiting; the child is killed once no caller is waiting on it, and
// in any case when the bridge timeout expires.
func (b *Bridge) Invoke(ctx context.Context, req Request) ([]byte, error) {
	key := requestKey(req)
	f := b.join(key)
	ch := b.group.DoChan(key, func() (any, error) {
		return b.invoke(f.ctx, req)
	})
	select {
	case res := <-ch:
		b.leave(key, f)
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			b.log.Debug("shared invocation", zap.String("command", string(req.Command)), zap.String("uri", req.Doc.URI))
		}
		return res.Val.([]byte), nil
	case <-ctx.Done():
		b.leave(key, f)
		return nil, &Error{Kind: KindProcess, Command: req.Command, Detail: "request abandoned", Err: ctx.Err()}
	}
}

func (b *Bridge) join(key string) *flight {
	b.mu.Lock()
	defer b.mu.Unlock()
	f := b.flights[key]
	if f == nil {
		ctx, cancel := context.WithCancel(context.Background())
		f = &flight{ctx: ctx, cancel: cancel}
		b.flights[key] = f
	}
	f.waiters++
	return f
}

// leave drops one waiter. The last one cancels the shared context and makes
// the next identical request start a fresh child instead of joining a
// dying one.
func (b *Bridge) leave(key string, f *flight) {
	b.mu.Lock()
	defer b.mu.Unlock()
	f.waiters--
	if f.waiters > 0 {
		return
	}
	f.cancel()
	if b.flights[key] == f {
		delete(b.flights, key)
		b.group.Forget(key)
	}
}

func (b *Bridge) invoke(ctx context.Context, req Request) ([]byte, error) {
	timer := observ.NewTimer()

	idx := timer.Begin("scratch")
	scratchPath, err := b.writeScratch(req.Doc)
	timer.End(idx, "")
	if err != nil {
		return nil, &Error{Kind: KindIO, Command: req.Command, Err: err}
	}
	defer b.removeScratch(scratchPath)

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	p := &pending{}
	var stdout bytes.Buffer
	cmd := exec.CommandContext(ctx, b.compiler, req.argv(scratchPath)...)
	cmd.Dir = filepath.Dir(scratchPath)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderrTrap{p: p, cmd: req.Command, cancel: cancel}
	cmd.WaitDelay = waitDelay

	idx = timer.Begin("spawn")
	if err := cmd.Start(); err != nil {
		timer.End(idx, "failed")
		return nil, &Error{Kind: KindProcess, Command: req.Command, Detail: "spawn failed", Err: err}
	}
	timer.End(idx, "")

	idx = timer.Begin("wait")
	waitErr := cmd.Wait()
	timer.End(idx, exitNote(cmd))

	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		p.reject(&Error{Kind: KindTimeout, Command: req.Command, Detail: fmt.Sprintf("no result after %s", b.timeout)})
	case ctx.Err() != nil:
		p.reject(&Error{Kind: KindProcess, Command: req.Command, Detail: "canceled", Err: ctx.Err()})
	}
	var exitErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) {
		p.reject(&Error{Kind: KindProcess, Command: req.Command, Err: waitErr})
	}
	p.resolve(stdout.Bytes())

	out, err := p.result()
	fields := []zap.Field{
		zap.String("command", string(req.Command)),
		zap.String("uri", req.Doc.URI),
		zap.Strings("args", req.Args),
		zap.Object("timings", timer.Report()),
	}
	if err != nil {
		b.log.Debug("invocation failed", append(fields, zap.Error(err))...)
		return nil, err
	}
	b.log.Debug("invocation done", append(fields, zap.Int("bytes", len(out)))...)
	return out, nil
}

func (b *Bridge) writeScratch(doc Document) (string, error) {
	dir := doc.Dir
	if dir == "" {
		dir = os.TempDir()
	}
	path := filepath.Join(dir, b.prefix+"-"+b.newID()+".keli")
	if err := os.WriteFile(path, []byte(doc.Text), 0o600); err != nil {
		return "", fmt.Errorf("write scratch file: %w", err)
	}
	return path, nil
}

func (b *Bridge) removeScratch(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		b.log.Debug("remove scratch file", zap.String("path", path), zap.Error(err))
	}
}

func requestKey(req Request) string {
	sum := sha256.Sum256([]byte(req.Doc.Text))
	var b strings.Builder
	b.WriteString(string(req.Command))
	b.WriteByte(0)
	b.WriteString(req.Doc.Dir)
	b.WriteByte(0)
	b.WriteString(strings.Join(req.Args, "\x1f"))
	b.WriteByte(0)
	b.WriteString(hex.EncodeToString(sum[:]))
	return b.String()
}

func exitNote(cmd *exec.Cmd) string {
	if cmd.ProcessState == nil {
		return ""
	}
	return fmt.Sprintf("exit=%d", cmd.ProcessState.ExitCode())
}

// pending settles exactly once; whichever of stdout completion or a stderr
// chunk arrives first decides the outcome and later events are dropped.
type pending struct {
	mu      sync.Mutex
	settled bool
	out     []byte
	err     error
}

func (p *pending) resolve(out []byte) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.settled {
		return false
	}
	p.settled, p.out = true, out
	return true
}

func (p *pending) reject(err error) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.settled {
		return false
	}
	p.settled, p.err = true, err
	return true
}

func (p *pending) result() ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.out, p.err
}

// stderrTrap fails the request on the first stderr chunk and stops the child.
type stderrTrap struct {
	p      *pending
	cmd    Command
	cancel context.CancelFunc
}

func (s *stderrTrap) Write(chunk []byte) (int, error) {
	if len(chunk) > 0 && s.p.reject(&Error{Kind: KindProcess, Command: s.cmd, Detail: strings.TrimSpace(string(chunk))}) {
		s.cancel()
	}
	return len(chunk), nil
}
