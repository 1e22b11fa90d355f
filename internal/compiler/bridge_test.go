package compiler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"kelilsp/internal/testkit"
)

func TestMain(m *testing.M) {
	testkit.RunFakeCompilerIfRequested()
	os.Exit(m.Run())
}

func newTestBridge(t *testing.T, compiler string, timeout time.Duration) *Bridge {
	t.Helper()
	b, err := New(Options{Compiler: compiler, Timeout: timeout})
	if err != nil {
		t.Fatalf("new bridge: %v", err)
	}
	return b
}

func TestInvokeFollowsCompilerContract(t *testing.T) {
	defer goleak.VerifyNone(t)
	bridge := newTestBridge(t, testkit.UseFakeCompiler(t, testkit.ModeKeli), 10*time.Second)
	logPath := testkit.InvocationLog(t)
	dir := t.TempDir()

	out, err := bridge.Invoke(context.Background(), Request{
		Doc:     Document{URI: "file:///demo.keli", Dir: dir, Text: "x = 1\n"},
		Command: Suggest,
		Args:    []string{"0", "3"},
	})
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if !strings.Contains(string(out), `"line=0 col=3"`) {
		t.Fatalf("unexpected output: %s", out)
	}

	calls := testkit.ReadInvocations(t, logPath)
	if len(calls) != 1 {
		t.Fatalf("expected 1 invocation, got %d", len(calls))
	}
	argv := calls[0]
	if len(argv) != 4 || argv[0] != "suggest" || argv[2] != "0" || argv[3] != "3" {
		t.Fatalf("unexpected argv: %q", argv)
	}
	if filepath.Dir(argv[1]) != dir || !strings.HasPrefix(filepath.Base(argv[1]), "__temp__-") {
		t.Fatalf("scratch file %q not created in document directory %q", argv[1], dir)
	}
	if _, err := os.Stat(argv[1]); !os.IsNotExist(err) {
		t.Fatalf("expected scratch file to be removed, stat err=%v", err)
	}
}

func TestInvokeStderrFailsRequest(t *testing.T) {
	defer goleak.VerifyNone(t)
	bridge := newTestBridge(t, testkit.UseFakeCompiler(t, testkit.ModeStderr), 10*time.Second)

	_, err := bridge.Invoke(context.Background(), Request{
		Doc:     Document{Dir: t.TempDir(), Text: "anything"},
		Command: Analyze,
	})
	if !errors.Is(err, ErrProcess) {
		t.Fatalf("expected process error, got %v", err)
	}
	var bridgeErr *Error
	if !errors.As(err, &bridgeErr) || bridgeErr.Detail != strings.TrimSpace(testkit.StderrMessage) {
		t.Fatalf("expected stderr content as detail, got %#v", err)
	}
}

func TestInvokeTimeoutKillsChild(t *testing.T) {
	defer goleak.VerifyNone(t)
	bridge := newTestBridge(t, testkit.UseFakeCompiler(t, testkit.ModeHang), 300*time.Millisecond)

	start := time.Now()
	_, err := bridge.Invoke(context.Background(), Request{
		Doc:     Document{Dir: t.TempDir(), Text: "loop"},
		Command: Run,
		Args:    []string{ShowLineNumberFlag},
	})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("timeout took too long: %v", elapsed)
	}
}

func TestInvokeSpawnFailure(t *testing.T) {
	bridge := newTestBridge(t, filepath.Join(t.TempDir(), "no-such-compiler"), time.Second)
	_, err := bridge.Invoke(context.Background(), Request{
		Doc:     Document{Dir: t.TempDir(), Text: ""},
		Command: Analyze,
	})
	if !errors.Is(err, ErrProcess) {
		t.Fatalf("expected process error, got %v", err)
	}
}

func TestInvokeScratchWriteFailure(t *testing.T) {
	bridge := newTestBridge(t, testkit.UseFakeCompiler(t, testkit.ModeKeli), time.Second)
	_, err := bridge.Invoke(context.Background(), Request{
		Doc:     Document{Dir: filepath.Join(t.TempDir(), "missing", "dir"), Text: "x"},
		Command: Analyze,
	})
	if !errors.Is(err, ErrIO) {
		t.Fatalf("expected io error, got %v", err)
	}
}

func TestInvokeSharesIdenticalConcurrentRequests(t *testing.T) {
	defer goleak.VerifyNone(t)
	bridge := newTestBridge(t, testkit.UseFakeCompiler(t, testkit.ModeKeli), 10*time.Second)
	logPath := testkit.InvocationLog(t)
	t.Setenv(testkit.EnvDelay, "400ms")
	dir := t.TempDir()

	req := Request{Doc: Document{Dir: dir, Text: "@error same\n"}, Command: Analyze}
	other := Request{Doc: Document{Dir: dir, Text: "@error different\n"}, Command: Analyze}

	var wg sync.WaitGroup
	outputs := make([]string, 4)
	errs := make([]error, 4)
	for i := 0; i < 4; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			r := req
			if i == 3 {
				r = other
			}
			out, err := bridge.Invoke(context.Background(), r)
			outputs[i], errs[i] = string(out), err
		}()
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("invoke %d: %v", i, err)
		}
	}
	if outputs[0] != outputs[1] || outputs[1] != outputs[2] {
		t.Fatalf("shared invocations returned different output: %q", outputs[:3])
	}
	if outputs[0] == outputs[3] {
		t.Fatalf("different documents returned identical output %q", outputs[0])
	}

	calls := testkit.ReadInvocations(t, logPath)
	if len(calls) != 2 {
		t.Fatalf("expected 2 child processes, got %d: %q", len(calls), calls)
	}
	if calls[0][1] == calls[1][1] {
		t.Fatalf("expected unique scratch files, both used %q", calls[0][1])
	}
}

func scratchFiles(t *testing.T, dir string) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, "__temp__-*"))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	return matches
}

func TestInvokeAbandonedByCallerKillsChild(t *testing.T) {
	defer goleak.VerifyNone(t)
	bridge := newTestBridge(t, testkit.UseFakeCompiler(t, testkit.ModeHang), time.Hour)
	dir := t.TempDir()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := bridge.Invoke(ctx, Request{Doc: Document{Dir: dir, Text: "x"}, Command: Analyze})
	if !errors.Is(err, ErrProcess) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected abandoned request error, got %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for len(scratchFiles(t, dir)) > 0 {
		if time.Now().After(deadline) {
			t.Fatalf("scratch file still present, child not killed: %q", scratchFiles(t, dir))
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestInvokeSharedChildSurvivesOneCallerLeaving(t *testing.T) {
	defer goleak.VerifyNone(t)
	bridge := newTestBridge(t, testkit.UseFakeCompiler(t, testkit.ModeKeli), 10*time.Second)
	logPath := testkit.InvocationLog(t)
	t.Setenv(testkit.EnvDelay, "400ms")
	req := Request{Doc: Document{Dir: t.TempDir(), Text: "@error shared\n"}, Command: Analyze}

	var (
		wg     sync.WaitGroup
		out    []byte
		errOut error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		out, errOut = bridge.Invoke(context.Background(), req)
	}()

	time.Sleep(50 * time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if _, err := bridge.Invoke(ctx, req); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected the impatient caller to give up, got %v", err)
	}
	wg.Wait()

	if errOut != nil {
		t.Fatalf("remaining caller: %v", errOut)
	}
	if !strings.Contains(string(out), "shared") {
		t.Fatalf("unexpected output %q", out)
	}
	if calls := testkit.ReadInvocations(t, logPath); len(calls) != 1 {
		t.Fatalf("expected one shared child, got %d", len(calls))
	}
}

func TestPendingFirstEventWins(t *testing.T) {
	p := &pending{}
	boom := &Error{Kind: KindProcess, Command: Analyze, Detail: "boom"}
	if !p.reject(boom) {
		t.Fatal("first reject should settle")
	}
	if p.resolve([]byte("[]")) {
		t.Fatal("late resolve must be ignored")
	}
	out, err := p.result()
	if out != nil || !errors.Is(err, ErrProcess) {
		t.Fatalf("unexpected result: %q %v", out, err)
	}
}

func TestNewRejectsBadOptions(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Fatal("expected error without compiler")
	}
	if _, err := New(Options{Compiler: "keli"}); err == nil {
		t.Fatal("expected error without timeout")
	}
	if _, err := New(Options{Compiler: "keli", Timeout: time.Second, ScratchPrefix: "a" + string(filepath.Separator) + "b"}); err == nil {
		t.Fatal("expected error for prefix with separator")
	}
}

func TestParseCommand(t *testing.T) {
	for _, name := range []string{"analyze", "SUGGEST", " run "} {
		if _, err := ParseCommand(name); err != nil {
			t.Fatalf("parse %q: %v", name, err)
		}
	}
	if _, err := ParseCommand("build"); err == nil {
		t.Fatal("expected error for unknown command")
	}
}
