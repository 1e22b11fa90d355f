package observ

import (
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zapcore"
)

func TestTimerReportSumsPhases(t *testing.T) {
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	timer := NewTimer()
	timer.now = func() time.Time { return clock }

	idx := timer.Begin("scratch")
	clock = clock.Add(2 * time.Millisecond)
	timer.End(idx, "")

	idx = timer.Begin("wait")
	clock = clock.Add(5 * time.Millisecond)
	timer.End(idx, "exit=0")

	report := timer.Report()
	if len(report.Phases) != 2 {
		t.Fatalf("expected 2 phases, got %d", len(report.Phases))
	}
	if report.TotalMS != 7 {
		t.Fatalf("expected total 7ms, got %v", report.TotalMS)
	}
	summary := timer.Summary()
	if !strings.Contains(summary, "wait=5.00ms(exit=0)") || !strings.HasSuffix(summary, "total=7.00ms") {
		t.Fatalf("unexpected summary: %q", summary)
	}
}

func TestTimerEndIgnoresBadIndex(t *testing.T) {
	timer := NewTimer()
	timer.End(3, "nope")
	if got := timer.Report(); len(got.Phases) != 0 {
		t.Fatalf("expected empty report, got %+v", got)
	}
}

func TestReportMarshalLogObject(t *testing.T) {
	report := Report{
		TotalMS: 3,
		Phases: []PhaseReport{
			{Name: "spawn", DurationMS: 1},
			{Name: "wait", DurationMS: 2, Note: "exit=1"},
		},
	}
	enc := zapcore.NewMapObjectEncoder()
	if err := report.MarshalLogObject(enc); err != nil {
		t.Fatal(err)
	}
	if enc.Fields["wait_ms"] != 2.0 || enc.Fields["wait_note"] != "exit=1" || enc.Fields["total_ms"] != 3.0 {
		t.Fatalf("unexpected fields %v", enc.Fields)
	}
	if _, ok := enc.Fields["spawn_note"]; ok {
		t.Fatal("empty note must be omitted")
	}
}
