package observ

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
)

// Phase records the duration and metadata of one step of an invocation.
type Phase struct {
	Name  string
	Start time.Time
	Dur   time.Duration
	Note  string
}

// Timer tracks the execution time of the phases of a single compiler
// invocation. It is not safe for concurrent use.
type Timer struct {
	phases []Phase
	now    func() time.Time
}

// NewTimer creates a new empty Timer.
func NewTimer() *Timer { return &Timer{phases: make([]Phase, 0, 4), now: time.Now} }

// Begin starts a new phase and returns its index.
func (t *Timer) Begin(name string) int {
	t.phases = append(t.phases, Phase{Name: name, Start: t.now()})
	return len(t.phases) - 1
}

// End finishes a phase by its index.
func (t *Timer) End(idx int, note string) {
	if idx < 0 || idx >= len(t.phases) {
		return
	}
	p := &t.phases[idx]
	p.Dur = t.now().Sub(p.Start)
	p.Note = note
}

// Summary returns a single-line summary suitable for a log entry.
func (t *Timer) Summary() string {
	report := t.Report()
	parts := make([]string, 0, len(report.Phases)+1)
	for _, p := range report.Phases {
		s := fmt.Sprintf("%s=%.2fms", p.Name, p.DurationMS)
		if p.Note != "" {
			s += "(" + p.Note + ")"
		}
		parts = append(parts, s)
	}
	parts = append(parts, fmt.Sprintf("total=%.2fms", report.TotalMS))
	return strings.Join(parts, " ")
}

// PhaseReport is the serializable form of a phase.
type PhaseReport struct {
	Name       string  `json:"name"`
	DurationMS float64 `json:"duration_ms"`
	Note       string  `json:"note,omitempty"`
}

// Report aggregates all phases.
type Report struct {
	TotalMS float64       `json:"total_ms"`
	Phases  []PhaseReport `json:"phases"`
}

// Report returns the phases and their summed duration in milliseconds.
func (t *Timer) Report() Report {
	if len(t.phases) == 0 {
		return Report{}
	}
	report := Report{
		Phases: make([]PhaseReport, len(t.phases)),
	}
	var total time.Duration
	for i, phase := range t.phases {
		total += phase.Dur
		report.Phases[i] = PhaseReport{
			Name:       phase.Name,
			DurationMS: durationToMillis(phase.Dur),
			Note:       phase.Note,
		}
	}
	report.TotalMS = durationToMillis(total)
	return report
}

// MarshalLogObject logs a Report as one structured field, one key per phase.
func (r Report) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	for _, p := range r.Phases {
		enc.AddFloat64(p.Name+"_ms", p.DurationMS)
		if p.Note != "" {
			enc.AddString(p.Name+"_note", p.Note)
		}
	}
	enc.AddFloat64("total_ms", r.TotalMS)
	return nil
}

func durationToMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
