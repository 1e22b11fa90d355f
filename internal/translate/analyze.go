package translate

import (
	"fmt"
	"strings"

	"kelilsp/internal/protocol"
)

type rawDiagnostic struct {
	Range    *protocol.Range   `json:"range"`
	Severity protocol.Severity `json:"severity"`
	Message  string            `json:"message"`
}

// Diagnostics parses analyze output. A nil error with an empty slice means
// the compiler reported nothing; any error means the result is unknown.
func Diagnostics(raw []byte) ([]protocol.Diagnostic, error) {
	var records []rawDiagnostic
	if err := decodeArray(raw, &records); err != nil {
		return nil, fmt.Errorf("analyze output: %w", err)
	}
	out := make([]protocol.Diagnostic, 0, len(records))
	for i, r := range records {
		if r.Range == nil {
			return nil, fmt.Errorf("analyze output: record %d has no range", i)
		}
		severity := r.Severity
		if severity == 0 {
			severity = protocol.SeverityError
		}
		out = append(out, protocol.Diagnostic{
			Range:    *r.Range,
			Severity: severity,
			Source:   protocol.SourceTag,
			Message:  strings.TrimSpace(r.Message),
		})
	}
	return out, nil
}
