package translate

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"kelilsp/internal/protocol"
)

// RunPrefixWidth is the number of leading characters the compiler prints
// before the line number of every run output line.
const RunPrefixWidth = 5

// Frames parses run output. Frames keep the order the compiler printed them
// in. A malformed line fails the whole output; there is no partial result.
func Frames(raw []byte) ([]protocol.ExecutionFrame, error) {
	var frames []protocol.ExecutionFrame
	for i, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSuffix(line, "\r")
		if line == "" {
			continue
		}
		frame, err := parseFrame(line)
		if err != nil {
			return nil, fmt.Errorf("run output line %d: %w", i+1, err)
		}
		frames = append(frames, frame)
	}
	if frames == nil {
		frames = []protocol.ExecutionFrame{}
	}
	return frames, nil
}

func parseFrame(line string) (protocol.ExecutionFrame, error) {
	rest, ok := dropRunes(line, RunPrefixWidth)
	if !ok {
		return protocol.ExecutionFrame{}, fmt.Errorf("shorter than the %d-character prefix: %q", RunPrefixWidth, line)
	}
	num, output, ok := strings.Cut(rest, "=")
	if !ok {
		return protocol.ExecutionFrame{}, fmt.Errorf("missing '=': %q", line)
	}
	n, err := strconv.Atoi(strings.TrimSpace(num))
	if err != nil {
		return protocol.ExecutionFrame{}, fmt.Errorf("line number %q: %w", strings.TrimSpace(num), err)
	}
	return protocol.ExecutionFrame{
		LineNumber: n,
		OutputText: strings.TrimLeftFunc(output, unicode.IsSpace),
	}, nil
}

func dropRunes(s string, n int) (string, bool) {
	for i := 0; i < n; i++ {
		if s == "" {
			return "", false
		}
		_, size := utf8.DecodeRuneInString(s)
		s = s[size:]
	}
	return s, true
}
