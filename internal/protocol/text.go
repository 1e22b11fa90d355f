package protocol

import "unicode/utf8"

// OffsetAt converts pos into a byte offset within text. Positions past the
// end of a line clamp to the line end, positions past the last line clamp to
// len(text).
func OffsetAt(text string, pos Position) int {
	if pos.Line < 0 || pos.Character < 0 {
		return 0
	}
	line := 0
	i := 0
	for i < len(text) && line < pos.Line {
		if text[i] == '\n' {
			line++
		}
		i++
	}
	if line < pos.Line {
		return len(text)
	}
	units := 0
	for i < len(text) && units < pos.Character {
		if text[i] == '\n' {
			break
		}
		r, size := utf8.DecodeRuneInString(text[i:])
		need := 1
		if r > 0xFFFF {
			need = 2
		}
		if units+need > pos.Character {
			break
		}
		units += need
		i += size
	}
	return i
}

// ApplyEdit returns text with edit applied. Out-of-range positions clamp.
func ApplyEdit(text string, edit TextEdit) string {
	start := OffsetAt(text, edit.Range.Start)
	end := OffsetAt(text, edit.Range.End)
	if end < start {
		end = start
	}
	return text[:start] + edit.NewText + text[end:]
}
