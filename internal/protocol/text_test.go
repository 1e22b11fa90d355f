package protocol

import "testing"

func TestOffsetAtUTF16(t *testing.T) {
	text := "a😀b\nsecond"
	cases := []struct {
		pos  Position
		want int
	}{
		{Position{0, 0}, 0},
		{Position{0, 1}, 1},
		{Position{0, 2}, 1}, // inside the surrogate pair
		{Position{0, 3}, 5},
		{Position{0, 99}, 6},
		{Position{1, 3}, 10},
		{Position{7, 0}, len(text)},
		{Position{-1, 0}, 0},
	}
	for _, tc := range cases {
		if got := OffsetAt(text, tc.pos); got != tc.want {
			t.Errorf("OffsetAt(%+v) = %d, want %d", tc.pos, got, tc.want)
		}
	}
}

func TestApplyEditInsertAndReplace(t *testing.T) {
	text := "one\ntwo\n"
	insert := TextEdit{Range: Range{Start: Position{1, 3}, End: Position{1, 3}}, NewText: "!"}
	if got := ApplyEdit(text, insert); got != "one\ntwo!\n" {
		t.Fatalf("insert = %q", got)
	}
	replace := TextEdit{Range: Range{Start: Position{0, 0}, End: Position{1, 0}}, NewText: ""}
	if got := ApplyEdit(text, replace); got != "two\n" {
		t.Fatalf("replace = %q", got)
	}
}
