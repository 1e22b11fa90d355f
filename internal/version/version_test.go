package version

import (
	"testing"

	"github.com/fatih/color"
)

func TestVersion_DefaultValues(t *testing.T) {
	if Version == "" {
		t.Error("Version should have a default value")
	}
}

func TestColored_PlainWhenColorDisabled(t *testing.T) {
	prevNoColor := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = prevNoColor }()

	origVersion := Version
	defer func() { Version = origVersion }()

	cases := map[string]string{
		"1.2.3":              "1.2.3",
		"0.1.0-dev":          "0.1.0-dev",
		"1.0.0-beta.1":       "1.0.0-beta.1",
		"1.2.3-rc.1+build.9": "1.2.3-rc.1+build.9",
		"nightly":            "nightly",
	}
	for in, want := range cases {
		Version = in
		if got := Colored(); got != want {
			t.Errorf("Colored() with Version=%q = %q, want %q", in, got, want)
		}
	}
}

func TestColored_AddsEscapesWhenEnabled(t *testing.T) {
	prevNoColor := color.NoColor
	color.NoColor = false
	defer func() { color.NoColor = prevNoColor }()

	origVersion := Version
	defer func() { Version = origVersion }()

	Version = "1.2.3"
	if got := Colored(); got == "1.2.3" {
		t.Fatalf("expected ANSI escapes in %q", got)
	}
}
