package assets

import (
	"regexp"
	"strconv"
	"strings"
)

// Directive is the synthesis instruction parsed from a free-text
// background cue
type Directive struct {
	Type     string // silence | ambient | music
	Duration float64
	Band     string // low | mid | high | mixed
	Minor    bool   // music only: minor key for dark/sad cues
}

var durationPattern = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(?:sec|seconds|second|s)\b`)

// ParseCue turns a background cue like "melancholy orchestral music" or
// "forest ambience, 8 seconds" into a Directive. An empty or unrecognized
// cue defaults to ambient; an empty cue is silence.
func ParseCue(cue string, defaultDuration float64) Directive {
	d := Directive{Type: "ambient", Duration: defaultDuration, Band: "mixed"}

	lower := strings.ToLower(strings.TrimSpace(cue))
	if lower == "" {
		d.Type = "silence"
		return d
	}

	switch {
	case strings.Contains(lower, "silence") || strings.Contains(lower, "quiet"):
		d.Type = "silence"
	case containsAny(lower, "music", "melody", "song", "tune"):
		d.Type = "music"
	case containsAny(lower, "ambient", "atmosphere", "background", "noise"):
		d.Type = "ambient"
	}

	if m := durationPattern.FindStringSubmatch(lower); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil && v > 0 {
			d.Duration = v
		}
	}

	switch {
	case containsAny(lower, "deep", "low", "bass", "rumble"):
		d.Band = "low"
	case containsAny(lower, "high", "bright", "chirp", "bell"):
		d.Band = "high"
	case containsAny(lower, "middle", "mid", "voice"):
		d.Band = "mid"
	}

	d.Minor = containsAny(lower, "sad", "dark", "melancholy", "eerie")
	return d
}

func containsAny(s string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
