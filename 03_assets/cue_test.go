package assets

import "testing"

func TestParseCue(t *testing.T) {
	tests := []struct {
		name string
		cue  string
		want Directive
	}{
		{
			name: "empty cue is silence",
			cue:  "",
			want: Directive{Type: "silence", Duration: 5, Band: "mixed"},
		},
		{
			name: "explicit silence",
			cue:  "complete silence",
			want: Directive{Type: "silence", Duration: 5, Band: "mixed"},
		},
		{
			name: "music keyword",
			cue:  "soft orchestral music",
			want: Directive{Type: "music", Duration: 5, Band: "mixed"},
		},
		{
			name: "minor key for dark cues",
			cue:  "dark eerie melody",
			want: Directive{Type: "music", Duration: 5, Band: "mixed", Minor: true},
		},
		{
			name: "ambient with band",
			cue:  "deep rumbling atmosphere",
			want: Directive{Type: "ambient", Duration: 5, Band: "low"},
		},
		{
			name: "high band",
			cue:  "bright birds chirping ambience",
			want: Directive{Type: "ambient", Duration: 5, Band: "high"},
		},
		{
			name: "explicit duration",
			cue:  "forest ambience, 8 seconds",
			want: Directive{Type: "ambient", Duration: 8, Band: "mixed"},
		},
		{
			name: "fractional duration",
			cue:  "wind noise for 2.5s",
			want: Directive{Type: "ambient", Duration: 2.5, Band: "mixed"},
		},
		{
			name: "unrecognized cue defaults to ambient",
			cue:  "something indescribable",
			want: Directive{Type: "ambient", Duration: 5, Band: "mixed"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseCue(tt.cue, 5)
			if got != tt.want {
				t.Errorf("ParseCue(%q) = %+v, want %+v", tt.cue, got, tt.want)
			}
		})
	}
}
