package assets

import (
	"context"
	"fmt"

	"vidgen-pipeline/config"
)

// Lavfi synthesizes background audio procedurally with ffmpeg's lavfi
// sources: band-filtered noise for ambience, a sine chord for music,
// anullsrc for silence.
type Lavfi struct {
	sampleRate int
	run        Runner
}

// NewLavfi creates a new background synthesizer
func NewLavfi(cfg *config.Config) *Lavfi {
	return &Lavfi{sampleRate: cfg.Assets.SampleRate, run: FFmpeg{}}
}

// NewLavfiWithRunner substitutes the runner, used in tests
func NewLavfiWithRunner(cfg *config.Config, run Runner) *Lavfi {
	l := NewLavfi(cfg)
	l.run = run
	return l
}

// Generate synthesizes audio for the directive into outFile
func (l *Lavfi) Generate(ctx context.Context, d Directive, outFile string) error {
	var source string
	switch d.Type {
	case "silence":
		source = fmt.Sprintf("anullsrc=r=%d:cl=mono", l.sampleRate)
	case "music":
		source = l.musicFilter(d)
	default:
		source = l.ambientFilter(d)
	}

	return l.run.Run(ctx, "-y",
		"-f", "lavfi",
		"-i", source,
		"-t", fmt.Sprintf("%.3f", d.Duration),
		"-acodec", "pcm_s16le",
		outFile,
	)
}

func (l *Lavfi) ambientFilter(d Directive) string {
	switch d.Band {
	case "low":
		return fmt.Sprintf("anoisesrc=c=brownian:r=%d:a=0.04,highpass=f=40,lowpass=f=300", l.sampleRate)
	case "high":
		return fmt.Sprintf("anoisesrc=c=white:r=%d:a=0.02,highpass=f=1000,lowpass=f=5000", l.sampleRate)
	case "mid":
		return fmt.Sprintf("anoisesrc=c=pink:r=%d:a=0.04,highpass=f=100,lowpass=f=2000", l.sampleRate)
	default:
		return fmt.Sprintf("anoisesrc=c=pink:r=%d:a=0.03,highpass=f=200,lowpass=f=2000", l.sampleRate)
	}
}

// musicFilter builds a simple sustained triad: C major, or C minor for
// dark/sad cues
func (l *Lavfi) musicFilter(d Directive) string {
	third := 329.63 // E4
	if d.Minor {
		third = 311.13 // Eb4
	}
	return fmt.Sprintf(
		"sine=f=261.63:r=%d[s1];sine=f=%.2f:r=%d[s2];sine=f=392.00:r=%d[s3];[s1][s2][s3]amix=inputs=3:duration=longest",
		l.sampleRate, third, l.sampleRate, l.sampleRate,
	)
}
