package mix

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"vidgen-pipeline/config"
	"vidgen-pipeline/types"
)

// Runner executes one media-tool invocation; the default shells out to ffmpeg
type Runner interface {
	Run(ctx context.Context, args ...string) error
}

// FFmpeg is the exec-backed Runner
type FFmpeg struct{}

func (FFmpeg) Run(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// Mixer combines narration and background tracks per segment and
// concatenates the per-segment mixes into the run's single audio track
type Mixer struct {
	cfg *config.Config
	run Runner
}

// New creates a new Mixer
func New(cfg *config.Config) *Mixer {
	return &Mixer{cfg: cfg, run: FFmpeg{}}
}

// NewWithRunner substitutes the runner, used in tests
func NewWithRunner(cfg *config.Config, run Runner) *Mixer {
	return &Mixer{cfg: cfg, run: run}
}

// bounded derives the per-call timeout context every runner invocation
// runs under, so a hung ffmpeg cannot stall the run
func (m *Mixer) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, time.Duration(m.cfg.Assets.TimeoutSec)*time.Second)
}

// MixSegment blends one segment's narration and background into a single
// track of exactly the segment's duration
func (m *Mixer) MixSegment(ctx context.Context, entry types.TimelineEntry, outDir string) (string, error) {
	outFile := filepath.Join(outDir, fmt.Sprintf("mixed_%03d.wav", entry.Segment.Index))

	filter := SegmentFilter(entry.Segment.Duration, m.cfg.Mix.NarrationVolume, m.cfg.Mix.BackgroundVolume)

	tctx, cancel := m.bounded(ctx)
	defer cancel()
	err := m.run.Run(tctx, "-y",
		"-i", entry.Narration.Path,
		"-i", entry.Background.Path,
		"-filter_complex", filter,
		"-map", "[out]",
		"-ar", fmt.Sprintf("%d", m.cfg.Assets.SampleRate),
		"-acodec", "pcm_s16le",
		outFile,
	)
	if err != nil {
		return "", fmt.Errorf("ffmpeg segment mix: %w", err)
	}
	return outFile, nil
}

// SegmentFilter builds the per-segment filter graph. Narration shorter than
// the segment is padded with silence, never stretched — stretching would
// shift pitch. The limiter keeps the additive mix from clipping.
func SegmentFilter(duration, narrationVolume, backgroundVolume float64) string {
	return fmt.Sprintf(
		"[0:a]apad,atrim=0:%.3f,volume=%.2f[nar];"+
			"[1:a]apad,atrim=0:%.3f,volume=%.2f[bg];"+
			"[nar][bg]amix=inputs=2:duration=first:normalize=0,alimiter=limit=0.97[out]",
		duration, narrationVolume,
		duration, backgroundVolume,
	)
}

// MixTimeline concatenates the per-segment mixes in index order into one
// track. Boundaries whose visual transition has a duration get an audio
// cross-fade of exactly that duration to keep audio/video sync; a timeline
// with no blends at all butts together via the concat demuxer.
func (m *Mixer) MixTimeline(ctx context.Context, timeline *types.Timeline, outDir string) (string, error) {
	log.Println("[mix] Concatenating segment mixes...")

	outFile := filepath.Join(outDir, "audio_final.wav")

	tracks := make([]string, len(timeline.Entries))
	for i, e := range timeline.Entries {
		if e.MixedAudio == "" {
			return "", fmt.Errorf("segment %d has no mixed audio", e.Segment.Index)
		}
		tracks[i] = e.MixedAudio
	}

	if len(tracks) == 1 {
		tctx, cancel := m.bounded(ctx)
		defer cancel()
		err := m.run.Run(tctx, "-y", "-i", tracks[0], "-c:a", "copy", outFile)
		return outFile, err
	}

	fades := make([]float64, len(timeline.Transitions))
	anyFade := false
	for i, t := range timeline.Transitions {
		if t.Type != types.TransitionNone && t.Duration > 0 {
			fades[i] = t.Duration
			anyFade = true
		}
	}

	if !anyFade {
		// Plain concat via list file
		listFile := filepath.Join(outDir, "audio_concat.txt")
		var lines []string
		for _, t := range tracks {
			lines = append(lines, fmt.Sprintf("file '%s'", t))
		}
		if err := os.WriteFile(listFile, []byte(strings.Join(lines, "\n")), 0644); err != nil {
			return "", err
		}
		tctx, cancel := m.bounded(ctx)
		defer cancel()
		err := m.run.Run(tctx, "-y",
			"-f", "concat",
			"-safe", "0",
			"-i", listFile,
			"-c", "copy",
			outFile,
		)
		if err != nil {
			return "", fmt.Errorf("ffmpeg audio concat: %w", err)
		}
		return outFile, nil
	}

	args := []string{"-y"}
	for _, t := range tracks {
		args = append(args, "-i", t)
	}
	args = append(args,
		"-filter_complex", TimelineFilter(fades),
		"-map", "[out]",
		"-acodec", "pcm_s16le",
		outFile,
	)

	tctx, cancel := m.bounded(ctx)
	defer cancel()
	if err := m.run.Run(tctx, args...); err != nil {
		return "", fmt.Errorf("ffmpeg timeline mix: %w", err)
	}

	log.Printf("[mix] ✅ Final audio: %s", outFile)
	return outFile, nil
}

// SilentTrack writes a silent track of the given duration, the stand-in
// audio when the timeline mix itself cannot be produced
func (m *Mixer) SilentTrack(ctx context.Context, duration float64, outDir string) (string, error) {
	outFile := filepath.Join(outDir, "audio_silent.wav")

	tctx, cancel := m.bounded(ctx)
	defer cancel()
	err := m.run.Run(tctx, "-y",
		"-f", "lavfi",
		"-i", fmt.Sprintf("anullsrc=r=%d:cl=mono", m.cfg.Assets.SampleRate),
		"-t", fmt.Sprintf("%.3f", duration),
		"-acodec", "pcm_s16le",
		outFile,
	)
	if err != nil {
		return "", fmt.Errorf("ffmpeg silent track: %w", err)
	}
	return outFile, nil
}

// TimelineFilter chains len(fades)+1 inputs with acrossfade per boundary.
// Zero-duration boundaries use the same 0.001s near-instant cut the video
// xfade chain uses, so both chains consume identical overlap and stay in
// sync.
func TimelineFilter(fades []float64) string {
	var sb strings.Builder
	prev := "[0:a]"
	for i, d := range fades {
		out := fmt.Sprintf("[x%d]", i+1)
		if i == len(fades)-1 {
			out = "[out]"
		}
		if d <= 0 {
			d = 0.001
		}
		sb.WriteString(fmt.Sprintf("%s[%d:a]acrossfade=d=%.3f%s", prev, i+1, d, out))
		if i != len(fades)-1 {
			sb.WriteString(";")
		}
		prev = out
	}
	return sb.String()
}
