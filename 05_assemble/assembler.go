package assemble

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

// Report collects the non-fatal events of one assembly: segments that fell
// back to the placeholder clip and transitions that had to be clamped
type Report struct {
	Degraded []types.DegradedSegment
	Clamped  []types.TransitionBoundsError
}

// Assembler concatenates per-segment clips with transition effects and
// muxes the final audio track into one output file
type Assembler struct {
	cfg *config.Config
	run Runner
}

// New creates a new Assembler
func New(cfg *config.Config) *Assembler {
	return &Assembler{cfg: cfg, run: FFmpeg{}}
}

// NewWithRunner substitutes the runner, used in tests
func NewWithRunner(cfg *config.Config, run Runner) *Assembler {
	return &Assembler{cfg: cfg, run: run}
}

// bounded derives the per-call timeout context every runner invocation
// runs under, so a hung ffmpeg cannot stall the run
func (a *Assembler) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, time.Duration(a.cfg.Assets.TimeoutSec)*time.Second)
}

// ClampTransition bounds a transition's duration by the shorter of the two
// adjacent segments, so a transition can never consume more than each side
// contributes. The bool reports whether clamping happened.
func ClampTransition(t types.Transition, prevDur, nextDur float64) (types.Transition, bool) {
	if t.Type == types.TransitionNone {
		t.Duration = 0
		return t, false
	}
	limit := prevDur
	if nextDur < limit {
		limit = nextDur
	}
	if t.Duration > limit {
		t.Duration = limit
		return t, true
	}
	return t, false
}

// Assemble renders every timeline entry to a normalized clip, joins the
// clips in index order with the configured transitions, and muxes the
// timeline audio. A single segment's render failure substitutes a
// placeholder clip and never aborts the whole video; only a failure of the
// final encode/mux is fatal.
func (a *Assembler) Assemble(ctx context.Context, timeline *types.Timeline, audioTrack, outDir string) (string, *Report, error) {
	log.Println("[assemble] Rendering segment clips...")

	report := &Report{}

	clips := make([]string, len(timeline.Entries))
	for i, entry := range timeline.Entries {
		clip, renderErr := a.renderSegment(ctx, entry, outDir)
		if renderErr != nil {
			log.Printf("[assemble] ⚠️  Segment %d render failed: %v — substituting placeholder clip", entry.Segment.Index, renderErr)
			placeholder, phErr := a.placeholderClip(ctx, entry.Segment, outDir)
			if phErr != nil {
				return "", report, &types.AssemblyError{Step: fmt.Sprintf("placeholder clip %d", entry.Segment.Index), Err: phErr}
			}
			clip = placeholder
			report.Degraded = append(report.Degraded, types.DegradedSegment{
				Index:  entry.Segment.Index,
				Stage:  "assemble",
				Reason: renderErr.Error(),
			})
		}
		clips[i] = clip
	}

	// Clamp transitions against the adjacent segment durations
	for i := range timeline.Transitions {
		clamped, wasClamped := ClampTransition(
			timeline.Transitions[i],
			timeline.Entries[i].Segment.Duration,
			timeline.Entries[i+1].Segment.Duration,
		)
		if wasClamped {
			boundErr := types.TransitionBoundsError{
				Boundary:  i,
				Requested: timeline.Transitions[i].Duration,
				Clamped:   clamped.Duration,
			}
			log.Printf("[assemble] Warning: %v", &boundErr)
			report.Clamped = append(report.Clamped, boundErr)
		}
		timeline.Transitions[i] = clamped
	}

	silentVideo, err := a.joinClips(ctx, clips, timeline, outDir)
	if err != nil {
		return "", report, &types.AssemblyError{Step: "join clips", Err: err}
	}

	finalVideo, err := a.muxAudio(ctx, silentVideo, audioTrack, outDir)
	if err != nil {
		return "", report, &types.AssemblyError{Step: "final mux", Err: err}
	}

	log.Printf("[assemble] ✅ Final video ready: %s", finalVideo)
	return finalVideo, report, nil
}

// renderSegment turns the entry's visual into a clip of exactly the
// segment's duration, normalized to the configured resolution, framerate
// and pixel format before concatenation. A Ken Burns zoom is applied when
// configured.
func (a *Assembler) renderSegment(ctx context.Context, entry types.TimelineEntry, outDir string) (string, error) {
	outFile := filepath.Join(outDir, fmt.Sprintf("clip_%03d.mp4", entry.Segment.Index))
	duration := entry.Segment.Duration

	vf := a.normalizeFilter()
	if zoom := a.cfg.Assemble.KenBurnsZoomFactor; zoom > 1.0 {
		totalFrames := int(duration * float64(a.cfg.Assemble.FPS))
		if totalFrames < 1 {
			totalFrames = 1
		}
		zoomStep := (zoom - 1.0) / float64(totalFrames)
		vf = fmt.Sprintf(
			"scale=%d:%d,zoompan=z='min(zoom+%.6f,%.3f)':x='iw/2-(iw/zoom/2)':y='ih/2-(ih/zoom/2)':d=%d:fps=%d,scale=%d:%d",
			a.cfg.Assemble.Width*2, a.cfg.Assemble.Height*2,
			zoomStep, zoom, totalFrames, a.cfg.Assemble.FPS,
			a.cfg.Assemble.Width, a.cfg.Assemble.Height,
		)
	}

	tctx, cancel := a.bounded(ctx)
	defer cancel()
	err := a.run.Run(tctx, "-y",
		"-loop", "1",
		"-i", entry.Visual.Path,
		"-vf", vf,
		"-t", fmt.Sprintf("%.3f", duration),
		"-r", fmt.Sprintf("%d", a.cfg.Assemble.FPS),
		"-c:v", "libx264",
		"-preset", "fast",
		"-crf", "23",
		"-pix_fmt", "yuv420p",
		"-an",
		outFile,
	)
	if err != nil {
		return "", fmt.Errorf("ffmpeg clip render: %w", err)
	}
	return outFile, nil
}

// normalizeFilter letterboxes any input to the configured resolution so
// every clip concatenates cleanly
func (a *Assembler) normalizeFilter() string {
	w, h := a.cfg.Assemble.Width, a.cfg.Assemble.Height
	return fmt.Sprintf(
		"scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2,setsar=1",
		w, h, w, h,
	)
}

// placeholderClip renders a solid dark clip of the segment's duration
func (a *Assembler) placeholderClip(ctx context.Context, seg types.Segment, outDir string) (string, error) {
	outFile := filepath.Join(outDir, fmt.Sprintf("clip_%03d_fallback.mp4", seg.Index))

	tctx, cancel := a.bounded(ctx)
	defer cancel()
	err := a.run.Run(tctx, "-y",
		"-f", "lavfi",
		"-i", fmt.Sprintf("color=c=black:s=%dx%d:d=%.3f", a.cfg.Assemble.Width, a.cfg.Assemble.Height, seg.Duration),
		"-r", fmt.Sprintf("%d", a.cfg.Assemble.FPS),
		"-c:v", "libx264",
		"-preset", "fast",
		"-pix_fmt", "yuv420p",
		"-an",
		outFile,
	)
	if err != nil {
		return "", fmt.Errorf("ffmpeg placeholder clip: %w", err)
	}
	return outFile, nil
}

// joinClips concatenates the clips in index order. Boundaries without a
// transition use the concat demuxer; otherwise a chained xfade graph
// blends each boundary for the clamped duration.
func (a *Assembler) joinClips(ctx context.Context, clips []string, timeline *types.Timeline, outDir string) (string, error) {
	outFile := filepath.Join(outDir, "visuals_joined.mp4")

	if len(clips) == 1 {
		return clips[0], nil
	}

	anyBlend := false
	for _, t := range timeline.Transitions {
		if t.Type != types.TransitionNone && t.Duration > 0 {
			anyBlend = true
			break
		}
	}

	if !anyBlend {
		listFile := filepath.Join(outDir, "visuals_concat.txt")
		var lines []string
		for _, c := range clips {
			lines = append(lines, fmt.Sprintf("file '%s'", c))
		}
		if err := os.WriteFile(listFile, []byte(strings.Join(lines, "\n")), 0644); err != nil {
			return "", err
		}
		tctx, cancel := a.bounded(ctx)
		defer cancel()
		err := a.run.Run(tctx, "-y",
			"-f", "concat",
			"-safe", "0",
			"-i", listFile,
			"-c", "copy",
			outFile,
		)
		if err != nil {
			return "", fmt.Errorf("ffmpeg concat clips: %w", err)
		}
		return outFile, nil
	}

	durations := make([]float64, len(timeline.Entries))
	for i, e := range timeline.Entries {
		durations[i] = e.Segment.Duration
	}

	args := []string{"-y"}
	for _, c := range clips {
		args = append(args, "-i", c)
	}
	args = append(args,
		"-filter_complex", XfadeFilter(timeline.Transitions, durations),
		"-map", "[out]",
		"-c:v", "libx264",
		"-preset", "fast",
		"-crf", "23",
		"-pix_fmt", "yuv420p",
		"-an",
		outFile,
	)

	tctx, cancel := a.bounded(ctx)
	defer cancel()
	if err := a.run.Run(tctx, args...); err != nil {
		return "", fmt.Errorf("ffmpeg xfade join: %w", err)
	}
	return outFile, nil
}

// XfadeFilter chains xfade filters over len(durations) inputs. Each
// transition's offset is the accumulated visible length of everything
// before it: sum of prior clip durations minus the overlap prior
// transitions already consumed.
func XfadeFilter(transitions []types.Transition, durations []float64) string {
	var sb strings.Builder
	prev := "[0:v]"
	elapsed := durations[0]
	for i, t := range transitions {
		out := fmt.Sprintf("[v%d]", i+1)
		if i == len(transitions)-1 {
			out = "[out]"
		}

		name := xfadeName(t.Type)
		d := t.Duration
		if d <= 0 {
			// xfade needs a positive duration; treat as a hard cut
			d = 0.001
		}
		offset := elapsed - d

		sb.WriteString(fmt.Sprintf("%s[%d:v]xfade=transition=%s:duration=%.3f:offset=%.3f%s",
			prev, i+1, name, d, offset, out))
		if i != len(transitions)-1 {
			sb.WriteString(";")
		}

		elapsed = offset + durations[i+1]
		prev = out
	}
	return sb.String()
}

func xfadeName(t types.TransitionType) string {
	switch t {
	case types.TransitionSlide:
		return "slideleft"
	case types.TransitionWipe:
		return "wipeleft"
	case types.TransitionDissolve:
		return "dissolve"
	default:
		return "fade"
	}
}

// muxAudio merges the joined video and the timeline audio into the final MP4
func (a *Assembler) muxAudio(ctx context.Context, videoFile, audioFile, outDir string) (string, error) {
	log.Println("[assemble] Combining video + audio...")

	outFile := filepath.Join(outDir, "final_video.mp4")

	tctx, cancel := a.bounded(ctx)
	defer cancel()
	err := a.run.Run(tctx, "-y",
		"-i", videoFile,
		"-i", audioFile,
		"-c:v", "copy",
		"-c:a", "aac",
		"-b:a", "192k",
		"-shortest",
		"-movflags", "+faststart", // optimize for web streaming
		outFile,
	)
	if err != nil {
		return "", fmt.Errorf("ffmpeg combine: %w", err)
	}
	return outFile, nil
}
