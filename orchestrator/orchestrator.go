package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"vidgen-pipeline/01_segment"
	"vidgen-pipeline/02_characters"
	"vidgen-pipeline/03_assets"
	"vidgen-pipeline/04_mix"
	"vidgen-pipeline/05_assemble"
	"vidgen-pipeline/config"
	"vidgen-pipeline/types"
)

// Orchestrator sequences the pipeline stages:
// INIT → SEGMENTING → GENERATING_ASSETS → MIXING → ASSEMBLING → DONE.
// FAILED is reachable only from SEGMENTING, plus the final encode/mux as
// the last line of defense; every other failure degrades in place.
type Orchestrator struct {
	cfg       *config.Config
	segmenter *segmenter.Segmenter
	collab    assets.Collaborators
	mixer     *mix.Mixer
	assembler *assemble.Assembler
	progress  func(types.Progress)
}

// New creates a new Orchestrator
func New(cfg *config.Config, seg *segmenter.Segmenter, collab assets.Collaborators, mixer *mix.Mixer, assembler *assemble.Assembler) *Orchestrator {
	return &Orchestrator{
		cfg:       cfg,
		segmenter: seg,
		collab:    collab,
		mixer:     mixer,
		assembler: assembler,
	}
}

// OnProgress registers a callback invoked after each segment's asset
// generation completes
func (o *Orchestrator) OnProgress(fn func(types.Progress)) {
	o.progress = fn
}

// Run executes one full pipeline run inside runDir. The returned RunState
// is always non-nil and is also persisted as pipeline_state.json.
func (o *Orchestrator) Run(ctx context.Context, rawScript, runDir string) (*types.RunState, error) {
	state := &types.RunState{
		RunID:     filepath.Base(runDir),
		StartedAt: time.Now().UTC().Format(time.RFC3339),
		Stage:     types.StageInit,
	}

	defer func() {
		state.CompletedAt = time.Now().UTC().Format(time.RFC3339)
		o.saveState(state, runDir)
	}()

	assetDir := filepath.Join(runDir, "assets")
	audioDir := filepath.Join(runDir, "audio")
	videoDir := filepath.Join(runDir, "video")
	for _, dir := range []string{assetDir, audioDir, videoDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			state.Stage = types.StageFailed
			state.Error = fmt.Sprintf("create run dirs: %v", err)
			return state, err
		}
	}

	// ─────────────────────────────────────────────
	// SEGMENTING — the single run-fatal stage
	// ─────────────────────────────────────────────
	state.Stage = types.StageSegmenting
	segments, err := o.segmenter.Segment(ctx, rawScript)
	if err != nil {
		state.Stage = types.StageFailed
		state.Error = fmt.Sprintf("segmenting: %v", err)
		return state, err
	}
	state.TotalSegments = len(segments)

	// ─────────────────────────────────────────────
	// GENERATING_ASSETS — bounded concurrency, cache shared per run
	// ─────────────────────────────────────────────
	state.Stage = types.StageGenerating
	log.Printf("[pipeline] Generating assets for %d segments (concurrency %d)...", len(segments), o.cfg.Assets.Concurrency)

	cache := characters.NewCache(o.collab.Image, assetDir, o.cfg.Characters.RetryPromptLen)
	suite := assets.NewSuite(o.cfg, cache, o.collab, assetDir)

	entries := make([]types.TimelineEntry, len(segments))
	var mu sync.Mutex
	completed := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.Assets.Concurrency)
	for i, seg := range segments {
		i, seg := i, seg
		g.Go(func() error {
			entry := types.TimelineEntry{
				Segment:    seg,
				Visual:     suite.GenerateImage(gctx, seg),
				Narration:  suite.GenerateNarration(gctx, seg),
				Background: suite.GenerateBackground(gctx, seg),
			}

			mu.Lock()
			entries[i] = entry
			completed++
			done := completed
			mu.Unlock()

			o.report(types.StageGenerating, done, len(segments))
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		// Generators never fail; only run-level cancellation lands here
		state.Error = fmt.Sprintf("generation cancelled: %v", err)
		return state, err
	}

	for _, e := range entries {
		for _, asset := range []types.GeneratedAsset{e.Visual, e.Narration, e.Background} {
			if asset.Fallback {
				state.DegradedSegments = append(state.DegradedSegments, types.DegradedSegment{
					Index:  e.Segment.Index,
					Stage:  "generate",
					Reason: fmt.Sprintf("%s generation fell back to placeholder", asset.Kind),
				})
			}
		}
	}

	if o.cfg.Characters.Export {
		if err := cache.Export(filepath.Join(runDir, "characters")); err != nil {
			log.Printf("[pipeline] Warning: character export failed: %v", err)
		}
	}

	timeline := buildTimeline(entries, o.cfg)

	// Clamp transitions before mixing so the audio cross-fades use the
	// same durations the assembler will render
	for i := range timeline.Transitions {
		clamped, wasClamped := assemble.ClampTransition(
			timeline.Transitions[i],
			timeline.Entries[i].Segment.Duration,
			timeline.Entries[i+1].Segment.Duration,
		)
		if wasClamped {
			log.Printf("[pipeline] Warning: transition at boundary %d clamped from %.2fs to %.2fs",
				i, timeline.Transitions[i].Duration, clamped.Duration)
		}
		timeline.Transitions[i] = clamped
	}

	// ─────────────────────────────────────────────
	// MIXING — strictly sequential over the ordered timeline
	// ─────────────────────────────────────────────
	state.Stage = types.StageMixing
	log.Println("[pipeline] Mixing audio...")

	for i := range timeline.Entries {
		mixed, err := o.mixer.MixSegment(ctx, timeline.Entries[i], audioDir)
		if err != nil {
			log.Printf("[pipeline] ⚠️  Segment %d mix failed: %v — using narration track only", timeline.Entries[i].Segment.Index, err)
			mixed = timeline.Entries[i].Narration.Path
			state.DegradedSegments = append(state.DegradedSegments, types.DegradedSegment{
				Index:  timeline.Entries[i].Segment.Index,
				Stage:  "mix",
				Reason: err.Error(),
			})
		}
		timeline.Entries[i].MixedAudio = mixed
	}

	audioTrack, err := o.mixer.MixTimeline(ctx, timeline, audioDir)
	if err != nil {
		// Only segmenting and the final encode/mux may fail the run;
		// a broken timeline mix degrades to a silent soundtrack
		log.Printf("[pipeline] ⚠️  Timeline mix failed: %v — assembling with a silent track", err)
		total := 0.0
		for _, e := range timeline.Entries {
			total += e.Segment.Duration
		}
		silent, serr := o.mixer.SilentTrack(ctx, total, audioDir)
		if serr != nil {
			asmErr := &types.AssemblyError{Step: "timeline mix", Err: err}
			state.Stage = types.StageFailed
			state.Error = asmErr.Error()
			return state, asmErr
		}
		audioTrack = silent
		state.DegradedSegments = append(state.DegradedSegments, types.DegradedSegment{
			Index:  -1, // whole timeline
			Stage:  "mix",
			Reason: err.Error(),
		})
	}

	// ─────────────────────────────────────────────
	// ASSEMBLING
	// ─────────────────────────────────────────────
	state.Stage = types.StageAssembling
	finalVideo, assemblyReport, err := o.assembler.Assemble(ctx, timeline, audioTrack, videoDir)
	if err != nil {
		state.Stage = types.StageFailed
		state.Error = err.Error()
		return state, err
	}
	state.DegradedSegments = append(state.DegradedSegments, assemblyReport.Degraded...)

	state.Stage = types.StageDone
	state.VideoFile = finalVideo
	log.Printf("[pipeline] ✅ Run complete: %s (%d degraded segments)", finalVideo, len(state.DegradedSegments))
	return state, nil
}

// buildTimeline pairs the ordered entries with the configured transition at
// every boundary, one transition per adjacent pair.
func buildTimeline(entries []types.TimelineEntry, cfg *config.Config) *types.Timeline {
	timeline := &types.Timeline{Entries: entries}
	if len(entries) < 2 {
		return timeline
	}

	t := types.Transition{
		Type:     types.TransitionType(cfg.Assemble.Transition),
		Duration: cfg.Assemble.TransitionSec,
	}
	if t.Type == types.TransitionNone {
		t.Duration = 0
	}

	timeline.Transitions = make([]types.Transition, len(entries)-1)
	for i := range timeline.Transitions {
		timeline.Transitions[i] = t
	}
	return timeline
}

func (o *Orchestrator) report(stage types.Stage, completed, total int) {
	if o.progress != nil {
		o.progress(types.Progress{Stage: stage, CompletedSegments: completed, TotalSegments: total})
	}
}

func (o *Orchestrator) saveState(state *types.RunState, runDir string) {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		log.Printf("[pipeline] Warning: could not marshal run state: %v", err)
		return
	}
	if err := os.WriteFile(filepath.Join(runDir, "pipeline_state.json"), data, 0644); err != nil {
		log.Printf("[pipeline] Warning: could not save run state: %v", err)
	}
}
