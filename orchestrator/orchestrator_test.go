package orchestrator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	segmenter "vidgen-pipeline/01_segment"
	assets "vidgen-pipeline/03_assets"
	mix "vidgen-pipeline/04_mix"
	assemble "vidgen-pipeline/05_assemble"
	"vidgen-pipeline/config"
	"vidgen-pipeline/types"
)

type fakeAnalyzer struct {
	payload string
	err     error
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, script string, hint float64) (string, error) {
	return f.payload, f.err
}

type fakeImage struct {
	mu      sync.Mutex
	prompts []string
	failFor string // fail calls whose prompt contains this substring
}

func (f *fakeImage) Generate(ctx context.Context, prompt string, seed int64, outFile string) error {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()
	if f.failFor != "" && strings.Contains(prompt, f.failFor) {
		return errors.New("image backend down")
	}
	return os.WriteFile(outFile, []byte("image"), 0644)
}

func (f *fakeImage) promptCount(exact string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, p := range f.prompts {
		if p == exact {
			n++
		}
	}
	return n
}

type fakeSpeech struct{}

func (fakeSpeech) Generate(ctx context.Context, text, outFile string) error {
	return os.WriteFile(outFile, []byte("speech"), 0644)
}

type fakeBackground struct{}

func (fakeBackground) Generate(ctx context.Context, d assets.Directive, outFile string) error {
	return os.WriteFile(outFile, []byte("audio"), 0644)
}

type fakeRunner struct {
	mu     sync.Mutex
	calls  [][]string
	failOn func(args []string) error
}

func (f *fakeRunner) Run(ctx context.Context, args ...string) error {
	f.mu.Lock()
	f.calls = append(f.calls, args)
	f.mu.Unlock()
	if f.failOn != nil {
		if err := f.failOn(args); err != nil {
			return err
		}
	}
	if len(args) > 0 {
		return os.WriteFile(args[len(args)-1], []byte("media"), 0644)
	}
	return nil
}

const scriptPayload = `[
	{"start": 0, "end": 4, "scene": "a rain-soaked alley", "narration": "It began on a Tuesday.",
	 "audio": "dark ambient rumble", "image": "Mara Voss: stern detective in a gray coat"},
	{"start": 4, "end": 8, "scene": "an empty office at night", "narration": "Nobody had seen him leave.",
	 "audio": "quiet"},
	{"start": 8, "end": 12, "scene": "a closeup of a cracked phone screen", "narration": "The last message was unsent.",
	 "audio": "eerie music", "image": "Mara Voss: stern detective in a gray coat"}
]`

func newTestOrchestrator(analyzer segmenter.LanguageAnalyzer, img *fakeImage) (*Orchestrator, *fakeRunner) {
	cfg := &config.Config{}
	cfg.ApplyDefaults()
	cfg.Assets.Concurrency = 2

	run := &fakeRunner{}
	collab := assets.Collaborators{
		Image:      img,
		Speech:     fakeSpeech{},
		Background: fakeBackground{},
		Media:      run,
	}
	o := New(cfg,
		segmenter.New(cfg, analyzer),
		collab,
		mix.NewWithRunner(cfg, run),
		assemble.NewWithRunner(cfg, run),
	)
	return o, run
}

func TestRunEndToEnd(t *testing.T) {
	img := &fakeImage{}
	o, _ := newTestOrchestrator(&fakeAnalyzer{payload: scriptPayload}, img)

	runDir := t.TempDir()
	state, err := o.Run(context.Background(), "a three segment script", runDir)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if state.Stage != types.StageDone {
		t.Errorf("stage = %s, want %s", state.Stage, types.StageDone)
	}
	if state.TotalSegments != 3 {
		t.Errorf("TotalSegments = %d, want 3", state.TotalSegments)
	}
	if len(state.DegradedSegments) != 0 {
		t.Errorf("clean run should have no degraded segments, got %+v", state.DegradedSegments)
	}
	if state.VideoFile == "" {
		t.Error("expected a final video path")
	}

	// the recurring character gets exactly one reference image even though
	// it appears in two segments
	refCalls := img.promptCount("Mara Voss: stern detective in a gray coat")
	if refCalls != 1 {
		t.Errorf("expected 1 reference-image call, got %d", refCalls)
	}

	data, err := os.ReadFile(filepath.Join(runDir, "pipeline_state.json"))
	if err != nil {
		t.Fatalf("run state not persisted: %v", err)
	}
	if !strings.Contains(string(data), string(types.StageDone)) {
		t.Errorf("persisted state should record completion: %s", data)
	}
}

func TestRunProgressReporting(t *testing.T) {
	img := &fakeImage{}
	o, _ := newTestOrchestrator(&fakeAnalyzer{payload: scriptPayload}, img)

	var mu sync.Mutex
	var updates []types.Progress
	o.OnProgress(func(p types.Progress) {
		mu.Lock()
		updates = append(updates, p)
		mu.Unlock()
	})

	if _, err := o.Run(context.Background(), "script", t.TempDir()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if len(updates) != 3 {
		t.Fatalf("expected one update per segment, got %d", len(updates))
	}
	last := updates[len(updates)-1]
	if last.CompletedSegments != 3 || last.TotalSegments != 3 {
		t.Errorf("final update = %+v", last)
	}
}

func TestRunImageFailureDegrades(t *testing.T) {
	img := &fakeImage{failFor: "cracked phone screen"}
	o, _ := newTestOrchestrator(&fakeAnalyzer{payload: scriptPayload}, img)

	state, err := o.Run(context.Background(), "script", t.TempDir())
	if err != nil {
		t.Fatalf("an asset failure must not fail the run: %v", err)
	}

	if state.Stage != types.StageDone {
		t.Errorf("stage = %s, want %s", state.Stage, types.StageDone)
	}
	if len(state.DegradedSegments) != 1 {
		t.Fatalf("expected 1 degraded segment, got %+v", state.DegradedSegments)
	}
	d := state.DegradedSegments[0]
	if d.Index != 2 || d.Stage != "generate" {
		t.Errorf("unexpected degradation %+v", d)
	}
	if state.VideoFile == "" {
		t.Error("degraded run should still produce a video")
	}
}

func TestRunTimelineMixFailureDegrades(t *testing.T) {
	img := &fakeImage{}
	o, run := newTestOrchestrator(&fakeAnalyzer{payload: scriptPayload}, img)
	run.failOn = func(args []string) error {
		for _, a := range args {
			if strings.Contains(a, "audio_final.wav") {
				return errors.New("timeline mix crashed")
			}
		}
		return nil
	}

	state, err := o.Run(context.Background(), "script", t.TempDir())
	if err != nil {
		t.Fatalf("a timeline mix failure must degrade, not fail the run: %v", err)
	}

	if state.Stage != types.StageDone {
		t.Errorf("stage = %s, want %s", state.Stage, types.StageDone)
	}
	if state.VideoFile == "" {
		t.Error("expected a final video with the silent soundtrack")
	}

	found := false
	for _, d := range state.DegradedSegments {
		if d.Stage == "mix" {
			found = true
		}
	}
	if !found {
		t.Errorf("degraded ledger should record the mix failure, got %+v", state.DegradedSegments)
	}
}

func TestRunSegmentationFailureIsFatal(t *testing.T) {
	img := &fakeImage{}
	o, _ := newTestOrchestrator(&fakeAnalyzer{payload: "complete nonsense, no json here"}, img)

	runDir := t.TempDir()
	state, err := o.Run(context.Background(), "script", runDir)
	if err == nil {
		t.Fatal("expected a fatal segmentation error")
	}

	var segErr *types.SegmentationError
	if !errors.As(err, &segErr) {
		t.Fatalf("expected SegmentationError, got %T: %v", err, err)
	}
	if state.Stage != types.StageFailed {
		t.Errorf("stage = %s, want %s", state.Stage, types.StageFailed)
	}
	if state.VideoFile != "" {
		t.Errorf("failed run must not report a video, got %q", state.VideoFile)
	}
	if len(img.prompts) != 0 {
		t.Errorf("no assets should be generated after a fatal segmentation error, got %d calls", len(img.prompts))
	}

	// the failure is persisted too
	if _, err := os.Stat(filepath.Join(runDir, "pipeline_state.json")); err != nil {
		t.Errorf("run state not persisted: %v", err)
	}
}

func TestBuildTimeline(t *testing.T) {
	cfg := &config.Config{}
	cfg.ApplyDefaults()
	cfg.Assemble.Transition = "dissolve"
	cfg.Assemble.TransitionSec = 0.8

	entries := []types.TimelineEntry{
		{Segment: types.Segment{Index: 0, Duration: 4}},
		{Segment: types.Segment{Index: 1, Duration: 4}},
		{Segment: types.Segment{Index: 2, Duration: 4}},
	}

	tl := buildTimeline(entries, cfg)
	if len(tl.Transitions) != 2 {
		t.Fatalf("expected len(entries)-1 transitions, got %d", len(tl.Transitions))
	}
	for i, tr := range tl.Transitions {
		if tr.Type != types.TransitionDissolve || tr.Duration != 0.8 {
			t.Errorf("transition %d = %+v", i, tr)
		}
	}

	single := buildTimeline(entries[:1], cfg)
	if len(single.Transitions) != 0 {
		t.Errorf("single entry needs no transitions, got %d", len(single.Transitions))
	}
}
