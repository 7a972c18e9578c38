package assets

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"vidgen-pipeline/02_characters"
	"vidgen-pipeline/config"
	"vidgen-pipeline/types"
)

// ImageSynthesizer generates one image from a prompt and a deterministic seed
type ImageSynthesizer interface {
	Generate(ctx context.Context, prompt string, seed int64, outFile string) error
}

// SpeechSynthesizer converts narration text to an audio file
type SpeechSynthesizer interface {
	Generate(ctx context.Context, text, outFile string) error
}

// BackgroundSynthesizer renders a synthesis directive to an audio file
type BackgroundSynthesizer interface {
	Generate(ctx context.Context, d Directive, outFile string) error
}

// Collaborators bundles the external generation services plus the media
// runner used for placeholder synthesis. A nil Runner defaults to ffmpeg.
type Collaborators struct {
	Image      ImageSynthesizer
	Speech     SpeechSynthesizer
	Background BackgroundSynthesizer
	Media      Runner
}

// Suite produces all per-segment assets for one run. Generators never
// return errors: a failed generation degrades to a placeholder asset
// flagged Fallback, and the run keeps going.
type Suite struct {
	cfg    *config.Config
	cache  *characters.Cache
	collab Collaborators
	dir    string
}

// NewSuite creates the per-run generator suite writing assets under dir
func NewSuite(cfg *config.Config, cache *characters.Cache, collab Collaborators, dir string) *Suite {
	if collab.Media == nil {
		collab.Media = FFmpeg{}
	}
	return &Suite{cfg: cfg, cache: cache, collab: collab, dir: dir}
}

// bounded derives the per-call timeout context every collaborator
// invocation runs under, so a hung external process degrades one asset
// instead of stalling the run
func (s *Suite) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, time.Duration(s.cfg.Assets.TimeoutSec)*time.Second)
}

// GenerateImage produces the segment's visual. If the segment references a
// character it is resolved through the cache first so the reference seed
// keeps the look consistent.
func (s *Suite) GenerateImage(ctx context.Context, seg types.Segment) types.GeneratedAsset {
	outFile := filepath.Join(s.dir, fmt.Sprintf("image_%03d.jpg", seg.Index))

	prompt := seg.VisualDescription
	seed := characters.DeriveSeed(seg.VisualDescription)
	if seg.CharacterRef != "" {
		rctx, rcancel := s.bounded(ctx)
		char := s.cache.Resolve(rctx, seg.CharacterRef, seg.CharacterPrompt)
		rcancel()
		if !char.Unresolved {
			prompt = fmt.Sprintf("%s, featuring %s", prompt, char.Description)
			seed = char.Seed
		}
	}

	tctx, cancel := s.bounded(ctx)
	err := s.collab.Image.Generate(tctx, prompt, seed, outFile)
	cancel()
	if err != nil {
		log.Printf("[assets] ⚠️  Segment %d image attempt failed: %v — retrying", seg.Index, err)
		tctx, cancel = s.bounded(ctx)
		err = s.collab.Image.Generate(tctx, prompt, seed, outFile)
		cancel()
	}
	if err != nil {
		log.Printf("[assets] ⚠️  Segment %d image failed: %v — using placeholder frame", seg.Index, err)
		return s.placeholderImage(ctx, seg)
	}

	return types.GeneratedAsset{Kind: types.AssetImage, Path: outFile, SegmentIndex: seg.Index}
}

// GenerateNarration synthesizes the spoken line. Empty narration text never
// issues a synthesis call: the segment gets silence of its duration so
// downstream duration accounting holds.
func (s *Suite) GenerateNarration(ctx context.Context, seg types.Segment) types.GeneratedAsset {
	if seg.NarrationText == "" {
		return s.silence(ctx, seg, types.AssetNarration, false)
	}

	outFile := filepath.Join(s.dir, fmt.Sprintf("narration_%03d.mp3", seg.Index))

	tctx, cancel := s.bounded(ctx)
	err := s.collab.Speech.Generate(tctx, seg.NarrationText, outFile)
	cancel()
	if err != nil {
		log.Printf("[assets] ⚠️  Segment %d narration attempt failed: %v — retrying", seg.Index, err)
		tctx, cancel = s.bounded(ctx)
		err = s.collab.Speech.Generate(tctx, seg.NarrationText, outFile)
		cancel()
	}
	if err != nil {
		log.Printf("[assets] ⚠️  Segment %d narration failed: %v — using silence", seg.Index, err)
		return s.silence(ctx, seg, types.AssetNarration, true)
	}

	return types.GeneratedAsset{Kind: types.AssetNarration, Path: outFile, SegmentIndex: seg.Index}
}

// GenerateBackground parses the segment's cue and synthesizes ambience or
// music; no cue or a failed synthesis yields silence of the segment duration
func (s *Suite) GenerateBackground(ctx context.Context, seg types.Segment) types.GeneratedAsset {
	directive := ParseCue(seg.BackgroundCue, seg.Duration)
	outFile := filepath.Join(s.dir, fmt.Sprintf("background_%03d.wav", seg.Index))

	tctx, cancel := s.bounded(ctx)
	err := s.collab.Background.Generate(tctx, directive, outFile)
	cancel()
	if err != nil {
		log.Printf("[assets] ⚠️  Segment %d background attempt failed: %v — retrying", seg.Index, err)
		tctx, cancel = s.bounded(ctx)
		err = s.collab.Background.Generate(tctx, directive, outFile)
		cancel()
	}
	if err != nil {
		log.Printf("[assets] ⚠️  Segment %d background failed: %v — using silence", seg.Index, err)
		return s.silence(ctx, seg, types.AssetBackground, true)
	}

	return types.GeneratedAsset{Kind: types.AssetBackground, Path: outFile, SegmentIndex: seg.Index}
}

// silence writes a silent track of the segment's duration. fallback marks
// whether this replaces a failed generation or is the intended output.
func (s *Suite) silence(ctx context.Context, seg types.Segment, kind types.AssetKind, fallback bool) types.GeneratedAsset {
	outFile := filepath.Join(s.dir, fmt.Sprintf("%s_%03d_silence.wav", kind, seg.Index))

	tctx, cancel := s.bounded(ctx)
	defer cancel()
	err := s.collab.Media.Run(tctx, "-y",
		"-f", "lavfi",
		"-i", fmt.Sprintf("anullsrc=r=%d:cl=mono", s.cfg.Assets.SampleRate),
		"-t", fmt.Sprintf("%.3f", seg.Duration),
		"-acodec", "pcm_s16le",
		outFile,
	)
	if err != nil {
		log.Printf("[assets] Warning: silence synthesis failed for segment %d: %v", seg.Index, err)
	}

	return types.GeneratedAsset{Kind: kind, Path: outFile, SegmentIndex: seg.Index, Fallback: fallback}
}

// placeholderImage renders a solid dark frame when no visual is available
func (s *Suite) placeholderImage(ctx context.Context, seg types.Segment) types.GeneratedAsset {
	outFile := filepath.Join(s.dir, fmt.Sprintf("image_%03d_fallback.jpg", seg.Index))

	tctx, cancel := s.bounded(ctx)
	defer cancel()
	err := s.collab.Media.Run(tctx, "-y",
		"-f", "lavfi",
		"-i", fmt.Sprintf("color=c=black:s=%dx%d:d=1", s.cfg.Assets.ImageWidth, s.cfg.Assets.ImageHeight),
		"-frames:v", "1",
		outFile,
	)
	if err != nil {
		log.Printf("[assets] Warning: placeholder frame failed for segment %d: %v", seg.Index, err)
	}

	return types.GeneratedAsset{Kind: types.AssetImage, Path: outFile, SegmentIndex: seg.Index, Fallback: true}
}
