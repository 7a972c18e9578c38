package segmenter

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sort"
	"strconv"
	"strings"

	"vidgen-pipeline/config"
	"vidgen-pipeline/types"
)

// LanguageAnalyzer is the external language-analysis collaborator. It takes
// the raw script plus a target segment-duration hint and returns the raw
// payload, which may be malformed — the Segmenter owns parsing and repair.
type LanguageAnalyzer interface {
	Analyze(ctx context.Context, script string, segmentHintSec float64) (string, error)
}

// Segmenter converts raw script text into an ordered list of segments
type Segmenter struct {
	cfg      *config.Config
	analyzer LanguageAnalyzer
}

// New creates a new Segmenter
func New(cfg *config.Config, analyzer LanguageAnalyzer) *Segmenter {
	return &Segmenter{cfg: cfg, analyzer: analyzer}
}

// candidate mirrors the JSON shape requested from the analyzer. Fields are
// RawMessage so one bad field degrades that field, never the whole batch.
type candidate struct {
	Start     json.RawMessage `json:"start"`
	End       json.RawMessage `json:"end"`
	Scene     json.RawMessage `json:"scene"`
	Narration json.RawMessage `json:"narration"`
	Audio     json.RawMessage `json:"audio"`
	Image     json.RawMessage `json:"image"`
}

// Segment runs the analyzer and turns its payload into validated, ordered
// segments. An analyzer failure or an unrepairable payload is the single
// run-fatal condition and surfaces as *types.SegmentationError.
func (s *Segmenter) Segment(ctx context.Context, rawScript string) ([]types.Segment, error) {
	log.Println("[segment] Analyzing script...")

	payload, err := s.analyzer.Analyze(ctx, rawScript, s.cfg.Segmenter.SegmentDurationSec)
	if err != nil {
		return nil, &types.SegmentationError{Err: err}
	}

	candidates, perr := parseCandidates(payload)
	if perr != nil {
		return nil, &types.SegmentationError{
			PayloadLen: len(payload),
			Offset:     parseOffset(perr),
			Err:        perr,
		}
	}
	if len(candidates) == 0 {
		return nil, &types.SegmentationError{
			PayloadLen: len(payload),
			Err:        errors.New("analyzer returned no segments"),
		}
	}

	segments := make([]types.Segment, 0, len(candidates))
	for i, c := range candidates {
		seg := s.buildSegment(c)
		seg.Index = i // provisional; re-indexed after sorting
		segments = append(segments, seg)
	}

	// Stable sort by start time: ties keep arrival order, then re-index
	sort.SliceStable(segments, func(i, j int) bool {
		return segments[i].StartTime < segments[j].StartTime
	})
	for i := range segments {
		segments[i].Index = i
	}

	log.Printf("[segment] ✅ %d segments ready", len(segments))
	return segments, nil
}

// buildSegment validates and coerces one candidate. Invalid fields degrade
// to defaults rather than failing the batch.
func (s *Segmenter) buildSegment(c candidate) types.Segment {
	start, okStart := asFloat(c.Start)
	end, okEnd := asFloat(c.End)
	if !okStart || start < 0 {
		start = 0
	}

	duration := s.cfg.Segmenter.SegmentDurationSec
	if okStart && okEnd && end > start {
		duration = end - start
	}

	seg := types.Segment{
		StartTime:         start,
		Duration:          duration,
		VisualDescription: asString(c.Scene),
		NarrationText:     asString(c.Narration),
		BackgroundCue:     asString(c.Audio),
	}

	// The image field carries the character as "Name: face description"
	if img := strings.TrimSpace(asString(c.Image)); img != "" {
		name := img
		if idx := strings.Index(img, ":"); idx >= 0 {
			name = img[:idx]
		}
		seg.CharacterRef = strings.TrimSpace(name)
		seg.CharacterPrompt = img
	}

	return seg
}

// parseCandidates parses the analyzer payload with best-effort repair:
// markdown fences are stripped, a payload with preamble or trailing garbage
// is cut down to its outermost [...] slice, and a bare object is wrapped
// into a single-element list.
func parseCandidates(payload string) ([]candidate, error) {
	cleaned := cleanJSON(payload)

	var list []candidate
	firstErr := json.Unmarshal([]byte(cleaned), &list)
	if firstErr == nil {
		return list, nil
	}

	if start, end := strings.Index(cleaned, "["), strings.LastIndex(cleaned, "]"); start >= 0 && end > start {
		if err := json.Unmarshal([]byte(cleaned[start:end+1]), &list); err == nil {
			return list, nil
		}
	}

	var single candidate
	if strings.HasPrefix(cleaned, "{") && json.Unmarshal([]byte(cleaned), &single) == nil {
		return []candidate{single}, nil
	}

	return nil, firstErr
}

// cleanJSON strips markdown fences if the analyzer wraps its response in
// ```json ... ```
func cleanJSON(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func parseOffset(err error) int64 {
	var syn *json.SyntaxError
	if errors.As(err, &syn) {
		return syn.Offset
	}
	return 0
}

// asString coerces a raw JSON field to a string; anything that is not a
// string (null, number, object) degrades to ""
func asString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// asFloat coerces a raw JSON field to a float, accepting both numbers and
// numeric strings like "12.5"
func asFloat(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if sf, serr := strconv.ParseFloat(strings.TrimSpace(s), 64); serr == nil {
			return sf, true
		}
	}
	return 0, false
}
