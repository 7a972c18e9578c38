package types

// AssetKind identifies what a GeneratedAsset contains
type AssetKind string

const (
	AssetImage      AssetKind = "image"
	AssetNarration  AssetKind = "narration"
	AssetBackground AssetKind = "background"
)

// Segment is the atomic unit of the timeline, produced by the segmenter.
// Once asset generation starts a Segment is never mutated.
type Segment struct {
	Index             int     `json:"index"`
	StartTime         float64 `json:"start_time"`
	Duration          float64 `json:"duration"`
	VisualDescription string  `json:"visual_description"`
	NarrationText     string  `json:"narration_text"`
	BackgroundCue     string  `json:"background_cue"`
	CharacterRef      string  `json:"character_ref,omitempty"`
	CharacterPrompt   string  `json:"character_prompt,omitempty"`
}

// Character is a named entity that must look the same every time it appears.
// The reference image is owned by the character cache; segments refer to it
// by ID only.
type Character struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Description    string `json:"description"`
	Seed           int64  `json:"seed"`
	ReferenceImage string `json:"reference_image,omitempty"`
	Unresolved     bool   `json:"unresolved,omitempty"`
}

// GeneratedAsset is the result of one asset generator call.
// Fallback marks a placeholder produced after the real generation failed.
type GeneratedAsset struct {
	Kind         AssetKind `json:"kind"`
	Path         string    `json:"path"`
	SegmentIndex int       `json:"segment_index"`
	Fallback     bool      `json:"fallback,omitempty"`
}

// TransitionType names the visual blend between two adjacent segments
type TransitionType string

const (
	TransitionNone     TransitionType = "none"
	TransitionFade     TransitionType = "fade"
	TransitionSlide    TransitionType = "slide"
	TransitionWipe     TransitionType = "wipe"
	TransitionDissolve TransitionType = "dissolve"
)

// Transition is a timed blend effect between two adjacent segments
type Transition struct {
	Type     TransitionType `json:"type"`
	Duration float64        `json:"duration"`
}

// TimelineEntry pairs a segment with its generated assets
type TimelineEntry struct {
	Segment    Segment        `json:"segment"`
	Visual     GeneratedAsset `json:"visual"`
	Narration  GeneratedAsset `json:"narration"`
	Background GeneratedAsset `json:"background"`
	MixedAudio string         `json:"mixed_audio,omitempty"`
}

// Timeline is the fully ordered, asset-populated sequence driving assembly.
// Invariant: len(Transitions) == len(Entries)-1.
type Timeline struct {
	Entries     []TimelineEntry `json:"entries"`
	Transitions []Transition    `json:"transitions"`
}

// Stage names one pipeline state
type Stage string

const (
	StageInit       Stage = "INIT"
	StageSegmenting Stage = "SEGMENTING"
	StageGenerating Stage = "GENERATING_ASSETS"
	StageMixing     Stage = "MIXING"
	StageAssembling Stage = "ASSEMBLING"
	StageDone       Stage = "DONE"
	StageFailed     Stage = "FAILED"
)

// Progress is reported after each segment's asset generation completes
type Progress struct {
	Stage             Stage `json:"stage"`
	CompletedSegments int   `json:"completed_segments"`
	TotalSegments     int   `json:"total_segments"`
}

// DegradedSegment records a segment whose generation fell back to a placeholder
type DegradedSegment struct {
	Index  int    `json:"index"`
	Stage  string `json:"stage"`
	Reason string `json:"reason"`
}

// RunState tracks the full state of one pipeline run
type RunState struct {
	RunID            string            `json:"run_id"`
	StartedAt        string            `json:"started_at"`
	CompletedAt      string            `json:"completed_at"`
	Stage            Stage             `json:"stage"`
	TotalSegments    int               `json:"total_segments"`
	DegradedSegments []DegradedSegment `json:"degraded_segments,omitempty"`
	VideoFile        string            `json:"video_file,omitempty"`
	Error            string            `json:"error,omitempty"`
}
