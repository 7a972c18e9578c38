package types

import "fmt"

// SegmentationError is the single run-fatal failure: the language analyzer
// produced nothing we could turn into segments.
type SegmentationError struct {
	PayloadLen int
	Offset     int64
	Err        error
}

func (e *SegmentationError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("segmentation failed: payload of %d bytes", e.PayloadLen)
	}
	return fmt.Sprintf("segmentation failed: payload of %d bytes, first parse error at offset %d: %v",
		e.PayloadLen, e.Offset, e.Err)
}

func (e *SegmentationError) Unwrap() error { return e.Err }

// TransitionBoundsError records a transition whose requested duration
// exceeded what the adjacent segments could contribute. It is non-fatal:
// the assembler clamps and keeps going.
type TransitionBoundsError struct {
	Boundary  int
	Requested float64
	Clamped   float64
}

func (e *TransitionBoundsError) Error() string {
	return fmt.Sprintf("transition at boundary %d: requested %.2fs exceeds adjacent segments, clamped to %.2fs",
		e.Boundary, e.Requested, e.Clamped)
}

// AssemblyError is fatal only when the final encode/mux itself fails after
// every per-segment substitution has already been tried.
type AssemblyError struct {
	Step string
	Err  error
}

func (e *AssemblyError) Error() string {
	return fmt.Sprintf("assembly failed at %s: %v", e.Step, e.Err)
}

func (e *AssemblyError) Unwrap() error { return e.Err }
