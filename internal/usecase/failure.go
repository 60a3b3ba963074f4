package usecase

import (
	"errors"
	"fmt"
)

type Stage string

const (
	StageReceived     Stage = "received"
	StageAcquiring    Stage = "acquiring"
	StageTranscribing Stage = "transcribing"
	StageInferring    Stage = "inferring"
	StageExtracting   Stage = "extracting"
	StageValidating   Stage = "validating"
	StageComposing    Stage = "composing"
	StageDone         Stage = "done"
	StageFailed       Stage = "failed"
)

// Reason is the machine-readable failure code handed to callers.
type Reason string

const (
	ReasonMissingInput     Reason = "missing_input"
	ReasonAcquisition      Reason = "acquisition_error"
	ReasonTranscription    Reason = "transcription_error"
	ReasonInference        Reason = "inference_error"
	ReasonExtraction       Reason = "extraction_error"
	ReasonNoValidIntervals Reason = "no_valid_intervals"
	ReasonRender           Reason = "render_error"
)

var ErrMissingInput = errors.New("source locator and instruction are required")

// Failure is the terminal state of a request that did not reach StageDone.
// Err carries internal detail for logs; Stage and Reason are safe to expose.
type Failure struct {
	Stage  Stage
	Reason Reason
	Err    error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %s: %v", f.Stage, f.Reason, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// AsFailure returns the Failure in err's chain, if any.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}
