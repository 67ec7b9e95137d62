package pipeline

import "fmt"

// Stage names the pipeline step a failure happened in.
type Stage string

const (
	StageDecode   Stage = "decode"
	StageValidate Stage = "validate"
	StageExtract  Stage = "extract"
	StageClassify Stage = "classify"
)

// Kind classifies a failure for callers.
type Kind string

const (
	KindEmptyInput       Kind = "empty_input"
	KindDecodeError      Kind = "decode_error"
	KindTooShort         Kind = "too_short"
	KindModelUnavailable Kind = "model_unavailable"
	KindInferenceError   Kind = "inference_error"
	KindInternalError    Kind = "internal_error"
)

// Caller-facing messages. Internal error text never leaves the process.
const (
	MsgEmptyInput       = "Empty audio file"
	MsgDecodeError      = "Failed to process audio - invalid or unsupported format"
	MsgModelUnavailable = "Model not loaded"
	MsgInferenceError   = "Prediction failed"
	MsgInternalError    = "Internal server error"
)

// Failure is the only error type Analyze returns.
type Failure struct {
	Stage   Stage
	Kind    Kind
	Message string
	Err     error
}

func (f *Failure) Error() string {
	if f.Err == nil {
		return fmt.Sprintf("%s: %s", f.Stage, f.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", f.Stage, f.Kind, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

func internalFailure(stage Stage, err error) *Failure {
	return &Failure{Stage: stage, Kind: KindInternalError, Message: MsgInternalError, Err: err}
}
