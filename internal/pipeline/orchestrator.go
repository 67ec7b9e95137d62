// Package pipeline runs one audio clip through decode, validation, feature
// extraction and classification.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/emotion-speech-go/emotion-speech-go/internal/audio"
	"github.com/emotion-speech-go/emotion-speech-go/internal/classifier"
	"github.com/emotion-speech-go/emotion-speech-go/internal/features"
	"github.com/emotion-speech-go/emotion-speech-go/internal/metrics"
)

// State is a step in the life of a single analysis.
type State string

const (
	StateReceived         State = "received"
	StateDecoded          State = "decoded"
	StateValidated        State = "validated"
	StateFeatureExtracted State = "feature_extracted"
	StateClassified       State = "classified"
	StateResponded        State = "responded"
	StateFailed           State = "failed"
)

// Normalizer decodes a blob into canonical PCM.
type Normalizer interface {
	Normalize(ctx context.Context, blob audio.Blob) (*audio.PCM, error)
}

// Gate validates decoded audio before feature extraction.
type Gate interface {
	Check(pcm *audio.PCM) error
}

// Extractor turns PCM into a feature vector.
type Extractor interface {
	Extract(pcm *audio.PCM) (features.Vector, error)
}

// Classifier labels a feature vector.
type Classifier interface {
	Classify(ctx context.Context, features []float64) (*classifier.Prediction, error)
}

// Result is a successful analysis.
type Result struct {
	Label         classifier.Label
	Confidence    float64
	Probabilities map[classifier.Label]float64
	AudioDuration time.Duration
}

// Orchestrator wires the pipeline stages together. It holds no per-request
// state and is safe for concurrent use.
type Orchestrator struct {
	normalizer Normalizer
	gate       Gate
	extractor  Extractor
	classifier Classifier
	logger     zerolog.Logger
	metrics    *metrics.Metrics
}

// New creates an Orchestrator. metrics may be nil.
func New(n Normalizer, g Gate, e Extractor, c Classifier, logger zerolog.Logger, m *metrics.Metrics) *Orchestrator {
	return &Orchestrator{
		normalizer: n,
		gate:       g,
		extractor:  e,
		classifier: c,
		logger:     logger,
		metrics:    m,
	}
}

// Analyze classifies one clip. Every error it returns is a *Failure.
func (o *Orchestrator) Analyze(ctx context.Context, blob audio.Blob) (res *Result, err error) {
	start := time.Now()
	logger := o.requestLogger(ctx).With().
		Str("format", blob.Format).
		Int("bytes", len(blob.Data)).
		Logger()

	stage := StageDecode
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, internalFailure(stage, fmt.Errorf("panic: %v", r))
		}
		if err != nil {
			o.fail(&logger, err.(*Failure), start)
		}
	}()

	o.metrics.ObserveInput(len(blob.Data))
	o.trace(&logger, StateReceived, start)

	stageStart := time.Now()
	pcm, nerr := o.normalizer.Normalize(ctx, blob)
	o.metrics.ObserveStage(string(StageDecode), time.Since(stageStart))
	if nerr != nil {
		return nil, decodeFailure(nerr)
	}
	o.metrics.ObserveAudio(pcm.Duration())
	o.trace(&logger, StateDecoded, start)

	stage = StageValidate
	if gerr := o.gate.Check(pcm); gerr != nil {
		var tooShort *audio.TooShortError
		if errors.As(gerr, &tooShort) {
			return nil, &Failure{Stage: StageValidate, Kind: KindTooShort, Message: tooShort.Error(), Err: gerr}
		}
		return nil, internalFailure(StageValidate, gerr)
	}
	o.trace(&logger, StateValidated, start)

	stage = StageExtract
	stageStart = time.Now()
	vec, xerr := o.extractor.Extract(pcm)
	o.metrics.ObserveStage(string(StageExtract), time.Since(stageStart))
	if xerr != nil {
		return nil, internalFailure(StageExtract, xerr)
	}
	o.trace(&logger, StateFeatureExtracted, start)

	stage = StageClassify
	stageStart = time.Now()
	pred, cerr := o.classifier.Classify(ctx, vec)
	o.metrics.ObserveStage(string(StageClassify), time.Since(stageStart))
	if cerr != nil {
		return nil, classifyFailure(cerr)
	}
	o.trace(&logger, StateClassified, start)

	o.metrics.ObserveOutcome("success")
	o.metrics.ObservePrediction(string(pred.Label))
	logger.Info().
		Str("event", "pipeline_state").
		Str("state", string(StateResponded)).
		Str("emotion", string(pred.Label)).
		Float64("confidence", pred.Confidence).
		Dur("audio_duration", pcm.Duration()).
		Dur("elapsed", time.Since(start)).
		Msg("analysis complete")

	return &Result{
		Label:         pred.Label,
		Confidence:    pred.Confidence,
		Probabilities: pred.Probabilities,
		AudioDuration: pcm.Duration(),
	}, nil
}

func decodeFailure(err error) *Failure {
	var de *audio.DecodeError
	switch {
	case errors.Is(err, audio.ErrEmptyInput):
		return &Failure{Stage: StageDecode, Kind: KindEmptyInput, Message: MsgEmptyInput, Err: err}
	case errors.As(err, &de):
		return &Failure{Stage: StageDecode, Kind: KindDecodeError, Message: MsgDecodeError, Err: err}
	}
	return internalFailure(StageDecode, err)
}

func classifyFailure(err error) *Failure {
	var ie *classifier.InferenceError
	switch {
	case errors.Is(err, classifier.ErrModelUnavailable):
		return &Failure{Stage: StageClassify, Kind: KindModelUnavailable, Message: MsgModelUnavailable, Err: err}
	case errors.As(err, &ie):
		return &Failure{Stage: StageClassify, Kind: KindInferenceError, Message: MsgInferenceError, Err: err}
	}
	return internalFailure(StageClassify, err)
}

func (o *Orchestrator) trace(logger *zerolog.Logger, state State, start time.Time) {
	logger.Debug().
		Str("event", "pipeline_state").
		Str("state", string(state)).
		Dur("elapsed", time.Since(start)).
		Msg("")
}

// fail logs a failure once. Client-side problems are warnings, the rest errors.
func (o *Orchestrator) fail(logger *zerolog.Logger, f *Failure, start time.Time) {
	o.metrics.ObserveOutcome(string(f.Kind))

	event := logger.Error()
	switch f.Kind {
	case KindEmptyInput, KindDecodeError, KindTooShort:
		event = logger.Warn()
	}
	event.
		Str("event", "pipeline_state").
		Str("state", string(StateFailed)).
		Str("stage", string(f.Stage)).
		Str("kind", string(f.Kind)).
		Err(f.Err).
		Dur("elapsed", time.Since(start)).
		Msg("analysis failed")
}

func (o *Orchestrator) requestLogger(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &o.logger
}
