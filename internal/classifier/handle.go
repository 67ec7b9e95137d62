package classifier

import (
	"context"
	"fmt"
	"math"
	"sync"
)

// Handle is the process-wide, immutable entry point to the classifier.
type Handle struct {
	model     Model
	info      Info
	err       error
	serialize bool
	mu        sync.Mutex
}

// NewHandle wraps model. labels overrides the model's own label list when
// non-empty; the final count must match the model output width.
func NewHandle(model Model, labels []Label) (*Handle, error) {
	if model == nil {
		return nil, fmt.Errorf("classifier: nil model")
	}
	info := model.Info()
	if len(labels) > 0 {
		info.Labels = labels
	}
	if len(info.Labels) == 0 {
		info.Labels = DefaultLabels
	}
	if info.InputDim <= 0 {
		return nil, fmt.Errorf("classifier: model reports input dimension %d", info.InputDim)
	}
	if info.OutputDim > 0 && info.OutputDim != len(info.Labels) {
		return nil, fmt.Errorf("%w: model has %d outputs but %d labels are configured", ErrShapeMismatch, info.OutputDim, len(info.Labels))
	}
	info.OutputDim = len(info.Labels)

	serialize := true
	if r, ok := model.(Reentrant); ok && r.Reentrant() {
		serialize = false
	}

	return &Handle{model: model, info: info, serialize: serialize}, nil
}

// Unavailable returns a handle that fails every call with ErrModelUnavailable.
// cause is kept for health reporting.
func Unavailable(cause error) *Handle {
	if cause == nil {
		cause = ErrModelUnavailable
	}
	return &Handle{err: cause}
}

// Available reports whether a model is loaded.
func (h *Handle) Available() bool {
	return h != nil && h.err == nil && h.model != nil
}

// Err returns the load failure of an unavailable handle.
func (h *Handle) Err() error {
	if h == nil {
		return ErrModelUnavailable
	}
	return h.err
}

// Info describes the loaded model. It is zero for an unavailable handle.
func (h *Handle) Info() Info {
	if !h.Available() {
		return Info{}
	}
	return h.info
}

// Health checks the model's external dependency, if it has one.
func (h *Handle) Health(ctx context.Context) error {
	if !h.Available() {
		return ErrModelUnavailable
	}
	if hc, ok := h.model.(HealthChecker); ok {
		return hc.Health(ctx)
	}
	return nil
}

// Classify runs one feature vector through the model.
func (h *Handle) Classify(ctx context.Context, features []float64) (*Prediction, error) {
	if !h.Available() {
		return nil, ErrModelUnavailable
	}
	if len(features) != h.info.InputDim {
		return nil, &InferenceError{Err: fmt.Errorf("%w: got %d features, model expects %d", ErrShapeMismatch, len(features), h.info.InputDim)}
	}

	out, err := h.predict(ctx, [][]float64{features})
	if err != nil {
		return nil, &InferenceError{Err: err}
	}
	if len(out) != 1 {
		return nil, &InferenceError{Err: fmt.Errorf("%w: model returned %d rows for 1 input", ErrShapeMismatch, len(out))}
	}

	return h.interpret(out[0])
}

func (h *Handle) predict(ctx context.Context, batch [][]float64) ([][]float64, error) {
	if h.serialize {
		h.mu.Lock()
		defer h.mu.Unlock()
	}
	return h.model.Predict(ctx, batch)
}

func (h *Handle) interpret(probs []float64) (*Prediction, error) {
	if len(probs) != len(h.info.Labels) {
		return nil, &InferenceError{Err: fmt.Errorf("%w: model returned %d probabilities for %d labels", ErrShapeMismatch, len(probs), len(h.info.Labels))}
	}

	best := 0
	dist := make(map[Label]float64, len(probs))
	for i, p := range probs {
		if math.IsNaN(p) || math.IsInf(p, 0) || p < 0 {
			return nil, &InferenceError{Err: fmt.Errorf("invalid probability %v for %s", p, h.info.Labels[i])}
		}
		dist[h.info.Labels[i]] = p
		if p > probs[best] {
			best = i
		}
	}

	return &Prediction{
		Label:         h.info.Labels[best],
		Confidence:    probs[best] * 100,
		Probabilities: dist,
	}, nil
}
