// Package classifier adapts a pre-trained emotion model to the service.
//
// A Model is loaded once at start-up and wrapped in a Handle. The handle owns
// the label order, checks shapes in both directions and serializes models
// that are not safe for concurrent use. A handle whose model failed to load
// stays usable as a value and fails every call with ErrModelUnavailable.
package classifier

import "context"

// Label is an emotion category name.
type Label string

// DefaultLabels is the output order of the reference emotion model.
var DefaultLabels = []Label{"angry", "happy", "neutral", "sad", "calm", "fearful", "disgust", "surprised"}

// Info describes a loaded model.
type Info struct {
	Name      string
	Backend   string
	InputDim  int
	OutputDim int
	Labels    []Label
}

// Model evaluates a batch of feature rows and returns one probability row each.
type Model interface {
	Predict(ctx context.Context, batch [][]float64) ([][]float64, error)
	Info() Info
}

// Reentrant is implemented by models that may be called concurrently.
type Reentrant interface {
	Reentrant() bool
}

// HealthChecker is implemented by models with an external dependency.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Prediction is the outcome of classifying one feature vector.
type Prediction struct {
	Label Label
	// Confidence is the winning probability as a percentage, unrounded.
	Confidence    float64
	Probabilities map[Label]float64
}

func toLabels(names []string) []Label {
	if len(names) == 0 {
		return nil
	}
	out := make([]Label, len(names))
	for i, n := range names {
		out[i] = Label(n)
	}
	return out
}

// Strings returns labels as plain strings.
func Strings(labels []Label) []string {
	out := make([]string, len(labels))
	for i, l := range labels {
		out[i] = string(l)
	}
	return out
}
