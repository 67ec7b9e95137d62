package schema

import "fmt"

// Layer kinds understood by the dense model runtime.
const (
	LayerDense              = "dense"
	LayerBatchNormalization = "batch_normalization"
)

// ModelArtifact is an exported feed-forward classifier.
type ModelArtifact struct {
	Name     string          `json:"name" msgpack:"name"`
	InputDim int             `json:"input_dim" msgpack:"input_dim"`
	Labels   []string        `json:"labels,omitempty" msgpack:"labels,omitempty"`
	Layers   []LayerArtifact `json:"layers" msgpack:"layers"`
}

// LayerArtifact holds the weights of one layer. Dense kernels are laid out
// [input][output]; batch normalization uses the moving statistics.
type LayerArtifact struct {
	Type       string      `json:"type" msgpack:"type"`
	Activation string      `json:"activation,omitempty" msgpack:"activation,omitempty"`
	Kernel     [][]float64 `json:"kernel,omitempty" msgpack:"kernel,omitempty"`
	Bias       []float64   `json:"bias,omitempty" msgpack:"bias,omitempty"`

	Gamma          []float64 `json:"gamma,omitempty" msgpack:"gamma,omitempty"`
	Beta           []float64 `json:"beta,omitempty" msgpack:"beta,omitempty"`
	MovingMean     []float64 `json:"moving_mean,omitempty" msgpack:"moving_mean,omitempty"`
	MovingVariance []float64 `json:"moving_variance,omitempty" msgpack:"moving_variance,omitempty"`
	Epsilon        float64   `json:"epsilon,omitempty" msgpack:"epsilon,omitempty"`
}

// Validate checks that layer shapes chain from InputDim to the output layer.
func (a *ModelArtifact) Validate() error {
	if a.InputDim <= 0 {
		return fmt.Errorf("input_dim must be positive")
	}
	if len(a.Layers) == 0 {
		return fmt.Errorf("model has no layers")
	}

	width := a.InputDim
	for i := range a.Layers {
		l := &a.Layers[i]
		if l.Type == "" {
			l.Type = LayerDense
		}
		switch l.Type {
		case LayerDense:
			if len(l.Kernel) != width {
				return fmt.Errorf("layer %d: kernel has %d rows, want %d", i, len(l.Kernel), width)
			}
			out := len(l.Kernel[0])
			if out == 0 {
				return fmt.Errorf("layer %d: kernel has no columns", i)
			}
			for r, row := range l.Kernel {
				if len(row) != out {
					return fmt.Errorf("layer %d: kernel row %d has %d columns, want %d", i, r, len(row), out)
				}
			}
			if l.Bias != nil && len(l.Bias) != out {
				return fmt.Errorf("layer %d: bias has %d values, want %d", i, len(l.Bias), out)
			}
			width = out
		case LayerBatchNormalization:
			params := []struct {
				name   string
				values []float64
			}{
				{"gamma", l.Gamma},
				{"beta", l.Beta},
				{"moving_mean", l.MovingMean},
				{"moving_variance", l.MovingVariance},
			}
			for _, p := range params {
				if p.values != nil && len(p.values) != width {
					return fmt.Errorf("layer %d: %s has %d values, want %d", i, p.name, len(p.values), width)
				}
			}
			if l.MovingMean == nil || l.MovingVariance == nil {
				return fmt.Errorf("layer %d: batch normalization needs moving statistics", i)
			}
		default:
			return fmt.Errorf("layer %d: unknown layer type %q", i, l.Type)
		}
	}
	return nil
}

// OutputDim returns the width of the last layer that changes shape.
func (a *ModelArtifact) OutputDim() int {
	width := a.InputDim
	for _, l := range a.Layers {
		if (l.Type == "" || l.Type == LayerDense) && len(l.Kernel) > 0 {
			width = len(l.Kernel[0])
		}
	}
	return width
}

// ModelInfoResponse is returned by a remote inference server's GET /v1/model.
type ModelInfoResponse struct {
	Name      string   `json:"name" msgpack:"name"`
	InputDim  int      `json:"input_dim" msgpack:"input_dim"`
	OutputDim int      `json:"output_dim" msgpack:"output_dim"`
	Labels    []string `json:"labels,omitempty" msgpack:"labels,omitempty"`
}

// PredictRequest is the body of POST /v1/predict.
type PredictRequest struct {
	Inputs [][]float64 `json:"inputs" msgpack:"inputs"`
}

// PredictResponse carries one probability row per input row.
type PredictResponse struct {
	Outputs [][]float64 `json:"outputs" msgpack:"outputs"`
}
