package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/emotion-speech-go/emotion-speech-go/internal/schema"
)

// BackendDense is the in-process feed-forward backend.
const BackendDense = "dense"

type denseLayer struct {
	kind       string
	activation string
	kernel     *mat.Dense // in x out
	bias       *mat.VecDense

	// batch normalization folded into scale and shift
	scale []float64
	shift []float64
}

// DenseModel evaluates an exported feed-forward network with gonum.
// Weights are read-only after construction.
type DenseModel struct {
	name     string
	inputDim int
	labels   []Label
	layers   []denseLayer
	outDim   int
}

var _ Model = (*DenseModel)(nil)

// LoadDenseModel reads a model artifact from path. Files ending in .json are
// decoded as JSON, everything else as msgpack.
func LoadDenseModel(path string) (*DenseModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model artifact: %w", err)
	}

	var artifact schema.ModelArtifact
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, &artifact)
	} else {
		err = msgpack.Unmarshal(data, &artifact)
	}
	if err != nil {
		return nil, fmt.Errorf("decode model artifact %s: %w", filepath.Base(path), err)
	}
	if artifact.Name == "" {
		artifact.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	return NewDenseModel(&artifact)
}

// NewDenseModel builds a model from an in-memory artifact.
func NewDenseModel(a *schema.ModelArtifact) (*DenseModel, error) {
	if err := a.Validate(); err != nil {
		return nil, fmt.Errorf("invalid model artifact: %w", err)
	}

	m := &DenseModel{
		name:     a.Name,
		inputDim: a.InputDim,
		labels:   toLabels(a.Labels),
		outDim:   a.OutputDim(),
	}

	for _, l := range a.Layers {
		switch l.Type {
		case schema.LayerDense:
			if !knownActivation(l.Activation) {
				return nil, fmt.Errorf("unknown activation %q", l.Activation)
			}
			in, out := len(l.Kernel), len(l.Kernel[0])
			kernel := mat.NewDense(in, out, nil)
			for r, row := range l.Kernel {
				kernel.SetRow(r, row)
			}
			bias := mat.NewVecDense(out, nil)
			if l.Bias != nil {
				bias = mat.NewVecDense(out, append([]float64(nil), l.Bias...))
			}
			m.layers = append(m.layers, denseLayer{kind: l.Type, activation: l.Activation, kernel: kernel, bias: bias})
		case schema.LayerBatchNormalization:
			m.layers = append(m.layers, foldBatchNorm(l))
		}
	}

	return m, nil
}

func foldBatchNorm(l schema.LayerArtifact) denseLayer {
	n := len(l.MovingMean)
	eps := l.Epsilon
	if eps == 0 {
		eps = 1e-3
	}
	scale := make([]float64, n)
	shift := make([]float64, n)
	for i := 0; i < n; i++ {
		gamma, beta := 1.0, 0.0
		if l.Gamma != nil {
			gamma = l.Gamma[i]
		}
		if l.Beta != nil {
			beta = l.Beta[i]
		}
		scale[i] = gamma / math.Sqrt(l.MovingVariance[i]+eps)
		shift[i] = beta - l.MovingMean[i]*scale[i]
	}
	return denseLayer{kind: schema.LayerBatchNormalization, scale: scale, shift: shift}
}

// Predict implements Model.
func (m *DenseModel) Predict(ctx context.Context, batch [][]float64) ([][]float64, error) {
	out := make([][]float64, len(batch))
	for i, row := range batch {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if len(row) != m.inputDim {
			return nil, fmt.Errorf("%w: row %d has %d values, want %d", ErrShapeMismatch, i, len(row), m.inputDim)
		}
		out[i] = m.forward(row)
	}
	return out, nil
}

func (m *DenseModel) forward(row []float64) []float64 {
	x := mat.NewVecDense(len(row), append([]float64(nil), row...))
	for _, l := range m.layers {
		switch l.kind {
		case schema.LayerBatchNormalization:
			raw := x.RawVector().Data
			floats.Mul(raw, l.scale)
			floats.Add(raw, l.shift)
		default:
			_, cols := l.kernel.Dims()
			y := mat.NewVecDense(cols, nil)
			y.MulVec(l.kernel.T(), x)
			y.AddVec(y, l.bias)
			activate(l.activation, y.RawVector().Data)
			x = y
		}
	}
	return append([]float64(nil), x.RawVector().Data...)
}

// Info implements Model.
func (m *DenseModel) Info() Info {
	return Info{
		Name:      m.name,
		Backend:   BackendDense,
		InputDim:  m.inputDim,
		OutputDim: m.outDim,
		Labels:    m.labels,
	}
}

// Reentrant implements Reentrant; forward passes share no mutable state.
func (m *DenseModel) Reentrant() bool {
	return true
}

func knownActivation(name string) bool {
	switch name {
	case "", "linear", "relu", "tanh", "sigmoid", "softmax":
		return true
	}
	return false
}

func activate(name string, v []float64) {
	switch name {
	case "relu":
		for i, x := range v {
			if x < 0 {
				v[i] = 0
			}
		}
	case "tanh":
		for i, x := range v {
			v[i] = math.Tanh(x)
		}
	case "sigmoid":
		for i, x := range v {
			v[i] = 1 / (1 + math.Exp(-x))
		}
	case "softmax":
		softmax(v)
	}
}

func softmax(v []float64) {
	if len(v) == 0 {
		return
	}
	peak := floats.Max(v)
	var sum float64
	for i, x := range v {
		v[i] = math.Exp(x - peak)
		sum += v[i]
	}
	floats.Scale(1/sum, v)
}
