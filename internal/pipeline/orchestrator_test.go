package pipeline

import (
	"bytes"
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emotion-speech-go/emotion-speech-go/internal/audio"
	"github.com/emotion-speech-go/emotion-speech-go/internal/classifier"
	"github.com/emotion-speech-go/emotion-speech-go/internal/features"
	"github.com/emotion-speech-go/emotion-speech-go/internal/metrics"
	"github.com/emotion-speech-go/emotion-speech-go/internal/schema"
)

type mockNormalizer struct {
	fn func(ctx context.Context, blob audio.Blob) (*audio.PCM, error)
}

func (m *mockNormalizer) Normalize(ctx context.Context, blob audio.Blob) (*audio.PCM, error) {
	return m.fn(ctx, blob)
}

type mockExtractor struct {
	calls int
	fn    func(pcm *audio.PCM) (features.Vector, error)
}

func (m *mockExtractor) Extract(pcm *audio.PCM) (features.Vector, error) {
	m.calls++
	if m.fn != nil {
		return m.fn(pcm)
	}
	return make(features.Vector, features.NumCoefficients), nil
}

type mockClassifier struct {
	calls int
	fn    func(ctx context.Context, f []float64) (*classifier.Prediction, error)
}

func (m *mockClassifier) Classify(ctx context.Context, f []float64) (*classifier.Prediction, error) {
	m.calls++
	if m.fn != nil {
		return m.fn(ctx, f)
	}
	return &classifier.Prediction{Label: "happy", Confidence: 87.349}, nil
}

func seconds(s float64) *audio.PCM {
	return &audio.PCM{Samples: make([]float32, int(s*audio.CanonicalSampleRate)), SampleRate: audio.CanonicalSampleRate}
}

func fixedPCM(pcm *audio.PCM) *mockNormalizer {
	return &mockNormalizer{fn: func(context.Context, audio.Blob) (*audio.PCM, error) { return pcm, nil }}
}

func newStubbed(n Normalizer, e Extractor, c Classifier) *Orchestrator {
	return New(n, audio.NewGate(), e, c, zerolog.Nop(), nil)
}

// speechModel is a deterministic 40 -> 8 softmax layer.
func speechModel(t *testing.T) *classifier.Handle {
	t.Helper()
	kernel := make([][]float64, features.NumCoefficients)
	for i := range kernel {
		kernel[i] = make([]float64, len(classifier.DefaultLabels))
		for j := range kernel[i] {
			kernel[i][j] = 0.01 * math.Sin(float64(i*len(kernel[i])+j))
		}
	}
	m, err := classifier.NewDenseModel(&schema.ModelArtifact{
		Name:     "test",
		InputDim: features.NumCoefficients,
		Layers:   []schema.LayerArtifact{{Type: schema.LayerDense, Activation: "softmax", Kernel: kernel}},
	})
	require.NoError(t, err)
	h, err := classifier.NewHandle(m, nil)
	require.NoError(t, err)
	return h
}

func toneWAV(t *testing.T, secs float64, rate int) []byte {
	t.Helper()
	n := int(secs * float64(rate))
	s := make([]float32, n)
	for i := range s {
		x := float64(i) / float64(rate)
		s[i] = float32(0.4*math.Sin(2*math.Pi*180*x) + 0.2*math.Sin(2*math.Pi*360*x))
	}
	f, err := os.Create(filepath.Join(t.TempDir(), "tone.wav"))
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, audio.EncodeWAV(f, s, rate, 1))
	data, err := os.ReadFile(f.Name())
	require.NoError(t, err)
	return data
}

func newReal(t *testing.T, h Classifier) *Orchestrator {
	t.Helper()
	ext, err := features.NewExtractor(features.DefaultConfig())
	require.NoError(t, err)
	return New(audio.NewNormalizer(nil, zerolog.Nop()), audio.NewGate(), ext, h, zerolog.Nop(), metrics.New())
}

func requireFailure(t *testing.T, err error, stage Stage, kind Kind) *Failure {
	t.Helper()
	var f *Failure
	require.True(t, errors.As(err, &f), "expected *Failure, got %v", err)
	assert.Equal(t, stage, f.Stage)
	assert.Equal(t, kind, f.Kind)
	return f
}

func TestAnalyze_Success(t *testing.T) {
	o := newReal(t, speechModel(t))

	res, err := o.Analyze(context.Background(), audio.Blob{Data: toneWAV(t, 3, 16000), Format: "wav"})
	require.NoError(t, err)

	assert.Contains(t, classifier.DefaultLabels, res.Label)
	assert.Greater(t, res.Confidence, 0.0)
	assert.LessOrEqual(t, res.Confidence, 100.0)
	assert.Len(t, res.Probabilities, len(classifier.DefaultLabels))
	assert.InDelta(t, 3.0, res.AudioDuration.Seconds(), 0.01)
}

func TestAnalyze_Idempotent(t *testing.T) {
	o := newReal(t, speechModel(t))
	blob := audio.Blob{Data: toneWAV(t, 2, 22050), Format: "wav"}

	first, err := o.Analyze(context.Background(), blob)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := o.Analyze(context.Background(), blob)
			if assert.NoError(t, err) {
				assert.Equal(t, first.Label, res.Label)
				assert.Equal(t, first.Confidence, res.Confidence)
			}
		}()
	}
	wg.Wait()
}

func TestAnalyze_EmptyInput(t *testing.T) {
	ext, cls := &mockExtractor{}, &mockClassifier{}
	o := New(audio.NewNormalizer(nil, zerolog.Nop()), audio.NewGate(), ext, cls, zerolog.Nop(), nil)

	_, err := o.Analyze(context.Background(), audio.Blob{Format: "wav"})
	f := requireFailure(t, err, StageDecode, KindEmptyInput)
	assert.Equal(t, "Empty audio file", f.Message)
	assert.Zero(t, ext.calls)
	assert.Zero(t, cls.calls)
}

func TestAnalyze_DecodeError(t *testing.T) {
	o := newReal(t, speechModel(t))

	_, err := o.Analyze(context.Background(), audio.Blob{Data: []byte("garbage garbage"), Format: "mp3"})
	f := requireFailure(t, err, StageDecode, KindDecodeError)
	assert.Equal(t, "Failed to process audio - invalid or unsupported format", f.Message)
	assert.True(t, audio.IsDecodeError(err))
}

func TestAnalyze_TooShortNeverReachesExtractor(t *testing.T) {
	ext, cls := &mockExtractor{}, &mockClassifier{}
	o := newStubbed(fixedPCM(seconds(0.4)), ext, cls)

	_, err := o.Analyze(context.Background(), audio.Blob{Data: []byte{1}, Format: "wav"})
	f := requireFailure(t, err, StageValidate, KindTooShort)
	assert.Equal(t, "Audio too short: 0.40 seconds (minimum 1.0 seconds)", f.Message)
	assert.Zero(t, ext.calls)
	assert.Zero(t, cls.calls)
}

func TestAnalyze_ModelUnavailable(t *testing.T) {
	o := newReal(t, classifier.Unavailable(errors.New("missing file")))

	_, err := o.Analyze(context.Background(), audio.Blob{Data: toneWAV(t, 1.5, 22050), Format: "wav"})
	f := requireFailure(t, err, StageClassify, KindModelUnavailable)
	assert.Equal(t, "Model not loaded", f.Message)
}

func TestAnalyze_InferenceError(t *testing.T) {
	cls := &mockClassifier{fn: func(context.Context, []float64) (*classifier.Prediction, error) {
		return nil, &classifier.InferenceError{Err: errors.New("nan")}
	}}
	o := newStubbed(fixedPCM(seconds(2)), &mockExtractor{}, cls)

	_, err := o.Analyze(context.Background(), audio.Blob{Data: []byte{1}, Format: "wav"})
	f := requireFailure(t, err, StageClassify, KindInferenceError)
	assert.Equal(t, "Prediction failed", f.Message)
}

func TestAnalyze_InternalErrorsAreHidden(t *testing.T) {
	tests := []struct {
		name  string
		o     *Orchestrator
		stage Stage
	}{
		{
			name: "normalizer returns unknown error",
			o: newStubbed(&mockNormalizer{fn: func(context.Context, audio.Blob) (*audio.PCM, error) {
				return nil, errors.New("disk on fire")
			}}, &mockExtractor{}, &mockClassifier{}),
			stage: StageDecode,
		},
		{
			name: "extractor fails",
			o: newStubbed(fixedPCM(seconds(2)), &mockExtractor{fn: func(*audio.PCM) (features.Vector, error) {
				return nil, features.ErrInvalidInput
			}}, &mockClassifier{}),
			stage: StageExtract,
		},
		{
			name: "extractor panics",
			o: newStubbed(fixedPCM(seconds(2)), &mockExtractor{fn: func(*audio.PCM) (features.Vector, error) {
				panic("index out of range")
			}}, &mockClassifier{}),
			stage: StageExtract,
		},
		{
			name: "classifier returns unknown error",
			o: newStubbed(fixedPCM(seconds(2)), &mockExtractor{}, &mockClassifier{fn: func(context.Context, []float64) (*classifier.Prediction, error) {
				return nil, errors.New("socket closed")
			}}),
			stage: StageClassify,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.o.Analyze(context.Background(), audio.Blob{Data: []byte{1}, Format: "wav"})
			f := requireFailure(t, err, tt.stage, KindInternalError)
			assert.Equal(t, "Internal server error", f.Message)
		})
	}
}

func TestAnalyze_LogsRequestScopedEvents(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel).With().Str("request_id", "req-1").Logger()
	ctx := logger.WithContext(context.Background())

	o := newStubbed(fixedPCM(seconds(0.2)), &mockExtractor{}, &mockClassifier{})
	_, err := o.Analyze(ctx, audio.Blob{Data: []byte("secret-payload"), Format: "wav"})
	require.Error(t, err)

	out := buf.String()
	assert.Contains(t, out, `"request_id":"req-1"`)
	assert.Contains(t, out, `"state":"received"`)
	assert.Contains(t, out, `"state":"failed"`)
	assert.Contains(t, out, `"kind":"too_short"`)
	assert.Contains(t, out, `"bytes":14`)
	assert.NotContains(t, out, "secret-payload")
}
