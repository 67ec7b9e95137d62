package audio

import (
	"math"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
)

// chirp sweeps 200 Hz to 2 kHz over one second. Unlike a steady tone its
// autocorrelation has a single peak, so alignment errors show up as lag.
func chirp(rate int) []float64 {
	const f0, f1 = 200.0, 2000.0
	out := make([]float64, rate)
	for i := range out {
		x := float64(i) / float64(rate)
		out[i] = 0.5 * math.Sin(2*math.Pi*(f0*x+(f1-f0)*x*x/2))
	}
	return out
}

func bestLag(got, want []float64, lo, hi, maxLag int) int {
	best, bestScore := 0, math.Inf(-1)
	for lag := -maxLag; lag <= maxLag; lag++ {
		var score float64
		for i := lo; i < hi; i++ {
			score += got[i+lag] * want[i]
		}
		if score > bestScore {
			best, bestScore = lag, score
		}
	}
	return best
}

func TestResample_AlignedAndComplete(t *testing.T) {
	for _, rate := range []int{8000, 16000, 44100, 48000} {
		t.Run(strconv.Itoa(rate), func(t *testing.T) {
			src := chirp(rate)
			in := make([]float32, len(src))
			for i, v := range src {
				in[i] = float32(v)
			}

			out, err := Resample(in, rate, CanonicalSampleRate)
			require.NoError(t, err)
			require.Len(t, out, CanonicalSampleRate)

			got := make([]float64, len(out))
			for i, v := range out {
				got[i] = float64(v)
			}
			want := chirp(CanonicalSampleRate)

			lag := bestLag(got, want, 2000, CanonicalSampleRate-2000, 100)
			assert.LessOrEqual(t, math.Abs(float64(lag)), 1.0, "lag %d samples", lag)

			mid := got[2000 : CanonicalSampleRate-2000]
			ref := want[2000 : CanonicalSampleRate-2000]
			corr := floats.Dot(mid, ref) / (floats.Norm(mid, 2) * floats.Norm(ref, 2))
			assert.Greater(t, corr, 0.8)

			// Last 10 ms still carry the signal.
			tail := got[len(got)-CanonicalSampleRate/100:]
			rms := floats.Norm(tail, 2) / math.Sqrt(float64(len(tail)))
			assert.Greater(t, rms, 0.2)
		})
	}
}

func TestResample_Identity(t *testing.T) {
	in := []float32{0.1, 0.2, 0.3}
	out, err := Resample(in, CanonicalSampleRate, CanonicalSampleRate)
	require.NoError(t, err)
	assert.Equal(t, in, out)

	_, err = Resample(in, 0, CanonicalSampleRate)
	assert.Error(t, err)
}

func TestFilterDelay_Cached(t *testing.T) {
	d1, err := filterDelay(48000, CanonicalSampleRate)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, d1, 0)

	d2, err := filterDelay(48000, CanonicalSampleRate)
	require.NoError(t, err)
	assert.Equal(t, d1, d2)

	_, ok := delays.Load([2]int{48000, CanonicalSampleRate})
	assert.True(t, ok)
}
