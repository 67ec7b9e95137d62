package features

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emotion-speech-go/emotion-speech-go/internal/audio"
)

// Reference values follow librosa 0.10 defaults (centered zero-padded STFT,
// Slaney mel filters, power_to_db with top_db=80, orthonormal DCT-II),
// evaluated in float64.

func threeTones(n int) *audio.PCM {
	s := make([]float32, n)
	for i := range s {
		x := float64(i) / audio.CanonicalSampleRate
		s[i] = float32(0.5*math.Sin(2*math.Pi*220*x) + 0.25*math.Sin(2*math.Pi*1375*x) + 0.1*math.Sin(2*math.Pi*3300*x))
	}
	return &audio.PCM{Samples: s, SampleRate: audio.CanonicalSampleRate}
}

var threeTonesMFCC = []float64{
	-435.166602, 62.003846, 11.250146, 32.551325,
	38.045098, 51.072608, 50.074322, -16.232344,
	-41.225564, 8.868638, 10.711389, -22.256493,
	-31.394211, -54.843610, -48.519664, 4.761185,
	-8.628407, -58.883944, -42.809915, -18.045676,
	-11.749515, 10.380299, -8.088730, -41.045023,
	-1.390958, 33.373304, 10.526067, 4.130715,
	2.752755, -7.254610, 25.470194, 40.409447,
	-1.965048, -8.374194, 15.847287, 10.956166,
	16.115989, 17.103451, -16.988174, -12.323076,
}

func TestExtract_MatchesLibrosaReference(t *testing.T) {
	e := newTestExtractor(t)
	pcm := threeTones(audio.CanonicalSampleRate)
	require.Equal(t, 44, e.NumFrames(len(pcm.Samples)))

	vec, err := e.Extract(pcm)
	require.NoError(t, err)
	require.Len(t, vec, len(threeTonesMFCC))
	for i, want := range threeTonesMFCC {
		assert.InDelta(t, want, vec[i], 1e-3, "coefficient %d", i)
	}
}

func TestMelFilterBank_MatchesLibrosaReference(t *testing.T) {
	bank := melFilterBank(128, 2048, audio.CanonicalSampleRate, 0, audio.CanonicalSampleRate/2)
	spans := nonZeroSpans(bank)

	tests := []struct {
		row   int
		span  [2]int
		first []float64 // weights at span[0], span[0]+1, span[0]+2
		last  float64   // weight at span[1]-1
	}{
		{0, [2]int{1, 5}, []float64{0.016182853208219942, 0.032365706416439884, 0.028990088037379964}, 0.012807234829160026},
		{1, [2]int{3, 8}, []float64{0.009779235793639925, 0.025962089001859864, 0.035393705451959974}, 0.003027999035520103},
		{40, [2]int{96, 102}, []float64{0.0004014020017562346, 0.014093741843680074, 0.02778608168560391}, 0.002861796790891029},
		{127, [2]int{971, 1024}, []float64{7.184815842995642e-06, 0.00014095657491237183, 0.000274728333981748}, 0.00013026029671111785},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.span, spans[tt.row], "row %d", tt.row)
		for i, want := range tt.first {
			assert.InDelta(t, want, bank.At(tt.row, tt.span[0]+i), 1e-9, "row %d bin %d", tt.row, tt.span[0]+i)
		}
		assert.InDelta(t, tt.last, bank.At(tt.row, tt.span[1]-1), 1e-9, "row %d last bin", tt.row)
	}
}
