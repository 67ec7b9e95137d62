package features

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Slaney mel scale: linear below 1 kHz, logarithmic above.
const (
	melFSp      = 200.0 / 3
	melMinLogHz = 1000.0
	melMinLog   = melMinLogHz / melFSp
)

var melLogStep = math.Log(6.4) / 27

func hzToMel(hz float64) float64 {
	if hz >= melMinLogHz {
		return melMinLog + math.Log(hz/melMinLogHz)/melLogStep
	}
	return hz / melFSp
}

func melToHz(mel float64) float64 {
	if mel >= melMinLog {
		return melMinLogHz * math.Exp(melLogStep*(mel-melMinLog))
	}
	return melFSp * mel
}

// melFilterBank builds numMels triangular filters over the nfft/2+1 FFT bins,
// each scaled to unit area (Slaney normalization).
func melFilterBank(numMels, nfft, sampleRate int, fmin, fmax float64) *mat.Dense {
	bins := nfft/2 + 1

	fftFreqs := make([]float64, bins)
	floats.Span(fftFreqs, 0, float64(sampleRate)/2)

	mels := make([]float64, numMels+2)
	floats.Span(mels, hzToMel(fmin), hzToMel(fmax))
	edges := make([]float64, len(mels))
	for i, m := range mels {
		edges[i] = melToHz(m)
	}

	bank := mat.NewDense(numMels, bins, nil)
	for m := 0; m < numMels; m++ {
		lowDiff := edges[m+1] - edges[m]
		highDiff := edges[m+2] - edges[m+1]
		enorm := 2 / (edges[m+2] - edges[m])
		row := bank.RawRowView(m)
		for k, f := range fftFreqs {
			lower := (f - edges[m]) / lowDiff
			upper := (edges[m+2] - f) / highDiff
			w := math.Min(lower, upper)
			if w > 0 {
				row[k] = w * enorm
			}
		}
	}
	return bank
}
