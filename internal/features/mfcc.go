// Package features computes the fixed-length MFCC vector fed to the emotion
// classifier.
//
// The front-end reproduces librosa.feature.mfcc with its default arguments:
//
//	SampleRate:      22050
//	FFTSize:         2048 (periodic Hann window, centered, zero padded)
//	HopSize:         512
//	NumMels:         128 (Slaney scale, Slaney area normalization)
//	FMin / FMax:     0 / SampleRate/2
//	TopDB:           80
//	NumCoefficients: 40 (orthonormal DCT-II)
//
// Per-frame coefficients are averaged over time, so clips of any length map
// to a vector of NumCoefficients values.
package features

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/emotion-speech-go/emotion-speech-go/internal/audio"
)

// NumCoefficients is the length of every Vector produced with DefaultConfig.
const NumCoefficients = 40

// ErrInvalidInput is returned for empty streams or streams at the wrong rate.
var ErrInvalidInput = errors.New("features: invalid input")

// Vector is a time-averaged MFCC vector.
type Vector []float64

// Config controls MFCC extraction parameters.
type Config struct {
	SampleRate      int     // expected input rate in Hz
	FFTSize         int     // FFT and window length in samples
	HopSize         int     // frame advance in samples
	NumMels         int     // mel bands
	NumCoefficients int     // cepstral coefficients kept
	FMin            float64 // lowest mel edge in Hz
	FMax            float64 // highest mel edge in Hz, 0 means SampleRate/2
	TopDB           float64 // dynamic range kept below the loudest band
	AMin            float64 // power floor before the log
}

// DefaultConfig returns the librosa-compatible parameters.
func DefaultConfig() Config {
	return Config{
		SampleRate:      audio.CanonicalSampleRate,
		FFTSize:         2048,
		HopSize:         512,
		NumMels:         128,
		NumCoefficients: NumCoefficients,
		FMin:            0,
		FMax:            audio.CanonicalSampleRate / 2,
		TopDB:           80,
		AMin:            1e-10,
	}
}

// Extractor computes MFCC vectors. It is safe for concurrent use.
type Extractor struct {
	cfg    Config
	window []float64
	bank   *mat.Dense // NumMels x (FFTSize/2+1)
	spans  [][2]int   // non-zero column range of each bank row
	dct    *mat.Dense // NumCoefficients x NumMels
	ffts   sync.Pool
}

// NewExtractor validates cfg and precomputes the window, filterbank and DCT basis.
func NewExtractor(cfg Config) (*Extractor, error) {
	if cfg.FMax == 0 {
		cfg.FMax = float64(cfg.SampleRate) / 2
	}
	switch {
	case cfg.SampleRate <= 0:
		return nil, fmt.Errorf("features: sample rate must be positive, got %d", cfg.SampleRate)
	case cfg.FFTSize <= 0 || cfg.FFTSize%2 != 0:
		return nil, fmt.Errorf("features: fft size must be positive and even, got %d", cfg.FFTSize)
	case cfg.HopSize <= 0:
		return nil, fmt.Errorf("features: hop size must be positive, got %d", cfg.HopSize)
	case cfg.NumMels <= 0:
		return nil, fmt.Errorf("features: mel band count must be positive, got %d", cfg.NumMels)
	case cfg.NumCoefficients <= 0 || cfg.NumCoefficients > cfg.NumMels:
		return nil, fmt.Errorf("features: coefficient count must be in [1, %d], got %d", cfg.NumMels, cfg.NumCoefficients)
	case cfg.FMin < 0 || cfg.FMax <= cfg.FMin:
		return nil, fmt.Errorf("features: invalid mel range [%g, %g]", cfg.FMin, cfg.FMax)
	}
	if cfg.AMin <= 0 {
		cfg.AMin = 1e-10
	}

	e := &Extractor{
		cfg:    cfg,
		window: hannWindow(cfg.FFTSize),
		bank:   melFilterBank(cfg.NumMels, cfg.FFTSize, cfg.SampleRate, cfg.FMin, cfg.FMax),
		dct:    dctBasis(cfg.NumCoefficients, cfg.NumMels),
	}
	e.spans = nonZeroSpans(e.bank)
	e.ffts.New = func() any { return fourier.NewFFT(cfg.FFTSize) }
	return e, nil
}

// Config returns the parameters the extractor was built with.
func (e *Extractor) Config() Config {
	return e.cfg
}

// NumFrames returns the number of centered STFT frames for n samples.
func (e *Extractor) NumFrames(n int) int {
	return 1 + n/e.cfg.HopSize
}

// Extract computes the time-averaged MFCC vector of pcm.
func (e *Extractor) Extract(pcm *audio.PCM) (Vector, error) {
	if pcm == nil || len(pcm.Samples) == 0 {
		return nil, fmt.Errorf("%w: empty stream", ErrInvalidInput)
	}
	if pcm.SampleRate != e.cfg.SampleRate {
		return nil, fmt.Errorf("%w: sample rate %d, want %d", ErrInvalidInput, pcm.SampleRate, e.cfg.SampleRate)
	}

	logMel := e.logMelSpectrogram(pcm.Samples)

	// The DCT is linear, so the time mean of the cepstra equals the DCT of
	// the time mean of the log-mel spectrum.
	mean := mat.NewVecDense(e.cfg.NumMels, nil)
	frames, _ := logMel.Dims()
	col := make([]float64, frames)
	for m := 0; m < e.cfg.NumMels; m++ {
		mat.Col(col, m, logMel)
		mean.SetVec(m, stat.Mean(col, nil))
	}

	var out mat.VecDense
	out.MulVec(e.dct, mean)

	vec := make(Vector, e.cfg.NumCoefficients)
	for i := range vec {
		vec[i] = out.AtVec(i)
	}
	return vec, nil
}

// logMelSpectrogram returns the frames x NumMels power_to_db mel spectrogram.
func (e *Extractor) logMelSpectrogram(samples []float32) *mat.Dense {
	nfft := e.cfg.FFTSize
	pad := nfft / 2
	frames := e.NumFrames(len(samples))

	fft := e.ffts.Get().(*fourier.FFT)
	defer e.ffts.Put(fft)

	out := mat.NewDense(frames, e.cfg.NumMels, nil)
	frame := make([]float64, nfft)
	coeffs := make([]complex128, nfft/2+1)
	power := make([]float64, nfft/2+1)

	for t := 0; t < frames; t++ {
		start := t*e.cfg.HopSize - pad
		for i := 0; i < nfft; i++ {
			j := start + i
			if j < 0 || j >= len(samples) {
				frame[i] = 0
				continue
			}
			frame[i] = float64(samples[j]) * e.window[i]
		}

		coeffs = fft.Coefficients(coeffs, frame)
		for k, c := range coeffs {
			re, im := real(c), imag(c)
			power[k] = re*re + im*im
		}

		row := out.RawRowView(t)
		for m := range row {
			span := e.spans[m]
			w := e.bank.RawRowView(m)
			row[m] = floats.Dot(w[span[0]:span[1]], power[span[0]:span[1]])
		}
	}

	powerToDB(out.RawMatrix().Data, e.cfg.AMin, e.cfg.TopDB)
	return out
}

// powerToDB converts power values to decibels in place, relative to 1.0, and
// clips everything more than topDB below the maximum.
func powerToDB(s []float64, amin, topDB float64) {
	for i, v := range s {
		s[i] = 10 * math.Log10(math.Max(amin, v))
	}
	if topDB <= 0 || len(s) == 0 {
		return
	}
	floor := floats.Max(s) - topDB
	for i, v := range s {
		if v < floor {
			s[i] = floor
		}
	}
}

// hannWindow returns a periodic Hann window of length n.
func hannWindow(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n))
	}
	return w
}

// dctBasis returns the first k rows of the n-point orthonormal DCT-II matrix.
func dctBasis(k, n int) *mat.Dense {
	d := mat.NewDense(k, n, nil)
	first := math.Sqrt(1 / float64(n))
	rest := math.Sqrt(2 / float64(n))
	for r := 0; r < k; r++ {
		scale := rest
		if r == 0 {
			scale = first
		}
		for c := 0; c < n; c++ {
			d.Set(r, c, scale*math.Cos(math.Pi*float64(r)*float64(2*c+1)/float64(2*n)))
		}
	}
	return d
}

func nonZeroSpans(bank *mat.Dense) [][2]int {
	rows, cols := bank.Dims()
	spans := make([][2]int, rows)
	for m := 0; m < rows; m++ {
		row := bank.RawRowView(m)
		lo, hi := cols, 0
		for k, w := range row {
			if w != 0 {
				if k < lo {
					lo = k
				}
				hi = k + 1
			}
		}
		if lo > hi {
			lo, hi = 0, 0
		}
		spans[m] = [2]int{lo, hi}
	}
	return spans
}
