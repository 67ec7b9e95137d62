package audio

import (
	"fmt"
	"math"
	"sync"

	resampling "github.com/tphakala/go-audio-resampling"
	"gonum.org/v1/gonum/floats"
)

// tailGuard is extra output, in samples, requested past the filter delay so
// the last input samples have fully left the filter.
const tailGuard = 256

// delays caches the measured output delay per rate pair.
var delays sync.Map // [2]int -> int

// Resample converts a mono stream between sample rates. The output always
// holds ceil(len(samples) * to / from) samples and is aligned with the input:
// the resampler's filter delay is removed and its tail is flushed.
func Resample(samples []float32, from, to int) ([]float32, error) {
	if from <= 0 || to <= 0 {
		return nil, fmt.Errorf("audio: invalid resample rates %d -> %d", from, to)
	}
	if from == to || len(samples) == 0 {
		return samples, nil
	}

	delay, err := filterDelay(from, to)
	if err != nil {
		return nil, err
	}

	padding := int(math.Ceil(float64(delay+tailGuard) * float64(from) / float64(to)))
	input := make([]float64, len(samples)+padding)
	for i, s := range samples {
		input[i] = float64(s)
	}

	output, err := resampleAll(input, from, to)
	if err != nil {
		return nil, err
	}

	want := resampledLength(len(samples), from, to)
	out := make([]float32, want)
	for i := range out {
		j := delay + i
		if j >= len(output) {
			break
		}
		out[i] = float32(output[j])
	}
	return out, nil
}

// resampleAll runs input through a fresh resampler and appends the flushed tail.
func resampleAll(input []float64, from, to int) ([]float64, error) {
	r, err := resampling.New(&resampling.Config{
		InputRate:  float64(from),
		OutputRate: float64(to),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return nil, fmt.Errorf("audio: create resampler: %w", err)
	}

	output, err := r.Process(input)
	if err != nil {
		return nil, fmt.Errorf("audio: resample: %w", err)
	}
	tail, err := r.Flush()
	if err != nil {
		return nil, fmt.Errorf("audio: flush resampler: %w", err)
	}
	return append(output, tail...), nil
}

// filterDelay measures how many output samples the resampler lags its input
// by, from the peak of its impulse response.
func filterDelay(from, to int) (int, error) {
	key := [2]int{from, to}
	if d, ok := delays.Load(key); ok {
		return d.(int), nil
	}

	impulse := make([]float64, max(from/2, 4096))
	// Place the impulse where it maps onto a whole output sample.
	pos := len(impulse) / 8
	if step := from / gcd(from, to); step <= pos {
		pos -= pos % step
	}
	impulse[pos] = 1

	response, err := resampleAll(impulse, from, to)
	if err != nil {
		return 0, err
	}
	if len(response) == 0 {
		return 0, fmt.Errorf("audio: resampler produced no output for %d -> %d", from, to)
	}

	expected := int(math.Round(float64(pos) * float64(to) / float64(from)))
	delay := max(floats.MaxIdx(response)-expected, 0)
	delays.Store(key, delay)
	return delay, nil
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func resampledLength(n, from, to int) int {
	return int(math.Ceil(float64(n) * float64(to) / float64(from)))
}
