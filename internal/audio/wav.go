package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const wavFormatPCM = 1

// interleaved is decoded audio before down-mixing and resampling.
type interleaved struct {
	samples    []float32
	channels   int
	sampleRate int
}

// DecodeWAV decodes an integer PCM WAV container. The result keeps the
// source rate; Normalize is responsible for mono and rate conversion.
func DecodeWAV(data []byte) (*PCM, error) {
	raw, err := decodeWAV(data)
	if err != nil {
		return nil, err
	}
	return &PCM{Samples: downmix(raw.samples, raw.channels), SampleRate: raw.sampleRate}, nil
}

func decodeWAV(data []byte) (*interleaved, error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return nil, errors.New("not a RIFF/WAVE container")
	}
	if dec.WavAudioFormat != wavFormatPCM {
		return nil, fmt.Errorf("%w: format tag %d", errUnsupportedEncoding, dec.WavAudioFormat)
	}

	depth := int(dec.BitDepth)
	switch depth {
	case 8, 16, 24, 32:
	default:
		return nil, fmt.Errorf("%w: %d-bit samples", errUnsupportedEncoding, depth)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read pcm: %w", err)
	}
	if buf == nil || len(buf.Data) == 0 {
		return nil, errors.New("no sample data")
	}

	channels := int(dec.NumChans)
	if channels <= 0 {
		return nil, errors.New("zero channels")
	}
	rate := int(dec.SampleRate)
	if rate <= 0 {
		return nil, errors.New("zero sample rate")
	}

	return &interleaved{
		samples:    intToFloat(buf.Data, depth),
		channels:   channels,
		sampleRate: rate,
	}, nil
}

func intToFloat(data []int, depth int) []float32 {
	out := make([]float32, len(data))
	if depth == 8 {
		// 8-bit WAV samples are unsigned.
		for i, v := range data {
			out[i] = float32(v-128) / 128
		}
		return out
	}
	scale := float32(1) / float32(int64(1)<<(depth-1))
	for i, v := range data {
		out[i] = float32(v) * scale
	}
	return out
}

// EncodeWAV writes samples as a 16-bit PCM WAV container.
func EncodeWAV(w io.WriteSeeker, samples []float32, sampleRate, channels int) error {
	if channels <= 0 {
		return errors.New("audio: encode with zero channels")
	}
	enc := wav.NewEncoder(w, sampleRate, 16, channels, wavFormatPCM)

	data := make([]int, len(samples))
	for i, s := range samples {
		data[i] = int(math.Round(float64(clamp(s)) * math.MaxInt16))
	}

	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("audio: write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("audio: close wav: %w", err)
	}
	return nil
}

func clamp(s float32) float32 {
	switch {
	case s > 1:
		return 1
	case s < -1:
		return -1
	}
	return s
}

// downmix averages interleaved channels into a mono stream.
func downmix(samples []float32, channels int) []float32 {
	if channels <= 1 {
		return samples
	}
	frames := len(samples) / channels
	out := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		base := i * channels
		for c := 0; c < channels; c++ {
			sum += samples[base+c]
		}
		out[i] = sum / float32(channels)
	}
	return out
}
