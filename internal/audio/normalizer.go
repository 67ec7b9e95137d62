package audio

import (
	"context"

	"github.com/rs/zerolog"
)

// Normalizer turns an uploaded blob into mono PCM at CanonicalSampleRate.
type Normalizer struct {
	transcoder Transcoder
	logger     zerolog.Logger
}

// NewNormalizer creates a Normalizer. A nil transcoder limits input to WAV.
func NewNormalizer(transcoder Transcoder, logger zerolog.Logger) *Normalizer {
	return &Normalizer{transcoder: transcoder, logger: logger}
}

// Normalize decodes blob, down-mixes to mono and resamples to 22050 Hz.
func (n *Normalizer) Normalize(ctx context.Context, blob Blob) (*PCM, error) {
	if len(blob.Data) == 0 {
		return nil, ErrEmptyInput
	}
	format := blob.Format
	if format == "" {
		format = DefaultFormat
	}

	var (
		raw *interleaved
		err error
	)
	if isCanonicalFormat(format) {
		raw, err = decodeWAV(blob.Data)
		if err != nil {
			n.log(ctx).Debug().Err(err).Str("format", format).Msg("direct wav decode failed, transcoding")
			raw, err = n.transcode(ctx, Blob{Data: blob.Data, Format: format})
		}
	} else {
		raw, err = n.transcode(ctx, Blob{Data: blob.Data, Format: format})
	}
	if err != nil {
		return nil, &DecodeError{Format: format, Err: err}
	}

	mono := downmix(raw.samples, raw.channels)
	samples, err := Resample(mono, raw.sampleRate, CanonicalSampleRate)
	if err != nil {
		return nil, &DecodeError{Format: format, Err: err}
	}

	return &PCM{Samples: samples, SampleRate: CanonicalSampleRate}, nil
}

func (n *Normalizer) transcode(ctx context.Context, blob Blob) (*interleaved, error) {
	if n.transcoder == nil {
		return nil, ErrUnsupportedFormat
	}
	wav, err := n.transcoder.Transcode(ctx, blob)
	if err != nil {
		return nil, err
	}
	return decodeWAV(wav)
}

func (n *Normalizer) log(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &n.logger
}
