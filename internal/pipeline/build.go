package pipeline

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/emotion-speech-go/emotion-speech-go/internal/audio"
	"github.com/emotion-speech-go/emotion-speech-go/internal/classifier"
	"github.com/emotion-speech-go/emotion-speech-go/internal/config"
	"github.com/emotion-speech-go/emotion-speech-go/internal/features"
	"github.com/emotion-speech-go/emotion-speech-go/internal/metrics"
)

// FromConfig assembles the production pipeline. A model that fails to load
// does not fail assembly: the returned handle is unavailable and analyses
// answer with "Model not loaded". A model whose input width differs from the
// extractor's coefficient count is treated the same way.
func FromConfig(ctx context.Context, cfg *config.Config, logger zerolog.Logger, m *metrics.Metrics) (*Orchestrator, *classifier.Handle, error) {
	extractor, err := features.NewExtractor(features.DefaultConfig())
	if err != nil {
		return nil, nil, err
	}

	transcoder := audio.NewDefaultTranscoder(cfg.Audio.FFmpegPath, cfg.Audio.TranscodeTimeout, cfg.Audio.StagingDir)
	normalizer := audio.NewNormalizer(transcoder, logger)

	model := classifier.Open(ctx, cfg.Model, logger)
	if want := extractor.Config().NumCoefficients; model.Available() && model.Info().InputDim != want {
		err := fmt.Errorf("%w: model expects %d features, extractor produces %d",
			classifier.ErrShapeMismatch, model.Info().InputDim, want)
		logger.Error().Err(err).Str("path", cfg.Model.Path).Msg("Model rejected")
		model = classifier.Unavailable(err)
	}
	m.SetModelAvailable(model.Available())

	return New(normalizer, audio.NewGate(), extractor, model, logger, m), model, nil
}
