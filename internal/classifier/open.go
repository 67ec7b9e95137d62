package classifier

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/emotion-speech-go/emotion-speech-go/internal/config"
)

// Open loads the configured model once. It never returns nil: on failure the
// cause is logged and an unavailable handle is returned.
func Open(ctx context.Context, cfg config.ModelConfig, logger zerolog.Logger) *Handle {
	h, err := open(ctx, cfg)
	if err != nil {
		logger.Error().Err(err).
			Str("backend", cfg.Backend).
			Str("path", cfg.Path).
			Str("remote_url", cfg.RemoteURL).
			Msg("Model failed to load - analysis requests will be rejected")
		return Unavailable(err)
	}

	info := h.Info()
	logger.Info().
		Str("model", info.Name).
		Str("backend", info.Backend).
		Int("input_dim", info.InputDim).
		Strs("labels", Strings(info.Labels)).
		Msg("Model loaded")
	return h
}

func open(ctx context.Context, cfg config.ModelConfig) (*Handle, error) {
	var (
		model Model
		err   error
	)
	switch cfg.Backend {
	case "", BackendDense:
		model, err = LoadDenseModel(cfg.Path)
	case BackendRemote:
		model, err = NewRemoteModel(ctx, cfg.RemoteURL, cfg.Timeout)
	default:
		return nil, fmt.Errorf("unknown model backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}

	var labels []Label
	if cfg.LabelsPath != "" {
		labels, err = LoadLabels(cfg.LabelsPath)
		if err != nil {
			return nil, err
		}
	}

	return NewHandle(model, labels)
}
