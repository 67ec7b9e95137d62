package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/emotion-speech-go/emotion-speech-go/internal/api"
	"github.com/emotion-speech-go/emotion-speech-go/internal/config"
	"github.com/emotion-speech-go/emotion-speech-go/internal/metrics"
	"github.com/emotion-speech-go/emotion-speech-go/internal/pipeline"
	"github.com/emotion-speech-go/emotion-speech-go/internal/queue"
)

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := setupLogger(cfg.Logging)

	logger.Info().
		Str("listen", cfg.Server.Listen).
		Str("model_backend", cfg.Model.Backend).
		Str("log_level", cfg.Logging.Level).
		Msg("Starting emotion server")

	m := metrics.New()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	analyzer, model, err := pipeline.FromConfig(ctx, cfg, logger, m)
	cancel()
	if err != nil {
		return fmt.Errorf("failed to build pipeline: %w", err)
	}

	pool := queue.NewManager(queue.Config{
		Workers:  cfg.Limits.MaxConcurrent,
		MaxQueue: cfg.Limits.MaxQueue,
	})
	m.RegisterPool(
		func() int { return pool.Stats().Active },
		func() int { return pool.Stats().Queued },
	)

	router := api.NewRouter(cfg, api.Dependencies{
		Analyzer: analyzer,
		Model:    model,
		Pool:     pool,
		Metrics:  m,
	}, logger)

	srv := &http.Server{
		Addr:         cfg.Server.Listen,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.Server.Listen).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		_ = pool.Shutdown(context.Background())
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		logger.Info().Str("signal", sig.String()).Msg("Shutting down server...")
	}

	ctx, cancel = context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}
	if err := pool.Shutdown(ctx); err != nil {
		return fmt.Errorf("worker pool shutdown error: %w", err)
	}

	logger.Info().Msg("Server stopped")
	return nil
}

func setDefaults() {
	d := config.Default()

	viper.SetDefault("server.listen", d.Server.Listen)
	viper.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	viper.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	viper.SetDefault("server.max_upload_bytes", d.Server.MaxUploadBytes)
	viper.SetDefault("auth.api_key", d.Auth.APIKey)
	viper.SetDefault("audio.ffmpeg_path", d.Audio.FFmpegPath)
	viper.SetDefault("audio.transcode_timeout", d.Audio.TranscodeTimeout)
	viper.SetDefault("audio.staging_dir", d.Audio.StagingDir)
	viper.SetDefault("model.backend", d.Model.Backend)
	viper.SetDefault("model.path", d.Model.Path)
	viper.SetDefault("model.labels_path", d.Model.LabelsPath)
	viper.SetDefault("model.remote_url", d.Model.RemoteURL)
	viper.SetDefault("model.timeout", d.Model.Timeout)
	viper.SetDefault("limits.max_concurrent", d.Limits.MaxConcurrent)
	viper.SetDefault("limits.max_queue", d.Limits.MaxQueue)
	viper.SetDefault("logging.level", d.Logging.Level)
	viper.SetDefault("logging.format", d.Logging.Format)
}

// loadConfig resolves configuration with precedence flag > env > file > default.
func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, err
	}

	defaults := config.Default()
	if cfg.Server.Listen == "" {
		cfg.Server.Listen = defaults.Server.Listen
	}
	if cfg.Limits.MaxConcurrent <= 0 {
		cfg.Limits.MaxConcurrent = defaults.Limits.MaxConcurrent
	}
	if cfg.Limits.MaxQueue < 0 {
		cfg.Limits.MaxQueue = 0
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = defaults.Logging.Level
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = defaults.Logging.Format
	}

	return cfg, nil
}

func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "text" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}
