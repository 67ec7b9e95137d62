package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/emotion-speech-go/emotion-speech-go/internal/audio"
	"github.com/emotion-speech-go/emotion-speech-go/internal/config"
	"github.com/emotion-speech-go/emotion-speech-go/internal/pipeline"
	"github.com/emotion-speech-go/emotion-speech-go/internal/schema"
)

var (
	serverURL string
	apiKey    string
	output    string
)

var rootCmd = &cobra.Command{
	Use:   "emotion-ctl",
	Short: "Speech emotion server client",
	Long: `emotion-ctl talks to an emotion-server or runs the analysis locally.

Commands:
  health     Check server health
  analyze    Upload a clip to the server
  classify   Analyze a clip in-process with a local model`,
	SilenceUsage: true,
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check server health",
	RunE:  runHealth,
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze [audio-file]",
	Short: "Upload a clip to /analyze_realtime",
	Args:  cobra.ExactArgs(1),
	RunE:  runAnalyze,
}

var classifyCmd = &cobra.Command{
	Use:   "classify [audio-file]",
	Short: "Analyze a clip locally without a server",
	Args:  cobra.ExactArgs(1),
	RunE:  runClassify,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", "http://localhost:5001", "emotion-server URL")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "API key for authentication")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "text", "Output format: text, json")

	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(classifyCmd)

	healthCmd.Flags().Bool("detailed", false, "Show detailed health information")

	classifyCmd.Flags().String("model-path", "emotion_model.msgpack", "Dense model artifact")
	classifyCmd.Flags().String("model-labels", "", "YAML label manifest")
	classifyCmd.Flags().String("ffmpeg", "ffmpeg", "ffmpeg binary used for non-native formats")
	classifyCmd.Flags().Bool("verbose", false, "Log pipeline events to stderr")
}

func runHealth(cmd *cobra.Command, args []string) error {
	detailed, _ := cmd.Flags().GetBool("detailed")

	url := serverURL + "/v1/health"
	if detailed {
		url += "?detailed=true"
	}

	resp, err := makeRequest(contextOf(cmd), url)
	if err != nil {
		return err
	}

	if output == "json" {
		fmt.Fprintln(cmd.OutOrStdout(), string(resp))
		return nil
	}

	var health schema.HealthResponse
	if err := json.Unmarshal(resp, &health); err != nil {
		return fmt.Errorf("invalid health response: %w", err)
	}
	printHealth(cmd.OutOrStdout(), health)
	return nil
}

func printHealth(w io.Writer, health schema.HealthResponse) {
	fmt.Fprintf(w, "Status: %s\n", health.Status)
	if m := health.Model; m != nil {
		fmt.Fprintf(w, "Model: %s", m.Status)
		if m.Name != "" {
			fmt.Fprintf(w, " (%s, %s backend)", m.Name, m.Backend)
		}
		if m.LatencyMs != nil {
			fmt.Fprintf(w, " latency: %.1fms", *m.LatencyMs)
		}
		fmt.Fprintln(w)
		if len(m.Labels) > 0 {
			fmt.Fprintf(w, "Labels: %v\n", m.Labels)
		}
		if m.Error != "" {
			fmt.Fprintf(w, "Model Error: %s\n", m.Error)
		}
	}
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read audio file: %w", err)
	}

	resp, err := uploadAudio(contextOf(cmd), serverURL+"/analyze_realtime", filepath.Base(args[0]), data)
	if err != nil {
		return err
	}

	return writeAnalysis(cmd.OutOrStdout(), resp)
}

func runClassify(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read audio file: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	cfg.Model.Backend = "dense"
	cfg.Model.Path, _ = cmd.Flags().GetString("model-path")
	cfg.Model.LabelsPath, _ = cmd.Flags().GetString("model-labels")
	cfg.Audio.FFmpegPath, _ = cmd.Flags().GetString("ffmpeg")

	logger := zerolog.Nop()
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr()}).With().Timestamp().Logger()
	}

	ctx, cancel := context.WithTimeout(contextOf(cmd), 2*time.Minute)
	defer cancel()

	analyzer, _, err := pipeline.FromConfig(ctx, cfg, logger, nil)
	if err != nil {
		return err
	}

	blob := audio.Blob{Data: data, Format: audio.FormatFromFilename(args[0])}
	res, err := analyzer.Analyze(ctx, blob)

	var (
		resp    schema.AnalysisResponse
		failure *pipeline.Failure
	)
	switch {
	case errors.As(err, &failure):
		resp = schema.NewAnalysisFailure(failure.Message)
	case err != nil:
		return err
	default:
		resp = schema.NewAnalysisSuccess(string(res.Label), res.Confidence)
	}

	return writeAnalysis(cmd.OutOrStdout(), resp)
}

func writeAnalysis(w io.Writer, resp schema.AnalysisResponse) error {
	if output == "json" {
		return json.NewEncoder(w).Encode(resp)
	}

	if !resp.Success {
		fmt.Fprintf(w, "✗ Failed: %s\n", resp.Error)
		return nil
	}
	fmt.Fprintf(w, "✓ Emotion: %s", resp.Emotion)
	if resp.Confidence != nil {
		fmt.Fprintf(w, " (confidence: %.1f%%)", *resp.Confidence)
	}
	fmt.Fprintln(w)
	return nil
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
