package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string

	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "emotion-server",
	Short: "Speech emotion recognition API server",
	Long: `emotion-server classifies the emotion expressed in short speech clips.
Clips are uploaded over HTTP (or streamed over a WebSocket), normalized to
mono 22050 Hz, reduced to 40 MFCC features and labelled by the configured
classifier.

Start the server:
  emotion-server

Start with custom settings:
  emotion-server --listen 0.0.0.0:8080 --model-path ./emotion_model.msgpack

Use environment variables:
  EMOTION_LISTEN=0.0.0.0:8080 EMOTION_MODEL_BACKEND=remote EMOTION_MODEL_URL=http://localhost:8501 emotion-server`,
	RunE: runServer,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("emotion-server %s\n", Version)
		fmt.Printf("  Commit:     %s\n", Commit)
		fmt.Printf("  Build Date: %s\n", BuildDate)
	},
}

// settings maps viper keys to their flag and environment variable.
var settings = []struct {
	key  string
	flag string
	env  string
}{
	{"server.listen", "listen", "EMOTION_LISTEN"},
	{"server.read_timeout", "read-timeout", "EMOTION_READ_TIMEOUT"},
	{"server.write_timeout", "write-timeout", "EMOTION_WRITE_TIMEOUT"},
	{"server.max_upload_bytes", "max-upload-bytes", "EMOTION_MAX_UPLOAD_BYTES"},
	{"auth.api_key", "api-key", "EMOTION_API_KEY"},
	{"audio.ffmpeg_path", "ffmpeg", "EMOTION_FFMPEG_PATH"},
	{"audio.transcode_timeout", "transcode-timeout", "EMOTION_TRANSCODE_TIMEOUT"},
	{"audio.staging_dir", "staging-dir", "EMOTION_STAGING_DIR"},
	{"model.backend", "model-backend", "EMOTION_MODEL_BACKEND"},
	{"model.path", "model-path", "EMOTION_MODEL_PATH"},
	{"model.labels_path", "model-labels", "EMOTION_MODEL_LABELS"},
	{"model.remote_url", "model-url", "EMOTION_MODEL_URL"},
	{"model.timeout", "model-timeout", "EMOTION_MODEL_TIMEOUT"},
	{"limits.max_concurrent", "max-concurrent", "EMOTION_MAX_CONCURRENT"},
	{"limits.max_queue", "max-queue", "EMOTION_MAX_QUEUE"},
	{"logging.level", "log-level", "EMOTION_LOG_LEVEL"},
	{"logging.format", "log-format", "EMOTION_LOG_FORMAT"},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")

	rootCmd.Flags().String("listen", "0.0.0.0:5001", "Server listen address")
	rootCmd.Flags().Duration("read-timeout", 30*time.Second, "HTTP read timeout")
	rootCmd.Flags().Duration("write-timeout", 120*time.Second, "HTTP write timeout")
	rootCmd.Flags().Int64("max-upload-bytes", 32<<20, "Maximum upload size in bytes")

	rootCmd.Flags().String("api-key", "", "API key for authentication (empty = no auth)")

	rootCmd.Flags().String("ffmpeg", "ffmpeg", "ffmpeg binary used for non-native formats")
	rootCmd.Flags().Duration("transcode-timeout", 30*time.Second, "Maximum time for one ffmpeg transcode")
	rootCmd.Flags().String("staging-dir", "", "Directory for transcoding temp files (default: system temp)")

	rootCmd.Flags().String("model-backend", "dense", "Model backend (dense, remote)")
	rootCmd.Flags().String("model-path", "emotion_model.msgpack", "Dense model artifact (.msgpack or .json)")
	rootCmd.Flags().String("model-labels", "", "YAML label manifest overriding the model's labels")
	rootCmd.Flags().String("model-url", "", "Remote model server URL")
	rootCmd.Flags().Duration("model-timeout", 10*time.Second, "Remote model request timeout")

	rootCmd.Flags().Int("max-concurrent", 4, "Analyses running at once")
	rootCmd.Flags().Int("max-queue", 16, "Analyses waiting for a worker before requests are rejected")

	rootCmd.Flags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.Flags().String("log-format", "json", "Log format (json, text)")

	bindFlags()

	rootCmd.AddCommand(versionCmd)
}

func bindFlags() {
	for _, s := range settings {
		flag := rootCmd.Flags().Lookup(s.flag)
		if flag == nil {
			continue
		}
		_ = viper.BindPFlag(s.key, flag)
	}
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("./configs")
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("EMOTION")
	viper.AutomaticEnv()

	for _, s := range settings {
		_ = viper.BindEnv(s.key, s.env)
	}

	setDefaults()
	bindFlags()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
