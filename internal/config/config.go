package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// Config carries all runtime configuration, sourced from the environment
// (optionally seeded from a .env file).
type Config struct {
	// Port the HTTP/WebSocket server listens on.
	Port string
	// RecordingsDir is where finalized audio blobs are written.
	RecordingsDir string

	// STTProvider selects the recognizer: "deepgram" (default) or "google".
	STTProvider string
	// DeepgramAPIKey enables the Deepgram live recognizer. When empty the
	// server runs in degraded mode: audio is still recorded but
	// start_transcription only emits a notice.
	DeepgramAPIKey string
	// Google recognizer settings, used when STTProvider is "google".
	GoogleLanguage   string
	GoogleSampleRate int

	// MongoURI enables persistence when set; persistence is always
	// best-effort and the server runs fine without it.
	MongoURI      string
	MongoDatabase string

	// RelayPollInterval is how long the relay loop sleeps when the audio
	// backlog is empty; it also bounds how quickly a stop is observed.
	RelayPollInterval time.Duration
	// FinalizeGrace is the wait before finalize stops a session, allowing
	// in-flight final events to land.
	FinalizeGrace time.Duration
}

// Load reads configuration from the environment with defaults suitable for
// local development. A .env file in the working directory is loaded first
// when present.
func Load(logger *zap.Logger) *Config {
	_ = godotenv.Load()

	cfg := &Config{
		Port:              getEnv("PORT", "8000"),
		RecordingsDir:     getEnv("RECORDINGS_DIR", "recordings"),
		STTProvider:       getEnv("STT_PROVIDER", "deepgram"),
		DeepgramAPIKey:    os.Getenv("DEEPGRAM_API_KEY"),
		GoogleLanguage:    getEnv("GOOGLE_STT_LANGUAGE", "en-US"),
		GoogleSampleRate:  getEnvInt("GOOGLE_STT_SAMPLE_RATE", 48000),
		MongoURI:          os.Getenv("MONGODB_URI"),
		MongoDatabase:     getEnv("MONGODB_DB", "realtime_transcription"),
		RelayPollInterval: getEnvDuration("RELAY_POLL_INTERVAL", 50*time.Millisecond),
		FinalizeGrace:     getEnvDuration("FINALIZE_GRACE", 500*time.Millisecond),
	}

	logger.Info("Configuration loaded",
		zap.String("port", cfg.Port),
		zap.String("recordingsDir", cfg.RecordingsDir),
		zap.String("sttProvider", cfg.STTProvider),
		zap.Bool("mongoConfigured", cfg.MongoURI != ""))

	if cfg.STTProvider == "deepgram" && cfg.DeepgramAPIKey == "" {
		logger.Warn("DEEPGRAM_API_KEY not set - transcription will run in degraded mode")
	}

	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
