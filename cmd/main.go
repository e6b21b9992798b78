package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	mongoadapter "github.com/scrybe/scrybe-server/adapters/mongo"
	"github.com/scrybe/scrybe-server/adapters/recording"
	"github.com/scrybe/scrybe-server/adapters/stt"
	"github.com/scrybe/scrybe-server/domain/repositories"
	"github.com/scrybe/scrybe-server/internal/api"
	"github.com/scrybe/scrybe-server/internal/config"
	"github.com/scrybe/scrybe-server/internal/metrics"
	"github.com/scrybe/scrybe-server/internal/websocket"
	"github.com/scrybe/scrybe-server/usecase"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg := config.Load(logger)
	m := metrics.New(prometheus.DefaultRegisterer)

	blobStore, err := recording.NewStore(cfg.RecordingsDir, logger)
	if err != nil {
		logger.Fatal("Failed to prepare recordings directory", zap.Error(err))
	}

	// Persistence is optional; without Mongo the server still records and
	// transcribes, it just has nothing to serve on the session read APIs.
	var transcriptStore repositories.TranscriptStore
	var mongoClient *mongoadapter.Client
	if cfg.MongoURI != "" {
		mongoClient, err = mongoadapter.NewClient(cfg.MongoURI, cfg.MongoDatabase, logger)
		if err != nil {
			logger.Warn("MongoDB unavailable, continuing without persistence", zap.Error(err))
		} else {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := mongoadapter.EnsureIndexes(ctx, mongoClient.Database); err != nil {
				logger.Warn("Failed to ensure MongoDB indexes", zap.Error(err))
			}
			cancel()
			transcriptStore = mongoadapter.NewTranscriptStore(mongoClient.Database)
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				mongoClient.Close(ctx)
			}()
		}
	} else {
		logger.Info("MONGODB_URI not set, persistence disabled")
	}

	var recognizer repositories.Recognizer
	switch cfg.STTProvider {
	case "google":
		recognizer = stt.NewGoogle(stt.GoogleConfig{
			Language:   cfg.GoogleLanguage,
			SampleRate: cfg.GoogleSampleRate,
		}, logger)
	case "mock":
		recognizer = stt.NewMock()
	default:
		recognizer = stt.NewDeepgram(cfg.DeepgramAPIKey, logger)
	}

	// Initialize WebSocket hub
	hub := websocket.NewHub(m, logger)
	go hub.Run()

	// Initialize usecase services
	recordingService := usecase.NewRecordingService(blobStore, transcriptStore, m, logger)
	transcriptionService := usecase.NewTranscriptionService(
		recognizer,
		transcriptStore,
		hub,
		m,
		usecase.TranscriptionConfig{
			PollInterval:  cfg.RelayPollInterval,
			FinalizeGrace: cfg.FinalizeGrace,
		},
		logger,
	)

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Initialize API routes
	api.InitRoutes(e, hub, recordingService, transcriptionService, transcriptStore, logger)

	// Graceful shutdown
	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("shutting down the server", zap.Error(err))
		}
	}()

	logger.Info("Server started",
		zap.String("port", cfg.Port),
		zap.String("sttProvider", cfg.STTProvider))

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Server is shutting down...")

	transcriptionService.StopAll()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
