package api

import (
	"fmt"
	"net/http"
	"regexp"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/scrybe/scrybe-server/domain/entities"
	"github.com/scrybe/scrybe-server/domain/repositories"
	"github.com/scrybe/scrybe-server/internal/websocket"
	"github.com/scrybe/scrybe-server/usecase"
)

const sessionListLimit = 50

var rangePattern = regexp.MustCompile(`^bytes=(\d+)-(\d*)$`)

// InitRoutes initializes all API routes. store may be nil, in which case the
// session read endpoints serve empty results.
func InitRoutes(
	e *echo.Echo,
	hub *websocket.Hub,
	recording *usecase.RecordingService,
	transcription *usecase.TranscriptionService,
	store repositories.TranscriptStore,
	logger *zap.Logger,
) {
	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"service": "scrybe-server",
		})
	})

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	e.GET("/ws", func(c echo.Context) error {
		return websocket.ServeWS(hub, c, recording, transcription, logger)
	})

	e.GET("/sessions/:id/audio", func(c echo.Context) error {
		return serveAudio(c, recording, logger)
	})

	e.GET("/api/sessions", func(c echo.Context) error {
		return listSessions(c, store, logger)
	})

	e.GET("/api/sessions/:id", func(c echo.Context) error {
		return getSession(c, store, logger)
	})
}

// serveAudio streams a finalized recording with byte-range support so
// browser audio elements can seek.
func serveAudio(c echo.Context, recording *usecase.RecordingService, logger *zap.Logger) error {
	sessionID := c.Param("id")

	data, mime, err := recording.AudioData(sessionID)
	if err != nil {
		logger.Warn("Audio not found",
			zap.String("sessionId", sessionID),
			zap.Error(err))
		return c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: "No recording for session",
		})
	}

	size := len(data)
	h := c.Response().Header()
	h.Set("Accept-Ranges", "bytes")
	h.Set("Cache-Control", "no-store")

	rangeHeader := c.Request().Header.Get("Range")
	m := rangePattern.FindStringSubmatch(rangeHeader)
	if m == nil {
		return c.Blob(http.StatusOK, mime, data)
	}

	start, err := strconv.Atoi(m[1])
	if err != nil || start >= size {
		h.Set("Content-Range", fmt.Sprintf("bytes */%d", size))
		return c.NoContent(http.StatusRequestedRangeNotSatisfiable)
	}

	end := size - 1
	if m[2] != "" {
		if e, err := strconv.Atoi(m[2]); err == nil {
			if e < start {
				h.Set("Content-Range", fmt.Sprintf("bytes */%d", size))
				return c.NoContent(http.StatusRequestedRangeNotSatisfiable)
			}
			if e < end {
				end = e
			}
		}
	}

	h.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, size))
	return c.Blob(http.StatusPartialContent, mime, data[start:end+1])
}

func listSessions(c echo.Context, store repositories.TranscriptStore, logger *zap.Logger) error {
	if store == nil {
		return c.JSON(http.StatusOK, SessionListResponse{Sessions: []entities.SessionRecord{}})
	}

	sessions, err := store.ListSessions(c.Request().Context(), sessionListLimit)
	if err != nil {
		logger.Error("Failed to list sessions", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "storage_error",
			Message: "Failed to list sessions",
		})
	}
	if sessions == nil {
		sessions = []entities.SessionRecord{}
	}
	return c.JSON(http.StatusOK, SessionListResponse{Sessions: sessions})
}

func getSession(c echo.Context, store repositories.TranscriptStore, logger *zap.Logger) error {
	sessionID := c.Param("id")

	if store == nil {
		return c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: "Session not found",
		})
	}

	ctx := c.Request().Context()
	session, err := store.GetSession(ctx, sessionID)
	if err != nil {
		logger.Error("Failed to load session",
			zap.String("sessionId", sessionID),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "storage_error",
			Message: "Failed to load session",
		})
	}
	if session == nil {
		return c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: "Session not found",
		})
	}

	segments, err := store.ListSegments(ctx, sessionID)
	if err != nil {
		logger.Error("Failed to load segments",
			zap.String("sessionId", sessionID),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "storage_error",
			Message: "Failed to load segments",
		})
	}
	if segments == nil {
		segments = []entities.Segment{}
	}

	return c.JSON(http.StatusOK, SessionDetailResponse{
		Session:   *session,
		Segments:  segments,
		FinalText: session.FinalText,
		AudioPath: session.AudioPath,
		Mime:      session.Mime,
	})
}
