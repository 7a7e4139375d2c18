package youtube

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lecturemate/backend/internal/acquisition"
	"github.com/lecturemate/backend/internal/middleware"
	"github.com/lecturemate/backend/internal/models"
	"github.com/lecturemate/backend/pkg/response"
)

// MetadataSource fetches video metadata.
type MetadataSource interface {
	Fetch(ctx context.Context, videoID string) (*Info, error)
}

// InfoRequest is the body for POST /youtube/info.
type InfoRequest struct {
	VideoID string `json:"video_id"`
	URL     string `json:"url"`
}

// TranscriptRequest is the body for POST /youtube/transcript.
type TranscriptRequest struct {
	VideoID   string   `json:"video_id"`
	URL       string   `json:"url"`
	StartTime *float64 `json:"start_time"`
	EndTime   *float64 `json:"end_time"`
}

// TranscribeRequest is the body for POST /youtube/transcribe.
type TranscribeRequest struct {
	TranscriptRequest
	ModelSize string `json:"model_size"`
	Language  string `json:"language"`
	Device    string `json:"device"`
}

// Handler serves the stateless YouTube helper endpoints.
type Handler struct {
	info      MetadataSource
	captions  acquisition.Acquirer
	speech    acquisition.Acquirer
	keepAlive response.KeepAlive
	logger    *zap.Logger
}

// NewHandler creates the YouTube handler. speech may be nil when speech recognition is not configured.
func NewHandler(info MetadataSource, captions, speech acquisition.Acquirer, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{info: info, captions: captions, speech: speech, keepAlive: response.DefaultKeepAlive, logger: logger}
}

// SetKeepAlive overrides the streaming timings of /youtube/transcribe.
func (h *Handler) SetKeepAlive(k response.KeepAlive) { h.keepAlive = k }

func resolveID(videoID, url string) (string, error) {
	if videoID != "" {
		return VideoID(videoID)
	}
	return VideoID(url)
}

// Info handles POST /youtube/info. Metadata failures degrade to FallbackInfo.
func (h *Handler) Info(c *gin.Context) {
	var req InfoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	id, err := resolveID(req.VideoID, req.URL)
	if err != nil {
		response.BadRequest(c, "Video ID is required")
		return
	}
	if h.info == nil {
		response.OK(c, FallbackInfo(id))
		return
	}
	info, err := h.info.Fetch(c.Request.Context(), id)
	if err != nil {
		h.logger.Warn("video info unavailable, using fallback", zap.String("video_id", id), zap.Error(err))
		info = FallbackInfo(id)
	}
	response.OK(c, info)
}

// Transcript handles POST /youtube/transcript.
func (h *Handler) Transcript(c *gin.Context) {
	var req TranscriptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "start_time and end_time must be numbers")
		return
	}
	id, err := resolveID(req.VideoID, req.URL)
	if err != nil {
		response.BadRequest(c, "Video ID is required")
		return
	}
	src := acquisition.Source{
		Kind:     models.SourceYouTube,
		VideoID:  id,
		Range:    acquisition.TimeRange{Start: req.StartTime, End: req.EndTime},
		Strategy: acquisition.StrategyCaptions,
	}
	status, body := h.acquire(c.Request.Context(), h.captions, src)
	c.JSON(status, body)
}

// Transcribe handles POST /youtube/transcribe: audio download plus speech recognition,
// streamed with keep-alive newlines.
func (h *Handler) Transcribe(c *gin.Context) {
	if h.speech == nil {
		response.ServiceUnavailable(c, "speech recognition is not configured")
		return
	}
	var req TranscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "start_time and end_time must be numbers")
		return
	}
	id, err := resolveID(req.VideoID, req.URL)
	if err != nil {
		response.BadRequest(c, "Video ID is required")
		return
	}
	src := acquisition.Source{
		Kind:     models.SourceYouTube,
		VideoID:  id,
		Range:    acquisition.TimeRange{Start: req.StartTime, End: req.EndTime},
		Strategy: acquisition.StrategySpeech,
		Options: acquisition.CanonicalOptions(acquisition.TranscribeOptions{
			ModelSize: req.ModelSize, Language: req.Language, Device: req.Device,
		}),
	}
	if uid := middleware.UserID(c); uid != uuid.Nil {
		src.OwnerID = uid.String()
	}
	h.keepAlive.Run(c, func(ctx context.Context) (int, response.Body) {
		return h.acquire(ctx, h.speech, src)
	})
}

func (h *Handler) acquire(ctx context.Context, a acquisition.Acquirer, src acquisition.Source) (int, response.Body) {
	res, err := a.Acquire(ctx, src)
	if err == nil {
		return http.StatusOK, response.Body{Success: true, Data: res}
	}
	var ae *acquisition.Error
	switch {
	case errors.As(err, &ae):
		return http.StatusNotFound, response.Body{Error: ae.Message, Details: ae.Details}
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, response.Body{Error: "Transcription timed out"}
	}
	h.logger.Error("transcript acquisition failed", zap.String("video_id", src.VideoID), zap.Error(err))
	return http.StatusInternalServerError, response.Body{Error: "Failed to fetch transcript"}
}
