package lectures

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lecturemate/backend/internal/acquisition"
	"github.com/lecturemate/backend/internal/export"
	"github.com/lecturemate/backend/internal/generate"
	"github.com/lecturemate/backend/internal/middleware"
	"github.com/lecturemate/backend/internal/models"
	"github.com/lecturemate/backend/internal/youtube"
	"github.com/lecturemate/backend/pkg/response"
	"github.com/lecturemate/backend/pkg/storage"
)

// StartOptions are the per-submission settings of a lecture's first run.
type StartOptions struct {
	Strategy   acquisition.Strategy
	Options    acquisition.TranscribeOptions
	Flashcards bool
}

// Pipeline starts, re-runs and stops lecture processing.
type Pipeline interface {
	Start(ctx context.Context, l *models.Lecture, opts StartOptions) error
	ReRun(ctx context.Context, id uuid.UUID, mode string, flashcards *bool) error
	Stop(ctx context.Context, id uuid.UUID) error
}

// CreateRequest is the body for POST /lectures.
type CreateRequest struct {
	URL        string   `json:"url"`
	VideoID    string   `json:"video_id"`
	StartTime  *float64 `json:"start_time"`
	EndTime    *float64 `json:"end_time"`
	Mode       string   `json:"mode"`
	Strategy   string   `json:"strategy"`
	Title      string   `json:"title"`
	Flashcards bool     `json:"flashcards"`
	ModelSize  string   `json:"model_size"`
	Language   string   `json:"language"`
	Device     string   `json:"device"`
}

// ReRunRequest is the body for POST /lectures/:id/rerun.
type ReRunRequest struct {
	Mode       string `json:"mode"`
	Flashcards *bool  `json:"flashcards"`
}

// Handler handles lecture HTTP endpoints.
type Handler struct {
	store     Store
	pipeline  Pipeline
	media     storage.MediaStore
	info      youtube.MetadataSource
	pdf       export.PDFOptions
	urlExpiry time.Duration
	logger    *zap.Logger
}

// NewHandler creates a lectures handler. media and info may be nil: uploads and
// media URLs then answer 503, and YouTube titles fall back to the video id.
func NewHandler(store Store, pipeline Pipeline, media storage.MediaStore, info youtube.MetadataSource, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		store:     store,
		pipeline:  pipeline,
		media:     media,
		info:      info,
		urlExpiry: 15 * time.Minute,
		logger:    logger,
	}
}

// SetPDFOptions sets the font used by PDF exports.
func (h *Handler) SetPDFOptions(opts export.PDFOptions) { h.pdf = opts }

// SetURLExpiry sets the lifetime of media download URLs.
func (h *Handler) SetURLExpiry(d time.Duration) {
	if d > 0 {
		h.urlExpiry = d
	}
}

// ParseMode validates a generator mode. Empty means fallback.
func ParseMode(s, fallback string) (string, error) {
	switch m := strings.ToLower(strings.TrimSpace(s)); m {
	case "":
		return fallback, nil
	case models.ModeCloud, models.ModeLocal:
		return m, nil
	}
	return "", errors.New("mode must be cloud or local")
}

// Create handles POST /lectures.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	input := req.VideoID
	if input == "" {
		input = req.URL
	}
	videoID, err := youtube.VideoID(input)
	if err != nil {
		response.BadRequest(c, "invalid YouTube URL or video id")
		return
	}
	mode, err := ParseMode(req.Mode, models.ModeCloud)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	strategy, err := acquisition.ParseStrategy(req.Strategy)
	if err != nil {
		response.BadRequest(c, "strategy must be auto, captions or speech")
		return
	}
	if (req.StartTime != nil && *req.StartTime < 0) || (req.EndTime != nil && *req.EndTime < 0) {
		response.BadRequest(c, "start_time and end_time must not be negative")
		return
	}

	l := &models.Lecture{
		OwnerID:    middleware.UserID(c),
		Title:      strings.TrimSpace(req.Title),
		SourceType: models.SourceYouTube,
		VideoID:    videoID,
		StartTime:  req.StartTime,
		EndTime:    req.EndTime,
		Mode:       mode,
		Status:     models.LectureStatusProcessing,
	}
	h.describe(c.Request.Context(), l)

	opts := StartOptions{
		Strategy:   strategy,
		Flashcards: req.Flashcards,
		Options: acquisition.CanonicalOptions(acquisition.TranscribeOptions{
			ModelSize: req.ModelSize,
			Language:  req.Language,
			Device:    req.Device,
		}),
	}
	h.createAndStart(c, l, opts)
}

// describe fills title, thumbnail and duration from video metadata.
func (h *Handler) describe(ctx context.Context, l *models.Lecture) {
	info := youtube.FallbackInfo(l.VideoID)
	if h.info != nil {
		fetched, err := h.info.Fetch(ctx, l.VideoID)
		if err != nil {
			h.logger.Warn("video info unavailable", zap.String("video_id", l.VideoID), zap.Error(err))
		} else {
			info = fetched
		}
	}
	if l.Title == "" {
		l.Title = info.Title
	}
	l.ThumbnailURL = info.ThumbnailURL
	l.Duration = info.Duration
}

func (h *Handler) createAndStart(c *gin.Context, l *models.Lecture, opts StartOptions) {
	ctx := c.Request.Context()
	l.Progress = 0
	if err := h.store.Create(ctx, l); err != nil {
		h.logger.Error("create lecture failed", zap.Error(err))
		if l.MediaKey != "" && h.media != nil {
			if err := h.media.Delete(context.WithoutCancel(ctx), l.MediaKey); err != nil {
				h.logger.Warn("remove orphaned upload", zap.Error(err), zap.String("key", l.MediaKey))
			}
		}
		response.Internal(c, "failed to create lecture")
		return
	}
	if err := h.pipeline.Start(ctx, l, opts); err != nil {
		h.logger.Error("queue lecture failed", zap.Error(err), zap.String("lecture_id", l.ID.String()))
		err = h.store.Update(context.WithoutCancel(ctx), l.ID, Patch{
			Status: String(models.LectureStatusFailed),
			Error:  String("Failed to queue processing"),
		})
		if err != nil {
			h.logger.Error("mark lecture failed", zap.Error(err), zap.String("lecture_id", l.ID.String()))
		}
		response.Internal(c, "failed to start processing")
		return
	}
	response.Created(c, l)
}

// Upload handles POST /lectures/upload (multipart field "audio").
func (h *Handler) Upload(c *gin.Context) {
	if h.media == nil {
		response.ServiceUnavailable(c, "media storage not configured")
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, storage.MaxMediaFileSize+(1<<20))
	file, err := c.FormFile("audio")
	if err != nil {
		response.BadRequest(c, "No audio file provided")
		return
	}
	contentType := file.Header.Get("Content-Type")
	if err := storage.ValidateMedia(contentType, file.Size); err != nil {
		switch {
		case errors.Is(err, storage.ErrFileTooLarge):
			response.Error(c, http.StatusBadRequest, "File too large", "Maximum file size is 500MB")
		default:
			response.Error(c, http.StatusBadRequest, "Unsupported file type", "Upload an audio or video file")
		}
		return
	}
	mode, err := ParseMode(c.PostForm("mode"), models.ModeLocal)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	flashcards, _ := strconv.ParseBool(c.DefaultPostForm("flashcards", "false"))

	ownerID := middleware.UserID(c)
	l := &models.Lecture{
		ID:         uuid.New(),
		OwnerID:    ownerID,
		Title:      strings.TrimSpace(c.PostForm("title")),
		SourceType: models.SourceUpload,
		Mode:       mode,
		Status:     models.LectureStatusProcessing,
	}
	if l.Title == "" {
		l.Title = strings.TrimSuffix(filepath.Base(file.Filename), filepath.Ext(file.Filename))
	}
	l.MediaKey = storage.UploadKey(ownerID.String(), l.ID.String(), contentType, file.Filename)

	src, err := file.Open()
	if err != nil {
		response.BadRequest(c, "could not read uploaded file")
		return
	}
	defer src.Close()
	if err := h.media.Put(c.Request.Context(), l.MediaKey, contentType, src, file.Size); err != nil {
		h.logger.Error("store upload failed", zap.Error(err), zap.String("key", l.MediaKey))
		response.Internal(c, "failed to store uploaded file")
		return
	}

	opts := StartOptions{
		Strategy:   acquisition.StrategyAuto,
		Flashcards: flashcards,
		Options: acquisition.CanonicalOptions(acquisition.TranscribeOptions{
			ModelSize: c.PostForm("model_size"),
			Language:  c.PostForm("language"),
			Device:    c.PostForm("device"),
		}),
	}
	h.createAndStart(c, l, opts)
}

// List handles GET /lectures.
func (h *Handler) List(c *gin.Context) {
	list, err := h.store.List(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		h.logger.Error("list lectures failed", zap.Error(err))
		response.Internal(c, "failed to list lectures")
		return
	}
	response.OK(c, list)
}

// load resolves :id to a lecture the caller may see. It writes the error response itself.
func (h *Handler) load(c *gin.Context) (*models.Lecture, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid lecture id")
		return nil, false
	}
	l, err := h.store.Get(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("get lecture failed", zap.Error(err), zap.String("lecture_id", id.String()))
		response.Internal(c, "failed to load lecture")
		return nil, false
	}
	if l == nil || (l.OwnerID != middleware.UserID(c) && !middleware.IsAdmin(c)) {
		response.NotFound(c, "lecture not found")
		return nil, false
	}
	return l, true
}

// Get handles GET /lectures/:id.
func (h *Handler) Get(c *gin.Context) {
	l, ok := h.load(c)
	if !ok {
		return
	}
	response.OK(c, l)
}

// Delete handles DELETE /lectures/:id. A running pipeline is stopped first.
func (h *Handler) Delete(c *gin.Context) {
	l, ok := h.load(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if l.Status == models.LectureStatusProcessing {
		if err := h.pipeline.Stop(ctx, l.ID); err != nil && !errors.Is(err, ErrNotProcessing) && !errors.Is(err, ErrNotFound) {
			h.logger.Warn("stop before delete failed", zap.Error(err), zap.String("lecture_id", l.ID.String()))
		}
	}
	if err := h.store.Delete(ctx, l.ID); err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "lecture not found")
			return
		}
		h.logger.Error("delete lecture failed", zap.Error(err), zap.String("lecture_id", l.ID.String()))
		response.Internal(c, "failed to delete lecture")
		return
	}
	if l.MediaKey != "" && h.media != nil {
		if err := h.media.Delete(ctx, l.MediaKey); err != nil {
			h.logger.Warn("delete media failed", zap.Error(err), zap.String("key", l.MediaKey))
		}
	}
	response.NoContent(c)
}

// Stop handles POST /lectures/:id/stop.
func (h *Handler) Stop(c *gin.Context) {
	l, ok := h.load(c)
	if !ok {
		return
	}
	if err := h.pipeline.Stop(c.Request.Context(), l.ID); err != nil {
		switch {
		case errors.Is(err, ErrNotProcessing):
			response.Conflict(c, "lecture is not processing")
		case errors.Is(err, ErrNotFound):
			response.NotFound(c, "lecture not found")
		default:
			h.logger.Error("stop lecture failed", zap.Error(err), zap.String("lecture_id", l.ID.String()))
			response.Internal(c, "failed to stop lecture")
		}
		return
	}
	response.OK(c, gin.H{"stopped": true})
}

// ReRun handles POST /lectures/:id/rerun.
func (h *Handler) ReRun(c *gin.Context) {
	l, ok := h.load(c)
	if !ok {
		return
	}
	var req ReRunRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "invalid request: "+err.Error())
			return
		}
	}
	mode, err := ParseMode(req.Mode, "")
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if err := h.pipeline.ReRun(c.Request.Context(), l.ID, mode, req.Flashcards); err != nil {
		switch {
		case errors.Is(err, ErrTranscriptTooShort):
			response.BadRequest(c, "Transcript is too short to re-run")
		case errors.Is(err, ErrNotRerunnable), errors.Is(err, ErrStatusConflict):
			response.Conflict(c, "lecture is still processing")
		case errors.Is(err, ErrNotFound):
			response.NotFound(c, "lecture not found")
		default:
			h.logger.Error("rerun lecture failed", zap.Error(err), zap.String("lecture_id", l.ID.String()))
			response.Internal(c, "failed to re-run lecture")
		}
		return
	}
	response.OK(c, gin.H{"lecture_id": l.ID, "status": models.LectureStatusProcessing})
}

// MediaURL handles GET /lectures/:id/media-url.
func (h *Handler) MediaURL(c *gin.Context) {
	l, ok := h.load(c)
	if !ok {
		return
	}
	if l.MediaKey == "" {
		response.NotFound(c, "lecture has no uploaded media")
		return
	}
	if h.media == nil {
		response.ServiceUnavailable(c, "media storage not configured")
		return
	}
	url, err := h.media.DownloadURL(c.Request.Context(), l.MediaKey, h.urlExpiry)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			response.NotFound(c, "media not found")
			return
		}
		h.logger.Error("media url failed", zap.Error(err), zap.String("lecture_id", l.ID.String()))
		response.Internal(c, "failed to generate download URL")
		return
	}
	response.OK(c, gin.H{"download_url": url, "expires_in": int(h.urlExpiry.Seconds())})
}

// ExportPDF handles GET /lectures/:id/export/pdf.
func (h *Handler) ExportPDF(c *gin.Context) {
	l, ok := h.load(c)
	if !ok {
		return
	}
	if l.Summary == "" && len(l.Questions) == 0 && len(l.Flashcards) == 0 {
		response.Conflict(c, "lecture has no generated content yet")
		return
	}
	var buf bytes.Buffer
	if err := export.PDF(&buf, l, h.pdf); err != nil {
		h.logger.Error("render pdf failed", zap.Error(err), zap.String("lecture_id", l.ID.String()))
		response.Internal(c, "failed to render PDF")
		return
	}
	pages, err := export.PageCount(buf.Bytes())
	if err != nil {
		h.logger.Error("rendered pdf is invalid", zap.Error(err), zap.String("lecture_id", l.ID.String()))
		response.Internal(c, "failed to render PDF")
		return
	}
	c.Header("Content-Disposition", export.ContentDisposition(l.Title, ".pdf"))
	c.Header("X-Page-Count", strconv.Itoa(pages))
	c.Data(http.StatusOK, export.MIMEPDF, buf.Bytes())
}

// ExportPPTX handles GET /lectures/:id/export/pptx?theme=&color=.
func (h *Handler) ExportPPTX(c *gin.Context) {
	l, ok := h.load(c)
	if !ok {
		return
	}
	if len(l.Slides) == 0 {
		response.Conflict(c, "lecture has no slides yet")
		return
	}
	deck := export.Deck{
		Title:  l.Title,
		Arabic: generate.IsArabic(l.Title) || generate.IsArabic(l.Transcript),
		Slides: l.Slides,
	}
	var buf bytes.Buffer
	if err := export.WritePPTX(&buf, deck, export.ResolveTheme(c.Query("theme"), c.Query("color"))); err != nil {
		h.logger.Error("render pptx failed", zap.Error(err), zap.String("lecture_id", l.ID.String()))
		response.Internal(c, "failed to generate PowerPoint")
		return
	}
	c.Header("Content-Disposition", export.ContentDisposition(l.Title, "_slides.pptx"))
	c.Data(http.StatusOK, export.MIMEPPTX, buf.Bytes())
}

// ExportDOCX handles GET /lectures/:id/export/docx.
func (h *Handler) ExportDOCX(c *gin.Context) {
	l, ok := h.load(c)
	if !ok {
		return
	}
	if l.Transcript == "" && l.Summary == "" {
		response.Conflict(c, "lecture has no transcript yet")
		return
	}
	var buf bytes.Buffer
	if err := export.DOCX(&buf, l); err != nil {
		h.logger.Error("render docx failed", zap.Error(err), zap.String("lecture_id", l.ID.String()))
		response.Internal(c, "failed to render document")
		return
	}
	c.Header("Content-Disposition", export.ContentDisposition(l.Title, ".docx"))
	c.Data(http.StatusOK, export.MIMEDOCX, buf.Bytes())
}
