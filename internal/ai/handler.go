// Package ai exposes the content generators and file transcription as stateless HTTP tools.
package ai

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lecturemate/backend/internal/acquisition"
	"github.com/lecturemate/backend/internal/export"
	"github.com/lecturemate/backend/internal/generate"
	"github.com/lecturemate/backend/internal/lectures"
	"github.com/lecturemate/backend/internal/models"
	"github.com/lecturemate/backend/pkg/response"
	"github.com/lecturemate/backend/pkg/storage"
)

// Generator produces lecture content.
type Generator interface {
	Summary(ctx context.Context, transcript, mode string) (string, error)
	Quiz(ctx context.Context, transcript, mode string) ([]models.Question, error)
	Flashcards(ctx context.Context, transcript, mode string) ([]models.Flashcard, error)
	Slides(ctx context.Context, transcript, summary, mode string) (*generate.Deck, error)
	SummarizeText(ctx context.Context, text string) (*generate.TextSummary, error)
}

// TranscriptRequest is the body of the generator endpoints.
type TranscriptRequest struct {
	Transcript string `json:"transcript"`
	Summary    string `json:"summary"`
	Mode       string `json:"mode"`
}

// PPTXRequest is the body for POST /ai/slides/pptx.
type PPTXRequest struct {
	Slides       []models.Slide `json:"slides"`
	Theme        string         `json:"theme"`
	LectureTitle string         `json:"lecture_title"`
	CustomColor  string         `json:"custom_color"`
	Language     string         `json:"language"`
}

// SummarizeRequest is the body for POST /summarize.
type SummarizeRequest struct {
	Text string `json:"text"`
}

// Handler serves /ai/*, /summarize and /audio/transcribe.
type Handler struct {
	gen         Generator
	transcriber acquisition.Transcriber
	tempDir     string
	keepAlive   response.KeepAlive
	logger      *zap.Logger
}

// NewHandler creates the handler. transcriber may be nil, which disables /audio/transcribe.
func NewHandler(gen Generator, transcriber acquisition.Transcriber, tempDir string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{gen: gen, transcriber: transcriber, tempDir: tempDir, keepAlive: response.DefaultKeepAlive, logger: logger}
}

// SetKeepAlive overrides the streaming timings of /audio/transcribe.
func (h *Handler) SetKeepAlive(k response.KeepAlive) { h.keepAlive = k }

func (h *Handler) bind(c *gin.Context, min int, tooShort string) (TranscriptRequest, string, bool) {
	var req TranscriptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return req, "", false
	}
	mode, err := lectures.ParseMode(req.Mode, models.ModeCloud)
	if err != nil {
		response.BadRequest(c, err.Error())
		return req, "", false
	}
	if generate.CharCount(req.Transcript) < min {
		response.BadRequest(c, tooShort)
		return req, "", false
	}
	return req, mode, true
}

func (h *Handler) generatorError(c *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, generate.ErrRateLimited):
		response.TooManyRequests(c, "AI service is rate limited, try again later")
	case errors.Is(err, generate.ErrNotConfigured):
		response.ServiceUnavailable(c, "AI service is not configured")
	default:
		h.logger.Error("generation failed", zap.String("op", op), zap.Error(err))
		response.Internal(c, "Failed to generate "+op)
	}
}

// Summary handles POST /ai/summary.
func (h *Handler) Summary(c *gin.Context) {
	req, mode, ok := h.bind(c, generate.MinSummaryChars, "Transcript is too short to summarize")
	if !ok {
		return
	}
	summary, err := h.gen.Summary(c.Request.Context(), req.Transcript, mode)
	if err != nil {
		h.generatorError(c, "summary", err)
		return
	}
	response.OK(c, gin.H{"summary": summary})
}

// Quiz handles POST /ai/quiz.
func (h *Handler) Quiz(c *gin.Context) {
	req, mode, ok := h.bind(c, generate.MinQuizChars, "Transcript is too short to generate a quiz")
	if !ok {
		return
	}
	questions, err := h.gen.Quiz(c.Request.Context(), req.Transcript, mode)
	if err != nil {
		h.generatorError(c, "quiz", err)
		return
	}
	if questions == nil {
		questions = []models.Question{}
	}
	response.OK(c, gin.H{"questions": questions})
}

// Flashcards handles POST /ai/flashcards.
func (h *Handler) Flashcards(c *gin.Context) {
	req, mode, ok := h.bind(c, generate.MinQuizChars, "Transcript is too short to generate flashcards")
	if !ok {
		return
	}
	cards, err := h.gen.Flashcards(c.Request.Context(), req.Transcript, mode)
	if err != nil {
		h.generatorError(c, "flashcards", err)
		return
	}
	if cards == nil {
		cards = []models.Flashcard{}
	}
	response.OK(c, gin.H{"flashcards": cards})
}

// Slides handles POST /ai/slides.
func (h *Handler) Slides(c *gin.Context) {
	req, mode, ok := h.bind(c, 0, "")
	if !ok {
		return
	}
	if strings.TrimSpace(req.Transcript) == "" && strings.TrimSpace(req.Summary) == "" {
		response.BadRequest(c, "transcript or summary is required")
		return
	}
	deck, err := h.gen.Slides(c.Request.Context(), req.Transcript, req.Summary, mode)
	if err != nil {
		h.generatorError(c, "slides", err)
		return
	}
	response.OK(c, deck)
}

// SlidesPPTX handles POST /ai/slides/pptx.
func (h *Handler) SlidesPPTX(c *gin.Context) {
	var req PPTXRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if len(req.Slides) == 0 {
		response.BadRequest(c, "Invalid slides data")
		return
	}
	title := strings.TrimSpace(req.LectureTitle)
	if title == "" {
		title = "Lecture Slides"
	}
	deck := export.Deck{
		Title:  title,
		Arabic: strings.EqualFold(req.Language, "arabic") || strings.EqualFold(req.Language, "ar") || generate.IsArabic(title),
		Slides: req.Slides,
	}
	var buf bytes.Buffer
	if err := export.WritePPTX(&buf, deck, export.ResolveTheme(req.Theme, req.CustomColor)); err != nil {
		h.logger.Error("render pptx failed", zap.Error(err))
		response.Internal(c, "Failed to generate PowerPoint")
		return
	}
	c.Header("Content-Disposition", export.ContentDisposition(title, "_slides.pptx"))
	c.Data(http.StatusOK, export.MIMEPPTX, buf.Bytes())
}

// Summarize handles POST /summarize.
func (h *Handler) Summarize(c *gin.Context) {
	var req SummarizeRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Text) == "" {
		response.BadRequest(c, "text is required")
		return
	}
	out, err := h.gen.SummarizeText(c.Request.Context(), req.Text)
	if err != nil {
		h.generatorError(c, "summary", err)
		return
	}
	response.OK(c, out)
}

// TranscribeAudio handles POST /audio/transcribe (multipart field "audio").
func (h *Handler) TranscribeAudio(c *gin.Context) {
	if h.transcriber == nil {
		response.ServiceUnavailable(c, "speech recognition is not configured")
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, storage.MaxMediaFileSize+(1<<20))
	file, err := c.FormFile("audio")
	if err != nil {
		response.BadRequest(c, "No audio file provided")
		return
	}
	if err := storage.ValidateMedia(file.Header.Get("Content-Type"), file.Size); err != nil {
		if errors.Is(err, storage.ErrFileTooLarge) {
			response.Error(c, http.StatusBadRequest, "File too large", "Maximum file size is 500MB")
			return
		}
		response.Error(c, http.StatusBadRequest, "Unsupported file type", "Upload an audio or video file")
		return
	}

	dir, err := os.MkdirTemp(h.tempDir, "audio-")
	if err != nil {
		h.logger.Error("create temp dir failed", zap.Error(err))
		response.Internal(c, "Failed to store uploaded file")
		return
	}
	path := filepath.Join(dir, "upload"+strings.ToLower(filepath.Ext(file.Filename)))
	if err := c.SaveUploadedFile(file, path); err != nil {
		os.RemoveAll(dir)
		h.logger.Error("save upload failed", zap.Error(err))
		response.Internal(c, "Failed to store uploaded file")
		return
	}
	opts := acquisition.CanonicalOptions(acquisition.TranscribeOptions{
		ModelSize: c.PostForm("model_size"),
		Language:  c.PostForm("language"),
		Device:    c.PostForm("device"),
	})

	h.keepAlive.Run(c, func(ctx context.Context) (int, response.Body) {
		defer os.RemoveAll(dir)
		res, err := acquisition.TranscribeFile(ctx, h.transcriber, path, opts)
		if err == nil {
			return http.StatusOK, response.Body{Success: true, Data: res}
		}
		var ae *acquisition.Error
		switch {
		case errors.As(err, &ae):
			return http.StatusUnprocessableEntity, response.Body{Error: ae.Message, Details: ae.Details}
		case errors.Is(err, context.DeadlineExceeded):
			return http.StatusGatewayTimeout, response.Body{Error: "Transcription timed out"}
		}
		h.logger.Error("audio transcription failed", zap.Error(err))
		return http.StatusInternalServerError, response.Body{Error: "Failed to transcribe audio"}
	})
}
