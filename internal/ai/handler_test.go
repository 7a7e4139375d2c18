package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lecturemate/backend/internal/acquisition"
	"github.com/lecturemate/backend/internal/generate"
	"github.com/lecturemate/backend/internal/models"
	"github.com/lecturemate/backend/pkg/response"
)

type fakeGen struct {
	calls     []string
	modes     []string
	err       error
	summary   *generate.TextSummary
	summaryEr error
}

func (g *fakeGen) record(op, mode string) {
	g.calls = append(g.calls, op)
	g.modes = append(g.modes, mode)
}

func (g *fakeGen) Summary(ctx context.Context, transcript, mode string) (string, error) {
	g.record("summary", mode)
	return "a summary", g.err
}

func (g *fakeGen) Quiz(ctx context.Context, transcript, mode string) ([]models.Question, error) {
	g.record("quiz", mode)
	return nil, g.err
}

func (g *fakeGen) Flashcards(ctx context.Context, transcript, mode string) ([]models.Flashcard, error) {
	g.record("flashcards", mode)
	return []models.Flashcard{{ID: 1, Term: "Go", Definition: "A language"}}, g.err
}

func (g *fakeGen) Slides(ctx context.Context, transcript, summary, mode string) (*generate.Deck, error) {
	g.record("slides", mode)
	return &generate.Deck{LectureTitle: "Deck", Slides: []models.Slide{{ID: 1, Title: "Section 1", Bullets: []string{"x"}}}}, g.err
}

func (g *fakeGen) SummarizeText(ctx context.Context, text string) (*generate.TextSummary, error) {
	g.record("summarize", "")
	return g.summary, g.summaryEr
}

type fakeTranscriber struct {
	text  string
	delay time.Duration
	seen  string
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, path string, opts acquisition.TranscribeOptions) (*acquisition.Result, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	f.seen = string(raw)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return acquisition.NewResult(f.text, "en"), nil
}

func newRouter(h *Handler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/ai/summary", h.Summary)
	r.POST("/ai/quiz", h.Quiz)
	r.POST("/ai/flashcards", h.Flashcards)
	r.POST("/ai/slides", h.Slides)
	r.POST("/ai/slides/pptx", h.SlidesPPTX)
	r.POST("/summarize", h.Summarize)
	r.POST("/audio/transcribe", h.TranscribeAudio)
	return r
}

func post(r http.Handler, path string, body any) *httptest.ResponseRecorder {
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestLengthThresholds(t *testing.T) {
	gen := &fakeGen{}
	r := newRouter(NewHandler(gen, nil, t.TempDir(), nil))

	short := strings.Repeat("a", 99)
	medium := strings.Repeat("a", 150)
	long := strings.Repeat("a", 250)

	tests := []struct {
		path       string
		transcript string
		code       int
	}{
		{"/ai/summary", short, http.StatusBadRequest},
		{"/ai/summary", medium, http.StatusOK},
		{"/ai/quiz", medium, http.StatusBadRequest},
		{"/ai/quiz", long, http.StatusOK},
		{"/ai/flashcards", medium, http.StatusBadRequest},
		{"/ai/flashcards", long, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.path+"/"+http.StatusText(tt.code), func(t *testing.T) {
			w := post(r, tt.path, TranscriptRequest{Transcript: tt.transcript})
			assert.Equal(t, tt.code, w.Code, w.Body.String())
		})
	}
	assert.Equal(t, []string{"summary", "quiz", "flashcards"}, gen.calls, "rejected requests never reach the generator")
}

func TestQuizEmptyListAndMode(t *testing.T) {
	gen := &fakeGen{}
	r := newRouter(NewHandler(gen, nil, t.TempDir(), nil))

	w := post(r, "/ai/quiz", TranscriptRequest{Transcript: strings.Repeat("b", 300), Mode: "local"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"data":{"questions":[]}}`, w.Body.String())
	assert.Equal(t, []string{models.ModeLocal}, gen.modes)

	w = post(r, "/ai/quiz", TranscriptRequest{Transcript: strings.Repeat("b", 300), Mode: "gpu"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGeneratorErrors(t *testing.T) {
	gen := &fakeGen{err: generate.ErrRateLimited}
	r := newRouter(NewHandler(gen, nil, t.TempDir(), nil))
	w := post(r, "/ai/summary", TranscriptRequest{Transcript: strings.Repeat("c", 120)})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	gen.err = errors.New("context canceled")
	w = post(r, "/ai/slides", TranscriptRequest{Summary: "something"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestSlides(t *testing.T) {
	r := newRouter(NewHandler(&fakeGen{}, nil, t.TempDir(), nil))
	w := post(r, "/ai/slides", TranscriptRequest{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = post(r, "/ai/slides", TranscriptRequest{Summary: "Intro paragraph"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Section 1")
}

func TestSlidesPPTX(t *testing.T) {
	r := newRouter(NewHandler(&fakeGen{}, nil, t.TempDir(), nil))

	w := post(r, "/ai/slides/pptx", PPTXRequest{Theme: "dark"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = post(r, "/ai/slides/pptx", PPTXRequest{
		Slides:       []models.Slide{{ID: 1, Title: "One", Bullets: []string{"a"}}},
		Theme:        "modern",
		LectureTitle: "Week 3: Pointers",
		CustomColor:  "#123456",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, `attachment; filename="Week_3_Pointers_slides.pptx"`, w.Header().Get("Content-Disposition"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("PK")))
}

func TestSummarize(t *testing.T) {
	gen := &fakeGen{summaryEr: generate.ErrNotConfigured}
	r := newRouter(NewHandler(gen, nil, t.TempDir(), nil))

	w := post(r, "/summarize", SummarizeRequest{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = post(r, "/summarize", SummarizeRequest{Text: "hello"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	gen.summaryEr = generate.ErrRateLimited
	w = post(r, "/summarize", SummarizeRequest{Text: "hello"})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	gen.summaryEr = nil
	gen.summary = &generate.TextSummary{Summary: "short", KeyPoints: []string{"k"}}
	w = post(r, "/summarize", SummarizeRequest{Text: "hello"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"data":{"summary":"short","key_points":["k"]}}`, w.Body.String())
}

func audioRequest(t *testing.T, contentType string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("language", "auto"))
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", `form-data; name="audio"; filename="clip.wav"`)
	hdr.Set("Content-Type", contentType)
	part, err := mw.CreatePart(hdr)
	require.NoError(t, err)
	_, _ = part.Write([]byte("RIFF"))
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/audio/transcribe", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestTranscribeAudio(t *testing.T) {
	tr := &fakeTranscriber{text: "hello   world"}
	r := newRouter(NewHandler(&fakeGen{}, tr, t.TempDir(), nil))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, audioRequest(t, "audio/wav"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "RIFF", tr.seen)
	assert.Contains(t, w.Body.String(), `"transcript":"hello world"`)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, audioRequest(t, "text/plain"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTranscribeAudioKeepAlive(t *testing.T) {
	tr := &fakeTranscriber{text: "slow result", delay: 60 * time.Millisecond}
	h := NewHandler(&fakeGen{}, tr, t.TempDir(), nil)
	h.SetKeepAlive(response.KeepAlive{Delay: 10 * time.Millisecond, Interval: 10 * time.Millisecond, Deadline: time.Second})
	r := newRouter(h)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, audioRequest(t, "audio/wav"))
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.True(t, strings.HasPrefix(body, "\n"))
	var env response.Body
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(body)), &env))
	assert.True(t, env.Success)
}

func TestTranscribeAudioNotConfigured(t *testing.T) {
	r := newRouter(NewHandler(&fakeGen{}, nil, t.TempDir(), nil))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, audioRequest(t, "audio/wav"))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
