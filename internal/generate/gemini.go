package generate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/lecturemate/backend/internal/models"
)

// DefaultGeminiModel is the hosted model used when none is configured.
const DefaultGeminiModel = "gemini-2.5-flash"

const (
	introWindow   = 12000
	summaryWindow = 20000
	contentWindow = 30000
	minAISummary  = 100
)

type generateFunc func(ctx context.Context, apiKey, model, prompt string, cfg *genai.GenerateContentConfig) (string, error)

// Gemini is the hosted-model backend. It rotates through API keys on rate limits.
type Gemini struct {
	apiKeys []string
	model   string
	logger  *zap.Logger
	call    generateFunc

	mu         sync.Mutex
	currentKey int
}

// NewGemini creates a Gemini backend. It returns nil when no API key is given.
func NewGemini(apiKeys []string, model string, logger *zap.Logger) *Gemini {
	if len(apiKeys) == 0 {
		return nil
	}
	if model == "" {
		model = DefaultGeminiModel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gemini{apiKeys: apiKeys, model: model, logger: logger, call: callGenAI}
}

func (g *Gemini) Name() string { return "gemini" }

func callGenAI(ctx context.Context, apiKey, model, prompt string, cfg *genai.GenerateContentConfig) (string, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return "", fmt.Errorf("create client: %w", err)
	}
	result, err := client.Models.GenerateContent(ctx, model, genai.Text(prompt), cfg)
	if err != nil {
		return "", err
	}
	if result == nil || len(result.Candidates) == 0 || result.Candidates[0].Content == nil {
		return "", fmt.Errorf("empty response from Gemini")
	}
	var text strings.Builder
	for _, part := range result.Candidates[0].Content.Parts {
		if part.Text != "" {
			text.WriteString(part.Text)
		}
	}
	return strings.TrimSpace(text.String()), nil
}

func isRateLimit(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "429") || strings.Contains(msg, "quota") || strings.Contains(msg, "RESOURCE_EXHAUSTED")
}

// generate sends prompt, moving to the next key on 429 / quota errors.
func (g *Gemini) generate(ctx context.Context, prompt string, cfg *genai.GenerateContentConfig) (string, error) {
	var lastErr error
	for range g.apiKeys {
		g.mu.Lock()
		idx := g.currentKey
		key := g.apiKeys[idx]
		g.mu.Unlock()

		text, err := g.call(ctx, key, g.model, prompt, cfg)
		if err == nil {
			return text, nil
		}
		if !isRateLimit(err) {
			return "", fmt.Errorf("generate content: %w", err)
		}
		g.logger.Warn("gemini key rate limited, rotating", zap.Int("key", idx+1))
		g.rotateKey(idx)
		lastErr = err
	}
	return "", fmt.Errorf("%w: all API keys exhausted: %v", ErrRateLimited, lastErr)
}

func (g *Gemini) rotateKey(from int) {
	g.mu.Lock()
	if g.currentKey == from {
		g.currentKey = (g.currentKey + 1) % len(g.apiKeys)
	}
	g.mu.Unlock()
}

// Summary writes introduction, summary and key point sections and joins them under headings.
func (g *Gemini) Summary(ctx context.Context, transcript string) (string, error) {
	arabic := IsArabic(transcript)
	lang := Language(transcript)
	headIntro, headSummary, headPoints := "Introduction", "Summary", "Key Points"
	if arabic {
		headIntro, headSummary, headPoints = "المقدمة", "الملخص", "أهم النقاط"
	}

	intro, err := g.generate(ctx, fmt.Sprintf(introPrompt, lang, headIntro)+"\n"+truncate(transcript, introWindow), nil)
	if err != nil {
		return "", err
	}
	body, err := g.generate(ctx, fmt.Sprintf(summaryPrompt, lang, headSummary)+"\n"+truncate(transcript, summaryWindow), nil)
	if err != nil {
		return "", err
	}
	pointsRaw, err := g.generate(ctx, fmt.Sprintf(pointsPrompt, lang, headPoints)+"\n"+truncate(transcript, summaryWindow), nil)
	if err != nil {
		return "", err
	}

	var parts []string
	if intro = strings.TrimSpace(intro); intro != "" {
		parts = append(parts, headIntro, intro)
	}
	if body = strings.TrimSpace(body); body != "" {
		parts = append(parts, "", headSummary, body)
	}
	if points := keyPointLines(pointsRaw); len(points) > 0 {
		bullets := make([]string, len(points))
		for i, p := range points {
			bullets[i] = "- " + p
		}
		parts = append(parts, "", headPoints, strings.Join(bullets, "\n"))
	}
	summary := strings.TrimSpace(strings.Join(parts, "\n\n"))
	if CharCount(summary) <= minAISummary {
		return "", fmt.Errorf("gemini summary too short (%d characters)", CharCount(summary))
	}
	return summary, nil
}

func (g *Gemini) Quiz(ctx context.Context, transcript string) ([]models.Question, error) {
	prompt := fmt.Sprintf(quizPrompt, Language(transcript)) + "\n" + truncate(transcript, contentWindow)
	text, err := g.generate(ctx, prompt, nil)
	if err != nil {
		return nil, err
	}
	return ParseQuestions([]byte(text))
}

func (g *Gemini) Flashcards(ctx context.Context, transcript string) ([]models.Flashcard, error) {
	prompt := fmt.Sprintf(flashcardsPrompt, Language(transcript)) + "\n" + truncate(transcript, contentWindow)
	text, err := g.generate(ctx, prompt, nil)
	if err != nil {
		return nil, err
	}
	return ParseFlashcards([]byte(text))
}

func (g *Gemini) Slides(ctx context.Context, transcript, summary string) (*Deck, error) {
	arabic := IsArabic(transcript)
	source := transcript
	if strings.TrimSpace(source) == "" {
		source = summary
	}
	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr[float32](0.3),
		TopP:            genai.Ptr[float32](0.9),
		MaxOutputTokens: 4096,
	}
	text, err := g.generate(ctx, fmt.Sprintf(slidesPrompt, Language(source))+"\n"+truncate(source, contentWindow), cfg)
	if err != nil {
		return nil, err
	}
	return ParseDeck([]byte(text), arabic)
}

// SummarizeText returns a one or two paragraph summary and its key points.
func (g *Gemini) SummarizeText(ctx context.Context, text string) (*TextSummary, error) {
	raw, err := g.generate(ctx, textSummaryPrompt+"\n"+text, nil)
	if err != nil {
		return nil, err
	}
	var out TextSummary
	if err := json.Unmarshal([]byte(stripCodeFences(raw)), &out); err != nil {
		return nil, fmt.Errorf("parse summary: %w", err)
	}
	if strings.TrimSpace(out.Summary) == "" || out.KeyPoints == nil {
		return nil, errors.New("invalid summary format from Gemini")
	}
	return &out, nil
}

const introPrompt = `You are an expert academic lecturer. Write ONLY the introduction section for this lecture transcript.
Language: %s. Do not switch languages. Length: 2-4 sentences.
Say what the main topic is, why it matters and which question the lecture answers.
Do not include a heading like "%s", only the introduction text.
Transcript:`

const summaryPrompt = `You are an expert academic lecturer. Write ONLY the main summary section for this lecture transcript.
Language: %s. Do not switch languages. Use 2-4 short paragraphs that follow the order of the lecture.
Do not include a heading like "%s".
Transcript:`

const pointsPrompt = `List the most important points of this lecture transcript.
Language: %s. One point per line, each line starting with "- ". Between 5 and 10 points.
Do not include a heading like "%s".
Transcript:`

const quizPrompt = `Create a multiple-choice quiz from this lecture transcript.
Language: %s. Output valid JSON only, no markdown:
{"questions":[{"text":"...","options":["...","...","...","..."],"correctIndex":0,"type":"multiple-choice"}]}
Write 5-10 questions with exactly four options each. correctIndex is 0-based.
Transcript:`

const flashcardsPrompt = `Create study flashcards from this lecture transcript.
Language: %s. Output valid JSON only, no markdown:
{"flashcards":[{"term":"...","definition":"..."}]}
Write 8-15 cards covering the key terms and concepts.
Transcript:`

const slidesPrompt = `You are an expert presentation designer. Create a structured slide deck from this lecture transcript.
Language: %s. Output valid JSON only, no markdown:
{"lectureTitle":"...","slides":[{"title":"...","bullets":["..."],"notes":"optional speaker notes"}]}
Use 8-14 slides. The first slide introduces the topic and the last one lists the key takeaways.
Every slide has a descriptive title and 3-6 concise bullets.
Lecture transcript:`

const textSummaryPrompt = `Summarize the following text in one or two paragraphs and extract the key points.
Use the same language as the text. Output valid JSON only:
{"summary":"...","key_points":["...","..."]}
Text:`
