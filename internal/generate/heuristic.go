package generate

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/lecturemate/backend/internal/models"
)

// Heuristic builds content from the transcript text alone. It never fails.
type Heuristic struct{}

// NewHeuristic returns the text-only backend.
func NewHeuristic() *Heuristic { return &Heuristic{} }

func (h *Heuristic) Name() string { return "heuristic" }

// Summary groups the first twelve long sentences into paragraphs of three.
func (h *Heuristic) Summary(ctx context.Context, transcript string) (string, error) {
	sents := sentences(transcript, 30, 0)
	if len(sents) > 12 {
		sents = sents[:12]
	}
	var paragraphs []string
	for i := 0; i < len(sents); i += 3 {
		end := i + 3
		if end > len(sents) {
			end = len(sents)
		}
		paragraphs = append(paragraphs, strings.Join(sents[i:end], ". ")+".")
	}
	return strings.Join(paragraphs, "\n\n"), nil
}

// Quiz returns up to two fixed comprehension questions.
func (h *Heuristic) Quiz(ctx context.Context, transcript string) ([]models.Question, error) {
	sents := sentences(transcript, 30, 200)
	questions := []models.Question{}
	if len(sents) == 0 {
		return questions, nil
	}
	arabic := IsArabic(transcript)

	main := models.Question{
		ID:           1,
		Text:         "What is the main topic discussed in this lecture?",
		Options:      []string{"The topic is clearly explained in the transcript", "Multiple topics are covered", "The topic requires further analysis", "The topic is not specified"},
		CorrectIndex: 0,
		Type:         models.QuestionMultipleChoice,
	}
	if arabic {
		main.Text = "ما هو الموضوع الرئيسي الذي تمت مناقشته في هذه المحاضرة؟"
		main.Options = []string{"الموضوع موضح بوضوح في النص", "تم تغطية مواضيع متعددة", "الموضوع يحتاج إلى تحليل إضافي", "الموضوع غير محدد"}
	}
	questions = append(questions, main)

	if len(sents) > 2 {
		tf := models.Question{
			ID:           2,
			Text:         "The lecture contains detailed explanations of the concepts.",
			Options:      []string{"True", "False"},
			CorrectIndex: 0,
			Type:         models.QuestionTrueFalse,
		}
		if arabic {
			tf.Text = "تحتوي المحاضرة على شرح مفصل للمفاهيم."
			tf.Options = []string{"صحيح", "خطأ"}
		}
		questions = append(questions, tf)
	}
	return questions, nil
}

// Flashcards turns the first five medium-length sentences into cards keyed by their opening words.
func (h *Heuristic) Flashcards(ctx context.Context, transcript string) ([]models.Flashcard, error) {
	sents := sentences(transcript, 20, 150)
	if len(sents) > 5 {
		sents = sents[:5]
	}
	cards := []models.Flashcard{}
	for i, s := range sents {
		words := strings.Fields(s)
		if len(words) <= 3 {
			continue
		}
		cards = append(cards, models.Flashcard{
			ID:         i + 1,
			Term:       strings.Join(words[:3], " "),
			Definition: s,
		})
	}
	return cards, nil
}

// Slides cuts the summary into sections of at most four bullets. Without a summary the
// heuristic summary of the transcript is used.
func (h *Heuristic) Slides(ctx context.Context, transcript, summary string) (*Deck, error) {
	arabic := IsArabic(transcript) || IsArabic(summary)
	source := summary
	if strings.TrimSpace(source) == "" {
		source, _ = h.Summary(ctx, transcript)
	}
	deck := &Deck{LectureTitle: DefaultDeckTitle(arabic), Language: Language(transcript + summary)}
	for _, para := range paragraphBreaks.Split(source, -1) {
		var bullets []string
		for _, s := range slideSentenceEnds.Split(para, -1) {
			s = strings.TrimSpace(s)
			if utf8.RuneCountInString(s) > 20 {
				bullets = append(bullets, s)
			}
			if len(bullets) == 4 {
				break
			}
		}
		if len(bullets) == 0 {
			continue
		}
		n := len(deck.Slides) + 1
		deck.Slides = append(deck.Slides, models.Slide{ID: n, Title: fmt.Sprintf("Section %d", n), Bullets: bullets})
	}
	if len(deck.Slides) == 0 {
		deck.Slides = []models.Slide{NormalizeSlide(0, deck.LectureTitle, nil, "", arabic)}
	}
	return deck, nil
}
