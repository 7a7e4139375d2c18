package generate

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/lecturemate/backend/internal/models"
)

// ErrNoValidOutput is returned when model output parses but contains nothing usable.
var ErrNoValidOutput = errors.New("no valid items in model output")

type rawQuestion struct {
	Text         string   `json:"text"`
	Options      []string `json:"options"`
	CorrectIndex any      `json:"correctIndex"`
	CorrectAlt   any      `json:"correct_index"`
	Type         string   `json:"type"`
}

type rawFlashcard struct {
	Term       string `json:"term"`
	Definition string `json:"definition"`
}

type rawSlide struct {
	Title   string   `json:"title"`
	Bullets []string `json:"bullets"`
	Content []string `json:"content"`
	Notes   string   `json:"notes"`
}

// decodeList decodes either a bare JSON array or an object holding the array under key.
func decodeList(raw []byte, key string, out any) error {
	text := stripCodeFences(string(raw))
	if text == "" {
		return fmt.Errorf("empty model output")
	}
	if strings.HasPrefix(text, "[") {
		return json.Unmarshal([]byte(text), out)
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		if s, e := strings.Index(text, "["), strings.LastIndex(text, "]"); s >= 0 && e > s {
			return json.Unmarshal([]byte(text[s:e+1]), out)
		}
		return fmt.Errorf("no JSON in model output")
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text[start:end+1]), &obj); err != nil {
		return err
	}
	list, ok := obj[key]
	if !ok {
		return fmt.Errorf("model output has no %q field", key)
	}
	return json.Unmarshal(list, out)
}

func numericIndex(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case json.Number:
		i, err := strconv.Atoi(n.String())
		return i, err == nil
	default:
		return 0, false
	}
}

// ParseQuestions validates model quiz output. Questions need text, at least two
// options and a numeric correct index. Options are capped at four, the index is
// clamped into range and ids are renumbered from 1.
func ParseQuestions(raw []byte) ([]models.Question, error) {
	var items []rawQuestion
	if err := decodeList(raw, "questions", &items); err != nil {
		return nil, fmt.Errorf("parse questions: %w", err)
	}
	out := make([]models.Question, 0, len(items))
	for _, q := range items {
		text := strings.TrimSpace(q.Text)
		if text == "" || len(q.Options) < 2 {
			continue
		}
		idx, ok := numericIndex(q.CorrectIndex)
		if !ok {
			if idx, ok = numericIndex(q.CorrectAlt); !ok {
				continue
			}
		}
		opts := q.Options
		if len(opts) > 4 {
			opts = opts[:4]
		}
		options := make([]string, len(opts))
		for i, o := range opts {
			options[i] = strings.TrimSpace(o)
		}
		if idx > len(options)-1 {
			idx = len(options) - 1
		}
		if idx < 0 {
			idx = 0
		}
		typ := q.Type
		if typ == "" {
			typ = models.QuestionMultipleChoice
		}
		out = append(out, models.Question{
			ID:           len(out) + 1,
			Text:         text,
			Options:      options,
			CorrectIndex: idx,
			Type:         typ,
		})
	}
	if len(out) == 0 {
		return nil, ErrNoValidOutput
	}
	return out, nil
}

// ParseFlashcards keeps cards that have both a term and a definition.
func ParseFlashcards(raw []byte) ([]models.Flashcard, error) {
	var items []rawFlashcard
	if err := decodeList(raw, "flashcards", &items); err != nil {
		return nil, fmt.Errorf("parse flashcards: %w", err)
	}
	out := make([]models.Flashcard, 0, len(items))
	for _, f := range items {
		term, def := strings.TrimSpace(f.Term), strings.TrimSpace(f.Definition)
		if term == "" || def == "" {
			continue
		}
		out = append(out, models.Flashcard{ID: len(out) + 1, Term: term, Definition: def})
	}
	if len(out) == 0 {
		return nil, ErrNoValidOutput
	}
	return out, nil
}

// ParseDeck validates model slide output, filling missing titles and empty bullet lists.
func ParseDeck(raw []byte, arabic bool) (*Deck, error) {
	text := stripCodeFences(string(raw))
	start, end := strings.Index(text, "{"), strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("parse slides: no JSON object in model output")
	}
	var payload struct {
		LectureTitle string     `json:"lectureTitle"`
		Slides       []rawSlide `json:"slides"`
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), &payload); err != nil {
		return nil, fmt.Errorf("parse slides: %w", err)
	}
	if len(payload.Slides) == 0 {
		return nil, ErrNoValidOutput
	}
	deck := &Deck{LectureTitle: strings.TrimSpace(payload.LectureTitle), Language: "English"}
	if arabic {
		deck.Language = "Arabic"
	}
	if deck.LectureTitle == "" {
		deck.LectureTitle = DefaultDeckTitle(arabic)
	}
	for i, s := range payload.Slides {
		bullets := s.Bullets
		if len(bullets) == 0 {
			bullets = s.Content
		}
		deck.Slides = append(deck.Slides, NormalizeSlide(i, s.Title, bullets, s.Notes, arabic))
	}
	return deck, nil
}

// NormalizeSlide builds slide i (0-based) with placeholder title and bullets when missing.
func NormalizeSlide(i int, title string, bullets []string, notes string, arabic bool) models.Slide {
	title = strings.TrimSpace(title)
	if title == "" {
		if arabic {
			title = fmt.Sprintf("شريحة %d", i+1)
		} else {
			title = fmt.Sprintf("Slide %d", i+1)
		}
	}
	kept := make([]string, 0, len(bullets))
	for _, b := range bullets {
		if b = strings.TrimSpace(b); b != "" {
			kept = append(kept, b)
		}
	}
	if len(kept) == 0 {
		if arabic {
			kept = []string{"محتوى الشريحة"}
		} else {
			kept = []string{"Slide content"}
		}
	}
	return models.Slide{ID: i + 1, Title: title, Bullets: kept, Notes: strings.TrimSpace(notes)}
}

// DefaultDeckTitle is used when the model does not name the lecture.
func DefaultDeckTitle(arabic bool) string {
	if arabic {
		return "شرائح المحاضرة"
	}
	return "Lecture Slides"
}
