// Package acquisition obtains a lecture transcript from YouTube captions, speech
// recognition on downloaded audio, or an uploaded media file.
package acquisition

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/lecturemate/backend/internal/models"
)

// Strategy selects how a YouTube transcript is obtained.
type Strategy string

const (
	StrategyAuto     Strategy = "auto"
	StrategyCaptions Strategy = "captions"
	StrategySpeech   Strategy = "speech"
)

// ParseStrategy maps a request value to a Strategy. Empty means auto.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case "", StrategyAuto:
		return StrategyAuto, nil
	case StrategyCaptions:
		return StrategyCaptions, nil
	case StrategySpeech:
		return StrategySpeech, nil
	}
	return "", fmt.Errorf("unknown strategy %q", s)
}

// TimeRange limits a YouTube transcript to part of the video, in seconds.
type TimeRange struct {
	Start *float64 `json:"start_time,omitempty"`
	End   *float64 `json:"end_time,omitempty"`
}

// Enabled reports whether the range filters anything. A range is disabled when both
// bounds are absent or zero, or when end is not after start.
func (r TimeRange) Enabled() bool {
	start, end := 0.0, 0.0
	if r.Start != nil {
		start = *r.Start
	}
	if r.End != nil {
		end = *r.End
	}
	if start == 0 && end == 0 {
		return false
	}
	if r.End != nil && end <= start {
		return false
	}
	return true
}

// Contains reports whether a segment starting at t falls inside the range.
func (r TimeRange) Contains(t float64) bool {
	if !r.Enabled() {
		return true
	}
	if r.Start != nil && t < *r.Start {
		return false
	}
	if r.End != nil && t >= *r.End {
		return false
	}
	return true
}

// TranscribeOptions are speech recognition settings.
type TranscribeOptions struct {
	ModelSize string `json:"model_size,omitempty"`
	Language  string `json:"language,omitempty"`
	Device    string `json:"device,omitempty"`
}

// Source describes where a lecture transcript comes from.
type Source struct {
	Kind     string
	VideoID  string
	Range    TimeRange
	Strategy Strategy
	// OwnerID scopes the audio cache. Empty disables caching.
	OwnerID  string
	MediaKey string
	Options  TranscribeOptions
}

// Result is an acquired transcript.
type Result struct {
	Transcript string `json:"transcript"`
	WordCount  int    `json:"word_count"`
	Language   string `json:"language"`
}

// NewResult builds a Result with whitespace collapsed and words counted.
func NewResult(text, language string) *Result {
	words := strings.Fields(text)
	if language == "" {
		language = "unknown"
	}
	return &Result{Transcript: strings.Join(words, " "), WordCount: len(words), Language: language}
}

// Error means no transcript could be obtained.
type Error struct {
	Message string
	Details string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Acquirer produces a transcript for a source.
type Acquirer interface {
	Acquire(ctx context.Context, src Source) (*Result, error)
}

// Service dispatches a Source to the matching strategy.
type Service struct {
	captions Acquirer
	speech   Acquirer
	upload   Acquirer
	logger   *zap.Logger
}

// NewService creates the acquisition dispatcher. Any strategy may be nil when not configured.
func NewService(captions, speech, upload Acquirer, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{captions: captions, speech: speech, upload: upload, logger: logger}
}

// Acquire obtains the transcript. For YouTube in auto mode captions are tried first and
// speech recognition is used when they fail.
func (s *Service) Acquire(ctx context.Context, src Source) (*Result, error) {
	switch src.Kind {
	case models.SourceUpload:
		return s.run(ctx, s.upload, "upload", src)
	case models.SourceYouTube, "":
		switch src.Strategy {
		case StrategyCaptions:
			return s.run(ctx, s.captions, "captions", src)
		case StrategySpeech:
			return s.run(ctx, s.speech, "speech", src)
		default:
			res, err := s.run(ctx, s.captions, "captions", src)
			if err == nil || s.speech == nil || ctx.Err() != nil {
				return res, err
			}
			s.logger.Info("captions unavailable, falling back to speech recognition",
				zap.String("video_id", src.VideoID), zap.Error(err))
			return s.run(ctx, s.speech, "speech", src)
		}
	}
	return nil, &Error{Message: fmt.Sprintf("unknown source kind %q", src.Kind)}
}

func (s *Service) run(ctx context.Context, a Acquirer, name string, src Source) (*Result, error) {
	if a == nil {
		return nil, &Error{Message: name + " acquisition is not configured"}
	}
	res, err := a.Acquire(ctx, src)
	if err != nil {
		var ae *Error
		if errors.As(err, &ae) || ctx.Err() != nil {
			return nil, err
		}
		return nil, &Error{Message: name + " acquisition failed", Err: err}
	}
	if strings.TrimSpace(res.Transcript) == "" {
		return nil, &Error{Message: "No transcript text found", Details: "The " + name + " source returned no text."}
	}
	return res, nil
}
