package acquisition

import (
	"context"
	"fmt"
	"strings"

	"github.com/lecturemate/backend/pkg/executor"
)

// CaptionLanguages are requested from YouTube in order of preference.
var CaptionLanguages = []string{"ar", "en"}

// Segment is one caption line.
type Segment struct {
	Text     string  `json:"text"`
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
}

type captionsRequest struct {
	VideoID   string   `json:"video_id"`
	Languages []string `json:"languages"`
}

type captionsResponse struct {
	Success  bool      `json:"success"`
	Segments []Segment `json:"segments"`
	Language string    `json:"language"`
	Error    string    `json:"error"`
	Details  string    `json:"details"`
}

// Captions reads the video's published captions through the captions script.
type Captions struct {
	exec   executor.Executor
	python string
	script string
}

// NewCaptions creates the captions strategy.
func NewCaptions(exec executor.Executor, python, script string) *Captions {
	return &Captions{exec: exec, python: python, script: script}
}

// Acquire fetches caption segments and keeps those inside the source's time range.
func (c *Captions) Acquire(ctx context.Context, src Source) (*Result, error) {
	var resp captionsResponse
	req := captionsRequest{VideoID: src.VideoID, Languages: CaptionLanguages}
	if err := c.exec.RunJSON(ctx, req, &resp, c.python, c.script); err != nil {
		return nil, fmt.Errorf("captions script: %w", err)
	}
	if !resp.Success {
		return nil, &Error{
			Message: nonEmpty(resp.Error, "No transcript available for this video"),
			Details: nonEmpty(resp.Details, "The video may not have captions enabled."),
		}
	}
	return NewResult(JoinSegments(resp.Segments, src.Range), resp.Language), nil
}

// JoinSegments concatenates the texts of segments inside r.
func JoinSegments(segments []Segment, r TimeRange) string {
	var b strings.Builder
	for _, s := range segments {
		if !r.Contains(s.Start) {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(s.Text)
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
