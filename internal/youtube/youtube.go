// Package youtube parses YouTube references and serves the stateless YouTube helper endpoints.
package youtube

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/lecturemate/backend/pkg/executor"
)

// ErrInvalidVideoID is returned when no video id can be extracted.
var ErrInvalidVideoID = errors.New("invalid YouTube video id")

var (
	bareID    = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)
	urlID     = regexp.MustCompile(`(?:youtube\.com/(?:watch\?(?:[^#]*&)?v=|embed/|shorts/|live/|v/)|youtu\.be/)([A-Za-z0-9_-]{11})`)
	youtubeID = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
)

// VideoID extracts the video id from a watch, short, embed or youtu.be URL, or accepts a bare id.
func VideoID(input string) (string, error) {
	s := strings.TrimSpace(input)
	if bareID.MatchString(s) {
		return s, nil
	}
	if m := urlID.FindStringSubmatch(s); m != nil {
		return m[1], nil
	}
	return "", ErrInvalidVideoID
}

// Thumbnail returns the high-resolution thumbnail URL of a video.
func Thumbnail(videoID string) string {
	return "https://img.youtube.com/vi/" + videoID + "/maxresdefault.jpg"
}

// FormatDuration renders seconds as m:ss or h:mm:ss.
func FormatDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	h, m, s := seconds/3600, seconds%3600/60, seconds%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// Info is the metadata shown before a lecture is submitted.
type Info struct {
	VideoID         string `json:"video_id"`
	Title           string `json:"title"`
	ThumbnailURL    string `json:"thumbnail_url"`
	Duration        string `json:"duration"`
	DurationSeconds int    `json:"duration_seconds,omitempty"`
	ChannelName     string `json:"channel_name,omitempty"`
}

// FallbackInfo is used when metadata cannot be fetched.
func FallbackInfo(videoID string) *Info {
	return &Info{
		VideoID:      videoID,
		Title:        "YouTube Video " + videoID,
		ThumbnailURL: Thumbnail(videoID),
		Duration:     "0:00",
	}
}

type infoRequest struct {
	VideoID string `json:"video_id"`
}

type infoResponse struct {
	Success         bool   `json:"success"`
	VideoID         string `json:"videoId"`
	Title           string `json:"title"`
	ThumbnailURL    string `json:"thumbnailUrl"`
	Duration        string `json:"duration"`
	DurationSeconds int    `json:"durationSeconds"`
	ChannelName     string `json:"channelName"`
	Error           string `json:"error"`
}

// InfoFetcher reads video metadata through the video info script.
type InfoFetcher struct {
	exec   executor.Executor
	python string
	script string
}

// NewInfoFetcher creates an info fetcher.
func NewInfoFetcher(exec executor.Executor, python, script string) *InfoFetcher {
	return &InfoFetcher{exec: exec, python: python, script: script}
}

// Fetch returns the video's metadata. Missing fields are filled from FallbackInfo.
func (f *InfoFetcher) Fetch(ctx context.Context, videoID string) (*Info, error) {
	if !youtubeID.MatchString(videoID) {
		return nil, ErrInvalidVideoID
	}
	var resp infoResponse
	if err := f.exec.RunJSON(ctx, infoRequest{VideoID: videoID}, &resp, f.python, f.script); err != nil {
		return nil, fmt.Errorf("video info script: %w", err)
	}
	if !resp.Success {
		return nil, fmt.Errorf("video info: %s", resp.Error)
	}
	info := FallbackInfo(videoID)
	if resp.Title != "" {
		info.Title = resp.Title
	}
	if resp.ThumbnailURL != "" {
		info.ThumbnailURL = resp.ThumbnailURL
	}
	info.DurationSeconds = resp.DurationSeconds
	switch {
	case resp.Duration != "":
		info.Duration = resp.Duration
	case resp.DurationSeconds > 0:
		info.Duration = FormatDuration(resp.DurationSeconds)
	}
	info.ChannelName = resp.ChannelName
	return info, nil
}
