package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
)

const (
	// MaxMediaFileSize is the maximum allowed size for uploaded lecture media (500MB).
	MaxMediaFileSize = 500 * 1024 * 1024
	// FolderUploads is the prefix for uploaded lecture media.
	FolderUploads = "uploads"
	// FolderAudio is the prefix for cached YouTube audio.
	FolderAudio = "audio"
)

var (
	// ErrObjectNotFound is returned when a key does not exist.
	ErrObjectNotFound = errors.New("object not found")
	// ErrFileTooLarge is returned by ValidateMedia for files over MaxMediaFileSize.
	ErrFileTooLarge = errors.New("file too large")
	// ErrUnsupportedMediaType is returned by ValidateMedia for types outside AllowedMediaTypes.
	ErrUnsupportedMediaType = errors.New("unsupported media type")
)

// AllowedMediaTypes maps accepted upload MIME types to the extension used for storage.
var AllowedMediaTypes = map[string]string{
	"audio/mpeg":      ".mp3",
	"audio/mp3":       ".mp3",
	"audio/wav":       ".wav",
	"audio/webm":      ".webm",
	"audio/ogg":       ".ogg",
	"audio/m4a":       ".m4a",
	"audio/x-m4a":     ".m4a",
	"audio/mp4":       ".m4a",
	"video/mp4":       ".mp4",
	"video/webm":      ".webm",
	"video/ogg":       ".ogv",
	"video/quicktime": ".mov",
}

// MediaStore stores uploaded media and cached audio.
type MediaStore interface {
	Put(ctx context.Context, key, contentType string, body io.Reader, size int64) error
	// Get returns the object body and content type. Caller must close the body.
	Get(ctx context.Context, key string) (io.ReadCloser, string, error)
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
	// DownloadURL returns a time-limited URL for reading the object.
	DownloadURL(ctx context.Context, key string, expires time.Duration) (string, error)
}

// ValidateMedia checks an upload's size and MIME type.
func ValidateMedia(contentType string, size int64) error {
	if size > MaxMediaFileSize {
		return fmt.Errorf("%w: %d bytes exceeds %d MB", ErrFileTooLarge, size, MaxMediaFileSize/(1024*1024))
	}
	if _, ok := AllowedMediaTypes[normalizeType(contentType)]; !ok {
		return fmt.Errorf("%w: %q", ErrUnsupportedMediaType, contentType)
	}
	return nil
}

func normalizeType(contentType string) string {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	return ct
}

// UploadKey returns the object key: uploads/{owner_id}/{lecture_id}{ext}.
func UploadKey(ownerID, lectureID, contentType, filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	if ext == "" {
		ext = AllowedMediaTypes[normalizeType(contentType)]
	}
	return path.Join(FolderUploads, ownerID, lectureID+ext)
}

// AudioKey returns the cache key for a video's audio: audio/{owner_id}/{video_id}.mp3.
func AudioKey(ownerID, videoID string) string {
	return path.Join(FolderAudio, ownerID, videoID+".mp3")
}
