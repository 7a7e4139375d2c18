package acquisition

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"

	"github.com/lecturemate/backend/pkg/storage"
)

// Upload transcribes an uploaded file kept in media storage.
type Upload struct {
	media       storage.MediaStore
	transcriber Transcriber
	tempDir     string
}

// NewUpload creates the upload strategy.
func NewUpload(media storage.MediaStore, transcriber Transcriber, tempDir string) *Upload {
	return &Upload{media: media, transcriber: transcriber, tempDir: tempDir}
}

func (u *Upload) Acquire(ctx context.Context, src Source) (*Result, error) {
	if src.MediaKey == "" {
		return nil, &Error{Message: "No audio file provided"}
	}
	body, _, err := u.media.Get(ctx, src.MediaKey)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, &Error{Message: "Uploaded file not found", Err: err}
		}
		return nil, fmt.Errorf("read upload: %w", err)
	}
	defer body.Close()

	p, err := writeTemp(u.tempDir, "upload-*"+path.Ext(src.MediaKey), body)
	if err != nil {
		return nil, err
	}
	defer os.Remove(p)

	return TranscribeFile(ctx, u.transcriber, p, src.Options)
}

// TranscribeFile runs t on a local file and wraps an empty result as an Error.
func TranscribeFile(ctx context.Context, t Transcriber, p string, opts TranscribeOptions) (*Result, error) {
	res, err := t.Transcribe(ctx, p, opts)
	if err != nil {
		return nil, err
	}
	if res.Transcript == "" {
		return nil, &Error{Message: "No transcript text found", Details: "The transcription completed but contains no text."}
	}
	return res, nil
}
