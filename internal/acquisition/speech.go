package acquisition

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/lecturemate/backend/pkg/executor"
	"github.com/lecturemate/backend/pkg/storage"
)

type downloadRequest struct {
	VideoID   string   `json:"video_id"`
	StartTime *float64 `json:"start_time"`
	EndTime   *float64 `json:"end_time"`
	OutputDir string   `json:"output_dir,omitempty"`
}

type downloadResponse struct {
	Success  bool   `json:"success"`
	FilePath string `json:"filePath"`
	FileSize int64  `json:"fileSize"`
	Error    string `json:"error"`
	Details  string `json:"details"`
}

// Speech downloads the video's audio and runs speech recognition on it.
type Speech struct {
	exec        executor.Executor
	python      string
	script      string
	tempDir     string
	transcriber Transcriber
	media       storage.MediaStore
	logger      *zap.Logger
}

// NewSpeech creates the speech strategy. media may be nil to disable the audio cache.
func NewSpeech(exec executor.Executor, python, downloadScript, tempDir string, transcriber Transcriber, media storage.MediaStore, logger *zap.Logger) *Speech {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Speech{
		exec:        exec,
		python:      python,
		script:      downloadScript,
		tempDir:     tempDir,
		transcriber: transcriber,
		media:       media,
		logger:      logger,
	}
}

// Acquire transcribes the audio of src.VideoID. Full-length audio is cached per owner.
func (s *Speech) Acquire(ctx context.Context, src Source) (*Result, error) {
	cacheable := s.media != nil && src.OwnerID != "" && !src.Range.Enabled()
	key := storage.AudioKey(src.OwnerID, src.VideoID)

	var path string
	if cacheable {
		p, err := s.fromCache(ctx, key)
		if err != nil {
			s.logger.Warn("audio cache read failed", zap.String("key", key), zap.Error(err))
		}
		path = p
	}
	if path == "" {
		p, err := s.download(ctx, src)
		if err != nil {
			return nil, err
		}
		path = p
		if cacheable {
			s.store(ctx, key, path)
		}
	}
	defer os.Remove(path)

	return s.transcriber.Transcribe(ctx, path, src.Options)
}

func (s *Speech) download(ctx context.Context, src Source) (string, error) {
	req := downloadRequest{VideoID: src.VideoID, OutputDir: s.tempDir}
	if src.Range.Enabled() {
		req.StartTime, req.EndTime = src.Range.Start, src.Range.End
	}
	var resp downloadResponse
	if err := s.exec.RunJSON(ctx, req, &resp, s.python, s.script); err != nil {
		return "", fmt.Errorf("download script: %w", err)
	}
	if !resp.Success || resp.FilePath == "" {
		return "", &Error{
			Message: nonEmpty(resp.Error, "Failed to download audio from YouTube"),
			Details: nonEmpty(resp.Details, "Could not download audio file."),
		}
	}
	s.logger.Info("audio downloaded", zap.String("video_id", src.VideoID), zap.Int64("bytes", resp.FileSize))
	return resp.FilePath, nil
}

// fromCache copies a cached object into a temp file. It returns "" when the key is absent.
func (s *Speech) fromCache(ctx context.Context, key string) (string, error) {
	ok, err := s.media.Exists(ctx, key)
	if err != nil || !ok {
		return "", err
	}
	body, _, err := s.media.Get(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return "", nil
		}
		return "", err
	}
	defer body.Close()
	path, err := writeTemp(s.tempDir, "cached-*.mp3", body)
	if err != nil {
		return "", err
	}
	s.logger.Info("audio cache hit", zap.String("key", key))
	return path, nil
}

func (s *Speech) store(ctx context.Context, key, path string) {
	f, err := os.Open(path)
	if err != nil {
		s.logger.Warn("audio cache open failed", zap.Error(err))
		return
	}
	defer f.Close()
	var size int64
	if st, err := f.Stat(); err == nil {
		size = st.Size()
	}
	if err := s.media.Put(ctx, key, "audio/mpeg", f, size); err != nil {
		s.logger.Warn("audio cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func writeTemp(dir, pattern string, r io.Reader) (string, error) {
	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}
