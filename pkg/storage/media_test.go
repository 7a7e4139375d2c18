package storage

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateMedia(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		size        int64
		wantErr     error
	}{
		{"mp3", "audio/mpeg", 1024, nil},
		{"m4a alias", "audio/x-m4a", 1024, nil},
		{"with params", "video/mp4; codecs=avc1", 1024, nil},
		{"exact limit", "audio/wav", MaxMediaFileSize, nil},
		{"too large", "audio/wav", MaxMediaFileSize + 1, ErrFileTooLarge},
		{"image", "image/png", 10, ErrUnsupportedMediaType},
		{"empty type", "", 10, ErrUnsupportedMediaType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateMedia(tt.contentType, tt.size)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "audio/u1/abc123.mp3", AudioKey("u1", "abc123"))
	assert.Equal(t, "uploads/u1/l1.wav", UploadKey("u1", "l1", "audio/mpeg", "Lecture.WAV"))
	assert.Equal(t, "uploads/u1/l1.mov", UploadKey("u1", "l1", "video/quicktime", "clip"))
	assert.True(t, isAudioKey("audio/u1/abc.mp3"))
	assert.False(t, isAudioKey("uploads/u1/l1.mp3"))
}

func TestMemoryStore(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	_, _, err := m.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrObjectNotFound)

	require.NoError(t, m.Put(ctx, "audio/u/v.mp3", "audio/mpeg", strings.NewReader("bytes"), 5))
	ok, err := m.Exists(ctx, "audio/u/v.mp3")
	require.NoError(t, err)
	assert.True(t, ok)

	body, ct, err := m.Get(ctx, "audio/u/v.mp3")
	require.NoError(t, err)
	data, _ := io.ReadAll(body)
	assert.Equal(t, "bytes", string(data))
	assert.Equal(t, "audio/mpeg", ct)

	url, err := m.DownloadURL(ctx, "audio/u/v.mp3", time.Minute)
	require.NoError(t, err)
	assert.Contains(t, url, "audio/u/v.mp3")

	require.NoError(t, m.Delete(ctx, "audio/u/v.mp3"))
	ok, _ = m.Exists(ctx, "audio/u/v.mp3")
	assert.False(t, ok)
}
