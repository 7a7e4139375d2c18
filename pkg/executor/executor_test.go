package executor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLastLine(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"single", `{"a":1}`, `{"a":1}`},
		{"trailing blank lines", "log line\n{\"a\":1}\n\n  \n", `{"a":1}`},
		{"empty", "\n\n", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LastLine(tt.in))
		})
	}
}

func TestRunJSON(t *testing.T) {
	e := New()
	ctx := context.Background()

	t.Run("echoes request through stdin", func(t *testing.T) {
		var resp struct {
			VideoID string `json:"video_id"`
		}
		// progress noise before the result line is ignored
		err := e.RunJSON(ctx, map[string]string{"video_id": "abc"}, &resp, "sh", "-c", "echo loading; cat; echo")
		require.NoError(t, err)
		assert.Equal(t, "abc", resp.VideoID)
	})

	t.Run("empty output", func(t *testing.T) {
		var resp map[string]any
		err := e.RunJSON(ctx, map[string]string{}, &resp, "sh", "-c", "cat >/dev/null")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrEmptyOutput))
	})

	t.Run("invalid json", func(t *testing.T) {
		var resp map[string]any
		err := e.RunJSON(ctx, map[string]string{}, &resp, "sh", "-c", "cat >/dev/null; echo not-json")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid JSON")
	})

	t.Run("non-zero exit carries stderr", func(t *testing.T) {
		var resp map[string]any
		err := e.RunJSON(ctx, map[string]string{}, &resp, "sh", "-c", "cat >/dev/null; echo boom >&2; exit 3")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "boom")
	})
}

func TestTimeout(t *testing.T) {
	e := New(WithTimeout(50 * time.Millisecond))
	_, err := e.Execute(context.Background(), "sleep", "2")
	require.Error(t, err)
}
