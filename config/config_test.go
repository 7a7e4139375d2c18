package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORE_BACKEND", "")
	t.Setenv("GEMINI_API_KEYS", "")
	t.Setenv("GEMINI_API_KEY", "")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Store.Backend)
	assert.Equal(t, "gemini-2.5-flash", cfg.Gemini.Model)
	assert.Empty(t, cfg.Gemini.APIKeys)
	assert.Equal(t, 2, cfg.Pipeline.WorkerConcurrency)
	assert.Equal(t, 10*time.Minute, cfg.Scripts.ScriptTimeout())
	assert.Equal(t, 15*time.Minute, cfg.AWS.PresignExpiry())
	assert.Equal(t, 10, cfg.Server.ReadHeaderTimeout)
	assert.Greater(t, cfg.Server.UploadTimeout, cfg.Server.ReadTimeout, "uploads get longer than ordinary requests")
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORE_BACKEND", "Memory")
	t.Setenv("GEMINI_API_KEYS", " k1, ,k2 ")
	t.Setenv("ADMIN_EMAILS", "a@x.io,b@x.io")
	t.Setenv("LOCAL_MODEL_AUTOSTART", "true")
	t.Setenv("WORKER_CONCURRENCY", "4")
	t.Setenv("DB_MAX_CONNS", "not-a-number")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Store.Backend)
	assert.Equal(t, []string{"k1", "k2"}, cfg.Gemini.APIKeys)
	assert.Equal(t, []string{"a@x.io", "b@x.io"}, cfg.JWT.AdminEmails)
	assert.True(t, cfg.LocalModel.Autostart)
	assert.Equal(t, 4, cfg.Pipeline.WorkerConcurrency)
	assert.Equal(t, int32(10), cfg.Database.MaxConns)
}

func TestLoadSingleGeminiKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEYS", "")
	t.Setenv("GEMINI_API_KEY", "solo")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"solo"}, cfg.Gemini.APIKeys)
}

func TestLoadInvalidStore(t *testing.T) {
	t.Setenv("STORE_BACKEND", "mysql")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("STORE_BACKEND", "firestore")
	t.Setenv("FIRESTORE_PROJECT_ID", "")
	_, err = Load()
	assert.Error(t, err)
}

func TestScriptPath(t *testing.T) {
	s := ScriptsConfig{Dir: "scripts/"}
	assert.Equal(t, "scripts/a.py", s.Script("a.py"))
	assert.Equal(t, "/opt/b.py", s.Script("/opt/b.py"))
	assert.Equal(t, "c.py", ScriptsConfig{}.Script("c.py"))
}
