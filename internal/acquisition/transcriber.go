package acquisition

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/lecturemate/backend/internal/localmodel"
	"github.com/lecturemate/backend/pkg/executor"
)

const (
	// DefaultModelSize is the Whisper model used when none is requested.
	DefaultModelSize = "large-v3"
	// DefaultDevice is the inference device used when none is requested.
	DefaultDevice = "cuda"
)

// Transcriber turns a local audio or video file into text.
type Transcriber interface {
	Transcribe(ctx context.Context, path string, opts TranscribeOptions) (*Result, error)
}

// Defaults fill the options a request leaves empty. Empty fields fall back to
// DefaultModelSize, DefaultDevice and language detection.
type Defaults struct {
	ModelSize string
	Language  string
	Device    string
}

// Apply canonicalizes opts and fills its empty fields. It is idempotent.
func (d Defaults) Apply(opts TranscribeOptions) TranscribeOptions {
	opts = CanonicalOptions(opts)
	if opts.ModelSize == "" {
		opts.ModelSize = nonEmpty(d.ModelSize, DefaultModelSize)
	}
	if opts.Device == "" {
		opts.Device = normalizeDevice(nonEmpty(d.Device, DefaultDevice))
	}
	if opts.Language == "" {
		opts.Language = CanonicalOptions(TranscribeOptions{Language: d.Language}).Language
	}
	if opts.Language == "" {
		opts.Language = LanguageAuto
	}
	return opts
}

func normalizeDevice(d string) string {
	switch d = strings.ToLower(d); d {
	case "gpu", "cuda":
		return "cuda"
	default:
		return d
	}
}

// LanguageAuto requests language detection.
const LanguageAuto = "auto"

// CanonicalOptions maps aliases in request options: the "gpu" device becomes "cuda" and
// an "auto" or "none" language becomes LanguageAuto. Empty fields stay empty so the
// transcriber's Defaults apply; an explicit LanguageAuto is never replaced.
func CanonicalOptions(opts TranscribeOptions) TranscribeOptions {
	opts.ModelSize = strings.TrimSpace(opts.ModelSize)
	opts.Device = normalizeDevice(strings.TrimSpace(opts.Device))
	opts.Language = strings.TrimSpace(opts.Language)
	if strings.EqualFold(opts.Language, LanguageAuto) || strings.EqualFold(opts.Language, "none") {
		opts.Language = LanguageAuto
	}
	return opts
}

// requestLanguage is the language sent to a recognizer; empty means detect.
func requestLanguage(l string) string {
	if l == LanguageAuto {
		return ""
	}
	return l
}

type localTranscribeClient interface {
	Transcribe(ctx context.Context, req localmodel.TranscribeRequest) (*localmodel.Transcription, error)
}

// ServerTranscriber uses the long-running local model server.
type ServerTranscriber struct {
	client   localTranscribeClient
	defaults Defaults
}

// NewServerTranscriber wraps a model server client.
func NewServerTranscriber(client localTranscribeClient, defaults Defaults) *ServerTranscriber {
	return &ServerTranscriber{client: client, defaults: defaults}
}

func (t *ServerTranscriber) Transcribe(ctx context.Context, path string, opts TranscribeOptions) (*Result, error) {
	opts = t.defaults.Apply(opts)
	out, err := t.client.Transcribe(ctx, localmodel.TranscribeRequest{
		FilePath:  path,
		ModelSize: opts.ModelSize,
		Language:  requestLanguage(opts.Language),
		Device:    opts.Device,
	})
	if err != nil {
		return nil, err
	}
	return NewResult(out.Transcript, out.Language), nil
}

type scriptResponse struct {
	Success    bool   `json:"success"`
	Error      string `json:"error"`
	Details    string `json:"details"`
	Transcript string `json:"transcript"`
	Language   string `json:"language"`
}

// ScriptTranscriber runs the Whisper script once per file.
type ScriptTranscriber struct {
	exec     executor.Executor
	python   string
	script   string
	defaults Defaults
}

// NewScriptTranscriber creates a transcriber for `<python> <script>`.
func NewScriptTranscriber(exec executor.Executor, python, script string, defaults Defaults) *ScriptTranscriber {
	return &ScriptTranscriber{exec: exec, python: python, script: script, defaults: defaults}
}

func (t *ScriptTranscriber) Transcribe(ctx context.Context, path string, opts TranscribeOptions) (*Result, error) {
	opts = t.defaults.Apply(opts)
	req := map[string]any{
		"file_path":  path,
		"model_size": opts.ModelSize,
		"device":     opts.Device,
	}
	if lang := requestLanguage(opts.Language); lang != "" {
		req["language"] = lang
	}
	var resp scriptResponse
	if err := t.exec.RunJSON(ctx, req, &resp, t.python, t.script); err != nil {
		return nil, fmt.Errorf("whisper script: %w", err)
	}
	if !resp.Success {
		return nil, &Error{Message: nonEmpty(resp.Error, "Transcription failed"), Details: resp.Details}
	}
	return NewResult(resp.Transcript, resp.Language), nil
}

// FallbackTranscriber tries each transcriber in order.
type FallbackTranscriber struct {
	transcribers []Transcriber
	logger       *zap.Logger
}

// NewFallbackTranscriber builds a chain, skipping nil entries.
func NewFallbackTranscriber(logger *zap.Logger, ts ...Transcriber) *FallbackTranscriber {
	if logger == nil {
		logger = zap.NewNop()
	}
	f := &FallbackTranscriber{logger: logger}
	for _, t := range ts {
		if t != nil {
			f.transcribers = append(f.transcribers, t)
		}
	}
	return f
}

func (f *FallbackTranscriber) Transcribe(ctx context.Context, path string, opts TranscribeOptions) (*Result, error) {
	var errs []error
	for _, t := range f.transcribers {
		res, err := t.Transcribe(ctx, path, opts)
		if err == nil {
			return res, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		f.logger.Warn("transcriber failed", zap.String("transcriber", fmt.Sprintf("%T", t)), zap.Error(err))
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil, &Error{Message: "no transcriber configured"}
	}
	return nil, errors.Join(errs...)
}

func nonEmpty(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
