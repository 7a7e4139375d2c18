// Package localmodel talks to the local model server that hosts Whisper and the
// on-device text model.
package localmodel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultURL is where the model server listens when started by the Supervisor.
const DefaultURL = "http://localhost:8765"

// Error is a failure reported by the model server itself.
type Error struct {
	Action  string
	Message string
	Details string
}

func (e *Error) Error() string {
	return fmt.Sprintf("model server %s: %s", e.Action, e.Message)
}

// TranscribeRequest describes a file to transcribe.
type TranscribeRequest struct {
	FilePath  string `json:"file_path"`
	ModelSize string `json:"model_size,omitempty"`
	Language  string `json:"language,omitempty"`
	Device    string `json:"device,omitempty"`
}

// Transcription is the model server's transcription result.
type Transcription struct {
	Transcript string `json:"transcript"`
	WordCount  int    `json:"wordCount"`
	Language   string `json:"language"`
}

type envelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Details string `json:"details"`
}

// Client is an HTTP client for the model server.
type Client struct {
	baseURL string
	device  string
	http    *http.Client
}

// NewClient creates a client. device is sent with text generation requests.
func NewClient(baseURL, device string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &Client{baseURL: baseURL, device: device, http: &http.Client{Timeout: timeout}}
}

// Transcribe runs speech-to-text on a local file.
func (c *Client) Transcribe(ctx context.Context, req TranscribeRequest) (*Transcription, error) {
	body := map[string]any{
		"action":     "transcribe",
		"file_path":  req.FilePath,
		"model_size": req.ModelSize,
		"device":     req.Device,
	}
	if req.Language != "" {
		body["language"] = req.Language
	}
	var out Transcription
	if err := c.call(ctx, "transcribe", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Summary asks the text model for a summary.
func (c *Client) Summary(ctx context.Context, transcript string) (string, error) {
	var out struct {
		Summary string `json:"summary"`
	}
	if err := c.call(ctx, "generate_summary", c.textRequest("generate_summary", transcript), &out); err != nil {
		return "", err
	}
	return out.Summary, nil
}

// Quiz asks the text model for quiz questions. The raw JSON array is returned for validation by the caller.
func (c *Client) Quiz(ctx context.Context, transcript string) (json.RawMessage, error) {
	var out struct {
		Questions json.RawMessage `json:"questions"`
	}
	if err := c.call(ctx, "generate_quiz", c.textRequest("generate_quiz", transcript), &out); err != nil {
		return nil, err
	}
	return out.Questions, nil
}

// Flashcards asks the text model for flashcards as a raw JSON array.
func (c *Client) Flashcards(ctx context.Context, transcript string) (json.RawMessage, error) {
	var out struct {
		Flashcards json.RawMessage `json:"flashcards"`
	}
	if err := c.call(ctx, "generate_flashcards", c.textRequest("generate_flashcards", transcript), &out); err != nil {
		return nil, err
	}
	return out.Flashcards, nil
}

func (c *Client) textRequest(action, transcript string) map[string]any {
	body := map[string]any{"action": action, "transcript": transcript}
	if c.device != "" {
		body["device"] = c.device
	}
	return body
}

// Ping reports whether the server accepts connections.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader([]byte(`{"action":"ping"}`)))
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return nil
}

func (c *Client) call(ctx context.Context, action string, body any, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", action, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("model server %s: %w", action, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", action, err)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("model server %s: status %d: invalid response: %w", action, resp.StatusCode, err)
	}
	if !env.Success {
		msg := env.Error
		if msg == "" {
			msg = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return &Error{Action: action, Message: msg, Details: env.Details}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s response: %w", action, err)
	}
	return nil
}

// IsServerError reports whether err was returned by the model server rather than the transport.
func IsServerError(err error) bool {
	var e *Error
	return errors.As(err, &e)
}
