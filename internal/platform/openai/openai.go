package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/echoscribe/echoscribe-api/internal/config"
	"github.com/echoscribe/echoscribe-api/internal/provider"
)

// ProviderName is the stable identifier recorded on notes and attempt rows.
const ProviderName = "openai"

// maxErrorBody bounds how much of an unparseable error response is carried
// into error messages.
const maxErrorBody = 512

// Client transcribes audio through the OpenAI API.
type Client struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
	model      string
}

var _ provider.Transcriber = (*Client)(nil)

// New creates an OpenAI transcription client.
func New(cfg config.OpenAIConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai API key cannot be empty")
	}
	if cfg.BaseURL == "" {
		return nil, errors.New("openai base URL cannot be empty")
	}
	if cfg.Model == "" {
		return nil, errors.New("openai model cannot be empty")
	}

	return &Client{
		// No client timeout: each call runs under a per-attempt context that
		// already bounds it, and uploads of long recordings can be slow.
		httpClient: &http.Client{},
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		model:      cfg.Model,
	}, nil
}

// Name implements provider.Provider.
func (c *Client) Name() string {
	return ProviderName
}

type transcriptionResponse struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Transcribe uploads the audio and returns the transcript. HTTP 429 and 5xx
// responses are transient; other non-200 responses are permanent.
func (c *Client) Transcribe(ctx context.Context, audio provider.AudioSource) (*provider.TranscriptResult, error) {
	body, contentType, err := c.encodeForm(ctx, audio)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/audio/transcriptions", body)
	if err != nil {
		return nil, provider.Permanent(ProviderName, fmt.Errorf("failed to build request: %w", err))
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, provider.Transient(ProviderName, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, provider.Transient(ProviderName, fmt.Errorf("failed to read response: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(resp.StatusCode, respBody)
	}

	var parsed transcriptionResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, provider.Transient(ProviderName, fmt.Errorf("failed to decode response: %w", err))
	}

	text := strings.TrimSpace(parsed.Text)
	if text == "" {
		return nil, provider.Permanent(ProviderName, errors.New("transcription returned no text"))
	}

	return &provider.TranscriptResult{
		Text:     text,
		Language: parsed.Language,
	}, nil
}

// encodeForm builds the multipart request body. The audio is buffered in
// memory; the API caps uploads at 25 MB so this stays bounded.
func (c *Client) encodeForm(ctx context.Context, audio provider.AudioSource) (*bytes.Buffer, string, error) {
	reader, err := audio.Open(ctx)
	if err != nil {
		return nil, "", provider.Transient(ProviderName, fmt.Errorf("failed to open audio source: %w", err))
	}
	defer func() { _ = reader.Close() }()

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)

	part, err := form.CreateFormFile("file", formFilename(audio))
	if err != nil {
		return nil, "", provider.Permanent(ProviderName, err)
	}
	if _, err := io.Copy(part, reader); err != nil {
		return nil, "", provider.Transient(ProviderName, fmt.Errorf("failed to read audio source: %w", err))
	}
	if err := form.WriteField("model", c.model); err != nil {
		return nil, "", provider.Permanent(ProviderName, err)
	}
	if err := form.WriteField("response_format", "verbose_json"); err != nil {
		return nil, "", provider.Permanent(ProviderName, err)
	}
	if err := form.Close(); err != nil {
		return nil, "", provider.Permanent(ProviderName, err)
	}

	return &buf, form.FormDataContentType(), nil
}

func classifyStatus(status int, body []byte) error {
	err := fmt.Errorf("transcription request failed with status %d: %s", status, apiErrorMessage(body))
	if status == http.StatusTooManyRequests || status == http.StatusRequestTimeout || status >= 500 {
		return provider.Transient(ProviderName, err)
	}
	return provider.Permanent(ProviderName, err)
}

// apiErrorMessage extracts the message from an API error payload, falling
// back to a bounded slice of the raw body.
func apiErrorMessage(body []byte) string {
	var parsed errorResponse
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Message != "" {
		return parsed.Error.Message
	}

	s := strings.TrimSpace(string(body))
	if s == "" {
		return "no response body"
	}
	if len(s) > maxErrorBody {
		s = s[:maxErrorBody]
	}
	return s
}

// formFilename derives the upload filename from the source reference. The
// API detects the container format from the filename extension.
func formFilename(audio provider.AudioSource) string {
	if u, err := url.Parse(audio.Ref()); err == nil {
		base := path.Base(u.Path)
		if base != "." && base != "/" && path.Ext(base) != "" {
			return base
		}
	}
	return "audio" + extensionForMIME(audio.MIMEType())
}

func extensionForMIME(mimeType string) string {
	switch mimeType {
	case "audio/mp4":
		return ".m4a"
	case "audio/mpeg":
		return ".mp3"
	case "audio/wav":
		return ".wav"
	case "audio/ogg":
		return ".ogg"
	case "audio/flac":
		return ".flac"
	case "audio/webm":
		return ".webm"
	case "audio/aac":
		return ".aac"
	default:
		return ".bin"
	}
}
