package assemblyai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/echoscribe/echoscribe-api/internal/config"
	"github.com/echoscribe/echoscribe-api/internal/provider"
)

// ProviderName is the stable identifier recorded on notes and attempt rows.
const ProviderName = "assemblyai"

// maxErrorBody bounds how much of an unparseable error response is carried
// into error messages.
const maxErrorBody = 512

// Transcript job states reported by the API.
const (
	statusQueued     = "queued"
	statusProcessing = "processing"
	statusCompleted  = "completed"
	statusError      = "error"
)

// Client transcribes audio through the AssemblyAI API.
type Client struct {
	httpClient   *http.Client
	apiKey       string
	baseURL      string
	pollInterval time.Duration
}

var _ provider.Transcriber = (*Client)(nil)

// New creates an AssemblyAI transcription client.
func New(cfg config.AssemblyAIConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("assemblyai API key cannot be empty")
	}
	if cfg.BaseURL == "" {
		return nil, errors.New("assemblyai base URL cannot be empty")
	}
	if cfg.PollInterval <= 0 {
		return nil, fmt.Errorf("assemblyai poll interval must be positive, got %s", cfg.PollInterval)
	}

	return &Client{
		// No client timeout: each call runs under a per-attempt context that
		// already bounds it.
		httpClient:   &http.Client{},
		apiKey:       cfg.APIKey,
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		pollInterval: cfg.PollInterval,
	}, nil
}

// Name implements provider.Provider.
func (c *Client) Name() string {
	return ProviderName
}

type uploadResponse struct {
	UploadURL string `json:"upload_url"`
}

type submitRequest struct {
	AudioURL          string `json:"audio_url"`
	LanguageDetection bool   `json:"language_detection"`
}

type transcriptResponse struct {
	ID           string   `json:"id"`
	Status       string   `json:"status"`
	Text         *string  `json:"text"`
	Confidence   *float64 `json:"confidence"`
	LanguageCode string   `json:"language_code"`
	Error        string   `json:"error"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Transcribe uploads the audio, submits a transcript job and polls until it
// settles. The whole flow counts as one attempt; a transient failure anywhere
// in it makes the caller rerun the flow from the upload.
func (c *Client) Transcribe(ctx context.Context, audio provider.AudioSource) (*provider.TranscriptResult, error) {
	audioURL, err := c.upload(ctx, audio)
	if err != nil {
		return nil, err
	}

	id, err := c.submit(ctx, audioURL)
	if err != nil {
		return nil, err
	}

	return c.awaitTranscript(ctx, id)
}

// upload streams the raw audio to the upload endpoint and returns the
// temporary URL the transcript job will read from.
func (c *Client) upload(ctx context.Context, audio provider.AudioSource) (string, error) {
	reader, err := audio.Open(ctx)
	if err != nil {
		return "", provider.Transient(ProviderName, fmt.Errorf("failed to open audio source: %w", err))
	}
	defer func() { _ = reader.Close() }()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v2/upload", reader)
	if err != nil {
		return "", provider.Permanent(ProviderName, fmt.Errorf("failed to build upload request: %w", err))
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	var parsed uploadResponse
	if err := c.doJSON(req, &parsed); err != nil {
		return "", err
	}
	if parsed.UploadURL == "" {
		return "", provider.Transient(ProviderName, errors.New("upload returned no URL"))
	}
	return parsed.UploadURL, nil
}

func (c *Client) submit(ctx context.Context, audioURL string) (string, error) {
	payload, err := json.Marshal(submitRequest{
		AudioURL:          audioURL,
		LanguageDetection: true,
	})
	if err != nil {
		return "", provider.Permanent(ProviderName, fmt.Errorf("failed to encode transcript request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v2/transcript", bytes.NewReader(payload))
	if err != nil {
		return "", provider.Permanent(ProviderName, fmt.Errorf("failed to build transcript request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	var parsed transcriptResponse
	if err := c.doJSON(req, &parsed); err != nil {
		return "", err
	}
	if parsed.Status == statusError {
		return "", provider.Permanent(ProviderName, fmt.Errorf("transcription rejected: %s", parsed.Error))
	}
	if parsed.ID == "" {
		return "", provider.Transient(ProviderName, errors.New("submit returned no transcript id"))
	}
	return parsed.ID, nil
}

// awaitTranscript polls the transcript until it completes or fails. The
// context bounds the wait.
func (c *Client) awaitTranscript(ctx context.Context, id string) (*provider.TranscriptResult, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, provider.Transient(ProviderName, fmt.Errorf("transcript %s still pending: %w", id, ctx.Err()))
		case <-ticker.C:
		}

		transcript, err := c.getTranscript(ctx, id)
		if err != nil {
			if provider.IsPermanent(err) {
				return nil, err
			}
			// The transcript keeps processing server side through a failed
			// poll, so keep going until the context runs out.
			continue
		}

		switch transcript.Status {
		case statusCompleted:
			return transcriptResult(transcript)
		case statusError:
			return nil, provider.Permanent(ProviderName, fmt.Errorf("transcription failed: %s", transcript.Error))
		case statusQueued, statusProcessing:
			continue
		default:
			return nil, provider.Permanent(ProviderName, fmt.Errorf("unknown transcript status %q", transcript.Status))
		}
	}
}

func (c *Client) getTranscript(ctx context.Context, id string) (*transcriptResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v2/transcript/"+id, nil)
	if err != nil {
		return nil, provider.Permanent(ProviderName, fmt.Errorf("failed to build status request: %w", err))
	}

	var parsed transcriptResponse
	if err := c.doJSON(req, &parsed); err != nil {
		return nil, err
	}
	return &parsed, nil
}

func transcriptResult(transcript *transcriptResponse) (*provider.TranscriptResult, error) {
	var text string
	if transcript.Text != nil {
		text = strings.TrimSpace(*transcript.Text)
	}
	if text == "" {
		return nil, provider.Permanent(ProviderName, errors.New("transcription returned no text"))
	}

	result := &provider.TranscriptResult{
		Text:     text,
		Language: transcript.LanguageCode,
	}
	if transcript.Confidence != nil {
		result.Confidence = *transcript.Confidence
	}
	return result, nil
}

// doJSON sends the request with the API key attached and decodes the JSON
// response into target.
func (c *Client) doJSON(req *http.Request, target any) error {
	req.Header.Set("Authorization", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return provider.Transient(ProviderName, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return provider.Transient(ProviderName, fmt.Errorf("failed to read response: %w", err))
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return classifyStatus(resp.StatusCode, body)
	}
	if err := json.Unmarshal(body, target); err != nil {
		return provider.Transient(ProviderName, fmt.Errorf("failed to decode response: %w", err))
	}
	return nil
}

func classifyStatus(status int, body []byte) error {
	err := fmt.Errorf("request failed with status %d: %s", status, apiErrorMessage(body))
	if status == http.StatusTooManyRequests || status == http.StatusRequestTimeout || status >= 500 {
		return provider.Transient(ProviderName, err)
	}
	return provider.Permanent(ProviderName, err)
}

func apiErrorMessage(body []byte) string {
	var parsed errorResponse
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error != "" {
		return parsed.Error
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
