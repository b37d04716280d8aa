package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/echoscribe/echoscribe-api/internal/config"
	"github.com/echoscribe/echoscribe-api/internal/provider"
)

// ProviderName is the stable identifier recorded on notes and attempt rows.
const ProviderName = "gemini"

// Client calls the Gemini API for structured extraction and embeddings. It
// implements provider.Extractor and provider.Embedder.
type Client struct {
	client     *genai.Client
	model      string
	embedModel string
	dimension  int32
}

var (
	_ provider.Extractor = (*Client)(nil)
	_ provider.Embedder  = (*Client)(nil)
)

// New creates a Gemini client. The extraction model comes from cfg, the
// embedding model and output dimension from embedding.
func New(ctx context.Context, cfg config.GeminiConfig, embedding config.EmbeddingConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini API key cannot be empty")
	}
	if cfg.Model == "" {
		return nil, errors.New("gemini model cannot be empty")
	}
	if embedding.Model == "" {
		return nil, errors.New("gemini embedding model cannot be empty")
	}
	if embedding.Dimension < 1 {
		return nil, fmt.Errorf("gemini embedding dimension must be positive, got %d", embedding.Dimension)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &Client{
		client:     client,
		model:      cfg.Model,
		embedModel: embedding.Model,
		dimension:  int32(embedding.Dimension),
	}, nil
}

// Name implements provider.Provider.
func (c *Client) Name() string {
	return ProviderName
}

// ExtractTasks sends the prompt to the extraction model and returns the raw
// response text. Parsing and schema validation are the caller's job.
func (c *Client) ExtractTasks(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", provider.Permanent(ProviderName, errors.New("prompt is empty"))
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt),
		&genai.GenerateContentConfig{
			ResponseMIMEType: "application/json",
			Temperature:      genai.Ptr(float32(0)),
		})
	if err != nil {
		// Transport and API errors are assumed transient; the retry policy
		// will give up on its own if they persist
		return "", provider.Transient(ProviderName, err)
	}

	if err := checkCandidates(resp); err != nil {
		return "", err
	}

	text := responseText(resp)
	if text == "" {
		return "", provider.Permanent(ProviderName, errors.New("model returned no text"))
	}
	return text, nil
}

// EmbedText computes the embedding vector for the input.
func (c *Client) EmbedText(ctx context.Context, input string) ([]float32, error) {
	if strings.TrimSpace(input) == "" {
		return nil, provider.Permanent(ProviderName, errors.New("embedding input is empty"))
	}

	resp, err := c.client.Models.EmbedContent(ctx, c.embedModel, genai.Text(input),
		&genai.EmbedContentConfig{
			OutputDimensionality: genai.Ptr(c.dimension),
		})
	if err != nil {
		return nil, provider.Transient(ProviderName, err)
	}

	if resp == nil || len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil {
		return nil, provider.Permanent(ProviderName, errors.New("model returned no embedding"))
	}
	return resp.Embeddings[0].Values, nil
}

// checkCandidates rejects responses with no usable candidate. Safety blocks
// are permanent: resending the same transcript cannot unblock them.
func checkCandidates(resp *genai.GenerateContentResponse) error {
	if resp == nil || len(resp.Candidates) == 0 {
		return provider.Permanent(ProviderName, errors.New("model returned no candidates"))
	}

	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return provider.Permanent(ProviderName, errors.New("response blocked by safety filters"))
	}
	if candidate.Content == nil {
		return provider.Permanent(ProviderName, errors.New("candidate has no content"))
	}
	return nil
}

// responseText concatenates the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil {
			b.WriteString(part.Text)
		}
	}
	return b.String()
}
