package vision

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// FailureKind buckets classifier errors by the caller's retry policy.
type FailureKind int

const (
	// FailTransient covers everything without a dedicated policy: report a
	// delay, verdict SECURE, move on to the next cycle.
	FailTransient FailureKind = iota
	// FailRateLimited allows one bounded retry after a short backoff.
	FailRateLimited
	// FailModelNotFound means try the next candidate model.
	FailModelNotFound
)

// ErrNoModel is returned when no candidate model answered the probe.
var ErrNoModel = errors.New("no inference model reachable")

// OpenAIClassifier submits frames to a vision-capable chat model.
type OpenAIClassifier struct {
	client *openai.Client
	model  string
}

// NewOpenAIClassifier builds a classifier from a credential. baseURL may be
// empty for the hosted service or point at a local gateway.
func NewOpenAIClassifier(apiKey, baseURL string) *OpenAIClassifier {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIClassifier{client: openai.NewClientWithConfig(cfg)}
}

// Probe sends a trivial request to each candidate in order and binds the
// first one that answers. Returns ErrNoModel when none do.
func (c *OpenAIClassifier) Probe(ctx context.Context, candidates []string) (string, error) {
	for _, model := range candidates {
		req := openai.ChatCompletionRequest{
			Model:     model,
			MaxTokens: 1,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleUser, Content: "ping"},
			},
		}
		if _, err := c.client.CreateChatCompletion(ctx, req); err != nil {
			continue
		}
		c.model = model
		return model, nil
	}
	return "", ErrNoModel
}

// Model returns the bound model identifier, empty before a successful probe.
func (c *OpenAIClassifier) Model() string {
	return c.model
}

// Classify submits the JPEG frame with the safety-officer prompt and parses
// the verdict token out of the response.
func (c *OpenAIClassifier) Classify(ctx context.Context, frame []byte) (Analysis, error) {
	if c.model == "" {
		return Analysis{}, ErrNoModel
	}
	dataURL := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(frame)
	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{{
			Role: openai.ChatMessageRoleUser,
			MultiContent: []openai.ChatMessagePart{
				{Type: openai.ChatMessagePartTypeText, Text: Prompt},
				{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{
					URL:    dataURL,
					Detail: openai.ImageURLDetailLow,
				}},
			},
		}},
	}
	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return Analysis{}, err
	}
	if len(resp.Choices) == 0 {
		return Analysis{}, fmt.Errorf("empty completion from %s", c.model)
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	return Analysis{Rationale: text, Verdict: ParseVerdict(text)}, nil
}

// Kind classifies a classifier error so call sites can apply the matching
// policy: 429 responses are rate limiting, 404 means the model is gone,
// everything else is transient.
func Kind(err error) FailureKind {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusTooManyRequests:
			return FailRateLimited
		case http.StatusNotFound:
			return FailModelNotFound
		}
	}
	return FailTransient
}
