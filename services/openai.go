package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// OpenAIProvider calls an OpenAI-compatible chat completions endpoint.
// SDK retries are off: the fallback provider is the only retry.
type OpenAIProvider struct {
	client openai.Client
}

func NewOpenAIProvider(apiKey, baseURL string) *OpenAIProvider {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &OpenAIProvider{
		client: openai.NewClient(
			option.WithAPIKey(apiKey),
			option.WithBaseURL(baseURL),
			option.WithMaxRetries(0),
			option.WithHTTPClient(&http.Client{Timeout: 3 * time.Minute}),
		),
	}
}

func (p *OpenAIProvider) Name() string {
	return "openai"
}

func (p *OpenAIProvider) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:               openai.ChatModel(req.Model),
		Messages:            []openai.ChatCompletionMessageParamUnion{openai.SystemMessage(req.System)},
		MaxCompletionTokens: openai.Int(int64(req.MaxTokens)),
	}

	var opts []option.RequestOption
	if req.SearchAugmented {
		// search-preview models reject response_format
		opts = append(opts, option.WithJSONSet("web_search_options", map[string]any{}))
	} else {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}

	resp, err := p.client.Chat.Completions.New(ctx, params, opts...)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("openai API error (%d): %s", apiErr.StatusCode, apiErr.Message)
		}
		return "", fmt.Errorf("openai request failed: %w", err)
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", errors.New("empty response from openai")
	}
	return resp.Choices[0].Message.Content, nil
}
