// Package openai implements interview.Provider on the OpenAI chat completions
// API using json_schema structured outputs.
package openai

import (
	"context"
	"errors"
	"fmt"

	"github.com/meikuraledutech/interview"
	sdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const DefaultModel = "gpt-4o-mini"

type completeFunc func(ctx context.Context, params sdk.ChatCompletionNewParams) (*sdk.ChatCompletion, error)

// Provider calls chat completions with a JSON schema response format.
type Provider struct {
	model    string
	complete completeFunc
}

// New creates a Provider. baseURL may point at any OpenAI-compatible endpoint.
// SDK-level retries are disabled; interview.Client owns the retry policy.
func New(apiKey, baseURL, model string) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: OPENAI_API_KEY must be set")
	}
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := sdk.NewClient(opts...)
	return newProvider(model, func(ctx context.Context, params sdk.ChatCompletionNewParams) (*sdk.ChatCompletion, error) {
		return client.Chat.Completions.New(ctx, params)
	}), nil
}

func newProvider(model string, complete completeFunc) *Provider {
	if model == "" {
		model = DefaultModel
	}
	return &Provider{model: model, complete: complete}
}

func (p *Provider) Name() string { return "openai" }

// Generate makes a single chat completion call.
func (p *Provider) Generate(ctx context.Context, req interview.Request) (*interview.Result, error) {
	resp, err := p.complete(ctx, p.buildParams(req))
	if err != nil {
		var apiErr *sdk.Error
		if errors.As(err, &apiErr) {
			return nil, &interview.StatusError{Code: apiErr.StatusCode, Err: fmt.Errorf("openai: %w", err)}
		}
		return nil, fmt.Errorf("openai: chat completion: %w", err)
	}

	result := &interview.Result{
		Usage: interview.Usage{
			PromptTokens:   int(resp.Usage.PromptTokens),
			ResponseTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:    int(resp.Usage.TotalTokens),
		},
	}
	if len(resp.Choices) > 0 {
		result.Content = resp.Choices[0].Message.Content
	}
	return result, nil
}

func (p *Provider) buildParams(req interview.Request) sdk.ChatCompletionNewParams {
	messages := make([]sdk.ChatCompletionMessageParamUnion, 0, len(req.History)+1)
	messages = append(messages, sdk.SystemMessage(req.Instruction))
	for _, msg := range req.History {
		if msg.Role == interview.MessageRoleAssistant {
			messages = append(messages, sdk.AssistantMessage(msg.Content))
			continue
		}
		messages = append(messages, sdk.UserMessage(msg.Content))
	}

	name := "interview_question"
	if req.Schema == interview.SchemaReview {
		name = "interview_review"
	}

	params := sdk.ChatCompletionNewParams{
		Model:    sdk.ChatModel(p.model),
		Messages: messages,
		ResponseFormat: sdk.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &sdk.ResponseFormatJSONSchemaParam{
				JSONSchema: sdk.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   name,
					Schema: interview.JSONSchema(req.Schema),
				},
			},
		},
	}
	if req.Temperature != nil {
		params.Temperature = sdk.Float(float64(*req.Temperature))
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = sdk.Int(int64(req.MaxTokens))
	}
	return params
}

// Ensure Provider implements interview.Provider at compile time.
var _ interview.Provider = (*Provider)(nil)
