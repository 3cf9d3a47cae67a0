// Package ollama implements interview.Provider on a local Ollama server,
// constraining output with the format field.
package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/meikuraledutech/interview"
	"github.com/ollama/ollama/api"
)

const DefaultModel = "llama3.1"

type chatFunc func(ctx context.Context, req *api.ChatRequest, fn api.ChatResponseFunc) error

// OllamaProvider implements interview.Provider for Ollama.
type OllamaProvider struct {
	model string
	chat  chatFunc
}

// New creates a new Ollama provider.
// host is the Ollama server URL (e.g., "http://localhost:11434").
func New(host, modelName string) (*OllamaProvider, error) {
	base, err := url.Parse(host)
	if err != nil || base.Host == "" {
		return nil, fmt.Errorf("ollama: invalid host %q", host)
	}
	client := api.NewClient(base, http.DefaultClient)
	return newProvider(modelName, client.Chat), nil
}

func newProvider(modelName string, chat chatFunc) *OllamaProvider {
	if modelName == "" {
		modelName = DefaultModel
	}
	return &OllamaProvider{model: modelName, chat: chat}
}

func (p *OllamaProvider) Name() string { return "ollama" }

// Generate sends the conversation to Ollama and returns the non-streamed reply.
func (p *OllamaProvider) Generate(ctx context.Context, req interview.Request) (*interview.Result, error) {
	format, err := json.Marshal(interview.JSONSchema(req.Schema))
	if err != nil {
		return nil, fmt.Errorf("ollama: marshal schema: %w", err)
	}

	messages := make([]api.Message, 0, len(req.History)+1)
	messages = append(messages, api.Message{Role: "system", Content: req.Instruction})
	for _, msg := range req.History {
		messages = append(messages, api.Message{Role: msg.Role, Content: msg.Content})
	}

	options := map[string]any{}
	if req.Temperature != nil {
		options["temperature"] = *req.Temperature
	}
	if req.MaxTokens > 0 {
		options["num_predict"] = req.MaxTokens
	}

	stream := false
	chatReq := &api.ChatRequest{
		Model:    p.model,
		Messages: messages,
		Format:   format,
		Stream:   &stream,
		Options:  options,
	}

	var (
		content strings.Builder
		usage   interview.Usage
	)
	fn := func(resp api.ChatResponse) error {
		content.WriteString(resp.Message.Content)
		if resp.Done {
			usage.PromptTokens = resp.PromptEvalCount
			usage.ResponseTokens = resp.EvalCount
			usage.TotalTokens = resp.PromptEvalCount + resp.EvalCount
		}
		return nil
	}

	if err := p.chat(ctx, chatReq, fn); err != nil {
		var statusErr api.StatusError
		if errors.As(err, &statusErr) {
			return nil, &interview.StatusError{Code: statusErr.StatusCode, Err: fmt.Errorf("ollama: %w", err)}
		}
		return nil, fmt.Errorf("ollama: chat: %w", err)
	}

	return &interview.Result{Content: content.String(), Usage: usage}, nil
}

// Ensure OllamaProvider implements interview.Provider at compile time.
var _ interview.Provider = (*OllamaProvider)(nil)
