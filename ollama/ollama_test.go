package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/meikuraledutech/interview"
	"github.com/ollama/ollama/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateBuildsChatRequest(t *testing.T) {
	var got *api.ChatRequest
	p := newProvider("", func(_ context.Context, req *api.ChatRequest, fn api.ChatResponseFunc) error {
		got = req
		if err := fn(api.ChatResponse{Message: api.Message{Content: `{"next_question":"Hi?",`}}); err != nil {
			return err
		}
		resp := api.ChatResponse{Message: api.Message{Content: `"face":"curious"}`}, Done: true}
		resp.PromptEvalCount = 40
		resp.EvalCount = 9
		return fn(resp)
	})

	temperature := float32(0.4)
	res, err := p.Generate(context.Background(), interview.Request{
		Instruction: "be pressing",
		History: []interview.Message{
			{Role: interview.MessageRoleUser, Content: "start"},
			{Role: interview.MessageRoleAssistant, Content: "Q1"},
		},
		Schema:      interview.SchemaQuestion,
		MaxTokens:   300,
		Temperature: &temperature,
	})
	require.NoError(t, err)

	assert.Equal(t, DefaultModel, got.Model)
	require.NotNil(t, got.Stream)
	assert.False(t, *got.Stream)
	require.Len(t, got.Messages, 3)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "be pressing", got.Messages[0].Content)
	assert.Equal(t, "assistant", got.Messages[2].Role)
	assert.Equal(t, 300, got.Options["num_predict"])
	assert.InDelta(t, 0.4, got.Options["temperature"], 1e-6)

	var format map[string]any
	require.NoError(t, json.Unmarshal(got.Format, &format))
	assert.Equal(t, "object", format["type"])

	assert.Equal(t, `{"next_question":"Hi?","face":"curious"}`, res.Content)
	assert.Equal(t, interview.Usage{PromptTokens: 40, ResponseTokens: 9, TotalTokens: 49}, res.Usage)
}

func TestGenerateTemperatureOption(t *testing.T) {
	var got *api.ChatRequest
	p := newProvider("", func(_ context.Context, req *api.ChatRequest, fn api.ChatResponseFunc) error {
		got = req
		return fn(api.ChatResponse{Done: true})
	})

	_, err := p.Generate(context.Background(), interview.Request{Instruction: "x"})
	require.NoError(t, err)
	assert.NotContains(t, got.Options, "temperature")

	zero := float32(0)
	_, err = p.Generate(context.Background(), interview.Request{Instruction: "x", Temperature: &zero})
	require.NoError(t, err)
	assert.Equal(t, float32(0), got.Options["temperature"])
}

func TestGenerateWrapsStatusError(t *testing.T) {
	p := newProvider("qwen2.5", func(context.Context, *api.ChatRequest, api.ChatResponseFunc) error {
		return api.StatusError{StatusCode: 500, ErrorMessage: "model crashed"}
	})

	_, err := p.Generate(context.Background(), interview.Request{Instruction: "x"})
	var statusErr *interview.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, 500, statusErr.Code)
}

func TestGeneratePassesThroughOtherErrors(t *testing.T) {
	boom := errors.New("connection refused")
	p := newProvider("", func(context.Context, *api.ChatRequest, api.ChatResponseFunc) error { return boom })

	_, err := p.Generate(context.Background(), interview.Request{Instruction: "x"})
	require.ErrorIs(t, err, boom)
}

func TestNewRejectsBadHost(t *testing.T) {
	_, err := New("not a url", "")
	require.Error(t, err)

	p, err := New("http://localhost:11434", "")
	require.NoError(t, err)
	assert.Equal(t, "ollama", p.Name())
}
