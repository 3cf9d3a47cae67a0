package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/meikuraledutech/interview"
	"github.com/meikuraledutech/interview/gemini"
	"github.com/meikuraledutech/interview/ollama"
	"github.com/meikuraledutech/interview/openai"
	"github.com/meikuraledutech/interview/persona"
	"github.com/meikuraledutech/interview/scripted"
)

func newProvider(ctx context.Context, cfg interview.AppConfig) (interview.Provider, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "gemini":
		return gemini.New(ctx, cfg.GeminiAPI, cfg.ModelID)
	case "openai":
		return openai.New(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, modelFor(cfg))
	case "ollama":
		return ollama.New(cfg.OllamaHost, modelFor(cfg))
	case "scripted":
		return scripted.New(), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}

// modelFor drops the Gemini default model id when another provider is selected,
// letting that provider fall back to its own default.
func modelFor(cfg interview.AppConfig) string {
	if cfg.ModelID == gemini.DefaultModel {
		return ""
	}
	return cfg.ModelID
}

func newPersonaStore(cfg interview.AppConfig) interview.PersonaStore {
	if cfg.PersonaDir != "" {
		return persona.NewDir(cfg.PersonaDir)
	}
	return persona.Default()
}
