package interview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

// Options tune an Engine. Zero values fall back to DefaultConfig.
type Options struct {
	DefaultPersona string
	MaxQuestions   int
	MaxTokens      int
	// Temperature nil means DefaultConfig's; a pointer to 0 asks for greedy sampling.
	Temperature *float32
	// Workers caps concurrent model calls across all sessions.
	Workers  int
	Contexts ContextProvider
	Logger   *slog.Logger
}

// OptionsFromConfig maps an AppConfig onto engine Options.
func OptionsFromConfig(cfg AppConfig) Options {
	return Options{
		DefaultPersona: cfg.DefaultPersona,
		MaxQuestions:   cfg.MaxQuestions,
		MaxTokens:      cfg.MaxTokens,
		Temperature:    &cfg.Temperature,
		Workers:        cfg.Workers,
	}
}

// Engine creates interview sessions and owns what they share:
// the persona store, the setting context source, the model client and the worker pool.
type Engine struct {
	personas PersonaStore
	contexts ContextProvider
	client   *Client
	prompts  PromptBuilder
	pool     *semaphore.Weighted
	opts     Options
	logger   *slog.Logger
	now      func() time.Time
}

// NewEngine wires an Engine.
func NewEngine(personas PersonaStore, client *Client, opts Options) *Engine {
	def := DefaultConfig()
	if opts.DefaultPersona == "" {
		opts.DefaultPersona = def.DefaultPersona
	}
	if opts.MaxQuestions <= 0 {
		opts.MaxQuestions = def.MaxQuestions
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = def.MaxTokens
	}
	if opts.Temperature == nil {
		opts.Temperature = &def.Temperature
	} else {
		temp := *opts.Temperature
		opts.Temperature = &temp
	}
	if opts.Workers <= 0 {
		opts.Workers = def.Workers
	}
	if opts.Contexts == nil {
		opts.Contexts = NoContext{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Engine{
		personas: personas,
		contexts: opts.Contexts,
		client:   client,
		pool:     semaphore.NewWeighted(int64(opts.Workers)),
		opts:     opts,
		logger:   opts.Logger,
		now:      time.Now,
	}
}

// SessionOptions select the persona, question budget and setting of a new session.
type SessionOptions struct {
	PersonaID    string
	MaxQuestions int
	SettingID    string
}

// CreateSession resolves the persona and setting context and returns a session in INIT.
func (e *Engine) CreateSession(ctx context.Context, so SessionOptions) (*Session, error) {
	personaID := strings.ToUpper(strings.TrimSpace(so.PersonaID))
	if personaID == "" {
		personaID = e.opts.DefaultPersona
	}
	maxQuestions := so.MaxQuestions
	if maxQuestions <= 0 {
		maxQuestions = e.opts.MaxQuestions
	}

	persona, err := e.personas.Get(ctx, personaID)
	if err != nil {
		return nil, fmt.Errorf("interview: create session: %w", err)
	}

	var settingContext string
	if so.SettingID != "" {
		settingContext, err = e.contexts.SettingContext(ctx, so.SettingID)
		switch {
		case errors.Is(err, ErrSettingNotFound):
			e.logger.Warn("setting not found, continuing without context", "setting_id", so.SettingID)
			settingContext = ""
		case err != nil:
			return nil, fmt.Errorf("interview: create session: %w", err)
		}
	}

	s := &Session{
		id:                 uuid.New().String(),
		persona:            persona,
		settingID:          so.SettingID,
		instruction:        e.prompts.Instruction(persona, settingContext),
		closingInstruction: e.prompts.ClosingInstruction(persona, settingContext),
		engine:             e,
		lock:               semaphore.NewWeighted(1),
		m:                  newMachine(maxQuestions),
	}
	s.logger = e.logger.With("session_id", s.id, "persona", persona.ID)
	s.logger.Info("session created", "max_questions", maxQuestions, "setting_id", so.SettingID)
	return s, nil
}

// call runs one model request on the bounded worker pool and parses the payload.
func (e *Engine) call(ctx context.Context, req Request) (Parsed, *Result, error) {
	if err := e.pool.Acquire(ctx, 1); err != nil {
		return Parsed{}, nil, ctxFailure(err)
	}
	defer e.pool.Release(1)

	if req.MaxTokens <= 0 {
		req.MaxTokens = e.opts.MaxTokens
	}
	temp := *e.opts.Temperature
	req.Temperature = &temp
	result, err := e.client.Send(ctx, req)
	if err != nil {
		return Parsed{}, nil, err
	}
	return ParseResponse(result.Content), result, nil
}

// ctxFailure maps a context error onto the engine's error taxonomy.
func ctxFailure(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrModelTimeout, err)
	}
	return fmt.Errorf("%w: %w", ErrModelUnavailable, err)
}
