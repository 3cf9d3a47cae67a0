package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/meikuraledutech/interview"
	"google.golang.org/genai"
)

const DefaultModel = "gemini-2.5-flash"

type generateFunc func(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)

// GeminiProvider implements interview.Provider using the Gemini API with
// schema-constrained JSON output.
type GeminiProvider struct {
	modelID  string
	generate generateFunc
}

// New creates a new GeminiProvider.
func New(ctx context.Context, apiKey, modelID string) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: GEMINI_API must be set")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return newProvider(modelID, client.Models.GenerateContent), nil
}

func newProvider(modelID string, generate generateFunc) *GeminiProvider {
	if modelID == "" {
		modelID = DefaultModel
	}
	return &GeminiProvider{modelID: modelID, generate: generate}
}

func (g *GeminiProvider) Name() string { return "gemini" }

// Generate makes a single generateContent call.
func (g *GeminiProvider) Generate(ctx context.Context, req interview.Request) (*interview.Result, error) {
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(req.Instruction, genai.RoleUser),
		ResponseMIMEType:  "application/json",
		ResponseSchema:    schemaFor(req.Schema),
	}
	if req.Temperature != nil {
		temp := *req.Temperature
		cfg.Temperature = &temp
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}

	res, err := g.generate(ctx, g.modelID, buildContents(req.History), cfg)
	if err != nil {
		return nil, wrapError(err)
	}
	return parseResponse(res), nil
}

func buildContents(history []interview.Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(history))
	for _, msg := range history {
		role := genai.Role(genai.RoleUser)
		if msg.Role == interview.MessageRoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(msg.Content, role))
	}
	return contents
}

// parseResponse extracts the non-thought text of the first candidate. A blocked or
// empty candidate yields empty content; the response parser deals with that.
func parseResponse(res *genai.GenerateContentResponse) *interview.Result {
	result := &interview.Result{}
	if res == nil {
		return result
	}

	if len(res.Candidates) > 0 && res.Candidates[0].Content != nil {
		var b strings.Builder
		for _, part := range res.Candidates[0].Content.Parts {
			if part == nil || part.Thought {
				continue
			}
			b.WriteString(part.Text)
		}
		result.Content = b.String()
	}

	if u := res.UsageMetadata; u != nil {
		result.Usage = interview.Usage{
			PromptTokens:   int(u.PromptTokenCount),
			ResponseTokens: int(u.CandidatesTokenCount),
			TotalTokens:    int(u.TotalTokenCount),
			ThoughtTokens:  int(u.ThoughtsTokenCount),
		}
	}
	return result
}

// wrapError attaches the HTTP status so the client can tell 5xx from 4xx.
func wrapError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &interview.StatusError{Code: apiErr.Code, Err: fmt.Errorf("gemini: %w", err)}
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return &interview.StatusError{Code: apiErrPtr.Code, Err: fmt.Errorf("gemini: %w", err)}
	}
	return fmt.Errorf("gemini: generate content: %w", err)
}

func schemaFor(kind interview.SchemaKind) *genai.Schema {
	if kind == interview.SchemaReview {
		return reviewSchema()
	}
	nullable := true
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"sequence": {
				Type:        genai.TypeInteger,
				Description: "Question order, starting at 1.",
			},
			"next_question": {
				Type:        genai.TypeString,
				Description: "Reaction to the previous answer followed by the next interview question.",
			},
			"face": {
				Type:        genai.TypeString,
				Description: "Interviewer facial expression.",
				Enum:        interview.ExpressionNames(),
			},
			"before_user_answer": {
				Type:        genai.TypeString,
				Description: "The candidate's previous answer, copied verbatim.",
				Nullable:    &nullable,
			},
			"is_followup": {
				Type:        genai.TypeBoolean,
				Description: "True when probing the previous answer further, false for a new topic.",
			},
			"fin": {
				Type:        genai.TypeBoolean,
				Description: "True only when the interview should end now.",
			},
		},
		Required:         []string{"next_question", "face"},
		PropertyOrdering: []string{"sequence", "next_question", "face", "before_user_answer", "is_followup", "fin"},
	}
}

func reviewSchema() *genai.Schema {
	minScore, maxScore := 0.0, 100.0
	scores := make(map[string]*genai.Schema, len(interview.ReviewScoreTypes))
	for _, st := range interview.ReviewScoreTypes {
		scores[st] = &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"score":      {Type: genai.TypeInteger, Minimum: &minScore, Maximum: &maxScore},
				"evaluation": {Type: genai.TypeString},
			},
			Required: []string{"score", "evaluation"},
		}
	}
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"overall_review": {Type: genai.TypeString},
			"scores": {
				Type:       genai.TypeObject,
				Properties: scores,
				Required:   interview.ReviewScoreTypes,
			},
		},
		Required: []string{"overall_review", "scores"},
	}
}

// Ensure GeminiProvider implements interview.Provider at compile time.
var _ interview.Provider = (*GeminiProvider)(nil)
