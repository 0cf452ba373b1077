package llm

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// GeminiCaller issues single creator-detection calls against the Gemini
// API with a JSON response schema constrained to the allow-list.
type GeminiCaller struct {
	client *genai.Client
	model  string
	enum   []string
}

// NewGeminiCaller creates a caller for the given model and allow-list.
func NewGeminiCaller(ctx context.Context, apiKey, model string, allowList []string) (*GeminiCaller, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	enum := make([]string, 0, len(allowList)+1)
	enum = append(enum, noneVerdict)
	enum = append(enum, allowList...)

	return &GeminiCaller{client: client, model: model, enum: enum}, nil
}

// Generate performs one bounded model call and returns the raw JSON reply.
func (g *GeminiCaller) Generate(ctx context.Context, message string) (string, error) {
	config := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr[float32](0),
		CandidateCount:   1,
		ResponseMIMEType: "application/json",
		ResponseSchema: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"creator": {
					Type: genai.TypeString,
					Enum: g.enum,
				},
			},
			Required: []string{"creator"},
		},
	}

	contents := []*genai.Content{
		genai.NewContentFromText(g.prompt(message), genai.RoleUser),
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("empty response from model")
	}
	return text, nil
}

func (g *GeminiCaller) prompt(message string) string {
	choices := strings.Join(g.enum, "|")
	return fmt.Sprintf(`Analyze this user message to identify which creator sent them a discount code.

Message: %q

Respond with JSON in this exact format:
{"creator": "%s"}

Rules:
- Only respond with the name of a known creator OR "none"
- If no creator is mentioned, use "none"
- Match the exact creator name from the list
- Do not make up responses outside the allowed values`, message, choices)
}
