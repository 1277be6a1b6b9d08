package gemini

import (
	"context"
	"fmt"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/ira-app/sally-api/internal/config"
	"github.com/ira-app/sally-api/internal/llm"
	"google.golang.org/api/option"
)

type Provider struct {
	apiKey string
	model  string
}

func NewProvider(cfg config.GeminiConfig) *Provider {
	return &Provider{
		apiKey: cfg.APIKey,
		model:  cfg.Model,
	}
}

func (p *Provider) Name() string {
	return "gemini"
}

func (p *Provider) IsConfigured() bool {
	return p.apiKey != ""
}

func (p *Provider) DefaultModel() string {
	if p.model != "" {
		return p.model
	}
	return "gemini-2.0-flash"
}

func (p *Provider) Generate(ctx context.Context, req llm.Request) (*llm.Reply, error) {
	if !p.IsConfigured() {
		return nil, fmt.Errorf("gemini provider is not configured (missing API key)")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(p.apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	defer client.Close()

	model := client.GenerativeModel(p.DefaultModel())

	// Generation settings tuned for conversational replies
	var (
		temperature     float32 = 0.7
		topP            float32 = 0.95
		topK            int32   = 40
		maxOutputTokens int32   = 1000
	)
	model.Temperature = &temperature
	model.TopP = &topP
	model.TopK = &topK
	model.MaxOutputTokens = &maxOutputTokens

	chat := model.StartChat()
	chat.History = make([]*genai.Content, 0, len(req.History))
	for _, h := range req.History {
		chat.History = append(chat.History, &genai.Content{
			Role:  h.Role,
			Parts: []genai.Part{genai.Text(h.Text)},
		})
	}

	start := time.Now()
	resp, err := chat.SendMessage(ctx, genai.Text(req.Prompt))
	latency := time.Since(start).Milliseconds()

	if err != nil {
		return nil, fmt.Errorf("gemini generation error: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("empty response from gemini")
	}

	var output string
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			output += string(text)
		}
	}

	tokensUsed := 0
	if resp.UsageMetadata != nil {
		tokensUsed = int(resp.UsageMetadata.TotalTokenCount)
	}

	return &llm.Reply{
		Text:       output,
		TokensUsed: tokensUsed,
		LatencyMs:  latency,
	}, nil
}
