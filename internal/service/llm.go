package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/sashabaranov/go-openai"

	"github.com/sohamgugale/finrag/internal/config"
)

// LLMClient talks to Anthropic for answers and, when configured, to an
// OpenAI-compatible endpoint for embeddings.
type LLMClient struct {
	client    anthropic.Client
	chatModel string
	maxTokens int

	embed      *openai.Client
	embedModel string
}

func NewLLMClient(cfg *config.Config) *LLMClient {
	l := &LLMClient{
		client:    anthropic.NewClient(option.WithAPIKey(cfg.AnthropicAPIKey)),
		chatModel: cfg.ChatModel,
		maxTokens: cfg.MaxTokens,
	}
	if cfg.EmbeddingsEnabled() {
		oaiCfg := openai.DefaultConfig(cfg.EmbedAPIKey)
		oaiCfg.BaseURL = cfg.EmbedBaseURL
		l.embed = openai.NewClientWithConfig(oaiCfg)
		l.embedModel = cfg.EmbedModel
	}
	return l
}

// Answer asks the chat model to answer the question from the supplied
// context block, citing the sources it used.
func (l *LLMClient) Answer(ctx context.Context, query, contextText string) (string, error) {
	prompt := fmt.Sprintf(
		"Answer based on this context. Cite sources.\n\nContext:\n%s\n\nQuestion: %s\n\nAnswer:",
		contextText, query,
	)

	msg, err := l.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(l.chatModel),
		MaxTokens: int64(l.maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic: %w", err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	answer := strings.TrimSpace(sb.String())
	if answer == "" {
		return "", fmt.Errorf("model %s returned an empty answer", l.chatModel)
	}
	return answer, nil
}

// EmbeddingsEnabled reports whether an embeddings endpoint was configured.
func (l *LLMClient) EmbeddingsEnabled() bool {
	return l.embed != nil
}

// Embedding fetches the embedding vector for text.
func (l *LLMClient) Embedding(ctx context.Context, text string) ([]float32, error) {
	if l.embed == nil {
		return nil, fmt.Errorf("embeddings endpoint not configured")
	}
	resp, err := l.embed.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(l.embedModel),
		Input: []string{text},
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("empty embedding response for model %s", l.embedModel)
	}
	return resp.Data[0].Embedding, nil
}
