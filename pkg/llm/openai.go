package llm

import (
	"context"
	"errors"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/conciergelabs/concierge/pkg/config"
)

// openAICompleter issues chat completions with the JSON object response
// format forced on, so the model cannot reply with prose.
type openAICompleter struct {
	client      openai.Client
	model       string
	temperature float64
	maxTokens   int64
}

func newOpenAICompleter(cfg *config.Settings) *openAICompleter {
	return &openAICompleter{
		client: openai.NewClient(
			option.WithAPIKey(cfg.OpenAIAPIKey),
			option.WithRequestTimeout(cfg.LLMTimeout),
		),
		model:       cfg.LLMModel,
		temperature: cfg.LLMTemperature,
		maxTokens:   int64(cfg.LLMMaxTokens),
	}
}

func (o *openAICompleter) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	completion, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: shared.ChatModel(o.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
		Temperature: openai.Float(o.temperature),
		MaxTokens:   openai.Int(o.maxTokens),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
	})
	if err != nil {
		return "", err
	}
	if len(completion.Choices) == 0 {
		return "", errors.New("completion returned no choices")
	}
	return completion.Choices[0].Message.Content, nil
}
