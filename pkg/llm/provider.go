package llm

import (
	"context"
	"fmt"
	"os"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/adronaut/strategist-core/internal/apperrors"
	"github.com/adronaut/strategist-core/internal/config"
)

// Provider is the gateway's single-attempt, provider-specific collaborator.
// It owns request/response serialization for one backend; the gateway owns
// temperature lookup, retries policy (none), and metrics. The gateway
// returns raw text; callers extract JSON with ExtractJSON.
type Provider interface {
	Complete(ctx context.Context, prompt string, model string, temperature float32, maxTokens int) (string, error)
}

// NewProvider builds the configured Provider for cfg.Provider. Supported
// values are "anthropic", "bedrock", and "langchain" (OpenAI-compatible,
// used for self-hosted or third-party endpoints via langchaingo).
func NewProvider(cfg config.LLMConfig) (Provider, error) {
	switch cfg.Provider {
	case "anthropic":
		return newAnthropicProvider(cfg)
	case "bedrock":
		return newBedrockProvider(cfg)
	case "langchain":
		return newLangChainProvider(cfg)
	default:
		return nil, apperrors.NewValidationError(fmt.Sprintf("unsupported provider: %s", cfg.Provider))
	}
}

// AnthropicProvider calls the Anthropic Messages API directly via the
// official SDK.
type AnthropicProvider struct {
	client anthropic.Client
	cfg    config.LLMConfig
}

func newAnthropicProvider(cfg config.LLMConfig) (*AnthropicProvider, error) {
	apiKey := os.Getenv(cfg.APIKeyEnv)
	if apiKey == "" {
		return nil, apperrors.NewValidationError(fmt.Sprintf("missing API key in env var %s", cfg.APIKeyEnv))
	}
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &AnthropicProvider{client: client, cfg: cfg}, nil
}

func (p *AnthropicProvider) Complete(ctx context.Context, prompt, model string, temperature float32, maxTokens int) (string, error) {
	resp, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(model),
		MaxTokens:   int64(maxTokens),
		Temperature: anthropic.Float(float64(temperature)),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrorTypeProvider, "anthropic completion failed")
	}
	if len(resp.Content) == 0 {
		return "", apperrors.NewProviderError("anthropic response contained no content blocks")
	}
	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	if text == "" {
		return "", apperrors.NewProviderError("anthropic response contained no text")
	}
	return text, nil
}

// BedrockProvider calls a Claude model hosted on AWS Bedrock.
type BedrockProvider struct {
	client *bedrockruntime.Client
	cfg    config.LLMConfig
}

func newBedrockProvider(cfg config.LLMConfig) (*BedrockProvider, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background())
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeProvider, "loading AWS config for bedrock")
	}
	client := bedrockruntime.NewFromConfig(awsCfg, func(o *bedrockruntime.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return &BedrockProvider{client: client, cfg: cfg}, nil
}

func (p *BedrockProvider) Complete(ctx context.Context, prompt, model string, temperature float32, maxTokens int) (string, error) {
	body := fmt.Sprintf(`{"anthropic_version":"bedrock-2023-05-31","max_tokens":%d,"temperature":%.3f,"messages":[{"role":"user","content":%q}]}`,
		maxTokens, temperature, prompt)
	out, err := p.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(model),
		ContentType: aws.String("application/json"),
		Body:        []byte(body),
	})
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrorTypeProvider, "bedrock InvokeModel failed")
	}
	extracted, err := ExtractJSON(string(out.Body))
	if err != nil {
		return "", apperrors.NewProviderError("bedrock response body was not valid JSON")
	}
	content, _ := extracted["content"].([]interface{})
	var text string
	for _, block := range content {
		if m, ok := block.(map[string]interface{}); ok {
			if t, ok := m["text"].(string); ok {
				text += t
			}
		}
	}
	if text == "" {
		return "", apperrors.NewProviderError("bedrock response contained no text")
	}
	return text, nil
}

// LangChainProvider routes through langchaingo's OpenAI-compatible client,
// used for self-hosted or third-party endpoints that speak that protocol.
type LangChainProvider struct {
	model llms.Model
}

func newLangChainProvider(cfg config.LLMConfig) (*LangChainProvider, error) {
	apiKey := os.Getenv(cfg.APIKeyEnv)
	opts := []openai.Option{openai.WithModel(cfg.Model)}
	if cfg.Endpoint != "" {
		opts = append(opts, openai.WithBaseURL(cfg.Endpoint))
	}
	if apiKey != "" {
		opts = append(opts, openai.WithToken(apiKey))
	}
	model, err := openai.New(opts...)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeProvider, "constructing langchaingo client")
	}
	return &LangChainProvider{model: model}, nil
}

func (p *LangChainProvider) Complete(ctx context.Context, prompt, model string, temperature float32, maxTokens int) (string, error) {
	resp, err := p.model.GenerateContent(ctx, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}, llms.WithTemperature(float64(temperature)), llms.WithMaxTokens(maxTokens))
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrorTypeProvider, "langchain completion failed")
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Content == "" {
		return "", apperrors.NewProviderError("langchain response contained no choices")
	}
	return resp.Choices[0].Content, nil
}
