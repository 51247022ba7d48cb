// Package bedrock implements llms.Model on top of the Bedrock Converse API.
package bedrock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/sevigo/ragbench/llms"
	"github.com/sevigo/ragbench/schema"
)

var (
	ErrInvalidModel = errors.New("bedrock: invalid model specified")
	ErrNoMessages   = errors.New("bedrock: no messages to send")
	ErrNoContent    = errors.New("bedrock: no content generated")
)

// Converser is the subset of *bedrockruntime.Client used by LLM.
type Converser interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

var _ Converser = (*bedrockruntime.Client)(nil)

type LLM struct {
	client  Converser
	options options
	logger  *slog.Logger
}

var _ llms.Model = (*LLM)(nil)

// New wraps an existing Bedrock runtime client.
func New(client Converser, opts ...Option) (*LLM, error) {
	o := applyOptions(opts...)
	if o.model == "" {
		return nil, ErrInvalidModel
	}
	return &LLM{
		client:  client,
		options: o,
		logger:  o.logger.With("component", "bedrock_llm", "model", o.model),
	}, nil
}

func (b *LLM) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, b, prompt, options...)
}

func (b *LLM) GenerateContent(
	ctx context.Context,
	messages []schema.MessageContent,
	options ...llms.CallOption,
) (*schema.ContentResponse, error) {
	start := time.Now()
	callOpts := llms.NewCallOptions(options...)

	input, err := b.buildInput(messages, callOpts)
	if err != nil {
		return nil, err
	}

	out, err := b.client.Converse(ctx, input)
	duration := time.Since(start)
	if err != nil {
		b.logger.ErrorContext(ctx, "Bedrock converse failed", "error", err, "duration", duration)
		return nil, fmt.Errorf("bedrock converse: %w", err)
	}

	msg, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return nil, ErrNoContent
	}
	var text strings.Builder
	for _, block := range msg.Value.Content {
		if t, ok := block.(*types.ContentBlockMemberText); ok {
			text.WriteString(t.Value)
		}
	}
	if text.Len() == 0 {
		return nil, ErrNoContent
	}

	if callOpts.StreamingFunc != nil {
		if err := callOpts.StreamingFunc(ctx, []byte(text.String())); err != nil {
			return nil, fmt.Errorf("streaming function returned an error: %w", err)
		}
	}

	info := map[string]any{
		"Duration": duration,
		"Model":    aws.ToString(input.ModelId),
	}
	if out.Usage != nil {
		info["PromptTokens"] = aws.ToInt32(out.Usage.InputTokens)
		info["CompletionTokens"] = aws.ToInt32(out.Usage.OutputTokens)
		info["TotalTokens"] = aws.ToInt32(out.Usage.TotalTokens)
	}
	b.logger.DebugContext(ctx, "Bedrock converse completed", "duration", duration, "stop_reason", out.StopReason)

	return &schema.ContentResponse{
		Choices: []*schema.ContentChoice{
			{
				Content:        text.String(),
				StopReason:     string(out.StopReason),
				GenerationInfo: info,
			},
		},
	}, nil
}

func (b *LLM) buildInput(messages []schema.MessageContent, callOpts llms.CallOptions) (*bedrockruntime.ConverseInput, error) {
	model := b.options.model
	if callOpts.Model != "" {
		model = callOpts.Model
	}
	temperature := b.options.temperature
	if callOpts.Temperature > 0 {
		temperature = callOpts.Temperature
	}
	maxTokens := b.options.maxTokens
	if callOpts.MaxTokens > 0 {
		maxTokens = callOpts.MaxTokens
	}

	input := &bedrockruntime.ConverseInput{
		ModelId: aws.String(model),
		InferenceConfig: &types.InferenceConfiguration{
			Temperature: aws.Float32(float32(temperature)),
			MaxTokens:   aws.Int32(int32(maxTokens)),
		},
	}

	for _, m := range messages {
		text := m.GetTextContent()
		switch m.Role {
		case schema.ChatMessageTypeSystem:
			input.System = append(input.System, &types.SystemContentBlockMemberText{Value: text})
		case schema.ChatMessageTypeAI:
			input.Messages = append(input.Messages, textMessage(types.ConversationRoleAssistant, text))
		default:
			input.Messages = append(input.Messages, textMessage(types.ConversationRoleUser, text))
		}
	}
	if len(input.Messages) == 0 {
		return nil, ErrNoMessages
	}
	if callOpts.JSONMode {
		// Converse has no response format switch.
		input.System = append(input.System, &types.SystemContentBlockMemberText{
			Value: "Respond with a single JSON document and nothing else.",
		})
	}
	return input, nil
}

func textMessage(role types.ConversationRole, text string) types.Message {
	return types.Message{
		Role:    role,
		Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: text}},
	}
}
