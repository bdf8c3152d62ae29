// Package planner lets a chat model decide which incident tools to call.
package planner

import (
	"context"
	"encoding/json"
	"os"
	"strings"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"
	"go.uber.org/zap"

	"incidentkb/config"
	"incidentkb/internal/port"
	kberrors "incidentkb/pkg/errors"
)

const defaultMaxSteps = 6

// OpenAIPlanner runs a chat completion loop with function calling until the
// model answers without requesting a tool.
type OpenAIPlanner struct {
	client       openaisdk.Client
	model        string
	systemPrompt string
	maxSteps     int
	logger       *zap.Logger
}

// NewOpenAIPlanner builds a planner from cfg. Extra request options are
// appended after the configured ones.
func NewOpenAIPlanner(cfg config.PlannerConfig, logger *zap.Logger, extra ...option.RequestOption) (*OpenAIPlanner, error) {
	if cfg.Provider != "" && cfg.Provider != "openai" {
		return nil, kberrors.New(kberrors.CodePlannerConfigInvalid, "unsupported planner provider",
			kberrors.FieldProvider(cfg.Provider))
	}

	apiKey := os.Getenv(cfg.APIKeyEnv)
	if apiKey == "" && cfg.BaseURL == "" {
		return nil, kberrors.New(kberrors.CodePlannerConfigInvalid, "planner API key not set",
			kberrors.Field("env", cfg.APIKeyEnv))
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	opts = append(opts, extra...)

	maxSteps := cfg.MaxSteps
	if maxSteps <= 0 {
		maxSteps = defaultMaxSteps
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &OpenAIPlanner{
		client:       openaisdk.NewClient(opts...),
		model:        cfg.Model,
		systemPrompt: cfg.SystemPrompt,
		maxSteps:     maxSteps,
		logger:       logger,
	}, nil
}

func (p *OpenAIPlanner) ModelName() string {
	return p.model
}

// Answer sends question with the tool list and executes requested tool calls
// until the model replies with text or the step budget runs out.
func (p *OpenAIPlanner) Answer(ctx context.Context, question string, tools []port.Tool) (string, error) {
	var messages []openaisdk.ChatCompletionMessageParamUnion
	if p.systemPrompt != "" {
		messages = append(messages, openaisdk.SystemMessage(p.systemPrompt))
	}
	messages = append(messages, openaisdk.UserMessage(question))

	params := openaisdk.ChatCompletionNewParams{
		Model: shared.ChatModel(p.model),
		Tools: toolParams(tools),
	}

	for step := 0; step < p.maxSteps; step++ {
		params.Messages = messages
		resp, err := p.client.Chat.Completions.New(ctx, params)
		if err != nil {
			return "", kberrors.Wrap(err, kberrors.CodePlannerUpstreamFailure, "chat completion",
				kberrors.FieldProvider("openai"), kberrors.Field("step", step))
		}
		if len(resp.Choices) == 0 {
			return "", kberrors.New(kberrors.CodePlannerUpstreamFailure, "chat completion returned no choices",
				kberrors.Field("step", step))
		}

		msg := resp.Choices[0].Message
		if len(msg.ToolCalls) == 0 {
			return msg.Content, nil
		}

		messages = append(messages, msg.ToParam())
		for _, call := range msg.ToolCalls {
			output, err := p.invoke(ctx, tools, call.Function.Name, call.Function.Arguments)
			if err != nil {
				return "", err
			}
			messages = append(messages, openaisdk.ToolMessage(output, call.ID))
		}
	}

	return "", kberrors.New(kberrors.CodePlannerStepsExceeded, "planner did not answer within the step budget",
		kberrors.Field("max_steps", p.maxSteps))
}

func (p *OpenAIPlanner) invoke(ctx context.Context, tools []port.Tool, name, arguments string) (string, error) {
	var tool *port.Tool
	for i := range tools {
		if tools[i].Name == name {
			tool = &tools[i]
			break
		}
	}
	if tool == nil {
		p.logger.Warn("model requested unknown tool", zap.String("tool", name))
		return "Unknown tool: " + name, nil
	}

	input := ToolInput(arguments)
	p.logger.Debug("tool call", zap.String("tool", name), zap.String("input", input))
	return tool.Call(ctx, input)
}

// ToolInput extracts the "input" argument from a function call payload. A
// payload that is not a JSON object is passed through as-is.
func ToolInput(arguments string) string {
	var args struct {
		Input string `json:"input"`
	}
	if err := json.Unmarshal([]byte(arguments), &args); err != nil {
		return strings.TrimSpace(arguments)
	}
	return args.Input
}

func toolParams(tools []port.Tool) []openaisdk.ChatCompletionToolParam {
	if len(tools) == 0 {
		return nil
	}
	result := make([]openaisdk.ChatCompletionToolParam, 0, len(tools))
	for _, t := range tools {
		result = append(result, openaisdk.ChatCompletionToolParam{
			Function: shared.FunctionDefinitionParam{
				Name:        t.Name,
				Description: param.NewOpt(t.Description),
				Parameters: shared.FunctionParameters{
					"type": "object",
					"properties": map[string]any{
						"input": map[string]any{
							"type":        "string",
							"description": "Search query or incident ID",
						},
					},
					"required": []string{"input"},
				},
			},
		})
	}
	return result
}
