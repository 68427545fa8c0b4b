// Package anthropic sends structured completions to Claude models through the
// Anthropic Messages API, either directly or hosted on AWS Bedrock.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/bedrock"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/aws/aws-sdk-go-v2/aws"

	"github.com/efebarandurmaz/llmfactory/internal/llm"
)

// defaultMaxTokens applies when neither the settings nor the caller set a
// limit; the Messages API requires one.
const defaultMaxTokens = 4096

// Client implements llm.Transport for the Messages API.
type Client struct {
	name   string
	client sdk.Client
}

// New creates a client for the public Anthropic API. An empty baseURL keeps
// the SDK default. Extra SDK options are applied last.
func New(apiKey, baseURL string, opts ...option.RequestOption) *Client {
	base := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		base = append(base, option.WithBaseURL(baseURL))
	}
	return &Client{
		name:   "anthropic",
		client: sdk.NewClient(append(base, opts...)...),
	}
}

// NewBedrock creates a client that reaches Claude through Bedrock using cfg
// for region and credentials.
func NewBedrock(cfg aws.Config, opts ...option.RequestOption) *Client {
	return &Client{
		name:   "bedrock",
		client: sdk.NewClient(append([]option.RequestOption{bedrock.WithConfig(cfg)}, opts...)...),
	}
}

func (c *Client) Name() string { return c.name }

// buildParams maps a merged request onto MessageNewParams for req.Mode.
func buildParams(req *llm.ChatRequest) (sdk.MessageNewParams, error) {
	system, turns := llm.SplitSystem(req.Messages)

	maxTokens := defaultMaxTokens
	if req.MaxTokens != nil {
		maxTokens = *req.MaxTokens
	}

	params := sdk.MessageNewParams{
		Model:       sdk.Model(req.Model),
		MaxTokens:   int64(maxTokens),
		Temperature: sdk.Float(req.Temperature),
	}

	for _, m := range turns {
		block := sdk.NewTextBlock(m.Content)
		if m.Role == llm.RoleAssistant {
			params.Messages = append(params.Messages, sdk.NewAssistantMessage(block))
		} else {
			params.Messages = append(params.Messages, sdk.NewUserMessage(block))
		}
	}

	if req.Response != nil {
		switch req.Mode {
		case llm.ModeTools:
			tool := sdk.ToolParam{
				Name: req.Response.Name,
				InputSchema: sdk.ToolInputSchemaParam{
					Properties: req.Response.Schema.Properties,
					Required:   req.Response.Schema.Required,
				},
			}
			desc := req.Response.Description
			if desc == "" {
				desc = fmt.Sprintf("Correctly extracted `%s` with all the required parameters with correct types", req.Response.Name)
			}
			tool.Description = sdk.String(desc)
			params.Tools = []sdk.ToolUnionParam{{OfTool: &tool}}
			params.ToolChoice = sdk.ToolChoiceUnionParam{OfTool: &sdk.ToolChoiceToolParam{Name: req.Response.Name}}
		case llm.ModeJSON:
			instructions, err := llm.SchemaInstructions(req.Response)
			if err != nil {
				return params, err
			}
			if system != "" {
				system = instructions + "\n\n" + system
			} else {
				system = instructions
			}
		default:
			return params, fmt.Errorf("mode %q is not supported by the Messages API", req.Mode)
		}
	}

	if system != "" {
		params.System = []sdk.TextBlockParam{{Text: system}}
	}
	return params, nil
}

// Send implements llm.Transport. In tool mode the reply content is the raw
// input of the forced tool call; otherwise it is the concatenated text blocks.
func (c *Client) Send(ctx context.Context, req *llm.ChatRequest) (*llm.Response, error) {
	params, err := buildParams(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.name, err)
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.name, err)
	}

	var (
		text     strings.Builder
		toolArgs json.RawMessage
	)
	for _, block := range msg.Content {
		switch block.Type {
		case "tool_use":
			if req.Response != nil && block.Name == req.Response.Name {
				toolArgs = block.Input
			}
		case "text":
			text.WriteString(block.Text)
		}
	}

	content := text.String()
	if toolArgs != nil {
		content = string(toolArgs)
	}

	return &llm.Response{
		Content:      content,
		Model:        string(msg.Model),
		InputTokens:  int(msg.Usage.InputTokens),
		OutputTokens: int(msg.Usage.OutputTokens),
		StopReason:   string(msg.StopReason),
	}, nil
}
