// Package llm wraps the chat-completions endpoint used for summaries, chat
// replies, and intent classification.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// ErrUpstream marks failures reported by the LLM service itself, as opposed
// to local errors. Callers branch on it to surface upstream_failure.
var ErrUpstream = errors.New("llm upstream failure")

// Message is one conversational turn.
type Message struct {
	Role    string // "user" or "assistant"
	Content string
}

// Client is a thin chat-completions client bound to one model.
type Client struct {
	client oai.Client
	model  string
}

// New constructs a Client against an OpenAI-compatible endpoint.
func New(baseURL, apiKey, model string, timeout time.Duration) (*Client, error) {
	if model == "" {
		return nil, fmt.Errorf("llm: model must not be empty")
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(baseURL))
	}
	if timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: timeout,
		}))
	}

	return &Client{client: oai.NewClient(reqOpts...), model: model}, nil
}

// Complete runs one chat completion: the task's system prompt, the given
// history, and returns the assistant text.
func (c *Client) Complete(ctx context.Context, task string, history []Message) (string, error) {
	messages := []oai.ChatCompletionMessageParamUnion{
		oai.SystemMessage(PromptFor(task)),
	}
	for _, m := range history {
		switch m.Role {
		case "assistant":
			messages = append(messages, oai.AssistantMessage(m.Content))
		default:
			messages = append(messages, oai.UserMessage(m.Content))
		}
	}

	resp, err := c.client.Chat.Completions.New(ctx, oai.ChatCompletionNewParams{
		Model:    shared.ChatModel(c.model),
		Messages: messages,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrUpstream, task, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: %s: empty choices in response", ErrUpstream, task)
	}
	return resp.Choices[0].Message.Content, nil
}
