// Package ai implements reply generators for AI rooms.
package ai

import (
	"context"
	"fmt"
	"strings"

	"linechat/internal/server/store"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	DefaultModel     = "claude-3-5-haiku-latest"
	defaultMaxTokens = 512
)

// DefaultRooms are created at server startup when none are configured.
var DefaultRooms = []string{
	"AI Programming",
	"AI Psychology",
	"AI Doodle",
	"AI Ideas",
	"AI Study",
}

// Canned answers without any external service. It is used when no API key
// is configured.
type Canned struct{}

func (Canned) Reply(ctx context.Context, room string, history []store.Message) (string, error) {
	if len(history) == 0 {
		return "", nil
	}
	last := history[len(history)-1]
	topic := strings.TrimSpace(strings.TrimPrefix(room, "AI"))
	if topic == "" {
		topic = room
	}
	return fmt.Sprintf("@%s that's an interesting thought about %s. %s", last.Author, strings.ToLower(topic), followUp(last.Content)), nil
}

func followUp(content string) string {
	switch {
	case strings.HasSuffix(strings.TrimSpace(content), "?"):
		return "What have you tried so far?"
	case len(content) < 20:
		return "Could you say a bit more?"
	default:
		return "Which part matters most to you?"
	}
}

// Anthropic answers through the Anthropic messages API.
type Anthropic struct {
	client anthropic.Client
	model  string
}

func NewAnthropic(apiKey, model string) (*Anthropic, error) {
	key := strings.TrimSpace(apiKey)
	if key == "" {
		return nil, fmt.Errorf("anthropic responder requires an API key")
	}
	if strings.TrimSpace(model) == "" {
		model = DefaultModel
	}
	return &Anthropic{
		client: anthropic.NewClient(option.WithAPIKey(key)),
		model:  model,
	}, nil
}

func (a *Anthropic) Reply(ctx context.Context, room string, history []store.Message) (string, error) {
	messages := conversation(history)
	if len(messages) == 0 {
		return "", nil
	}

	msg, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: defaultMaxTokens,
		System:    []anthropic.TextBlockParam{{Text: systemPrompt(room)}},
		Messages:  messages,
	})
	if err != nil {
		return "", fmt.Errorf("anthropic completion failed: %w", err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type != "text" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(block.Text)
	}
	return strings.TrimSpace(sb.String()), nil
}

func systemPrompt(room string) string {
	return fmt.Sprintf("You are the resident assistant of the chat room %q. "+
		"Users speak as \"name: text\". Answer the latest message briefly, in plain text, in at most three sentences.", room)
}

// conversation maps the room log to alternating turns. The conversation
// must open with a user turn, so leading AI messages are skipped.
func conversation(history []store.Message) []anthropic.MessageParam {
	var out []anthropic.MessageParam
	for _, m := range history {
		if m.Author == store.AIAuthor {
			if len(out) == 0 {
				continue
			}
			out = append(out, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
			continue
		}
		out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Author+": "+m.Content)))
	}
	return out
}
