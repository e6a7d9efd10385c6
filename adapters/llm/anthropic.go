package llm

import (
	"context"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"github.com/chattykathys/chattykathy/domain"
)

const anthropicModel = "claude-sonnet-4-20250514"

// AnthropicClient streams replies from the Anthropic Messages API.
// The SDK reads ANTHROPIC_API_KEY from the environment.
type AnthropicClient struct {
	client anthropic.Client
}

func NewAnthropicClient() *AnthropicClient {
	return &AnthropicClient{client: anthropic.NewClient()}
}

func (a *AnthropicClient) StreamReply(ctx context.Context, systemPrompt string, transcript []domain.ChatMessage) (domain.ReplyStream, error) {
	messages := make([]anthropic.MessageParam, 0, len(transcript))
	for _, m := range transcript {
		block := anthropic.NewTextBlock(m.Content)
		if m.Role == domain.UserRole {
			messages = append(messages, anthropic.NewUserMessage(block))
		} else {
			messages = append(messages, anthropic.NewAssistantMessage(block))
		}
	}

	stream := a.client.Messages.NewStreaming(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(anthropicModel),
		MaxTokens: maxReplyTokens,
		System:    []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages:  messages,
	})
	return &anthropicStream{stream: stream}, nil
}

type anthropicStream struct {
	stream  *ssestream.Stream[anthropic.MessageStreamEventUnion]
	current string
}

// Next advances past non-text events (message metadata, block starts,
// stop markers) and stops on the next text delta.
func (s *anthropicStream) Next() bool {
	for s.stream.Next() {
		event := s.stream.Current()
		switch event := event.AsAny().(type) {
		case anthropic.ContentBlockDeltaEvent:
			switch delta := event.Delta.AsAny().(type) {
			case anthropic.TextDelta:
				s.current = delta.Text
				return true
			}
		}
	}
	return false
}

func (s *anthropicStream) Current() string { return s.current }

func (s *anthropicStream) Err() error { return s.stream.Err() }

func (s *anthropicStream) Close() error { return s.stream.Close() }
