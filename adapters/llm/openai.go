package llm

import (
	"context"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/packages/ssestream"

	"github.com/chattykathys/chattykathy/domain"
)

const openaiModel = "gpt-4o"

// OpenAIClient streams replies from the OpenAI chat completions API.
// The SDK reads OPENAI_API_KEY from the environment.
type OpenAIClient struct {
	client *openai.Client
}

func NewOpenAIClient() *OpenAIClient {
	return &OpenAIClient{client: openai.NewClient()}
}

func (o *OpenAIClient) StreamReply(ctx context.Context, systemPrompt string, transcript []domain.ChatMessage) (domain.ReplyStream, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(transcript)+1)
	messages = append(messages, openai.SystemMessage(systemPrompt))
	for _, m := range transcript {
		if m.Role == domain.UserRole {
			messages = append(messages, openai.UserMessage(m.Content))
		} else {
			messages = append(messages, openai.AssistantMessage(m.Content))
		}
	}

	stream := o.client.Chat.Completions.NewStreaming(ctx, openai.ChatCompletionNewParams{
		Model:     openai.F(openaiModel),
		MaxTokens: openai.Int(maxReplyTokens),
		Messages:  openai.F(messages),
	})
	return &openaiStream{stream: stream}, nil
}

type openaiStream struct {
	stream  *ssestream.Stream[openai.ChatCompletionChunk]
	current string
}

// Next skips chunks without text content (role headers, finish chunks).
func (s *openaiStream) Next() bool {
	for s.stream.Next() {
		chunk := s.stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		if text := chunk.Choices[0].Delta.Content; text != "" {
			s.current = text
			return true
		}
	}
	return false
}

func (s *openaiStream) Current() string { return s.current }

func (s *openaiStream) Err() error { return s.stream.Err() }

func (s *openaiStream) Close() error { return s.stream.Close() }
