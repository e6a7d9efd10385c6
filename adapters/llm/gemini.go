package llm

import (
	"context"
	"fmt"
	"iter"

	"google.golang.org/genai"

	"github.com/chattykathys/chattykathy/domain"
)

const geminiModel = "gemini-2.0-flash-001"

// GeminiClient streams replies from the Gemini API. The genai client
// picks up GEMINI_API_KEY or GOOGLE_API_KEY from the environment.
type GeminiClient struct {
	client *genai.Client
}

func NewGeminiClient(ctx context.Context) (*GeminiClient, error) {
	client, err := genai.NewClient(
		ctx,
		&genai.ClientConfig{
			HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
		},
	)
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}
	return &GeminiClient{client: client}, nil
}

func (g *GeminiClient) StreamReply(ctx context.Context, systemPrompt string, transcript []domain.ChatMessage) (domain.ReplyStream, error) {
	contents := make([]*genai.Content, len(transcript))
	for i, m := range transcript {
		role := genai.RoleModel
		if m.Role == domain.UserRole {
			role = genai.RoleUser
		}
		contents[i] = &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: m.Content}},
		}
	}

	config := &genai.GenerateContentConfig{
		MaxOutputTokens:   maxReplyTokens,
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: systemPrompt}}},
	}

	next, stop := iter.Pull2(g.client.Models.GenerateContentStream(ctx, geminiModel, contents, config))
	return &geminiStream{next: next, stop: stop}, nil
}

type geminiStream struct {
	next    func() (*genai.GenerateContentResponse, error, bool)
	stop    func()
	current string
	err     error
}

func (s *geminiStream) Next() bool {
	if s.err != nil {
		return false
	}
	for {
		resp, err, ok := s.next()
		if !ok {
			return false
		}
		if err != nil {
			s.err = err
			return false
		}
		if text := resp.Text(); text != "" {
			s.current = text
			return true
		}
	}
}

func (s *geminiStream) Current() string { return s.current }

func (s *geminiStream) Err() error { return s.err }

func (s *geminiStream) Close() error {
	s.stop()
	return nil
}
