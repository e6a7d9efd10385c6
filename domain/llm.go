package domain

import "context"

// Llm abstracts any streaming chat/LLM provider.
type Llm interface {
	// StreamReply opens a model completion for the given persona prompt and
	// conversation transcript and returns the reply as incremental fragments.
	StreamReply(ctx context.Context, systemPrompt string, transcript []ChatMessage) (ReplyStream, error)
}

// ReplyStream is a single-use pull iterator over reply fragments.
//
// Next reports whether another fragment is available. Once it returns
// false, Err tells an upstream failure apart from natural exhaustion:
// a nil Err means the provider finished the reply.
type ReplyStream interface {
	Next() bool
	Current() string
	Err() error
	Close() error
}

type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

type Role string

const (
	UserRole      Role = "user"
	AssistantRole Role = "assistant"
)
