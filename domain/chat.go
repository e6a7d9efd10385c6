package domain

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrEmptyMessage       = errors.New("message is empty")
	ErrCharacterNotFound  = errors.New("character not found")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

type User struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// Character is a persona: a display identity plus the behavioral system
// prompt that governs how the model speaks for it.
type Character struct {
	ID           string
	Slug         string
	Name         string
	Bio          string
	SystemPrompt string
	AccentColor  string
}

// Conversation ties one user to one character. The pair is unique: a user
// has at most one conversation per character.
type Conversation struct {
	ID          string
	UserID      string
	CharacterID string
	CreatedAt   time.Time
}

// Message is one persisted transcript entry. Provider is set only on
// assistant messages and records which backend generated the reply.
type Message struct {
	ID             string
	ConversationID string
	Role           Role
	Content        string
	Provider       string
	CreatedAt      time.Time
}

// UserRepository is the port for account storage.
type UserRepository interface {
	CreateUser(ctx context.Context, email, passwordHash string) (User, error)
	UserByEmail(ctx context.Context, email string) (User, error)
	UserByID(ctx context.Context, id string) (User, error)
}

// ChatRepository is the port for the character catalog and transcripts.
// ListMessages returns messages in ascending creation order.
type ChatRepository interface {
	UpsertCharacter(ctx context.Context, character Character) error
	Characters(ctx context.Context) ([]Character, error)
	CharacterBySlug(ctx context.Context, slug string) (Character, error)

	ConversationByID(ctx context.Context, id string) (Conversation, error)
	ConversationFor(ctx context.Context, userID, characterID string) (Conversation, error)
	FindOrCreateConversation(ctx context.Context, userID, characterID string) (Conversation, error)

	AppendMessage(ctx context.Context, conversationID string, role Role, content, provider string) (Message, error)
	ListMessages(ctx context.Context, conversationID string) ([]Message, error)
}
