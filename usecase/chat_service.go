package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/chattykathys/chattykathy/domain"
	"github.com/chattykathys/chattykathy/utils/log"
)

// TurnInput is one submitted chat turn. ConversationID is optional; a
// missing or stale handle falls back to the unique (user, character)
// conversation.
type TurnInput struct {
	ConversationID string
	UserMessage    string
	CharacterSlug  string
}

// TurnSink receives the framed events of one turn in emission order.
// Data is called at most once per fragment, Done and Fail at most once
// per turn and never both.
type TurnSink interface {
	Data(fragment string) error
	Done() error
	Fail() error
}

// ChatService orchestrates chat turns: it validates input, resolves the
// conversation, drives the provider stream into a sink and keeps the
// transcript consistent with what the client saw.
type ChatService struct {
	llm      domain.Llm
	provider string
	repo     domain.ChatRepository

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewChatService wires an orchestrator to a provider client and a
// transcript store. The provider tag is persisted on every assistant
// message it generates.
func NewChatService(llm domain.Llm, provider string, repo domain.ChatRepository) *ChatService {
	return &ChatService{
		llm:      llm,
		provider: provider,
		repo:     repo,
		locks:    make(map[string]*sync.Mutex),
	}
}

// Turn is a prepared chat turn: input validated, conversation resolved,
// user message persisted, transcript loaded. Stream must be called
// exactly once; it releases the turn's conversation lock.
type Turn struct {
	svc          *ChatService
	conversation domain.Conversation
	character    domain.Character
	transcript   []domain.ChatMessage
	unlock       func()
}

func (t *Turn) ConversationID() string { return t.conversation.ID }

// BeginTurn performs every step that must finish before the response
// stream opens, so callers can still answer with a plain status code:
//
//  1. validate the input (no side effects on failure),
//  2. resolve or create the conversation and take its lock,
//  3. persist the user message,
//  4. load the full ordered transcript for model context.
func (s *ChatService) BeginTurn(ctx context.Context, userID string, in TurnInput) (*Turn, error) {
	text := strings.TrimSpace(in.UserMessage)
	if text == "" || in.CharacterSlug == "" {
		return nil, domain.ErrEmptyMessage
	}

	character, err := s.repo.CharacterBySlug(ctx, in.CharacterSlug)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrCharacterNotFound
		}
		return nil, fmt.Errorf("resolving character: %w", err)
	}

	conversation, err := s.resolveConversation(ctx, userID, character.ID, in.ConversationID)
	if err != nil {
		return nil, fmt.Errorf("resolving conversation: %w", err)
	}

	// Serialize concurrent turns against the same conversation so
	// transcript writes cannot interleave.
	unlock := s.lockConversation(conversation.ID)

	if _, err := s.repo.AppendMessage(ctx, conversation.ID, domain.UserRole, text, ""); err != nil {
		unlock()
		return nil, fmt.Errorf("persisting user message: %w", err)
	}

	history, err := s.repo.ListMessages(ctx, conversation.ID)
	if err != nil {
		unlock()
		return nil, fmt.Errorf("loading transcript: %w", err)
	}

	transcript := make([]domain.ChatMessage, len(history))
	for i, m := range history {
		transcript[i] = domain.ChatMessage{Role: m.Role, Content: m.Content}
	}

	return &Turn{
		svc:          s,
		conversation: conversation,
		character:    character,
		transcript:   transcript,
		unlock:       unlock,
	}, nil
}

// Stream drives the provider and forwards each fragment to the sink as
// it arrives, accumulating the full reply on the side. On natural
// exhaustion it emits Done and then persists the assistant message; on
// provider failure it emits Fail and discards the partial reply. A
// cancelled context means the client went away: generation is aborted
// and nothing is persisted for the assistant half.
func (t *Turn) Stream(ctx context.Context, sink TurnSink) error {
	defer t.unlock()

	logger := log.WithCtx(ctx).With(
		zap.String("conversation_id", t.conversation.ID),
		zap.String("character_slug", t.character.Slug),
	)

	reply, err := t.svc.llm.StreamReply(ctx, t.character.SystemPrompt, t.transcript)
	if err != nil {
		logger.Error("opening reply stream", zap.Error(err))
		return sink.Fail()
	}
	defer reply.Close()

	var full strings.Builder
	for reply.Next() {
		if ctx.Err() != nil {
			break
		}
		fragment := reply.Current()
		full.WriteString(fragment)
		if err := sink.Data(fragment); err != nil {
			logger.Warn("client write failed, aborting turn", zap.Error(err))
			return nil
		}
	}

	if err := ctx.Err(); err != nil {
		logger.Warn("turn cancelled mid-stream", zap.Error(err))
		return nil
	}

	if err := reply.Err(); err != nil {
		logger.Error("streaming error", zap.Error(err))
		if failErr := sink.Fail(); failErr != nil {
			logger.Warn("writing error sentinel", zap.Error(failErr))
		}
		return nil
	}

	if err := sink.Done(); err != nil {
		logger.Warn("writing done sentinel", zap.Error(err))
	}

	// The client has already seen Done; the write below must not depend
	// on the request connection staying open.
	persistCtx := context.WithoutCancel(ctx)
	if _, err := t.svc.repo.AppendMessage(persistCtx, t.conversation.ID, domain.AssistantRole, full.String(), t.svc.provider); err != nil {
		logger.Error("persisting assistant message", zap.Error(err))
		return fmt.Errorf("persisting assistant message: %w", err)
	}
	return nil
}

// RunTurn is BeginTurn followed by Stream. Errors returned before the
// sink is touched are pre-stream errors and can still be mapped to a
// status code by the caller.
func (s *ChatService) RunTurn(ctx context.Context, userID string, in TurnInput, sink TurnSink) error {
	turn, err := s.BeginTurn(ctx, userID, in)
	if err != nil {
		return err
	}
	return turn.Stream(ctx, sink)
}

func (s *ChatService) resolveConversation(ctx context.Context, userID, characterID, conversationID string) (domain.Conversation, error) {
	if conversationID != "" {
		conversation, err := s.repo.ConversationByID(ctx, conversationID)
		if err == nil && conversation.UserID == userID {
			return conversation, nil
		}
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return domain.Conversation{}, err
		}
	}
	return s.repo.FindOrCreateConversation(ctx, userID, characterID)
}

func (s *ChatService) lockConversation(id string) func() {
	s.mu.Lock()
	lock, ok := s.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[id] = lock
	}
	s.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}
