package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chattykathys/chattykathy/domain"
)

// stubLlm yields a scripted fragment sequence, optionally ending in an
// error instead of natural exhaustion.
type stubLlm struct {
	fragments []string
	err       error
	openErr   error

	gotSystemPrompt string
	gotTranscript   []domain.ChatMessage
}

func (s *stubLlm) StreamReply(ctx context.Context, systemPrompt string, transcript []domain.ChatMessage) (domain.ReplyStream, error) {
	s.gotSystemPrompt = systemPrompt
	s.gotTranscript = transcript
	if s.openErr != nil {
		return nil, s.openErr
	}
	return &stubStream{fragments: s.fragments, err: s.err}, nil
}

type stubStream struct {
	fragments []string
	index     int
	err       error
	current   string
	closed    bool
}

func (s *stubStream) Next() bool {
	if s.index >= len(s.fragments) {
		return false
	}
	s.current = s.fragments[s.index]
	s.index++
	return true
}

func (s *stubStream) Current() string { return s.current }

func (s *stubStream) Err() error {
	if s.index >= len(s.fragments) {
		return s.err
	}
	return nil
}

func (s *stubStream) Close() error {
	s.closed = true
	return nil
}

// recordingSink captures the framed event sequence.
type recordingSink struct {
	events []string
}

func (r *recordingSink) Data(fragment string) error {
	r.events = append(r.events, "data:"+fragment)
	return nil
}

func (r *recordingSink) Done() error {
	r.events = append(r.events, "done")
	return nil
}

func (r *recordingSink) Fail() error {
	r.events = append(r.events, "error")
	return nil
}

// fakeRepo is an in-memory domain.ChatRepository.
type fakeRepo struct {
	mu            sync.Mutex
	characters    map[string]domain.Character
	conversations []domain.Conversation
	messages      map[string][]domain.Message
}

func newFakeRepo(characters ...domain.Character) *fakeRepo {
	repo := &fakeRepo{
		characters: make(map[string]domain.Character),
		messages:   make(map[string][]domain.Message),
	}
	for _, c := range characters {
		repo.characters[c.Slug] = c
	}
	return repo
}

func (f *fakeRepo) UpsertCharacter(ctx context.Context, character domain.Character) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.characters[character.Slug] = character
	return nil
}

func (f *fakeRepo) Characters(ctx context.Context) ([]domain.Character, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Character
	for _, c := range f.characters {
		out = append(out, c)
	}
	return out, nil
}

func (f *fakeRepo) CharacterBySlug(ctx context.Context, slug string) (domain.Character, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.characters[slug]; ok {
		return c, nil
	}
	return domain.Character{}, domain.ErrNotFound
}

func (f *fakeRepo) ConversationByID(ctx context.Context, id string) (domain.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.conversations {
		if c.ID == id {
			return c, nil
		}
	}
	return domain.Conversation{}, domain.ErrNotFound
}

func (f *fakeRepo) ConversationFor(ctx context.Context, userID, characterID string) (domain.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.conversations {
		if c.UserID == userID && c.CharacterID == characterID {
			return c, nil
		}
	}
	return domain.Conversation{}, domain.ErrNotFound
}

func (f *fakeRepo) FindOrCreateConversation(ctx context.Context, userID, characterID string) (domain.Conversation, error) {
	if existing, err := f.ConversationFor(ctx, userID, characterID); err == nil {
		return existing, nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	conversation := domain.Conversation{
		ID:          fmt.Sprintf("conv-%d", len(f.conversations)+1),
		UserID:      userID,
		CharacterID: characterID,
		CreatedAt:   time.Now(),
	}
	f.conversations = append(f.conversations, conversation)
	return conversation, nil
}

func (f *fakeRepo) AppendMessage(ctx context.Context, conversationID string, role domain.Role, content, provider string) (domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	message := domain.Message{
		ID:             fmt.Sprintf("msg-%d", len(f.messages[conversationID])+1),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		Provider:       provider,
		CreatedAt:      time.Now(),
	}
	f.messages[conversationID] = append(f.messages[conversationID], message)
	return message, nil
}

func (f *fakeRepo) ListMessages(ctx context.Context, conversationID string) ([]domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Message, len(f.messages[conversationID]))
	copy(out, f.messages[conversationID])
	return out, nil
}

var gandalf = domain.Character{
	ID:           "char-gandalf",
	Slug:         "gandalf",
	Name:         "Gandalf",
	SystemPrompt: "You are Gandalf the Grey.",
}

func TestRunTurnStreamsAndPersists(t *testing.T) {
	repo := newFakeRepo(gandalf)
	llm := &stubLlm{fragments: []string{"Wel", "come, ", "traveler."}}
	svc := NewChatService(llm, "anthropic", repo)
	sink := &recordingSink{}

	err := svc.RunTurn(context.Background(), "user-1", TurnInput{
		UserMessage:   "Hello",
		CharacterSlug: "gandalf",
	}, sink)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"data:Wel",
		"data:come, ",
		"data:traveler.",
		"done",
	}, sink.events)

	require.Len(t, repo.conversations, 1)
	messages, err := repo.ListMessages(context.Background(), repo.conversations[0].ID)
	require.NoError(t, err)
	require.Len(t, messages, 2)

	assert.Equal(t, domain.UserRole, messages[0].Role)
	assert.Equal(t, "Hello", messages[0].Content)
	assert.Empty(t, messages[0].Provider)

	assert.Equal(t, domain.AssistantRole, messages[1].Role)
	assert.Equal(t, "Welcome, traveler.", messages[1].Content)
	assert.Equal(t, "anthropic", messages[1].Provider)
}

func TestRunTurnSendsPersonaAndTranscript(t *testing.T) {
	repo := newFakeRepo(gandalf)
	llm := &stubLlm{fragments: []string{"Hm."}}
	svc := NewChatService(llm, "anthropic", repo)

	err := svc.RunTurn(context.Background(), "user-1", TurnInput{
		UserMessage:   "  Hello  ",
		CharacterSlug: "gandalf",
	}, &recordingSink{})
	require.NoError(t, err)

	assert.Equal(t, "You are Gandalf the Grey.", llm.gotSystemPrompt)
	// The transcript handed to the provider already contains the trimmed
	// user message.
	require.Len(t, llm.gotTranscript, 1)
	assert.Equal(t, domain.UserRole, llm.gotTranscript[0].Role)
	assert.Equal(t, "Hello", llm.gotTranscript[0].Content)
}

func TestRunTurnValidation(t *testing.T) {
	tests := []struct {
		name    string
		input   TurnInput
		wantErr error
	}{
		{"empty message", TurnInput{UserMessage: "   ", CharacterSlug: "gandalf"}, domain.ErrEmptyMessage},
		{"missing slug", TurnInput{UserMessage: "Hello"}, domain.ErrEmptyMessage},
		{"unknown character", TurnInput{UserMessage: "Hello", CharacterSlug: "mithrandir"}, domain.ErrCharacterNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newFakeRepo(gandalf)
			svc := NewChatService(&stubLlm{}, "anthropic", repo)
			sink := &recordingSink{}

			err := svc.RunTurn(context.Background(), "user-1", tt.input, sink)
			require.ErrorIs(t, err, tt.wantErr)

			// Rejected before any side effect or stream output.
			assert.Empty(t, sink.events)
			assert.Empty(t, repo.conversations)
			assert.Empty(t, repo.messages)
		})
	}
}

func TestRunTurnStreamErrorDiscardsPartialReply(t *testing.T) {
	repo := newFakeRepo(gandalf)
	llm := &stubLlm{fragments: []string{"Half a rep"}, err: errors.New("upstream reset")}
	svc := NewChatService(llm, "anthropic", repo)
	sink := &recordingSink{}

	err := svc.RunTurn(context.Background(), "user-1", TurnInput{
		UserMessage:   "Hello",
		CharacterSlug: "gandalf",
	}, sink)
	require.NoError(t, err)

	assert.Equal(t, []string{"data:Half a rep", "error"}, sink.events)

	// One more user message than before, zero more assistant messages.
	messages, err := repo.ListMessages(context.Background(), repo.conversations[0].ID)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, domain.UserRole, messages[0].Role)
}

func TestRunTurnStreamOpenFailure(t *testing.T) {
	repo := newFakeRepo(gandalf)
	llm := &stubLlm{openErr: errors.New("connect refused")}
	svc := NewChatService(llm, "anthropic", repo)
	sink := &recordingSink{}

	err := svc.RunTurn(context.Background(), "user-1", TurnInput{
		UserMessage:   "Hello",
		CharacterSlug: "gandalf",
	}, sink)
	require.NoError(t, err)

	// The user's half of the turn survives even when generation never
	// starts; the failure goes out in-band.
	assert.Equal(t, []string{"error"}, sink.events)
	messages, err := repo.ListMessages(context.Background(), repo.conversations[0].ID)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, domain.UserRole, messages[0].Role)
}

func TestRunTurnCancelledMidStreamPersistsNothingForAssistant(t *testing.T) {
	repo := newFakeRepo(gandalf)
	llm := &stubLlm{fragments: []string{"one", "two", "three"}}
	svc := NewChatService(llm, "anthropic", repo)

	ctx, cancel := context.WithCancel(context.Background())
	sink := &cancellingSink{cancel: cancel, after: 1}

	err := svc.RunTurn(ctx, "user-1", TurnInput{
		UserMessage:   "Hello",
		CharacterSlug: "gandalf",
	}, sink)
	require.NoError(t, err)

	// No done or error frame after the disconnect, and no assistant row.
	assert.Equal(t, []string{"data:one"}, sink.events)
	messages, err := repo.ListMessages(context.Background(), repo.conversations[0].ID)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, domain.UserRole, messages[0].Role)
}

// cancellingSink simulates a client that disconnects after n fragments.
type cancellingSink struct {
	recordingSink
	cancel context.CancelFunc
	after  int
}

func (c *cancellingSink) Data(fragment string) error {
	err := c.recordingSink.Data(fragment)
	if len(c.events) >= c.after {
		c.cancel()
	}
	return err
}

func TestRunTurnReusesConversation(t *testing.T) {
	repo := newFakeRepo(gandalf)
	svc := NewChatService(&stubLlm{fragments: []string{"Aye."}}, "anthropic", repo)

	for i := 0; i < 2; i++ {
		err := svc.RunTurn(context.Background(), "user-1", TurnInput{
			UserMessage:   "Hello again",
			CharacterSlug: "gandalf",
		}, &recordingSink{})
		require.NoError(t, err)
	}

	// Same (user, character) pair resolves to the same conversation.
	require.Len(t, repo.conversations, 1)
	messages, err := repo.ListMessages(context.Background(), repo.conversations[0].ID)
	require.NoError(t, err)
	assert.Len(t, messages, 4)
}

func TestRunTurnStaleConversationHandleFallsBack(t *testing.T) {
	repo := newFakeRepo(gandalf)
	svc := NewChatService(&stubLlm{fragments: []string{"Aye."}}, "anthropic", repo)

	err := svc.RunTurn(context.Background(), "user-1", TurnInput{
		ConversationID: "no-such-conversation",
		UserMessage:    "Hello",
		CharacterSlug:  "gandalf",
	}, &recordingSink{})
	require.NoError(t, err)
	require.Len(t, repo.conversations, 1)
}

func TestRunTurnRejectsForeignConversationHandle(t *testing.T) {
	repo := newFakeRepo(gandalf)
	other, err := repo.FindOrCreateConversation(context.Background(), "user-2", gandalf.ID)
	require.NoError(t, err)

	svc := NewChatService(&stubLlm{fragments: []string{"Aye."}}, "anthropic", repo)
	err = svc.RunTurn(context.Background(), "user-1", TurnInput{
		ConversationID: other.ID,
		UserMessage:    "Hello",
		CharacterSlug:  "gandalf",
	}, &recordingSink{})
	require.NoError(t, err)

	// Another user's handle is ignored; the turn lands in the caller's
	// own conversation.
	mine, err := repo.ConversationFor(context.Background(), "user-1", gandalf.ID)
	require.NoError(t, err)
	assert.NotEqual(t, other.ID, mine.ID)
	otherMessages, _ := repo.ListMessages(context.Background(), other.ID)
	assert.Empty(t, otherMessages)
}

func TestConcatenationInvariant(t *testing.T) {
	fragments := []string{"The ", "road goes ", "ever on ", "and on."}
	repo := newFakeRepo(gandalf)
	svc := NewChatService(&stubLlm{fragments: fragments}, "openai", repo)
	sink := &recordingSink{}

	err := svc.RunTurn(context.Background(), "user-1", TurnInput{
		UserMessage:   "Sing for me",
		CharacterSlug: "gandalf",
	}, sink)
	require.NoError(t, err)

	var streamed strings.Builder
	for _, event := range sink.events {
		if rest, ok := strings.CutPrefix(event, "data:"); ok {
			streamed.WriteString(rest)
		}
	}

	messages, err := repo.ListMessages(context.Background(), repo.conversations[0].ID)
	require.NoError(t, err)
	persisted := messages[len(messages)-1]
	assert.Equal(t, strings.Join(fragments, ""), persisted.Content)
	assert.Equal(t, streamed.String(), persisted.Content)
	assert.Equal(t, "openai", persisted.Provider)
}
