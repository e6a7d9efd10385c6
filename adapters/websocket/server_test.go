package websocket

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chattykathys/chattykathy/adapters/repository"
	"github.com/chattykathys/chattykathy/domain"
	"github.com/chattykathys/chattykathy/usecase"
)

type scriptedLlm struct {
	fragments []string
}

func (s *scriptedLlm) StreamReply(ctx context.Context, systemPrompt string, transcript []domain.ChatMessage) (domain.ReplyStream, error) {
	return &scriptedStream{fragments: s.fragments}, nil
}

type scriptedStream struct {
	fragments []string
	index     int
	current   string
}

func (s *scriptedStream) Next() bool {
	if s.index >= len(s.fragments) {
		return false
	}
	s.current = s.fragments[s.index]
	s.index++
	return true
}

func (s *scriptedStream) Current() string { return s.current }
func (s *scriptedStream) Err() error      { return nil }
func (s *scriptedStream) Close() error    { return nil }

func TestHandlerServesTurnsOverSocket(t *testing.T) {
	ctx := context.Background()

	store, err := repository.NewSqliteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	require.NoError(t, store.UpsertCharacter(ctx, domain.Character{
		Slug:         "gandalf",
		Name:         "Gandalf",
		SystemPrompt: "You are Gandalf the Grey.",
	}))
	user, err := store.CreateUser(ctx, "frodo@shire.example", "hashed")
	require.NoError(t, err)

	svc := usecase.NewChatService(&scriptedLlm{fragments: []string{"Wel", "come."}}, "anthropic", store)
	server := NewServer(svc)

	e := echo.New()
	e.GET("/ws/chat", func(c echo.Context) error {
		c.Set("user_id", user.ID)
		return server.Handler(c)
	})
	ts := httptest.NewServer(e)
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws/chat", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]string{
		"userMessage":   "Hello",
		"characterSlug": "gandalf",
	}))

	var reply strings.Builder
	for {
		var frame Frame
		require.NoError(t, conn.ReadJSON(&frame))
		if frame.Type == "data" {
			reply.WriteString(frame.Text)
			continue
		}
		assert.Equal(t, "done", frame.Type)
		break
	}
	assert.Equal(t, "Welcome.", reply.String())

	// The socket stays usable and rejects a bad slug with a reasoned
	// error frame.
	require.NoError(t, conn.WriteJSON(map[string]string{
		"userMessage":   "Hello",
		"characterSlug": "saruman",
	}))
	var frame Frame
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, "error", frame.Type)
	assert.Equal(t, "Character not found", frame.Text)
}
