package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/chattykathys/chattykathy/adapters/sse"
	"github.com/chattykathys/chattykathy/domain"
	"github.com/chattykathys/chattykathy/usecase"
	"github.com/chattykathys/chattykathy/utils/log"
)

type ChatHandler struct {
	chat *usecase.ChatService
	repo domain.ChatRepository
}

func NewChatHandler(chat *usecase.ChatService, repo domain.ChatRepository) *ChatHandler {
	return &ChatHandler{chat: chat, repo: repo}
}

type turnRequest struct {
	ConversationID string `json:"conversationId"`
	UserMessage    string `json:"userMessage"`
	CharacterSlug  string `json:"characterSlug"`
}

// Stream handles POST /api/chat: it prepares the turn, commits the
// event-stream headers and relays fragments as they arrive. Validation
// failures surface as plain status codes because nothing has been
// written yet; after the first frame the error sentinel is the only
// channel left.
func (h *ChatHandler) Stream(c echo.Context) error {
	var req turnRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	userID := c.Get("user_id").(string)
	ctx := context.WithValue(c.Request().Context(), "character_slug", req.CharacterSlug)

	turn, err := h.chat.BeginTurn(ctx, userID, usecase.TurnInput{
		ConversationID: req.ConversationID,
		UserMessage:    req.UserMessage,
		CharacterSlug:  req.CharacterSlug,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrEmptyMessage):
			return echo.NewHTTPError(http.StatusBadRequest, "Missing required fields")
		case errors.Is(err, domain.ErrCharacterNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "Character not found")
		default:
			log.WithCtx(ctx).Error("preparing turn", zap.Error(err))
			return echo.NewHTTPError(http.StatusInternalServerError, "Failed to start turn")
		}
	}

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set(echo.HeaderCacheControl, "no-cache")
	resp.Header().Set(echo.HeaderConnection, "keep-alive")
	resp.WriteHeader(http.StatusOK)

	return turn.Stream(ctx, sseSink{w: sse.NewWriter(resp)})
}

// sseSink adapts the orchestrator's event sink onto the SSE framer.
type sseSink struct {
	w *sse.Writer
}

func (s sseSink) Data(fragment string) error { return s.w.Data(fragment) }
func (s sseSink) Done() error                { return s.w.Done() }
func (s sseSink) Fail() error                { return s.w.Error() }

type characterResponse struct {
	Slug        string `json:"slug"`
	Name        string `json:"name"`
	Bio         string `json:"bio"`
	AccentColor string `json:"accentColor"`
}

type messageResponse struct {
	ID      string `json:"id"`
	Role    string `json:"role"`
	Content string `json:"content"`
}

type characterPageResponse struct {
	Character      characterResponse `json:"character"`
	ConversationID string            `json:"conversationId,omitempty"`
	Messages       []messageResponse `json:"messages"`
}

// Characters handles GET /api/v1/characters.
func (h *ChatHandler) Characters(c echo.Context) error {
	characters, err := h.repo.Characters(c.Request().Context())
	if err != nil {
		log.WithCtx(c.Request().Context()).Error("listing characters", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to list characters")
	}

	out := make([]characterResponse, len(characters))
	for i, character := range characters {
		out[i] = characterResponse{
			Slug:        character.Slug,
			Name:        character.Name,
			Bio:         character.Bio,
			AccentColor: character.AccentColor,
		}
	}
	return c.JSON(http.StatusOK, out)
}

// CharacterPage handles GET /api/v1/characters/:slug — everything the
// chat page needs: the character, the session user's conversation with
// it (if any) and the ordered transcript.
func (h *ChatHandler) CharacterPage(c echo.Context) error {
	ctx := c.Request().Context()
	userID := c.Get("user_id").(string)

	character, err := h.repo.CharacterBySlug(ctx, c.Param("slug"))
	if errors.Is(err, domain.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "Character not found")
	}
	if err != nil {
		log.WithCtx(ctx).Error("loading character", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to load character")
	}

	page := characterPageResponse{
		Character: characterResponse{
			Slug:        character.Slug,
			Name:        character.Name,
			Bio:         character.Bio,
			AccentColor: character.AccentColor,
		},
		Messages: []messageResponse{},
	}

	conversation, err := h.repo.ConversationFor(ctx, userID, character.ID)
	if errors.Is(err, domain.ErrNotFound) {
		return c.JSON(http.StatusOK, page)
	}
	if err != nil {
		log.WithCtx(ctx).Error("loading conversation", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to load conversation")
	}

	messages, err := h.repo.ListMessages(ctx, conversation.ID)
	if err != nil {
		log.WithCtx(ctx).Error("loading transcript", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to load transcript")
	}

	page.ConversationID = conversation.ID
	for _, m := range messages {
		page.Messages = append(page.Messages, messageResponse{
			ID:      m.ID,
			Role:    string(m.Role),
			Content: m.Content,
		})
	}
	return c.JSON(http.StatusOK, page)
}

// HealthCheck handles GET /api/v1/health.
func (h *ChatHandler) HealthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"service":   "chattykathy",
	})
}
