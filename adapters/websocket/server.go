// Package websocket carries the same framed turn stream as the SSE
// endpoint, one JSON message per event, for clients that prefer a
// bidirectional socket over long-lived POSTs.
package websocket

import (
	"errors"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/chattykathys/chattykathy/domain"
	"github.com/chattykathys/chattykathy/usecase"
	"github.com/chattykathys/chattykathy/utils/log"
)

type Server struct {
	upgrader websocket.Upgrader
	svc      *usecase.ChatService
}

func NewServer(svc *usecase.ChatService) *Server {
	return &Server{
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		svc:      svc,
	}
}

// Frame is one turn event on the wire.
type Frame struct {
	Type string `json:"type"` // data | done | error
	Text string `json:"text,omitempty"`
}

type turnRequest struct {
	ConversationID string `json:"conversationId"`
	UserMessage    string `json:"userMessage"`
	CharacterSlug  string `json:"characterSlug"`
}

// Handler upgrades the connection and serves turns until the client
// hangs up. Each incoming message is one turn request; the reply is a
// run of data frames closed by a done or error frame. Turns on one
// socket run sequentially.
func (s *Server) Handler(c echo.Context) error {
	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	userID := c.Get("user_id").(string)
	ctx := c.Request().Context()
	logger := log.WithCtx(ctx)

	for {
		var req turnRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn("websocket read failed", zap.Error(err))
			}
			return nil
		}

		sink := &socketSink{conn: conn}
		err := s.svc.RunTurn(ctx, userID, usecase.TurnInput{
			ConversationID: req.ConversationID,
			UserMessage:    req.UserMessage,
			CharacterSlug:  req.CharacterSlug,
		}, sink)
		if err != nil && !sink.started {
			// Pre-stream failure: the socket has no status codes, so the
			// rejection goes out as an error frame with a reason.
			reason := "Something went wrong"
			switch {
			case errors.Is(err, domain.ErrEmptyMessage):
				reason = "Missing required fields"
			case errors.Is(err, domain.ErrCharacterNotFound):
				reason = "Character not found"
			}
			if werr := conn.WriteJSON(Frame{Type: "error", Text: reason}); werr != nil {
				return nil
			}
		}
	}
}

// socketSink forwards turn events as JSON frames. started flips on the
// first write so the handler can tell pre-stream rejections apart from
// mid-stream failures the sink already reported.
type socketSink struct {
	conn    *websocket.Conn
	started bool
}

func (s *socketSink) Data(fragment string) error {
	s.started = true
	return s.conn.WriteJSON(Frame{Type: "data", Text: fragment})
}

func (s *socketSink) Done() error {
	s.started = true
	return s.conn.WriteJSON(Frame{Type: "done"})
}

func (s *socketSink) Fail() error {
	s.started = true
	return s.conn.WriteJSON(Frame{Type: "error"})
}
