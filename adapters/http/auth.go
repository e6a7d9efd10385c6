package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/chattykathys/chattykathy/domain"
	"github.com/chattykathys/chattykathy/usecase"
	"github.com/chattykathys/chattykathy/utils/log"
	"go.uber.org/zap"
)

const minPasswordLength = 8

type AuthHandler struct {
	auth     *usecase.AuthService
	sessions *SessionManager
}

func NewAuthHandler(auth *usecase.AuthService, sessions *SessionManager) *AuthHandler {
	return &AuthHandler{auth: auth, sessions: sessions}
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

func (h *AuthHandler) Signup(c echo.Context) error {
	var req credentialsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if strings.TrimSpace(req.Email) == "" || len(req.Password) < minPasswordLength {
		return echo.NewHTTPError(http.StatusBadRequest, "Email and a password of at least 8 characters are required")
	}

	user, err := h.auth.Signup(c.Request().Context(), req.Email, req.Password)
	if errors.Is(err, domain.ErrEmailTaken) {
		return echo.NewHTTPError(http.StatusConflict, "Email already registered")
	}
	if err != nil {
		log.WithCtx(c.Request().Context()).Error("signup failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to create account")
	}

	if err := h.setSession(c, user.ID); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, userResponse{ID: user.ID, Email: user.Email})
}

func (h *AuthHandler) Login(c echo.Context) error {
	var req credentialsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	user, err := h.auth.Login(c.Request().Context(), req.Email, req.Password)
	if errors.Is(err, domain.ErrInvalidCredentials) {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid email or password")
	}
	if err != nil {
		log.WithCtx(c.Request().Context()).Error("login failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to sign in")
	}

	if err := h.setSession(c, user.ID); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, userResponse{ID: user.ID, Email: user.Email})
}

func (h *AuthHandler) Logout(c echo.Context) error {
	c.SetCookie(h.sessions.ClearCookie())
	return c.NoContent(http.StatusNoContent)
}

func (h *AuthHandler) setSession(c echo.Context, userID string) error {
	cookie, err := h.sessions.IssueCookie(userID)
	if err != nil {
		log.WithCtx(c.Request().Context()).Error("issuing session cookie", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to create session")
	}
	c.SetCookie(cookie)
	return nil
}
