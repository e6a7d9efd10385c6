package main

import (
	"context"
	"log"
	"os"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/subosito/gotenv"

	"github.com/chattykathys/chattykathy/adapters/hasher"
	httpapi "github.com/chattykathys/chattykathy/adapters/http"
	"github.com/chattykathys/chattykathy/adapters/llm"
	"github.com/chattykathys/chattykathy/adapters/repository"
	"github.com/chattykathys/chattykathy/adapters/websocket"
	"github.com/chattykathys/chattykathy/catalog"
	"github.com/chattykathys/chattykathy/usecase"
)

func main() {
	gotenv.Load()
	ctx := context.Background()

	store, err := repository.NewSqliteStore(envOr("DATABASE_PATH", "chattykathy.db"))
	if err != nil {
		log.Fatalf("opening store: %v", err)
	}
	defer store.Close()

	if err := catalog.Seed(ctx, store); err != nil {
		log.Fatalf("seeding characters: %v", err)
	}

	provider, llmClient, err := llm.FromEnv(ctx)
	if err != nil {
		log.Fatalf("constructing %s client: %v", provider, err)
	}

	chatService := usecase.NewChatService(llmClient, string(provider), store)
	authService := usecase.NewAuthService(store, hasher.New())

	sessions := httpapi.NewSessionManager(
		envOr("SESSION_SECRET", "insecure-dev-secret-change-me"),
		os.Getenv("ENV") == "production",
	)
	authHandler := httpapi.NewAuthHandler(authService, sessions)
	chatHandler := httpapi.NewChatHandler(chatService, store)
	wsServer := websocket.NewServer(chatService)

	e := echo.New()

	// Security middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.Secure())
	e.Use(middleware.BodyLimit("1MB"))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"}, // In production, specify exact origins
		AllowMethods: []string{echo.GET, echo.POST, echo.OPTIONS},
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderContentType,
			echo.HeaderAccept,
		},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	api := e.Group("/api/v1")

	// Public endpoints (no auth required)
	api.GET("/health", chatHandler.HealthCheck)
	api.POST("/auth/signup", authHandler.Signup)
	api.POST("/auth/login", authHandler.Login)
	api.POST("/auth/logout", authHandler.Logout)

	// Session-protected endpoints
	authed := api.Group("", sessions.Middleware(store))
	authed.GET("/characters", chatHandler.Characters)
	authed.GET("/characters/:slug", chatHandler.CharacterPage)

	// The streaming turn endpoint
	chat := e.Group("/api/chat", sessions.Middleware(store))
	chat.POST("", chatHandler.Stream)

	// Same turn stream over a websocket
	ws := e.Group("/ws/chat", sessions.Middleware(store))
	ws.GET("", wsServer.Handler)

	port := envOr("PORT", "8080")
	log.Printf("Starting server on :%s (provider: %s)", port, provider)
	log.Fatal(e.Start(":" + port))
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
