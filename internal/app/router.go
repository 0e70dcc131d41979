package app

import (
	"flashdeck_backend/internal/config"
	"flashdeck_backend/internal/middleware"
	"flashdeck_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, repos *repositories, cfg *config.Config) {
	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. 公共路由(无需登录)
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
		public.POST("/register", c.auth.Register)
		public.POST("/login", c.auth.Login)
	}

	// 2. 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg), middleware.ActivityMiddleware(repos.user))
	{
		authGroup.GET("/profile", c.auth.GetProfile)

		// 设置
		authGroup.GET("/settings", c.settings.GetSettings)
		authGroup.PUT("/settings", c.settings.UpdateSettings)

		// 卡组与卡片
		authGroup.GET("/decks", c.deck.ListDecks)
		authGroup.POST("/decks", c.deck.CreateDeck)
		authGroup.GET("/decks/:id", c.deck.GetDeck)
		authGroup.PUT("/decks/:id", c.deck.UpdateDeck)
		authGroup.DELETE("/decks/:id", c.deck.DeleteDeck)
		authGroup.GET("/decks/:id/cards", c.deck.ListCards)
		authGroup.POST("/decks/:id/cards", c.deck.CreateCard)
		authGroup.PUT("/decks/:id/cards/:cardId", c.deck.UpdateCard)
		authGroup.DELETE("/decks/:id/cards/:cardId", c.deck.DeleteCard)
		authGroup.POST("/decks/:id/cards/:cardId/sketch", c.deck.UploadSketch)

		// 练习会话
		authGroup.POST("/decks/:id/practice", c.practice.EnterDeck)
		authGroup.GET("/practice/:sessionId", c.practice.GetSession)
		authGroup.POST("/practice/:sessionId/events", c.practice.ApplyEvent)
	}
}
