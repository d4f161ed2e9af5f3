package http

import (
	"github.com/gin-gonic/gin"
	amqp "github.com/rabbitmq/amqp091-go"
	redisv9 "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"docuchat/internal/app"
	"docuchat/internal/config"
	"docuchat/internal/transport/http/handler"
	"docuchat/internal/transport/http/middleware"
)

type RouterDeps struct {
	Config      *config.Config
	AuthService *app.AuthService
	ChatService *app.ChatService
	DB          *gorm.DB
	Redis       *redisv9.Client
	RabbitMQ    *amqp.Connection
}

func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(deps.Config.App.GinMode)

	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	health := handler.NewHealthHandler(deps.DB, deps.Redis, deps.RabbitMQ)
	router.GET("/healthz", health.Healthz)

	authHandler := handler.NewAuthHandler(deps.AuthService)
	chatHandler := handler.NewChatHandler(deps.ChatService, deps.Config.Upload.MaxSizeMB)

	v1 := router.Group("/api/v1")
	{
		v1.POST("/auth/register", authHandler.Register)
		v1.POST("/auth/login", authHandler.Login)
	}

	authed := v1.Group("")
	authed.Use(middleware.AuthJWT(deps.Config.Auth.JWTSecret))
	{
		authed.GET("/auth/me", authHandler.Me)

		authed.POST("/conversations", chatHandler.CreateConversation)
		authed.GET("/conversations", chatHandler.ListConversations)
		authed.DELETE("/conversations/:id", chatHandler.DeleteConversation)
		authed.GET("/conversations/:id/messages", chatHandler.GetHistory)
		authed.POST("/conversations/:id/messages", chatHandler.SendMessage)
		authed.POST("/conversations/:id/documents", chatHandler.UploadDocument)
	}

	return router
}
