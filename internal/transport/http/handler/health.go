package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	amqp "github.com/rabbitmq/amqp091-go"
	redisv9 "github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type HealthHandler struct {
	db       *gorm.DB
	redis    *redisv9.Client
	rabbitMQ *amqp.Connection
}

func NewHealthHandler(db *gorm.DB, redis *redisv9.Client, rabbitMQ *amqp.Connection) *HealthHandler {
	return &HealthHandler{db: db, redis: redis, rabbitMQ: rabbitMQ}
}

func (h *HealthHandler) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := gin.H{
		"mysql":    h.mysqlStatus(ctx),
		"redis":    h.redisStatus(ctx),
		"rabbitmq": h.rabbitStatus(),
	}

	httpStatus := http.StatusOK
	for _, s := range status {
		if s != "up" {
			httpStatus = http.StatusServiceUnavailable
			break
		}
	}
	c.JSON(httpStatus, gin.H{"status": status, "time": time.Now().Format(time.RFC3339)})
}

func (h *HealthHandler) mysqlStatus(ctx context.Context) string {
	if h.db == nil {
		return "down"
	}
	sqlDB, err := h.db.DB()
	if err != nil || sqlDB.PingContext(ctx) != nil {
		return "down"
	}
	return "up"
}

func (h *HealthHandler) redisStatus(ctx context.Context) string {
	if h.redis == nil || h.redis.Ping(ctx).Err() != nil {
		return "down"
	}
	return "up"
}

func (h *HealthHandler) rabbitStatus() string {
	if h.rabbitMQ == nil || h.rabbitMQ.IsClosed() {
		return "down"
	}
	return "up"
}
