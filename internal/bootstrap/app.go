package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	amqp "github.com/rabbitmq/amqp091-go"
	redisv9 "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"docuchat/internal/ai"
	"docuchat/internal/app"
	"docuchat/internal/cache"
	"docuchat/internal/config"
	"docuchat/internal/model"
	"docuchat/internal/platform/mysql"
	"docuchat/internal/platform/rabbitmq"
	"docuchat/internal/platform/redis"
	"docuchat/internal/rag"
	"docuchat/internal/repository"
	httptransport "docuchat/internal/transport/http"
	"docuchat/internal/worker"
)

// App owns every long-lived resource of the service and tears them down in
// reverse construction order.
type App struct {
	Config *config.Config
	Router *gin.Engine

	db           *gorm.DB
	redisClient  *redisv9.Client
	rabbitConn   *amqp.Connection
	runLogWorker *worker.RunLogWorker
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}

	db, err := mysql.New(ctx, cfg.MySQLDSN())
	if err != nil {
		return nil, fmt.Errorf("connect mysql failed: %w", err)
	}
	if err := db.AutoMigrate(
		&model.User{},
		&model.Conversation{},
		&model.Document{},
		&model.DocumentChunk{},
		&model.ChatMessage{},
		&model.RunLog{},
	); err != nil {
		return nil, fmt.Errorf("auto migrate failed: %w", err)
	}

	redisClient, err := redis.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, fmt.Errorf("connect redis failed: %w", err)
	}

	rabbitConn, err := rabbitmq.New(ctx, cfg.RabbitMQ.URL)
	if err != nil {
		return nil, fmt.Errorf("connect rabbitmq failed: %w", err)
	}

	userRepo := repository.NewUserRepository(db)
	conversationRepo := repository.NewConversationRepository(db)
	messageRepo := repository.NewChatMessageRepository(db)
	documentRepo := repository.NewDocumentRepository(db)
	chunkRepo := repository.NewDocumentChunkRepository(db)
	runLogRepo := repository.NewRunLogRepository(db)

	runLogWorker := worker.NewRunLogWorker(rabbitConn, runLogRepo, cfg.RabbitMQ.RunLogQueue)
	if err := runLogWorker.Start(ctx); err != nil {
		return nil, fmt.Errorf("start run log worker failed: %w", err)
	}
	runLogPublisher := rabbitmq.NewRunLogPublisher(rabbitConn, cfg.RabbitMQ.RunLogQueue)

	historyCache := cache.NewHistoryCache(
		redisClient,
		time.Duration(cfg.Redis.HistoryTTLSeconds)*time.Second,
		time.Duration(cfg.Redis.HistoryDirtyTTLSeconds)*time.Second,
	)

	// Missing provider credentials abort startup; a chat service that cannot
	// complete a single turn has nothing to serve.
	completer, err := ai.NewClient(ai.ChatConfig{
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     time.Duration(cfg.LLM.TimeoutSeconds) * time.Second,
	})
	if err != nil {
		return nil, err
	}

	chunkStore, err := buildChunkStore(cfg, chunkRepo)
	if err != nil {
		return nil, err
	}

	authService := app.NewAuthService(
		userRepo,
		cfg.Auth.JWTSecret,
		time.Duration(cfg.Auth.JWTExpireMinute)*time.Minute,
	)
	chatService := app.NewChatService(
		conversationRepo,
		messageRepo,
		documentRepo,
		chunkStore,
		completer,
		historyCache,
		runLogPublisher,
		app.ChatServiceOptions{
			UploadDir:        cfg.Upload.Dir,
			ChunkSize:        cfg.RAG.ChunkSize,
			ChunkOverlap:     cfg.RAG.ChunkOverlap,
			TopK:             cfg.RAG.TopK,
			HistoryExchanges: cfg.RAG.HistoryExchanges,
		},
	)

	router := httptransport.NewRouter(httptransport.RouterDeps{
		Config:      cfg,
		AuthService: authService,
		ChatService: chatService,
		DB:          db,
		Redis:       redisClient,
		RabbitMQ:    rabbitConn,
	})

	return &App{
		Config:       cfg,
		Router:       router,
		db:           db,
		redisClient:  redisClient,
		rabbitConn:   rabbitConn,
		runLogWorker: runLogWorker,
	}, nil
}

// buildChunkStore picks the retrieval backend: the embedding store when it
// is configured, otherwise recency ranking over the persisted chunk rows.
func buildChunkStore(cfg *config.Config, chunkRepo *repository.DocumentChunkRepository) (app.ChunkStore, error) {
	if !cfg.Embedding.Enabled {
		return chunkRepo, nil
	}
	store, err := rag.NewChromemStore(
		cfg.Embedding.DBPath,
		cfg.Embedding.BaseURL,
		cfg.Embedding.APIKey,
		cfg.Embedding.Model,
	)
	if err != nil {
		return nil, fmt.Errorf("open embedding store failed: %w", err)
	}
	log.Info().Str("db_path", cfg.Embedding.DBPath).Msg("embedding chunk store enabled")
	return store, nil
}

func (a *App) Close() {
	if a.runLogWorker != nil {
		a.runLogWorker.Close()
	}
	if a.rabbitConn != nil && !a.rabbitConn.IsClosed() {
		if err := a.rabbitConn.Close(); err != nil {
			log.Warn().Err(err).Msg("close rabbitmq connection failed")
		}
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			log.Warn().Err(err).Msg("close redis client failed")
		}
	}
	if a.db != nil {
		if sqlDB, err := a.db.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				log.Warn().Err(err).Msg("close mysql pool failed")
			}
		}
	}
}
