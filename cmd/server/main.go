// Package main 是应用程序的入口点。
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"seekmind-go/internal/config"
	"seekmind-go/internal/handler"
	"seekmind-go/internal/repository"
	"seekmind-go/internal/service"
	"seekmind-go/internal/session"
	"seekmind-go/pkg/database"
	"seekmind-go/pkg/kafka"
	"seekmind-go/pkg/llm"
	"seekmind-go/pkg/log"
	"seekmind-go/pkg/storage"
	"seekmind-go/pkg/token"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
)

const defaultConfigPath = "./configs/config.yaml"

func main() {
	// 1. 初始化配置
	configPath := os.Getenv(config.EnvPrefix + "_CONFIG")
	if configPath == "" {
		configPath = defaultConfigPath
	}
	config.Init(configPath)
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Info("日志记录器初始化成功")

	rootCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()

	// 3. 初始化会话存储
	var store session.Store
	switch cfg.Session.Backend {
	case "redis":
		rdb, err := database.NewRedis(rootCtx, cfg.Redis)
		if err != nil {
			log.Fatal("Redis 初始化失败", err)
		}
		defer rdb.Close()
		store = repository.NewSessionRepository(rdb, cfg.Session.TTL)
	default:
		store = session.NewMemoryStore(cfg.Session.TTL)
	}
	sessions := session.NewManager(store, cfg.LLM.SystemPrompt, cfg.Session.TTL)
	go sessions.Run(rootCtx, cfg.Session.SweepInterval)

	// 4. 初始化外部依赖：模型客户端在进程启动时创建一次
	llmClient, err := llm.NewClient(cfg.LLM)
	if err != nil {
		log.Fatal("LLM 客户端初始化失败", err)
	}
	log.Infof("LLM 客户端初始化成功, provider=%s model=%s", cfg.LLM.Provider, llmClient.Model())

	producer := kafka.NewProducer(cfg.Kafka)
	defer func() {
		if err := producer.Close(); err != nil {
			log.Errorf("关闭 Kafka 生产者失败: %v", err)
		}
	}()

	var assets storage.Loader = storage.FileLoader{Dir: cfg.Assets.Dir}
	if cfg.MinIO.Endpoint != "" {
		minioLoader, err := storage.NewMinIOLoader(rootCtx, cfg.MinIO)
		if err != nil {
			log.Warnf("MinIO 不可用，改为从本地目录读取资源: %v", err)
		} else {
			assets = minioLoader
		}
	}
	logo := storage.DataURI(rootCtx, assets, cfg.Assets.Logo)

	// 5. 初始化 Service (依赖注入)
	jwtManager := token.NewJWTManager(cfg.Session.TokenSecret, cfg.Session.TTL)
	conversationService := service.NewConversationService(sessions)
	chatService := service.NewChatService(sessions, llmClient, producer, cfg.LLM.Thinking)

	// 6. 设置 Gin 模式并注册路由
	gin.SetMode(cfg.Server.Mode)
	r := handler.NewRouter(handler.RouterDeps{
		ChatService:         chatService,
		ConversationService: conversationService,
		Sessions:            sessions,
		JWTManager:          jwtManager,
		CookieName:          cfg.Session.CookieName,
		SessionTTL:          cfg.Session.TTL,
		Title:               cfg.Server.Title,
		LogoDataURI:         logo,
	})

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	// 等待中断信号以实现优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	// 设置一个5秒的超时上下文
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// 关闭 HTTP 服务器；已劫持的 WebSocket 连接不受 Shutdown 管理，随进程退出关闭
	if err := srv.Shutdown(ctx); err != nil {
		log.Errorf("HTTP 服务器关闭失败: %v", err)
	}
	stopBackground()
	log.Info("服务已优雅关闭")
}
