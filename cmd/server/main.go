// Package main 是应用程序的入口点。
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloudshift-go/internal/config"
	"cloudshift-go/internal/handler"
	"cloudshift-go/internal/middleware"
	"cloudshift-go/internal/model"
	"cloudshift-go/internal/repository"
	"cloudshift-go/internal/service"
	"cloudshift-go/internal/session"
	"cloudshift-go/pkg/database"
	"cloudshift-go/pkg/es"
	"cloudshift-go/pkg/kafka"
	"cloudshift-go/pkg/log"
	"cloudshift-go/pkg/migration"
	"cloudshift-go/pkg/storage"
	"cloudshift-go/pkg/token"

	"github.com/gin-gonic/gin"
)

func main() {
	// 1. 初始化配置
	config.Init("./configs/config.yaml")
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Info("日志记录器初始化成功")

	// 3. 初始化存储与外部依赖
	database.InitMySQL(cfg.Database.MySQL.DSN)
	if err := database.DB.AutoMigrate(&model.User{}); err != nil {
		log.Fatal("用户表迁移失败", err)
	}
	database.InitRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
	database.InitMongo(cfg.Database.Mongo.URI, cfg.Database.Mongo.Database)
	storage.InitMinIO(cfg.MinIO)
	if err := es.InitES(cfg.Elasticsearch); err != nil {
		log.Errorf("es 初始化失败 %s", err)
		return
	}
	kafka.InitProducer(cfg.Kafka)

	// 4. 初始化 Repository
	userRepository := repository.NewUserRepository(database.DB)
	chatRepository := repository.NewChatRepository(database.Mongo)

	// 5. 初始化 Service (依赖注入)
	jwtManager := token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpireHours, cfg.JWT.RefreshTokenExpireDays)
	migrationClient := migration.NewClient(cfg.Migration)
	sessions := session.NewManager()
	userService := service.NewUserService(userRepository, jwtManager, cfg.Auth)
	chatService := service.NewChatService(chatRepository, sessions, cfg.Elasticsearch)
	migrationService := service.NewMigrationService(chatService, migrationClient, cfg.MinIO)
	searchService := service.NewSearchService(cfg.Elasticsearch)

	// 6. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New() // 使用 New() 创建一个不带默认中间件的引擎
	r.Use(middleware.RequestLogger(), gin.Recovery())

	// 7. 注册路由
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	apiV1 := r.Group("/api/v1")
	{
		// Auth 路由组
		auth := apiV1.Group("/auth")
		{
			auth.POST("/refreshToken", handler.NewAuthHandler(userService).RefreshToken)
		}

		users := apiV1.Group("/users")
		{
			// 无需认证的路由 (公开访问)
			users.POST("/register", handler.NewUserHandler(userService).Register)
			users.POST("/login", handler.NewUserHandler(userService).Login)

			// 需要认证的路由 (仅限登录用户访问)
			authed := users.Group("/")
			authed.Use(middleware.AuthMiddleware(jwtManager, userService))
			{
				authed.GET("/me", handler.NewUserHandler(userService).GetProfile)
				authed.POST("/logout", handler.NewUserHandler(userService).Logout)
			}
		}

		// Chat 路由组，需要认证
		chats := apiV1.Group("/chats")
		chats.Use(middleware.AuthMiddleware(jwtManager, userService))
		{
			chatHandler := handler.NewChatHandler(chatService)
			chats.POST("", chatHandler.CreateChat)
			chats.GET("", chatHandler.GetChats)
			chats.GET("/search", handler.NewSearchHandler(searchService).SearchMessages)
			chats.GET("/:chatId", chatHandler.GetChat)
			chats.PUT("/:chatId", chatHandler.UpdateChat)
			chats.DELETE("/:chatId", chatHandler.DeleteChat)
			chats.POST("/:chatId/messages", chatHandler.AddMessage)
			chats.GET("/:chatId/messages/:messageId/archive", handler.NewMigrationHandler(migrationService).Archive)
		}

		// Migration 路由组，需要认证
		migrate := apiV1.Group("/migrate")
		migrate.Use(middleware.AuthMiddleware(jwtManager, userService))
		{
			migrationHandler := handler.NewMigrationHandler(migrationService)
			migrate.POST("/file", migrationHandler.MigrateFile)
			migrate.POST("/url", migrationHandler.MigrateURL)
			migrate.GET("/health", migrationHandler.Health)
		}

		// 会话状态快照
		sessionGroup := apiV1.Group("/session")
		sessionGroup.Use(middleware.AuthMiddleware(jwtManager, userService))
		{
			sessionGroup.GET("", handler.NewChatHandler(chatService).GetSession)
		}
	}

	// 会话状态推送 (WebSocket)
	r.GET("/session/ws/:token", handler.NewSessionHandler(sessions, userService, jwtManager).Handle)

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

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP 服务器关闭失败: %v", err)
	}

	log.Info("服务已优雅关闭")
}
