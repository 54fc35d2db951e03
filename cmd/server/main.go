package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/installmarket/installmarket-backend/internal/config"
	"github.com/installmarket/installmarket-backend/internal/db"
	"github.com/installmarket/installmarket-backend/internal/gateway"
	"github.com/installmarket/installmarket-backend/internal/goroutine"
	httpHandlers "github.com/installmarket/installmarket-backend/internal/http/handlers"
	httpRouter "github.com/installmarket/installmarket-backend/internal/http/router"
	"github.com/installmarket/installmarket-backend/internal/logger"
	"github.com/installmarket/installmarket-backend/internal/repository"
	"github.com/installmarket/installmarket-backend/internal/service"
	"github.com/installmarket/installmarket-backend/internal/storage"
	"github.com/installmarket/installmarket-backend/internal/ws"
)

func main() {
	// Готовим контекст для graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("main: ошибка загрузки конфигурации: %v", err)
	}

	if cfg.Env == "development" {
		logger.Init("debug")
		logger.SetTextFormatter()
	} else {
		logger.Init("info")
	}

	// Подключение к базе и миграции.
	dbConn, err := db.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("main: ошибка подключения к базе: %v", err)
	}
	defer safeClose(dbConn)

	if err := db.RunMigrations(ctx, dbConn, cfg.MigrationsPath); err != nil {
		log.Fatalf("main: ошибка миграций: %v", err)
	}

	tokenManager := service.NewTokenManager(cfg.JWTSecret, cfg.RefreshSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)

	mediaStorage, err := storage.NewMediaStorage(cfg.MediaStoragePath, cfg.MaxUploadSizeMB)
	if err != nil {
		log.Fatalf("main: не удалось подготовить файловое хранилище: %v", err)
	}

	// Репозитории.
	userRepo := repository.NewUserRepository(dbConn)
	jobRepo := repository.NewJobRepository(dbConn)
	bidRepo := repository.NewBidRepository(dbConn)
	paymentRepo := repository.NewPaymentRepository(dbConn)
	disputeRepo := repository.NewDisputeRepository(dbConn)
	mediaRepo := repository.NewMediaRepository(dbConn)

	// Вебсокеты.
	hub := ws.NewHub()
	go hub.Run()

	// Платёжный шлюз и сервисы.
	gatewayClient := gateway.NewHTTPClient(cfg.Gateway)

	authService := service.NewAuthService(userRepo, tokenManager)
	paymentService := service.NewPaymentService(paymentRepo, jobRepo, bidRepo, gatewayClient, hub, cfg.Escrow)
	jobService := service.NewJobService(jobRepo, bidRepo, paymentService, hub, cfg.Escrow)
	bidService := service.NewBidService(bidRepo, jobRepo, hub, cfg.Escrow)
	disputeService := service.NewDisputeService(disputeRepo, jobRepo, paymentService, hub)
	mediaService := service.NewMediaService(mediaRepo, jobRepo, mediaStorage)

	// Фоновая обработка просроченных окон подтверждения и оплаты.
	goroutine.RunPeriodic(ctx, time.Minute, jobService.ExpireDeadlines)

	// HTTP хэндлеры.
	authHandler := httpHandlers.NewAuthHandler(authService)
	jobHandler := httpHandlers.NewJobHandler(jobService)
	bidHandler := httpHandlers.NewBidHandler(bidService)
	paymentHandler := httpHandlers.NewPaymentHandler(paymentService)
	disputeHandler := httpHandlers.NewDisputeHandler(disputeService)
	mediaHandler := httpHandlers.NewMediaHandler(mediaService)
	wsHandler := httpHandlers.NewWSHandler(hub, tokenManager)
	healthHandler := httpHandlers.NewHealthHandler(dbConn)

	engine := httpRouter.SetupRouter(cfg, authHandler, jobHandler, bidHandler, paymentHandler, disputeHandler, mediaHandler, wsHandler, healthHandler, tokenManager)

	server := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: engine,
	}

	// Завершаем сервер при получении сигнала.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("main: ошибка остановки http сервера: %v", err)
		}
	}()

	log.Printf("main: HTTP сервер запущен на порту %s", cfg.HTTPPort)

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("main: сервер завершился с ошибкой: %v", err)
	}
}

// safeClose закрывает соединение с базой.
func safeClose(db *sqlx.DB) {
	if err := db.Close(); err != nil {
		log.Printf("main: ошибка закрытия базы: %v", err)
	}
}
