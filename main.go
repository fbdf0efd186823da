package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"conversation-service/config"
	"conversation-service/controllers"
	"conversation-service/database"
	"conversation-service/kafka"
	"conversation-service/logger"
	"conversation-service/models"
	"conversation-service/repository"
	"conversation-service/routes"
	"conversation-service/services"
)

func main() {
	cfg := config.Load()

	logger.Initialize(cfg.Env)
	log := logger.Log
	defer log.Sync()

	db, err := database.ConnectPostgres(cfg, log,
		&models.Session{},
		&models.Order{},
		&models.Category{},
		&models.MenuItem{},
	)
	if err != nil {
		log.Fatal("Database connection failed", zap.Error(err))
	}

	if cfg.SeedMenu {
		if err := database.SeedMenu(db, log); err != nil {
			log.Fatal("Menu seeding failed", zap.Error(err))
		}
	}

	redisClient, err := database.NewRedisClient(cfg.RedisURL)
	if err != nil {
		log.Fatal("Redis connection failed", zap.Error(err))
	}
	log.Info("Connected to Redis")

	producer := kafka.NewOrderEventProducer(cfg.KafkaBrokers, cfg.OrderEventsTopic, log)
	defer producer.Close()

	sessionRepo := repository.NewGormSessionRepository(db)
	orderRepo := repository.NewGormOrderRepository(db)
	menuRepo := repository.NewGormMenuRepository(db)
	dedupStore := repository.NewRedisDedupStore(redisClient, cfg.DedupWindow)

	sender := services.NewWhatsAppClient(cfg.WhatsAppPhoneNumberID, cfg.WhatsAppAccessToken, cfg.WhatsAppAPIVersion, log)
	stripeSvc := services.NewStripeService(cfg.StripeSecretKey, cfg.StripeWebhookKey, cfg.Currency, cfg.SuccessURL, cfg.CancelURL)

	dispatcher := services.NewDispatcher(sessionRepo, orderRepo, menuRepo, dedupStore, sender, stripeSvc, producer, log)

	reconciler := services.NewReconciler(sessionRepo, orderRepo, sender, producer, log, cfg.PaymentTimeout, cfg.ReconcileInterval)
	reconcileCtx, stopReconciler := context.WithCancel(context.Background())
	go reconciler.Start(reconcileCtx)

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(logger.RequestLogger(), gin.Recovery())

	webhookController := controllers.NewWebhookController(dispatcher, cfg.WhatsAppVerifyToken, cfg.WhatsAppAppSecret, log)
	paymentController := controllers.NewPaymentWebhookController(dispatcher, stripeSvc, orderRepo, log)
	routes.RegisterRoutes(router, webhookController, paymentController)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Info("Conversation service is running", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info("Shutting down gracefully...")
	stopReconciler()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Shutdown error", zap.Error(err))
	}
	log.Info("Server shutdown complete")
}
