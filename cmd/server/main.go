package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"telco-billing/config"
	"telco-billing/internal/api"
	"telco-billing/internal/billing"
	"telco-billing/internal/broker"
	"telco-billing/internal/models"
	"telco-billing/internal/notification"
	"telco-billing/internal/payment"
	"telco-billing/internal/redisclient"
	"telco-billing/internal/scheduler"
	"telco-billing/internal/store"
	"telco-billing/internal/util"
	"telco-billing/internal/worker"

	"github.com/gin-gonic/gin"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting telco billing service")

	tp, err := util.InitTracer("telco-billing", cfg.Observ.JaegerEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down tracer: %v", err)
		}
	}()

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Database connected")

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("Redis connected")

	producer := broker.NewProducer(cfg.Kafka.Brokers)
	defer producer.Close()
	log.Println("Kafka producer initialized")

	eventPublisher := broker.NewEventPublisher(producer)

	catalogClient := billing.NewHTTPCatalogClient(cfg.Business.CatalogBaseURL, cfg.Business.CatalogTimeout)
	userDirectory := billing.NewHTTPUserDirectory(cfg.Business.UserDirectoryBaseURL, cfg.Business.CatalogTimeout)
	gateway := payment.NewMockGateway()

	billingService := billing.NewService(db, catalogClient, userDirectory, eventPublisher,
		cfg.Business.BaseFeeCents, cfg.Business.BillDueDays)
	paymentService := payment.NewService(db, gateway, eventPublisher, cfg.Business.GatewayTimeout)

	emailSender := notification.NewHTTPEmailSender(cfg.Business.EmailProviderURL,
		os.Getenv("EMAIL_API_KEY"), "noreply@example.net", 10*time.Second)
	smsSender := notification.NewHTTPSMSSender(cfg.Business.SMSProviderURL,
		os.Getenv("SMS_API_KEY"), "TELCO", 10*time.Second)
	pushSender := notification.NewRedisPushSender(redisClient)

	dispatcher := notification.NewDispatcher(db, emailSender, smsSender, pushSender,
		redisClient, cfg.Business.DedupRetention)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	billingConsumer := broker.NewConsumer(cfg.Kafka.Brokers, models.ChannelPayment, cfg.Kafka.BillingGroup)
	billingWorker := worker.NewBillingWorker(billingConsumer, billingService)
	go func() {
		if err := billingWorker.Start(workerCtx); err != nil {
			log.Printf("Billing worker error: %v", err)
		}
	}()

	notificationConsumer := broker.NewConsumer(cfg.Kafka.Brokers, models.ChannelNotification, cfg.Kafka.NotificationGroup)
	notificationWorker := worker.NewNotificationWorker(notificationConsumer, dispatcher)
	go func() {
		if err := notificationWorker.Start(workerCtx); err != nil {
			log.Printf("Notification worker error: %v", err)
		}
	}()

	sched := scheduler.New(billingService, dispatcher, redisClient,
		cfg.Business.SweepInterval, cfg.Business.RetryInterval, cfg.Business.MaxNotifyRetries)
	go sched.Start(workerCtx)

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()
	handler := api.NewHandler(billingService, paymentService, dispatcher)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Printf("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	workerCancel()
	billingWorker.Stop()
	notificationWorker.Stop()

	log.Println("Server exited")
}
