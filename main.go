package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"parcel-service/config"
	"parcel-service/controllers"
	"parcel-service/database"
	"parcel-service/middleware"
	"parcel-service/repository"
	"parcel-service/routes"
	"parcel-service/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("[ParcelService] Failed to load config: ", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal("[ParcelService] Failed to initialize logger: ", err)
	}
	defer logger.Sync()

	ctx := context.Background()
	client, db, err := database.Connect(ctx, cfg.MongoURL, cfg.MongoDBName)
	if err != nil {
		logger.Fatal("Failed to connect to MongoDB", zap.Error(err))
	}
	defer func() {
		if err := database.Disconnect(client); err != nil {
			logger.Warn("Mongo disconnect failed", zap.Error(err))
		}
	}()

	parcelRepo := repository.NewMongoParcelRepo(db)
	paymentRepo := repository.NewMongoPaymentRepo(db)
	if err := paymentRepo.EnsureIndexes(ctx); err != nil {
		logger.Fatal("Failed to create payment ledger indexes", zap.Error(err))
	}

	stripeSvc := services.NewStripeService(cfg.StripeSecretKey, cfg.StripeWebhookKey, cfg.FrontendURL)
	engine := services.NewReconciliationService(parcelRepo, paymentRepo, stripeSvc, logger)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(logger))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.FrontendURL},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	parcelController := controllers.NewParcelController(parcelRepo, logger)
	paymentController := &controllers.PaymentController{
		Stripe:   stripeSvc,
		Engine:   engine,
		Parcels:  parcelRepo,
		Payments: paymentRepo,
		Logger:   logger,
	}
	routes.RegisterRoutes(r, parcelController, paymentController)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		logger.Info("Parcel service listening", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", zap.Error(err))
	}
}
