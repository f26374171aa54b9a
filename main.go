package main

import (
	"context"
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"realtime-service/internal/badges"
	"realtime-service/internal/db"
	"realtime-service/internal/handlers"
	"realtime-service/internal/middleware"
	"realtime-service/internal/observability"
	"realtime-service/internal/rabbitmq"
	"realtime-service/internal/repositories"
	"realtime-service/internal/telemetry"
	"realtime-service/internal/ws"
)

func main() {
	ctx := context.Background()

	database, err := db.Connect()
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}

	shutdownTracing := observability.InitTracing(ctx, "realtime-service")
	defer shutdownTracing(ctx)

	amqpURL := getEnv("AMQP_URL", "")
	if amqpURL != "" {
		publisher, err := observability.NewAMQPPublisher(amqpURL, getEnv("AMQP_EXCHANGE", "realtime.events"))
		if err != nil {
			log.Printf("amqp publisher disabled: %v", err)
		} else {
			observability.SetPublisher(publisher)
			defer publisher.Close()
		}
	}

	auditPublisher := rabbitmq.NewPublisher(amqpURL, getEnv("AUDIT_EXCHANGE", "audit.events"))
	defer auditPublisher.Close()
	if mode := rabbitmq.PublisherMode(auditPublisher); mode == "noop" {
		log.Printf("audit publisher mode=%s reason=%q", mode, rabbitmq.PublisherNoopReason(auditPublisher))
	} else {
		log.Printf("audit publisher mode=%s", mode)
	}
	auditEmitter := telemetry.NewAuditEmitter(auditPublisher, "audit_log.realtime", "realtime-service", getEnv("ENVIRONMENT", "development"))

	messageRepo := repositories.NewMessageRepo(database)
	badgeRepo := repositories.NewBadgeRepo(database)

	hub := ws.NewHub(auditEmitter)
	aggregator := badges.NewAggregator(messageRepo, badgeRepo)

	streamHandler := handlers.NewStreamHandler(messageRepo, hub, auditEmitter)
	badgeHandler := handlers.NewBadgeHandler(aggregator)
	streamWS := ws.NewStreamWebSocketHandler(hub, messageRepo)

	router := gin.Default()

	// middlewares
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("realtime-service"))
	router.Use(observability.HTTPMetricsMiddleware())

	authMiddleware := middleware.AuthMiddleware()

	router.GET("/scopes/:scope/messages", authMiddleware, streamHandler.GetMessages)
	router.POST("/scopes/:scope/messages", authMiddleware, streamHandler.PostMessage)
	router.POST("/scopes/:scope/rebalance", authMiddleware, streamHandler.Rebalance)

	router.GET("/badges", middleware.OptionalAuth(), badgeHandler.Snapshot)

	router.GET("/ws/scopes/:scope", streamWS.Handle)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handlers.RegisterDebugRoutes(router, auditEmitter, getEnv("DEBUG_ROUTES", "") == "true")

	port := getEnv("PORT", "8083")
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}
