package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ai-question-service/apperr"
	"ai-question-service/config"
	"ai-question-service/handlers"
	"ai-question-service/metrics"
	"ai-question-service/middleware"
	"ai-question-service/openai"
	"ai-question-service/pipeline"
	"ai-question-service/rabbitmq"

	"github.com/apex/log"
	jsonhandler "github.com/apex/log/handlers/json"
	"github.com/apex/log/handlers/text"
	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	EndPointHealth            = "/health"
	EndPointVersion           = "/version"
	EndPointMetrics           = "/metrics"
	EndPointCompletions       = "/api/ai/completions"
	EndPointCompletionsStream = "/api/ai/completions/stream"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Debug("no .env file found, using the process environment")
	}

	cfg := config.Load()
	setupLogging(cfg)

	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}

	if cfg.LogLevel == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	metrics.Register()

	validator, err := middleware.NewSessionValidator(cfg)
	if err != nil {
		log.WithError(err).Fatal("failed to create session validator")
	}

	generator := pipeline.NewGenerator(openai.NewClient(cfg), pipeline.Options{
		Timeout:          cfg.AIStreamTimeout,
		MaxBufferBytes:   cfg.AIMaxBufferBytes,
		StrictValidation: cfg.AIStrictValidation,
	}, log.Log)

	var publisher handlers.EventPublisher
	var amqpPublisher *rabbitmq.Publisher
	if cfg.AMQPURL != "" {
		amqpPublisher, err = rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPRoutingKey)
		if err != nil {
			log.WithError(err).Warn("generation events disabled: failed to connect to RabbitMQ")
		} else {
			publisher = amqpPublisher
		}
	}

	router := setupRouter(cfg, generator, publisher, validator)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.WithFields(log.Fields{
			"port":          cfg.Port,
			"model":         cfg.AIModel,
			"auth_mode":     cfg.AuthMode,
			"strict":        cfg.AIStrictValidation,
			"rate_per_min":  cfg.RateLimitPerMinute,
			"events_enable": publisher != nil,
		}).Info("server.starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("failed to start HTTP server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("server.shutting_down")

	// Generations can take minutes; give in-flight ones the full stream timeout.
	ctx, cancel := context.WithTimeout(context.Background(), cfg.AIStreamTimeout+5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Error("server forced to shutdown")
	}

	if amqpPublisher != nil {
		if err := amqpPublisher.Close(); err != nil {
			log.WithError(err).Warn("failed to close RabbitMQ publisher")
		}
	}

	log.Info("server.exited")
}

func setupLogging(cfg *config.Config) {
	if cfg.LogFormat == "json" {
		log.SetHandler(jsonhandler.New(os.Stdout))
	} else {
		log.SetHandler(text.New(os.Stderr))
	}
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.SetLevel(log.InfoLevel)
		log.WithField("level", cfg.LogLevel).Warn("unknown LOG_LEVEL, using info")
		return
	}
	log.SetLevel(level)
}

func setupRouter(cfg *config.Config, generator handlers.Generator, publisher handlers.EventPublisher, validator middleware.SessionValidator) *gin.Engine {
	router := gin.New()
	router.HandleMethodNotAllowed = true
	if err := router.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		log.WithError(err).Warn("invalid TRUSTED_PROXIES, trusting none")
		_ = router.SetTrustedProxies(nil)
	}

	router.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		handlers.WriteFailure(c, apperr.Internal("internal server error", fmt.Errorf("panic: %v", recovered)))
	}))
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger())
	router.Use(cors.New(corsConfig(cfg.AllowedOrigins)))
	router.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{EndPointCompletionsStream, EndPointMetrics})))

	router.NoMethod(handlers.MethodNotAllowed)

	router.GET(EndPointHealth, handlers.HealthCheck(publisher))
	router.GET(EndPointVersion, handlers.Version)
	router.GET(EndPointMetrics, gin.WrapH(promhttp.Handler()))

	completions := handlers.NewCompletionsHandler(generator, publisher)

	api := router.Group("/")
	api.Use(middleware.AuthMiddleware(validator))
	api.Use(middleware.RateLimitMiddleware(cfg.RateLimitPerMinute))
	{
		api.POST(EndPointCompletions, completions.Generate)
		api.POST(EndPointCompletionsStream, completions.GenerateStream)
	}

	return router
}

func corsConfig(origins []string) cors.Config {
	c := cors.Config{
		AllowMethods:  []string{"POST", "GET", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders: []string{middleware.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 {
		c.AllowAllOrigins = true
		return c
	}
	for _, o := range origins {
		if o == "*" {
			c.AllowAllOrigins = true
			return c
		}
	}
	c.AllowOrigins = origins
	c.AllowCredentials = true
	return c
}
