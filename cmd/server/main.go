package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bankportal/backend/docs"
	"github.com/bankportal/backend/internal/audit"
	"github.com/bankportal/backend/internal/config"
	"github.com/bankportal/backend/internal/database"
	"github.com/bankportal/backend/internal/handlers"
	"github.com/bankportal/backend/internal/jobs"
	"github.com/bankportal/backend/internal/logger"
	mW "github.com/bankportal/backend/internal/middleware"
	"github.com/bankportal/backend/internal/observability"
	"github.com/bankportal/backend/internal/services"
	"github.com/bankportal/backend/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/hibiken/asynq"
	"github.com/spf13/viper"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"
)

// @title Bank Portal Ledger API
// @version 1.0
// @description Accounts, ledger entries and transfers with fees, reversals and ISO 20022 settlement.
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	logger.Init(os.Getenv("LOG_DEVELOPMENT") == "true")
	defer logger.Sync()
	log := logger.Log

	config.Load(log)
	ledgerCfg, err := config.LoadLedgerConfig()
	if err != nil {
		log.Fatal("invalid ledger configuration", zap.Error(err))
	}

	port := viper.GetString("http.port")
	docs.SwaggerInfo.Host = "localhost:" + port

	ctx := context.Background()

	var st store.Store
	switch driver := viper.GetString("store.driver"); driver {
	case "memory":
		log.Warn("using in-memory store, data is lost on restart")
		st = store.NewMemoryStore()
	case "postgres":
		db, err := database.InitDB(ctx, log)
		if err != nil {
			log.Fatal("database unavailable", zap.Error(err))
		}
		defer db.Close()
		st = store.NewPostgresStore(db)
	default:
		log.Fatal("unknown store driver", zap.String("driver", driver))
	}

	redisClient := database.InitRedis(ctx, log)
	if redisClient != nil {
		defer redisClient.Close()
	}

	var jobClient handlers.IntegrityEnqueuer
	if redisClient != nil {
		client := jobs.NewClient(asynq.RedisClientOpt{
			Addr:     database.RedisAddr(),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		}, viper.GetString("worker.queue"))
		defer client.Close()
		jobClient = client
	}

	metrics := observability.NewMetrics()
	auditLogger := audit.NewLogger(logger.Named("audit"))

	ledger := services.NewLedgerService(st, services.NewFeeSchedule(ledgerCfg), auditLogger, metrics, log)
	iso := services.NewISO20022Service(ledgerCfg)
	transfers := services.NewTransferService(services.TransferDeps{
		Store:     st,
		Ledger:    ledger,
		ISO:       iso,
		Publisher: services.NewRedisPublisher(redisClient, ledgerCfg.EventsQueue, ledgerCfg.SettlementQueue),
		Mode:      ledgerCfg.TransferMode,
		Audit:     auditLogger,
		Metrics:   metrics,
		Logger:    log,
	})
	accounts := services.NewAccountService(st, ledger, auditLogger, log)
	qr := services.NewQRService(st, redisClient)
	integrity := services.NewIntegrityService(st, metrics, log)

	secret := viper.GetString("jwt.secret_key")
	if secret == "" {
		log.Warn("JWT_SECRET_KEY is empty, every API request will be rejected")
	}
	auth := mW.NewAuthenticator(secret, redisClient)

	r := chi.NewRouter()

	r.Use(mW.SecurityHeaders(viper.GetBool("http.ssl_redirect")))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(metrics.Middleware)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})
	r.Handle("/metrics", metrics.Handler())
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(auth.Middleware)
		handlers.Routes{
			Accounts:            handlers.NewAccountHandler(accounts, log),
			Transactions:        handlers.NewTransactionHandler(ledger, log),
			Transfers:           handlers.NewTransferHandler(transfers, iso, log),
			QR:                  handlers.NewQRHandler(qr, transfers, log),
			Integrity:           handlers.NewIntegrityHandler(integrity, jobClient, log),
			MoneyMovesPerMinute: 60,
		}.Register(r)
	})

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("server starting",
			zap.String("addr", server.Addr),
			zap.String("transfer_mode", string(ledgerCfg.TransferMode)),
			zap.String("currency", ledgerCfg.Currency))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}
	log.Info("server stopped")
}
