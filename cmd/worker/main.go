package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/bankportal/backend/internal/config"
	"github.com/bankportal/backend/internal/database"
	"github.com/bankportal/backend/internal/jobs"
	"github.com/bankportal/backend/internal/logger"
	"github.com/bankportal/backend/internal/observability"
	"github.com/bankportal/backend/internal/services"
	"github.com/bankportal/backend/internal/store"
	"github.com/hibiken/asynq"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// The worker checks ledger integrity on a schedule and on demand.
func main() {
	logger.Init(os.Getenv("LOG_DEVELOPMENT") == "true")
	defer logger.Sync()
	log := logger.Named("worker")

	config.Load(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.InitDB(ctx, log)
	if err != nil {
		log.Fatal("database unavailable", zap.Error(err))
	}
	defer db.Close()

	metrics := observability.NewMetrics()
	integrity := services.NewIntegrityService(store.NewPostgresStore(db), metrics, log)

	metricsServer := &http.Server{Addr: ":" + viper.GetString("worker.metrics_port"), Handler: metrics.Handler()}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server failed", zap.Error(err))
		}
	}()
	defer metricsServer.Close()

	var cron []jobs.CronRegistration
	if spec := viper.GetString("worker.integrity"); spec != "" {
		task, err := jobs.NewIntegrityCheckTask(jobs.IntegrityCheckPayload{})
		if err != nil {
			log.Fatal("build integrity task", zap.Error(err))
		}
		cron = append(cron, jobs.CronRegistration{Spec: spec, Task: task})
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{
			Addr:     database.RedisAddr(),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		Queue:     viper.GetString("worker.queue"),
		Logger:    log,
		Integrity: jobs.NewIntegrityHandler(integrity, log),
		Cron:      cron,
	})
	if err != nil {
		log.Fatal("worker setup failed", zap.Error(err))
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal("worker stopped", zap.Error(err))
	}
	log.Info("worker stopped")
}
