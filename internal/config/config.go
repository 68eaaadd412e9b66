package config

import (
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var envBindings = map[string]string{
	"database.host":     "DATABASE_HOST",
	"database.port":     "DATABASE_PORT",
	"database.user":     "DATABASE_USER",
	"database.password": "DATABASE_PASSWORD",
	"database.name":     "DATABASE_NAME",
	"database.ssl_mode": "DATABASE_SSL_MODE",

	"redis.host":     "REDIS_HOST",
	"redis.port":     "REDIS_PORT",
	"redis.password": "REDIS_PASSWORD",
	"redis.db":       "REDIS_DB",

	"jwt.secret_key": "JWT_SECRET_KEY",

	"http.port":           "PORT",
	"http.ssl_redirect":   "HTTP_SSL_REDIRECT",
	"log.development":     "LOG_DEVELOPMENT",
	"store.driver":        "STORE_DRIVER",
	"worker.queue":        "WORKER_QUEUE",
	"worker.integrity":    "WORKER_INTEGRITY_SCHEDULE",
	"worker.metrics_port": "WORKER_METRICS_PORT",

	"ledger.currency":         "LEDGER_CURRENCY",
	"ledger.fee_rate":         "LEDGER_FEE_RATE",
	"ledger.fee_min":          "LEDGER_FEE_MIN",
	"ledger.fee_max":          "LEDGER_FEE_MAX",
	"ledger.transfer_mode":    "LEDGER_TRANSFER_MODE",
	"ledger.settlement_bic":   "LEDGER_SETTLEMENT_BIC",
	"ledger.settlement_name":  "LEDGER_SETTLEMENT_NAME",
	"ledger.events_queue":     "LEDGER_EVENTS_QUEUE",
	"ledger.settlement_queue": "LEDGER_SETTLEMENT_QUEUE",
}

// Load reads .env (when present) and binds the environment overrides.
func Load(log *zap.Logger) {
	viper.SetConfigFile(".env")
	viper.SetConfigType("env")
	viper.AutomaticEnv()

	for key, env := range envBindings {
		_ = viper.BindEnv(key, env)
	}

	viper.SetDefault("http.port", "8080")
	viper.SetDefault("http.ssl_redirect", false)
	viper.SetDefault("log.development", false)
	viper.SetDefault("store.driver", "postgres")
	viper.SetDefault("worker.queue", "ledger")
	viper.SetDefault("worker.integrity", "@every 1h")
	viper.SetDefault("worker.metrics_port", "9090")

	if err := viper.ReadInConfig(); err != nil {
		log.Info("config file not found, using defaults", zap.Error(err))
	}
}
