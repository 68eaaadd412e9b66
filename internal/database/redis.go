package database

import (
	"context"

	"github.com/go-redis/redis/v8"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// RedisAddr returns host:port from configuration.
func RedisAddr() string {
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", "6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	return viper.GetString("redis.host") + ":" + viper.GetString("redis.port")
}

// InitRedis initializes Redis client with config. A nil client means Redis
// is unavailable; callers degrade instead of failing.
func InitRedis(ctx context.Context, log *zap.Logger) *redis.Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:     RedisAddr(),
		Password: viper.GetString("redis.password"),
		DB:       viper.GetInt("redis.db"),
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warn("redis connection failed, continuing without redis", zap.Error(err))
		rdb.Close()
		return nil
	}

	log.Info("redis connection established")
	return rdb
}
