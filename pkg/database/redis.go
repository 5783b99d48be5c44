package database

import (
	"context"
	"fmt"
	"lms_backend/internal/config"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
)

// InitRedis Redis是可选依赖：未配置时返回nil，点击去重与目录缓存退化为直连数据库
func InitRedis(cfg *config.RedisConfig) (*redis.Client, error) {
	if cfg.Host == "" {
		log.Println("Redis not configured, running without cache")
		return nil, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     50,
		MinIdleConns: 5,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		return nil, err
	}

	log.Println("Redis connection established")
	return rdb, nil
}
