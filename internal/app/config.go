package app

import (
	"github.com/quizforge/quizforge-backend/internal/platform/envutil"
	"github.com/quizforge/quizforge-backend/internal/platform/logger"
)

type Config struct {
	Port    string
	LogMode string
	// Redis is optional; without it job events stay in-process only.
	RedisAddr string
}

func LoadConfig(log *logger.Logger) Config {
	return Config{
		Port:      envutil.GetEnv("PORT", "8080", log),
		LogMode:   envutil.GetEnv("LOG_MODE", "development", log),
		RedisAddr: envutil.GetEnv("REDIS_ADDR", "", log),
	}
}
