package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port                    string
	Env                     string
	FirebaseCredentialsPath string
	PostgresConnStr         string
	MongoURI                string
	MongoDatabase           string
	RedisAddr               string
	RedisChannel            string
	MetricsPort             string
	SyncSettleDelay         time.Duration
	CacheIdleTTL            time.Duration
	FeedPageSize            int
}

func Load() *Config {
	return &Config{
		Port:                    getEnv("PORT", "8080"),
		Env:                     getEnv("ENV", "development"),
		FirebaseCredentialsPath: getEnv("FIREBASE_CREDENTIALS_PATH", ""),
		PostgresConnStr:         getEnv("POSTGRES_CONN_STR", ""),
		MongoURI:                getEnv("MONGO_URI", ""),
		MongoDatabase:           getEnv("MONGO_DATABASE", "commonshub"),
		RedisAddr:               getEnv("REDIS_ADDR", ""),
		RedisChannel:            getEnv("REDIS_CHANNEL", ""),
		MetricsPort:             getEnv("METRICS_PORT", "9090"),
		SyncSettleDelay:         getDuration("SYNC_SETTLE_DELAY", time.Second),
		CacheIdleTTL:            getDuration("CACHE_IDLE_TTL", 5*time.Minute),
		FeedPageSize:            getInt("FEED_PAGE_SIZE", 50),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
