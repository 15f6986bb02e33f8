// internal/broker/config.go
// Configuration surface for the broker: port, data directory, reclamation
// threshold, log level, and ping/pong timing. Loaded the way the gateway's
// config.go loads its own: environment variables prefixed YEP_BROKER_, an
// optional config file, then whatever the caller overrides from flags.
package broker

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
    ListenAddr string // host:port to bind, e.g. ":4444"

    DataDir     string // sqlite database directory (ignored when Redis is configured)
    RedisAddr   string // non-empty selects the Redis store instead of sqlite
    ReclaimDays int    // registrations idle longer than this are deleted

    LogLevel string

    PingInterval time.Duration
    PongTimeout  time.Duration

    EnableMetrics bool
    ReadTimeout   time.Duration
    WriteTimeout  time.Duration
}

func DefaultConfig() Config {
    return Config{
        ListenAddr:    ":4444",
        DataDir:       "./data",
        ReclaimDays:   30,
        LogLevel:      "info",
        PingInterval:  30 * time.Second,
        PongTimeout:   60 * time.Second,
        EnableMetrics: true,
        ReadTimeout:   5 * time.Second,
        WriteTimeout:  10 * time.Second,
    }
}

// LoadConfig merges environment variables (prefix YEP_BROKER) and an
// optional config file into cfg. filePath may be empty.
func LoadConfig(cfg *Config, filePath string) {
    v := viper.New()
    v.SetEnvPrefix("YEP_BROKER")
    v.AutomaticEnv()

    if filePath != "" {
        v.SetConfigFile(filePath)
        if err := v.ReadInConfig(); err == nil {
            _ = v.Unmarshal(cfg)
        }
    }

    if addr := v.GetString("LISTEN_ADDR"); addr != "" {
        cfg.ListenAddr = addr
    }
    if dir := v.GetString("DATA_DIR"); dir != "" {
        cfg.DataDir = dir
    }
    if redisAddr := v.GetString("REDIS_ADDR"); redisAddr != "" {
        cfg.RedisAddr = redisAddr
    }
    if days := v.GetInt("RECLAIM_DAYS"); days != 0 {
        cfg.ReclaimDays = days
    }
}
