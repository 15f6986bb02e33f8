// internal/gateway/config.go
// Centralised loader for gateway configuration, populated in precedence
// order: explicit struct < optional config file < environment variables
// prefixed YEP_GATEWAY_ < CLI flags (applied by the caller after LoadConfig).
// Loaded with viper so the same struct can be populated from a YAML, TOML,
// or JSON config file interchangeably.
package gateway

import (
	"time"

	"github.com/spf13/viper"
)

// Config is the gateway's configuration surface: remote-access toggle,
// optional username/SRP salt/verifier, resume-token lifetime, heartbeat
// interval, plus the ambient HTTP/JWT knobs.
type Config struct {
    ListenAddr string // e.g. ":4443"

    RemoteAccessEnabled bool // false => plaintext allowed

    SessionKeyLifetime time.Duration // resume-token TTL
    HeartbeatInterval  time.Duration // default 30s

    JWTSecret []byte // resume-token HMAC secret
    JWTIssuer string

    EnableMetrics bool
    ReadTimeout   time.Duration
    WriteTimeout  time.Duration

    MaxClients int
}

// DefaultConfig returns production-ready defaults suitable for local dev.
func DefaultConfig() Config {
    return Config{
        ListenAddr:         ":4443",
        RemoteAccessEnabled: true,
        SessionKeyLifetime: 24 * time.Hour,
        HeartbeatInterval:  30 * time.Second,
        JWTIssuer:          "yep-gateway",
        EnableMetrics:      true,
        ReadTimeout:        5 * time.Second,
        WriteTimeout:       10 * time.Second,
        MaxClients:         128,
    }
}

// LoadConfig merges environment variables (prefix YEP_GATEWAY) and an
// optional config file into cfg. filePath may be empty.
func LoadConfig(cfg *Config, filePath string) {
    v := viper.New()
    v.SetEnvPrefix("YEP_GATEWAY")
    v.AutomaticEnv()

    if filePath != "" {
        v.SetConfigFile(filePath)
        _ = v.ReadInConfig() // missing file is non-fatal
    }

    if v.IsSet("listen_addr") {
        cfg.ListenAddr = v.GetString("listen_addr")
    }
    if v.IsSet("remote_access_enabled") {
        cfg.RemoteAccessEnabled = v.GetBool("remote_access_enabled")
    }
    if v.IsSet("heartbeat_interval") {
        cfg.HeartbeatInterval = v.GetDuration("heartbeat_interval")
    }
    if v.IsSet("session_key_lifetime") {
        cfg.SessionKeyLifetime = v.GetDuration("session_key_lifetime")
    }
    if v.IsSet("jwt_secret") {
        cfg.JWTSecret = []byte(v.GetString("jwt_secret"))
    }
    if v.IsSet("jwt_issuer") {
        cfg.JWTIssuer = v.GetString("jwt_issuer")
    }
}
