package user

import (
	"errors"
	"time"
)

type Config struct {
	// SessionLifetime is how long a session stays valid after login.
	SessionLifetime time.Duration `koanf:"sessionlifetime"`
	// RedisURL enables the Redis session store. Sessions are kept in memory when empty.
	RedisURL string `koanf:"redisurl"`
}

func DefaultConfig() Config {
	return Config{
		SessionLifetime: 8 * time.Hour,
	}
}

func (c Config) Validate() error {
	if c.SessionLifetime <= 0 {
		return errors.New("session.sessionlifetime must be positive")
	}
	return nil
}
