package core

import (
	"fmt"
	"strings"
	"time"
)

type SSOConfig struct {
	ClientID      string   `koanf:"client_id" mapstructure:"client_id"`
	CallbackURL   string   `koanf:"callback_url" mapstructure:"callback_url"`
	DefaultScopes []string `koanf:"default_scopes" mapstructure:"default_scopes"`
}

type RefreshConfig struct {
	Interval    time.Duration `koanf:"interval" mapstructure:"interval"`
	MaxAttempts int           `koanf:"max_attempts" mapstructure:"max_attempts"`
}

type Config struct {
	ServiceName string        `koanf:"service_name" mapstructure:"service_name"`
	SSO         SSOConfig     `koanf:"sso" mapstructure:"sso"`
	Refresh     RefreshConfig `koanf:"refresh" mapstructure:"refresh"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "corp-auth",
		SSO: SSOConfig{
			DefaultScopes: []string{"publicData"},
		},
		Refresh: RefreshConfig{
			Interval:    30 * time.Minute,
			MaxAttempts: defaultRefreshMaxAttempts,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.Refresh.MaxAttempts < 0 {
		return fmt.Errorf("core: refresh max_attempts must not be negative")
	}
	return nil
}
