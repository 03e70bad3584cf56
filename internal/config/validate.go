package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rileyhilliard/bealink/internal/errors"
)

var validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

var validColorModes = map[string]bool{"auto": true, "always": true, "never": true}

// Validate checks the config for errors and returns structured error messages.
func Validate(cfg *Config) error {
	if cfg.Version > CurrentConfigVersion {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("This config is from the future (version %d, but bealink only knows up to %d)", cfg.Version, CurrentConfigVersion),
			"Upgrade bealink, or regenerate the file with 'bealink config init --force'")
	}

	if strings.TrimSpace(cfg.Database) == "" {
		return configErr("database must not be empty", "Set 'database' to a file path")
	}

	if err := validatePort("agent.port", cfg.Agent.Port); err != nil {
		return err
	}
	if err := validateTimeouts("agent.health", cfg.Agent.Health, true); err != nil {
		return err
	}
	if err := validateTimeouts("agent.command", cfg.Agent.Command, false); err != nil {
		return err
	}

	if !strings.HasPrefix(cfg.Discovery.Service, "_") || !strings.Contains(cfg.Discovery.Service, "._") {
		return configErr(fmt.Sprintf("discovery.service %q is not a DNS-SD service type", cfg.Discovery.Service),
			"Use the form _name._tcp, e.g. _http._tcp")
	}
	if cfg.Discovery.Domain == "" {
		return configErr("discovery.domain must not be empty", "The usual value is local.")
	}
	if err := positive("discovery.timeout", cfg.Discovery.Timeout); err != nil {
		return err
	}
	if cfg.Discovery.RetryInterval < 0 {
		return configErr("discovery.retry_interval must not be negative", "Use 0 to disable retries")
	}

	if err := positive("health.interval", cfg.Health.Interval); err != nil {
		return err
	}
	if cfg.Health.MaxConcurrent < 1 {
		return configErr("health.max_concurrent must be at least 1", "")
	}

	if strings.TrimSpace(cfg.Wake.Broadcast) == "" {
		return configErr("wake.broadcast must not be empty", "Use 255.255.255.255 or auto")
	}
	if err := validatePort("wake.port", cfg.Wake.Port); err != nil {
		return err
	}

	if !validLogLevels[strings.ToLower(cfg.Log.Level)] {
		return configErr(fmt.Sprintf("log.level %q is not one of debug, info, warn, error", cfg.Log.Level), "")
	}
	if !validColorModes[cfg.Output.Color] {
		return configErr(fmt.Sprintf("output.color %q is not one of auto, always, never", cfg.Output.Color), "")
	}

	return nil
}

func validateTimeouts(prefix string, t Timeouts, requireTotal bool) error {
	if err := positive(prefix+".connect", t.Connect); err != nil {
		return err
	}
	if err := positive(prefix+".read", t.Read); err != nil {
		return err
	}
	if t.Write < 0 || t.Total < 0 {
		return configErr(prefix+" timeouts must not be negative", "")
	}
	if requireTotal {
		if err := positive(prefix+".total", t.Total); err != nil {
			return err
		}
	}
	return nil
}

func positive(key string, d time.Duration) error {
	if d <= 0 {
		return configErr(fmt.Sprintf("%s must be a positive duration, got %s", key, d),
			"Use a Go duration such as 500ms or 3s")
	}
	return nil
}

func validatePort(key string, port int) error {
	if port < 1 || port > 65535 {
		return configErr(fmt.Sprintf("%s %d is out of range", key, port), "Use a port between 1 and 65535")
	}
	return nil
}

func configErr(msg, suggestion string) error {
	return errors.New(errors.ErrConfig, msg, suggestion)
}
