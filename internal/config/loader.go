package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rileyhilliard/bealink/internal/errors"
	"github.com/spf13/viper"
)

const (
	// ConfigFileName is the per-directory config file name.
	ConfigFileName = ".bealink.yaml"
	// GlobalConfigDir is the directory for global config, relative to home.
	GlobalConfigDir = ".config/bealink"
	// GlobalConfigFile is the global config file name.
	GlobalConfigFile = "config.yaml"
	// EnvPrefix prefixes environment overrides, e.g. BEALINK_AGENT_PORT.
	EnvPrefix = "BEALINK"
)

// Load reads config from the specified path. An empty path loads defaults
// plus environment overrides.
func Load(path string) (*Config, error) {
	v := newViper()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if os.IsNotExist(err) {
				return nil, errors.WrapWithCode(err, errors.ErrConfig,
					"Config file not found",
					"Run 'bealink config init' to create a config file, or specify one with --config")
			}
			return nil, errors.WrapWithCode(err, errors.ErrConfig,
				"Failed to read config file",
				"Check the file exists and is valid YAML")
		}
	}

	return parseConfig(v, path)
}

// Find locates the config file using the search order:
// 1. Explicit path (from --config flag)
// 2. .bealink.yaml in current directory
// 3. ~/.config/bealink/config.yaml
//
// Returns the path to the config file, or empty string if not found.
func Find(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			if os.IsNotExist(err) {
				return "", errors.WrapWithCode(err, errors.ErrConfig,
					"Specified config file not found: "+explicit,
					"Check the path is correct")
			}
			return "", errors.WrapWithCode(err, errors.ErrConfig,
				"Cannot access config file: "+explicit,
				"Check file permissions")
		}
		return explicit, nil
	}

	if cwd, err := os.Getwd(); err == nil {
		local := filepath.Join(cwd, ConfigFileName)
		if _, err := os.Stat(local); err == nil {
			return local, nil
		}
	}

	if global := GlobalPath(); global != "" {
		if _, err := os.Stat(global); err == nil {
			return global, nil
		}
	}

	return "", nil
}

// GlobalPath returns ~/.config/bealink/config.yaml, or empty when the home
// directory is unknown.
func GlobalPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, GlobalConfigDir, GlobalConfigFile)
}

// LoadOrDefault finds and loads config, falling back to defaults when no
// file exists. It returns the path that was loaded, if any.
func LoadOrDefault(explicit string) (*Config, string, error) {
	path, err := Find(explicit)
	if err != nil {
		return nil, "", err
	}
	cfg, err := Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, DefaultConfig())
	return v
}

// setDefaults registers every key so env overrides apply to nested fields.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("version", d.Version)
	v.SetDefault("database", d.Database)

	v.SetDefault("agent.port", d.Agent.Port)
	setTimeoutDefaults(v, "agent.health", d.Agent.Health)
	setTimeoutDefaults(v, "agent.command", d.Agent.Command)

	v.SetDefault("discovery.service", d.Discovery.Service)
	v.SetDefault("discovery.domain", d.Discovery.Domain)
	v.SetDefault("discovery.timeout", d.Discovery.Timeout)
	v.SetDefault("discovery.retry_interval", d.Discovery.RetryInterval)

	v.SetDefault("health.interval", d.Health.Interval)
	v.SetDefault("health.max_concurrent", d.Health.MaxConcurrent)

	v.SetDefault("wake.broadcast", d.Wake.Broadcast)
	v.SetDefault("wake.port", d.Wake.Port)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.json", d.Log.JSON)
	v.SetDefault("output.color", d.Output.Color)
}

func setTimeoutDefaults(v *viper.Viper, prefix string, t Timeouts) {
	v.SetDefault(prefix+".connect", t.Connect)
	v.SetDefault(prefix+".read", t.Read)
	v.SetDefault(prefix+".write", t.Write)
	v.SetDefault(prefix+".total", t.Total)
}

// parseConfig converts viper config to our Config struct.
func parseConfig(v *viper.Viper, path string) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		where := "your environment"
		if path != "" {
			where = path
		}
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Invalid config format",
			"Check the YAML syntax in "+where)
	}

	cfg.Database = ExpandTilde(cfg.Database)
	return cfg, nil
}
