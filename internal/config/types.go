package config

import "time"

// CurrentConfigVersion is the schema version for the config file.
// Increment when making breaking changes to the config structure.
const CurrentConfigVersion = 1

// Config represents the complete bealink configuration file.
type Config struct {
	Version   int             `yaml:"version" mapstructure:"version"`
	Database  string          `yaml:"database" mapstructure:"database"`
	Agent     AgentConfig     `yaml:"agent" mapstructure:"agent"`
	Discovery DiscoveryConfig `yaml:"discovery" mapstructure:"discovery"`
	Health    HealthConfig    `yaml:"health" mapstructure:"health"`
	Wake      WakeConfig      `yaml:"wake" mapstructure:"wake"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
	Output    OutputConfig    `yaml:"output" mapstructure:"output"`
}

// AgentConfig controls HTTP calls to the agents.
type AgentConfig struct {
	// Port the agents listen on.
	Port int `yaml:"port" mapstructure:"port"`

	// Health bounds liveness probes; keep it short so a stalled device
	// cannot hold up a probe cycle.
	Health Timeouts `yaml:"health" mapstructure:"health"`

	// Command bounds user-initiated actions.
	Command Timeouts `yaml:"command" mapstructure:"command"`
}

// Timeouts bounds each phase of a request. Zero disables a bound.
type Timeouts struct {
	Connect time.Duration `yaml:"connect" mapstructure:"connect"`
	Read    time.Duration `yaml:"read" mapstructure:"read"`
	Write   time.Duration `yaml:"write" mapstructure:"write"`
	Total   time.Duration `yaml:"total" mapstructure:"total"`
}

// DiscoveryConfig controls hostname resolution over mDNS.
type DiscoveryConfig struct {
	// Service is the DNS-SD service type the agents advertise.
	Service string `yaml:"service" mapstructure:"service"`

	// Domain is the browse domain.
	Domain string `yaml:"domain" mapstructure:"domain"`

	// Timeout bounds one resolution, browse and lookup together.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`

	// RetryInterval is how often unresolved hostnames are retried. 0 disables.
	RetryInterval time.Duration `yaml:"retry_interval" mapstructure:"retry_interval"`
}

// HealthConfig controls the probe loop.
type HealthConfig struct {
	Interval      time.Duration `yaml:"interval" mapstructure:"interval"`
	MaxConcurrent int           `yaml:"max_concurrent" mapstructure:"max_concurrent"`
}

// WakeConfig controls Wake-on-LAN.
type WakeConfig struct {
	// Broadcast is an address, a comma list, or "auto" for every interface.
	Broadcast string `yaml:"broadcast" mapstructure:"broadcast"`
	Port      int    `yaml:"port" mapstructure:"port"`
}

// LogConfig controls logging.
type LogConfig struct {
	// Level: "debug", "info", "warn" or "error".
	Level string `yaml:"level" mapstructure:"level"`
	// JSON writes raw JSON lines instead of the console format.
	JSON bool `yaml:"json" mapstructure:"json"`
}

// OutputConfig controls terminal output formatting.
type OutputConfig struct {
	// Color mode: "auto", "always", or "never".
	// "auto" disables color when output is piped.
	Color string `yaml:"color" mapstructure:"color"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Version:  CurrentConfigVersion,
		Database: "~/" + GlobalConfigDir + "/devices.db",
		Agent: AgentConfig{
			Port: 8088,
			Health: Timeouts{
				Connect: 500 * time.Millisecond,
				Read:    2 * time.Second,
				Write:   500 * time.Millisecond,
				Total:   2800 * time.Millisecond,
			},
			Command: Timeouts{
				Connect: 3 * time.Second,
				Read:    5 * time.Second,
				Write:   5 * time.Second,
			},
		},
		Discovery: DiscoveryConfig{
			Service:       "_http._tcp",
			Domain:        "local.",
			Timeout:       7 * time.Second,
			RetryInterval: 30 * time.Second,
		},
		Health: HealthConfig{
			Interval:      3 * time.Second,
			MaxConcurrent: 64,
		},
		Wake: WakeConfig{
			Broadcast: "255.255.255.255",
			Port:      9,
		},
		Log: LogConfig{
			Level: "info",
		},
		Output: OutputConfig{
			Color: "auto",
		},
	}
}
