package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rileyhilliard/bealink/internal/errors"
	"gopkg.in/yaml.v3"
)

// DefaultYAML renders the default config as a commented YAML document.
func DefaultYAML() string {
	d := DefaultConfig()
	return fmt.Sprintf(`# bealink configuration
version: %d

# Device list (SQLite).
database: %s

agent:
  port: %d
  # Liveness probes. Keep these short.
  health:
    connect: %s
    read: %s
    write: %s
    total: %s
  # Sleep, shutdown, display and clipboard commands. total 0 means unbounded.
  command:
    connect: %s
    read: %s
    write: %s
    total: %s

discovery:
  service: %s
  domain: %s
  timeout: %s
  # How often unresolved hostnames are retried. 0 disables.
  retry_interval: %s

health:
  interval: %s
  max_concurrent: %d

wake:
  # An address, a comma list, or auto for every active interface.
  broadcast: %s
  port: %d

log:
  level: %s
  json: %t

output:
  color: %s
`,
		d.Version, d.Database,
		d.Agent.Port,
		d.Agent.Health.Connect, d.Agent.Health.Read, d.Agent.Health.Write, d.Agent.Health.Total,
		d.Agent.Command.Connect, d.Agent.Command.Read, d.Agent.Command.Write, d.Agent.Command.Total,
		d.Discovery.Service, d.Discovery.Domain, d.Discovery.Timeout, d.Discovery.RetryInterval,
		d.Health.Interval, d.Health.MaxConcurrent,
		d.Wake.Broadcast, d.Wake.Port,
		d.Log.Level, d.Log.JSON,
		d.Output.Color,
	)
}

// WriteDefault writes DefaultYAML to path. An existing file is only
// replaced when force is set.
func WriteDefault(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return errors.New(errors.ErrConfig,
			"Config file already exists: "+path,
			"Use --force to overwrite it")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, "Cannot create config directory", "")
	}
	if err := os.WriteFile(path, []byte(DefaultYAML()), 0o644); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, "Failed to write config file", "Check file permissions")
	}
	return nil
}

// SetValue sets a dotted key (e.g. "wake.broadcast") in the config file,
// preserving its existing structure and comments. Missing intermediate
// mappings are created.
func SetValue(configPath, key, value string) error {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	if root.Kind == 0 {
		root = yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{{Kind: yaml.MappingNode, Tag: "!!map"}}}
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return fmt.Errorf("invalid YAML document structure")
	}

	node := root.Content[0]
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("expected mapping at document root")
	}

	parts := strings.Split(key, ".")
	for _, part := range parts[:len(parts)-1] {
		child := findMapValue(node, part)
		if child == nil {
			child = &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
			node.Content = append(node.Content, scalar(part), child)
		}
		if child.Kind != yaml.MappingNode {
			return fmt.Errorf("'%s' is not a mapping", part)
		}
		node = child
	}

	leaf := parts[len(parts)-1]
	if existing := findMapValue(node, leaf); existing != nil {
		existing.Kind = yaml.ScalarNode
		existing.Tag = ""
		existing.Value = value
		existing.Content = nil
	} else {
		node.Content = append(node.Content, scalar(leaf), &yaml.Node{Kind: yaml.ScalarNode, Value: value})
	}

	var buf strings.Builder
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(&root); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	encoder.Close()

	if err := os.WriteFile(configPath, []byte(buf.String()), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Render returns the effective config as YAML with durations in Go syntax.
func Render(cfg *Config) (string, error) {
	out, err := yaml.Marshal(toDisplay(cfg))
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func toDisplay(cfg *Config) map[string]any {
	dur := func(d time.Duration) string { return d.String() }
	timeouts := func(t Timeouts) map[string]any {
		return map[string]any{
			"connect": dur(t.Connect),
			"read":    dur(t.Read),
			"write":   dur(t.Write),
			"total":   dur(t.Total),
		}
	}
	return map[string]any{
		"version":  cfg.Version,
		"database": cfg.Database,
		"agent": map[string]any{
			"port":    cfg.Agent.Port,
			"health":  timeouts(cfg.Agent.Health),
			"command": timeouts(cfg.Agent.Command),
		},
		"discovery": map[string]any{
			"service":        cfg.Discovery.Service,
			"domain":         cfg.Discovery.Domain,
			"timeout":        dur(cfg.Discovery.Timeout),
			"retry_interval": dur(cfg.Discovery.RetryInterval),
		},
		"health": map[string]any{
			"interval":       dur(cfg.Health.Interval),
			"max_concurrent": cfg.Health.MaxConcurrent,
		},
		"wake": map[string]any{
			"broadcast": cfg.Wake.Broadcast,
			"port":      cfg.Wake.Port,
		},
		"log": map[string]any{
			"level": cfg.Log.Level,
			"json":  cfg.Log.JSON,
		},
		"output": map[string]any{
			"color": cfg.Output.Color,
		},
	}
}

func scalar(v string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v}
}

// findMapValue finds a value in a mapping node by key name.
func findMapValue(node *yaml.Node, key string) *yaml.Node {
	if node.Kind != yaml.MappingNode {
		return nil
	}

	for i := 0; i < len(node.Content)-1; i += 2 {
		keyNode := node.Content[i]
		valueNode := node.Content[i+1]

		if keyNode.Kind == yaml.ScalarNode && keyNode.Value == key {
			return valueNode
		}
	}

	return nil
}
