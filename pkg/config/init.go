package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// InitConfig writes the default configuration to the default location and
// returns its path. An existing file is only replaced when force is true.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	if err := InitConfigToPath(path, force); err != nil {
		return "", err
	}
	return path, nil
}

// InitConfigToPath writes the default configuration to path, creating
// parent directories as needed.
func InitConfigToPath(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	content, err := generateYAMLWithComments(GetDefaultConfig())
	if err != nil {
		return fmt.Errorf("failed to generate config: %w", err)
	}

	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

type yamlEntry struct {
	key     string
	comment string
	value   *yaml.Node
}

// generateYAMLWithComments renders cfg as a commented YAML document.
func generateYAMLWithComments(cfg *Config) (string, error) {
	fibCfg := cfg.Adapters.Fib

	root := mapping(
		yamlEntry{"logging", "Logging configuration", mapping(
			yamlEntry{"level", "Minimum level: DEBUG, INFO, WARN, ERROR", scalar(cfg.Logging.Level)},
			yamlEntry{"format", "Output format: text, json", scalar(cfg.Logging.Format)},
			yamlEntry{"output", "Destination: stdout, stderr or a file path", scalar(cfg.Logging.Output)},
		)},
		yamlEntry{"server", "Server-wide settings", mapping(
			yamlEntry{"shutdown_timeout", "Maximum time to wait for adapters during shutdown", duration(cfg.Server.ShutdownTimeout)},
			yamlEntry{"metrics", "Prometheus endpoint served at /metrics", mapping(
				yamlEntry{"enabled", "", scalar(cfg.Server.Metrics.Enabled)},
				yamlEntry{"host", "", scalar(cfg.Server.Metrics.Host)},
				yamlEntry{"port", "", scalar(cfg.Server.Metrics.Port)},
			)},
		)},
		yamlEntry{"cache", "Memo table shared by all connections", mapping(
			yamlEntry{"type", "Implementation: locked (RWMutex), sequencer (single writer goroutine)", scalar(cfg.Cache.Type)},
			yamlEntry{"locked", "Options for type: locked", scalar(cfg.Cache.Locked)},
			yamlEntry{"sequencer", "Options for type: sequencer", scalar(cfg.Cache.Sequencer)},
		)},
		yamlEntry{"adapters", "Protocol adapters", mapping(
			yamlEntry{"fib", "Plaintext Fibonacci protocol: one number in, one number out", mapping(
				yamlEntry{"enabled", "", scalar(fibCfg.Enabled)},
				yamlEntry{"host", "Address to bind; empty binds all interfaces", scalar(fibCfg.Host)},
				yamlEntry{"port", "TCP port; 0 picks an ephemeral port", scalar(fibCfg.Port)},
				yamlEntry{"max_connections", "Concurrent connection limit; 0 = unlimited", scalar(fibCfg.MaxConnections)},
				yamlEntry{"max_index", "Largest index served; 0 = unlimited", scalar(fibCfg.MaxIndex)},
				yamlEntry{"read_buffer_size", "Size of the single request read", scalar(fibCfg.ReadBufferSize)},
				yamlEntry{"timeouts", "Socket deadlines; 0 = none", mapping(
					yamlEntry{"read", "", duration(fibCfg.Timeouts.Read)},
					yamlEntry{"write", "", duration(fibCfg.Timeouts.Write)},
				)},
				yamlEntry{"shutdown_timeout", "Wait for in-flight requests before force-closing", duration(fibCfg.ShutdownTimeout)},
				yamlEntry{"metrics_log_interval", "Periodic statistics log; 0 disables", duration(fibCfg.MetricsLogInterval)},
				yamlEntry{"rate_limit", "Accepted connections per second; 0 = unlimited", mapping(
					yamlEntry{"requests_per_second", "", scalar(fibCfg.RateLimit.RequestsPerSecond)},
					yamlEntry{"burst", "", scalar(fibCfg.RateLimit.Burst)},
				)},
			)},
		)},
	)

	doc := &yaml.Node{
		Kind: yaml.DocumentNode,
		HeadComment: "# fibd Configuration File\n" +
			"#\n" +
			"# Every key can be overridden with an environment variable,\n" +
			"# e.g. FIBD_ADAPTERS_FIB_PORT=9000",
		Content: []*yaml.Node{root},
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return "", err
	}
	if err := enc.Close(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func mapping(entries ...yamlEntry) *yaml.Node {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, e := range entries {
		key := &yaml.Node{Kind: yaml.ScalarNode, Value: e.key}
		if e.comment != "" {
			key.HeadComment = "# " + e.comment
		}
		node.Content = append(node.Content, key, e.value)
	}
	return node
}

func scalar(v any) *yaml.Node {
	node := &yaml.Node{}
	if err := node.Encode(v); err != nil {
		// Only plain values are passed in.
		panic(fmt.Sprintf("encode %T: %v", v, err))
	}
	return node
}

func duration(d time.Duration) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Value: d.String()}
}
