package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/charmbracelet/log"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	BackendMemory = "memory"
	BackendConsul = "consul"
	BackendEtcd   = "etcd"
)

var parserMap = map[string]koanf.Parser{
	".yaml": yaml.Parser(),
	".yml":  yaml.Parser(),
	".toml": toml.Parser(),
	".json": json.Parser(),
}

var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	// ReplicaID identifies this process among the replicas. A random ID is
	// used when empty.
	ReplicaID string `koanf:"replica-id"`

	Log   LogConfig   `koanf:"log"`
	Maps  MapsConfig  `koanf:"maps"`
	Store StoreConfig `koanf:"store"`
}

type LogConfig struct {
	Level string `koanf:"level"`
}

// MapsConfig names the replicated maps. Replicas only share state when they
// use the same names.
type MapsConfig struct {
	Nodes    string `koanf:"nodes"`
	Gateways string `koanf:"gateways"`
}

type StoreConfig struct {
	Backend string       `koanf:"backend"`
	Prefix  string       `koanf:"prefix"`
	Consul  ConsulConfig `koanf:"consul"`
	Etcd    EtcdConfig   `koanf:"etcd"`
	Retry   RetryConfig  `koanf:"retry"`
}

type ConsulConfig struct {
	Address  string        `koanf:"address"`
	Token    string        `koanf:"token"`
	WaitTime time.Duration `koanf:"wait-time"`
}

type EtcdConfig struct {
	Endpoints   []string      `koanf:"endpoints"`
	DialTimeout time.Duration `koanf:"dial-timeout"`
}

type RetryConfig struct {
	Attempts uint          `koanf:"attempts"`
	Delay    time.Duration `koanf:"delay"`
}

// Default returns the configuration used for anything a file leaves unset.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level: "info",
		},
		Maps: MapsConfig{
			Nodes:    "openstack-nodes",
			Gateways: "multi-gateway",
		},
		Store: StoreConfig{
			Backend: BackendMemory,
			Prefix:  "vnetmanager",
			Consul: ConsulConfig{
				Address:  "127.0.0.1:8500",
				WaitTime: 5 * time.Minute,
			},
			Etcd: EtcdConfig{
				Endpoints:   []string{"127.0.0.1:2379"},
				DialTimeout: 5 * time.Second,
			},
			Retry: RetryConfig{
				Attempts: 5,
				Delay:    100 * time.Millisecond,
			},
		},
	}
}

// Load reads configFile and fills everything it leaves unset from Default.
// A missing file is not an error.
func Load(configFile string) (*Config, error) {
	cfg := &Config{}

	if configFile != "" {
		if err := load(configFile, cfg); err != nil {
			return nil, err
		}
	}

	if err := mergo.Merge(cfg, Default()); err != nil {
		return nil, fmt.Errorf("failed to apply config defaults: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func load(configFile string, cfg *Config) error {
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		log.Debug("config file does not exist", "path", configFile)
		return nil
	} else if err != nil {
		return fmt.Errorf("failed to check config file: %w", err)
	}

	k, err := loadFile(configFile)
	if err != nil {
		return err
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return fmt.Errorf("failed to unmarshal config file %s: %w", configFile, err)
	}

	log.Info("loaded config file", "path", configFile)
	return nil
}

// loadFile parses a YAML, TOML or JSON file, picking the format by extension.
func loadFile(path string) (*koanf.Koanf, error) {
	ext := strings.ToLower(filepath.Ext(path))
	parser, ok := parserMap[ext]
	if !ok {
		return nil, fmt.Errorf("unsupported file format: %s", path)
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, fmt.Errorf("failed to load file %s: %w", path, err)
	}

	return k, nil
}

// Validate checks the settings needed by the selected store backend.
func (c *Config) Validate() error {
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: log.level %q", ErrInvalidConfig, c.Log.Level)
	}

	if c.Maps.Nodes == "" || c.Maps.Gateways == "" {
		return fmt.Errorf("%w: map names must not be empty", ErrInvalidConfig)
	}
	if c.Maps.Nodes == c.Maps.Gateways {
		return fmt.Errorf("%w: node and gateway maps must have different names", ErrInvalidConfig)
	}

	switch c.Store.Backend {
	case BackendMemory:
	case BackendConsul:
		if c.Store.Consul.Address == "" {
			return fmt.Errorf("%w: store.consul.address is required", ErrInvalidConfig)
		}
	case BackendEtcd:
		if len(c.Store.Etcd.Endpoints) == 0 {
			return fmt.Errorf("%w: store.etcd.endpoints is required", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown store.backend %q", ErrInvalidConfig, c.Store.Backend)
	}

	return nil
}
