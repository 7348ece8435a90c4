package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultEZVIZURL        = "https://apiieu.ezvizlife.com"
	defaultDiscoveryPrefix = "homeassistant"
	defaultBaseTopic       = "ezviz"
	defaultPollInterval    = 30 * time.Second
)

var ErrInvalidConfig = errors.New("config: invalid")

type Config struct {
	EZVIZ        EZVIZConfig   `yaml:"ezviz"`
	MQTT         MQTTConfig    `yaml:"mqtt"`
	PollInterval time.Duration `yaml:"poll_interval"`
	StateDir     string        `yaml:"state_dir"`
	MetricsAddr  string        `yaml:"metrics_addr"`
	LogLevel     string        `yaml:"log_level"`
}

type EZVIZConfig struct {
	Account       string `yaml:"account"`
	Password      string `yaml:"password"`
	URL           string `yaml:"url"`
	TokenLocation string `yaml:"token_location"`
}

type MQTTConfig struct {
	Broker          string        `yaml:"broker"`
	Username        string        `yaml:"username"`
	Password        string        `yaml:"password"`
	ClientID        string        `yaml:"client_id"`
	QoS             byte          `yaml:"qos"`
	DiscoveryPrefix string        `yaml:"discovery_prefix"`
	BaseTopic       string        `yaml:"base_topic"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout"`
}

func Default() *Config {
	return &Config{
		EZVIZ: EZVIZConfig{
			URL:           defaultEZVIZURL,
			TokenLocation: "data/token",
		},
		MQTT: MQTTConfig{
			Broker:          "tcp://localhost:1883",
			QoS:             1,
			DiscoveryPrefix: defaultDiscoveryPrefix,
			BaseTopic:       defaultBaseTopic,
			ConnectTimeout:  10 * time.Second,
		},
		PollInterval: defaultPollInterval,
		StateDir:     "data/state",
		MetricsAddr:  ":9120",
		LogLevel:     "info",
	}
}

// Load reads a YAML file on top of the defaults. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	err = yaml.Unmarshal(b, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch {
	case c.EZVIZ.Account == "":
		return fmt.Errorf("%w: ezviz account is required", ErrInvalidConfig)
	case c.EZVIZ.Password == "":
		return fmt.Errorf("%w: ezviz password is required", ErrInvalidConfig)
	case c.MQTT.Broker == "":
		return fmt.Errorf("%w: mqtt broker is required", ErrInvalidConfig)
	case c.MQTT.QoS > 2:
		return fmt.Errorf("%w: mqtt qos must be 0, 1 or 2", ErrInvalidConfig)
	case c.PollInterval < time.Second:
		return fmt.Errorf("%w: poll interval %s is too short", ErrInvalidConfig, c.PollInterval)
	}
	return nil
}
