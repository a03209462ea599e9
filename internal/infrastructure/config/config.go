package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure shared by relayd and registryd.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Relay        RelayConfig        `yaml:"relay"`
	Registration RegistrationConfig `yaml:"registration"`
	MQTT         MQTTConfig         `yaml:"mqtt"`
	Logging      LoggingConfig      `yaml:"logging"`
}

// RelayConfig contains settings for the relay-control server.
type RelayConfig struct {
	API  APIConfig  `yaml:"api"`
	GPIO GPIOConfig `yaml:"gpio"`
}

// GPIOConfig describes the GPIO character device and the relay wiring.
type GPIOConfig struct {
	// Chip is the GPIO character device name or path (e.g. "gpiochip0").
	Chip string `yaml:"chip"`

	// Consumer is the label the kernel shows for lines held by this process.
	Consumer string `yaml:"consumer"`

	// Simulate replaces the GPIO chip with in-memory lines (development only).
	Simulate bool `yaml:"simulate"`

	Pins PinConfig `yaml:"pins"`
}

// PinConfig maps each relay channel to its line offset (BCM numbering on a Raspberry Pi).
type PinConfig struct {
	Ignition   int `yaml:"ignition"`
	Starter    int `yaml:"starter"`
	Compressor int `yaml:"compressor"`
	Fan        int `yaml:"fan"`
}

// RegistrationConfig contains settings for the device-registration server.
type RegistrationConfig struct {
	API       APIConfig `yaml:"api"`
	StorePath string    `yaml:"store_path"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`

	// ConnectTimeout is how long startup waits for the broker (seconds).
	// The client keeps retrying in the background after it expires.
	ConnectTimeout int `yaml:"connect_timeout"`
}

// ConnectWait returns ConnectTimeout as a time.Duration.
func (c MQTTConfig) ConnectWait() time.Duration {
	return time.Duration(c.ConnectTimeout) * time.Second
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings (seconds).
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// APIConfig contains HTTP server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// ReadTimeout returns the read timeout as a Duration.
func (t APITimeoutConfig) ReadTimeout() time.Duration {
	return time.Duration(t.Read) * time.Second
}

// WriteTimeout returns the write timeout as a Duration.
func (t APITimeoutConfig) WriteTimeout() time.Duration {
	return time.Duration(t.Write) * time.Second
}

// IdleTimeout returns the idle timeout as a Duration.
func (t APITimeoutConfig) IdleTimeout() time.Duration {
	return time.Duration(t.Idle) * time.Second
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
// An empty AllowedOrigins list allows every origin.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// LoadDotEnv loads KEY=value pairs from the given .env files into the process
// environment without overriding variables that are already set.
// Missing files are ignored; malformed files are reported.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("loading %s: %w", p, err)
		}
	}
	return nil
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern VEHICTL_SECTION_KEY,
// for example VEHICTL_RELAY_PORT or VEHICTL_STORE_PATH.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with the wiring of the reference vehicle.
func defaultConfig() *Config {
	return &Config{
		Relay: RelayConfig{
			API: APIConfig{
				Host: "0.0.0.0",
				Port: 80,
				Timeouts: APITimeoutConfig{
					Read:  10,
					Write: 10,
					Idle:  60,
				},
			},
			GPIO: GPIOConfig{
				Chip:     "gpiochip0",
				Consumer: "vehictl",
				Pins: PinConfig{
					Ignition:   17,
					Starter:    23,
					Compressor: 27,
					Fan:        22,
				},
			},
		},
		Registration: RegistrationConfig{
			API: APIConfig{
				Host: "0.0.0.0",
				Port: 5000,
				Timeouts: APITimeoutConfig{
					Read:  10,
					Write: 10,
					Idle:  60,
				},
			},
			StorePath: "./data/registration.json",
		},
		MQTT: MQTTConfig{
			Enabled: false,
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "vehictl",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
			ConnectTimeout: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) error {
	var errs []string

	if v := os.Getenv("VEHICTL_RELAY_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, "VEHICTL_RELAY_PORT must be an integer")
		} else {
			cfg.Relay.API.Port = port
		}
	}
	if v := os.Getenv("VEHICTL_REGISTRATION_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, "VEHICTL_REGISTRATION_PORT must be an integer")
		} else {
			cfg.Registration.API.Port = port
		}
	}

	// GPIO
	if v := os.Getenv("VEHICTL_GPIO_CHIP"); v != "" {
		cfg.Relay.GPIO.Chip = v
	}
	if v := os.Getenv("VEHICTL_GPIO_SIMULATE"); v != "" {
		simulate, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, "VEHICTL_GPIO_SIMULATE must be a boolean")
		} else {
			cfg.Relay.GPIO.Simulate = simulate
		}
	}

	// Registration store
	if v := os.Getenv("VEHICTL_STORE_PATH"); v != "" {
		cfg.Registration.StorePath = v
	}

	// MQTT
	if v := os.Getenv("VEHICTL_MQTT_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, "VEHICTL_MQTT_ENABLED must be a boolean")
		} else {
			cfg.MQTT.Enabled = enabled
		}
	}
	if v := os.Getenv("VEHICTL_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("VEHICTL_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("VEHICTL_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// Logging
	if v := os.Getenv("VEHICTL_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if !validPort(c.Relay.API.Port) {
		errs = append(errs, "relay.api.port must be between 1 and 65535")
	}
	if !validPort(c.Registration.API.Port) {
		errs = append(errs, "registration.api.port must be between 1 and 65535")
	}

	// GPIO validation
	if c.Relay.GPIO.Chip == "" && !c.Relay.GPIO.Simulate {
		errs = append(errs, "relay.gpio.chip is required")
	}
	pins := map[string]int{
		"ignition":   c.Relay.GPIO.Pins.Ignition,
		"starter":    c.Relay.GPIO.Pins.Starter,
		"compressor": c.Relay.GPIO.Pins.Compressor,
		"fan":        c.Relay.GPIO.Pins.Fan,
	}
	seen := make(map[int]string, len(pins))
	for _, name := range []string{"ignition", "starter", "compressor", "fan"} {
		offset := pins[name]
		if offset < 0 {
			errs = append(errs, fmt.Sprintf("relay.gpio.pins.%s must not be negative", name))
			continue
		}
		if other, dup := seen[offset]; dup {
			errs = append(errs, fmt.Sprintf("relay.gpio.pins.%s reuses line %d of %s", name, offset, other))
			continue
		}
		seen[offset] = name
	}

	if c.Registration.StorePath == "" {
		errs = append(errs, "registration.store_path is required")
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Enabled {
		if c.MQTT.Broker.Host == "" {
			errs = append(errs, "mqtt.broker.host is required when mqtt is enabled")
		}
		if c.MQTT.Broker.ClientID == "" {
			errs = append(errs, "mqtt.broker.client_id is required when mqtt is enabled")
		}
		if !validPort(c.MQTT.Broker.Port) {
			errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
		}
		if c.MQTT.ConnectTimeout < 1 {
			errs = append(errs, "mqtt.connect_timeout must be at least 1 second")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

func validPort(p int) bool {
	return p >= 1 && p <= 65535
}
