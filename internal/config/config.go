package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the service configuration.
type Config struct {
	Logger  LogConf     // Logger - logger configuration.
	MQTT    MQTTConf    // MQTT - MQTT client configuration.
	Homie   HomieConf   // Homie - device description.
	Metrics MetricsConf // Metrics - Prometheus endpoint.
}

// LogConf is the logger configuration.
type LogConf struct {
	Level string `toml:"log-level"` // Level - log level.
}

// MQTTConf is the MQTT client configuration.
type MQTTConf struct {
	ClientID    string `toml:"clientID"`     // ClientID - client name, generated when empty.
	Host        string `toml:"server"`       // Host - MQTT server address.
	Port        string `toml:"port"`         // Port - MQTT server port.
	User        string `toml:"user"`         // User - login.
	Password    string `toml:"password"`     // Password - password.
	MaxInflight int    `toml:"max-inflight"` // MaxInflight - publish window before packets are refused.
	KeepAlive   int    `toml:"keepalive"`    // KeepAlive - keepalive in seconds.
}

// HomieConf describes the published device.
type HomieConf struct {
	DeviceID         string `toml:"device-id"`         // DeviceID - topic level of the device.
	Name             string `toml:"name"`              // Name - $name of the device.
	Implementation   string `toml:"implementation"`    // Implementation - $implementation.
	Interface        string `toml:"interface"`         // Interface - network interface for $localip and $mac.
	PollInterval     int    `toml:"poll-interval"`     // PollInterval - event loop tick in ms.
	PeriodicInterval int    `toml:"periodic-interval"` // PeriodicInterval - seconds between periodic republication.
	TankFull         uint   `toml:"tank-full"`         // TankFull - tank capacity in litres.
}

// MetricsConf is the Prometheus endpoint configuration.
type MetricsConf struct {
	Listen string `toml:"listen"` // Listen - address of the metrics handler, disabled when empty.
}

// NewConfig reads the configuration file.
func NewConfig(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Default returns the configuration used for keys missing in the file.
func Default() *Config {
	return &Config{
		Logger: LogConf{Level: "info"},
		MQTT: MQTTConf{
			Host:        "127.0.0.1",
			Port:        "1883",
			MaxInflight: 8,
			KeepAlive:   30,
		},
		Homie: HomieConf{
			DeviceID:         "heating",
			Name:             "Heating Controller",
			Implementation:   "homie2mqtt",
			PollInterval:     50,
			PeriodicInterval: 60,
			TankFull:         5000,
		},
	}
}

// Validate checks values the decoder cannot. The device id alphabet is
// checked together with the rest of the device tree.
func (c *Config) Validate() error {
	if c.Homie.DeviceID == "" {
		return errors.New("homie: device-id is required")
	}
	if c.Homie.PollInterval <= 0 {
		return fmt.Errorf("homie: poll-interval must be positive, got %d", c.Homie.PollInterval)
	}
	if c.Homie.PeriodicInterval <= 0 {
		return fmt.Errorf("homie: periodic-interval must be positive, got %d", c.Homie.PeriodicInterval)
	}
	if c.MQTT.MaxInflight <= 0 {
		return fmt.Errorf("mqtt: max-inflight must be positive, got %d", c.MQTT.MaxInflight)
	}
	return nil
}

func (h HomieConf) Poll() time.Duration {
	return time.Duration(h.PollInterval) * time.Millisecond
}

func (h HomieConf) Periodic() time.Duration {
	return time.Duration(h.PeriodicInterval) * time.Second
}
