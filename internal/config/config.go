// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	DefaultAppName    = "spatial"
	DefaultConfigName = "spatial_config"
	EnvPrefix         = "SPATIAL"
)

// Config holds all application configuration values.
type Config struct {
	Device  DeviceConfig  `mapstructure:"device" yaml:"device"`
	MQTT    MQTTConfig    `mapstructure:"mqtt" yaml:"mqtt"`
	Web     WebConfig     `mapstructure:"web" yaml:"web"`
	Display DisplayConfig `mapstructure:"display" yaml:"display"`
	Debug   bool          `mapstructure:"debug" yaml:"debug"`
}

// DeviceConfig selects and configures the spatial device driver.
type DeviceConfig struct {
	Driver          string `mapstructure:"driver" yaml:"driver"` // "sim", "mpu9250" or "hi229"
	Serial          int    `mapstructure:"serial" yaml:"serial"` // -1 = any device
	DataRateMS      int    `mapstructure:"data_rate_ms" yaml:"data_rate_ms"`
	AttachTimeoutMS int    `mapstructure:"attach_timeout_ms" yaml:"attach_timeout_ms"` // 0 = forever

	// mpu9250
	SPIDevice string `mapstructure:"spi_device" yaml:"spi_device"`
	CSPin     string `mapstructure:"cs_pin" yaml:"cs_pin"`
	// Accelerometer: 0=±2g, 1=±4g, 2=±8g, 3=±16g
	AccelRange byte `mapstructure:"accel_range" yaml:"accel_range"`
	// Gyroscope: 0=±250°/s, 1=±500°/s, 2=±1000°/s, 3=±2000°/s
	GyroRange byte `mapstructure:"gyro_range" yaml:"gyro_range"`

	// hi229
	SerialPort string `mapstructure:"serial_port" yaml:"serial_port"`
	BaudRate   int    `mapstructure:"baud_rate" yaml:"baud_rate"`
}

type MQTTConfig struct {
	Enabled           bool   `mapstructure:"enabled" yaml:"enabled"`
	Broker            string `mapstructure:"broker" yaml:"broker"`
	ClientID          string `mapstructure:"client_id" yaml:"client_id"`
	TopicPrefix       string `mapstructure:"topic_prefix" yaml:"topic_prefix"`
	PublishIntervalMS int    `mapstructure:"publish_interval_ms" yaml:"publish_interval_ms"`
}

type WebConfig struct {
	Enabled        bool `mapstructure:"enabled" yaml:"enabled"`
	Port           int  `mapstructure:"port" yaml:"port"`
	PushIntervalMS int  `mapstructure:"push_interval_ms" yaml:"push_interval_ms"`
}

type DisplayConfig struct {
	Enabled          bool   `mapstructure:"enabled" yaml:"enabled"`
	I2CBus           string `mapstructure:"i2c_bus" yaml:"i2c_bus"`
	I2CAddr          uint16 `mapstructure:"i2c_addr" yaml:"i2c_addr"`
	UpdateIntervalMS int    `mapstructure:"update_interval_ms" yaml:"update_interval_ms"`
}

// Package-level unexported variables for the process-wide configuration:
//   - globalConfig: only reachable through InitGlobal and Get.
//   - configOnce: ensures InitGlobal() only loads once.
//   - configMu: write lock for initialization, read lock for Get().
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Device: DeviceConfig{
			Driver:          "sim",
			Serial:          -1,
			DataRateMS:      8,
			AttachTimeoutMS: 0,
			SPIDevice:       "/dev/spidev0.0",
			CSPin:           "8",
			SerialPort:      "/dev/ttyUSB0",
			BaudRate:        115200,
		},
		MQTT: MQTTConfig{
			Enabled:           true,
			Broker:            "tcp://localhost:1883",
			ClientID:          "spatial-producer",
			TopicPrefix:       "spatial",
			PublishIntervalMS: 100,
		},
		Web: WebConfig{
			Enabled:        true,
			Port:           8080,
			PushIntervalMS: 100,
		},
		Display: DisplayConfig{
			Enabled:          false,
			I2CBus:           "",
			I2CAddr:          0x3C,
			UpdateIntervalMS: 250,
		},
	}
}

// NewViper returns a viper instance with defaults and environment binding
// (SPATIAL_DEVICE_DRIVER, SPATIAL_MQTT_BROKER, ...). configPath may be empty,
// in which case the usual locations are searched.
func NewViper(configPath string) *viper.Viper {
	v := viper.New()
	setDefaults(v, Default())

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else if env := os.Getenv(EnvPrefix + "_CONFIG"); env != "" {
		v.SetConfigFile(env)
	} else {
		v.SetConfigName(DefaultConfigName)
		v.SetConfigType("yaml")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", DefaultAppName))
		}
		v.AddConfigPath("/etc/" + DefaultAppName)
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("device.driver", d.Device.Driver)
	v.SetDefault("device.serial", d.Device.Serial)
	v.SetDefault("device.data_rate_ms", d.Device.DataRateMS)
	v.SetDefault("device.attach_timeout_ms", d.Device.AttachTimeoutMS)
	v.SetDefault("device.spi_device", d.Device.SPIDevice)
	v.SetDefault("device.cs_pin", d.Device.CSPin)
	v.SetDefault("device.accel_range", d.Device.AccelRange)
	v.SetDefault("device.gyro_range", d.Device.GyroRange)
	v.SetDefault("device.serial_port", d.Device.SerialPort)
	v.SetDefault("device.baud_rate", d.Device.BaudRate)

	v.SetDefault("mqtt.enabled", d.MQTT.Enabled)
	v.SetDefault("mqtt.broker", d.MQTT.Broker)
	v.SetDefault("mqtt.client_id", d.MQTT.ClientID)
	v.SetDefault("mqtt.topic_prefix", d.MQTT.TopicPrefix)
	v.SetDefault("mqtt.publish_interval_ms", d.MQTT.PublishIntervalMS)

	v.SetDefault("web.enabled", d.Web.Enabled)
	v.SetDefault("web.port", d.Web.Port)
	v.SetDefault("web.push_interval_ms", d.Web.PushIntervalMS)

	v.SetDefault("display.enabled", d.Display.Enabled)
	v.SetDefault("display.i2c_bus", d.Display.I2CBus)
	v.SetDefault("display.i2c_addr", d.Display.I2CAddr)
	v.SetDefault("display.update_interval_ms", d.Display.UpdateIntervalMS)

	v.SetDefault("debug", d.Debug)
}

// Load reads the configuration from configPath (or the search path when it
// is empty), applies environment overrides and validates the result. A
// missing file is not an error when no explicit path was given.
func Load(configPath string) (*Config, error) {
	return FromViper(NewViper(configPath), configPath != "")
}

// FromViper decodes and validates a prepared viper instance.
func FromViper(v *viper.Viper, requireFile bool) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if requireFile || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks that all required fields are set and in range.
func (c *Config) validate() error {
	switch c.Device.Driver {
	case "sim":
	case "mpu9250":
		if c.Device.SPIDevice == "" {
			return fmt.Errorf("device.spi_device is required for the mpu9250 driver")
		}
		if c.Device.CSPin == "" {
			return fmt.Errorf("device.cs_pin is required for the mpu9250 driver")
		}
	case "hi229":
		if c.Device.SerialPort == "" {
			return fmt.Errorf("device.serial_port is required for the hi229 driver")
		}
		if c.Device.BaudRate <= 0 {
			return fmt.Errorf("device.baud_rate must be positive, got %d", c.Device.BaudRate)
		}
	case "":
		return fmt.Errorf("device.driver is required")
	default:
		return fmt.Errorf("unknown device.driver %q", c.Device.Driver)
	}

	if c.Device.DataRateMS <= 0 {
		return fmt.Errorf("device.data_rate_ms must be positive, got %d", c.Device.DataRateMS)
	}
	if c.Device.AttachTimeoutMS < 0 {
		return fmt.Errorf("device.attach_timeout_ms must be >= 0, got %d", c.Device.AttachTimeoutMS)
	}
	if c.Device.AccelRange > 3 {
		return fmt.Errorf("device.accel_range must be 0-3 (0=±2g, 1=±4g, 2=±8g, 3=±16g), got %d", c.Device.AccelRange)
	}
	if c.Device.GyroRange > 3 {
		return fmt.Errorf("device.gyro_range must be 0-3 (0=±250°/s, 1=±500°/s, 2=±1000°/s, 3=±2000°/s), got %d", c.Device.GyroRange)
	}

	if c.MQTT.Enabled {
		if c.MQTT.Broker == "" {
			return fmt.Errorf("mqtt.broker is required")
		}
		if c.MQTT.PublishIntervalMS <= 0 {
			return fmt.Errorf("mqtt.publish_interval_ms must be positive, got %d", c.MQTT.PublishIntervalMS)
		}
	}
	if c.Web.Enabled {
		if c.Web.Port <= 0 || c.Web.Port > 65535 {
			return fmt.Errorf("web.port must be 1-65535, got %d", c.Web.Port)
		}
		if c.Web.PushIntervalMS <= 0 {
			return fmt.Errorf("web.push_interval_ms must be positive, got %d", c.Web.PushIntervalMS)
		}
	}
	if c.Display.Enabled && c.Display.UpdateIntervalMS <= 0 {
		return fmt.Errorf("display.update_interval_ms must be positive, got %d", c.Display.UpdateIntervalMS)
	}
	return nil
}

// Dump writes c as YAML to path, creating parent directories.
func (c *Config) Dump(path string) error {
	buf, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, buf, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// InitGlobal decodes v into the process-wide configuration. Only the first
// call has any effect.
func InitGlobal(v *viper.Viper, requireFile bool) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = FromViper(v, requireFile)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
