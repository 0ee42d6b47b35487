// Package env holds the settings shared by the splitkb command line tools.
package env

import (
	"flag"
	"os"
	"time"
)

// Config provides common options of the host tools.
type Config struct {
	// Device is the serial device or ws:// URL of the keyboard host link.
	// Empty selects the first serial port found.
	Device string

	// MQTTURL specifies the telemetry broker.
	// e.g. mqtt://host:port/topic-prefix
	MQTTURL string

	// HostID identifies this machine in telemetry topics.
	HostID string

	// PushGateway is the Prometheus push gateway used by the metrics
	// command.
	PushGateway string

	// Timeout bounds one host request.
	Timeout time.Duration
}

// Defaults of Config.
const (
	DefaultMQTTURL     = "mqtt://localhost:1883/splitkb/"
	DefaultPushGateway = "http://127.0.0.1:9091"
	DefaultTimeout     = 50 * time.Millisecond
)

var defaultConfig = Config{
	MQTTURL:     DefaultMQTTURL,
	PushGateway: DefaultPushGateway,
	Timeout:     DefaultTimeout,
}

func init() {
	defaultConfig.HostID = MachineID()
	applyEnv(&defaultConfig, os.Getenv)
}

func applyEnv(conf *Config, getenv func(string) string) {
	if val := getenv("KB_DEVICE"); val != "" {
		conf.Device = val
	}
	if val := getenv("KB_MQTT_URL"); val != "" {
		conf.MQTTURL = val
	}
	if val := getenv("KB_HOST_ID"); val != "" {
		conf.HostID = val
	}
	if val := getenv("KB_PUSH_GATEWAY"); val != "" {
		conf.PushGateway = val
	}
	if val := getenv("KB_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			conf.Timeout = d
		}
	}
}

// SetupFlags sets up command line flags.
func SetupFlags() {
	flag.StringVar(&defaultConfig.Device, "dev", defaultConfig.Device, "Keyboard serial device or ws:// URL.")
	flag.StringVar(&defaultConfig.MQTTURL, "mqtt", defaultConfig.MQTTURL, "MQTT broker URL.")
	flag.StringVar(&defaultConfig.HostID, "host-id", defaultConfig.HostID, "Host ID used in telemetry topics.")
	flag.StringVar(&defaultConfig.PushGateway, "push-gateway", defaultConfig.PushGateway, "Prometheus push gateway URL.")
	flag.DurationVar(&defaultConfig.Timeout, "timeout", defaultConfig.Timeout, "Timeout of one host request.")
}

// Default gets the default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}
