// Package sim runs a complete split keyboard in process: both halves
// linked over a faulty pipe, typists on their key matrices and the host
// link served over HTTP.
package sim

import (
	"time"

	"github.com/robotalks/splitkb/pkg/transport"
)

// Config defines the simulated keyboard.
type Config struct {
	// Listen is the HTTP address serving /metrics and /host. Empty disables
	// the server.
	Listen string `mapstructure:"listen"`
	// TypingInterval is the average time between keypresses on each half.
	// Zero disables the typists.
	TypingInterval time.Duration `mapstructure:"typing-interval"`
	// LoopInterval is the tick of both half loops.
	LoopInterval time.Duration `mapstructure:"loop-interval"`
	// DropRate and CorruptRate are applied to frames in both directions
	// between the halves.
	DropRate    float64 `mapstructure:"drop-rate"`
	CorruptRate float64 `mapstructure:"corrupt-rate"`
	Seed        int64   `mapstructure:"seed"`
	// MQTTURL enables telemetry publishing when set.
	MQTTURL string `mapstructure:"mqtt"`
	HostID  string `mapstructure:"host-id"`
}

// Defaults of Config.
const (
	DefaultListen         = ":9190"
	DefaultTypingInterval = 200 * time.Millisecond
	DefaultLoopInterval   = time.Millisecond
)

var defaultConfig = Config{
	Listen:         DefaultListen,
	TypingInterval: DefaultTypingInterval,
	LoopInterval:   DefaultLoopInterval,
	Seed:           1,
}

// Default gets default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a default config.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

func (c *Config) lossy(seed int64) transport.LossyConfig {
	return transport.LossyConfig{
		DropRate:    c.DropRate,
		CorruptRate: c.CorruptRate,
		Seed:        c.Seed + seed,
	}
}
