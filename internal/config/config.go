// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	serial "github.com/luhtfiimanal/go-comterm"
)

// Config represents the application configuration
type Config struct {
	Serial  SerialConfig  `mapstructure:"serial"`
	Console ConsoleConfig `mapstructure:"console"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// SerialConfig represents the serial link configuration
type SerialConfig struct {
	Port           string        `mapstructure:"port"`
	BaudRate       uint32        `mapstructure:"baud_rate"`
	DataBits       int           `mapstructure:"data_bits"`
	Parity         string        `mapstructure:"parity"`
	StopBits       string        `mapstructure:"stop_bits"`
	CTSFlow        string        `mapstructure:"cts_flow"`
	RTSControl     string        `mapstructure:"rts_control"`
	ReceiveTimeout time.Duration `mapstructure:"receive_timeout"`
	ReceiveBuffer  int           `mapstructure:"receive_buffer"`
}

// ConsoleConfig represents console input configuration
type ConsoleConfig struct {
	MaxReadLength int `mapstructure:"max_read_length"`
	SendBuffer    int `mapstructure:"send_buffer"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// flagKeys maps command-line options to configuration keys.
var flagKeys = map[string]string{
	"baudrate":    "serial.baud_rate",
	"databits":    "serial.data_bits",
	"parity":      "serial.parity",
	"stopbits":    "serial.stop_bits",
	"cts-flow":    "serial.cts_flow",
	"rts-control": "serial.rts_control",
	"log-level":   "logging.level",
}

// RegisterFlags adds the command-line options understood by Load to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "configuration file (yaml)")
	fs.Uint32("baudrate", 115200, "baud rate")
	fs.Int("databits", 8, "data bits [7|8]")
	fs.String("parity", "none", "parity ["+strings.Join(serial.ParityNames(), "|")+"]")
	fs.String("stopbits", "1", "stop bits ["+strings.Join(serial.StopBitsNames(), "|")+"]")
	fs.String("cts-flow", "disable", "CTS flow control ["+strings.Join(serial.CTSFlowNames(), "|")+"]")
	fs.String("rts-control", "high", "RTS control ["+strings.Join(serial.RTSControlNames(), "|")+"]")
	fs.String("log-level", "warn", "log level [debug|info|warn|error|fatal]")
}

// Load builds the configuration from defaults, an optional file,
// COMTERM_* environment variables and the options in fs, in increasing
// order of precedence. The first positional argument of fs, if any, is the
// serial port.
func Load(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	// Environment variable support
	v.SetEnvPrefix("COMTERM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set defaults
	setDefaults(v)

	configFile := ""
	if fs != nil {
		for name, key := range flagKeys {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
		if f := fs.Lookup("config"); f != nil {
			configFile = f.Value.String()
		}
		if fs.NArg() > 0 {
			v.Set("serial.port", fs.Arg(0))
		}
	}

	// Read config file
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	} else {
		v.SetConfigName("comterm")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/comterm")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Validate configuration
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Serial defaults
	v.SetDefault("serial.port", "")
	v.SetDefault("serial.baud_rate", 115200)
	v.SetDefault("serial.data_bits", 8)
	v.SetDefault("serial.parity", "none")
	v.SetDefault("serial.stop_bits", "1")
	v.SetDefault("serial.cts_flow", "disable")
	v.SetDefault("serial.rts_control", "high")
	v.SetDefault("serial.receive_timeout", "100ms")
	v.SetDefault("serial.receive_buffer", 256)

	// Console defaults
	v.SetDefault("console.max_read_length", 256)
	v.SetDefault("console.send_buffer", 256)

	// Logging defaults
	v.SetDefault("logging.level", "warn")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.output", "stderr")
	v.SetDefault("logging.max_size", 10)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age", 28)
	v.SetDefault("logging.compress", true)
}

// validate validates the configuration
func validate(config *Config) error {
	if _, err := config.Serial.Channel(); err != nil {
		return err
	}
	if config.Serial.ReceiveTimeout <= 0 {
		return fmt.Errorf("serial.receive_timeout must be positive")
	}
	if config.Serial.ReceiveBuffer <= 0 {
		return fmt.Errorf("serial.receive_buffer must be positive")
	}
	if config.Console.MaxReadLength <= 0 {
		return fmt.Errorf("console.max_read_length must be positive")
	}
	if config.Console.SendBuffer <= 0 {
		return fmt.Errorf("console.send_buffer must be positive")
	}

	// Validate logging level
	validLevels := []string{"debug", "info", "warn", "error", "fatal"}
	isValidLevel := false
	for _, level := range validLevels {
		if config.Logging.Level == level {
			isValidLevel = true
			break
		}
	}
	if !isValidLevel {
		return fmt.Errorf("logging.level must be one of: %v", validLevels)
	}

	return nil
}

// Channel converts the textual link settings into a serial.Config.
func (s SerialConfig) Channel() (serial.Config, error) {
	cfg := serial.Config{BaudRate: s.BaudRate, DataBits: s.DataBits}
	var err error
	if cfg.Parity, err = serial.ParseParity(s.Parity); err != nil {
		return cfg, fmt.Errorf("serial.parity: %w", err)
	}
	if cfg.StopBits, err = serial.ParseStopBits(s.StopBits); err != nil {
		return cfg, fmt.Errorf("serial.stop_bits: %w", err)
	}
	if cfg.CTSFlow, err = serial.ParseCTSFlow(s.CTSFlow); err != nil {
		return cfg, fmt.Errorf("serial.cts_flow: %w", err)
	}
	if cfg.RTSControl, err = serial.ParseRTSControl(s.RTSControl); err != nil {
		return cfg, fmt.Errorf("serial.rts_control: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("serial: %w", err)
	}
	return cfg, nil
}
