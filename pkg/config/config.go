package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/invbridge/invbridge/pkg/types"
)

// Fixed filenames of the JSON resources the orchestration layer maintains
// next to the inverter config. This package only names them; their contents
// are read elsewhere.
const (
	TimeOfUseConfigFilename = "timeofuse_config.json"
	BatteryConfigFilename   = "battery_config.json"
)

// Config is the daemon configuration file.
type Config struct {
	Inverter types.InverterConfig `mapstructure:"inverter"`
}

// Load reads the config file at path. JSON, YAML, and TOML all work; the
// format is inferred from the extension.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetDefault("inverter.type", "default")
	v.SetDefault("inverter.user", types.DefaultUser)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Inverter = cfg.Inverter.Normalized()
	return cfg, nil
}
