package types

import "strings"

// BatteryMode represents the requested operating mode of the battery.
type BatteryMode int

const (
	BatteryModeNormal      BatteryMode = 1 // discharge allowed
	BatteryModeHold        BatteryMode = 2 // discharge avoided
	BatteryModeForceCharge BatteryMode = 3 // charge at a requested power
)

// String returns the wire name of the mode as the inverters expect it.
func (m BatteryMode) String() string {
	switch m {
	case BatteryModeNormal:
		return "normal"
	case BatteryModeHold:
		return "hold"
	case BatteryModeForceCharge:
		return "force_charge"
	}
	return "unknown"
}

// ParseBatteryMode maps a wire name back to a BatteryMode. It returns 0 for
// anything it doesn't recognize.
func ParseBatteryMode(s string) BatteryMode {
	switch strings.ToLower(s) {
	case "normal":
		return BatteryModeNormal
	case "hold":
		return BatteryModeHold
	case "force_charge":
		return BatteryModeForceCharge
	}
	return 0
}

const (
	// CapacityUnknown is reported until the capacity has been read from the
	// device at least once.
	CapacityUnknown = -1

	DefaultMinSOC = 5
	DefaultMaxSOC = 100
)

// BatteryInfo is the vendor-reported state of the battery.
type BatteryInfo struct {
	SOC        float64 `json:"soc"`
	CapacityWh float64 `json:"capacityWh"`
	MinSOC     float64 `json:"minSOC"`
	MaxSOC     float64 `json:"maxSOC"`
}

// NewBatteryInfo returns a BatteryInfo with the documented defaults applied.
func NewBatteryInfo() BatteryInfo {
	return BatteryInfo{
		CapacityWh: CapacityUnknown,
		MinSOC:     DefaultMinSOC,
		MaxSOC:     DefaultMaxSOC,
	}
}

// Canonical telemetry channel names. Every backend that supports extended
// monitoring populates these same keys so callers never need vendor-specific
// field knowledge.
const (
	ChannelAmbientTemperatureMean = "DEVICE_TEMPERATURE_AMBIENTEMEAN_F32"
	ChannelModuleTemperatureMean  = "MODULE_TEMPERATURE_MEAN_01_F32"
	ChannelFanControlPercent      = "FANCONTROL_PERCENT_01_F32"
)

// TelemetrySnapshot maps canonical channel names to readings. A snapshot is
// produced fresh on every fetch and never merged with a previous one.
type TelemetrySnapshot map[string]float64

// DefaultUser is the identity used when the config doesn't name one.
const DefaultUser = "customer"

// InverterConfig is the configuration record a backend is constructed from.
// It is immutable once the backend exists.
type InverterConfig struct {
	Type    string `json:"type" mapstructure:"type"`
	Address string `json:"address" mapstructure:"address"`

	User     string `json:"user" mapstructure:"user"`
	Password string `json:"password" mapstructure:"password"`

	// Charge rate ceilings in watts. Zero means unconfigured.
	MaxGridChargeRateW int `json:"max_grid_charge_rate" mapstructure:"max_grid_charge_rate"`
	MaxPVChargeRateW   int `json:"max_pv_charge_rate" mapstructure:"max_pv_charge_rate"`
}

// Normalized returns a copy with the user defaulted and lowercased. The
// password defaults to empty, which some backends accept.
func (c InverterConfig) Normalized() InverterConfig {
	if c.User == "" {
		c.User = DefaultUser
	}
	c.User = strings.ToLower(c.User)
	return c
}
