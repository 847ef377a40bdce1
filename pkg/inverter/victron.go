package inverter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/simonvetter/modbus"

	"github.com/invbridge/invbridge/pkg/types"
)

const victronModbusPort = 502

// Victron is the register-based Modbus TCP backend. The transport is
// configured at construction but none of the contract operations are built
// yet; each one reports ErrUnsupported so callers can tell "not wired up"
// from "device unreachable".
type Victron struct {
	NoExtras
	cfg    types.InverterConfig
	client *modbus.ModbusClient
}

func newVictron(cfg types.InverterConfig) (Inverter, error) {
	cfg = cfg.Normalized()
	if cfg.Address == "" {
		return nil, errors.New("victron: missing address")
	}
	client, err := modbus.NewClient(&modbus.ClientConfiguration{
		URL:     fmt.Sprintf("tcp://%s:%d", cfg.Address, victronModbusPort),
		Timeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("victron: failed to create modbus client: %w", err)
	}
	return &Victron{cfg: cfg, client: client}, nil
}

func (v *Victron) Initialize(ctx context.Context) error   { return ErrUnsupported }
func (v *Victron) Authenticate(ctx context.Context) error { return ErrUnsupported }

func (v *Victron) Connect(ctx context.Context) bool { return false }

func (v *Victron) Disconnect(ctx context.Context) bool {
	v.client.Close()
	return true
}

func (v *Victron) SetBatteryMode(ctx context.Context, mode types.BatteryMode) (bool, error) {
	return false, ErrUnsupported
}

func (v *Victron) SetModeForceCharge(ctx context.Context, powerW int) (bool, error) {
	return false, ErrUnsupported
}

func (v *Victron) SetAllowGridCharging(ctx context.Context, allow bool) error {
	return ErrUnsupported
}

func (v *Victron) BatteryInfo(ctx context.Context) (types.BatteryInfo, error) {
	return types.BatteryInfo{}, ErrUnsupported
}

func (v *Victron) FetchData(ctx context.Context) (types.TelemetrySnapshot, error) {
	return nil, ErrUnsupported
}

func (v *Victron) Shutdown(ctx context.Context) {
	v.Disconnect(ctx)
}
