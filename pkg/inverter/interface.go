package inverter

import (
	"context"

	"github.com/invbridge/invbridge/pkg/types"
)

// Inverter is the contract every backend implements. A backend instance is
// not safe for concurrent use of its session state beyond what it locks
// internally; callers drive one request at a time per instance.
type Inverter interface {
	// Initialize performs heavy setup (initial handshake, first reads)
	// separate from construction. Callers invoke it once; idempotency is not
	// guaranteed.
	Initialize(ctx context.Context) error

	// Authenticate establishes or renews the device session. Backends that
	// need no authentication succeed unconditionally and mark themselves
	// authenticated.
	Authenticate(ctx context.Context) error

	// Connect opens the underlying transport, authenticating if needed.
	Connect(ctx context.Context) bool
	// Disconnect closes the transport. It is best-effort and always reports
	// success.
	Disconnect(ctx context.Context) bool

	// SetBatteryMode sends a one-shot mode command (normal or hold). The
	// boolean is false when the device rejected the command; retrying is the
	// caller's concern. Force charging carries a power and goes through
	// SetModeForceCharge.
	SetBatteryMode(ctx context.Context, mode types.BatteryMode) (bool, error)

	// SetModeForceCharge requests charging at powerW watts. The power is
	// silently clamped to the configured grid and PV charge ceilings.
	SetModeForceCharge(ctx context.Context, powerW int) (bool, error)

	// SetAllowGridCharging toggles charging from the grid. Independent of the
	// battery mode.
	SetAllowGridCharging(ctx context.Context, allow bool) error

	// BatteryInfo reads the current battery state from the device.
	BatteryInfo(ctx context.Context) (types.BatteryInfo, error)

	// FetchData reads a fresh telemetry snapshot, normalized to the
	// canonical channel names with internal fields stripped.
	FetchData(ctx context.Context) (types.TelemetrySnapshot, error)

	// SupportsExtendedMonitoring reports whether FetchData returns
	// temperature/fan telemetry. Callers branch on this before asking.
	SupportsExtendedMonitoring() bool

	// SetMaxPVChargeRate updates the PV charge ceiling on backends that
	// support dynamic limiting; elsewhere it is a no-op.
	SetMaxPVChargeRate(ctx context.Context, watts int) error

	// Shutdown disconnects. Safe to call multiple times.
	Shutdown(ctx context.Context)
}

// NoExtras provides the default implementations of the optional capability
// hooks. Backends without extended monitoring or dynamic PV limiting embed it.
type NoExtras struct{}

func (NoExtras) SupportsExtendedMonitoring() bool { return false }

func (NoExtras) SetMaxPVChargeRate(ctx context.Context, watts int) error { return nil }

// SetModeAvoidDischarge puts the battery on hold. Defined once against
// SetBatteryMode so every backend gets identical semantics.
func SetModeAvoidDischarge(ctx context.Context, inv Inverter) (bool, error) {
	return inv.SetBatteryMode(ctx, types.BatteryModeHold)
}

// SetModeAllowDischarge returns the battery to normal operation.
func SetModeAllowDischarge(ctx context.Context, inv Inverter) (bool, error) {
	return inv.SetBatteryMode(ctx, types.BatteryModeNormal)
}

// ClampChargePower caps a requested charge power at the configured grid and
// PV ceilings. A zero ceiling means unconfigured. Requests over the ceiling
// are capped, not rejected.
func ClampChargePower(powerW, maxGridW, maxPVW int) int {
	if maxGridW > 0 && powerW > maxGridW {
		powerW = maxGridW
	}
	if maxPVW > 0 && powerW > maxPVW {
		powerW = maxPVW
	}
	return powerW
}
