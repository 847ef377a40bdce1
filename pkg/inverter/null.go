package inverter

import (
	"context"
	"log/slog"

	"github.com/invbridge/invbridge/pkg/log"
	"github.com/invbridge/invbridge/pkg/types"
)

// Null is the display-only backend used for the "default" and "evcc"
// configurations, where control happens elsewhere or not at all. Every
// control call is a trivial success, every telemetry call returns an empty
// result, and no network I/O ever happens.
type Null struct {
	NoExtras
	cfg types.InverterConfig
}

func newNull(cfg types.InverterConfig) (Inverter, error) {
	return &Null{cfg: cfg.Normalized()}, nil
}

func (n *Null) Initialize(ctx context.Context) error {
	log.Ctx(ctx).InfoContext(ctx, "display-only inverter initialized",
		slog.String("type", n.cfg.Type),
	)
	return nil
}

func (n *Null) Authenticate(ctx context.Context) error { return nil }

func (n *Null) Connect(ctx context.Context) bool    { return true }
func (n *Null) Disconnect(ctx context.Context) bool { return true }

func (n *Null) SetBatteryMode(ctx context.Context, mode types.BatteryMode) (bool, error) {
	log.Ctx(ctx).DebugContext(ctx, "ignoring battery mode in display-only mode",
		slog.String("mode", mode.String()),
	)
	return true, nil
}

func (n *Null) SetModeForceCharge(ctx context.Context, powerW int) (bool, error) {
	return true, nil
}

func (n *Null) SetAllowGridCharging(ctx context.Context, allow bool) error { return nil }

func (n *Null) BatteryInfo(ctx context.Context) (types.BatteryInfo, error) {
	return types.BatteryInfo{}, nil
}

func (n *Null) FetchData(ctx context.Context) (types.TelemetrySnapshot, error) {
	return types.TelemetrySnapshot{}, nil
}

func (n *Null) Shutdown(ctx context.Context) {
	n.Disconnect(ctx)
}
