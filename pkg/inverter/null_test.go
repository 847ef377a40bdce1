package inverter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invbridge/invbridge/pkg/types"
)

func TestNull(t *testing.T) {
	ctx := context.Background()
	inv, err := newNull(types.InverterConfig{Type: "default"})
	require.NoError(t, err)

	require.NoError(t, inv.Initialize(ctx))
	require.NoError(t, inv.Authenticate(ctx))
	assert.True(t, inv.Connect(ctx))
	assert.True(t, inv.Disconnect(ctx))

	ok, err := inv.SetBatteryMode(ctx, types.BatteryModeHold)
	require.NoError(t, err)
	assert.True(t, ok, "display-only mode accepts every command")

	ok, err = inv.SetModeForceCharge(ctx, 5000)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, inv.SetAllowGridCharging(ctx, true))
	require.NoError(t, inv.SetMaxPVChargeRate(ctx, 3000))

	info, err := inv.BatteryInfo(ctx)
	require.NoError(t, err)
	assert.Zero(t, info)

	snap, err := inv.FetchData(ctx)
	require.NoError(t, err)
	assert.Empty(t, snap)

	assert.False(t, inv.SupportsExtendedMonitoring())
	inv.Shutdown(ctx)
}
