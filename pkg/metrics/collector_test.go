package metrics

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/invbridge/invbridge/pkg/types"
)

// fakeInverter is a canned-response backend for collector tests.
type fakeInverter struct {
	info     types.BatteryInfo
	infoErr  error
	snap     types.TelemetrySnapshot
	snapErr  error
	extended bool
}

func (f *fakeInverter) Initialize(ctx context.Context) error   { return nil }
func (f *fakeInverter) Authenticate(ctx context.Context) error { return nil }
func (f *fakeInverter) Connect(ctx context.Context) bool       { return true }
func (f *fakeInverter) Disconnect(ctx context.Context) bool    { return true }
func (f *fakeInverter) SetBatteryMode(ctx context.Context, mode types.BatteryMode) (bool, error) {
	return true, nil
}
func (f *fakeInverter) SetModeForceCharge(ctx context.Context, powerW int) (bool, error) {
	return true, nil
}
func (f *fakeInverter) SetAllowGridCharging(ctx context.Context, allow bool) error { return nil }
func (f *fakeInverter) BatteryInfo(ctx context.Context) (types.BatteryInfo, error) {
	return f.info, f.infoErr
}
func (f *fakeInverter) FetchData(ctx context.Context) (types.TelemetrySnapshot, error) {
	return f.snap, f.snapErr
}
func (f *fakeInverter) SupportsExtendedMonitoring() bool { return f.extended }
func (f *fakeInverter) SetMaxPVChargeRate(ctx context.Context, watts int) error { return nil }
func (f *fakeInverter) Shutdown(ctx context.Context) {}

func TestCollector(t *testing.T) {
	t.Run("BatteryOnly", func(t *testing.T) {
		c := NewCollector(&fakeInverter{
			info: types.BatteryInfo{SOC: 42.5, CapacityWh: 10000, MinSOC: 5, MaxSOC: 100},
		})
		expected := `
# HELP invbridge_battery_capacity_wh Battery capacity in watt-hours (-1 until first read from the device)
# TYPE invbridge_battery_capacity_wh gauge
invbridge_battery_capacity_wh 10000
# HELP invbridge_battery_soc_max_percent Configured maximum state of charge in percent
# TYPE invbridge_battery_soc_max_percent gauge
invbridge_battery_soc_max_percent 100
# HELP invbridge_battery_soc_min_percent Configured minimum state of charge in percent
# TYPE invbridge_battery_soc_min_percent gauge
invbridge_battery_soc_min_percent 5
# HELP invbridge_battery_soc_percent Battery state of charge in percent
# TYPE invbridge_battery_soc_percent gauge
invbridge_battery_soc_percent 42.5
# HELP invbridge_scrape_success Whether reading the inverter was successful
# TYPE invbridge_scrape_success gauge
invbridge_scrape_success 1
`
		require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(expected)))
	})

	t.Run("ExtendedTelemetry", func(t *testing.T) {
		c := NewCollector(&fakeInverter{
			info:     types.BatteryInfo{SOC: 50, CapacityWh: 7680, MinSOC: 5, MaxSOC: 100},
			snap:     types.TelemetrySnapshot{types.ChannelFanControlPercent: 35},
			extended: true,
		})
		expected := `
# HELP invbridge_inverter_channel Extended monitoring channel reading
# TYPE invbridge_inverter_channel gauge
invbridge_inverter_channel{channel="FANCONTROL_PERCENT_01_F32"} 35
# HELP invbridge_scrape_success Whether reading the inverter was successful
# TYPE invbridge_scrape_success gauge
invbridge_scrape_success 1
`
		require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(expected),
			"invbridge_inverter_channel", "invbridge_scrape_success"))
	})

	t.Run("ReadFailure", func(t *testing.T) {
		c := NewCollector(&fakeInverter{infoErr: errors.New("device unreachable")})
		expected := `
# HELP invbridge_scrape_success Whether reading the inverter was successful
# TYPE invbridge_scrape_success gauge
invbridge_scrape_success 0
`
		require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(expected)))
	})
}
