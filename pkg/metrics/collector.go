package metrics

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/invbridge/invbridge/pkg/inverter"
	"github.com/invbridge/invbridge/pkg/log"
)

// Collector implements prometheus.Collector over one inverter backend.
// Every scrape reads the device; extended telemetry is only collected when
// the backend advertises it.
type Collector struct {
	inv inverter.Inverter

	soc           *prometheus.Desc
	capacity      *prometheus.Desc
	minSOC        *prometheus.Desc
	maxSOC        *prometheus.Desc
	channel       *prometheus.Desc
	scrapeSuccess *prometheus.Desc
}

// NewCollector creates a collector reading from inv.
func NewCollector(inv inverter.Inverter) *Collector {
	return &Collector{
		inv: inv,
		soc: prometheus.NewDesc(
			"invbridge_battery_soc_percent",
			"Battery state of charge in percent",
			nil, nil,
		),
		capacity: prometheus.NewDesc(
			"invbridge_battery_capacity_wh",
			"Battery capacity in watt-hours (-1 until first read from the device)",
			nil, nil,
		),
		minSOC: prometheus.NewDesc(
			"invbridge_battery_soc_min_percent",
			"Configured minimum state of charge in percent",
			nil, nil,
		),
		maxSOC: prometheus.NewDesc(
			"invbridge_battery_soc_max_percent",
			"Configured maximum state of charge in percent",
			nil, nil,
		),
		channel: prometheus.NewDesc(
			"invbridge_inverter_channel",
			"Extended monitoring channel reading",
			[]string{"channel"}, nil,
		),
		scrapeSuccess: prometheus.NewDesc(
			"invbridge_scrape_success",
			"Whether reading the inverter was successful",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.soc
	ch <- c.capacity
	ch <- c.minSOC
	ch <- c.maxSOC
	ch <- c.channel
	ch <- c.scrapeSuccess
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	ctx := context.Background()

	info, err := c.inv.BatteryInfo(ctx)
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "metrics scrape failed", slog.Any("error", err))
		ch <- prometheus.MustNewConstMetric(c.scrapeSuccess, prometheus.GaugeValue, 0)
		return
	}

	ch <- prometheus.MustNewConstMetric(c.soc, prometheus.GaugeValue, info.SOC)
	ch <- prometheus.MustNewConstMetric(c.capacity, prometheus.GaugeValue, info.CapacityWh)
	ch <- prometheus.MustNewConstMetric(c.minSOC, prometheus.GaugeValue, info.MinSOC)
	ch <- prometheus.MustNewConstMetric(c.maxSOC, prometheus.GaugeValue, info.MaxSOC)

	if c.inv.SupportsExtendedMonitoring() {
		snap, err := c.inv.FetchData(ctx)
		if err != nil {
			log.Ctx(ctx).WarnContext(ctx, "telemetry scrape failed", slog.Any("error", err))
			ch <- prometheus.MustNewConstMetric(c.scrapeSuccess, prometheus.GaugeValue, 0)
			return
		}
		for name, value := range snap {
			ch <- prometheus.MustNewConstMetric(c.channel, prometheus.GaugeValue, value, name)
		}
	}

	ch <- prometheus.MustNewConstMetric(c.scrapeSuccess, prometheus.GaugeValue, 1)
}
