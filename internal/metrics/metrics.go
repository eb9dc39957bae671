// Package metrics exposes competition progress as Prometheus metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/xtrntr/farmduel/internal/farm"
	"github.com/xtrntr/farmduel/internal/models"
)

const namespace = "farmduel"

// Collector records scheduler events. It satisfies scheduler.Recorder.
type Collector struct {
	registry *prometheus.Registry

	day     prometheus.Gauge
	turns   prometheus.Counter
	actions *prometheus.CounterVec

	trades      *prometheus.CounterVec
	tradeAmount *prometheus.CounterVec
	tradeValue  *prometheus.HistogramVec

	money    *prometheus.GaugeVec
	reserved *prometheus.GaugeVec
	energy   *prometheus.GaugeVec
	crops    *prometheus.GaugeVec
}

// NewCollector creates the collectors and registers them with reg. A nil
// reg gets a fresh registry.
func NewCollector(reg *prometheus.Registry) (*Collector, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	c := &Collector{
		registry: reg,

		day: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "day",
			Help:      "Day of the running competition",
		}),
		turns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Turns played across all competitions",
		}),
		actions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "actions_total",
				Help:      "Resolved actions by farm, action and outcome",
			},
			[]string{"farm", "action", "ok"},
		),

		trades: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "trades_total",
				Help:      "Settled trades by crop",
			},
			[]string{"crop"},
		),
		tradeAmount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "traded_units_total",
				Help:      "Crop units moved by settled trades",
			},
			[]string{"crop"},
		),
		tradeValue: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "trade_value",
				Help:      "Money paid per settled trade",
				Buckets:   []float64{5, 10, 20, 50, 100, 200, 300},
			},
			[]string{"crop"},
		),

		money: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "farm_money",
				Help:      "Money held by each farm",
			},
			[]string{"farm"},
		),
		reserved: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "farm_reserved_money",
				Help:      "Money held by open buy orders",
			},
			[]string{"farm"},
		),
		energy: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "farm_energy",
				Help:      "Energy of each farm after the turn",
			},
			[]string{"farm"},
		),
		crops: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "farm_crops",
				Help:      "Crops in the field",
			},
			[]string{"farm"},
		),
	}

	for _, m := range []prometheus.Collector{
		c.day, c.turns, c.actions,
		c.trades, c.tradeAmount, c.tradeValue,
		c.money, c.reserved, c.energy, c.crops,
	} {
		if err := reg.Register(m); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Handler serves the registry in the Prometheus text format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

func (c *Collector) RecordTurn(day int) {
	c.day.Set(float64(day))
	c.turns.Inc()
}

func (c *Collector) RecordAction(farmID string, entry models.LogEntry) {
	ok := "true"
	if !entry.OK {
		ok = "false"
	}
	c.actions.WithLabelValues(farmID, entry.Action, ok).Inc()
}

func (c *Collector) RecordTrade(t models.Trade) {
	c.trades.WithLabelValues(t.CropType).Inc()
	c.tradeAmount.WithLabelValues(t.CropType).Add(float64(t.Amount))
	c.tradeValue.WithLabelValues(t.CropType).Observe(t.Value)
}

func (c *Collector) RecordFarm(f *farm.Farm) {
	c.money.WithLabelValues(f.ID).Set(f.Money)
	c.reserved.WithLabelValues(f.ID).Set(f.ReservedMoney)
	c.energy.WithLabelValues(f.ID).Set(float64(f.Energy))
	c.crops.WithLabelValues(f.ID).Set(float64(len(f.Crops)))
}
