package sink

import (
	"context"

	"github.com/gr-butler/airsense/data"
	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus keeps the latest value of every sensor field as a gauge, for
// scraping on /metrics.
type Prometheus struct {
	values *prometheus.GaugeVec
	up     *prometheus.GaugeVec
}

func NewPrometheus(reg prometheus.Registerer) (*Prometheus, error) {
	p := &Prometheus{
		values: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "airsense_sensor_value",
				Help: "Latest value of a sensor field",
			},
			[]string{"sensor", "field"},
		),
		up: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "airsense_sensor_up",
				Help: "1 when the last read of the sensor succeeded",
			},
			[]string{"sensor"},
		),
	}
	if err := reg.Register(p.values); err != nil {
		return nil, err
	}
	if err := reg.Register(p.up); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Prometheus) Name() string { return "prometheus" }

// Write updates the gauges. Faulted sensors report up 0 and keep their last
// values.
func (p *Prometheus) Write(_ context.Context, points []*data.Point) error {
	for _, pt := range points {
		if !pt.Status {
			p.up.WithLabelValues(pt.Sensor).Set(0)
			continue
		}
		p.up.WithLabelValues(pt.Sensor).Set(1)
		for _, f := range pt.Fields {
			p.values.WithLabelValues(pt.Sensor, f.Name).Set(f.Value)
		}
	}
	return nil
}

func (p *Prometheus) Close() error { return nil }
