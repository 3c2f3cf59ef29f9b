package main

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/gr-butler/airsense/data"
	"github.com/gr-butler/airsense/env"
	"github.com/gr-butler/airsense/led"
	"github.com/gr-butler/airsense/sensors"
	"github.com/gr-butler/airsense/sink"
	"github.com/jonboulle/clockwork"
	logger "github.com/sirupsen/logrus"
)

const measurement = "airsense"

type sensorStatus struct {
	Name         string             `json:"name"`
	State        string             `json:"state"`
	Capabilities string             `json:"capabilities"`
	Text         string             `json:"text"`
	Model        string             `json:"model,omitempty"`
	Error        string             `json:"error,omitempty"`
	Time         time.Time          `json:"time"`
	Fields       map[string]float64 `json:"fields,omitempty"`
}

type station struct {
	cfg      env.StationConfig
	sensors  []sensors.Sensor
	needInit []bool
	readings *data.Readings
	sink     sink.Sink
	wow      *sink.WOW
	fault    *led.LED
	beat     *led.LED
	clock    clockwork.Clock
	testMode bool

	cycle   int
	comp    *data.Point
	lock    sync.RWMutex
	current []sensorStatus
}

// initSensors talks to every device once. Failures are logged and the
// sensor is retried from the poll loop. The status LED flickers once per
// failed sensor.
func (w *station) initSensors() int {
	w.needInit = make([]bool, len(w.sensors))
	failed := 0
	for i, s := range w.sensors {
		if err := s.Init(); err != nil {
			logger.Errorf("Failed to initialise %v [%v]", s.Name(), err)
			w.needInit[i] = true
			failed++
			continue
		}
		logger.Infof("%v ready, %v", s.Name(), s.Capabilities())
	}
	if failed > 0 {
		w.fault.Flicker(failed)
	}
	return failed
}

// StartMonitor polls every sensor each interval until ctx is done.
func (w *station) StartMonitor(ctx context.Context) {
	logger.Infof("Starting sensor monitor, every %v", w.cfg.Interval)
	ticker := w.clock.NewTicker(w.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ticker.Chan():
			w.poll(ctx, t)
		}
	}
}

// poll runs one cycle: read, record, then hand the points to the sinks.
func (w *station) poll(ctx context.Context, now time.Time) []*data.Point {
	w.cycle++
	retry := w.cycle%w.cfg.RetryInitEvery == 0
	points := make([]*data.Point, 0, len(w.sensors))
	faulted := false
	var comp *data.Point

	for i, s := range w.sensors {
		p := data.NewPoint(measurement, s.Name(), now)
		p.Tags["station"] = w.cfg.Name

		if w.needInit[i] && retry {
			if err := s.Init(); err != nil {
				logger.Warnf("Retry of %v failed [%v]", s.Name(), err)
			} else {
				logger.Infof("%v recovered", s.Name())
				w.needInit[i] = false
			}
		}

		if !w.needInit[i] {
			w.compensate(s)
			if err := s.ReadValues(); err != nil {
				logger.Warnf("%v", s)
				if sensors.IsInit(err) {
					w.needInit[i] = true
				}
			}
		}

		p.Status = s.Status()
		if p.Status {
			s.StoreValues(p)
			if comp == nil && s.Capabilities().Has(sensors.CapHumidity) {
				comp = p
			}
			logger.Debugf("%v", s)
		} else {
			p.Error = s.LastError()
			faulted = true
		}
		w.readings.Record(p)
		points = append(points, p)
	}
	// the first healthy humidity sensor of this cycle feeds the next one
	if comp != nil {
		w.comp = comp
	}

	w.publish(points)
	// the status LED stays lit while any sensor is faulted
	if faulted {
		w.fault.On()
	} else if w.fault.IsOn() {
		w.fault.Off()
	}
	if w.testMode || w.sink == nil {
		return points
	}
	if err := w.sink.Write(ctx, points); err != nil {
		logger.Errorf("Failed to write points [%v]", err)
	}
	return points
}

// compensate passes the last healthy temperature and humidity to sensors
// that correct for them.
func (w *station) compensate(s sensors.Sensor) {
	c, ok := s.(sensors.Compensated)
	if !ok || w.comp == nil {
		return
	}
	t, okT := w.comp.Field(sensors.FieldTemp)
	h, okH := w.comp.Field(sensors.FieldHum)
	if okT && okH {
		c.SetCompensation(t, h)
	}
}

func (w *station) publish(points []*data.Point) {
	st := make([]sensorStatus, len(points))
	for i, p := range points {
		s := w.sensors[i]
		st[i] = sensorStatus{
			Name:         s.Name(),
			State:        s.State().String(),
			Capabilities: s.Capabilities().String(),
			Text:         s.String(),
			Model:        modelOf(s),
			Error:        p.Error,
			Time:         p.Time,
		}
		if p.Status {
			st[i].Fields = make(map[string]float64, len(p.Fields))
			for _, f := range p.Fields {
				if !math.IsNaN(f.Value) {
					st[i].Fields[f.Name] = f.Value
				}
			}
		}
	}
	w.lock.Lock()
	w.current = st
	w.lock.Unlock()
}

func modelOf(s sensors.Sensor) string {
	if m, ok := s.(sensors.Modeled); ok {
		return m.Model()
	}
	return ""
}

func (w *station) status() []sensorStatus {
	w.lock.RLock()
	defer w.lock.RUnlock()
	return w.current
}

func (w *station) heartbeat(ctx context.Context) {
	logger.Info("Heartbeat started")
	ticker := w.clock.NewTicker(time.Second * 30)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.beat.Off()
			return
		case <-ticker.Chan():
			w.beat.Flash()
		}
	}
}
