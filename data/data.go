package data

import (
	"sync"
	"time"

	"github.com/gr-butler/airsense/buffer"
)

// Field is one named value of a Point.
type Field struct {
	Name  string
	Value float64
}

// Point is one poll of one sensor. It is what the sinks write.
type Point struct {
	Measurement string
	Sensor      string
	Tags        map[string]string
	Fields      []Field
	Time        time.Time
	Status      bool
	Error       string
}

func NewPoint(measurement, sensor string, t time.Time) *Point {
	return &Point{
		Measurement: measurement,
		Sensor:      sensor,
		Tags:        map[string]string{"sensor": sensor},
		Time:        t,
	}
}

// AddField appends a value, replacing an earlier one of the same name.
func (p *Point) AddField(name string, value float64) {
	for i := range p.Fields {
		if p.Fields[i].Name == name {
			p.Fields[i].Value = value
			return
		}
	}
	p.Fields = append(p.Fields, Field{Name: name, Value: value})
}

func (p *Point) Field(name string) (float64, bool) {
	for _, f := range p.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return 0, false
}

// FieldMap returns the fields keyed by name.
func (p *Point) FieldMap() map[string]interface{} {
	m := make(map[string]interface{}, len(p.Fields))
	for _, f := range p.Fields {
		m[f.Name] = f.Value
	}
	return m
}

// holder for the latest point of each sensor and a short history of every
// healthy field, used for the averaged uploads

type Readings struct {
	lock    sync.RWMutex
	history int
	order   []string
	latest  map[string]*Point
	buffers map[string]*buffer.SampleBuffer
}

// NewReadings keeps history samples per sensor field.
func NewReadings(history int) *Readings {
	r := Readings{}
	r.history = history
	r.latest = make(map[string]*Point)
	r.buffers = make(map[string]*buffer.SampleBuffer)

	return &r
}

func key(sensor, field string) string {
	return sensor + "/" + field
}

// Record stores p as the latest point of its sensor. Fields of a faulted
// sensor are stale and are kept out of the history.
func (r *Readings) Record(p *Point) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if _, ok := r.latest[p.Sensor]; !ok {
		r.order = append(r.order, p.Sensor)
	}
	r.latest[p.Sensor] = p
	if !p.Status {
		return
	}
	for _, f := range p.Fields {
		k := key(p.Sensor, f.Name)
		b, ok := r.buffers[k]
		if !ok {
			b = buffer.NewBuffer(r.history)
			r.buffers[k] = b
		}
		b.AddItem(f.Value)
	}
}

// Latest returns the newest point of every sensor in first seen order.
func (r *Readings) Latest() []*Point {
	r.lock.RLock()
	defer r.lock.RUnlock()
	out := make([]*Point, 0, len(r.order))
	for _, s := range r.order {
		out = append(out, r.latest[s])
	}
	return out
}

func (r *Readings) GetBuffer(sensor, field string) *buffer.SampleBuffer {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return r.buffers[key(sensor, field)]
}

// Average returns the mean of the last n samples of field from the first
// sensor, in first seen order, that has any history for it.
func (r *Readings) Average(field string, n int) (float64, bool) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	for _, s := range r.order {
		if b, ok := r.buffers[key(s, field)]; ok && b.Count() > 0 {
			return float64(b.AverageLast(n)), true
		}
	}
	return 0, false
}
