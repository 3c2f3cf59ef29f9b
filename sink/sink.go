// Package sink delivers polled points to telemetry backends.
package sink

import (
	"context"

	"github.com/gr-butler/airsense/data"
	"github.com/pkg/errors"
	logger "github.com/sirupsen/logrus"
)

// Sink receives every point of a poll cycle.
type Sink interface {
	Name() string
	Write(ctx context.Context, points []*data.Point) error
	Close() error
}

// Multi fans a cycle out to several sinks. A failing sink does not stop the
// others.
type Multi struct {
	sinks []Sink
}

func NewMulti(sinks ...Sink) *Multi {
	return &Multi{sinks: sinks}
}

func (m *Multi) Add(s Sink) {
	m.sinks = append(m.sinks, s)
}

func (m *Multi) Len() int { return len(m.sinks) }

func (m *Multi) Name() string { return "multi" }

// Write returns the first error, after all sinks were tried.
func (m *Multi) Write(ctx context.Context, points []*data.Point) error {
	var first error
	for _, s := range m.sinks {
		if err := s.Write(ctx, points); err != nil {
			logger.Errorf("Failed to write to %v [%v]", s.Name(), err)
			if first == nil {
				first = errors.Wrap(err, s.Name())
			}
		}
	}
	return first
}

func (m *Multi) Close() error {
	var first error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			logger.Warnf("Failed to close %v [%v]", s.Name(), err)
			if first == nil {
				first = err
			}
		}
	}
	return first
}

// healthy returns the points that carry fields.
func healthy(points []*data.Point) []*data.Point {
	out := make([]*data.Point, 0, len(points))
	for _, p := range points {
		if p.Status && len(p.Fields) > 0 {
			out = append(out, p)
		}
	}
	return out
}
