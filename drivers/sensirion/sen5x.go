package sensirion

import (
	"math"
	"time"
)

const (
	sen5xStartMeasurement = 0x0021
	sen5xDataReady        = 0x0202
	sen5xReadValues       = 0x03C4
	sen5xReset            = 0xD304
)

// SEN5xValues is one sample of an SEN5x environmental node. Channels the
// device does not have (or has not yet computed) are NaN.
type SEN5xValues struct {
	PM1p0, PM2p5, PM4p0, PM10p0 float64 // µg/m³
	Humidity                    float64 // %
	Temperature                 float64 // °C
	VOCIndex                    float64
	NOxIndex                    float64
}

// SEN5x is an SEN50/54/55 node.
type SEN5x struct {
	*Dev
}

// Start resets the device and starts measurement mode.
func (s SEN5x) Start() error {
	if err := s.Command(sen5xReset); err != nil {
		return err
	}
	s.wait(100 * time.Millisecond)
	if err := s.Command(sen5xStartMeasurement); err != nil {
		return err
	}
	s.wait(50 * time.Millisecond)
	return nil
}

// Measure reads the latest values. ErrNotReady is returned between samples.
func (s SEN5x) Measure() (SEN5xValues, error) {
	ready, err := s.Query(sen5xDataReady, 20*time.Millisecond, 1)
	if err != nil {
		return SEN5xValues{}, err
	}
	if ready[0]&0x00FF == 0 {
		return SEN5xValues{}, ErrNotReady
	}
	w, err := s.Query(sen5xReadValues, 20*time.Millisecond, 8)
	if err != nil {
		return SEN5xValues{}, err
	}
	return SEN5xValues{
		PM1p0:       scaledUnsigned(w[0], 10),
		PM2p5:       scaledUnsigned(w[1], 10),
		PM4p0:       scaledUnsigned(w[2], 10),
		PM10p0:      scaledUnsigned(w[3], 10),
		Humidity:    scaledSigned(w[4], 100),
		Temperature: scaledSigned(w[5], 200),
		VOCIndex:    scaledSigned(w[6], 10),
		NOxIndex:    scaledSigned(w[7], 10),
	}, nil
}

func scaledUnsigned(w uint16, scale float64) float64 {
	if w == 0xFFFF {
		return math.NaN()
	}
	return float64(w) / scale
}

func scaledSigned(w uint16, scale float64) float64 {
	if w == 0x7FFF {
		return math.NaN()
	}
	return float64(int16(w)) / scale
}
