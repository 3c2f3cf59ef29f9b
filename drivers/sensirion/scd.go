package sensirion

import (
	"math"
	"time"
)

// SCD30 is the NDIR CO2 sensor.
type SCD30 struct {
	*Dev
}

const (
	scd30StartContinuous = 0x0010
	scd30DataReady       = 0x0202
	scd30ReadMeasurement = 0x0300
	scd30FirmwareVersion = 0xD100
)

// Start checks the firmware version answers and starts continuous
// measurement without ambient pressure compensation.
func (s SCD30) Start() error {
	if _, err := s.Query(scd30FirmwareVersion, 3*time.Millisecond, 1); err != nil {
		return err
	}
	return s.Command(scd30StartContinuous, 0)
}

// Measure returns CO2 in ppm, temperature in °C and humidity in %.
func (s SCD30) Measure() (float32, float32, float32, error) {
	ready, err := s.Query(scd30DataReady, 3*time.Millisecond, 1)
	if err != nil {
		return 0, 0, 0, err
	}
	if ready[0] != 1 {
		return 0, 0, 0, ErrNotReady
	}
	w, err := s.Query(scd30ReadMeasurement, 3*time.Millisecond, 6)
	if err != nil {
		return 0, 0, 0, err
	}
	return wordsToFloat(w[0], w[1]), wordsToFloat(w[2], w[3]), wordsToFloat(w[4], w[5]), nil
}

// wordsToFloat joins two big endian words into an IEEE754 float.
func wordsToFloat(hi, lo uint16) float32 {
	return math.Float32frombits(uint32(hi)<<16 | uint32(lo))
}
