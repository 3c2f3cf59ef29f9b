package sensirion

import (
	"time"

	"github.com/pkg/errors"
)

// SGP40 is the VOC sensor. It reports the raw SRAW_VOC signal.
type SGP40 struct {
	*Dev
}

const (
	sgpMeasureRawVOC  = 0x260F
	sgpSelfTest       = 0x280E
	sgp41Conditioning = 0x2612
	sgp41MeasureRaw   = 0x2619
	sgp40SelfTestOK   = 0xD400
)

// SelfTest runs the on-chip test.
func (s SGP40) SelfTest() error {
	w, err := s.Query(sgpSelfTest, 320*time.Millisecond, 1)
	if err != nil {
		return err
	}
	if w[0] != sgp40SelfTestOK {
		return errors.Errorf("sgp40: self test failed (0x%04x)", w[0])
	}
	return nil
}

// MeasureRaw returns the humidity and temperature compensated raw signal.
func (s SGP40) MeasureRaw(tempC, humRH float64) (uint16, error) {
	rh, t := compensationTicks(tempC, humRH)
	w, err := s.Query(sgpMeasureRawVOC, 30*time.Millisecond, 1, rh, t)
	if err != nil {
		return 0, err
	}
	return w[0], nil
}

// SGP41 is the VOC and NOx sensor.
type SGP41 struct {
	*Dev
}

// SelfTest runs the on-chip test of both pixels.
func (s SGP41) SelfTest() error {
	w, err := s.Query(sgpSelfTest, 320*time.Millisecond, 1)
	if err != nil {
		return err
	}
	if w[0]&0x03 != 0 {
		return errors.Errorf("sgp41: self test failed (0x%04x)", w[0])
	}
	return nil
}

// Condition heats the NOx pixel. It must run for the first seconds after
// power up and returns the VOC raw signal meanwhile.
func (s SGP41) Condition(tempC, humRH float64) (uint16, error) {
	rh, t := compensationTicks(tempC, humRH)
	w, err := s.Query(sgp41Conditioning, 50*time.Millisecond, 1, rh, t)
	if err != nil {
		return 0, err
	}
	return w[0], nil
}

// MeasureRaw returns the raw VOC and NOx signals.
func (s SGP41) MeasureRaw(tempC, humRH float64) (uint16, uint16, error) {
	rh, t := compensationTicks(tempC, humRH)
	w, err := s.Query(sgp41MeasureRaw, 50*time.Millisecond, 2, rh, t)
	if err != nil {
		return 0, 0, err
	}
	return w[0], w[1], nil
}
