package sensors

import (
	"math"
	"strings"

	"github.com/gr-butler/airsense/env"
	"github.com/pkg/errors"
	logger "github.com/sirupsen/logrus"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/bmxx80"
)

// envSenser is the part of a periph environmental device we use. String
// starts with the chip name found at the address.
type envSenser interface {
	Sense(e *physic.Env) error
	String() string
}

func openBMxx80(bus i2c.Bus, addr uint16) func() (envSenser, error) {
	return func() (envSenser, error) {
		// Forced single sample per read, no IIR filter: weather station mode.
		opts := bmxx80.Opts{
			Temperature: bmxx80.O1x,
			Pressure:    bmxx80.O1x,
			Humidity:    bmxx80.O1x,
			Filter:      bmxx80.NoFilter,
		}
		return bmxx80.NewI2C(bus, addr, &opts)
	}
}

func celsius(e *physic.Env) float64 {
	return e.Temperature.Celsius()
}

func percentRH(e *physic.Env) float64 {
	return float64(e.Humidity) / float64(physic.PercentRH)
}

func hectoPascal(e *physic.Env) float64 {
	return float64(e.Pressure) / float64(100*physic.Pascal)
}

func validReading(v ...float64) bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

// BME280 reports temperature, humidity and pressure.
type BME280 struct {
	composite
	Humidity Humidity
	Pressure Pressure

	addr uint16
	open func() (envSenser, error)
	dev  envSenser
}

func NewBME280(bus i2c.Bus, addr uint16, altitude float64) *BME280 {
	if addr == 0 {
		addr = env.BME280Addr
	}
	s := &BME280{addr: addr, open: openBMxx80(bus, addr)}
	s.Pressure.Altitude = altitude
	s.composite = compose("BME280", &s.Humidity, &s.Pressure)
	return s
}

func (s *BME280) Init() error {
	logger.Infof("Starting BME280 reader [%x]", s.addr)
	dev, err := s.open()
	if err != nil {
		return s.initDone(initError("BME280 init error", err))
	}
	// the driver accepts a BMP280 too, which has no humidity
	if !strings.HasPrefix(dev.String(), "BME280") {
		return s.initDone(initError("BME280 init error", errors.Errorf("%v is not a BME280", dev)))
	}
	s.dev = dev
	return s.initDone(nil)
}

func (s *BME280) ReadValues() error {
	if err := s.checkInit(); err != nil {
		return err
	}
	em := physic.Env{}
	if err := s.dev.Sense(&em); err != nil {
		return s.readDone(readError(ReasonBus, "BME280 read error", err))
	}
	t, h, p := celsius(&em), percentRH(&em), hectoPascal(&em)
	switch {
	case !validReading(t):
		return s.readDone(readError(ReasonInvalidSample, "BME280 temp error", nil))
	case !validReading(h):
		return s.readDone(readError(ReasonInvalidSample, "BME280 hum error", nil))
	case !validReading(p) || p <= 0:
		return s.readDone(readError(ReasonInvalidSample, "BME280 press error", nil))
	}
	s.Humidity.set(t, h)
	s.Pressure.set(p)
	return s.readDone(nil)
}

// BMP280 reports temperature and pressure.
type BMP280 struct {
	composite
	Temperature Temperature
	Pressure    Pressure

	addr uint16
	open func() (envSenser, error)
	dev  envSenser
}

func NewBMP280(bus i2c.Bus, addr uint16, altitude float64) *BMP280 {
	if addr == 0 {
		addr = env.BMP280Addr
	}
	s := &BMP280{addr: addr, open: openBMxx80(bus, addr)}
	s.Pressure.Altitude = altitude
	s.composite = compose("BMP280", &s.Temperature, &s.Pressure)
	return s
}

func (s *BMP280) Init() error {
	logger.Infof("Starting BMP280 reader [%x]", s.addr)
	dev, err := s.open()
	if err != nil {
		return s.initDone(initError("BMP280 error", err))
	}
	s.dev = dev
	return s.initDone(nil)
}

func (s *BMP280) ReadValues() error {
	if err := s.checkInit(); err != nil {
		return err
	}
	em := physic.Env{}
	if err := s.dev.Sense(&em); err != nil {
		return s.readDone(readError(ReasonBus, "BMP280 read error", err))
	}
	t, p := celsius(&em), hectoPascal(&em)
	if !validReading(t) {
		return s.readDone(readError(ReasonInvalidSample, "BMP280 temp error", nil))
	}
	if !validReading(p) || p <= 0 {
		return s.readDone(readError(ReasonInvalidSample, "BMP280 press error", nil))
	}
	s.Temperature.Temp = t
	s.Pressure.set(p)
	return s.readDone(nil)
}
