package sensors

import (
	"math"
	"path/filepath"

	"github.com/gr-butler/airsense/drivers/iiodht"
	"github.com/gr-butler/airsense/drivers/si70xx"
	"github.com/gr-butler/airsense/env"
	logger "github.com/sirupsen/logrus"

	"periph.io/x/conn/v3/i2c"
	"tinygo.org/x/drivers"
	"tinygo.org/x/drivers/sht3x"
	"tinygo.org/x/drivers/sht4x"
)

// thReader returns one temperature (°C) and relative humidity (%) sample.
type thReader interface {
	Sense() (float64, float64, error)
}

// thSensor is the shared body of the temperature and humidity sensors. The
// named types below only differ in how the device is opened and in their
// messages.
type thSensor struct {
	composite
	Humidity Humidity

	addr    uint16
	open    func() (thReader, error)
	dev     thReader
	initMsg string
	readMsg string
}

func newTHSensor(addr uint16, initMsg, readMsg string, open func() (thReader, error)) thSensor {
	return thSensor{addr: addr, open: open, initMsg: initMsg, readMsg: readMsg}
}

// bind must be called once the sensor has its final address in memory.
func (s *thSensor) bind(name string) {
	s.composite = compose(name, &s.Humidity)
}

func (s *thSensor) Init() error {
	logger.Infof("Starting %v reader [%x]", s.name, s.addr)
	dev, err := s.open()
	if err != nil {
		return s.initDone(initError(s.initMsg, err))
	}
	s.dev = dev
	return s.initDone(nil)
}

func (s *thSensor) ReadValues() error {
	if err := s.checkInit(); err != nil {
		return err
	}
	t, h, err := s.dev.Sense()
	if err != nil {
		return s.readDone(readError(reasonFor(err), s.readMsg, err))
	}
	if !validReading(t, h) {
		return s.readDone(readError(ReasonInvalidSample, s.readMsg, nil))
	}
	s.Humidity.set(t, h)
	return s.readDone(nil)
}

// DHT22 is read through the kernel dht11 IIO driver.
type DHT22 struct {
	thSensor
}

// NewDHT22 uses the IIO device directory under root, or the first dht11
// device found when device is empty.
func NewDHT22(root, device string) *DHT22 {
	s := &DHT22{}
	s.thSensor = newTHSensor(0, "DHT err", "DHT err", func() (thReader, error) {
		var d *iiodht.Dev
		if device != "" {
			d = iiodht.New(filepath.Join(root, device))
		} else {
			var err error
			if d, err = iiodht.Find(root); err != nil {
				return nil, err
			}
		}
		// The device has no presence check, so a first sample stands in for one.
		if _, _, err := d.Sense(); err != nil {
			return nil, err
		}
		return d, nil
	})
	s.bind("DHT22")
	return s
}

// SHT31 is an SHT3x on I²C, read through the tinygo driver.
type SHT31 struct {
	thSensor
}

func NewSHT31(bus drivers.I2C, addr uint16) *SHT31 {
	if addr == 0 {
		addr = env.SHT31Addr
	}
	s := &SHT31{}
	s.thSensor = newTHSensor(addr, "SHT31 init err", "SHT31 read err", func() (thReader, error) {
		rec := &txRecorder{bus: bus}
		dev := sht3x.New(rec)
		dev.Address = addr
		r := &sht3xReader{dev: dev, rec: rec}
		// the device has no id register, a first sample stands in for one
		if _, _, err := r.Sense(); err != nil {
			return nil, err
		}
		return r, nil
	})
	s.bind("SHT31")
	return s
}

// The tinygo sht3x driver ignores bus errors, so they are taken from the
// recorder instead.
type sht3xReader struct {
	dev sht3x.Device
	rec *txRecorder
}

func (r *sht3xReader) Sense() (float64, float64, error) {
	// milli °C and hundredths of a percent
	tmc, rh, _ := r.dev.ReadTemperatureHumidity()
	if err := r.rec.take(); err != nil {
		return 0, 0, err
	}
	return float64(tmc) / 1000, float64(rh) / 100, nil
}

// SHT4X is an SHT40/41/45, read through the tinygo driver.
type SHT4X struct {
	thSensor
}

func NewSHT4X(bus drivers.I2C, addr uint16) *SHT4X {
	if addr == 0 {
		addr = env.SHT4XAddr
	}
	s := &SHT4X{}
	s.thSensor = newTHSensor(addr, "SHT4X init err", "SHT4X read err", func() (thReader, error) {
		dev := sht4x.New(bus)
		dev.Address = uint8(addr)
		r := &sht4xReader{dev: dev}
		if _, _, err := r.Sense(); err != nil {
			return nil, err
		}
		return r, nil
	})
	s.bind("SHT4X")
	return s
}

type sht4xReader struct {
	dev sht4x.Device
}

func (r *sht4xReader) Sense() (float64, float64, error) {
	// milli °C and milli percent, the humidity is not clamped by the driver
	tmc, rh, err := r.dev.ReadTemperatureHumidity()
	if err != nil {
		return 0, 0, err
	}
	return float64(tmc) / 1000, math.Max(0, math.Min(100, float64(rh)/1000)), nil
}

// SI702x is a Silicon Labs Si7013/20/21.
type SI702x struct {
	thSensor
	model string
}

func NewSI702x(bus i2c.Bus, addr uint16) *SI702x {
	if addr == 0 {
		addr = env.SI702xAddr
	}
	s := &SI702x{model: si70xx.ModelUnknown.String()}
	s.thSensor = newTHSensor(addr, "Si702x init err", "SI702X err", func() (thReader, error) {
		d := si70xx.New(bus, addr)
		if err := d.Reset(); err != nil {
			return nil, err
		}
		m, err := d.Model()
		if err != nil {
			return nil, err
		}
		s.model = m.String()
		logger.Infof("SI702x model %v", s.model)
		return si70xxReader{d}, nil
	})
	s.bind("SI702x")
	return s
}

// Model is the part reported by the device, "Unknown" until Init succeeds.
func (s *SI702x) Model() string { return s.model }

// HTU21D shares the Si70xx measurement commands but has no electronic id.
type HTU21D struct {
	thSensor
}

func NewHTU21D(bus i2c.Bus, addr uint16) *HTU21D {
	if addr == 0 {
		addr = env.HTU21DAddr
	}
	s := &HTU21D{}
	s.thSensor = newTHSensor(addr, "HTU21D init err", "HTU21D err", func() (thReader, error) {
		d := si70xx.New(bus, addr)
		if err := d.Reset(); err != nil {
			return nil, err
		}
		return si70xxReader{d}, nil
	})
	s.bind("HTU21D")
	return s
}

type si70xxReader struct {
	d *si70xx.Dev
}

func (r si70xxReader) Sense() (float64, float64, error) {
	t, err := r.d.Temperature()
	if err != nil {
		return 0, 0, err
	}
	h, err := r.d.Humidity()
	if err != nil {
		return 0, 0, err
	}
	return t, h, nil
}
