package sensors

import (
	"github.com/gr-butler/airsense/env"
	logger "github.com/sirupsen/logrus"

	"tinygo.org/x/drivers"
	"tinygo.org/x/drivers/aht20"
	"tinygo.org/x/drivers/bh1750"
	"tinygo.org/x/drivers/shtc3"
)

// Some tinygo drivers drop bus errors. txRecorder sits between the driver and
// the bus and keeps the first error of an exchange so the sensor can report it.
type txRecorder struct {
	bus drivers.I2C
	err error
}

func (r *txRecorder) Tx(addr uint16, w, rd []byte) error {
	err := r.bus.Tx(addr, w, rd)
	if err != nil && r.err == nil {
		r.err = err
	}
	return err
}

// take returns and clears the recorded error.
func (r *txRecorder) take() error {
	err := r.err
	r.err = nil
	return err
}

// SHTC3 uses the tinygo driver. The device is woken for each sample and put
// back to sleep afterwards.
type SHTC3 struct {
	thSensor
}

func NewSHTC3(bus drivers.I2C) *SHTC3 {
	s := &SHTC3{}
	s.thSensor = newTHSensor(env.SHTC3Addr, "SHTC3 init err", "SHTC3 err", func() (thReader, error) {
		rec := &txRecorder{bus: bus}
		r := &shtc3Reader{dev: shtc3.New(rec), rec: rec}
		// a full wake/read/sleep cycle stands in for a presence check
		if _, _, err := r.Sense(); err != nil {
			return nil, err
		}
		return r, nil
	})
	s.bind("SHTC3")
	return s
}

// The tinygo shtc3 driver drops every bus error.
type shtc3Reader struct {
	dev shtc3.Device
	rec *txRecorder
}

func (r *shtc3Reader) Sense() (float64, float64, error) {
	_ = r.dev.WakeUp()
	// milli °C and hundredths of a percent
	tmc, rh, _ := r.dev.ReadTemperatureHumidity()
	err := r.rec.take()
	_ = r.dev.Sleep()
	if serr := r.rec.take(); serr != nil {
		logger.Debugf("SHTC3 sleep [%v]", serr)
	}
	if err != nil {
		return 0, 0, err
	}
	return float64(tmc) / 1000, float64(rh) / 100, nil
}

// AHT20 uses the tinygo driver.
type AHT20 struct {
	thSensor
}

func NewAHT20(bus drivers.I2C, addr uint16) *AHT20 {
	if addr == 0 {
		addr = env.AHT20Addr
	}
	s := &AHT20{}
	s.thSensor = newTHSensor(addr, "AHT20 init err", "AHT20 err", func() (thReader, error) {
		rec := &txRecorder{bus: bus}
		dev := aht20.New(rec)
		dev.Address = addr
		dev.Configure()
		if err := rec.take(); err != nil {
			return nil, err
		}
		return &aht20Reader{dev: dev, rec: rec}, nil
	})
	s.bind("AHT20")
	return s
}

type aht20Reader struct {
	dev aht20.Device
	rec *txRecorder
}

// Sense returns aht20.ErrTimeout when the device stays busy for three polls.
func (r *aht20Reader) Sense() (float64, float64, error) {
	err := r.dev.Read()
	// the trigger write is not checked by the driver
	if rerr := r.rec.take(); rerr != nil {
		return 0, 0, rerr
	}
	if err != nil {
		return 0, 0, err
	}
	return float64(r.dev.DeciCelsius()) / 10, float64(r.dev.DeciRelHumidity()) / 10, nil
}

// luxReader returns illuminance in lux.
type luxReader interface {
	Lux() (float64, error)
}

// BH1750 reports illuminance.
type BH1750 struct {
	composite
	Illumination Illumination

	addr uint16
	open func() (luxReader, error)
	dev  luxReader
}

func NewBH1750(bus drivers.I2C, addr uint16) *BH1750 {
	if addr == 0 {
		addr = env.BH1750Addr
	}
	s := &BH1750{addr: addr}
	s.open = func() (luxReader, error) {
		rec := &txRecorder{bus: bus}
		dev := bh1750.New(rec)
		dev.Address = addr
		dev.Configure()
		if err := rec.take(); err != nil {
			return nil, err
		}
		return &bh1750Reader{dev: dev, rec: rec}, nil
	}
	s.composite = compose("BH1750", &s.Illumination)
	return s
}

func (s *BH1750) Init() error {
	logger.Infof("Starting BH1750 reader [%x]", s.addr)
	dev, err := s.open()
	if err != nil {
		return s.initDone(initError("BH1750 init err", err))
	}
	s.dev = dev
	return s.initDone(nil)
}

func (s *BH1750) ReadValues() error {
	if err := s.checkInit(); err != nil {
		return err
	}
	lux, err := s.dev.Lux()
	if err != nil {
		return s.readDone(readError(reasonFor(err), "BH1750 err", err))
	}
	if !validReading(lux) || lux < 0 {
		return s.readDone(readError(ReasonInvalidSample, "BH1750 err", nil))
	}
	s.Illumination.LightIntensity = lux
	return s.readDone(nil)
}

type bh1750Reader struct {
	dev bh1750.Device
	rec *txRecorder
}

func (r *bh1750Reader) Lux() (float64, error) {
	mlx := r.dev.Illuminance()
	if err := r.rec.take(); err != nil {
		return 0, err
	}
	return float64(mlx) / 1000, nil
}
