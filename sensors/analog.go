package sensors

import (
	"math"

	"github.com/gr-butler/airsense/buffer"
	"github.com/gr-butler/airsense/env"
	"github.com/pkg/errors"
	logger "github.com/sirupsen/logrus"

	"periph.io/x/conn/v3/analog"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/ads1x15"
)

// adcFullCount is the positive full scale count of a single ended ADS1115
// channel.
const adcFullCount = 32767

// AnalogConfig selects one single ended ADS1115 channel and what it measures.
type AnalogConfig struct {
	Name       string
	Address    uint16
	Channel    int
	FullScale  float64 // volts, one of the ADS1115 gain ranges
	Window     int     // samples in the moving average
	Field      string
	Capability Capability
}

// analogPin is the part of a periph ADC pin we use.
type analogPin interface {
	Read() (analog.Sample, error)
}

// Analog is a generic analog input, for example a soil moisture sensor. Each
// read adds one sample to a moving average; the published value is the
// average scaled to volts.
type Analog struct {
	composite
	AnalogValue AnalogValue

	cfg     AnalogConfig
	samples *buffer.SampleBuffer
	open    func() (analogPin, error)
	pin     analogPin
}

var adsChannels = [...]ads1x15.Channel{ads1x15.Channel0, ads1x15.Channel1, ads1x15.Channel2, ads1x15.Channel3}

func NewAnalog(bus i2c.Bus, cfg AnalogConfig) (*Analog, error) {
	if cfg.Name == "" {
		cfg.Name = "Analog"
	}
	if cfg.Address == 0 {
		cfg.Address = env.ADS1115Addr
	}
	if cfg.FullScale <= 0 {
		cfg.FullScale = env.DefaultAnalogMax
	}
	if cfg.Window <= 0 {
		cfg.Window = env.DefaultAnalogWindow
	}
	if cfg.Field == "" {
		return nil, errors.Errorf("%s: analog field name required", cfg.Name)
	}
	if cfg.Channel < 0 || cfg.Channel >= len(adsChannels) {
		return nil, errors.Errorf("%s: ADS1115 channel %d out of range", cfg.Name, cfg.Channel)
	}
	s := &Analog{cfg: cfg, samples: buffer.NewBuffer(cfg.Window)}
	s.AnalogValue = AnalogValue{field: cfg.Field, capability: cfg.Capability}
	s.open = func() (analogPin, error) {
		adc, err := ads1x15.NewADS1115(bus, &ads1x15.Opts{I2cAddress: cfg.Address})
		if err != nil {
			return nil, err
		}
		maxV := physic.ElectricPotential(cfg.FullScale * float64(physic.Volt))
		return adc.PinForChannel(adsChannels[cfg.Channel], maxV, 128*physic.Hertz, ads1x15.BestQuality)
	}
	s.composite = compose(cfg.Name, &s.AnalogValue)
	return s, nil
}

func (s *Analog) Init() error {
	logger.Infof("Starting %v reader [%x ch%d]", s.name, s.cfg.Address, s.cfg.Channel)
	pin, err := s.open()
	if err != nil {
		return s.initDone(initError(s.name+" init err", err))
	}
	s.pin = pin
	return s.initDone(nil)
}

func (s *Analog) ReadValues() error {
	if err := s.checkInit(); err != nil {
		return err
	}
	sample, err := s.pin.Read()
	if err != nil {
		return s.readDone(readError(reasonFor(err), s.name+" read err", err))
	}
	raw := float64(sample.Raw)
	if raw < 0 {
		// single ended inputs only go a few counts below ground
		raw = 0
	}
	s.samples.AddItem(raw)
	avg := float64(s.samples.Average())
	s.AnalogValue.Raw = uint16(math.Round(avg))
	s.AnalogValue.Value = avg / adcFullCount * s.cfg.FullScale
	return s.readDone(nil)
}

// Window is the configured moving average length.
func (s *Analog) Window() int { return s.samples.GetSize() }
