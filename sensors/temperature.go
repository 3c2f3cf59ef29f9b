package sensors

import (
	"github.com/gr-butler/airsense/env"
	"github.com/pkg/errors"
	logger "github.com/sirupsen/logrus"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/onewire"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/ds18b20"
	"periph.io/x/devices/v3/mcp9808"
)

// tSensor is the shared body of the temperature only sensors.
type tSensor struct {
	composite
	Temperature Temperature

	addr    uint64
	open    func() (envSenser, error)
	dev     envSenser
	initMsg string
	readMsg string
}

func (s *tSensor) Init() error {
	logger.Infof("Starting %v reader [%x]", s.name, s.addr)
	dev, err := s.open()
	if err != nil {
		return s.initDone(initError(s.initMsg, err))
	}
	s.dev = dev
	return s.initDone(nil)
}

func (s *tSensor) ReadValues() error {
	if err := s.checkInit(); err != nil {
		return err
	}
	e := physic.Env{}
	if err := s.dev.Sense(&e); err != nil {
		return s.readDone(readError(reasonFor(err), s.readMsg, err))
	}
	t := celsius(&e)
	if !validReading(t) {
		return s.readDone(readError(ReasonInvalidSample, s.readMsg, nil))
	}
	s.Temperature.Temp = t
	return s.readDone(nil)
}

// MCP9808 is the Microchip precision temperature sensor.
type MCP9808 struct {
	tSensor
}

func NewMCP9808(bus i2c.Bus, addr uint16) *MCP9808 {
	if addr == 0 {
		addr = env.MCP9808Addr
	}
	s := &MCP9808{}
	s.tSensor = tSensor{
		addr:    uint64(addr),
		initMsg: "MCP9808 init err",
		readMsg: "MCP9808 err",
		open: func() (envSenser, error) {
			opts := mcp9808.DefaultOpts
			opts.Addr = int(addr)
			return mcp9808.New(bus, &opts)
		},
	}
	s.composite = compose("MCP9808", &s.Temperature)
	return s
}

// DS18B20 reads the first Dallas thermometer found on a 1-Wire bus.
type DS18B20 struct {
	tSensor
}

func NewDS18B20(bus onewire.Bus) *DS18B20 {
	s := &DS18B20{}
	s.tSensor = tSensor{
		initMsg: "No 1W device found",
		readMsg: "DS18b20 error",
	}
	s.open = func() (envSenser, error) {
		addrs, err := bus.Search(false)
		if err != nil {
			return nil, err
		}
		if len(addrs) == 0 {
			return nil, errors.New("onewire: search found no devices")
		}
		s.addr = uint64(addrs[0])
		return ds18b20.New(bus, addrs[0], env.DS18B20Bits)
	}
	s.composite = compose("DS18B20", &s.Temperature)
	return s
}
