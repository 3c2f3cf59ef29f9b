package sensors

import (
	"math"
	"strings"
	"time"

	"github.com/gr-butler/airsense/drivers/gasindex"
	"github.com/gr-butler/airsense/drivers/sensirion"
	"github.com/gr-butler/airsense/env"
	"github.com/jonboulle/clockwork"
	logger "github.com/sirupsen/logrus"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/ccs811"
	"tinygo.org/x/drivers"
	"tinygo.org/x/drivers/scd4x"
)

// co2Reader returns CO2 (ppm), temperature (°C) and humidity (%).
type co2Reader interface {
	Measure() (float64, float64, float64, error)
}

// co2Sensor is the shared body of SCD30 and SCD41.
type co2Sensor struct {
	composite
	Humidity Humidity
	CO2      CO2

	addr    uint16
	open    func() (co2Reader, error)
	dev     co2Reader
	initMsg string
	readMsg string
	watch   readyWatch
	// zeroInvalid rejects a CO2 reading of 0, which the SCD4x reports for
	// a failed sample.
	zeroInvalid bool
}

func (s *co2Sensor) Init() error {
	logger.Infof("Starting %v reader [%x]", s.name, s.addr)
	dev, err := s.open()
	if err != nil {
		return s.initDone(initError(s.initMsg, err))
	}
	s.dev = dev
	s.watch = readyWatch{}
	return s.initDone(nil)
}

func (s *co2Sensor) ReadValues() error {
	if err := s.checkInit(); err != nil {
		return err
	}
	co2, t, h, err := s.dev.Measure()
	if err != nil {
		return s.readDone(readError(s.watch.reason(reasonFor(err)), s.readMsg, err))
	}
	s.watch.reset()
	if !validReading(co2, t, h) || co2 < 0 || co2 > math.MaxUint16 {
		return s.readDone(readError(ReasonInvalidSample, s.readMsg, nil))
	}
	if s.zeroInvalid && co2 == 0 {
		return s.readDone(readError(ReasonInvalidSample, s.name+" invalid sample", nil))
	}
	s.Humidity.set(t, h)
	s.CO2.CO2 = uint16(math.Round(co2))
	return s.readDone(nil)
}

// SCD30 is the Sensirion NDIR CO2 sensor.
type SCD30 struct {
	co2Sensor
}

func NewSCD30(bus i2c.Bus, addr uint16) *SCD30 {
	if addr == 0 {
		addr = env.SCD30Addr
	}
	s := &SCD30{}
	s.co2Sensor = co2Sensor{
		addr:    addr,
		initMsg: "SCD30 init err",
		readMsg: "SCD30 read error",
		open: func() (co2Reader, error) {
			d := sensirion.SCD30{Dev: sensirion.New(bus, addr)}
			if err := d.Start(); err != nil {
				return nil, err
			}
			return scd30Reader{d}, nil
		},
	}
	s.composite = compose("SCD30", &s.Humidity, &s.CO2)
	return s
}

type scd30Reader struct {
	d sensirion.SCD30
}

func (r scd30Reader) Measure() (float64, float64, float64, error) {
	co2, t, h, err := r.d.Measure()
	return float64(co2), float64(t), float64(h), err
}

// SCD41 is the Sensirion photoacoustic CO2 sensor, driven by the tinygo
// scd4x driver. That driver reports humidity in whole percent.
type SCD41 struct {
	co2Sensor
}

func NewSCD41(bus drivers.I2C, addr uint16) *SCD41 {
	if addr == 0 {
		addr = env.SCD41Addr
	}
	s := &SCD41{}
	s.co2Sensor = co2Sensor{
		addr:        addr,
		initMsg:     "SCD41 init err",
		readMsg:     "SCD41 read err",
		zeroInvalid: true,
		open: func() (co2Reader, error) {
			d := scd4x.New(bus)
			d.Address = uint8(addr)
			// stops any running measurement and reloads the settings
			if err := d.Configure(); err != nil {
				return nil, err
			}
			if err := d.StartPeriodicMeasurement(); err != nil {
				return nil, err
			}
			return scd4xReader{d}, nil
		},
	}
	s.composite = compose("SCD41", &s.Humidity, &s.CO2)
	return s
}

type scd4xReader struct {
	d *scd4x.Device
}

func (r scd4xReader) Measure() (float64, float64, float64, error) {
	ready, err := r.d.DataReady()
	if err != nil {
		return 0, 0, 0, err
	}
	if !ready {
		return 0, 0, 0, errNotReady
	}
	// ReadCO2 fetches the sample, the other two return it from the driver
	co2, err := r.d.ReadCO2()
	if err != nil {
		return 0, 0, 0, err
	}
	tmc, err := r.d.ReadTemperature()
	if err != nil {
		return 0, 0, 0, err
	}
	rh, err := r.d.ReadHumidity()
	if err != nil {
		return 0, 0, 0, err
	}
	return float64(co2), float64(tmc) / 1000, float64(rh), nil
}

// ccs811Device is the part of the periph CCS811 driver the sensor uses.
type ccs811Device interface {
	Sense(v *ccs811.SensorValues) error
	SetEnvironmentData(temp, humidity float32) error
}

// CCS811 status register bits.
const (
	ccs811StatusError     = 0x01
	ccs811StatusDataReady = 0x08
)

// CCS811 reports equivalent CO2 and TVOC. TVOC is published as the VOC
// index and the raw ADC word as gas resistance. Ambient conditions from
// SetCompensation are written to the device before the next read.
type CCS811 struct {
	composite
	compensation
	CO2 CO2
	VOC VOC

	addr uint16
	sent compensation
	open func() (ccs811Device, error)
	dev  ccs811Device
}

func NewCCS811(bus i2c.Bus, addr uint16) *CCS811 {
	if addr == 0 {
		addr = env.CCS811Addr
	}
	s := &CCS811{addr: addr, compensation: defaultCompensation(), VOC: newVOC(true, true)}
	s.open = func() (ccs811Device, error) {
		// new sample every 10 s
		d, err := ccs811.New(bus, &ccs811.Opts{Addr: addr, MeasurementMode: ccs811.MeasurementModePulse})
		if err != nil {
			return nil, err
		}
		return d, nil
	}
	s.composite = compose("CCS811", &s.CO2, &s.VOC)
	return s
}

func (s *CCS811) Init() error {
	logger.Infof("Starting CCS811 reader [%x]", s.addr)
	dev, err := s.open()
	if err != nil {
		return s.initDone(initError("CCS811 init error", err))
	}
	s.dev = dev
	// the device starts out assuming 25°C and 50%
	s.sent = defaultCompensation()
	return s.initDone(nil)
}

func (s *CCS811) ReadValues() error {
	if err := s.checkInit(); err != nil {
		return err
	}
	if s.compensation != s.sent {
		if err := s.dev.SetEnvironmentData(float32(s.tempC), float32(s.humRH)); err != nil {
			return s.readDone(readError(ReasonBus, "CCS811: I2C error", err))
		}
		s.sent = s.compensation
	}
	var v ccs811.SensorValues
	if err := s.dev.Sense(&v); err != nil {
		return s.readDone(readError(ReasonBus, "CCS811: I2C error", err))
	}
	if v.Status&ccs811StatusError != 0 || v.Error != nil {
		return s.readDone(readError(ReasonDevice, ccs811ErrorText(v.Error), v.Error))
	}
	if v.Status&ccs811StatusDataReady == 0 {
		return s.readDone(readError(ReasonNotReady, "CCS811: waiting for (new) data", nil))
	}
	s.CO2.CO2 = uint16(v.ECO2)
	s.VOC.VocIndex = float64(v.VOC)
	s.VOC.VocRaw = ccs811Raw(v)
	return s.readDone(nil)
}

// ccs811ErrorText shortens the driver's error to its code name, e.g.
// "CCS811: HEATER_FAULT".
func ccs811ErrorText(err error) string {
	if err == nil {
		return "CCS811: device error"
	}
	msg := strings.TrimPrefix(err.Error(), "sensor error: ")
	if i := strings.Index(msg, ":"); i > 0 {
		msg = msg[:i]
	}
	return "CCS811: " + msg
}

// ccs811Raw rebuilds the RAW_DATA register word: 6 bits of heater current in
// µA above 10 bits of ADC voltage.
func ccs811Raw(v ccs811.SensorValues) uint16 {
	current := uint16(v.RawDataCurrent/physic.MicroAmpere) & 0x3F
	volts := uint16(math.Round(float64(v.RawDataVoltage)*102300/165e9)) & 0x3FF
	return current<<10 | volts
}

// compensation holds the ambient conditions fed to a gas sensor.
type compensation struct {
	tempC float64
	humRH float64
}

func defaultCompensation() compensation {
	return compensation{tempC: env.DefaultCompensationTemp, humRH: env.DefaultCompensationHum}
}

func (c *compensation) SetCompensation(tempC, humRH float64) {
	if !validReading(tempC, humRH) {
		return
	}
	c.tempC = tempC
	c.humRH = humRH
}

// sgp40Device is the part of the SGP40 driver the sensor uses.
type sgp40Device interface {
	SelfTest() error
	MeasureRaw(tempC, humRH float64) (uint16, error)
}

// seconds returns the poll interval in seconds for the gas index algorithms.
func seconds(interval time.Duration) float64 {
	if interval <= 0 {
		interval = env.DefaultPollInterval
	}
	return interval.Seconds()
}

// SGP40 reports the raw VOC signal and the VOC index computed from it.
// Temperature and humidity compensation come from another sensor through
// SetCompensation.
type SGP40 struct {
	composite
	compensation
	VOC VOC

	addr uint16
	voc  *gasindex.Algorithm
	open func() sgp40Device
	dev  sgp40Device
}

// NewSGP40 expects ReadValues to be called every interval.
func NewSGP40(bus i2c.Bus, addr uint16, interval time.Duration) *SGP40 {
	if addr == 0 {
		addr = env.SGP40Addr
	}
	s := &SGP40{
		addr:         addr,
		compensation: defaultCompensation(),
		VOC:          newVOC(true, true),
		voc:          gasindex.New(gasindex.VOC, seconds(interval)),
	}
	s.open = func() sgp40Device { return sensirion.SGP40{Dev: sensirion.New(bus, addr)} }
	s.composite = compose("SGP40", &s.VOC)
	return s
}

func (s *SGP40) Init() error {
	logger.Infof("Starting SGP40 reader [%x]", s.addr)
	dev := s.open()
	if err := dev.SelfTest(); err != nil {
		return s.initDone(initError("SGP40 init err", err))
	}
	s.dev = dev
	s.voc.Reset()
	return s.initDone(nil)
}

func (s *SGP40) ReadValues() error {
	if err := s.checkInit(); err != nil {
		return err
	}
	raw, err := s.dev.MeasureRaw(s.tempC, s.humRH)
	if err != nil {
		return s.readDone(readError(reasonFor(err), "SGP40 err", err))
	}
	s.VOC.VocRaw = raw
	// 0 until the algorithm's start up blackout has passed
	s.VOC.VocIndex = float64(s.voc.Process(int32(raw)))
	return s.readDone(nil)
}

// sgp41Device is the part of the SGP41 driver the sensor uses.
type sgp41Device interface {
	SelfTest() error
	Condition(tempC, humRH float64) (uint16, error)
	MeasureRaw(tempC, humRH float64) (uint16, uint16, error)
}

// SGP41 reports raw VOC and NOx signals and their indices. The NOx pixel
// needs conditioning after power up; reads during that window heat it and
// report not ready.
type SGP41 struct {
	composite
	compensation
	VOC VOC
	NOx NOx

	addr           uint16
	clock          clockwork.Clock
	conditionUntil time.Time
	voc            *gasindex.Algorithm
	nox            *gasindex.Algorithm
	open           func() sgp41Device
	dev            sgp41Device
}

func NewSGP41(bus i2c.Bus, addr uint16, clock clockwork.Clock, interval time.Duration) *SGP41 {
	if addr == 0 {
		addr = env.SGP41Addr
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	s := &SGP41{
		addr:         addr,
		clock:        clock,
		compensation: defaultCompensation(),
		VOC:          newVOC(true, true),
		voc:          gasindex.New(gasindex.VOC, seconds(interval)),
		nox:          gasindex.New(gasindex.NOx, seconds(interval)),
	}
	s.open = func() sgp41Device { return sensirion.SGP41{Dev: sensirion.New(bus, addr)} }
	s.composite = compose("SGP41", &s.VOC, &s.NOx)
	return s
}

func (s *SGP41) Init() error {
	logger.Infof("Starting SGP41 reader [%x]", s.addr)
	dev := s.open()
	if err := dev.SelfTest(); err != nil {
		return s.initDone(initError("SGP41 init err", err))
	}
	s.dev = dev
	s.conditionUntil = s.clock.Now().Add(env.SGP41ConditioningTime)
	s.voc.Reset()
	s.nox.Reset()
	return s.initDone(nil)
}

// Conditioning reports whether the NOx pixel is still being conditioned.
func (s *SGP41) Conditioning() bool {
	return s.clock.Now().Before(s.conditionUntil)
}

func (s *SGP41) ReadValues() error {
	if err := s.checkInit(); err != nil {
		return err
	}
	if s.Conditioning() {
		if _, err := s.dev.Condition(s.tempC, s.humRH); err != nil {
			return s.readDone(readError(reasonFor(err), "SGP41 err", err))
		}
		return s.readDone(readError(ReasonNotReady, "SGP41 conditioning", nil))
	}
	voc, nox, err := s.dev.MeasureRaw(s.tempC, s.humRH)
	if err != nil {
		return s.readDone(readError(reasonFor(err), "SGP41 err", err))
	}
	s.VOC.VocRaw = voc
	s.VOC.VocIndex = float64(s.voc.Process(int32(voc)))
	s.NOx.NoxRaw = nox
	s.NOx.NoxIndex = float64(s.nox.Process(int32(nox)))
	return s.readDone(nil)
}

// sen5xDevice is the part of the SEN5x driver the sensor uses.
type sen5xDevice interface {
	Start() error
	Measure() (sensirion.SEN5xValues, error)
}

// SEN54 is the Sensirion environmental node: particulate matter,
// temperature, humidity and the on-chip VOC index.
type SEN54 struct {
	composite
	Humidity Humidity
	VOC      VOC
	Dust     Dust

	addr  uint16
	watch readyWatch
	open  func() sen5xDevice
	dev   sen5xDevice
}

func NewSEN54(bus i2c.Bus, addr uint16) *SEN54 {
	if addr == 0 {
		addr = env.SEN54Addr
	}
	s := &SEN54{addr: addr, VOC: newVOC(false, true)}
	s.open = func() sen5xDevice { return sensirion.SEN5x{Dev: sensirion.New(bus, addr)} }
	s.composite = compose("SEN54", &s.Humidity, &s.VOC, &s.Dust)
	return s
}

func (s *SEN54) Init() error {
	logger.Infof("Starting SEN54 reader [%x]", s.addr)
	dev := s.open()
	if err := dev.Start(); err != nil {
		return s.initDone(initError("SEN54 init err", err))
	}
	s.dev = dev
	s.watch = readyWatch{}
	return s.initDone(nil)
}

func (s *SEN54) ReadValues() error {
	if err := s.checkInit(); err != nil {
		return err
	}
	v, err := s.dev.Measure()
	if err != nil {
		return s.readDone(readError(s.watch.reason(reasonFor(err)), "SEN54 read err", err))
	}
	s.watch.reset()
	// The VOC index is NaN for the first seconds after start.
	if !validReading(v.Temperature, v.Humidity, v.VOCIndex, v.PM1p0, v.PM2p5, v.PM4p0, v.PM10p0) {
		return s.readDone(readError(ReasonInvalidSample, "SEN54 invalid sample", nil))
	}
	s.Humidity.set(v.Temperature, v.Humidity)
	s.VOC.VocIndex = v.VOCIndex
	s.Dust = Dust{PM1p0: v.PM1p0, PM2p5: v.PM2p5, PM4p0: v.PM4p0, PM10p0: v.PM10p0}
	return s.readDone(nil)
}

// readyWatch turns a run of not ready reads into a timeout: a device that
// never produces a sample is stuck, not slow.
type readyWatch struct {
	misses int
}

func (w *readyWatch) reason(r Reason) Reason {
	if r != ReasonNotReady {
		w.misses = 0
		return r
	}
	w.misses++
	if w.misses > env.MaxNotReadyReads {
		return ReasonTimeout
	}
	return r
}

func (w *readyWatch) reset() { w.misses = 0 }
