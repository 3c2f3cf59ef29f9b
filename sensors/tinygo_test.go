package sensors

import (
	"testing"

	"github.com/gr-butler/airsense/drivers/sensirion"
	"github.com/gr-butler/airsense/env"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"periph.io/x/conn/v3/i2c/i2ctest"
)

func shtc3Cycle(sample []byte) []i2ctest.IO {
	a := env.SHTC3Addr
	return []i2ctest.IO{
		{Addr: a, W: []byte{0x35, 0x17}},
		{Addr: a, W: []byte{0x7C, 0xA2}, R: sample},
		{Addr: a, W: []byte{0xB0, 0x98}},
	}
}

func TestSHTC3OverBus(t *testing.T) {
	ops := shtc3Cycle(sensirion.EncodeWords(0x6666, 0x8000))
	ops = append(ops, shtc3Cycle(sensirion.EncodeWords(0x6666, 0x4000))...)
	bus := &i2ctest.Playback{Ops: ops, DontPanic: true}

	s := NewSHTC3(bus)
	require.NoError(t, s.Init())
	require.NoError(t, s.ReadValues())
	assert.InDelta(t, 25.0, s.Humidity.Temp, 0.01)
	assert.Equal(t, 25.0, s.Humidity.Hum)
	require.NoError(t, bus.Close())

	// the driver drops these errors, the sensor must not
	err := s.ReadValues()
	assert.Equal(t, ReasonBus, ReasonOf(err))
	assert.Equal(t, "SHTC3 err", s.LastError())
	assert.Equal(t, 25.0, s.Humidity.Hum)
}

func TestSHTC3MissingDevice(t *testing.T) {
	s := NewSHTC3(&i2ctest.Playback{DontPanic: true})
	err := s.Init()
	assert.True(t, IsInit(err))
	assert.Equal(t, "SHTC3 init err", s.LastError())
}

func aht20Init() []i2ctest.IO {
	a := env.AHT20Addr
	return []i2ctest.IO{
		{Addr: a, W: []byte{0x71}, R: []byte{0x18}},
		{Addr: a, W: []byte{0xBE, 0x08, 0x00}},
	}
}

func TestAHT20OverBus(t *testing.T) {
	a := env.AHT20Addr
	ops := append(aht20Init(),
		i2ctest.IO{Addr: a, W: []byte{0xAC, 0x33, 0x00}},
		i2ctest.IO{Addr: a, R: []byte{0x1C, 0x80, 0x00, 0x06, 0x00, 0x00, 0x00}},
	)
	bus := &i2ctest.Playback{Ops: ops, DontPanic: true}

	s := NewAHT20(bus, 0)
	require.NoError(t, s.Init())
	require.NoError(t, s.ReadValues())
	assert.Equal(t, 25.0, s.Humidity.Temp)
	assert.Equal(t, 50.0, s.Humidity.Hum)
	require.NoError(t, bus.Close())

	// the trigger write fails first
	err := s.ReadValues()
	assert.Equal(t, ReasonBus, ReasonOf(err))
	assert.False(t, s.Status())
}

func TestAHT20ConfigureFailure(t *testing.T) {
	s := NewAHT20(&i2ctest.Playback{DontPanic: true}, 0)
	err := s.Init()
	require.Error(t, err)
	assert.True(t, IsInit(err))
	assert.Equal(t, "AHT20 init err", s.LastError())
	assert.Equal(t, Faulted, s.State())

	err = s.ReadValues()
	assert.True(t, IsInit(err))
}

func TestAHT20StaysBusy(t *testing.T) {
	a := env.AHT20Addr
	busy := []byte{0x98, 0, 0, 0, 0, 0, 0}
	ops := append(aht20Init(),
		i2ctest.IO{Addr: a, W: []byte{0xAC, 0x33, 0x00}},
		i2ctest.IO{Addr: a, R: busy},
		i2ctest.IO{Addr: a, R: busy},
		i2ctest.IO{Addr: a, R: busy},
	)
	bus := &i2ctest.Playback{Ops: ops, DontPanic: true}

	s := NewAHT20(bus, 0)
	require.NoError(t, s.Init())
	err := s.ReadValues()
	assert.Equal(t, ReasonTimeout, ReasonOf(err))
	assert.Equal(t, "AHT20 err", s.LastError())
	require.NoError(t, bus.Close())
}

func TestBH1750OverBus(t *testing.T) {
	a := env.BH1750Addr
	bus := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: a, W: []byte{0x01}},
			{Addr: a, W: []byte{0x10}},
			{Addr: a, R: []byte{0x01, 0x00}},
		},
		DontPanic: true,
	}
	s := NewBH1750(bus, 0)
	require.NoError(t, s.Init())
	require.NoError(t, s.ReadValues())
	assert.InDelta(t, 213.333, s.Illumination.LightIntensity, 0.001)
	assert.True(t, s.Status())
	require.NoError(t, bus.Close())

	err := s.ReadValues()
	require.Error(t, err)
	assert.True(t, IsRead(err))
	assert.Equal(t, ReasonBus, ReasonOf(err))
	assert.Equal(t, "BH1750 err", s.LastError())
	assert.False(t, s.Status())
	assert.InDelta(t, 213.333, s.Illumination.LightIntensity, 0.001)
}

func TestBH1750MissingDevice(t *testing.T) {
	s := NewBH1750(&i2ctest.Playback{DontPanic: true}, 0)
	err := s.Init()
	assert.True(t, IsInit(err))
	assert.Equal(t, "BH1750: ERR: BH1750 init err", s.String())
}
