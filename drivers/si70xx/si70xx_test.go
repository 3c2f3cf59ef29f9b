package si70xx

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"periph.io/x/conn/v3/i2c/i2ctest"
)

func newTestDev(ops ...i2ctest.IO) (*Dev, *i2ctest.Playback) {
	bus := &i2ctest.Playback{Ops: ops, DontPanic: true}
	d := New(bus, 0x40)
	d.Sleep = func(time.Duration) {}
	return d, bus
}

func TestCRC8(t *testing.T) {
	assert.Equal(t, byte(0x7C), CRC8([]byte{0x68, 0x3A}))
}

func TestTemperature(t *testing.T) {
	d, bus := newTestDev(
		i2ctest.IO{Addr: 0x40, W: []byte{cmdMeasureTemp}},
		i2ctest.IO{Addr: 0x40, R: []byte{0x68, 0x3A, 0x7C}},
	)
	temp, err := d.Temperature()
	require.NoError(t, err)
	assert.InDelta(t, 24.69, temp, 0.01)
	require.NoError(t, bus.Close())
}

func TestHumidityBadCRC(t *testing.T) {
	d, _ := newTestDev(
		i2ctest.IO{Addr: 0x40, W: []byte{cmdMeasureHumidity}},
		i2ctest.IO{Addr: 0x40, R: []byte{0x68, 0x3A, 0x00}},
	)
	_, err := d.Humidity()
	assert.Equal(t, ErrCRC, err)
}

func TestModel(t *testing.T) {
	d, _ := newTestDev(
		i2ctest.IO{Addr: 0x40, W: cmdReadID2, R: []byte{0x15, 0xFF, 0, 0, 0, 0}},
	)
	m, err := d.Model()
	require.NoError(t, err)
	assert.Equal(t, ModelSi7021, m)
	assert.Equal(t, "Si7021", m.String())
	assert.Equal(t, "Unknown", Model(0x42).String())
}
