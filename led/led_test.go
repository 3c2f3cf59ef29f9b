package led

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
)

type recPin struct {
	*gpiotest.Pin
	levels []gpio.Level
}

func (p *recPin) Out(l gpio.Level) error {
	p.levels = append(p.levels, l)
	return p.Pin.Out(l)
}

func newTestLED() (*LED, *recPin) {
	pin := &recPin{Pin: &gpiotest.Pin{N: "GPIO21"}}
	l := newLED("status", pin)
	l.sleep = func(time.Duration) {}
	pin.levels = nil
	return l, pin
}

func TestFlashFromOff(t *testing.T) {
	l, pin := newTestLED()
	l.Flash()
	assert.Equal(t, []gpio.Level{gpio.High, gpio.Low}, pin.levels)
	assert.False(t, l.IsOn())
}

func TestFlashFromOn(t *testing.T) {
	l, pin := newTestLED()
	l.On()
	l.Flash()
	assert.Equal(t, []gpio.Level{gpio.High, gpio.Low, gpio.High}, pin.levels)
	assert.True(t, l.IsOn())
	l.Off()
	assert.Equal(t, gpio.Low, pin.levels[len(pin.levels)-1])
}

func TestFlicker(t *testing.T) {
	l, pin := newTestLED()
	l.Flicker(2)
	assert.Equal(t, []gpio.Level{gpio.High, gpio.Low, gpio.High, gpio.Low}, pin.levels)

	pin.levels = nil
	l.Flicker(0)
	l.Flicker(101)
	assert.Empty(t, pin.levels)
}

func TestNoPin(t *testing.T) {
	l := NewLED("none", "")
	assert.NotPanics(t, func() {
		l.On()
		l.Flash()
		l.Flicker(3)
		l.Off()
	})
	assert.False(t, l.IsOn())
}
