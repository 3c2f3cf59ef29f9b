package led

import (
	"sync"
	"time"

	"github.com/gr-butler/airsense/env"
	logger "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
)

// LED drives an indicator on a GPIO pin. A LED without a pin does nothing,
// so a station without indicators needs no special casing.
type LED struct {
	Name    string
	lock    sync.Mutex
	on      bool
	gpioPin gpio.PinOut
	flash   time.Duration
	sleep   func(time.Duration)
}

// NewLED looks the pin up by name. An empty name or unknown pin gives a
// LED that does nothing.
func NewLED(name string, GPIOPin string) *LED {
	if GPIOPin == "" {
		return newLED(name, nil)
	}
	logger.Infof("Creating new LED on pin [%v] called [%v]", GPIOPin, name)
	p := gpioreg.ByName(GPIOPin)
	if p == nil {
		logger.Errorf("Failed to find %v pin", GPIOPin)
		return newLED(name, nil)
	}
	return newLED(name, p)
}

func newLED(name string, pin gpio.PinOut) *LED {
	l := &LED{
		Name:  name,
		flash: env.LEDFlashDuration,
		sleep: time.Sleep,
	}
	if pin != nil {
		l.gpioPin = pin
		_ = l.gpioPin.Out(gpio.Low)
	}
	return l
}

func (l *LED) On() {
	l.lock.Lock()
	defer l.lock.Unlock()
	l.on = true
	if l.gpioPin != nil {
		_ = l.gpioPin.Out(gpio.High)
	}
}

func (l *LED) Off() {
	l.lock.Lock()
	defer l.lock.Unlock()
	l.on = false
	if l.gpioPin != nil {
		_ = l.gpioPin.Out(gpio.Low)
	}
}

// Flash inverts the LED briefly. A flash already in progress swallows the
// request.
func (l *LED) Flash() {
	if l.gpioPin == nil {
		return
	}
	if !l.lock.TryLock() {
		logger.Debugf("LED %v busy", l.Name)
		return
	}
	defer l.lock.Unlock()
	if !l.on {
		_ = l.gpioPin.Out(gpio.High)
		l.sleep(l.flash)
		_ = l.gpioPin.Out(gpio.Low)
	} else {
		_ = l.gpioPin.Out(gpio.Low)
		l.sleep(l.flash)
		_ = l.gpioPin.Out(gpio.High)
	}
}

// Flicker gives pulses short flashes.
func (l *LED) Flicker(pulses int) {
	if l.gpioPin == nil {
		return
	}
	if pulses < 1 || pulses > 100 {
		// reject daft or excessive requests
		return
	}
	l.lock.Lock()
	defer l.lock.Unlock()
	for i := 0; i < pulses; i++ {
		_ = l.gpioPin.Out(gpio.High)
		l.sleep(l.flash)
		_ = l.gpioPin.Out(gpio.Low)
		l.sleep(l.flash)
	}
	if l.on {
		_ = l.gpioPin.Out(gpio.High)
	}
}

func (l *LED) IsOn() bool {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.on
}
