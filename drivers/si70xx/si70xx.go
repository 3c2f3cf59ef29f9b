// Package si70xx drives the Silicon Labs Si7013/20/21 humidity sensors and
// the register compatible HTU21D.
package si70xx

import (
	"time"

	"github.com/pkg/errors"

	"periph.io/x/conn/v3/i2c"
)

const (
	cmdMeasureHumidity = 0xF5 // no hold master
	cmdMeasureTemp     = 0xF3 // no hold master
	cmdReset           = 0xFE
)

var cmdReadID2 = []byte{0xFC, 0xC9}

// ErrCRC is returned when a measurement fails its checksum.
var ErrCRC = errors.New("si70xx: crc mismatch")

// Model is the device identification byte (SNB_3).
type Model byte

const (
	ModelEngineeringSample Model = 0x00
	ModelSi7013            Model = 0x0D
	ModelSi7020            Model = 0x14
	ModelSi7021            Model = 0x15
	ModelUnknown           Model = 0xFE
)

func (m Model) String() string {
	switch m {
	case ModelEngineeringSample, 0xFF:
		return "SI engineering sample"
	case ModelSi7013:
		return "Si7013"
	case ModelSi7020:
		return "Si7020"
	case ModelSi7021:
		return "Si7021"
	default:
		return "Unknown"
	}
}

type Dev struct {
	dev   i2c.Dev
	Sleep func(time.Duration)
}

func New(bus i2c.Bus, addr uint16) *Dev {
	return &Dev{dev: i2c.Dev{Bus: bus, Addr: addr}, Sleep: time.Sleep}
}

// Reset performs a soft reset.
func (d *Dev) Reset() error {
	if err := d.dev.Tx([]byte{cmdReset}, nil); err != nil {
		return errors.Wrap(err, "si70xx: reset")
	}
	d.wait(15 * time.Millisecond)
	return nil
}

// Model reads the electronic ID. HTU21D parts do not implement it.
func (d *Dev) Model() (Model, error) {
	r := make([]byte, 6)
	if err := d.dev.Tx(cmdReadID2, r); err != nil {
		return ModelUnknown, errors.Wrap(err, "si70xx: read id")
	}
	return Model(r[0]), nil
}

// Temperature returns °C.
func (d *Dev) Temperature() (float64, error) {
	raw, err := d.measure(cmdMeasureTemp, 11*time.Millisecond)
	if err != nil {
		return 0, err
	}
	return 175.72*float64(raw)/65536 - 46.85, nil
}

// Humidity returns relative humidity in %, clamped to 0..100.
func (d *Dev) Humidity() (float64, error) {
	raw, err := d.measure(cmdMeasureHumidity, 23*time.Millisecond)
	if err != nil {
		return 0, err
	}
	rh := 125*float64(raw)/65536 - 6
	if rh < 0 {
		rh = 0
	} else if rh > 100 {
		rh = 100
	}
	return rh, nil
}

func (d *Dev) measure(cmd byte, conversion time.Duration) (uint16, error) {
	if err := d.dev.Tx([]byte{cmd}, nil); err != nil {
		return 0, errors.Wrapf(err, "si70xx: command 0x%02x", cmd)
	}
	d.wait(conversion)
	r := make([]byte, 3)
	if err := d.dev.Tx(nil, r); err != nil {
		return 0, errors.Wrap(err, "si70xx: read")
	}
	if CRC8(r[:2]) != r[2] {
		return 0, ErrCRC
	}
	// low two bits are status
	return (uint16(r[0])<<8 | uint16(r[1])) &^ 0x0003, nil
}

func (d *Dev) wait(t time.Duration) {
	if d.Sleep != nil {
		d.Sleep(t)
	}
}

// CRC8 is the measurement checksum (polynomial 0x31, init 0x00).
func CRC8(data []byte) byte {
	var crc byte
	for _, b := range data {
		crc ^= b
		for i := 0; i < 8; i++ {
			if crc&0x80 != 0 {
				crc = crc<<1 ^ 0x31
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
