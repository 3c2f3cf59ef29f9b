// Package sensirion implements the common I²C framing used by the Sensirion
// SCD30, SGP4x and SEN5x: 16 bit commands, optional 16 bit arguments and 16
// bit data words each followed by a CRC-8.
package sensirion

import (
	"time"

	"github.com/pkg/errors"

	"periph.io/x/conn/v3/i2c"
)

// ErrCRC is returned when a received word fails its checksum.
var ErrCRC = errors.New("sensirion: crc mismatch")

// ErrNotReady is returned when the device has no new measurement.
var ErrNotReady = errors.New("sensirion: data not ready")

// CRC8 computes the Sensirion checksum (polynomial 0x31, init 0xFF).
func CRC8(data []byte) byte {
	crc := byte(0xFF)
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

// Dev is one Sensirion device on a bus.
type Dev struct {
	dev i2c.Dev
	// Sleep waits for command execution. Tests replace it.
	Sleep func(time.Duration)
}

func New(bus i2c.Bus, addr uint16) *Dev {
	return &Dev{dev: i2c.Dev{Bus: bus, Addr: addr}, Sleep: time.Sleep}
}

func (d *Dev) Addr() uint16 { return d.dev.Addr }

// Command sends a 16 bit command with its arguments.
func (d *Dev) Command(cmd uint16, args ...uint16) error {
	w := make([]byte, 0, 2+3*len(args))
	w = append(w, byte(cmd>>8), byte(cmd))
	for _, a := range args {
		word := []byte{byte(a >> 8), byte(a)}
		w = append(w, word[0], word[1], CRC8(word))
	}
	if err := d.dev.Tx(w, nil); err != nil {
		return errors.Wrapf(err, "sensirion: command 0x%04x", cmd)
	}
	return nil
}

// Read fetches n data words and checks their CRC.
func (d *Dev) Read(n int) ([]uint16, error) {
	r := make([]byte, 3*n)
	if err := d.dev.Tx(nil, r); err != nil {
		return nil, errors.Wrap(err, "sensirion: read")
	}
	return decodeWords(r)
}

// Query sends cmd, waits delay and reads n words.
func (d *Dev) Query(cmd uint16, delay time.Duration, n int, args ...uint16) ([]uint16, error) {
	if err := d.Command(cmd, args...); err != nil {
		return nil, err
	}
	d.wait(delay)
	return d.Read(n)
}

func (d *Dev) wait(delay time.Duration) {
	if delay > 0 && d.Sleep != nil {
		d.Sleep(delay)
	}
}

func decodeWords(r []byte) ([]uint16, error) {
	words := make([]uint16, 0, len(r)/3)
	for i := 0; i+2 < len(r); i += 3 {
		if CRC8(r[i:i+2]) != r[i+2] {
			return nil, errors.Wrapf(ErrCRC, "word %d", i/3)
		}
		words = append(words, uint16(r[i])<<8|uint16(r[i+1]))
	}
	return words, nil
}

// EncodeWords frames words with their CRC, the inverse of Read. Used to build
// test fixtures.
func EncodeWords(words ...uint16) []byte {
	b := make([]byte, 0, 3*len(words))
	for _, w := range words {
		hi, lo := byte(w>>8), byte(w)
		b = append(b, hi, lo, CRC8([]byte{hi, lo}))
	}
	return b
}

// compensationTicks encodes ambient conditions as SGP4x arguments.
func compensationTicks(tempC, humRH float64) (uint16, uint16) {
	humRH = clamp(humRH, 0, 100)
	tempC = clamp(tempC, -45, 130)
	return uint16(humRH * 65535 / 100), uint16((tempC + 45) * 65535 / 175)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
