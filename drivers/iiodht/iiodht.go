// Package iiodht reads a DHT11/DHT22 through the Linux dht11 IIO driver
// (dtoverlay=dht11). The kernel does the single wire timing; samples appear
// as sysfs attributes in milli units.
package iiodht

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const (
	tempFile = "in_temp_input"
	humFile  = "in_humidityrelative_input"
)

type Dev struct {
	dir string
}

// New returns a reader for the IIO device directory, for example
// /sys/bus/iio/devices/iio:device0.
func New(dir string) *Dev {
	return &Dev{dir: dir}
}

// Find returns the first IIO device under root named "dht11" (the kernel
// driver serves both DHT11 and DHT22).
func Find(root string) (*Dev, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, errors.Wrap(err, "iiodht: list devices")
	}
	for _, e := range entries {
		dir := filepath.Join(root, e.Name())
		name, err := os.ReadFile(filepath.Join(dir, "name"))
		if err != nil {
			continue
		}
		if strings.HasPrefix(strings.TrimSpace(string(name)), "dht11") {
			return New(dir), nil
		}
	}
	return nil, errors.Errorf("iiodht: no dht11 device under %s", root)
}

func (d *Dev) Dir() string { return d.dir }

// Sense returns temperature in °C and relative humidity in %. The driver
// returns EIO when a transfer fails its checksum, which is common; callers
// retry on the next cycle.
func (d *Dev) Sense() (float64, float64, error) {
	t, err := d.readMilli(tempFile)
	if err != nil {
		return 0, 0, err
	}
	h, err := d.readMilli(humFile)
	if err != nil {
		return 0, 0, err
	}
	return t, h, nil
}

func (d *Dev) readMilli(name string) (float64, error) {
	raw, err := os.ReadFile(filepath.Join(d.dir, name))
	if err != nil {
		return 0, errors.Wrapf(err, "iiodht: read %s", name)
	}
	v, err := strconv.ParseInt(strings.TrimSpace(string(raw)), 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "iiodht: parse %s", name)
	}
	return float64(v) / 1000, nil
}
