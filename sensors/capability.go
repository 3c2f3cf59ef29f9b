package sensors

import (
	"strings"

	"github.com/pkg/errors"
)

// Capability is a bit set of the physical quantities a sensor reports.
type Capability uint16

const (
	CapTemperature Capability = 1 << iota
	CapHumidity
	CapPressure
	CapCO2
	CapVOC
	CapSoilMoisture
	CapLightIntensity
	CapDustPPM
)

var capabilityNames = [...]string{
	"temperature",
	"humidity",
	"pressure",
	"co2",
	"voc",
	"soil_moisture",
	"light_intensity",
	"dust_ppm",
}

// Has reports whether every bit of o is set in c.
func (c Capability) Has(o Capability) bool {
	return o != 0 && c&o == o
}

// lowest returns the lowest set bit, or 0 when c is empty.
func (c Capability) lowest() Capability {
	return c & -c
}

func (c Capability) String() string {
	if c == 0 {
		return "none"
	}
	var names []string
	for i, n := range capabilityNames {
		if c&(1<<uint(i)) != 0 {
			names = append(names, n)
		}
	}
	return strings.Join(names, "|")
}

// ParseCapability converts a config name such as "soil_moisture" to its flag.
func ParseCapability(name string) (Capability, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for i, cn := range capabilityNames {
		if n == cn {
			return 1 << uint(i), nil
		}
	}
	return 0, errors.Errorf("unknown capability %q", name)
}

// ParseCapabilities ORs together a list of capability names.
func ParseCapabilities(names []string) (Capability, error) {
	var c Capability
	for _, n := range names {
		f, err := ParseCapability(n)
		if err != nil {
			return 0, err
		}
		c |= f
	}
	return c, nil
}
