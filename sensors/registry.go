package sensors

import (
	"sort"
	"strings"
	"time"

	"github.com/gr-butler/airsense/env"
	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/onewire"
)

// Hardware is what the builders need from the host.
type Hardware struct {
	I2C     i2c.Bus
	OneWire onewire.Bus
	IIORoot string
	Clock   clockwork.Clock
	// Interval is the poll interval, used by sensors that filter over time.
	Interval time.Duration
}

type builder func(c env.SensorConfig, hw Hardware) (Sensor, error)

func i2cOnly(f func(bus i2c.Bus, c env.SensorConfig, hw Hardware) Sensor) builder {
	return func(c env.SensorConfig, hw Hardware) (Sensor, error) {
		if hw.I2C == nil {
			return nil, errors.Errorf("%s: no I2C bus", c.Type)
		}
		return f(hw.I2C, c, hw), nil
	}
}

var builders = map[string]builder{
	"dht22": func(c env.SensorConfig, hw Hardware) (Sensor, error) {
		return NewDHT22(hw.IIORoot, c.Device), nil
	},
	"ds18b20": func(c env.SensorConfig, hw Hardware) (Sensor, error) {
		if hw.OneWire == nil {
			return nil, errors.New("ds18b20: no 1-Wire bus")
		}
		return NewDS18B20(hw.OneWire), nil
	},
	"bme280": i2cOnly(func(bus i2c.Bus, c env.SensorConfig, _ Hardware) Sensor {
		return NewBME280(bus, c.Address, altitude(c))
	}),
	"bmp280": i2cOnly(func(bus i2c.Bus, c env.SensorConfig, _ Hardware) Sensor {
		return NewBMP280(bus, c.Address, altitude(c))
	}),
	"sht31": i2cOnly(func(bus i2c.Bus, c env.SensorConfig, _ Hardware) Sensor {
		return NewSHT31(bus, c.Address)
	}),
	"sht4x": i2cOnly(func(bus i2c.Bus, c env.SensorConfig, _ Hardware) Sensor {
		return NewSHT4X(bus, c.Address)
	}),
	"shtc3": i2cOnly(func(bus i2c.Bus, _ env.SensorConfig, _ Hardware) Sensor {
		return NewSHTC3(bus)
	}),
	"mcp9808": i2cOnly(func(bus i2c.Bus, c env.SensorConfig, _ Hardware) Sensor {
		return NewMCP9808(bus, c.Address)
	}),
	"aht20": i2cOnly(func(bus i2c.Bus, c env.SensorConfig, _ Hardware) Sensor {
		return NewAHT20(bus, c.Address)
	}),
	"si702x": i2cOnly(func(bus i2c.Bus, c env.SensorConfig, _ Hardware) Sensor {
		return NewSI702x(bus, c.Address)
	}),
	"htu21d": i2cOnly(func(bus i2c.Bus, c env.SensorConfig, _ Hardware) Sensor {
		return NewHTU21D(bus, c.Address)
	}),
	"bh1750": i2cOnly(func(bus i2c.Bus, c env.SensorConfig, _ Hardware) Sensor {
		return NewBH1750(bus, c.Address)
	}),
	"scd30": i2cOnly(func(bus i2c.Bus, c env.SensorConfig, _ Hardware) Sensor {
		return NewSCD30(bus, c.Address)
	}),
	"scd41": i2cOnly(func(bus i2c.Bus, c env.SensorConfig, _ Hardware) Sensor {
		return NewSCD41(bus, c.Address)
	}),
	"ccs811": i2cOnly(func(bus i2c.Bus, c env.SensorConfig, _ Hardware) Sensor {
		return NewCCS811(bus, c.Address)
	}),
	"sgp40": i2cOnly(func(bus i2c.Bus, c env.SensorConfig, hw Hardware) Sensor {
		return NewSGP40(bus, c.Address, hw.Interval)
	}),
	"sgp41": i2cOnly(func(bus i2c.Bus, c env.SensorConfig, hw Hardware) Sensor {
		return NewSGP41(bus, c.Address, hw.Clock, hw.Interval)
	}),
	"sen54": i2cOnly(func(bus i2c.Bus, c env.SensorConfig, _ Hardware) Sensor {
		return NewSEN54(bus, c.Address)
	}),
	"analog": func(c env.SensorConfig, hw Hardware) (Sensor, error) {
		if hw.I2C == nil {
			return nil, errors.New("analog: no I2C bus")
		}
		caps, err := ParseCapabilities(c.Capabilities)
		if err != nil {
			return nil, err
		}
		a, err := NewAnalog(hw.I2C, AnalogConfig{
			Name:       c.Name,
			Address:    c.Address,
			Channel:    c.Channel,
			FullScale:  c.FullScale,
			Window:     c.Window,
			Field:      c.Field,
			Capability: caps,
		})
		if err != nil {
			return nil, err
		}
		return a, nil
	},
}

func altitude(c env.SensorConfig) float64 {
	if c.Altitude == nil {
		return 0
	}
	return *c.Altitude
}

// Types lists the sensor type names Build accepts.
func Types() []string {
	t := make([]string, 0, len(builders))
	for k := range builders {
		t = append(t, k)
	}
	sort.Strings(t)
	return t
}

// Build constructs the sensor described by c. It does not touch the device;
// call Init for that.
func Build(c env.SensorConfig, hw Hardware) (Sensor, error) {
	b, ok := builders[c.Type]
	if !ok {
		return nil, errors.Errorf("unknown sensor type %q, want one of %s", c.Type, strings.Join(Types(), ", "))
	}
	s, err := b(c, hw)
	if err != nil {
		return nil, err
	}
	if r, ok := s.(renamer); ok && c.Name != "" {
		r.rename(c.Name)
	}
	return s, nil
}

// BuildAll builds every configured sensor, stopping at the first error.
func BuildAll(cs []env.SensorConfig, hw Hardware) ([]Sensor, error) {
	all := make([]Sensor, 0, len(cs))
	for i, c := range cs {
		s, err := Build(c, hw)
		if err != nil {
			return nil, errors.Wrapf(err, "sensor %d", i)
		}
		all = append(all, s)
	}
	return all, nil
}

type renamer interface {
	rename(name string)
}
