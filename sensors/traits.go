package sensors

import (
	"fmt"
	"math"
	"strings"
)

// Telemetry field names. Field presence is decided by the traits a sensor is
// composed from.
const (
	FieldTemp             = "temp"
	FieldHum              = "hum"
	FieldPress            = "press"
	FieldPressRaw         = "press_raw"
	FieldCO2              = "co2"
	FieldVOC              = "voc"
	FieldGasResistance    = "gas_resistance"
	FieldNOx              = "nox"
	FieldNOxGasResistance = "nox_gas_resistance"
	FieldLight            = "light"
	FieldPM1p0            = "pm1.0"
	FieldPM2p5            = "pm2.5"
	FieldPM4p0            = "pm4.0"
	FieldPM10p0           = "pm10.0"

	rawSuffix = "_raw"
)

// FieldSink receives one named numeric value per measurement.
type FieldSink interface {
	AddField(name string, value float64)
}

// Trait owns the fields, formatting and capability of one physical quantity.
// Traits are only used as parts of a composite sensor.
type Trait interface {
	Capabilities() Capability
	Fields() []string
	StoreValues(s FieldSink)
	FormatValues() string
}

// Temperature in °C.
type Temperature struct {
	Temp float64
}

func (t *Temperature) Capabilities() Capability { return CapTemperature }
func (t *Temperature) Fields() []string         { return []string{FieldTemp} }

func (t *Temperature) StoreValues(s FieldSink) {
	s.AddField(FieldTemp, t.Temp)
}

func (t *Temperature) FormatValues() string {
	return fmt.Sprintf("%3.1f°C", t.Temp)
}

// Humidity is relative humidity in %. It always carries the temperature it
// was measured with.
type Humidity struct {
	Temperature
	Hum float64
}

func (h *Humidity) Capabilities() Capability {
	return h.Temperature.Capabilities() | CapHumidity
}

func (h *Humidity) Fields() []string {
	return append(h.Temperature.Fields(), FieldHum)
}

func (h *Humidity) StoreValues(s FieldSink) {
	h.Temperature.StoreValues(s)
	s.AddField(FieldHum, h.Hum)
}

func (h *Humidity) FormatValues() string {
	return h.Temperature.FormatValues() + fmt.Sprintf("  %2.0f%%", h.Hum)
}

func (h *Humidity) set(tempC, humRH float64) {
	h.Temp = tempC
	h.Hum = humRH
}

// Pressure in hPa, both as measured and corrected to sea level for Altitude
// metres.
type Pressure struct {
	PressRaw      float64
	PressSeaLevel float64
	Altitude      float64
}

func (p *Pressure) Capabilities() Capability { return CapPressure }
func (p *Pressure) Fields() []string         { return []string{FieldPress, FieldPressRaw} }

func (p *Pressure) StoreValues(s FieldSink) {
	s.AddField(FieldPress, p.PressSeaLevel)
	s.AddField(FieldPressRaw, p.PressRaw)
}

func (p *Pressure) FormatValues() string {
	return fmt.Sprintf("  %4.0fhPa", p.PressSeaLevel)
}

// set stores a reading given in hPa.
func (p *Pressure) set(hPa float64) {
	p.PressRaw = hPa
	p.PressSeaLevel = SeaLevelPressure(hPa, p.Altitude)
}

// SeaLevelPressure reduces a station pressure to sea level using the
// international barometric formula. The unit of the result matches p.
func SeaLevelPressure(p, altitude float64) float64 {
	return p / math.Pow(1.0-altitude/44330.0, 5.255)
}

// CO2 concentration in ppm.
type CO2 struct {
	CO2 uint16
}

func (c *CO2) Capabilities() Capability { return CapCO2 }
func (c *CO2) Fields() []string         { return []string{FieldCO2} }

func (c *CO2) StoreValues(s FieldSink) {
	s.AddField(FieldCO2, float64(c.CO2))
}

func (c *CO2) FormatValues() string {
	return fmt.Sprintf(" %5dppm", c.CO2)
}

// VOC holds the raw gas signal and/or the VOC index, depending on what the
// device provides.
type VOC struct {
	VocRaw   uint16
	VocIndex float64

	raw   bool
	index bool
}

func newVOC(raw, index bool) VOC {
	return VOC{raw: raw, index: index}
}

func (v *VOC) Capabilities() Capability { return CapVOC }

func (v *VOC) Fields() []string {
	var f []string
	if v.index {
		f = append(f, FieldVOC)
	}
	if v.raw {
		f = append(f, FieldGasResistance)
	}
	return f
}

func (v *VOC) StoreValues(s FieldSink) {
	if v.index {
		s.AddField(FieldVOC, v.VocIndex)
	}
	if v.raw {
		s.AddField(FieldGasResistance, float64(v.VocRaw))
	}
}

func (v *VOC) FormatValues() string {
	var b strings.Builder
	if v.raw {
		fmt.Fprintf(&b, " %6dr", v.VocRaw)
	}
	if v.index {
		fmt.Fprintf(&b, " %3.0fv", v.VocIndex)
	}
	return b.String()
}

// NOx is the nitrogen oxide channel of the SGP41: the raw signal and the
// NOx index computed from it. There is no separate capability bit for it, it
// counts as a gas (VOC) measurement.
type NOx struct {
	NoxRaw   uint16
	NoxIndex float64
}

func (n *NOx) Capabilities() Capability { return CapVOC }

func (n *NOx) Fields() []string {
	return []string{FieldNOx, FieldNOxGasResistance}
}

func (n *NOx) StoreValues(s FieldSink) {
	s.AddField(FieldNOx, n.NoxIndex)
	s.AddField(FieldNOxGasResistance, float64(n.NoxRaw))
}

func (n *NOx) FormatValues() string {
	return fmt.Sprintf(" %6dn %3.0fx", n.NoxRaw, n.NoxIndex)
}

// Illumination in lux.
type Illumination struct {
	LightIntensity float64
}

func (i *Illumination) Capabilities() Capability { return CapLightIntensity }
func (i *Illumination) Fields() []string         { return []string{FieldLight} }

func (i *Illumination) StoreValues(s FieldSink) {
	s.AddField(FieldLight, i.LightIntensity)
}

func (i *Illumination) FormatValues() string {
	return fmt.Sprintf(" %3.1flux", i.LightIntensity)
}

// Dust is particulate mass concentration in µg/m³.
type Dust struct {
	PM1p0  float64
	PM2p5  float64
	PM4p0  float64
	PM10p0 float64
}

func (d *Dust) Capabilities() Capability { return CapDustPPM }

func (d *Dust) Fields() []string {
	return []string{FieldPM1p0, FieldPM2p5, FieldPM4p0, FieldPM10p0}
}

func (d *Dust) StoreValues(s FieldSink) {
	s.AddField(FieldPM1p0, d.PM1p0)
	s.AddField(FieldPM2p5, d.PM2p5)
	s.AddField(FieldPM4p0, d.PM4p0)
	s.AddField(FieldPM10p0, d.PM10p0)
}

func (d *Dust) FormatValues() string {
	return fmt.Sprintf(" %.1f/%.1f/%.1f/%.1fµg/m³", d.PM1p0, d.PM2p5, d.PM4p0, d.PM10p0)
}

// AnalogValue is a raw ADC count plus its scaled value, published under a
// configured field name.
type AnalogValue struct {
	Raw   uint16
	Value float64

	field      string
	capability Capability
}

func (a *AnalogValue) Capabilities() Capability { return a.capability }

func (a *AnalogValue) Fields() []string {
	return []string{a.field, a.field + rawSuffix}
}

func (a *AnalogValue) StoreValues(s FieldSink) {
	s.AddField(a.field, a.Value)
	s.AddField(a.field+rawSuffix, float64(a.Raw))
}

func (a *AnalogValue) FormatValues() string {
	return fmt.Sprintf(" %4d  %1.3fV", a.Raw, a.Value)
}
