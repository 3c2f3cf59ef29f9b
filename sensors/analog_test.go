package sensors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"periph.io/x/conn/v3/analog"
)

type fakePin struct {
	raw []int32
	err error
}

func (p *fakePin) Read() (analog.Sample, error) {
	if p.err != nil {
		return analog.Sample{}, p.err
	}
	r := p.raw[0]
	p.raw = p.raw[1:]
	return analog.Sample{Raw: r}, nil
}

func newFakeAnalog(t *testing.T, window int, pin *fakePin) *Analog {
	s, err := NewAnalog(nil, AnalogConfig{
		Name:       "Soil",
		FullScale:  4.096,
		Window:     window,
		Field:      "moist",
		Capability: CapSoilMoisture,
	})
	require.NoError(t, err)
	s.open = func() (analogPin, error) { return pin, nil }
	require.NoError(t, s.Init())
	return s
}

func TestAnalogMovingAverage(t *testing.T) {
	pin := &fakePin{raw: []int32{1000, 2000, 3000, 4000, 8000}}
	s := newFakeAnalog(t, 3, pin)

	require.NoError(t, s.ReadValues())
	assert.Equal(t, uint16(1000), s.AnalogValue.Raw)

	// fewer samples than the window: mean of what was seen
	require.NoError(t, s.ReadValues())
	assert.Equal(t, uint16(1500), s.AnalogValue.Raw)

	require.NoError(t, s.ReadValues())
	assert.Equal(t, uint16(2000), s.AnalogValue.Raw)

	// wrapped: last three only
	require.NoError(t, s.ReadValues())
	assert.Equal(t, uint16(3000), s.AnalogValue.Raw)
	require.NoError(t, s.ReadValues())
	assert.Equal(t, uint16(5000), s.AnalogValue.Raw)
	assert.InDelta(t, 5000.0/32767*4.096, s.AnalogValue.Value, 1e-9)
}

func TestAnalogFieldsAndFormat(t *testing.T) {
	pin := &fakePin{raw: []int32{16384}}
	s := newFakeAnalog(t, 1, pin)
	require.NoError(t, s.ReadValues())

	r := &fieldRecorder{}
	s.StoreValues(r)
	assert.Equal(t, []string{"moist", "moist_raw"}, r.names)
	assert.Equal(t, 16384.0, r.values["moist_raw"])
	assert.Equal(t, "Soil:  16384  2.048V", s.String())
	assert.Equal(t, CapSoilMoisture, s.Capabilities())
}

func TestAnalogReadFailureKeepsValue(t *testing.T) {
	pin := &fakePin{raw: []int32{1200}}
	s := newFakeAnalog(t, 4, pin)
	require.NoError(t, s.ReadValues())

	pin.err = assert.AnError
	err := s.ReadValues()
	require.Error(t, err)
	assert.True(t, IsRead(err))
	assert.Equal(t, "Soil read err", s.LastError())
	assert.Equal(t, uint16(1200), s.AnalogValue.Raw)
}

func TestAnalogConfigErrors(t *testing.T) {
	_, err := NewAnalog(nil, AnalogConfig{})
	assert.Error(t, err)
	_, err = NewAnalog(nil, AnalogConfig{Field: "x", Channel: 4})
	assert.Error(t, err)
}
