package data

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPointFields(t *testing.T) {
	p := NewPoint("environment", "BME280", time.Unix(0, 0))
	p.AddField("temp", 21.5)
	p.AddField("hum", 40)
	p.AddField("temp", 22)

	require.Len(t, p.Fields, 2)
	assert.Equal(t, "temp", p.Fields[0].Name)
	v, ok := p.Field("temp")
	assert.True(t, ok)
	assert.Equal(t, 22.0, v)
	_, ok = p.Field("co2")
	assert.False(t, ok)
	assert.Equal(t, map[string]interface{}{"temp": 22.0, "hum": 40.0}, p.FieldMap())
	assert.Equal(t, "BME280", p.Tags["sensor"])
}

func point(sensor string, ok bool, fields map[string]float64) *Point {
	p := NewPoint("environment", sensor, time.Now())
	p.Status = ok
	for k, v := range fields {
		p.AddField(k, v)
	}
	return p
}

func TestReadingsHistory(t *testing.T) {
	r := NewReadings(3)

	r.Record(point("SHT31", true, map[string]float64{"temp": 20}))
	r.Record(point("BME280", true, map[string]float64{"temp": 10, "press": 1000}))
	r.Record(point("SHT31", true, map[string]float64{"temp": 22}))
	// stale values of a faulted sensor stay out of the averages
	r.Record(point("SHT31", false, map[string]float64{"temp": 22}))

	latest := r.Latest()
	require.Len(t, latest, 2)
	assert.Equal(t, "SHT31", latest[0].Sensor)
	assert.False(t, latest[0].Status)

	avg, ok := r.Average("temp", 10)
	assert.True(t, ok)
	assert.Equal(t, 21.0, avg)

	avg, ok = r.Average("press", 10)
	assert.True(t, ok)
	assert.Equal(t, 1000.0, avg)

	_, ok = r.Average("co2", 10)
	assert.False(t, ok)

	assert.Equal(t, 2, r.GetBuffer("SHT31", "temp").Count())
	assert.Nil(t, r.GetBuffer("SHT31", "hum"))
}
