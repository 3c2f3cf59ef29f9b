package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gr-butler/airsense/data"
	"github.com/gr-butler/airsense/env"
	"github.com/gr-butler/airsense/led"
	"github.com/gr-butler/airsense/sensors"
	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSensor struct {
	name      string
	caps      sensors.Capability
	initErrs  []error
	readErrs  []error
	temp, hum float64
	initCalls int
	readCalls int
	state     sensors.State
	err       string
}

func (f *fakeSensor) Name() string                     { return f.name }
func (f *fakeSensor) Capabilities() sensors.Capability { return f.caps }
func (f *fakeSensor) Fields() []string                 { return []string{sensors.FieldTemp, sensors.FieldHum} }
func (f *fakeSensor) Status() bool                     { return f.state == sensors.Ready }
func (f *fakeSensor) LastError() string                { return f.err }
func (f *fakeSensor) State() sensors.State             { return f.state }

func (f *fakeSensor) next(errs *[]error) error {
	if len(*errs) == 0 {
		return nil
	}
	err := (*errs)[0]
	*errs = (*errs)[1:]
	return err
}

func (f *fakeSensor) Init() error {
	f.initCalls++
	if err := f.next(&f.initErrs); err != nil {
		f.state, f.err = sensors.Faulted, err.Error()
		return err
	}
	f.state, f.err = sensors.Ready, ""
	return nil
}

func (f *fakeSensor) ReadValues() error {
	f.readCalls++
	if err := f.next(&f.readErrs); err != nil {
		f.state, f.err = sensors.Faulted, err.Error()
		return err
	}
	f.state, f.err = sensors.Ready, ""
	return nil
}

func (f *fakeSensor) StoreValues(s sensors.FieldSink) {
	s.AddField(sensors.FieldTemp, f.temp)
	s.AddField(sensors.FieldHum, f.hum)
}

func (f *fakeSensor) FormatValues() string {
	return fmt.Sprintf("%.1f %.0f", f.temp, f.hum)
}

func (f *fakeSensor) String() string {
	if !f.Status() {
		return f.name + ": ERR: " + f.err
	}
	return f.name + ": " + f.FormatValues()
}

type compSensor struct {
	*fakeSensor
	tempC, humRH float64
	calls        int
}

func (c *compSensor) SetCompensation(tempC, humRH float64) {
	c.tempC, c.humRH = tempC, humRH
	c.calls++
}

type recSink struct {
	writes [][]*data.Point
	done   chan struct{}
}

func (r *recSink) Name() string { return "rec" }
func (r *recSink) Close() error { return nil }

func (r *recSink) Write(_ context.Context, points []*data.Point) error {
	r.writes = append(r.writes, points)
	if r.done != nil {
		r.done <- struct{}{}
	}
	return errors.New("ignored")
}

func testStation(all ...sensors.Sensor) (*station, *recSink) {
	rec := &recSink{}
	w := &station{
		cfg: env.StationConfig{
			Name:           "test",
			Interval:       time.Second,
			RetryInitEvery: 2,
		},
		sensors:  all,
		readings: data.NewReadings(10),
		sink:     rec,
		fault:    led.NewLED("status", ""),
		beat:     led.NewLED("heartbeat", ""),
		clock:    clockwork.NewFakeClockAt(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)),
	}
	w.initSensors()
	return w, rec
}

func TestPollSkipsFaultedSensors(t *testing.T) {
	good := &fakeSensor{name: "SHT31", caps: sensors.CapTemperature | sensors.CapHumidity, temp: 20, hum: 50}
	bad := &fakeSensor{name: "SCD41", caps: sensors.CapCO2, readErrs: []error{errors.New("SCD41 read err")}}
	w, rec := testStation(good, bad)

	points := w.poll(context.Background(), w.clock.Now())
	require.Len(t, points, 2)

	assert.True(t, points[0].Status)
	v, ok := points[0].Field(sensors.FieldTemp)
	assert.True(t, ok)
	assert.Equal(t, 20.0, v)
	assert.Equal(t, "test", points[0].Tags["station"])

	assert.False(t, points[1].Status)
	assert.Equal(t, "SCD41 read err", points[1].Error)
	assert.Empty(t, points[1].Fields)

	require.Len(t, rec.writes, 1, "sink errors do not stop the loop")

	avg, ok := w.readings.Average(sensors.FieldTemp, 5)
	assert.True(t, ok)
	assert.Equal(t, 20.0, avg)

	// the faulted sensor is read again next cycle
	points = w.poll(context.Background(), w.clock.Now())
	assert.True(t, points[1].Status)
	assert.Equal(t, 2, bad.readCalls)
}

func TestPollRetriesInit(t *testing.T) {
	s := &fakeSensor{name: "BME280", caps: sensors.CapTemperature, initErrs: []error{errors.New("BME280 init error")}}
	w, _ := testStation(s)
	require.Equal(t, 1, s.initCalls)

	// cycle 1 is not a retry cycle
	points := w.poll(context.Background(), w.clock.Now())
	assert.False(t, points[0].Status)
	assert.Equal(t, "BME280 init error", points[0].Error)
	assert.Equal(t, 1, s.initCalls)
	assert.Equal(t, 0, s.readCalls)

	points = w.poll(context.Background(), w.clock.Now())
	assert.Equal(t, 2, s.initCalls)
	assert.Equal(t, 1, s.readCalls)
	assert.True(t, points[0].Status)
}

func TestPollCompensation(t *testing.T) {
	hum := &fakeSensor{name: "SHT31", caps: sensors.CapTemperature | sensors.CapHumidity, temp: 18, hum: 65}
	voc := &compSensor{fakeSensor: &fakeSensor{name: "SGP40", caps: sensors.CapVOC}}
	w, _ := testStation(voc, hum)

	w.poll(context.Background(), w.clock.Now())
	assert.Equal(t, 0, voc.calls, "nothing to compensate with yet")

	w.poll(context.Background(), w.clock.Now())
	assert.Equal(t, 1, voc.calls)
	assert.Equal(t, 18.0, voc.tempC)
	assert.Equal(t, 65.0, voc.humRH)

	// a faulted humidity sensor leaves the last good values in place
	hum.readErrs = []error{errors.New("SHT31 read err")}
	w.poll(context.Background(), w.clock.Now())
	w.poll(context.Background(), w.clock.Now())
	assert.Equal(t, 3, voc.calls)
	assert.Equal(t, 18.0, voc.tempC)
}

func TestPollTestModeSkipsSinks(t *testing.T) {
	w, rec := testStation(&fakeSensor{name: "MCP9808", caps: sensors.CapTemperature})
	w.testMode = true
	w.poll(context.Background(), w.clock.Now())
	assert.Empty(t, rec.writes)
}

func TestStartMonitorTicks(t *testing.T) {
	w, rec := testStation(&fakeSensor{name: "MCP9808", caps: sensors.CapTemperature, temp: 5})
	rec.done = make(chan struct{}, 1)
	clock := clockwork.NewFakeClock()
	w.clock = clock

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.StartMonitor(ctx)

	clock.BlockUntil(1)
	clock.Advance(w.cfg.Interval)
	select {
	case <-rec.done:
	case <-time.After(2 * time.Second):
		t.Fatal("no poll after one interval")
	}
	require.Len(t, rec.writes, 1)
}

func TestHandler(t *testing.T) {
	good := &fakeSensor{name: "SHT31", caps: sensors.CapTemperature | sensors.CapHumidity, temp: 20, hum: 50}
	bad := &fakeSensor{name: "BH1750", caps: sensors.CapLightIntensity, initErrs: []error{errors.New("BH1750 init err")}}
	w, _ := testStation(good, bad)
	w.poll(context.Background(), w.clock.Now())

	rr := httptest.NewRecorder()
	w.handler(rr, httptest.NewRequest("GET", "/", nil))
	assert.Equal(t, 200, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var body struct {
		Station string         `json:"station"`
		Sensors []sensorStatus `json:"sensors"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "test", body.Station)
	require.Len(t, body.Sensors, 2)
	assert.Equal(t, "ready", body.Sensors[0].State)
	assert.Equal(t, 50.0, body.Sensors[0].Fields["hum"])
	assert.Equal(t, "faulted", body.Sensors[1].State)
	assert.Equal(t, "BH1750 init err", body.Sensors[1].Error)
	assert.Equal(t, "BH1750: ERR: BH1750 init err", body.Sensors[1].Text)
}

func TestReportGating(t *testing.T) {
	w, _ := testStation()
	assert.False(t, w.report(context.Background(), w.clock.Now()), "no WOW configured")
}

func TestReportSamples(t *testing.T) {
	assert.Equal(t, 90, reportSamples(10*time.Second))
	assert.Equal(t, 1, reportSamples(20*time.Minute))
}

func TestFaultLEDLatches(t *testing.T) {
	s := &fakeSensor{name: "SHT31", caps: sensors.CapTemperature, readErrs: []error{errors.New("SHT31 read err")}}
	w, _ := testStation(s)
	assert.False(t, w.fault.IsOn())

	w.poll(context.Background(), w.clock.Now())
	assert.True(t, w.fault.IsOn(), "lit while a sensor is faulted")

	w.poll(context.Background(), w.clock.Now())
	assert.False(t, w.fault.IsOn(), "cleared once every sensor reads")
}

func TestInitSensorsCountsFailures(t *testing.T) {
	good := &fakeSensor{name: "SHT31"}
	bad := &fakeSensor{name: "BH1750", initErrs: []error{errors.New("BH1750 init err")}}
	w, _ := testStation()
	w.sensors = []sensors.Sensor{good, bad, &fakeSensor{name: "SCD41", initErrs: []error{errors.New("SCD41 init err")}}}
	assert.Equal(t, 2, w.initSensors())
	assert.Equal(t, []bool{false, true, true}, w.needInit)
}

type modelSensor struct {
	*fakeSensor
}

func (m modelSensor) Model() string { return "Si7021" }

func TestHandlerReportsModel(t *testing.T) {
	si := modelSensor{&fakeSensor{name: "SI702x", caps: sensors.CapTemperature | sensors.CapHumidity, temp: 19, hum: 56}}
	w, _ := testStation(si, &fakeSensor{name: "MCP9808", caps: sensors.CapTemperature})
	w.poll(context.Background(), w.clock.Now())

	rr := httptest.NewRecorder()
	w.handler(rr, httptest.NewRequest("GET", "/", nil))
	var body struct {
		Sensors []map[string]interface{} `json:"sensors"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Len(t, body.Sensors, 2)
	assert.Equal(t, "Si7021", body.Sensors[0]["model"])
	assert.NotContains(t, body.Sensors[1], "model")
}
