package sink

import (
	"context"
	"net/http"
	"time"

	"github.com/google/go-querystring/query"
	"github.com/gr-butler/airsense/data"
	"github.com/gr-butler/airsense/env"
	"github.com/gr-butler/airsense/sensors"
	"github.com/pkg/errors"
	logger "github.com/sirupsen/logrus"
)

/*
https://wow.metoffice.gov.uk/support/dataformats

WOW takes a GET to the url below with siteid, siteAuthenticationKey, dateutc
and softwaretype plus at least one piece of weather data. dateutc is
"YYYY-mm-DD HH:mm:ss" in UTC.

baromin   Barometric Pressure  Inch of Mercury
dewptf    Outdoor Dewpoint     Fahrenheit
humidity  Outdoor Humidity     0-100 %
tempf     Outdoor Temperature  Fahrenheit
*/

const (
	WOWBaseURL   = "http://wow.metoffice.gov.uk/automaticreading?"
	softwareType = "airsense-0.1.0"
	wowTimeout   = 30 * time.Second
)

type weatherData struct {
	SiteID       string   `url:"siteid"`
	AuthKey      string   `url:"siteAuthenticationKey"`
	DateString   string   `url:"dateutc"`
	SoftwareType string   `url:"softwaretype"`
	PressureIn   *float64 `url:"baromin,omitempty"`
	Humidity     *float64 `url:"humidity,omitempty"`
	TempF        *float64 `url:"tempf,omitempty"`
	DewPointF    *float64 `url:"dewptf,omitempty"`
}

type httpGetter interface {
	Do(req *http.Request) (*http.Response, error)
}

// WOW uploads averaged readings to the Met Office Weather Observations
// Website.
type WOW struct {
	cfg      env.WOWConfig
	readings *data.Readings
	samples  int
	baseURL  string
	client   httpGetter
}

// NewWOW reports the average of the last samples healthy values of each
// field in readings.
func NewWOW(cfg env.WOWConfig, readings *data.Readings, samples int) *WOW {
	if samples < 1 {
		samples = 1
	}
	return &WOW{
		cfg:      cfg,
		readings: readings,
		samples:  samples,
		baseURL:  WOWBaseURL,
		client:   &http.Client{Timeout: wowTimeout},
	}
}

// Due is true on the hour and every ReportFreqMin minutes after.
func Due(t time.Time) bool {
	return t.Minute()%env.ReportFreqMin == 0
}

// prepData builds the upload from the readings. It fails when there is no
// weather data at all.
func (w *WOW) prepData(now time.Time) (*weatherData, error) {
	wd := weatherData{
		SiteID:       w.cfg.SiteID,
		AuthKey:      w.cfg.AuthKey,
		DateString:   now.UTC().Format("2006-01-02 15:04:05"),
		SoftwareType: softwareType,
	}

	tempC, hasTemp := w.readings.Average(sensors.FieldTemp, w.samples)
	hum, hasHum := w.readings.Average(sensors.FieldHum, w.samples)
	press, hasPress := w.readings.Average(sensors.FieldPress, w.samples)

	if hasTemp {
		wd.TempF = float(ctof(tempC))
	}
	if hasHum {
		wd.Humidity = float(hum)
	}
	if hasTemp && hasHum {
		wd.DewPointF = float(ctof(dewPoint(tempC, hum)))
	}
	if hasPress {
		wd.PressureIn = float(press * env.HPaToInHg)
	}
	if !(hasTemp || hasHum || hasPress) {
		return nil, errors.New("no weather data to report")
	}
	return &wd, nil
}

// Report sends one observation.
func (w *WOW) Report(ctx context.Context, now time.Time) error {
	wd, err := w.prepData(now)
	if err != nil {
		return err
	}
	vals, err := query.Values(wd)
	if err != nil {
		return errors.Wrap(err, "wow encode")
	}
	logger.Debugf("WOW data: [%v]", vals)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.baseURL+vals.Encode(), nil)
	if err != nil {
		return errors.Wrap(err, "wow request")
	}
	resp, err := w.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "wow send")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("wow send HTTP [%v]", resp.Status)
	}
	return nil
}

func float(v float64) *float64 { return &v }

func ctof(c float64) float64 {
	//(0°C × 9/5) + 32 = 32°F
	return (c * 9 / 5) + 32
}

// dewPoint is the simple approximation Td = T - ((100 - RH)/5), good to
// about 1°C above 50% RH.
func dewPoint(tempC, hum float64) float64 {
	return tempC - ((100 - hum) / 5.0)
}
