package sink

import (
	"context"
	"time"

	"github.com/gr-butler/airsense/data"
	"github.com/gr-butler/airsense/env"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/pkg/errors"
	logger "github.com/sirupsen/logrus"
)

const (
	influxConnectTimeout = 10 * time.Second
	defaultBatchSize     = 100
	defaultFlushSeconds  = 10
)

// pointWriter is the part of api.WriteAPI we use.
type pointWriter interface {
	WritePoint(p *write.Point)
	Flush()
}

// Influx writes points through the non-blocking, batching write API.
type Influx struct {
	client influxdb2.Client
	writer pointWriter
}

func NewInflux(cfg env.InfluxDBConfig) (*Influx, error) {
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	flush := cfg.FlushInterval
	if flush <= 0 {
		flush = defaultFlushSeconds
	}
	client := influxdb2.NewClientWithOptions(
		cfg.URL,
		cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(uint(batch)).
			SetFlushInterval(uint(flush)*1000),
	)

	ctx, cancel := context.WithTimeout(context.Background(), influxConnectTimeout)
	defer cancel()
	ok, err := client.Ping(ctx)
	if err != nil {
		client.Close()
		return nil, errors.Wrap(err, "influxdb ping")
	}
	if !ok {
		client.Close()
		return nil, errors.New("influxdb not healthy")
	}

	writeAPI := client.WriteAPI(cfg.Org, cfg.Bucket)
	go func() {
		for err := range writeAPI.Errors() {
			logger.Errorf("InfluxDB write failed [%v]", err)
		}
	}()
	logger.Infof("InfluxDB connected [%v/%v]", cfg.URL, cfg.Bucket)
	return &Influx{client: client, writer: writeAPI}, nil
}

func (i *Influx) Name() string { return "influxdb" }

func (i *Influx) Write(_ context.Context, points []*data.Point) error {
	for _, p := range healthy(points) {
		i.writer.WritePoint(write.NewPoint(p.Measurement, p.Tags, p.FieldMap(), p.Time))
	}
	return nil
}

func (i *Influx) Close() error {
	i.writer.Flush()
	if i.client != nil {
		i.client.Close()
	}
	return nil
}
