package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gr-butler/airsense/data"
	"github.com/gr-butler/airsense/env"
	"github.com/gr-butler/airsense/led"
	"github.com/gr-butler/airsense/sensors"
	"github.com/gr-butler/airsense/sink"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	logger "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/onewire/onewirereg"
	"periph.io/x/host/v3"
)

const version = "airsense-0.1.0"

func main() {
	args := env.ParseArgs()
	logger.SetFormatter(&logger.TextFormatter{FullTimestamp: true})
	if lvl, ok := os.LookupEnv("LOG_LEVEL"); ok {
		if l, err := logger.ParseLevel(lvl); err == nil {
			logger.SetLevel(l)
		}
	}
	if *args.Verbose {
		logger.SetLevel(logger.DebugLevel)
	}
	logger.Infof("Starting air sensor station [%v]", version)
	if *args.Test {
		logger.Info("TEST MODE")
	}

	cfg, err := env.Load(*args.Config)
	if err != nil {
		logger.Fatalf("Failed to load config [%v]", err)
	}
	if *args.Interval > 0 {
		cfg.Station.Interval = *args.Interval
	}

	if _, err := host.Init(); err != nil {
		logger.Fatalf("Failed to initialise periph [%v]", err)
	}

	hw, closeHW := openHardware(cfg)
	defer closeHW()

	all, err := sensors.BuildAll(cfg.Sensors, hw)
	if err != nil {
		logger.Fatalf("Failed to build sensors [%v]", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	samples := reportSamples(cfg.Station.Interval)
	readings := data.NewReadings(samples)
	sinks := openSinks(ctx, cfg, *args.Test)
	defer sinks.Close()

	w := &station{
		cfg:      cfg.Station,
		sensors:  all,
		readings: readings,
		sink:     sinks,
		fault:    led.NewLED("status", cfg.Station.StatusLed),
		beat:     led.NewLED("heartbeat", cfg.Station.HeartbeatLed),
		clock:    hw.Clock,
		testMode: *args.Test,
	}
	if cfg.WOW.Enabled {
		w.wow = sink.NewWOW(cfg.WOW, readings, samples)
	}

	w.initSensors()
	go w.StartMonitor(ctx)
	go w.heartbeat(ctx)
	if w.wow != nil {
		go w.StartReporting(ctx)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", w.handler)
	if cfg.Prometheus.Enabled {
		mux.Handle("/metrics", promhttp.Handler())
	}
	srv := &http.Server{Addr: *args.Listen, Handler: mux}
	go func() {
		logger.Infof("Starting webservice on %v", *args.Listen)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("Webservice stopped [%v]", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Exiting...")
	shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdown)
}

// openHardware opens only the buses the configured sensors use.
func openHardware(cfg *env.Config) (sensors.Hardware, func()) {
	hw := sensors.Hardware{
		IIORoot:  cfg.Station.IIORoot,
		Clock:    clockwork.NewRealClock(),
		Interval: cfg.Station.Interval,
	}
	var closers []func() error

	needI2C, needOneWire := false, false
	for _, s := range cfg.Sensors {
		switch s.Type {
		case "dht22":
		case "ds18b20":
			needOneWire = true
		default:
			needI2C = true
		}
	}
	if needI2C {
		bus, err := i2creg.Open(cfg.Station.I2CBus)
		if err != nil {
			logger.Errorf("Failed to open I2C bus [%v]", err)
		} else {
			logger.Infof("Opened I2C bus %v", bus)
			hw.I2C = bus
			closers = append(closers, bus.Close)
		}
	}
	if needOneWire {
		bus, err := onewirereg.Open(cfg.Station.OneWireBus)
		if err != nil {
			logger.Errorf("Failed to open 1-Wire bus [%v]", err)
		} else {
			hw.OneWire = bus
			closers = append(closers, bus.Close)
		}
	}
	return hw, func() {
		for _, c := range closers {
			_ = c()
		}
	}
}

// openSinks connects every enabled sink. A sink that cannot connect is
// logged and left out.
func openSinks(ctx context.Context, cfg *env.Config, testMode bool) *sink.Multi {
	m := sink.NewMulti()
	if cfg.Prometheus.Enabled {
		if p, err := sink.NewPrometheus(prometheus.DefaultRegisterer); err != nil {
			logger.Errorf("Failed to register metrics [%v]", err)
		} else {
			m.Add(p)
		}
	}
	if testMode {
		return m
	}
	if cfg.InfluxDB.Enabled {
		if i, err := sink.NewInflux(cfg.InfluxDB); err != nil {
			logger.Errorf("Failed to connect to InfluxDB [%v]", err)
		} else {
			m.Add(i)
		}
	}
	if cfg.MQTT.Enabled {
		if q, err := sink.NewMQTT(cfg.MQTT); err != nil {
			logger.Errorf("Failed to connect to MQTT [%v]", err)
		} else {
			m.Add(q)
		}
	}
	if cfg.Postgres.Enabled {
		if p, err := sink.NewPostgres(ctx, cfg.Postgres.DSN); err != nil {
			logger.Errorf("Failed to connect to Postgres [%v]", err)
		} else {
			m.Add(p)
		}
	}
	logger.Infof("%d sinks enabled", m.Len())
	return m
}

// reportSamples is how many polls make up one WOW report period.
func reportSamples(interval time.Duration) int {
	n := int(time.Duration(env.ReportFreqMin) * time.Minute / interval)
	if n < 1 {
		n = 1
	}
	return n
}

func (w *station) handler(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Set("Content-Type", "application/json")
	js, err := json.Marshal(struct {
		Station string         `json:"station"`
		Version string         `json:"version"`
		TimeNow string         `json:"time"`
		Sensors []sensorStatus `json:"sensors"`
	}{
		Station: w.cfg.Name,
		Version: version,
		TimeNow: w.clock.Now().Format(time.RFC822),
		Sensors: w.status(),
	})
	if err != nil {
		logger.Errorf("JSON error [%v]", err)
		http.Error(rw, err.Error(), http.StatusInternalServerError)
		return
	}
	_, _ = rw.Write(js) // not much we can do if this fails
}
