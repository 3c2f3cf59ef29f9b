package env

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	logger "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config is the station configuration, loaded from YAML. Secrets can be
// supplied through the environment (or a .env file) instead of the file.
type Config struct {
	Station    StationConfig    `yaml:"station"`
	Sensors    []SensorConfig   `yaml:"sensors"`
	InfluxDB   InfluxDBConfig   `yaml:"influxdb"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	Postgres   PostgresConfig   `yaml:"postgres"`
	Prometheus PrometheusConfig `yaml:"prometheus"`
	WOW        WOWConfig        `yaml:"wow"`
}

type StationConfig struct {
	Name           string        `yaml:"name"`
	Altitude       float64       `yaml:"altitude"` // metres above sea level
	Interval       time.Duration `yaml:"interval"`
	RetryInitEvery int           `yaml:"retry_init_every"`
	I2CBus         string        `yaml:"i2c_bus"`      // "" opens the first bus
	OneWireBus     string        `yaml:"onewire_bus"`  // "" opens the first bus
	IIORoot        string        `yaml:"iio_root"`     // sysfs root of IIO devices
	StatusLed      string        `yaml:"status_led"`   // GPIO name, "none" disables
	HeartbeatLed   string        `yaml:"heartbeat_led"`
}

// SensorConfig describes one physical device. Only the fields its type uses
// are read.
type SensorConfig struct {
	Type         string   `yaml:"type"`
	Name         string   `yaml:"name"`
	Address      uint16   `yaml:"address"`
	Altitude     *float64 `yaml:"altitude"` // defaults to the station altitude
	Channel      int      `yaml:"channel"`
	Device       string   `yaml:"device"` // IIO device directory for dht22
	FullScale    float64  `yaml:"full_scale"`
	Window       int      `yaml:"window"`
	Field        string   `yaml:"field"`
	Capabilities []string `yaml:"capabilities"`
}

type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"` // seconds
}

type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TopicPrefix string `yaml:"topic_prefix"`
	QoS         byte   `yaml:"qos"`
}

type PostgresConfig struct {
	Enabled bool   `yaml:"enabled"`
	DSN     string `yaml:"dsn"`
}

type PrometheusConfig struct {
	Enabled bool `yaml:"enabled"`
}

type WOWConfig struct {
	Enabled bool   `yaml:"enabled"`
	SiteID  string `yaml:"site_id"`
	AuthKey string `yaml:"auth_key"`
}

// Load reads the YAML file at path, applies environment overrides and
// defaults, and validates the result.
func Load(path string) (*Config, error) {
	// .env is optional
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger.Warnf("Failed to read .env [%v]", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading config %s", path)
	}
	return Parse(raw)
}

// Parse decodes a YAML document into a Config.
func Parse(raw []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, errors.Wrap(err, "parsing config")
	}
	cfg.applyEnvOverrides()
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	override := func(dst *string, key string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	override(&c.InfluxDB.Token, "INFLUX_TOKEN")
	override(&c.MQTT.Password, "MQTT_PASSWORD")
	override(&c.Postgres.DSN, "POSTGRES_DSN")
	override(&c.WOW.SiteID, "WOWSITEID")
	override(&c.WOW.AuthKey, "WOWPIN")
}

func (c *Config) applyDefaults() {
	if c.Station.Name == "" {
		c.Station.Name = "airsense"
	}
	if c.Station.Interval <= 0 {
		c.Station.Interval = DefaultPollInterval
	}
	if c.Station.RetryInitEvery <= 0 {
		c.Station.RetryInitEvery = DefaultRetryInitEvery
	}
	if c.Station.IIORoot == "" {
		c.Station.IIORoot = "/sys/bus/iio/devices"
	}
	c.Station.StatusLed = ledPin(c.Station.StatusLed, StatusLed)
	c.Station.HeartbeatLed = ledPin(c.Station.HeartbeatLed, HeartbeatLed)
	if c.MQTT.TopicPrefix == "" {
		c.MQTT.TopicPrefix = "airsense"
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = c.Station.Name
	}
	for i := range c.Sensors {
		s := &c.Sensors[i]
		s.Type = strings.ToLower(strings.TrimSpace(s.Type))
		if s.Altitude == nil {
			alt := c.Station.Altitude
			s.Altitude = &alt
		}
		if s.FullScale <= 0 {
			s.FullScale = DefaultAnalogMax
		}
		if s.Window <= 0 {
			s.Window = DefaultAnalogWindow
		}
	}
}

func ledPin(pin, def string) string {
	switch strings.ToLower(pin) {
	case "":
		return def
	case "none":
		return ""
	}
	return pin
}

// defaultNames are the names sensors take when none is configured.
var defaultNames = map[string]string{
	"dht22":   "DHT22",
	"ds18b20": "DS18B20",
	"bme280":  "BME280",
	"bmp280":  "BMP280",
	"sht31":   "SHT31",
	"sht4x":   "SHT4X",
	"shtc3":   "SHTC3",
	"mcp9808": "MCP9808",
	"aht20":   "AHT20",
	"si702x":  "SI702x",
	"htu21d":  "HTU21D",
	"bh1750":  "BH1750",
	"scd30":   "SCD30",
	"scd41":   "SCD41",
	"ccs811":  "CCS811",
	"sgp40":   "SGP40",
	"sgp41":   "SGP41",
	"sen54":   "SEN54",
	"analog":  "Analog",
}

// EffectiveName is the name the sensor will report: the configured name, or
// the default name of its type.
func (s SensorConfig) EffectiveName() string {
	if s.Name != "" {
		return s.Name
	}
	if n, ok := defaultNames[s.Type]; ok {
		return n
	}
	return s.Type
}

// Validate checks the settings that would otherwise fail late at runtime.
func (c *Config) Validate() error {
	if len(c.Sensors) == 0 {
		return errors.Errorf("config: no sensors configured")
	}
	names := map[string]bool{}
	for i, s := range c.Sensors {
		if s.Type == "" {
			return errors.Errorf("config: sensor %d has no type", i)
		}
		// points and metrics are keyed by sensor name
		name := s.EffectiveName()
		if names[name] {
			return errors.Errorf("config: duplicate sensor name %q, set name on sensor %d", name, i)
		}
		names[name] = true
		if s.Window > 255 {
			return errors.Errorf("config: sensor %d averaging window %d is larger than 255", i, s.Window)
		}
	}
	if c.InfluxDB.Enabled && (c.InfluxDB.URL == "" || c.InfluxDB.Bucket == "") {
		return errors.Errorf("config: influxdb needs url and bucket")
	}
	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		return errors.Errorf("config: mqtt needs a broker")
	}
	if c.MQTT.QoS > 2 {
		return errors.Errorf("config: mqtt qos %d out of range", c.MQTT.QoS)
	}
	if c.Postgres.Enabled && c.Postgres.DSN == "" {
		return errors.Errorf("config: postgres needs a dsn")
	}
	if c.WOW.Enabled && (c.WOW.SiteID == "" || c.WOW.AuthKey == "") {
		return errors.Errorf("config: wow needs site id and auth key (WOWSITEID and WOWPIN)")
	}
	return nil
}
