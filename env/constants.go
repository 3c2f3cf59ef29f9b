package env

import "time"

const (
	GPIO20 = "GPIO20" // heartbeat LED
	GPIO21 = "GPIO21" // sensor fault LED

	HeartbeatLed = GPIO20
	StatusLed    = GPIO21

	// I2C addresses
	BME280Addr   uint16 = 0x76
	BMP280Addr   uint16 = 0x77
	MCP9808Addr  uint16 = 0x18
	SHT31Addr    uint16 = 0x44
	SHT4XAddr    uint16 = 0x44
	SHTC3Addr    uint16 = 0x70
	AHT20Addr    uint16 = 0x38
	SI702xAddr   uint16 = 0x40
	HTU21DAddr   uint16 = 0x40
	BH1750Addr   uint16 = 0x23
	SCD30Addr    uint16 = 0x61
	SCD41Addr    uint16 = 0x62
	CCS811Addr   uint16 = 0x5A
	SGP40Addr    uint16 = 0x59
	SGP41Addr    uint16 = 0x59
	SEN54Addr    uint16 = 0x69
	ADS1115Addr  uint16 = 0x48
	DS18B20Bits         = 12

	HPaToInHg     = 0.02953
	ReportFreqMin = 15

	DefaultPollInterval   = 10 * time.Second
	DefaultRetryInitEvery = 6 // poll cycles between Init retries of a faulted sensor
	MaxNotReadyReads      = 5 // consecutive not ready reads before a timeout is reported
	DefaultAnalogMax      = 4.096
	DefaultAnalogWindow   = 1

	LEDFlashDuration = time.Millisecond * 50

	// compensation used by VOC sensors until a humidity sensor has reported
	DefaultCompensationTemp = 25.0
	DefaultCompensationHum  = 50.0

	SGP41ConditioningTime = 10 * time.Second
)
