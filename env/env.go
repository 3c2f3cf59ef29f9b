package env

import (
	"flag"
	"time"
)

type Args struct {
	Config   *string
	Test     *bool
	Verbose  *bool
	Listen   *string
	Interval *time.Duration
}

// ParseArgs registers the command line flags and parses them.
func ParseArgs() Args {
	a := Args{
		Config:   flag.String("config", "airsense.yaml", "station configuration file"),
		Test:     flag.Bool("test", false, "test mode, sensors are polled and logged but no telemetry is sent"),
		Verbose:  flag.Bool("verbose", false, "debug logging"),
		Listen:   flag.String("listen", ":80", "status and metrics listen address"),
		Interval: flag.Duration("interval", 0, "poll interval, overrides the config file"),
	}
	flag.Parse()
	return a
}
