package main

import (
	"context"
	"time"

	"github.com/gr-butler/airsense/sink"
	logger "github.com/sirupsen/logrus"
)

// StartReporting sends the averaged readings to WOW every ReportFreqMin
// minutes, on the hour and after.
func (w *station) StartReporting(ctx context.Context) {
	logger.Info("Starting WOW reporting")
	ticker := w.clock.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ticker.Chan():
			w.report(ctx, t)
		}
	}
}

func (w *station) report(ctx context.Context, t time.Time) bool {
	if w.wow == nil || !sink.Due(t) {
		return false
	}
	if w.testMode {
		logger.Info("TEST MODE, not sending data to met office")
		return false
	}
	logger.Info("Sending data to met office")
	if err := w.wow.Report(ctx, t); err != nil {
		logger.Errorf("Failed to send data to met office [%v]", err)
		return false
	}
	return true
}
