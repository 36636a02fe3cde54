package tracker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/paulmach/orb/geo"

	"gnss-tracker/internal/gps"
	"gnss-tracker/internal/recorder"
	"gnss-tracker/internal/status"
)

// ErrNotSetup is returned by Run when Setup has not completed.
var ErrNotSetup = errors.New("tracker: not set up")

// Run drives the sampling loop until ctx is cancelled or the device halts.
// Cancellation flushes pending rows and returns nil.
func (c *Controller) Run(ctx context.Context) error {
	if c.rec == nil {
		return ErrNotSetup
	}
	if c.machine.Halted() {
		return &status.HaltError{State: c.machine.State(), Pattern: c.machine.Pattern()}
	}

	rot, err := recorder.NewRotator(c.board.Sampling.FileInterval, c.log.Logger)
	if err != nil {
		return err
	}
	rot.Start()
	defer func() {
		if err := rot.Stop(); err != nil {
			c.log.Warn("rotation scheduler stop failed", "error", err)
		}
	}()

	ticker := time.NewTicker(c.board.Sampling.SensorInterval)
	defer ticker.Stop()

	var sentences <-chan string
	if c.gnss != nil {
		sentences = c.gnss.Sentences()
	}

	for {
		select {
		case <-ctx.Done():
			return c.flush()
		case line, ok := <-sentences:
			if !ok {
				sentences = nil
				continue
			}
			if err := c.handleSentence(line); err != nil {
				return err
			}
		case <-ticker.C:
			if err := c.sample(c.now()); err != nil {
				return err
			}
		case <-rot.C():
			if err := c.renew(); err != nil {
				return err
			}
		}
	}
}

func (c *Controller) flush() error {
	if err := c.rec.Flush(); err != nil {
		c.metrics.IncWriteFailure("sensor")
		return c.halt(status.FatalWriteError, err)
	}
	c.log.Info("tracker stopped", "file", c.rec.Number(), "travelled_m", c.travelledM)
	return nil
}

func (c *Controller) handleSentence(line string) error {
	c.metrics.IncSentences()
	if c.record.NmeaOutUart {
		c.toConsole(line + "\n")
	}
	if err := c.rec.AddSentence(line); err != nil {
		c.metrics.IncWriteFailure("nmea")
		return c.halt(status.FatalWriteError, err)
	}
	return nil
}

func (c *Controller) sample(now time.Time) error {
	c.updateFix(now)
	if c.accel == nil || c.baro == nil {
		return nil
	}

	a, err := c.accel.Read()
	if err != nil {
		c.log.Warn("accelerometer read failed", "error", err)
		return nil
	}
	b, err := c.baro.Read()
	if err != nil {
		c.log.Warn("barometer read failed", "error", err)
		return nil
	}
	s := recorder.Sample{
		Time:        now,
		Ax:          a.Ax,
		Ay:          a.Ay,
		Az:          a.Az,
		PressureHPa: b.PressureHPa,
		TempC:       b.TempC,
	}
	c.metrics.IncSamples()

	if c.record.SensorOutUart {
		c.toConsole(string(s.AppendCSV(nil)))
	}
	if err := c.rec.AddSample(s); err != nil {
		c.metrics.IncWriteFailure("sensor")
		return c.halt(status.FatalWriteError, err)
	}
	return nil
}

func (c *Controller) toConsole(text string) {
	if _, err := io.WriteString(c.console, text); err != nil {
		c.log.Debug("console write failed", "error", err)
	}
}

// trackPosition accumulates the distance between consecutive fixes.
func (c *Controller) trackPosition(snap gps.Snapshot) {
	if snap.FixTime.IsZero() || snap.FixTime.Equal(c.lastFix) {
		return
	}
	if !c.lastFix.IsZero() {
		d := geo.Distance(c.lastPos, snap.Position)
		c.travelledM += d
		c.log.Debug("position",
			"lat", fmt.Sprintf("%.6f", snap.Position.Lat()),
			"lon", fmt.Sprintf("%.6f", snap.Position.Lon()),
			"step_m", d,
			"travelled_m", c.travelledM,
		)
	}
	c.lastPos = snap.Position
	c.lastFix = snap.FixTime
}
