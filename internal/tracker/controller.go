// Package tracker runs the device: startup, the sampling loop and the status
// LEDs that report on both.
package tracker

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"

	"gnss-tracker/internal/config"
	"gnss-tracker/internal/gps"
	"gnss-tracker/internal/logging"
	"gnss-tracker/internal/metrics"
	"gnss-tracker/internal/recorder"
	"gnss-tracker/internal/settings"
	"gnss-tracker/internal/status"
)

type Options struct {
	Logger    *logging.Logger
	Indicator status.Indicator
	Mode      status.Mode
	// Metrics may be nil.
	Metrics *metrics.Recorder
	// Console receives the UART outputs. Nil selects stdout.
	Console io.Writer
	Now     func() time.Time
}

// Controller owns the settings record and the state machine. All of its
// methods must be called from one goroutine.
type Controller struct {
	board   config.Config
	log     *logging.Logger
	machine *status.Machine
	metrics *metrics.Recorder
	console io.Writer
	now     func() time.Time
	session string

	record  settings.Record
	outcome settings.Outcome

	vol    recorder.Volume
	rec    *recorder.Recorder
	gnss   GNSS
	accel  Accelerometer
	baro   Barometer
	closer io.Closer

	lastPos    orb.Point
	lastFix    time.Time
	travelledM float64
}

func New(board config.Config, opts Options) *Controller {
	if opts.Logger == nil {
		opts.Logger = logging.New(os.Stderr, settings.Default().DebugMessage)
	}
	if opts.Console == nil {
		opts.Console = os.Stdout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	c := &Controller{
		board:   board,
		log:     opts.Logger,
		metrics: opts.Metrics,
		console: opts.Console,
		now:     opts.Now,
		session: uuid.NewString(),
		record:  settings.Default(),
	}
	c.machine = status.NewMachine(opts.Mode, opts.Indicator, opts.Logger.Logger)
	c.machine.Observe(c.metrics.ObserveState)
	return c
}

func (c *Controller) Record() settings.Record   { return c.record }
func (c *Controller) Outcome() settings.Outcome { return c.outcome }
func (c *Controller) Machine() *status.Machine  { return c.machine }
func (c *Controller) Session() string           { return c.session }

// Travelled is the great-circle distance covered between valid fixes, in
// meters.
func (c *Controller) Travelled() float64 { return c.travelledM }

// Setup brings the device up: volume, settings, receiver, sensors and the
// first output files. A failure enters the matching error state and returns
// a *status.HaltError once that state halts the device.
func (c *Controller) Setup(ctx context.Context) error {
	c.machine.Enter(status.Idle)

	vol, err := openVolumeFn(c.board.Storage.Root)
	if err != nil {
		return c.halt(status.RecoverableError, fmt.Errorf("open volume %s: %w", c.board.Storage.Root, err))
	}
	c.vol = vol

	store := settings.NewStore(vol, c.board.Storage.SettingsFile, c.board.Storage.MaxBytes, c.log.Logger)
	rec, outcome, err := store.Setup()
	c.record, c.outcome = rec, outcome
	if err != nil {
		c.metrics.IncWriteFailure("settings")
		return c.halt(status.FatalWriteError, err)
	}
	c.log.SetVerbosity(rec.DebugMessage)

	if c.board.GPS.Enable {
		g := newGNSSFn(gps.Config{
			Device:         c.board.GPS.Device,
			Baud:           c.board.GPS.Baud,
			Constellations: Constellations(rec.SatelliteSystem),
			Interval:       time.Duration(rec.IntervalSec) * time.Second,
		}, c.log.Logger)
		if err := g.Start(ctx); err != nil {
			return c.halt(status.RecoverableError, fmt.Errorf("start gnss: %w", err))
		}
		c.gnss = g
	}

	if c.board.I2C.Enable {
		acc, baro, closer, err := openSensorsFn(c.board.I2C)
		if err != nil {
			return c.halt(status.RecoverableError, fmt.Errorf("open sensors: %w", err))
		}
		c.accel, c.baro, c.closer = acc, baro, closer
	}

	c.rec = recorder.New(vol, recorder.Config{
		StoreRecords: c.board.Sampling.StoreRecords,
		NMEA:         rec.NmeaOutFile,
		Sensor:       rec.SensorOutFile,
		Session:      c.session,
		IndexFile:    c.board.Storage.IndexFile,
	}, c.log.Logger)
	c.rec.OnWrite(c.metrics.AddBytes)

	c.log.Info("tracker ready",
		"session", c.session,
		"satellites", rec.SatelliteSystem.String(),
		"interval_sec", rec.IntervalSec,
		"gnss", c.gnss != nil,
		"sensors", c.accel != nil,
	)
	return c.renew()
}

// Close releases the receiver and sensors. It does not flush; Run does that
// on cancellation.
func (c *Controller) Close() error {
	if c.gnss != nil {
		c.gnss.Close()
		c.gnss = nil
	}
	if c.closer != nil {
		err := c.closer.Close()
		c.closer = nil
		return err
	}
	return nil
}

func (c *Controller) halt(s status.State, cause error) error {
	if herr := c.machine.Fail(s, cause); herr != nil {
		return herr
	}
	c.log.Error("tracker error", "state", s.String(), "error", cause)
	return cause
}

// enter only touches the LEDs when the state changes.
func (c *Controller) enter(s status.State) {
	if c.machine.State() != s {
		c.machine.Enter(s)
	}
}

func (c *Controller) renew() error {
	c.machine.Enter(status.RenewingFile)
	if err := c.rec.Rotate(c.now()); err != nil {
		c.metrics.IncWriteFailure("rotate")
		return c.halt(status.FatalWriteError, err)
	}
	c.metrics.IncRotations()
	c.updateFix(c.now())
	return nil
}

// fixAgeMargin absorbs serial and scheduling jitter on top of two missed
// reports.
const fixAgeMargin = time.Second

// fixMaxAge is how old the last fix may be before the tracker reports a
// missing fix. It never drops below two receiver report intervals, so a
// long IntervalSec does not read as a lost fix between reports.
func (c *Controller) fixMaxAge() time.Duration {
	report := gps.ReportInterval(time.Duration(c.record.IntervalSec) * time.Second)
	age := 2*report + fixAgeMargin
	if c.board.GPS.FixMaxAge > age {
		return c.board.GPS.FixMaxAge
	}
	return age
}

// updateFix moves between AwaitingFix and Sampling. Without a receiver the
// tracker is always sampling.
func (c *Controller) updateFix(now time.Time) {
	if c.gnss == nil {
		c.enter(status.Sampling)
		return
	}
	snap := c.gnss.Snapshot()
	fresh := snap.Fresh(now, c.fixMaxAge())
	c.metrics.SetFixValid(fresh)
	c.metrics.SetGPSDropped(c.gnss.Dropped())
	if !fresh {
		c.enter(status.AwaitingFix)
		return
	}
	c.trackPosition(snap)
	c.enter(status.Sampling)
}
