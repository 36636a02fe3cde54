// Package recorder writes the NMEA and sensor logs to the volume, rotating to
// a fresh numbered pair of files on request.
package recorder

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"gnss-tracker/internal/storage"
)

const defaultStoreRecords = 25

// ErrNotOpen is returned when a record arrives before the first Rotate.
var ErrNotOpen = errors.New("recorder: no open file")

// Sample is one sensor log row.
type Sample struct {
	Time        time.Time
	Ax, Ay, Az  float64
	PressureHPa float64
	TempC       float64
}

const csvHeader = "time_utc,ax_g,ay_g,az_g,pressure_hpa,temp_c\n"

// AppendCSV appends s as one CSV row, newline included.
func (s Sample) AppendCSV(b []byte) []byte {
	b = s.Time.UTC().AppendFormat(b, "2006-01-02T15:04:05.000Z")
	for _, v := range []struct {
		f    float64
		prec int
	}{{s.Ax, 4}, {s.Ay, 4}, {s.Az, 4}, {s.PressureHPa, 2}, {s.TempC, 2}} {
		b = append(b, ',')
		b = strconv.AppendFloat(b, v.f, 'f', v.prec, 64)
	}
	return append(b, '\n')
}

type Config struct {
	// StoreRecords is how many sensor rows are buffered per write.
	StoreRecords int
	// NMEA and Sensor enable the two output files.
	NMEA   bool
	Sensor bool
	// Session is stamped into each sensor file header.
	Session string
	// IndexFile defaults to index.ini.
	IndexFile string
}

// Recorder owns the current output files. It is driven by the control loop
// only.
type Recorder struct {
	fs  Volume
	idx *Index
	cfg Config
	log *slog.Logger

	number     uint32
	nmeaName   string
	sensorName string

	pending     []byte
	pendingRows int

	onWrite func(kind string, n int)
}

func New(fs Volume, cfg Config, logger *slog.Logger) *Recorder {
	if cfg.StoreRecords <= 0 {
		cfg.StoreRecords = defaultStoreRecords
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{fs: fs, idx: NewIndex(fs, cfg.IndexFile), cfg: cfg, log: logger}
}

// OnWrite registers fn to be called after every successful append.
func (r *Recorder) OnWrite(fn func(kind string, n int)) { r.onWrite = fn }

// Files returns the current output file names ("" when disabled).
func (r *Recorder) Files() (nmea, sensor string) { return r.nmeaName, r.sensorName }

func (r *Recorder) Number() uint32 { return r.number }

// Rotate flushes pending rows and opens the next numbered file pair.
func (r *Recorder) Rotate(now time.Time) error {
	if err := r.Flush(); err != nil {
		return err
	}
	n, err := r.idx.Next()
	if err != nil {
		return err
	}
	r.number = n
	r.nmeaName, r.sensorName = "", ""

	if r.cfg.NMEA {
		r.nmeaName = fmt.Sprintf("%08d.NMA", n)
	}
	if r.cfg.Sensor {
		r.sensorName = fmt.Sprintf("%08d.CSV", n)
		header := fmt.Sprintf("# session=%s file=%d started=%s\n%s",
			r.cfg.Session, n, now.UTC().Format(time.RFC3339), csvHeader)
		if err := r.write("sensor", r.sensorName, []byte(header)); err != nil {
			return err
		}
	}
	r.log.Info("output files renewed", "number", n, "nmea", r.nmeaName, "sensor", r.sensorName)
	return nil
}

// AddSample buffers one sensor row and writes the buffer once it holds
// StoreRecords rows.
func (r *Recorder) AddSample(s Sample) error {
	if !r.cfg.Sensor {
		return nil
	}
	if r.sensorName == "" {
		return ErrNotOpen
	}
	r.pending = s.AppendCSV(r.pending)
	r.pendingRows++
	if r.pendingRows < r.cfg.StoreRecords {
		return nil
	}
	return r.Flush()
}

// AddSentence appends one NMEA sentence.
func (r *Recorder) AddSentence(line string) error {
	if !r.cfg.NMEA {
		return nil
	}
	if r.nmeaName == "" {
		return ErrNotOpen
	}
	return r.write("nmea", r.nmeaName, []byte(line+"\n"))
}

// Flush writes any buffered sensor rows.
func (r *Recorder) Flush() error {
	if len(r.pending) == 0 || r.sensorName == "" {
		return nil
	}
	buf := r.pending
	r.pending = r.pending[:0]
	r.pendingRows = 0
	return r.write("sensor", r.sensorName, buf)
}

func (r *Recorder) write(kind, name string, p []byte) error {
	if err := storage.WriteAll(r.fs, name, p, storage.ModeAppend); err != nil {
		return fmt.Errorf("recorder: %s: %w", kind, err)
	}
	if r.onWrite != nil {
		r.onWrite(kind, len(p))
	}
	return nil
}
