// Package settings persists the tracker's device parameters in tracker.ini,
// a small line-oriented Key=Value text file kept on the removable volume.
//
// Parsing is deliberately lenient: comments, blank lines, unknown keys and
// unknown values never fail a load, they just leave the defaults in place.
package settings

import "log/slog"

// SatelliteSystem is the set of constellations the receiver tracks.
type SatelliteSystem int

const (
	SatGPS SatelliteSystem = iota
	SatGLONASS
	SatGPSSBAS
	SatGPSGLONASS
	SatGPSQZSSL1CA
	SatGPSGLONASSQZSSL1CA
	SatGPSQZSSL1CAL1S
)

func (s SatelliteSystem) String() string {
	switch s {
	case SatGPS:
		return "GPS"
	case SatGLONASS:
		return "GLONASS"
	case SatGPSSBAS:
		return "GPS+SBAS"
	case SatGPSGLONASS:
		return "GPS+GLONASS"
	case SatGPSQZSSL1CA:
		return "GPS+QZSS_L1CA"
	case SatGPSQZSSL1CAL1S:
		return "GPS+QZSS_L1CA+QZSS_L1S"
	default:
		return "GPS+GLONASS+QZSS_L1CA"
	}
}

func (s SatelliteSystem) Valid() bool {
	return s >= SatGPS && s <= SatGPSQZSSL1CAL1S
}

// Verbosity is the debug message level written to the console.
type Verbosity int

const (
	VerbosityNone Verbosity = iota
	VerbosityError
	VerbosityWarning
	VerbosityInfo
)

func (v Verbosity) String() string {
	switch v {
	case VerbosityError:
		return "ERROR"
	case VerbosityWarning:
		return "WARNING"
	case VerbosityInfo:
		return "INFO"
	default:
		return "NONE"
	}
}

func (v Verbosity) Valid() bool {
	return v >= VerbosityNone && v <= VerbosityInfo
}

// SlogLevel maps the verbosity onto a slog threshold. VerbosityNone returns a
// level above every record the tracker emits.
func (v Verbosity) SlogLevel() slog.Level {
	switch v {
	case VerbosityError:
		return slog.LevelError
	case VerbosityWarning:
		return slog.LevelWarn
	case VerbosityInfo:
		return slog.LevelInfo
	default:
		return slog.LevelError + 4
	}
}

const (
	MinIntervalSec = 1
	MaxIntervalSec = 300
)

// Record is the persisted parameter set.
type Record struct {
	SatelliteSystem SatelliteSystem
	NmeaOutUart     bool
	NmeaOutFile     bool
	SensorOutUart   bool
	SensorOutFile   bool
	IntervalSec     uint32
	DebugMessage    Verbosity
}

// Default returns the compiled-in parameters.
func Default() Record {
	return Record{
		SatelliteSystem: SatGPSGLONASSQZSSL1CA,
		NmeaOutUart:     false,
		NmeaOutFile:     false,
		SensorOutUart:   false,
		SensorOutFile:   true,
		IntervalSec:     1,
		DebugMessage:    VerbosityNone,
	}
}

func clampInterval(v uint64) uint32 {
	if v < MinIntervalSec {
		return MinIntervalSec
	}
	if v > MaxIntervalSec {
		return MaxIntervalSec
	}
	return uint32(v)
}
