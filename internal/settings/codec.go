package settings

import (
	"bytes"
	"fmt"
	"strings"
)

const (
	// MaxLines bounds how many lines of tracker.ini are considered.
	MaxLines  = 128
	separator = '\n'

	endMarker = "; EOF"
)

const (
	keySatelliteSystem = "SatelliteSystem="
	keyNmeaOutUart     = "NmeaOutUart="
	keyNmeaOutFile     = "NmeaOutFile="
	keySensorOutUart   = "SensorOutUart="
	keySensorOutFile   = "SensorOutFile="
	keyIntervalSec     = "IntervalSec="
	keyDebugMessage    = "UartDebugMessage="
)

// satelliteLabels is ordered so that a label is tried before any shorter
// label it starts with.
var satelliteLabels = []struct {
	label string
	sys   SatelliteSystem
}{
	{"GPS+GLONASS+QZSS_L1CA", SatGPSGLONASSQZSSL1CA},
	{"GPS+QZSS_L1CA+QZSS_L1S", SatGPSQZSSL1CAL1S},
	{"GPS+QZSS_L1CA", SatGPSQZSSL1CA},
	{"GPS+GLONASS", SatGPSGLONASS},
	{"GLONASS", SatGLONASS},
	{"GPS+SBAS", SatGPSSBAS},
	{"GPS", SatGPS},
}

var verbosityLabels = []struct {
	label string
	v     Verbosity
}{
	{"NONE", VerbosityNone},
	{"ERROR", VerbosityError},
	{"WARNING", VerbosityWarning},
	{"INFO", VerbosityInfo},
}

// Serialize renders r as tracker.ini text. The output is deterministic and
// ends with the "; EOF" marker line.
func Serialize(r Record) string {
	var b strings.Builder
	field := func(comment, key, value string) {
		fmt.Fprintf(&b, "; %s\n%s%s\n", comment, key, value)
	}

	field("Satellite system(GPS/GLONASS/SBAS/QZSS_L1CA/QZSS_L1S)", keySatelliteSystem, r.SatelliteSystem.String())
	field("Output NMEA message to UART(TRUE/FALSE)", keyNmeaOutUart, boolLabel(r.NmeaOutUart))
	field("Output NMEA message to file(TRUE/FALSE)", keyNmeaOutFile, boolLabel(r.NmeaOutFile))
	field("Output Sensor message to UART(TRUE/FALSE)", keySensorOutUart, boolLabel(r.SensorOutUart))
	field("Output Sensor message to file(TRUE/FALSE)", keySensorOutFile, boolLabel(r.SensorOutFile))
	field("Positioning interval sec(1-300)", keyIntervalSec, fmt.Sprintf("%d", r.IntervalSec))
	field("Uart debug message(NONE/ERROR/WARNING/INFO)", keyDebugMessage, r.DebugMessage.String())
	b.WriteString(endMarker)

	return b.String()
}

func boolLabel(v bool) string {
	if v {
		return "TRUE"
	}
	return "FALSE"
}

// span is one line of the input buffer, excluding its separator.
type span struct {
	start, end int
}

// splitLines records line boundaries in a single pass. Lines past MaxLines
// are dropped.
func splitLines(data []byte) []span {
	var out []span
	start := 0
	for start < len(data) && len(out) < MaxLines {
		end := bytes.IndexByte(data[start:], separator)
		if end < 0 {
			out = append(out, span{start: start, end: len(data)})
			break
		}
		out = append(out, span{start: start, end: start + end})
		start += end + 1
	}
	return out
}

// Parse applies the recognised Key=Value lines of data on top of base and
// returns the result. Nothing in data can make Parse fail.
func Parse(data []byte, base Record) Record {
	r := base
	for _, sp := range splitLines(data) {
		line := data[sp.start:sp.end]
		if len(line) > 0 && line[0] == ';' {
			continue
		}
		eq := bytes.IndexByte(line, '=')
		if eq < 0 {
			continue
		}
		key, value := line[:eq+1], line[eq+1:]

		switch {
		case equalFold(key, keySatelliteSystem):
			r.SatelliteSystem = parseSatellite(value)
		case equalFold(key, keyNmeaOutUart):
			r.NmeaOutUart = parseBool(value)
		case equalFold(key, keyNmeaOutFile):
			r.NmeaOutFile = parseBool(value)
		case equalFold(key, keySensorOutUart):
			r.SensorOutUart = parseBool(value)
		case equalFold(key, keySensorOutFile):
			r.SensorOutFile = parseBool(value)
		case equalFold(key, keyIntervalSec):
			r.IntervalSec = clampInterval(parseUint(value))
		case equalFold(key, keyDebugMessage):
			if v, ok := parseVerbosity(value); ok {
				r.DebugMessage = v
			}
		}
	}
	return r
}

func parseSatellite(value []byte) SatelliteSystem {
	for _, l := range satelliteLabels {
		if hasPrefixFold(value, l.label) {
			return l.sys
		}
	}
	return Default().SatelliteSystem
}

// parseBool treats anything that does not start with FALSE as true.
func parseBool(value []byte) bool {
	return !hasPrefixFold(value, "FALSE")
}

func parseVerbosity(value []byte) (Verbosity, bool) {
	for _, l := range verbosityLabels {
		if hasPrefixFold(value, l.label) {
			return l.v, true
		}
	}
	return 0, false
}

// parseUint reads a leading unsigned decimal. Leading blanks and a '+' sign
// are skipped; parsing stops at the first non-digit. Overflow saturates.
func parseUint(value []byte) uint64 {
	i := 0
	for i < len(value) && (value[i] == ' ' || value[i] == '\t') {
		i++
	}
	if i < len(value) && value[i] == '+' {
		i++
	}
	var n uint64
	for ; i < len(value); i++ {
		c := value[i]
		if c < '0' || c > '9' {
			break
		}
		if n > (1<<63)/10 {
			return 1 << 63
		}
		n = n*10 + uint64(c-'0')
	}
	return n
}

func upper(c byte) byte {
	if c >= 'a' && c <= 'z' {
		return c - ('a' - 'A')
	}
	return c
}

// hasPrefixFold reports whether candidate starts with ref, ASCII
// case-insensitively. Only len(ref) bytes are compared.
func hasPrefixFold(candidate []byte, ref string) bool {
	if len(candidate) < len(ref) {
		return false
	}
	for i := 0; i < len(ref); i++ {
		if upper(candidate[i]) != upper(ref[i]) {
			return false
		}
	}
	return true
}

func equalFold(candidate []byte, ref string) bool {
	return len(candidate) == len(ref) && hasPrefixFold(candidate, ref)
}
