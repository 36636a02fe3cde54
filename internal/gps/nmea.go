package gps

import (
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
)

type nmeaSentence struct {
	Type string
	// Fields is the comma-split NMEA payload (excluding $ and checksum).
	Fields []string
}

func checksum(payload string) byte {
	ck := byte(0)
	for i := 0; i < len(payload); i++ {
		ck ^= payload[i]
	}
	return ck
}

func parseNMEASentence(line string) (nmeaSentence, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "$") {
		return nmeaSentence{}, fmt.Errorf("nmea: missing '$'")
	}
	star := strings.LastIndexByte(line, '*')
	if star == -1 {
		return nmeaSentence{}, fmt.Errorf("nmea: missing checksum")
	}
	payload := line[1:star]
	ck := strings.TrimSpace(line[star+1:])
	if len(ck) < 2 {
		return nmeaSentence{}, fmt.Errorf("nmea: short checksum")
	}
	want, err := hex.DecodeString(ck[:2])
	if err != nil || len(want) != 1 {
		return nmeaSentence{}, fmt.Errorf("nmea: bad checksum")
	}
	if checksum(payload) != want[0] {
		return nmeaSentence{}, fmt.Errorf("nmea: checksum mismatch")
	}

	parts := strings.Split(payload, ",")
	typeField := parts[0]
	if len(typeField) < 3 {
		return nmeaSentence{}, fmt.Errorf("nmea: short type")
	}
	// GNRMC, GPRMC, GLRMC... all normalize to RMC.
	t := typeField
	if len(t) > 3 {
		t = t[len(t)-3:]
	}
	return nmeaSentence{Type: strings.ToUpper(t), Fields: parts}, nil
}

// Snapshot is the latest receiver state.
type Snapshot struct {
	Device string `json:"device,omitempty"`
	Baud   int    `json:"baud,omitempty"`

	// Valid is true while the receiver reports a usable fix.
	Valid bool `json:"valid"`
	// Position is lon/lat in degrees.
	Position   orb.Point `json:"position"`
	AltM       *float64  `json:"alt_m,omitempty"`
	SpeedKmh   *float64  `json:"speed_kmh,omitempty"`
	CourseDeg  *float64  `json:"course_deg,omitempty"`
	FixQuality *int      `json:"fix_quality,omitempty"`
	Satellites *int      `json:"satellites,omitempty"`
	HDOP       *float64  `json:"hdop,omitempty"`

	// FixTime is the receiver's UTC time of the last fix.
	FixTime time.Time `json:"fix_time,omitempty"`
	// ReceivedAt is the local time the last fix arrived.
	ReceivedAt time.Time `json:"received_at,omitempty"`

	LastError string `json:"last_error,omitempty"`
}

// Fresh reports whether the snapshot holds a fix received within maxAge of now.
func (s Snapshot) Fresh(now time.Time, maxAge time.Duration) bool {
	if !s.Valid || s.ReceivedAt.IsZero() {
		return false
	}
	return now.Sub(s.ReceivedAt) <= maxAge
}

type nmeaState struct {
	device string
	baud   int

	pos   orb.Point
	posOK bool

	speedKmh float64
	speedOK  bool

	courseDeg float64
	courseOK  bool

	altM  float64
	altOK bool

	fixQuality   int
	fixQualityOK bool
	satellites   int
	satsOK       bool
	hdop         float64
	hdopOK       bool

	fixTime    time.Time
	receivedAt time.Time
	valid      bool
}

func (s *nmeaState) apply(nowUTC time.Time, sent nmeaSentence) bool {
	switch sent.Type {
	case "RMC":
		return s.applyRMC(nowUTC, sent.Fields)
	case "GGA":
		return s.applyGGA(nowUTC, sent.Fields)
	default:
		return false
	}
}

func (s *nmeaState) snapshot() Snapshot {
	out := Snapshot{
		Device:     s.device,
		Baud:       s.baud,
		Valid:      s.valid,
		Position:   s.pos,
		FixTime:    s.fixTime,
		ReceivedAt: s.receivedAt,
	}
	if s.altOK {
		v := s.altM
		out.AltM = &v
	}
	if s.speedOK {
		v := s.speedKmh
		out.SpeedKmh = &v
	}
	if s.courseOK {
		v := s.courseDeg
		out.CourseDeg = &v
	}
	if s.fixQualityOK {
		v := s.fixQuality
		out.FixQuality = &v
	}
	if s.satsOK {
		v := s.satellites
		out.Satellites = &v
	}
	if s.hdopOK {
		v := s.hdop
		out.HDOP = &v
	}
	return out
}

// RMC: Recommended Minimum Specific GNSS Data
//
//	0: talker+type
//	1: time (hhmmss.sss)
//	2: status (A=active, V=void)
//	3: latitude (ddmm.mmmm)
//	4: N/S
//	5: longitude (dddmm.mmmm)
//	6: E/W
//	7: speed over ground (knots)
//	8: course over ground (deg)
//	9: date (ddmmyy)
func (s *nmeaState) applyRMC(nowUTC time.Time, f []string) bool {
	if len(f) < 10 {
		return false
	}
	if strings.TrimSpace(f[2]) != "A" {
		// Void: the receiver lost (or never had) a fix.
		changed := s.valid
		s.valid = false
		return changed
	}

	lat, latOK := parseNMEALatLon(f[3], f[4])
	lon, lonOK := parseNMEALatLon(f[5], f[6])
	if !latOK || !lonOK {
		return false
	}
	s.pos = orb.Point{lon, lat}
	s.posOK = true

	if kt, ok := parseFloat(f[7]); ok {
		s.speedKmh = kt * 1.852
		s.speedOK = true
	}
	if trk, ok := parseFloat(f[8]); ok {
		s.courseDeg = math.Mod(trk+360.0, 360.0)
		s.courseOK = true
	}
	if ts, ok := parseNMEATime(f[1], f[9]); ok {
		s.fixTime = ts
	}

	s.receivedAt = nowUTC
	s.valid = true
	return true
}

// GGA: Global Positioning System Fix Data
//
//	0: talker+type
//	1: time
//	2: latitude
//	3: N/S
//	4: longitude
//	5: E/W
//	6: fix quality (0=invalid)
//	7: number of satellites
//	8: HDOP
//	9: altitude (meters)
//	10: units (M)
func (s *nmeaState) applyGGA(nowUTC time.Time, f []string) bool {
	if len(f) < 11 {
		return false
	}
	if sats, err := strconv.Atoi(strings.TrimSpace(f[7])); err == nil {
		s.satellites = sats
		s.satsOK = true
	}
	fixQStr := strings.TrimSpace(f[6])
	if fixQStr == "" || fixQStr == "0" {
		changed := s.valid
		s.valid = false
		s.fixQuality = 0
		s.fixQualityOK = fixQStr == "0"
		return changed
	}
	if q, err := strconv.Atoi(fixQStr); err == nil {
		s.fixQuality = q
		s.fixQualityOK = true
	}
	if hdop, ok := parseFloat(f[8]); ok {
		s.hdop = hdop
		s.hdopOK = true
	}

	lat, latOK := parseNMEALatLon(f[2], f[3])
	lon, lonOK := parseNMEALatLon(f[4], f[5])
	if latOK && lonOK {
		s.pos = orb.Point{lon, lat}
		s.posOK = true
	}
	if altM, ok := parseFloat(f[9]); ok {
		s.altM = altM
		s.altOK = true
	}

	if !s.posOK {
		return false
	}
	s.receivedAt = nowUTC
	s.valid = true
	return true
}

func parseFloat(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// parseNMEATime combines hhmmss(.sss) and ddmmyy into a UTC time.
func parseNMEATime(hms, dmy string) (time.Time, bool) {
	hms = strings.TrimSpace(hms)
	dmy = strings.TrimSpace(dmy)
	if len(hms) < 6 || len(dmy) != 6 {
		return time.Time{}, false
	}
	// time.Parse accepts a fractional second after the seconds field even
	// though the layout does not name one.
	t, err := time.ParseInLocation("020106150405", dmy+hms, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// parseNMEALatLon parses NMEA lat/lon in ddmm.mmmm or dddmm.mmmm plus hemisphere.
func parseNMEALatLon(v string, hemi string) (float64, bool) {
	v = strings.TrimSpace(v)
	hemi = strings.TrimSpace(strings.ToUpper(hemi))
	if v == "" || (hemi != "N" && hemi != "S" && hemi != "E" && hemi != "W") {
		return 0, false
	}

	// The last two digits of the integer part are whole minutes.
	dot := strings.IndexByte(v, '.')
	intPart := v
	if dot != -1 {
		intPart = v[:dot]
	}
	if len(intPart) < 3 {
		return 0, false
	}

	deg, err := strconv.Atoi(intPart[:len(intPart)-2])
	if err != nil {
		return 0, false
	}
	mins, err := strconv.ParseFloat(v[len(intPart)-2:], 64)
	if err != nil {
		return 0, false
	}

	dec := float64(deg) + (mins / 60.0)
	if hemi == "S" || hemi == "W" {
		dec = -dec
	}
	return dec, true
}
