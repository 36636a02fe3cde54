package gps

import (
	"fmt"
	"time"
)

// Constellations is the set of GNSS systems the receiver should track.
type Constellations struct {
	GPS      bool
	GLONASS  bool
	SBAS     bool
	QZSSL1CA bool
	// QZSSL1S is the sub-meter augmentation signal. MTK receivers have no
	// separate switch for it; it follows QZSS.
	QZSSL1S bool
}

func (c Constellations) String() string {
	s := ""
	add := func(on bool, name string) {
		if !on {
			return
		}
		if s != "" {
			s += "+"
		}
		s += name
	}
	add(c.GPS, "GPS")
	add(c.GLONASS, "GLONASS")
	add(c.SBAS, "SBAS")
	add(c.QZSSL1CA, "QZSS_L1CA")
	add(c.QZSSL1S, "QZSS_L1S")
	if s == "" {
		return "none"
	}
	return s
}

const (
	minFixInterval = 100 * time.Millisecond
	maxFixInterval = 10 * time.Second
)

// Sentence frames payload as "$payload*CK\r\n".
func Sentence(payload string) string {
	return fmt.Sprintf("$%s*%02X\r\n", payload, checksum(payload))
}

// ConfigSentences renders the MTK commands selecting c and the fix interval.
// The receiver's own rate is capped at 10 s; longer positioning intervals are
// applied by the service when forwarding sentences.
func ConfigSentences(c Constellations, interval time.Duration) []string {
	b := func(v bool) int {
		if v {
			return 1
		}
		return 0
	}
	qzss := c.QZSSL1CA || c.QZSSL1S

	out := []string{
		// GPS, GLONASS, GALILEO, GALILEO_FULL, BEIDOU.
		Sentence(fmt.Sprintf("PMTK353,%d,%d,0,0,0", b(c.GPS), b(c.GLONASS))),
		Sentence(fmt.Sprintf("PMTK313,%d", b(c.SBAS))),
	}
	if c.SBAS {
		// DGPS source: WAAS.
		out = append(out, Sentence("PMTK301,2"))
	} else {
		out = append(out, Sentence("PMTK301,0"))
	}
	// PMTK352 is a stop flag: 0 keeps QZSS, 1 stops it.
	out = append(out, Sentence(fmt.Sprintf("PMTK352,%d", b(!qzss))))

	out = append(out, Sentence(fmt.Sprintf("PMTK220,%d", ReportInterval(interval).Milliseconds())))
	return out
}

// ReportInterval is how often the receiver emits a fix when asked for
// interval: the request clamped to what PMTK220 accepts.
func ReportInterval(interval time.Duration) time.Duration {
	if interval < minFixInterval {
		return minFixInterval
	}
	if interval > maxFixInterval {
		return maxFixInterval
	}
	return interval
}
