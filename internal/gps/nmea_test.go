package gps

import (
	"fmt"
	"math"
	"testing"
	"time"
)

func nmeaLine(payload string) string {
	return fmt.Sprintf("$%s*%02X", payload, checksum(payload))
}

func mustParse(t *testing.T, payload string) nmeaSentence {
	t.Helper()
	s, err := parseNMEASentence(nmeaLine(payload))
	if err != nil {
		t.Fatalf("parse %q: %v", payload, err)
	}
	return s
}

func TestParseNMEASentence_ChecksumOK(t *testing.T) {
	s := mustParse(t, "GPRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W")
	if s.Type != "RMC" {
		t.Fatalf("expected type RMC, got %q", s.Type)
	}
}

func TestParseNMEASentence_Errors(t *testing.T) {
	good := nmeaLine("GPRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W")
	cases := map[string]string{
		"mismatch":    good[:len(good)-2] + "00",
		"no dollar":   good[1:],
		"no checksum": "$GPRMC,123519,A",
		"short type":  nmeaLine("GP"),
		"bad hex":     "$GPRMC,1*ZZ",
	}
	for name, line := range cases {
		if _, err := parseNMEASentence(line); err == nil {
			t.Fatalf("%s: expected error for %q", name, line)
		}
	}
}

func TestNMEAState_RMCUpdatesFix(t *testing.T) {
	var st nmeaState
	now := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	if !st.apply(now, mustParse(t, "GPRMC,123519.50,A,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W")) {
		t.Fatalf("expected updated")
	}
	snap := st.snapshot()
	if !snap.Valid {
		t.Fatalf("expected valid")
	}
	if math.Abs(snap.Position.Lat()-48.1173) > 1e-4 || math.Abs(snap.Position.Lon()-11.516666) > 1e-4 {
		t.Fatalf("unexpected position %v", snap.Position)
	}
	if snap.SpeedKmh == nil || math.Abs(*snap.SpeedKmh-41.4848) > 1e-3 {
		t.Fatalf("unexpected speed %+v", snap.SpeedKmh)
	}
	if snap.CourseDeg == nil || math.Abs(*snap.CourseDeg-84.4) > 1e-9 {
		t.Fatalf("unexpected course %+v", snap.CourseDeg)
	}
	want := time.Date(1994, 3, 23, 12, 35, 19, 500_000_000, time.UTC)
	if !snap.FixTime.Equal(want) {
		t.Fatalf("fix time=%s want %s", snap.FixTime, want)
	}
	if !snap.ReceivedAt.Equal(now) {
		t.Fatalf("received_at=%s want %s", snap.ReceivedAt, now)
	}
}

func TestNMEAState_RMCVoidDropsFix(t *testing.T) {
	var st nmeaState
	now := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	st.apply(now, mustParse(t, "GPRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W"))
	if !st.apply(now, mustParse(t, "GPRMC,123520,V,,,,,,,230394,,")) {
		t.Fatalf("expected loss of fix to count as an update")
	}
	if st.snapshot().Valid {
		t.Fatalf("expected invalid after void RMC")
	}
	if st.apply(now, mustParse(t, "GPRMC,123521,V,,,,,,,230394,,")) {
		t.Fatalf("second void RMC should not be an update")
	}
}

func TestNMEAState_GGAUpdatesAltitude(t *testing.T) {
	var st nmeaState
	now := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	if !st.apply(now, mustParse(t, "GNGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,")) {
		t.Fatalf("expected updated")
	}
	snap := st.snapshot()
	if snap.AltM == nil || *snap.AltM != 545.4 {
		t.Fatalf("unexpected alt %+v", snap.AltM)
	}
	if snap.FixQuality == nil || *snap.FixQuality != 1 {
		t.Fatalf("expected fix quality 1, got %+v", snap.FixQuality)
	}
	if snap.Satellites == nil || *snap.Satellites != 8 {
		t.Fatalf("expected satellites 8, got %+v", snap.Satellites)
	}
	if snap.HDOP == nil || math.Abs(*snap.HDOP-0.9) > 1e-6 {
		t.Fatalf("expected hdop 0.9, got %+v", snap.HDOP)
	}
}

func TestNMEAState_GGANoFix(t *testing.T) {
	var st nmeaState
	now := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	st.apply(now, mustParse(t, "GNGGA,123519,,,,,0,03,,,M,,M,,"))
	snap := st.snapshot()
	if snap.Valid {
		t.Fatalf("expected no fix")
	}
	if snap.Satellites == nil || *snap.Satellites != 3 {
		t.Fatalf("satellites in view should still be reported: %+v", snap.Satellites)
	}
}

func TestSnapshot_Fresh(t *testing.T) {
	now := time.Date(2020, 1, 1, 0, 0, 10, 0, time.UTC)
	s := Snapshot{Valid: true, ReceivedAt: now.Add(-2 * time.Second)}
	if !s.Fresh(now, 3*time.Second) {
		t.Fatalf("expected fresh")
	}
	if s.Fresh(now, time.Second) {
		t.Fatalf("expected stale")
	}
	s.Valid = false
	if s.Fresh(now, time.Hour) {
		t.Fatalf("invalid fix is never fresh")
	}
}

func TestParseNMEALatLon(t *testing.T) {
	if v, ok := parseNMEALatLon("3545.1234", "S"); !ok || math.Abs(v+35.752057) > 1e-5 {
		t.Fatalf("got %v %v", v, ok)
	}
	if _, ok := parseNMEALatLon("12", "N"); ok {
		t.Fatalf("expected short value rejected")
	}
	if _, ok := parseNMEALatLon("4807.038", "X"); ok {
		t.Fatalf("expected bad hemisphere rejected")
	}
}
