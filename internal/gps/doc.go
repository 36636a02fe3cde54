// Package gps reads NMEA from a serial GNSS receiver.
//
// It is deliberately small:
//   - RMC gives position, speed, course and the receiver's UTC time
//   - GGA gives fix quality, satellites, HDOP and altitude
//   - PMTK sentences select constellations and the fix interval at start
//
// Raw sentences are forwarded for logging at the positioning interval.
package gps
