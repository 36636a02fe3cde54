package tracker

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"gnss-tracker/internal/config"
	"gnss-tracker/internal/gps"
	"gnss-tracker/internal/i2c"
	"gnss-tracker/internal/recorder"
	"gnss-tracker/internal/sensors/bm1383"
	"gnss-tracker/internal/sensors/kx122"
	"gnss-tracker/internal/settings"
	"gnss-tracker/internal/storage"
)

// GNSS is the positioning receiver as seen by the control loop.
type GNSS interface {
	Start(ctx context.Context) error
	Sentences() <-chan string
	Snapshot() gps.Snapshot
	Dropped() uint64
	Close()
}

type Accelerometer interface {
	Read() (kx122.Sample, error)
}

type Barometer interface {
	Read() (bm1383.Sample, error)
}

var (
	openVolumeFn  = openVolume
	newGNSSFn     = newGNSS
	openSensorsFn = openSensors
)

func openVolume(root string) (recorder.Volume, error) {
	v, err := storage.Open(root)
	if err != nil {
		return nil, err
	}
	return v, nil
}

func newGNSS(cfg gps.Config, logger *slog.Logger) GNSS {
	return gps.New(cfg, logger)
}

func openSensors(cfg config.I2CConfig) (Accelerometer, Barometer, io.Closer, error) {
	bus, err := i2c.Open(fmt.Sprintf("/dev/i2c-%d", cfg.Bus))
	if err != nil {
		return nil, nil, nil, err
	}
	acc, err := kx122.New(bus.Dev(cfg.AccelAddr))
	if err != nil {
		_ = bus.Close()
		return nil, nil, nil, fmt.Errorf("kx122 init: %w", err)
	}
	baro, err := bm1383.New(bus.Dev(cfg.BaroAddr))
	if err != nil {
		_ = bus.Close()
		return nil, nil, nil, fmt.Errorf("bm1383 init: %w", err)
	}
	return acc, baro, bus, nil
}

// Constellations maps the persisted satellite system onto the receiver
// constellation set.
func Constellations(sys settings.SatelliteSystem) gps.Constellations {
	switch sys {
	case settings.SatGPS:
		return gps.Constellations{GPS: true}
	case settings.SatGLONASS:
		return gps.Constellations{GLONASS: true}
	case settings.SatGPSSBAS:
		return gps.Constellations{GPS: true, SBAS: true}
	case settings.SatGPSGLONASS:
		return gps.Constellations{GPS: true, GLONASS: true}
	case settings.SatGPSQZSSL1CA:
		return gps.Constellations{GPS: true, QZSSL1CA: true}
	case settings.SatGPSQZSSL1CAL1S:
		return gps.Constellations{GPS: true, QZSSL1CA: true, QZSSL1S: true}
	default:
		return gps.Constellations{GPS: true, GLONASS: true, QZSSL1CA: true}
	}
}
