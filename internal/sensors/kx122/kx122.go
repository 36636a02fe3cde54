package kx122

import (
	"fmt"
	"time"

	"gnss-tracker/internal/i2c"
)

var sleep = time.Sleep

// Minimal Kionix KX122 driver: probe, ±2g high-resolution mode at 50 Hz,
// acceleration reads.

const (
	addrDefault = 0x1F
	addrAlt     = 0x1E

	regXoutL  = 0x06
	regWhoAmI = 0x0F
	whoAmIVal = 0x1B
	regCntl1  = 0x18
	regODCntl = 0x1B

	cntl1PC1  = 0x80 // operating mode
	cntl1RES  = 0x40 // high resolution
	cntl1GSel = 0x00 // ±2g
	odr50Hz   = 0x02

	countsPerG2 = 16384.0
)

type Sample struct {
	Time time.Time
	// Acceleration in g.
	Ax, Ay, Az float64
}

type Device struct {
	dev   i2c.RegIO
	scale float64
	now   func() time.Time
}

func DefaultAddress() uint16 { return addrDefault }

// AltAddress is the address with the ADDR pin tied low.
func AltAddress() uint16 { return addrAlt }

func New(dev *i2c.Dev) (*Device, error) {
	if dev == nil {
		return nil, fmt.Errorf("kx122: dev is nil")
	}
	return newWithIO(dev)
}

func newWithIO(dev i2c.RegIO) (*Device, error) {
	if dev == nil {
		return nil, fmt.Errorf("kx122: dev is nil")
	}
	d := &Device{dev: dev, scale: 1.0 / countsPerG2, now: time.Now}

	if err := i2c.CheckID(d.dev, regWhoAmI, whoAmIVal); err != nil {
		return nil, fmt.Errorf("kx122: who_am_i: %w", err)
	}

	// Settings only take effect in standby (PC1=0).
	if err := i2c.Configure(d.dev,
		i2c.RegWrite{Name: "cntl1 standby", Reg: regCntl1, Value: cntl1RES | cntl1GSel},
		i2c.RegWrite{Name: "odcntl", Reg: regODCntl, Value: odr50Hz},
		i2c.RegWrite{Name: "cntl1 operate", Reg: regCntl1, Value: cntl1PC1 | cntl1RES | cntl1GSel},
	); err != nil {
		return nil, fmt.Errorf("kx122: %w", err)
	}
	// First sample is ready after 1/ODR plus start-up time.
	sleep(25 * time.Millisecond)

	return d, nil
}

// Read returns the latest acceleration sample.
func (d *Device) Read() (Sample, error) {
	var v [3]int16
	if err := i2c.ReadInt16LE(d.dev, regXoutL, v[:]); err != nil {
		return Sample{}, fmt.Errorf("kx122: read data failed: %w", err)
	}
	return Sample{
		Time: d.now().UTC(),
		Ax:   float64(v[0]) * d.scale,
		Ay:   float64(v[1]) * d.scale,
		Az:   float64(v[2]) * d.scale,
	}, nil
}
