package bm1383

import (
	"fmt"
	"time"

	"gnss-tracker/internal/i2c"
)

var sleep = time.Sleep

// Minimal ROHM BM1383AGLV driver: probe, continuous measurement with 64x
// averaging, pressure and temperature reads.

const (
	addrDefault = 0x5D

	regID     = 0x10
	chipID    = 0x32
	regPower  = 0x12
	regReset  = 0x13
	regMode   = 0x14
	regTempH  = 0x1A // TEMP_H, TEMP_L, PRESS_MSB, PRESS_LSB, PRESS_XL
	blockLen  = 5
	powerUp   = 0x01
	resetRel  = 0x01
	modeAve64 = 0xC0
	modeCont  = 0x02

	countsPerHPa = 2048.0
	countsPerC   = 32.0
)

type Sample struct {
	Time        time.Time
	PressureHPa float64
	TempC       float64
}

type Device struct {
	dev i2c.RegIO
	now func() time.Time
}

func DefaultAddress() uint16 { return addrDefault }

func New(dev *i2c.Dev) (*Device, error) {
	if dev == nil {
		return nil, fmt.Errorf("bm1383: dev is nil")
	}
	return newWithIO(dev)
}

func newWithIO(dev i2c.RegIO) (*Device, error) {
	if dev == nil {
		return nil, fmt.Errorf("bm1383: dev is nil")
	}
	d := &Device{dev: dev, now: time.Now}

	if err := i2c.CheckID(d.dev, regID, chipID); err != nil {
		return nil, fmt.Errorf("bm1383: chip id: %w", err)
	}

	if err := i2c.Configure(d.dev, i2c.RegWrite{Name: "power up", Reg: regPower, Value: powerUp}); err != nil {
		return nil, fmt.Errorf("bm1383: %w", err)
	}
	// Datasheet: wait at least 2 ms between power up and reset release.
	sleep(2 * time.Millisecond)
	if err := i2c.Configure(d.dev,
		i2c.RegWrite{Name: "reset release", Reg: regReset, Value: resetRel},
		i2c.RegWrite{Name: "mode", Reg: regMode, Value: modeAve64 | modeCont},
	); err != nil {
		return nil, fmt.Errorf("bm1383: %w", err)
	}
	// 64x averaging needs ~240 ms for the first conversion.
	sleep(240 * time.Millisecond)

	return d, nil
}

// Read returns pressure in hPa and temperature in degrees C.
func (d *Device) Read() (Sample, error) {
	var buf [blockLen]byte
	if err := d.dev.ReadReg(regTempH, buf[:]); err != nil {
		return Sample{}, fmt.Errorf("bm1383: read data failed: %w", err)
	}
	rawT := int16(uint16(buf[0])<<8 | uint16(buf[1]))
	rawP := (uint32(buf[2])<<16 | uint32(buf[3])<<8 | uint32(buf[4]&0xFC)) >> 2

	return Sample{
		Time:        d.now().UTC(),
		PressureHPa: float64(rawP) / countsPerHPa,
		TempC:       float64(rawT) / countsPerC,
	}, nil
}
