package i2c

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrWrongID is returned by CheckID when the identification register does
// not hold the expected value, usually another part at the same address.
var ErrWrongID = errors.New("i2c: unexpected device id")

// RegIO is the register access the sensor drivers need. *Dev implements it;
// tests use register maps.
type RegIO interface {
	ReadRegU8(reg byte) (byte, error)
	ReadReg(reg byte, dst []byte) error
	WriteReg(reg, value byte) error
}

// RegWrite is one step of a sensor configuration sequence.
type RegWrite struct {
	Name  string
	Reg   byte
	Value byte
}

// CheckID reads reg and compares it with want.
func CheckID(r RegIO, reg, want byte) error {
	got, err := r.ReadRegU8(reg)
	if err != nil {
		return err
	}
	if got != want {
		return fmt.Errorf("%w: reg 0x%02X=0x%02X want 0x%02X", ErrWrongID, reg, got, want)
	}
	return nil
}

// Configure writes steps in order and stops at the first failure.
func Configure(r RegIO, steps ...RegWrite) error {
	for _, s := range steps {
		if err := r.WriteReg(s.Reg, s.Value); err != nil {
			return fmt.Errorf("%s (0x%02X<-0x%02X): %w", s.Name, s.Reg, s.Value, err)
		}
	}
	return nil
}

// ReadInt16LE fills dst with consecutive little-endian signed words starting
// at reg, as accelerometer output registers are laid out.
func ReadInt16LE(r RegIO, reg byte, dst []int16) error {
	if len(dst) == 0 {
		return nil
	}
	buf := make([]byte, 2*len(dst))
	if err := r.ReadReg(reg, buf); err != nil {
		return err
	}
	for i := range dst {
		dst[i] = int16(binary.LittleEndian.Uint16(buf[2*i:]))
	}
	return nil
}
