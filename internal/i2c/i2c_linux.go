//go:build linux

// Package i2c talks to sensors on a Linux /dev/i2c-* bus.
package i2c

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Register reads go out through I2C_RDWR as a write of the register address
// followed by a read with a repeated start, which both the accelerometer and
// the barometer require.

const (
	ioctlRdwr = 0x0707
	flagRead  = 0x0001
)

// i2cMsg mirrors struct i2c_msg.
type i2cMsg struct {
	addr  uint16
	flags uint16
	len   uint16
	buf   uintptr
}

// rdwrIoctlData mirrors struct i2c_rdwr_ioctl_data.
type rdwrIoctlData struct {
	msgs  uintptr
	nmsgs uint32
}

var errNoDevice = errors.New("i2c: device is nil")

// Bus is an opened adapter such as /dev/i2c-1. It is not safe for
// concurrent transfers; the control loop is the only caller.
type Bus struct {
	f    *os.File
	path string
}

func Open(path string) (*Bus, error) {
	path = filepath.Clean(path)
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("i2c: open %s: %w", path, err)
	}
	return &Bus{f: f, path: path}, nil
}

func (b *Bus) Path() string {
	if b == nil {
		return ""
	}
	return b.path
}

func (b *Bus) Close() error {
	if b == nil || b.f == nil {
		return nil
	}
	err := b.f.Close()
	b.f = nil
	return err
}

// Dev returns the sensor at the 7-bit address addr. The address is checked
// on first use.
func (b *Bus) Dev(addr uint16) *Dev {
	if b == nil {
		return nil
	}
	return &Dev{bus: b, addr: addr}
}

// Dev is one register-addressed sensor on a Bus.
type Dev struct {
	bus  *Bus
	addr uint16
}

var _ RegIO = (*Dev)(nil)

func (d *Dev) Addr() uint16 {
	if d == nil {
		return 0
	}
	return d.addr
}

// ReadReg reads len(dst) bytes starting at reg.
func (d *Dev) ReadReg(reg byte, dst []byte) error {
	if len(dst) == 0 {
		return nil
	}
	addr := [1]byte{reg}
	return d.transfer(
		i2cMsg{len: 1, buf: uintptr(unsafe.Pointer(&addr[0]))},
		i2cMsg{flags: flagRead, len: uint16(len(dst)), buf: uintptr(unsafe.Pointer(&dst[0]))},
	)
}

func (d *Dev) ReadRegU8(reg byte) (byte, error) {
	var v [1]byte
	if err := d.ReadReg(reg, v[:]); err != nil {
		return 0, err
	}
	return v[0], nil
}

func (d *Dev) WriteReg(reg, value byte) error {
	frame := [2]byte{reg, value}
	return d.transfer(i2cMsg{len: 2, buf: uintptr(unsafe.Pointer(&frame[0]))})
}

// transfer issues msgs as one combined transaction addressed to d.
func (d *Dev) transfer(msgs ...i2cMsg) error {
	if d == nil || d.bus == nil || d.bus.f == nil {
		return errNoDevice
	}
	if d.addr == 0 || d.addr > 0x7F {
		return fmt.Errorf("i2c: invalid addr 0x%X", d.addr)
	}
	if len(msgs) == 0 {
		return nil
	}
	for i := range msgs {
		msgs[i].addr = d.addr
	}

	data := rdwrIoctlData{msgs: uintptr(unsafe.Pointer(&msgs[0])), nmsgs: uint32(len(msgs))}
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, d.bus.f.Fd(), uintptr(ioctlRdwr), uintptr(unsafe.Pointer(&data)))
	if errno != 0 {
		return fmt.Errorf("i2c: addr 0x%02X on %s: %w", d.addr, d.bus.path, errno)
	}
	return nil
}
