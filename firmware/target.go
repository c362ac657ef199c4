//go:build tinygo

package main

import (
	"errors"
	"machine"

	"github.com/itohio/gofws/pkg/bus"
)

var errNotListening = errors.New("i2c target not listening")

// i2cTarget adapts the TinyGo I2C peripheral in target mode to bus.Target.
type i2cTarget struct {
	i2c       *machine.I2C
	sda, scl  machine.Pin
	listening bool

	rx    [16]byte
	rxLen int
}

var _ bus.Target = (*i2cTarget)(nil)

func newI2CTarget(i2c *machine.I2C, sda, scl machine.Pin) *i2cTarget {
	return &i2cTarget{i2c: i2c, sda: sda, scl: scl}
}

func (t *i2cTarget) Configure(addr7 uint8, frequencyHz uint32) error {
	err := t.i2c.Configure(machine.I2CConfig{
		Frequency: frequencyHz,
		SDA:       t.sda,
		SCL:       t.scl,
		Mode:      machine.I2CModeTarget,
	})
	if err != nil {
		return err
	}
	if err := t.i2c.Listen(uint16(addr7)); err != nil {
		return err
	}
	t.listening = true
	return nil
}

func (t *i2cTarget) Stop() {
	t.listening = false
	t.rxLen = 0
}

// Receive waits for the next transaction. Bytes written by the controller
// are kept for Read. WaitForEvent has no timeout; it yields to the scheduler
// while the bus is idle.
func (t *i2cTarget) Receive() bus.Request {
	if !t.listening {
		return bus.NoData
	}

	evt, n, err := t.i2c.WaitForEvent(t.rx[:])
	if err != nil {
		return bus.NoData
	}
	switch evt {
	case machine.I2CRequest:
		return bus.ReadAddressed
	case machine.I2CReceive:
		t.rxLen = n
		return bus.WriteAddressed
	default:
		return bus.NoData
	}
}

func (t *i2cTarget) Read(buf []byte) error {
	if !t.listening {
		return errNotListening
	}
	copy(buf, t.rx[:t.rxLen])
	t.rxLen = 0
	return nil
}

func (t *i2cTarget) Write(buf []byte) error {
	if !t.listening {
		return errNotListening
	}
	return t.i2c.Reply(buf)
}
