//go:build rp2040

package main

import (
	"machine"
)

// serialPort adapts the USB CDC console to the dispatcher's polled line
// interface. Bytes are drained into a line buffer on every ReadLine so
// the 64-byte CDC FIFO never overflows between polls.
type serialPort struct {
	buf []byte
}

func newSerialPort() *serialPort {
	return &serialPort{buf: make([]byte, 0, 256)}
}

func (p *serialPort) ReadLine() (string, bool) {
	for machine.Serial.Buffered() > 0 {
		b, err := machine.Serial.ReadByte()
		if err != nil {
			break
		}
		if b == '\n' || b == '\r' {
			if len(p.buf) == 0 {
				continue
			}
			line := string(p.buf)
			p.buf = p.buf[:0]
			return line, true
		}
		p.buf = append(p.buf, b)
	}
	return "", false
}

func (p *serialPort) WriteLine(s string) {
	machine.Serial.Write([]byte(s))
	machine.Serial.Write([]byte{'\n'})
}

// uartLink adapts UART1 to the pendant relay.
type uartLink struct {
	uart *machine.UART
}

func (u *uartLink) Available() int { return u.uart.Buffered() }

// the hardware FIFO plus the driver's ring buffer always have room for
// one frame at the relay's cadence
func (u *uartLink) AvailableForWrite() int { return 64 }

func (u *uartLink) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) && u.uart.Buffered() > 0 {
		b, err := u.uart.ReadByte()
		if err != nil {
			break
		}
		p[n] = b
		n++
	}
	return n, nil
}

func (u *uartLink) Write(p []byte) (int, error) { return u.uart.Write(p) }
