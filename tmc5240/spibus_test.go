package tmc5240

import "testing"

// loopSPI records datagrams and plays back a scripted reply.
type loopSPI struct {
	sent  [][]byte
	reply []byte
}

func (s *loopSPI) Tx(w, r []byte) error {
	s.sent = append(s.sent, append([]byte(nil), w...))
	copy(r, s.reply)
	return nil
}

func TestSPIBusWriteDatagram(t *testing.T) {
	spi := &loopSPI{reply: make([]byte, 5)}
	csLog := []bool{}
	bus := NewSPIBus(spi, func(a bool) { csLog = append(csLog, a) })

	if err := bus.WriteRegister(RegXTarget, -2); err != nil {
		t.Fatal(err)
	}
	want := []byte{RegXTarget | 0x80, 0xFF, 0xFF, 0xFF, 0xFE}
	if len(spi.sent) != 1 || string(spi.sent[0]) != string(want) {
		t.Errorf("datagram = %x, want %x", spi.sent[0], want)
	}
	if len(csLog) != 2 || !csLog[0] || csLog[1] {
		t.Errorf("chip select sequence = %v", csLog)
	}
}

func TestSPIBusReadTakesSecondReply(t *testing.T) {
	spi := &loopSPI{reply: []byte{0, 0x00, 0x01, 0x02, 0x03}}
	bus := NewSPIBus(spi, func(bool) {})

	v, err := bus.ReadRegister(RegXActual)
	if err != nil {
		t.Fatal(err)
	}
	if v != 0x00010203 {
		t.Errorf("value = %#x", v)
	}
	if len(spi.sent) != 2 {
		t.Fatalf("%d transfers, want 2", len(spi.sent))
	}
	if spi.sent[0][0]&0x80 != 0 {
		t.Error("read datagram carries the write bit")
	}
}
