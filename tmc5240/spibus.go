package tmc5240

// SPI is the transfer primitive the bus needs; machine.SPI satisfies it
// on TinyGo targets.
type SPI interface {
	Tx(w, r []byte) error
}

// SPIBus drives one driver chip over its 40-bit SPI datagrams. The chip
// answers a read one datagram late, so ReadRegister issues the request
// twice and takes the second reply.
type SPIBus struct {
	spi SPI
	cs  func(assert bool)
}

// NewSPIBus creates a bus over a shared SPI controller. cs selects the
// chip while a datagram is on the wire.
func NewSPIBus(spi SPI, cs func(assert bool)) *SPIBus {
	return &SPIBus{spi: spi, cs: cs}
}

const writeBit = 0x80

func (b *SPIBus) transfer(addr uint8, value int32) ([5]byte, error) {
	w := [5]byte{
		addr,
		byte(uint32(value) >> 24),
		byte(uint32(value) >> 16),
		byte(uint32(value) >> 8),
		byte(uint32(value)),
	}
	var r [5]byte
	b.cs(true)
	err := b.spi.Tx(w[:], r[:])
	b.cs(false)
	return r, err
}

func (b *SPIBus) WriteRegister(addr uint8, value int32) error {
	_, err := b.transfer(addr|writeBit, value)
	return err
}

func (b *SPIBus) ReadRegister(addr uint8) (int32, error) {
	if _, err := b.transfer(addr, 0); err != nil {
		return 0, err
	}
	r, err := b.transfer(addr, 0)
	if err != nil {
		return 0, err
	}
	v := uint32(r[1])<<24 | uint32(r[2])<<16 | uint32(r[3])<<8 | uint32(r[4])
	return int32(v), nil
}
