package tmc5240

import "testing"

type mapBus map[uint8]int32

func (m mapBus) ReadRegister(addr uint8) (int32, error) { return m[addr], nil }
func (m mapBus) WriteRegister(addr uint8, v int32) error {
	m[addr] = v
	return nil
}

func TestWriteFieldPreservesNeighbors(t *testing.T) {
	b := mapBus{RegIHoldIRun: 0}
	if err := WriteField(b, FieldIRun, 12); err != nil {
		t.Fatal(err)
	}
	if err := WriteField(b, FieldIHold, 8); err != nil {
		t.Fatal(err)
	}
	if got := b[RegIHoldIRun]; got != 12<<8|8 {
		t.Errorf("IHOLD_IRUN = %#x, want %#x", got, 12<<8|8)
	}
	if v, _ := ReadField(b, FieldIRun); v != 12 {
		t.Errorf("IRUN read back %d, want 12", v)
	}
}

func TestSignedFieldRoundTrip(t *testing.T) {
	for _, want := range []int32{-64, -1, 0, 5, 63} {
		b := mapBus{}
		if err := WriteField(b, FieldSGT, want); err != nil {
			t.Fatal(err)
		}
		got, err := ReadField(b, FieldSGT)
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Errorf("SGT round trip %d -> %d", want, got)
		}
	}
}

func TestTemperatureC(t *testing.T) {
	if got := TemperatureC(2038); got != 0 {
		t.Errorf("TemperatureC(2038) = %d, want 0", got)
	}
	if got := TemperatureC(2038 + 77); got != 10 {
		t.Errorf("TemperatureC(+77) = %d, want 10", got)
	}
}
