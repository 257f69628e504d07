//go:build rp2040

package main

import (
	"machine"
)

// mcuFlash stages the parameter image in RAM and rewrites the MCU's
// data flash on Commit. The image fits one erase block.
type mcuFlash struct {
	data []byte
}

func newMCUFlash(size int) *mcuFlash {
	f := &mcuFlash{data: make([]byte, size)}
	machine.Flash.ReadAt(f.data, 0)
	return f
}

func (f *mcuFlash) Read(offset int, buf []byte) error {
	copy(buf, f.data[offset:])
	return nil
}

func (f *mcuFlash) Write(offset int, buf []byte) error {
	copy(f.data[offset:], buf)
	return nil
}

func (f *mcuFlash) Commit() error {
	if err := machine.Flash.EraseBlocks(0, 1); err != nil {
		return err
	}
	_, err := machine.Flash.WriteAt(f.data, 0)
	return err
}
