package params

import (
	"encoding/binary"

	"github.com/MCFLab/PicoStageDriver/storage"
)

// Persisted image layout, little-endian int32s:
//
//	version | device[4] | cs[4] | role[4] | axis[4][34] | remote[4][5]
const imageWords = 1 + 3*MaxAxes + MaxAxes*NumAxisParams + MaxAxes*NumRemoteParams

// ImageSize is the byte size of the persisted parameter image.
const ImageSize = 4 * imageWords

type imageCursor struct {
	buf []byte
	off int
}

func (c *imageCursor) put(v int32) {
	binary.LittleEndian.PutUint32(c.buf[c.off:], uint32(v))
	c.off += 4
}

func (c *imageCursor) get() int32 {
	v := int32(binary.LittleEndian.Uint32(c.buf[c.off:]))
	c.off += 4
	return v
}

// SaveToFlash writes the current state as a versioned image and commits.
func (s *Store) SaveToFlash(f storage.Flash) error {
	c := &imageCursor{buf: make([]byte, ImageSize)}
	c.put(Version)
	for a := 0; a < MaxAxes; a++ {
		c.put(int32(s.Device[a]))
	}
	for a := 0; a < MaxAxes; a++ {
		c.put(s.CS[a])
	}
	for a := 0; a < MaxAxes; a++ {
		c.put(int32(s.Role[a]))
	}
	for a := 0; a < MaxAxes; a++ {
		for i := 0; i < NumAxisParams; i++ {
			c.put(s.Axis[a][i])
		}
	}
	for a := 0; a < MaxAxes; a++ {
		for i := 0; i < NumRemoteParams; i++ {
			c.put(s.Remote[a][i])
		}
	}
	if err := f.Write(0, c.buf); err != nil {
		return s.fail("Could not save config to flash")
	}
	if err := f.Commit(); err != nil {
		return s.fail("Could not save config to flash")
	}
	return nil
}

// LoadFromFlash replaces the state with the stored image. On a version
// mismatch every slot is set to DeviceNone, a parameter fault is latched
// and nothing else is loaded.
func (s *Store) LoadFromFlash(f storage.Flash) error {
	c := &imageCursor{buf: make([]byte, ImageSize)}
	if err := f.Read(0, c.buf); err != nil {
		return s.fail("Could not read config from flash")
	}
	if v := c.get(); v != Version {
		for a := 0; a < MaxAxes; a++ {
			s.Device[a] = DeviceNone
		}
		return s.fail("Version mismatch in flash")
	}
	for a := 0; a < MaxAxes; a++ {
		s.Device[a] = DeviceType(c.get())
	}
	for a := 0; a < MaxAxes; a++ {
		s.CS[a] = c.get()
	}
	for a := 0; a < MaxAxes; a++ {
		s.Role[a] = AxisRole(c.get())
	}
	for a := 0; a < MaxAxes; a++ {
		for i := 0; i < NumAxisParams; i++ {
			s.Axis[a][i] = c.get()
		}
	}
	for a := 0; a < MaxAxes; a++ {
		for i := 0; i < NumRemoteParams; i++ {
			s.Remote[a][i] = c.get()
		}
	}
	return nil
}
