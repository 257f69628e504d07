// Package tmc5240 defines the register map of the TMC5240 stepper driver
// IC and small helpers for packing and unpacking register fields. The
// actual transport (SPI on the target, a scripted fake in tests) sits
// behind the Bus interface.
package tmc5240

// Bus reads and writes driver registers. Implementations select the chip
// themselves; one Bus serves one IC.
type Bus interface {
	ReadRegister(addr uint8) (int32, error)
	WriteRegister(addr uint8, value int32) error
}

// Register addresses.
const (
	RegGCONF         uint8 = 0x00
	RegGSTAT         uint8 = 0x01
	RegDRVCONF       uint8 = 0x05
	RegGlobalScaler  uint8 = 0x06
	RegIHoldIRun     uint8 = 0x10
	RegTCoolThrs     uint8 = 0x14
	RegRampMode      uint8 = 0x20
	RegXActual       uint8 = 0x21
	RegAMax          uint8 = 0x26
	RegVMax          uint8 = 0x27
	RegDMax          uint8 = 0x28
	RegXTarget       uint8 = 0x2D
	RegSWMode        uint8 = 0x34
	RegRampStat      uint8 = 0x35
	RegXLatch        uint8 = 0x36
	RegEncMode       uint8 = 0x38
	RegXEnc          uint8 = 0x39
	RegEncConst      uint8 = 0x3A
	RegEncStatus     uint8 = 0x3B
	RegEncDeviation  uint8 = 0x3D
	RegVirtualStopL  uint8 = 0x3E
	RegVirtualStopR  uint8 = 0x3F
	RegADCTemp       uint8 = 0x51
	RegOTWOVVth      uint8 = 0x52
	RegChopConf      uint8 = 0x6C
	RegCoolConf      uint8 = 0x6D
	RegDrvStatus     uint8 = 0x6F
)

// Ramp modes (RAMPMODE register).
const (
	RampModePosition int32 = 0
	RampModeVelPos   int32 = 1
	RampModeVelNeg   int32 = 2
)

// GSTAT flag bits. Writing a set bit clears it.
const (
	GStatReset         int32 = 1 << 0
	GStatDrvErr        int32 = 1 << 1
	GStatUVCP          int32 = 1 << 2
	GStatRegisterReset int32 = 1 << 3
	GStatVMUVLO        int32 = 1 << 4
)

// ENC_STATUS flag bits. Writing a set bit clears it.
const (
	EncStatusNEvent        int32 = 1 << 0
	EncStatusDeviationWarn int32 = 1 << 1
)

// RAMP_STAT flag bits.
const (
	RampStatStopL        int32 = 1 << 0
	RampStatStopR        int32 = 1 << 1
	RampStatLatchL       int32 = 1 << 2
	RampStatLatchR       int32 = 1 << 3
	RampStatEventStopL   int32 = 1 << 4
	RampStatEventStopR   int32 = 1 << 5
	RampStatEventStopSG  int32 = 1 << 6
	RampStatEventPosDone int32 = 1 << 7
	RampStatPosReached   int32 = 1 << 9
	RampStatVZero        int32 = 1 << 10
	RampStatStatusSG     int32 = 1 << 13
	RampStatVirtStopL    int32 = 1 << 14
	RampStatVirtStopR    int32 = 1 << 15
)

// DRV_STATUS flag bits.
const (
	DrvStatusS2VSA      int32 = 1 << 12
	DrvStatusS2VSB      int32 = 1 << 13
	DrvStatusStallGuard int32 = 1 << 24
	DrvStatusOT         int32 = 1 << 25
	DrvStatusOTPW       int32 = 1 << 26
	DrvStatusS2GA       int32 = 1 << 27
	DrvStatusS2GB       int32 = 1 << 28
	DrvStatusOLA        int32 = 1 << 29
	DrvStatusOLB        int32 = 1 << 30
	DrvStatusStandstill int32 = -1 << 31
)

// Field describes a bit field within a register. Signed fields are sign
// extended on read and masked on write.
type Field struct {
	Reg    uint8
	Mask   uint32
	Shift  uint8
	Signed bool
}

// Fields used by the axis driver.
var (
	FieldShaft        = Field{Reg: RegGCONF, Mask: 1 << 4, Shift: 4}
	FieldCurrentRange = Field{Reg: RegDRVCONF, Mask: 0x3, Shift: 0}
	FieldIHold        = Field{Reg: RegIHoldIRun, Mask: 0x1F, Shift: 0}
	FieldIRun         = Field{Reg: RegIHoldIRun, Mask: 0x1F << 8, Shift: 8}
	FieldTOff         = Field{Reg: RegChopConf, Mask: 0xF, Shift: 0}
	FieldMRes         = Field{Reg: RegChopConf, Mask: 0xF << 24, Shift: 24}
	FieldSGT          = Field{Reg: RegCoolConf, Mask: 0x7F << 16, Shift: 16, Signed: true}

	FieldStopLEnable    = Field{Reg: RegSWMode, Mask: 1 << 0, Shift: 0}
	FieldStopREnable    = Field{Reg: RegSWMode, Mask: 1 << 1, Shift: 1}
	FieldPolarityL      = Field{Reg: RegSWMode, Mask: 1 << 2, Shift: 2}
	FieldPolarityR      = Field{Reg: RegSWMode, Mask: 1 << 3, Shift: 3}
	FieldSwapLR         = Field{Reg: RegSWMode, Mask: 1 << 4, Shift: 4}
	FieldLatchLActive   = Field{Reg: RegSWMode, Mask: 1 << 5, Shift: 5}
	FieldLatchRActive   = Field{Reg: RegSWMode, Mask: 1 << 7, Shift: 7}
	FieldSGStop         = Field{Reg: RegSWMode, Mask: 1 << 10, Shift: 10}
	FieldSoftStop       = Field{Reg: RegSWMode, Mask: 1 << 11, Shift: 11}
	FieldVirtStopLEn    = Field{Reg: RegSWMode, Mask: 1 << 12, Shift: 12}
	FieldVirtStopREn    = Field{Reg: RegSWMode, Mask: 1 << 13, Shift: 13}
	FieldVirtStopEnc    = Field{Reg: RegSWMode, Mask: 1 << 14, Shift: 14}

	FieldEncIgnoreAB  = Field{Reg: RegEncMode, Mask: 1 << 3, Shift: 3}
	FieldEncClrCont   = Field{Reg: RegEncMode, Mask: 1 << 4, Shift: 4}
	FieldEncNEdge     = Field{Reg: RegEncMode, Mask: 0x3 << 6, Shift: 6}
	FieldEncLatchXAct = Field{Reg: RegEncMode, Mask: 1 << 9, Shift: 9}
	FieldEncDecimal   = Field{Reg: RegEncMode, Mask: 1 << 10, Shift: 10}

	FieldEncNEvent        = Field{Reg: RegEncStatus, Mask: 1 << 0, Shift: 0}
	FieldEncDeviationWarn = Field{Reg: RegEncStatus, Mask: 1 << 1, Shift: 1}

	FieldADCTemp = Field{Reg: RegADCTemp, Mask: 0x1FFF, Shift: 0}
	FieldOTWVth  = Field{Reg: RegOTWOVVth, Mask: 0x1FFF, Shift: 0}
)

// ReadField reads the register behind f and extracts the field value.
func ReadField(b Bus, f Field) (int32, error) {
	raw, err := b.ReadRegister(f.Reg)
	if err != nil {
		return 0, err
	}
	v := (uint32(raw) & f.Mask) >> f.Shift
	if f.Signed {
		width := f.Mask >> f.Shift
		bits := uint(0)
		for width > 0 {
			width >>= 1
			bits++
		}
		if v&(1<<(bits-1)) != 0 {
			return int32(v) - int32(1<<bits), nil
		}
	}
	return int32(v), nil
}

// WriteField read-modify-writes the field to value.
func WriteField(b Bus, f Field, value int32) error {
	raw, err := b.ReadRegister(f.Reg)
	if err != nil {
		return err
	}
	out := (uint32(raw) &^ f.Mask) | ((uint32(value) << f.Shift) & f.Mask)
	return b.WriteRegister(f.Reg, int32(out))
}

// TemperatureADC is the raw ADC value at 0 degC offset removed; degC =
// (adc - 2038) / 7.7 per the IC datasheet.
const (
	tempADCOffset = 2038
	tempADCSlope  = 7.7
)

// TemperatureC converts a raw ADC_TEMP field value to degrees Celsius,
// truncated to an integer for the status vector.
func TemperatureC(adc int32) int32 {
	return int32(float64(adc-tempADCOffset) / tempADCSlope)
}

// OvertempPrewarnADC is the ADC threshold programmed into OTW_OV_VTH at
// configure time, about 120 degC.
const OvertempPrewarnADC int32 = 0xB92
