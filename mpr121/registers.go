package mpr121

// NumElectrodes is the number of sensing channels.
const NumElectrodes = 12

// DefaultAddress is the bus address used when none is given (ADDR pin tied to SDA).
const DefaultAddress = 0x5C

// The chip answers on 0x5A-0x5D depending on the ADDR pin wiring.
const (
	minAddress = 0x5A
	maxAddress = 0x5D
)

// Register map.
// Datasheet: https://www.nxp.com/docs/en/data-sheet/MPR121.pdf
const (
	regTouchStatusL  byte = 0x00
	regTouchStatusH  byte = 0x01
	regOORStatusL    byte = 0x02
	regOORStatusH    byte = 0x03
	regFilteredData0 byte = 0x04 // 13 x 16-bit little endian, 10 significant bits
	regBaseline0     byte = 0x1E // 13 x 8-bit, upper 8 of 10 bits

	regMHDR byte = 0x2B
	regNHDR byte = 0x2C
	regNCLR byte = 0x2D
	regFDLR byte = 0x2E
	regMHDF byte = 0x2F
	regNHDF byte = 0x30
	regNCLF byte = 0x31
	regFDLF byte = 0x32
	regNHDT byte = 0x33
	regNCLT byte = 0x34
	regFDLT byte = 0x35

	regMHDPROXR byte = 0x36
	regNHDPROXR byte = 0x37
	regNCLPROXR byte = 0x38
	regFDLPROXR byte = 0x39
	regMHDPROXF byte = 0x3A
	regNHDPROXF byte = 0x3B
	regNCLPROXF byte = 0x3C
	regFDLPROXF byte = 0x3D
	regNHDPROXT byte = 0x3E
	regNCLPROXT byte = 0x3F
	regFDLPROXT byte = 0x40

	regTouchThreshold0   byte = 0x41 // touch and release thresholds interleaved
	regReleaseThreshold0 byte = 0x42

	regDebounce byte = 0x5B
	regAFE1     byte = 0x5C
	regAFE2     byte = 0x5D
	regECR      byte = 0x5E

	regGPIOFirst byte = 0x73
	regGPIOLast  byte = 0x7A

	regACCR0 byte = 0x7B
	regACCR1 byte = 0x7C
	regUSL   byte = 0x7D
	regLSL   byte = 0x7E
	regTL    byte = 0x7F

	regSoftReset byte = 0x80
)

const (
	softResetValue = 0x63
	// AFE2 content after a soft reset; anything else means the chip did not reset.
	afe2ResetValue = 0x24
	// TS2 bit 7: over current on REXT pin
	overcurrentFlag = 0x80
	// ESI bits of AFE2
	samplePeriodMask = 0x07
	touchStatusMask  = 0x0FFF
	filteredDataMask = 0x03FF
)

// writableWhileRunning reports whether reg may be written while the chip is in run mode.
func writableWhileRunning(reg byte) bool {
	return reg == regECR || (reg >= regGPIOFirst && reg <= regGPIOLast)
}

// Default register configuration applied at handshake and reset.
const (
	DefaultTouchThreshold   = 40
	DefaultReleaseThreshold = 20
	// run mode: baseline tracking with 5 MSB initial value, proximity off, ELE0-ELE11 enabled
	defaultECR = 0xCC
)

type regValue struct {
	reg byte
	val byte
}

// defaultSettings are written in order with the chip stopped; thresholds are
// written separately.
var defaultSettings = []regValue{
	{regMHDR, 0x01},
	{regNHDR, 0x01},
	{regNCLR, 0x10},
	{regFDLR, 0x20},
	{regMHDF, 0x01},
	{regNHDF, 0x01},
	{regNCLF, 0x10},
	{regFDLF, 0x20},
	{regNHDT, 0x01},
	{regNCLT, 0x10},
	{regFDLT, 0xFF},
	{regMHDPROXR, 0x0F},
	{regNHDPROXR, 0x0F},
	{regNCLPROXR, 0x00},
	{regFDLPROXR, 0x00},
	{regMHDPROXF, 0x01},
	{regNHDPROXF, 0x01},
	{regNCLPROXF, 0xFF},
	{regFDLPROXF, 0xFF},
	{regNHDPROXT, 0x00},
	{regNCLPROXT, 0x00},
	{regFDLPROXT, 0x00},
	{regDebounce, 0x11},
	{regAFE1, 0xFF},
	{regAFE2, 0x30},
	{regACCR0, 0x00},
	{regACCR1, 0x00},
	{regUSL, 0x00},
	{regLSL, 0x00},
	{regTL, 0x00},
}
