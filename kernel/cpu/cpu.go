// Package cpu exposes the PowerPC machine state register and the halt
// primitive used by the exception handler.
package cpu

// Machine state register bits (32-bit PowerPC numbering).
const (
	MSRLE  = uint64(1 << 0)  // little-endian mode
	MSRRI  = uint64(1 << 1)  // recoverable interrupt
	MSRDR  = uint64(1 << 4)  // data address translation
	MSRIR  = uint64(1 << 5)  // instruction address translation
	MSRIP  = uint64(1 << 6)  // exception prefix
	MSRFE1 = uint64(1 << 8)  // FP exception mode 1
	MSRBE  = uint64(1 << 9)  // branch trace
	MSRSE  = uint64(1 << 10) // single-step trace
	MSRFE0 = uint64(1 << 11) // FP exception mode 0
	MSRME  = uint64(1 << 12) // machine check enable
	MSRFP  = uint64(1 << 13) // floating point available
	MSRPR  = uint64(1 << 14) // problem state
	MSREE  = uint64(1 << 15) // external interrupt enable
)

// EnableFP sets MSR[FP] so that floating point instructions executed after
// the exception returns do not trap.
func EnableFP() {
	WriteMSR(ReadMSR() | MSRFP)
}
