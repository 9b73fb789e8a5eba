//go:build !ppc64 && !ppc64le

package cpu

import "sync/atomic"

// msr emulates the machine state register on hosted builds. It starts out
// the way the BSP leaves it once the MMU is on: translation, machine checks
// and recoverable interrupts enabled, FP off.
var msr = MSRME | MSRIR | MSRDR | MSRRI

// ReadMSR returns the emulated machine state register.
func ReadMSR() uint64 {
	return atomic.LoadUint64(&msr)
}

// WriteMSR replaces the emulated machine state register.
func WriteMSR(v uint64) {
	atomic.StoreUint64(&msr, v)
}

// Halt parks the calling thread forever.
func Halt() {
	for {
		park()
	}
}
