//go:build ppc64 || ppc64le

package cpu

// ReadMSR returns the contents of the machine state register.
func ReadMSR() uint64

// WriteMSR loads v into the machine state register and issues an isync so
// the new state is in effect for the next instruction.
func WriteMSR(v uint64)

// Halt spins forever with external interrupts left as they are.
func Halt()
