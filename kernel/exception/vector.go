package exception

// Vector identifies the exception that fired. The value is the vector offset
// divided by 0x100, as stored by the trap entry code.
type Vector uint32

// Classic PowerPC exception vectors.
const (
	// Reset is the system reset vector (0x100).
	Reset = Vector(0x01)

	// MachineCheck is raised for bus errors (TEA), an asserted machine
	// check pin (MCP) or internal parity errors. SRR1 tells them apart.
	MachineCheck = Vector(0x02)

	// DataAccess (DSI) is raised by a failed data translation or protection
	// check. DAR holds the faulting address.
	DataAccess = Vector(0x03)

	// InstructionAccess (ISI) is raised by a failed instruction fetch.
	InstructionAccess = Vector(0x04)

	// External is an external interrupt.
	External = Vector(0x05)

	// Alignment is raised for misaligned accesses the CPU cannot handle.
	Alignment = Vector(0x06)

	// Program covers illegal instructions, privileged instructions in user
	// mode, traps and enabled FP exceptions.
	Program = Vector(0x07)

	// FPUnavailable is raised by an FP instruction while MSR[FP] is clear.
	FPUnavailable = Vector(0x08)

	// Decrementer fires when the decrementer register wraps.
	Decrementer = Vector(0x09)

	// SystemCall is raised by the sc instruction.
	SystemCall = Vector(0x0c)

	// Trace is raised after each instruction while single-stepping.
	Trace = Vector(0x0d)

	// FPAssist is the FP assist vector found on 60x cores.
	FPAssist = Vector(0x0e)

	// PerformanceMonitor is raised by the performance monitor counters.
	PerformanceMonitor = Vector(0x0f)

	// InstructionTLBMiss is the software tablewalk vector for instruction
	// fetches (603 family).
	InstructionTLBMiss = Vector(0x10)

	// DataLoadTLBMiss is the software tablewalk vector for loads.
	DataLoadTLBMiss = Vector(0x11)

	// DataStoreTLBMiss is the software tablewalk vector for stores.
	DataStoreTLBMiss = Vector(0x12)

	// AddressBreakpoint fires on an instruction address breakpoint match.
	AddressBreakpoint = Vector(0x13)

	// SystemManagement is raised by the SMI pin.
	SystemManagement = Vector(0x14)

	// Thermal is raised by the thermal management unit.
	Thermal = Vector(0x17)
)

var vectorNames = [...]string{
	Reset:              "system reset",
	MachineCheck:       "machine check",
	DataAccess:         "data access",
	InstructionAccess:  "instruction access",
	External:           "external interrupt",
	Alignment:          "alignment",
	Program:            "program",
	FPUnavailable:      "floating point unavailable",
	Decrementer:        "decrementer",
	SystemCall:         "system call",
	Trace:              "trace",
	FPAssist:           "floating point assist",
	PerformanceMonitor: "performance monitor",
	InstructionTLBMiss: "instruction TLB miss",
	DataLoadTLBMiss:    "data load TLB miss",
	DataStoreTLBMiss:   "data store TLB miss",
	AddressBreakpoint:  "address breakpoint",
	SystemManagement:   "system management",
	Thermal:            "thermal management",
}

// String returns a human readable name for v.
func (v Vector) String() string {
	if int(v) < len(vectorNames) && vectorNames[v] != "" {
		return vectorNames[v]
	}
	return "unknown"
}
