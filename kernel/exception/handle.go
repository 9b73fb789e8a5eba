package exception

// Default is the dispatcher behind Handle and Install. Until Init runs it
// has no executive, so every exception is reported as happening in
// initialization code and is fatal.
var Default = New(Config{})

// Init replaces the default dispatcher. It must be called at startup, before
// interrupts are enabled and before any task calls Install.
func Init(cfg Config) {
	Default = New(cfg)
}

// Handle is the entry point used by the trap trampoline for every vector
// routed to the default handler.
func Handle(f *Frame) {
	Default.Dispatch(f)
}

// Install associates ext with the calling task using the default
// dispatcher. See Dispatcher.Install.
func Install(ext *Extension) *Extension {
	return Default.Install(ext)
}

// Core returns the registers of the last exception handled by the default
// dispatcher.
func Core() CoreRegisters {
	return Default.CoreRegisters()
}
