// Package kernel contains the types shared by all BSP kernel packages.
package kernel

// Error describes a BSP error. Errors returned on the exception path must be
// defined as package-level *Error values; code running at fault priority
// must not allocate, so errors.New and fmt.Errorf are off limits there.
type Error struct {
	// The package that reported the error.
	Module string

	// The error message.
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}
