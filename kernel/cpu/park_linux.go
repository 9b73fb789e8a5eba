//go:build linux && !ppc64 && !ppc64le

package cpu

import "golang.org/x/sys/unix"

// park blocks the thread until a signal arrives.
func park() {
	unix.Pause()
}
