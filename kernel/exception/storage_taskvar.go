//go:build !bsp_notepad

package exception

import "ppcbsp/kernel/task"

// defaultStorage keeps extensions in a task variable.
func defaultStorage(exec task.Executive) Storage {
	if vars, ok := exec.(task.Variables); ok {
		return NewTaskVarStorage(vars)
	}
	return nil
}
