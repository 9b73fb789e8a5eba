//go:build bsp_notepad

package exception

import "ppcbsp/kernel/task"

// defaultStorage keeps extensions in notepad DefaultNotepadSlot.
func defaultStorage(exec task.Executive) Storage {
	if notes, ok := exec.(task.Notepads); ok {
		return NewNotepadStorage(notes, DefaultNotepadSlot)
	}
	return nil
}
