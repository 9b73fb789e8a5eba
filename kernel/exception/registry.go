package exception

import "ppcbsp/kernel/task"

// Install associates ext with the calling task and returns the extension
// that was installed before (nil if none). Passing nil removes the current
// extension.
//
// Install must be called while the task sets itself up, before it can incur
// an exception; installing from one task while another task's exception is
// being dispatched is fine, installing for the faulting task is not.
// Install returns nil if the calling task cannot be identified or the
// extension cannot be stored.
func (d *Dispatcher) Install(ext *Extension) *Extension {
	if d.storage == nil || d.cfg.Executive == nil {
		return nil
	}

	id, err := d.cfg.Executive.Self()
	if err != nil {
		return nil
	}

	prev, err := d.storage.Set(id, ext)
	if err != nil {
		return nil
	}
	return prev
}

// lookup returns the extension of a task. Storage errors read as "no
// extension".
func (d *Dispatcher) lookup(id task.ID) *Extension {
	if d.storage == nil {
		return nil
	}

	ext, err := d.storage.Get(id)
	if err != nil {
		return nil
	}
	return ext
}
