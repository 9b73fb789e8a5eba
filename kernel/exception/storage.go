package exception

import (
	"ppcbsp/kernel"
	"ppcbsp/kernel/sync"
	"ppcbsp/kernel/task"
)

// DefaultNotepadSlot is the notepad used by the notepad storage when no slot
// is configured. Applications that already use this notepad may change it at
// startup, before the first call to Install.
var DefaultNotepadSlot = 14

var (
	errHandlesFull = &kernel.Error{Module: "exception", Message: "extension handle table full"}
	errHandleBusy  = &kernel.Error{Module: "exception", Message: "extension handle table locked"}
)

// Storage associates an extension with a task.
type Storage interface {
	// Get returns the extension installed for the task (nil if none).
	// Get is called at exception priority.
	Get(id task.ID) (*Extension, *kernel.Error)

	// Set installs ext for the task and returns the previous extension.
	Set(id task.ID, ext *Extension) (*Extension, *kernel.Error)
}

// maxHandles bounds the number of extensions installed at the same time
// through notepads.
const maxHandles = 256

type handleEntry struct {
	owner task.ID
	ext   *Extension
}

// handleTable maps notepad words to extensions. Word 0 means "none"; word n
// refers to slot n-1. Notepads are ordinary application words, so a word
// only counts as a handle if its slot is owned by the task whose notepad
// holds it.
type handleTable struct {
	lock  sync.Spinlock
	slots [maxHandles]handleEntry
}

func (h *handleTable) lookup(id task.ID, word uintptr) (*Extension, *kernel.Error) {
	if word == 0 || word > maxHandles {
		return nil, nil
	}
	if !h.lock.TryToAcquire() {
		return nil, errHandleBusy
	}
	defer h.lock.Release()

	if entry := h.slots[word-1]; entry.owner == id {
		return entry.ext, nil
	}
	return nil, nil
}

func (h *handleTable) alloc(id task.ID, ext *Extension) (uintptr, *kernel.Error) {
	if ext == nil {
		return 0, nil
	}

	h.lock.Acquire()
	defer h.lock.Release()

	for i, entry := range h.slots {
		if entry.ext == nil {
			h.slots[i] = handleEntry{owner: id, ext: ext}
			return uintptr(i + 1), nil
		}
	}
	return 0, errHandlesFull
}

// release frees the slot word refers to if id owns it and returns the
// extension it held.
func (h *handleTable) release(id task.ID, word uintptr) *Extension {
	if word == 0 || word > maxHandles {
		return nil
	}

	h.lock.Acquire()
	defer h.lock.Release()

	entry := h.slots[word-1]
	if entry.ext == nil || entry.owner != id {
		return nil
	}
	h.slots[word-1] = handleEntry{}
	return entry.ext
}

// NotepadStorage keeps the extension in a task notepad. Notepads hold a
// machine word, so the storage hands out small integer handles and keeps the
// extension references itself. A notepad value that is not one of the
// task's handles reads as "no extension" and is overwritten by Set.
type NotepadStorage struct {
	Notes task.Notepads
	Slot  int

	handles handleTable
}

// NewNotepadStorage returns a storage using the given notepad slot.
func NewNotepadStorage(notes task.Notepads, slot int) *NotepadStorage {
	return &NotepadStorage{Notes: notes, Slot: slot}
}

// Get implements Storage.
func (s *NotepadStorage) Get(id task.ID) (*Extension, *kernel.Error) {
	word, err := s.Notes.GetNote(id, s.Slot)
	if err != nil {
		return nil, err
	}
	return s.handles.lookup(id, word)
}

// Set implements Storage. If the notepad cannot be written the association
// is left unchanged.
func (s *NotepadStorage) Set(id task.ID, ext *Extension) (*Extension, *kernel.Error) {
	newWord, err := s.handles.alloc(id, ext)
	if err != nil {
		return nil, err
	}

	oldWord, err := s.Notes.SwapNote(id, s.Slot, newWord)
	if err != nil {
		s.handles.release(id, newWord)
		return nil, err
	}

	return s.handles.release(id, oldWord), nil
}

// TaskVarStorage keeps the extension in a task variable.
type TaskVarStorage struct {
	Vars task.Variables

	v task.Var
}

// NewTaskVarStorage returns a storage backed by a task variable.
func NewTaskVarStorage(vars task.Variables) *TaskVarStorage {
	return &TaskVarStorage{Vars: vars, v: task.Var{Name: "exception extension"}}
}

// Get implements Storage.
func (s *TaskVarStorage) Get(id task.ID) (*Extension, *kernel.Error) {
	value, err := s.Vars.GetVariable(id, &s.v)
	if err != nil {
		return nil, err
	}
	ext, _ := value.(*Extension)
	return ext, nil
}

// Set implements Storage. The variable is added to the task on first use.
func (s *TaskVarStorage) Set(id task.ID, ext *Extension) (*Extension, *kernel.Error) {
	value, err := s.Vars.SwapVariable(id, &s.v, ext)
	if err != nil {
		return nil, err
	}
	prev, _ := value.(*Extension)
	return prev, nil
}
