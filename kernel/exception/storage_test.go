package exception

import (
	"sync"
	"testing"

	"ppcbsp/kernel"
	"ppcbsp/kernel/task"
)

func TestNotepadStorage(t *testing.T) {
	var (
		tbl   = task.NewTable()
		a     = tbl.Create("TSKA")
		b     = tbl.Create("TSKB")
		s     = NewNotepadStorage(tbl, DefaultNotepadSlot)
		ext1  = &Extension{Quiet: true}
		ext2  = &Extension{}
		other = &Extension{}
	)

	if ext, err := s.Get(a); err != nil || ext != nil {
		t.Fatalf("expected (nil, nil) for a task without extension; got (%v, %v)", ext, err)
	}

	if prev, err := s.Set(a, ext1); err != nil || prev != nil {
		t.Fatalf("expected (nil, nil) on first install; got (%v, %v)", prev, err)
	}
	s.Set(b, other)

	if prev, err := s.Set(a, ext2); err != nil || prev != ext1 {
		t.Fatalf("expected previous extension to be returned; got (%v, %v)", prev, err)
	}
	if ext, _ := s.Get(a); ext != ext2 {
		t.Fatal("expected Get to return the replacement extension")
	}
	if ext, _ := s.Get(b); ext != other {
		t.Fatal("expected installs to be per task")
	}

	// uninstall releases the handle
	if prev, _ := s.Set(a, nil); prev != ext2 {
		t.Fatal("expected uninstall to return the installed extension")
	}
	if word, _ := tbl.GetNote(a, DefaultNotepadSlot); word != 0 {
		t.Fatalf("expected notepad to be cleared; got 0x%x", word)
	}
	if ext, _ := s.Get(a); ext != nil {
		t.Fatal("expected no extension after uninstall")
	}

	// a freed handle is reused
	s.Set(a, ext1)
	if word, _ := tbl.GetNote(a, DefaultNotepadSlot); word != 1 {
		t.Fatalf("expected handle 1 to be reused; got %d", word)
	}
}

func TestNotepadStorageErrors(t *testing.T) {
	var (
		tbl = task.NewTable()
		id  = tbl.Create("TSK1")
	)

	t.Run("invalid slot", func(t *testing.T) {
		s := NewNotepadStorage(tbl, task.NotepadCount)
		if _, err := s.Set(id, &Extension{}); err == nil {
			t.Fatal("expected Set to fail")
		}
		if _, err := s.Get(id); err == nil {
			t.Fatal("expected Get to fail")
		}
	})

	t.Run("handle table full", func(t *testing.T) {
		s := NewNotepadStorage(tbl, 4)
		for i := range s.handles.slots {
			s.handles.slots[i] = handleEntry{owner: id, ext: &Extension{}}
		}
		if _, err := s.Set(id, &Extension{}); err != errHandlesFull {
			t.Fatalf("expected errHandlesFull; got %v", err)
		}
	})

	t.Run("handle table locked", func(t *testing.T) {
		s := NewNotepadStorage(tbl, 5)
		s.Set(id, &Extension{})
		s.handles.lock.Acquire()
		defer s.handles.lock.Release()

		if _, err := s.Get(id); err != errHandleBusy {
			t.Fatalf("expected errHandleBusy; got %v", err)
		}
	})
}

func TestNotepadStorageForeignValues(t *testing.T) {
	var (
		tbl  = task.NewTable()
		a    = tbl.Create("TSKA")
		b    = tbl.Create("TSKB")
		s    = NewNotepadStorage(tbl, 11)
		extA = &Extension{}
		extB = &Extension{}
	)

	// an application value that is not a handle
	tbl.SetNote(a, 11, 0x1234)
	if ext, err := s.Get(a); err != nil || ext != nil {
		t.Fatalf("expected (nil, nil) for a foreign notepad value; got (%v, %v)", ext, err)
	}
	if prev, err := s.Set(a, extA); err != nil || prev != nil {
		t.Fatalf("expected (nil, nil) when overwriting a foreign value; got (%v, %v)", prev, err)
	}
	if ext, _ := s.Get(a); ext != extA {
		t.Fatal("expected the extension to be installed over a foreign value")
	}

	// task B's notepad happens to hold task A's handle
	wordA, _ := tbl.GetNote(a, 11)
	tbl.SetNote(b, 11, wordA)
	if ext, _ := s.Get(b); ext != nil {
		t.Fatal("expected another task's handle to read as no extension")
	}
	if prev, err := s.Set(b, extB); err != nil || prev != nil {
		t.Fatalf("expected (nil, nil) when overwriting another task's handle; got (%v, %v)", prev, err)
	}
	if ext, _ := s.Get(a); ext != extA {
		t.Fatal("expected task A to keep its extension")
	}
	if ext, _ := s.Get(b); ext != extB {
		t.Fatal("expected task B to get its own extension")
	}
	if wordB, _ := tbl.GetNote(b, 11); wordB == wordA {
		t.Fatal("expected task B to get a handle of its own")
	}

	// a value past the end of the handle table
	tbl.SetNote(a, 11, maxHandles+1)
	if ext, err := s.Get(a); err != nil || ext != nil {
		t.Fatalf("expected (nil, nil) for an out of range value; got (%v, %v)", ext, err)
	}
	if prev, err := s.Set(a, extB); err != nil || prev != nil {
		t.Fatalf("expected (nil, nil) when overwriting an out of range value; got (%v, %v)", prev, err)
	}
	if ext, _ := s.Get(a); ext != extB {
		t.Fatal("expected the extension to be installed over an out of range value")
	}
}

func TestTaskVarStorage(t *testing.T) {
	var (
		tbl  = task.NewTable()
		a    = tbl.Create("TSKA")
		b    = tbl.Create("TSKB")
		s    = NewTaskVarStorage(tbl)
		ext1 = &Extension{}
		ext2 = &Extension{}
	)

	if _, err := s.Get(a); err == nil {
		t.Fatal("expected Get to fail before the variable is added")
	}

	if prev, err := s.Set(a, ext1); err != nil || prev != nil {
		t.Fatalf("expected (nil, nil) on first install; got (%v, %v)", prev, err)
	}
	if prev, err := s.Set(a, ext2); err != nil || prev != ext1 {
		t.Fatalf("expected previous extension to be returned; got (%v, %v)", prev, err)
	}
	if ext, _ := s.Get(a); ext != ext2 {
		t.Fatal("expected Get to return the replacement extension")
	}
	if _, err := s.Get(b); err == nil {
		t.Fatal("expected task variables to be per task")
	}

	if _, err := s.Set(task.ID(1), ext1); err == nil {
		t.Fatal("expected Set for an unknown task to fail")
	}
}

// busyVars fails every exception priority read.
type busyVars struct {
	*task.Table
}

func (busyVars) GetVariable(task.ID, *task.Var) (interface{}, *kernel.Error) {
	return nil, errHandleBusy
}

func TestTaskVarStorageKeepsValueWhenReadFails(t *testing.T) {
	var (
		tbl  = task.NewTable()
		id   = tbl.Create("TSK1")
		s    = NewTaskVarStorage(busyVars{tbl})
		ext1 = &Extension{}
		ext2 = &Extension{}
	)

	s.Set(id, ext1)
	if prev, err := s.Set(id, ext2); err != nil || prev != ext1 {
		t.Fatalf("expected (ext1, nil); got (%v, %v)", prev, err)
	}
	if got, _ := tbl.GetVariable(id, &s.v); got != ext2 {
		t.Fatal("expected the replacement extension to be stored")
	}
}

func TestStorageSetWhileTableBusy(t *testing.T) {
	const rounds = 2000

	for _, spec := range []struct {
		name string
		mk   func(*task.Table) Storage
	}{
		{"notepad", func(tbl *task.Table) Storage { return NewNotepadStorage(tbl, DefaultNotepadSlot) }},
		{"task variable", func(tbl *task.Table) Storage { return NewTaskVarStorage(tbl) }},
	} {
		t.Run(spec.name, func(t *testing.T) {
			var (
				tbl  = task.NewTable()
				id   = tbl.Create("TSK1")
				s    = spec.mk(tbl)
				stop = make(chan struct{})
				wg   sync.WaitGroup
			)

			for i := 0; i < 3; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for {
						select {
						case <-stop:
							return
						default:
							tbl.IsSuspended(id)
						}
					}
				}()
			}

			var prev *Extension
			for i := 0; i < rounds; i++ {
				next := &Extension{}
				got, err := s.Set(id, next)
				if err != nil || got != prev {
					close(stop)
					wg.Wait()
					t.Fatalf("[round %d] expected the previous extension and no error; got (%v, %v)", i, got, err)
				}
				prev = next
			}
			close(stop)
			wg.Wait()
		})
	}
}

func TestDefaultStorage(t *testing.T) {
	if s := defaultStorage(&mockExec{}); s != nil {
		t.Fatalf("expected no default storage for an executive without notepads or task variables; got %T", s)
	}
	if s := defaultStorage(task.NewTable()); s == nil {
		t.Fatal("expected a default storage for the task table")
	}
}

func TestInstall(t *testing.T) {
	var (
		tbl = task.NewTable()
		id  = tbl.Create("TSK1")
		d   = New(Config{Executive: tbl})
		ext = &Extension{}
	)

	// no running task
	if prev := d.Install(ext); prev != nil {
		t.Fatalf("expected Install without a running task to return nil; got %v", prev)
	}
	if got := d.lookup(id); got != nil {
		t.Fatal("expected Install without a running task to leave the task untouched")
	}

	tbl.Run(id)
	if prev := d.Install(ext); prev != nil {
		t.Fatalf("expected first Install to return nil; got %v", prev)
	}
	if got := d.lookup(id); got != ext {
		t.Fatal("expected lookup to find the installed extension")
	}
	if prev := d.Install(nil); prev != ext {
		t.Fatal("expected uninstall to return the installed extension")
	}

	if prev := New(Config{}).Install(ext); prev != nil {
		t.Fatal("expected Install on a dispatcher without an executive to return nil")
	}
}

func TestLookupAbsorbsErrors(t *testing.T) {
	d := New(Config{
		Executive: &mockExec{},
		Storage:   &mapStorage{err: errHandleBusy},
	})

	if got := d.lookup(task.ID(7)); got != nil {
		t.Fatal("expected a storage error to read as no extension")
	}
}

// mapStorage is a Storage that can be told to fail.
type mapStorage struct {
	exts map[task.ID]*Extension
	err  *kernel.Error
}

func (s *mapStorage) Get(id task.ID) (*Extension, *kernel.Error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.exts[id], nil
}

func (s *mapStorage) Set(id task.ID, ext *Extension) (*Extension, *kernel.Error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.exts == nil {
		s.exts = make(map[task.ID]*Extension)
	}
	prev := s.exts[id]
	s.exts[id] = ext
	return prev, nil
}
