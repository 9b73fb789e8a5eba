// Package scenario loads exception replay scenarios for the excsim tool.
//
// A scenario is a JSON document describing a set of tasks, the extension
// each task installs and a list of exceptions to replay:
//
//	{
//	  "name": "syscall without recovery flag",
//	  "cpu": 0,
//	  "rebootOnException": false,
//	  "storage": "notepad",
//	  "notepadSlot": 14,
//	  "tasks": [
//	    {"name": "TSK1", "extension": {"quiet": false, "lowLevel": "lua", "highLevel": false}}
//	  ],
//	  "exceptions": [
//	    {
//	      "task": "TSK1",
//	      "context": "task",
//	      "vector": "system call",
//	      "srr0": "0x12340", "srr1": "0xb032",
//	      "gpr": {"r1": "0x8000", "r3": 0},
//	      "stack": [{"addr": "0x8000", "value": "0x8010"}]
//	    }
//	  ]
//	}
//
// Register values may be JSON numbers or strings in any base strconv accepts
// ("0x" prefix for hex).
package scenario

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"ppcbsp/kernel/exception"
	"ppcbsp/kernel/task"
)

// Context is the execution context an exception is replayed in.
type Context uint8

const (
	// ContextTask replays the exception while a task is executing.
	ContextTask Context = iota

	// ContextInterrupt replays the exception inside an interrupt handler.
	ContextInterrupt

	// ContextInit replays the exception before the scheduler started.
	ContextInit
)

var contextNames = map[string]Context{
	"task":      ContextTask,
	"interrupt": ContextInterrupt,
	"init":      ContextInit,
}

// LowLevelMode selects the low-level hook a task installs.
type LowLevelMode uint8

const (
	// LowLevelNone installs no low-level hook.
	LowLevelNone LowLevelMode = iota

	// LowLevelBefore takes over every exception before it is reported.
	LowLevelBefore

	// LowLevelAfter takes over every exception after it is reported.
	LowLevelAfter

	// LowLevelScript runs the Lua hook script passed to excsim.
	LowLevelScript
)

var lowLevelNames = map[string]LowLevelMode{
	"":       LowLevelNone,
	"none":   LowLevelNone,
	"before": LowLevelBefore,
	"after":  LowLevelAfter,
	"lua":    LowLevelScript,
}

// Storage backends a scenario can select.
const (
	StorageDefault = ""
	StorageTaskVar = "taskvar"
	StorageNotepad = "notepad"
)

// Extension describes the extension a task installs.
type Extension struct {
	Quiet     bool
	LowLevel  LowLevelMode
	HighLevel bool
}

// Task is a task of the simulated executive.
type Task struct {
	Name string

	// Extension is nil if the task installs nothing.
	Extension *Extension
}

// StackWord is a word of stack memory visible to the stack walker.
type StackWord struct {
	Addr  uint32
	Value uint32
}

// Exception is one exception to replay.
type Exception struct {
	// Task names the executing task. It is empty for exceptions replayed
	// in initialization code.
	Task    string
	Context Context
	Frame   exception.Frame
	Stack   []StackWord
}

// Scenario is a parsed replay scenario.
type Scenario struct {
	Name              string
	CPU               int
	RebootOnException bool
	Storage           string
	NotepadSlot       int
	Tasks             []Task
	Exceptions        []Exception
}

// Load reads and parses the scenario in path.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	sc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return sc, nil
}

// Parse parses a JSON scenario.
func Parse(data []byte) (*Scenario, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("invalid JSON")
	}

	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return nil, fmt.Errorf("scenario must be a JSON object")
	}

	sc := &Scenario{
		Name:              root.Get("name").String(),
		CPU:               int(root.Get("cpu").Int()),
		RebootOnException: root.Get("rebootOnException").Bool(),
		Storage:           root.Get("storage").String(),
		NotepadSlot:       exception.DefaultNotepadSlot,
	}

	switch sc.Storage {
	case StorageDefault, StorageTaskVar, StorageNotepad:
	default:
		return nil, fmt.Errorf("unknown storage backend %q", sc.Storage)
	}

	if slot := root.Get("notepadSlot"); slot.Exists() {
		sc.NotepadSlot = int(slot.Int())
		if sc.NotepadSlot < 0 || sc.NotepadSlot >= task.NotepadCount {
			return nil, fmt.Errorf("notepad slot %d out of range", sc.NotepadSlot)
		}
	}

	if sc.CPU < 0 {
		return nil, fmt.Errorf("invalid cpu number %d", sc.CPU)
	}

	names := make(map[string]bool)
	for i, t := range root.Get("tasks").Array() {
		tsk, err := parseTask(t)
		if err != nil {
			return nil, fmt.Errorf("tasks[%d]: %w", i, err)
		}
		if names[tsk.Name] {
			return nil, fmt.Errorf("tasks[%d]: duplicate task name %q", i, tsk.Name)
		}
		names[tsk.Name] = true
		sc.Tasks = append(sc.Tasks, tsk)
	}

	for i, e := range root.Get("exceptions").Array() {
		exc, err := parseException(e)
		if err != nil {
			return nil, fmt.Errorf("exceptions[%d]: %w", i, err)
		}
		if exc.Task != "" && !names[exc.Task] {
			return nil, fmt.Errorf("exceptions[%d]: unknown task %q", i, exc.Task)
		}
		if exc.Context == ContextTask && exc.Task == "" {
			return nil, fmt.Errorf("exceptions[%d]: task context without a task", i)
		}
		sc.Exceptions = append(sc.Exceptions, exc)
	}

	if len(sc.Exceptions) == 0 {
		return nil, fmt.Errorf("scenario has no exceptions")
	}

	return sc, nil
}

func parseTask(r gjson.Result) (Task, error) {
	t := Task{Name: r.Get("name").String()}
	if t.Name == "" {
		return t, fmt.Errorf("missing task name")
	}

	ext := r.Get("extension")
	if !ext.Exists() {
		return t, nil
	}
	if !ext.IsObject() {
		return t, fmt.Errorf("extension must be an object")
	}

	mode, ok := lowLevelNames[ext.Get("lowLevel").String()]
	if !ok {
		return t, fmt.Errorf("unknown low-level hook %q", ext.Get("lowLevel").String())
	}

	t.Extension = &Extension{
		Quiet:     ext.Get("quiet").Bool(),
		LowLevel:  mode,
		HighLevel: ext.Get("highLevel").Bool(),
	}
	return t, nil
}

func parseException(r gjson.Result) (Exception, error) {
	var (
		e   = Exception{Task: r.Get("task").String()}
		f   = &e.Frame
		err error
	)

	switch ctx := r.Get("context"); {
	case ctx.Exists():
		var ok bool
		if e.Context, ok = contextNames[ctx.String()]; !ok {
			return e, fmt.Errorf("unknown context %q", ctx.String())
		}
	case e.Task == "":
		e.Context = ContextInit
	}

	if f.Vector, err = parseVector(r.Get("vector")); err != nil {
		return e, err
	}

	for _, reg := range []struct {
		name string
		dst  *uint32
	}{
		{"srr0", &f.SRR0},
		{"srr1", &f.SRR1},
		{"cr", &f.CR},
		{"xer", &f.XER},
		{"ctr", &f.CTR},
		{"lr", &f.LR},
		{"dar", &f.DAR},
	} {
		if *reg.dst, err = word(r.Get(reg.name)); err != nil {
			return e, fmt.Errorf("%s: %w", reg.name, err)
		}
	}

	if err = parseGPR(r.Get("gpr"), &f.GPR); err != nil {
		return e, err
	}

	for i, sw := range r.Get("stack").Array() {
		var w StackWord
		if w.Addr, err = word(sw.Get("addr")); err != nil {
			return e, fmt.Errorf("stack[%d].addr: %w", i, err)
		}
		if w.Value, err = word(sw.Get("value")); err != nil {
			return e, fmt.Errorf("stack[%d].value: %w", i, err)
		}
		e.Stack = append(e.Stack, w)
	}

	return e, nil
}

// parseGPR accepts either an array of up to 32 values or an object keyed by
// register name ("r3" or "3").
func parseGPR(r gjson.Result, gpr *[32]uint32) error {
	var err error

	switch {
	case !r.Exists():
		return nil
	case r.IsArray():
		regs := r.Array()
		if len(regs) > len(gpr) {
			return fmt.Errorf("gpr: too many registers (%d)", len(regs))
		}
		for i, v := range regs {
			if gpr[i], err = word(v); err != nil {
				return fmt.Errorf("gpr[%d]: %w", i, err)
			}
		}
	case r.IsObject():
		r.ForEach(func(key, v gjson.Result) bool {
			name := strings.TrimPrefix(strings.ToLower(key.String()), "r")
			index, convErr := strconv.Atoi(name)
			if convErr != nil || index < 0 || index >= len(gpr) {
				err = fmt.Errorf("gpr: unknown register %q", key.String())
				return false
			}
			if gpr[index], err = word(v); err != nil {
				err = fmt.Errorf("gpr.%s: %w", key.String(), err)
				return false
			}
			return true
		})
	default:
		return fmt.Errorf("gpr must be an array or an object")
	}

	return err
}

// parseVector accepts a vector number or its name as returned by
// exception.Vector.String.
func parseVector(r gjson.Result) (exception.Vector, error) {
	if !r.Exists() {
		return 0, fmt.Errorf("missing vector")
	}

	if r.Type == gjson.String {
		name := strings.ToLower(r.Str)
		for v := exception.Vector(0); v < 0x20; v++ {
			if v.String() == name {
				return v, nil
			}
		}
	}

	v, err := word(r)
	if err != nil {
		return 0, fmt.Errorf("vector: %w", err)
	}
	return exception.Vector(v), nil
}

// word converts a JSON number or numeric string to a 32-bit register value.
// A missing value reads as zero.
func word(r gjson.Result) (uint32, error) {
	switch r.Type {
	case gjson.Null:
		if r.Exists() {
			return 0, fmt.Errorf("null value")
		}
		return 0, nil
	case gjson.Number:
		if r.Num < 0 || r.Num > 0xffffffff || r.Num != float64(uint32(r.Num)) {
			return 0, fmt.Errorf("value %s does not fit a 32-bit register", r.Raw)
		}
		return uint32(r.Num), nil
	case gjson.String:
		v, err := strconv.ParseUint(r.Str, 0, 32)
		if err != nil {
			return 0, fmt.Errorf("invalid value %q", r.Str)
		}
		return uint32(v), nil
	default:
		return 0, fmt.Errorf("invalid value %s", r.Raw)
	}
}
