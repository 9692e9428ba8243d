package engine

import (
	"regexp"
	"sync"
)

// DefaultGlobals is the fixed set of run-global variable names every run
// declares. Declared names are known to the validator; they hold no
// value until something writes them.
var DefaultGlobals = []string{
	"instructions",
	"outlineDraft",
	"finalOutline",
	"firstDraft",
	"secondDraft",
	"finalDraft",
	"commentary",
}

var varTokenPattern = regexp.MustCompile(`\{\{([a-zA-Z_][a-zA-Z0-9_]*)\}\}`)

// VarStore holds a run's variables: a phase-local namespace cleared at
// phase end, and a run-global namespace that lives for the run.
//
// Conflict policy: all writes serialize through one mutex, so when an
// immediate-triggered action and a sequential action write the same
// name, the value is whichever write completed last (last-write-wins by
// completion time).
type VarStore struct {
	local    map[string]string
	global   map[string]string
	declared map[string]bool
	mu       sync.RWMutex
}

// NewVarStore creates a VarStore with the default globals declared and
// any user-defined extras appended.
func NewVarStore(extraGlobals ...string) *VarStore {
	v := &VarStore{
		local:    make(map[string]string),
		global:   make(map[string]string),
		declared: make(map[string]bool),
	}
	for _, name := range DefaultGlobals {
		v.declared[name] = true
	}
	for _, name := range extraGlobals {
		v.declared[name] = true
	}
	return v
}

// Declared returns the set of declared variable names, for validator
// token checks. Phase-local names set so far are included.
func (v *VarStore) Declared() map[string]bool {
	v.mu.RLock()
	defer v.mu.RUnlock()

	out := make(map[string]bool, len(v.declared)+len(v.local))
	for name := range v.declared {
		out[name] = true
	}
	for name := range v.local {
		out[name] = true
	}
	return out
}

// SetLocal writes a phase-local variable.
func (v *VarStore) SetLocal(name, value string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.local[name] = value
}

// SetGlobal writes a run-global variable, declaring it if new.
func (v *VarStore) SetGlobal(name, value string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.global[name] = value
	v.declared[name] = true
}

// Local reads a phase-local variable. The boolean is the "not set"
// sentinel: false means the name has no value, which is distinguishable
// from an empty string with ok=true.
func (v *VarStore) Local(name string) (string, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	val, ok := v.local[name]
	return val, ok
}

// Global reads a run-global variable with the same sentinel semantics
// as Local.
func (v *VarStore) Global(name string) (string, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	val, ok := v.global[name]
	return val, ok
}

// Lookup resolves a name phase-local first, then global.
func (v *VarStore) Lookup(name string) (string, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if val, ok := v.local[name]; ok {
		return val, true
	}
	val, ok := v.global[name]
	return val, ok
}

// Delete removes a name from both scopes. Used by gavel skip so later
// token references fall through to pass-through.
func (v *VarStore) Delete(name string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.local, name)
	delete(v.global, name)
}

// Promote moves a phase-local variable into the global scope so it
// survives the end of the phase. A missing local name is a no-op.
func (v *VarStore) Promote(name string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if val, ok := v.local[name]; ok {
		v.global[name] = val
		v.declared[name] = true
		delete(v.local, name)
	}
}

// Scopes returns copies of the phase-local and run-global namespaces.
// The engine snapshots these onto the run at terminal transition so
// failed and aborted runs keep every value written before the failure.
func (v *VarStore) Scopes() (local, global map[string]string) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	local = make(map[string]string, len(v.local))
	for k, val := range v.local {
		local[k] = val
	}
	global = make(map[string]string, len(v.global))
	for k, val := range v.global {
		global[k] = val
	}
	return local, global
}

// EndPhase clears the phase-local namespace.
func (v *VarStore) EndPhase() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.local = make(map[string]string)
}

// Substitute replaces {{name}} tokens in text, resolving phase-local
// first, then global. Unresolved tokens are left verbatim so the host
// or a later stage may still substitute them; their names are returned.
func (v *VarStore) Substitute(text string) (string, []string) {
	var unresolved []string
	out := varTokenPattern.ReplaceAllStringFunc(text, func(tok string) string {
		name := tok[2 : len(tok)-2]
		if val, ok := v.Lookup(name); ok {
			return val
		}
		unresolved = append(unresolved, name)
		return tok
	})
	return out, unresolved
}
