package basic

import (
	"hash/fnv"
	"strings"
)

// nameSource says which store a visible name resolves to.
type nameSource int

const (
	srcVariable nameSource = iota
	srcConstant
	srcBuiltin
	srcInlineFn
	srcProcFunc
)

// environment is the name->value view expressions are evaluated against:
// variables, constants, builtin functions, DEF FN inline functions and
// in-scope FUNCTION procedures as callables.
//
// The merged name index is rebuilt only when the set of visible names
// changes, detected by a structural fingerprint maintained incrementally by
// the interpreter; plain value updates never trigger a rebuild. Lookup is
// total: a name bound nowhere evaluates to its type-appropriate zero.
type environment struct {
	ip          *Interpreter
	fingerprint uint64
	names       map[string]nameSource
}

func newEnvironment(ip *Interpreter) *environment {
	return &environment{ip: ip, fingerprint: ^uint64(0)}
}

// nameHash gives each (namespace, name) pair an order-independent
// contribution to the fingerprint; XOR makes add/remove self-inverse.
func nameHash(namespace byte, name string) uint64 {
	h := fnv.New64a()
	h.Write([]byte{namespace, ':'})
	h.Write([]byte(name))
	return h.Sum64()
}

// refresh rebuilds the merged index if the visible name set changed.
func (e *environment) refresh() {
	if e.fingerprint == e.ip.nameSetHash {
		return
	}
	e.names = make(map[string]nameSource,
		len(e.ip.variables)+len(e.ip.constants)+len(builtinFunctions)+len(e.ip.inlineFuncs)+len(e.ip.procs))
	for name := range builtinFunctions {
		e.names[name] = srcBuiltin
	}
	for name, proc := range e.ip.procs {
		if proc.Kind == ProcFunction {
			e.names[name] = srcProcFunc
		}
	}
	for name := range e.ip.inlineFuncs {
		e.names[name] = srcInlineFn
	}
	for name := range e.ip.variables {
		e.names[name] = srcVariable
	}
	// Constants shadow everything; assignment to them is a separate fault.
	for name := range e.ip.constants {
		e.names[name] = srcConstant
	}
	e.fingerprint = e.ip.nameSetHash
}

// lookup resolves a canonical name to a value. Total: never-assigned numeric
// names are 0, never-assigned string names are "".
func (e *environment) lookup(name string) Value {
	e.refresh()
	switch e.names[name] {
	case srcConstant:
		if v, ok := e.ip.constants[name]; ok {
			return v
		}
	case srcVariable:
		if v, ok := e.ip.variables[name]; ok {
			return v
		}
	}
	// Dotted names resolve through record variables before defaulting.
	if dot := strings.IndexByte(name, '.'); dot > 0 {
		if base, ok := e.ip.variables[name[:dot]]; ok && base.Kind == KindRecord && base.Rec != nil {
			if fv, err := base.Rec.GetField(e.ip.recordTypes, name[dot+1:]); err == nil {
				return fv
			}
		}
	}
	return zeroValueForName(name)
}
