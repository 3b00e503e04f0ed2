// Package module implements the host-registration surface — Module
// builders and the Context registry they install into — grounded on
// runestick's Module/Context split (rune-testing/examples/
// custom_instance_fn.rs: "Module::new(&[\"mymodule\"])", "inst_fn",
// "Context::with_default_modules()", "context.install(&my_module)").
// A Context is the namespace a compiled Unit is resolved and executed
// against; it is mutable while modules are being installed. It has no
// frozen state: Install keeps accepting modules after a VM has been
// built from the Context.
package module

import (
	"fmt"
	"reflect"

	"golang.org/x/mod/semver"

	"github.com/aledsdavies/weft/diag"
	"github.com/aledsdavies/weft/item"
	"github.com/aledsdavies/weft/value"
)

// HostFunc is the calling convention every host function, free or
// instance, is normalized to before registration: a flat argument slice
// in, a single Value or error out. weft/sdk's reflection-based wrapper
// is how most callers get from a plain Go func to this shape.
type HostFunc func(args []value.Value) (value.Value, error)

// HostFunction is one registered entry: its identity (item path and
// hash), its arity for the VM's OpCall argc check, and the callable
// itself.
type HostFunction struct {
	Name  string
	Hash  uint64
	Arity int
	Fn    HostFunc
	Async bool
}

// TypeInfo is one registered host-exposed type: its hash and, for
// diagnostics/reflection, the Go type it was derived from (if any).
type TypeInfo struct {
	Name    string
	Hash    uint64
	GoType  reflect.Type // nil for types not backed by a concrete Go type (e.g. script-defined structs)
}

// Module is a named group of host functions/types awaiting installation
// into a Context, mirroring runestick's Module as the unit of
// registration a host assembles before calling Context.Install.
type Module struct {
	path       []string
	functions  []*HostFunction
	instFns    []*HostFunction
	types      []*TypeInfo
	capability string // optional semver requirement another module/host can gate on
}

// New starts a Module rooted at the given path, e.g. New("mymodule").
func New(path ...string) *Module {
	return &Module{path: path}
}

// RequireCapability declares a semver constraint (e.g. ">=1.2.0") a
// Context must satisfy for some named capability before this module may
// be installed; checked by Context.Install via x/mod/semver.
func (m *Module) RequireCapability(constraint string) *Module {
	m.capability = constraint
	return m
}

func (m *Module) itemHash(name string) uint64 {
	full := append(append([]string{}, m.path...), name)
	return uint64(item.FnHash(item.New(full...)))
}

// Function registers a free (non-method) synchronous host function.
func (m *Module) Function(name string, arity int, fn HostFunc) *Module {
	m.functions = append(m.functions, &HostFunction{Name: name, Hash: m.itemHash(name), Arity: arity, Fn: fn})
	return m
}

// AsyncFunction registers a free function whose HostFunc returns a
// value.Future rather than its final result directly; the VM awaits it
// like any script-produced Future.
func (m *Module) AsyncFunction(name string, arity int, fn HostFunc) *Module {
	m.functions = append(m.functions, &HostFunction{Name: name, Hash: m.itemHash(name), Arity: arity, Fn: fn, Async: true})
	return m
}

// Type registers a host-exposed type under this module's namespace and
// returns its hash, for use with InstFn/AsyncInstFn. goType may be nil
// for purely nominal types.
func (m *Module) Type(name string, goType reflect.Type) item.Hash {
	h := item.TypeHash(item.New(append(append([]string{}, m.path...), name)...))
	m.types = append(m.types, &TypeInfo{Name: name, Hash: uint64(h), GoType: goType})
	return h
}

// InstFn registers an instance method on a previously-registered type,
// hashed with item.InstFnHash(typeHash, name) so it can never collide
// with a same-named method on an unrelated type.
func (m *Module) InstFn(typeHash item.Hash, name string, arity int, fn HostFunc) *Module {
	h := item.InstFnHash(typeHash, name)
	m.instFns = append(m.instFns, &HostFunction{Name: name, Hash: uint64(h), Arity: arity, Fn: fn})
	return m
}

// AsyncInstFn is InstFn for a method whose HostFunc returns a Future.
func (m *Module) AsyncInstFn(typeHash item.Hash, name string, arity int, fn HostFunc) *Module {
	h := item.InstFnHash(typeHash, name)
	m.instFns = append(m.instFns, &HostFunction{Name: name, Hash: uint64(h), Arity: arity, Fn: fn, Async: true})
	return m
}

// Context is the combined namespace a compiled Unit links and executes
// against: every installed Module's functions, instance methods, and
// types, keyed by hash for O(1) VM dispatch.
type Context struct {
	functions map[uint64]*HostFunction
	types     map[uint64]*TypeInfo
	installed map[string]bool // module path joined by "::" -> installed, for duplicate-install detection
	caps      map[string]string
}

// NewContext returns an empty Context.
func NewContext() *Context {
	return &Context{
		functions: make(map[uint64]*HostFunction),
		types:     make(map[uint64]*TypeInfo),
		installed: make(map[string]bool),
		caps:      make(map[string]string),
	}
}

// DeclareCapability records that this Context offers capability name at
// the given semver version, checked against any module's
// RequireCapability at install time.
func (c *Context) DeclareCapability(name, version string) {
	c.caps[name] = version
}

func pathKey(path []string) string {
	s := ""
	for i, p := range path {
		if i > 0 {
			s += "::"
		}
		s += p
	}
	return s
}

// Install merges m's functions, instance methods, and types into c,
// failing with a diag.ContextError if any hash collides with an
// already-installed entry (a real collision, since the hashing scheme's
// whole point is to make that exceedingly unlikely for distinct names)
// or if m declares a capability requirement c doesn't meet.
func (c *Context) Install(m *Module) error {
	key := pathKey(m.path)
	if c.installed[key] {
		return &diag.ContextError{Kind: diag.ContextDuplicateModule, Name: key, Message: "module already installed"}
	}
	if m.capability != "" {
		have, ok := c.caps[key]
		if !ok || !semver.IsValid(have) || !constraintSatisfied(m.capability, have) {
			return &diag.ContextError{Kind: diag.ContextCapabilityMismatch, Name: key, Message: fmt.Sprintf("requires capability %q, context offers %q", m.capability, have)}
		}
	}
	for _, f := range m.functions {
		if _, dup := c.functions[f.Hash]; dup {
			return &diag.ContextError{Kind: diag.ContextConflictingFunction, Name: f.Name, Message: fmt.Sprintf("hash %x conflicts with an existing registration", f.Hash)}
		}
	}
	for _, f := range m.instFns {
		if _, dup := c.functions[f.Hash]; dup {
			return &diag.ContextError{Kind: diag.ContextConflictingInstanceFn, Name: f.Name, Message: fmt.Sprintf("hash %x conflicts with an existing registration", f.Hash)}
		}
	}
	for _, t := range m.types {
		if _, dup := c.types[t.Hash]; dup {
			return &diag.ContextError{Kind: diag.ContextConflictingType, Name: t.Name, Message: fmt.Sprintf("hash %x conflicts with an existing registration", t.Hash)}
		}
	}
	// No conflicts: commit.
	for _, f := range m.functions {
		c.functions[f.Hash] = f
	}
	for _, f := range m.instFns {
		c.functions[f.Hash] = f
	}
	for _, t := range m.types {
		c.types[t.Hash] = t
	}
	c.installed[key] = true
	return nil
}

// constraintSatisfied reports whether have (a semver version) meets
// constraint, a small subset of npm-style range syntax (">=1.2.0",
// "^1.2.0", or an exact version) sufficient for module capability
// gating without pulling in a full range-parsing dependency.
func constraintSatisfied(constraint, have string) bool {
	switch {
	case len(constraint) >= 2 && constraint[:2] == ">=":
		return semver.Compare(have, normalize(constraint[2:])) >= 0
	case len(constraint) >= 1 && constraint[0] == '^':
		want := normalize(constraint[1:])
		return semver.Major(have) == semver.Major(want) && semver.Compare(have, want) >= 0
	default:
		return semver.Compare(have, normalize(constraint)) == 0
	}
}

func normalize(v string) string {
	if len(v) == 0 || v[0] != 'v' {
		return "v" + v
	}
	return v
}

// Lookup resolves hash to a registered HostFunction, for the VM's
// OpCall dispatch when the hash isn't found in the linked Unit itself.
func (c *Context) Lookup(hash uint64) (*HostFunction, bool) {
	f, ok := c.functions[hash]
	return f, ok
}

// LookupType resolves hash to a registered TypeInfo.
func (c *Context) LookupType(hash uint64) (*TypeInfo, bool) {
	t, ok := c.types[hash]
	return t, ok
}

// NameOf and Names implement bytecode.HashNamer so Resolve can validate
// a Unit's OpCall targets against this Context's namespace in addition
// to the Unit's own functions.
func (c *Context) NameOf(hash uint64) (string, bool) {
	if f, ok := c.functions[hash]; ok {
		return f.Name, true
	}
	return "", false
}

func (c *Context) Names() []string {
	names := make([]string, 0, len(c.functions))
	for _, f := range c.functions {
		names = append(names, f.Name)
	}
	return names
}
