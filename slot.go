package strux

import (
	"reflect"
)

// Parser validates and normalizes a raw value on every assignment to a slot.
// The returned value is what gets stored.
type Parser func(obj *Object, raw any) (any, error)

// Observer is notified after a slot assignment with the previous and new
// stored values. Observers run in registration order; an error aborts the
// remaining observers and propagates to the caller, but the stored value is
// not rolled back.
type Observer func(obj *Object, old, new any) error

// Factory produces a per-instance default value. It runs at most once per
// instance, lazily, to seed storage before the first read.
type Factory func(obj *Object) any

// PostInit runs exactly once per instance on the first read of its slot,
// before the value is returned. It may assign other slots on the instance.
type PostInit func(obj *Object) error

// Slot is a named, independently configurable attribute definition on a
// composite type. The descriptor is shared by every instance of the owning
// type and its subtypes; per-instance state lives on the instance, keyed by
// slot identity.
//
// All configuration methods are non-mutating builders: they return a derived
// copy, so a base definition can be reused as a template.
type Slot struct {
	name       string
	defValue   any
	hasDefault bool
	factory    Factory
	parser     Parser
	observers  []Observer
	writeOnce  bool
	copiable   bool
	postInit   PostInit
}

// NewSlot returns a slot definition with no default, no parser, no observers,
// participating in copy operations.
func NewSlot(name string) *Slot {
	return &Slot{name: name, copiable: true}
}

// Name returns the slot's name.
func (s *Slot) Name() string { return s.name }

// Copiable reports whether the slot participates in copy and
// serialize-as-copy operations.
func (s *Slot) Copiable() bool { return s.copiable }

// clone returns a shallow copy with its own observer slice, so builder
// derivations never alias the source definition.
func (s *Slot) clone() *Slot {
	c := *s
	c.observers = make([]Observer, len(s.observers))
	copy(c.observers, s.observers)
	return &c
}

// WithDefault derives a slot whose unset value reads as v. The same v is
// handed to every instance; use WithFactory for per-instance mutable defaults.
func (s *Slot) WithDefault(v any) *Slot {
	c := s.clone()
	c.defValue = v
	c.hasDefault = true
	c.factory = nil
	return c
}

// WithFactory derives a slot seeded per instance by f on first read.
func (s *Slot) WithFactory(f Factory) *Slot {
	c := s.clone()
	c.factory = f
	c.defValue = nil
	c.hasDefault = false
	return c
}

// WithParser derives a slot that validates every assignment through p.
func (s *Slot) WithParser(p Parser) *Slot {
	c := s.clone()
	c.parser = p
	return c
}

// WithObserver derives a slot with o appended to the observer list.
func (s *Slot) WithObserver(o Observer) *Slot {
	c := s.clone()
	c.observers = append(c.observers, o)
	return c
}

// WithoutObserver derives a slot with every occurrence of o removed, compared
// by function identity. Removing an observer that was never added is a no-op.
func (s *Slot) WithoutObserver(o Observer) *Slot {
	c := s.clone()
	target := reflect.ValueOf(o).Pointer()
	kept := c.observers[:0]
	for _, ob := range c.observers {
		if reflect.ValueOf(ob).Pointer() != target {
			kept = append(kept, ob)
		}
	}
	c.observers = kept
	return c
}

// WriteOnce derives a slot that rejects any assignment after the first,
// regardless of whether the values are equal.
func (s *Slot) WriteOnce() *Slot {
	c := s.clone()
	c.writeOnce = true
	return c
}

// NoCopy derives a slot excluded from copy and serialize-as-copy operations.
// Use it for caches and derived state that a copy should recompute.
func (s *Slot) NoCopy() *Slot {
	c := s.clone()
	c.copiable = false
	return c
}

// WithPostInit derives a slot whose first read triggers f once per instance.
func (s *Slot) WithPostInit(f PostInit) *Slot {
	c := s.clone()
	c.postInit = f
	return c
}

// defaultFor produces the slot's default for one instance: the factory result
// if a factory is set, the static default otherwise, nil if neither.
func (s *Slot) defaultFor(obj *Object) any {
	if s.factory != nil {
		return s.factory(obj)
	}
	return s.defValue
}
