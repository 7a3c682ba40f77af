package strux

import (
	"fmt"
)

// TypeSpec is the shared descriptor of a composite type: its globally unique
// qualified name, an optional parent whose slots are inherited, and the slots
// declared on the type itself.
//
// Define specs once, at startup, and register them before first use:
//
//	var sampleSpec = strux.MustTypeSpec("sample.Container",
//		strux.NewSlot("name").WithDefault(""),
//		strux.NewSlot("value").WithDefault(0),
//	)
//
//	func init() { strux.RegisterComposite(sampleSpec) }
type TypeSpec struct {
	name   string
	parent *TypeSpec
	slots  []*Slot
	byName map[string]*Slot
}

// NewTypeSpec builds a descriptor with the given qualified name. Slots with
// duplicate names, including names inherited from parent, are rejected.
func NewTypeSpec(name string, parent *TypeSpec, slots ...*Slot) (*TypeSpec, error) {
	spec := &TypeSpec{name: name, parent: parent, byName: make(map[string]*Slot)}
	if parent != nil {
		for _, s := range parent.Slots() {
			spec.byName[s.Name()] = s
		}
	}
	for _, s := range slots {
		if _, exists := spec.byName[s.Name()]; exists {
			return nil, fmt.Errorf("%w: %q on composite type %s", ErrDuplicateSlot, s.Name(), name)
		}
		spec.slots = append(spec.slots, s)
		spec.byName[s.Name()] = s
	}
	return spec, nil
}

// MustTypeSpec is NewTypeSpec without a parent, panicking on slot collisions.
// Intended for package-level spec variables where a collision is a programming
// error caught at startup.
func MustTypeSpec(name string, slots ...*Slot) *TypeSpec {
	spec, err := NewTypeSpec(name, nil, slots...)
	if err != nil {
		panic(err)
	}
	return spec
}

// MustExtend is NewTypeSpec with a parent, panicking on slot collisions.
func MustExtend(name string, parent *TypeSpec, slots ...*Slot) *TypeSpec {
	spec, err := NewTypeSpec(name, parent, slots...)
	if err != nil {
		panic(err)
	}
	return spec
}

// Name returns the qualified name used for registry lookups and type tags.
func (t *TypeSpec) Name() string { return t.name }

// Slots returns all slots in declaration order, inherited slots first.
func (t *TypeSpec) Slots() []*Slot {
	if t.parent == nil {
		return t.slots
	}
	parentSlots := t.parent.Slots()
	all := make([]*Slot, 0, len(parentSlots)+len(t.slots))
	all = append(all, parentSlots...)
	all = append(all, t.slots...)
	return all
}

// Slot returns the named slot, searching inherited slots too.
func (t *TypeSpec) Slot(name string) (*Slot, bool) {
	s, ok := t.byName[name]
	return s, ok
}

// New constructs an instance of the type. Slot values start unset; defaults
// and factories seed storage lazily on first read.
func (t *TypeSpec) New() *Object {
	return &Object{
		spec:     t,
		values:   make(map[*Slot]any),
		stored:   make(map[*Slot]bool),
		assigned: make(map[*Slot]bool),
		inited:   make(map[*Slot]bool),
	}
}

// Object is one composite instance. It owns its slot values in a side table
// keyed by slot identity; the descriptor itself is shared and never holds
// per-instance state.
type Object struct {
	spec *TypeSpec

	values map[*Slot]any
	// stored tracks whether any value (default seed or assignment) exists.
	stored map[*Slot]bool
	// assigned tracks explicit writes only, for write-once enforcement.
	assigned map[*Slot]bool
	// inited tracks post-initializer runs.
	inited map[*Slot]bool
}

// Spec returns the instance's type descriptor.
func (o *Object) Spec() *TypeSpec { return o.spec }

// Get reads a slot by name. On the first read of a slot with a
// post-initializer, the initializer runs exactly once before the value is
// returned. If no value has been stored, the factory or static default seeds
// storage first.
func (o *Object) Get(name string) (any, error) {
	slot, ok := o.spec.Slot(name)
	if !ok {
		return nil, NewUnknownSlotError(o.spec.Name(), name)
	}
	if slot.postInit != nil && !o.inited[slot] {
		o.inited[slot] = true
		if err := slot.postInit(o); err != nil {
			return nil, fmt.Errorf("post-initializer for slot %q on %s: %w", name, o.spec.Name(), err)
		}
	}
	if !o.stored[slot] {
		o.values[slot] = slot.defaultFor(o)
		o.stored[slot] = true
	}
	return o.values[slot], nil
}

// MustGet is Get for slots known to exist, panicking otherwise.
func (o *Object) MustGet(name string) any {
	v, err := o.Get(name)
	if err != nil {
		panic(err)
	}
	return v
}

// Set assigns a slot by name. The slot's parser runs first; a write-once slot
// rejects any assignment after its first; observers then fire in registration
// order with the previous and new values. An observer error aborts the
// remaining observers but the stored value stands.
func (o *Object) Set(name string, raw any) error {
	slot, ok := o.spec.Slot(name)
	if !ok {
		return NewUnknownSlotError(o.spec.Name(), name)
	}
	value := raw
	if slot.parser != nil {
		parsed, err := slot.parser(o, raw)
		if err != nil {
			return NewValidationError(name, err)
		}
		value = parsed
	}
	if slot.writeOnce && o.assigned[slot] {
		return NewWriteOnceError(name)
	}

	old := o.values[slot]
	o.values[slot] = value
	o.stored[slot] = true
	o.assigned[slot] = true

	for _, observe := range slot.observers {
		if err := observe(o, old, value); err != nil {
			return fmt.Errorf("observer for slot %q on %s: %w", name, o.spec.Name(), err)
		}
	}
	return nil
}

// MustSet is Set panicking on error, for construction sites where the value
// is known valid.
func (o *Object) MustSet(name string, v any) *Object {
	if err := o.Set(name, v); err != nil {
		panic(err)
	}
	return o
}

// IsSet reports whether the slot has ever been explicitly assigned. Default
// seeding does not count.
func (o *Object) IsSet(name string) bool {
	slot, ok := o.spec.Slot(name)
	return ok && o.assigned[slot]
}
