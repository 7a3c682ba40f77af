package strux

import (
	"reflect"
)

// DatasetConverter pairs the two conversion callbacks registered for a dataset
// type: Disassemble turns an instance into a flat numeric array plus side
// metadata, Assemble rebuilds the instance from them.
type DatasetConverter struct {
	// Name is the qualified tag written into serialized structures and store
	// leaves for instances of this dataset type.
	Name string

	Disassemble func(v any) (data []float64, meta map[string]any, err error)
	Assemble    func(data []float64, meta map[string]any) (any, error)
}

// Registry is the process-wide type catalog: composite types indexed by
// qualified name, primitive types stored verbatim, and dataset types paired
// with their converters.
//
// A Registry has no internal locking. Perform all registration during
// single-threaded startup, before any concurrent lookup begins; concurrent
// registration is undefined behavior.
type Registry struct {
	composites    map[string]*TypeSpec
	primitives    map[reflect.Type]bool
	datasets      map[reflect.Type]*DatasetConverter
	datasetsByTag map[string]*DatasetConverter
}

// NewRegistry returns an empty Registry with no built-in entries. Most callers
// use the package-level functions, which operate on the default registry
// pre-populated with the built-in primitive and dataset types.
func NewRegistry() *Registry {
	return &Registry{
		composites:    make(map[string]*TypeSpec),
		primitives:    make(map[reflect.Type]bool),
		datasets:      make(map[reflect.Type]*DatasetConverter),
		datasetsByTag: make(map[string]*DatasetConverter),
	}
}

// RegisterComposite makes spec lookupable under its qualified name.
// Re-registering an existing name overwrites the previous entry, mirroring
// last-definition-wins semantics of repeated type definition.
func (r *Registry) RegisterComposite(spec *TypeSpec) {
	r.composites[spec.Name()] = spec
}

// LookupComposite resolves a qualified name to its type descriptor. A miss is
// a resolution failure; deserialization treats it as fatal.
func (r *Registry) LookupComposite(name string) (*TypeSpec, error) {
	spec, ok := r.composites[name]
	if !ok {
		return nil, NewTypeNotRegisteredError(name)
	}
	return spec, nil
}

// IsRegistered reports whether a composite type is registered under name.
func (r *Registry) IsRegistered(name string) bool {
	_, ok := r.composites[name]
	return ok
}

// RegisterPrimitive marks t as a pass-through type. Registering a type that is
// already a dataset type is rejected: a value matching both categories would
// make classification ambiguous. Registering an existing primitive again is a
// no-op.
func (r *Registry) RegisterPrimitive(t reflect.Type) error {
	if _, ok := r.datasets[t]; ok {
		return NewAmbiguousRegistrationError(t.String(), "dataset")
	}
	r.primitives[t] = true
	return nil
}

// RemovePrimitive removes t from the primitive set. Removing a type that was
// never registered is a no-op.
func (r *Registry) RemovePrimitive(t reflect.Type) {
	delete(r.primitives, t)
}

// IsPrimitive reports whether t was registered as a primitive type. Built-in
// primitives (strings, numeric scalars, Path) are recognized by the classifier
// directly and need no registration.
func (r *Registry) IsPrimitive(t reflect.Type) bool {
	return r.primitives[t]
}

// RegisterDataset associates t with conv. Registering a type that is already a
// primitive is rejected, for the same ambiguity reason as RegisterPrimitive.
// Re-registering an existing dataset type overwrites its converter.
func (r *Registry) RegisterDataset(t reflect.Type, conv *DatasetConverter) error {
	if r.primitives[t] {
		return NewAmbiguousRegistrationError(t.String(), "primitive")
	}
	r.datasets[t] = conv
	r.datasetsByTag[conv.Name] = conv
	return nil
}

// RemoveDataset removes t and its converter tag. No-op if absent.
func (r *Registry) RemoveDataset(t reflect.Type) {
	if conv, ok := r.datasets[t]; ok {
		delete(r.datasetsByTag, conv.Name)
		delete(r.datasets, t)
	}
}

// IsDataset reports whether t has a registered dataset converter.
func (r *Registry) IsDataset(t reflect.Type) bool {
	_, ok := r.datasets[t]
	return ok
}

// DatasetConverterFor returns the converter registered for t, if any.
func (r *Registry) DatasetConverterFor(t reflect.Type) (*DatasetConverter, bool) {
	conv, ok := r.datasets[t]
	return conv, ok
}

// DatasetConverterByTag resolves a converter by its qualified tag, as found in
// serialized structures and dataset leaves.
func (r *Registry) DatasetConverterByTag(tag string) (*DatasetConverter, error) {
	conv, ok := r.datasetsByTag[tag]
	if !ok {
		return nil, NewTypeNotRegisteredError(tag)
	}
	return conv, nil
}

// defaultRegistry backs the package-level registration functions. Built-in
// dataset types are installed by init in datasets.go.
var defaultRegistry = NewRegistry()

// DefaultRegistry returns the registry used by the package-level Serialize,
// Deserialize, Save, and Load functions.
func DefaultRegistry() *Registry { return defaultRegistry }

func RegisterComposite(spec *TypeSpec)               { defaultRegistry.RegisterComposite(spec) }
func LookupComposite(name string) (*TypeSpec, error) { return defaultRegistry.LookupComposite(name) }
func IsRegistered(name string) bool                  { return defaultRegistry.IsRegistered(name) }
func RegisterPrimitive(t reflect.Type) error         { return defaultRegistry.RegisterPrimitive(t) }
func RemovePrimitive(t reflect.Type)                 { defaultRegistry.RemovePrimitive(t) }
func IsPrimitive(t reflect.Type) bool                { return defaultRegistry.IsPrimitive(t) }
func RemoveDataset(t reflect.Type)                   { defaultRegistry.RemoveDataset(t) }
func IsDataset(t reflect.Type) bool                  { return defaultRegistry.IsDataset(t) }

func RegisterDataset(t reflect.Type, c *DatasetConverter) error {
	return defaultRegistry.RegisterDataset(t, c)
}
