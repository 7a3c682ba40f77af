package strux

import (
	"fmt"
	"reflect"

	"github.com/hengadev/errsx"
)

// Serialize converts a value into its nested serialized structure: primitives
// pass through, datasets are disassembled into a tagged data+metadata mapping,
// containers keep their shape with elements serialized recursively, and
// composites become a mapping of slot name to serialized value carrying the
// type tag under TypeTagKey.
//
// Cyclic object graphs are unsupported: serialization recurses without cycle
// detection and will not terminate on one.
func Serialize(v any) (any, error) {
	return defaultRegistry.serialize(v, false)
}

// SerializeCopy is Serialize restricted to copiable slots, producing the
// structure a Copy is rebuilt from.
func SerializeCopy(v any) (any, error) {
	return defaultRegistry.serialize(v, true)
}

// Deserialize reconstructs a value from a nested serialized structure,
// dispatching on the reserved tag keys. Composite tags resolve through the
// registry; an unregistered tag is a fatal resolution failure with no partial
// object returned. Slots missing from the structure keep their declared
// defaults. Parsers and observers fire during slot assignment;
// post-initializers wait for the first subsequent read.
func Deserialize(structure any) (any, error) {
	return defaultRegistry.deserialize(structure)
}

// Copy produces an independent instance sharing no mutable storage with obj,
// rebuilt from the copiable slots only. Non-copiable slots come back at their
// declared defaults.
func Copy(obj *Object) (*Object, error) {
	structure, err := SerializeCopy(obj)
	if err != nil {
		return nil, err
	}
	v, err := Deserialize(structure)
	if err != nil {
		return nil, err
	}
	copied, ok := v.(*Object)
	if !ok {
		return nil, fmt.Errorf("%w: copy of %s deserialized to %T", ErrInvalidStructure, obj.Spec().Name(), v)
	}
	return copied, nil
}

func (r *Registry) serialize(v any, isCopy bool) (any, error) {
	category, err := r.Classify(v)
	if err != nil {
		return nil, err
	}

	switch category {
	case CategoryPrimitive:
		return v, nil

	case CategoryDataset:
		conv, _ := r.DatasetConverterFor(reflect.TypeOf(v))
		data, meta, err := conv.Disassemble(v)
		if err != nil {
			return nil, fmt.Errorf("disassemble %s: %w", conv.Name, err)
		}
		structure := map[string]any{
			DatasetTagKey:  conv.Name,
			DatasetDataKey: data,
		}
		for k, mv := range meta {
			if isReservedKey(k) || k == DatasetDataKey {
				return nil, fmt.Errorf("%w: dataset %s metadata uses reserved key %q",
					ErrInvalidStructure, conv.Name, k)
			}
			structure[k] = mv
		}
		return structure, nil

	case CategoryContainer:
		return r.serializeContainer(v, isCopy)

	case CategoryComposite:
		return r.serializeComposite(v.(*Object), isCopy)
	}
	return nil, NewUnsupportedTypeError(fmt.Sprintf("%T", v))
}

func (r *Registry) serializeContainer(v any, isCopy bool) (any, error) {
	switch c := v.(type) {
	case []any:
		out := make([]any, len(c))
		for i, elem := range c {
			s, err := r.serialize(elem, isCopy)
			if err != nil {
				return nil, fmt.Errorf("sequence element %d: %w", i, err)
			}
			out[i] = s
		}
		return out, nil

	case map[string]any:
		out := map[string]any{ContainerKindKey: KindMapping}
		for k, elem := range c {
			if isReservedKey(k) {
				return nil, fmt.Errorf("%w: mapping uses reserved key %q", ErrInvalidStructure, k)
			}
			s, err := r.serialize(elem, isCopy)
			if err != nil {
				return nil, fmt.Errorf("mapping entry %q: %w", k, err)
			}
			out[k] = s
		}
		return out, nil

	case Set:
		items := make([]any, 0, len(c))
		for elem := range c {
			s, err := r.serialize(elem, isCopy)
			if err != nil {
				return nil, fmt.Errorf("set element: %w", err)
			}
			items = append(items, s)
		}
		return map[string]any{ContainerKindKey: KindSet, SetItemsKey: items}, nil
	}
	return nil, NewUnsupportedTypeError(fmt.Sprintf("%T", v))
}

func (r *Registry) serializeComposite(obj *Object, isCopy bool) (any, error) {
	structure := map[string]any{TypeTagKey: obj.Spec().Name()}
	var errs errsx.Map
	for _, slot := range obj.Spec().Slots() {
		if isCopy && !slot.Copiable() {
			continue
		}
		value, err := obj.Get(slot.Name())
		if err != nil {
			errs.Set(fmt.Sprintf("read slot %q", slot.Name()), err)
			continue
		}
		s, err := r.serialize(value, isCopy)
		if err != nil {
			errs.Set(fmt.Sprintf("serialize slot %q", slot.Name()), err)
			continue
		}
		structure[slot.Name()] = s
	}
	if err := errs.AsError(); err != nil {
		return nil, fmt.Errorf("serialize composite %s: %w", obj.Spec().Name(), err)
	}
	return structure, nil
}

func (r *Registry) deserialize(structure any) (any, error) {
	switch s := structure.(type) {
	case nil:
		return nil, nil

	case []any:
		out := make([]any, len(s))
		for i, elem := range s {
			v, err := r.deserialize(elem)
			if err != nil {
				return nil, fmt.Errorf("sequence element %d: %w", i, err)
			}
			out[i] = v
		}
		return out, nil

	case map[string]any:
		if tag, ok := s[TypeTagKey].(string); ok {
			return r.deserializeComposite(tag, s)
		}
		if tag, ok := s[DatasetTagKey].(string); ok {
			return r.deserializeDataset(tag, s)
		}
		if kind, ok := s[ContainerKindKey].(string); ok && kind == KindSet {
			return r.deserializeSet(s)
		}
		// A mapping container, tagged or not.
		out := make(map[string]any, len(s))
		for k, elem := range s {
			if isReservedKey(k) {
				continue
			}
			v, err := r.deserialize(elem)
			if err != nil {
				return nil, fmt.Errorf("mapping entry %q: %w", k, err)
			}
			out[k] = v
		}
		return out, nil

	default:
		// Primitives, and lazy dataset handles passed through by the store.
		return structure, nil
	}
}

func (r *Registry) deserializeComposite(tag string, s map[string]any) (*Object, error) {
	spec, err := r.LookupComposite(tag)
	if err != nil {
		return nil, err
	}
	obj := spec.New()
	var errs errsx.Map
	for _, slot := range spec.Slots() {
		raw, present := s[slot.Name()]
		if !present {
			continue
		}
		value, err := r.deserialize(raw)
		if err != nil {
			errs.Set(fmt.Sprintf("slot %q", slot.Name()), err)
			continue
		}
		if err := obj.Set(slot.Name(), value); err != nil {
			errs.Set(fmt.Sprintf("slot %q", slot.Name()), err)
		}
	}
	for k := range s {
		if isReservedKey(k) {
			continue
		}
		if _, ok := spec.Slot(k); !ok {
			errs.Set(fmt.Sprintf("slot %q", k), NewUnknownSlotError(tag, k))
		}
	}
	if err := errs.AsError(); err != nil {
		return nil, fmt.Errorf("deserialize composite %s: %w", tag, err)
	}
	return obj, nil
}

func (r *Registry) deserializeDataset(tag string, s map[string]any) (any, error) {
	conv, err := r.DatasetConverterByTag(tag)
	if err != nil {
		return nil, err
	}
	data, err := toFloat64Slice(s[DatasetDataKey])
	if err != nil {
		return nil, fmt.Errorf("dataset %s payload: %w", tag, err)
	}
	meta := make(map[string]any)
	for k, v := range s {
		if isReservedKey(k) || k == DatasetDataKey {
			continue
		}
		meta[k] = v
	}
	v, err := conv.Assemble(data, meta)
	if err != nil {
		return nil, fmt.Errorf("assemble %s: %w", tag, err)
	}
	return v, nil
}

func (r *Registry) deserializeSet(s map[string]any) (Set, error) {
	items, ok := s[SetItemsKey].([]any)
	if !ok {
		return nil, fmt.Errorf("%w: set structure missing %q sequence", ErrInvalidStructure, SetItemsKey)
	}
	out := make(Set, len(items))
	for _, elem := range items {
		v, err := r.deserialize(elem)
		if err != nil {
			return nil, fmt.Errorf("set element: %w", err)
		}
		// Arbitrary input can smuggle an unhashable element into a set
		// structure; reject it instead of panicking on insertion.
		if v != nil && !reflect.TypeOf(v).Comparable() {
			return nil, fmt.Errorf("%w: set element of type %T is not hashable", ErrInvalidStructure, v)
		}
		out[v] = struct{}{}
	}
	return out, nil
}

func isReservedKey(k string) bool {
	return k == TypeTagKey || k == ContainerKindKey || k == DatasetTagKey
}

// Equal reports structural equality of two composite instances: identical
// composite type and equal values for every copiable slot, compared
// recursively. Containers and nested composites compare by structure, never
// by identity.
func Equal(a, b *Object) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Spec() != b.Spec() {
		return false
	}
	for _, slot := range a.Spec().Slots() {
		if !slot.Copiable() {
			continue
		}
		av, err := a.Get(slot.Name())
		if err != nil {
			return false
		}
		bv, err := b.Get(slot.Name())
		if err != nil {
			return false
		}
		if !valueEqual(av, bv) {
			return false
		}
	}
	return true
}

func valueEqual(a, b any) bool {
	switch av := a.(type) {
	case *Object:
		bv, ok := b.(*Object)
		return ok && Equal(av, bv)
	case *Array:
		bv, ok := b.(*Array)
		return ok && av.Equal(bv)
	case *Timestamp:
		bv, ok := b.(*Timestamp)
		return ok && av.Equal(bv)
	case *TimeIndex:
		bv, ok := b.(*TimeIndex)
		return ok && av.Equal(bv)
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !valueEqual(av[i], bv[i]) {
				return false
			}
		}
		return true
	case map[string]any:
		bv, ok := b.(map[string]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, ae := range av {
			be, present := bv[k]
			if !present || !valueEqual(ae, be) {
				return false
			}
		}
		return true
	case Set:
		bv, ok := b.(Set)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k := range av {
			if !bv.Contains(k) {
				return false
			}
		}
		return true
	default:
		return reflect.DeepEqual(a, b)
	}
}
