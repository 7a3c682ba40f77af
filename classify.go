package strux

import (
	"reflect"
)

// Classify decides a value's serialization category. The priority order is
// load-bearing: nil and built-in or registered primitives first, then
// registered dataset types, then containers, then registered composites.
// Anything left over is a classification failure naming the runtime type.
func Classify(v any) (Category, error) {
	return defaultRegistry.Classify(v)
}

// Classify decides a value's category against this registry. See the
// package-level Classify.
func (r *Registry) Classify(v any) (Category, error) {
	if v == nil {
		return CategoryPrimitive, nil
	}

	switch v.(type) {
	case string, Path, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return CategoryPrimitive, nil
	}

	t := reflect.TypeOf(v)
	if r.IsPrimitive(t) {
		return CategoryPrimitive, nil
	}
	if r.IsDataset(t) {
		return CategoryDataset, nil
	}

	switch obj := v.(type) {
	case []any, map[string]any, Set:
		return CategoryContainer, nil
	case *Object:
		if !r.IsRegistered(obj.Spec().Name()) {
			return 0, NewTypeNotRegisteredError(obj.Spec().Name())
		}
		return CategoryComposite, nil
	}

	return 0, NewUnsupportedTypeError(qualifiedTypeName(t))
}

// qualifiedTypeName returns the import-path-qualified name of t for
// diagnostics, e.g. "github.com/hengadev/strux.Path" or "*mypkg.Thing".
func qualifiedTypeName(t reflect.Type) string {
	prefix := ""
	for t.Kind() == reflect.Pointer {
		prefix += "*"
		t = t.Elem()
	}
	if t.PkgPath() == "" {
		return prefix + t.String()
	}
	return prefix + t.PkgPath() + "." + t.Name()
}
