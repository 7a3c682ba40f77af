package strux

import (
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyCategories(t *testing.T) {
	spec := MustTypeSpec("struxtest.Classified", NewSlot("x"))
	RegisterComposite(spec)

	tests := []struct {
		name  string
		value any
		want  Category
	}{
		{"nil", nil, CategoryPrimitive},
		{"string", "hello", CategoryPrimitive},
		{"bool", true, CategoryPrimitive},
		{"int", 42, CategoryPrimitive},
		{"int64", int64(-7), CategoryPrimitive},
		{"uint32", uint32(7), CategoryPrimitive},
		{"float64", 3.5, CategoryPrimitive},
		{"path", Path("/tmp/data"), CategoryPrimitive},
		{"array", Vector(1, 2, 3), CategoryDataset},
		{"timestamp", NewTimestamp(time.Now()), CategoryDataset},
		{"time index", NewTimeIndex(time.Now()), CategoryDataset},
		{"sequence", []any{1, "two"}, CategoryContainer},
		{"mapping", map[string]any{"k": 1}, CategoryContainer},
		{"set", NewSet("a", "b"), CategoryContainer},
		{"composite", spec.New(), CategoryComposite},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Classify(tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassifyRegisteredPrimitive(t *testing.T) {
	idType := reflect.TypeOf(customID(""))
	require.NoError(t, RegisterPrimitive(idType))
	defer RemovePrimitive(idType)

	got, err := Classify(customID("u-123"))
	require.NoError(t, err)
	assert.Equal(t, CategoryPrimitive, got)

	RemovePrimitive(idType)
	_, err = Classify(customID("u-123"))
	require.ErrorIs(t, err, ErrUnsupportedType)
}

func TestClassifyUnsupported(t *testing.T) {
	type opaque struct{ n int }

	_, err := Classify(&opaque{n: 1})
	require.ErrorIs(t, err, ErrUnsupportedType)
	assert.True(t, IsClassificationError(err))
	// The failure names the offending runtime type.
	assert.Contains(t, err.Error(), "opaque")
}

func TestClassifyUnregisteredComposite(t *testing.T) {
	r := NewRegistry()
	spec := MustTypeSpec("struxtest.Orphan", NewSlot("x"))

	_, err := r.Classify(spec.New())
	require.ErrorIs(t, err, ErrTypeNotRegistered)
}
