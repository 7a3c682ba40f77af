package strux

import (
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sensorSpec(t *testing.T) *TypeSpec {
	t.Helper()
	spec := MustTypeSpec("struxtest.Sensor",
		NewSlot("name").WithDefault(""),
		NewSlot("value").WithDefault(0.0),
	)
	RegisterComposite(spec)
	return spec
}

func TestSerializeComposite(t *testing.T) {
	spec := sensorSpec(t)
	obj := spec.New().MustSet("name", "thermo").MustSet("value", 21.5)

	structure, err := Serialize(obj)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		TypeTagKey: "struxtest.Sensor",
		"name":     "thermo",
		"value":    21.5,
	}, structure)

	back, err := Deserialize(structure)
	require.NoError(t, err)
	restored, ok := back.(*Object)
	require.True(t, ok)
	assert.True(t, Equal(obj, restored))
}

func TestSerializeDataset(t *testing.T) {
	readings := Vector(1, 2, 3)

	structure, err := Serialize(readings)
	require.NoError(t, err)

	m, ok := structure.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, ArrayTag, m[DatasetTagKey])
	assert.Equal(t, []float64{1, 2, 3}, m[DatasetDataKey])
	assert.Equal(t, []int{3}, m["shape"])

	back, err := Deserialize(structure)
	require.NoError(t, err)
	arr, ok := back.(*Array)
	require.True(t, ok)
	assert.True(t, readings.Equal(arr))
}

func TestSerializeDatasetMetadata(t *testing.T) {
	type measure struct {
		data []float64
		unit string
	}
	seriesType := reflect.TypeOf((*measure)(nil))
	require.NoError(t, RegisterDataset(seriesType, &DatasetConverter{
		Name: "struxtest.measure",
		Disassemble: func(v any) ([]float64, map[string]any, error) {
			m := v.(*measure)
			return m.data, map[string]any{"unit": m.unit}, nil
		},
		Assemble: func(data []float64, meta map[string]any) (any, error) {
			unit, _ := meta["unit"].(string)
			return &measure{data: data, unit: unit}, nil
		},
	}))
	defer RemoveDataset(seriesType)

	original := &measure{data: []float64{0.5, 1.5}, unit: "m"}
	structure, err := Serialize(original)
	require.NoError(t, err)

	m, ok := structure.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "struxtest.measure", m[DatasetTagKey])
	assert.Equal(t, "m", m["unit"])

	back, err := Deserialize(structure)
	require.NoError(t, err)
	assert.Equal(t, original, back)
}

func TestSerializeContainers(t *testing.T) {
	spec := sensorSpec(t)
	obj := spec.New().MustSet("name", "inner")

	t.Run("sequence", func(t *testing.T) {
		structure, err := Serialize([]any{1, "two", obj})
		require.NoError(t, err)
		seq, ok := structure.([]any)
		require.True(t, ok)
		require.Len(t, seq, 3)
		assert.Equal(t, 1, seq[0])

		back, err := Deserialize(structure)
		require.NoError(t, err)
		restored := back.([]any)
		assert.True(t, Equal(obj, restored[2].(*Object)))
	})

	t.Run("mapping", func(t *testing.T) {
		structure, err := Serialize(map[string]any{"count": 3, "owner": obj})
		require.NoError(t, err)
		m, ok := structure.(map[string]any)
		require.True(t, ok)
		assert.Equal(t, KindMapping, m[ContainerKindKey])

		back, err := Deserialize(structure)
		require.NoError(t, err)
		restored := back.(map[string]any)
		assert.Equal(t, 3, restored["count"])
		assert.True(t, Equal(obj, restored["owner"].(*Object)))
	})

	t.Run("set", func(t *testing.T) {
		structure, err := Serialize(NewSet("a", "b", "c"))
		require.NoError(t, err)
		m, ok := structure.(map[string]any)
		require.True(t, ok)
		assert.Equal(t, KindSet, m[ContainerKindKey])
		assert.Len(t, m[SetItemsKey], 3)

		back, err := Deserialize(structure)
		require.NoError(t, err)
		restored := back.(Set)
		assert.True(t, restored.Contains("a"))
		assert.True(t, restored.Contains("b"))
		assert.True(t, restored.Contains("c"))
	})

	t.Run("mapping rejects reserved keys", func(t *testing.T) {
		_, err := Serialize(map[string]any{TypeTagKey: "bogus"})
		require.ErrorIs(t, err, ErrInvalidStructure)
	})
}

func TestSerializeCopySkipsNonCopiable(t *testing.T) {
	spec := MustTypeSpec("struxtest.Cached",
		NewSlot("name").WithDefault(""),
		NewSlot("cache").NoCopy().WithDefault("cold"),
	)
	RegisterComposite(spec)

	obj := spec.New().MustSet("name", "a").MustSet("cache", "hot")

	full, err := Serialize(obj)
	require.NoError(t, err)
	assert.Contains(t, full.(map[string]any), "cache")

	partial, err := SerializeCopy(obj)
	require.NoError(t, err)
	assert.NotContains(t, partial.(map[string]any), "cache")
}

func TestCopyIndependence(t *testing.T) {
	spec := MustTypeSpec("struxtest.Holder",
		NewSlot("tags").WithFactory(func(*Object) any { return map[string]any{} }),
		NewSlot("scratch").NoCopy().WithDefault("fresh"),
	)
	RegisterComposite(spec)

	obj := spec.New()
	require.NoError(t, obj.Set("tags", map[string]any{"env": "prod"}))
	require.NoError(t, obj.Set("scratch", "dirty"))

	copied, err := Copy(obj)
	require.NoError(t, err)
	require.NotSame(t, obj, copied)

	// Copiable state carries over, non-copiable state resets to defaults.
	assert.Equal(t, map[string]any{"env": "prod"}, copied.MustGet("tags"))
	assert.Equal(t, "fresh", copied.MustGet("scratch"))

	// Mutable container state is rebuilt, never aliased.
	copied.MustGet("tags").(map[string]any)["env"] = "staging"
	assert.Equal(t, "prod", obj.MustGet("tags").(map[string]any)["env"])
}

func TestDeserializeUnknownCompositeTag(t *testing.T) {
	_, err := Deserialize(map[string]any{TypeTagKey: "struxtest.Nowhere", "x": 1})
	require.ErrorIs(t, err, ErrTypeNotRegistered)
	assert.True(t, IsResolutionError(err))
}

func TestDeserializeUnknownSlot(t *testing.T) {
	sensorSpec(t)
	_, err := Deserialize(map[string]any{
		TypeTagKey: "struxtest.Sensor",
		"name":     "ok",
		"bogus":    1,
	})
	require.ErrorIs(t, err, ErrUnknownSlot)
}

func TestDeserializeSetRejectsUnhashableElements(t *testing.T) {
	tests := []struct {
		name string
		item any
	}{
		{"sequence element", []any{1, 2}},
		{"mapping element", map[string]any{ContainerKindKey: KindMapping, "k": 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Deserialize(map[string]any{
				ContainerKindKey: KindSet,
				SetItemsKey:      []any{tt.item},
			})
			require.ErrorIs(t, err, ErrInvalidStructure)
		})
	}
}

func TestDeserializeMissingSlotsKeepDefaults(t *testing.T) {
	spec := MustTypeSpec("struxtest.Defaulted",
		NewSlot("a").WithDefault("alpha"),
		NewSlot("b").WithDefault("beta"),
	)
	RegisterComposite(spec)

	back, err := Deserialize(map[string]any{TypeTagKey: "struxtest.Defaulted", "a": "set"})
	require.NoError(t, err)
	obj := back.(*Object)
	assert.Equal(t, "set", obj.MustGet("a"))
	assert.Equal(t, "beta", obj.MustGet("b"))
}

func TestEqual(t *testing.T) {
	spec := sensorSpec(t)
	now := time.Now()

	a := spec.New().MustSet("name", "x").MustSet("value", 1.0)
	b := spec.New().MustSet("name", "x").MustSet("value", 1.0)
	c := spec.New().MustSet("name", "x").MustSet("value", 2.0)

	assert.True(t, Equal(a, b))
	assert.False(t, Equal(a, c))

	other := MustTypeSpec("struxtest.Other", NewSlot("name"), NewSlot("value"))
	RegisterComposite(other)
	d := other.New().MustSet("name", "x").MustSet("value", 1.0)
	assert.False(t, Equal(a, d), "equality requires the same composite type")

	// Nested values compare structurally.
	nested := MustTypeSpec("struxtest.Nested", NewSlot("when"), NewSlot("inner"))
	RegisterComposite(nested)
	n1 := nested.New().MustSet("when", NewTimestamp(now)).MustSet("inner", a)
	n2 := nested.New().MustSet("when", NewTimestamp(now)).MustSet("inner", b)
	assert.True(t, Equal(n1, n2))
}
