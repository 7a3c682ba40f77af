package strux

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlotDefaults(t *testing.T) {
	t.Run("static default", func(t *testing.T) {
		spec := MustTypeSpec("struxtest.Defaults", NewSlot("name").WithDefault("anonymous"))
		obj := spec.New()

		v, err := obj.Get("name")
		require.NoError(t, err)
		assert.Equal(t, "anonymous", v)
	})

	t.Run("factory runs once per instance", func(t *testing.T) {
		calls := 0
		spec := MustTypeSpec("struxtest.FactoryDefaults",
			NewSlot("items").WithFactory(func(*Object) any {
				calls++
				return []any{}
			}),
		)

		first := spec.New()
		second := spec.New()

		a, err := first.Get("items")
		require.NoError(t, err)
		_, err = first.Get("items")
		require.NoError(t, err)
		b, err := second.Get("items")
		require.NoError(t, err)

		assert.Equal(t, 2, calls, "factory must run once per instance, not per read")

		// Factory values are never shared between instances.
		aSeq := a.([]any)
		aSeq = append(aSeq, "x")
		_ = aSeq
		assert.Empty(t, b.([]any))
	})

	t.Run("unset slot without default reads nil", func(t *testing.T) {
		spec := MustTypeSpec("struxtest.NoDefault", NewSlot("x"))
		v, err := spec.New().Get("x")
		require.NoError(t, err)
		assert.Nil(t, v)
	})
}

func TestSlotParser(t *testing.T) {
	spec := MustTypeSpec("struxtest.Parsed",
		NewSlot("tag").WithParser(func(_ *Object, raw any) (any, error) {
			s, ok := raw.(string)
			if !ok {
				return nil, fmt.Errorf("expected string, got %T", raw)
			}
			return strings.ToLower(s), nil
		}),
	)
	obj := spec.New()

	require.NoError(t, obj.Set("tag", "MiXeD"))
	assert.Equal(t, "mixed", obj.MustGet("tag"))

	err := obj.Set("tag", 42)
	require.ErrorIs(t, err, ErrValidationFailed)
	assert.True(t, IsValidationError(err))
	assert.Contains(t, err.Error(), "tag")
	// The rejected assignment left the stored value untouched.
	assert.Equal(t, "mixed", obj.MustGet("tag"))
}

func TestSlotObservers(t *testing.T) {
	t.Run("fire in registration order with old and new", func(t *testing.T) {
		var log []string
		observe := func(label string) Observer {
			return func(_ *Object, old, new any) error {
				log = append(log, fmt.Sprintf("%s:%v->%v", label, old, new))
				return nil
			}
		}
		spec := MustTypeSpec("struxtest.Observed",
			NewSlot("n").WithObserver(observe("first")).WithObserver(observe("second")),
		)
		obj := spec.New()

		require.NoError(t, obj.Set("n", 1))
		require.NoError(t, obj.Set("n", 2))
		assert.Equal(t, []string{
			"first:<nil>->1", "second:<nil>->1",
			"first:1->2", "second:1->2",
		}, log)
	})

	t.Run("observer error aborts the rest, value stands", func(t *testing.T) {
		boom := errors.New("boom")
		var secondRan bool
		spec := MustTypeSpec("struxtest.ObserverAbort",
			NewSlot("n").
				WithObserver(func(*Object, any, any) error { return boom }).
				WithObserver(func(*Object, any, any) error { secondRan = true; return nil }),
		)
		obj := spec.New()

		err := obj.Set("n", 5)
		require.ErrorIs(t, err, boom)
		assert.False(t, secondRan)
		assert.Equal(t, 5, obj.MustGet("n"))
	})
}

func TestSlotWriteOnce(t *testing.T) {
	spec := MustTypeSpec("struxtest.Frozen", NewSlot("id").WriteOnce())
	obj := spec.New()

	require.NoError(t, obj.Set("id", "a"))

	// The second assignment fails even with an equal value.
	err := obj.Set("id", "a")
	require.ErrorIs(t, err, ErrWriteOnceViolation)
	assert.Contains(t, err.Error(), "id")
	assert.Equal(t, "a", obj.MustGet("id"))

	// Another instance of the same type starts fresh.
	require.NoError(t, spec.New().Set("id", "b"))
}

func TestSlotPostInit(t *testing.T) {
	calls := 0
	spec := MustTypeSpec("struxtest.Lazy",
		NewSlot("cache").WithPostInit(func(obj *Object) error {
			calls++
			return obj.Set("cache", "warmed")
		}),
	)
	obj := spec.New()

	v, err := obj.Get("cache")
	require.NoError(t, err)
	assert.Equal(t, "warmed", v)

	_, err = obj.Get("cache")
	require.NoError(t, err)
	assert.Equal(t, 1, calls, "post-initializer must run exactly once")
}

func TestSlotBuildersDoNotMutate(t *testing.T) {
	base := NewSlot("field").WithDefault("base")

	derived := base.WriteOnce().NoCopy().WithObserver(func(*Object, any, any) error { return nil })

	assert.True(t, base.Copiable())
	assert.False(t, base.writeOnce)
	assert.Empty(t, base.observers)

	assert.False(t, derived.Copiable())
	assert.True(t, derived.writeOnce)
	assert.Len(t, derived.observers, 1)
}

func TestSlotWithoutObserver(t *testing.T) {
	var fired []string
	first := Observer(func(*Object, any, any) error { fired = append(fired, "first"); return nil })
	second := Observer(func(*Object, any, any) error { fired = append(fired, "second"); return nil })

	slot := NewSlot("n").WithObserver(first).WithObserver(second).WithoutObserver(first)
	spec := MustTypeSpec("struxtest.ObserverRemoval", slot)

	require.NoError(t, spec.New().Set("n", 1))
	assert.Equal(t, []string{"second"}, fired)
}

func TestTypeSpecInheritance(t *testing.T) {
	parent := MustTypeSpec("struxtest.Base",
		NewSlot("id").WithDefault(""),
	)
	child := MustExtend("struxtest.Derived", parent,
		NewSlot("extra").WithDefault(0),
	)

	names := make([]string, 0, 2)
	for _, s := range child.Slots() {
		names = append(names, s.Name())
	}
	assert.Equal(t, []string{"id", "extra"}, names, "inherited slots come first, in declaration order")

	// Inherited slot state is per instance, not shared with the parent type.
	obj := child.New()
	require.NoError(t, obj.Set("id", "c-1"))
	assert.Equal(t, "", parent.New().MustGet("id"))

	// Redeclaring an inherited slot name is rejected.
	_, err := NewTypeSpec("struxtest.Clash", parent, NewSlot("id"))
	require.ErrorIs(t, err, ErrDuplicateSlot)
}

func TestObjectUnknownSlot(t *testing.T) {
	spec := MustTypeSpec("struxtest.Narrow", NewSlot("x"))
	obj := spec.New()

	_, err := obj.Get("missing")
	require.ErrorIs(t, err, ErrUnknownSlot)
	err = obj.Set("missing", 1)
	require.ErrorIs(t, err, ErrUnknownSlot)
	assert.Contains(t, err.Error(), "missing")
}
