package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalDeterministic(t *testing.T) {
	value := map[string]any{"b": 2, "a": 1, "c": []any{"x", "y"}}

	first, err := Marshal(value)
	require.NoError(t, err)
	second, err := Marshal(value)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestUnmarshalMapType(t *testing.T) {
	data, err := Marshal(map[string]any{"k": map[string]any{"n": 1}})
	require.NoError(t, err)

	var decoded any
	require.NoError(t, Unmarshal(data, &decoded))

	outer, ok := decoded.(map[string]any)
	require.True(t, ok, "mappings decode as map[string]any, not map[any]any")
	_, ok = outer["k"].(map[string]any)
	assert.True(t, ok)
}

func TestUnmarshalRejectsTrailingData(t *testing.T) {
	data, err := Marshal("value")
	require.NoError(t, err)

	var decoded any
	require.Error(t, Unmarshal(append(data, 0x00), &decoded))
}
