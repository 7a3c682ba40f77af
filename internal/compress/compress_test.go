package compress

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTagNames(t *testing.T) {
	for _, tag := range []Tag{None, LZ4, Zstd} {
		parsed, err := Parse(tag.String())
		require.NoError(t, err)
		assert.Equal(t, tag, parsed)
	}

	parsed, err := Parse("")
	require.NoError(t, err)
	assert.Equal(t, None, parsed, "empty name means no compression")

	_, err = Parse("gzip")
	require.Error(t, err)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	payloads := map[string][]byte{
		"empty":      {},
		"tiny":       []byte("x"),
		"repetitive": bytes.Repeat([]byte("0123456789abcdef"), 256),
		"sparse":     make([]byte, 4096),
	}

	for _, tag := range []Tag{None, LZ4, Zstd} {
		for name, payload := range payloads {
			t.Run(tag.String()+"/"+name, func(t *testing.T) {
				encoded, err := Encode(tag, payload)
				require.NoError(t, err)
				decoded, err := Decode(tag, encoded)
				require.NoError(t, err)
				assert.Equal(t, payload, decoded)
			})
		}
	}
}

func TestLZ4IncompressiblePassthrough(t *testing.T) {
	// A short high-entropy payload that block compression cannot shrink.
	payload := []byte{0x7f, 0x01, 0xe3, 0x9a, 0x44, 0xb0, 0x2c, 0x5d}

	encoded, err := Encode(LZ4, payload)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(encoded), 5)
	assert.Equal(t, byte(0), encoded[4], "incompressible input is stored raw behind the header")

	decoded, err := Decode(LZ4, encoded)
	require.NoError(t, err)
	assert.Equal(t, payload, decoded)
}

func TestDecodeRejectsInvalidInput(t *testing.T) {
	_, err := Decode(LZ4, []byte{1, 2})
	require.Error(t, err, "lz4 payloads shorter than the header are invalid")

	_, err = Decode(Zstd, []byte("not zstd"))
	require.Error(t, err)

	_, err = Encode(Tag(9), []byte("x"))
	require.Error(t, err)
	_, err = Decode(Tag(9), []byte("x"))
	require.Error(t, err)
}
