// Package compress implements the tagged payload compression used for dataset
// rows. The tag is stored on the dataset leaf, so readers decode correctly
// regardless of the writer's configuration.
package compress

import (
	"encoding/binary"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Tag identifies the compression algorithm of a stored payload. Tags are
// format constants; changing a value breaks existing stores.
type Tag uint8

const (
	// None stores payloads uncompressed. The default: dataset rows are often
	// small enough that compression costs more than it saves.
	None Tag = 0

	// LZ4 block compression. Fast default for large numeric rows.
	LZ4 Tag = 1

	// Zstd level 3. Better ratios for smooth or repetitive data.
	Zstd Tag = 2
)

// String returns the configuration name of a tag.
func (t Tag) String() string {
	switch t {
	case None:
		return "none"
	case LZ4:
		return "lz4"
	case Zstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

// Parse maps a configuration name to its tag.
func Parse(name string) (Tag, error) {
	switch name {
	case "", "none":
		return None, nil
	case "lz4":
		return LZ4, nil
	case "zstd":
		return Zstd, nil
	default:
		return None, fmt.Errorf("unknown compression %q", name)
	}
}

var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("compress: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("compress: zstd decoder initialization failed: " + err.Error())
	}
}

// Encode compresses data according to tag. LZ4 payloads carry a 5-byte
// header: 4-byte little-endian uncompressed length (which block decompression
// needs) and a flag byte distinguishing compressed from raw passthrough of
// incompressible input.
func Encode(tag Tag, data []byte) ([]byte, error) {
	switch tag {
	case None:
		return data, nil
	case LZ4:
		out := make([]byte, 5+lz4.CompressBlockBound(len(data)))
		binary.LittleEndian.PutUint32(out[:4], uint32(len(data)))
		var c lz4.Compressor
		n, err := c.CompressBlock(data, out[5:])
		if err != nil {
			return nil, fmt.Errorf("lz4 compress: %w", err)
		}
		if n == 0 {
			// Incompressible input: CompressBlock signals it with n == 0.
			out[4] = 0
			out = append(out[:5], data...)
			return out, nil
		}
		out[4] = 1
		return out[:5+n], nil
	case Zstd:
		return zstdEncoder.EncodeAll(data, nil), nil
	default:
		return nil, fmt.Errorf("unknown compression tag %d", uint8(tag))
	}
}

// Decode reverses Encode for the given tag.
func Decode(tag Tag, payload []byte) ([]byte, error) {
	switch tag {
	case None:
		return payload, nil
	case LZ4:
		if len(payload) < 5 {
			return nil, fmt.Errorf("lz4 payload too short: %d bytes", len(payload))
		}
		size := binary.LittleEndian.Uint32(payload[:4])
		body := payload[5:]
		if payload[4] == 0 {
			out := make([]byte, size)
			copy(out, body)
			return out, nil
		}
		out := make([]byte, size)
		n, err := lz4.UncompressBlock(body, out)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompress: %w", err)
		}
		return out[:n], nil
	case Zstd:
		return zstdDecoder.DecodeAll(payload, nil)
	default:
		return nil, fmt.Errorf("unknown compression tag %d", uint8(tag))
	}
}
