package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

var errTruncatedVarint = errors.New("truncated or overlong varint")

type varintCodec struct{}

func (varintCodec) Compression() Compression { return CompressionVarint }

func (varintCodec) Encode(deltas []uint32) ([]byte, error) {
	return appendVarints(nil, deltas), nil
}

func (varintCodec) Decode(payload []byte, dst []uint32) ([]uint32, error) {
	return decodeVarints(payload, dst)
}

// appendVarints is shared by the block codecs, which compress this stream.
func appendVarints(buf []byte, deltas []uint32) []byte {
	if buf == nil {
		buf = make([]byte, 0, len(deltas)*2)
	}
	for _, d := range deltas {
		buf = binary.AppendUvarint(buf, uint64(d))
	}
	return buf
}

func decodeVarints(payload []byte, dst []uint32) ([]uint32, error) {
	for pos := 0; pos < len(payload); {
		v, n := binary.Uvarint(payload[pos:])
		if n <= 0 {
			return dst, fmt.Errorf("varint at payload byte %d: %w", pos, errTruncatedVarint)
		}
		if v > math.MaxUint32 {
			return dst, fmt.Errorf("varint at payload byte %d: delta %d overflows a document id", pos, v)
		}
		dst = append(dst, uint32(v))
		pos += n
	}
	return dst, nil
}
