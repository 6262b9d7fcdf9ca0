package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Block payloads wrap the varint stream:
// [UncompressedSize uint32][CompressedSize uint32][Data...]
// CompressedSize == 0 means Data is the raw varint stream.
const blockHeaderSize = 8

// maxBlockSize bounds the declared uncompressed size of one posting list.
// A chunk holds at most 1<<16 documents by default, whose varints need well
// under a megabyte, so anything near this is a corrupt header.
const maxBlockSize = 1 << 28

// lz4MaxRatio is the most an LZ4 block can expand: one 255-run byte per
// 255 output bytes, plus the final literals.
const lz4MaxRatio = 255

var errShortBlock = errors.New("block shorter than its header")

func putBlock(raw, compressed []byte) []byte {
	if len(compressed) == 0 || len(compressed) >= len(raw) {
		out := make([]byte, blockHeaderSize+len(raw))
		binary.LittleEndian.PutUint32(out[0:], uint32(len(raw)))
		copy(out[blockHeaderSize:], raw)
		return out
	}
	out := make([]byte, blockHeaderSize+len(compressed))
	binary.LittleEndian.PutUint32(out[0:], uint32(len(raw)))
	binary.LittleEndian.PutUint32(out[4:], uint32(len(compressed)))
	copy(out[blockHeaderSize:], compressed)
	return out
}

// splitBlock returns the declared raw size, the body and whether it is compressed.
func splitBlock(payload []byte) (int, []byte, bool, error) {
	if len(payload) < blockHeaderSize {
		return 0, nil, false, errShortBlock
	}
	rawSize := int(binary.LittleEndian.Uint32(payload[0:]))
	compSize := int(binary.LittleEndian.Uint32(payload[4:]))
	body := payload[blockHeaderSize:]
	if compSize == 0 {
		if len(body) < rawSize {
			return 0, nil, false, fmt.Errorf("stored block: have %d bytes, header says %d", len(body), rawSize)
		}
		return rawSize, body[:rawSize], false, nil
	}
	if len(body) < compSize {
		return 0, nil, false, fmt.Errorf("compressed block: have %d bytes, header says %d", len(body), compSize)
	}
	if rawSize > maxBlockSize {
		return 0, nil, false, fmt.Errorf("compressed block: header size %d exceeds %d", rawSize, maxBlockSize)
	}
	return rawSize, body[:compSize], true, nil
}

type lz4Codec struct{}

func (lz4Codec) Compression() Compression { return CompressionLZ4 }

func (lz4Codec) Encode(deltas []uint32) ([]byte, error) {
	raw := appendVarints(nil, deltas)
	if len(raw) == 0 {
		return putBlock(raw, nil), nil
	}
	compressed := make([]byte, lz4.CompressBlockBound(len(raw)))
	n, err := lz4.CompressBlock(raw, compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("lz4 compress: %w", err)
	}
	return putBlock(raw, compressed[:n]), nil
}

func (lz4Codec) Decode(payload []byte, dst []uint32) ([]uint32, error) {
	rawSize, body, compressed, err := splitBlock(payload)
	if err != nil {
		return dst, err
	}
	if !compressed {
		return decodeVarints(body, dst)
	}
	if rawSize > lz4MaxRatio*len(body)+blockHeaderSize {
		return dst, fmt.Errorf("lz4 uncompress: header size %d impossible for %d compressed bytes", rawSize, len(body))
	}
	raw := make([]byte, rawSize)
	n, err := lz4.UncompressBlock(body, raw)
	if err != nil {
		return dst, fmt.Errorf("lz4 uncompress: %w", err)
	}
	if n != rawSize {
		return dst, fmt.Errorf("lz4 uncompress: got %d bytes, header says %d", n, rawSize)
	}
	return decodeVarints(raw, dst)
}

// The zstd encoder and decoder are safe for concurrent EncodeAll/DecodeAll
// and expensive to build, so one pair is shared by every codec instance.
var (
	zstdOnce    sync.Once
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
	zstdInitErr error
)

type zstdCodec struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

func newZstdCodec() (Codec, error) {
	zstdOnce.Do(func() {
		// Concurrency 1 keeps both sides synchronous: no background goroutines.
		zstdEncoder, zstdInitErr = zstd.NewWriter(nil,
			zstd.WithEncoderLevel(zstd.SpeedDefault),
			zstd.WithEncoderConcurrency(1))
		if zstdInitErr != nil {
			return
		}
		zstdDecoder, zstdInitErr = zstd.NewReader(nil,
			zstd.WithDecoderConcurrency(1),
			zstd.WithDecoderMaxMemory(maxBlockSize))
	})
	if zstdInitErr != nil {
		return nil, fmt.Errorf("zstd init: %w", zstdInitErr)
	}
	return zstdCodec{enc: zstdEncoder, dec: zstdDecoder}, nil
}

func (zstdCodec) Compression() Compression { return CompressionZSTD }

func (c zstdCodec) Encode(deltas []uint32) ([]byte, error) {
	raw := appendVarints(nil, deltas)
	if len(raw) == 0 {
		return putBlock(raw, nil), nil
	}
	return putBlock(raw, c.enc.EncodeAll(raw, nil)), nil
}

func (c zstdCodec) Decode(payload []byte, dst []uint32) ([]uint32, error) {
	rawSize, body, compressed, err := splitBlock(payload)
	if err != nil {
		return dst, err
	}
	if !compressed {
		return decodeVarints(body, dst)
	}
	// Capacity follows the body; the declared size is only compared after.
	raw, err := c.dec.DecodeAll(body, make([]byte, 0, min(rawSize, 64*len(body))))
	if err != nil {
		return dst, fmt.Errorf("zstd decode: %w", err)
	}
	if len(raw) != rawSize {
		return dst, fmt.Errorf("zstd decode: got %d bytes, header says %d", len(raw), rawSize)
	}
	return decodeVarints(raw, dst)
}
