package codec

import (
	"errors"
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"
)

// roaringCodec stores the running sums of the deltas as a bitmap. The sums
// are strictly increasing once the first delta is applied, so a list with a
// zero delta after its first element cannot be represented.
type roaringCodec struct{}

var errDuplicatePosting = errors.New("roaring codec: zero delta after first posting")

func (roaringCodec) Compression() Compression { return CompressionRoaring }

func (roaringCodec) Encode(deltas []uint32) ([]byte, error) {
	bm := roaring.New()
	var sum uint64
	for i, d := range deltas {
		if i > 0 && d == 0 {
			return nil, errDuplicatePosting
		}
		sum += uint64(d)
		if sum > 0xFFFFFFFF {
			return nil, fmt.Errorf("roaring codec: running sum %d overflows a document id", sum)
		}
		bm.Add(uint32(sum))
	}
	bm.RunOptimize()
	return bm.ToBytes()
}

func (roaringCodec) Decode(payload []byte, dst []uint32) ([]uint32, error) {
	bm := roaring.New()
	if err := bm.UnmarshalBinary(payload); err != nil {
		return dst, fmt.Errorf("roaring codec: %w", err)
	}
	var prev uint32
	it := bm.Iterator()
	for first := true; it.HasNext(); first = false {
		v := it.Next()
		if first {
			dst = append(dst, v)
		} else {
			dst = append(dst, v-prev)
		}
		prev = v
	}
	return dst, nil
}
