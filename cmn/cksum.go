package cmn

import (
	"fmt"

	"github.com/OneOfOne/xxhash"
)

// Cksum is a block buffer's checksum, the Go analogue of the EC metadata
// "chk" field noted in the teacher's design comments ("chk - original
// object checksum (used to choose the correct slices when restoring)").
type Cksum struct {
	Value uint64
}

// ComputeCksum hashes a block buffer.
func ComputeCksum(buf []byte) Cksum {
	return Cksum{Value: xxhash.Checksum64(buf)}
}

// Verify recomputes the checksum of buf and compares it to c.
func (c Cksum) Verify(buf []byte) error {
	got := ComputeCksum(buf)
	if got != c {
		return fmt.Errorf("checksum mismatch: want %x, got %x", c.Value, got.Value)
	}
	return nil
}

func (c Cksum) String() string { return fmt.Sprintf("%016x", c.Value) }
