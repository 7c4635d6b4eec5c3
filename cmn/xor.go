package cmn

import "fmt"

// wordSize is the stride used by XORInto, matching the original
// implementation's int-sized (4-byte) word loop while staying correct for
// buffers whose length isn't a multiple of the word size (design note:
// "a correct, portable word-stride implementation is required; the exposed
// contract is byte-level").
const wordSize = 4

// XORInto XORs src into dst in place. Both buffers must have equal length;
// this is the only parity primitive the Coordinator uses — there is no
// Reed-Solomon over GF(2^w) anywhere in this codebase (spec.md Non-goals).
func XORInto(dst, src []byte) error {
	if len(dst) != len(src) {
		return fmt.Errorf("xor: length mismatch %d != %d", len(dst), len(src))
	}
	n := len(dst)
	i := 0
	for ; i+wordSize <= n; i += wordSize {
		for j := 0; j < wordSize; j++ {
			dst[i+j] ^= src[i+j]
		}
	}
	for ; i < n; i++ {
		dst[i] ^= src[i]
	}
	return nil
}

// XOR returns a new buffer holding the XOR of all the given buffers, which
// must all have equal length. Used to compute a local/compact parity from
// its data blocks, or to XOR-aggregate helper contributions during a
// degraded read.
func XOR(bufs ...[]byte) ([]byte, error) {
	if len(bufs) == 0 {
		return nil, fmt.Errorf("xor: no buffers given")
	}
	out := make([]byte, len(bufs[0]))
	copy(out, bufs[0])
	for _, b := range bufs[1:] {
		if err := XORInto(out, b); err != nil {
			return nil, err
		}
	}
	return out, nil
}
