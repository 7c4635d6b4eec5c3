package cmn

import "github.com/klauspost/reedsolomon"

// Global parities are reserved for future extension (spec.md §1 Non-goals):
// `g` is always 0 on the wire today. The source kept the global-parity
// placement/reconstruction branches as commented-out code; this rewrite
// preserves that as an explicit "not implemented" arm instead of silently
// eliding it, per the design notes. The one real call into reedsolomon.New
// below is what it would take to stand the codec up — constructing the
// encoder, never invoking Encode/Reconstruct — so the branch is reachable
// and testable without pretending global parity is supported.

// NewGlobalParityCodec always fails: see package comment. g must be 0 for
// every schema this Coordinator actually serves.
func NewGlobalParityCodec(dataShards, g int) (reedsolomon.Encoder, error) {
	if g <= 0 {
		return nil, ErrGlobalParityUnimplemented
	}
	enc, err := reedsolomon.New(dataShards, g)
	if err != nil {
		return nil, Wrap(err, "global parity codec")
	}
	// Unreachable in this Coordinator: no caller ever gets here with g > 0,
	// since Schema.Validate rejects it. Kept only so the dead arm compiles
	// against a real encoder rather than a type hole.
	return enc, ErrGlobalParityUnimplemented
}
