package cluster

import "github.com/NVIDIA/lrc-coordinator/cmn"

// File is a tenant file: name, byte size, hot/cold flag, ordered stripe IDs
// (spec.md §3). New files are hot; upcode turns a file cold, downcode turns
// it hot again.
type File struct {
	Name      string
	Size      int64
	TailBytes int64 // bytes silently dropped because Size isn't a multiple of k*chunk_size (design note 1)
	Hot       bool
	Stripes   []string
}

// Block is one stripe's block: ID, index in [0, k+l_f+g), resident node,
// and whether it currently lives in the reserved shadow set. Block IDs and
// their resident node are stable for the lifetime of the file (spec.md §3
// invariant 5) — transcoding only ever moves a block's *semantic role*
// between "live local parity" and "reserved shadow", never its physical
// slot or node.
type Block struct {
	ID       string
	Index    int // stable original numbering: data [0,k), fast/local parity [k,k+l_f), global parity [k+l_f,k+l_f+g)
	StripeID string
	Node     string
	Reserved bool // true once upcode has parked this fast-parity slot in the shadow set
	Cksum    cmn.Cksum
}

// IsData reports whether a block index is a data block ([0, k)).
func IsData(idx int, s Schema) bool { return idx < s.K }

// IsFastSlot reports whether a block index is one of the l_f local-parity
// physical slots ([k, k+l_f)). Whether a given slot is currently *live* (a
// fast or compact parity) or *reserved* depends on the stripe's hot/cold
// state and is computed by Stripe.LiveIndices/ReservedIndices, not by the
// index alone — the slot itself never moves.
func IsFastSlot(idx int, s Schema) bool { return idx >= s.K && idx < s.K+s.LF }

// IsGlobalParity reports whether a block index is a (currently unused)
// global parity ([k+l_f, k+l_f+g)).
func IsGlobalParity(idx int, s Schema) bool {
	return idx >= s.K+s.LF && idx < s.K+s.LF+s.G
}

// CompactGroupOf returns the compact group c = f/δ a fast-parity slot
// (0-based, i.e. idx-k) belongs to, and whether it is that group's target
// (f mod δ == 0) — spec.md §4.5's index math.
func CompactGroupOf(fastSlot int, s Schema) (group int, isTarget bool) {
	d := s.Delta()
	return fastSlot / d, fastSlot%d == 0
}

// CompactParitySlot returns the fast-parity slot (0-based, add k for the
// block index) that serves as compact parity c's live target.
func CompactParitySlot(c int, s Schema) int { return c * s.Delta() }

// Stripe owns a block set of size k+l_f while hot, k+l_c while cold, plus a
// reserved set of the l_f-l_c fast local parities that are not currently
// live (spec.md §3).
type Stripe struct {
	ID     string
	File   string
	Seq    int
	Hot    bool
	Blocks map[int]*Block // block index -> block, for every live and reserved slot
}

// LiveIndices returns the block indices that are part of the stripe's live
// set given its current hot/cold state and schema: all k data blocks, plus
// either all l_f fast parities (hot) or the l_c compact-parity targets
// (cold).
func (s *Stripe) LiveIndices(schema Schema) []int {
	out := make([]int, 0, schema.K+schema.LF)
	for i := 0; i < schema.K; i++ {
		out = append(out, i)
	}
	if s.Hot {
		for f := 0; f < schema.LF; f++ {
			out = append(out, schema.K+f)
		}
		return out
	}
	for c := 0; c < schema.LC; c++ {
		out = append(out, schema.K+CompactParitySlot(c, schema))
	}
	return out
}

// ReservedIndices returns the fast-parity block indices currently parked in
// the reserved shadow set: every non-target slot of every compact group,
// populated at first upcode and consumed by downcode.
func (s *Stripe) ReservedIndices(schema Schema) []int {
	if s.Hot {
		return nil
	}
	d := schema.Delta()
	out := make([]int, 0, schema.LF-schema.LC)
	for f := 0; f < schema.LF; f++ {
		if f%d != 0 {
			out = append(out, schema.K+f)
		}
	}
	return out
}
