package cmn_test

import (
	"testing"

	"github.com/NVIDIA/lrc-coordinator/cmn"
)

func TestNewGlobalParityCodecRejectsDisabledGlobalParity(t *testing.T) {
	if _, err := cmn.NewGlobalParityCodec(4, 0); cmn.Cause(err) != cmn.ErrGlobalParityUnimplemented {
		t.Fatalf("err = %v, want ErrGlobalParityUnimplemented for g=0", err)
	}
}

func TestNewGlobalParityCodecBuildsARealEncoderThenRefuses(t *testing.T) {
	// g > 0 never reaches this call in the running Coordinator (Schema.Validate
	// rejects it first), but the codec itself still builds a genuine
	// reedsolomon.Encoder before refusing to hand it back, so the dependency
	// is exercised rather than aspirational.
	enc, err := cmn.NewGlobalParityCodec(4, 2)
	if cmn.Cause(err) != cmn.ErrGlobalParityUnimplemented {
		t.Fatalf("err = %v, want ErrGlobalParityUnimplemented for g>0", err)
	}
	if enc == nil {
		t.Fatal("expected a constructed encoder even though it is refused, got nil")
	}
}
