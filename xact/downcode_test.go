package xact_test

import (
	"context"
	"testing"

	"github.com/NVIDIA/lrc-coordinator/cluster"
	"github.com/NVIDIA/lrc-coordinator/cmn"
	"github.com/NVIDIA/lrc-coordinator/transport/transporttest"
	"github.com/NVIDIA/lrc-coordinator/xact"
)

func TestUpcodeThenDowncodeRoundTrip(t *testing.T) {
	schema := schemaOptR()
	topo := threeRackTopology()
	m, _, _ := openSeededMeta(t, schema, topo)

	fake := transporttest.New()
	ctx := context.Background()
	if _, err := xact.Upcode(ctx, m, fake, fake, "ABCDEF"); err != nil {
		t.Fatalf("Upcode: %v", err)
	}

	res, err := xact.Downcode(ctx, m, fake, fake, "ABCDEF")
	if err != nil {
		t.Fatalf("Downcode: %v", err)
	}
	if !res.OK() {
		t.Fatalf("expected successful downcode, got %+v", res)
	}

	snap, err := m.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	f, ok := snap.File("ABCDEF")
	if !ok || !f.Hot {
		t.Errorf("expected file hot again after downcode, got %+v (ok=%v)", f, ok)
	}
	st, ok := snap.Stripe("ABCDEF-0000")
	if !ok || !st.Hot {
		t.Fatalf("expected stripe hot again after downcode, got %+v (ok=%v)", st, ok)
	}
	if len(st.ReservedIndices(schema)) != 0 {
		t.Errorf("expected no reserved shadows once hot again, got %v", st.ReservedIndices(schema))
	}
	for _, idx := range st.LiveIndices(schema) {
		if st.Blocks[idx] == nil {
			t.Errorf("live index %d missing a block after downcode", idx)
		}
	}
}

func TestPlanDowncodeMissingShadowAbortsBeforeDispatch(t *testing.T) {
	schema := schemaOptR()
	topo := threeRackTopology()
	m, _, stripeID := openSeededMeta(t, schema, topo)

	fake := transporttest.New()
	ctx := context.Background()
	if _, err := xact.Upcode(ctx, m, fake, fake, "ABCDEF"); err != nil {
		t.Fatalf("Upcode: %v", err)
	}

	snap, err := m.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	st, ok := snap.Stripe(stripeID)
	if !ok {
		t.Fatal("stripe not found")
	}
	reserved := st.ReservedIndices(schema)
	if len(reserved) == 0 {
		t.Fatal("fixture assumption broken: no reserved shadows after upcode")
	}
	delete(st.Blocks, reserved[0])
	if err := m.Commit(cluster.Update{PutStripes: []cluster.Stripe{st}}); err != nil {
		t.Fatalf("corrupt-metadata commit: %v", err)
	}

	snap2, err := m.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	_, err = xact.PlanDowncode(schema, &snap2, stripeID)
	if cmn.Cause(err) != cmn.ErrReservedShadowMissing {
		t.Fatalf("err = %v, want ErrReservedShadowMissing", err)
	}
}

func TestPlanDowncodeAlreadyHotIsNoOp(t *testing.T) {
	schema := schemaOptR()
	topo := threeRackTopology()
	m, _, stripeID := openSeededMeta(t, schema, topo)

	snap, err := m.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	plan, err := xact.PlanDowncode(schema, &snap, stripeID)
	if err != nil {
		t.Fatalf("PlanDowncode: %v", err)
	}
	if len(plan.Dispatches) != 0 || plan.Gateway != nil {
		t.Errorf("expected a no-op plan for an already-hot stripe, got %+v", plan)
	}
}
