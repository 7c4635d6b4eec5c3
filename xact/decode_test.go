package xact_test

import (
	"context"
	"testing"

	"github.com/NVIDIA/lrc-coordinator/cmn"
	"github.com/NVIDIA/lrc-coordinator/transport/transporttest"
	"github.com/NVIDIA/lrc-coordinator/xact"
)

// TestPlanDecodeCoResidentHelper pins down spec.md §8 scenario 2: under
// OPT_R with k=4,l_f=2, group 0's round-robin placement co-locates its
// parity (block 4) with its first data block (block 0) on the same node,
// so reconstructing block 0 only needs to wait on block 1's node even
// though the helper set has two members.
func TestPlanDecodeCoResidentHelper(t *testing.T) {
	schema := schemaOptR()
	topo := threeRackTopology()
	m, plc, stripeID := openSeededMeta(t, schema, topo)

	if plc[0] != plc[4] {
		t.Fatalf("fixture assumption broken: block 0 (%s) and block 4 (%s) are not co-resident", plc[0], plc[4])
	}

	snap, err := m.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	plan, err := xact.PlanDecode(schema, &snap, stripeID, 0)
	if err != nil {
		t.Fatalf("PlanDecode: %v", err)
	}

	if len(plan.Dispatches) != 2 {
		t.Fatalf("dispatches = %v, want 2 (helper send + reconstruct)", plan.Dispatches)
	}
	last := plan.Dispatches[len(plan.Dispatches)-1]
	if last.Node != plc[0] || last.WantAck != "fi_deco" {
		t.Errorf("final dispatch = %+v, want node %s gated on fi_deco", last, plc[0])
	}
	if plan.Gateway != nil {
		t.Errorf("expected no gateway program, got %+v", plan.Gateway)
	}
}

func TestDownloadNoMissingBlocksSkipsRepair(t *testing.T) {
	schema := schemaOptR()
	topo := threeRackTopology()
	m, _, _ := openSeededMeta(t, schema, topo)

	fake := transporttest.New()
	res, err := xact.Download(context.Background(), m, fake, fake, "ABCDEF", -1)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if !res.OK() {
		t.Fatalf("expected OK result with nothing to repair, got %+v", res)
	}
	for _, c := range fake.Calls() {
		if c.Cmd[:2] != "dl" {
			t.Errorf("expected only dl probes when nothing is missing, got %q", c.Cmd)
		}
	}
}

func TestDownloadForcedMissDrivesRepairAndCommits(t *testing.T) {
	schema := schemaOptR()
	topo := threeRackTopology()
	m, plc, _ := openSeededMeta(t, schema, topo)

	fake := transporttest.New()
	res, err := xact.Download(context.Background(), m, fake, fake, "ABCDEF", 0)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if !res.OK() {
		t.Fatalf("expected successful repair, got %+v", res)
	}

	sawReco := false
	for _, c := range fake.Calls() {
		if c.Node == plc[0] && len(c.Cmd) >= 2 && c.Cmd[:2] == "de" {
			sawReco = true
		}
	}
	if !sawReco {
		t.Errorf("expected a decode dispatch to %s, calls=%v", plc[0], fake.Calls())
	}
}

func TestPlanDecodeUnknownStripe(t *testing.T) {
	schema := schemaOptR()
	topo := threeRackTopology()
	m, _, _ := openSeededMeta(t, schema, topo)
	snap, _ := m.Snapshot()
	_, err := xact.PlanDecode(schema, &snap, "NOSUCH-0000", 0)
	if cmn.Cause(err) != cmn.ErrFileNotFound {
		t.Errorf("err = %v, want ErrFileNotFound", err)
	}
}
