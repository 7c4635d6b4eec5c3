package cluster_test

import (
	"testing"

	"github.com/NVIDIA/lrc-coordinator/cluster"
)

func testSchema() cluster.Schema {
	return cluster.Schema{K: 4, LF: 2, LC: 1, G: 0, ChunkSize: 1024, PacketSize: 512, Place: cluster.OptR}
}

func openMeta(t *testing.T) *cluster.Meta {
	t.Helper()
	m, err := cluster.NewMeta(testSchema())
	if err != nil {
		t.Fatalf("NewMeta: %v", err)
	}
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestMetaSnapshotRoundTrip(t *testing.T) {
	m := openMeta(t)
	if err := m.SetGateway("10.0.0.9"); err != nil {
		t.Fatalf("SetGateway: %v", err)
	}
	if err := m.AddRack("R0", "10.0.0.1", "10.0.0.2"); err != nil {
		t.Fatalf("AddRack: %v", err)
	}

	blocks := map[int]*cluster.Block{
		0: {ID: "ABCDEF-0000-00", Index: 0, StripeID: "ABCDEF-0000", Node: "10.0.0.1"},
	}
	stripe := cluster.Stripe{ID: "ABCDEF-0000", File: "ABCDEF", Seq: 0, Hot: true, Blocks: blocks}
	file := cluster.File{Name: "ABCDEF", Size: 4096, Hot: true, Stripes: []string{"ABCDEF-0000"}}

	if err := m.Commit(cluster.Update{PutFile: &file, PutStripes: []cluster.Stripe{stripe}}); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	snap, err := m.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.Gateway != "10.0.0.9" {
		t.Errorf("gateway = %q, want 10.0.0.9", snap.Gateway)
	}
	if got := snap.Topology.RackOf("10.0.0.2"); got != "R0" {
		t.Errorf("RackOf(10.0.0.2) = %q, want R0", got)
	}
	got, ok := snap.Stripe("ABCDEF-0000")
	if !ok {
		t.Fatal("stripe not found in snapshot")
	}
	if got.Blocks[0].Node != "10.0.0.1" {
		t.Errorf("block 0 node = %q, want 10.0.0.1", got.Blocks[0].Node)
	}

	// Mutating the snapshot's block must never alias the store's own state
	// (the "shallow copy" concern): every Snapshot() call round-trips
	// through JSON, so each call's *Block pointers are freshly allocated.
	got.Blocks[0].Node = "mutated"
	snap2, err := m.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot (2nd): %v", err)
	}
	got2, _ := snap2.Stripe("ABCDEF-0000")
	if got2.Blocks[0].Node != "10.0.0.1" {
		t.Fatalf("snapshot mutation leaked into the store: got %q", got2.Blocks[0].Node)
	}
}

func TestStripeLiveAndReservedIndices(t *testing.T) {
	schema := cluster.Schema{K: 4, LF: 2, LC: 1, G: 0, ChunkSize: 1, PacketSize: 1, Place: cluster.OptR}

	hot := cluster.Stripe{Hot: true}
	if got := hot.LiveIndices(schema); len(got) != schema.K+schema.LF {
		t.Errorf("hot live indices = %v, want %d entries", got, schema.K+schema.LF)
	}
	if got := hot.ReservedIndices(schema); got != nil {
		t.Errorf("hot reserved indices = %v, want nil", got)
	}

	cold := cluster.Stripe{Hot: false}
	live := cold.LiveIndices(schema)
	if len(live) != schema.K+schema.LC {
		t.Fatalf("cold live indices = %v, want %d entries", live, schema.K+schema.LC)
	}
	if live[len(live)-1] != schema.K+cluster.CompactParitySlot(0, schema) {
		t.Errorf("cold live parity slot = %d, want %d", live[len(live)-1], schema.K+cluster.CompactParitySlot(0, schema))
	}
	reserved := cold.ReservedIndices(schema)
	if len(reserved) != schema.LF-schema.LC {
		t.Fatalf("cold reserved indices = %v, want %d entries", reserved, schema.LF-schema.LC)
	}
}

func TestCompactGroupOf(t *testing.T) {
	schema := cluster.Schema{K: 4, LF: 4, LC: 2, G: 0, ChunkSize: 1, PacketSize: 1, Place: cluster.OptR}
	// delta = 2: fast slots {0,1} -> compact group 0 (0 is target), {2,3} -> group 1 (2 is target).
	cases := []struct {
		fastSlot   int
		wantGroup  int
		wantTarget bool
	}{
		{0, 0, true},
		{1, 0, false},
		{2, 1, true},
		{3, 1, false},
	}
	for _, tc := range cases {
		group, target := cluster.CompactGroupOf(tc.fastSlot, schema)
		if group != tc.wantGroup || target != tc.wantTarget {
			t.Errorf("CompactGroupOf(%d) = (%d,%v), want (%d,%v)", tc.fastSlot, group, target, tc.wantGroup, tc.wantTarget)
		}
	}
}
