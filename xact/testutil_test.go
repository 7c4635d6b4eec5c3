package xact_test

import (
	"testing"

	"github.com/NVIDIA/lrc-coordinator/cluster"
	"github.com/NVIDIA/lrc-coordinator/cmn"
	"github.com/NVIDIA/lrc-coordinator/placement"
)

// threeRackTopology mirrors the placement package's own fixture (spec.md
// §8): three racks of two nodes each.
func threeRackTopology() *cluster.Topology {
	topo := cluster.NewTopology()
	topo.AddRack("R0", "10.0.0.1", "10.0.0.2")
	topo.AddRack("R1", "10.0.1.1", "10.0.1.2")
	topo.AddRack("R2", "10.0.2.1", "10.0.2.2")
	return topo
}

func schemaOptR() cluster.Schema {
	return cluster.Schema{K: 4, LF: 2, LC: 1, G: 0, ChunkSize: 16, PacketSize: 8, Place: cluster.OptR}
}

func schemaOptS() cluster.Schema {
	return cluster.Schema{K: 4, LF: 2, LC: 1, G: 0, ChunkSize: 16, PacketSize: 8, Place: cluster.OptS}
}

// openSeededMeta builds a Meta over topo/schema, commits one hot stripe
// placed by the real Placement Planner, and returns it along with the
// placement so a test can predict which node hosts which index.
func openSeededMeta(t *testing.T, schema cluster.Schema, topo *cluster.Topology) (*cluster.Meta, placement.Placement, string) {
	t.Helper()
	m, err := cluster.NewMeta(schema)
	if err != nil {
		t.Fatalf("NewMeta: %v", err)
	}
	t.Cleanup(func() { _ = m.Close() })

	for _, r := range topo.Racks {
		if err := m.AddRack(r.ID, r.Nodes...); err != nil {
			t.Fatalf("AddRack(%s): %v", r.ID, err)
		}
	}
	const gateway = "10.0.9.9"
	if err := m.SetGateway(gateway); err != nil {
		t.Fatalf("SetGateway: %v", err)
	}

	plc, err := placement.Plan(schema, topo)
	if err != nil {
		t.Fatalf("placement.Plan: %v", err)
	}

	const stripeID = "ABCDEF-0000"
	blocks := make(map[int]*cluster.Block, schema.K+schema.LF)
	for idx, node := range plc {
		id, err := cmn.BlockID(stripeID, idx)
		if err != nil {
			t.Fatalf("BlockID(%d): %v", idx, err)
		}
		blocks[idx] = &cluster.Block{
			ID:       id,
			Index:    idx,
			StripeID: stripeID,
			Node:     node,
		}
	}
	stripe := cluster.Stripe{ID: stripeID, File: "ABCDEF", Seq: 0, Hot: true, Blocks: blocks}
	file := cluster.File{Name: "ABCDEF", Size: int64(schema.K) * schema.ChunkSize, Hot: true, Stripes: []string{stripeID}}

	if err := m.Commit(cluster.Update{PutFile: &file, PutStripes: []cluster.Stripe{stripe}}); err != nil {
		t.Fatalf("seed Commit: %v", err)
	}
	return m, plc, stripeID
}
