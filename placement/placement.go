// Package placement implements the Placement Planner (spec.md §4.2): given
// a stripe's schema and the current rack topology, it assigns each of the
// k+l_f blocks to a node.
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package placement

import (
	"github.com/NVIDIA/lrc-coordinator/cluster"
	"github.com/NVIDIA/lrc-coordinator/cmn"
)

// Placement maps a block index to its resident node ID.
type Placement map[int]string

// roundRobin assigns nodes within one rack in order, except a single-node
// rack co-locates every block it is asked to host (spec.md §4.2: "Nodes
// within a rack are assigned round-robin; a single-node rack co-locates
// all its blocks").
type roundRobin struct {
	nodes []string
	next  int
}

func newRoundRobin(nodes []string) *roundRobin { return &roundRobin{nodes: nodes} }

func (r *roundRobin) assign() string {
	if len(r.nodes) == 1 {
		return r.nodes[0]
	}
	n := r.nodes[r.next%len(r.nodes)]
	r.next++
	return n
}

// Plan computes the block->node placement for one stripe under the
// schema's configured policy. It fails with cmn.ErrInsufficientTopology if
// the policy's required rack count is unavailable (spec.md §4.2).
func Plan(schema cluster.Schema, topo *cluster.Topology) (Placement, error) {
	racks := topo.SortedRacks()
	if len(racks) < schema.RequiredRacks() {
		return nil, cmn.Wrapf(cmn.ErrInsufficientTopology,
			"place method %s needs %d racks, have %d", schema.Place, schema.RequiredRacks(), len(racks))
	}

	switch schema.Place {
	case cluster.OptS:
		return planOptS(schema, racks)
	case cluster.OptR:
		return planOptR(schema, racks)
	case cluster.Flat:
		return planFlat(schema, racks)
	default:
		return nil, cmn.Wrapf(cmn.ErrInsufficientTopology, "unknown place method %s", schema.Place)
	}
}

// planOptS is the cluster-aware policy: for each compact group i, the core
// rack R[i] hosts the group's r_f data blocks plus all δ of its fast
// parities; the remaining δ-1 fast sub-groups each land on a distinct
// auxiliary rack (spec.md §4.2).
func planOptS(schema cluster.Schema, racks []*cluster.Rack) (Placement, error) {
	rf, rc, delta := schema.RF(), schema.RC(), schema.Delta()
	out := make(Placement, schema.K+schema.LF)

	for i := 0; i < schema.LC; i++ {
		core := racks[i]
		rr := newRoundRobin(core.Nodes)

		for blk := i * rc; blk < i*rc+rf; blk++ {
			out[blk] = rr.assign()
		}
		for lp := i * delta; lp < i*delta+delta; lp++ {
			out[schema.K+lp] = rr.assign()
		}

		for j := 0; j < delta-1; j++ {
			auxIdx := schema.LC + i*(delta-1) + j
			if auxIdx >= len(racks) {
				return nil, cmn.Wrapf(cmn.ErrInsufficientTopology, "OPT_S: missing auxiliary rack %d", auxIdx)
			}
			aux := racks[auxIdx]
			auxRR := newRoundRobin(aux.Nodes)
			for blk := i*rc + (j+1)*rf; blk < i*rc+(j+2)*rf; blk++ {
				out[blk] = auxRR.assign()
			}
		}
	}
	return out, nil
}

// planOptR is the rack-distributed policy: group i's r_f data blocks and
// its single fast parity live on rack R[i] (spec.md §4.2).
func planOptR(schema cluster.Schema, racks []*cluster.Rack) (Placement, error) {
	rf := schema.RF()
	out := make(Placement, schema.K+schema.LF)

	for i := 0; i < schema.LC*schema.Delta(); i++ {
		rack := racks[i]
		rr := newRoundRobin(rack.Nodes)
		for blk := i * rf; blk < i*rf+rf; blk++ {
			out[blk] = rr.assign()
		}
		out[schema.K+i] = rr.assign()
	}
	return out, nil
}

// planFlat places each of the k+l_f blocks on the first node of a distinct
// rack (spec.md §4.2) — never round-robin, unlike the other two policies.
func planFlat(schema cluster.Schema, racks []*cluster.Rack) (Placement, error) {
	out := make(Placement, schema.K+schema.LF)
	for i := 0; i < schema.K+schema.LF; i++ {
		out[i] = racks[i].Nodes[0]
	}
	return out, nil
}
