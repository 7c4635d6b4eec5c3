package xact

import (
	"context"

	"github.com/NVIDIA/lrc-coordinator/cluster"
	"github.com/NVIDIA/lrc-coordinator/cmn"
	"github.com/NVIDIA/lrc-coordinator/codec"
	"github.com/NVIDIA/lrc-coordinator/transport"
)

// PlanDowncode implements the compact->fast Transcoder (spec.md §4.6) for
// one cold stripe: every compact group's δ-1 reserved shadows are
// recomputed from their own r_f data blocks (each shadow's rack-partition
// gather is the same co-resident/same-rack/remote-leader pattern as the
// Degraded-Read Planner, via buildGather) and persisted locally with
// castfi; the group's target is then recomputed.
//
// Unlike the original's per-policy staged choreography (an OPT_S "st re"
// redirect through the compact-parity node, a two-program FLAT gw_cmd_f
// chain), this planner gathers the compact parity uniformly across all
// three placement policies: directly from its own r_f data blocks under
// OPT_R (spec.md §4.6), the same sub-range a shadow recompute uses, or as
// the XOR of the group's just-recomputed shadows under OPT_S/FLAT, using
// the same co-resident/same-rack/remote-leader gather buildGather already
// provides for the Degraded-Read Planner. Both routes satisfy the same
// round-trip law (spec.md §8): compact_parity was itself built as that
// same XOR at the last upcode, so recomputing it from fresh shadows
// reproduces it.
//
// Every reserved shadow this group needs must already be on record before
// any dispatch is built — a cold stripe missing one is corrupt metadata,
// not a transient miss, so PlanDowncode fails fast with
// cmn.ErrReservedShadowMissing rather than emit a partial program.
func PlanDowncode(schema cluster.Schema, snap *cluster.Snapshot, stripeID string) (StripePlan, error) {
	stripe, ok := snap.Stripe(stripeID)
	if !ok {
		return StripePlan{}, cmn.Wrapf(cmn.ErrFileNotFound, "stripe %s", stripeID)
	}
	if stripe.Hot {
		return StripePlan{StripeID: stripeID}, nil // already hot: idempotent no-op
	}

	delta := schema.Delta()
	rf := schema.RF()
	for c := 0; c < schema.LC; c++ {
		base := c * delta
		for j := 1; j < delta; j++ {
			if _, ok := stripe.Blocks[schema.K+base+j]; !ok {
				return StripePlan{}, cmn.Wrapf(cmn.ErrReservedShadowMissing,
					"stripe %s: shadow %d of compact group %d", stripeID, j, c)
			}
		}
	}

	var dispatches []Dispatch
	var gwSteps []codec.Op
	newBlocks := make(map[int]*cluster.Block, len(stripe.Blocks))
	for idx, b := range stripe.Blocks {
		cp := *b
		newBlocks[idx] = &cp
	}

	for c := 0; c < schema.LC; c++ {
		base := c * delta
		compactIdx := schema.K + base
		compact, ok := stripe.Blocks[compactIdx]
		if !ok {
			return StripePlan{}, cmn.Wrapf(cmn.ErrTranscodeFailure, "stripe %s: missing compact parity %d", stripeID, compactIdx)
		}

		var shadowIdx []int
		for j := 1; j < delta; j++ {
			shadow := stripe.Blocks[schema.K+base+j]
			shadow.Reserved = false
			newBlocks[shadow.Index] = shadow

			group := base + j
			shadowIdx = append(shadowIdx, shadow.Index)

			rStart := group * rf
			dataIdx := make([]int, 0, rf)
			for i := 0; i < rf; i++ {
				dataIdx = append(dataIdx, rStart+i)
			}
			gather := buildGather(snap.Topology, stripe, shadow.Node, shadow.ID, snap.Gateway, dataIdx, codec.Do)
			dispatches = append(dispatches, gather.dispatches...)
			gwSteps = append(gwSteps, gather.gwSteps...)

			shadowCmd := codec.Do(codec.Wa(gather.destPeers...), codec.Reco(shadow.ID), codec.CastFi(shadow.ID)).String()
			dispatches = append(dispatches, Dispatch{Node: shadow.Node, Cmd: shadowCmd})
		}

		if schema.Place == cluster.OptR {
			// Under OPT_R the target is recomputed directly from its own
			// r_f data blocks (spec.md §4.6), the same r_f-sized sub-range
			// as the shadow loop above, not the whole r_c-sized compact
			// group: reco accumulates contributors into the node's prior
			// fast-parity value, so handing it the other subgroups' data
			// too would XOR in blocks that never belonged to this parity.
			rStart := base * rf
			dataIdx := make([]int, 0, rf)
			for i := 0; i < rf; i++ {
				dataIdx = append(dataIdx, rStart+i)
			}
			gather := buildGather(snap.Topology, stripe, compact.Node, compact.ID, snap.Gateway, dataIdx, codec.Do)
			dispatches = append(dispatches, gather.dispatches...)
			gwSteps = append(gwSteps, gather.gwSteps...)
			cmd := codec.Do(codec.Wa(gather.destPeers...), codec.Reco(compact.ID)).String()
			dispatches = append(dispatches, Dispatch{Node: compact.Node, Cmd: cmd, WantAck: codec.AckDowncodeDone})
		} else {
			// OPT_S/FLAT may scatter a group's shadows across racks, so
			// gathering them at the compact-parity node reuses the same
			// co-resident/same-rack/remote-leader gather as everywhere
			// else: the shadows' own freshly-recomputed values are what
			// XOR back together into the compact parity (spec.md §8's
			// round-trip law: compact_parity was itself built as their
			// XOR at the last upcode).
			gather := buildGather(snap.Topology, stripe, compact.Node, compact.ID, snap.Gateway, shadowIdx, codec.Do)
			dispatches = append(dispatches, gather.dispatches...)
			gwSteps = append(gwSteps, gather.gwSteps...)
			cmd := codec.Do(codec.Wa(gather.destPeers...), codec.Reco(compact.ID)).String()
			dispatches = append(dispatches, Dispatch{Node: compact.Node, Cmd: cmd, WantAck: codec.AckDowncodeDone})
		}
	}

	plan := StripePlan{StripeID: stripeID, Dispatches: dispatches}
	if len(gwSteps) > 0 {
		plan.Gateway = &GatewayDispatch{Node: snap.Gateway, Program: codec.Ga(len(gwSteps)/2, gwSteps...).String()}
	}

	hotStripe := stripe
	hotStripe.Hot = true
	hotStripe.Blocks = newBlocks
	plan.Update = cluster.Update{PutStripes: []cluster.Stripe{hotStripe}}
	return plan, nil
}

// Downcode drives compact->fast transcoding for every stripe of file
// (spec.md §4.6): once every compact-parity node of a stripe acks
// fi_doco, the stripe flips atomically back to hot with every shadow
// restored to live. Once every stripe of the file is hot again, the file
// itself flips cold->hot.
func Downcode(ctx context.Context, meta *cluster.Meta, nd transport.NodeDispatcher, gw transport.Gateway, file string) (cmn.Result, error) {
	snap, err := meta.Snapshot()
	if err != nil {
		return cmn.Result{}, err
	}
	f, ok := snap.File(file)
	if !ok {
		return cmn.Result{}, cmn.Wrapf(cmn.ErrFileNotFound, "file %s", file)
	}

	var plans []StripePlan
	for _, stripeID := range f.Stripes {
		plan, err := PlanDowncode(snap.Schema, &snap, stripeID)
		if err != nil {
			return cmn.Result{}, err
		}
		plans = append(plans, plan)
	}

	result := runStripes(ctx, nd, gw, meta, "downcode", file, plans)

	post, err := meta.Snapshot()
	if err != nil {
		return result, err
	}
	allHot := true
	for _, stripeID := range f.Stripes {
		st, ok := post.Stripe(stripeID)
		if !ok || !st.Hot {
			allHot = false
			break
		}
	}
	if allHot {
		nf := f
		nf.Hot = true
		if err := meta.Commit(cluster.Update{PutFile: &nf}); err != nil {
			return result, cmn.Wrap(err, "downcode: flip file hot")
		}
	}
	return result, nil
}
