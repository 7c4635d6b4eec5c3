package xact

import (
	"context"

	"github.com/NVIDIA/lrc-coordinator/cluster"
	"github.com/NVIDIA/lrc-coordinator/cmn"
	"github.com/NVIDIA/lrc-coordinator/codec"
	"github.com/NVIDIA/lrc-coordinator/transport"
)

// PlanDecode implements the Degraded-Read Planner (spec.md §4.4) for one
// stripe's missing data block m. It partitions the helper set H = m's
// local-group data blocks plus its local parity into three roles:
//   - a helper already co-resident on m's own node needs no wire transfer
//     at all (spec.md scenario 2: under OPT_S a single-node core rack
//     round-robin can co-locate a parity with its group's first data
//     block, so only the truly remote helpers show up in m's wait count);
//   - a helper on m's rack (different node) sends directly to m;
//   - a helper on a remote rack joins that rack's leader, which
//     XOR-aggregates its rack's contributions and forwards once to the
//     gateway; the gateway in turn forwards each rack's sum to m.
//
// No block crosses a rack boundary more than once (spec.md §8 property 4).
func PlanDecode(schema cluster.Schema, snap *cluster.Snapshot, stripeID string, m int) (StripePlan, error) {
	stripe, ok := snap.Stripe(stripeID)
	if !ok {
		return StripePlan{}, cmn.Wrapf(cmn.ErrFileNotFound, "stripe %s", stripeID)
	}

	r := schema.RC()
	if stripe.Hot {
		r = schema.RF()
	}
	group := m / r
	groupStart := group * r

	var parityIdx int
	if stripe.Hot {
		parityIdx = schema.K + group
	} else {
		parityIdx = schema.K + cluster.CompactParitySlot(group, schema)
	}

	helperIdx := make([]int, 0, r)
	for i := groupStart; i < groupStart+r; i++ {
		if i != m {
			helperIdx = append(helperIdx, i)
		}
	}
	helperIdx = append(helperIdx, parityIdx)

	mBlock, ok := stripe.Blocks[m]
	if !ok {
		return StripePlan{}, cmn.Wrapf(cmn.ErrBlockMiss, "stripe %s: no record of block index %d", stripeID, m)
	}
	mNode := mBlock.Node

	gather := buildGather(snap.Topology, stripe, mNode, mBlock.ID, snap.Gateway, helperIdx, codec.De)

	mCmd := codec.De(codec.Wa(gather.destPeers...), codec.RecoBare()).String()
	dispatches := append(gather.dispatches, Dispatch{Node: mNode, Cmd: mCmd, WantAck: codec.AckDecodeDone})

	plan := StripePlan{StripeID: stripeID, Dispatches: dispatches}
	if len(gather.gwSteps) > 0 {
		plan.Gateway = &GatewayDispatch{Node: snap.Gateway, Program: codec.Ga(1, gather.gwSteps...).String()}
	}
	return plan, nil
}

// firstLowerIndexInRack picks the rack-leader from a rack's helper-index
// subset (design note 2): the original scans ascending and breaks on the
// first member found, which it documents as "smallest" even though that
// name is a misnomer for a non-monotonic candidate set — here the subset
// is already built in ascending order, so the first element is returned
// without re-scanning. Preserved under this name, not renamed to "min",
// per spec.md §9's "preserve or fix deliberately" (this rewrite preserves).
func firstLowerIndexInRack(members []int) int {
	return members[0]
}

// Download drives the degraded-read path end to end (spec.md §4.4): probe
// every data block of every stripe with "dl", and for whichever block (if
// any) answers blk_mi — or, absent a real miss, the caller's forcedMiss
// test index (design note 4; -1 means none) — run the Degraded-Read
// Planner and its repair program. A stripe with no missing block needs no
// repair commands at all.
func Download(ctx context.Context, meta *cluster.Meta, nd transport.NodeDispatcher, gw transport.Gateway, file string, forcedMiss int) (cmn.Result, error) {
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
		stripe, ok := snap.Stripe(stripeID)
		if !ok {
			continue
		}
		missing, err := probeMissingBlock(ctx, nd, snap.Schema, stripe, forcedMiss)
		if err != nil {
			return cmn.Result{}, err
		}
		if missing < 0 {
			plans = append(plans, StripePlan{StripeID: stripeID}) // nothing to repair
			continue
		}
		plan, err := PlanDecode(snap.Schema, &snap, stripeID, missing)
		if err != nil {
			return cmn.Result{}, err
		}
		plans = append(plans, plan)
	}

	return runStripes(ctx, nd, gw, meta, "download", file, plans), nil
}

// probeMissingBlock issues "dl" to every data block of stripe (index <
// schema.K) and returns the lowest index that answers blk_mi, or
// forcedMiss if none did and forcedMiss >= 0, or -1 if the stripe's data
// blocks are all present.
func probeMissingBlock(ctx context.Context, nd transport.NodeDispatcher, schema cluster.Schema, stripe cluster.Stripe, forcedMiss int) (int, error) {
	missing := -1
	for idx := 0; idx < schema.K; idx++ {
		b, ok := stripe.Blocks[idx]
		if !ok {
			continue
		}
		ack, err := nd.Dispatch(ctx, b.Node, codec.Dl(b.ID).String(), nil)
		if err != nil {
			return -1, cmn.Wrapf(err, "probe block %s", b.ID)
		}
		if ack == codec.AckBlockMissing {
			missing = idx
			break
		}
	}
	if missing < 0 && forcedMiss >= 0 {
		missing = forcedMiss
	}
	return missing, nil
}
