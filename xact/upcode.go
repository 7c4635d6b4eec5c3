package xact

import (
	"context"

	"github.com/NVIDIA/lrc-coordinator/cluster"
	"github.com/NVIDIA/lrc-coordinator/cmn"
	"github.com/NVIDIA/lrc-coordinator/codec"
	"github.com/NVIDIA/lrc-coordinator/transport"
)

// PlanUpcode implements the fast->compact Transcoder (spec.md §4.5) for one
// hot stripe: merge every δ consecutive fast parities into one compact
// parity. Fast-parity slot f belongs to compact group c = f/δ; f is the
// group's target when f mod δ == 0, else a contributor (cluster.CompactGroupOf).
func PlanUpcode(schema cluster.Schema, snap *cluster.Snapshot, stripeID string) (StripePlan, error) {
	stripe, ok := snap.Stripe(stripeID)
	if !ok {
		return StripePlan{}, cmn.Wrapf(cmn.ErrFileNotFound, "stripe %s", stripeID)
	}
	if !stripe.Hot {
		return StripePlan{StripeID: stripeID}, nil // already cold: idempotent no-op
	}

	var dispatches []Dispatch
	var gwSteps []codec.Op
	newBlocks := make(map[int]*cluster.Block, len(stripe.Blocks))
	for idx, b := range stripe.Blocks {
		cp := *b
		newBlocks[idx] = &cp
	}

	for c := 0; c < schema.LC; c++ {
		delta := schema.Delta()
		base := c * delta
		targetIdx := schema.K + base
		target, ok := stripe.Blocks[targetIdx]
		if !ok {
			return StripePlan{}, cmn.Wrapf(cmn.ErrTranscodeFailure, "stripe %s: missing target fast parity %d", stripeID, targetIdx)
		}

		var contributorIPs []string
		for j := 1; j < delta; j++ {
			contribIdx := schema.K + base + j
			contrib, ok := stripe.Blocks[contribIdx]
			if !ok {
				return StripePlan{}, cmn.Wrapf(cmn.ErrTranscodeFailure, "stripe %s: missing contributor %d", stripeID, contribIdx)
			}
			newBlocks[contribIdx].Reserved = true

			if schema.Place == cluster.OptS {
				dispatches = append(dispatches, Dispatch{
					Node: contrib.Node,
					Cmd:  codec.Up(codec.Se(contrib.ID, target.Node)).String(),
				})
				contributorIPs = append(contributorIPs, contrib.Node)
			} else {
				dispatches = append(dispatches, Dispatch{
					Node: contrib.Node,
					Cmd:  codec.Up(codec.Se(contrib.ID, snap.Gateway)).String(),
				})
			}
		}

		var waPeers []string
		if schema.Place == cluster.OptS {
			waPeers = contributorIPs
		} else {
			for j := 1; j < delta; j++ {
				waPeers = append(waPeers, snap.Gateway)
			}
			gwSteps = append(gwSteps, codec.Wa(repeatGatewayContributors(stripe, schema, base, delta)...), codec.Se(target.ID, target.Node))
		}

		targetCmd := codec.Up(codec.Reco(target.ID), codec.Wa(waPeers...)).String()
		dispatches = append(dispatches, Dispatch{Node: target.Node, Cmd: targetCmd, WantAck: codec.AckUpcodeDone})
	}

	plan := StripePlan{StripeID: stripeID, Dispatches: dispatches}
	if len(gwSteps) > 0 {
		plan.Gateway = &GatewayDispatch{Node: snap.Gateway, Program: codec.Ga(schema.LC, gwSteps...).String()}
	}

	coldStripe := stripe
	coldStripe.Hot = false
	coldStripe.Blocks = newBlocks
	plan.Update = cluster.Update{PutStripes: []cluster.Stripe{coldStripe}}
	return plan, nil
}

// repeatGatewayContributors lists the real contributor IPs the gateway
// itself waits on for one compact group (as opposed to the group's
// target, which — per spec.md §4.5 — sees only the gateway's own IP
// repeated in its own wa clause).
func repeatGatewayContributors(stripe cluster.Stripe, schema cluster.Schema, base, delta int) []string {
	ips := make([]string, 0, delta-1)
	for j := 1; j < delta; j++ {
		if b, ok := stripe.Blocks[schema.K+base+j]; ok {
			ips = append(ips, b.Node)
		}
	}
	return ips
}

// Upcode drives fast->compact transcoding for every stripe of file
// (spec.md §4.5 step 4): after every target acks fi_upco, the stripe flips
// atomically to cold and its non-target fast parities move into the
// reserved shadow set. Once every stripe of the file has gone cold, the
// file itself flips hot->cold.
func Upcode(ctx context.Context, meta *cluster.Meta, nd transport.NodeDispatcher, gw transport.Gateway, file string) (cmn.Result, error) {
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
		plan, err := PlanUpcode(snap.Schema, &snap, stripeID)
		if err != nil {
			return cmn.Result{}, err
		}
		plans = append(plans, plan)
	}

	result := runStripes(ctx, nd, gw, meta, "upcode", file, plans)

	post, err := meta.Snapshot()
	if err != nil {
		return result, err
	}
	allCold := true
	for _, stripeID := range f.Stripes {
		st, ok := post.Stripe(stripeID)
		if !ok || st.Hot {
			allCold = false
			break
		}
	}
	if allCold {
		nf := f
		nf.Hot = false
		if err := meta.Commit(cluster.Update{PutFile: &nf}); err != nil {
			return result, cmn.Wrap(err, "upcode: flip file cold")
		}
	}
	return result, nil
}
