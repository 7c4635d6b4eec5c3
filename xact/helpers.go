package xact

import (
	"sort"

	"github.com/NVIDIA/lrc-coordinator/cluster"
	"github.com/NVIDIA/lrc-coordinator/codec"
)

// gatherPlan is the shared rack-partitioning pattern behind both the
// Degraded-Read Planner (spec.md §4.4) and the Downcode reserved-shadow
// recompute (spec.md §4.6): a destination node needs the XOR of a set of
// member blocks. A member already resident on the destination's own node
// needs no wire transfer; one on the destination's rack sends directly;
// members on a remote rack elect a leader (firstLowerIndexInRack) that
// aggregates its rack's contributions and forwards once to the gateway.
type gatherPlan struct {
	dispatches []Dispatch
	destPeers  []string  // destination's own wa<N>blk peer list, in order
	gwSteps    []codec.Op // wa/se pair to append to the stripe's shared gateway program, empty if no remote rack
}

func buildGather(topo *cluster.Topology, stripe cluster.Stripe, destNode, destBlockID, gatewayNode string, members []int, wrap func(...codec.Op) codec.Command) gatherPlan {
	destRack := topo.RackOf(destNode)

	var sameRack []int
	remoteByRack := map[string][]int{}
	var racks []string
	for _, h := range members {
		hb, ok := stripe.Blocks[h]
		if !ok {
			continue
		}
		if hb.Node == destNode {
			continue // co-resident: already available without a wire transfer
		}
		rack := topo.RackOf(hb.Node)
		if rack == destRack {
			sameRack = append(sameRack, h)
			continue
		}
		if _, seen := remoteByRack[rack]; !seen {
			racks = append(racks, rack)
		}
		remoteByRack[rack] = append(remoteByRack[rack], h)
	}
	sort.Strings(racks)

	var out gatherPlan
	for _, h := range sameRack {
		hb := stripe.Blocks[h]
		out.dispatches = append(out.dispatches, Dispatch{Node: hb.Node, Cmd: wrap(codec.Se(hb.ID, destNode)).String()})
		out.destPeers = append(out.destPeers, hb.Node)
	}

	var leaderIPs []string
	for _, rack := range racks {
		members := remoteByRack[rack]
		leader := firstLowerIndexInRack(members)
		leaderBlock := stripe.Blocks[leader]

		var contributorIPs []string
		for _, h := range members {
			if h == leader {
				continue
			}
			hb := stripe.Blocks[h]
			out.dispatches = append(out.dispatches, Dispatch{Node: hb.Node, Cmd: wrap(codec.Se(hb.ID, leaderBlock.Node)).String()})
			contributorIPs = append(contributorIPs, hb.Node)
		}

		var leaderCmd codec.Command
		if len(contributorIPs) > 0 {
			leaderCmd = wrap(codec.Wa(contributorIPs...), codec.Se(leaderBlock.ID, gatewayNode))
		} else {
			leaderCmd = wrap(codec.Se(leaderBlock.ID, gatewayNode))
		}
		out.dispatches = append(out.dispatches, Dispatch{Node: leaderBlock.Node, Cmd: leaderCmd.String()})

		leaderIPs = append(leaderIPs, leaderBlock.Node)
		out.destPeers = append(out.destPeers, gatewayNode)
	}

	if len(racks) > 0 {
		out.gwSteps = []codec.Op{codec.Wa(leaderIPs...), codec.Se(destBlockID, destNode)}
	}
	return out
}
