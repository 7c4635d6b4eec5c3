// Package xact drives the Command-Emission State Machine (spec.md §4.7):
// PLAN -> DISPATCH -> AWAIT_ACK -> COMMIT | ABORT, shared by all four
// kernel routines (upload, download, upcode, downcode). Each routine is a
// pure planner over a cluster.Snapshot that produces a per-stripe
// DISPATCH/AWAIT_ACK plan; the driver in this file fans the sends out
// concurrently and commits metadata only once every stripe's acks check
// out (spec.md §5: "metadata is mutated only after all acks for a stripe
// arrive").
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package xact

import (
	"context"

	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"

	"github.com/NVIDIA/lrc-coordinator/cluster"
	"github.com/NVIDIA/lrc-coordinator/cmn"
	"github.com/NVIDIA/lrc-coordinator/codec"
	"github.com/NVIDIA/lrc-coordinator/transport"
)

// verbOf returns a command string's leading verb token ("en", "de", "up",
// ...) for metric labeling, or "?" for a malformed/empty command.
func verbOf(cmd string) string {
	if len(cmd) < 2 {
		return "?"
	}
	return cmd[:2]
}

// inFlightDispatches counts sends that have not yet acked, across every
// stripe currently in DISPATCH/AWAIT_ACK. A plain int would race under the
// errgroup fan-out; this is cheaper than a mutex for a single counter.
var inFlightDispatches atomic.Int64

// InFlightDispatches reports how many node dispatches are currently
// awaiting an ack, across all in-progress kernel routine calls.
func InFlightDispatches() int64 { return inFlightDispatches.Load() }

// Dispatch is one node-bound command of a stripe's plan. WantAck, when
// non-empty, is the exact ack token that must come back for the stripe to
// be considered successful; an empty WantAck means the dispatch's ack is
// not gating (used for relayed in-rack sends whose result only matters to
// their rack leader, not to the Coordinator).
type Dispatch struct {
	Node    string
	Cmd     string
	Payload []byte
	WantAck string
}

// GatewayDispatch is the stripe's optional cross-rack relay program
// (spec.md §4.4: "The gateway program is emitted only when at least one
// rack is remote").
type GatewayDispatch struct {
	Node    string
	Program string
}

// StripePlan is the PLAN phase's output for one stripe: a pure function of
// a cluster.Snapshot plus the operation's parameters (spec.md §4.7). Update
// is what COMMIT persists, built during PLAN but applied only after every
// gating ack matches.
type StripePlan struct {
	StripeID   string
	Dispatches []Dispatch
	Gateway    *GatewayDispatch
	Update     cluster.Update
}

// runStripe executes DISPATCH+AWAIT_ACK for one stripe's plan and, if every
// gating dispatch acked as expected, COMMITs its Update. Any dispatch error
// or ack mismatch is an ABORT: metadata is left untouched (spec.md §4.7).
func runStripe(ctx context.Context, nd transport.NodeDispatcher, gw transport.Gateway, meta *cluster.Meta, routine string, plan StripePlan) cmn.StripeStatus {
	g, gctx := errgroup.WithContext(ctx)
	acks := make([]string, len(plan.Dispatches))

	for i, d := range plan.Dispatches {
		i, d := i, d
		g.Go(func() error {
			verb := verbOf(d.Cmd)
			cmn.CommandsDispatched.WithLabelValues(verb).Inc()
			inFlightDispatches.Inc()
			defer inFlightDispatches.Dec()
			ack, err := nd.Dispatch(gctx, d.Node, d.Cmd, d.Payload)
			if err != nil {
				return cmn.Wrapf(err, "dispatch to %s", d.Node)
			}
			if ack != "" {
				cmn.AcksReceived.WithLabelValues(verb).Inc()
			}
			acks[i] = ack
			return nil
		})
	}
	if plan.Gateway != nil {
		g.Go(func() error {
			_, err := gw.Relay(gctx, plan.Gateway.Node, plan.Gateway.Program)
			if err != nil {
				return cmn.Wrapf(err, "gateway relay via %s", plan.Gateway.Node)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		cmn.StripeAborts.WithLabelValues(routine).Inc()
		return cmn.StripeStatus{StripeID: plan.StripeID, OK: false, Err: err}
	}

	for i, d := range plan.Dispatches {
		if d.WantAck == "" {
			continue
		}
		if acks[i] != d.WantAck {
			cmn.StripeAborts.WithLabelValues(routine).Inc()
			var ackErr error
			switch {
			case !codec.IsKnownAck(acks[i]):
				ackErr = &cmn.ProtocolViolationError{NodeID: d.Node, Ack: acks[i]}
			case d.WantAck == codec.AckUpcodeDone || d.WantAck == codec.AckDowncodeDone:
				ackErr = &cmn.TranscodeError{StripeID: plan.StripeID, NodeID: d.Node, Ack: acks[i]}
			default:
				ackErr = &cmn.NodeWriteError{BlockID: d.Cmd, NodeID: d.Node, Ack: acks[i]}
			}
			return cmn.StripeStatus{StripeID: plan.StripeID, OK: false, Err: ackErr}
		}
	}

	if err := meta.Commit(plan.Update); err != nil {
		cmn.StripeAborts.WithLabelValues(routine).Inc()
		return cmn.StripeStatus{StripeID: plan.StripeID, OK: false, Err: cmn.Wrap(err, "commit")}
	}
	return cmn.StripeStatus{StripeID: plan.StripeID, OK: true}
}

// runStripes runs every stripe's plan concurrently (per-file parallelism
// across stripes is allowed by spec.md §5 as long as ack-before-commit
// ordering holds within each stripe) and assembles the file-level Result.
func runStripes(ctx context.Context, nd transport.NodeDispatcher, gw transport.Gateway, meta *cluster.Meta, routine, file string, plans []StripePlan) cmn.Result {
	statuses := make([]cmn.StripeStatus, len(plans))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range plans {
		i, p := i, p
		g.Go(func() error {
			statuses[i] = runStripe(gctx, nd, gw, meta, routine, p)
			return nil
		})
	}
	_ = g.Wait() // runStripe never returns an error itself; failures are carried in StripeStatus
	return cmn.Result{File: file, Stripes: statuses}
}
