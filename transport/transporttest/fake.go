// Package transporttest provides an in-memory fake of transport.NodeDispatcher
// and transport.Gateway for exercising the xact and coordinator packages
// without real sockets (spec.md §6: "out of scope... fully exercised in
// tests against an in-memory fake implementing both interfaces").
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package transporttest

import (
	"context"
	"sync"

	"github.com/NVIDIA/lrc-coordinator/codec"
)

// Call records one Dispatch or Relay invocation, for test assertions
// against the exact command the planner built.
type Call struct {
	Node    string
	Cmd     string
	Payload []byte
}

// Fake is a single-process stand-in for the whole data-node + gateway
// fleet. Block storage is keyed by block ID alone (IDs are globally unique
// per spec.md §3), which is enough to exercise the Upload/Download
// round-trip and the ack-gated state machine without modeling real
// node-to-node sockets.
//
// The compound de/up/do verbs are acked deterministically from the parsed
// command's shape (present iff the command carries a gating reco) rather
// than by replaying the XOR algebra across simulated racks: the planners'
// exact wire output is what the xact package's own tests pin down via
// Command.String(), so the fake's job is to exercise dispatch/ack/commit
// wiring, not to re-derive the codec from scratch.
type Fake struct {
	mu      sync.Mutex
	blocks  map[string][]byte
	missing map[string]bool
	failing map[string]bool
	calls   []Call
	relays  []Call
}

// New builds an empty Fake.
func New() *Fake {
	return &Fake{
		blocks:  make(map[string][]byte),
		missing: make(map[string]bool),
		failing: make(map[string]bool),
	}
}

// SetMissing marks block as absent: a subsequent "dl" probe for it answers
// blk_mi, simulating the degraded-read trigger (spec.md §4.4).
func (f *Fake) SetMissing(block string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.missing[block] = true
}

// FailNode makes every Dispatch addressed to node return an error, for
// exercising ABORT paths in the state machine (spec.md §4.7).
func (f *Fake) FailNode(node string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing[node] = true
}

// Seed preloads a block's payload as if a prior Upload had written it.
func (f *Fake) Seed(block string, payload []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blocks[block] = payload
}

// Block returns a previously written or seeded block's payload.
func (f *Fake) Block(block string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.blocks[block]
	return b, ok
}

// Calls returns every Dispatch call received so far, in arrival order.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

// Relays returns every gateway Relay call received so far.
func (f *Fake) Relays() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.relays))
	copy(out, f.relays)
	return out
}

// Dispatch implements transport.NodeDispatcher.
func (f *Fake) Dispatch(_ context.Context, node, cmd string, payload []byte) (string, error) {
	f.mu.Lock()
	if f.failing[node] {
		f.mu.Unlock()
		return "", &DispatchError{Node: node, Cmd: cmd}
	}
	f.calls = append(f.calls, Call{Node: node, Cmd: cmd, Payload: payload})
	f.mu.Unlock()

	parsed, err := codec.Parse(cmd)
	if err != nil {
		return "", err
	}
	if len(parsed) == 0 {
		return "", nil
	}

	switch parsed[0].Verb {
	case codec.VEn:
		f.mu.Lock()
		f.blocks[parsed[0].Block] = payload
		f.mu.Unlock()
		return codec.AckWriteSuccess, nil
	case codec.VDl:
		f.mu.Lock()
		miss := f.missing[parsed[0].Block]
		f.mu.Unlock()
		if miss {
			return codec.AckBlockMissing, nil
		}
		return codec.AckBlockExists, nil
	case codec.VDe:
		return ackIfReco(parsed, codec.AckDecodeDone), nil
	case codec.VUp:
		return ackIfReco(parsed, codec.AckUpcodeDone), nil
	case codec.VDo:
		return ackIfReco(parsed, codec.AckDowncodeDone), nil
	default:
		return "", nil
	}
}

// Relay implements transport.Gateway.
func (f *Fake) Relay(_ context.Context, node, program string) ([]byte, error) {
	f.mu.Lock()
	f.relays = append(f.relays, Call{Node: node, Cmd: program})
	f.mu.Unlock()
	if _, err := codec.Parse(program); err != nil {
		return nil, err
	}
	return nil, nil
}

// ackIfReco returns ack when the parsed compound command carries a reco
// (bare or named) step — i.e. it is the gating, result-producing dispatch
// of its stripe plan — and "" for a fire-and-forget contributor send.
func ackIfReco(ops codec.Command, ack string) string {
	for _, op := range ops {
		if op.Verb == codec.VReco {
			return ack
		}
	}
	return ""
}

// DispatchError simulates a node that is unreachable or refuses a command.
type DispatchError struct {
	Node string
	Cmd  string
}

func (e *DispatchError) Error() string {
	return "transporttest: dispatch to " + e.Node + " failed"
}
