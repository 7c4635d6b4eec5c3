// Package transport models the Coordinator's wire-level collaborators
// (spec.md §6) as two narrow interfaces. Nothing in this package opens a
// socket: the real implementation of NodeDispatcher and Gateway lives
// outside this module's scope, the same way the teacher's xaction and
// placement code depends on cluster.Bowner/cluster.Sowner interfaces rather
// than the daemon that implements them. The in-memory fake under
// transporttest exercises both contracts in tests.
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package transport

import "context"

// NodeDispatcher is the data-node side of the wire protocol (spec.md §4.1,
// §6): given a destination node and a fixed-width command, it sends the
// command (plus, for write commands, the raw block payload) and returns the
// ack token the node wrote back. One call corresponds to one
// sendCmd+recvAck round trip in the original coordinator.
type NodeDispatcher interface {
	// Dispatch sends cmd to node and returns its ack token. payload is
	// non-nil only for "en" (write) commands; readers of this interface
	// must not retain payload past the call.
	Dispatch(ctx context.Context, node, cmd string, payload []byte) (ack string, err error)
}

// Gateway is the cross-rack relay collaborator (spec.md §4.4, §4.6): the
// single node that runs the "ga" program, waits for the sums sent by the
// remote racks' leaders, XORs them, and forwards each result to the
// destination node named in the program's se step. Reconstructed blocks go
// to those nodes, not back through this process.
type Gateway interface {
	// Relay sends a "ga<N>..." program to the gateway node and returns
	// whatever payload the gateway answers with; the xact driver discards
	// it.
	Relay(ctx context.Context, node, program string) (result []byte, err error)
}
