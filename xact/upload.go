package xact

import (
	"context"
	"io"

	"golang.org/x/sync/errgroup"

	"github.com/NVIDIA/lrc-coordinator/cluster"
	"github.com/NVIDIA/lrc-coordinator/cmn"
	"github.com/NVIDIA/lrc-coordinator/codec"
	"github.com/NVIDIA/lrc-coordinator/placement"
	"github.com/NVIDIA/lrc-coordinator/transport"
)

// Upload implements the Upload Orchestrator (spec.md §4.3): slice content
// into stripe_count = size div (k*chunk_size) stripes, compute each
// stripe's l_f fast local parities, place every block, push it to its node,
// and collect acks. Tail bytes that don't fill a final stripe are silently
// dropped from the wire format (design note 1) but their count is recorded
// in the file's metadata (SPEC_FULL.md §9 supplement) so a caller can at
// least observe that truncation happened.
//
// Block-write failures are reported but do not roll back: a stripe's
// metadata records whichever blocks actually acked "write blk success",
// never a phantom placement for one that didn't (design note 3 deviation,
// see DESIGN.md). The file is tagged hot.
func Upload(ctx context.Context, meta *cluster.Meta, nd transport.NodeDispatcher, name string, size int64, content io.Reader) (cmn.Result, error) {
	if err := cmn.ValidateFileName(name); err != nil {
		return cmn.Result{}, err
	}
	snap, err := meta.Snapshot()
	if err != nil {
		return cmn.Result{}, err
	}
	schema := snap.Schema

	stripeBytes := schema.ChunkSize * int64(schema.K)
	stripeCount := int(size / stripeBytes)
	tailBytes := size % stripeBytes

	plans := make([]uploadPlan, 0, stripeCount)
	for seq := 0; seq < stripeCount; seq++ {
		p, err := planUploadStripe(schema, &snap, name, seq, content)
		if err != nil {
			return cmn.Result{}, err
		}
		plans = append(plans, p)
	}

	stripeIDs := make([]string, len(plans))
	statuses := make([]cmn.StripeStatus, len(plans))
	stripes := make([]cluster.Stripe, len(plans))

	g, gctx := errgroup.WithContext(ctx)
	for i, p := range plans {
		i, p := i, p
		g.Go(func() error {
			st, stripe := dispatchUploadStripe(gctx, nd, p)
			statuses[i] = st
			stripes[i] = stripe
			stripeIDs[i] = p.stripeID
			return nil
		})
	}
	_ = g.Wait()

	f := cluster.File{Name: name, Size: size, TailBytes: tailBytes, Hot: true, Stripes: stripeIDs}
	if err := meta.Commit(cluster.Update{PutFile: &f, PutStripes: stripes}); err != nil {
		return cmn.Result{}, cmn.Wrap(err, "upload: commit")
	}
	return cmn.Result{File: name, Stripes: statuses}, nil
}

// uploadPlan is one stripe's PLAN-phase output: every live block's payload,
// destination, and wire command, ready for concurrent DISPATCH.
type uploadPlan struct {
	stripeID string
	file     string
	seq      int
	blocks   []uploadBlock
}

type uploadBlock struct {
	index   int
	blockID string
	node    string
	payload []byte
}

func planUploadStripe(schema cluster.Schema, snap *cluster.Snapshot, file string, seq int, content io.Reader) (uploadPlan, error) {
	stripeID, err := cmn.StripeID(file, seq)
	if err != nil {
		return uploadPlan{}, err
	}

	data := make([][]byte, schema.K)
	for i := 0; i < schema.K; i++ {
		buf := make([]byte, schema.ChunkSize)
		if _, err := io.ReadFull(content, buf); err != nil {
			return uploadPlan{}, cmn.Wrapf(err, "upload: read chunk %d of stripe %s", i, stripeID)
		}
		data[i] = buf
	}

	rf := schema.RF()
	parity := make([][]byte, schema.LF)
	for j := 0; j < schema.LF; j++ {
		group := data[j*rf : j*rf+rf]
		p, err := cmn.XOR(group...)
		if err != nil {
			return uploadPlan{}, err
		}
		parity[j] = p
	}

	plc, err := placement.Plan(schema, snap.Topology)
	if err != nil {
		return uploadPlan{}, err
	}

	blocks := make([]uploadBlock, 0, schema.K+schema.LF)
	for idx := 0; idx < schema.K; idx++ {
		blockID, err := cmn.BlockID(stripeID, idx)
		if err != nil {
			return uploadPlan{}, err
		}
		blocks = append(blocks, uploadBlock{index: idx, blockID: blockID, node: plc[idx], payload: data[idx]})
	}
	for j := 0; j < schema.LF; j++ {
		idx := schema.K + j
		blockID, err := cmn.BlockID(stripeID, idx)
		if err != nil {
			return uploadPlan{}, err
		}
		blocks = append(blocks, uploadBlock{index: idx, blockID: blockID, node: plc[idx], payload: parity[j]})
	}

	return uploadPlan{stripeID: stripeID, file: file, seq: seq, blocks: blocks}, nil
}

func dispatchUploadStripe(ctx context.Context, nd transport.NodeDispatcher, p uploadPlan) (cmn.StripeStatus, cluster.Stripe) {
	type outcome struct {
		block *cluster.Block
		ok    bool
	}
	results := make([]outcome, len(p.blocks))

	g, gctx := errgroup.WithContext(ctx)
	for i, b := range p.blocks {
		i, b := i, b
		g.Go(func() error {
			cmd := codec.En(b.blockID).String()
			cmn.CommandsDispatched.WithLabelValues("en").Inc()
			inFlightDispatches.Inc()
			defer inFlightDispatches.Dec()
			ack, err := nd.Dispatch(gctx, b.node, cmd, b.payload)
			if err != nil || ack != codec.AckWriteSuccess {
				results[i] = outcome{ok: false}
				return nil
			}
			cmn.AcksReceived.WithLabelValues("en").Inc()
			results[i] = outcome{ok: true, block: &cluster.Block{
				ID:       b.blockID,
				Index:    b.index,
				StripeID: p.stripeID,
				Node:     b.node,
				Cksum:    cmn.ComputeCksum(b.payload),
			}}
			return nil
		})
	}
	_ = g.Wait()

	stripe := cluster.Stripe{ID: p.stripeID, File: p.file, Seq: p.seq, Hot: true, Blocks: make(map[int]*cluster.Block)}
	allOK := true
	for _, r := range results {
		if !r.ok {
			allOK = false
			continue
		}
		stripe.Blocks[r.block.Index] = r.block
	}

	status := cmn.StripeStatus{StripeID: p.stripeID, OK: allOK}
	if !allOK {
		cmn.StripeAborts.WithLabelValues("upload").Inc()
		status.Err = cmn.Wrapf(cmn.ErrNodeWriteFailure, "stripe %s: one or more blocks failed to write", p.stripeID)
	}
	return status, stripe
}
