// Package coordinator wires the Topology & Metadata Service, the Command
// Codec, the Placement Planner, and the four xact kernel routines into the
// single entry surface a front-end (RPC/CLI, out of scope per spec.md §6)
// would call.
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package coordinator

import (
	"context"
	"io"
	"sync"

	"github.com/golang/glog"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/NVIDIA/lrc-coordinator/cluster"
	"github.com/NVIDIA/lrc-coordinator/cmn"
	"github.com/NVIDIA/lrc-coordinator/transport"
	"github.com/NVIDIA/lrc-coordinator/xact"
)

// Coordinator is the long-running daemon's core: one Meta instance, one
// wire-protocol pair, and a per-file lock so that "no two operations on
// the same file overlap" (spec.md §5) holds regardless of how many kernel
// routines a front-end fires concurrently.
type Coordinator struct {
	Meta *cluster.Meta
	ND   transport.NodeDispatcher
	GW   transport.Gateway

	fileLocks sync.Map // file name -> *sync.Mutex
}

// New builds a Coordinator over an already-initialized metadata store and
// wire-protocol pair.
func New(meta *cluster.Meta, nd transport.NodeDispatcher, gw transport.Gateway) *Coordinator {
	return &Coordinator{Meta: meta, ND: nd, GW: gw}
}

func (c *Coordinator) lockFile(name string) func() {
	v, _ := c.fileLocks.LoadOrStore(name, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// Upload implements spec.md §4.3 end to end, under the file's lock.
func (c *Coordinator) Upload(ctx context.Context, name string, size int64, content io.Reader) (cmn.Result, error) {
	defer c.lockFile(name)()
	glog.Infof("coordinator: upload %s (%d bytes)", name, size)
	res, err := xact.Upload(ctx, c.Meta, c.ND, name, size, content)
	recordResult("upload", res, err)
	return res, err
}

// Download implements spec.md §4.4 end to end. forcedMiss is the design
// note 4 test hook (-1 means "probe for a real blk_mi, don't force one").
func (c *Coordinator) Download(ctx context.Context, name string, forcedMiss int) (cmn.Result, error) {
	defer c.lockFile(name)()
	glog.Infof("coordinator: download %s", name)
	res, err := xact.Download(ctx, c.Meta, c.ND, c.GW, name, forcedMiss)
	recordResult("download", res, err)
	return res, err
}

// Upcode implements spec.md §4.5 end to end.
func (c *Coordinator) Upcode(ctx context.Context, name string) (cmn.Result, error) {
	defer c.lockFile(name)()
	glog.Infof("coordinator: upcode %s", name)
	res, err := xact.Upcode(ctx, c.Meta, c.ND, c.GW, name)
	recordResult("upcode", res, err)
	return res, err
}

// Downcode implements spec.md §4.6 end to end.
func (c *Coordinator) Downcode(ctx context.Context, name string) (cmn.Result, error) {
	defer c.lockFile(name)()
	glog.Infof("coordinator: downcode %s", name)
	res, err := xact.Downcode(ctx, c.Meta, c.ND, c.GW, name)
	recordResult("downcode", res, err)
	return res, err
}

// Ambient metrics (SPEC_FULL.md §2: "always on regardless of the
// Non-goals list"): commands dispatched is tracked one layer down by
// xact/transporttest in tests; at the Coordinator boundary we count
// kernel-routine invocations and their per-stripe outcomes.
var (
	cmdsDispatched = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "coordinator_kernel_routines_total",
		Help: "Number of Upload/Download/Upcode/Downcode invocations.",
	})
	stripesOK = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "coordinator_stripes_committed_total",
		Help: "Number of stripes that committed successfully, by operation.",
	}, []string{"op"})
	stripesAborted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "coordinator_stripes_aborted_total",
		Help: "Number of stripes that aborted without committing, by operation.",
	}, []string{"op"})
)

func init() {
	prometheus.MustRegister(cmdsDispatched, stripesOK, stripesAborted)
}

func recordResult(op string, res cmn.Result, err error) {
	cmdsDispatched.Inc()
	if err != nil {
		glog.Warningf("coordinator: %s failed: %v", op, err)
		return
	}
	for _, st := range res.Stripes {
		if st.OK {
			stripesOK.WithLabelValues(op).Inc()
		} else {
			stripesAborted.WithLabelValues(op).Inc()
			glog.Warningf("coordinator: %s stripe %s aborted: %v", op, st.StripeID, st.Err)
		}
	}
}
