// Command coordinator is the long-running daemon process that owns one
// cluster.Meta instance and exposes the coordinator package's four kernel
// routines to whatever RPC/CLI front-end a deployment wires up (out of
// scope per spec.md §6 — this binary only performs startup wiring and
// config loading).
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/golang/glog"
	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	"github.com/NVIDIA/lrc-coordinator/cluster"
	"github.com/NVIDIA/lrc-coordinator/coordinator"
	"github.com/NVIDIA/lrc-coordinator/transport/transporttest"
)

var (
	configPath  = flag.String("config", "", "path to the cluster topology+schema JSON config")
	metricsAddr = flag.String("metrics_addr", ":9191", "address to serve Prometheus metrics on")
)

// clusterConfig is the on-disk shape of -config: schema parameters plus
// the rack topology and gateway node, everything cluster.Meta needs at
// startup (spec.md §3: schema is "set at startup and immutable thereafter").
type clusterConfig struct {
	Schema  cluster.Schema `json:"schema"`
	Gateway string         `json:"gateway"`
	Racks   []rackConfig   `json:"racks"`
}

type rackConfig struct {
	ID    string   `json:"id"`
	Nodes []string `json:"nodes"`
}

func main() {
	flag.Parse()
	defer glog.Flush()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		glog.Exitf("coordinator: config: %v", err)
	}

	meta, err := cluster.NewMeta(cfg.Schema)
	if err != nil {
		glog.Exitf("coordinator: metadata store: %v", err)
	}
	defer meta.Close()

	if err := meta.SetGateway(cfg.Gateway); err != nil {
		glog.Exitf("coordinator: set gateway: %v", err)
	}
	for _, r := range cfg.Racks {
		if err := meta.AddRack(r.ID, r.Nodes...); err != nil {
			glog.Exitf("coordinator: add rack %s: %v", r.ID, err)
		}
	}

	// No real wire protocol is wired up yet (spec.md §6, out of scope); the
	// in-memory fake lets this binary come up and serve metrics/health in
	// environments that only exercise the Coordinator's planning surface.
	fake := transporttest.New()
	co := coordinator.New(meta, fake, fake)

	glog.Infof("coordinator: ready, schema=%+v, %d racks", cfg.Schema, len(cfg.Racks))

	metricsHandler := fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())
	healthHandler := healthzHandler(co)
	srv := &fasthttp.Server{
		Handler: func(ctx *fasthttp.RequestCtx) {
			switch string(ctx.Path()) {
			case "/metrics":
				metricsHandler(ctx)
			case "/healthz":
				healthHandler(ctx)
			default:
				ctx.NotFound()
			}
		},
	}

	glog.Infof("coordinator: serving metrics on %s", *metricsAddr)
	if err := srv.ListenAndServe(*metricsAddr); err != nil {
		glog.Exitf("coordinator: metrics server: %v", err)
	}
}

// healthzHandler reports the number of racks and files currently on
// record, a cheap way to confirm the metadata store came up and is
// reachable without exposing the full snapshot.
func healthzHandler(co *coordinator.Coordinator) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		snap, err := co.Meta.Snapshot()
		if err != nil {
			ctx.Error(err.Error(), fasthttp.StatusServiceUnavailable)
			return
		}
		ctx.SetContentType("text/plain; charset=utf-8")
		fmt.Fprintf(ctx, "ok racks=%d files=%d\n", len(snap.Topology.SortedRacks()), len(snap.Files))
	}
}

func loadConfig(path string) (clusterConfig, error) {
	var cfg clusterConfig
	if path == "" {
		return cfg, os.ErrInvalid
	}
	f, err := os.Open(path)
	if err != nil {
		return cfg, err
	}
	defer f.Close()
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.NewDecoder(f).Decode(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
