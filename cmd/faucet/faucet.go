// Copyright 2024 Antrea Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
	"k8s.io/component-base/metrics/legacyregistry"
	"k8s.io/klog/v2"
	"k8s.io/utils/clock"

	"antrea.io/faucet/pkg/faucet/auth"
	"antrea.io/faucet/pkg/faucet/bgp"
	"antrea.io/faucet/pkg/faucet/bgp/gobgp"
	"antrea.io/faucet/pkg/faucet/manager"
	"antrea.io/faucet/pkg/faucet/metrics"
	"antrea.io/faucet/pkg/log"
	binding "antrea.io/faucet/pkg/ovs/openflow"
	"antrea.io/faucet/pkg/signals"
	"antrea.io/faucet/pkg/version"
)

const serverShutdownTimeout = 5 * time.Second

func newBGPClient(global *bgp.GlobalConfig, vid uint16) bgp.Interface {
	return gobgp.NewGoBGPServer(global, "vlan", vid)
}

func run(o *Options) error {
	klog.InfoS("Starting faucet", "version", version.GetFullVersion())
	// Set up signal capture: the first SIGTERM / SIGINT signal is handled gracefully and will
	// cause the stopCh channel to be closed; if another signal is received before the program
	// exits, we will force exit.
	stopCh := signals.RegisterSignalHandlers()
	reloadCh := signals.RegisterReloadHandler(stopCh)

	log.StartLogFileNumberMonitor(stopCh)
	metrics.InitializeMetrics()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-stopCh
		cancel()
	}()

	ofController := binding.NewOFController(o.config.OpenFlowListenAddress)
	m := manager.NewManager(o.config.NetworkConfigPath, ofController, newBGPClient, clock.RealClock{}, o.config.PacketInRate)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return m.Run(ctx, reloadCh, o.reloadDebounceInterval)
	})
	g.Go(func() error {
		ofController.Run(ctx.Done())
		return nil
	})

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", legacyregistry.Handler())
	metricsMux.HandleFunc("/loglevel", log.HandleFunc())
	serve(ctx, g, "metrics", o.config.MetricsListenAddress, metricsMux)

	if o.config.AuthListenAddress != "" {
		authMux := http.NewServeMux()
		authMux.HandleFunc(auth.Path, auth.HandleFunc(m))
		serve(ctx, g, "authentication", o.config.AuthListenAddress, authMux)
	}

	if err := g.Wait(); err != nil {
		return err
	}
	klog.InfoS("Stopped faucet")
	return nil
}

// serve runs an HTTP server in g until ctx is done.
func serve(ctx context.Context, g *errgroup.Group, name, addr string, handler http.Handler) {
	server := &http.Server{Addr: addr, Handler: handler}
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), serverShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		klog.InfoS("Starting HTTP server", "name", name, "address", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("%s server failed: %w", name, err)
		}
		return nil
	})
}
