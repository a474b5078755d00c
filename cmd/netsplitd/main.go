//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// netsplitd is the packet router daemon: it serves the
// packet.PacketService contract to simulated validator nodes and
// decides, per packet, whether delivery may occur under the
// configured network and UNL partitions.
//

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/miekg/dns"
	"github.com/rs/xid"
	"github.com/spf13/cobra"

	"github.com/ledgersim/netsplit/closepool"
	"github.com/ledgersim/netsplit/config"
	"github.com/ledgersim/netsplit/directory"
	"github.com/ledgersim/netsplit/dnsview"
	"github.com/ledgersim/netsplit/monitor"
	"github.com/ledgersim/netsplit/router"
	"github.com/ledgersim/netsplit/service"
	"github.com/ledgersim/netsplit/topology"
	"github.com/ledgersim/netsplit/wire"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// options collects the daemon configuration.
type options struct {
	listen        string
	monitorListen string
	dnsListen     string
	dnsZone       string
	topologyFile  string
	ports         config.Ports
	check         bool
	verbose       bool
}

// run builds and executes the root command.
func run(args []string) int {
	// A .env file is optional; missing is not an error.
	_ = godotenv.Load()

	opts := &options{}
	cmd := &cobra.Command{
		Use:   "netsplitd",
		Short: "Partition-emulation packet router for validator network tests",
		Long: `netsplitd routes packet verdicts for a simulated validator network.

Nodes register over a gRPC stream, fetch the topology snapshot, and
ask for a verdict per intercepted packet. Delivery is admitted only
between nodes sharing a network partition; UNL partitions are
advisory and surfaced through the config snapshot.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.listen, "listen",
		envOr("NETSPLIT_LISTEN", ":50051"), "gRPC listen address")
	flags.StringVar(&opts.monitorListen, "monitor-listen",
		envOr("NETSPLIT_MONITOR_LISTEN", ""), "HTTP monitor listen address (empty disables)")
	flags.StringVar(&opts.dnsListen, "dns-listen",
		envOr("NETSPLIT_DNS_LISTEN", ""), "DNS view listen address (empty disables)")
	flags.StringVar(&opts.dnsZone, "dns-zone", dnsview.DefaultZone, "DNS view zone")
	flags.StringVar(&opts.topologyFile, "topology", "", "JSON topology file (default: single partition)")
	flags.Uint32Var(&opts.ports.Peer, "base-port-peer", config.DefaultPorts.Peer, "first peer port")
	flags.Uint32Var(&opts.ports.WsPublic, "base-port-ws", config.DefaultPorts.WsPublic, "first public websocket port")
	flags.Uint32Var(&opts.ports.WsAdmin, "base-port-ws-admin", config.DefaultPorts.WsAdmin, "first admin websocket port")
	flags.Uint32Var(&opts.ports.Rpc, "base-port-rpc", config.DefaultPorts.Rpc, "first JSON-RPC port")
	flags.BoolVar(&opts.check, "check", false, "validate the topology file and exit")
	flags.BoolVar(&opts.verbose, "verbose", false, "enable debug logging")

	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		return 1
	}
	return 0
}

// topologyFile is the on-disk topology description. Omitted tables
// default to a single partition containing every node.
type topologyFile struct {
	NumberOfNodes uint32     `json:"number_of_nodes"`
	Net           [][]uint32 `json:"net"`
	Unl           [][]uint32 `json:"unl"`
}

// loadTopology parses and validates a topology file. The cover
// invariant failing here aborts startup: a broken table must never
// serve requests.
func loadTopology(path string) (*topology.Tables, uint32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, err
	}
	var tf topologyFile
	if err := json.Unmarshal(data, &tf); err != nil {
		return nil, 0, fmt.Errorf("topology %s: %w", path, err)
	}

	net := tf.Net
	if net == nil {
		net = singleCover(tf.NumberOfNodes)
	}
	unl := tf.Unl
	if unl == nil {
		unl = singleCover(tf.NumberOfNodes)
	}
	tables, err := topology.NewTables(tf.NumberOfNodes, net, unl)
	if err != nil {
		return nil, 0, fmt.Errorf("topology %s: %w", path, err)
	}
	return tables, tf.NumberOfNodes, nil
}

// singleCover lists 0..n-1 as one partition.
func singleCover(n uint32) [][]uint32 {
	all := make([]uint32, n)
	for i := range all {
		all[i] = uint32(i)
	}
	return [][]uint32{all}
}

// serve runs the daemon until the context is cancelled.
func serve(ctx context.Context, opts *options) error {
	level := slog.LevelInfo
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))

	dir := &directory.Directory{}

	// The store is always swappable through the monitor. Until a
	// topology with a nonzero node count is installed, the active
	// view is the default no-split cover over the registrations
	// seen so far.
	store := topology.NewStore(topology.SingleTables(0))
	provider := topology.ProviderFunc(func() *topology.Tables {
		tables := store.Load()
		if tables.Net.NumberOfNodes() == 0 {
			return topology.SingleTables(dir.Len())
		}
		return tables
	})

	if opts.topologyFile != "" {
		tables, n, err := loadTopology(opts.topologyFile)
		if err != nil {
			return err
		}
		if opts.check {
			fmt.Printf("topology ok: %d nodes, %d net partitions, %d unl partitions\n",
				n, len(tables.Net.Partitions()), len(tables.UNL.Partitions()))
			return nil
		}
		store.Swap(tables)
	} else if opts.check {
		fmt.Println("topology ok: default single partition")
		return nil
	}

	gen := &config.Generator{Ports: opts.ports, Directory: dir, Topology: provider}
	rtr := &router.Router{
		Directory: dir,
		Topology:  provider,
		Logger:    logger,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool := &closepool.Pool{Logger: logger}
	defer pool.Close()

	svc := service.New(dir, rtr, gen, logger)
	pool.Add("service", svc)

	listener, err := net.Listen("tcp", opts.listen)
	if err != nil {
		return err
	}
	grpcServer := wire.NewServer(svc)
	pool.AddFunc("grpcServer", func() error {
		grpcServer.GracefulStop()
		return nil
	})
	go func() {
		if err := grpcServer.Serve(listener); err != nil {
			logger.Error("grpcServe", slog.Any("err", err))
		}
	}()

	if opts.monitorListen != "" {
		mon := &monitor.Monitor{
			Directory: dir,
			Router:    rtr,
			Topology:  store,
			Generator: gen,
			Logger:    logger,
		}
		monServer := &http.Server{Addr: opts.monitorListen, Handler: mon.Handler()}
		pool.Add("monitorServer", monServer)
		go func() {
			if err := monServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("monitorServe", slog.Any("err", err))
			}
		}()
	}

	if opts.dnsListen != "" {
		view := &dnsview.View{
			Directory: dir,
			Zone:      opts.dnsZone,
			Logger:    logger,
		}
		dnsServer := &dns.Server{
			Addr:    opts.dnsListen,
			Net:     "udp",
			Handler: view,
		}
		pool.AddFunc("dnsServer", dnsServer.Shutdown)
		go func() {
			if err := dnsServer.ListenAndServe(); err != nil {
				logger.Error("dnsServe", slog.Any("err", err))
			}
		}()
	}

	logger.Info("starting",
		slog.String("runID", xid.New().String()),
		slog.String("listen", opts.listen),
		slog.String("monitorListen", opts.monitorListen),
		slog.String("dnsListen", opts.dnsListen),
		slog.String("topologyFile", opts.topologyFile),
	)

	<-ctx.Done()
	logger.Info("stopping")
	return pool.Close()
}

// envOr reads an environment variable with a fallback.
func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
