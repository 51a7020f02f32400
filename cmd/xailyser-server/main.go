// Command xailyser-server runs the capture server: it reads frames from a
// capture interface or a replayed pcap file, decodes them through the DPI
// core, and serves the result to inspection clients over the control
// channel.
package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/negbie/logp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/sipcapture/xailyser/internal/capture"
	"github.com/sipcapture/xailyser/internal/config"
	"github.com/sipcapture/xailyser/internal/fanout"
	"github.com/sipcapture/xailyser/internal/lookup"
	"github.com/sipcapture/xailyser/internal/metrics"
	"github.com/sipcapture/xailyser/internal/pcapsink"
	"github.com/sipcapture/xailyser/internal/sampler"
	"github.com/sipcapture/xailyser/internal/transport"
)

// version is overridden at build time via -ldflags.
var version = "dev"

var configPath string

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "xailyser-server",
		Short:         "Passive network traffic analyzer capture server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to server config YAML")

	root.AddCommand(serveCmd())
	root.AddCommand(replayCmd())
	root.AddCommand(versionCmd())
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("xailyser-server", version)
			return nil
		},
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Capture live traffic and serve it to inspection clients",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadServer(configPath)
			if err != nil {
				return err
			}
			if cfg.Capture.Interface == "" {
				return fmt.Errorf("capture.interface is required for serve (use 'replay' for a pcap file)")
			}
			// pcapgo.EthernetHandle reads raw AF_PACKET frames without a
			// libpcap/cgo dependency, and already satisfies
			// capture.FrameSource's ReadPacketData signature directly.
			handle, err := pcapgo.NewEthernetHandle(cfg.Capture.Interface)
			if err != nil {
				return fmt.Errorf("open interface %s: %w", cfg.Capture.Interface, err)
			}
			defer handle.Close()
			return runServer(cfg, handle, layers.LinkTypeEthernet)
		},
	}
}

func replayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "replay <pcap>",
		Short: "Replay a pcap capture file instead of a live interface",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadServer(configPath)
			if err != nil {
				return err
			}
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			r, err := pcapgo.NewReader(f)
			if err != nil {
				return fmt.Errorf("read pcap %s: %w", args[0], err)
			}
			return runServer(cfg, r, r.LinkType())
		},
	}
}

func initLogging(cfg config.LogConfig) {
	level := cfg.Level
	if level == "" {
		level = "info"
	}
	if err := logp.Init("xailyser", &logp.Logging{
		Level:     level,
		Selectors: []string{"*"},
	}); err != nil {
		fmt.Fprintln(os.Stderr, "logp init failed:", err)
	}
}

func runServer(cfg *config.ServerConfig, source capture.FrameSource, linkType layers.LinkType) error {
	initLogging(cfg.Log)
	logp.Info("xailyser-server starting, interface=%s listen=%s", cfg.Capture.Interface, cfg.Listen.Addr)

	if f, err := os.Open(cfg.Lookup.OuiPath); err != nil {
		logp.Warn("failed to open OUI database %s: %v (vendor lookups disabled)", cfg.Lookup.OuiPath, err)
	} else {
		_, err := lookup.LoadOuiTable(f)
		f.Close()
		if err != nil {
			return fmt.Errorf("load OUI table: %w", err)
		}
	}

	if f, err := os.Open(cfg.Lookup.PortPath); err != nil {
		logp.Warn("failed to open port database %s: %v (service lookups disabled)", cfg.Lookup.PortPath, err)
	} else {
		_, err := lookup.LoadPortTable(f)
		f.Close()
		if err != nil {
			return fmt.Errorf("load port table: %w", err)
		}
	}

	reg := prometheus.NewRegistry()
	metricsCollector := metrics.NewCollector(reg)

	fanoutHub := fanout.New()
	samplerReg := sampler.New()
	sink := pcapsink.New(linkType)

	worker := &capture.Worker{
		Source:        source,
		LinkType:      linkType,
		RawNeeded:     cfg.Capture.RawFramesRetained,
		AcceptTimeout: cfg.Capture.AcceptTimeout,
		Fanout:        fanoutHub,
		Sampler:       samplerReg,
		Sink:          sink,
		Metrics:       metricsCollector,
	}
	go func() {
		if err := worker.Run(); err != nil {
			logp.Warn("capture worker stopped: %v", err)
		}
	}()

	state := newRuntimeState(cfg, configPath, cfg.PasswordDigest)
	handler := transport.Handler(state.PasswordDigest, cfg.Listen.CompressionActive, func(sess *transport.ServerSession) {
		metricsCollector.ActiveConnections.Inc()
		defer metricsCollector.ActiveConnections.Dec()
		defer sess.Close()

		sub := fanoutHub.Subscribe()
		defer fanoutHub.Unsubscribe(sub)
		metricsCollector.FanoutSubscribers.Inc()
		defer metricsCollector.FanoutSubscribers.Dec()

		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				req, err := sess.ReceiveRequest()
				if err != nil {
					return
				}
				sess.Touch()
				resp := state.handleRequest(sess, cfg.Listen.CompressionActive, req)
				if err := sess.Send(resp); err != nil {
					logp.Debug("transport", "send response failed: %v", err)
					return
				}
			}
		}()

		for {
			select {
			case frame, ok := <-sub.Frames():
				if !ok {
					return
				}
				if err := sess.Send(transport.DataMessage(frame)); err != nil {
					logp.Debug("transport", "send failed, dropping subscriber: %v", err)
					return
				}
			case <-done:
				return
			}
		}
	})

	mux := http.NewServeMux()
	mux.Handle("/socket", handler)
	mux.Handle(cfg.Metrics.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: cfg.Listen.Addr, Handler: mux}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logp.Info("shutting down")
		worker.Shutdown()
		_ = srv.Close()
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
