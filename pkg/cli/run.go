package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DeBrosOfficial/scenestream/pkg/executor"
	"github.com/DeBrosOfficial/scenestream/pkg/gateway"
	"github.com/DeBrosOfficial/scenestream/pkg/logging"
	"github.com/DeBrosOfficial/scenestream/pkg/metrics"
	"github.com/DeBrosOfficial/scenestream/pkg/registry"
	"github.com/DeBrosOfficial/scenestream/pkg/streamer"
)

const devicePoll = 250 * time.Millisecond

type runFlags struct {
	source        string
	watchInterval time.Duration
	device        string
	deviceWait    time.Duration
	autoStream    bool
	noGateway     bool
}

func newRunCommand(gf *globalFlags, build BuildInfo) *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the streamer with its control gateway",
		Long: `Run discovers headsets, serves the control gateway and streams the scene.

The scene is read from --source on every frame. The file's modification time
is polled as the "content changed" signal when stream_only_when_active is on.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStreamer(cmd.Context(), gf, f, build)
		},
	}
	cmd.Flags().StringVar(&f.source, "source", "", "Scene file to stream (required)")
	cmd.Flags().DurationVar(&f.watchInterval, "watch-interval", 200*time.Millisecond, "Poll interval for source changes")
	cmd.Flags().StringVar(&f.device, "device", "", "Connect to the first device whose name contains this text")
	cmd.Flags().DurationVar(&f.deviceWait, "device-wait", 30*time.Second, "How long to wait for --device to appear")
	cmd.Flags().BoolVar(&f.autoStream, "stream", false, "Start streaming once connected to --device")
	cmd.Flags().BoolVar(&f.noGateway, "no-gateway", false, "Do not serve the HTTP gateway")
	_ = cmd.MarkFlagRequired("source")
	return cmd
}

func runStreamer(parent context.Context, gf *globalFlags, f *runFlags, build BuildInfo) error {
	cfg, err := gf.loadConfig()
	if err != nil {
		return err
	}
	if f.noGateway {
		cfg.Gateway.Enabled = false
	}
	if _, err := os.Stat(f.source); err != nil {
		return fmt.Errorf("scene source: %w", err)
	}

	logger, err := newLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer logger.Sync()

	m := metrics.New()
	m.InitInfo(build.Version)

	// The executor plays the host's main thread: exports run nowhere else.
	exec := executor.New(8)
	svc, err := streamer.New(streamer.Options{
		Config:  cfg,
		Export:  fileExporter{source: f.source}.Export,
		Runner:  exec,
		Logger:  logger,
		Metrics: m,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return exec.Run(context.Background())
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.ComponentInfo(logging.ComponentGeneral, "Shutting down...")
		err := svc.Close()
		_ = exec.Close()
		return err
	})

	g.Go(func() error {
		return changeWatcher{
			path:     f.source,
			interval: f.watchInterval,
			clk:      clock.New(),
			onChange: svc.RecordChange,
			logger:   logger,
		}.run(gctx)
	})

	if gw := gateway.New(cfg.Gateway, svc, m, logger); gw != nil {
		g.Go(func() error { return gw.Start(gctx) })
	}

	if cfg.Discovery.Enabled {
		if err := svc.StartDiscovery(); err != nil {
			logger.ComponentWarn(logging.ComponentDiscovery, "Discovery not started", zap.Error(err))
		}
	}

	if f.device != "" {
		g.Go(func() error {
			return autoConnect(gctx, svc, f.device, f.deviceWait, f.autoStream, logger)
		})
	}

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	return err
}

// autoConnect waits for a device matching name, connects and optionally
// starts streaming. Failing to find one is logged, not fatal.
func autoConnect(ctx context.Context, svc *streamer.Service, name string, wait time.Duration, startStream bool, logger *logging.ColoredLogger) error {
	ctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	ticker := time.NewTicker(devicePoll)
	defer ticker.Stop()
	for {
		if peer, ok := findDevice(svc.Devices(), name); ok {
			if err := svc.Connect(ctx, peer.ID); err != nil {
				logger.ComponentWarn(logging.ComponentConnection, "Auto-connect failed",
					zap.String("device", peer.DisplayName()),
					zap.Error(err),
				)
				return nil
			}
			if startStream {
				if err := svc.StartStreaming(); err != nil {
					logger.ComponentWarn(logging.ComponentStream, "Auto-stream failed", zap.Error(err))
				}
			}
			return nil
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				logger.ComponentWarn(logging.ComponentDiscovery, "Device not found",
					zap.String("device", name),
					zap.Duration("waited", wait),
				)
			}
			return nil
		case <-ticker.C:
		}
	}
}

func findDevice(devices []registry.PeerRecord, name string) (registry.PeerRecord, bool) {
	needle := strings.ToLower(name)
	for _, d := range devices {
		if strings.Contains(strings.ToLower(d.DisplayName()), needle) {
			return d, true
		}
	}
	return registry.PeerRecord{}, false
}
