package cli

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/DeBrosOfficial/scenestream/pkg/logging"
	"github.com/DeBrosOfficial/scenestream/pkg/receiver"
)

type receiveFlags struct {
	listen    string
	name      string
	advertise bool
	outDir    string
}

func newReceiveCommand(gf *globalFlags) *cobra.Command {
	f := &receiveFlags{}
	cmd := &cobra.Command{
		Use:   "receive",
		Short: "Act as a headset: accept a stream and optionally save frames",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runReceive(cmd.Context(), gf, f)
		},
	}
	cmd.Flags().StringVarP(&f.listen, "listen", "l", ":0", "TCP address to accept the stream on")
	cmd.Flags().StringVarP(&f.name, "name", "n", receiver.DefaultInstance, "mDNS instance name to advertise")
	cmd.Flags().BoolVar(&f.advertise, "advertise", true, "Advertise the receiver over mDNS")
	cmd.Flags().StringVarP(&f.outDir, "out", "o", "", "Directory to write the latest frame to")
	return cmd
}

// latestFrameWriter keeps only the most recent payload on disk, replacing
// it atomically so readers never see a partial file.
type latestFrameWriter struct {
	dir  string
	name string
}

func (w latestFrameWriter) HandleFrame(_ net.Addr, payload []byte) error {
	tmp, err := os.CreateTemp(w.dir, ".frame-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), filepath.Join(w.dir, w.name))
}

func runReceive(parent context.Context, gf *globalFlags, f *receiveFlags) error {
	cfg, err := gf.loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer logger.Sync()

	var handler receiver.Handler
	if f.outDir != "" {
		if err := os.MkdirAll(f.outDir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
		handler = latestFrameWriter{dir: f.outDir, name: cfg.Stream.ExportFileName}
		logger.ComponentInfo(logging.ComponentReceiver, "Writing latest frame",
			zap.String("path", filepath.Join(f.outDir, cfg.Stream.ExportFileName)),
		)
	}

	r := receiver.New(receiver.Options{
		ListenAddr:  f.listen,
		MaxPayload:  cfg.Stream.MaxPayloadBytes,
		Advertise:   f.advertise,
		Instance:    f.name,
		ServiceType: cfg.Discovery.ServiceType,
		Domain:      cfg.Discovery.Domain,
		Logger:      logger,
	}, handler)

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return r.Start(ctx)
}
