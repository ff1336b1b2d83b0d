package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/DeBrosOfficial/scenestream/pkg/discovery"
	"github.com/DeBrosOfficial/scenestream/pkg/registry"
)

type discoverFlags struct {
	duration time.Duration
	jsonOut  bool
}

func newDiscoverCommand(gf *globalFlags) *cobra.Command {
	f := &discoverFlags{}
	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Browse the local network for headsets and print them",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDiscover(cmd.Context(), cmd.OutOrStdout(), gf, f)
		},
	}
	cmd.Flags().DurationVarP(&f.duration, "duration", "d", 5*time.Second, "How long to browse")
	cmd.Flags().BoolVar(&f.jsonOut, "json", false, "Print JSON instead of a table")
	return cmd
}

func runDiscover(parent context.Context, out io.Writer, gf *globalFlags, f *discoverFlags) error {
	cfg, err := gf.loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := registry.New(nil)
	ctl := discovery.NewController(discovery.ZeroconfFactory(discovery.ZeroconfOptions{
		BrowseInterval: cfg.Discovery.BrowseInterval,
		MissLimit:      cfg.Discovery.MissLimit,
		Logger:         logger,
	}), reg, nil, nil, logger)

	if err := ctl.Start(ctx, cfg.Discovery.ServiceType, cfg.Discovery.Domain); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
	case <-time.After(f.duration):
	}
	devices := reg.Snapshot()
	ctl.Stop()

	return printDevices(out, devices, f.jsonOut)
}

func printDevices(out io.Writer, devices []registry.PeerRecord, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(devices)
	}

	if len(devices) == 0 {
		fmt.Fprintln(out, "No devices found")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "NAME\tHOST\tPORT\tADDRESSES")
	for _, d := range devices {
		addrs := "-"
		if len(d.Addresses) > 0 {
			addrs = fmt.Sprint(d.Addresses)
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", d.DisplayName(), d.Host, d.Port, addrs)
	}
	return w.Flush()
}
