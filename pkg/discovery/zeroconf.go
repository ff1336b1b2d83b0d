package discovery

import (
	"context"
	"fmt"
	"net"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/libp2p/zeroconf/v2"
	"go.uber.org/zap"

	serrors "github.com/DeBrosOfficial/scenestream/pkg/errors"
	"github.com/DeBrosOfficial/scenestream/pkg/logging"
	"github.com/DeBrosOfficial/scenestream/pkg/registry"
)

// Defaults for round-based browsing.
const (
	DefaultBrowseInterval = 3 * time.Second
	DefaultMissLimit      = 3
)

// ZeroconfOptions tunes the mDNS backend.
type ZeroconfOptions struct {
	// BrowseInterval is the length of one browse round.
	BrowseInterval time.Duration
	// MissLimit is how many consecutive rounds an instance may be absent
	// before it is reported as removed.
	MissLimit int
	Logger    *logging.ColoredLogger
}

// ZeroconfBackend browses with github.com/libp2p/zeroconf/v2. That library
// reports each instance once per Browse call and drops goodbye packets, so
// the backend browses in rounds and treats instances missing for MissLimit
// rounds as removed.
type ZeroconfBackend struct {
	opts ZeroconfOptions

	mu      sync.RWMutex
	records map[string]registry.PeerRecord
}

// NewZeroconfBackend fails when the machine has no multicast-capable interface.
func NewZeroconfBackend(opts ZeroconfOptions) (*ZeroconfBackend, error) {
	if opts.BrowseInterval <= 0 {
		opts.BrowseInterval = DefaultBrowseInterval
	}
	if opts.MissLimit <= 0 {
		opts.MissLimit = DefaultMissLimit
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}

	ifaces, err := multicastInterfaces()
	if err != nil {
		return nil, err
	}
	if len(ifaces) == 0 {
		return nil, fmt.Errorf("no multicast-capable network interface")
	}

	return &ZeroconfBackend{
		opts:    opts,
		records: make(map[string]registry.PeerRecord),
	}, nil
}

// ZeroconfFactory returns a Factory building a fresh backend per session.
func ZeroconfFactory(opts ZeroconfOptions) Factory {
	return func() (Backend, error) {
		return NewZeroconfBackend(opts)
	}
}

func multicastInterfaces() ([]net.Interface, error) {
	all, err := net.Interfaces()
	if err != nil {
		return nil, serrors.Wrap(err, "list interfaces")
	}
	var out []net.Interface
	for _, ifi := range all {
		if ifi.Flags&net.FlagUp == 0 || ifi.Flags&net.FlagMulticast == 0 {
			continue
		}
		out = append(out, ifi)
	}
	return out, nil
}

// Browse runs rounds until ctx is done. Trailing dots on serviceType and
// domain are accepted.
func (z *ZeroconfBackend) Browse(ctx context.Context, serviceType, domain string, events chan<- Event) error {
	rounds := newRoundTracker(z.opts.MissLimit)
	domain = strings.TrimSuffix(domain, ".")
	if domain == "" {
		domain = "local"
	}
	serviceType = strings.TrimSuffix(serviceType, ".")

	for ctx.Err() == nil {
		err := z.round(ctx, serviceType, domain, func(rec registry.PeerRecord) {
			z.mu.Lock()
			z.records[rec.ID] = rec
			z.mu.Unlock()

			if kind, changed := rounds.observe(rec); changed {
				emit(ctx, events, Event{Kind: kind, Name: rec.ID})
			}
		})
		if err != nil && ctx.Err() == nil {
			return err
		}

		for _, name := range rounds.endRound() {
			z.mu.Lock()
			delete(z.records, name)
			z.mu.Unlock()
			emit(ctx, events, Event{Kind: Removed, Name: name})
		}
	}
	return ctx.Err()
}

// round browses for one interval and calls seen for every entry.
func (z *ZeroconfBackend) round(ctx context.Context, serviceType, domain string, seen func(registry.PeerRecord)) error {
	rctx, cancel := context.WithTimeout(ctx, z.opts.BrowseInterval)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry, 32)
	errc := make(chan error, 1)
	go func() {
		errc <- zeroconf.Browse(rctx, serviceType, domain, entries)
	}()

	handle := func(e *zeroconf.ServiceEntry) {
		if e == nil {
			return
		}
		seen(entryToRecord(e))
	}

	for {
		select {
		case e, ok := <-entries:
			if !ok {
				entries = nil
				continue
			}
			handle(e)
		case err := <-errc:
			for entries != nil {
				select {
				case e, ok := <-entries:
					if !ok {
						entries = nil
						continue
					}
					handle(e)
				default:
					entries = nil
				}
			}
			if err != nil && rctx.Err() == nil {
				z.opts.Logger.ComponentWarn(logging.ComponentDiscovery, "mDNS browse failed", zap.Error(err))
				return err
			}
			return nil
		}
	}
}

// Resolve returns the last record seen for name.
func (z *ZeroconfBackend) Resolve(_ context.Context, name string) (registry.PeerRecord, error) {
	z.mu.RLock()
	defer z.mu.RUnlock()
	rec, ok := z.records[name]
	if !ok {
		return registry.PeerRecord{}, serrors.NewNotFoundError("service", name)
	}
	rec.Addresses = slices.Clone(rec.Addresses)
	return rec, nil
}

func emit(ctx context.Context, events chan<- Event, ev Event) {
	select {
	case events <- ev:
	case <-ctx.Done():
	}
}

// entryToRecord lists IPv4 addresses before IPv6 ones.
func entryToRecord(e *zeroconf.ServiceEntry) registry.PeerRecord {
	addrs := make([]string, 0, len(e.AddrIPv4)+len(e.AddrIPv6))
	for _, ip := range e.AddrIPv4 {
		addrs = append(addrs, ip.String())
	}
	for _, ip := range e.AddrIPv6 {
		addrs = append(addrs, ip.String())
	}
	return registry.PeerRecord{
		ID:        e.ServiceInstanceName(),
		Host:      e.HostName,
		Port:      uint16(e.Port),
		Addresses: addrs,
	}
}

// roundTracker turns per-round sightings into added/updated/removed events.
type roundTracker struct {
	missLimit int
	known     map[string]registry.PeerRecord
	misses    map[string]int
	seen      map[string]bool
}

func newRoundTracker(missLimit int) *roundTracker {
	if missLimit < 1 {
		missLimit = 1
	}
	return &roundTracker{
		missLimit: missLimit,
		known:     make(map[string]registry.PeerRecord),
		misses:    make(map[string]int),
		seen:      make(map[string]bool),
	}
}

// observe records a sighting. It reports Added for new instances and
// Updated when host, port or addresses changed.
func (r *roundTracker) observe(rec registry.PeerRecord) (EventKind, bool) {
	r.seen[rec.ID] = true
	r.misses[rec.ID] = 0

	old, ok := r.known[rec.ID]
	r.known[rec.ID] = rec
	switch {
	case !ok:
		return Added, true
	case old.Host != rec.Host || old.Port != rec.Port || !slices.Equal(old.Addresses, rec.Addresses):
		return Updated, true
	default:
		return 0, false
	}
}

// endRound closes a round and returns instances that have now been missing
// for missLimit rounds.
func (r *roundTracker) endRound() []string {
	var removed []string
	for name := range r.known {
		if r.seen[name] {
			continue
		}
		r.misses[name]++
		if r.misses[name] >= r.missLimit {
			removed = append(removed, name)
			delete(r.known, name)
			delete(r.misses, name)
		}
	}
	slices.Sort(removed)
	r.seen = make(map[string]bool)
	return removed
}
