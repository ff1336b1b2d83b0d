package discovery

import (
	"context"

	"github.com/DeBrosOfficial/scenestream/pkg/registry"
)

// EventKind is what happened to an advertised service.
type EventKind int

const (
	Added EventKind = iota
	Updated
	Removed
)

func (k EventKind) String() string {
	switch k {
	case Added:
		return "added"
	case Updated:
		return "updated"
	case Removed:
		return "removed"
	default:
		return "unknown"
	}
}

// Event is a service change reported by a Backend. Name is the full
// service instance name.
type Event struct {
	Kind EventKind
	Name string
}

// Backend is a DNS-SD implementation.
type Backend interface {
	// Browse reports service changes on events until ctx is done. It must
	// not close events.
	Browse(ctx context.Context, serviceType, domain string, events chan<- Event) error
	// Resolve returns the current record for an instance name.
	Resolve(ctx context.Context, name string) (registry.PeerRecord, error)
}

// Factory creates a Backend for one discovery session. An error means
// discovery is unavailable on this machine.
type Factory func() (Backend, error)
