// Package registry holds the set of peers discovered on the local network.
package registry

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/DeBrosOfficial/scenestream/pkg/status"
)

// PeerRecord describes one advertised receiver. Records handed out by the
// registry are copies.
type PeerRecord struct {
	// ID is the full service instance name, e.g. "Studio._visionpro_blender._tcp.local.".
	ID        string   `json:"id"`
	Host      string   `json:"host"`
	Port      uint16   `json:"port"`
	Addresses []string `json:"addresses"`
}

// DisplayName returns the first label of the instance name.
func (p PeerRecord) DisplayName() string {
	if i := strings.IndexByte(p.ID, '.'); i > 0 {
		return p.ID[:i]
	}
	return p.ID
}

// Description renders host, port and addresses for list views.
func (p PeerRecord) Description() string {
	if len(p.Addresses) == 0 {
		return fmt.Sprintf("%s:%d", p.Host, p.Port)
	}
	return fmt.Sprintf("%s:%d (%s)", p.Host, p.Port, strings.Join(p.Addresses, ", "))
}

func (p PeerRecord) clone() PeerRecord {
	if p.Addresses != nil {
		p.Addresses = append([]string(nil), p.Addresses...)
	}
	return p
}

// Registry is a concurrent-safe map of peers keyed by ID. Every mutation
// notifies the devices-changed hook; wrap the notifier in status.Debounced
// to coalesce bursts.
type Registry struct {
	mu       sync.RWMutex
	peers    map[string]PeerRecord
	notifier status.Notifier
}

// New creates an empty registry.
func New(notifier status.Notifier) *Registry {
	if notifier == nil {
		notifier = status.Nop{}
	}
	return &Registry{
		peers:    make(map[string]PeerRecord),
		notifier: notifier,
	}
}

// Upsert inserts or replaces the record with the same ID.
func (r *Registry) Upsert(rec PeerRecord) {
	r.mu.Lock()
	r.peers[rec.ID] = rec.clone()
	r.mu.Unlock()
	r.notifier.NotifyDevicesChanged()
}

// Remove deletes the record with id. Unknown ids are a no-op and do not notify.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	_, ok := r.peers[id]
	delete(r.peers, id)
	r.mu.Unlock()
	if ok {
		r.notifier.NotifyDevicesChanged()
	}
}

// Clear drops every record.
func (r *Registry) Clear() {
	r.mu.Lock()
	n := len(r.peers)
	r.peers = make(map[string]PeerRecord)
	r.mu.Unlock()
	if n > 0 {
		r.notifier.NotifyDevicesChanged()
	}
}

// Get returns a copy of the record with id.
func (r *Registry) Get(id string) (PeerRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.peers[id]
	if !ok {
		return PeerRecord{}, false
	}
	return rec.clone(), true
}

// Len returns the number of records.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.peers)
}

// Snapshot returns copies of all records sorted by ID.
func (r *Registry) Snapshot() []PeerRecord {
	r.mu.RLock()
	out := make([]PeerRecord, 0, len(r.peers))
	for _, rec := range r.peers {
		out = append(out, rec.clone())
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
