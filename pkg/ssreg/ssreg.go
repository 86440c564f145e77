// Package ssreg implements the Naming Server's Storage Server registry:
// SSRecord bookkeeping, the primary/replica assignment scheme (odd
// registrations become primaries, even registrations become replicas of
// the immediately preceding primary), heartbeat refresh, and the failure
// detector that flips a silent SS inactive after its liveness deadline.
package ssreg

import (
	"context"
	"sync"
	"time"

	"github.com/docspp/docspp/pkg/dfserrors"
)

// Record is one Storage Server's registration state.
type Record struct {
	SSID         string
	IP           string
	ClientPort   int
	AdminPort    int
	IsPrimary    bool
	ReplicaOf    string // empty iff IsPrimary
	LastHeartbeat time.Time
	IsActive     bool
}

func (r *Record) clone() *Record {
	c := *r
	return &c
}

// Registry holds every known SSRecord, keyed by SSID but ordered by
// first-registration sequence (needed for the odd/even primary/replica
// assignment rule).
type Registry struct {
	mu      sync.RWMutex
	order   []*Record
	byID    map[string]*Record
	maxSize int
}

// New builds an empty Registry. maxSize <= 0 means unbounded.
func New(maxSize int) *Registry {
	return &Registry{byID: make(map[string]*Record), maxSize: maxSize}
}

// Register handles a REGISTER line, idempotently. For an unknown ss_id
// it appends a new Record and assigns primary/replica role by parity of
// registration order. For a known ss_id it refreshes the endpoint and
// heartbeat. recovered reports whether this registration follows a
// period of inactivity, the trigger for re-synchronization.
func (r *Registry) Register(ssID, ip string, clientPort, adminPort int) (rec *Record, recovered bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	if existing, ok := r.byID[ssID]; ok {
		recovered = !existing.IsActive
		existing.IP = ip
		existing.ClientPort = clientPort
		existing.AdminPort = adminPort
		existing.LastHeartbeat = now
		existing.IsActive = true
		return existing.clone(), recovered, nil
	}

	if r.maxSize > 0 && len(r.order) >= r.maxSize {
		return nil, false, dfserrors.Newf(dfserrors.SystemError, "storage server registry full (max %d)", r.maxSize)
	}

	rec = &Record{
		SSID:          ssID,
		IP:            ip,
		ClientPort:    clientPort,
		AdminPort:     adminPort,
		LastHeartbeat: now,
		IsActive:      true,
	}
	if len(r.order)%2 == 0 {
		rec.IsPrimary = true
	} else {
		rec.ReplicaOf = r.order[len(r.order)-1].SSID
	}
	r.order = append(r.order, rec)
	r.byID[ssID] = rec
	return rec.clone(), false, nil
}

// Get returns a copy of the record for ssID, or ok=false.
func (r *Registry) Get(ssID string) (*Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.byID[ssID]
	if !ok {
		return nil, false
	}
	return rec.clone(), true
}

// All returns a snapshot of every known record, in registration order.
func (r *Registry) All() []*Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Record, len(r.order))
	for i, rec := range r.order {
		out[i] = rec.clone()
	}
	return out
}

// Active returns a snapshot of every active record.
func (r *Registry) Active() []*Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Record
	for _, rec := range r.order {
		if rec.IsActive {
			out = append(out, rec.clone())
		}
	}
	return out
}

// FirstActivePrimary returns the first active primary SS, the CREATE
// routing default; ok=false if none are active.
func (r *Registry) FirstActivePrimary() (*Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, rec := range r.order {
		if rec.IsActive && rec.IsPrimary {
			return rec.clone(), true
		}
	}
	return nil, false
}

// FirstActiveAny returns any active SS (CREATE's documented fallback
// when no primary is active).
func (r *Registry) FirstActiveAny() (*Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, rec := range r.order {
		if rec.IsActive {
			return rec.clone(), true
		}
	}
	return nil, false
}

// ReplicasOf returns every active replica of the primary identified by
// primaryID, the fan-out target set for CREATE replication.
func (r *Registry) ReplicasOf(primaryID string) []*Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Record
	for _, rec := range r.order {
		if rec.IsActive && rec.ReplicaOf == primaryID {
			out = append(out, rec.clone())
		}
	}
	return out
}

// RouteFor returns an active SS eligible to serve a file bound to
// (ssIP, ssPort): either the primary itself or an active replica of it.
func (r *Registry) RouteFor(ssIP string, ssPort int) (*Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var primaryID string
	for _, rec := range r.order {
		if rec.IP == ssIP && rec.ClientPort == ssPort {
			primaryID = rec.SSID
			if rec.IsActive {
				return rec.clone(), true
			}
			break
		}
	}
	if primaryID == "" {
		return nil, false
	}
	for _, rec := range r.order {
		if rec.IsActive && rec.ReplicaOf == primaryID {
			return rec.clone(), true
		}
	}
	return nil, false
}

// MarkInactive flips ssID inactive (the failure detector's action),
// returning false if ssID is unknown or already inactive.
func (r *Registry) MarkInactive(ssID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.byID[ssID]
	if !ok || !rec.IsActive {
		return false
	}
	rec.IsActive = false
	return true
}

// RunFailureDetector polls every interval for records whose
// LastHeartbeat has exceeded deadline, marks them inactive, and invokes
// onFailure for each newly-failed record. It runs until ctx is
// cancelled.
func (r *Registry) RunFailureDetector(ctx context.Context, interval, deadline time.Duration, onFailure func(*Record)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweep(deadline, onFailure)
		}
	}
}

func (r *Registry) sweep(deadline time.Duration, onFailure func(*Record)) {
	now := time.Now()
	r.mu.Lock()
	var failed []*Record
	for _, rec := range r.order {
		if rec.IsActive && now.Sub(rec.LastHeartbeat) > deadline {
			rec.IsActive = false
			failed = append(failed, rec.clone())
		}
	}
	r.mu.Unlock()
	if onFailure == nil {
		return
	}
	for _, rec := range failed {
		onFailure(rec)
	}
}
