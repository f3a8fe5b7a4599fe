// Package lease implements the Offer Store: the set of unused resource
// offers held per host, their expiry, and rejection bookkeeping.
package lease

import (
	"time"

	"github.com/uber/fenzo-go/pkg/scalar"
)

// Offer is an immutable resource advertisement from a single host.
type Offer struct {
	ID          string
	Hostname    string
	VMID        string
	OfferedAt   time.Time
	Resources   scalar.Resources
	PortRanges  []scalar.PortRange
	Attributes  map[string]string
	ReceivedAt  time.Time
}

// EffectivePorts returns the offer's discrete port capacity: the sum of
// PortRanges if any are set, otherwise Resources.Ports directly (for
// callers that only ever populate a plain count). Used when a batch of
// offers is aggregated into a host's resource vector, so the spec §3
// offer field `portRanges[]` is actually folded into the capacity a task's
// port requirement is checked against.
func (o Offer) EffectivePorts() uint64 {
	if len(o.PortRanges) == 0 {
		return o.Resources.Ports
	}
	var total uint64
	for _, pr := range o.PortRanges {
		total += pr.Count()
	}
	return total
}

// RejectReason explains why an offer left the store without being consumed
// by a task, per spec §8's "offer not bound" invariant.
type RejectReason string

const (
	// ReasonExpired means the offer exceeded leaseOfferExpirySecs.
	ReasonExpired RejectReason = "expired"
	// ReasonIdleHost means the offer's host was idle at round end.
	ReasonIdleHost RejectReason = "idle-host"
	// ReasonExplicitExpire means a caller invoked an expire* mutation.
	ReasonExplicitExpire RejectReason = "explicit-expire"
	// ReasonDuplicate means the offer id collided with one already held.
	ReasonDuplicate RejectReason = "duplicate"
)

// Rejection is reported to the configured rejection callback whenever an
// offer is removed from the store without being bound to a task.
type Rejection struct {
	Offer  Offer
	Reason RejectReason
}
