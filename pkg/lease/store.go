package lease

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	atomic "github.com/uber-go/atomic"
	"go.uber.org/yarpc/yarpcerrors"
)

// RejectCallback is invoked whenever the store rejects an offer. Required
// by spec §6 (leaseRejectCallback).
type RejectCallback func(Rejection)

// Store owns the set of offers held per host: ingestion, expiry, and
// rejection-callback dispatch (spec §4.1).
type Store interface {
	// AddOffers ingests a batch of new offers. An id collision aborts the
	// batch with an error; offers already accepted earlier in the same
	// batch remain in the store (spec §4.1, §8 scenario 3: "first offer may
	// be present in store; second is not"). The returned count is always 0
	// at this layer today — reserved for future rejection policies (e.g.
	// admission control) that reject without erroring.
	AddOffers(batch []Offer) (rejected int, err error)

	// ExpireByID rejects and removes a single offer.
	ExpireByID(id string)

	// ExpireAllForHost rejects and removes every offer held for hostname.
	ExpireAllForHost(hostname string)

	// ExpireAll rejects and removes every offer in the store.
	ExpireAll()

	// RejectIdleHost rejects and removes every offer held for hostname with
	// reason idle-host, used by round-end idle-offer detection (spec §4.6
	// step 6) rather than an explicit expire* mutation.
	RejectIdleHost(hostname string) []Rejection

	// HostnameForVMID returns the hostname that last reported vmID, or "".
	HostnameForVMID(vmID string) string

	// PurgeExpired removes and rejects every offer older than maxAge as of
	// now. Called once at the start of every round, before any task is
	// considered (spec §4.1).
	PurgeExpired(now time.Time, maxAge time.Duration) []Rejection

	// OffersForHost returns a snapshot of the offers currently held for
	// hostname (used by the Host View to (re)build its aggregate vector).
	OffersForHost(hostname string) []Offer

	// Hostnames returns every hostname with at least one held offer.
	Hostnames() []string
}

// New constructs an offer store. singleOfferPerHost mirrors the Host View's
// single-vector mode described in spec §4.1: the first offer establishes the
// host's resource vector and subsequent offers replace it rather than
// accumulate, matching the driver contract for that mode.
func New(singleOfferPerHost bool, reject RejectCallback) Store {
	if reject == nil {
		reject = func(Rejection) {}
	}
	return &store{
		byHost:             make(map[string]map[string]Offer),
		vmIDToHost:         make(map[string]string),
		singleOfferPerHost: singleOfferPerHost,
		reject:             reject,
	}
}

type store struct {
	mu sync.RWMutex

	// byHost[hostname][offerID] = Offer
	byHost map[string]map[string]Offer
	// vmIDToHost maps the most recently observed vmID to its hostname.
	vmIDToHost map[string]string

	singleOfferPerHost bool
	reject             RejectCallback

	heldCount atomic.Int64
}

func (s *store) AddOffers(batch []Offer) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rejected := 0
	for _, o := range batch {
		if o.ReceivedAt.IsZero() {
			o.ReceivedAt = time.Now()
		}

		for heldHost, held := range s.byHost {
			if _, exists := held[o.ID]; exists {
				return rejected, yarpcerrors.AlreadyExistsErrorf(
					"offer id %q already held for host %q", o.ID, heldHost)
			}
		}

		hostOffers, ok := s.byHost[o.Hostname]
		if !ok {
			hostOffers = make(map[string]Offer)
			s.byHost[o.Hostname] = hostOffers
		}

		if s.singleOfferPerHost && len(hostOffers) > 0 {
			for existingID, existing := range hostOffers {
				delete(hostOffers, existingID)
				s.heldCount.Dec()
				log.WithFields(log.Fields{
					"host":      o.Hostname,
					"replaced":  existingID,
					"incoming":  o.ID,
				}).Debug("single-offer-per-host: replacing existing vector")
				_ = existing
			}
		}

		hostOffers[o.ID] = o
		s.heldCount.Inc()
		if o.VMID != "" {
			s.vmIDToHost[o.VMID] = o.Hostname
		}

		log.WithFields(log.Fields{
			"offer_id": o.ID,
			"host":     o.Hostname,
		}).Debug("accepted offer")
	}

	return rejected, nil
}

func (s *store) ExpireByID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(func(o Offer) bool { return o.ID == id }, ReasonExplicitExpire)
}

func (s *store) ExpireAllForHost(hostname string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(func(o Offer) bool { return o.Hostname == hostname }, ReasonExplicitExpire)
}

func (s *store) ExpireAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(func(Offer) bool { return true }, ReasonExplicitExpire)
}

func (s *store) RejectIdleHost(hostname string) []Rejection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeLocked(func(o Offer) bool { return o.Hostname == hostname }, ReasonIdleHost)
}

func (s *store) HostnameForVMID(vmID string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.vmIDToHost[vmID]
}

func (s *store) PurgeExpired(now time.Time, maxAge time.Duration) []Rejection {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := now.Add(-maxAge)
	return s.removeLocked(func(o Offer) bool {
		return o.ReceivedAt.Before(cutoff)
	}, ReasonExpired)
}

func (s *store) OffersForHost(hostname string) []Offer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	hostOffers := s.byHost[hostname]
	out := make([]Offer, 0, len(hostOffers))
	for _, o := range hostOffers {
		out = append(out, o)
	}
	return out
}

func (s *store) Hostnames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.byHost))
	for h := range s.byHost {
		out = append(out, h)
	}
	return out
}

// removeLocked removes every offer matching pred, reports each to the
// rejection callback with reason, and returns the removed set. Caller must
// hold s.mu for writing.
func (s *store) removeLocked(pred func(Offer) bool, reason RejectReason) []Rejection {
	var removed []Rejection
	for hostname, hostOffers := range s.byHost {
		for id, o := range hostOffers {
			if !pred(o) {
				continue
			}
			delete(hostOffers, id)
			s.heldCount.Dec()
			removed = append(removed, Rejection{Offer: o, Reason: reason})
		}
		if len(hostOffers) == 0 {
			delete(s.byHost, hostname)
		}
	}
	for _, r := range removed {
		s.reject(r)
	}
	return removed
}
