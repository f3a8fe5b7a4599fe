package lease

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uber/fenzo-go/pkg/scalar"
)

func mkOffer(id, host string, cpu float64, at time.Time) Offer {
	return Offer{
		ID:         id,
		Hostname:   host,
		OfferedAt:  at,
		ReceivedAt: at,
		Resources:  scalar.Resources{CPU: cpu},
	}
}

func TestAddOffers_Basic(t *testing.T) {
	s := New(false, nil)
	_, err := s.AddOffers([]Offer{mkOffer("a", "h1", 4, time.Now())})
	require.NoError(t, err)

	offers := s.OffersForHost("h1")
	require.Len(t, offers, 1)
	assert.Equal(t, "a", offers[0].ID)
}

func TestAddOffers_DuplicateIDFails(t *testing.T) {
	s := New(false, nil)
	now := time.Now()
	_, err := s.AddOffers([]Offer{mkOffer("a", "h1", 4, now)})
	require.NoError(t, err)

	_, err = s.AddOffers([]Offer{mkOffer("a", "h2", 2, now)})
	assert.Error(t, err)

	// first offer is still present; the duplicate was never admitted.
	assert.Len(t, s.OffersForHost("h1"), 1)
	assert.Len(t, s.OffersForHost("h2"), 0)
}

func TestAddOffers_PartialBatchSurvivesDuplicate(t *testing.T) {
	s := New(false, nil)
	now := time.Now()
	_, err := s.AddOffers([]Offer{
		mkOffer("a", "h1", 4, now),
		mkOffer("a", "h2", 2, now),
	})
	assert.Error(t, err)
	assert.Len(t, s.OffersForHost("h1"), 1)
	assert.Len(t, s.OffersForHost("h2"), 0)
}

func TestPurgeExpired_BoundaryRetainedAtExactly(t *testing.T) {
	s := New(false, nil)
	now := time.Now()
	old := now.Add(-120 * time.Second)
	_, err := s.AddOffers([]Offer{mkOffer("a", "h1", 1, old)})
	require.NoError(t, err)

	removed := s.PurgeExpired(now, 120*time.Second)
	assert.Len(t, removed, 0)
	assert.Len(t, s.OffersForHost("h1"), 1)
}

func TestPurgeExpired_RejectedOneMillisecondPast(t *testing.T) {
	var rejections []Rejection
	s := New(false, func(r Rejection) { rejections = append(rejections, r) })
	now := time.Now()
	old := now.Add(-120*time.Second - time.Millisecond)
	_, err := s.AddOffers([]Offer{mkOffer("a", "h1", 1, old)})
	require.NoError(t, err)

	removed := s.PurgeExpired(now, 120*time.Second)
	require.Len(t, removed, 1)
	assert.Equal(t, ReasonExpired, removed[0].Reason)
	assert.Len(t, rejections, 1)
	assert.Len(t, s.OffersForHost("h1"), 0)
}

func TestExpireByID(t *testing.T) {
	var rejections []Rejection
	s := New(false, func(r Rejection) { rejections = append(rejections, r) })
	now := time.Now()
	_, _ = s.AddOffers([]Offer{mkOffer("a", "h1", 1, now), mkOffer("b", "h1", 1, now)})

	s.ExpireByID("a")
	assert.Len(t, s.OffersForHost("h1"), 1)
	require.Len(t, rejections, 1)
	assert.Equal(t, ReasonExplicitExpire, rejections[0].Reason)
}

func TestSingleOfferPerHost_ReplacesVector(t *testing.T) {
	s := New(true, nil)
	now := time.Now()
	_, err := s.AddOffers([]Offer{mkOffer("a", "h1", 4, now)})
	require.NoError(t, err)
	_, err = s.AddOffers([]Offer{mkOffer("b", "h1", 8, now)})
	require.NoError(t, err)

	offers := s.OffersForHost("h1")
	require.Len(t, offers, 1)
	assert.Equal(t, "b", offers[0].ID)
}

func TestHostnameForVMID(t *testing.T) {
	s := New(false, nil)
	o := mkOffer("a", "h1", 1, time.Now())
	o.VMID = "vm-123"
	_, err := s.AddOffers([]Offer{o})
	require.NoError(t, err)

	assert.Equal(t, "h1", s.HostnameForVMID("vm-123"))
	assert.Equal(t, "", s.HostnameForVMID("unknown"))
}
