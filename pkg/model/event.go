package model

import "time"

// SlotHold is one live reservation entry inside an Event's hold map.
// Entries past ExpiresAt are dead weight and are pruned by the next
// writer that touches the map.
type SlotHold struct {
	Slots     []int     `bson:"slots" json:"slots"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"`
}

// Expired reports whether the hold is past its expiry at the given instant.
func (h SlotHold) Expired(now time.Time) bool {
	return !h.ExpiresAt.After(now)
}

// Event is the bookable resource: a scheduled match with a fixed number
// of numbered slots. BookedSlots counts confirmed seats only — holds never
// inflate it. LockedSlots maps lock-key to the hold it protects, and
// Version is the optimistic-concurrency counter every hold-map write
// must compare-and-swap against.
type Event struct {
	ID           string              `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	Name         string              `json:"name" bson:"name" validate:"required,min=2,max=100"`
	VenueID      string              `json:"venue_id" bson:"venue_id" validate:"required"`
	StartTime    time.Time           `json:"start_time" bson:"start_time" validate:"required"`
	Capacity     int                 `json:"capacity" bson:"capacity" validate:"required,min=1,max=500"`
	BookedSlots  int                 `json:"booked_slots" bson:"booked_slots"`
	PricePerSlot int64               `json:"price_per_slot" bson:"price_per_slot" validate:"required,min=1"`
	Currency     string              `json:"currency" bson:"currency" validate:"required,len=3"`
	LockedSlots  map[string]SlotHold `json:"locked_slots,omitempty" bson:"locked_slots,omitempty"`
	Version      int64               `json:"version" bson:"version"`
	CreatedAt    time.Time           `json:"created_at" bson:"created_at"`
}

// LiveHeldSlots returns the union of slot numbers covered by non-expired
// hold entries at the given instant.
func (e *Event) LiveHeldSlots(now time.Time) map[int]struct{} {
	held := make(map[int]struct{})
	for _, hold := range e.LockedSlots {
		if hold.Expired(now) {
			continue
		}
		for _, n := range hold.Slots {
			held[n] = struct{}{}
		}
	}
	return held
}

// PruneExpiredHolds drops dead entries from the hold map in place and
// reports how many were removed.
func (e *Event) PruneExpiredHolds(now time.Time) int {
	removed := 0
	for key, hold := range e.LockedSlots {
		if hold.Expired(now) {
			delete(e.LockedSlots, key)
			removed++
		}
	}
	return removed
}
