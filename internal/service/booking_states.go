package service

import (
	"context"
	"strings"
	"time"

	"renthub/internal/apperr"
	"renthub/internal/domain"
	"renthub/internal/models"
)

// stateFetch resolves one state token into a booking list for a user.
type stateFetch func(ctx context.Context, userID int64, now time.Time) ([]models.Booking, error)

// StateRegistry maps state tokens to list queries, one family per role.
// Both families answer the same tokens; they differ only in whose
// bookings they scope to. Tokens are matched case-insensitively.
type StateRegistry struct {
	booker map[string]stateFetch
	owner  map[string]stateFetch
}

// NewStateRegistry wires both strategy families against the store. The
// registry is built once at startup; adding a state means adding one
// entry per family here.
func NewStateRegistry(store domain.BookingStore) *StateRegistry {
	byStatus := func(list func(context.Context, int64, models.BookingStatus) ([]models.Booking, error), status models.BookingStatus) stateFetch {
		return func(ctx context.Context, userID int64, _ time.Time) ([]models.Booking, error) {
			return list(ctx, userID, status)
		}
	}

	return &StateRegistry{
		booker: map[string]stateFetch{
			models.StateAll: func(ctx context.Context, userID int64, _ time.Time) ([]models.Booking, error) {
				return store.ListByBooker(ctx, userID)
			},
			models.StateCurrent:  store.ListByBookerCurrent,
			models.StatePast:     store.ListByBookerPast,
			models.StateFuture:   store.ListByBookerFuture,
			models.StateWaiting:  byStatus(store.ListByBookerAndStatus, models.StatusWaiting),
			models.StateApproved: byStatus(store.ListByBookerAndStatus, models.StatusApproved),
			models.StateRejected: byStatus(store.ListByBookerAndStatus, models.StatusRejected),
		},
		owner: map[string]stateFetch{
			models.StateAll: func(ctx context.Context, userID int64, _ time.Time) ([]models.Booking, error) {
				return store.ListByOwner(ctx, userID)
			},
			models.StateCurrent:  store.ListByOwnerCurrent,
			models.StatePast:     store.ListByOwnerPast,
			models.StateFuture:   store.ListByOwnerFuture,
			models.StateWaiting:  byStatus(store.ListByOwnerAndStatus, models.StatusWaiting),
			models.StateApproved: byStatus(store.ListByOwnerAndStatus, models.StatusApproved),
			models.StateRejected: byStatus(store.ListByOwnerAndStatus, models.StatusRejected),
		},
	}
}

// Resolve returns the fetch strategy for a role and state token. An
// empty token means ALL. Unknown tokens are a validation error carrying
// the original token text.
func (r *StateRegistry) Resolve(role domain.Role, state string) (stateFetch, error) {
	token := strings.ToUpper(strings.TrimSpace(state))
	if token == "" {
		token = models.StateAll
	}

	family := r.booker
	if role == domain.RoleOwner {
		family = r.owner
	}

	fetch, ok := family[token]
	if !ok {
		return nil, apperr.Validation("unknown booking state: %s", state)
	}
	return fetch, nil
}

// NormalizeState reports the canonical token Resolve would use, for
// cache keys.
func NormalizeState(state string) string {
	token := strings.ToUpper(strings.TrimSpace(state))
	if token == "" {
		return models.StateAll
	}
	return token
}
