package service

import (
	"context"
	"errors"
	"time"

	"renthub/internal/apperr"
	"renthub/internal/database"
	"renthub/internal/domain"
	"renthub/internal/dto"
	"renthub/internal/events"
	"renthub/internal/metrics"
	"renthub/internal/models"

	"github.com/rs/zerolog"
)

// BookingService is the sole mutator of booking status. Every mutation
// runs its precondition checks and its write atomically in the store;
// the service layers the role and visibility rules on top.
type BookingService struct {
	store          domain.BookingStore
	items          domain.ItemStore
	users          domain.UserStore
	registry       *StateRegistry
	cache          domain.ListCache
	eventBus       domain.EventPublisher
	maxBookingDays int
	logger         *zerolog.Logger
	nowFn          func() time.Time
}

func NewBookingService(
	store domain.BookingStore,
	items domain.ItemStore,
	users domain.UserStore,
	registry *StateRegistry,
	cache domain.ListCache,
	eventBus domain.EventPublisher,
	maxBookingDays int,
	logger *zerolog.Logger,
) *BookingService {
	if maxBookingDays <= 0 {
		maxBookingDays = models.DefaultMaxBookingDays
	}
	return &BookingService{
		store:          store,
		items:          items,
		users:          users,
		registry:       registry,
		cache:          cache,
		eventBus:       eventBus,
		maxBookingDays: maxBookingDays,
		logger:         logger,
		nowFn:          time.Now,
	}
}

// Create validates a booking candidate and persists it as WAITING.
// Creation blocks on overlap with APPROVED bookings only: a WAITING
// booking never blocks another request, the approval step is the real
// conflict point.
func (s *BookingService) Create(ctx context.Context, req *dto.CreateBookingRequest, bookerID int64) (*dto.BookingView, error) {
	booker, err := s.users.GetUser(ctx, bookerID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, apperr.NotFound("user %d not found", bookerID)
		}
		return nil, err
	}

	item, err := s.items.GetItem(ctx, req.ItemID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, apperr.NotFound("item %d not found", req.ItemID)
		}
		return nil, err
	}

	if err := s.validateCandidate(ctx, item, bookerID, req.Start, req.End, 0); err != nil {
		metrics.IncBookingOp("create", "rejected")
		return nil, err
	}

	booking := &models.Booking{
		ItemID:   req.ItemID,
		BookerID: bookerID,
		Start:    req.Start.UTC(),
		End:      req.End.UTC(),
		Status:   models.StatusWaiting,
	}
	if err := s.store.CreateBooking(ctx, booking); err != nil {
		if errors.Is(err, database.ErrTimeConflict) {
			metrics.IncBookingOp("create", "conflict")
			return nil, apperr.Validation("item %d is already booked for this period", req.ItemID)
		}
		metrics.IncBookingOp("create", "error")
		return nil, err
	}

	metrics.IncBookingOp("create", "success")
	s.publishEvent(events.EventBookingCreated, booking, item.OwnerID)
	s.invalidateLists(ctx, booking.BookerID, item.OwnerID)

	view := dto.NewBookingView(booking, item, booker)
	return &view, nil
}

// Approve decides a WAITING booking. Only the item owner may decide,
// and only once; the store re-validates the overlap invariant inside
// the same transaction when the decision is an approval.
func (s *BookingService) Approve(ctx context.Context, bookingID, ownerID int64, approved bool) (*dto.BookingView, error) {
	booking, err := s.getBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	item, err := s.items.GetItem(ctx, booking.ItemID)
	if err != nil {
		return nil, err
	}
	if item.OwnerID != ownerID {
		return nil, apperr.AccessDenied("user %d does not own item %d", ownerID, item.ID)
	}
	if booking.Status != models.StatusWaiting {
		return nil, apperr.Validation("booking %d is already processed", bookingID)
	}

	status := models.StatusRejected
	eventType := events.EventBookingRejected
	if approved {
		status = models.StatusApproved
		eventType = events.EventBookingApproved
	}

	err = s.store.UpdateBookingStatusWithVersion(ctx, booking.ID, booking.Version, status, true)
	if err != nil {
		switch {
		case errors.Is(err, database.ErrTimeConflict):
			metrics.IncBookingOp("approve", "conflict")
			return nil, apperr.Validation("item %d already has an approved booking for this period", item.ID)
		case errors.Is(err, database.ErrConcurrentModification):
			metrics.IncBookingOp("approve", "conflict")
			return nil, apperr.Validation("booking %d is already processed", bookingID)
		case errors.Is(err, database.ErrNotFound):
			return nil, apperr.NotFound("booking %d not found", bookingID)
		}
		metrics.IncBookingOp("approve", "error")
		return nil, err
	}
	booking.Status = status
	booking.Version++

	metrics.IncBookingOp("approve", "success")
	s.publishEvent(eventType, booking, item.OwnerID)
	s.invalidateLists(ctx, booking.BookerID, item.OwnerID)

	return s.detailedView(ctx, booking, item)
}

// GetByID returns the detailed view of a booking, visible only to its
// booker or the item owner. Anyone else gets NotFound rather than
// AccessDenied so the booking's existence does not leak.
func (s *BookingService) GetByID(ctx context.Context, bookingID, callerID int64) (*dto.BookingView, error) {
	booking, err := s.getBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	item, err := s.items.GetItem(ctx, booking.ItemID)
	if err != nil {
		return nil, err
	}
	if callerID != booking.BookerID && callerID != item.OwnerID {
		return nil, apperr.NotFound("booking %d not found", bookingID)
	}

	return s.detailedView(ctx, booking, item)
}

// ListForBooker returns the booker's bookings for a state token,
// ordered start DESC with id ASC on ties. Detailed lists are served
// through the read cache.
func (s *BookingService) ListForBooker(ctx context.Context, bookerID int64, state string, detailed bool) ([]dto.BookingView, error) {
	return s.list(ctx, domain.RoleBooker, bookerID, state, detailed)
}

// ListForOwner returns bookings of the owner's items for a state token.
func (s *BookingService) ListForOwner(ctx context.Context, ownerID int64, state string, detailed bool) ([]dto.BookingView, error) {
	return s.list(ctx, domain.RoleOwner, ownerID, state, detailed)
}

func (s *BookingService) list(ctx context.Context, role domain.Role, userID int64, state string, detailed bool) ([]dto.BookingView, error) {
	fetch, err := s.registry.Resolve(role, state)
	if err != nil {
		return nil, err
	}

	exists, err := s.users.UserExists(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, apperr.NotFound("user %d not found", userID)
	}

	token := NormalizeState(state)
	if detailed && s.cache != nil {
		if views, found, err := s.cache.GetList(ctx, role, userID, token); err == nil && found {
			return views, nil
		} else if err != nil {
			s.logger.Warn().Err(err).Str("role", string(role)).Int64("user_id", userID).Msg("list cache read failed")
		}
	}

	bookings, err := fetch(ctx, userID, s.nowFn().UTC())
	if err != nil {
		return nil, err
	}

	if !detailed {
		views := make([]dto.BookingView, 0, len(bookings))
		for i := range bookings {
			views = append(views, dto.NewBookingViewShort(&bookings[i]))
		}
		return views, nil
	}

	views, err := s.detailedViews(ctx, bookings)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetList(ctx, role, userID, token, views); err != nil {
			s.logger.Warn().Err(err).Str("role", string(role)).Int64("user_id", userID).Msg("list cache write failed")
		}
	}
	return views, nil
}

// Update rewrites the interval or item of a WAITING booking. Only the
// original booker may do so, only before the booking starts, and the
// merged candidate passes the full creation validation again.
func (s *BookingService) Update(ctx context.Context, bookingID int64, patch *dto.UpdateBookingRequest, callerID int64) (*dto.BookingView, error) {
	booking, err := s.getBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.BookerID != callerID {
		return nil, apperr.AccessDenied("only the booker may change booking %d", bookingID)
	}
	if booking.Status != models.StatusWaiting {
		return nil, apperr.Validation("booking %d is already processed", bookingID)
	}
	if !booking.Start.After(s.nowFn().UTC()) {
		return nil, apperr.Validation("booking %d has already started", bookingID)
	}

	previousItemID := booking.ItemID
	merged := *booking
	if patch.ItemID != nil {
		merged.ItemID = *patch.ItemID
	}
	if patch.Start != nil {
		merged.Start = patch.Start.UTC()
	}
	if patch.End != nil {
		merged.End = patch.End.UTC()
	}

	item, err := s.items.GetItem(ctx, merged.ItemID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, apperr.NotFound("item %d not found", merged.ItemID)
		}
		return nil, err
	}
	if err := s.validateCandidate(ctx, item, callerID, merged.Start, merged.End, booking.ID); err != nil {
		metrics.IncBookingOp("update", "rejected")
		return nil, err
	}

	if err := s.store.UpdateBooking(ctx, &merged); err != nil {
		switch {
		case errors.Is(err, database.ErrTimeConflict):
			metrics.IncBookingOp("update", "conflict")
			return nil, apperr.Validation("item %d is already booked for this period", merged.ItemID)
		case errors.Is(err, database.ErrConcurrentModification):
			metrics.IncBookingOp("update", "conflict")
			return nil, apperr.Validation("booking %d is already processed", bookingID)
		}
		metrics.IncBookingOp("update", "error")
		return nil, err
	}

	metrics.IncBookingOp("update", "success")
	s.publishEvent(events.EventBookingUpdated, &merged, item.OwnerID)
	s.invalidateLists(ctx, merged.BookerID, item.OwnerID)
	if previousItemID != merged.ItemID {
		if previous, err := s.items.GetItem(ctx, previousItemID); err == nil {
			s.invalidateLists(ctx, merged.BookerID, previous.OwnerID)
		}
	}

	return s.detailedView(ctx, &merged, item)
}

// Cancel moves a WAITING booking to CANCELED. Booker action, allowed
// only before the booking starts; decided or started bookings stay put.
func (s *BookingService) Cancel(ctx context.Context, bookingID, callerID int64) (*dto.BookingView, error) {
	booking, err := s.getBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.BookerID != callerID {
		return nil, apperr.AccessDenied("only the booker may cancel booking %d", bookingID)
	}
	if booking.Status != models.StatusWaiting {
		return nil, apperr.Validation("booking %d is already processed", bookingID)
	}
	if !booking.Start.After(s.nowFn().UTC()) {
		return nil, apperr.Validation("booking %d has already started", bookingID)
	}

	err = s.store.UpdateBookingStatusWithVersion(ctx, booking.ID, booking.Version, models.StatusCanceled, false)
	if err != nil {
		if errors.Is(err, database.ErrConcurrentModification) {
			metrics.IncBookingOp("cancel", "conflict")
			return nil, apperr.Validation("booking %d is already processed", bookingID)
		}
		metrics.IncBookingOp("cancel", "error")
		return nil, err
	}
	booking.Status = models.StatusCanceled
	booking.Version++

	item, err := s.items.GetItem(ctx, booking.ItemID)
	if err != nil {
		return nil, err
	}

	metrics.IncBookingOp("cancel", "success")
	s.publishEvent(events.EventBookingCanceled, booking, item.OwnerID)
	s.invalidateLists(ctx, booking.BookerID, item.OwnerID)

	return s.detailedView(ctx, booking, item)
}

// Delete removes a booking with no lifecycle checks. Operational
// cleanup only, never part of the normal flow.
func (s *BookingService) Delete(ctx context.Context, bookingID int64) error {
	booking, err := s.getBooking(ctx, bookingID)
	if err != nil {
		return err
	}

	var ownerID int64
	if item, err := s.items.GetItem(ctx, booking.ItemID); err == nil {
		ownerID = item.OwnerID
	}

	if err := s.store.DeleteBooking(ctx, bookingID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return apperr.NotFound("booking %d not found", bookingID)
		}
		metrics.IncBookingOp("delete", "error")
		return err
	}

	metrics.IncBookingOp("delete", "success")
	s.publishEvent(events.EventBookingDeleted, booking, ownerID)
	s.invalidateLists(ctx, booking.BookerID, ownerID)
	return nil
}

// ListByDateRange feeds the export report.
func (s *BookingService) ListByDateRange(ctx context.Context, from, to time.Time) ([]models.Booking, error) {
	return s.store.ListByDateRange(ctx, from, to)
}

// validateCandidate runs the creation-style rules shared by Create and
// Update: availability, no self-booking, interval ordering, not in the
// past, inside the booking horizon, no APPROVED overlap.
func (s *BookingService) validateCandidate(ctx context.Context, item *models.Item, bookerID int64, start, end time.Time, excludeID int64) error {
	if !item.Available {
		return apperr.Validation("item %d is not available", item.ID)
	}
	if item.OwnerID == bookerID {
		return apperr.Validation("owner cannot book own item %d", item.ID)
	}
	if !start.Before(end) {
		return apperr.Validation("booking start must be before end")
	}

	now := s.nowFn().UTC()
	if end.Before(now) {
		return apperr.Validation("booking end must not be in the past")
	}
	if start.After(now.AddDate(0, 0, s.maxBookingDays)) {
		return apperr.Validation("booking start exceeds the %d-day horizon", s.maxBookingDays)
	}

	overlap, err := s.store.ExistsOverlapping(ctx, item.ID, start, end, excludeID)
	if err != nil {
		return err
	}
	if overlap {
		return apperr.Validation("item %d is already booked for this period", item.ID)
	}
	return nil
}

func (s *BookingService) getBooking(ctx context.Context, id int64) (*models.Booking, error) {
	booking, err := s.store.GetBooking(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, apperr.NotFound("booking %d not found", id)
		}
		return nil, err
	}
	return booking, nil
}

func (s *BookingService) detailedView(ctx context.Context, booking *models.Booking, item *models.Item) (*dto.BookingView, error) {
	booker, err := s.users.GetUser(ctx, booking.BookerID)
	if err != nil {
		return nil, err
	}
	view := dto.NewBookingView(booking, item, booker)
	return &view, nil
}

// detailedViews resolves items and bookers for a list, memoizing loads
// so a list over one item does not refetch it per row.
func (s *BookingService) detailedViews(ctx context.Context, bookings []models.Booking) ([]dto.BookingView, error) {
	itemsByID := make(map[int64]*models.Item)
	usersByID := make(map[int64]*models.User)

	views := make([]dto.BookingView, 0, len(bookings))
	for i := range bookings {
		b := &bookings[i]

		item, ok := itemsByID[b.ItemID]
		if !ok {
			var err error
			item, err = s.items.GetItem(ctx, b.ItemID)
			if err != nil {
				return nil, err
			}
			itemsByID[b.ItemID] = item
		}

		booker, ok := usersByID[b.BookerID]
		if !ok {
			var err error
			booker, err = s.users.GetUser(ctx, b.BookerID)
			if err != nil {
				return nil, err
			}
			usersByID[b.BookerID] = booker
		}

		views = append(views, dto.NewBookingView(b, item, booker))
	}
	return views, nil
}

func (s *BookingService) publishEvent(eventType string, booking *models.Booking, ownerID int64) {
	if s.eventBus == nil {
		return
	}

	payload := events.BookingEventPayload{
		BookingID: booking.ID,
		ItemID:    booking.ItemID,
		BookerID:  booking.BookerID,
		OwnerID:   ownerID,
		Status:    string(booking.Status),
		Start:     booking.Start,
		End:       booking.End,
	}
	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Int64("booking_id", booking.ID).Msg("publish event error")
	}
}

func (s *BookingService) invalidateLists(ctx context.Context, bookerID, ownerID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, bookerID, ownerID); err != nil {
		s.logger.Warn().Err(err).Int64("booker_id", bookerID).Int64("owner_id", ownerID).Msg("list cache invalidation failed")
	}
}
