package domain

import (
	"context"
	"time"

	"renthub/internal/dto"
	"renthub/internal/models"
)

// Role scopes a booking list to the requesting side.
type Role string

const (
	RoleBooker Role = "booker"
	RoleOwner  Role = "owner"
)

// BookingStore is the persistence contract of the booking subsystem.
// Mutating operations run their precondition checks and the write in a
// single transaction; list results are ordered start DESC, id ASC.
type BookingStore interface {
	CreateBooking(ctx context.Context, booking *models.Booking) error
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	UpdateBooking(ctx context.Context, booking *models.Booking) error
	UpdateBookingStatusWithVersion(ctx context.Context, id, fromVersion int64, status models.BookingStatus, recheckOverlap bool) error
	DeleteBooking(ctx context.Context, id int64) error
	ExistsOverlapping(ctx context.Context, itemID int64, start, end time.Time, excludeID int64) (bool, error)

	ListByBooker(ctx context.Context, bookerID int64) ([]models.Booking, error)
	ListByBookerAndStatus(ctx context.Context, bookerID int64, status models.BookingStatus) ([]models.Booking, error)
	ListByBookerCurrent(ctx context.Context, bookerID int64, now time.Time) ([]models.Booking, error)
	ListByBookerPast(ctx context.Context, bookerID int64, now time.Time) ([]models.Booking, error)
	ListByBookerFuture(ctx context.Context, bookerID int64, now time.Time) ([]models.Booking, error)

	ListByOwner(ctx context.Context, ownerID int64) ([]models.Booking, error)
	ListByOwnerAndStatus(ctx context.Context, ownerID int64, status models.BookingStatus) ([]models.Booking, error)
	ListByOwnerCurrent(ctx context.Context, ownerID int64, now time.Time) ([]models.Booking, error)
	ListByOwnerPast(ctx context.Context, ownerID int64, now time.Time) ([]models.Booking, error)
	ListByOwnerFuture(ctx context.Context, ownerID int64, now time.Time) ([]models.Booking, error)

	ListByDateRange(ctx context.Context, from, to time.Time) ([]models.Booking, error)
}

// ItemStore is the read/write contract for the item catalog.
type ItemStore interface {
	CreateItem(ctx context.Context, item *models.Item) error
	GetItem(ctx context.Context, id int64) (*models.Item, error)
	UpdateItem(ctx context.Context, item *models.Item) error
	ListItemsByOwner(ctx context.Context, ownerID int64) ([]models.Item, error)
}

// UserStore is the read/write contract for user accounts.
type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id int64) (*models.User, error)
	UserExists(ctx context.Context, id int64) (bool, error)
	ListUsers(ctx context.Context) ([]models.User, error)
}

// ListCache caches classifier list results per (role, user, state).
// Misses are reported with found=false, never as an error.
type ListCache interface {
	GetList(ctx context.Context, role Role, userID int64, state string) ([]dto.BookingView, bool, error)
	SetList(ctx context.Context, role Role, userID int64, state string, views []dto.BookingView) error
	Invalidate(ctx context.Context, bookerID, ownerID int64) error
}

// EventPublisher publishes a JSON-serializable payload under an event type.
type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// BookingService orchestrates the booking lifecycle. It is the sole
// mutator of booking status.
type BookingService interface {
	Create(ctx context.Context, req *dto.CreateBookingRequest, bookerID int64) (*dto.BookingView, error)
	Approve(ctx context.Context, bookingID, ownerID int64, approved bool) (*dto.BookingView, error)
	GetByID(ctx context.Context, bookingID, callerID int64) (*dto.BookingView, error)
	ListForBooker(ctx context.Context, bookerID int64, state string, detailed bool) ([]dto.BookingView, error)
	ListForOwner(ctx context.Context, ownerID int64, state string, detailed bool) ([]dto.BookingView, error)
	Update(ctx context.Context, bookingID int64, patch *dto.UpdateBookingRequest, callerID int64) (*dto.BookingView, error)
	Cancel(ctx context.Context, bookingID, callerID int64) (*dto.BookingView, error)
	Delete(ctx context.Context, bookingID int64) error
	ListByDateRange(ctx context.Context, from, to time.Time) ([]models.Booking, error)
}

// ItemService manages the item catalog.
type ItemService interface {
	Create(ctx context.Context, item *models.Item, ownerID int64) (*models.Item, error)
	GetByID(ctx context.Context, id int64) (*models.Item, error)
	Update(ctx context.Context, item *models.Item, callerID int64) (*models.Item, error)
	ListByOwner(ctx context.Context, ownerID int64) ([]models.Item, error)
}

// UserService manages user accounts.
type UserService interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
	List(ctx context.Context) ([]models.User, error)
}
