// Package dto holds the externally visible shapes of the domain
// entities and the request payloads the service layer accepts.
package dto

import (
	"time"

	"renthub/internal/models"
)

// CreateBookingRequest is the payload for a new booking.
type CreateBookingRequest struct {
	ItemID int64     `json:"item_id"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
}

// UpdateBookingRequest is a partial patch; nil fields are left unchanged.
type UpdateBookingRequest struct {
	ItemID *int64     `json:"item_id,omitempty"`
	Start  *time.Time `json:"start,omitempty"`
	End    *time.Time `json:"end,omitempty"`
}

// ItemView is the item as exposed inside a detailed booking view.
type ItemView struct {
	ID        int64  `json:"id"`
	OwnerID   int64  `json:"owner_id"`
	Name      string `json:"name"`
	Available bool   `json:"available"`
}

// UserView is the booker as exposed inside a detailed booking view.
type UserView struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// BookingView is the external representation of a booking. The short
// form carries only the item and booker ids; the detailed form embeds
// the full item and booker views. Nested objects are omitted, never null.
type BookingView struct {
	ID       int64                `json:"id"`
	Start    time.Time            `json:"start"`
	End      time.Time            `json:"end"`
	Status   models.BookingStatus `json:"status"`
	ItemID   int64                `json:"item_id"`
	BookerID int64                `json:"booker_id"`
	Item     *ItemView            `json:"item,omitempty"`
	Booker   *UserView            `json:"booker,omitempty"`
}

// NewItemView maps an item to its view.
func NewItemView(item *models.Item) *ItemView {
	if item == nil {
		return nil
	}
	return &ItemView{
		ID:        item.ID,
		OwnerID:   item.OwnerID,
		Name:      item.Name,
		Available: item.Available,
	}
}

// NewUserView maps a user to its view.
func NewUserView(user *models.User) *UserView {
	if user == nil {
		return nil
	}
	return &UserView{ID: user.ID, Name: user.Name, Email: user.Email}
}

// NewBookingView builds the detailed form. A nil item or booker is
// simply omitted from the result.
func NewBookingView(b *models.Booking, item *models.Item, booker *models.User) BookingView {
	view := NewBookingViewShort(b)
	view.Item = NewItemView(item)
	view.Booker = NewUserView(booker)
	return view
}

// NewBookingViewShort builds the short form: interval, status and ids only.
func NewBookingViewShort(b *models.Booking) BookingView {
	return BookingView{
		ID:       b.ID,
		Start:    b.Start,
		End:      b.End,
		Status:   b.Status,
		ItemID:   b.ItemID,
		BookerID: b.BookerID,
	}
}
