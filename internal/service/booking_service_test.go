package service

import (
	"context"
	"os"
	"testing"
	"time"

	"renthub/internal/apperr"
	"renthub/internal/database"
	"renthub/internal/dto"
	"renthub/internal/events"
	"renthub/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockBookingStore struct {
	mock.Mock
}

func (m *mockBookingStore) CreateBooking(ctx context.Context, b *models.Booking) error {
	return m.Called(ctx, b).Error(0)
}
func (m *mockBookingStore) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}
func (m *mockBookingStore) UpdateBooking(ctx context.Context, b *models.Booking) error {
	return m.Called(ctx, b).Error(0)
}
func (m *mockBookingStore) UpdateBookingStatusWithVersion(ctx context.Context, id, v int64, s models.BookingStatus, recheck bool) error {
	return m.Called(ctx, id, v, s, recheck).Error(0)
}
func (m *mockBookingStore) DeleteBooking(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}
func (m *mockBookingStore) ExistsOverlapping(ctx context.Context, itemID int64, start, end time.Time, excludeID int64) (bool, error) {
	args := m.Called(ctx, itemID, start, end, excludeID)
	return args.Bool(0), args.Error(1)
}

func (m *mockBookingStore) bookingsCall(args mock.Arguments) ([]models.Booking, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Booking), args.Error(1)
}

func (m *mockBookingStore) ListByBooker(ctx context.Context, id int64) ([]models.Booking, error) {
	return m.bookingsCall(m.Called(ctx, id))
}
func (m *mockBookingStore) ListByBookerAndStatus(ctx context.Context, id int64, s models.BookingStatus) ([]models.Booking, error) {
	return m.bookingsCall(m.Called(ctx, id, s))
}
func (m *mockBookingStore) ListByBookerCurrent(ctx context.Context, id int64, now time.Time) ([]models.Booking, error) {
	return m.bookingsCall(m.Called(ctx, id, now))
}
func (m *mockBookingStore) ListByBookerPast(ctx context.Context, id int64, now time.Time) ([]models.Booking, error) {
	return m.bookingsCall(m.Called(ctx, id, now))
}
func (m *mockBookingStore) ListByBookerFuture(ctx context.Context, id int64, now time.Time) ([]models.Booking, error) {
	return m.bookingsCall(m.Called(ctx, id, now))
}
func (m *mockBookingStore) ListByOwner(ctx context.Context, id int64) ([]models.Booking, error) {
	return m.bookingsCall(m.Called(ctx, id))
}
func (m *mockBookingStore) ListByOwnerAndStatus(ctx context.Context, id int64, s models.BookingStatus) ([]models.Booking, error) {
	return m.bookingsCall(m.Called(ctx, id, s))
}
func (m *mockBookingStore) ListByOwnerCurrent(ctx context.Context, id int64, now time.Time) ([]models.Booking, error) {
	return m.bookingsCall(m.Called(ctx, id, now))
}
func (m *mockBookingStore) ListByOwnerPast(ctx context.Context, id int64, now time.Time) ([]models.Booking, error) {
	return m.bookingsCall(m.Called(ctx, id, now))
}
func (m *mockBookingStore) ListByOwnerFuture(ctx context.Context, id int64, now time.Time) ([]models.Booking, error) {
	return m.bookingsCall(m.Called(ctx, id, now))
}
func (m *mockBookingStore) ListByDateRange(ctx context.Context, from, to time.Time) ([]models.Booking, error) {
	return m.bookingsCall(m.Called(ctx, from, to))
}

type mockItemStore struct {
	mock.Mock
}

func (m *mockItemStore) CreateItem(ctx context.Context, i *models.Item) error {
	return m.Called(ctx, i).Error(0)
}
func (m *mockItemStore) GetItem(ctx context.Context, id int64) (*models.Item, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Item), args.Error(1)
}
func (m *mockItemStore) UpdateItem(ctx context.Context, i *models.Item) error {
	return m.Called(ctx, i).Error(0)
}
func (m *mockItemStore) ListItemsByOwner(ctx context.Context, ownerID int64) ([]models.Item, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Item), args.Error(1)
}

type mockUserStore struct {
	mock.Mock
}

func (m *mockUserStore) CreateUser(ctx context.Context, u *models.User) error {
	return m.Called(ctx, u).Error(0)
}
func (m *mockUserStore) GetUser(ctx context.Context, id int64) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}
func (m *mockUserStore) UserExists(ctx context.Context, id int64) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}
func (m *mockUserStore) ListUsers(ctx context.Context) ([]models.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.User), args.Error(1)
}

var testNow = time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

const (
	ownerID  = int64(1)
	bookerID = int64(2)
	otherID  = int64(3)
	itemID   = int64(10)
)

func testItem() *models.Item {
	return &models.Item{ID: itemID, OwnerID: ownerID, Name: "Drill", Available: true}
}

func testBooker() *models.User {
	return &models.User{ID: bookerID, Name: "Booker", Email: "booker@example.com"}
}

func waitingBooking() *models.Booking {
	return &models.Booking{
		ID:       100,
		ItemID:   itemID,
		BookerID: bookerID,
		Start:    testNow.Add(24 * time.Hour),
		End:      testNow.Add(48 * time.Hour),
		Status:   models.StatusWaiting,
		Version:  1,
	}
}

func newTestService(t *testing.T) (*BookingService, *mockBookingStore, *mockItemStore, *mockUserStore) {
	t.Helper()
	store := new(mockBookingStore)
	items := new(mockItemStore)
	users := new(mockUserStore)
	logger := zerolog.New(os.Stdout)

	svc := NewBookingService(store, items, users, NewStateRegistry(store), nil, events.NewEventBus(), 365, &logger)
	svc.nowFn = func() time.Time { return testNow }
	return svc, store, items, users
}

func validCreateReq() *dto.CreateBookingRequest {
	return &dto.CreateBookingRequest{
		ItemID: itemID,
		Start:  testNow.Add(24 * time.Hour),
		End:    testNow.Add(48 * time.Hour),
	}
}

func TestCreateHappyPath(t *testing.T) {
	svc, store, items, users := newTestService(t)
	ctx := context.Background()

	users.On("GetUser", ctx, bookerID).Return(testBooker(), nil)
	items.On("GetItem", ctx, itemID).Return(testItem(), nil)
	store.On("ExistsOverlapping", ctx, itemID, mock.Anything, mock.Anything, int64(0)).Return(false, nil)
	store.On("CreateBooking", ctx, mock.Anything).Run(func(args mock.Arguments) {
		b := args.Get(1).(*models.Booking)
		b.ID = 100
		b.Version = 1
	}).Return(nil)

	view, err := svc.Create(ctx, validCreateReq(), bookerID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), view.ID)
	assert.Equal(t, models.StatusWaiting, view.Status)
	require.NotNil(t, view.Item)
	assert.Equal(t, itemID, view.Item.ID)
	require.NotNil(t, view.Booker)
	assert.Equal(t, bookerID, view.Booker.ID)
	store.AssertExpectations(t)
}

func TestCreateUnknownBooker(t *testing.T) {
	svc, _, _, users := newTestService(t)
	ctx := context.Background()

	users.On("GetUser", ctx, bookerID).Return(nil, database.ErrNotFound)

	_, err := svc.Create(ctx, validCreateReq(), bookerID)
	assert.True(t, apperr.IsNotFound(err))
}

func TestCreateUnknownItem(t *testing.T) {
	svc, _, items, users := newTestService(t)
	ctx := context.Background()

	users.On("GetUser", ctx, bookerID).Return(testBooker(), nil)
	items.On("GetItem", ctx, itemID).Return(nil, database.ErrNotFound)

	_, err := svc.Create(ctx, validCreateReq(), bookerID)
	assert.True(t, apperr.IsNotFound(err))
}

func TestCreateUnavailableItem(t *testing.T) {
	svc, _, items, users := newTestService(t)
	ctx := context.Background()

	item := testItem()
	item.Available = false
	users.On("GetUser", ctx, bookerID).Return(testBooker(), nil)
	items.On("GetItem", ctx, itemID).Return(item, nil)

	_, err := svc.Create(ctx, validCreateReq(), bookerID)
	assert.True(t, apperr.IsValidation(err))
}

func TestCreateSelfBooking(t *testing.T) {
	svc, _, items, users := newTestService(t)
	ctx := context.Background()

	users.On("GetUser", ctx, ownerID).Return(&models.User{ID: ownerID, Name: "Owner"}, nil)
	items.On("GetItem", ctx, itemID).Return(testItem(), nil)

	_, err := svc.Create(ctx, validCreateReq(), ownerID)
	assert.True(t, apperr.IsValidation(err))
}

func TestCreateBadInterval(t *testing.T) {
	svc, _, items, users := newTestService(t)
	ctx := context.Background()

	users.On("GetUser", ctx, bookerID).Return(testBooker(), nil)
	items.On("GetItem", ctx, itemID).Return(testItem(), nil)

	req := validCreateReq()
	req.End = req.Start
	_, err := svc.Create(ctx, req, bookerID)
	assert.True(t, apperr.IsValidation(err))

	req = validCreateReq()
	req.Start, req.End = req.End, req.Start
	_, err = svc.Create(ctx, req, bookerID)
	assert.True(t, apperr.IsValidation(err))
}

func TestCreateEndInThePast(t *testing.T) {
	svc, _, items, users := newTestService(t)
	ctx := context.Background()

	users.On("GetUser", ctx, bookerID).Return(testBooker(), nil)
	items.On("GetItem", ctx, itemID).Return(testItem(), nil)

	req := validCreateReq()
	req.Start = testNow.Add(-48 * time.Hour)
	req.End = testNow.Add(-24 * time.Hour)
	_, err := svc.Create(ctx, req, bookerID)
	assert.True(t, apperr.IsValidation(err))
}

func TestCreateBeyondHorizon(t *testing.T) {
	svc, _, items, users := newTestService(t)
	ctx := context.Background()

	users.On("GetUser", ctx, bookerID).Return(testBooker(), nil)
	items.On("GetItem", ctx, itemID).Return(testItem(), nil)

	req := validCreateReq()
	req.Start = testNow.AddDate(0, 0, 400)
	req.End = req.Start.Add(24 * time.Hour)
	_, err := svc.Create(ctx, req, bookerID)
	assert.True(t, apperr.IsValidation(err))
}

func TestCreateOverlapWithApproved(t *testing.T) {
	svc, store, items, users := newTestService(t)
	ctx := context.Background()

	users.On("GetUser", ctx, bookerID).Return(testBooker(), nil)
	items.On("GetItem", ctx, itemID).Return(testItem(), nil)
	store.On("ExistsOverlapping", ctx, itemID, mock.Anything, mock.Anything, int64(0)).Return(true, nil)

	_, err := svc.Create(ctx, validCreateReq(), bookerID)
	assert.True(t, apperr.IsValidation(err))
	store.AssertNotCalled(t, "CreateBooking", mock.Anything, mock.Anything)
}

func TestCreateLosesRaceInStore(t *testing.T) {
	svc, store, items, users := newTestService(t)
	ctx := context.Background()

	users.On("GetUser", ctx, bookerID).Return(testBooker(), nil)
	items.On("GetItem", ctx, itemID).Return(testItem(), nil)
	store.On("ExistsOverlapping", ctx, itemID, mock.Anything, mock.Anything, int64(0)).Return(false, nil)
	store.On("CreateBooking", ctx, mock.Anything).Return(database.ErrTimeConflict)

	_, err := svc.Create(ctx, validCreateReq(), bookerID)
	assert.True(t, apperr.IsValidation(err))
}

func TestApproveHappyPath(t *testing.T) {
	svc, store, items, users := newTestService(t)
	ctx := context.Background()

	booking := waitingBooking()
	store.On("GetBooking", ctx, booking.ID).Return(booking, nil)
	items.On("GetItem", ctx, itemID).Return(testItem(), nil)
	users.On("GetUser", ctx, bookerID).Return(testBooker(), nil)
	store.On("UpdateBookingStatusWithVersion", ctx, booking.ID, int64(1), models.StatusApproved, true).Return(nil)

	view, err := svc.Approve(ctx, booking.ID, ownerID, true)
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, view.Status)
	store.AssertExpectations(t)
}

func TestReject(t *testing.T) {
	svc, store, items, users := newTestService(t)
	ctx := context.Background()

	booking := waitingBooking()
	store.On("GetBooking", ctx, booking.ID).Return(booking, nil)
	items.On("GetItem", ctx, itemID).Return(testItem(), nil)
	users.On("GetUser", ctx, bookerID).Return(testBooker(), nil)
	store.On("UpdateBookingStatusWithVersion", ctx, booking.ID, int64(1), models.StatusRejected, true).Return(nil)

	view, err := svc.Approve(ctx, booking.ID, ownerID, false)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, view.Status)
}

func TestApproveByNonOwner(t *testing.T) {
	svc, store, items, _ := newTestService(t)
	ctx := context.Background()

	booking := waitingBooking()
	store.On("GetBooking", ctx, booking.ID).Return(booking, nil)
	items.On("GetItem", ctx, itemID).Return(testItem(), nil)

	_, err := svc.Approve(ctx, booking.ID, otherID, true)
	assert.True(t, apperr.IsAccessDenied(err))
	store.AssertNotCalled(t, "UpdateBookingStatusWithVersion", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestApproveAlreadyProcessed(t *testing.T) {
	svc, store, items, _ := newTestService(t)
	ctx := context.Background()

	booking := waitingBooking()
	booking.Status = models.StatusApproved
	store.On("GetBooking", ctx, booking.ID).Return(booking, nil)
	items.On("GetItem", ctx, itemID).Return(testItem(), nil)

	_, err := svc.Approve(ctx, booking.ID, ownerID, false)
	assert.True(t, apperr.IsValidation(err))
}

func TestApproveLosesOverlapRecheck(t *testing.T) {
	svc, store, items, _ := newTestService(t)
	ctx := context.Background()

	booking := waitingBooking()
	store.On("GetBooking", ctx, booking.ID).Return(booking, nil)
	items.On("GetItem", ctx, itemID).Return(testItem(), nil)
	store.On("UpdateBookingStatusWithVersion", ctx, booking.ID, int64(1), models.StatusApproved, true).Return(database.ErrTimeConflict)

	_, err := svc.Approve(ctx, booking.ID, ownerID, true)
	assert.True(t, apperr.IsValidation(err))
}

func TestApproveConcurrentDecision(t *testing.T) {
	svc, store, items, _ := newTestService(t)
	ctx := context.Background()

	booking := waitingBooking()
	store.On("GetBooking", ctx, booking.ID).Return(booking, nil)
	items.On("GetItem", ctx, itemID).Return(testItem(), nil)
	store.On("UpdateBookingStatusWithVersion", ctx, booking.ID, int64(1), models.StatusApproved, true).Return(database.ErrConcurrentModification)

	_, err := svc.Approve(ctx, booking.ID, ownerID, true)
	assert.True(t, apperr.IsValidation(err))
}

func TestGetByIDVisibility(t *testing.T) {
	svc, store, items, users := newTestService(t)
	ctx := context.Background()

	booking := waitingBooking()
	store.On("GetBooking", ctx, booking.ID).Return(booking, nil)
	items.On("GetItem", ctx, itemID).Return(testItem(), nil)
	users.On("GetUser", ctx, bookerID).Return(testBooker(), nil)

	// Booker sees it.
	view, err := svc.GetByID(ctx, booking.ID, bookerID)
	require.NoError(t, err)
	assert.Equal(t, booking.ID, view.ID)

	// Owner sees it.
	_, err = svc.GetByID(ctx, booking.ID, ownerID)
	require.NoError(t, err)

	// A third party gets NotFound, not AccessDenied.
	_, err = svc.GetByID(ctx, booking.ID, otherID)
	assert.True(t, apperr.IsNotFound(err))
}

func TestGetByIDMissing(t *testing.T) {
	svc, store, _, _ := newTestService(t)
	ctx := context.Background()

	store.On("GetBooking", ctx, int64(999)).Return(nil, database.ErrNotFound)

	_, err := svc.GetByID(ctx, 999, bookerID)
	assert.True(t, apperr.IsNotFound(err))
}

func TestListForBookerUnknownState(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	_, err := svc.ListForBooker(context.Background(), bookerID, "SOMEDAY", false)
	require.True(t, apperr.IsValidation(err))
	assert.Contains(t, err.Error(), "SOMEDAY")
}

func TestListForBookerUnknownUser(t *testing.T) {
	svc, _, _, users := newTestService(t)
	ctx := context.Background()

	users.On("UserExists", ctx, bookerID).Return(false, nil)

	_, err := svc.ListForBooker(ctx, bookerID, "ALL", false)
	assert.True(t, apperr.IsNotFound(err))
}

func TestListForBookerShort(t *testing.T) {
	svc, store, _, users := newTestService(t)
	ctx := context.Background()

	booking := waitingBooking()
	users.On("UserExists", ctx, bookerID).Return(true, nil)
	store.On("ListByBooker", ctx, bookerID).Return([]models.Booking{*booking}, nil)

	views, err := svc.ListForBooker(ctx, bookerID, "all", false)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, booking.ID, views[0].ID)
	assert.Nil(t, views[0].Item)
	assert.Nil(t, views[0].Booker)
}

func TestListForBookerDetailed(t *testing.T) {
	svc, store, items, users := newTestService(t)
	ctx := context.Background()

	booking := waitingBooking()
	users.On("UserExists", ctx, bookerID).Return(true, nil)
	users.On("GetUser", ctx, bookerID).Return(testBooker(), nil)
	items.On("GetItem", ctx, itemID).Return(testItem(), nil)
	store.On("ListByBookerAndStatus", ctx, bookerID, models.StatusWaiting).Return([]models.Booking{*booking}, nil)

	views, err := svc.ListForBooker(ctx, bookerID, "waiting", true)
	require.NoError(t, err)
	require.Len(t, views, 1)
	require.NotNil(t, views[0].Item)
	assert.Equal(t, "Drill", views[0].Item.Name)
	require.NotNil(t, views[0].Booker)
}

func TestListForOwnerDelegatesToOwnerFamily(t *testing.T) {
	svc, store, _, users := newTestService(t)
	ctx := context.Background()

	users.On("UserExists", ctx, ownerID).Return(true, nil)
	store.On("ListByOwnerFuture", ctx, ownerID, testNow).Return([]models.Booking{}, nil)

	views, err := svc.ListForOwner(ctx, ownerID, "FUTURE", false)
	require.NoError(t, err)
	assert.Empty(t, views)
	store.AssertCalled(t, "ListByOwnerFuture", ctx, ownerID, testNow)
}

func TestUpdateHappyPath(t *testing.T) {
	svc, store, items, users := newTestService(t)
	ctx := context.Background()

	booking := waitingBooking()
	newStart := testNow.Add(72 * time.Hour)
	newEnd := testNow.Add(96 * time.Hour)

	store.On("GetBooking", ctx, booking.ID).Return(booking, nil)
	items.On("GetItem", ctx, itemID).Return(testItem(), nil)
	users.On("GetUser", ctx, bookerID).Return(testBooker(), nil)
	store.On("ExistsOverlapping", ctx, itemID, newStart, newEnd, booking.ID).Return(false, nil)
	store.On("UpdateBooking", ctx, mock.Anything).Return(nil)

	view, err := svc.Update(ctx, booking.ID, &dto.UpdateBookingRequest{Start: &newStart, End: &newEnd}, bookerID)
	require.NoError(t, err)
	assert.True(t, view.Start.Equal(newStart))
	assert.True(t, view.End.Equal(newEnd))
	store.AssertExpectations(t)
}

func TestUpdateByNonBooker(t *testing.T) {
	svc, store, _, _ := newTestService(t)
	ctx := context.Background()

	booking := waitingBooking()
	store.On("GetBooking", ctx, booking.ID).Return(booking, nil)

	newStart := testNow.Add(72 * time.Hour)
	_, err := svc.Update(ctx, booking.ID, &dto.UpdateBookingRequest{Start: &newStart}, otherID)
	assert.True(t, apperr.IsAccessDenied(err))
}

func TestUpdateAfterDecision(t *testing.T) {
	svc, store, _, _ := newTestService(t)
	ctx := context.Background()

	booking := waitingBooking()
	booking.Status = models.StatusApproved
	store.On("GetBooking", ctx, booking.ID).Return(booking, nil)

	newStart := testNow.Add(72 * time.Hour)
	_, err := svc.Update(ctx, booking.ID, &dto.UpdateBookingRequest{Start: &newStart}, bookerID)
	assert.True(t, apperr.IsValidation(err))
}

func TestUpdateAfterStart(t *testing.T) {
	svc, store, _, _ := newTestService(t)
	ctx := context.Background()

	booking := waitingBooking()
	booking.Start = testNow.Add(-time.Hour)
	store.On("GetBooking", ctx, booking.ID).Return(booking, nil)

	newEnd := testNow.Add(72 * time.Hour)
	_, err := svc.Update(ctx, booking.ID, &dto.UpdateBookingRequest{End: &newEnd}, bookerID)
	assert.True(t, apperr.IsValidation(err))
}

func TestUpdateRevalidatesOverlap(t *testing.T) {
	svc, store, items, _ := newTestService(t)
	ctx := context.Background()

	booking := waitingBooking()
	newStart := testNow.Add(72 * time.Hour)
	newEnd := testNow.Add(96 * time.Hour)

	store.On("GetBooking", ctx, booking.ID).Return(booking, nil)
	items.On("GetItem", ctx, itemID).Return(testItem(), nil)
	store.On("ExistsOverlapping", ctx, itemID, newStart, newEnd, booking.ID).Return(true, nil)

	_, err := svc.Update(ctx, booking.ID, &dto.UpdateBookingRequest{Start: &newStart, End: &newEnd}, bookerID)
	assert.True(t, apperr.IsValidation(err))
	store.AssertNotCalled(t, "UpdateBooking", mock.Anything, mock.Anything)
}

func TestUpdateReassignsItem(t *testing.T) {
	svc, store, items, users := newTestService(t)
	ctx := context.Background()

	booking := waitingBooking()
	newItemID := int64(11)
	newItem := &models.Item{ID: newItemID, OwnerID: otherID, Name: "Saw", Available: true}

	store.On("GetBooking", ctx, booking.ID).Return(booking, nil)
	items.On("GetItem", ctx, newItemID).Return(newItem, nil)
	items.On("GetItem", ctx, itemID).Return(testItem(), nil)
	users.On("GetUser", ctx, bookerID).Return(testBooker(), nil)
	store.On("ExistsOverlapping", ctx, newItemID, booking.Start, booking.End, booking.ID).Return(false, nil)
	store.On("UpdateBooking", ctx, mock.Anything).Return(nil)

	view, err := svc.Update(ctx, booking.ID, &dto.UpdateBookingRequest{ItemID: &newItemID}, bookerID)
	require.NoError(t, err)
	assert.Equal(t, newItemID, view.ItemID)
	require.NotNil(t, view.Item)
	assert.Equal(t, "Saw", view.Item.Name)
}

func TestCancelHappyPath(t *testing.T) {
	svc, store, items, users := newTestService(t)
	ctx := context.Background()

	booking := waitingBooking()
	store.On("GetBooking", ctx, booking.ID).Return(booking, nil)
	items.On("GetItem", ctx, itemID).Return(testItem(), nil)
	users.On("GetUser", ctx, bookerID).Return(testBooker(), nil)
	store.On("UpdateBookingStatusWithVersion", ctx, booking.ID, int64(1), models.StatusCanceled, false).Return(nil)

	view, err := svc.Cancel(ctx, booking.ID, bookerID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCanceled, view.Status)
}

func TestCancelByNonBooker(t *testing.T) {
	svc, store, _, _ := newTestService(t)
	ctx := context.Background()

	booking := waitingBooking()
	store.On("GetBooking", ctx, booking.ID).Return(booking, nil)

	_, err := svc.Cancel(ctx, booking.ID, otherID)
	assert.True(t, apperr.IsAccessDenied(err))
}

func TestCancelApprovedBooking(t *testing.T) {
	svc, store, _, _ := newTestService(t)
	ctx := context.Background()

	booking := waitingBooking()
	booking.Status = models.StatusApproved
	store.On("GetBooking", ctx, booking.ID).Return(booking, nil)

	_, err := svc.Cancel(ctx, booking.ID, bookerID)
	assert.True(t, apperr.IsValidation(err))
}

func TestCancelAfterStart(t *testing.T) {
	svc, store, _, _ := newTestService(t)
	ctx := context.Background()

	booking := waitingBooking()
	booking.Start = testNow.Add(-time.Hour)
	store.On("GetBooking", ctx, booking.ID).Return(booking, nil)

	_, err := svc.Cancel(ctx, booking.ID, bookerID)
	assert.True(t, apperr.IsValidation(err))
}

func TestCancelTwice(t *testing.T) {
	svc, store, _, _ := newTestService(t)
	ctx := context.Background()

	booking := waitingBooking()
	booking.Status = models.StatusCanceled
	store.On("GetBooking", ctx, booking.ID).Return(booking, nil)

	_, err := svc.Cancel(ctx, booking.ID, bookerID)
	assert.True(t, apperr.IsValidation(err))
}

func TestDeleteBypassesLifecycle(t *testing.T) {
	svc, store, items, _ := newTestService(t)
	ctx := context.Background()

	booking := waitingBooking()
	booking.Status = models.StatusApproved
	store.On("GetBooking", ctx, booking.ID).Return(booking, nil)
	items.On("GetItem", ctx, itemID).Return(testItem(), nil)
	store.On("DeleteBooking", ctx, booking.ID).Return(nil)

	assert.NoError(t, svc.Delete(ctx, booking.ID))
	store.AssertCalled(t, "DeleteBooking", ctx, booking.ID)
}

func TestDeleteMissing(t *testing.T) {
	svc, store, _, _ := newTestService(t)
	ctx := context.Background()

	store.On("GetBooking", ctx, int64(999)).Return(nil, database.ErrNotFound)

	err := svc.Delete(ctx, 999)
	assert.True(t, apperr.IsNotFound(err))
}

func TestCreatePublishesEvent(t *testing.T) {
	svc, store, items, users := newTestService(t)
	ctx := context.Background()

	bus := events.NewEventBus()
	svc.eventBus = bus
	published := 0
	bus.Subscribe(events.EventBookingCreated, func(*events.Event) error {
		published++
		return nil
	})

	users.On("GetUser", ctx, bookerID).Return(testBooker(), nil)
	items.On("GetItem", ctx, itemID).Return(testItem(), nil)
	store.On("ExistsOverlapping", ctx, itemID, mock.Anything, mock.Anything, int64(0)).Return(false, nil)
	store.On("CreateBooking", ctx, mock.Anything).Return(nil)

	_, err := svc.Create(ctx, validCreateReq(), bookerID)
	require.NoError(t, err)
	assert.Equal(t, 1, published)
}
