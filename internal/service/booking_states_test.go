package service

import (
	"context"
	"os"
	"testing"
	"time"

	"renthub/internal/apperr"
	"renthub/internal/database"
	"renthub/internal/domain"
	"renthub/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveKnownTokens(t *testing.T) {
	registry := NewStateRegistry(new(mockBookingStore))

	for _, role := range []domain.Role{domain.RoleBooker, domain.RoleOwner} {
		for _, token := range []string{"ALL", "CURRENT", "FUTURE", "PAST", "WAITING", "APPROVED", "REJECTED"} {
			fetch, err := registry.Resolve(role, token)
			require.NoError(t, err, "role %s token %s", role, token)
			assert.NotNil(t, fetch)
		}
	}
}

func TestResolveIsCaseInsensitive(t *testing.T) {
	registry := NewStateRegistry(new(mockBookingStore))

	for _, token := range []string{"waiting", "Waiting", "  WAITING  ", "wAiTiNg"} {
		_, err := registry.Resolve(domain.RoleBooker, token)
		assert.NoError(t, err, "token %q", token)
	}
}

func TestResolveEmptyMeansAll(t *testing.T) {
	store := new(mockBookingStore)
	registry := NewStateRegistry(store)

	ctx := context.Background()
	store.On("ListByBooker", ctx, int64(5)).Return([]models.Booking{}, nil)

	fetch, err := registry.Resolve(domain.RoleBooker, "")
	require.NoError(t, err)
	_, err = fetch(ctx, 5, time.Now())
	require.NoError(t, err)
	store.AssertCalled(t, "ListByBooker", ctx, int64(5))
}

func TestResolveUnknownToken(t *testing.T) {
	registry := NewStateRegistry(new(mockBookingStore))

	_, err := registry.Resolve(domain.RoleBooker, "SOMEDAY")
	require.Error(t, err)
	assert.True(t, apperr.IsValidation(err))
	assert.Contains(t, err.Error(), "SOMEDAY")
}

func TestNormalizeState(t *testing.T) {
	assert.Equal(t, "ALL", NormalizeState(""))
	assert.Equal(t, "ALL", NormalizeState("all"))
	assert.Equal(t, "WAITING", NormalizeState(" waiting "))
	assert.Equal(t, "SOMEDAY", NormalizeState("someday"))
}

// Against a real store: every booking lands in exactly one of
// CURRENT/PAST/FUTURE, and the union equals ALL.
func TestTimeWindowPartition(t *testing.T) {
	logger := zerolog.New(os.Stdout)
	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	owner := &models.User{Name: "Owner", Email: "owner@example.com"}
	require.NoError(t, db.CreateUser(ctx, owner))
	booker := &models.User{Name: "Booker", Email: "booker@example.com"}
	require.NoError(t, db.CreateUser(ctx, booker))
	item := &models.Item{OwnerID: owner.ID, Name: "Drill", Available: true}
	require.NoError(t, db.CreateItem(ctx, item))

	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	intervals := []struct{ start, end time.Time }{
		{now.Add(-72 * time.Hour), now.Add(-48 * time.Hour)},
		{now.Add(-24 * time.Hour), now.Add(-time.Second)},
		{now.Add(-time.Hour), now.Add(time.Hour)},
		{now, now.Add(time.Hour)},
		{now.Add(time.Second), now.Add(time.Hour)},
		{now.Add(48 * time.Hour), now.Add(72 * time.Hour)},
	}
	for _, iv := range intervals {
		b := &models.Booking{ItemID: item.ID, BookerID: booker.ID, Start: iv.start, End: iv.end, Status: models.StatusWaiting}
		require.NoError(t, db.CreateBooking(ctx, b))
	}

	registry := NewStateRegistry(db)

	fetchAll, err := registry.Resolve(domain.RoleBooker, "ALL")
	require.NoError(t, err)
	all, err := fetchAll(ctx, booker.ID, now)
	require.NoError(t, err)

	counts := make(map[int64]int)
	for _, token := range []string{"CURRENT", "PAST", "FUTURE"} {
		fetch, err := registry.Resolve(domain.RoleBooker, token)
		require.NoError(t, err)
		list, err := fetch(ctx, booker.ID, now)
		require.NoError(t, err)
		for _, b := range list {
			counts[b.ID]++
		}
	}

	require.Len(t, counts, len(all))
	for id, n := range counts {
		assert.Equal(t, 1, n, "booking %d in %d buckets", id, n)
	}
}
