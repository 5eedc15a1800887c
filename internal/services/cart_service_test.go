package services

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/models"
)

func TestCartService_GetOrCreateIsLazy(t *testing.T) {
	db := newTestDB(t)
	svc := NewCartService(db)
	user := userByEmail(t, db, "user@example.com")
	ctx := context.Background()

	cart, err := svc.GetOrCreate(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.ID, cart.UserID)
	assert.Empty(t, cart.Items)

	again, err := svc.GetOrCreate(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, cart.ID, again.ID)
}

func TestCartService_AddItemIncrementsExistingLine(t *testing.T) {
	db := newTestDB(t)
	svc := NewCartService(db)
	user := userByEmail(t, db, "user@example.com")
	ctx := context.Background()

	item, err := svc.AddItem(ctx, user.ID, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, item.Quantity)
	assert.NotEmpty(t, item.Title)

	item, err = svc.AddItem(ctx, user.ID, 1, 3)
	require.NoError(t, err)
	assert.Equal(t, 4, item.Quantity)

	cart, err := svc.GetOrCreate(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 4, cart.Items[0].Quantity)
}

func TestCartService_AddItemUnknownProduct(t *testing.T) {
	db := newTestDB(t)
	svc := NewCartService(db)
	user := userByEmail(t, db, "user@example.com")

	_, err := svc.AddItem(context.Background(), user.ID, 999, 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCartService_ConcurrentAddsDoNotLoseUpdates(t *testing.T) {
	db := newTestDB(t)
	svc := NewCartService(db)
	user := userByEmail(t, db, "user@example.com")
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.AddItem(ctx, user.ID, 2, 1)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	cart, err := svc.GetOrCreate(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 10, cart.Items[0].Quantity)
}

func TestCartService_UpdateItem(t *testing.T) {
	db := newTestDB(t)
	svc := NewCartService(db)
	user := userByEmail(t, db, "user@example.com")
	ctx := context.Background()

	_, err := svc.AddItem(ctx, user.ID, 3, 1)
	require.NoError(t, err)

	tests := []struct {
		name string
		req  models.UpdateCartItemRequest
		want int
	}{
		{"increment", models.UpdateCartItemRequest{Action: models.CartIncrement}, 2},
		{"decrement", models.UpdateCartItemRequest{Action: models.CartDecrement}, 1},
		{"decrement floors at one", models.UpdateCartItemRequest{Action: models.CartDecrement}, 1},
		{"set", models.UpdateCartItemRequest{Action: models.CartSet, Quantity: 7}, 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item, err := svc.UpdateItem(ctx, user.ID, 3, tt.req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, item.Quantity)
		})
	}

	_, err = svc.UpdateItem(ctx, user.ID, 3, models.UpdateCartItemRequest{Action: models.CartSet, Quantity: 0})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.UpdateItem(ctx, user.ID, 4, models.UpdateCartItemRequest{Action: models.CartIncrement})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCartService_RemoveAndClear(t *testing.T) {
	db := newTestDB(t)
	svc := NewCartService(db)
	user := userByEmail(t, db, "user@example.com")
	ctx := context.Background()

	for _, id := range []int{1, 2, 3} {
		_, err := svc.AddItem(ctx, user.ID, id, 1)
		require.NoError(t, err)
	}

	require.NoError(t, svc.RemoveItem(ctx, user.ID, 2))
	assert.ErrorIs(t, svc.RemoveItem(ctx, user.ID, 2), ErrNotFound)

	cart, err := svc.GetOrCreate(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, cart.Items, 2)
	assert.Equal(t, 1, cart.Items[0].ID)
	assert.Equal(t, 3, cart.Items[1].ID)

	require.NoError(t, svc.Clear(ctx, user.ID))
	cart, err = svc.GetOrCreate(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
}
