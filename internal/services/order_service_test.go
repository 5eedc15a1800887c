package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/models"
)

var testAddress = models.Address{Street: "1 Main St", City: "Springfield", State: "IL", Zip: "62701", Country: "US"}

func TestOrderService_CreateFromCart(t *testing.T) {
	db := newTestDB(t)
	carts := NewCartService(db)
	orders := NewOrderService(db, NewDiscountService(db))
	user := userByEmail(t, db, "user@example.com")
	ctx := context.Background()

	_, err := carts.AddItem(ctx, user.ID, 1, 2)
	require.NoError(t, err)
	_, err = carts.AddItem(ctx, user.ID, 5, 1)
	require.NoError(t, err)

	order, err := orders.Create(ctx, user.ID, models.CreateOrderRequest{
		Address:      testAddress,
		Email:        "user@example.com",
		DiscountCode: "maret10",
	})
	require.NoError(t, err)

	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.Len(t, order.Items, 2)
	assert.InDelta(t, 12.97, order.Subtotal, 0.001)
	assert.InDelta(t, 11.67, order.Total, 0.001)
	assert.Equal(t, "MARET10", order.DiscountCode)
	assert.Regexp(t, `^INV-\d{8}-[0-9A-F]{8}$`, order.InvoiceID)
	assert.Equal(t, testAddress, order.Address)

	var p1, p5 models.Product
	require.NoError(t, db.First(&p1, 1).Error)
	require.NoError(t, db.First(&p5, 5).Error)
	assert.Equal(t, 0, p1.Stock)
	assert.Equal(t, 5, p5.Stock)

	cart, err := carts.GetOrCreate(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
}

func TestOrderService_CreateFailsAtomically(t *testing.T) {
	db := newTestDB(t)
	carts := NewCartService(db)
	orders := NewOrderService(db, NewDiscountService(db))
	user := userByEmail(t, db, "user@example.com")
	ctx := context.Background()

	_, err := orders.Create(ctx, user.ID, models.CreateOrderRequest{Address: testAddress, Email: "user@example.com"})
	assert.ErrorIs(t, err, ErrCartEmpty)

	_, err = carts.AddItem(ctx, user.ID, 5, 1)
	require.NoError(t, err)
	_, err = carts.AddItem(ctx, user.ID, 1, 3)
	require.NoError(t, err)

	_, err = orders.Create(ctx, user.ID, models.CreateOrderRequest{Address: testAddress, Email: "user@example.com"})
	assert.ErrorIs(t, err, ErrInsufficientStock)

	var p5 models.Product
	require.NoError(t, db.First(&p5, 5).Error)
	assert.Equal(t, 6, p5.Stock, "reservation rolled back")

	cart, err := carts.GetOrCreate(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, cart.Items, 2)

	require.NoError(t, carts.RemoveItem(ctx, user.ID, 1))
	_, err = orders.Create(ctx, user.ID, models.CreateOrderRequest{Address: testAddress, Email: "user@example.com", DiscountCode: "MARET20"})
	assert.ErrorIs(t, err, ErrInvalidInput, "below minimum purchase")
}

func TestOrderService_VisibilityAndStatus(t *testing.T) {
	db := newTestDB(t)
	carts := NewCartService(db)
	orders := NewOrderService(db, NewDiscountService(db))
	user := userByEmail(t, db, "user@example.com")
	other := createUser(t, db, "Other", "other@example.com")
	ctx := context.Background()

	_, err := carts.AddItem(ctx, user.ID, 2, 1)
	require.NoError(t, err)
	order, err := orders.Create(ctx, user.ID, models.CreateOrderRequest{Address: testAddress, Email: "user@example.com"})
	require.NoError(t, err)

	_, err = orders.Get(ctx, order.ID, other.ID, false)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = orders.Get(ctx, order.ID, other.ID, true)
	assert.NoError(t, err)
	_, err = orders.Get(ctx, "missing", user.ID, false)
	assert.ErrorIs(t, err, ErrNotFound)

	mine, err := orders.List(ctx, user.ID, false)
	require.NoError(t, err)
	assert.Len(t, mine, 1)
	theirs, err := orders.List(ctx, other.ID, false)
	require.NoError(t, err)
	assert.Empty(t, theirs)

	_, err = orders.UpdateStatus(ctx, order.ID, "LOST")
	assert.ErrorIs(t, err, ErrInvalidInput)
	updated, err := orders.UpdateStatus(ctx, order.ID, models.OrderStatusShipped)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusShipped, updated.Status)

	stats, err := orders.Stats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.Total)
	assert.EqualValues(t, 1, stats.ByStatus[models.OrderStatusShipped])
	assert.EqualValues(t, 0, stats.ByStatus[models.OrderStatusPending])
	assert.InDelta(t, 3.99, stats.Revenue, 0.001)
}
