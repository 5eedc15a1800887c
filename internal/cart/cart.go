// Package cart presents one cart regardless of whether the user is signed in.
//
// Anonymous carts live in local storage. Signed-in carts live on the server
// and every server write is followed by an authoritative re-fetch. On login
// the anonymous cart is merged into the server cart once per session.
package cart

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"storefront/internal/client"
	"storefront/internal/models"
	"storefront/internal/notify"
)

const (
	// StorageKey holds the anonymous cart as a JSON array of items.
	StorageKey = "cart-storage"

	mergedKeyPrefix = "cart-merged:"
)

// API is the subset of the HTTP client the cart uses.
type API interface {
	GetCart(ctx context.Context) (*models.Cart, error)
	AddCartItem(ctx context.Context, productID, quantity int) (*models.CartItem, error)
	UpdateCartItem(ctx context.Context, productID int, action models.CartAction, quantity int) (*models.CartItem, error)
	RemoveCartItem(ctx context.Context, productID int) error
	ClearCart(ctx context.Context) error
	PlaceOrder(ctx context.Context, req models.CreateOrderRequest) (*models.Order, error)
}

type Storage interface {
	GetJSON(key string, v any) (bool, error)
	PutJSON(key string, v any) error
	Delete(key string) error
}

type Session interface {
	Authenticated() bool
	SessionID() string
}

type Options struct {
	API      API
	Storage  Storage
	Session  Session
	Notifier notify.Notifier
	Logger   logrus.FieldLogger
}

type Controller struct {
	api     API
	storage Storage
	session Session
	notify  notify.Notifier
	log     logrus.FieldLogger

	// opMu is held exclusively by mutations and the merge, shared by fetches.
	opMu    sync.RWMutex
	fetches singleflight.Group
	merging atomic.Bool

	mu          sync.Mutex
	items       []models.CartItem
	loading     int
	initialized bool
}

func New(opts Options) *Controller {
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	n := opts.Notifier
	if n == nil {
		n = notify.Log{Logger: log}
	}
	return &Controller{
		api:     opts.API,
		storage: opts.Storage,
		session: opts.Session,
		notify:  n,
		log:     log.WithField("component", "cart"),
	}
}

// Items returns a copy of the current items.
func (c *Controller) Items() []models.CartItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.CartItem, len(c.items))
	copy(out, c.items)
	return out
}

func (c *Controller) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading > 0
}

func (c *Controller) Initialized() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.initialized
}

// Count is the total number of units in the cart.
func (c *Controller) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, it := range c.items {
		n += it.Quantity
	}
	return n
}

func (c *Controller) Subtotal() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := decimal.Zero
	for _, it := range c.items {
		total = total.Add(decimal.NewFromFloat(it.Price).Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	f, _ := total.Round(2).Float64()
	return f
}

// FetchCart loads the cart from wherever it currently lives. Concurrent
// calls share a single request.
func (c *Controller) FetchCart(ctx context.Context) {
	c.opMu.RLock()
	defer c.opMu.RUnlock()
	defer c.begin()()
	c.refresh(ctx)
}

// AddToCart adds one unit of p.
func (c *Controller) AddToCart(ctx context.Context, p models.Product) {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	defer c.begin()()

	if !c.Initialized() {
		c.refresh(ctx)
	}

	if !c.session.Authenticated() {
		items := c.readLocal()
		found := false
		for i := range items {
			if items[i].ID == p.ID {
				items[i].Quantity++
				found = true
				break
			}
		}
		if !found {
			items = append(items, models.NewCartItem(p))
		}
		if !c.saveLocal(items) {
			return
		}
	} else {
		if _, err := c.api.AddCartItem(ctx, p.ID, 1); err != nil {
			c.fail(err, "Failed to add item to cart", logrus.Fields{"product_id": p.ID})
			return
		}
		c.refresh(ctx)
	}
	c.notify.Success(fmt.Sprintf("%s added to cart", p.Title))
}

// RemoveFromCart drops the product regardless of its quantity.
func (c *Controller) RemoveFromCart(ctx context.Context, productID int) {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	defer c.begin()()

	if !c.session.Authenticated() {
		if !c.saveLocal(without(c.readLocal(), productID)) {
			return
		}
	} else {
		if err := c.api.RemoveCartItem(ctx, productID); err != nil && !client.IsNotFound(err) {
			c.fail(err, "Failed to remove item from cart", logrus.Fields{"product_id": productID})
			return
		}
		c.refresh(ctx)
	}
	c.notify.Success("Item removed from cart")
}

// UpdateQty increments or decrements one item. Decrementing an item of
// quantity 1 removes it, on both the local and the server path.
func (c *Controller) UpdateQty(ctx context.Context, action models.CartAction, productID int) {
	if action != models.CartIncrement && action != models.CartDecrement {
		c.log.WithField("action", action).Warn("unsupported cart action")
		return
	}

	c.opMu.Lock()
	defer c.opMu.Unlock()
	defer c.begin()()

	if !c.session.Authenticated() {
		items := c.readLocal()
		for i := range items {
			if items[i].ID != productID {
				continue
			}
			if action == models.CartIncrement {
				items[i].Quantity++
			} else if items[i].Quantity <= 1 {
				items = append(items[:i], items[i+1:]...)
			} else {
				items[i].Quantity--
			}
			c.saveLocal(items)
			return
		}
		return
	}

	fields := logrus.Fields{"product_id": productID, "action": action}
	remove := false
	if action == models.CartDecrement {
		// The server floors decrements at 1, so the removal decision is
		// taken against its current quantity, never the cached one.
		qty, err := c.serverQuantity(ctx, productID)
		if err != nil {
			c.fail(err, "Failed to update cart", fields)
			return
		}
		if qty == 0 {
			c.refresh(ctx)
			return
		}
		remove = qty == 1
	}

	var err error
	if remove {
		err = c.api.RemoveCartItem(ctx, productID)
	} else {
		_, err = c.api.UpdateCartItem(ctx, productID, action, 0)
	}
	if err != nil {
		c.fail(err, "Failed to update cart", fields)
		return
	}
	c.refresh(ctx)
}

// ClearCart empties local storage and, when signed in, the server cart.
func (c *Controller) ClearCart(ctx context.Context) {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	defer c.begin()()

	if err := c.storage.Delete(StorageKey); err != nil {
		c.log.WithError(err).Error("clear local cart")
	}
	if c.session.Authenticated() {
		if err := c.api.ClearCart(ctx); err != nil {
			c.fail(err, "Failed to clear cart", nil)
			return
		}
	}
	c.setItems(nil)
	c.notify.Success("Cart cleared")
}

// MergeLocalWithServerCart moves the anonymous cart into the server cart.
// It runs at most once per login session: a completed merge is recorded in
// local storage under the session id, and items are removed from local
// storage as they are applied so a retry after a failure never re-applies
// them.
func (c *Controller) MergeLocalWithServerCart(ctx context.Context) {
	if !c.merging.CompareAndSwap(false, true) {
		return
	}
	defer c.merging.Store(false)

	c.opMu.Lock()
	defer c.opMu.Unlock()
	defer c.begin()()

	if !c.session.Authenticated() {
		return
	}
	marker := mergedKeyPrefix + c.session.SessionID()
	var done bool
	if ok, err := c.storage.GetJSON(marker, &done); err != nil {
		c.log.WithError(err).Error("read merge marker")
		return
	} else if ok && done {
		c.refresh(ctx)
		return
	}

	local := c.readLocal()
	if len(local) > 0 {
		server, err := c.api.GetCart(ctx)
		if err != nil {
			c.fail(err, "Failed to sync your cart", nil)
			return
		}
		onServer := make(map[int]int, len(server.Items))
		for _, it := range server.Items {
			onServer[it.ID] = it.Quantity
		}

		for len(local) > 0 {
			it := local[0]
			if qty, ok := onServer[it.ID]; ok {
				_, err = c.api.UpdateCartItem(ctx, it.ID, models.CartSet, qty+it.Quantity)
			} else {
				_, err = c.api.AddCartItem(ctx, it.ID, it.Quantity)
			}
			if err != nil {
				c.fail(err, "Failed to sync your cart", logrus.Fields{"product_id": it.ID})
				return
			}
			local = local[1:]
			if err := c.storage.PutJSON(StorageKey, local); err != nil {
				c.log.WithError(err).WithField("product_id", it.ID).Error("persist merge progress")
				return
			}
		}
	}

	if err := c.storage.Delete(StorageKey); err != nil {
		c.log.WithError(err).Error("clear local cart after merge")
	}
	if err := c.storage.PutJSON(marker, true); err != nil {
		c.log.WithError(err).Error("write merge marker")
	}
	c.log.WithField("session_id", c.session.SessionID()).Info("cart merged")
	c.refresh(ctx)
}

// Checkout places an order for the server cart.
func (c *Controller) Checkout(ctx context.Context, req models.CreateOrderRequest) (*models.Order, bool) {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	defer c.begin()()

	if !c.session.Authenticated() {
		c.notify.Error("Please sign in to check out")
		return nil, false
	}
	order, err := c.api.PlaceOrder(ctx, req)
	if err != nil {
		c.fail(err, "Failed to place order", nil)
		return nil, false
	}
	if err := c.storage.Delete(StorageKey); err != nil {
		c.log.WithError(err).Error("clear local cart after checkout")
	}
	c.refresh(ctx)
	c.notify.Success(fmt.Sprintf("Order %s placed", order.InvoiceID))
	return order, true
}

// Reset forgets in-memory state, e.g. after logout.
func (c *Controller) Reset() {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	c.mu.Lock()
	c.items = nil
	c.initialized = false
	c.mu.Unlock()
}

// refresh must be called with opMu held in either mode.
func (c *Controller) refresh(ctx context.Context) {
	c.fetches.Do("cart", func() (any, error) {
		c.load(ctx)
		return nil, nil
	})
}

func (c *Controller) load(ctx context.Context) {
	if !c.session.Authenticated() {
		c.setItems(c.readLocal())
		return
	}
	cart, err := c.api.GetCart(ctx)
	if err != nil {
		if !client.IsUnauthorized(err) {
			c.log.WithError(err).Error("fetch cart")
			c.notify.Error("Failed to load cart")
		}
		c.setItems(c.readLocal())
		return
	}
	c.setItems(cart.Items)
}

func (c *Controller) readLocal() []models.CartItem {
	var items []models.CartItem
	if _, err := c.storage.GetJSON(StorageKey, &items); err != nil {
		c.log.WithError(err).Error("read local cart")
		return nil
	}
	return items
}

// saveLocal persists items and mirrors them in memory.
func (c *Controller) saveLocal(items []models.CartItem) bool {
	if err := c.storage.PutJSON(StorageKey, items); err != nil {
		c.log.WithError(err).Error("write local cart")
		c.notify.Error("Failed to save cart")
		return false
	}
	c.setItems(items)
	return true
}

func (c *Controller) setItems(items []models.CartItem) {
	c.mu.Lock()
	c.items = append([]models.CartItem(nil), items...)
	c.initialized = true
	c.mu.Unlock()
}

// serverQuantity reports the quantity of productID in the server cart, or 0
// when the server holds no such line.
func (c *Controller) serverQuantity(ctx context.Context, productID int) (int, error) {
	cart, err := c.api.GetCart(ctx)
	if err != nil {
		return 0, err
	}
	for _, it := range cart.Items {
		if it.ID == productID {
			return it.Quantity, nil
		}
	}
	return 0, nil
}

func (c *Controller) begin() func() {
	c.mu.Lock()
	c.loading++
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		c.loading--
		c.mu.Unlock()
	}
}

func (c *Controller) fail(err error, msg string, fields logrus.Fields) {
	c.log.WithFields(fields).WithError(err).Error(msg)
	if client.IsUnauthorized(err) {
		c.notify.Error("Your session has expired, please sign in again")
		return
	}
	c.notify.Error(msg)
}

func without(items []models.CartItem, productID int) []models.CartItem {
	out := items[:0]
	for _, it := range items {
		if it.ID != productID {
			out = append(out, it)
		}
	}
	return out
}
