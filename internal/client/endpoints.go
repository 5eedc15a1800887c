package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"storefront/internal/models"
)

// PageMeta describes one page of a product listing.
type PageMeta struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
	HasPrev    bool  `json:"has_prev"`
}

type ProductPage struct {
	Data []models.Product `json:"data"`
	Meta PageMeta         `json:"meta"`
}

type ProductQuery struct {
	Query    string
	Category string
	Page     int
	Limit    int
}

func (q ProductQuery) values() url.Values {
	v := url.Values{}
	if q.Query != "" {
		v.Set("q", q.Query)
	}
	if q.Category != "" {
		v.Set("category", q.Category)
	}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	return v
}

// Auth

func (c *Client) Register(ctx context.Context, req models.RegisterRequest) (*models.User, error) {
	var user models.User
	if err := c.do(ctx, http.MethodPost, "/api/auth/register", req, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Login authenticates and returns the token. It does not call SetToken.
func (c *Client) Login(ctx context.Context, email, password string) (*models.LoginResponse, error) {
	var resp models.LoginResponse
	err := c.do(ctx, http.MethodPost, "/api/auth/login", models.LoginRequest{Email: email, Password: password}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Me(ctx context.Context) (*models.User, error) {
	var user models.User
	if err := c.do(ctx, http.MethodGet, "/api/user", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) UpdateProfile(ctx context.Context, req models.UpdateProfileRequest) (*models.User, error) {
	var user models.User
	if err := c.do(ctx, http.MethodPut, "/api/user/profile", req, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) SearchUsers(ctx context.Context, query string) ([]models.User, error) {
	var users []models.User
	path := "/api/users?" + url.Values{"search": {query}}.Encode()
	if err := c.do(ctx, http.MethodGet, path, nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// Products

func (c *Client) ListProducts(ctx context.Context, q ProductQuery) (*ProductPage, error) {
	path := "/api/products"
	if q.Query != "" {
		path = "/api/products/search"
	}
	if v := q.values(); len(v) > 0 {
		path += "?" + v.Encode()
	}
	var page ProductPage
	if err := c.do(ctx, http.MethodGet, path, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) GetProduct(ctx context.Context, id int) (*models.Product, error) {
	var resp struct {
		Data models.Product `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/products/%d", id), nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

// Cart

func (c *Client) GetCart(ctx context.Context) (*models.Cart, error) {
	var cart models.Cart
	if err := c.do(ctx, http.MethodGet, "/api/cart", nil, &cart); err != nil {
		return nil, err
	}
	return &cart, nil
}

func (c *Client) AddCartItem(ctx context.Context, productID, quantity int) (*models.CartItem, error) {
	var item models.CartItem
	req := models.AddToCartRequest{ProductID: productID, Quantity: quantity}
	if err := c.do(ctx, http.MethodPost, "/api/cart", req, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// UpdateCartItem applies action to a server cart line. quantity is only
// used with models.CartSet.
func (c *Client) UpdateCartItem(ctx context.Context, productID int, action models.CartAction, quantity int) (*models.CartItem, error) {
	var item models.CartItem
	req := models.UpdateCartItemRequest{Action: action, Quantity: quantity}
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("/api/cart/%d", productID), req, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

func (c *Client) RemoveCartItem(ctx context.Context, productID int) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/cart/%d", productID), nil, nil)
}

func (c *Client) ClearCart(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/api/cart", nil, nil)
}

// Orders and discounts

func (c *Client) PlaceOrder(ctx context.Context, req models.CreateOrderRequest) (*models.Order, error) {
	var order models.Order
	if err := c.do(ctx, http.MethodPost, "/api/orders", req, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *Client) ListOrders(ctx context.Context) ([]models.Order, error) {
	var orders []models.Order
	if err := c.do(ctx, http.MethodGet, "/api/orders", nil, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (c *Client) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	if err := c.do(ctx, http.MethodGet, "/api/orders/"+url.PathEscape(id), nil, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *Client) ListDiscounts(ctx context.Context) ([]models.Discount, error) {
	var discounts []models.Discount
	if err := c.do(ctx, http.MethodGet, "/api/discounts", nil, &discounts); err != nil {
		return nil, err
	}
	return discounts, nil
}

func (c *Client) VerifyDiscount(ctx context.Context, code string, subtotal float64) (*models.VerifyDiscountResponse, error) {
	var resp models.VerifyDiscountResponse
	req := models.VerifyDiscountRequest{Code: code, Subtotal: subtotal}
	if err := c.do(ctx, http.MethodPost, "/api/discounts/verify", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Chat

func (c *Client) ListConversations(ctx context.Context) ([]models.Conversation, error) {
	var convs []models.Conversation
	if err := c.do(ctx, http.MethodGet, "/api/conversations", nil, &convs); err != nil {
		return nil, err
	}
	return convs, nil
}

func (c *Client) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	var conv models.Conversation
	if err := c.do(ctx, http.MethodGet, "/api/conversations/"+url.PathEscape(id), nil, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

func (c *Client) CreateConversation(ctx context.Context, req models.CreateConversationRequest) (*models.Conversation, error) {
	var conv models.Conversation
	if err := c.do(ctx, http.MethodPost, "/api/conversations", req, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

func (c *Client) SendMessage(ctx context.Context, conversationID, content, receiverID string) (*models.Message, error) {
	var msg models.Message
	req := models.SendMessageRequest{Content: content, ReceiverID: receiverID}
	if err := c.do(ctx, http.MethodPost, "/api/conversations/"+url.PathEscape(conversationID), req, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (c *Client) MarkRead(ctx context.Context, req models.MarkReadRequest) error {
	return c.do(ctx, http.MethodPost, "/api/messages/read", req, nil)
}

func (c *Client) UnreadCount(ctx context.Context) (int64, error) {
	var resp struct {
		Count int64 `json:"count"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/messages/unread-count", nil, &resp); err != nil {
		return 0, err
	}
	return resp.Count, nil
}

func (c *Client) CheckNew(ctx context.Context, lastChecked time.Time) (*models.CheckNewResponse, error) {
	var resp models.CheckNewResponse
	req := models.CheckNewRequest{}
	if !lastChecked.IsZero() {
		req.LastChecked = &lastChecked
	}
	if err := c.do(ctx, http.MethodPost, "/api/messages/check-new", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Discussions

func (c *Client) ListDiscussions(ctx context.Context, productID int) ([]models.Discussion, error) {
	var out []models.Discussion
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/products/%d/discussions", productID), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateDiscussion(ctx context.Context, productID int, req models.CreateDiscussionRequest) (*models.Discussion, error) {
	var d models.Discussion
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/products/%d/discussions", productID), req, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (c *Client) ListComments(ctx context.Context, discussionID string) ([]models.Comment, error) {
	var out []models.Comment
	if err := c.do(ctx, http.MethodGet, "/api/discussions/"+url.PathEscape(discussionID)+"/comments", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) AddComment(ctx context.Context, discussionID, content string) (*models.Comment, error) {
	var comment models.Comment
	req := models.CreateCommentRequest{Content: content}
	if err := c.do(ctx, http.MethodPost, "/api/discussions/"+url.PathEscape(discussionID)+"/comments", req, &comment); err != nil {
		return nil, err
	}
	return &comment, nil
}
