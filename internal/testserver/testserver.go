// Package testserver runs the full HTTP API on a throwaway sqlite database
// for client-side tests.
package testserver

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"storefront/api"
	"storefront/internal/database"
	"storefront/internal/realtime"
	"storefront/internal/services"
)

// Seeded accounts.
const (
	UserEmail     = "user@example.com"
	UserPassword  = "user123"
	AdminEmail    = "admin@example.com"
	AdminPassword = "admin123"
)

// New starts a server seeded with products and the default accounts and
// returns its base URL. Everything is torn down with t.
func New(t *testing.T, products int) string {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.Open(filepath.Join(t.TempDir(), "shop.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close(db) })
	require.NoError(t, database.Migrate(db))
	require.NoError(t, database.Seed(db, products))

	logger, _ := test.NewNullLogger()
	auth := services.NewAuthService(db, "test-secret", time.Hour)
	var chatService *services.ChatService
	hub := realtime.NewHub(func(ctx context.Context, userID, channel string) bool {
		return chatService.Authorize(ctx, userID, channel)
	}, logger)
	chatService = services.NewChatService(db, auth, hub, logger)
	discounts := services.NewDiscountService(db)
	sqlDB, err := db.DB()
	require.NoError(t, err)

	router := api.NewRouter(api.Deps{
		Auth:        auth,
		Products:    services.NewProductService(db),
		Carts:       services.NewCartService(db),
		Orders:      services.NewOrderService(db, discounts),
		Discounts:   discounts,
		Discussions: services.NewDiscussionService(db),
		Chat:        chatService,
		Hub:         hub,
		DB:          sqlDB,
		Log:         logger,
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv.URL
}
