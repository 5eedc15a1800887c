// Package api wires handlers and middleware into the HTTP router.
package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"storefront/api/handlers"
	"storefront/api/middleware"
	"storefront/internal/realtime"
	"storefront/internal/services"
)

// Deps is everything the router needs. Registry and RateLimiter are optional.
type Deps struct {
	Auth        *services.AuthService
	Products    *services.ProductService
	Carts       *services.CartService
	Orders      *services.OrderService
	Discounts   *services.DiscountService
	Discussions *services.DiscussionService
	Chat        *services.ChatService
	Hub         *realtime.Hub
	DB          handlers.Pinger

	Registry    *prometheus.Registry
	RateLimiter *middleware.RateLimiter
	Log         logrus.FieldLogger

	Release              bool
	WSInsecureSkipVerify bool
	WSOriginPatterns     []string
}

func NewRouter(d Deps) *gin.Engine {
	if d.Release {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.Recovery(d.Log))
	router.Use(middleware.Logger(d.Log))
	if d.Registry != nil {
		router.Use(middleware.NewMetrics(d.Registry).Handler())
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Registry, promhttp.HandlerOpts{})))
	}

	authHandler := handlers.NewAuthHandler(d.Auth)
	productHandler := handlers.NewProductHandler(d.Products)
	cartHandler := handlers.NewCartHandler(d.Carts)
	orderHandler := handlers.NewOrderHandler(d.Orders)
	discountHandler := handlers.NewDiscountHandler(d.Discounts)
	discussionHandler := handlers.NewDiscussionHandler(d.Discussions)
	chatHandler := handlers.NewChatHandler(d.Chat)
	healthHandler := handlers.NewHealthHandler(d.DB)
	wsHandler := handlers.NewWSHandler(d.Hub, d.WSInsecureSkipVerify, d.WSOriginPatterns)

	requireAuth := middleware.Auth(d.Auth)
	requireAdmin := middleware.RequireAdmin()

	router.GET("/ws", requireAuth, wsHandler.Connect)

	api := router.Group("/api")
	if d.RateLimiter != nil {
		api.Use(d.RateLimiter.Handler())
	}
	{
		api.GET("/health", healthHandler.HealthCheck)

		auth := api.Group("/auth")
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
		}

		products := api.Group("/products")
		{
			products.GET("", productHandler.GetAllProducts)
			products.GET("/search", productHandler.SearchProducts)
			products.GET("/categories", productHandler.GetCategories)
			products.GET("/:id", productHandler.GetProductByID)
			products.GET("/:id/discussions", discussionHandler.ListForProduct)
			products.POST("/:id/discussions", requireAuth, discussionHandler.Create)
			products.POST("", requireAuth, requireAdmin, productHandler.CreateProduct)
			products.PUT("/:id/stock", requireAuth, requireAdmin, productHandler.UpdateStock)
		}

		discussions := api.Group("/discussions")
		{
			discussions.GET("/:id", discussionHandler.Get)
			discussions.GET("/:id/comments", discussionHandler.Comments)
			discussions.POST("/:id/comments", requireAuth, discussionHandler.AddComment)
		}

		api.GET("/discounts", discountHandler.ListDiscounts)
		api.POST("/discounts/verify", discountHandler.VerifyDiscount)
		api.POST("/discounts", requireAuth, requireAdmin, discountHandler.CreateDiscount)

		authed := api.Group("", requireAuth)
		{
			authed.GET("/user", authHandler.Me)
			authed.PUT("/user/profile", authHandler.UpdateProfile)
			authed.GET("/users", authHandler.SearchUsers)

			cart := authed.Group("/cart")
			{
				cart.GET("", cartHandler.GetCart)
				cart.POST("", cartHandler.AddToCart)
				cart.DELETE("", cartHandler.ClearCart)
				cart.PUT("/:productId", cartHandler.UpdateCartItem)
				cart.DELETE("/:productId", cartHandler.RemoveCartItem)
			}

			orders := authed.Group("/orders")
			{
				orders.GET("", orderHandler.ListOrders)
				orders.POST("", orderHandler.CreateOrder)
				orders.GET("/stats", requireAdmin, orderHandler.GetStats)
				orders.GET("/:id", orderHandler.GetOrder)
				orders.PUT("/:id", requireAdmin, orderHandler.UpdateStatus)
			}

			conversations := authed.Group("/conversations")
			{
				conversations.GET("", chatHandler.ListConversations)
				conversations.POST("", chatHandler.CreateConversation)
				conversations.GET("/:id", chatHandler.GetConversation)
				conversations.POST("/:id", chatHandler.SendMessage)
			}

			messages := authed.Group("/messages")
			{
				messages.POST("/read", chatHandler.MarkRead)
				messages.GET("/unread-count", chatHandler.UnreadCount)
				messages.POST("/check-new", chatHandler.CheckNew)
			}
		}
	}

	// Debug endpoints in development
	if gin.Mode() != gin.ReleaseMode {
		router.GET("/debug/runtime", healthHandler.Runtime)
	}

	return router
}
