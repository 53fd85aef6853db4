// internal/router/router.go
package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/gitsubas/blingblingstore-sub000/internal/config"
	"github.com/gitsubas/blingblingstore-sub000/internal/database"
	"github.com/gitsubas/blingblingstore-sub000/internal/handlers"
	"github.com/gitsubas/blingblingstore-sub000/internal/middleware"
	"github.com/gitsubas/blingblingstore-sub000/internal/services"
	"github.com/gitsubas/blingblingstore-sub000/internal/utils"
)

const version = "1.0.0"

func Initialize(db *gorm.DB, cfg *config.Config) (*gin.Engine, error) {
	// Initialize services
	storageService, err := services.NewStorageService(cfg)
	if err != nil {
		return nil, err
	}
	notificationService := services.NewNotificationService(db, cfg)
	paymentService := services.NewPaymentService(cfg)

	authService := services.NewAuthService(db, cfg)
	userService := services.NewUserService(db)
	addressService := services.NewAddressService(db)
	categoryService := services.NewCategoryService(db)
	productService := services.NewProductService(db, storageService)
	importService := services.NewImportService(db, categoryService)
	orderService := services.NewOrderService(db, paymentService, notificationService, cfg)
	cartService := services.NewCartService(db, orderService)
	adminService := services.NewAdminService(db, cfg)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService)
	userHandler := handlers.NewUserHandler(userService)
	addressHandler := handlers.NewAddressHandler(addressService)
	categoryHandler := handlers.NewCategoryHandler(categoryService)
	productHandler := handlers.NewProductHandler(productService, importService)
	cartHandler := handlers.NewCartHandler(cartService)
	orderHandler := handlers.NewOrderHandler(orderService)
	adminHandler := handlers.NewAdminHandler(adminService)

	// Set JWT secret
	utils.SetJWTSecret(cfg.JWT.SecretKey)

	r := gin.New()

	// Global middleware
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORS(cfg.Frontend.Origins))
	r.Use(middleware.I18nMiddleware())
	r.Use(middleware.GeneralRateLimit())
	r.Use(middleware.AuditLogMiddleware(db))

	r.GET("/health", healthHandler(db))

	v1 := r.Group("/api/v1")
	{
		auth := v1.Group("/auth")
		auth.Use(middleware.AuthRateLimit())
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
			auth.POST("/logout", middleware.AuthRequired(), authHandler.Logout)
			auth.POST("/refresh", authHandler.RefreshToken)
			auth.GET("/me", middleware.AuthRequired(), authHandler.Me)
		}

		users := v1.Group("/users")
		users.Use(middleware.AuthRequired())
		{
			users.GET("/profile", userHandler.GetProfile)
			users.PUT("/profile", userHandler.UpdateProfile)
			users.PUT("/password", userHandler.ChangePassword)
			users.DELETE("/account", userHandler.DeleteAccount)
		}

		addresses := v1.Group("/addresses")
		addresses.Use(middleware.AuthRequired())
		{
			addresses.GET("", addressHandler.ListAddresses)
			addresses.POST("", addressHandler.CreateAddress)
			addresses.PUT("/:id", addressHandler.UpdateAddress)
			addresses.PUT("/:id/default", addressHandler.SetDefault)
			addresses.DELETE("/:id", addressHandler.DeleteAddress)
		}

		// Catalog (public)
		products := v1.Group("/products")
		products.Use(middleware.OptionalAuth())
		{
			products.GET("", productHandler.GetProducts)
			products.GET("/:id", productHandler.GetProduct)
		}

		categories := v1.Group("/categories")
		{
			categories.GET("", categoryHandler.ListCategories)
			categories.GET("/:id", categoryHandler.GetCategory)
		}

		cart := v1.Group("/cart")
		cart.Use(middleware.AuthRequired())
		{
			cart.GET("", cartHandler.GetCart)
			cart.DELETE("", cartHandler.Clear)
			cart.POST("/items", cartHandler.AddItem)
			cart.PATCH("/items/:id", cartHandler.UpdateItem)
			cart.DELETE("/items/:id", cartHandler.RemoveItem)
			cart.GET("/checkout/preview", cartHandler.Preview)
			cart.POST("/checkout", middleware.CheckoutRateLimit(), cartHandler.Checkout)
		}

		orders := v1.Group("/orders")
		orders.Use(middleware.AuthRequired())
		{
			orders.POST("", middleware.CheckoutRateLimit(), orderHandler.PlaceOrder)
			orders.GET("/my-orders", orderHandler.GetMyOrders)
			orders.GET("/:id", orderHandler.GetOrder)
			orders.POST("/:id/cancel", orderHandler.CancelOrder)
			orders.POST("/:id/return", orderHandler.RequestReturn)

			adminOrders := orders.Group("/admin")
			adminOrders.Use(middleware.AdminRequired())
			{
				adminOrders.GET("/all", orderHandler.GetAllOrders)
				adminOrders.PATCH("/:id/status", orderHandler.UpdateOrderStatus)
				adminOrders.DELETE("/:id", orderHandler.DeleteOrder)
				adminOrders.GET("/returns", orderHandler.GetReturns)
				adminOrders.POST("/returns/:id/process", orderHandler.ProcessReturn)
			}
		}

		admin := v1.Group("/admin")
		admin.Use(middleware.AuthRequired(), middleware.AdminRequired())
		{
			// Dashboard
			admin.GET("/dashboard/stats", adminHandler.GetDashboardStats)
			admin.GET("/low-stock", adminHandler.GetLowStock)

			// User management
			adminUsers := admin.Group("/users")
			{
				adminUsers.GET("", adminHandler.GetUsers)
				adminUsers.PUT("/:id/status", adminHandler.UpdateUserStatus)
				adminUsers.PUT("/:id/role", adminHandler.UpdateUserRole)
			}

			// Catalog management
			adminProducts := admin.Group("/products")
			{
				adminProducts.GET("", productHandler.GetAllProducts)
				adminProducts.POST("", productHandler.CreateProduct)
				adminProducts.POST("/import", middleware.UploadRateLimit(), productHandler.ImportProducts)
				adminProducts.PUT("/:id", productHandler.UpdateProduct)
				adminProducts.DELETE("/:id", productHandler.DeleteProduct)
				adminProducts.POST("/:id/variants", productHandler.AddVariant)
				adminProducts.PUT("/:id/variants/:variantId", productHandler.UpdateVariant)
				adminProducts.DELETE("/:id/variants/:variantId", productHandler.DeleteVariant)
				adminProducts.POST("/:id/images", middleware.UploadRateLimit(), productHandler.UploadImage)
				adminProducts.DELETE("/:id/images/:imageId", productHandler.DeleteImage)
			}

			adminCategories := admin.Group("/categories")
			{
				adminCategories.POST("", categoryHandler.CreateCategory)
				adminCategories.PUT("/:id", categoryHandler.UpdateCategory)
				adminCategories.DELETE("/:id", categoryHandler.DeleteCategory)
			}

			admin.GET("/notifications", adminHandler.GetNotifications)
			admin.PUT("/notifications/:id/read", adminHandler.MarkNotificationRead)
			admin.GET("/audit-logs", adminHandler.GetAuditLogs)
		}
	}

	// Local uploads are served from disk when S3 is not configured
	if cfg.AWS.AccessKeyID == "" {
		r.Static("/uploads", cfg.Server.UploadDir)
	}

	return r, nil
}

func healthHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := database.Ping(ctx, db); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"database": err.Error(),
				"version":  version,
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":   "healthy",
			"database": "ok",
			"version":  version,
		})
	}
}
