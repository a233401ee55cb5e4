package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"go-pos-backend/internal/handler"
	"go-pos-backend/internal/middleware"
	"go-pos-backend/internal/model"
	"go-pos-backend/internal/repository"
	"go-pos-backend/internal/service"
	"go-pos-backend/internal/ws"
	"go-pos-backend/pkg/database"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
)

func main() {
	// 1. Load Env
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	// 2. Setup Database
	db := database.ConnectDB()
	// Auto Migrate (Hati-hati di production, sebaiknya pakai tools migrasi terpisah)
	db.AutoMigrate(
		&model.User{},
		&model.Category{},
		&model.Product{},
		&model.Transaction{},
		&model.TransactionItem{},
		&model.StockLedgerEntry{},
	)

	// 3. Seed default admin user
	seedAdmin(repository.NewUserRepo(db))

	// 4. Setup WebSocket Hub
	wsHub := ws.NewHub()
	go wsHub.Run()

	// 5. Dependency Injection (Wiring Layers)
	productRepo := repository.NewProductRepo(db)
	categoryRepo := repository.NewCategoryRepo(db)
	userRepo := repository.NewUserRepo(db)
	txRepo := repository.NewTransactionRepo(db)
	ledgerRepo := repository.NewLedgerRepo(db)

	checkoutService := service.NewCheckoutService(productRepo, txRepo, ledgerRepo, db, wsHub)
	productService := service.NewProductService(productRepo, ledgerRepo, db)
	reportService := service.NewReportService(productRepo, txRepo, ledgerRepo, userRepo)
	authService := service.NewAuthService(userRepo)
	userService := service.NewUserService(userRepo)

	checkoutHandler := handler.NewCheckoutHandler(checkoutService)
	stockHandler := handler.NewStockHandler(checkoutService)
	productHandler := handler.NewProductHandler(productService)
	categoryHandler := handler.NewCategoryHandler(categoryRepo)
	reportHandler := handler.NewReportHandler(reportService)
	authHandler := handler.NewAuthHandler(authService)
	userHandler := handler.NewUserHandler(userService)

	// 6. Setup Fiber
	app := fiber.New(fiber.Config{
		AppName: "POS Backend v1.0",
	})

	// Middleware
	app.Use(logger.New())  // Logging request
	app.Use(recover.New()) // Panic recovery
	app.Use(cors.New())    // CORS

	// 7. Routes
	api := app.Group("/api/v1")

	// ============ PUBLIC ROUTES ============
	auth := api.Group("/auth")
	auth.Post("/login", authHandler.Login)
	auth.Post("/reset-password", authHandler.ResetPassword)

	// ============ PROTECTED ROUTES ============
	protected := api.Group("", middleware.RequireAuth(userRepo))
	admin := middleware.RequireRole(model.RoleAdmin)

	// Checkout & transaction history (kasir and admin)
	protected.Post("/checkout", checkoutHandler.Checkout)
	protected.Get("/transactions", checkoutHandler.GetTransactions)
	protected.Get("/transactions/:id", checkoutHandler.GetTransaction)
	protected.Get("/nota/:invoiceNumber", checkoutHandler.GetNota)

	// Products (everyone reads, admin writes)
	protected.Get("/products", productHandler.GetProducts)
	protected.Get("/products/expiring", productHandler.GetExpiringProducts)
	protected.Get("/products/:id", productHandler.GetProduct)
	protected.Post("/products", admin, productHandler.CreateProduct)
	protected.Put("/products/:id", admin, productHandler.UpdateProduct)
	protected.Delete("/products/:id", admin, productHandler.DeleteProduct)

	// Categories
	protected.Get("/categories", categoryHandler.GetCategories)
	protected.Post("/categories", admin, categoryHandler.CreateCategory)
	protected.Put("/categories/:id", admin, categoryHandler.UpdateCategory)
	protected.Delete("/categories/:id", admin, categoryHandler.DeleteCategory)

	// Stock ledger (admin only)
	protected.Get("/stock", admin, stockHandler.GetStockHistory)
	protected.Post("/stock", admin, stockHandler.AdjustStock)

	// Dashboard & reports (admin only)
	protected.Get("/dashboard", admin, reportHandler.GetDashboard)
	protected.Get("/reports", admin, reportHandler.GetSalesReport)
	protected.Get("/reports/stock-movement", admin, reportHandler.GetStockMovement)

	// User management (admin only)
	protected.Get("/users", admin, userHandler.GetUsers)
	protected.Get("/users/:id", admin, userHandler.GetUser)
	protected.Post("/users", admin, userHandler.CreateUser)
	protected.Put("/users/:id", admin, userHandler.UpdateUser)
	protected.Delete("/users/:id", admin, userHandler.DeleteUser)

	// WebSocket Route
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return c.SendStatus(fiber.StatusUpgradeRequired)
	})
	app.Get("/ws", websocket.New(func(c *websocket.Conn) {
		wsHub.Register <- c
		defer func() { wsHub.Unregister <- c }()

		for {
			// Keep alive loop
			if _, _, err := c.ReadMessage(); err != nil {
				break
			}
		}
	}))

	// 8. Graceful Shutdown
	go func() {
		port := os.Getenv("PORT")
		if port == "" {
			port = "3000"
		}
		if err := app.Listen(":" + port); err != nil {
			log.Panic(err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	if err := app.Shutdown(); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exited")
}

// seedAdmin creates the default admin account if no admin exists yet
func seedAdmin(userRepo repository.UserRepository) {
	count, err := userRepo.CountByRole(model.RoleAdmin)
	if err != nil || count > 0 {
		return
	}

	email := os.Getenv("ADMIN_EMAIL")
	if email == "" {
		email = "admin@example.com"
	}
	password := os.Getenv("ADMIN_PASSWORD")
	if password == "" {
		password = "admin123"
	}

	admin := &model.User{
		Name:     "Administrator",
		Email:    email,
		Role:     model.RoleAdmin,
		IsActive: true,
	}
	if err := admin.SetPassword(password); err != nil {
		log.Printf("Warning: Failed to hash admin password: %v", err)
		return
	}

	if err := userRepo.Create(admin); err != nil {
		log.Printf("Warning: Failed to create admin user: %v", err)
	} else {
		log.Printf("✅ Admin user created: %s", email)
	}
}
