package routes

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	userRepo "handyhub/database/repository/user"
	"handyhub/handlers"
	"handyhub/middleware"
	"handyhub/models"
)

// HandlerBundle collects the wired handlers for route registration.
type HandlerBundle struct {
	UserRepo       userRepo.UserRepository
	BookingHandler *handlers.BookingHandler
	UserHandler    *handlers.UserHandler
}

// RegisterRoutes wires up the full HTTP surface.
func RegisterRoutes(r *gin.Engine, hb *HandlerBundle) {
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	RegisterHealthRoute(r)
	RegisterAccountRoutes(r, hb)
	RegisterBookingRoutes(r, hb)
}

// RegisterHealthRoute registers a health-check endpoint.
func RegisterHealthRoute(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "message": "Hi, I'm HandyHub"})
	})
}

// RegisterAccountRoutes registers signup/login endpoints.
func RegisterAccountRoutes(r *gin.Engine, hb *HandlerBundle) {
	api := r.Group("/api/accounts")
	{
		api.POST("/register", hb.UserHandler.RegisterHandler)
		api.POST("/login", hb.UserHandler.AuthenticateHandler)

		api.Use(middleware.JWTAuthMiddleware(hb.UserRepo))
		api.GET("/me", hb.UserHandler.MeHandler)
	}
}

// RegisterBookingRoutes registers the role-gated booking action surface.
func RegisterBookingRoutes(r *gin.Engine, hb *HandlerBundle) {
	api := r.Group("/api/bookings")
	api.Use(middleware.JWTAuthMiddleware(hb.UserRepo))

	// Customer actions.
	customer := api.Group("")
	customer.Use(middleware.RequireRole(models.RoleCustomer))
	{
		customer.POST("", hb.BookingHandler.CreateBooking)
		customer.GET("", hb.BookingHandler.CustomerBookings)
		customer.PUT("/:id/cancel", hb.BookingHandler.CancelBooking)
		customer.PUT("/:id/not-provided", hb.BookingHandler.MarkNotProvided)
		customer.PUT("/:id/settle", hb.BookingHandler.SettleBooking)
		customer.PUT("/:id/review", hb.BookingHandler.ReviewBooking)
		customer.DELETE("/:id", hb.BookingHandler.DeleteBooking)
	}

	// Worker actions.
	worker := api.Group("/worker")
	worker.Use(middleware.RequireRole(models.RoleWorker))
	{
		worker.GET("/dashboard", hb.BookingHandler.WorkerDashboard)
		worker.PUT("/:id/action", hb.BookingHandler.WorkerAction)
		worker.PUT("/:id/cancel", hb.BookingHandler.CancelBooking)
	}

	// Broker views.
	broker := api.Group("/broker")
	broker.Use(middleware.RequireRole(models.RoleBroker))
	{
		broker.GET("/bookings", hb.BookingHandler.BrokerBookings)
		broker.GET("/cap/:workerID", hb.BookingHandler.BrokerCapProgress)
	}
}
