package app

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"

	"ridecore/internal/handler"
	"ridecore/internal/middleware"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	ProfileHandler  *handler.ProfileHandler
	RideHandler     *handler.RideHandler
	DriverHandler   *handler.DriverHandler
	PaymentHandler  *handler.PaymentHandler
	PromoHandler    *handler.PromoHandler
	MapsHandler     *handler.MapsHandler
	RealtimeHandler *handler.RealtimeHandler

	IdempotencyStore middleware.IdempotencyStore // optional
	NewRelicApp      *newrelic.Application       // optional
	AllowedOrigins   string
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	// Global middleware.
	router.Use(gin.Recovery())
	router.Use(gin.Logger())
	router.Use(middleware.CORSMiddleware(deps.AllowedOrigins))

	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/v1")

	// The websocket and provider callbacks stay outside the idempotency layer.
	v1.GET("/realtime", deps.RealtimeHandler.Subscribe)
	v1.GET("/payments/callback", deps.PaymentHandler.Callback)
	v1.POST("/payments/callback", deps.PaymentHandler.Callback)

	api := v1.Group("")
	api.Use(middleware.IdempotencyMiddleware(deps.IdempotencyStore))
	{
		profiles := api.Group("/profiles")
		{
			profiles.POST("", deps.ProfileHandler.Create)
			profiles.GET("/:id", deps.ProfileHandler.Get)
		}

		rides := api.Group("/rides")
		{
			rides.POST("/quote", deps.RideHandler.Quote)
			rides.POST("", deps.RideHandler.CreateRide)
			rides.GET("", deps.RideHandler.GetAll)
			rides.GET("/pending", deps.RideHandler.GetPending)
			rides.GET("/:id", deps.RideHandler.GetRide)
			rides.POST("/:id/accept", deps.RideHandler.AcceptRide)
			rides.POST("/:id/arrive", deps.RideHandler.MarkArrived)
			rides.POST("/:id/start", deps.RideHandler.StartTrip)
			rides.POST("/:id/complete", deps.RideHandler.CompleteRide)
			rides.POST("/:id/cancel", deps.RideHandler.CancelRide)
			rides.POST("/:id/match", deps.RideHandler.MatchRide)
			rides.GET("/:id/receipt", deps.RideHandler.GetReceipt)
			rides.POST("/:id/rating", deps.RideHandler.RateRide)
			rides.POST("/:id/payments", deps.PaymentHandler.StartPayment)
			rides.GET("/:id/payments", deps.PaymentHandler.ListRidePayments)
		}

		drivers := api.Group("/drivers")
		{
			drivers.POST("", deps.DriverHandler.Register)
			drivers.GET("", deps.DriverHandler.GetAll)
			drivers.GET("/:id", deps.DriverHandler.Get)
			drivers.POST("/:id/online", deps.DriverHandler.SetOnline)
			drivers.POST("/:id/location", deps.DriverHandler.UpdateLocation)
			drivers.GET("/:id/locations", deps.DriverHandler.GetLocations)
		}

		payments := api.Group("/payments")
		{
			payments.GET("/:id", deps.PaymentHandler.GetPayment)
			payments.POST("/:id/confirm-cash", deps.PaymentHandler.ConfirmCash)
		}

		promos := api.Group("/promos")
		{
			promos.GET("", deps.PromoHandler.GetAll)
			promos.POST("", deps.PromoHandler.Create)
			promos.POST("/validate", deps.PromoHandler.Validate)
			promos.POST("/:code/active", deps.PromoHandler.SetActive)
		}

		api.GET("/maps/geocode", deps.MapsHandler.Geocode)
	}

	return router
}
