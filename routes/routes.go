package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	handlers "safecircle/internal/handlers/shared"
)

// SetupAlertRoutes sets up the sender's alert lifecycle routes
func SetupAlertRoutes(r gin.IRouter, alertHandler *handlers.AlertHandler, senderAuth gin.HandlerFunc) {
	alerts := r.Group("/alert")
	alerts.Use(senderAuth)
	{
		alerts.POST("/start", alertHandler.Start)
		alerts.POST("/:id/update", alertHandler.Update)
		alerts.POST("/:id/extend", alertHandler.Extend)
		alerts.POST("/:id/stop", alertHandler.Stop)
		alerts.POST("/:id/revoke", alertHandler.Revoke)
		alerts.GET("/:id/diag", alertHandler.Diag)
	}
}

// SetupPublicRoutes sets up the share token routes used by viewers
func SetupPublicRoutes(r gin.IRouter, publicHandler *handlers.PublicHandler, rateLimit gin.HandlerFunc) {
	public := r.Group("/public/alert/:token")
	public.Use(rateLimit)
	{
		public.GET("", publicHandler.GetAlert)
		public.GET("/locations", publicHandler.Locations)
		public.POST("/react", publicHandler.React)
		public.GET("/stream", publicHandler.Stream)
		public.GET("/ws", publicHandler.WebSocket)
	}
}

// SetupContactRoutes sets up contact management and verification
func SetupContactRoutes(r gin.IRouter, contactHandler *handlers.ContactHandler, senderAuth, rateLimit gin.HandlerFunc) {
	contacts := r.Group("/contacts")
	{
		contacts.POST("", senderAuth, contactHandler.Add)
		contacts.GET("", senderAuth, contactHandler.List)
		contacts.POST("/verify", rateLimit, contactHandler.Verify)
		contacts.GET("/verify/:token", rateLimit, contactHandler.VerifyLink)
	}
}

// SetupSystemRoutes sets up health and metrics endpoints
func SetupSystemRoutes(r gin.IRouter, healthHandler *handlers.HealthHandler, metrics http.Handler) {
	r.GET("/health", healthHandler.Health)
	r.GET("/metrics", gin.WrapH(metrics))
}
