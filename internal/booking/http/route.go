package http

import (
	"github.com/gin-gonic/gin"

	"github.com/nekogravitycat/rental-booking-backend/internal/auth"
)

// RegisterRoutes registers booking-related routes.
func RegisterRoutes(g *gin.RouterGroup, h *Handler, authMiddleware gin.HandlerFunc) {
	// === Public Routes ===
	properties := g.Group("/properties")
	{
		properties.GET("/:id/availability", h.Availability) // Availability and quote for a stay
		properties.GET("/:id/pricing", h.Pricing)           // Price breakdown for a stay
	}

	group := g.Group("/bookings")

	// === Authenticated Routes ===
	group.Use(authMiddleware)
	{
		group.GET("", h.List)                                   // List visible bookings
		group.POST("", h.Create)                                // Reserve a stay
		group.GET("/:id", h.Get)                                // Get booking details
		group.POST("/:id/status", h.TransitionStatus)           // Move reservation status
		group.POST("/:id/cancel", h.Cancel)                     // Cancel a reservation
		group.PATCH("/:id/payment", h.UpdatePayment)            // Update payment status or metadata
		group.GET("/:id/refunds", h.ListRefunds)                // Refund ledger
		group.GET("/:id/payment-history", h.ListPaymentHistory) // Payment audit trail

		// === Admin Routes ===
		group.POST("/:id/refunds", auth.RequireRole(auth.RoleAdmin), h.ProcessRefund)
	}
}
