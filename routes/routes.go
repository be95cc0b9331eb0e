package routes

import (
	"net/http"

	"github.com/julienschmidt/httprouter"

	"tavola/admin"
	"tavola/menu"
	"tavola/middleware"
	"tavola/notify"
	"tavola/pay"
	"tavola/ratelim"
	"tavola/wapp"
)

// AddBotRoutes mounts the messaging webhook.
func AddBotRoutes(router *httprouter.Router, webhook *wapp.Webhook) {
	router.GET("/webhook", webhook.Verify)
	router.POST("/webhook", webhook.Receive)
}

// AddPayRoutes mounts the browser callback and the provider webhook.
func AddPayRoutes(router *httprouter.Router, handlers *pay.Handlers) {
	router.GET("/payment/callback", handlers.Callback)
	router.POST("/api/webhook/razorpay", handlers.Webhook)
}

// AddMenuRoutes mounts public menu reads and auth-gated writes.
func AddMenuRoutes(router *httprouter.Router, h *menu.Handlers, rateLimiter *ratelim.RateLimiter) {
	router.GET("/api/categories", rateLimiter.Limit(h.Categories))
	router.GET("/api/menu", rateLimiter.Limit(h.List))
	router.GET("/api/menu/:itemid", rateLimiter.Limit(h.Get))

	router.POST("/api/menu", middleware.Chain(h.Create, rateLimiter.Limit, middleware.Authenticate))
	router.PUT("/api/menu/:itemid", middleware.Chain(h.Update, rateLimiter.Limit, middleware.Authenticate))
	router.DELETE("/api/menu/:itemid", middleware.Chain(h.Delete, rateLimiter.Limit, middleware.Authenticate))
	router.POST("/api/menu/:itemid/photo", middleware.Chain(h.UploadPhoto, rateLimiter.Limit, middleware.Authenticate))

	router.ServeFiles("/menupic/*filepath", http.Dir("./static/menupic"))
}

// AddAdminRoutes mounts the operator REST surface.
func AddAdminRoutes(router *httprouter.Router, svc *admin.Service, rateLimiter *ratelim.RateLimiter) {
	router.POST("/api/admin/login", rateLimiter.Limit(svc.Login))

	router.GET("/api/admin/orders", middleware.Chain(svc.ListOrders, rateLimiter.Limit, middleware.Authenticate))
	router.PATCH("/api/admin/orders/:orderid/status", middleware.Chain(svc.UpdateOrderStatus, rateLimiter.Limit, middleware.Authenticate))
	router.GET("/api/admin/orders/:orderid/receipt", middleware.Chain(svc.Receipt, rateLimiter.Limit, middleware.Authenticate))
	router.GET("/api/admin/reservations", middleware.Chain(svc.ListReservations, rateLimiter.Limit, middleware.Authenticate))
	router.PATCH("/api/admin/reservations/:reservationid/status", middleware.Chain(svc.UpdateReservationStatus, rateLimiter.Limit, middleware.Authenticate))
}

// AddWSRoutes mounts the admin realtime channel.
func AddWSRoutes(router *httprouter.Router, hub *notify.Hub) {
	router.GET("/ws/admin", middleware.Authenticate(hub.ServeWS))
}
