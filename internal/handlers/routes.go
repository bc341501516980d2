package handlers

import (
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/router"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ticketing/monitoring"
	"ticketing/security"
)

// API groups every handler with the middleware guarding it.
type API struct {
	Auth        *AuthHandler
	Events      *EventHandler
	Categories  *CategoryHandler
	TicketTypes *TicketTypeHandler
	Orders      *OrderHandler
	Tickets     *TicketHandler
	Users       *UserHandler
	Uploads     *UploadHandler
	Admin       *AdminHandler

	Authenticator *security.Authenticator
	EnableMetrics bool

	// Limiter is nil when redis is not configured.
	Limiter *security.RateLimiter
}

type middleware = func(e *core.RequestEvent) error

// Register mounts the API under /api/v1 plus /health and /metrics.
func (a *API) Register(r *router.Router[*core.RequestEvent]) {
	r.GET("/health", a.Admin.Health)
	if a.EnableMetrics {
		r.GET("/metrics", apis.WrapStdHandler(promhttp.Handler()))
	}

	v1 := r.Group("/api/v1")
	if a.EnableMetrics {
		v1.BindFunc(monitoring.RequestDuration())
	}

	authn := a.Authenticator.Authenticate()
	optional := a.Authenticator.OptionalAuth()
	admin := security.RequireAdmin()

	auth := v1.Group("/auth")
	auth.POST("/register", a.Auth.Register).BindFunc(a.throttle("register")...)
	auth.POST("/login", a.Auth.Login).BindFunc(a.throttle("login")...)
	auth.POST("/admin/login", a.Auth.AdminLogin).BindFunc(a.throttle("login")...)
	auth.POST("/verify-otp", a.Auth.VerifyOTP).BindFunc(a.throttle("verify-otp")...)
	auth.POST("/resend-otp", a.Auth.ResendOTP).BindFunc(a.throttle("resend-otp")...)
	auth.POST("/request-password-reset", a.Auth.RequestPasswordReset).BindFunc(a.throttle("password-reset")...)
	auth.POST("/reset-password", a.Auth.ResetPassword).BindFunc(a.throttle("password-reset")...)
	auth.POST("/logout", a.Auth.Logout).BindFunc(authn)
	auth.GET("/me", a.Auth.Me).BindFunc(authn)
	auth.POST("/me", a.Auth.Me).BindFunc(authn)

	events := v1.Group("/events")
	events.GET("", a.Events.List).BindFunc(optional)
	events.GET("/search", a.Events.Search).BindFunc(optional)
	events.GET("/{id}", a.Events.Get).BindFunc(optional)
	events.POST("", a.Events.Create).BindFunc(authn)
	events.PUT("/{id}", a.Events.Update).BindFunc(authn)
	events.PATCH("/{id}", a.Events.Update).BindFunc(authn)
	events.DELETE("/{id}", a.Events.Delete).BindFunc(authn)
	events.GET("/{id}/attendees", a.Events.Attendees).BindFunc(authn)
	events.GET("/{eventId}/ticket-types", a.TicketTypes.List).BindFunc(optional)
	events.POST("/{eventId}/ticket-types", a.TicketTypes.Create).BindFunc(authn)
	events.GET("/{eventId}/tickets", a.Tickets.ListForEvent).BindFunc(authn)
	events.DELETE("/{eventId}/tickets", a.Tickets.CancelMine).BindFunc(authn)

	categories := v1.Group("/categories")
	categories.GET("", a.Categories.List)
	categories.POST("", a.Categories.Create).BindFunc(authn, admin)
	categories.PUT("/{id}", a.Categories.Update).BindFunc(authn, admin)
	categories.DELETE("/{id}", a.Categories.Delete).BindFunc(authn, admin)

	ticketTypes := v1.Group("/ticket-types").BindFunc(authn)
	ticketTypes.PUT("/{id}", a.TicketTypes.Update)
	ticketTypes.PATCH("/{id}", a.TicketTypes.Update)
	ticketTypes.DELETE("/{id}", a.TicketTypes.Delete)

	orders := v1.Group("/orders").BindFunc(authn)
	orders.GET("", a.Orders.List)
	orders.POST("", a.Orders.Place)
	orders.GET("/{id}", a.Orders.Get)
	orders.POST("/{id}/cancel", a.Orders.Cancel)

	tickets := v1.Group("/tickets").BindFunc(authn)
	tickets.GET("/{id}", a.Tickets.Get)
	tickets.PUT("/{id}", a.Tickets.UpdateStatus)
	tickets.POST("/{id}/verify", a.Tickets.Verify)
	tickets.GET("/{id}/qr", a.Tickets.QRCode)
	tickets.GET("/{id}/pdf", a.Tickets.PDF)

	v1.POST("/check-in/tickets", a.Tickets.CheckIn).BindFunc(authn)

	users := v1.Group("/users").BindFunc(authn)
	users.POST("", a.Users.Create)
	users.GET("", a.Users.List)
	users.GET("/{id}", a.Users.Get)
	users.PUT("/{id}", a.Users.Update)
	users.PATCH("/{id}", a.Users.Update)
	users.DELETE("/{id}", a.Users.Delete)

	v1.POST("/uploads", a.Uploads.Upload).BindFunc(authn)
	v1.GET("/uploads", a.Uploads.List).BindFunc(authn)
	v1.GET("/uploads/{key}", a.Uploads.Serve)
	v1.DELETE("/uploads/{key}", a.Uploads.Delete).BindFunc(authn)

	v1.GET("/admin/dashboard", a.Admin.Dashboard).BindFunc(authn, admin)
}

func (a *API) throttle(scope string) []middleware {
	if a.Limiter == nil {
		return nil
	}
	return []middleware{a.Limiter.AntiBot(), a.Limiter.Limit(scope)}
}
