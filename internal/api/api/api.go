package api

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/wb-go/wbf/ginext"

	"eventhub/cmd/middleware"
	"eventhub/internal/auth"
	"eventhub/internal/service"
)

const defaultMaxUpload = 8 << 20

type Routers struct {
	Service *service.Service
	Tokens  *auth.TokenIssuer
	// Metrics is served on /metrics when set.
	Metrics        prometheus.Gatherer
	MaxUploadBytes int64
}

func NewRouters(r *Routers) *ginext.Engine {
	if r.MaxUploadBytes <= 0 {
		r.MaxUploadBytes = defaultMaxUpload
	}
	app := ginext.New("release")

	app.Use(middleware.LoggingMiddleware())
	app.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Authorization"},
	}))

	app.GET("/healthz", func(c *ginext.Context) {
		c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	if r.Metrics != nil {
		app.GET("/metrics", func(c *ginext.Context) {
			promhttp.HandlerFor(r.Metrics, promhttp.HandlerOpts{}).ServeHTTP(c.Writer, c.Request)
		})
	}

	public := app.Group("/v1")
	public.POST("/auth/register", r.Register)
	public.POST("/auth/login", r.Login)
	public.POST("/auth/verify", r.VerifyLoginCode)
	public.POST("/auth/forgot-password", r.ForgotPassword)
	public.POST("/auth/reset-password", r.ResetPassword)
	public.GET("/invitations/:id", r.GetInvitation)
	public.POST("/invitations/:id/rsvp", r.RespondToInvitation)
	public.GET("/vendors", r.ListVendors)
	public.GET("/vendors/:id", r.GetVendor)

	private := app.Group("/v1")
	private.Use(middleware.Authenticate(r.Tokens, r.Service))

	private.GET("/me", r.GetProfile)
	private.PATCH("/me", r.UpdateProfile)
	private.GET("/me/invitations", r.ListMyInvitations)
	private.GET("/me/assignments", r.ListMyAssignments)

	private.POST("/events", r.CreateEvent)
	private.GET("/events", r.ListEvents)
	private.GET("/events/:id", r.GetEvent)
	private.PATCH("/events/:id", r.UpdateEvent)
	private.DELETE("/events/:id", r.DeleteEvent)

	private.GET("/events/:id/budget", r.GetBudget)
	private.PUT("/events/:id/budget/total", r.SetTotalBudget)
	private.POST("/events/:id/budget/expenses", r.AddExpense)
	private.DELETE("/events/:id/budget/expenses/:index", r.RemoveExpense)

	private.POST("/events/:id/guests", r.AddGuest)
	private.GET("/events/:id/guests", r.ListGuests)
	private.PATCH("/guests/:id", r.UpdateGuest)
	private.DELETE("/guests/:id", r.RemoveGuest)
	private.POST("/guests/:id/invite", r.SendInvitation)
	private.POST("/guests/:id/resend", r.ResendInvitation)

	private.GET("/events/:id/assignments", r.ListEventAssignments)
	private.POST("/assignments", r.HireVendor)
	private.GET("/assignments/:id", r.GetAssignment)
	private.PUT("/assignments/:id", r.EditAssignment)
	private.PATCH("/assignments/:id/status", r.UpdateAssignmentStatus)
	private.POST("/assignments/:id/payment-intent", r.CreatePaymentIntent)
	private.POST("/assignments/:id/confirm-payment", r.ConfirmPayment)
	private.GET("/assignments/:id/payments", r.ListPayments)

	private.POST("/vendor/profile", r.CreateVendorProfile)
	private.GET("/vendor/profile", r.GetMyVendorProfile)
	private.PUT("/vendor/profile", r.UpdateVendorProfile)
	private.DELETE("/vendor/profile", r.DeleteVendorProfile)
	private.POST("/vendor/portfolio", r.AddPortfolioItem)
	private.DELETE("/vendor/portfolio", r.RemovePortfolioItem)

	private.POST("/messages", r.SendMessage)
	private.GET("/messages/conversations", r.ListConversations)
	private.GET("/messages/unread", r.UnreadCount)
	private.GET("/messages/with/:userId", r.GetThread)

	private.GET("/admin/users", r.ListUsers)
	private.PATCH("/admin/users/:id/block", r.SetUserBlocked)
	private.DELETE("/admin/users/:id", r.DeleteUser)

	return app
}
