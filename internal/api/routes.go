package api

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"portfolioHub/internal/api/middleware"
	"portfolioHub/internal/auth"
	"portfolioHub/internal/config"
	"portfolioHub/internal/drafts"
	"portfolioHub/internal/probe"
)

// Dependencies are the services behind the /v1 routes.
type Dependencies struct {
	Config      *config.Config
	Logger      *slog.Logger
	Sessions    *auth.Sessions
	Portfolio   PortfolioReader
	Drafts      *drafts.Service
	Probes      *probe.Registry
	Submitter   Submitter
	Intake      AttachmentIntake
	Attachments interface {
		AttachmentStore
		PrefixRemover
	}
	Redis redis.UniversalClient
	Queue TaskEnqueuer
}

// RegisterRoutes mounts the browser API under /v1.
func RegisterRoutes(router *gin.Engine, deps Dependencies) {
	cfg := deps.Config
	cookie := SessionCookie{
		Name:   cfg.Session.CookieName,
		Secure: cfg.Session.CookieSecure,
		TTL:    cfg.Session.TTL,
	}
	ender := sessionEnder{sessions: deps.Sessions, probes: deps.Probes, cookie: cookie}

	authHandler := NewAuthHandler(deps.Sessions, deps.Drafts, deps.Probes, deps.Attachments, deps.Redis, deps.Logger, cookie, LoginLimits{
		PerHour:       cfg.Session.LoginRateLimit,
		LockThreshold: cfg.Session.LoginLockThreshold,
		LockTTL:       cfg.Session.LoginLockTTL,
	})
	portfolioHandler := NewPortfolioHandler(deps.Sessions, deps.Portfolio, deps.Probes, ender, cfg.Probe.Wait)
	draftHandler := NewDraftHandler(deps.Drafts, deps.Portfolio, deps.Submitter, deps.Intake, deps.Attachments, deps.Probes, ender, cfg.Attachment.MaxBytes)
	contactHandler := NewContactHandler(deps.Queue, deps.Redis, cfg.Contact.RateLimit, cfg.Contact.RateWindow)

	sessionMiddleware := middleware.SessionMiddleware(cookie.Name, deps.Sessions)

	v1 := router.Group("/v1")
	{
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
			authGroup.POST("/logout", sessionMiddleware, authHandler.Logout)
			authGroup.GET("/user", sessionMiddleware, authHandler.User)
		}

		portfolioGroup := v1.Group("/portfolio")
		{
			portfolioGroup.GET("/status", sessionMiddleware, portfolioHandler.Status)
			portfolioGroup.GET("/public/:userId", portfolioHandler.Public)
			portfolioGroup.GET("/download/:id", portfolioHandler.Download)
		}

		draftGroup := v1.Group("/drafts")
		draftGroup.Use(sessionMiddleware)
		{
			draftGroup.POST("", draftHandler.Start)
			draftGroup.GET("/current", draftHandler.Get)
			draftGroup.DELETE("/current", draftHandler.Discard)
			draftGroup.PATCH("/current/fields", draftHandler.SetField)
			draftGroup.POST("/current/validate", draftHandler.ValidateAll)
			draftGroup.POST("/current/submit", draftHandler.Submit)
			draftGroup.GET("/current/attachment", draftHandler.GetAttachment)
			draftGroup.PUT("/current/attachment", draftHandler.PutAttachment)
			draftGroup.DELETE("/current/attachment", draftHandler.DeleteAttachment)
			draftGroup.POST("/current/:group", draftHandler.AddEntry)
			draftGroup.PATCH("/current/:group/:index", draftHandler.UpdateEntry)
			draftGroup.DELETE("/current/:group/:index", draftHandler.RemoveEntry)
		}

		v1.POST("/contact", contactHandler.Submit)
	}
}
