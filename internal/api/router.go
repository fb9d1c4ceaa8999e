package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/boardhub/boardhub/internal/app"
	iauth "github.com/boardhub/boardhub/internal/auth"
	"github.com/boardhub/boardhub/internal/handlers"
	"github.com/boardhub/boardhub/internal/middleware"
	"github.com/boardhub/boardhub/internal/notifications"
	"github.com/boardhub/boardhub/internal/permissions"
	"github.com/boardhub/boardhub/internal/services"
)

// NewRouter builds the Gin engine, wires middleware and registers all routes.
func NewRouter(db *gorm.DB, tokens *iauth.TokenService, cfg *app.Config, notifier *notifications.Notifier) (*gin.Engine, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if tokens == nil {
		return nil, fmt.Errorf("token service must be provided")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config must be provided")
	}
	if notifier == nil {
		return nil, fmt.Errorf("notifier must be provided")
	}

	checker, err := permissions.NewChecker(db)
	if err != nil {
		return nil, err
	}

	userSvc, err := services.NewUserService(db, tokens, notifier)
	if err != nil {
		return nil, err
	}
	accountSvc, err := services.NewAccountService(db, checker)
	if err != nil {
		return nil, err
	}
	boardSvc, err := services.NewBoardService(db, checker)
	if err != nil {
		return nil, err
	}
	collaboratorSvc, err := services.NewCollaboratorService(db, checker, notifier)
	if err != nil {
		return nil, err
	}
	requestSvc, err := services.NewRequestService(db, checker, notifier)
	if err != nil {
		return nil, err
	}
	invitationSvc, err := services.NewInvitationService(db, checker, notifier)
	if err != nil {
		return nil, err
	}

	authHandler := handlers.NewAuthHandler(userSvc)
	accountHandler := handlers.NewAccountHandler(accountSvc, invitationSvc)
	boardHandler := handlers.NewBoardHandler(boardSvc)
	collaboratorHandler := handlers.NewCollaboratorHandler(collaboratorSvc)
	requestHandler := handlers.NewRequestHandler(requestSvc)
	invitationHandler := handlers.NewInvitationHandler(invitationSvc)
	notificationHandler := handlers.NewNotificationHandler(notifier)

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())

	r.NoRoute(middleware.NotFoundHandler)

	// Health endpoint (public)
	r.GET("/health", handlers.Health(db))

	if cfg.Monitoring.Prometheus.Enabled {
		endpoint := cfg.Monitoring.Prometheus.Endpoint
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	requireAuth := middleware.Auth(tokens)
	optionalAuth := middleware.OptionalAuth(tokens)

	// Public auth routes
	auth := r.Group("/api/auth")
	{
		auth.POST("/signup", authHandler.Signup)
		auth.POST("/signin", authHandler.Signin)
		auth.POST("/forgot-password", authHandler.ForgotPassword)
		auth.POST("/reset-password", authHandler.ResetPassword)

		auth.GET("/me", requireAuth, authHandler.Me)
		auth.POST("/change-password", requireAuth, authHandler.ChangePassword)
	}

	// Public signup endpoints
	r.POST("/api/signup/:slug/check", accountHandler.CheckSignupDomain)
	r.POST("/api/signup-requests", invitationHandler.RegisterSignupInterest)

	// Accounts
	accounts := r.Group("/api/accounts", requireAuth)
	{
		accounts.POST("", accountHandler.Create)
		accounts.GET("", accountHandler.List)
		accounts.GET("/:id", accountHandler.Get)
		accounts.GET("/:id/collaborators", accountHandler.ListCollaborators)
		accounts.POST("/:id/collaborators", accountHandler.AddCollaborator)
		accounts.DELETE("/:id/collaborators/:userID", accountHandler.RemoveCollaborator)
		accounts.POST("/:id/transfer-ownership", accountHandler.TransferOwnership)
		accounts.POST("/:id/domains", accountHandler.AddEmailDomain)
		accounts.DELETE("/:id/domains/:domain", accountHandler.RemoveEmailDomain)
		accounts.PUT("/:id/signup", accountHandler.SetAllowSignup)
		accounts.GET("/:id/invitations", invitationHandler.ListForAccount)
	}

	// Boards. Reads run under optional auth so shared boards stay public.
	boards := r.Group("/api/boards")
	{
		boards.POST("", requireAuth, boardHandler.Create)
		boards.GET("", optionalAuth, boardHandler.List)
		boards.GET("/:id", optionalAuth, boardHandler.Get)
		boards.PUT("/:id", requireAuth, boardHandler.Update)
		boards.DELETE("/:id", requireAuth, boardHandler.Delete)
		boards.GET("/:id/collaborators", optionalAuth, boardHandler.ListCollaborators)
		boards.POST("/:id/collaborators", requireAuth, collaboratorHandler.Create)
		boards.GET("/:id/requests", requireAuth, requestHandler.ListForBoard)
		boards.POST("/:id/requests", requireAuth, requestHandler.Create)
	}

	// Board collaborators
	collaborators := r.Group("/api/collaborators")
	{
		collaborators.GET("/:id", optionalAuth, collaboratorHandler.Get)
		collaborators.DELETE("/:id", requireAuth, collaboratorHandler.Delete)
	}

	// Join request moderation
	requests := r.Group("/api/requests", requireAuth)
	{
		requests.POST("/:id/accept", requestHandler.Accept)
		requests.POST("/:id/reject", requestHandler.Reject)
	}

	// Invitations
	invitations := r.Group("/api/invitations", requireAuth)
	{
		invitations.POST("", invitationHandler.Create)
		invitations.DELETE("/:id", invitationHandler.Revoke)
	}

	// Notifications
	notificationRoutes := r.Group("/api/notifications", requireAuth)
	{
		notificationRoutes.GET("", notificationHandler.List)
		notificationRoutes.POST("/:id/read", notificationHandler.MarkRead)
		notificationRoutes.GET("/stream", notificationHandler.Stream)
	}

	return r, nil
}
