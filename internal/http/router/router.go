package router

import (
	"github.com/gin-gonic/gin"

	"github.com/installmarket/installmarket-backend/internal/config"
	"github.com/installmarket/installmarket-backend/internal/http/handlers"
	"github.com/installmarket/installmarket-backend/internal/http/middleware"
	"github.com/installmarket/installmarket-backend/internal/models"
	"github.com/installmarket/installmarket-backend/internal/service"
)

func SetupRouter(
	cfg *config.Config,
	authHandler *handlers.AuthHandler,
	jobHandler *handlers.JobHandler,
	bidHandler *handlers.BidHandler,
	paymentHandler *handlers.PaymentHandler,
	disputeHandler *handlers.DisputeHandler,
	mediaHandler *handlers.MediaHandler,
	wsHandler *handlers.WSHandler,
	healthHandler *handlers.HealthHandler,
	tokenManager *service.TokenManager,
) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.GET("/health", healthHandler.Health)

	api := r.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.Use(middleware.RateLimitMiddleware(cfg.RateLimitLimit, cfg.RateLimitPeriod))
	{
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/refresh", authHandler.Refresh)
	}

	api.GET("/ws", wsHandler.Handle)

	auth := middleware.AuthMiddleware(tokenManager)
	posterOnly := middleware.RequireRole(models.RolePoster)
	installerOnly := middleware.RequireRole(models.RoleInstaller)
	adminOnly := middleware.RequireRole(models.RoleAdmin)
	idParam := middleware.UUIDValidator("id")

	protected := api.Group("/")
	protected.Use(auth)
	{
		protected.GET("/auth/me", authHandler.Me)

		// Лента и карточка заявки
		protected.GET("/jobs", jobHandler.ListOpen)
		protected.GET("/jobs/mine", posterOnly, jobHandler.ListMine)
		protected.GET("/jobs/assigned", installerOnly, jobHandler.ListAssigned)
		protected.GET("/jobs/:id", idParam, jobHandler.Get)
		protected.GET("/jobs/:id/history", idParam, jobHandler.History)

		// Жизненный цикл заявки: сторона заказчика
		protected.POST("/jobs", posterOnly, jobHandler.Create)
		protected.PUT("/jobs/:id", idParam, posterOnly, jobHandler.Update)
		protected.POST("/jobs/:id/post", idParam, posterOnly, jobHandler.Post)
		protected.POST("/jobs/:id/cancel", idParam, posterOnly, jobHandler.Cancel)
		protected.POST("/jobs/:id/close-unbid", idParam, posterOnly, jobHandler.CloseUnbid)
		protected.POST("/jobs/:id/promote", idParam, posterOnly, jobHandler.Promote)
		protected.POST("/jobs/:id/archive", idParam, posterOnly, jobHandler.Archive)
		protected.POST("/jobs/:id/return", idParam, posterOnly, jobHandler.ReturnWork)
		protected.POST("/jobs/:id/approve", idParam, posterOnly, jobHandler.Approve)
		protected.GET("/jobs/:id/otps", idParam, posterOnly, jobHandler.GetOtps)

		// Жизненный цикл заявки: сторона монтажника
		protected.POST("/jobs/:id/accept-assignment", idParam, installerOnly, jobHandler.AcceptAssignment)
		protected.POST("/jobs/:id/decline-assignment", idParam, installerOnly, jobHandler.DeclineAssignment)
		protected.POST("/jobs/:id/start", idParam, installerOnly, jobHandler.StartWork)
		protected.POST("/jobs/:id/submit", idParam, installerOnly, jobHandler.SubmitWork)
		protected.POST("/jobs/:id/complete", idParam, installerOnly, jobHandler.Complete)

		// Перенос даты: обе стороны
		protected.POST("/jobs/:id/reschedule", idParam, jobHandler.ProposeReschedule)
		protected.POST("/jobs/:id/reschedule/respond", idParam, jobHandler.RespondReschedule)
		protected.POST("/jobs/:id/reschedule/dismiss", idParam, jobHandler.DismissReschedule)

		// Отклики
		protected.POST("/jobs/:id/bids", idParam, installerOnly, bidHandler.Place)
		protected.GET("/jobs/:id/bids", idParam, bidHandler.ListForJob)
		protected.GET("/bids/mine", installerOnly, bidHandler.ListMine)
		protected.POST("/bids/:id/withdraw", idParam, installerOnly, bidHandler.Withdraw)
		protected.POST("/bids/:id/accept", idParam, middleware.RequireRole(models.RolePoster, models.RoleAdmin), bidHandler.Accept)

		// Эскроу
		protected.POST("/jobs/:id/payment/order", idParam, posterOnly, paymentHandler.CreateOrder)
		protected.POST("/jobs/:id/payment/verify", idParam, posterOnly, paymentHandler.Verify)
		protected.GET("/jobs/:id/payment", idParam, paymentHandler.GetJobTransaction)
		protected.GET("/payments/mine", paymentHandler.ListMine)

		// Споры
		protected.POST("/jobs/:id/disputes", idParam, disputeHandler.Open)
		protected.POST("/disputes", disputeHandler.OpenGeneral)
		protected.GET("/disputes/mine", disputeHandler.ListMine)
		protected.GET("/disputes/:id", idParam, disputeHandler.Get)
		protected.POST("/disputes/:id/messages", idParam, disputeHandler.AddMessage)

		// Подтверждения работ
		protected.POST("/jobs/:id/media", idParam, installerOnly, mediaHandler.Upload)
		protected.GET("/jobs/:id/media", idParam, mediaHandler.ListForJob)
		protected.GET("/media/:id", idParam, mediaHandler.Download)

		// Административный контур
		admin := protected.Group("/admin")
		admin.Use(adminOnly)
		{
			admin.GET("/disputes", disputeHandler.List)
			admin.POST("/disputes/:id/freeze", idParam, disputeHandler.Freeze)
			admin.POST("/disputes/:id/unfreeze", idParam, disputeHandler.Unfreeze)
			admin.POST("/disputes/:id/resolve", idParam, disputeHandler.Resolve)
		}
	}

	return r
}
