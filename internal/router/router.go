package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/linguaprep/examroom-backend/internal/config"
	"github.com/linguaprep/examroom-backend/internal/handler"
	"github.com/linguaprep/examroom-backend/internal/middleware"
	"github.com/linguaprep/examroom-backend/internal/response"
	"github.com/linguaprep/examroom-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	StudentPortal *handler.StudentPortalHandler
	Media         *handler.MediaHandler
	WS            *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Apply brotli middleware globally.
	router.Use(middleware.Brotli())

	// Serve recording artifacts statically with aggressive caching (1 year);
	// artifact filenames are UUIDs, so entries never go stale.
	uploadsGroup := router.Group("/uploads")
	uploadsGroup.Use(middleware.CacheControl(31536000))
	{
		uploadsGroup.Static("/", cfg.UploadDir)
	}

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// Rate limiter for session entry (30 requests per minute per IP); the
	// enter endpoint fans out into pg and Redis writes.
	enterLimiter := middleware.NewRateLimiter(30, time.Minute)

	// ─── Student Group (JWT) ───────────────────────────────────────────
	studentAPI := router.Group("/api/v1/student")
	studentAPI.Use(middleware.RequireStudentJWT(authService))
	{
		studentAPI.POST("/exams/:exam_id/enter", enterLimiter.Middleware(), handlers.StudentPortal.EnterExam)
		studentAPI.GET("/exams/:exam_id/paper", handlers.StudentPortal.GetExamPaper)
		studentAPI.GET("/exams/:exam_id/state", handlers.StudentPortal.GetSessionState)
		studentAPI.POST("/exams/:exam_id/answers", handlers.StudentPortal.SaveAnswer)
		studentAPI.POST("/exams/:exam_id/submit", handlers.StudentPortal.SubmitSession)
		studentAPI.POST("/media/recordings", handlers.Media.UploadRecording)
	}

	// ─── WebSocket Group (Student WS Auth) ─────────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireStudentWSAuth(authService))
	{
		ws.GET("/student/exams/:exam_id/stream", handlers.WS.SessionStream)
	}

	return router
}
