package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/vignan/diaries/config"
	"github.com/vignan/diaries/controllers"
	"github.com/vignan/diaries/middleware"
	"github.com/vignan/diaries/models"
	"github.com/vignan/diaries/realtime"
	"github.com/vignan/diaries/utils"
)

const (
	embeddingsPerMinute = 10
	limitWindow         = time.Minute
)

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(db *gorm.DB, hub *realtime.Hub, mailer utils.Mailer) *gin.Engine {
	// Load config and set Gin mode from configuration
	cfg := config.Get()
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(middleware.RequestID())
	// Access log goes to its own rolling file
	gl, err := utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress)
	if err != nil {
		utils.Sugar.Warnf("gin log file unavailable, logging requests to the app log: %v", err)
		gl = utils.Logger
	}
	r.Use(utils.AccessLog(gl))
	r.Use(utils.Recovery(gl))

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "If-Match", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", "ETag", "Retry-After", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		// credentials cannot be combined with a wildcard origin
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})
	r.GET("/ws", realtime.ServeWS(hub, cfg.AllowedOrigins))

	authController := controllers.NewAuthController(db, mailer)
	postController := controllers.NewPostController(db)
	commentController := controllers.NewCommentController(db, hub)
	collectionController := controllers.NewCollectionController(db)
	userController := controllers.NewUserController(db)
	adminController := controllers.NewAdminController(db)
	aiController := controllers.NewAIController(utils.MockTextService{})
	assistantController := controllers.NewAssistantController(db, utils.MockTextService{})

	api := r.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.Use(middleware.NewTokenBucket(cfg.RateLimitPerMinute).Middleware())
	authGroup.POST("/register", authController.Register)
	authGroup.POST("/login", authController.Login)
	authGroup.POST("/forgot", authController.ForgotPassword)
	authGroup.POST("/reset", authController.ResetPassword)
	authGroup.POST("/logout", middleware.AuthRequired(), authController.Logout)
	authGroup.GET("/me", middleware.AuthRequired(), authController.Me)
	authGroup.PATCH("/profile", middleware.AuthRequired(), authController.UpdateProfile)

	writer := middleware.RequireCapability(models.CapWritePosts)
	postsGroup := api.Group("/posts")
	postsGroup.GET("", postController.Feed)
	postsGroup.GET("/tags", postController.Tags)
	postsGroup.GET("/slug/:slug", postController.GetBySlug)
	postsGroup.GET("/id/:id", middleware.AuthRequired(), postController.GetByID)
	postsGroup.GET("/drafts", middleware.AuthRequired(), postController.MyDrafts)
	postsGroup.POST("/drafts", middleware.AuthRequired(), writer, postController.CreateDraft)
	postsGroup.PUT("/:id", middleware.AuthRequired(), writer, postController.UpdatePost)
	postsGroup.POST("/:id/publish", middleware.AuthRequired(), writer, postController.Publish)
	postsGroup.POST("/:id/like", middleware.AuthRequired(), postController.Like)
	postsGroup.POST("/:id/react/:type", middleware.AuthRequired(), postController.React)
	postsGroup.DELETE("/:id", middleware.AuthRequired(), postController.DeletePost)

	commentLimiter := middleware.NewWindowLimiter("comments", cfg.CommentLimitPerMinute, limitWindow)
	commentsGroup := api.Group("/comments")
	commentsGroup.GET("/:postId", middleware.AuthOptional(), commentController.List)
	commentsGroup.POST("/:postId", middleware.AuthOptional(), commentLimiter.Middleware(), commentController.Create)

	collectionsGroup := api.Group("/collections")
	collectionsGroup.GET("/public/:username/:name", collectionController.Public)
	collectionsGroup.GET("", middleware.AuthRequired(), collectionController.Get)
	collectionsGroup.PUT("", middleware.AuthRequired(), collectionController.Replace)
	collectionsGroup.PUT("/visibility", middleware.AuthRequired(), collectionController.SetVisibility)

	api.GET("/users/:username", userController.GetPublic)

	adminGroup := api.Group("/admin")
	adminGroup.Use(middleware.AuthRequired(), middleware.RequireRoles(models.RoleAdmin))
	adminGroup.GET("/stats", adminController.Stats)
	adminGroup.GET("/users", adminController.Users)
	adminGroup.GET("/posts", adminController.Posts)

	// every assistant endpoint has its own window
	aiLimit := func(name string, perMinute int) gin.HandlerFunc {
		return middleware.NewWindowLimiter("ai:"+name, perMinute, limitWindow).Middleware()
	}
	aiGroup := api.Group("/ai")
	aiGroup.POST("/rewrite", aiLimit("rewrite", cfg.AILimitPerMinute), aiController.Rewrite)
	aiGroup.POST("/tags", aiLimit("tags", cfg.AILimitPerMinute), aiController.Tags)
	aiGroup.POST("/summarize", aiLimit("summarize", cfg.AILimitPerMinute), aiController.Summarize)
	aiGroup.POST("/translate", aiLimit("translate", cfg.AILimitPerMinute), aiController.Translate)
	aiGroup.POST("/tweet_thread", aiLimit("tweet", cfg.AILimitPerMinute), aiController.TweetThread)
	aiGroup.POST("/embeddings", aiLimit("embed", embeddingsPerMinute), aiController.Embeddings)

	api.POST("/assistant", middleware.AuthOptional(), aiLimit("assistant", cfg.AILimitPerMinute), assistantController.Ask)

	r.NoRoute(func(ctx *gin.Context) {
		utils.Error(ctx, http.StatusNotFound, 40400, "route not found")
	})

	return r
}
