package api

import (
	oidc "github.com/coreos/go-oidc"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"

	"github.com/Abdirazakf/file-uploader/internal/api/handlers"
	"github.com/Abdirazakf/file-uploader/internal/auth"
	"github.com/Abdirazakf/file-uploader/internal/configuration"
)

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", c.GetHeader("Origin"))
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, PATCH, PUT, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(200)
			return
		}
		c.Next()
	}
}

// NewRouter assembles the engine: CORS, cookie sessions, and the API
// surface. verifier may be nil (session-only auth).
func NewRouter(cfg *configuration.Config, h *handlers.Handler, verifier *oidc.IDTokenVerifier) *gin.Engine {
	r := gin.Default()
	r.Use(corsMiddleware())

	store := cookie.NewStore([]byte(cfg.Session.Secret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   cfg.Session.MaxAge,
		HttpOnly: true,
	})
	r.Use(sessions.Sessions(cfg.Session.CookieName, store))

	requireAuth := auth.RequireAuth(verifier)

	api := r.Group("/api")
	{
		api.GET("/health", h.HealthCheck)

		api.POST("/signup", h.Signup)
		api.POST("/login", h.Login)
		api.GET("/auth/status", h.AuthStatus)
		api.POST("/auth/logout", h.Logout)

		folders := api.Group("/folders", requireAuth)
		{
			folders.GET("", h.GetUserFolders)
			folders.POST("", h.CreateFolder)
			folders.GET("/:id", h.GetFolderByID)
			folders.PUT("/:id", h.UpdateFolder)
			folders.DELETE("/:id", h.DeleteFolder)
		}

		files := api.Group("/files", requireAuth)
		{
			files.GET("", h.GetRootFiles)
			files.GET("/all", h.GetAllFiles)
			files.GET("/search", h.SearchFiles)
			files.POST("", h.UploadFile)
			files.GET("/:id", h.GetFileByID)
			files.PUT("/:id", h.UpdateFile)
			files.DELETE("/:id", h.DeleteFile)
			files.GET("/:id/download", h.DownloadFile)
		}
	}

	return r
}
