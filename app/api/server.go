package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// NewServer creates a new HTTP server with all routes configured
func NewServer(handler *Handler, apiAccessKey string, version string) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: func(param gin.LogFormatterParams) string {
			return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
				param.ClientIP,
				param.TimeStamp.Format(time.RFC3339),
				param.Method,
				param.Path,
				param.Request.Proto,
				param.StatusCode,
				param.Latency,
				param.Request.UserAgent(),
				param.ErrorMessage,
			)
		},
		SkipPaths: []string{"/health"},
	}))

	r.Use(gin.Recovery())

	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-API-Key")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	setupRoutes(r, handler, apiAccessKey, version)

	return r
}

func setupRoutes(r *gin.Engine, handler *Handler, apiAccessKey string, version string) {
	r.GET("/health", handler.GetHealth)

	r.GET("/feeds", handler.ListFeeds)
	r.GET("/feeds/:name", handler.GetFeed)
	r.GET("/feeds/:name/html", handler.GetFeedHTML)

	// Everything that drives an instance or the bus is guarded when a key
	// is configured.
	control := r.Group("/")
	if apiAccessKey != "" {
		control.Use(authMiddleware(apiAccessKey))
		slog.Info("Control endpoints require authentication")
	} else {
		slog.Warn("Control endpoints are unauthenticated (API_ACCESS_KEY not set)")
	}
	{
		control.POST("/feeds/:name/next", handler.Advance)
		control.POST("/feeds/:name/prev", handler.Retreat)
		control.POST("/feeds/:name/more", handler.LoadMore)
		control.POST("/feeds/:name/clear", handler.ClearFilters)
		control.POST("/feeds/:name/reload", handler.ReloadFeed)
		control.POST("/feeds/:name/carousel/:dir", handler.ScrollCarousel)
		control.POST("/feeds/:name/hover", handler.SetHover)
		control.POST("/bus/filters", handler.SubmitFilters)
		control.GET("/bus/ws", handler.StreamEvents)
	}

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service":     "feedsync",
			"version":     version,
			"description": "Headless post-feed blocks kept in sync with a content-search endpoint",
			"endpoints": map[string]string{
				"feeds":    "/feeds",
				"feed":     "/feeds/<name>",
				"html":     "/feeds/<name>/html",
				"next":     "/feeds/<name>/next (POST)",
				"prev":     "/feeds/<name>/prev (POST)",
				"more":     "/feeds/<name>/more (POST)",
				"clear":    "/feeds/<name>/clear (POST)",
				"reload":   "/feeds/<name>/reload (POST)",
				"carousel": "/feeds/<name>/carousel/<prev|next> (POST)",
				"hover":    "/feeds/<name>/hover (POST)",
				"filters":  "/bus/filters (POST)",
				"events":   "/bus/ws (websocket)",
				"health":   "/health",
			},
			"api_status": map[string]interface{}{
				"auth_required": apiAccessKey != "",
				"header":        "X-API-Key",
			},
		})
	})

	r.GET("/favicon.ico", func(c *gin.Context) {
		c.Status(204)
	})
}

// authMiddleware accepts the key from X-API-Key or a Bearer token
func authMiddleware(apiAccessKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		providedKey := c.GetHeader("X-API-Key")

		if providedKey == "" {
			authHeader := c.GetHeader("Authorization")
			if strings.HasPrefix(authHeader, "Bearer ") {
				providedKey = strings.TrimPrefix(authHeader, "Bearer ")
			}
		}

		if providedKey == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "API key required",
				"message": "Provide API key in X-API-Key header or Authorization: Bearer <key>",
			})
			c.Abort()
			return
		}

		if providedKey != apiAccessKey {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "Invalid API key",
				"message": "The provided API key is not valid",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
