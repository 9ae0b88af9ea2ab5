package routes

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/yoockh/voicechallan/internal/api/handlers"
	"github.com/yoockh/voicechallan/internal/api/middleware"
)

type Deps struct {
	Transcript *handlers.TranscriptHandler
	Challan    *handlers.ChallanHandler
	WS         *handlers.WSHandler // nil when no Redis stream is configured

	Logger      *logrus.Logger
	CORSOrigins []string
	JWT         *middleware.JWTConfig // nil disables auth
}

func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if d.Logger != nil {
		r.Use(middleware.RequestLogger(d.Logger))
	}
	corsCfg := cors.Config{
		AllowOrigins:  d.CORSOrigins,
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:  []string{"Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders: []string{middleware.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(d.CORSOrigins) == 0 {
		corsCfg.AllowOrigins = nil
		corsCfg.AllowAllOrigins = true
	}
	r.Use(cors.New(corsCfg))

	RegisterRoutes(r, d)
	return r
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "websocket": d.WS != nil})
	})

	api := r.Group("/api")
	ws := r.Group("/ws")
	if d.JWT != nil {
		api.Use(middleware.JWTAuth(*d.JWT))
		ws.Use(middleware.JWTAuth(*d.JWT))
	}

	api.POST("/parse-transcript", d.Transcript.Parse)

	api.POST("/drafts", d.Transcript.CreateDraft)
	api.GET("/drafts/:draft_id", d.Transcript.GetDraft)
	api.PUT("/drafts/:draft_id/prices", d.Transcript.SetPrices)
	api.DELETE("/drafts/:draft_id", d.Transcript.DiscardDraft)
	api.POST("/drafts/:draft_id/challan", d.Challan.FromDraft)

	api.POST("/challans/preview", d.Challan.Preview)

	if d.WS != nil {
		ws.GET("/drafts/:draft_id", d.WS.DraftWS)
	}
}
