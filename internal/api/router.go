package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/presence/internal/api/handlers"
	"github.com/your-org/presence/internal/api/ws"
	"github.com/your-org/presence/internal/attendance"
	"github.com/your-org/presence/internal/auth"
	"github.com/your-org/presence/internal/face"
	"github.com/your-org/presence/internal/queue"
	"github.com/your-org/presence/internal/storage"
)

type RouterConfig struct {
	APIKey          string
	DB              *storage.PostgresStore
	Photos          *storage.PhotoStore
	Producer        *queue.Producer
	Hub             *ws.Hub
	Registry        *face.Registry
	Engine          *attendance.Engine
	Sweeper         *attendance.Sweeper
	VerifyThreshold float64
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware())
	r.Use(cors.Default())

	// System endpoints (no auth)
	systemH := handlers.NewSystemHandler(cfg.DB, cfg.Photos, cfg.Producer)
	r.GET("/healthz", systemH.Healthz)
	r.GET("/readyz", systemH.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 (with auth)
	v1 := r.Group("/v1")
	v1.Use(auth.APIKeyMiddleware(cfg.APIKey))

	// Live attendance feed
	v1.GET("/ws", cfg.Hub.HandleWS)

	// Face enrollment & matching
	faceH := handlers.NewFaceHandler(cfg.Registry, cfg.Photos, cfg.VerifyThreshold)
	v1.POST("/faces/:id/enroll", faceH.Enroll)
	v1.GET("/faces/:id", faceH.Get)
	v1.DELETE("/faces/:id", faceH.Delete)
	v1.POST("/faces/:id/verify", faceH.Verify)
	v1.POST("/identify", faceH.Identify)
	v1.GET("/registrations/stats", faceH.Stats)

	// Attendance
	attH := handlers.NewAttendanceHandler(cfg.Engine, cfg.Sweeper, cfg.Registry, cfg.Photos, cfg.Producer)
	v1.POST("/attendance/checkin", attH.CheckInFace)
	v1.POST("/attendance/checkin/manual", attH.CheckInManual)
	v1.GET("/attendance/today", attH.Today)
	v1.GET("/attendance/history", attH.History)
	v1.GET("/attendance/stats", attH.Stats)
	v1.GET("/attendance/summary", attH.Summary)
	v1.GET("/attendance/records/:id/photo", attH.Photo)
	v1.POST("/attendance/sweep", attH.Sweep)

	return r
}
