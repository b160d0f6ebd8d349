package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/wajdi-kharroubi/isi-surveillance/internal/config"
	"github.com/wajdi-kharroubi/isi-surveillance/internal/solver"
	"github.com/wajdi-kharroubi/isi-surveillance/pkg/logger"
	"github.com/wajdi-kharroubi/isi-surveillance/pkg/middleware/requestid"
)

// NewRouter assembles the gin.Engine exposing the scheduler over HTTP, the
// same way the teacher's cmd/api-gateway wires its engine: recovery,
// request-id, structured access logging, health check, metrics, then the
// versioned API group.
func NewRouter(cfg *config.Config, logr *zap.Logger, metrics *solver.Metrics) *gin.Engine {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestid.Middleware())
	r.Use(logger.GinMiddleware(logr))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if reg := metrics.Registry(); reg != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	}

	svc := solver.NewService(validator.New(), logr, metrics)
	schedulerHandler := NewSchedulerHandler(svc)

	api := r.Group(cfg.APIPrefix)
	schedulerHandler.Register(api)

	return r
}
