package server

import (
	"github.com/gin-gonic/gin"
	"github.com/minutemate/minutemate/engine/infra/server/appstate"
	"github.com/minutemate/minutemate/engine/infra/server/middleware/size"
	"github.com/minutemate/minutemate/engine/infra/server/routes"
	"github.com/minutemate/minutemate/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func buildRouter(
	log logger.Logger,
	state *appstate.State,
	gatherer prometheus.Gatherer,
	maxBody int64,
	apiMiddleware ...gin.HandlerFunc,
) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(log))
	r.Use(appstate.StateMiddleware(state))

	if gatherer != nil {
		r.GET(routes.Metrics(), gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	api := r.Group(routes.Base())
	api.Use(apiMiddleware...)
	api.Use(size.BodySizeLimiter(maxBody))
	api.GET("/health", healthHandler)
	registerMeetingRoutes(api)
	return r
}
