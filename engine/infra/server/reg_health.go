package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/minutemate/minutemate/engine/infra/server/appstate"
	"github.com/minutemate/minutemate/engine/infra/server/router"
)

const healthCheckTimeout = 2 * time.Second

// Health endpoint
//
//	@Summary      Get server health
//	@Description  Returns overall service health and the status of each backing service
//	@Tags         health
//	@Produce      json
//	@Success      200 {object} map[string]interface{} "Service is healthy"
//	@Failure      503 {object} map[string]interface{} "A backing service is unreachable"
//	@Router       /api/v0/health [get]
func healthHandler(c *gin.Context) {
	state, err := appstate.GetState(c.Request.Context())
	if err != nil {
		router.RespondWithServerError(c, router.ErrInternalCode, router.ErrMsgAppStateNotInitialized, err)
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()
	ready, components := gatherComponentStatus(ctx, state)
	status := "healthy"
	code := http.StatusOK
	if !ready {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	router.RespondWithData(c, code, "Success", gin.H{
		"status":     status,
		"version":    state.Version,
		"ready":      ready,
		"components": components,
	})
}

func gatherComponentStatus(ctx context.Context, state *appstate.State) (bool, gin.H) {
	ready := true
	components := gin.H{}
	for _, nc := range state.HealthChecks() {
		if err := nc.Check(ctx); err != nil {
			ready = false
			components[nc.Name] = gin.H{"healthy": false, "error": err.Error()}
			continue
		}
		components[nc.Name] = gin.H{"healthy": true}
	}
	return ready, components
}
