package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterRoutes wires all endpoints onto the engine.
func RegisterRoutes(r *gin.Engine, dh *DebateHandler, sh *StreamHandler) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")
	{
		api.POST("/debates", dh.CreateDebate)
		api.GET("/debates", dh.ListDebates)
		api.GET("/debates/:id", dh.GetDebate)
		api.DELETE("/debates/:id", dh.DeleteDebate)
		api.POST("/debates/:id/start", dh.StartDebate)
		api.GET("/debates/:id/rounds", dh.GetRounds)
		api.GET("/debates/:id/result", dh.GetDebateResult)
		api.GET("/debates/:id/report", dh.GetDebateReport)
		api.GET("/debates/:id/events", sh.StreamEvents)

		api.GET("/rounds/:id/messages", dh.GetRoundMessages)
		api.GET("/rounds/:id/scores", dh.GetRoundScores)
	}
}
