package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Mutter0815/DigestMailer/pkg/metrics"
	"github.com/Mutter0815/DigestMailer/services/digest-worker/worker"
)

type statusSource interface {
	LastRun() *worker.RunSummary
}

// NewHTTPServer builds the ops surface of the worker: liveness, prometheus
// metrics, and the last-run report (including campaign fetch errors).
func NewHTTPServer(addr string, w statusSource) *http.Server {
	r := gin.New()
	r.Use(gin.Recovery(), Observability())

	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	r.GET("/status", func(c *gin.Context) {
		last := w.LastRun()
		if last == nil {
			c.JSON(http.StatusOK, gin.H{"last_run": nil})
			return
		}
		c.JSON(http.StatusOK, gin.H{"last_run": last})
	})

	return &http.Server{
		Addr:    addr,
		Handler: r,
	}
}
