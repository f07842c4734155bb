package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type discoveryWorkerRequest struct {
	BatchID string `json:"batchId"`
}

// handleDiscoveryWorker processes at most one pending discovery job per
// call; the caller is expected to self-chain on PendingJobsRemaining the
// same way the worker batch endpoint does on a full claim.
func (s *Server) handleDiscoveryWorker(c *gin.Context) {
	var req discoveryWorkerRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
			return
		}
	}

	result, err := s.Discovery.ProcessNext(c.Request.Context(), req.BatchID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	if result == nil {
		c.JSON(http.StatusOK, discoveryWorkerResponse{Success: true})
		return
	}

	c.JSON(http.StatusOK, discoveryWorkerResponse{
		Success:              true,
		Job:                  result.Job,
		PendingJobsRemaining: result.PendingJobsRemaining,
	})
}
