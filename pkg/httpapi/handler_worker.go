package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type workerRequest struct {
	EnableDeepScraping *bool `json:"enableDeepScraping"`
}

// handleWorker processes one batch. EnableDeepScraping, when present,
// overrides the server's constructor-time DeepScrape setting for this
// invocation only: Worker holds no internal mutex, so a shallow copy is
// sufficient and avoids mutating shared state other concurrent
// invocations might be reading.
func (s *Server) handleWorker(c *gin.Context) {
	var req workerRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
			return
		}
	}

	w := *s.Worker
	if req.EnableDeepScraping != nil {
		w.DeepScrape = *req.EnableDeepScraping
	}

	summary, err := w.ProcessBatch(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	results := make([]jobResultView, len(summary.Results))
	for i, r := range summary.Results {
		results[i] = jobResultView{
			JobID:          r.JobID,
			SourceID:       r.SourceID,
			Outcome:        string(r.Outcome),
			EventsScraped:  r.EventsScraped,
			EventsInserted: r.EventsInserted,
			Duplicates:     r.Duplicates,
			Error:          r.Error,
		}
	}

	resp := workerResponse{
		Success:          true,
		AllJobsSucceeded: summary.AllJobsSucceeded,
		Processed:        summary.Processed,
		BatchSize:        s.Worker.BatchSize,
		Summary: batchSummaryView{
			Processed: summary.Processed,
			Completed: summary.Completed,
			Failed:    summary.Failed,
			Results:   results,
		},
	}

	status := http.StatusOK
	if !summary.AllJobsSucceeded {
		status = http.StatusMultiStatus
	}
	c.JSON(status, resp)
}
