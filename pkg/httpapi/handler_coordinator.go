package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type coordinatorRequest struct {
	SourceIDs []string `json:"sourceIds"`
}

// handleCoordinator runs one eligibility sweep. The response's "sources"
// field lists the eligible candidate set for this invocation (resolved
// separately from coordinator.Run's own eligibility query, since Run only
// reports aggregate counts) — it may include a few sources the in-process
// breaker skipped this run, not strictly only those that received jobs.
func (s *Server) handleCoordinator(c *gin.Context) {
	var req coordinatorRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
			return
		}
	}

	sourceIDs, err := parseUUIDs(req.SourceIDs)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	ctx := c.Request.Context()

	eligible, err := s.Store.EligibleSourceIDs(ctx, sourceIDs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	summary, err := s.Coordinator.Run(ctx, sourceIDs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	names, err := s.Store.SourceNames(ctx, eligible)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	sources := make([]sourceRef, len(names))
	for i, n := range names {
		sources[i] = sourceRef{ID: n.ID, Name: n.Name}
	}

	c.JSON(http.StatusOK, coordinatorResponse{
		Success:     true,
		JobsCreated: summary.Enqueued,
		Sources:     sources,
	})
}

func parseUUIDs(raw []string) ([]uuid.UUID, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	ids := make([]uuid.UUID, len(raw))
	for i, r := range raw {
		id, err := uuid.Parse(r)
		if err != nil {
			return nil, err
		}
		ids[i] = id
	}
	return ids, nil
}
