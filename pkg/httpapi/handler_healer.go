package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/civic-signal/eventscraper/pkg/healer"
)

const defaultHealerLimit = 10

type healerRequest struct {
	Mode     string `json:"mode"`
	SourceID string `json:"source_id"`
	Limit    int    `json:"limit"`
}

func (s *Server) handleHealer(c *gin.Context) {
	req := healerRequest{Mode: string(healer.ModeDiagnose), Limit: defaultHealerLimit}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
			return
		}
	}
	if req.Mode == "" {
		req.Mode = string(healer.ModeDiagnose)
	}
	if req.Limit <= 0 {
		req.Limit = defaultHealerLimit
	}

	mode := healer.Mode(req.Mode)
	switch mode {
	case healer.ModeDiagnose, healer.ModeRepair, healer.ModeUnquarantine:
	default:
		c.JSON(http.StatusBadRequest, errorResponse{Error: "mode must be one of diagnose, repair, unquarantine"})
		return
	}

	var sourceID *uuid.UUID
	if req.SourceID != "" {
		id, err := uuid.Parse(req.SourceID)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid source_id: " + err.Error()})
			return
		}
		sourceID = &id
	}

	results, err := s.Healer.Run(c.Request.Context(), mode, sourceID, req.Limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	view := make([]healerSourceResultView, len(results))
	for i, r := range results {
		view[i] = healerSourceResultView{
			SourceID:   r.SourceID,
			Outcome:    string(r.Outcome),
			Confidence: r.Confidence,
			Error:      r.Error,
		}
	}

	c.JSON(http.StatusOK, healerResponse{Success: true, Results: view})
}
