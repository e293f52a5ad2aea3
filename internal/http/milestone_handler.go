package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/freelancedao/escrow-service/internal/model"
	"github.com/freelancedao/escrow-service/internal/service"
)

type syncFunc func(ctx context.Context, id uuid.UUID, index int, completed bool, actor model.Actor) (*service.SyncResult, error)

type syncMilestoneRequest struct {
	MilestoneIndex *int  `json:"milestone_index" binding:"required"`
	Completed      *bool `json:"completed" binding:"required"`
}

func (h *Handler) syncJobMilestone(c *gin.Context) {
	h.syncMilestone(c, h.milestones.SyncJobMilestone)
}

func (h *Handler) syncContractMilestone(c *gin.Context) {
	h.syncMilestone(c, h.milestones.SyncContractMilestone)
}

func (h *Handler) syncMilestone(c *gin.Context, apply syncFunc) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req syncMilestoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	result, err := apply(c.Request.Context(), id, *req.MilestoneIndex, *req.Completed, actor)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, syncResponse(result))
}

type approveJobRequest struct {
	Approved *bool `json:"approved" binding:"required"`
}

func (h *Handler) approveJob(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req approveJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	result, err := h.milestones.ApproveJob(c.Request.Context(), id, *req.Approved, actor)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, syncResponse(result))
}

func syncResponse(result *service.SyncResult) gin.H {
	body := gin.H{"job": result.Job, "progress": result.Job.Progress}
	if result.Contract != nil {
		body["contract"] = result.Contract
	}
	return body
}
