package http

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/freelancedao/escrow-service/internal/model"
	"github.com/freelancedao/escrow-service/internal/service"
)

type resolveProposalRequest struct {
	Action string `json:"action" binding:"required,oneof=accept reject"`
}

func (h *Handler) resolveProposal(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req resolveProposalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	result, err := h.proposals.Resolve(c.Request.Context(), id, service.Decision(req.Action), actor)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"proposal":       result.Proposal,
		"job":            result.Job,
		"rejected_count": len(result.Rejected),
	})
}

type createContractRequest struct {
	ProposalID string `json:"proposal_id" binding:"required,uuid"`
}

func (h *Handler) createContract(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	var req createContractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	proposalID, err := uuid.Parse(req.ProposalID)
	if err != nil {
		badRequest(c, "invalid proposal_id")
		return
	}

	contract, created, err := h.contracts.Create(c.Request.Context(), proposalID, actor)
	if err != nil {
		h.handleError(c, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, contract)
}

func (h *Handler) listContracts(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	var statuses []model.ContractStatus
	for _, raw := range strings.Split(c.Query("status"), ",") {
		if raw = strings.TrimSpace(raw); raw != "" {
			statuses = append(statuses, model.ContractStatus(raw))
		}
	}
	page := queryInt(c, "page", 1)
	limit := queryInt(c, "limit", 10)

	items, total, err := h.contracts.List(c.Request.Context(), service.ListContractsInput{
		Status: statuses,
		Page:   page,
		Limit:  limit,
	}, actor)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "total": total, "page": page, "limit": limit})
}

func (h *Handler) getContract(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	contract, err := h.contracts.Get(c.Request.Context(), id, actor)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, contract)
}

type milestoneRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
	Duration    string  `json:"duration"`
}

type applyContractRequest struct {
	Action           string             `json:"action" binding:"required"`
	Signature        string             `json:"signature"`
	Milestones       []milestoneRequest `json:"milestones"`
	PaymentReference string             `json:"payment_reference"`
}

func (h *Handler) applyContract(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req applyContractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	var milestones model.Milestones
	for _, ms := range req.Milestones {
		milestones = append(milestones, model.Milestone{
			Name:        strings.TrimSpace(ms.Name),
			Description: ms.Description,
			Amount:      ms.Amount,
			Duration:    ms.Duration,
		})
	}

	contract, err := h.contracts.Apply(c.Request.Context(), id, service.ApplyInput{
		Action:           service.ContractAction(req.Action),
		Signature:        strings.TrimSpace(req.Signature),
		Milestones:       milestones,
		PaymentReference: strings.TrimSpace(req.PaymentReference),
	}, actor)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, contract)
}

func (h *Handler) contractPDF(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	result, err := h.contracts.Document(c.Request.Context(), id, actor)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.Header("Content-Disposition", "attachment; filename=\""+result.FileName+"\"")
	c.Data(http.StatusOK, "application/pdf", result.Content)
}

// contractEvents streams contract changes as server-sent events until the
// client goes away or the bus shuts down.
func (h *Handler) contractEvents(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	updates, cancel, err := h.contracts.Watch(ctx, id, actor)
	if err != nil {
		h.handleError(c, err)
		return
	}
	defer cancel()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Stream(func(w io.Writer) bool {
		select {
		case ev, open := <-updates:
			if !open {
				return false
			}
			c.SSEvent("contract", ev)
			return true
		case <-ctx.Done():
			return false
		}
	})
}
