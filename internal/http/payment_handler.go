package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/freelancedao/escrow-service/internal/model"
	"github.com/freelancedao/escrow-service/internal/service"
)

type initializePaymentRequest struct {
	ContractID string  `json:"contract_id" binding:"required,uuid"`
	Amount     float64 `json:"amount" binding:"required,gt=0"`
}

func (h *Handler) initializePayment(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	var req initializePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	contractID, err := uuid.Parse(req.ContractID)
	if err != nil {
		badRequest(c, "invalid contract_id")
		return
	}

	result, err := h.payments.Initialize(c.Request.Context(), service.InitializeInput{
		ContractID: contractID,
		Amount:     req.Amount,
	}, actor)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type verifyPaymentRequest struct {
	Reference  string  `json:"reference" binding:"required"`
	Purpose    string  `json:"purpose" binding:"required"`
	Amount     float64 `json:"amount" binding:"gte=0"`
	ContractID *string `json:"contract_id"`
	JobID      *string `json:"job_id"`
}

func (h *Handler) verifyPayment(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	var req verifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	contractID, err := parseOptionalID(req.ContractID)
	if err != nil {
		badRequest(c, "invalid contract_id")
		return
	}
	jobID, err := parseOptionalID(req.JobID)
	if err != nil {
		badRequest(c, "invalid job_id")
		return
	}

	payment, err := h.payments.Verify(c.Request.Context(), service.VerifyInput{
		Reference:     req.Reference,
		Purpose:       model.PaymentPurpose(strings.TrimSpace(req.Purpose)),
		ClaimedAmount: req.Amount,
		ContractID:    contractID,
		JobID:         jobID,
	}, actor)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, payment)
}

func (h *Handler) listPayments(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	page := queryInt(c, "page", 1)
	limit := queryInt(c, "limit", 20)

	items, total, err := h.payments.List(c.Request.Context(), page, limit, actor)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "total": total, "page": page, "limit": limit})
}
