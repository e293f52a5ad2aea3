package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/freelancedao/escrow-service/internal/http/middleware"
	"github.com/freelancedao/escrow-service/internal/model"
	"github.com/freelancedao/escrow-service/internal/service"
)

type Services struct {
	Proposals     *service.ProposalService
	Contracts     *service.ContractService
	Milestones    *service.MilestoneService
	Payments      *service.PaymentService
	Reports       *service.ReportService
	Notifications *service.NotificationService
}

type Handler struct {
	proposals     *service.ProposalService
	contracts     *service.ContractService
	milestones    *service.MilestoneService
	payments      *service.PaymentService
	reports       *service.ReportService
	notifications *service.NotificationService
	log           zerolog.Logger
}

func NewHandler(svc Services, log zerolog.Logger) *Handler {
	return &Handler{
		proposals:     svc.Proposals,
		contracts:     svc.Contracts,
		milestones:    svc.Milestones,
		payments:      svc.Payments,
		reports:       svc.Reports,
		notifications: svc.Notifications,
		log:           log,
	}
}

func (h *Handler) Register(router *gin.Engine, authMiddleware gin.HandlerFunc) {
	protected := router.Group("/")
	protected.Use(authMiddleware)

	protected.PATCH("/proposals/:id", h.resolveProposal)

	protected.POST("/contracts", h.createContract)
	protected.GET("/contracts", h.listContracts)
	protected.GET("/contracts/:id", h.getContract)
	protected.PATCH("/contracts/:id", h.applyContract)
	protected.GET("/contracts/:id/pdf", h.contractPDF)
	protected.GET("/contracts/:id/events", h.contractEvents)
	protected.PATCH("/contracts/:id/milestones", h.syncContractMilestone)

	protected.PATCH("/jobs/:id/milestones", h.syncJobMilestone)
	protected.PATCH("/jobs/:id/approve", h.approveJob)

	protected.POST("/payments/initialize", h.initializePayment)
	protected.POST("/payments/verify", h.verifyPayment)

	protected.GET("/notifications", h.listNotifications)
	protected.PATCH("/notifications", h.markNotificationsRead)

	admin := protected.Group("/admin")
	admin.POST("/reconcile", h.reconcile)
	admin.GET("/reconcile.xlsx", h.reconcileReport)
	admin.GET("/payments", h.listPayments)
}

// actor returns the authenticated actor or writes 401.
func (h *Handler) actor(c *gin.Context) (model.Actor, bool) {
	actor, ok := middleware.MustActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing actor", "kind": "unauthorized"})
	}
	return actor, ok
}

func pathID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(strings.TrimSpace(c.Param(name)))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name, "kind": "invalid_input"})
		return uuid.Nil, false
	}
	return id, true
}

func parseOptionalID(raw *string) (*uuid.UUID, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	id, err := uuid.Parse(strings.TrimSpace(*raw))
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func queryInt(c *gin.Context, name string, fallback int) int {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return fallback
	}
	return v
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg, "kind": "invalid_input"})
}

func (h *Handler) handleError(c *gin.Context, err error) {
	status, kind := http.StatusInternalServerError, ""
	switch {
	case errors.Is(err, service.ErrNotFound):
		status, kind = http.StatusNotFound, "not_found"
	case errors.Is(err, service.ErrPermissionDenied):
		status, kind = http.StatusForbidden, "forbidden"
	case errors.Is(err, service.ErrConflict):
		status, kind = http.StatusConflict, "conflict"
	case errors.Is(err, service.ErrInvalidState):
		status, kind = http.StatusUnprocessableEntity, "invalid_state"
	case errors.Is(err, service.ErrOutOfRange):
		status, kind = http.StatusBadRequest, "out_of_range"
	case errors.Is(err, service.ErrInvalidInput):
		status, kind = http.StatusBadRequest, "invalid_input"
	case errors.Is(err, service.ErrGateway):
		status, kind = http.StatusBadGateway, "gateway_error"
	default:
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error(), "kind": kind})
}
