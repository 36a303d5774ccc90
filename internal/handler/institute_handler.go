package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/edupay/institute-ledger-api/internal/middleware"
	"github.com/edupay/institute-ledger-api/internal/service"
	appErrors "github.com/edupay/institute-ledger-api/pkg/errors"
	"github.com/edupay/institute-ledger-api/pkg/response"
)

// InstituteHandler wires HTTP endpoints to the institute service.
type InstituteHandler struct {
	service *service.InstituteService
}

// NewInstituteHandler creates a new handler.
func NewInstituteHandler(svc *service.InstituteService) *InstituteHandler {
	return &InstituteHandler{service: svc}
}

// Create godoc
// @Summary Create institute
// @Description Register an institute owned by the caller; returns the capability token exactly once
// @Tags Institutes
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.CreateInstituteRequest true "Institute payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /institutes [post]
func (h *InstituteHandler) Create(c *gin.Context) {
	var req service.CreateInstituteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid institute payload"))
		return
	}

	institute, capability, err := h.service.Create(c.Request.Context(), principalFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusCreated, gin.H{
		"institute":  institute,
		"capability": capability,
	}, nil)
}

// Get godoc
// @Summary Get institute
// @Tags Institutes
// @Produce json
// @Param id path string true "Institute ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /institutes/{id} [get]
func (h *InstituteHandler) Get(c *gin.Context) {
	institute, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, institute, nil)
}

// Summary godoc
// @Summary Institute dashboard summary
// @Description Balance, fees and record counts; requires admin privilege
// @Tags Institutes
// @Produce json
// @Security BearerAuth
// @Param id path string true "Institute ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /institutes/{id}/summary [get]
func (h *InstituteHandler) Summary(c *gin.Context) {
	summary, err := h.service.Summary(c.Request.Context(), c.Param("id"), middleware.Actor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// AddAdmin godoc
// @Summary Add institute admin
// @Description Owner-only; re-adding an existing principal is a no-op
// @Tags Institutes
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Institute ID"
// @Param payload body service.AddAdminRequest true "Admin payload"
// @Success 201 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /institutes/{id}/admins [post]
func (h *InstituteHandler) AddAdmin(c *gin.Context) {
	var req service.AddAdminRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid admin payload"))
		return
	}

	admin, err := h.service.AddAdmin(c.Request.Context(), c.Param("id"), middleware.Actor(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, admin)
}

// ListAdmins godoc
// @Summary List institute admins
// @Tags Institutes
// @Produce json
// @Security BearerAuth
// @Param id path string true "Institute ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /institutes/{id}/admins [get]
func (h *InstituteHandler) ListAdmins(c *gin.Context) {
	admins, err := h.service.ListAdmins(c.Request.Context(), c.Param("id"), middleware.Actor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, admins, nil)
}

// Withdraw godoc
// @Summary Withdraw institute balance
// @Description Owner-only; fails with 412 when the balance does not cover the amount
// @Tags Institutes
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Institute ID"
// @Param payload body service.WithdrawRequest true "Withdrawal payload"
// @Success 201 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /institutes/{id}/withdrawals [post]
func (h *InstituteHandler) Withdraw(c *gin.Context) {
	var req service.WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid withdrawal payload"))
		return
	}

	withdrawal, err := h.service.Withdraw(c.Request.Context(), c.Param("id"), middleware.Actor(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, withdrawal)
}

// ListWithdrawals godoc
// @Summary List institute withdrawals
// @Tags Institutes
// @Produce json
// @Security BearerAuth
// @Param id path string true "Institute ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /institutes/{id}/withdrawals [get]
func (h *InstituteHandler) ListWithdrawals(c *gin.Context) {
	withdrawals, err := h.service.ListWithdrawals(c.Request.Context(), c.Param("id"), middleware.Actor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, withdrawals, nil)
}
