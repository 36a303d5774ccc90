package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/edupay/institute-ledger-api/internal/middleware"
	"github.com/edupay/institute-ledger-api/internal/models"
	"github.com/edupay/institute-ledger-api/internal/service"
	appErrors "github.com/edupay/institute-ledger-api/pkg/errors"
	"github.com/edupay/institute-ledger-api/pkg/response"
)

// GrantHandler wires HTTP endpoints to the grant service.
type GrantHandler struct {
	service *service.GrantService
}

// NewGrantHandler creates a new handler.
func NewGrantHandler(svc *service.GrantService) *GrantHandler {
	return &GrantHandler{service: svc}
}

// CreateRequest godoc
// @Summary Create grant request
// @Description Always starts pending; zero amounts are allowed
// @Tags Grants
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Institute ID"
// @Param payload body service.CreateGrantRequest true "Grant request payload"
// @Success 201 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /institutes/{id}/grants [post]
func (h *GrantHandler) CreateRequest(c *gin.Context) {
	var req service.CreateGrantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid grant request payload"))
		return
	}

	request, err := h.service.CreateRequest(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, request)
}

// Approve godoc
// @Summary Approve grant request
// @Description Owner or an admin/financial_advisor admin; terminal transition, amount may differ from requested
// @Tags Grants
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Institute ID"
// @Param grantID path string true "Grant request ID"
// @Param payload body service.ApproveGrantRequest true "Approval payload"
// @Success 201 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /institutes/{id}/grants/{grantID}/approval [post]
func (h *GrantHandler) Approve(c *gin.Context) {
	var req service.ApproveGrantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid approval payload"))
		return
	}

	approval, err := h.service.Approve(c.Request.Context(), c.Param("id"), c.Param("grantID"), middleware.Actor(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, approval)
}

// GetRequest godoc
// @Summary Get grant request
// @Tags Grants
// @Produce json
// @Param id path string true "Institute ID"
// @Param grantID path string true "Grant request ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /institutes/{id}/grants/{grantID} [get]
func (h *GrantHandler) GetRequest(c *gin.Context) {
	request, err := h.service.GetRequest(c.Request.Context(), c.Param("id"), c.Param("grantID"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}

// ListRequests godoc
// @Summary List grant requests
// @Tags Grants
// @Produce json
// @Param id path string true "Institute ID"
// @Param student_id query string false "Filter by student"
// @Param approved query bool false "Filter by approval state"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /institutes/{id}/grants [get]
func (h *GrantHandler) ListRequests(c *gin.Context) {
	filter := models.GrantFilter{StudentID: c.Query("student_id")}
	if raw := c.Query("approved"); raw != "" {
		if approved, err := strconv.ParseBool(raw); err == nil {
			filter.Approved = &approved
		}
	}
	filter.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filter.PageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "20"))

	requests, pagination, err := h.service.ListRequests(c.Request.Context(), c.Param("id"), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, pagination)
}

// ListApprovals godoc
// @Summary List grant approvals
// @Description Immutable approval audit log, oldest first
// @Tags Grants
// @Produce json
// @Security BearerAuth
// @Param id path string true "Institute ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /institutes/{id}/grant-approvals [get]
func (h *GrantHandler) ListApprovals(c *gin.Context) {
	approvals, err := h.service.ListApprovals(c.Request.Context(), c.Param("id"), middleware.Actor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, approvals, nil)
}
