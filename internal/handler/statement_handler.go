package handler

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/edupay/institute-ledger-api/internal/middleware"
	"github.com/edupay/institute-ledger-api/internal/service"
	"github.com/edupay/institute-ledger-api/pkg/response"
)

// StatementHandler wires HTTP endpoints to the statement and export services.
type StatementHandler struct {
	service *service.StatementService
	exports *service.ExportService
}

// NewStatementHandler creates a new handler. exports may be nil when
// archived downloads are disabled.
func NewStatementHandler(svc *service.StatementService, exports *service.ExportService) *StatementHandler {
	return &StatementHandler{service: svc, exports: exports}
}

// Entries godoc
// @Summary Institute statement
// @Description Chronological balance movements derived from immutable records
// @Tags Statements
// @Produce json
// @Security BearerAuth
// @Param id path string true "Institute ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /institutes/{id}/statement [get]
func (h *StatementHandler) Entries(c *gin.Context) {
	entries, err := h.service.Entries(c.Request.Context(), c.Param("id"), middleware.Actor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// Export godoc
// @Summary Export institute statement
// @Description Statement as a CSV or PDF download
// @Tags Statements
// @Produce octet-stream
// @Security BearerAuth
// @Param id path string true "Institute ID"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Router /institutes/{id}/statement/export [get]
func (h *StatementHandler) Export(c *gin.Context) {
	format := service.StatementFormat(c.DefaultQuery("format", "csv"))

	payload, contentType, err := h.service.Export(c.Request.Context(), c.Param("id"), middleware.Actor(c), format)
	if err != nil {
		response.Error(c, err)
		return
	}

	filename := fmt.Sprintf("statement-%s-%s.%s", c.Param("id"), time.Now().UTC().Format("20060102"), format)
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, contentType, payload)
}

// CreateExport godoc
// @Summary Archive statement export
// @Description Renders and stores the statement, returning a signed download token
// @Tags Statements
// @Produce json
// @Security BearerAuth
// @Param id path string true "Institute ID"
// @Param format query string false "csv or pdf" default(csv)
// @Success 201 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /institutes/{id}/statement/exports [post]
func (h *StatementHandler) CreateExport(c *gin.Context) {
	format := service.StatementFormat(c.DefaultQuery("format", "csv"))

	artifact, err := h.exports.Archive(c.Request.Context(), c.Param("id"), middleware.Actor(c), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, artifact)
}

// DownloadExport godoc
// @Summary Download archived export
// @Description The signed token is the sole credential
// @Tags Statements
// @Produce octet-stream
// @Param token path string true "Download token"
// @Success 200 {file} binary
// @Failure 401 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /exports/{token} [get]
func (h *StatementHandler) DownloadExport(c *gin.Context) {
	reader, contentType, filename, err := h.exports.Open(c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer reader.Close() //nolint:errcheck

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Header("Content-Type", contentType)
	c.Status(http.StatusOK)
	_, _ = io.Copy(c.Writer, reader)
}
