// internal/handlers/audit.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/javajoker/canva-seat-ledger/internal/audit"
	"github.com/javajoker/canva-seat-ledger/internal/i18n"
	"github.com/javajoker/canva-seat-ledger/internal/models"
	"github.com/javajoker/canva-seat-ledger/internal/services"
	"github.com/javajoker/canva-seat-ledger/internal/utils"
)

type AuditHandler struct {
	auditService *services.AuditService
}

func NewAuditHandler(auditService *services.AuditService) *AuditHandler {
	return &AuditHandler{
		auditService: auditService,
	}
}

// POST /audit
func (h *AuditHandler) Record(c *gin.Context) {
	var req audit.Mutation
	if !bindJSON(c, &req) {
		return
	}
	if actor, ok := utils.GetActorFromContext(c); ok {
		req.SetActor(actor)
	}

	entry, err := h.auditService.Record(c.Request.Context(), req, requestMeta(c))
	if err != nil {
		utils.DomainErrorResponse(c, err)
		return
	}

	utils.CreatedResponse(c, gin.H{
		"message": i18n.T(utils.GetLangFromContext(c), i18n.KeyAuditRecorded),
		"entry":   entry,
	})
}

// GET /audit/recent
func (h *AuditHandler) Recent(c *gin.Context) {
	entries, err := h.auditService.Recent(c.Request.Context(), utils.GetLimitParam(c, 0, audit.MaxHistoryLimit))
	if err != nil {
		utils.DomainErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, entries)
}

// GET /audit/:kind/:id
func (h *AuditHandler) EntityHistory(c *gin.Context) {
	entries, err := h.auditService.History(c.Request.Context(), c.Param("kind"), c.Param("id"), utils.GetLimitParam(c, 0, audit.MaxHistoryLimit))
	if err != nil {
		utils.DomainErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, entries)
}

// GET /audit/actors/:actorId
func (h *AuditHandler) ActorHistory(c *gin.Context) {
	entries, err := h.auditService.ActorHistory(c.Request.Context(), c.Param("actorId"), utils.GetLimitParam(c, 0, audit.MaxHistoryLimit))
	if err != nil {
		utils.DomainErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, entries)
}

// GET /audit/entries/:id
func (h *AuditHandler) GetEntry(c *gin.Context) {
	entry, err := h.auditService.Entry(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.DomainErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, entry)
}

type revertRequest struct {
	models.Actor
}

// POST /audit/entries/:id/revert
func (h *AuditHandler) Revert(c *gin.Context) {
	var req revertRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}
	withActor(c, &req.Actor)

	result, err := h.auditService.Revert(c.Request.Context(), c.Param("id"), req.Actor)
	if err != nil {
		utils.DomainErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message":  i18n.T(utils.GetLangFromContext(c), i18n.KeyAuditReverted),
		"reversal": result.Reversal,
		"original": result.Original,
		"reminder": result.Reminder,
	})
}
