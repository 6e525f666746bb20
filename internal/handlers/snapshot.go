// internal/handlers/snapshot.go
package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/javajoker/canva-seat-ledger/internal/i18n"
	"github.com/javajoker/canva-seat-ledger/internal/ingest"
	"github.com/javajoker/canva-seat-ledger/internal/services"
	"github.com/javajoker/canva-seat-ledger/internal/sources"
	"github.com/javajoker/canva-seat-ledger/internal/utils"
)

type SnapshotHandler struct {
	snapshotService *services.SnapshotService
}

func NewSnapshotHandler(snapshotService *services.SnapshotService) *SnapshotHandler {
	return &SnapshotHandler{
		snapshotService: snapshotService,
	}
}

// POST /snapshots/:format
func (h *SnapshotHandler) Ingest(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	format, err := ingest.ParseFormat(c.Param("format"))
	if err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeySnapshotFormat), gin.H{"format": c.Param("format")})
		return
	}

	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, sources.MaxSnapshotBytes+1))
	if err != nil {
		utils.BadRequestResponse(c, err.Error(), nil)
		return
	}
	if len(raw) > sources.MaxSnapshotBytes {
		utils.ErrorResponse(c, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", i18n.T(lang, i18n.KeyValidationInvalid, "snapshot"), nil)
		return
	}

	result, err := h.snapshotService.Ingest(c.Request.Context(), format, raw)
	if err != nil {
		utils.DomainErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeySnapshotIngested),
		"result":  result,
	})
}

// POST /snapshots/refresh
func (h *SnapshotHandler) Refresh(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	result, err := h.snapshotService.Refresh(c.Request.Context())
	if err != nil {
		utils.DomainErrorResponse(c, err)
		return
	}

	message := i18n.T(lang, i18n.KeySnapshotRefreshed)
	if result.Stale {
		message = i18n.T(lang, i18n.KeySnapshotStale)
	}

	utils.SuccessResponse(c, gin.H{
		"message": message,
		"result":  result,
	})
}

// GET /snapshots/state
func (h *SnapshotHandler) State(c *gin.Context) {
	utils.SuccessResponse(c, h.snapshotService.State())
}
