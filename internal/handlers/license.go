// internal/handlers/license.go
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/javajoker/canva-seat-ledger/internal/i18n"
	"github.com/javajoker/canva-seat-ledger/internal/services"
	"github.com/javajoker/canva-seat-ledger/internal/utils"
)

type LicenseHandler struct {
	licenseService *services.LicenseService
}

func NewLicenseHandler(licenseService *services.LicenseService) *LicenseHandler {
	return &LicenseHandler{
		licenseService: licenseService,
	}
}

func mutationResponse(c *gin.Context, status int, key string, result *services.MutationResult) {
	lang := utils.GetLangFromContext(c)
	c.JSON(status, utils.APIResponse{
		Success: true,
		Data: gin.H{
			"message":  i18n.T(lang, key),
			"entry":    result.Entry,
			"reminder": result.Reminder,
		},
	})
}

// POST /licenses/assign
func (h *LicenseHandler) Assign(c *gin.Context) {
	var req services.AssignLicenseRequest
	if !bindJSON(c, &req) {
		return
	}
	withActor(c, &req.Actor)

	result, err := h.licenseService.AssignLicense(c.Request.Context(), &req, requestMeta(c))
	if err != nil {
		utils.DomainErrorResponse(c, err)
		return
	}

	mutationResponse(c, http.StatusCreated, i18n.KeyLicenseAssigned, result)
}

// POST /licenses/revoke
func (h *LicenseHandler) Revoke(c *gin.Context) {
	var req services.RevokeLicenseRequest
	if !bindJSON(c, &req) {
		return
	}
	withActor(c, &req.Actor)

	result, err := h.licenseService.RevokeLicense(c.Request.Context(), &req, requestMeta(c))
	if err != nil {
		utils.DomainErrorResponse(c, err)
		return
	}

	mutationResponse(c, http.StatusOK, i18n.KeyLicenseRevoked, result)
}

// POST /licenses/transfer
func (h *LicenseHandler) Transfer(c *gin.Context) {
	var req services.TransferLicenseRequest
	if !bindJSON(c, &req) {
		return
	}
	withActor(c, &req.Actor)

	result, err := h.licenseService.TransferLicense(c.Request.Context(), &req, requestMeta(c))
	if err != nil {
		utils.DomainErrorResponse(c, err)
		return
	}

	mutationResponse(c, http.StatusOK, i18n.KeyLicenseTransferred, result)
}

// PUT /schools/:id/limit
func (h *LicenseHandler) ChangeLimit(c *gin.Context) {
	var req services.ChangeLimitRequest
	if !bindJSON(c, &req) {
		return
	}
	withActor(c, &req.Actor)

	result, err := h.licenseService.ChangeLimit(c.Request.Context(), c.Param("id"), &req, requestMeta(c))
	if err != nil {
		utils.DomainErrorResponse(c, err)
		return
	}

	mutationResponse(c, http.StatusOK, i18n.KeySchoolLimitChanged, result)
}

// PUT /schools/:id/status
func (h *LicenseHandler) SetSchoolStatus(c *gin.Context) {
	var req services.SchoolStatusRequest
	if !bindJSON(c, &req) {
		return
	}
	withActor(c, &req.Actor)

	result, err := h.licenseService.SetSchoolStatus(c.Request.Context(), c.Param("id"), &req, requestMeta(c))
	if err != nil {
		utils.DomainErrorResponse(c, err)
		return
	}

	mutationResponse(c, http.StatusOK, i18n.KeySchoolStatusChanged, result)
}

// PUT /users/:email
func (h *LicenseHandler) UpdateUser(c *gin.Context) {
	var req services.UpdateUserRequest
	if !bindJSON(c, &req) {
		return
	}
	withActor(c, &req.Actor)

	result, err := h.licenseService.UpdateUser(c.Request.Context(), c.Param("email"), &req, requestMeta(c))
	if err != nil {
		utils.DomainErrorResponse(c, err)
		return
	}

	mutationResponse(c, http.StatusOK, i18n.KeyUserUpdated, result)
}
