// internal/handlers/common.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/javajoker/canva-seat-ledger/internal/i18n"
	"github.com/javajoker/canva-seat-ledger/internal/models"
	"github.com/javajoker/canva-seat-ledger/internal/services"
	"github.com/javajoker/canva-seat-ledger/internal/utils"
)

// bindJSON decodes the body into req and writes a 400 when it cannot.
func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		lang := utils.GetLangFromContext(c)
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return false
	}
	return true
}

// withActor prefers the identity forwarded by the gateway over one given in
// the body.
func withActor(c *gin.Context, actor *models.Actor) {
	if a, ok := utils.GetActorFromContext(c); ok {
		*actor = a
	}
}

func requestMeta(c *gin.Context) services.RequestMeta {
	return services.RequestMeta{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
}
