// internal/middleware/i18n.go
package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// ResolveLanguage maps an Accept-Language header to a supported locale,
// returning fallback when none matches.
func ResolveLanguage(header, fallback string) string {
	if header == "" {
		return fallback
	}

	// Handle cases like "pt-BR,pt;q=0.9,en;q=0.8"
	first := strings.TrimSpace(strings.Split(strings.Split(header, ",")[0], ";")[0])
	switch strings.ToLower(strings.ReplaceAll(first, "_", "-")) {
	case "pt", "pt-br", "pt-pt":
		return "pt_BR"
	case "en", "en-us", "en-gb":
		return "en"
	default:
		return fallback
	}
}

func I18nMiddleware(defaultLang string) gin.HandlerFunc {
	if defaultLang == "" {
		defaultLang = "en"
	}
	return func(c *gin.Context) {
		c.Set("lang", ResolveLanguage(c.GetHeader("Accept-Language"), defaultLang))
		c.Next()
	}
}
