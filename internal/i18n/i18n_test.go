// internal/i18n/i18n_test.go
package i18n

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslations(t *testing.T) {
	require.NoError(t, Initialize(DefaultLang))

	assert.Equal(t, "License revoked", T("en", KeyLicenseRevoked))
	assert.Equal(t, "Licença revogada", T("pt_BR", KeyLicenseRevoked))
	assert.Equal(t, "Invalid request", T("en", KeyValidationInvalid, "request"))
	// Unknown languages fall back to English, unknown keys to the key.
	assert.Equal(t, "School not found", T("fr", KeySchoolNotFound))
	assert.Equal(t, "missing.key", T("en", "missing.key"))
	assert.ElementsMatch(t, []string{"en", "pt_BR"}, GetSupportedLanguages())
}

func TestLocalesDefineTheSameKeys(t *testing.T) {
	i := New(DefaultLang)
	require.NoError(t, i.LoadTranslations())

	en := i.translations["en"]
	pt := i.translations["pt_BR"]
	require.NotEmpty(t, en)
	for key := range en {
		assert.Contains(t, pt, key)
	}
	assert.Len(t, pt, len(en))
}
