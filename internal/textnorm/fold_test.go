// internal/textnorm/fold_test.go
package textnorm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFold(t *testing.T) {
	cases := map[string]string{
		"  Escola  São João ":  "escola sao joao",
		"MAPLE BEAR Guarulhos": "maple bear guarulhos",
		"Coração\tde\n Jesus":  "coracao de jesus",
		"Sa\u0303o Paulo":      "sao paulo",
		"":                     "",
	}

	for in, want := range cases {
		assert.Equal(t, want, Fold(in), "input %q", in)
	}
}

func TestNFCComposesDecomposedInput(t *testing.T) {
	assert.Equal(t, "São Paulo", NFC("Sa\u0303o Paulo"))
}
