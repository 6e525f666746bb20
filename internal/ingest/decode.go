// internal/ingest/decode.go
package ingest

import (
	"bytes"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/encoding/charmap"

	"github.com/javajoker/canva-seat-ledger/internal/textnorm"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Decode turns a raw export into NFC text. Exports saved by spreadsheet tools
// on Windows arrive as Windows-1252; anything that is not valid UTF-8 is read
// that way.
func Decode(raw []byte) string {
	raw = bytes.TrimPrefix(raw, utf8BOM)

	text := string(raw)
	if !utf8.Valid(raw) {
		decoded, err := charmap.Windows1252.NewDecoder().Bytes(raw)
		if err != nil {
			logrus.WithError(err).Warn("Failed to decode input as Windows-1252, keeping raw bytes")
		} else {
			text = string(decoded)
		}
	}

	return textnorm.NFC(text)
}
