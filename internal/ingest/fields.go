// internal/ingest/fields.go
package ingest

import (
	"encoding/csv"
	"errors"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/javajoker/canva-seat-ledger/internal/apperr"
	"github.com/javajoker/canva-seat-ledger/internal/models"
	"github.com/javajoker/canva-seat-ledger/internal/textnorm"
)

type row struct {
	line   int
	fields []string
}

func (r row) field(i int) string {
	if i < 0 || i >= len(r.fields) {
		return ""
	}
	return r.fields[i]
}

// detectDelimiter picks ';' or ',' from the first non-empty line.
func detectDelimiter(text string) rune {
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		semi := strings.Count(line, ";")
		comma := strings.Count(line, ",")
		if semi > 0 && semi >= comma {
			return ';'
		}
		return ','
	}
	return ','
}

func readRows(text string) ([]row, []apperr.ParseError) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	r := csv.NewReader(strings.NewReader(text))
	r.Comma = detectDelimiter(text)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	var rows []row
	var errs []apperr.ParseError
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				errs = append(errs, apperr.ParseError{Line: pe.StartLine, Reason: pe.Err.Error()})
				continue
			}
			errs = append(errs, apperr.ParseError{Reason: err.Error()})
			break
		}

		line, _ := r.FieldPos(0)
		fields := make([]string, len(record))
		blank := true
		for i, f := range record {
			fields[i] = strings.TrimSpace(f)
			if fields[i] != "" {
				blank = false
			}
		}
		if blank {
			continue
		}
		rows = append(rows, row{line: line, fields: fields})
	}

	return rows, errs
}

// isHeaderRow spots header lines, including ones repeated mid-file when
// several exports are concatenated.
func isHeaderRow(r row, emailCol int) bool {
	email := r.field(emailCol)
	if strings.Contains(email, "@") {
		return false
	}
	return strings.Contains(textnorm.Fold(email), "mail")
}

// normalizeID canonicalizes numeric ids ("12", "12.0", " 012 " → "12").
// Non-numeric ids are kept as written.
func normalizeID(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if f, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", "."), 64); err == nil && f == math.Trunc(f) && !math.IsInf(f, 0) {
		return strconv.FormatInt(int64(f), 10)
	}
	return raw
}

func validEmail(email string) bool {
	at := strings.LastIndex(email, "@")
	return at > 0 && at < len(email)-1 && !strings.ContainsAny(email, " \t")
}

// localPart is used as a display name when the export has none.
func localPart(email string) string {
	if at := strings.Index(email, "@"); at > 0 {
		return email[:at]
	}
	return email
}

var dateLayouts = []string{
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"02/01/2006",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseDate(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t
		}
	}
	return nil
}

// parseCount reads an activity counter; anything unreadable counts as zero.
func parseCount(raw string) int {
	raw = strings.NewReplacer(".", "", ",", "", " ", "").Replace(raw)
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func NormalizeRole(raw string) models.UserRole {
	role := textnorm.Fold(raw)
	switch {
	case strings.Contains(role, "admin"),
		strings.Contains(role, "titular"),
		strings.Contains(role, "coordenador"):
		return models.UserRoleAdministrator
	case strings.Contains(role, "professor"), strings.Contains(role, "teacher"):
		return models.UserRoleTeacher
	default:
		return models.UserRoleStudent
	}
}

func NormalizeSchoolStatus(raw string) models.SchoolStatus {
	status := textnorm.Fold(raw)
	switch {
	case strings.Contains(status, "inativ"), strings.Contains(status, "inactive"):
		return models.SchoolStatusPaused
	case strings.Contains(status, "ativa"), strings.Contains(status, "operando"), status == "active":
		return models.SchoolStatusActive
	case strings.Contains(status, "implant"), strings.Contains(status, "onboarding"):
		return models.SchoolStatusOnboarding
	default:
		return models.SchoolStatusPaused
	}
}
