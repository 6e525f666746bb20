// internal/ingest/roster.go
package ingest

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/javajoker/canva-seat-ledger/internal/apperr"
	"github.com/javajoker/canva-seat-ledger/internal/models"
	"github.com/javajoker/canva-seat-ledger/internal/textnorm"
)

type rosterColumns struct {
	id, name, status, cluster, city, state int
}

// Header labels per column, most specific first.
var rosterAliases = map[string][]string{
	"id":      {"id da escola", "school id", "id"},
	"name":    {"nome da escola", "school name", "escola", "nome", "name"},
	"status":  {"status da escola", "school status", "status"},
	"cluster": {"cluster"},
	"city":    {"cidade da escola", "cidade", "city"},
	"state":   {"estado da escola", "estado", "uf", "state"},
}

// Older franchise exports carry no usable labels; their layout is fixed.
var legacyRosterColumns = rosterColumns{id: 3, name: 4, status: 5, cluster: 6, city: 12, state: 13}

func locateRosterColumns(header row) (rosterColumns, bool) {
	folded := make([]string, len(header.fields))
	for i, f := range header.fields {
		folded[i] = textnorm.Fold(f)
	}

	find := func(key string) int {
		for _, alias := range rosterAliases[key] {
			for i, label := range folded {
				if label == alias {
					return i
				}
			}
		}
		return -1
	}

	cols := rosterColumns{
		id:      find("id"),
		name:    find("name"),
		status:  find("status"),
		cluster: find("cluster"),
		city:    find("city"),
		state:   find("state"),
	}
	if cols.id >= 0 && cols.name >= 0 {
		return cols, true
	}
	if len(header.fields) > legacyRosterColumns.state {
		return legacyRosterColumns, true
	}
	return cols, false
}

// ParseSchools reads the franchise roster export.
func ParseSchools(raw []byte) ([]models.School, []apperr.ParseError) {
	rows, errs := readRows(Decode(raw))
	if len(rows) == 0 {
		return []models.School{}, errs
	}

	cols, ok := locateRosterColumns(rows[0])
	if !ok {
		errs = append(errs, apperr.ParseError{Line: rows[0].line, Reason: "roster header has no school id and name columns"})
		logParseErrors("roster", errs)
		return []models.School{}, errs
	}

	schools := make([]models.School, 0, len(rows)-1)
	seen := make(map[string]int)
	for _, r := range rows[1:] {
		id := normalizeID(r.field(cols.id))
		name := r.field(cols.name)

		switch {
		case id == "":
			errs = append(errs, apperr.ParseError{Line: r.line, Reason: "missing school id"})
			continue
		case name == "":
			errs = append(errs, apperr.ParseError{Line: r.line, Reason: fmt.Sprintf("school %s has no name", id)})
			continue
		}
		if first, dup := seen[id]; dup {
			errs = append(errs, apperr.ParseError{Line: r.line, Reason: fmt.Sprintf("duplicate school id %s (first on line %d)", id, first)})
			continue
		}
		seen[id] = r.line

		schools = append(schools, models.School{
			ID:      id,
			Name:    name,
			Status:  NormalizeSchoolStatus(r.field(cols.status)),
			Cluster: r.field(cols.cluster),
			City:    r.field(cols.city),
			State:   r.field(cols.state),
		})
	}

	logParseErrors("roster", errs)
	return schools, errs
}

func logParseErrors(source string, errs []apperr.ParseError) {
	for _, e := range errs {
		logrus.WithFields(logrus.Fields{
			"source": source,
			"line":   e.Line,
		}).Warn("Skipped row: " + e.Reason)
	}
}
