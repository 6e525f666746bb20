// internal/reconcile/matcher.go
package reconcile

import (
	"strings"
	"unicode/utf8"

	"github.com/javajoker/canva-seat-ledger/internal/compliance"
	"github.com/javajoker/canva-seat-ledger/internal/models"
	"github.com/javajoker/canva-seat-ledger/internal/textnorm"
)

// Strategy names how a user was tied to a school.
type Strategy string

const (
	StrategyDomainOverride Strategy = "domain-override"
	StrategyID             Strategy = "id"
	StrategyName           Strategy = "name"
	StrategySubstring      Strategy = "substring"
	StrategyNone           Strategy = "none"
)

// Shorter names would make the substring pass match almost anything.
const minSubstringLength = 3

type Matcher struct {
	schools   []models.School
	folded    []string
	byID      map[string]int
	byName    map[string]int
	overrides map[string]string
}

// NewMatcher indexes schools in list order; the first school wins every tie.
// overrides maps an email domain to a school id.
func NewMatcher(schools []models.School, overrides map[string]string) *Matcher {
	m := &Matcher{
		schools:   schools,
		folded:    make([]string, len(schools)),
		byID:      make(map[string]int, len(schools)),
		byName:    make(map[string]int, len(schools)),
		overrides: make(map[string]string, len(overrides)),
	}
	for i, s := range schools {
		m.folded[i] = textnorm.Fold(s.Name)
		if _, ok := m.byID[s.ID]; !ok {
			m.byID[s.ID] = i
		}
		if _, ok := m.byName[m.folded[i]]; !ok && m.folded[i] != "" {
			m.byName[m.folded[i]] = i
		}
	}
	for domain, id := range overrides {
		m.overrides[strings.ToLower(strings.TrimSpace(domain))] = strings.TrimSpace(id)
	}
	return m
}

// Resolve returns the index of the user's school, or -1 with StrategyNone.
func (m *Matcher) Resolve(u models.LicenseUser) (int, Strategy) {
	if id, ok := m.overrides[compliance.Domain(u.Email)]; ok {
		if i, ok := m.byID[id]; ok {
			return i, StrategyDomainOverride
		}
	}

	if u.SchoolID != "" {
		if i, ok := m.byID[u.SchoolID]; ok {
			return i, StrategyID
		}
	}

	name := textnorm.Fold(u.SchoolName)
	if name == "" {
		return -1, StrategyNone
	}
	if i, ok := m.byName[name]; ok {
		return i, StrategyName
	}

	for i, school := range m.folded {
		if school == "" {
			continue
		}
		shorter := name
		if utf8.RuneCountInString(school) < utf8.RuneCountInString(name) {
			shorter = school
		}
		if utf8.RuneCountInString(shorter) < minSubstringLength {
			continue
		}
		if strings.Contains(school, name) || strings.Contains(name, school) {
			return i, StrategySubstring
		}
	}

	return -1, StrategyNone
}
