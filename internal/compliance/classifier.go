// internal/compliance/classifier.go
package compliance

import (
	"sort"
	"strings"

	"github.com/javajoker/canva-seat-ledger/internal/models"
)

// DefaultDomains are the franchise-owned email domains.
var DefaultDomains = []string{
	"maplebear.com.br",
	"mbcentral.com.br",
	"seb.com.br",
	"sebsa.com.br",
}

// Classifier decides whether an account belongs to an allowed domain. A
// domain is allowed when it equals an entry or is a subdomain of one; a
// bare substring match ("notmaplebear.com.br") is not enough.
type Classifier struct {
	domains []string
}

func NewClassifier(domains ...string) *Classifier {
	seen := make(map[string]bool)
	var cleaned []string
	for _, d := range domains {
		d = strings.Trim(strings.ToLower(strings.TrimSpace(d)), "@.")
		if d == "" || seen[d] {
			continue
		}
		seen[d] = true
		cleaned = append(cleaned, d)
	}
	if len(cleaned) == 0 {
		cleaned = append(cleaned, DefaultDomains...)
	}
	return &Classifier{domains: cleaned}
}

func (c *Classifier) Domains() []string {
	out := make([]string, len(c.allowed()))
	copy(out, c.allowed())
	return out
}

func (c *Classifier) allowed() []string {
	if c == nil {
		return DefaultDomains
	}
	return c.domains
}

// Domain returns the lowercase part after the last '@', or "" if there is none.
func Domain(email string) string {
	email = strings.ToLower(strings.TrimSpace(email))
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return ""
	}
	return strings.TrimSuffix(email[at+1:], ".")
}

func (c *Classifier) IsCompliant(email string) bool {
	domain := Domain(email)
	if domain == "" {
		return false
	}
	for _, allowed := range c.allowed() {
		if domain == allowed || strings.HasSuffix(domain, "."+allowed) {
			return true
		}
	}
	return false
}

// Classify sets IsCompliant on every user and returns the non-compliant ones.
func (c *Classifier) Classify(users []models.LicenseUser) []models.LicenseUser {
	nonCompliant := make([]models.LicenseUser, 0)
	for i := range users {
		users[i].IsCompliant = c.IsCompliant(users[i].Email)
		if !users[i].IsCompliant {
			nonCompliant = append(nonCompliant, users[i])
		}
	}
	return nonCompliant
}

type DomainCount struct {
	Domain string `json:"domain"`
	Users  int    `json:"users"`
}

// DomainBreakdown counts non-compliant users per domain, most frequent first.
// topN <= 0 returns every domain.
func (c *Classifier) DomainBreakdown(users []models.LicenseUser, topN int) []DomainCount {
	counts := make(map[string]int)
	for _, u := range users {
		if c.IsCompliant(u.Email) {
			continue
		}
		domain := Domain(u.Email)
		if domain == "" {
			domain = "(none)"
		}
		counts[domain]++
	}

	out := make([]DomainCount, 0, len(counts))
	for domain, n := range counts {
		out = append(out, DomainCount{Domain: domain, Users: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Users != out[j].Users {
			return out[i].Users > out[j].Users
		}
		return out[i].Domain < out[j].Domain
	})

	if topN > 0 && len(out) > topN {
		out = out[:topN]
	}
	return out
}
