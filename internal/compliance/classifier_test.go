// internal/compliance/classifier_test.go
package compliance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javajoker/canva-seat-ledger/internal/models"
)

func TestIsCompliant(t *testing.T) {
	c := NewClassifier()

	cases := map[string]bool{
		"ana@maplebear.com.br":          true,
		"  ANA@MapleBear.com.br ":       true,
		"bob@co.maplebear.com.br":       true,
		"x@sub.maplebear.com.br":        true,
		"x@notmaplebear.com.br":         false,
		"carla@seb.com.br":              true,
		"dani@sebsa.com.br":             true,
		"edu@mbcentral.com.br":          true,
		"fake@notmaplebear.com.br":      false,
		"fake@maplebear.com.br.evil.io": false,
		"gui@gmail.com":                 false,
		"maplebear.com.br":              false,
		"":                              false,
		"x@":                            false,
		"weird@name@maplebear.com.br":   true,
	}

	for email, want := range cases {
		assert.Equal(t, want, c.IsCompliant(email), "email %q", email)
	}
}

func TestNewClassifierNormalizesDomains(t *testing.T) {
	c := NewClassifier(" @Example.org ", "example.org", ".school.edu")
	assert.Equal(t, []string{"example.org", "school.edu"}, c.Domains())
	assert.True(t, c.IsCompliant("a@example.org"))
	assert.True(t, c.IsCompliant("a@dept.school.edu"))
	assert.False(t, c.IsCompliant("a@maplebear.com.br"))
}

func TestNilClassifierUsesDefaults(t *testing.T) {
	var c *Classifier
	assert.True(t, c.IsCompliant("a@seb.com.br"))
	assert.Equal(t, DefaultDomains, c.Domains())
}

func TestClassify(t *testing.T) {
	users := []models.LicenseUser{
		{Email: "a@maplebear.com.br"},
		{Email: "b@gmail.com"},
	}

	nonCompliant := NewClassifier().Classify(users)

	assert.True(t, users[0].IsCompliant)
	assert.False(t, users[1].IsCompliant)
	require.Len(t, nonCompliant, 1)
	assert.Equal(t, "b@gmail.com", nonCompliant[0].Email)
}

func TestDomainBreakdown(t *testing.T) {
	users := []models.LicenseUser{
		{Email: "a@gmail.com"},
		{Email: "b@gmail.com"},
		{Email: "c@hotmail.com"},
		{Email: "d@outlook.com"},
		{Email: "e@maplebear.com.br"},
	}

	got := NewClassifier().DomainBreakdown(users, 2)

	assert.Equal(t, []DomainCount{
		{Domain: "gmail.com", Users: 2},
		{Domain: "hotmail.com", Users: 1},
	}, got)
	assert.Len(t, NewClassifier().DomainBreakdown(users, 0), 3)
}
