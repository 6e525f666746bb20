// internal/reconcile/reconcile_test.go
package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javajoker/canva-seat-ledger/internal/models"
)

func roster() []models.School {
	return []models.School{
		{ID: "12", Name: "Maple Bear Centro", Status: models.SchoolStatusActive},
		{ID: "15", Name: "Maple Bear São José", Status: models.SchoolStatusActive},
		{ID: "90", Name: "Maple Bear Guarulhos - Centro", Status: models.SchoolStatusActive},
		{ID: "30", Name: "Maple Bear Vazia", Status: models.SchoolStatusPaused},
	}
}

func TestMatcherStrategies(t *testing.T) {
	m := NewMatcher(roster(), map[string]string{"mbguarulhos.com.br": "90"})

	cases := []struct {
		user     models.LicenseUser
		index    int
		strategy Strategy
	}{
		{models.LicenseUser{Email: "a@mbguarulhos.com.br", SchoolID: "12"}, 2, StrategyDomainOverride},
		{models.LicenseUser{Email: "a@x.com", SchoolID: "15"}, 1, StrategyID},
		{models.LicenseUser{Email: "a@x.com", SchoolID: "999", SchoolName: "  maple bear sao jose "}, 1, StrategyName},
		{models.LicenseUser{Email: "a@x.com", SchoolName: "Bear Guarulhos"}, 2, StrategySubstring},
		{models.LicenseUser{Email: "a@x.com", SchoolName: "Maple Bear Centro - Unidade 2"}, 0, StrategySubstring},
		{models.LicenseUser{Email: "a@x.com", SchoolName: "ab"}, -1, StrategyNone},
		{models.LicenseUser{Email: "a@x.com"}, -1, StrategyNone},
	}

	for _, tc := range cases {
		i, s := m.Resolve(tc.user)
		assert.Equal(t, tc.index, i, "user %+v", tc.user)
		assert.Equal(t, tc.strategy, s, "user %+v", tc.user)
	}
}

func TestSubstringMatchPrefersFirstSchool(t *testing.T) {
	m := NewMatcher(roster(), nil)
	i, s := m.Resolve(models.LicenseUser{SchoolName: "Maple Bear"})
	assert.Equal(t, 0, i)
	assert.Equal(t, StrategySubstring, s)
}

func TestReconcile(t *testing.T) {
	users := []models.LicenseUser{
		{Email: "ana@maplebear.com.br", SchoolID: "12"},
		{Email: "ANA@maplebear.com.br ", SchoolID: "12"},
		{Email: "bia@gmail.com", SchoolID: "12"},
		{Email: "caio@maplebear.com.br", SchoolID: "12"},
		{Email: "davi@maplebear.com.br", SchoolName: "Maple Bear Sao Jose"},
		{Email: "eva@gmail.com", SchoolName: "Escola Desconhecida"},
		{Email: "fabi@mbguarulhos.com.br"},
	}

	views := Reconcile(roster(), users, Options{
		Limits:          map[string]int{"15": 5},
		DomainOverrides: map[string]string{"mbguarulhos.com.br": "90"},
	})

	require.Len(t, views, 5)

	assert.Equal(t, "12", views[0].School.ID)
	assert.Equal(t, 3, views[0].UsedLicenses)
	assert.Equal(t, 2, views[0].School.MaxLicenses)
	assert.Equal(t, 0, views[0].AvailableLicenses)
	assert.Equal(t, models.LicenseStatusExcess, views[0].Status)
	require.Len(t, views[0].NonCompliantUsers, 1)
	assert.Equal(t, "bia@gmail.com", views[0].NonCompliantUsers[0].Email)

	// Ties on used count are broken by school name.
	assert.Equal(t, "90", views[1].School.ID)
	assert.Equal(t, "15", views[2].School.ID)
	assert.Equal(t, 5, views[2].School.MaxLicenses)
	assert.Equal(t, 4, views[2].AvailableLicenses)
	assert.Equal(t, "Maple Bear São José", views[2].Users[0].SchoolName)

	assert.True(t, views[3].Unassigned)
	assert.Equal(t, models.UnassignedSchoolID, views[3].School.ID)
	assert.Equal(t, 1, views[3].School.MaxLicenses)
	assert.Equal(t, "eva@gmail.com", views[3].Users[0].Email)

	assert.Equal(t, "30", views[4].School.ID)
	assert.Equal(t, 0, views[4].UsedLicenses)
	assert.NotNil(t, views[4].Users)
	assert.Equal(t, models.LicenseStatusAvailable, views[4].Status)

	total := 0
	for _, v := range views {
		total += v.UsedLicenses
	}
	assert.Equal(t, 6, total, "every distinct user lands in exactly one view")
}

func TestReconcileWithoutUnassignedUsers(t *testing.T) {
	views := Reconcile(roster(), []models.LicenseUser{{Email: "a@maplebear.com.br", SchoolID: "12"}}, Options{})
	require.Len(t, views, 4)
	for _, v := range views {
		assert.False(t, v.Unassigned)
	}
}

func TestReconcileDoesNotMutateInput(t *testing.T) {
	users := []models.LicenseUser{{Email: " A@Maplebear.com.br", SchoolName: "maple bear centro"}}
	Reconcile(roster(), users, Options{})
	assert.Equal(t, " A@Maplebear.com.br", users[0].Email)
	assert.Empty(t, users[0].SchoolID)
}

func TestReconcileDuplicateSchoolsKeepFirst(t *testing.T) {
	schools := append(roster(), models.School{ID: "12", Name: "Other"})
	views := Reconcile(schools, nil, Options{})
	require.Len(t, views, 4)
	v, ok := Find(views, "12")
	require.True(t, ok)
	assert.Equal(t, "Maple Bear Centro", v.School.Name)
}

func TestOptionsLimit(t *testing.T) {
	opts := Options{DefaultLimit: 3, Limits: map[string]int{"1": 0}}
	assert.Equal(t, 0, opts.Limit("1"))
	assert.Equal(t, 3, opts.Limit("2"))
	assert.Equal(t, models.DefaultMaxLicensesPerSchool, Options{}.Limit("2"))
}
