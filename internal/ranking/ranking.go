// internal/ranking/ranking.go
package ranking

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/javajoker/canva-seat-ledger/internal/apperr"
	"github.com/javajoker/canva-seat-ledger/internal/models"
)

type Metric string

const (
	MetricActivityScore Metric = "activityScore"
	MetricCreated       Metric = "created"
	MetricShared        Metric = "shared"
	MetricViewed        Metric = "viewed"
)

const DefaultTopN = 20

func ParseMetric(raw string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "activityscore", "activity_score", "score":
		return MetricActivityScore, nil
	case "created":
		return MetricCreated, nil
	case "shared":
		return MetricShared, nil
	case "viewed":
		return MetricViewed, nil
	}
	return "", apperr.NewValidationError("unknown ranking metric %q", raw)
}

// Weights applied to each counter when computing the activity score.
type Weights struct {
	Created   float64 `json:"created"`
	Published float64 `json:"published"`
	Shared    float64 `json:"shared"`
	Viewed    float64 `json:"viewed"`
}

var DefaultWeights = Weights{Created: 1, Published: 1, Shared: 1, Viewed: 0.1}

func (w Weights) Score(a models.ActivityCounters) float64 {
	score := decimal.NewFromFloat(w.Created).Mul(decimal.NewFromInt(int64(a.Created))).
		Add(decimal.NewFromFloat(w.Published).Mul(decimal.NewFromInt(int64(a.Published)))).
		Add(decimal.NewFromFloat(w.Shared).Mul(decimal.NewFromInt(int64(a.Shared)))).
		Add(decimal.NewFromFloat(w.Viewed).Mul(decimal.NewFromInt(int64(a.Viewed))))
	return score.Round(2).InexactFloat64()
}

type RankedUser struct {
	Rank       int                     `json:"rank"`
	Name       string                  `json:"name"`
	Email      string                  `json:"email"`
	SchoolID   string                  `json:"school_id,omitempty"`
	SchoolName string                  `json:"school_name,omitempty"`
	Score      float64                 `json:"score"`
	Activity   models.ActivityCounters `json:"activity"`
}

type Ranker struct {
	Weights     Weights
	DefaultTopN int
}

func NewRanker(w Weights, defaultTopN int) *Ranker {
	if defaultTopN <= 0 {
		defaultTopN = DefaultTopN
	}
	return &Ranker{Weights: w, DefaultTopN: defaultTopN}
}

func (r *Ranker) value(metric Metric, a models.ActivityCounters) float64 {
	switch metric {
	case MetricCreated:
		return float64(a.Created)
	case MetricShared:
		return float64(a.Shared)
	case MetricViewed:
		return float64(a.Viewed)
	default:
		return r.Weights.Score(a)
	}
}

func (r *Ranker) topN(n int) int {
	if n <= 0 {
		return r.DefaultTopN
	}
	return n
}

// Rank orders users by metric, highest first, ties by name then email.
// topN <= 0 falls back to the ranker default.
func (r *Ranker) Rank(users []models.LicenseUser, metric Metric, topN int) []RankedUser {
	ranked := make([]RankedUser, 0, len(users))
	for _, u := range users {
		ranked = append(ranked, RankedUser{
			Name:       u.Name,
			Email:      models.NormalizeEmail(u.Email),
			SchoolID:   u.SchoolID,
			SchoolName: u.SchoolName,
			Score:      r.value(metric, u.Activity),
			Activity:   u.Activity,
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		if ranked[i].Name != ranked[j].Name {
			return ranked[i].Name < ranked[j].Name
		}
		return ranked[i].Email < ranked[j].Email
	})

	if n := r.topN(topN); len(ranked) > n {
		ranked = ranked[:n]
	}
	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	return ranked
}

// Rank uses the default weights and top-N.
func Rank(users []models.LicenseUser, metric Metric, topN int) []RankedUser {
	return NewRanker(DefaultWeights, DefaultTopN).Rank(users, metric, topN)
}

// Momentum is the percent change from previous to latest, 0 when previous is 0.
func Momentum(latest, previous float64) float64 {
	if previous == 0 {
		return 0
	}
	l := decimal.NewFromFloat(latest)
	p := decimal.NewFromFloat(previous)
	return l.Sub(p).Div(p).Mul(decimal.NewFromInt(100)).Round(2).InexactFloat64()
}
