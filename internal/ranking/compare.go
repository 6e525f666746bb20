// internal/ranking/compare.go
package ranking

import (
	"sort"

	"github.com/javajoker/canva-seat-ledger/internal/models"
)

type Trend string

const (
	TrendUp   Trend = "up"
	TrendDown Trend = "down"
	TrendSame Trend = "same"
	TrendNew  Trend = "new"
)

type Movement struct {
	RankedUser
	PreviousRank   int     `json:"previous_rank,omitempty"`
	PositionChange int     `json:"position_change"`
	PreviousScore  float64 `json:"previous_score"`
	Momentum       float64 `json:"momentum"`
	Trend          Trend   `json:"trend"`
}

// Compare lines the current ranking up against the previous one by email.
// A positive PositionChange means the user climbed.
func Compare(current, previous []RankedUser) []Movement {
	before := make(map[string]RankedUser, len(previous))
	for _, p := range previous {
		before[models.NormalizeEmail(p.Email)] = p
	}

	out := make([]Movement, 0, len(current))
	for _, c := range current {
		m := Movement{RankedUser: c, Trend: TrendNew}
		if p, ok := before[models.NormalizeEmail(c.Email)]; ok {
			m.PreviousRank = p.Rank
			m.PreviousScore = p.Score
			m.PositionChange = p.Rank - c.Rank
			m.Momentum = Momentum(c.Score, p.Score)
			switch {
			case m.PositionChange > 0:
				m.Trend = TrendUp
			case m.PositionChange < 0:
				m.Trend = TrendDown
			default:
				m.Trend = TrendSame
			}
		}
		out = append(out, m)
	}
	return out
}

type RankedSchool struct {
	Rank       int                     `json:"rank"`
	SchoolID   string                  `json:"school_id"`
	SchoolName string                  `json:"school_name"`
	Users      int                     `json:"users"`
	Score      float64                 `json:"score"`
	Activity   models.ActivityCounters `json:"activity"`
}

// SchoolLeaderboard sums user activity per school. The Unassigned bucket is
// left out.
func (r *Ranker) SchoolLeaderboard(views []models.SchoolLicenseView, metric Metric, topN int) []RankedSchool {
	out := make([]RankedSchool, 0, len(views))
	for _, v := range views {
		if v.Unassigned {
			continue
		}
		var total models.ActivityCounters
		for _, u := range v.Users {
			total = total.Add(u.Activity)
		}
		out = append(out, RankedSchool{
			SchoolID:   v.School.ID,
			SchoolName: v.School.Name,
			Users:      len(v.Users),
			Score:      r.value(metric, total),
			Activity:   total,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].SchoolName < out[j].SchoolName
	})

	if n := r.topN(topN); len(out) > n {
		out = out[:n]
	}
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}
