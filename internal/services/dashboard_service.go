// internal/services/dashboard_service.go
package services

import (
	"context"
	"fmt"

	"github.com/javajoker/canva-seat-ledger/internal/apperr"
	"github.com/javajoker/canva-seat-ledger/internal/compliance"
	"github.com/javajoker/canva-seat-ledger/internal/directory"
	"github.com/javajoker/canva-seat-ledger/internal/licensing"
	"github.com/javajoker/canva-seat-ledger/internal/models"
	"github.com/javajoker/canva-seat-ledger/internal/ranking"
	"github.com/javajoker/canva-seat-ledger/internal/reconcile"
)

// Policy carries the licensing rules views are derived with.
type Policy struct {
	DefaultLimit    int
	DomainOverrides map[string]string
	Classifier      *compliance.Classifier
	Ranker          *ranking.Ranker
}

func (p Policy) ranker() *ranking.Ranker {
	if p.Ranker == nil {
		return ranking.NewRanker(ranking.DefaultWeights, ranking.DefaultTopN)
	}
	return p.Ranker
}

type DashboardService struct {
	dir       directory.Directory
	policy    Policy
	snapshots *SnapshotService
}

type Overview struct {
	Schools  []models.SchoolLicenseView `json:"schools"`
	Stats    licensing.Stats            `json:"stats"`
	Snapshot SnapshotState              `json:"snapshot"`
}

type StatsReport struct {
	licensing.Stats
	AllowedDomains      []string                 `json:"allowed_domains"`
	NonCompliantDomains []compliance.DomainCount `json:"non_compliant_domains"`
	Snapshot            SnapshotState            `json:"snapshot"`
}

type RankingReport struct {
	Metric         ranking.Metric     `json:"metric"`
	Users          []ranking.Movement `json:"users"`
	HasPrevious    bool               `json:"has_previous"`
	ActivityPeriod string             `json:"activity_period,omitempty"`
}

type SchoolRankingReport struct {
	Metric  ranking.Metric         `json:"metric"`
	Schools []ranking.RankedSchool `json:"schools"`
}

func NewDashboardService(dir directory.Directory, policy Policy, snapshots *SnapshotService) *DashboardService {
	return &DashboardService{dir: dir, policy: policy, snapshots: snapshots}
}

func (s *DashboardService) snapshotState() SnapshotState {
	if s.snapshots == nil {
		return SnapshotState{}
	}
	return s.snapshots.State()
}

// Views reconciles live state into one view per school.
func (s *DashboardService) Views(ctx context.Context) ([]models.SchoolLicenseView, error) {
	schools, err := s.dir.Schools(ctx)
	if err != nil {
		return nil, err
	}
	users, err := s.dir.Users(ctx)
	if err != nil {
		return nil, err
	}
	limits, err := s.dir.Limits(ctx)
	if err != nil {
		return nil, err
	}
	activity, err := s.dir.Activity(ctx, models.ActivitySlotCurrent)
	if err != nil {
		return nil, err
	}

	return reconcile.Reconcile(schools, withActivity(users, activity), reconcile.Options{
		DefaultLimit:    s.policy.DefaultLimit,
		Limits:          limits,
		DomainOverrides: s.policy.DomainOverrides,
		Classifier:      s.policy.Classifier,
	}), nil
}

// withActivity copies report counters onto seat holders by email.
func withActivity(users, activity []models.LicenseUser) []models.LicenseUser {
	if len(activity) == 0 {
		return users
	}
	byEmail := make(map[string]models.LicenseUser, len(activity))
	for _, a := range activity {
		byEmail[models.NormalizeEmail(a.Email)] = a
	}

	out := make([]models.LicenseUser, len(users))
	for i, u := range users {
		if a, ok := byEmail[models.NormalizeEmail(u.Email)]; ok {
			u.Activity = a.Activity
			if a.LastActivity != nil {
				u.LastActivity = a.LastActivity
			}
		}
		out[i] = u
	}
	return out
}

func (s *DashboardService) Overview(ctx context.Context) (*Overview, error) {
	views, err := s.Views(ctx)
	if err != nil {
		return nil, err
	}
	return &Overview{
		Schools:  views,
		Stats:    licensing.ComputeStats(views),
		Snapshot: s.snapshotState(),
	}, nil
}

func (s *DashboardService) School(ctx context.Context, id string) (*models.SchoolLicenseView, error) {
	views, err := s.Views(ctx)
	if err != nil {
		return nil, err
	}
	view, ok := reconcile.Find(views, id)
	if !ok {
		return nil, apperr.NewNotFoundError("school", id)
	}
	return &view, nil
}

func (s *DashboardService) Stats(ctx context.Context, topDomains int) (*StatsReport, error) {
	views, err := s.Views(ctx)
	if err != nil {
		return nil, err
	}

	var users []models.LicenseUser
	for _, v := range views {
		users = append(users, v.Users...)
	}

	return &StatsReport{
		Stats:               licensing.ComputeStats(views),
		AllowedDomains:      s.policy.Classifier.Domains(),
		NonCompliantDomains: s.policy.Classifier.DomainBreakdown(users, topDomains),
		Snapshot:            s.snapshotState(),
	}, nil
}

// Rankings ranks the current activity report and compares it with the
// previous one.
func (s *DashboardService) Rankings(ctx context.Context, metric ranking.Metric, limit int) (*RankingReport, error) {
	current, err := s.dir.Activity(ctx, models.ActivitySlotCurrent)
	if err != nil {
		return nil, fmt.Errorf("failed to load activity: %w", err)
	}
	previous, err := s.dir.Activity(ctx, models.ActivitySlotPrevious)
	if err != nil {
		return nil, fmt.Errorf("failed to load previous activity: %w", err)
	}

	users, err := s.dir.Users(ctx)
	if err != nil {
		return nil, err
	}
	current = withSchools(current, users)

	ranker := s.policy.ranker()
	ranked := ranker.Rank(current, metric, limit)
	// The previous ranking is not truncated so users climbing into the top
	// still get a position change.
	before := ranker.Rank(previous, metric, len(previous)+1)

	return &RankingReport{
		Metric:         metric,
		Users:          ranking.Compare(ranked, before),
		HasPrevious:    len(previous) > 0,
		ActivityPeriod: s.snapshotState().Period,
	}, nil
}

// withSchools fills school fields on activity rows from seat holders.
func withSchools(activity, users []models.LicenseUser) []models.LicenseUser {
	byEmail := make(map[string]models.LicenseUser, len(users))
	for _, u := range users {
		email := models.NormalizeEmail(u.Email)
		if _, ok := byEmail[email]; !ok {
			byEmail[email] = u
		}
	}

	out := make([]models.LicenseUser, len(activity))
	for i, a := range activity {
		if u, ok := byEmail[models.NormalizeEmail(a.Email)]; ok {
			a.SchoolID = u.SchoolID
			a.SchoolName = u.SchoolName
		}
		out[i] = a
	}
	return out
}

func (s *DashboardService) SchoolRankings(ctx context.Context, metric ranking.Metric, limit int) (*SchoolRankingReport, error) {
	views, err := s.Views(ctx)
	if err != nil {
		return nil, err
	}
	return &SchoolRankingReport{
		Metric:  metric,
		Schools: s.policy.ranker().SchoolLeaderboard(views, metric, limit),
	}, nil
}
