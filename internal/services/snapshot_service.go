// internal/services/snapshot_service.go
package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/javajoker/canva-seat-ledger/internal/apperr"
	"github.com/javajoker/canva-seat-ledger/internal/directory"
	"github.com/javajoker/canva-seat-ledger/internal/ingest"
	"github.com/javajoker/canva-seat-ledger/internal/models"
	"github.com/javajoker/canva-seat-ledger/internal/reconcile"
	"github.com/javajoker/canva-seat-ledger/internal/sources"
	"github.com/javajoker/canva-seat-ledger/internal/txn"
)

// SnapshotState describes the data views are currently derived from.
type SnapshotState struct {
	Format   ingest.Format          `json:"format,omitempty"`
	Source   string                 `json:"source,omitempty"`
	LoadedAt *time.Time             `json:"loaded_at,omitempty"`
	Period   string                 `json:"period,omitempty"`
	Stale    bool                   `json:"stale"`
	Partial  bool                   `json:"partial"`
	Skipped  int                    `json:"skipped"`
	Failures []apperr.SourceFailure `json:"failures,omitempty"`

	CollectedAt string             `json:"collected_at,omitempty"`
	UpdatedOn   string             `json:"updated_on,omitempty"`
	Metrics     map[string]float64 `json:"canva_metrics,omitempty"`
}

type IngestResult struct {
	Format  ingest.Format       `json:"format"`
	Schools int                 `json:"schools"`
	Users   int                 `json:"users"`
	Period  string              `json:"period,omitempty"`
	Skipped []apperr.ParseError `json:"skipped"`

	CollectedAt string             `json:"collected_at,omitempty"`
	UpdatedOn   string             `json:"updated_on,omitempty"`
	Metrics     map[string]float64 `json:"canva_metrics,omitempty"`
}

type RefreshResult struct {
	IngestResult
	Source    string                 `json:"source"`
	FetchedAt time.Time              `json:"fetched_at"`
	Stale     bool                   `json:"stale"`
	Failures  []apperr.SourceFailure `json:"failures,omitempty"`
}

type SnapshotService struct {
	dir       directory.Directory
	tx        txn.Transactor
	fetcher   *sources.Fetcher
	overrides map[string]string

	mu    sync.RWMutex
	state SnapshotState
}

// NewSnapshotService builds the ingestion service; fetcher may be nil when
// no upstream sources are configured. overrides maps an email domain to a
// school id, as in the dashboard policy.
func NewSnapshotService(dir directory.Directory, tx txn.Transactor, fetcher *sources.Fetcher, overrides map[string]string) *SnapshotService {
	return &SnapshotService{dir: dir, tx: tx, fetcher: fetcher, overrides: overrides}
}

// Ingest parses raw in the given format and replaces the matching part of
// live state. Malformed rows are skipped and reported.
func (s *SnapshotService) Ingest(ctx context.Context, format ingest.Format, raw []byte) (*IngestResult, error) {
	result, err := s.ingest(ctx, format, raw)
	if err != nil {
		return nil, err
	}

	s.record(result.state("upload"))
	return result, nil
}

func (r *IngestResult) state(source string) SnapshotState {
	return SnapshotState{
		Format:      r.Format,
		Source:      source,
		Period:      r.Period,
		Partial:     len(r.Skipped) > 0,
		Skipped:     len(r.Skipped),
		CollectedAt: r.CollectedAt,
		UpdatedOn:   r.UpdatedOn,
		Metrics:     r.Metrics,
	}
}

func (s *SnapshotService) ingest(ctx context.Context, format ingest.Format, raw []byte) (*IngestResult, error) {
	snap, err := ingest.Load(format, raw)
	if err != nil {
		return nil, err
	}

	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		switch snap.Format {
		case ingest.FormatRoster:
			if err := s.dir.UpsertSchools(ctx, snap.Schools, true); err != nil {
				return err
			}
			return s.reseat(ctx)
		case ingest.FormatLicenseExtract:
			return s.replaceUsers(ctx, snap.Users)
		case ingest.FormatActivity:
			return s.dir.ReplaceActivity(ctx, snap.Users)
		case ingest.FormatIntegrated:
			if err := s.dir.UpsertSchools(ctx, snap.Schools, false); err != nil {
				return err
			}
			return s.replaceUsers(ctx, snap.Users)
		}
		return apperr.NewValidationError("unknown snapshot format %q", snap.Format)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store %s snapshot: %w", format, err)
	}

	skipped := snap.Skipped
	if skipped == nil {
		skipped = []apperr.ParseError{}
	}

	logrus.WithFields(logrus.Fields{
		"format":  format,
		"schools": len(snap.Schools),
		"users":   len(snap.Users),
		"skipped": len(skipped),
	}).Info("Snapshot ingested")

	return &IngestResult{
		Format:      format,
		Schools:     len(snap.Schools),
		Users:       len(snap.Users),
		Period:      snap.Period,
		Skipped:     skipped,
		CollectedAt: snap.CollectedAt,
		UpdatedOn:   snap.UpdatedOn,
		Metrics:     snap.Metrics,
	}, nil
}

// resolveSeats stores every seat under the school views show it in, so a
// mutation addressed by a view's school id finds the stored row. Seats no
// school claims keep what the source said.
func (s *SnapshotService) resolveSeats(ctx context.Context, users []models.LicenseUser) ([]models.LicenseUser, bool, error) {
	schools, err := s.dir.Schools(ctx)
	if err != nil {
		return nil, false, err
	}
	matcher := reconcile.NewMatcher(schools, s.overrides)

	changed := false
	out := make([]models.LicenseUser, len(users))
	for i, u := range users {
		if idx, _ := matcher.Resolve(u); idx >= 0 {
			school := schools[idx]
			if u.SchoolID != school.ID || u.SchoolName != school.Name {
				u.SchoolID, u.SchoolName = school.ID, school.Name
				changed = true
			}
		}
		out[i] = u
	}
	return out, changed, nil
}

func (s *SnapshotService) replaceUsers(ctx context.Context, users []models.LicenseUser) error {
	resolved, _, err := s.resolveSeats(ctx, users)
	if err != nil {
		return err
	}
	return s.dir.ReplaceUsers(ctx, resolved)
}

// reseat re-resolves stored seats after the roster changed.
func (s *SnapshotService) reseat(ctx context.Context) error {
	users, err := s.dir.Users(ctx)
	if err != nil {
		return err
	}
	resolved, changed, err := s.resolveSeats(ctx, users)
	if err != nil || !changed {
		return err
	}
	return s.dir.ReplaceUsers(ctx, resolved)
}

// Refresh pulls an integrated snapshot from the configured sources. When all
// of them fail live state is left as it is and flagged stale.
func (s *SnapshotService) Refresh(ctx context.Context) (*RefreshResult, error) {
	if s.fetcher == nil {
		return nil, &apperr.SourceUnavailableError{}
	}

	fetched, err := s.fetcher.Fetch(ctx, func(payload []byte) error {
		_, err := ingest.ParseIntegrated(payload)
		return err
	})
	if err != nil {
		return nil, err
	}

	// A cached payload only seeds a process that has loaded nothing yet.
	if fetched.Stale && s.loaded() {
		return s.keepStale(fetched)
	}

	result, err := s.ingest(ctx, ingest.FormatIntegrated, fetched.Payload)
	if err != nil {
		return nil, err
	}

	state := result.state(fetched.Source)
	state.Stale = fetched.Stale
	state.Failures = fetched.Failures
	s.record(state)

	return &RefreshResult{
		IngestResult: *result,
		Source:       fetched.Source,
		FetchedAt:    fetched.FetchedAt,
		Stale:        fetched.Stale,
		Failures:     fetched.Failures,
	}, nil
}

func (s *SnapshotService) loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.LoadedAt != nil
}

// keepStale flags the current state stale without touching the directory,
// which may hold data newer than the cached payload.
func (s *SnapshotService) keepStale(fetched *sources.Result) (*RefreshResult, error) {
	s.mu.Lock()
	s.state.Stale = true
	s.state.Failures = fetched.Failures
	s.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"source":     fetched.Source,
		"fetched_at": fetched.FetchedAt,
		"failures":   len(fetched.Failures),
	}).Warn("All sources failed, keeping current snapshot")

	return &RefreshResult{
		IngestResult: IngestResult{Format: ingest.FormatIntegrated, Skipped: []apperr.ParseError{}},
		Source:       fetched.Source,
		FetchedAt:    fetched.FetchedAt,
		Stale:        true,
		Failures:     fetched.Failures,
	}, nil
}

func (s *SnapshotService) record(state SnapshotState) {
	now := time.Now().UTC()
	state.LoadedAt = &now

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

func (s *SnapshotService) State() SnapshotState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}
