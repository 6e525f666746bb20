// cmd/server/app.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/javajoker/canva-seat-ledger/internal/audit"
	"github.com/javajoker/canva-seat-ledger/internal/compliance"
	"github.com/javajoker/canva-seat-ledger/internal/config"
	"github.com/javajoker/canva-seat-ledger/internal/database"
	"github.com/javajoker/canva-seat-ledger/internal/directory"
	"github.com/javajoker/canva-seat-ledger/internal/ranking"
	"github.com/javajoker/canva-seat-ledger/internal/router"
	"github.com/javajoker/canva-seat-ledger/internal/services"
	"github.com/javajoker/canva-seat-ledger/internal/sources"
	"github.com/javajoker/canva-seat-ledger/internal/txn"
)

type app struct {
	Services router.Services
	closers  []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

type backend struct {
	dir   directory.Directory
	store audit.Store
	tx    txn.Transactor
}

func newApp(cfg *config.Config, policy *config.Policy) (*app, error) {
	a := &app{}

	b, err := a.openBackend(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	fetcher, err := a.newFetcher(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	engine := audit.NewEngine(b.store, b.tx, directory.NewApplier(b.dir))
	rules := buildPolicy(cfg, policy)
	snapshots := services.NewSnapshotService(b.dir, b.tx, fetcher, rules.DomainOverrides)
	dashboard := services.NewDashboardService(b.dir, rules, snapshots)

	a.Services = router.Services{
		Snapshots: snapshots,
		Dashboard: dashboard,
		Licenses:  services.NewLicenseService(b.dir, engine, dashboard),
		Audit:     services.NewAuditService(engine),
	}
	return a, nil
}

func (a *app) openBackend(cfg *config.Config) (*backend, error) {
	if cfg.Audit.Backend == config.BackendPostgres {
		db, err := database.Initialize(cfg.Database)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { database.Close(db) })

		if err := database.RunMigrations(db); err != nil {
			return nil, err
		}
		return postgresBackend(db), nil
	}

	b := &backend{
		dir:   directory.NewMemoryDirectory(),
		store: audit.NewMemoryStore(),
		tx:    txn.NewMemoryTransactor(),
	}
	if cfg.Audit.LogFile == "" {
		logrus.Warn("Audit log file not configured; audit entries are kept in memory only")
		return b, nil
	}

	log, err := audit.OpenFileLog(cfg.Audit.LogFile)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() { log.Close() })

	store, err := audit.NewFileBackedStore(log)
	if err != nil {
		return nil, err
	}
	b.store = store
	return b, nil
}

func postgresBackend(db *gorm.DB) *backend {
	return &backend{
		dir:   directory.NewGormDirectory(db),
		store: audit.NewGormStore(db),
		tx:    database.NewTransactor(db),
	}
}

// newFetcher returns nil when no upstream sources are configured.
func (a *app) newFetcher(cfg *config.Config) (*sources.Fetcher, error) {
	if len(cfg.Sources.Locations) == 0 {
		return nil, nil
	}

	var s3Client s3iface.S3API
	for _, loc := range cfg.Sources.Locations {
		if strings.HasPrefix(loc, "s3://") {
			client, err := newS3Client(cfg.AWS)
			if err != nil {
				return nil, err
			}
			s3Client = client
			break
		}
	}

	httpClient := &http.Client{Timeout: cfg.Sources.Timeout}
	srcs := make([]sources.Source, 0, len(cfg.Sources.Locations))
	for _, loc := range cfg.Sources.Locations {
		src, err := sources.NewSource(loc, httpClient, s3Client)
		if err != nil {
			return nil, fmt.Errorf("invalid snapshot source: %w", err)
		}
		srcs = append(srcs, src)
	}

	cache, err := a.newCache(cfg.Redis)
	if err != nil {
		return nil, err
	}

	return sources.NewFetcher(srcs, cache, cfg.Sources.Timeout, sources.BreakerConfig{
		ConsecutiveFailures: uint32(cfg.Sources.BreakerFailures),
		OpenTimeout:         cfg.Sources.BreakerCooldown,
	}), nil
}

func newS3Client(cfg config.AWSConfig) (s3iface.S3API, error) {
	awsConfig := &aws.Config{Region: aws.String(cfg.Region)}
	if cfg.AccessKeyID != "" {
		awsConfig.Credentials = credentials.NewStaticCredentials(cfg.AccessKeyID, cfg.SecretAccessKey, "")
	}
	if cfg.Endpoint != "" {
		awsConfig.Endpoint = aws.String(cfg.Endpoint)
		awsConfig.S3ForcePathStyle = aws.Bool(true)
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}
	return s3.New(sess), nil
}

// newCache uses redis when an address is configured and memory otherwise.
func (a *app) newCache(cfg config.RedisConfig) (sources.Cache, error) {
	if cfg.Addr == "" {
		return sources.NewMemoryCache(), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	a.closers = append(a.closers, func() { client.Close() })

	logrus.WithField("addr", cfg.Addr).Info("Snapshot cache backed by redis")
	return sources.NewRedisCache(client, cfg.CacheKey, cfg.CacheTTL), nil
}

func buildPolicy(cfg *config.Config, p *config.Policy) services.Policy {
	weights := ranking.DefaultWeights
	var overrides map[string]string
	if p != nil {
		overrides = p.DomainOverrides
		for key, w := range p.RankingWeights {
			switch key {
			case "created":
				weights.Created = w
			case "published":
				weights.Published = w
			case "shared":
				weights.Shared = w
			case "viewed":
				weights.Viewed = w
			}
		}
	}

	return services.Policy{
		DefaultLimit:    cfg.Licensing.DefaultLimit,
		DomainOverrides: overrides,
		Classifier:      compliance.NewClassifier(cfg.Licensing.AllowedDomains...),
		Ranker:          ranking.NewRanker(weights, cfg.Ranking.TopN),
	}
}

// refreshLoop pulls a snapshot now and then on every tick until ctx ends.
func (a *app) refreshLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		result, err := a.Services.Snapshots.Refresh(ctx)
		if err != nil {
			logrus.WithError(err).Warn("Scheduled snapshot refresh failed")
		} else {
			logrus.WithFields(logrus.Fields{
				"source": result.Source,
				"stale":  result.Stale,
			}).Info("Scheduled snapshot refresh")
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
