// internal/sources/sources_test.go
package sources

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javajoker/canva-seat-ledger/internal/apperr"
)

type stubSource struct {
	name    string
	payload []byte
	err     error
	calls   int32
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) Fetch(ctx context.Context) ([]byte, error) {
	atomic.AddInt32(&s.calls, 1)
	return s.payload, s.err
}

type fakeS3 struct {
	s3iface.S3API
	objects map[string][]byte
}

func (f *fakeS3) GetObjectWithContext(ctx aws.Context, in *s3.GetObjectInput, _ ...request.Option) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[aws.StringValue(in.Bucket)+"/"+aws.StringValue(in.Key)]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func TestNewSource(t *testing.T) {
	src, err := NewSource("/data/snapshot.json", nil, nil)
	require.NoError(t, err)
	assert.IsType(t, &FileSource{}, src)

	src, err = NewSource("https://scraper.local/latest.json", nil, nil)
	require.NoError(t, err)
	assert.IsType(t, &HTTPSource{}, src)

	src, err = NewSource("s3://drops/canva/latest.json", nil, nil)
	require.NoError(t, err)
	s3src, ok := src.(*S3Source)
	require.True(t, ok)
	assert.Equal(t, "drops", s3src.Bucket)
	assert.Equal(t, "canva/latest.json", s3src.Key)

	_, err = NewSource("s3://drops", nil, nil)
	assert.Error(t, err)
	_, err = NewSource("ftp://x/y", nil, nil)
	assert.Error(t, err)
	_, err = NewSource("  ", nil, nil)
	assert.Error(t, err)
}

func TestFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snap.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"a":1}`), 0o644))

	data, err := (&FileSource{Path: path}).Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(data))

	_, err = (&FileSource{Path: filepath.Join(t.TempDir(), "missing")}).Fetch(context.Background())
	assert.Error(t, err)
}

func TestHTTPSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	data, err := (&HTTPSource{URL: srv.URL + "/latest"}).Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, string(data))

	_, err = (&HTTPSource{URL: srv.URL + "/missing"}).Fetch(context.Background())
	assert.Error(t, err)
}

func TestS3Source(t *testing.T) {
	client := &fakeS3{objects: map[string][]byte{"drops/latest.json": []byte("{}")}}

	data, err := (&S3Source{Bucket: "drops", Key: "latest.json", Client: client}).Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))

	_, err = (&S3Source{Bucket: "drops", Key: "other.json", Client: client}).Fetch(context.Background())
	assert.Error(t, err)

	_, err = (&S3Source{Bucket: "drops", Key: "latest.json"}).Fetch(context.Background())
	assert.Error(t, err)
}

func TestFetcherFirstSuccessWins(t *testing.T) {
	down := &stubSource{name: "down", err: errors.New("connection refused")}
	up := &stubSource{name: "up", payload: []byte("good")}
	never := &stubSource{name: "never", payload: []byte("other")}

	f := NewFetcher([]Source{down, up, never}, nil, time.Second, DefaultBreakerConfig)
	res, err := f.Fetch(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "up", res.Source)
	assert.Equal(t, []byte("good"), res.Payload)
	assert.False(t, res.Stale)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "down", res.Failures[0].Source)
	assert.Zero(t, atomic.LoadInt32(&never.calls))
}

func TestFetcherSkipsInvalidPayload(t *testing.T) {
	bad := &stubSource{name: "bad", payload: []byte("garbage")}
	good := &stubSource{name: "good", payload: []byte("valid")}

	f := NewFetcher([]Source{bad, good}, nil, time.Second, DefaultBreakerConfig)
	res, err := f.Fetch(context.Background(), func(b []byte) error {
		if string(b) != "valid" {
			return errors.New("not valid")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "good", res.Source)
}

func TestFetcherFallsBackToStaleCache(t *testing.T) {
	src := &stubSource{name: "only", payload: []byte("first")}
	cache := NewMemoryCache()
	f := NewFetcher([]Source{src}, cache, time.Second, DefaultBreakerConfig)

	_, err := f.Fetch(context.Background(), nil)
	require.NoError(t, err)

	src.payload, src.err = nil, errors.New("timeout")
	res, err := f.Fetch(context.Background(), nil)
	require.NoError(t, err)
	assert.True(t, res.Stale)
	assert.Equal(t, []byte("first"), res.Payload)
	assert.Len(t, res.Failures, 1)
}

func TestFetcherUnavailableWithoutCache(t *testing.T) {
	f := NewFetcher([]Source{&stubSource{name: "a", err: errors.New("down")}}, nil, time.Second, DefaultBreakerConfig)

	_, err := f.Fetch(context.Background(), nil)
	require.ErrorIs(t, err, apperr.ErrSourceUnavailable)

	var unavailable *apperr.SourceUnavailableError
	require.True(t, errors.As(err, &unavailable))
	assert.Len(t, unavailable.Failures, 1)
}

func TestFetcherBreakerOpens(t *testing.T) {
	src := &stubSource{name: "flaky", err: errors.New("down")}
	f := NewFetcher([]Source{src}, nil, time.Second, BreakerConfig{ConsecutiveFailures: 2, OpenTimeout: time.Minute})

	for i := 0; i < 4; i++ {
		_, _ = f.Fetch(context.Background(), nil)
	}
	assert.Equal(t, int32(2), atomic.LoadInt32(&src.calls))
}

func TestFetcherTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	f := NewFetcher([]Source{&HTTPSource{URL: srv.URL}}, nil, 50*time.Millisecond, DefaultBreakerConfig)
	start := time.Now()
	_, err := f.Fetch(context.Background(), nil)
	assert.ErrorIs(t, err, apperr.ErrSourceUnavailable)
	assert.Less(t, time.Since(start), time.Second)
}

func TestRedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	cache := NewRedisCache(client, "", time.Hour)

	snap, err := cache.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, snap)

	fetched := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, cache.Store(ctx, CachedSnapshot{Source: "s3://drops/latest.json", FetchedAt: fetched, Payload: []byte(`{"x":1}`)}))
	assert.True(t, mr.Exists(DefaultCacheKey))

	snap, err = cache.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, "s3://drops/latest.json", snap.Source)
	assert.True(t, fetched.Equal(snap.FetchedAt))
	assert.Equal(t, []byte(`{"x":1}`), snap.Payload)

	mr.Set(DefaultCacheKey, "not json")
	_, err = cache.Load(ctx)
	assert.Error(t, err)
}
