package dataset

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jon4hz/vaxboard/internal/cache"
	"github.com/jon4hz/vaxboard/internal/config"
	"github.com/stretchr/testify/suite"
)

// upstream is a fake remote document server that counts requests.
type upstream struct {
	*httptest.Server
	hits   atomic.Int32
	status atomic.Int32
	body   atomic.Value
	delay  atomic.Int64
}

func newUpstream(body string) *upstream {
	u := &upstream{}
	u.status.Store(http.StatusOK)
	u.body.Store(body)
	u.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.hits.Add(1)
		if d := time.Duration(u.delay.Load()); d > 0 {
			time.Sleep(d)
		}
		w.Header().Set("Content-Type", "text/csv")
		w.WriteHeader(int(u.status.Load()))
		_, _ = w.Write([]byte(u.body.Load().(string)))
	}))
	return u
}

type CacheTestSuite struct {
	suite.Suite
	ctx      context.Context
	upstream *upstream
	store    *Store
	snapshot *cache.PrefixedCache[Table]
	cache    *Cache
}

func (s *CacheTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.upstream = newUpstream(sampleCSV)

	store, err := NewStore(filepath.Join(s.T().TempDir(), "vaccination_data.db"))
	s.Require().NoError(err)
	s.store = store

	backend := cache.New(&config.CacheConfig{Type: config.CacheTypeMemory})
	s.snapshot = cache.NewPrefixedCache[Table](backend, config.CacheTypeMemory, cache.DatasetCachePrefix)
	s.cache = NewCache(store, NewHTTPFetcher(5*time.Second), s.upstream.URL+"/data.csv", s.snapshot)
}

func (s *CacheTestSuite) TearDownTest() {
	s.upstream.Close()
	s.NoError(s.cache.Close())
}

func (s *CacheTestSuite) TestRefreshIfEmpty_FetchesOnce() {
	count, err := s.cache.RefreshIfEmpty(s.ctx)
	s.Require().NoError(err)
	s.Equal(2, count)

	first, err := s.cache.ReadAll(s.ctx)
	s.Require().NoError(err)

	count, err = s.cache.RefreshIfEmpty(s.ctx)
	s.Require().NoError(err)
	s.Equal(2, count)

	second, err := s.cache.ReadAll(s.ctx)
	s.Require().NoError(err)

	s.Equal(int32(1), s.upstream.hits.Load())
	s.Equal(first, second)
}

func (s *CacheTestSuite) TestRefreshIfEmpty_SampleRows() {
	_, err := s.cache.RefreshIfEmpty(s.ctx)
	s.Require().NoError(err)

	rows, err := s.cache.ReadAll(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(rows, 2)

	want := []map[string]string{
		{"STATE": "CA", "CITY": "LA", "VACCINATED": "true"},
		{"STATE": "CA", "CITY": "SF", "VACCINATED": "false"},
	}
	for i, row := range rows {
		got := make(map[string]string, len(row))
		for name, v := range row {
			got[name] = v.String()
		}
		s.Equal(want[i], got)
	}
}

func (s *CacheTestSuite) TestRefreshIfEmpty_Concurrent() {
	s.upstream.delay.Store(int64(100 * time.Millisecond))

	var wg sync.WaitGroup
	counts := make([]int, 8)
	errs := make([]error, 8)
	for i := range counts {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			counts[i], errs[i] = s.cache.RefreshIfEmpty(s.ctx)
		}(i)
	}
	wg.Wait()

	for i := range counts {
		s.NoError(errs[i])
		s.Equal(2, counts[i])
	}
	s.Equal(int32(1), s.upstream.hits.Load())
}

func (s *CacheTestSuite) TestRefreshIfEmpty_BadStatus() {
	s.upstream.status.Store(http.StatusInternalServerError)

	_, err := s.cache.RefreshIfEmpty(s.ctx)
	s.Require().Error(err)

	var fetchErr *FetchError
	s.Require().ErrorAs(err, &fetchErr)
	s.Equal(http.StatusInternalServerError, fetchErr.StatusCode)

	populated, err := s.cache.IsPopulated(s.ctx)
	s.Require().NoError(err)
	s.False(populated)

	rows, err := s.cache.ReadAll(s.ctx)
	s.Require().NoError(err)
	s.Empty(rows)

	// the next call retries
	s.upstream.status.Store(http.StatusOK)
	count, err := s.cache.RefreshIfEmpty(s.ctx)
	s.Require().NoError(err)
	s.Equal(2, count)
	s.Equal(int32(2), s.upstream.hits.Load())
}

func (s *CacheTestSuite) TestRefreshIfEmpty_ParseError() {
	s.upstream.body.Store("A,B\n1,2\n3\n")

	_, err := s.cache.RefreshIfEmpty(s.ctx)
	s.Require().Error(err)

	var parseErr *ParseError
	s.ErrorAs(err, &parseErr)

	populated, err := s.cache.IsPopulated(s.ctx)
	s.Require().NoError(err)
	s.False(populated)

	columns, err := s.store.Columns(s.ctx)
	s.Require().NoError(err)
	s.Equal(DefaultColumns, columns)
}

func (s *CacheTestSuite) TestRefreshIfEmpty_Unreachable() {
	s.upstream.Close()

	_, err := s.cache.RefreshIfEmpty(s.ctx)
	s.Require().Error(err)

	var fetchErr *FetchError
	s.Require().ErrorAs(err, &fetchErr)
	s.Zero(fetchErr.StatusCode)
}

func (s *CacheTestSuite) TestTable_UsesSnapshot() {
	_, err := s.cache.RefreshIfEmpty(s.ctx)
	s.Require().NoError(err)

	_, err = s.snapshot.Get(s.ctx, snapshotKey)
	s.True(cache.IsNotFound(err), "snapshot must be empty right after a load")

	table, err := s.cache.Table(s.ctx)
	s.Require().NoError(err)

	cached, err := s.snapshot.Get(s.ctx, snapshotKey)
	s.Require().NoError(err)
	s.Equal(table.Columns, cached.Columns)
	s.Equal(table.Rows, cached.Rows)
}

func (s *CacheTestSuite) TestTable_EmptyIsNotSnapshotted() {
	_, err := s.cache.Table(s.ctx)
	s.Require().NoError(err)

	_, err = s.snapshot.Get(s.ctx, snapshotKey)
	s.True(cache.IsNotFound(err))
}

func (s *CacheTestSuite) TestStatus() {
	status, err := s.cache.Status(s.ctx)
	s.Require().NoError(err)
	s.False(status.Populated)
	s.Nil(status.LastLoad)
	s.Equal("empty", status.String())

	_, err = s.cache.RefreshIfEmpty(s.ctx)
	s.Require().NoError(err)

	status, err = s.cache.Status(s.ctx)
	s.Require().NoError(err)
	s.True(status.Populated)
	s.Equal(2, status.Rows)
	s.Require().NotNil(status.LastLoad)
	s.Equal(s.upstream.URL+"/data.csv", status.LastLoad.Source)
	s.NotEmpty(status.LastLoad.RunID)
}

func TestCacheTestSuite(t *testing.T) {
	suite.Run(t, new(CacheTestSuite))
}
