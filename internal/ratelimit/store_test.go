package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/tasklane/todo-api/internal/storage"
)

var epoch = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

// StoreTestSuite runs the same contract against every Store implementation
type StoreTestSuite struct {
	suite.Suite
	newStore func(t *testing.T) Store
	store    Store
}

func (s *StoreTestSuite) SetupTest() {
	s.store = s.newStore(s.T())
}

func TestMemoryStore(t *testing.T) {
	suite.Run(t, &StoreTestSuite{newStore: func(t *testing.T) Store { return NewMemoryStore() }})
}

func TestDocumentStore(t *testing.T) {
	suite.Run(t, &StoreTestSuite{newStore: func(t *testing.T) Store {
		dir := t.TempDir()
		return NewDocumentStore(
			storage.NewFileBlob(filepath.Join(dir, "rate-limits.json")),
			storage.NewFileBlob(filepath.Join(dir, "throttles.json")),
		)
	}})
}

func (s *StoreTestSuite) TestFirstHitInitialisesRecord() {
	rec, allowed, err := s.store.Hit(context.Background(), "10.0.0.1", 3, time.Minute, epoch)
	require.NoError(s.T(), err)
	assert.True(s.T(), allowed)
	assert.Equal(s.T(), Record{
		Limit:     3,
		Attempt:   1,
		StartTime: epoch.Unix(),
		Remaining: 2,
		ResetTime: epoch.Add(time.Minute).Unix(),
	}, rec)
}

func (s *StoreTestSuite) TestLimitReachedWithinWindow() {
	ctx := context.Background()
	for i := 1; i <= 3; i++ {
		rec, allowed, err := s.store.Hit(ctx, "10.0.0.1", 3, time.Minute, epoch.Add(time.Duration(i)*time.Second))
		require.NoError(s.T(), err)
		require.True(s.T(), allowed, "request %d", i)
		assert.Equal(s.T(), 3-i, rec.Remaining)
	}

	rec, allowed, err := s.store.Hit(ctx, "10.0.0.1", 3, time.Minute, epoch.Add(10*time.Second))
	require.NoError(s.T(), err)
	assert.False(s.T(), allowed)
	assert.Equal(s.T(), 0, rec.Remaining)
	assert.Equal(s.T(), 3, rec.Attempt)
}

func (s *StoreTestSuite) TestWindowResets() {
	ctx := context.Background()
	for i := 0; i < 4; i++ {
		_, _, err := s.store.Hit(ctx, "10.0.0.1", 3, time.Minute, epoch)
		require.NoError(s.T(), err)
	}

	later := epoch.Add(time.Minute)
	rec, allowed, err := s.store.Hit(ctx, "10.0.0.1", 3, time.Minute, later)
	require.NoError(s.T(), err)
	assert.True(s.T(), allowed)
	assert.Equal(s.T(), 1, rec.Attempt)
	assert.Equal(s.T(), later.Unix(), rec.StartTime)
}

func (s *StoreTestSuite) TestSubSecondWindowStillLimits() {
	ctx := context.Background()
	allowed := 0
	for i := 0; i < 10; i++ {
		_, ok, err := s.store.Hit(ctx, "10.0.0.1", 2, 500*time.Millisecond, epoch)
		require.NoError(s.T(), err)
		if ok {
			allowed++
		}
	}
	assert.Equal(s.T(), 2, allowed)

	rec, ok, err := s.store.Hit(ctx, "10.0.0.1", 2, 500*time.Millisecond, epoch.Add(time.Second))
	require.NoError(s.T(), err)
	assert.True(s.T(), ok)
	assert.Equal(s.T(), 1, rec.Attempt)
}

func (s *StoreTestSuite) TestFractionalWindowRoundsUp() {
	rec, _, err := s.store.Hit(context.Background(), "10.0.0.1", 5, 1500*time.Millisecond, epoch)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), epoch.Unix()+2, rec.ResetTime)
}

func (s *StoreTestSuite) TestKeysAreIndependent() {
	ctx := context.Background()
	_, _, err := s.store.Hit(ctx, "10.0.0.1", 1, time.Minute, epoch)
	require.NoError(s.T(), err)

	_, allowed, err := s.store.Hit(ctx, "10.0.0.2", 1, time.Minute, epoch)
	require.NoError(s.T(), err)
	assert.True(s.T(), allowed)
}

func (s *StoreTestSuite) TestTouch() {
	ctx := context.Background()

	wait, err := s.store.Touch(ctx, "10.0.0.1", time.Second, epoch)
	require.NoError(s.T(), err)
	assert.False(s.T(), wait, "first request is never delayed")

	wait, err = s.store.Touch(ctx, "10.0.0.1", time.Second, epoch.Add(500*time.Millisecond))
	require.NoError(s.T(), err)
	assert.True(s.T(), wait)

	// The delayed request did not move the timestamp
	wait, err = s.store.Touch(ctx, "10.0.0.1", time.Second, epoch.Add(time.Second))
	require.NoError(s.T(), err)
	assert.False(s.T(), wait)

	wait, err = s.store.Touch(ctx, "10.0.0.2", time.Second, epoch.Add(time.Second))
	require.NoError(s.T(), err)
	assert.False(s.T(), wait)
}

func (s *StoreTestSuite) TestConcurrentHitsAreCounted() {
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := s.store.Hit(ctx, "10.0.0.9", 100, time.Minute, epoch)
			assert.NoError(s.T(), err)
		}()
	}
	wg.Wait()

	rec, _, err := s.store.Hit(ctx, "10.0.0.9", 100, time.Minute, epoch)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), 21, rec.Attempt)
}

func TestDocumentStoreFormat(t *testing.T) {
	ctx := context.Background()
	limits := storage.NewFileBlob(filepath.Join(t.TempDir(), "rate-limits.json"))
	store := NewDocumentStore(limits, storage.NewFileBlob(filepath.Join(t.TempDir(), "throttles.json")))

	_, _, err := store.Hit(ctx, "127.0.0.1", 60, time.Minute, epoch)
	require.NoError(t, err)

	data, err := limits.Read(ctx)
	require.NoError(t, err)
	var doc map[string]map[string]int64
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, map[string]int64{
		"limit":      60,
		"attempt":    1,
		"start_time": epoch.Unix(),
		"remaining":  59,
		"reset_time": epoch.Unix() + 60,
	}, doc["127.0.0.1"])
}

func TestDocumentStoreRecoversFromCorruptDocument(t *testing.T) {
	ctx := context.Background()
	limits := storage.NewFileBlob(filepath.Join(t.TempDir(), "rate-limits.json"))
	require.NoError(t, limits.Write(ctx, []byte("{not json")))
	store := NewDocumentStore(limits, storage.NewFileBlob(filepath.Join(t.TempDir(), "throttles.json")))

	rec, allowed, err := store.Hit(ctx, "127.0.0.1", 60, time.Minute, epoch)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, 1, rec.Attempt)
}

type failingBlob struct{}

func (failingBlob) Read(ctx context.Context) ([]byte, error) { return nil, errors.New("unreachable") }
func (failingBlob) Write(ctx context.Context, data []byte) error {
	return errors.New("unreachable")
}

func TestDocumentStorePropagatesBlobErrors(t *testing.T) {
	store := NewDocumentStore(failingBlob{}, failingBlob{})

	_, _, err := store.Hit(context.Background(), "k", 1, time.Minute, epoch)
	assert.Error(t, err)
	_, err = store.Touch(context.Background(), "k", time.Second, epoch)
	assert.Error(t, err)
}
