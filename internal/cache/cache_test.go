package cache

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/law-makers/revscrape/pkg/models"
)

func report(url string, n int) *models.Report {
	r := &models.Report{URL: url, Stop: models.StopCompleted, Records: models.ScrapeResult{}}
	for i := 0; i < n; i++ {
		r.Records = append(r.Records, models.ReviewRecord{Name: fmt.Sprintf("r%d", i)})
	}
	return r
}

// openTicking opens an in-memory store whose clock advances a second per read
func openTicking(t *testing.T, maxEntries int, ttl time.Duration) (*Store, *time.Time) {
	t.Helper()
	s, err := Open(":memory:", maxEntries, ttl)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time {
		now = now.Add(time.Second)
		return now
	}
	return s, &now
}

func TestStore_GetSet(t *testing.T) {
	s, _ := openTicking(t, 4, time.Hour)

	_, ok := s.Get("https://a.example.com")
	assert.False(t, ok)

	s.Set("https://a.example.com", report("https://a.example.com", 2), 0)
	got, ok := s.Get("https://a.example.com")
	require.True(t, ok)
	assert.Len(t, got.Records, 2)
	assert.Equal(t, "r1", got.Records[1].Name)

	s.Set("https://a.example.com", report("https://a.example.com", 3), 0)
	got, _ = s.Get("https://a.example.com")
	assert.Len(t, got.Records, 3)

	stats := s.Stats()
	assert.Equal(t, 1, stats.Entries)
	assert.Equal(t, uint64(2), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
	assert.InDelta(t, 66.6, stats.HitRate(), 0.1)
}

func TestStore_Expiry(t *testing.T) {
	s, now := openTicking(t, 4, time.Minute)

	s.Set("a", report("a", 1), 0)
	s.Set("b", report("b", 1), time.Hour)

	*now = now.Add(2 * time.Minute)
	_, ok := s.Get("a")
	assert.False(t, ok, "default ttl elapsed")
	_, ok = s.Get("b")
	assert.True(t, ok)

	*now = now.Add(2 * time.Hour)
	assert.Equal(t, 1, s.purgeExpired())
	assert.Zero(t, s.Stats().Entries)
}

func TestStore_EvictsLeastRecentlyUsed(t *testing.T) {
	s, _ := openTicking(t, 2, time.Hour)

	s.Set("a", report("a", 1), 0)
	s.Set("b", report("b", 1), 0)
	s.Get("a")
	s.Set("c", report("c", 1), 0)

	_, ok := s.Get("b")
	assert.False(t, ok, "b was least recently used")
	_, ok = s.Get("a")
	assert.True(t, ok)
	_, ok = s.Get("c")
	assert.True(t, ok)

	s.Delete("a")
	s.Delete("missing")
	assert.Equal(t, 1, s.Stats().Entries)
}

func TestStore_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "reports.db")

	first, err := Open(path, 4, time.Hour)
	require.NoError(t, err)
	first.Set(Key("https://Shop.example.com/p#reviews"), report("https://shop.example.com/p", 3), 0)
	require.NoError(t, first.Close())

	second, err := Open(path, 4, time.Hour)
	require.NoError(t, err)
	defer second.Close()

	got, ok := second.Get(Key("https://shop.example.com/p"))
	require.True(t, ok, "a later run sees the earlier report")
	assert.Len(t, got.Records, 3)
	assert.Equal(t, models.StopCompleted, got.Stop)
}

func TestCacheable(t *testing.T) {
	assert.False(t, Cacheable(nil))
	for stop, want := range map[models.StopReason]bool{
		models.StopCompleted:         true,
		models.StopExhausted:         true,
		models.StopNavigationFailed:  false,
		models.StopTimeout:           false,
		models.StopPageFailed:        false,
		models.StopContainerNotFound: false,
		models.StopSessionError:      false,
	} {
		assert.Equal(t, want, Cacheable(&models.Report{Stop: stop}), string(stop))
	}
}

func TestKey(t *testing.T) {
	assert.Equal(t, "https://shop.example.com/p/1?v=2", Key("https://Shop.Example.com/p/1?v=2#reviews"))
	assert.Equal(t, "not a url", Key("not a url"))
}

func TestStore_CloseReleasesConnections(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	s, err := Open(filepath.Join(t.TempDir(), "reports.db"), 4, time.Minute)
	require.NoError(t, err)
	s.Set("https://a.example.com", report("https://a.example.com", 1), 0)
	_, ok := s.Get("https://a.example.com")
	assert.True(t, ok)
	require.NoError(t, s.Close())
}
