package items

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/conversationai/harassment-manager/internal/auth"
	"github.com/conversationai/harassment-manager/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	mu    sync.Mutex
	calls int
	items []models.SocialMediaItem
	errs  []error // consumed one per call; nil entries mean success
	gate  chan struct{}
}

func (f *fakeSource) GetMentions(ctx context.Context, userID string, start, end time.Time) ([]models.SocialMediaItem, error) {
	f.mu.Lock()
	call := f.calls
	f.calls++
	f.mu.Unlock()

	if f.gate != nil {
		<-f.gate
	}
	if call < len(f.errs) && f.errs[call] != nil {
		return nil, f.errs[call]
	}
	return f.items, nil
}

func (f *fakeSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeScorer struct {
	scoreFn func(text string) (map[string]float64, error)
}

func (f *fakeScorer) Score(ctx context.Context, text string) (map[string]float64, error) {
	if f.scoreFn != nil {
		return f.scoreFn(text)
	}
	return map[string]float64{"TOXICITY": 0.5}, nil
}

func mentions(ids ...string) []models.SocialMediaItem {
	out := make([]models.SocialMediaItem, len(ids))
	for i, id := range ids {
		out[i] = models.SocialMediaItem{ID: id, Text: "text " + id}
	}
	return out
}

func signedInService(source ItemSource, scorer Scorer) (*Service, *auth.Session) {
	session := auth.NewSession()
	session.SignIn("user-1")
	// High limit keeps tests fast; limiter behavior itself is rate's concern.
	return NewService(source, scorer, session, 1000), session
}

func waitFor(t *testing.T, pending *PendingFetch) ([]models.ScoredItem, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return pending.Wait(ctx)
}

func TestFetchItemsRequiresAuth(t *testing.T) {
	source := &fakeSource{items: mentions("a")}
	service, session := signedInService(source, &fakeScorer{})
	session.SignOut()

	pending, err := service.FetchItems(100, 200)
	assert.Nil(t, pending)
	assert.ErrorIs(t, err, ErrNotAuthenticated)
	assert.Equal(t, 0, source.callCount(), "no network I/O while signed out")
}

func TestFetchItemsScoresInInputOrder(t *testing.T) {
	source := &fakeSource{items: mentions("a", "b", "c")}
	// Later items finish scoring first; aggregation must still be in
	// input order.
	delays := map[string]time.Duration{"text a": 30 * time.Millisecond, "text b": 15 * time.Millisecond}
	scorer := &fakeScorer{scoreFn: func(text string) (map[string]float64, error) {
		time.Sleep(delays[text])
		return map[string]float64{"TOXICITY": 0.9}, nil
	}}
	service, _ := signedInService(source, scorer)

	pending, err := service.FetchItems(100, 200)
	require.NoError(t, err)
	scored, err := waitFor(t, pending)
	require.NoError(t, err)

	require.Len(t, scored, 3)
	assert.Equal(t, "a", scored[0].Item.ID)
	assert.Equal(t, "b", scored[1].Item.ID)
	assert.Equal(t, "c", scored[2].Item.ID)
	assert.Equal(t, 0.9, scored[0].Scores["TOXICITY"])
}

func TestConcurrentIdenticalRequestsCoalesce(t *testing.T) {
	source := &fakeSource{items: mentions("a"), gate: make(chan struct{})}
	service, _ := signedInService(source, &fakeScorer{})

	first, err := service.FetchItems(100, 200)
	require.NoError(t, err)
	second, err := service.FetchItems(100, 200)
	require.NoError(t, err)

	assert.Same(t, first, second, "identical in-flight requests share one handle")

	other, err := service.FetchItems(101, 200)
	require.NoError(t, err)
	assert.NotSame(t, first, other, "different range is a cache miss")

	close(source.gate)
	_, err = waitFor(t, first)
	require.NoError(t, err)
	_, err = waitFor(t, other)
	require.NoError(t, err)

	assert.Equal(t, 2, source.callCount(), "one underlying fetch per distinct range")
}

func TestCompletedResultReplaysWithoutRefetch(t *testing.T) {
	source := &fakeSource{items: mentions("a", "b")}
	service, _ := signedInService(source, &fakeScorer{})

	first, err := service.FetchItems(100, 200)
	require.NoError(t, err)
	scored, err := waitFor(t, first)
	require.NoError(t, err)
	require.Len(t, scored, 2)

	second, err := service.FetchItems(100, 200)
	require.NoError(t, err)
	assert.Same(t, first, second, "completed result replays to late callers")
	assert.Equal(t, 1, source.callCount())
}

func TestFetchFailureEvictsCacheEntry(t *testing.T) {
	source := &fakeSource{
		items: mentions("a"),
		errs:  []error{errors.New("twitter is down")},
	}
	service, _ := signedInService(source, &fakeScorer{})

	pending, err := service.FetchItems(100, 200)
	require.NoError(t, err)
	_, err = waitFor(t, pending)
	require.Error(t, err)
	assert.Equal(t, 0, service.CachedRangeCount(), "failed entry evicted before error published")

	// Same arguments retry from scratch instead of replaying the failure.
	retry, err := service.FetchItems(100, 200)
	require.NoError(t, err)
	assert.NotSame(t, pending, retry)
	scored, err := waitFor(t, retry)
	require.NoError(t, err)
	assert.Len(t, scored, 1)
	assert.Equal(t, 2, source.callCount())
}

func TestScoringFailureFailsWholeBatch(t *testing.T) {
	source := &fakeSource{items: mentions("a", "b", "c")}
	scorer := &fakeScorer{scoreFn: func(text string) (map[string]float64, error) {
		if text == "text b" {
			return nil, errors.New("quota exceeded")
		}
		return map[string]float64{"TOXICITY": 0.2}, nil
	}}
	service, _ := signedInService(source, scorer)

	pending, err := service.FetchItems(100, 200)
	require.NoError(t, err)
	scored, err := waitFor(t, pending)

	assert.Error(t, err, "one scoring failure fails the batch")
	assert.Nil(t, scored, "no half-scored results")
	assert.Equal(t, 0, service.CachedRangeCount())
}

func TestFetchedItemCount(t *testing.T) {
	source := &fakeSource{items: mentions("a", "b", "c")}
	service, _ := signedInService(source, &fakeScorer{})

	pending, err := service.FetchItems(100, 200)
	require.NoError(t, err)
	_, err = waitFor(t, pending)
	require.NoError(t, err)
	assert.Equal(t, 3, service.FetchedItemCount())

	pending, err = service.FetchItems(300, 400)
	require.NoError(t, err)
	_, err = waitFor(t, pending)
	require.NoError(t, err)
	assert.Equal(t, 6, service.FetchedItemCount(), "counter accumulates across ranges")
}

func TestSignOutClearsCacheAndCounter(t *testing.T) {
	source := &fakeSource{items: mentions("a", "b")}
	service, session := signedInService(source, &fakeScorer{})

	pending, err := service.FetchItems(100, 200)
	require.NoError(t, err)
	_, err = waitFor(t, pending)
	require.NoError(t, err)
	require.Equal(t, 1, service.CachedRangeCount())
	require.Equal(t, 2, service.FetchedItemCount())

	session.SignOut()

	assert.Equal(t, 0, service.CachedRangeCount())
	assert.Equal(t, 0, service.FetchedItemCount())

	// A fresh sign-in starts over with a real fetch.
	session.SignIn("user-1")
	again, err := service.FetchItems(100, 200)
	require.NoError(t, err)
	assert.NotSame(t, pending, again)
	_, err = waitFor(t, again)
	require.NoError(t, err)
	assert.Equal(t, 2, source.callCount())
}

func TestCacheKeyIsExactPair(t *testing.T) {
	assert.Equal(t, "100_200", cacheKey(100, 200))
	assert.NotEqual(t, cacheKey(100, 200), cacheKey(1002, 0))
	assert.NotEqual(t, cacheKey(100, 200), cacheKey(100, 201))
}
